package controllers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/cirm-data/portal/modules/funding/domain/cirm"
	"github.com/cirm-data/portal/modules/funding/services"
	"github.com/cirm-data/portal/pkg/application"
	"github.com/cirm-data/portal/pkg/composables"
	"github.com/cirm-data/portal/pkg/configuration"
	"github.com/cirm-data/portal/pkg/httpapi"
	"github.com/cirm-data/portal/pkg/middleware"
)

// FundingAPIController exposes the data set to the portal frontend: reads,
// imports, exports, the change history and the manual editor.
type FundingAPIController struct {
	app      application.Application
	store    *services.DataStore
	imports  *services.ImportService
	datasets *services.DatasetService
	changes  *services.ChangeLogService
	search   *services.SearchService
	basePath string
}

func NewFundingAPIController(app application.Application) application.Controller {
	return &FundingAPIController{
		app:      app,
		store:    app.Service(services.DataStore{}).(*services.DataStore),
		imports:  app.Service(services.ImportService{}).(*services.ImportService),
		datasets: app.Service(services.DatasetService{}).(*services.DatasetService),
		changes:  app.Service(services.ChangeLogService{}).(*services.ChangeLogService),
		search:   app.Service(services.SearchService{}).(*services.SearchService),
		basePath: "/api/funding",
	}
}

func (c *FundingAPIController) Key() string {
	return c.basePath
}

func (c *FundingAPIController) Register(r *mux.Router) {
	router := r.PathPrefix(c.basePath).Subrouter()
	router.Use(middleware.ProvideLocalizer(c.app))

	router.HandleFunc("/data", c.GetData).Methods(http.MethodGet)
	router.HandleFunc("/data", c.ReplaceData).Methods(http.MethodPost)
	router.HandleFunc("/summary", c.GetSummary).Methods(http.MethodGet)
	router.HandleFunc("/stats", c.GetStats).Methods(http.MethodGet)
	router.HandleFunc("/import", c.Import).Methods(http.MethodPost)
	router.HandleFunc("/export", c.Export).Methods(http.MethodGet)
	router.HandleFunc("/changes", c.ListChanges).Methods(http.MethodGet)
	router.HandleFunc("/changes/{id}/rollback", c.Rollback).Methods(http.MethodPost)
	router.HandleFunc("/active-grants/{grantNumber}", c.EditActiveGrant).Methods(http.MethodPatch)
	router.HandleFunc("/grants/{id}", c.EditGrant).Methods(http.MethodPatch)
	router.HandleFunc("/papers/{index}", c.EditPaper).Methods(http.MethodPatch)
	router.HandleFunc("/search", c.Search).Methods(http.MethodGet)
	router.HandleFunc("/health", c.Health).Methods(http.MethodGet)

	if hub := c.app.Websocket(); hub != nil {
		router.Handle("/ws", hub).Methods(http.MethodGet)
	}
}

func (c *FundingAPIController) GetData(w http.ResponseWriter, r *http.Request) {
	data, err := c.datasets.Data(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

// ReplaceData accepts a structured JSON document in the request body and runs
// it through the import pipeline, so body uploads and file uploads share one
// merge and audit path.
func (c *FundingAPIController) ReplaceData(w http.ResponseWriter, r *http.Request) {
	conf := configuration.Use()
	raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, conf.MaxUploadSize))
	if err != nil {
		writeAPIError(w, r, http.StatusRequestEntityTooLarge, "INVALID_REQUEST", "request body too large")
		return
	}
	sum, err := c.imports.ImportDocument(r.Context(), raw)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	logMutation(r, "replace", map[string]any{"change_id": sum.ChangeID})
	writeJSON(w, http.StatusOK, sum)
}

func (c *FundingAPIController) GetSummary(w http.ResponseWriter, r *http.Request) {
	summary, updated, err := c.datasets.Summary(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"summary":    summary,
		"updateDate": updated,
	})
}

func (c *FundingAPIController) GetStats(w http.ResponseWriter, r *http.Request) {
	program, yearly, err := c.datasets.Stats(r.Context())
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"programStats": program,
		"yearlyStats":  yearly,
	})
}

func (c *FundingAPIController) Import(w http.ResponseWriter, r *http.Request) {
	conf := configuration.Use()
	r.Body = http.MaxBytesReader(w, r.Body, conf.MaxUploadSize)
	if err := r.ParseMultipartForm(conf.MaxUploadMemory); err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "INVALID_REQUEST", "expected multipart form upload")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeAPIError(w, r, http.StatusBadRequest, "INVALID_REQUEST", `multipart field "file" is required`)
		return
	}
	defer func() { _ = file.Close() }()

	sum, err := c.imports.Import(r.Context(), header.Filename, file)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	logMutation(r, "import", map[string]any{
		"change_id": sum.ChangeID,
		"filename":  header.Filename,
	})
	writeJSON(w, http.StatusOK, sum)
}

func (c *FundingAPIController) Export(w http.ResponseWriter, r *http.Request) {
	format := strings.ToLower(strings.TrimSpace(composables.GetLastQueryParam(r, "format")))
	if format == "" {
		format = "json"
	}

	var (
		file *services.ExportFile
		err  error
	)
	switch format {
	case "json":
		file, err = c.datasets.ExportJSON(r.Context())
	case "xlsx", "excel":
		file, err = c.datasets.ExportExcel(r.Context())
	case "csv":
		file, err = c.datasets.ExportCSV(r.Context(), strings.TrimSpace(composables.GetLastQueryParam(r, "entity")))
	default:
		writeServiceError(w, r, cirm.ErrUnsupportedFormat.WithDetail(format))
		return
	}
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	if err := httpapi.WriteAttachment(w, file.Filename, file.ContentType, file.Body); err != nil {
		panic(err)
	}
}

func (c *FundingAPIController) ListChanges(w http.ResponseWriter, r *http.Request) {
	conf := configuration.Use()
	limit := queryInt(r, "limit", conf.ChangeLogPageSize)
	if limit <= 0 || limit > conf.ChangeLogPageSize {
		limit = conf.ChangeLogPageSize
	}
	offset := queryInt(r, "offset", 0)

	entries, total, err := c.changes.List(r.Context(), limit, offset)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"changes": entries,
		"total":   total,
		"limit":   limit,
		"offset":  offset,
	})
}

func (c *FundingAPIController) Rollback(w http.ResponseWriter, r *http.Request) {
	changeID := mux.Vars(r)["id"]
	restored, err := c.changes.Rollback(r.Context(), changeID)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	logMutation(r, "rollback", map[string]any{"change_id": changeID})
	writeJSON(w, http.StatusOK, map[string]any{
		"summary":    restored.Summary,
		"updateDate": restored.UpdateDate,
	})
}

func (c *FundingAPIController) EditActiveGrant(w http.ResponseWriter, r *http.Request) {
	c.applyEdit(w, r, cirm.EntityActiveGrant, mux.Vars(r)["grantNumber"])
}

func (c *FundingAPIController) EditGrant(w http.ResponseWriter, r *http.Request) {
	c.applyEdit(w, r, cirm.EntityGrant, mux.Vars(r)["id"])
}

func (c *FundingAPIController) EditPaper(w http.ResponseWriter, r *http.Request) {
	c.applyEdit(w, r, cirm.EntityPaper, mux.Vars(r)["index"])
}

func (c *FundingAPIController) applyEdit(w http.ResponseWriter, r *http.Request, entityType, key string) {
	patch, err := io.ReadAll(http.MaxBytesReader(w, r.Body, configuration.Use().MaxUploadSize))
	if err != nil {
		writeAPIError(w, r, http.StatusRequestEntityTooLarge, "INVALID_REQUEST", "request body too large")
		return
	}
	res, err := c.datasets.ApplyEdit(r.Context(), entityType, key, patch)
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	logMutation(r, "edit", map[string]any{"entity": entityType, "key": key})
	writeJSON(w, http.StatusOK, res)
}

func (c *FundingAPIController) Search(w http.ResponseWriter, r *http.Request) {
	q := composables.GetLastQueryParam(r, "q")
	hits, err := c.search.Search(r.Context(), q, queryInt(r, "limit", 0))
	if err != nil {
		writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"query": strings.TrimSpace(q),
		"hits":  hits,
	})
}

func (c *FundingAPIController) Health(w http.ResponseWriter, r *http.Request) {
	dataset := "ready"
	if _, err := c.store.Get(r.Context()); err != nil {
		if errors.Is(err, cirm.ErrNoDataSet) {
			dataset = "empty"
		} else {
			dataset = "error"
		}
	}

	database := "off"
	if pool := c.app.DB(); pool != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := pool.Ping(ctx); err != nil {
			database = "error"
		} else {
			database = "ok"
		}
	}

	status := http.StatusOK
	if dataset == "error" || database == "error" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, map[string]string{
		"status":   http.StatusText(status),
		"dataset":  dataset,
		"database": database,
	})
}

func queryInt(r *http.Request, key string, fallback int) int {
	v := strings.TrimSpace(composables.GetLastQueryParam(r, key))
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return fallback
	}
	return n
}

// logMutation leaves a trail for every write: the action, the caller and what
// changed. Reads are covered by the request log alone.
func logMutation(r *http.Request, action string, fields map[string]any) {
	logger, ok := composables.TryUseLogger(r.Context())
	if !ok {
		return
	}
	entry := logger.WithField("action", action)
	if ip, ok := composables.UseIP(r.Context()); ok && ip != "" {
		entry = entry.WithField("client_ip", ip)
	}
	if ua, ok := composables.UseUserAgent(r.Context()); ok && ua != "" {
		entry = entry.WithField("client_ua", ua)
	}
	for k, v := range fields {
		entry = entry.WithField(k, v)
	}
	entry.Info("data set mutation")
}
