package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"
)

func testClient(t *testing.T, srv *httptest.Server) *portalAPIClient {
	t.Helper()
	u, err := url.Parse(srv.URL)
	if err != nil {
		t.Fatalf("parse server url: %v", err)
	}
	return &portalAPIClient{
		baseURL:         u,
		httpClient:      &http.Client{Timeout: 5 * time.Second},
		requestIDHeader: "X-Request-Id",
	}
}

func TestParseAPIError_Envelope(t *testing.T) {
	apiErr, err := parseAPIError(404, []byte(`{"message":"no data set loaded","code":"NOT_FOUND"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if apiErr == nil || apiErr.Code != "NOT_FOUND" {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
}

func TestParseAPIError_NonEnvelopeBody(t *testing.T) {
	apiErr, err := parseAPIError(502, []byte("bad gateway"))
	if apiErr != nil {
		t.Fatalf("expected no envelope, got %+v", apiErr)
	}
	if err == nil {
		t.Fatalf("expected error")
	}
	if got := exitCode(err); got != exitAPI {
		t.Fatalf("unexpected exit code: %d", got)
	}
}

func TestAPIErrToError_ExitCodes(t *testing.T) {
	cases := map[string]int{
		"VALIDATION_ERROR":   exitValidation,
		"PARSE_FAILURE":      exitValidation,
		"INVALID_STRUCTURE":  exitValidation,
		"UNSUPPORTED_FORMAT": exitValidation,
		"MERGE_REJECTED":     exitValidation,
		"NOT_FOUND":          exitAPI,
		"INTERNAL":           exitAPI,
	}
	for code, want := range cases {
		err := apiErrToError("import", &apiError{Message: "m", Code: code})
		if got := exitCode(err); got != want {
			t.Fatalf("code %s: exit %d, want %d", code, got, want)
		}
	}
}

func TestDoJSON_DecodesPayload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("X-Request-Id") == "" {
			t.Errorf("missing request id header")
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{"total": 3})
	}))
	defer srv.Close()

	var out struct {
		Total int64 `json:"total"`
	}
	status, apiErr, err := testClient(t, srv).doJSON(context.Background(), http.MethodGet, "/api/funding/changes", nil, &out)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if apiErr != nil {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
	if status != http.StatusOK || out.Total != 3 {
		t.Fatalf("unexpected response: status=%d total=%d", status, out.Total)
	}
}

func TestUploadFile_SendsMultipart(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		file, header, err := r.FormFile("file")
		if err != nil {
			t.Errorf("form file: %v", err)
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		defer func() { _ = file.Close() }()
		if header.Filename != "cirm-data.json" {
			t.Errorf("unexpected filename: %s", header.Filename)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"added":{"grants":2},"changeId":"change-1"}`))
	}))
	defer srv.Close()

	var result importResult
	_, apiErr, err := testClient(t, srv).uploadFile(context.Background(), "/api/funding/import", "cirm-data.json", []byte(`{}`), &result)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if apiErr != nil {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
	if result.Added.Grants != 2 || result.ChangeID != "change-1" {
		t.Fatalf("unexpected result: %+v", result)
	}
}

func TestDownload_ReadsContentDisposition(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("format"); got != "json" {
			t.Errorf("unexpected format: %s", got)
		}
		w.Header().Set("Content-Disposition", `attachment; filename="cirm-data-2026-08-25.json"`)
		_, _ = w.Write([]byte(`{"grants":[]}`))
	}))
	defer srv.Close()

	q := url.Values{}
	q.Set("format", "json")
	body, filename, apiErr, err := testClient(t, srv).download(context.Background(), "/api/funding/export", q)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if apiErr != nil {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
	if filename != "cirm-data-2026-08-25.json" {
		t.Fatalf("unexpected filename: %s", filename)
	}
	if len(body) == 0 {
		t.Fatalf("empty body")
	}
}

func TestRunExport_RejectsUnknownFormat(t *testing.T) {
	err := runExport(context.Background(), "http://localhost:1", exportOptions{format: "pdf"})
	if err == nil {
		t.Fatalf("expected error")
	}
	if got := exitCode(err); got != exitUsage {
		t.Fatalf("unexpected exit code: %d", got)
	}
}

func TestRunRollback_RefusesWithoutYes(t *testing.T) {
	err := runRollback(context.Background(), "http://localhost:1", "change-1", false)
	if err == nil {
		t.Fatalf("expected error")
	}
	if got := exitCode(err); got != exitSafetyNet {
		t.Fatalf("unexpected exit code: %d", got)
	}
}
