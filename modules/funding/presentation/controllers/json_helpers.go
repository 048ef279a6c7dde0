package controllers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/text/language"

	"github.com/cirm-data/portal/pkg/composables"
	"github.com/cirm-data/portal/pkg/configuration"
	"github.com/cirm-data/portal/pkg/httpapi"
	"github.com/cirm-data/portal/pkg/intl"
	"github.com/cirm-data/portal/pkg/serrors"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	if err := httpapi.WriteJSON(w, status, payload); err != nil {
		panic(err)
	}
}

func ensureRequestID(w http.ResponseWriter, r *http.Request) string {
	if r == nil {
		return ""
	}
	header := strings.TrimSpace(configuration.Use().RequestIDHeader)
	if header == "" {
		header = "X-Request-ID"
	}

	requestID := strings.TrimSpace(r.Header.Get(header))
	if requestID == "" {
		requestID = strings.TrimSpace(r.Header.Get("X-Request-Id"))
	}
	if requestID == "" {
		requestID = uuid.NewString()
		w.Header().Set(header, requestID)
	}
	return requestID
}

func writeAPIError(w http.ResponseWriter, r *http.Request, status int, code, message string) {
	_ = httpapi.WriteError(w, status, code, message, map[string]string{
		"request_id": ensureRequestID(w, r),
	})
}

// writeServiceError renders a service failure as the JSON error envelope,
// localizing the message when the request carries a localizer.
func writeServiceError(w http.ResponseWriter, r *http.Request, err error) {
	localizer, _ := intl.UseLocalizer(r.Context())
	w.Header().Set("Content-Language", intl.UseLocale(r.Context(), language.English).String())

	var vErrs serrors.ValidationErrors
	if errors.As(err, &vErrs) {
		meta := map[string]string{"request_id": ensureRequestID(w, r)}
		for field, msg := range serrors.LocalizeValidationErrors(vErrs, localizer) {
			meta["field."+field] = msg
		}
		_ = httpapi.WriteError(w, http.StatusUnprocessableEntity, "VALIDATION_ERROR", "validation failed", meta)
		return
	}

	var base *serrors.BaseError
	if errors.As(err, &base) {
		writeAPIError(w, r, statusForCode(base.Code), base.Code, base.Localized(localizer))
		return
	}

	if logger, ok := composables.TryUseLogger(r.Context()); ok {
		logger.WithError(err).Error("funding api request failed")
	}
	writeAPIError(w, r, http.StatusInternalServerError, "INTERNAL", "internal error")
}

func statusForCode(code string) int {
	switch code {
	case "UNSUPPORTED_FORMAT":
		return http.StatusUnsupportedMediaType
	case "PARSE_FAILURE", "INVALID_STRUCTURE":
		return http.StatusUnprocessableEntity
	case "MERGE_REJECTED":
		return http.StatusConflict
	case "NOT_FOUND":
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
