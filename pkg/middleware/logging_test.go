package middleware

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func newTestEntry() (*logrus.Entry, *bytes.Buffer) {
	buf := &bytes.Buffer{}
	log := logrus.New()
	log.SetOutput(buf)
	return logrus.NewEntry(log), buf
}

func TestTruncateForLog(t *testing.T) {
	t.Parallel()

	s, truncated := truncateForLog("abcdef", 0)
	require.Equal(t, "abcdef", s)
	require.False(t, truncated)

	s, truncated = truncateForLog("abcdef", 10)
	require.Equal(t, "abcdef", s)
	require.False(t, truncated)

	s, truncated = truncateForLog("abcdef", 3)
	require.Equal(t, "abc", s)
	require.True(t, truncated)
}

func TestShouldLogBody(t *testing.T) {
	t.Parallel()

	require.True(t, shouldLogBody("application/json; charset=utf-8"))
	require.True(t, shouldLogBody("APPLICATION/JSON"))
	require.True(t, shouldLogBody("application/x-www-form-urlencoded"))
	require.False(t, shouldLogBody("multipart/form-data; boundary=xyz"))
	require.False(t, shouldLogBody("text/plain"))
}

func TestLogRequestBody_MalformedJSONPassesThrough(t *testing.T) {
	t.Parallel()

	entry, buf := newTestEntry()
	r := httptest.NewRequest(http.MethodPost, "/api/funding/data", strings.NewReader("{not json"))
	r.Header.Set("Content-Type", "application/json")

	logRequestBody(entry, r, DefaultLoggerOptions())

	body, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	require.Equal(t, "{not json", string(body), "handler must see the original body")
	require.Contains(t, buf.String(), "request-body captured")
}

func TestLogRequestBody_ValidJSONLoggedParsed(t *testing.T) {
	t.Parallel()

	entry, buf := newTestEntry()
	payload := `{"source":"edit"}`
	r := httptest.NewRequest(http.MethodPost, "/api/funding/data", strings.NewReader(payload))
	r.Header.Set("Content-Type", "application/json")

	logRequestBody(entry, r, DefaultLoggerOptions())

	body, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	require.Equal(t, payload, string(body))
	require.Contains(t, buf.String(), "JSON request-body parsed")
}

func TestLogRequestBody_TruncatesOverCap(t *testing.T) {
	t.Parallel()

	entry, buf := newTestEntry()
	payload := `{"source":"` + strings.Repeat("x", 64) + `"}`
	r := httptest.NewRequest(http.MethodPost, "/api/funding/data", strings.NewReader(payload))
	r.Header.Set("Content-Type", "application/json")

	logRequestBody(entry, r, LoggerOptions{LogRequestBody: true, MaxBodyLength: 8})

	body, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	require.Equal(t, payload, string(body), "truncation applies to the log line only")
	require.Contains(t, buf.String(), "request-body captured")
	require.Contains(t, buf.String(), "request-body-truncated=true")
}

func TestLogRequestBody_FormURLEncoded(t *testing.T) {
	t.Parallel()

	entry, buf := newTestEntry()
	r := httptest.NewRequest(http.MethodPost, "/api/funding/data", strings.NewReader("a=1&b=2"))
	r.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	logRequestBody(entry, r, DefaultLoggerOptions())

	body, err := io.ReadAll(r.Body)
	require.NoError(t, err)
	require.Equal(t, "a=1&b=2", string(body))
	require.Contains(t, buf.String(), "form-urlencoded request-body parsed")
}

func TestLogResponseBody_OmitsOverCap(t *testing.T) {
	t.Parallel()

	entry, buf := newTestEntry()
	rec := httptest.NewRecorder()
	w := wrapResponseWriter(rec)
	w.Header().Set("Content-Type", "application/json")
	_, err := w.Write([]byte(`{"grants":"` + strings.Repeat("g", 128) + `"}`))
	require.NoError(t, err)

	logResponseBody(entry, w, LoggerOptions{LogResponseBody: true, MaxBodyLength: 16})

	require.Contains(t, buf.String(), "response-body omitted")
	require.Contains(t, buf.String(), "response-bytes")
	require.NotContains(t, buf.String(), strings.Repeat("g", 128))
}

func TestLogResponseBody_LogsSmallJSON(t *testing.T) {
	t.Parallel()

	entry, buf := newTestEntry()
	rec := httptest.NewRecorder()
	w := wrapResponseWriter(rec)
	w.Header().Set("Content-Type", "application/json")
	_, err := w.Write([]byte(`{"ok":true}`))
	require.NoError(t, err)

	logResponseBody(entry, w, DefaultLoggerOptions())

	require.Contains(t, buf.String(), "JSON response-body parsed")
}

func TestResponseCaptureWriter_Status(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	w := wrapResponseWriter(rec)
	require.Equal(t, http.StatusOK, w.Status())

	w.WriteHeader(http.StatusTeapot)
	w.WriteHeader(http.StatusInternalServerError)
	require.Equal(t, http.StatusTeapot, w.Status())
	require.Equal(t, http.StatusTeapot, rec.Code)
}
