package middleware

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/cirm-data/portal/pkg/configuration"
	"github.com/cirm-data/portal/pkg/constants"
	"github.com/cirm-data/portal/pkg/httpapi"
	"github.com/cirm-data/portal/pkg/routing"
)

var tracer = otel.Tracer("cirm-portal-middleware")

type LoggerOptions struct {
	LogRequestBody  bool
	LogResponseBody bool
	// MaxBodyLength caps how many body bytes a single log line may carry.
	// Bodies over the cap are truncated, responses are logged by size only.
	MaxBodyLength int

	// Entrypoint and AllowlistPath select the routing allowlist used to pick
	// the error shape for recovered panics. Empty values mean the defaults.
	Entrypoint    string
	AllowlistPath string
	Repanic       bool
}

func DefaultLoggerOptions() LoggerOptions {
	return LoggerOptions{
		LogRequestBody:  true,
		LogResponseBody: true,
		MaxBodyLength:   2048,
	}
}

type responseCaptureWriter struct {
	http.ResponseWriter
	statusCode    int
	statusWritten bool
	body          *bytes.Buffer
}

func wrapResponseWriter(w http.ResponseWriter) *responseCaptureWriter {
	return &responseCaptureWriter{ResponseWriter: w, body: &bytes.Buffer{}}
}

func (w *responseCaptureWriter) WriteHeader(code int) {
	if !w.statusWritten {
		w.statusCode = code
		w.statusWritten = true
		w.ResponseWriter.WriteHeader(code)
	}
}

// Status returns the written status code, or 200 when the handler never
// called WriteHeader.
func (w *responseCaptureWriter) Status() int {
	if w.statusCode == 0 {
		return http.StatusOK
	}
	return w.statusCode
}

func (w *responseCaptureWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *responseCaptureWriter) Flush() {
	if flusher, ok := w.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Hijack keeps websocket upgrades working behind the capture writer.
func (w *responseCaptureWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	if hijacker, ok := w.ResponseWriter.(http.Hijacker); ok {
		return hijacker.Hijack()
	}
	return nil, nil, fmt.Errorf("underlying ResponseWriter does not implement http.Hijacker")
}

func getRealIP(r *http.Request, conf *configuration.Configuration) string {
	if v := r.Header.Get(conf.RealIPHeader); v != "" {
		return v
	}
	return r.RemoteAddr
}

func getRequestID(r *http.Request, conf *configuration.Configuration) string {
	if v := r.Header.Get(conf.RequestIDHeader); v != "" {
		return v
	}
	return uuid.New().String()
}

func TracedMiddleware(name string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			propagator := propagation.TraceContext{}
			ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

			ctx, span := tracer.Start(
				ctx,
				"middleware."+name,
				trace.WithAttributes(
					attribute.String("middleware.name", name),
					attribute.String("http.method", r.Method),
					attribute.String("http.url", r.URL.String()),
					attribute.String("http.host", r.Host),
				),
			)
			defer span.End()

			propagator.Inject(ctx, propagation.HeaderCarrier(r.Header))

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func formatHeaders(h http.Header) map[string]string {
	headers := make(map[string]string, len(h))
	for key, values := range h {
		if len(values) > 0 {
			headers[key] = values[0]
		}
	}
	return headers
}

func formatFormValues(f url.Values) map[string]string {
	formValues := make(map[string]string, len(f))
	for key, values := range f {
		formValues[key] = strings.Join(values, ",")
	}
	return formValues
}

func shouldLogBody(contentType string) bool {
	contentType = strings.ToLower(contentType)
	return strings.Contains(contentType, "application/json") ||
		strings.Contains(contentType, "application/x-www-form-urlencoded")
}

func truncateForLog(s string, limit int) (string, bool) {
	if limit <= 0 || len(s) <= limit {
		return s, false
	}
	return s[:limit], true
}

// logRequestBody buffers the body, logs it and hands the handler an untouched
// copy. Malformed payloads are logged as-is and passed through. Rejecting them
// is the API's job, and it answers with the JSON error envelope.
func logRequestBody(log *logrus.Entry, r *http.Request, opts LoggerOptions) {
	if r.Body == nil {
		return
	}
	bodyBuf := new(bytes.Buffer)
	if _, err := io.Copy(bodyBuf, r.Body); err != nil {
		log.WithError(err).Error("failed to read request-body")
	}
	r.Body = io.NopCloser(bytes.NewReader(bodyBuf.Bytes()))

	contentType := strings.ToLower(r.Header.Get("Content-Type"))
	raw, truncated := truncateForLog(bodyBuf.String(), opts.MaxBodyLength)

	switch {
	case strings.Contains(contentType, "application/json"):
		var parsed any
		if !truncated && json.Unmarshal(bodyBuf.Bytes(), &parsed) == nil {
			log.WithField("request-body", parsed).Info("JSON request-body parsed")
			return
		}
		log.WithFields(logrus.Fields{
			"request-body":           raw,
			"request-body-truncated": truncated,
		}).Info("request-body captured")
	case strings.Contains(contentType, "application/x-www-form-urlencoded"):
		// Parse from the buffer so r.Body stays readable for the handler.
		if values, err := url.ParseQuery(bodyBuf.String()); err == nil {
			log.WithField("request-body", formatFormValues(values)).Info("form-urlencoded request-body parsed")
			return
		}
		log.WithField("request-body", raw).Info("request-body captured")
	}
}

// Data set exports can run to megabytes. Over the cap only the size is logged.
func logResponseBody(log *logrus.Entry, w *responseCaptureWriter, opts LoggerOptions) {
	if !opts.LogResponseBody {
		return
	}
	if !strings.Contains(strings.ToLower(w.Header().Get("Content-Type")), "application/json") {
		return
	}
	if opts.MaxBodyLength > 0 && w.body.Len() > opts.MaxBodyLength {
		log.WithField("response-bytes", w.body.Len()).Info("response-body omitted")
		return
	}
	var parsed any
	if err := json.Unmarshal(w.body.Bytes(), &parsed); err == nil {
		log.WithField("response-body", parsed).Info("JSON response-body parsed")
	}
}

func WithLogger(logger *logrus.Logger, opts LoggerOptions) mux.MiddlewareFunc {
	conf := configuration.Use()
	rules, err := routing.LoadAllowlist(opts.AllowlistPath, opts.Entrypoint)
	if err != nil {
		rules = nil
	}
	classifier := routing.NewClassifier(rules)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(
			func(w http.ResponseWriter, r *http.Request) {
				start := time.Now()
				requestID := getRequestID(r, conf)

				fieldsLogger := logger.WithFields(logrus.Fields{
					"request-id": requestID,
					"path":       r.RequestURI,
					"method":     r.Method,
				})

				fieldsLogger.WithFields(logrus.Fields{
					"timestamp":       start.UnixNano(),
					"host":            r.Host,
					"ip":              getRealIP(r, conf),
					"user-agent":      r.UserAgent(),
					"request-headers": formatHeaders(r.Header),
				}).Info("request started")

				mutating := r.Method == http.MethodPost ||
					r.Method == http.MethodPut ||
					r.Method == http.MethodPatch ||
					r.Method == http.MethodDelete
				if mutating && opts.LogRequestBody && shouldLogBody(r.Header.Get("Content-Type")) {
					logRequestBody(fieldsLogger, r, opts)
				}

				propagator := propagation.TraceContext{}
				ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))

				ctx, span := tracer.Start(
					ctx,
					"http.request",
					trace.WithAttributes(
						attribute.String("http.method", r.Method),
						attribute.String("http.url", r.URL.String()),
						attribute.String("http.route", r.URL.Path),
						attribute.String("http.user_agent", r.UserAgent()),
						attribute.String("http.request_id", requestID),
						attribute.String("net.host.name", r.Host),
						attribute.String("net.peer.ip", getRealIP(r, conf)),
					),
				)
				defer span.End()

				ctx = context.WithValue(ctx, constants.LoggerKey, fieldsLogger)
				ctx = context.WithValue(ctx, constants.RequestStart, start)

				propagator.Inject(ctx, propagation.HeaderCarrier(w.Header()))

				if spanContext := span.SpanContext(); spanContext.HasTraceID() {
					traceID := spanContext.TraceID().String()
					spanID := spanContext.SpanID().String()

					w.Header().Set("X-Trace-Id", traceID)
					w.Header().Set("X-Span-Id", spanID)

					fieldsLogger = fieldsLogger.WithFields(logrus.Fields{
						"trace-id": traceID,
						"span-id":  spanID,
					})
				}

				w.Header().Set("X-Request-Id", requestID)

				wrappedWriter := wrapResponseWriter(w)

				// Recover from panics, log them with full context, and answer
				// in the shape the route class expects.
				defer func() {
					if recovered := recover(); recovered != nil {
						duration := time.Since(start)

						panicFields := logrus.Fields{
							"panic":       recovered,
							"stack":       string(debug.Stack()),
							"method":      r.Method,
							"path":        r.URL.Path,
							"remote_addr": getRealIP(r, conf),
							"user_agent":  r.UserAgent(),
							"status":      http.StatusInternalServerError,
							"duration":    duration,
						}

						if r.URL.RawQuery != "" {
							panicFields["query"] = r.URL.RawQuery
						}

						if contentType := r.Header.Get("Content-Type"); contentType != "" {
							panicFields["content_type"] = contentType
						}

						fieldsLogger.WithFields(panicFields).Error("panic recovered in request handler")

						if !wrappedWriter.statusWritten {
							class := classifier.ClassifyPath(r.URL.Path)
							if class == routing.RouteClassPublicAPI || class == routing.RouteClassWebsocket {
								_ = httpapi.WriteError(
									wrappedWriter,
									http.StatusInternalServerError,
									"INTERNAL_SERVER_ERROR",
									"internal server error",
									map[string]string{
										"request_id": requestID,
										"path":       r.URL.Path,
									},
								)
							} else {
								http.Error(wrappedWriter, "Internal Server Error", http.StatusInternalServerError)
							}
						}

						if opts.Repanic {
							panic(recovered)
						}
					}
				}()

				next.ServeHTTP(wrappedWriter, r.WithContext(ctx))

				statusCode := wrappedWriter.Status()
				duration := time.Since(start)
				fieldsLogger.WithFields(logrus.Fields{
					"duration":         duration,
					"completed":        true,
					"status-code":      statusCode,
					"status-class":     statusCode / 100,
					"response-headers": formatHeaders(wrappedWriter.Header()),
				}).Info("request completed")

				span.SetAttributes(
					attribute.Int64("http.request_duration_ms", duration.Milliseconds()),
					attribute.Int("http.status_code", statusCode),
				)

				logResponseBody(fieldsLogger, wrappedWriter, opts)
			},
		)
	}
}
