package itf

import (
	"bytes"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gorilla/mux"
	"github.com/stretchr/testify/require"

	"github.com/cirm-data/portal/pkg/application"
	"github.com/cirm-data/portal/pkg/middleware"
)

// Suite drives controllers through the router in-process, no listening socket.
type Suite struct {
	tb     testing.TB
	env    *TestEnvironment
	router *mux.Router
}

// HTTP builds an application from the given modules and returns a suite ready
// to register controllers against.
func HTTP(tb testing.TB, mods ...application.Module) *Suite {
	tb.Helper()

	env := NewTestContext().WithModules(mods...).Build(tb)
	router := mux.NewRouter()
	router.Use(middleware.RequestParams())
	return &Suite{tb: tb, env: env, router: router}
}

// Env exposes the underlying test environment.
func (s *Suite) Env() *TestEnvironment {
	return s.env
}

// Register mounts a controller on the suite router.
func (s *Suite) Register(controller application.Controller) *Suite {
	controller.Register(s.router)
	return s
}

func (s *Suite) GET(path string) *Request {
	return s.newRequest(http.MethodGet, path)
}

func (s *Suite) POST(path string) *Request {
	return s.newRequest(http.MethodPost, path)
}

func (s *Suite) PATCH(path string) *Request {
	return s.newRequest(http.MethodPatch, path)
}

func (s *Suite) newRequest(method, path string) *Request {
	return &Request{suite: s, method: method, path: path, headers: http.Header{}}
}

// Request accumulates one call against the suite router.
type Request struct {
	suite   *Suite
	method  string
	path    string
	body    io.Reader
	headers http.Header
}

// JSON marshals v into the request body.
func (r *Request) JSON(v any) *Request {
	raw, err := json.Marshal(v)
	if err != nil {
		r.suite.tb.Fatal(err)
	}
	return r.RawBody(raw, "application/json")
}

// RawBody sets the body verbatim.
func (r *Request) RawBody(raw []byte, contentType string) *Request {
	r.body = bytes.NewReader(raw)
	r.headers.Set("Content-Type", contentType)
	return r
}

// File sets a multipart body carrying one uploaded file.
func (r *Request) File(field, filename string, content []byte) *Request {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	fw, err := w.CreateFormFile(field, filename)
	if err != nil {
		r.suite.tb.Fatal(err)
	}
	if _, err := fw.Write(content); err != nil {
		r.suite.tb.Fatal(err)
	}
	if err := w.Close(); err != nil {
		r.suite.tb.Fatal(err)
	}
	r.body = &buf
	r.headers.Set("Content-Type", w.FormDataContentType())
	return r
}

// Header sets a request header.
func (r *Request) Header(key, value string) *Request {
	r.headers.Set(key, value)
	return r
}

// Expect performs the request and returns the recorded response.
func (r *Request) Expect(tb testing.TB) *Response {
	tb.Helper()

	req := httptest.NewRequest(r.method, "http://portal.test"+r.path, r.body)
	req = req.WithContext(r.suite.env.Ctx)
	for key, values := range r.headers {
		for _, v := range values {
			req.Header.Add(key, v)
		}
	}

	rr := httptest.NewRecorder()
	r.suite.router.ServeHTTP(rr, req)
	return &Response{tb: tb, recorder: rr}
}

// Response wraps the recorded answer with chainable assertions.
type Response struct {
	tb       testing.TB
	recorder *httptest.ResponseRecorder
}

// Status asserts the response status code.
func (resp *Response) Status(code int) *Response {
	resp.tb.Helper()
	require.Equal(resp.tb, code, resp.recorder.Code,
		"unexpected status, body: %s", resp.recorder.Body.String())
	return resp
}

// Contains asserts the body carries the substring.
func (resp *Response) Contains(s string) *Response {
	resp.tb.Helper()
	require.Contains(resp.tb, resp.recorder.Body.String(), s)
	return resp
}

// Header returns a response header value.
func (resp *Response) Header(key string) string {
	return resp.recorder.Header().Get(key)
}

// Body returns the response body as a string.
func (resp *Response) Body() string {
	return resp.recorder.Body.String()
}

// JSON decodes the body into v.
func (resp *Response) JSON(v any) *Response {
	resp.tb.Helper()
	require.NoError(resp.tb, json.Unmarshal(resp.recorder.Body.Bytes(), v))
	return resp
}
