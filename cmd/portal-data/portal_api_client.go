package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/cirm-data/portal/pkg/configuration"
)

type apiError struct {
	Message string            `json:"message"`
	Code    string            `json:"code"`
	Meta    map[string]string `json:"meta,omitempty"`
}

type portalAPIClient struct {
	baseURL         *url.URL
	httpClient      *http.Client
	requestIDHeader string
}

func newPortalAPIClient(baseURL string) (*portalAPIClient, error) {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = configuration.Use().Origin
	}
	u, err := url.Parse(baseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, withCode(exitUsage, fmt.Errorf("invalid --base-url: %q", baseURL))
	}
	return &portalAPIClient{
		baseURL:         u,
		httpClient:      &http.Client{Timeout: 60 * time.Second},
		requestIDHeader: configuration.Use().RequestIDHeader,
	}, nil
}

func (c *portalAPIClient) newRequest(ctx context.Context, method, path string, query url.Values, body io.Reader) (*http.Request, error) {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	if query != nil {
		u.RawQuery = query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, withCode(exitAPI, fmt.Errorf("http request: %w", err))
	}
	req.Header.Set("Accept", "application/json")
	if c.requestIDHeader != "" {
		req.Header.Set(c.requestIDHeader, uuid.NewString())
	}
	return req, nil
}

func (c *portalAPIClient) doJSON(ctx context.Context, method, path string, query url.Values, out any) (int, *apiError, error) {
	req, err := c.newRequest(ctx, method, path, query, nil)
	if err != nil {
		return 0, nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, withCode(exitAPI, fmt.Errorf("http do: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, withCode(exitAPI, fmt.Errorf("http read: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr, doErr := parseAPIError(resp.StatusCode, respBody)
		return resp.StatusCode, apiErr, doErr
	}

	if out == nil {
		return resp.StatusCode, nil, nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return resp.StatusCode, nil, withCode(exitAPI, fmt.Errorf("json unmarshal response: %w", err))
	}
	return resp.StatusCode, nil, nil
}

// uploadFile posts one multipart file to the import endpoint.
func (c *portalAPIClient) uploadFile(ctx context.Context, path, filename string, content []byte, out any) (int, *apiError, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return 0, nil, withCode(exitAPI, fmt.Errorf("multipart: %w", err))
	}
	if _, err := part.Write(content); err != nil {
		return 0, nil, withCode(exitAPI, fmt.Errorf("multipart write: %w", err))
	}
	if err := mw.Close(); err != nil {
		return 0, nil, withCode(exitAPI, fmt.Errorf("multipart close: %w", err))
	}

	req, err := c.newRequest(ctx, http.MethodPost, path, nil, &buf)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, withCode(exitAPI, fmt.Errorf("http do: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, withCode(exitAPI, fmt.Errorf("http read: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr, doErr := parseAPIError(resp.StatusCode, respBody)
		return resp.StatusCode, apiErr, doErr
	}
	if out == nil {
		return resp.StatusCode, nil, nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return resp.StatusCode, nil, withCode(exitAPI, fmt.Errorf("json unmarshal response: %w", err))
	}
	return resp.StatusCode, nil, nil
}

// download fetches an export attachment. The server names the file through
// Content-Disposition.
func (c *portalAPIClient) download(ctx context.Context, path string, query url.Values) ([]byte, string, *apiError, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, query, nil)
	if err != nil {
		return nil, "", nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, "", nil, withCode(exitAPI, fmt.Errorf("http do: %w", err))
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", nil, withCode(exitAPI, fmt.Errorf("http read: %w", err))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr, doErr := parseAPIError(resp.StatusCode, respBody)
		return nil, "", apiErr, doErr
	}

	filename := ""
	if cd := resp.Header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil {
			filename = params["filename"]
		}
	}
	return respBody, filename, nil, nil
}

func parseAPIError(status int, body []byte) (*apiError, error) {
	var apiErr apiError
	if err := json.Unmarshal(body, &apiErr); err == nil && strings.TrimSpace(apiErr.Code) != "" {
		return &apiErr, nil
	}
	return nil, withCode(exitAPI, fmt.Errorf("http status=%d body=%s", status, strings.TrimSpace(string(body))))
}
