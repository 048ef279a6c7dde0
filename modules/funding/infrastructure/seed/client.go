package seed

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	pkgerrors "github.com/pkg/errors"

	"github.com/cirm-data/portal/modules/funding/domain/cirm"
)

// Client fetches the published data set used to seed an empty store on cold
// start. The remote document goes through the same structural validation as
// an uploaded JSON file.
type Client struct {
	seedURL    string
	httpClient *http.Client
}

func NewClient(seedURL string, timeout time.Duration) (*Client, error) {
	seedURL = strings.TrimSpace(seedURL)
	u, err := url.Parse(seedURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid seed url: %q", seedURL)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		seedURL:    seedURL,
		httpClient: &http.Client{Timeout: timeout},
	}, nil
}

func (c *Client) Fetch(ctx context.Context) (*cirm.Data, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.seedURL, nil)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "seed request")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "seed fetch")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("seed fetch: unexpected status %d from %s", resp.StatusCode, c.seedURL)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "seed read")
	}

	doc, err := cirm.ParseDocument(body)
	if err != nil {
		return nil, pkgerrors.Wrap(err, "seed document")
	}
	doc.Normalize()
	return doc, nil
}
