package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"
)

func newChangesCmd() *cobra.Command {
	var limit int
	var offset int

	cmd := &cobra.Command{
		Use:   "changes",
		Short: "List change log entries, most recent first",
		RunE: func(cmd *cobra.Command, args []string) error {
			baseURL, _ := cmd.Flags().GetString("base-url")
			return runChanges(cmd.Context(), baseURL, limit, offset)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 0, "Maximum entries to list (server default when 0)")
	cmd.Flags().IntVar(&offset, "offset", 0, "Entries to skip")
	return cmd
}

func runChanges(ctx context.Context, baseURL string, limit, offset int) error {
	client, err := newPortalAPIClient(baseURL)
	if err != nil {
		return err
	}

	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	if offset > 0 {
		q.Set("offset", strconv.Itoa(offset))
	}

	var out struct {
		Changes []json.RawMessage `json:"changes"`
		Total   int64             `json:"total"`
		Limit   int               `json:"limit"`
		Offset  int               `json:"offset"`
	}
	_, apiErr, err := client.doJSON(ctx, http.MethodGet, "/api/funding/changes", q, &out)
	if err != nil {
		return err
	}
	if apiErr != nil {
		return apiErrToError("changes", apiErr)
	}

	// One JSON line per entry keeps the output pipeable.
	for _, entry := range out.Changes {
		if err := writeJSONLine(entry); err != nil {
			return err
		}
	}
	type changesSummary struct {
		Status string `json:"status"`
		Listed int    `json:"listed"`
		Total  int64  `json:"total"`
		Offset int    `json:"offset"`
	}
	return writeJSONLine(changesSummary{
		Status: "listed",
		Listed: len(out.Changes),
		Total:  out.Total,
		Offset: out.Offset,
	})
}
