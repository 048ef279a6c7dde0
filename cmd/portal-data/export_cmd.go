package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
)

type exportOptions struct {
	format string
	entity string
	output string
}

func newExportCmd() *cobra.Command {
	var opts exportOptions

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the current data set to a file",
		RunE: func(cmd *cobra.Command, args []string) error {
			baseURL, _ := cmd.Flags().GetString("base-url")
			return runExport(cmd.Context(), baseURL, opts)
		},
	}

	cmd.Flags().StringVar(&opts.format, "format", "json", "Export format: json, xlsx or csv")
	cmd.Flags().StringVar(&opts.entity, "entity", "", "CSV only: grants, activeGrants or papers")
	cmd.Flags().StringVar(&opts.output, "output", "", "Output path; defaults to the server-chosen filename, - for stdout")
	return cmd
}

func runExport(ctx context.Context, baseURL string, opts exportOptions) error {
	format := strings.ToLower(strings.TrimSpace(opts.format))
	switch format {
	case "json", "xlsx", "csv":
	default:
		return withCode(exitUsage, fmt.Errorf("invalid --format: %q", opts.format))
	}

	client, err := newPortalAPIClient(baseURL)
	if err != nil {
		return err
	}

	q := url.Values{}
	q.Set("format", format)
	if strings.TrimSpace(opts.entity) != "" {
		q.Set("entity", strings.TrimSpace(opts.entity))
	}

	body, serverName, apiErr, err := client.download(ctx, "/api/funding/export", q)
	if err != nil {
		return err
	}
	if apiErr != nil {
		return apiErrToError("export", apiErr)
	}

	output := strings.TrimSpace(opts.output)
	if output == "-" {
		if _, err := os.Stdout.Write(body); err != nil {
			return withCode(exitAPI, fmt.Errorf("write stdout: %w", err))
		}
		return nil
	}
	if output == "" {
		output = serverName
	}
	if output == "" {
		return withCode(exitUsage, fmt.Errorf("--output is required when the server names no file"))
	}

	if dir := filepath.Dir(output); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return withCode(exitAPI, fmt.Errorf("mkdir %s: %w", dir, err))
		}
	}
	if err := os.WriteFile(output, body, 0o644); err != nil {
		return withCode(exitAPI, fmt.Errorf("write %s: %w", output, err))
	}

	type exportSummary struct {
		Status string `json:"status"`
		Format string `json:"format"`
		Path   string `json:"path"`
		Bytes  int    `json:"bytes"`
	}
	return writeJSONLine(exportSummary{
		Status: "exported",
		Format: format,
		Path:   output,
		Bytes:  len(body),
	})
}
