package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

type importResult struct {
	Added struct {
		Grants       int `json:"grants"`
		ActiveGrants int `json:"activeGrants"`
		Papers       int `json:"papers"`
	} `json:"added"`
	SkippedRows int    `json:"skippedRows"`
	ChangeID    string `json:"changeId"`
	UpdateDate  string `json:"updateDate"`
}

func newImportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a spreadsheet, CSV or JSON document into the data set",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			baseURL, _ := cmd.Flags().GetString("base-url")
			return runImport(cmd.Context(), baseURL, args[0])
		},
	}
	return cmd
}

func runImport(ctx context.Context, baseURL, path string) error {
	content, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return withCode(exitUsage, fmt.Errorf("read %s: %w", path, err))
	}

	client, err := newPortalAPIClient(baseURL)
	if err != nil {
		return err
	}

	var result importResult
	_, apiErr, err := client.uploadFile(ctx, "/api/funding/import", filepath.Base(path), content, &result)
	if err != nil {
		return err
	}
	if apiErr != nil {
		return apiErrToError("import", apiErr)
	}

	type importSummary struct {
		Status string `json:"status"`
		importResult
	}
	return writeJSONLine(importSummary{Status: "imported", importResult: result})
}

// apiErrToError maps the error envelope to an exit code. Validation and
// structural rejections are the caller's fault; everything else is the API's.
func apiErrToError(op string, apiErr *apiError) error {
	code := exitAPI
	switch apiErr.Code {
	case "VALIDATION_ERROR", "PARSE_FAILURE", "INVALID_STRUCTURE", "UNSUPPORTED_FORMAT", "MERGE_REJECTED":
		code = exitValidation
	}
	return withCode(code, fmt.Errorf("%s failed: %s (%s)", op, apiErr.Message, apiErr.Code))
}
