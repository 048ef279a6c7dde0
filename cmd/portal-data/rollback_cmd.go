package main

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/spf13/cobra"
)

func newRollbackCmd() *cobra.Command {
	var changeID string
	var yes bool

	cmd := &cobra.Command{
		Use:   "rollback",
		Short: "Restore the data set to the state before a logged change",
		RunE: func(cmd *cobra.Command, args []string) error {
			baseURL, _ := cmd.Flags().GetString("base-url")
			return runRollback(cmd.Context(), baseURL, changeID, yes)
		},
	}

	cmd.Flags().StringVar(&changeID, "change", "", "Change entry ID to roll back (required)")
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm the destructive rollback")
	_ = cmd.MarkFlagRequired("change")
	return cmd
}

func runRollback(ctx context.Context, baseURL, changeID string, yes bool) error {
	changeID = strings.TrimSpace(changeID)
	if changeID == "" {
		return withCode(exitUsage, fmt.Errorf("--change is required"))
	}
	if !yes {
		return withCode(exitSafetyNet, fmt.Errorf("refusing to rollback without --yes"))
	}

	client, err := newPortalAPIClient(baseURL)
	if err != nil {
		return err
	}

	var out struct {
		Summary struct {
			TotalGrants    int     `json:"totalGrants"`
			TotalPapers    int     `json:"totalPapers"`
			TotalProjects  int     `json:"totalProjects"`
			TotalAmount    float64 `json:"totalAmount"`
			ActiveProjects int     `json:"activeProjects"`
		} `json:"summary"`
		UpdateDate string `json:"updateDate"`
	}
	_, apiErr, err := client.doJSON(ctx, http.MethodPost, "/api/funding/changes/"+changeID+"/rollback", nil, &out)
	if err != nil {
		return err
	}
	if apiErr != nil {
		return apiErrToError("rollback", apiErr)
	}

	type rollbackSummary struct {
		Status     string `json:"status"`
		ChangeID   string `json:"changeId"`
		UpdateDate string `json:"updateDate"`
		Grants     int    `json:"grants"`
		Papers     int    `json:"papers"`
	}
	return writeJSONLine(rollbackSummary{
		Status:     "rolled_back",
		ChangeID:   changeID,
		UpdateDate: out.UpdateDate,
		Grants:     out.Summary.TotalGrants,
		Papers:     out.Summary.TotalPapers,
	})
}
