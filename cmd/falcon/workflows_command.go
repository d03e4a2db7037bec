package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"

	"falcon/internal/daemon"
	"falcon/internal/services/cromwell"
)

type workflowView struct {
	ID            string            `json:"id"`
	Name          string            `json:"name,omitempty"`
	Status        string            `json:"status"`
	Submission    string            `json:"submission,omitempty"`
	BundleUUID    string            `json:"bundle_uuid,omitempty"`
	BundleVersion string            `json:"bundle_version,omitempty"`
	Labels        map[string]string `json:"labels,omitempty"`
}

func newWorkflowsCommand(ctx *commandContext) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "workflows",
		Short: "List workflows the dispatcher would release",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, client, err := ctx.engineClient()
			if err != nil {
				return err
			}
			filter := daemon.DiscoveryFilter(cfg)
			records, err := client.Query(cmd.Context(), filter)
			if err != nil {
				return fmt.Errorf("query engine: %w", err)
			}
			cromwell.OldestFirst(records)

			views := make([]workflowView, 0, len(records))
			for _, record := range records {
				views = append(views, toWorkflowView(record))
			}
			if asJSON {
				return writeJSON(cmd, views)
			}

			out := cmd.OutOrStdout()
			if len(views) == 0 {
				fmt.Fprintf(out, "No workflows with status %q\n", filter.Status)
				return nil
			}
			fmt.Fprintln(out, renderWorkflowTable(views))
			fmt.Fprintf(out, "%d workflow(s) with status %q\n", len(views), filter.Status)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Output JSON instead of a table")
	return cmd
}

func toWorkflowView(record cromwell.WorkflowRecord) workflowView {
	view := workflowView{
		ID:            record.ID,
		Name:          record.Name,
		Status:        string(record.Status),
		BundleUUID:    record.BundleUUID(),
		BundleVersion: record.BundleVersion(),
		Labels:        record.Labels,
	}
	if !record.Submission.IsZero() {
		view.Submission = record.Submission.UTC().Format(time.RFC3339)
	}
	return view
}

func renderWorkflowTable(views []workflowView) string {
	columns := []column{
		{header: "ID"},
		{header: "Name", maxWidth: 32},
		{header: "Status"},
		{header: "Submitted", align: text.AlignRight},
		{header: "Bundle", maxWidth: 40},
	}
	rows := make([][]string, 0, len(views))
	for _, v := range views {
		bundle := v.BundleUUID
		if bundle != "" && v.BundleVersion != "" {
			bundle += "@" + v.BundleVersion
		}
		rows = append(rows, []string{v.ID, v.Name, v.Status, v.Submission, bundle})
	}
	return renderTable(columns, rows)
}

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
