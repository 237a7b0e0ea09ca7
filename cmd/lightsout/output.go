package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/yairfalse/lightsout/storage"
	"github.com/yairfalse/lightsout/types"
)

// Output formats
const (
	outputTable = "table"
	outputJSON  = "json"
)

func validateOutput(format string) error {
	switch format {
	case outputTable, outputJSON:
		return nil
	default:
		return fmt.Errorf("invalid output format %q (valid: table, json)", format)
	}
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printResult(w io.Writer, result *types.OrchestrationResult, format string) error {
	if format == outputJSON {
		return writeJSON(w, result)
	}

	_, _ = fmt.Fprintf(w, "Run %s: %s %d resources, %d succeeded, %d failed (%s)\n\n",
		result.RunID, result.Action, result.Total, result.Succeeded, result.Failed,
		result.Duration.Round(time.Millisecond))
	if result.Total == 0 {
		_, _ = fmt.Fprintln(w, "No managed resources found")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "TYPE\tID\tREGION\tRESULT\tMESSAGE")
	for _, r := range result.Results {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			r.ResourceType, r.ResourceID, dash(r.Region), resultLabel(r), r.Message)
	}
	return tw.Flush()
}

func resultLabel(r types.HandlerResult) string {
	switch {
	case !r.Success && r.Error != "":
		return "FAILED " + r.Error
	case !r.Success:
		return "FAILED"
	case r.DryRun:
		return "dry-run"
	case r.Idempotent:
		return "unchanged"
	default:
		return "ok"
	}
}

func printResources(w io.Writer, resources []types.DiscoveredResource, format string) error {
	if format == outputJSON {
		if resources == nil {
			resources = []types.DiscoveredResource{}
		}
		return writeJSON(w, resources)
	}

	if len(resources) == 0 {
		_, _ = fmt.Fprintln(w, "No managed resources found")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "TYPE\tID\tPRIORITY\tGROUP\tREGION")
	for _, r := range resources {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
			r.ResourceType, r.ResourceID, r.Priority, r.Group, dash(r.Region))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, _ = fmt.Fprintf(w, "\n%d resources\n", len(resources))
	return nil
}

func printRuns(w io.Writer, runs []storage.RunRecord, format string) error {
	if format == outputJSON {
		if runs == nil {
			runs = []storage.RunRecord{}
		}
		return writeJSON(w, runs)
	}

	if len(runs) == 0 {
		_, _ = fmt.Fprintln(w, "No runs recorded")
		return nil
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "REV\tRUN ID\tSTARTED\tACTION\tGROUP\tTOTAL\tFAILED\tDRY RUN")
	for _, rec := range runs {
		_, _ = fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%d\t%d\t%t\n",
			rec.Revision, rec.Result.RunID, rec.Result.StartedAt.UTC().Format(time.RFC3339),
			rec.Result.Action, dash(rec.Group), rec.Result.Total, rec.Result.Failed, rec.DryRun)
	}
	return tw.Flush()
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
