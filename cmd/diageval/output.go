package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/stellarlinkco/diag-eval/internal/aggregate"
	"github.com/stellarlinkco/diag-eval/internal/orchestrator"
)

type outputFormat string

const (
	formatTable outputFormat = "table"
	formatJSON  outputFormat = "json"
)

func parseOutputFormat(s string) (outputFormat, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "table":
		return formatTable, nil
	case "json":
		return formatJSON, nil
	default:
		return "", fmt.Errorf("invalid --output %q (expected table|json)", s)
	}
}

func renderSweep(w io.Writer, format outputFormat, res *orchestrator.SweepResult, analysis *aggregate.Analysis) error {
	if format == formatJSON {
		payload := map[string]any{"sweep": res}
		if analysis != nil {
			payload["aggregate"] = analysis
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(payload)
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tMODE\tITER\tPASS\tFAIL\tERROR\tRATE\tDURATION")
	for _, run := range res.Runs {
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\t%d\t%d\t%.0f%%\t%dms\n",
			shortID(run.RunID), run.Mode, run.Iteration,
			run.Summary.Passed, run.Summary.Failed, run.Summary.Errored,
			run.Summary.PassRate*100, run.DurationMs)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	for _, run := range res.Runs {
		for _, f := range run.Summary.Failing {
			fmt.Fprintf(w, "  %s %s [%s]: %s\n", run.Mode, f.CaseID, f.Status, f.Reason)
		}
	}
	for _, f := range res.Failed {
		fmt.Fprintf(w, "RUN FAILED %s iteration %d: %s\n", f.Mode, f.Iteration, f.Err)
	}

	if analysis != nil {
		return renderAnalysis(w, analysis)
	}
	return nil
}

func renderAnalysis(w io.Writer, analysis *aggregate.Analysis) error {
	fmt.Fprintln(w)
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "CASE\tCATEGORY\tCONSISTENCY\tPASS RATE\tRUNS")
	for _, ca := range analysis.Cases {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.0f%%\t%d\n",
			ca.CaseID, ca.Category, ca.Consistency, ca.PassRate*100, len(ca.Outcomes))
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	categories := make([]string, 0, len(analysis.Categories))
	for name := range analysis.Categories {
		categories = append(categories, name)
	}
	sort.Strings(categories)
	for _, name := range categories {
		cs := analysis.Categories[name]
		if len(cs.Problematic) == 0 {
			continue
		}
		fmt.Fprintf(w, "PROBLEMATIC %s: %s\n", name, strings.Join(cs.Problematic, ", "))
	}
	return nil
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
