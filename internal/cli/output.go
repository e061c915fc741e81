package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/xavierca1/crm-dwh-sync/internal/usecase"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printSummary(w io.Writer, format string, summary usecase.RunSummary) error {
	if format == "json" {
		return writeJSON(w, summary)
	}

	fmt.Fprintf(w, "run %s (%s)\n", summary.RunID, summary.FinishedAt.Sub(summary.StartedAt).Round(time.Millisecond))
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ENTITY\tSTATUS\tSTEP\tEXTRACTED\tUNIQUE\tLOADED\tERROR")
	for _, p := range summary.Phases {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
			p.Entity, p.Status, p.Step, p.Extracted, p.Unique, p.Loaded, p.Error)
	}
	return tw.Flush()
}

func printConversion(w io.Writer, format string, r *usecase.ConversionReport) error {
	if format == "json" {
		return writeJSON(w, r)
	}
	fmt.Fprintf(w, "total leads:      %d\n", r.TotalLeads)
	fmt.Fprintf(w, "total customers:  %d\n", r.TotalCustomers)
	fmt.Fprintf(w, "conversion rate:  %.2f%%\n", r.ConversionRatePercentage)
	return nil
}

func printDealPerformance(w io.Writer, format string, r *usecase.DealPerformanceReport) error {
	if format == "json" {
		return writeJSON(w, r)
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "STAGE\tCOUNT\tTOTAL")
	for _, s := range r.StageSummary {
		fmt.Fprintf(tw, "%s\t%d\t%s\n", s.Stage, s.Count, s.TotalAmount)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "high value (>= %.2f): %s\n",
		r.HighValueAnalysis.ThresholdUSD, r.HighValueAnalysis.TotalAmountHighValueDeals)
	return nil
}
