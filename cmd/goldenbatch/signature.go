package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"goldenbatch/internal/analysis"
	"goldenbatch/internal/artifact"
	"goldenbatch/internal/models"
	"goldenbatch/internal/service"
)

var signatureCmd = &cobra.Command{
	Use:   "signature",
	Short: "Derive the golden signature from batch history",
	RunE: func(cmd *cobra.Command, args []string) error {
		historyFile, _ := cmd.Flags().GetString("history")
		dryRun, _ := cmd.Flags().GetBool("dry-run")

		history, err := loadHistory(cmd.Context(), historyFile)
		if err != nil {
			return err
		}

		d, err := cfg.Training.SignatureBuilder(logger).Derive(history, cfg.Training.Clusters)
		if err != nil {
			return fmt.Errorf("derive signature: %w", err)
		}

		out := cmd.OutOrStdout()
		if summary, _ := cmd.Flags().GetBool("summary"); summary {
			if err := printHistorySummary(out, history); err != nil {
				return err
			}
		}
		printDerivation(out, len(history), d)
		printSignature(out, d.Signature)

		if dryRun {
			return nil
		}
		path := cfg.Artifacts.Paths().SignaturePath()
		if err := artifact.SaveSignature(path, d.Signature); err != nil {
			return fmt.Errorf("save signature: %w", err)
		}
		fmt.Fprintf(out, "\nsaved %s\n", path)
		return nil
	},
}

func init() {
	signatureCmd.Flags().String("history", "", "Batch history CSV (default: configured history source)")
	signatureCmd.Flags().Int("clusters", 0, "Number of k-means clusters (overrides training.clusters)")
	signatureCmd.Flags().Uint64("seed", 0, "Random seed (overrides training.seed)")
	signatureCmd.Flags().Bool("dry-run", false, "Print the signature without saving it")
	signatureCmd.Flags().Bool("summary", false, "Print per-parameter statistics of the whole history first")
}

func printHistorySummary(w io.Writer, history []models.HistoricalBatch) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PARAMETER\tMIN\tMEDIAN\tMAX\tMEAN\tSTD")
	values := make([]float64, len(history))
	for _, p := range models.Parameters {
		for i, hb := range history {
			values[i] = hb.Value(p)
		}
		st, err := analysis.CalculateStats(values)
		if err != nil {
			return fmt.Errorf("summarize %s: %w", p, err)
		}
		fmt.Fprintf(tw, "%s\t%.2f\t%.2f\t%.2f\t%.2f\t%.2f\n", p, st.Min, st.Median, st.Max, st.Mean, st.Std)
	}
	tw.Flush()
	fmt.Fprintln(w)
	return nil
}

func printDerivation(w io.Writer, historyRows int, d service.Derivation) {
	fmt.Fprintf(w, "history rows:      %d\n", historyRows)
	fmt.Fprintf(w, "golden candidates: %d\n", len(d.Candidates))
	fmt.Fprintln(w, "cluster distribution:")
	for id, n := range d.ClusterSizes {
		marker := ""
		if id == d.GoldenCluster {
			marker = "  <- golden"
		}
		fmt.Fprintf(w, "  cluster %d: %d%s\n", id, n, marker)
	}
	fmt.Fprintln(w)
}

func printSignature(w io.Writer, sig models.GoldenSignature) {
	fmt.Fprintf(w, "golden signature %s\n", sig.Version)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PARAMETER\tMEAN\tSTD")
	for _, row := range models.NewSignatureResponse(sig).Rows {
		fmt.Fprintf(tw, "%s\t%.4f\t%.4f\n", row.Parameter, row.Mean, row.Std)
	}
	tw.Flush()
}
