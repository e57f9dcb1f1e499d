package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"goldenbatch/internal/artifact"
	"goldenbatch/internal/llm"
	"goldenbatch/internal/models"
	"goldenbatch/internal/service"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Score one candidate batch against the saved artifacts",
	RunE: func(cmd *cobra.Command, args []string) error {
		flags := cmd.Flags()
		batch := models.BatchRecord{}
		batch.BatchID, _ = flags.GetString("batch-id")
		for _, p := range models.Parameters {
			v, err := flags.GetFloat64(flagName(p))
			if err != nil {
				return err
			}
			batch = batch.WithValue(p, v)
		}

		bundle, err := artifact.LoadBundle(cfg.Artifacts.Paths())
		if err != nil {
			return err
		}

		result, err := service.NewAnalyzer(cfg.Analysis.DeviationEngine()).Analyze(batch, bundle)
		if err != nil {
			return fmt.Errorf("analyze batch: %w", err)
		}

		if narrate, _ := flags.GetBool("narrate"); narrate {
			text, err := llm.NewService(cfg.LLM.LLM()).Narrate(cmd.Context(), result)
			if err != nil {
				logger.Warn("narrative unavailable", "error", err)
			} else {
				result.Narrative = text
			}
		}

		out := cmd.OutOrStdout()
		if asJSON, _ := flags.GetBool("json"); asJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(result)
		}
		printResult(out, result)
		return nil
	},
}

func init() {
	for _, p := range models.Parameters {
		analyzeCmd.Flags().Float64(flagName(p), 0, fmt.Sprintf("Measured %s", p))
		_ = analyzeCmd.MarkFlagRequired(flagName(p))
	}
	analyzeCmd.Flags().String("batch-id", "", "Batch identifier")
	analyzeCmd.Flags().Bool("json", false, "Print the analysis as JSON")
	analyzeCmd.Flags().Bool("narrate", false, "Ask the configured LLM for a short recommendation")
}

// flagName turns mixing_speed into mixing-speed.
func flagName(p models.Parameter) string {
	b := []byte(p)
	for i := range b {
		if b[i] == '_' {
			b[i] = '-'
		}
	}
	return string(b)
}

func printResult(w io.Writer, r models.AnalysisResult) {
	fmt.Fprintf(w, "quality:  %s\n", r.QualityLabel)
	fmt.Fprintf(w, "risk:     %s\n", r.RiskLabel)
	fmt.Fprintf(w, "health:   %.1f (%s)\n\n", r.HealthScore, r.HealthTier)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "PARAMETER\tVALUE\tZ-SCORE")
	for _, p := range models.Parameters {
		z, ok := r.Deviations[p]
		if !ok {
			continue
		}
		fmt.Fprintf(tw, "%s\t%.2f\t%+.2f\n", p, r.Batch.Value(p), z)
	}
	tw.Flush()

	if len(r.OutOfRange) == 0 {
		fmt.Fprintln(w, "\nall parameters within range")
	} else {
		fmt.Fprintf(w, "\nout of range: %v\n", r.OutOfRange)
		fmt.Fprintln(w, "recommendations:")
		for _, s := range r.Suggestions {
			fmt.Fprintf(w, "  - %s\n", s)
		}
	}
	if r.Narrative != "" {
		fmt.Fprintf(w, "\n%s\n", r.Narrative)
	}
}
