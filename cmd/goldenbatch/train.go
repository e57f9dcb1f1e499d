package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"goldenbatch/internal/artifact"
)

var trainCmd = &cobra.Command{
	Use:   "train",
	Short: "Derive the signature and train the quality and risk models",
	Long: "train derives the golden signature, fits the quality model on the golden candidates\n" +
		"and their cluster labels, fits the risk model on severity-scored history, and saves\n" +
		"all three artifacts to the artifact directory.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		historyFile, _ := cmd.Flags().GetString("history")
		riskFile, _ := cmd.Flags().GetString("risk-history")

		history, err := loadHistory(ctx, historyFile)
		if err != nil {
			return err
		}
		riskHistory := history
		if riskFile != "" {
			if riskHistory, err = loadHistory(ctx, riskFile); err != nil {
				return err
			}
		}

		d, err := cfg.Training.SignatureBuilder(logger).Derive(history, cfg.Training.Clusters)
		if err != nil {
			return fmt.Errorf("derive signature: %w", err)
		}

		trainer, err := cfg.Trainer(logger)
		if err != nil {
			return err
		}
		quality, err := trainer.TrainQualityModel(ctx, d.Candidates, d.Labels, d.GoldenCluster)
		if err != nil {
			return fmt.Errorf("train quality model: %w", err)
		}
		risk, err := trainer.TrainRiskModel(ctx, riskHistory)
		if err != nil {
			return fmt.Errorf("train risk model: %w", err)
		}

		paths := cfg.Artifacts.Paths()
		bundle := &artifact.Bundle{
			Signature: d.Signature,
			Quality:   quality,
			Risk:      risk,
			LoadedAt:  time.Now().UTC(),
		}
		if err := artifact.SaveBundle(paths, bundle); err != nil {
			return fmt.Errorf("save artifacts: %w", err)
		}

		out := cmd.OutOrStdout()
		printDerivation(out, len(history), d)
		printSignature(out, d.Signature)
		fmt.Fprintf(out, "\nquality model %s (%s)\nrisk model    %s (%s)\n", quality.ID, quality.Kind, risk.ID, risk.Kind)
		fmt.Fprintf(out, "saved to %s\n", paths.Dir)
		return nil
	},
}

func init() {
	trainCmd.Flags().String("history", "", "Batch history CSV (default: configured history source)")
	trainCmd.Flags().String("risk-history", "", "History with severity_score for the risk model (default: --history)")
	trainCmd.Flags().Int("clusters", 0, "Number of k-means clusters (overrides training.clusters)")
	trainCmd.Flags().String("model", "", "Model family: random_forest or nearest_centroid")
	trainCmd.Flags().Uint64("seed", 0, "Random seed (overrides training.seed)")
}
