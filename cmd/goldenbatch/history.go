package main

import (
	"context"
	"fmt"

	"goldenbatch/internal/models"
	"goldenbatch/internal/service"
)

// loadHistory reads batch history from file when given, otherwise from the
// configured history source.
func loadHistory(ctx context.Context, file string) ([]models.HistoricalBatch, error) {
	dsc := cfg.History.DataSource()
	if file != "" {
		dsc = service.DataSourceConfig{Type: service.SourceCSV, Path: file}
	}
	src, err := service.OpenHistorySource(dsc)
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	defer src.Close()

	history, err := src.LoadHistory(ctx)
	if err != nil {
		return nil, fmt.Errorf("load history: %w", err)
	}
	logger.Info("history loaded", "source", dsc.Type, "rows", len(history))
	return history, nil
}
