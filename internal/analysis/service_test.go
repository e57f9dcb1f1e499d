package analysis

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"goldenbatch/internal/models"
)

func TestLoadHistoryCaseInsensitiveHeaders(t *testing.T) {
	in := `Batch_ID,Temperature,Pressure,pH,Mixing_Speed,Energy_Used,Severity_Score
B1,180.5,30,7.01,1200,480,4
B2,175,29.5,6.9,1180,520,22.5
`
	history, err := NewCSVService().LoadHistory(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, history, 2)

	first := history[0]
	assert.Equal(t, "B1", first.BatchID)
	assert.Equal(t, 180.5, first.Temperature)
	assert.Equal(t, 7.01, first.PH)
	assert.Equal(t, 1200.0, first.MixingSpeed)
	assert.Equal(t, 480.0, first.EnergyUsed)
	require.NotNil(t, first.SeverityScore)
	assert.Equal(t, 4.0, *first.SeverityScore)
	assert.Equal(t, 22.5, *history[1].SeverityScore)
}

func TestLoadHistoryDefaultsBatchID(t *testing.T) {
	in := "temperature,pressure,ph,mixing_speed,energy_used\n180,30,7,1200,500\n181,31,7.1,1210,505\n"
	history, err := NewCSVService().LoadHistory(strings.NewReader(in))
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "1", history[0].BatchID)
	assert.Equal(t, "2", history[1].BatchID)
	assert.Nil(t, history[0].SeverityScore)
}

func TestLoadHistoryErrors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"empty", "", "empty input"},
		{"missing column", "temperature,pressure,ph,mixing_speed\n180,30,7,1200\n", `missing column "energy_used"`},
		{"bad number", "temperature,pressure,ph,mixing_speed,energy_used\n180,30,seven,1200,500\n", `row 1 column "ph"`},
		{"blank value", "temperature,pressure,ph,mixing_speed,energy_used\n180,,7,1200,500\n", `column "pressure"`},
		{"nan reading", "temperature,pressure,ph,mixing_speed,energy_used\nnan,30,7,1200,500\n", `row 1 column "temperature": non-finite`},
		{"infinite reading", "temperature,pressure,ph,mixing_speed,energy_used\n180,30,7,Inf,500\n", `column "mixing_speed"`},
		{"infinite severity", "temperature,pressure,ph,mixing_speed,energy_used,severity_score\n180,30,7,1200,500,-inf\n", `column "severity_score"`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCSVService().LoadHistory(strings.NewReader(tt.in))
			require.Error(t, err)
			assert.True(t, errors.Is(err, models.ErrTrainingData), "got %v", err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadHistoryFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.csv")
	require.NoError(t, os.WriteFile(path, []byte("temperature,pressure,ph,mixing_speed,energy_used\n180,30,7,1200,500\n"), 0o644))

	history, err := NewCSVService().LoadHistoryFile(path)
	require.NoError(t, err)
	assert.Len(t, history, 1)

	_, err = NewCSVService().LoadHistoryFile(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestHistoryFromRecordsTypedValues(t *testing.T) {
	rows := []map[string]interface{}{{
		"id":           int64(42),
		"temperature":  float64(180),
		"pressure":     int32(30),
		"ph":           []byte("7.0"),
		"mixing_speed": 1200,
		"energy_used":  float32(500),
	}}
	cols := []string{"id", "temperature", "pressure", "ph", "mixing_speed", "energy_used"}
	history, err := NewCSVService().HistoryFromRecords(rows, cols)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, "42", history[0].BatchID)
	assert.Equal(t, models.BatchRecord{BatchID: "42", Temperature: 180, Pressure: 30, PH: 7, MixingSpeed: 1200, EnergyUsed: 500}, history[0].BatchRecord)
}

func TestParseCandidate(t *testing.T) {
	rec, err := ParseCandidate(map[string]float64{
		"Temperature":  190,
		"Pressure":     30,
		"pH":           7,
		"Mixing Speed": 1200,
		"energy_used":  500,
		"operator":     3,
	})
	require.NoError(t, err)
	assert.Equal(t, models.BatchRecord{Temperature: 190, Pressure: 30, PH: 7, MixingSpeed: 1200, EnergyUsed: 500}, rec)

	_, err = ParseCandidate(map[string]float64{"temperature": 190})
	assert.ErrorContains(t, err, "missing field")

	_, err = ParseCandidate(map[string]float64{
		"temperature": math.NaN(), "pressure": 30, "ph": 7, "mixing_speed": 1200, "energy_used": 500,
	})
	assert.ErrorIs(t, err, models.ErrInvalidReading)
}
