package analysis

import (
	"encoding/csv"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"goldenbatch/internal/models"
)

const (
	columnBatchID  = "batch_id"
	columnQuality  = "quality_score"
	columnSeverity = "severity_score"
)

// CSVService turns tabular history into HistoricalBatch rows.
type CSVService struct{}

func NewCSVService() *CSVService {
	return &CSVService{}
}

// LoadHistoryFile reads a CSV history file from disk.
func (s *CSVService) LoadHistoryFile(filePath string) ([]models.HistoricalBatch, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return s.LoadHistory(file)
}

// LoadHistory reads CSV with a header row. Column names are matched
// case-insensitively, so "Temperature" and "pH" are accepted.
func (s *CSVService) LoadHistory(r io.Reader) ([]models.HistoricalBatch, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	headers, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("%w: empty input", models.ErrTrainingData)
	}
	if err != nil {
		return nil, err
	}

	var data []map[string]interface{}
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		rowMap := make(map[string]interface{}, len(headers))
		for i, val := range record {
			if i < len(headers) {
				rowMap[headers[i]] = val
			}
		}
		data = append(data, rowMap)
	}

	return s.HistoryFromRecords(data, headers)
}

// HistoryFromRecords maps generic rows (from CSV or a database) onto
// HistoricalBatch. All five parameters are required; batch_id,
// quality_score and severity_score are optional.
func (s *CSVService) HistoryFromRecords(data []map[string]interface{}, columns []string) ([]models.HistoricalBatch, error) {
	paramCols := make(map[models.Parameter]string)
	var idCol, qualityCol, severityCol string

	for _, col := range columns {
		if p, ok := models.ParseParameter(col); ok {
			paramCols[p] = col
			continue
		}
		switch normalizeColumn(col) {
		case columnBatchID, "id":
			if idCol == "" {
				idCol = col
			}
		case columnQuality:
			qualityCol = col
		case columnSeverity:
			severityCol = col
		}
	}

	for _, p := range models.Parameters {
		if _, ok := paramCols[p]; !ok {
			return nil, fmt.Errorf("%w: missing column %q", models.ErrTrainingData, p)
		}
	}

	history := make([]models.HistoricalBatch, 0, len(data))
	for i, row := range data {
		var hb models.HistoricalBatch
		if idCol != "" {
			hb.BatchID = stringValue(row[idCol])
		}
		if hb.BatchID == "" {
			hb.BatchID = strconv.Itoa(i + 1)
		}

		for _, p := range models.Parameters {
			v, err := floatValue(row[paramCols[p]])
			if err != nil {
				return nil, fmt.Errorf("%w: row %d column %q: %v", models.ErrTrainingData, i+1, p, err)
			}
			hb.BatchRecord = hb.BatchRecord.WithValue(p, v)
		}

		if qualityCol != "" {
			if v, err := floatValue(row[qualityCol]); err == nil {
				hb.QualityScore = v
			}
		}
		if severityCol != "" {
			v, err := floatValue(row[severityCol])
			if err != nil {
				return nil, fmt.Errorf("%w: row %d column %q: %v", models.ErrTrainingData, i+1, columnSeverity, err)
			}
			hb.SeverityScore = &v
		}

		history = append(history, hb)
	}

	return history, nil
}

// ParseCandidate builds a BatchRecord from named fields. Names are matched
// case-insensitively and every parameter must be present.
func ParseCandidate(fields map[string]float64) (models.BatchRecord, error) {
	var rec models.BatchRecord
	seen := make(map[models.Parameter]bool, len(models.Parameters))
	for name, v := range fields {
		p, ok := models.ParseParameter(name)
		if !ok {
			continue
		}
		rec = rec.WithValue(p, v)
		seen[p] = true
	}
	for _, p := range models.Parameters {
		if !seen[p] {
			return models.BatchRecord{}, fmt.Errorf("missing field %q", p)
		}
	}
	if err := rec.Validate(); err != nil {
		return models.BatchRecord{}, err
	}
	return rec, nil
}

func normalizeColumn(col string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(col)), " ", "_")
}

func stringValue(v interface{}) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case []byte:
		return strings.TrimSpace(string(t))
	default:
		return fmt.Sprint(t)
	}
}

// floatValue coerces a cell to a finite float.
func floatValue(v interface{}) (float64, error) {
	f, err := anyFloat(v)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("non-finite value %v", f)
	}
	return f, nil
}

func anyFloat(v interface{}) (float64, error) {
	switch t := v.(type) {
	case nil:
		return 0, fmt.Errorf("empty value")
	case float64:
		return t, nil
	case float32:
		return float64(t), nil
	case int:
		return float64(t), nil
	case int32:
		return float64(t), nil
	case int64:
		return float64(t), nil
	case []byte:
		return parseFloat(string(t))
	case string:
		return parseFloat(t)
	default:
		return 0, fmt.Errorf("unsupported type %T", v)
	}
}

func parseFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("empty value")
	}
	return strconv.ParseFloat(s, 64)
}
