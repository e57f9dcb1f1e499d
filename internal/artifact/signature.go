// Package artifact persists and loads the golden signature and trained
// models that cross from training to inference.
package artifact

import (
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"goldenbatch/internal/models"
)

const (
	metaPrefix    = "#"
	metaVersion   = "version"
	metaCreated   = "created_at"
	colParameter  = "parameter"
	colMean       = "mean"
	colStd        = "std"
	wideStdSuffix = "_std"
)

// WriteSignature writes the long table `parameter,mean,std`, preceded by a
// comment line carrying the version. Floats use the shortest exact
// representation so a reload is lossless.
func WriteSignature(w io.Writer, sig models.GoldenSignature) error {
	if _, err := fmt.Fprintf(w, "%s %s=%s %s=%s\n", metaPrefix,
		metaVersion, sig.Version, metaCreated, sig.CreatedAt.UTC().Format(time.RFC3339Nano)); err != nil {
		return err
	}

	cw := csv.NewWriter(w)
	if err := cw.Write([]string{colParameter, colMean, colStd}); err != nil {
		return err
	}
	for _, p := range models.Parameters {
		st, ok := sig.Stats[p]
		if !ok {
			continue
		}
		row := []string{string(p), formatFloat(st.Mean), formatFloat(st.Std)}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// ReadSignature parses either the long layout written by WriteSignature
// (also with an unnamed index column) or a wide single-row layout with
// `<param>` and `<param>_std` columns. Headers and parameter names are
// case-insensitive. The result is validated for all five parameters.
func ReadSignature(r io.Reader) (models.GoldenSignature, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return models.GoldenSignature{}, fmt.Errorf("%w: %v", models.ErrArtifactLoad, err)
	}

	meta, body := splitMeta(raw)
	records, err := csv.NewReader(bytes.NewReader(body)).ReadAll()
	if err != nil {
		return models.GoldenSignature{}, fmt.Errorf("%w: %v", models.ErrArtifactLoad, err)
	}
	if len(records) < 2 {
		return models.GoldenSignature{}, fmt.Errorf("%w: signature table has no rows", models.ErrArtifactLoad)
	}

	headers := make([]string, len(records[0]))
	for i, h := range records[0] {
		headers[i] = strings.ToLower(strings.TrimSpace(h))
	}

	var stats map[models.Parameter]models.ParamStats
	if indexOf(headers, colMean) >= 0 && indexOf(headers, colStd) >= 0 {
		stats, err = parseLong(headers, records[1:])
	} else {
		stats, err = parseWide(headers, records[1])
	}
	if err != nil {
		return models.GoldenSignature{}, fmt.Errorf("%w: %v", models.ErrArtifactLoad, err)
	}

	version := meta[metaVersion]
	if version == "" {
		sum := sha256.Sum256(raw)
		version = hex.EncodeToString(sum[:8])
	}
	var created time.Time
	if ts := meta[metaCreated]; ts != "" {
		if created, err = time.Parse(time.RFC3339Nano, ts); err != nil {
			return models.GoldenSignature{}, fmt.Errorf("%w: %s: %v", models.ErrArtifactLoad, metaCreated, err)
		}
	}

	sig := models.NewGoldenSignature(version, created, stats)
	if err := sig.Validate(); err != nil {
		return models.GoldenSignature{}, fmt.Errorf("%w: %w", models.ErrArtifactLoad, err)
	}
	return sig, nil
}

func parseLong(headers []string, rows [][]string) (map[models.Parameter]models.ParamStats, error) {
	meanIdx, stdIdx := indexOf(headers, colMean), indexOf(headers, colStd)
	paramIdx := indexOf(headers, colParameter)
	if paramIdx < 0 {
		// pandas writes the index as an unnamed first column
		paramIdx = 0
	}

	stats := make(map[models.Parameter]models.ParamStats)
	for i, row := range rows {
		if len(row) != len(headers) {
			return nil, fmt.Errorf("row %d has %d fields, want %d", i+2, len(row), len(headers))
		}
		p, ok := models.ParseParameter(row[paramIdx])
		if !ok {
			continue
		}
		mean, err := strconv.ParseFloat(strings.TrimSpace(row[meanIdx]), 64)
		if err != nil {
			return nil, fmt.Errorf("%s mean: %v", p, err)
		}
		std, err := strconv.ParseFloat(strings.TrimSpace(row[stdIdx]), 64)
		if err != nil {
			return nil, fmt.Errorf("%s std: %v", p, err)
		}
		stats[p] = models.ParamStats{Mean: mean, Std: std}
	}
	return stats, nil
}

func parseWide(headers []string, row []string) (map[models.Parameter]models.ParamStats, error) {
	if len(row) != len(headers) {
		return nil, fmt.Errorf("row has %d fields, want %d", len(row), len(headers))
	}
	stats := make(map[models.Parameter]models.ParamStats)
	for _, p := range models.Parameters {
		mi := indexOf(headers, string(p))
		si := indexOf(headers, string(p)+wideStdSuffix)
		if mi < 0 || si < 0 {
			continue
		}
		mean, err := strconv.ParseFloat(strings.TrimSpace(row[mi]), 64)
		if err != nil {
			return nil, fmt.Errorf("%s mean: %v", p, err)
		}
		std, err := strconv.ParseFloat(strings.TrimSpace(row[si]), 64)
		if err != nil {
			return nil, fmt.Errorf("%s std: %v", p, err)
		}
		stats[p] = models.ParamStats{Mean: mean, Std: std}
	}
	return stats, nil
}

// splitMeta strips leading comment lines and returns their key=value pairs.
func splitMeta(raw []byte) (map[string]string, []byte) {
	meta := make(map[string]string)
	for bytes.HasPrefix(raw, []byte(metaPrefix)) {
		line := raw
		rest := []byte(nil)
		if i := bytes.IndexByte(raw, '\n'); i >= 0 {
			line, rest = raw[:i], raw[i+1:]
		}
		for _, field := range strings.Fields(strings.TrimPrefix(string(line), metaPrefix)) {
			if k, v, ok := strings.Cut(field, "="); ok {
				meta[k] = v
			}
		}
		raw = rest
	}
	return meta, raw
}

func indexOf(headers []string, name string) int {
	for i, h := range headers {
		if h == name {
			return i
		}
	}
	return -1
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}
