// Package llm turns a finished batch analysis into a short operator-facing
// recommendation using a local Ollama model.
package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"goldenbatch/internal/models"
)

const (
	DefaultBaseURL = "http://localhost:11434"
	DefaultModel   = "qwen3-vl:2b"
	DefaultTimeout = 30 * time.Second
)

type Config struct {
	BaseURL string
	Model   string
	Timeout time.Duration
}

type Service struct {
	config Config
	client *http.Client
}

func NewService(cfg Config) *Service {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &Service{
		config: cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type GenerateRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream"`
}

type GenerateResponse struct {
	Response string `json:"response"`
}

// CallOllama sends a non-streaming generate request.
func (s *Service) CallOllama(ctx context.Context, prompt string) (string, error) {
	reqBody := GenerateRequest{
		Model:  s.config.Model,
		Prompt: prompt,
		Stream: false,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.BaseURL+"/api/generate", bytes.NewReader(jsonData))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("ollama API returned status: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var genResp GenerateResponse
	if err := json.Unmarshal(body, &genResp); err != nil {
		return "", err
	}

	return genResp.Response, nil
}

// Reasoning models wrap their chain of thought in <think> tags.
var thinkBlock = regexp.MustCompile(`(?s)<think>.*?</think>`)

// Narrate asks the model for a brief recommendation based on result.
func (s *Service) Narrate(ctx context.Context, result models.AnalysisResult) (string, error) {
	response, err := s.CallOllama(ctx, Prompt(result))
	if err != nil {
		return "", err
	}
	text := strings.TrimSpace(thinkBlock.ReplaceAllString(response, ""))
	if text == "" {
		return "", fmt.Errorf("empty response from model")
	}
	return text, nil
}

// Prompt renders the analysis facts the model is allowed to use.
func Prompt(result models.AnalysisResult) string {
	var b strings.Builder
	b.WriteString("You are a process engineer reviewing one manufacturing batch against its golden signature.\n\n")
	fmt.Fprintf(&b, "Quality: %s\nRisk: %s\nHealth score: %.1f (%s)\n\n", result.QualityLabel, result.RiskLabel, result.HealthScore, result.HealthTier)

	b.WriteString("Z-scores against the golden signature:\n")
	for _, p := range models.Parameters {
		z, ok := result.Deviations[p]
		if !ok {
			continue
		}
		fmt.Fprintf(&b, "- %s: value %.2f, z=%.2f\n", p, result.Batch.Value(p), z)
	}

	if len(result.Suggestions) == 0 {
		b.WriteString("\nNo parameter is outside the accepted range.\n")
	} else {
		b.WriteString("\nSuggested corrections:\n")
		for _, s := range result.Suggestions {
			fmt.Fprintf(&b, "- %s\n", s)
		}
	}

	b.WriteString("\nIn at most three sentences, tell the operator what to adjust and why. Do not invent values not listed above.\n")
	return b.String()
}
