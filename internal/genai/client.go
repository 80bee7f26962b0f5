// Package genai drafts course descriptions and patient case summaries through the
// Gemini text generation API. Every call degrades to a fixed fallback text.
package genai

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"go.uber.org/zap"
)

const (
	DescriptionEmpty   = "No description available."
	DescriptionFailed  = "Automatic description generation failed."
	SummaryEmpty       = "No summary available."
	SummaryFailed      = "Case summary could not be generated."
	defaultBaseURL     = "https://generativelanguage.googleapis.com"
	defaultModel       = "gemini-3-flash-preview"
	defaultCallTimeout = 20 * time.Second
)

var errDisabled = errors.New("generative text disabled: no api key")

type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	Timeout time.Duration
}

// ConfigFromEnv reads GEMINI_API_KEY, GEMINI_MODEL, GEMINI_BASE_URL and GEMINI_TIMEOUT.
func ConfigFromEnv() Config {
	cfg := Config{
		APIKey:  os.Getenv("GEMINI_API_KEY"),
		Model:   os.Getenv("GEMINI_MODEL"),
		BaseURL: os.Getenv("GEMINI_BASE_URL"),
		Timeout: defaultCallTimeout,
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if v := os.Getenv("GEMINI_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			cfg.Timeout = d
		}
	}
	return cfg
}

// Client talks to the generateContent endpoint.
type Client struct {
	http   *resty.Client
	cfg    Config
	logger *zap.SugaredLogger
}

func NewClient(cfg Config, logger *zap.SugaredLogger) *Client {
	if logger == nil {
		logger = zap.NewNop().Sugar()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultCallTimeout
	}
	if cfg.Model == "" {
		cfg.Model = defaultModel
	}
	httpClient := resty.New().
		SetBaseURL(strings.TrimRight(cfg.BaseURL, "/")).
		SetTimeout(cfg.Timeout).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")
	if cfg.APIKey != "" {
		httpClient.SetHeader("x-goog-api-key", cfg.APIKey)
	}
	return &Client{http: httpClient, cfg: cfg, logger: logger}
}

// Enabled reports whether an API key is configured.
func (c *Client) Enabled() bool { return c.cfg.APIKey != "" }

// GenerateCourseDescription drafts a short promotional description for a course.
func (c *Client) GenerateCourseDescription(ctx context.Context, courseName string) string {
	prompt := fmt.Sprintf("Write a professional, motivating description of at most 3 sentences for a course named %q.",
		strings.TrimSpace(courseName))
	text, err := c.generate(ctx, prompt)
	if err != nil {
		c.logger.Warnw("course description generation failed", "course", courseName, "err", err)
		return DescriptionFailed
	}
	if text == "" {
		return DescriptionEmpty
	}
	return text
}

// SummarizePatientCase condenses clinical notes into the key points for the analyst.
func (c *Client) SummarizePatientCase(ctx context.Context, patientName, notes string) string {
	prompt := fmt.Sprintf("Briefly summarize the clinical case of patient %s based on these notes: %q. Focus on the key points for the analyst.",
		strings.TrimSpace(patientName), notes)
	text, err := c.generate(ctx, prompt)
	if err != nil {
		c.logger.Warnw("case summary generation failed", "err", err)
		return SummaryFailed
	}
	if text == "" {
		return SummaryEmpty
	}
	return text
}

func (c *Client) generate(ctx context.Context, prompt string) (string, error) {
	if !c.Enabled() {
		return "", errDisabled
	}
	var out generateResponse
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("model", c.cfg.Model).
		SetBody(generateRequest{Contents: []content{{Parts: []part{{Text: prompt}}}}}).
		SetResult(&out).
		Post("/v1beta/models/{model}:generateContent")
	if err != nil {
		return "", fmt.Errorf("generate content: %w", err)
	}
	if resp.IsError() {
		return "", fmt.Errorf("generate content: status %d", resp.StatusCode())
	}
	return strings.TrimSpace(out.text()), nil
}
