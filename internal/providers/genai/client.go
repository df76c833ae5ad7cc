// internal/providers/genai/client.go
package genai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	commonhttp "creator-match/internal/common/http"
	"creator-match/internal/common/metrics"
	"creator-match/internal/engine/style"
	"creator-match/internal/providers/prompt"
)

var ErrGenAIUnavailable = errors.New("genai gateway unavailable")

type Config struct {
	BaseURL     string
	APIKey      string
	Timeout     time.Duration
	MaxTokens   int
	Temperature float64
}

// Classifier asks the GenAI gateway to classify creator content.
type Classifier struct {
	config   Config
	client   *commonhttp.Client
	taxonomy *style.Taxonomy
}

func NewClassifier(config Config, tax *style.Taxonomy, opts ...commonhttp.Option) *Classifier {
	if config.Timeout <= 0 {
		config.Timeout = 5 * time.Second
	}
	if config.MaxTokens <= 0 {
		config.MaxTokens = 300
	}
	if config.APIKey != "" {
		opts = append(opts, commonhttp.WithHeader("Authorization", "Bearer "+config.APIKey))
	}
	config.BaseURL = strings.TrimRight(config.BaseURL, "/")
	return &Classifier{
		config:   config,
		client:   commonhttp.NewClient(config.Timeout, opts...),
		taxonomy: tax,
	}
}

type generateRequest struct {
	Prompt      string                 `json:"prompt"`
	Context     map[string]interface{} `json:"context,omitempty"`
	MaxTokens   int                    `json:"max_tokens"`
	Temperature float64                `json:"temperature"`
}

type generateResponse struct {
	Text       string  `json:"text"`
	Confidence float64 `json:"confidence"`
}

func (c *Classifier) Classify(ctx context.Context, text string) (style.Classification, error) {
	start := time.Now()
	req := generateRequest{
		Prompt:      prompt.Build(c.taxonomy, text),
		Context:     map[string]interface{}{"system": prompt.SystemMessage, "task": "creator-style"},
		MaxTokens:   c.config.MaxTokens,
		Temperature: c.config.Temperature,
	}
	var resp generateResponse
	err := c.client.PostJSON(ctx, c.config.BaseURL+"/api/ai/generate", req, &resp)
	metrics.ProviderCallDuration.WithLabelValues("genai", "classify").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ProviderCalls.WithLabelValues("genai", "classify", "error").Inc()
		if ctx.Err() != nil {
			return style.Classification{}, ctx.Err()
		}
		return style.Classification{}, fmt.Errorf("%w: %v", ErrGenAIUnavailable, err)
	}

	cls, err := prompt.Parse(resp.Text)
	if err != nil {
		metrics.ProviderCalls.WithLabelValues("genai", "classify", "invalid").Inc()
		return style.Classification{}, err
	}
	metrics.ProviderCalls.WithLabelValues("genai", "classify", "ok").Inc()
	return cls, nil
}
