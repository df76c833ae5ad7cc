// internal/providers/chatllm/classifier.go
package chatllm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"creator-match/internal/common/metrics"
	"creator-match/internal/engine/style"
	"creator-match/internal/providers/prompt"
)

// Generator is the part of an eino chat model the classifier uses.
type Generator interface {
	Generate(ctx context.Context, input []*schema.Message, opts ...model.Option) (*schema.Message, error)
}

type Config struct {
	BaseURL string
	APIKey  string
	Model   string
	Timeout time.Duration
}

// Classifier classifies creator content with an OpenAI-compatible chat model.
type Classifier struct {
	model    Generator
	taxonomy *style.Taxonomy
}

func New(ctx context.Context, config Config, tax *style.Taxonomy) (*Classifier, error) {
	if config.Model == "" {
		return nil, fmt.Errorf("chat model name is required")
	}
	cfg := &openai.ChatModelConfig{
		BaseURL: config.BaseURL,
		APIKey:  config.APIKey,
		Model:   config.Model,
	}
	if config.Timeout > 0 {
		cfg.Timeout = config.Timeout
	}
	cm, err := openai.NewChatModel(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("init chat model: %w", err)
	}
	return NewWithModel(cm, tax), nil
}

func NewWithModel(m Generator, tax *style.Taxonomy) *Classifier {
	return &Classifier{model: m, taxonomy: tax}
}

func (c *Classifier) Classify(ctx context.Context, text string) (style.Classification, error) {
	messages := []*schema.Message{
		{Role: schema.System, Content: prompt.SystemMessage},
		{Role: schema.User, Content: prompt.Build(c.taxonomy, text)},
	}

	start := time.Now()
	resp, err := c.model.Generate(ctx, messages)
	metrics.ProviderCallDuration.WithLabelValues("chat", "classify").Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.ProviderCalls.WithLabelValues("chat", "classify", "error").Inc()
		if ctx.Err() != nil {
			return style.Classification{}, ctx.Err()
		}
		return style.Classification{}, fmt.Errorf("chat model: %w", err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		metrics.ProviderCalls.WithLabelValues("chat", "classify", "invalid").Inc()
		return style.Classification{}, style.ErrNoClassification
	}

	cls, err := prompt.Parse(resp.Content)
	if err != nil {
		metrics.ProviderCalls.WithLabelValues("chat", "classify", "invalid").Inc()
		return style.Classification{}, err
	}
	metrics.ProviderCalls.WithLabelValues("chat", "classify", "ok").Inc()
	return cls, nil
}
