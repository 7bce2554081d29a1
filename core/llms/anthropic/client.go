// Package anthropic implements [llms.Generator] on top of the Anthropic
// Messages API.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/koscakluka/ema-assistant/core/llms"
	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const scopeName = "github.com/koscakluka/ema-assistant/core/llms/anthropic"

var (
	tracer = otel.Tracer(scopeName)
	logger = otelslog.NewLogger(scopeName)
)

const (
	DefaultModel     = "claude-3-5-haiku-20241022"
	defaultMaxTokens = 1024
)

type Config struct {
	APIKey  string
	BaseURL string
	Model   string
	// MaxRetries sets the SDK retry count, a negative value keeps the SDK default.
	MaxRetries int
}

type Client struct {
	client *anthropic.Client
	model  string
}

func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, errors.New("anthropic api key is required")
	}

	opts := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.MaxRetries >= 0 {
		opts = append(opts, option.WithMaxRetries(cfg.MaxRetries))
	}

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}

	return &Client{client: anthropic.NewClient(opts...), model: model}, nil
}

func (c *Client) Generate(ctx context.Context, prompt string, opts ...llms.GenerateOption) (string, error) {
	ctx, span := tracer.Start(ctx, "prompt llm")
	defer span.End()

	options := llms.ApplyOptions(llms.GenerateOptions{Model: c.model, MaxTokens: defaultMaxTokens}, opts...)
	span.SetAttributes(attribute.String("request.model", options.Model))

	params := anthropic.MessageNewParams{
		Model:     anthropic.F(anthropic.Model(options.Model)),
		MaxTokens: anthropic.F(int64(options.MaxTokens)),
		Messages: anthropic.F([]anthropic.MessageParam{{
			Role: anthropic.F(anthropic.MessageParamRoleUser),
			Content: anthropic.F([]anthropic.ContentBlockParamUnion{
				anthropic.TextBlockParam{
					Type: anthropic.F(anthropic.TextBlockParamTypeText),
					Text: anthropic.F(prompt),
				},
			}),
		}}),
	}
	if options.Instructions != "" {
		params.System = anthropic.F([]anthropic.TextBlockParam{
			anthropic.NewTextBlock(options.Instructions),
		})
	}
	if options.Temperature != nil {
		params.Temperature = anthropic.F(float64(*options.Temperature))
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		err = fmt.Errorf("anthropic completion failed: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	text := messageText(resp)
	if text == "" {
		span.RecordError(llms.ErrEmptyResponse)
		span.SetStatus(codes.Error, llms.ErrEmptyResponse.Error())
		return "", llms.ErrEmptyResponse
	}

	span.SetAttributes(
		attribute.Int("response.prompt_tokens", int(resp.Usage.InputTokens)),
		attribute.Int("response.completion_tokens", int(resp.Usage.OutputTokens)),
	)
	logger.DebugContext(ctx, "completion received", "model", options.Model, "stop_reason", string(resp.StopReason))
	return text, nil
}

func messageText(resp *anthropic.Message) string {
	if resp == nil {
		return ""
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == anthropic.ContentBlockTypeText {
			text.WriteString(block.Text)
		}
	}
	return strings.TrimSpace(text.String())
}
