// Package gemini implements [llms.Generator] on top of Google's Gemini API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/generative-ai-go/genai"
	"github.com/koscakluka/ema-assistant/core/llms"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"google.golang.org/api/option"
)

const DefaultModel = "gemini-2.5-flash"

type Client struct {
	client  *genai.Client
	modelID string
}

// NewClient creates a Gemini client. An empty modelID selects [DefaultModel].
func NewClient(ctx context.Context, apiKey, modelID string) (*Client, error) {
	if strings.TrimSpace(apiKey) == "" {
		return nil, errors.New("gemini: api key is required")
	}
	if strings.TrimSpace(modelID) == "" {
		modelID = DefaultModel
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini: failed to create client: %w", err)
	}

	return &Client{client: client, modelID: modelID}, nil
}

func (c *Client) Generate(ctx context.Context, prompt string, opts ...llms.GenerateOption) (string, error) {
	ctx, span := tracer.Start(ctx, "prompt llm")
	defer span.End()

	options := llms.ApplyOptions(llms.GenerateOptions{Model: c.modelID}, opts...)
	span.SetAttributes(attribute.String("request.model", options.Model))

	model := c.client.GenerativeModel(options.Model)
	if options.Temperature != nil {
		model.SetTemperature(*options.Temperature)
	}
	if options.MaxTokens > 0 {
		model.SetMaxOutputTokens(int32(options.MaxTokens))
	}
	if strings.TrimSpace(options.Instructions) != "" {
		model.SystemInstruction = genai.NewUserContent(genai.Text(options.Instructions))
	}

	resp, err := model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		err = fmt.Errorf("gemini: completion failed: %w", err)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	text, err := responseText(resp)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", err
	}

	if resp.UsageMetadata != nil {
		span.SetAttributes(
			attribute.Int("response.prompt_tokens", int(resp.UsageMetadata.PromptTokenCount)),
			attribute.Int("response.completion_tokens", int(resp.UsageMetadata.CandidatesTokenCount)),
		)
	}
	logger.DebugContext(ctx, "completion received", "model", options.Model)
	return text, nil
}

func responseText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 {
		return "", fmt.Errorf("gemini: no candidates: %w", llms.ErrEmptyResponse)
	}

	candidate := resp.Candidates[0]
	if candidate.Content == nil || len(candidate.Content.Parts) == 0 {
		return "", fmt.Errorf("gemini: empty content: %w", llms.ErrEmptyResponse)
	}

	var responseText strings.Builder
	for _, part := range candidate.Content.Parts {
		if text, ok := part.(genai.Text); ok {
			responseText.WriteString(string(text))
		}
	}

	text := strings.TrimSpace(responseText.String())
	if text == "" {
		return "", fmt.Errorf("gemini: no text parts: %w", llms.ErrEmptyResponse)
	}
	return text, nil
}

// Close releases resources held by the Gemini client.
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}
