package llms

import (
	"context"
	"errors"
)

// ErrEmptyResponse is returned by a [Generator] when the upstream model
// answered without any text.
var ErrEmptyResponse = errors.New("llm returned an empty response")

// Generator produces a single text completion for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, opts ...GenerateOption) (string, error)
}

// GenerateOptions contains the per-call settings a [Generator] honours.
// Zero values mean "use the client default".
type GenerateOptions struct {
	Instructions string
	Model        string
	Temperature  *float32
	MaxTokens    int
}

type GenerateOption func(*GenerateOptions)

// WithSystemPrompt sets the system instructions sent alongside the prompt.
// Repeating this option will overwrite the previous system prompt.
func WithSystemPrompt(prompt string) GenerateOption {
	return func(opts *GenerateOptions) {
		opts.Instructions = prompt
	}
}

// WithModel overrides the model configured on the client for a single call.
func WithModel(model string) GenerateOption {
	return func(opts *GenerateOptions) {
		opts.Model = model
	}
}

func WithTemperature(temperature float32) GenerateOption {
	return func(opts *GenerateOptions) {
		opts.Temperature = &temperature
	}
}

func WithMaxTokens(maxTokens int) GenerateOption {
	return func(opts *GenerateOptions) {
		if maxTokens > 0 {
			opts.MaxTokens = maxTokens
		}
	}
}

// ApplyOptions folds opts over defaults and returns the result.
func ApplyOptions(defaults GenerateOptions, opts ...GenerateOption) GenerateOptions {
	options := defaults
	for _, opt := range opts {
		opt(&options)
	}
	return options
}

// GeneratorFunc adapts a function to the [Generator] interface.
type GeneratorFunc func(ctx context.Context, prompt string, opts ...GenerateOption) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string, opts ...GenerateOption) (string, error) {
	return f(ctx, prompt, opts...)
}
