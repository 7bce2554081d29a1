package intents

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/koscakluka/ema-assistant/core/llms"
	"github.com/koscakluka/ema-assistant/core/sessions"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
)

const DefaultTimeout = 15 * time.Second

// Resolver classifies utterances of a single session.
type Resolver struct {
	generator llms.Generator
	store     sessions.Store
	sessionID string

	timeout      time.Duration
	now          func() time.Time
	generateOpts []llms.GenerateOption

	resolutions metric.Int64Counter
}

type ResolverOption func(*Resolver)

// WithTimeout bounds a single upstream call.
func WithTimeout(timeout time.Duration) ResolverOption {
	return func(r *Resolver) {
		if timeout > 0 {
			r.timeout = timeout
		}
	}
}

// WithClock replaces the clock used for temporal replies.
func WithClock(now func() time.Time) ResolverOption {
	return func(r *Resolver) {
		if now != nil {
			r.now = now
		}
	}
}

// WithGenerateOptions adds options passed to every upstream call.
func WithGenerateOptions(opts ...llms.GenerateOption) ResolverOption {
	return func(r *Resolver) { r.generateOpts = append(r.generateOpts, opts...) }
}

func NewResolver(generator llms.Generator, store sessions.Store, sessionID string, opts ...ResolverOption) *Resolver {
	resolver := &Resolver{
		generator: generator,
		store:     store,
		sessionID: sessionID,
		timeout:   DefaultTimeout,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(resolver)
	}

	counter, err := meter.Int64Counter("intents.resolutions",
		metric.WithDescription("Number of utterance resolutions by outcome"))
	if err != nil {
		logger.Warn("failed to create resolutions counter", "error", err)
	}
	resolver.resolutions = counter

	return resolver
}

// Resolve classifies the utterance. Failures wrap [ErrNetworkFailure] or
// [ErrMalformedReply]. The utterance text is appended to the session history
// exactly once, and only when resolution succeeds. There are no retries.
func (r *Resolver) Resolve(ctx context.Context, utterance Utterance) (Intent, error) {
	ctx, span := tracer.Start(ctx, "resolve intent")
	defer span.End()
	span.SetAttributes(
		attribute.String("utterance.id", utterance.ID),
		attribute.String("utterance.source", string(utterance.Source)),
	)

	intent, err := r.resolve(ctx, utterance)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		r.record(ctx, "failure", "")
		return Intent{}, err
	}

	if err := r.store.AppendHistory(ctx, r.sessionID, utterance.Text); err != nil {
		span.RecordError(err)
		logger.WarnContext(ctx, "failed to append history", "session_id", r.sessionID, "error", err)
	}

	span.SetAttributes(attribute.String("intent.kind", string(intent.Kind)))
	r.record(ctx, "success", intent.Kind)
	return intent, nil
}

func (r *Resolver) resolve(ctx context.Context, utterance Utterance) (Intent, error) {
	if utterance.Text == "" {
		return Intent{}, ErrEmptyUtterance
	}
	if r.generator == nil || r.store == nil {
		return Intent{}, fmt.Errorf("%w: resolver is not configured", ErrNetworkFailure)
	}

	session, err := r.store.Context(ctx, r.sessionID)
	if err != nil {
		return Intent{}, fmt.Errorf("%w: failed to load session: %w", ErrNetworkFailure, err)
	}

	generateCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	opts := append([]llms.GenerateOption{llms.WithSystemPrompt(Instructions(session))}, r.generateOpts...)
	reply, err := r.generator.Generate(generateCtx, utterance.Text, opts...)
	if err != nil {
		if errors.Is(err, llms.ErrEmptyResponse) {
			return Intent{}, fmt.Errorf("%w: %w", ErrNoStructuredSpan, err)
		}
		return Intent{}, fmt.Errorf("%w: %w", ErrNetworkFailure, err)
	}

	intent, err := ParseReply(reply)
	if err != nil {
		logger.DebugContext(ctx, "discarding malformed reply", "reply", reply, "error", err)
		return Intent{}, err
	}

	if temporal, ok := temporalReply(intent.Kind, r.now()); ok {
		intent.Reply = temporal
	}
	return intent, nil
}

func (r *Resolver) record(ctx context.Context, outcome string, kind Kind) {
	if r.resolutions == nil {
		return
	}
	r.resolutions.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("kind", string(kind)),
	))
}
