package metrics

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/koscakluka/ema-assistant/core/events"
	"github.com/koscakluka/ema-assistant/core/intents"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestConversationMetricsObserve(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewConversationMetrics(reg)

	m.Observe(events.NewStateChanged("idle", "listening"))
	m.Observe(events.NewStateChanged("idle", "listening"))
	m.Observe(events.NewIntentResolved(1, nil, 200*time.Millisecond))
	m.Observe(events.NewResolutionFailed(2, intents.ErrNoStructuredSpan, time.Second))
	m.Observe(events.NewResolutionFailed(3, fmt.Errorf("%w: timeout", intents.ErrNetworkFailure), time.Second))
	m.Observe(events.NewCaptureFailed(4, events.CaptureFailureNoSpeech, nil))
	m.Observe(events.NewInputRejected("again", "busy"))
	m.Observe(events.NewAssistantPlaybackFailed(5, errors.New("device gone")))

	if got := testutil.ToFloat64(m.transitionsTotal.WithLabelValues("idle", "listening")); got != 2 {
		t.Fatalf("expected 2 transitions, got %v", got)
	}
	for outcome, expected := range map[string]float64{OutcomeResolved: 1, OutcomeMalformed: 1, OutcomeNetwork: 1} {
		if got := testutil.ToFloat64(m.resolutionsTotal.WithLabelValues(outcome)); got != expected {
			t.Fatalf("expected %v %s resolutions, got %v", expected, outcome, got)
		}
	}
	if got := testutil.ToFloat64(m.captureFailures.WithLabelValues("no-speech")); got != 1 {
		t.Fatalf("expected 1 no-speech failure, got %v", got)
	}
	if got := testutil.ToFloat64(m.rejectedInputs); got != 1 {
		t.Fatalf("expected 1 rejected input, got %v", got)
	}
	if got := testutil.ToFloat64(m.playbackFailures); got != 1 {
		t.Fatalf("expected 1 playback failure, got %v", got)
	}
	if got := testutil.ToFloat64(m.eventsTotal.WithLabelValues(string(events.KindStateChanged))); got != 2 {
		t.Fatalf("expected 2 state change events, got %v", got)
	}
}

func TestConversationMetricsDefaultRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	prev := prometheus.DefaultRegisterer
	prometheus.DefaultRegisterer = reg
	defer func() { prometheus.DefaultRegisterer = prev }()

	m := NewConversationMetrics(nil)
	m.Observe(events.NewListenRearmed(1))
}

func TestConversationMetricsNilSafe(t *testing.T) {
	var m *ConversationMetrics
	m.Observe(events.NewStateChanged("idle", "listening"))
	NewConversationMetrics(prometheus.NewRegistry()).Observe(nil)
}

func TestResolutionOutcome(t *testing.T) {
	tests := []struct {
		err      error
		expected string
	}{
		{nil, OutcomeResolved},
		{intents.ErrUnknownKind, OutcomeMalformed},
		{intents.ErrNetworkFailure, OutcomeNetwork},
		{errors.New("unexpected"), OutcomeNetwork},
	}
	for _, tt := range tests {
		if got := ResolutionOutcome(tt.err); got != tt.expected {
			t.Fatalf("expected %q for %v, got %q", tt.expected, tt.err, got)
		}
	}
}
