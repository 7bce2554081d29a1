package metrics

import (
	"errors"

	"github.com/koscakluka/ema-assistant/core/events"
	"github.com/koscakluka/ema-assistant/core/intents"
	"github.com/prometheus/client_golang/prometheus"
)

const (
	OutcomeResolved  = "resolved"
	OutcomeMalformed = "malformed"
	OutcomeNetwork   = "network"
)

// ConversationMetrics exposes counters/histograms for the conversation loop.
type ConversationMetrics struct {
	eventsTotal       *prometheus.CounterVec
	transitionsTotal  *prometheus.CounterVec
	resolutionsTotal  *prometheus.CounterVec
	resolutionLatency *prometheus.HistogramVec
	captureFailures   *prometheus.CounterVec
	rejectedInputs    prometheus.Counter
	playbackFailures  prometheus.Counter
}

func NewConversationMetrics(reg prometheus.Registerer) *ConversationMetrics {
	m := &ConversationMetrics{
		eventsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ema",
			Subsystem: "conversation",
			Name:      "events_total",
			Help:      "Total conversation events observed",
		}, []string{"kind"}),
		transitionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ema",
			Subsystem: "conversation",
			Name:      "state_transitions_total",
			Help:      "Total conversation state transitions",
		}, []string{"from", "to"}),
		resolutionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ema",
			Subsystem: "resolution",
			Name:      "total",
			Help:      "Total utterance resolutions by outcome",
		}, []string{"outcome"}),
		resolutionLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "ema",
			Subsystem: "resolution",
			Name:      "latency_seconds",
			Help:      "Latency of utterance resolution",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		captureFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ema",
			Subsystem: "capture",
			Name:      "failures_total",
			Help:      "Total capture sessions that ended with an error",
		}, []string{"reason"}),
		rejectedInputs: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ema",
			Subsystem: "conversation",
			Name:      "rejected_inputs_total",
			Help:      "Total user inputs rejected while a reply was pending",
		}),
		playbackFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ema",
			Subsystem: "playback",
			Name:      "failures_total",
			Help:      "Total spoken replies that could not be played",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(
		m.eventsTotal,
		m.transitionsTotal,
		m.resolutionsTotal,
		m.resolutionLatency,
		m.captureFailures,
		m.rejectedInputs,
		m.playbackFailures,
	)
	return m
}

// Observe records a conversation event. It is meant to be passed to the
// orchestrator as an event observer.
func (m *ConversationMetrics) Observe(event events.Event) {
	if m == nil || event == nil {
		return
	}
	m.eventsTotal.WithLabelValues(string(event.Kind())).Inc()

	switch e := event.(type) {
	case events.StateChanged:
		m.transitionsTotal.WithLabelValues(e.From, e.To).Inc()
	case events.IntentResolved:
		m.observeResolution(OutcomeResolved, e.Elapsed.Seconds())
	case events.ResolutionFailed:
		m.observeResolution(ResolutionOutcome(e.Err), e.Elapsed.Seconds())
	case events.CaptureFailed:
		m.captureFailures.WithLabelValues(string(e.Reason)).Inc()
	case events.InputRejected:
		m.rejectedInputs.Inc()
	case events.AssistantPlaybackFailed:
		m.playbackFailures.Inc()
	}
}

func (m *ConversationMetrics) observeResolution(outcome string, seconds float64) {
	m.resolutionsTotal.WithLabelValues(outcome).Inc()
	m.resolutionLatency.WithLabelValues(outcome).Observe(seconds)
}

// ResolutionOutcome labels a resolution error.
func ResolutionOutcome(err error) string {
	switch {
	case err == nil:
		return OutcomeResolved
	case errors.Is(err, intents.ErrMalformedReply):
		return OutcomeMalformed
	default:
		return OutcomeNetwork
	}
}
