package orchestration

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/koscakluka/ema-assistant/core/events"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const conversationEventQueueCapacity = 64

type eventQueueItem struct {
	event    events.Event
	queuedAt time.Time
}

// conversationRuntime owns the event queue. A single goroutine drains it, so
// events are handled one at a time in arrival order.
type conversationRuntime struct {
	queue   chan eventQueueItem
	closeCh chan struct{}
	done    chan struct{}

	startOnce sync.Once
	endOnce   sync.Once

	started atomic.Bool

	// backlog holds posted events that did not fit into the queue, oldest
	// first. While it is not empty every post goes through it.
	backlogMu sync.Mutex
	backlog   []eventQueueItem
	draining  bool
}

func newConversationRuntime() *conversationRuntime {
	return &conversationRuntime{
		queue:   make(chan eventQueueItem, conversationEventQueueCapacity),
		closeCh: make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// start runs process for every queued event until end is called.
func (runtime *conversationRuntime) start(process func(eventQueueItem)) (started bool) {
	if runtime.isClosed() {
		return false
	}

	runtime.startOnce.Do(func() {
		if runtime.isClosed() {
			return
		}

		started = true
		runtime.started.Store(true)
		go func() {
			defer close(runtime.done)

			for {
				select {
				case <-runtime.closeCh:
					return
				case queuedEvent := <-runtime.queue:
					if runtime.isClosed() {
						return
					}
					process(queuedEvent)
				}
			}
		}()
	})

	return started
}

func (runtime *conversationRuntime) end() {
	runtime.endOnce.Do(func() {
		close(runtime.closeCh)
	})
}

func (runtime *conversationRuntime) waitUntilEnded() {
	if runtime.started.Load() {
		<-runtime.done
	}
}

// enqueue blocks until the event is queued or the runtime is closed.
func (runtime *conversationRuntime) enqueue(event events.Event) bool {
	if runtime.isClosed() {
		return false
	}

	queueItem := eventQueueItem{event: event, queuedAt: time.Now()}
	select {
	case <-runtime.closeCh:
		return false
	case runtime.queue <- queueItem:
		return true
	}
}

// post queues the event without blocking the caller. It is safe to call from
// the loop goroutine itself. Posted events keep their order even when the
// queue is full.
func (runtime *conversationRuntime) post(event events.Event) {
	if runtime.isClosed() {
		return
	}

	queueItem := eventQueueItem{event: event, queuedAt: time.Now()}

	runtime.backlogMu.Lock()
	defer runtime.backlogMu.Unlock()
	if len(runtime.backlog) == 0 {
		select {
		case runtime.queue <- queueItem:
			return
		default:
		}
	}
	runtime.backlog = append(runtime.backlog, queueItem)
	if !runtime.draining {
		runtime.draining = true
		go runtime.drainBacklog()
	}
}

// drainBacklog moves backlogged events into the queue in order. An event
// leaves the backlog only once it is queued.
func (runtime *conversationRuntime) drainBacklog() {
	for {
		runtime.backlogMu.Lock()
		if len(runtime.backlog) == 0 {
			runtime.draining = false
			runtime.backlogMu.Unlock()
			return
		}
		queueItem := runtime.backlog[0]
		runtime.backlogMu.Unlock()

		select {
		case <-runtime.closeCh:
			return
		case runtime.queue <- queueItem:
		}

		runtime.backlogMu.Lock()
		runtime.backlog[0] = eventQueueItem{}
		runtime.backlog = runtime.backlog[1:]
		runtime.backlogMu.Unlock()
	}
}

func (runtime *conversationRuntime) backlogLen() int {
	runtime.backlogMu.Lock()
	defer runtime.backlogMu.Unlock()
	return len(runtime.backlog)
}

func (runtime *conversationRuntime) isClosed() bool {
	select {
	case <-runtime.closeCh:
		return true
	default:
		return false
	}
}

func (runtime *conversationRuntime) queuedEventCount() int {
	return len(runtime.queue)
}

func (o *Orchestrator) processQueuedEvent(queuedEvent eventQueueItem) {
	ctx, span := tracer.Start(o.baseContext, "process event", trace.WithAttributes(
		attribute.String("conversation.event", string(queuedEvent.event.Kind())),
	))
	defer span.End()

	queuedTime := time.Since(queuedEvent.queuedAt).Seconds()
	span.AddEvent("taken out of queue", trace.WithAttributes(attribute.Float64("conversation.queued_time", queuedTime)))
	span.SetAttributes(attribute.Float64("conversation.queued_time", queuedTime))

	o.observe(queuedEvent.event)

	var effects []effect
	if start, ok := queuedEvent.event.(startEvent); ok {
		effects = start.produce()
	} else {
		effects = o.machine.handle(queuedEvent.event)
	}
	o.setState(o.machine.state)
	span.SetAttributes(
		attribute.String("conversation.state", o.machine.state.String()),
		attribute.Int("conversation.effects", len(effects)),
		attribute.Int("conversation.queued_events", o.runtime.queuedEventCount()),
	)

	if err := o.runEffects(ctx, effects); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
}

// runEffects executes the effects of one transition in order. A panicking
// effect is turned into an error so the loop keeps running.
func (o *Orchestrator) runEffects(ctx context.Context, effects []effect) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("effect execution panicked: %v", recovered)
		}
	}()

	for _, e := range effects {
		o.runEffect(ctx, e)
	}
	return nil
}
