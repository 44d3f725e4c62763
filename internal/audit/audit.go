// Package audit emits append-only lifecycle events to the durable store and
// mirrors them to the cache store. Emission never blocks or fails the
// triggering operation: a slow or broken sink degrades to dropped events,
// which is logged but otherwise invisible to callers.
package audit

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/chittyapps/chittyauth-app/internal/model"
)

// Sink is the durable destination for audit events.
type Sink interface {
	InsertAuditEvent(ctx context.Context, ev *model.AuditEvent) error
}

// Mirror receives a best-effort copy of each event for the operator surface.
type Mirror interface {
	PutAuditEvent(ev model.AuditEvent)
}

// defaultQueueSize bounds the in-flight event queue.
const defaultQueueSize = 256

// writeTimeout caps how long one durable write may take before the worker
// gives up on it.
const writeTimeout = 5 * time.Second

// Logger dispatches audit events through a bounded queue drained by a
// single background worker, so a slow audit sink can never stall the
// validation hot path.
type Logger struct {
	sink   Sink
	mirror Mirror
	log    *slog.Logger

	ch      chan model.AuditEvent
	pending sync.WaitGroup
	done    chan struct{}

	mu     sync.Mutex
	closed bool
}

// New creates a Logger and starts its worker. mirror may be nil.
func New(sink Sink, mirror Mirror, log *slog.Logger) *Logger {
	l := &Logger{
		sink:   sink,
		mirror: mirror,
		log:    log,
		ch:     make(chan model.AuditEvent, defaultQueueSize),
		done:   make(chan struct{}),
	}
	go l.run()
	return l
}

// Emit queues an event. The event id and timestamp are filled in if unset.
// Emit never blocks: when the queue is full the event is dropped and a
// warning logged.
func (l *Logger) Emit(ev model.AuditEvent) {
	if ev.EventID == "" {
		ev.EventID = uuid.Must(uuid.NewV7()).String()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now().UTC()
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.pending.Add(1)
	select {
	case l.ch <- ev:
		l.mu.Unlock()
	default:
		l.mu.Unlock()
		l.pending.Done()
		l.log.Warn("audit queue full, event dropped",
			"event_type", ev.EventType, "token_id", ev.TokenID)
	}
}

// Flush blocks until every event queued so far has been written or dropped.
func (l *Logger) Flush() {
	l.pending.Wait()
}

// Close drains the queue and stops the worker.
func (l *Logger) Close() {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	l.mu.Unlock()

	l.pending.Wait()
	close(l.ch)
	<-l.done
}

func (l *Logger) run() {
	defer close(l.done)
	for ev := range l.ch {
		l.write(ev)
		l.pending.Done()
	}
}

func (l *Logger) write(ev model.AuditEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
	defer cancel()

	if err := l.sink.InsertAuditEvent(ctx, &ev); err != nil {
		// Best-effort degraded: the primary operation already succeeded.
		l.log.Warn("audit write failed",
			"event_type", ev.EventType, "event_id", ev.EventID, "error", err)
	}
	if l.mirror != nil {
		l.mirror.PutAuditEvent(ev)
	}
}
