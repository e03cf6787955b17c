package accesslog

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/mfigueredo/viptier/internal/observability"
)

// Outcome statuses returned by Sink.Record.
const (
	// StatusQueued: the entry was accepted and will be persisted by the
	// drain worker.
	StatusQueued = "queued"
	// StatusSkipped: the entry was not accepted; Reason says why.
	StatusSkipped = "skipped"
)

// Outcome reports what happened to a recorded entry on the request path.
// Worker-side write failures are not visible here: they are logged and
// counted, never surfaced to the access-granting request.
type Outcome struct {
	Status string
	Reason string
}

// Sink buffers access log entries in a bounded queue drained by a single
// background worker, so a slow or failing log store never adds latency or
// risk to the access decision.
type Sink struct {
	repo         LogRepository
	logger       *slog.Logger
	queue        chan Entry
	writeTimeout time.Duration

	mu     sync.RWMutex
	closed bool
	wg     sync.WaitGroup
}

// NewSink creates the sink and starts its drain worker.
func NewSink(repo LogRepository, logger *slog.Logger, queueSize int, writeTimeout time.Duration) *Sink {
	if repo == nil {
		panic("accesslog: log repository cannot be nil")
	}
	if logger == nil {
		logger = slog.Default()
	}
	if queueSize < 1 {
		queueSize = 1
	}
	if writeTimeout <= 0 {
		writeTimeout = 5 * time.Second
	}

	s := &Sink{
		repo:         repo,
		logger:       logger,
		queue:        make(chan Entry, queueSize),
		writeTimeout: writeTimeout,
	}

	s.wg.Add(1)
	go s.drain()

	return s
}

// Record offers the entry to the queue without blocking. A full queue drops
// the entry (Skipped), it never stalls the caller.
func (s *Sink) Record(e Entry) Outcome {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.closed {
		return Outcome{Status: StatusSkipped, Reason: "sink closed"}
	}

	select {
	case s.queue <- e:
		observability.AccessLogQueueDepth.Inc()
		return Outcome{Status: StatusQueued}
	default:
		observability.AccessLogDropped.Inc()
		s.logger.Warn("access log queue full, dropping entry",
			slog.String("shop", e.Shop),
			slog.String("customer_key", e.CustomerKey),
		)
		return Outcome{Status: StatusSkipped, Reason: "queue full"}
	}
}

// Close stops accepting entries, drains the queue, and waits for the worker.
func (s *Sink) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	s.wg.Wait()
}

// drain persists queued entries one by one. Failures are logged and counted
// only; the entry is lost (advisory telemetry).
func (s *Sink) drain() {
	defer s.wg.Done()

	for e := range s.queue {
		observability.AccessLogQueueDepth.Dec()

		ctx, cancel := context.WithTimeout(context.Background(), s.writeTimeout)
		err := s.repo.InsertEntry(ctx, &e)
		cancel()

		if err != nil {
			observability.AccessLogWriteFailures.Inc()
			s.logger.Error("failed to persist access log entry",
				slog.String("shop", e.Shop),
				slog.String("customer_key", e.CustomerKey),
				slog.String("error", err.Error()),
			)
		}
	}
}
