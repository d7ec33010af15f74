package events

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/straja-ai/hatescan/internal/logging"
)

// lexiconQueueSize bounds pending lexicon events. They are rare and are
// delivered ahead of queued analyses.
const lexiconQueueSize = 16

// Sink consumes events (file, webhook, etc.).
type Sink interface {
	Name() string
	Deliver(context.Context, *Event) error
	Close(context.Context) error
}

// Metrics holds per-kind queue counters and per-sink delivery counters.
type Metrics struct {
	enqueued    map[Kind]uint64
	dropped     map[Kind]uint64
	droppedHate uint64

	sinkSuccess map[string]uint64
	sinkFailure map[string]uint64
}

func newMetrics(sinks []Sink) *Metrics {
	m := &Metrics{
		enqueued:    map[Kind]uint64{KindAnalysis: 0, KindLexicon: 0},
		dropped:     map[Kind]uint64{KindAnalysis: 0, KindLexicon: 0},
		sinkSuccess: make(map[string]uint64, len(sinks)),
		sinkFailure: make(map[string]uint64, len(sinks)),
	}
	for _, s := range sinks {
		m.sinkSuccess[s.Name()] = 0
		m.sinkFailure[s.Name()] = 0
	}
	return m
}

// Snapshot copies the counters.
func (m *Metrics) Snapshot() Metrics {
	if m == nil {
		return Metrics{}
	}
	return Metrics{
		enqueued:    copyCounts(m.enqueued),
		dropped:     copyCounts(m.dropped),
		droppedHate: m.droppedHate,
		sinkSuccess: copyCounts(m.sinkSuccess),
		sinkFailure: copyCounts(m.sinkFailure),
	}
}

// Enqueued is the number of events accepted across kinds.
func (m Metrics) Enqueued() uint64 { return sum(m.enqueued) }

// Dropped is the number of events discarded across kinds.
func (m Metrics) Dropped() uint64 { return sum(m.dropped) }

func (m Metrics) EnqueuedKind(k Kind) uint64 { return m.enqueued[k] }
func (m Metrics) DroppedKind(k Kind) uint64  { return m.dropped[k] }

// DroppedHate counts dropped analysis events that were flagged as hate.
func (m Metrics) DroppedHate() uint64 { return m.droppedHate }

func (m Metrics) SinkSuccess(name string) uint64 { return m.sinkSuccess[name] }
func (m Metrics) SinkFailure(name string) uint64 { return m.sinkFailure[name] }

// Emitter buffers events and delivers them to sinks from background workers.
// Analysis and lexicon events queue separately so a burst of analyses never
// crowds out a lexicon change. A nil *Emitter is valid and drops everything.
type Emitter struct {
	analyses        chan *Event
	lexicon         chan *Event
	sinks           []Sink
	metrics         *Metrics
	shutdownTimeout time.Duration
	logger          *zap.Logger

	mu        sync.RWMutex
	metricsMu sync.Mutex
	closed    bool
	wg        sync.WaitGroup
}

// EmitterConfig controls worker and queue sizing. QueueSize applies to
// analysis events.
type EmitterConfig struct {
	QueueSize       int
	Workers         int
	ShutdownTimeout time.Duration
	Logger          *zap.Logger
}

// NewEmitter starts background workers delivering to sinks.
func NewEmitter(cfg EmitterConfig, sinks []Sink) *Emitter {
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = 1000
	}
	workerCount := cfg.Workers
	if workerCount <= 0 {
		workerCount = 1
	}
	shutdownTimeout := cfg.ShutdownTimeout
	if shutdownTimeout <= 0 {
		shutdownTimeout = 2 * time.Second
	}

	em := &Emitter{
		analyses:        make(chan *Event, queueSize),
		lexicon:         make(chan *Event, lexiconQueueSize),
		sinks:           sinks,
		metrics:         newMetrics(sinks),
		shutdownTimeout: shutdownTimeout,
		logger:          logging.OrNop(cfg.Logger),
	}

	for i := 0; i < workerCount; i++ {
		em.wg.Add(1)
		go em.worker()
	}

	return em
}

// Emit enqueues ev on the queue for its kind without blocking; a full queue
// drops it.
func (e *Emitter) Emit(_ context.Context, ev *Event) {
	if e == nil || ev == nil {
		return
	}

	e.mu.RLock()
	defer e.mu.RUnlock()

	if e.closed {
		e.countDropped(ev)
		return
	}

	queue := e.analyses
	if ev.Kind == KindLexicon {
		queue = e.lexicon
	}
	select {
	case queue <- ev:
		e.metricsMu.Lock()
		e.metrics.enqueued[ev.Kind]++
		e.metricsMu.Unlock()
	default:
		e.countDropped(ev)
	}
}

func (e *Emitter) countDropped(ev *Event) {
	hate := ev.Analysis != nil && ev.Analysis.IsHateSpeech

	e.metricsMu.Lock()
	e.metrics.dropped[ev.Kind]++
	n := e.metrics.dropped[ev.Kind]
	if hate {
		e.metrics.droppedHate++
	}
	flagged := e.metrics.droppedHate
	e.metricsMu.Unlock()

	// A lost lexicon change is always worth a line; analyses log the first
	// drop and then every 1000th.
	if ev.Kind == KindLexicon || n == 1 || n%1000 == 0 {
		e.logger.Warn("event queue full, dropping events",
			zap.String("kind", string(ev.Kind)),
			zap.Uint64("dropped_total", n),
			zap.Uint64("dropped_hate_total", flagged))
	}
}

// Close stops accepting events and waits up to the shutdown timeout for both
// queues to drain before closing sinks.
func (e *Emitter) Close(ctx context.Context) {
	if e == nil {
		return
	}
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return
	}
	e.closed = true
	close(e.analyses)
	close(e.lexicon)
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()

	waitCtx := ctx
	if waitCtx == nil {
		waitCtx = context.Background()
	}
	if e.shutdownTimeout > 0 {
		var cancel context.CancelFunc
		waitCtx, cancel = context.WithTimeout(waitCtx, e.shutdownTimeout)
		defer cancel()
	}

	select {
	case <-done:
	case <-waitCtx.Done():
		e.logger.Warn("event queue not drained before shutdown",
			zap.Int("pending_analyses", len(e.analyses)),
			zap.Int("pending_lexicon", len(e.lexicon)))
	}

	for _, s := range e.sinks {
		if err := s.Close(waitCtx); err != nil {
			e.logger.Warn("event sink close error", zap.String("sink", s.Name()), zap.Error(err))
		}
	}
}

// MetricsSnapshot copies the current counters.
func (e *Emitter) MetricsSnapshot() Metrics {
	if e == nil || e.metrics == nil {
		return Metrics{}
	}
	e.metricsMu.Lock()
	defer e.metricsMu.Unlock()
	return e.metrics.Snapshot()
}

// worker delivers pending lexicon events before the next analysis. A closed
// queue is set to nil so the select stops considering it.
func (e *Emitter) worker() {
	defer e.wg.Done()
	analyses, lexicon := e.analyses, e.lexicon
	for analyses != nil || lexicon != nil {
		select {
		case ev, ok := <-lexicon:
			if !ok {
				lexicon = nil
				continue
			}
			e.deliver(ev)
			continue
		default:
		}

		select {
		case ev, ok := <-lexicon:
			if !ok {
				lexicon = nil
				continue
			}
			e.deliver(ev)
		case ev, ok := <-analyses:
			if !ok {
				analyses = nil
				continue
			}
			e.deliver(ev)
		}
	}
}

func (e *Emitter) deliver(ev *Event) {
	for _, s := range e.sinks {
		if err := s.Deliver(context.Background(), ev); err != nil {
			e.logger.Warn("event sink delivery failed",
				zap.String("sink", s.Name()), zap.String("kind", string(ev.Kind)), zap.Error(err))
			e.metricsMu.Lock()
			e.metrics.sinkFailure[s.Name()]++
			e.metricsMu.Unlock()
			continue
		}
		e.metricsMu.Lock()
		e.metrics.sinkSuccess[s.Name()]++
		e.metricsMu.Unlock()
	}
}

func copyCounts[K comparable](in map[K]uint64) map[K]uint64 {
	out := make(map[K]uint64, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func sum[K comparable](in map[K]uint64) uint64 {
	var n uint64
	for _, v := range in {
		n += v
	}
	return n
}
