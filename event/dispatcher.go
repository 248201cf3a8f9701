package event

import (
	"context"
	"sync"
	"time"

	"github.com/gamegoo/socialgraph/metrics"
	"go.uber.org/zap"
)

// Sink consumes events. Delivery is at-least-once, so Deliver must be
// idempotent per event ID.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, e Event) error
}

// Options tunes a Dispatcher.
type Options struct {
	QueueSize       int
	Attempts        int
	Backoff         time.Duration
	DeliveryTimeout time.Duration
	// EnqueueTimeout bounds how long Emit waits on a full queue before it
	// delivers the event on the caller's goroutine.
	EnqueueTimeout time.Duration
}

// Dispatcher queues events on a buffered channel and drains them to every
// sink from a single background goroutine. Sinks must be safe for
// concurrent use: an event that overflows the queue is delivered by the
// emitting goroutine.
type Dispatcher struct {
	ch     chan Event
	sinks  []Sink
	opts   Options
	mu     sync.RWMutex // guards closed; held for reading while enqueueing
	closed bool
	stopCh chan struct{}
	wg     sync.WaitGroup
	logger *zap.Logger
}

// NewDispatcher creates a Dispatcher and starts its worker.
func NewDispatcher(opts Options, logger *zap.Logger, sinks ...Sink) *Dispatcher {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 1024
	}
	if opts.Attempts <= 0 {
		opts.Attempts = 1
	}
	if opts.DeliveryTimeout <= 0 {
		opts.DeliveryTimeout = 5 * time.Second
	}
	if opts.EnqueueTimeout <= 0 {
		opts.EnqueueTimeout = time.Second
	}
	d := &Dispatcher{
		ch:     make(chan Event, opts.QueueSize),
		sinks:  sinks,
		opts:   opts,
		stopCh: make(chan struct{}),
		logger: logger,
	}
	d.wg.Add(1)
	go d.worker()
	return d
}

// Emit hands e to the sinks. It waits up to EnqueueTimeout for room in the
// queue; if the queue stays full the event is delivered synchronously so a
// committed change never loses its event. After Stop the event is dropped.
func (d *Dispatcher) Emit(e Event) {
	d.mu.RLock()
	if d.closed {
		d.mu.RUnlock()
		metrics.EventsDropped.Inc()
		d.logger.Warn("dispatcher stopped, dropping event",
			zap.String("event_id", e.ID), zap.String("type", string(e.Type)))
		return
	}
	if d.enqueue(e) {
		d.mu.RUnlock()
		return
	}
	// Holding the read lock keeps Stop from returning before this delivery ends.
	defer d.mu.RUnlock()
	metrics.EventsOverflowed.Inc()
	d.logger.Warn("event queue full, delivering inline",
		zap.String("event_id", e.ID), zap.String("type", string(e.Type)))
	d.dispatch(e)
}

func (d *Dispatcher) enqueue(e Event) bool {
	select {
	case d.ch <- e:
		metrics.EventQueueDepth.Set(float64(len(d.ch)))
		return true
	default:
	}
	t := time.NewTimer(d.opts.EnqueueTimeout)
	defer t.Stop()
	select {
	case d.ch <- e:
		metrics.EventQueueDepth.Set(float64(len(d.ch)))
		return true
	case <-t.C:
		return false
	}
}

// Stop delivers whatever is still queued and waits for the worker to exit.
// Emit calls that return before Stop starts are always delivered.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.stopCh)
	}
	d.mu.Unlock()
	d.wg.Wait()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		select {
		case e := <-d.ch:
			d.dispatch(e)
		case <-d.stopCh:
			for {
				select {
				case e := <-d.ch:
					d.dispatch(e)
				default:
					return
				}
			}
		}
	}
}

func (d *Dispatcher) dispatch(e Event) {
	metrics.EventQueueDepth.Set(float64(len(d.ch)))
	for _, s := range d.sinks {
		if err := d.deliver(s, e); err != nil {
			metrics.EventsDelivered.WithLabelValues(s.Name(), "failed").Inc()
			d.logger.Error("event delivery failed",
				zap.String("sink", s.Name()),
				zap.String("event_id", e.ID),
				zap.String("type", string(e.Type)),
				zap.Error(err))
			continue
		}
		metrics.EventsDelivered.WithLabelValues(s.Name(), "ok").Inc()
	}
}

func (d *Dispatcher) deliver(s Sink, e Event) error {
	var err error
	for attempt := 1; attempt <= d.opts.Attempts; attempt++ {
		err = func() (err error) {
			defer func() {
				if r := recover(); r != nil {
					d.logger.Error("event sink panicked",
						zap.String("sink", s.Name()), zap.Any("recover", r))
					err = errSinkPanic
				}
			}()
			ctx, cancel := context.WithTimeout(context.Background(), d.opts.DeliveryTimeout)
			defer cancel()
			return s.Deliver(ctx, e)
		}()
		if err == nil {
			return nil
		}
		if attempt < d.opts.Attempts {
			time.Sleep(d.opts.Backoff * time.Duration(attempt))
		}
	}
	return err
}
