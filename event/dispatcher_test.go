package event

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/gamegoo/socialgraph/metrics"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSink struct {
	name     string
	mu       sync.Mutex
	got      []Event
	failures int // fail this many deliveries before succeeding
	panics   bool
}

func (s *fakeSink) Name() string { return s.name }

func (s *fakeSink) Deliver(_ context.Context, e Event) error {
	if s.panics {
		panic("boom")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failures > 0 {
		s.failures--
		return errors.New("temporary")
	}
	s.got = append(s.got, e)
	return nil
}

func (s *fakeSink) events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.got...)
}

// gatedSink blocks every delivery until release is closed.
type gatedSink struct {
	fakeSink
	release chan struct{}
}

func (s *gatedSink) Deliver(ctx context.Context, e Event) error {
	<-s.release
	return s.fakeSink.Deliver(ctx, e)
}

func newLogger() *zap.Logger { l, _ := zap.NewDevelopment(); return l }

func TestDispatcher_DeliversToAllSinks(t *testing.T) {
	a := &fakeSink{name: "a"}
	b := &fakeSink{name: "b"}
	d := NewDispatcher(Options{QueueSize: 8, Attempts: 1}, newLogger(), a, b)

	e1 := New(FriendRequestSent, 1, 10, 20)
	e2 := New(FriendRequestAccepted, 1, 10, 20)
	d.Emit(e1)
	d.Emit(e2)
	d.Stop()

	for _, s := range []*fakeSink{a, b} {
		got := s.events()
		require.Len(t, got, 2, s.name)
		assert.Equal(t, e1.ID, got[0].ID, "order preserved")
		assert.Equal(t, e2.ID, got[1].ID)
	}
}

func TestDispatcher_RetriesFailedDelivery(t *testing.T) {
	s := &fakeSink{name: "flaky", failures: 2}
	d := NewDispatcher(Options{Attempts: 3, Backoff: time.Millisecond}, newLogger(), s)

	d.Emit(New(FriendRequestRejected, 5, 1, 2))
	d.Stop()

	assert.Len(t, s.events(), 1)
}

func TestDispatcher_GivesUpAfterAttempts(t *testing.T) {
	s := &fakeSink{name: "down", failures: 10}
	ok := &fakeSink{name: "ok"}
	d := NewDispatcher(Options{Attempts: 2, Backoff: time.Millisecond}, newLogger(), s, ok)

	d.Emit(New(FriendRequestSent, 5, 1, 2))
	d.Stop()

	assert.Empty(t, s.events())
	assert.Len(t, ok.events(), 1, "one failing sink does not block the others")
}

func TestDispatcher_SinkPanicRecovered(t *testing.T) {
	bad := &fakeSink{name: "bad", panics: true}
	ok := &fakeSink{name: "ok"}
	d := NewDispatcher(Options{Attempts: 1}, newLogger(), bad, ok)

	d.Emit(New(FriendRequestSent, 5, 1, 2))
	d.Stop()

	assert.Len(t, ok.events(), 1)
}

func TestDispatcher_EmitAfterStopDrops(t *testing.T) {
	s := &fakeSink{name: "s"}
	d := NewDispatcher(Options{}, newLogger(), s)
	d.Stop()
	d.Stop()

	d.Emit(New(FriendRequestSent, 5, 1, 2))
	assert.Empty(t, s.events())
}

func TestEvent_RecipientAndActor(t *testing.T) {
	sent := New(FriendRequestSent, 1, 10, 20)
	assert.Equal(t, int64(20), sent.Recipient())
	assert.Equal(t, int64(10), sent.Actor())

	accepted := New(FriendRequestAccepted, 1, 10, 20)
	assert.Equal(t, int64(10), accepted.Recipient())
	assert.Equal(t, int64(20), accepted.Actor())

	assert.NotEqual(t, sent.ID, accepted.ID)
	assert.False(t, sent.OccurredAt.IsZero())
}

func emitN(d *Dispatcher, n int) []Event {
	out := make([]Event, 0, n)
	for i := 0; i < n; i++ {
		e := New(FriendRequestSent, int64(i+1), 1, 2)
		d.Emit(e)
		out = append(out, e)
	}
	return out
}

func TestDispatcher_FullQueueWaitsForRoom(t *testing.T) {
	s := &gatedSink{fakeSink: fakeSink{name: "slow"}, release: make(chan struct{})}
	d := NewDispatcher(Options{QueueSize: 1, Attempts: 1, EnqueueTimeout: 5 * time.Second}, newLogger(), s)
	overflowBefore := testutil.ToFloat64(metrics.EventsOverflowed)

	done := make(chan []Event)
	go func() { done <- emitN(d, 5) }()
	time.Sleep(50 * time.Millisecond)
	close(s.release)

	var emitted []Event
	select {
	case emitted = <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("emit did not resume after the queue drained")
	}
	d.Stop()

	got := s.events()
	require.Len(t, got, 5)
	for i := range emitted {
		assert.Equal(t, emitted[i].ID, got[i].ID, "order preserved")
	}
	assert.Equal(t, overflowBefore, testutil.ToFloat64(metrics.EventsOverflowed))
}

func TestDispatcher_FullQueueDeliversInline(t *testing.T) {
	s := &gatedSink{fakeSink: fakeSink{name: "slow"}, release: make(chan struct{})}
	d := NewDispatcher(Options{QueueSize: 1, Attempts: 1, EnqueueTimeout: 5 * time.Millisecond}, newLogger(), s)
	overflowBefore := testutil.ToFloat64(metrics.EventsOverflowed)

	done := make(chan []Event)
	go func() { done <- emitN(d, 5) }()
	time.Sleep(100 * time.Millisecond)
	close(s.release)
	emitted := <-done
	d.Stop()

	got := s.events()
	require.Len(t, got, 5, "no committed event is lost")
	ids := make(map[string]bool, len(got))
	for _, e := range got {
		ids[e.ID] = true
	}
	for _, e := range emitted {
		assert.True(t, ids[e.ID], e.ID)
	}
	assert.Greater(t, testutil.ToFloat64(metrics.EventsOverflowed), overflowBefore)
}

func TestDispatcher_StopRacingEmit(t *testing.T) {
	s := &fakeSink{name: "s"}
	d := NewDispatcher(Options{QueueSize: 4, Attempts: 1}, newLogger(), s)
	droppedBefore := testutil.ToFloat64(metrics.EventsDropped)

	const workers, perWorker = 8, 50
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			emitN(d, perWorker)
		}()
	}
	time.Sleep(time.Millisecond)
	d.Stop()
	wg.Wait()

	dropped := testutil.ToFloat64(metrics.EventsDropped) - droppedBefore
	assert.Equal(t, float64(workers*perWorker), float64(len(s.events()))+dropped,
		"every emit is either delivered or counted as dropped after stop")
}
