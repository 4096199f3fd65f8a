package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idmask/pkg/platform/audit"
	"idmask/pkg/platform/audit/store/memory"
)

func closePublisher(t *testing.T, pub *Publisher) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, pub.Close(ctx))
}

type failingSink struct {
	mu    sync.Mutex
	calls int
}

func (s *failingSink) Emit(context.Context, audit.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls++
	return errors.New("sink down")
}

func (s *failingSink) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestPublisher_SyncMode(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer closePublisher(t, pub)

	err := pub.Emit(context.Background(), audit.Event{Action: string(audit.EventSnapshotSaved)})
	require.NoError(t, err)

	events, err := store.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, string(audit.EventSnapshotSaved), events[0].Action)
}

func TestPublisher_AsyncDrainsOnClose(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store, WithAsyncBuffer(100))

	for range 10 {
		require.NoError(t, pub.Emit(context.Background(), audit.Event{Action: string(audit.EventAttributeUpdated)}))
	}
	closePublisher(t, pub)

	events, err := store.ListAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, events, 10, "all events should be drained on close")
}

func TestPublisher_BufferFullDropsEvent(t *testing.T) {
	block := make(chan struct{})
	sink := blockingSink{release: block}
	m := NewMetrics(prometheus.NewRegistry())
	pub := NewPublisher(sink, WithAsyncBuffer(1), WithMetrics(m))

	var errs []error
	for range 5 {
		errs = append(errs, pub.Emit(context.Background(), audit.Event{Action: "a"}))
	}
	close(block)
	closePublisher(t, pub)

	assert.Contains(t, errs, ErrBufferFull)
	assert.GreaterOrEqual(t, testutil.ToFloat64(m.Dropped.WithLabelValues("buffer_full")), 1.0)
}

type blockingSink struct {
	release <-chan struct{}
}

func (s blockingSink) Emit(context.Context, audit.Event) error {
	<-s.release
	return nil
}

func TestPublisher_Timestamps(t *testing.T) {
	store := memory.NewInMemoryStore()
	pub := NewPublisher(store)
	defer closePublisher(t, pub)

	before := time.Now()
	require.NoError(t, pub.Emit(context.Background(), audit.Event{Action: "a"}))
	custom := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, pub.Emit(context.Background(), audit.Event{Action: "b", Timestamp: custom}))

	events, err := store.ListAll(context.Background())
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.False(t, events[0].Timestamp.Before(before), "unset timestamp should be stamped")
	assert.Equal(t, custom, events[1].Timestamp)
}

func TestPublisher_CancelledContextInAsyncMode(t *testing.T) {
	pub := NewPublisher(memory.NewInMemoryStore(), WithAsyncBuffer(1))
	defer closePublisher(t, pub)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, pub.Emit(ctx, audit.Event{Action: "a"}), context.Canceled)
}

func TestPublisher_CircuitBreakerStopsCallingFailingSink(t *testing.T) {
	sink := &failingSink{}
	m := NewMetrics(prometheus.NewRegistry())
	pub := NewPublisher(sink, WithCircuitBreaker(3, time.Hour), WithMetrics(m))
	defer closePublisher(t, pub)

	for range 10 {
		_ = pub.Emit(context.Background(), audit.Event{Action: "a"})
	}

	assert.Equal(t, 3, sink.Calls())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CircuitBreakerState))
	assert.Equal(t, 7.0, testutil.ToFloat64(m.Dropped.WithLabelValues("circuit_open")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.Failures))
}

func TestCircuitBreakerHalfOpen(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cb := NewCircuitBreaker(2, time.Minute)
	cb.now = func() time.Time { return now }

	cb.RecordFailure()
	assert.True(t, cb.Allow())
	cb.RecordFailure()
	assert.False(t, cb.Allow())

	now = now.Add(2 * time.Minute)
	assert.True(t, cb.Allow(), "cooldown elapsed")
	cb.RecordFailure()
	assert.True(t, cb.IsOpen(), "a single failure while half-open reopens")

	now = now.Add(2 * time.Minute)
	assert.True(t, cb.Allow())
	cb.RecordSuccess()
	assert.False(t, cb.IsOpen())
}

func TestFanout(t *testing.T) {
	a, b := memory.NewInMemoryStore(), memory.NewInMemoryStore()
	err := Fanout{a, &failingSink{}, b}.Emit(context.Background(), audit.Event{Action: "a"})
	require.Error(t, err)

	for _, s := range []*memory.InMemoryStore{a, b} {
		events, _ := s.ListAll(context.Background())
		assert.Len(t, events, 1)
	}
}

type recordingProducer struct {
	topic      string
	key, value []byte
}

func (p *recordingProducer) Produce(_ context.Context, topic string, key, value []byte) error {
	p.topic, p.key, p.value = topic, key, value
	return nil
}

func TestKafkaSink(t *testing.T) {
	producer := &recordingProducer{}
	id := uuid.New()

	err := NewKafkaSink(producer, "idmask.audit").Emit(context.Background(), audit.Event{
		ID:       id,
		Action:   string(audit.EventBindingRejected),
		Category: audit.CategorySecurity,
		Subject:  "FINGERPRINT",
	})
	require.NoError(t, err)

	assert.Equal(t, "idmask.audit", producer.topic)
	assert.Equal(t, id.String(), string(producer.key))
	var got audit.Event
	require.NoError(t, json.Unmarshal(producer.value, &got))
	assert.Equal(t, "FINGERPRINT", got.Subject)
	assert.Equal(t, audit.CategorySecurity, got.Category)
}

// stalledSink never answers on its own; it returns only when ctx ends.
type stalledSink struct {
	mu    sync.Mutex
	calls int
}

func (s *stalledSink) Emit(ctx context.Context, _ audit.Event) error {
	s.mu.Lock()
	s.calls++
	s.mu.Unlock()
	<-ctx.Done()
	return ctx.Err()
}

func (s *stalledSink) Calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

func TestPublisher_DeliveryTimeoutUnblocksWorker(t *testing.T) {
	sink := &stalledSink{}
	m := NewMetrics(prometheus.NewRegistry())
	pub := NewPublisher(sink,
		WithAsyncBuffer(4),
		WithDeliveryTimeout(20*time.Millisecond),
		WithCircuitBreaker(2, time.Hour),
		WithMetrics(m),
	)

	for range 4 {
		require.NoError(t, pub.Emit(context.Background(), audit.Event{Action: "a"}))
	}

	start := time.Now()
	closePublisher(t, pub)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, 2, sink.Calls(), "breaker opens after two timed-out deliveries")
	assert.Equal(t, 2.0, testutil.ToFloat64(m.Failures))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CircuitBreakerState))
}

// stuckSink ignores its context until released.
type stuckSink struct {
	release chan struct{}
}

func (s stuckSink) Emit(context.Context, audit.Event) error {
	<-s.release
	return nil
}

func TestPublisher_CloseIsBoundedByContext(t *testing.T) {
	sink := stuckSink{release: make(chan struct{})}
	defer close(sink.release)
	pub := NewPublisher(sink, WithAsyncBuffer(4), WithDeliveryTimeout(time.Hour))

	for range 3 {
		require.NoError(t, pub.Emit(context.Background(), audit.Event{Action: "a"}))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	start := time.Now()
	err := pub.Close(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestPublisher_EmitAfterClose(t *testing.T) {
	for name, opts := range map[string][]Option{
		"sync":  nil,
		"async": {WithAsyncBuffer(4)},
	} {
		t.Run(name, func(t *testing.T) {
			store := memory.NewInMemoryStore()
			pub := NewPublisher(store, opts...)
			closePublisher(t, pub)

			assert.ErrorIs(t, pub.Emit(context.Background(), audit.Event{Action: "a"}), ErrClosed)
			closePublisher(t, pub)

			events, err := store.ListAll(context.Background())
			require.NoError(t, err)
			assert.Empty(t, events)
		})
	}
}

func TestFanout_BreakerOnRemoteSinkKeepsLocalTrail(t *testing.T) {
	trail := memory.NewInMemoryStore()
	remote := &failingSink{}
	remotePub := NewPublisher(remote, WithCircuitBreaker(5, time.Minute))
	defer closePublisher(t, remotePub)
	fan := Fanout{trail, remotePub}

	for range 20 {
		_ = fan.Emit(context.Background(), audit.Event{Action: string(audit.EventSnapshotSaved)})
	}

	events, err := trail.ListAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, events, 20)
	assert.Equal(t, 5, remote.Calls())
}
