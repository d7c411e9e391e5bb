package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	domainErrors "github.com/yuzvak/flashsale-engine/internal/domain/errors"
	"github.com/yuzvak/flashsale-engine/internal/pkg/clock"
	"github.com/yuzvak/flashsale-engine/internal/pkg/logger"
)

type fakeBuffer struct {
	mu       sync.Mutex
	pending  map[string]int64
	restored map[string]int64
}

func newFakeBuffer(pending map[string]int64) *fakeBuffer {
	return &fakeBuffer{pending: pending, restored: make(map[string]int64)}
}

func (b *fakeBuffer) DrainViews(ctx context.Context) (map[string]int64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	drained := b.pending
	b.pending = make(map[string]int64)
	return drained, nil
}

func (b *fakeBuffer) RestoreViews(ctx context.Context, flashSaleID string, views int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.restored[flashSaleID] += views
	return nil
}

type fakeStore struct {
	mu      sync.Mutex
	added   map[string]int64
	failing map[string]error
}

func (s *fakeStore) AddViews(ctx context.Context, flashSaleID string, views int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.failing[flashSaleID]; err != nil {
		return err
	}
	s.added[flashSaleID] += views
	return nil
}

type fakeReconciler struct {
	mu      sync.Mutex
	cutoffs []time.Time
}

func (r *fakeReconciler) ReconcileEndedSales(ctx context.Context, endedBefore time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cutoffs = append(r.cutoffs, endedBefore)
	return 1, nil
}

func (r *fakeReconciler) calls() []time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]time.Time(nil), r.cutoffs...)
}

func TestViewFlusher_Flush(t *testing.T) {
	buffer := newFakeBuffer(map[string]int64{"live": 5, "deleted": 3, "flaky": 2})
	store := &fakeStore{
		added: make(map[string]int64),
		failing: map[string]error{
			"deleted": domainErrors.ErrSaleNotFound,
			"flaky":   errors.New("connection reset"),
		},
	}
	flusher := NewViewFlusher(buffer, store, nil, clock.NewRealClock(), logger.NewNop(), time.Minute)

	flushed := flusher.Flush(context.Background())

	assert.Equal(t, int64(5), flushed)
	assert.Equal(t, map[string]int64{"live": 5}, store.added)
	assert.Equal(t, map[string]int64{"flaky": 2}, buffer.restored)
}

func TestViewFlusher_NilBuffer(t *testing.T) {
	flusher := NewViewFlusher(nil, nil, nil, clock.NewRealClock(), logger.NewNop(), time.Minute)
	assert.Zero(t, flusher.Flush(context.Background()))
}

func TestViewFlusher_ReconcilesOnTick(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	reconciler := &fakeReconciler{}
	flusher := NewViewFlusher(nil, nil, reconciler, clock.NewMockClock(now), logger.NewNop(), 5*time.Millisecond)

	done := make(chan struct{})
	go func() {
		flusher.Start(context.Background())
		close(done)
	}()

	require.Eventually(t, func() bool { return len(reconciler.calls()) > 0 }, time.Second, 5*time.Millisecond)
	flusher.Stop()
	<-done

	assert.Equal(t, now.Add(-time.Minute), reconciler.calls()[0])
}

func TestViewFlusher_FlushesOnCancel(t *testing.T) {
	buffer := newFakeBuffer(map[string]int64{"live": 7})
	store := &fakeStore{added: make(map[string]int64)}
	flusher := NewViewFlusher(buffer, store, nil, clock.NewRealClock(), logger.NewNop(), time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		flusher.Start(ctx)
		close(done)
	}()
	cancel()
	<-done

	assert.Equal(t, int64(7), store.added["live"])
}
