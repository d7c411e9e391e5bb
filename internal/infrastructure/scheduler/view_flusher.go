package scheduler

import (
	"context"
	"errors"
	"time"

	domainErrors "github.com/yuzvak/flashsale-engine/internal/domain/errors"
	"github.com/yuzvak/flashsale-engine/internal/infrastructure/monitoring"
	"github.com/yuzvak/flashsale-engine/internal/pkg/clock"
	"github.com/yuzvak/flashsale-engine/internal/pkg/logger"
)

type ViewBuffer interface {
	DrainViews(ctx context.Context) (map[string]int64, error)
	RestoreViews(ctx context.Context, flashSaleID string, views int64) error
}

type ViewStore interface {
	AddViews(ctx context.Context, flashSaleID string, views int64) error
}

type SalesReconciler interface {
	ReconcileEndedSales(ctx context.Context, endedBefore time.Time) (int64, error)
}

// ViewFlusher periodically moves buffered view counts into the database and
// repairs total_sales on sales that have ended. Either half may be nil.
type ViewFlusher struct {
	buffer     ViewBuffer
	store      ViewStore
	reconciler SalesReconciler
	clock      clock.Clock
	logger     *logger.Logger
	interval   time.Duration
	grace      time.Duration
	stopChan   chan struct{}
}

func NewViewFlusher(
	buffer ViewBuffer,
	store ViewStore,
	reconciler SalesReconciler,
	clk clock.Clock,
	logger *logger.Logger,
	interval time.Duration,
) *ViewFlusher {
	return &ViewFlusher{
		buffer:     buffer,
		store:      store,
		reconciler: reconciler,
		clock:      clk,
		logger:     logger,
		interval:   interval,
		grace:      time.Minute,
		stopChan:   make(chan struct{}),
	}
}

func (f *ViewFlusher) Start(ctx context.Context) {
	f.logger.Info("Starting view flusher", "interval", f.interval.String())

	ticker := time.NewTicker(f.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			f.Flush(context.Background())
			f.logger.Info("View flusher stopped")
			return
		case <-f.stopChan:
			f.Flush(context.Background())
			f.logger.Info("View flusher stopped")
			return
		case <-ticker.C:
			f.Flush(ctx)
			f.reconcile(ctx)
		}
	}
}

func (f *ViewFlusher) Stop() {
	close(f.stopChan)
}

// Flush writes every drained count; counts that fail to persist go back into
// the buffer for the next tick.
func (f *ViewFlusher) Flush(ctx context.Context) int64 {
	if f.buffer == nil {
		return 0
	}

	drained, err := f.buffer.DrainViews(ctx)
	if err != nil {
		f.logger.Error("Failed to drain buffered views", "error", err)
	}

	var flushed int64
	for saleID, views := range drained {
		if err := f.store.AddViews(ctx, saleID, views); err != nil {
			if errors.Is(err, domainErrors.ErrSaleNotFound) {
				f.logger.Debug("Dropping views of deleted sale", "flash_sale_id", saleID, "views", views)
				continue
			}
			f.logger.Warn("Failed to flush views", "error", err, "flash_sale_id", saleID, "views", views)
			if err := f.buffer.RestoreViews(ctx, saleID, views); err != nil {
				f.logger.Error("Failed to restore buffered views", "error", err, "flash_sale_id", saleID, "views", views)
			}
			continue
		}
		flushed += views
	}

	if flushed > 0 {
		monitoring.ViewsFlushedTotal.Add(float64(flushed))
		f.logger.Debug("Flushed buffered views", "views", flushed, "sales", len(drained))
	}
	return flushed
}

func (f *ViewFlusher) reconcile(ctx context.Context) {
	if f.reconciler == nil {
		return
	}

	fixed, err := f.reconciler.ReconcileEndedSales(ctx, f.clock.Now().Add(-f.grace))
	if err != nil {
		f.logger.Error("Failed to reconcile sale totals", "error", err)
		return
	}
	if fixed > 0 {
		f.logger.Warn("Reconciled drifted sale totals", "sales", fixed)
	}
}
