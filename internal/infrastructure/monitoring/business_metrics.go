package monitoring

import (
	"time"

	domainErrors "github.com/yuzvak/flashsale-engine/internal/domain/errors"
)

// PurchaseMetrics tracks one allocation attempt from entry to outcome.
type PurchaseMetrics struct {
	start time.Time
}

func NewPurchaseMetrics() *PurchaseMetrics {
	PurchaseAttemptsTotal.Inc()
	return &PurchaseMetrics{start: time.Now()}
}

func (m *PurchaseMetrics) RecordSuccess() {
	PurchaseSuccessTotal.Inc()
	PurchaseDuration.Observe(time.Since(m.start).Seconds())
}

func (m *PurchaseMetrics) RecordReplay() {
	IdempotentReplaysTotal.Inc()
	PurchaseDuration.Observe(time.Since(m.start).Seconds())
}

// RecordFailure labels the failure with the error kind so the reason label
// stays low-cardinality.
func (m *PurchaseMetrics) RecordFailure(err error) {
	PurchaseFailureTotal.WithLabelValues(string(domainErrors.KindOf(err))).Inc()
	PurchaseDuration.Observe(time.Since(m.start).Seconds())
}
