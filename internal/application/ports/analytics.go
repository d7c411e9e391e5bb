package ports

import (
	"context"

	"github.com/yuzvak/flashsale-engine/internal/domain/analytics"
)

type AnalyticsSink interface {
	Publish(ctx context.Context, events ...analytics.Event) error
	Close() error
}
