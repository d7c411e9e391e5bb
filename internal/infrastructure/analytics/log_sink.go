package analytics

import (
	"context"

	"github.com/yuzvak/flashsale-engine/internal/domain/analytics"
	"github.com/yuzvak/flashsale-engine/internal/pkg/logger"
)

// LogSink writes events to the debug log. It is used when no brokers are
// configured.
type LogSink struct {
	log *logger.Logger
}

func NewLogSink(log *logger.Logger) *LogSink {
	return &LogSink{log: log}
}

func (s *LogSink) Publish(ctx context.Context, events ...analytics.Event) error {
	for _, event := range events {
		s.log.Debug("Analytics event",
			"event_type", event.Type,
			"event_id", event.ID,
			"flash_sale_id", event.FlashSaleID,
			"units", event.Units,
		)
	}
	return nil
}

func (s *LogSink) Close() error {
	return nil
}
