package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuzvak/flashsale-engine/internal/domain/analytics"
	"github.com/yuzvak/flashsale-engine/internal/pkg/logger"
)

type fakeWriter struct {
	mu       sync.Mutex
	failures int
	calls    int
	messages []kafka.Message
	closed   bool
}

func (w *fakeWriter) WriteMessages(ctx context.Context, msgs ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.calls++
	if w.failures > 0 {
		w.failures--
		return errors.New("broker unavailable")
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *fakeWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.closed = true
	return nil
}

func (w *fakeWriter) snapshot() ([]kafka.Message, int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]kafka.Message(nil), w.messages...), w.calls
}

func purchaseEvent(id string) analytics.Event {
	return analytics.Event{
		ID:          id,
		Type:        analytics.EventPurchaseCommitted,
		FlashSaleID: "sale-1",
		Units:       2,
		OccurredAt:  time.Date(2026, 6, 1, 9, 0, 0, 0, time.UTC),
	}
}

func TestKafkaSink_PublishAndClose(t *testing.T) {
	writer := &fakeWriter{}
	sink := newKafkaSink(writer, 16, logger.NewNop())

	require.NoError(t, sink.Publish(context.Background(), purchaseEvent("e1"), purchaseEvent("e2")))
	require.NoError(t, sink.Close())

	messages, _ := writer.snapshot()
	require.Len(t, messages, 2)
	assert.True(t, writer.closed)

	msg := messages[0]
	assert.Equal(t, []byte("sale-1"), msg.Key)
	require.Len(t, msg.Headers, 1)
	assert.Equal(t, "event_type", msg.Headers[0].Key)
	assert.Equal(t, []byte(analytics.EventPurchaseCommitted), msg.Headers[0].Value)

	var decoded analytics.Event
	require.NoError(t, json.Unmarshal(msg.Value, &decoded))
	assert.Equal(t, "e1", decoded.ID)
	assert.Equal(t, 2, decoded.Units)
}

func TestKafkaSink_RetriesTransientFailures(t *testing.T) {
	writer := &fakeWriter{failures: 1}
	sink := newKafkaSink(writer, 16, logger.NewNop())

	require.NoError(t, sink.Publish(context.Background(), purchaseEvent("e1")))
	require.NoError(t, sink.Close())

	messages, calls := writer.snapshot()
	assert.Len(t, messages, 1)
	assert.Equal(t, 2, calls)
}

func TestKafkaSink_GivesUpAfterMaxElapsed(t *testing.T) {
	writer := &fakeWriter{failures: 1000}
	sink := newKafkaSink(writer, 16, logger.NewNop())
	sink.maxElapsed = time.Millisecond

	require.NoError(t, sink.Publish(context.Background(), purchaseEvent("e1")))
	require.NoError(t, sink.Close())

	messages, calls := writer.snapshot()
	assert.Empty(t, messages)
	assert.GreaterOrEqual(t, calls, 1)
}

func TestKafkaSink_PublishAfterCloseIsDropped(t *testing.T) {
	writer := &fakeWriter{}
	sink := newKafkaSink(writer, 16, logger.NewNop())
	require.NoError(t, sink.Close())
	require.NoError(t, sink.Close())

	assert.NoError(t, sink.Publish(context.Background(), purchaseEvent("late")))

	messages, _ := writer.snapshot()
	assert.Empty(t, messages)
}

func TestLogSink(t *testing.T) {
	sink := NewLogSink(logger.NewNop())
	assert.NoError(t, sink.Publish(context.Background(), purchaseEvent("e1")))
	assert.NoError(t, sink.Close())
}
