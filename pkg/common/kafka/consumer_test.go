package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/growthwatch/platform/pkg/common/models"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedReader serves queued fetch results, then blocks until cancelled.
type scriptedReader struct {
	mu        sync.Mutex
	queue     []fetchResult
	fetched   []int64
	committed []int64
	onCommit  func(offset int64)
}

type fetchResult struct {
	message kafka.Message
	err     error
}

func (r *scriptedReader) FetchMessage(ctx context.Context) (kafka.Message, error) {
	r.mu.Lock()
	if len(r.queue) > 0 {
		next := r.queue[0]
		r.queue = r.queue[1:]
		if next.err == nil {
			r.fetched = append(r.fetched, next.message.Offset)
		}
		r.mu.Unlock()
		return next.message, next.err
	}
	r.mu.Unlock()
	<-ctx.Done()
	return kafka.Message{}, ctx.Err()
}

func (r *scriptedReader) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	r.mu.Lock()
	for _, m := range msgs {
		r.committed = append(r.committed, m.Offset)
	}
	hook := r.onCommit
	r.mu.Unlock()
	if hook != nil {
		for _, m := range msgs {
			hook(m.Offset)
		}
	}
	return nil
}

func (r *scriptedReader) Close() error { return nil }

func eventMessage(t *testing.T, offset int64) kafka.Message {
	t.Helper()
	raw, err := json.Marshal(models.Event{ID: fmt.Sprintf("evt-%d", offset), Type: "measurement.recorded"})
	require.NoError(t, err)
	return kafka.Message{Offset: offset, Value: raw}
}

func testConsumer(reader messageReader) *Consumer {
	return &Consumer{reader: reader, minBackoff: time.Millisecond, maxBackoff: 4 * time.Millisecond}
}

func TestConsumeRetriesFailedMessageBeforeMovingOn(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	reader := &scriptedReader{queue: []fetchResult{
		{message: eventMessage(t, 10)},
		{message: eventMessage(t, 11)},
	}}
	reader.onCommit = func(offset int64) {
		if offset == 11 {
			cancel()
		}
	}

	var handled []string
	failures := 0
	handler := func(_ context.Context, event models.Event) error {
		handled = append(handled, event.ID)
		if event.ID == "evt-10" && failures < 2 {
			failures++
			return errors.New("redis unavailable")
		}
		return nil
	}

	err := testConsumer(reader).Consume(ctx, handler)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, []string{"evt-10", "evt-10", "evt-10", "evt-11"}, handled)
	assert.Equal(t, []int64{10, 11}, reader.committed)
	assert.Equal(t, []int64{10, 11}, reader.fetched)
}

func TestConsumeStopsWhileRetrying(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	reader := &scriptedReader{queue: []fetchResult{
		{message: eventMessage(t, 10)},
		{message: eventMessage(t, 11)},
	}}

	attempts := 0
	handler := func(context.Context, models.Event) error {
		attempts++
		if attempts == 3 {
			cancel()
		}
		return errors.New("redis unavailable")
	}

	err := testConsumer(reader).Consume(ctx, handler)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, reader.committed)
	assert.Equal(t, []int64{10}, reader.fetched)
}

func TestConsumeBacksOffOnFetchErrors(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	reader := &scriptedReader{queue: []fetchResult{
		{err: errors.New("broker down")},
		{err: errors.New("broker down")},
		{message: kafka.Message{Offset: 3, Value: []byte("not json")}},
		{message: eventMessage(t, 4)},
	}}
	reader.onCommit = func(offset int64) {
		if offset == 4 {
			cancel()
		}
	}

	var handled []string
	start := time.Now()
	err := testConsumer(reader).Consume(ctx, func(_ context.Context, event models.Event) error {
		handled = append(handled, event.ID)
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.GreaterOrEqual(t, time.Since(start), 3*time.Millisecond)
	assert.Equal(t, []string{"evt-4"}, handled)
	assert.Equal(t, []int64{3, 4}, reader.committed)
}

func TestBackoffIsCapped(t *testing.T) {
	c := &Consumer{minBackoff: 100 * time.Millisecond, maxBackoff: time.Second}
	assert.Equal(t, 100*time.Millisecond, c.backoff(1))
	assert.Equal(t, 200*time.Millisecond, c.backoff(2))
	assert.Equal(t, 800*time.Millisecond, c.backoff(4))
	assert.Equal(t, time.Second, c.backoff(5))
	assert.Equal(t, time.Second, c.backoff(50))
}
