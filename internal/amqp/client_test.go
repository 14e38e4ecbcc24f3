package amqp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rabbitmq/amqp091-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExponentialBackoff(t *testing.T) {
	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{-1, time.Second},
		{0, time.Second},
		{1, 2 * time.Second},
		{3, 8 * time.Second},
		{4, 16 * time.Second},
		{5, maxBackoff},
		{12, maxBackoff},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("attempt_%d", tt.attempt), func(t *testing.T) {
			assert.Equal(t, tt.want, exponentialBackoff(tt.attempt))
		})
	}
}

func TestIsConnectionError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"refused", errors.New("dial tcp: connection refused"), true},
		{"eof", errors.New("unexpected EOF"), true},
		{"broken pipe", errors.New("write: broken pipe"), true},
		{"closed channel", fmt.Errorf("publish: %w", errChannelClosed), true},
		{"library closed", fmt.Errorf("publish: %w", amqp091.ErrClosed), true},
		{"marshal", errors.New("json: unsupported value"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, isConnectionError(tt.err))
		})
	}
}

func TestClient_CircuitBreaker(t *testing.T) {
	c := &Client{}
	assert.False(t, c.isCircuitOpen(), "closed initially")

	for i := 0; i < maxFailures-1; i++ {
		c.recordFailure()
	}
	assert.False(t, c.isCircuitOpen(), "below the failure threshold")

	c.recordFailure()
	assert.True(t, c.isCircuitOpen())
	assert.Equal(t, int32(StateOpen), atomic.LoadInt32(&c.state))

	c.failureMu.Lock()
	c.lastFailure = time.Now().Add(-openTimeout - time.Second)
	c.failureMu.Unlock()
	assert.False(t, c.isCircuitOpen(), "trial publish allowed after the timeout")
	assert.Equal(t, int32(StateHalfOpen), atomic.LoadInt32(&c.state))

	c.recordFailure()
	assert.Equal(t, int32(StateOpen), atomic.LoadInt32(&c.state), "failed trial publish reopens")

	c.recordSuccess()
	assert.False(t, c.isCircuitOpen())
	assert.Zero(t, atomic.LoadInt64(&c.failureCount))
}

func TestClient_PublishShortCircuits(t *testing.T) {
	t.Run("open breaker drops the event", func(t *testing.T) {
		c := &Client{exchangeName: "ledger"}
		atomic.StoreInt32(&c.state, StateOpen)
		c.lastFailure = time.Now()

		err := c.Publish(context.Background(), NewEvent(EventTransactionCreated, "alice", 1))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "circuit breaker is open")
		assert.Contains(t, err.Error(), "transaction.created")
	})

	t.Run("cancelled context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		err := (&Client{}).Publish(ctx, NewEvent(EventBudgetCreated, "alice", 1))
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestPublishOnce_ClosedChannel(t *testing.T) {
	err := (&Client{}).publishOnce(context.Background(), EventImportCommitted, []byte("{}"))
	assert.ErrorIs(t, err, errChannelClosed)
}

func TestNewEvent(t *testing.T) {
	e := NewEvent(EventBudgetDeleted, "alice", 42)

	assert.Equal(t, EventBudgetDeleted, e.Type)
	assert.Equal(t, "alice", e.UserID)
	assert.Equal(t, int64(42), e.EntityID)
	assert.NotEmpty(t, e.ID)
	assert.WithinDuration(t, time.Now(), e.Timestamp, time.Second)
	assert.NotEqual(t, e.ID, NewEvent(EventBudgetDeleted, "alice", 42).ID)
}

func TestEvent_JSON(t *testing.T) {
	e := NewImportCommitted("alice", 7)
	e.Timestamp = time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	data, err := e.ToJSON()
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "import.committed", decoded["type"])
	assert.Equal(t, "alice", decoded["user_id"])
	assert.Equal(t, float64(7), decoded["count"])
	assert.NotContains(t, decoded, "entity_id")
	assert.Equal(t, "2024-01-01T12:00:00Z", decoded["timestamp"])
}
