package messaging

import (
	"context"
	"testing"
	"time"

	"example.com/backstage/invoicing/internal/metrics"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLocalBusDeliversCommands(t *testing.T) {
	collector := metrics.NewMetrics()
	bus := NewLocalBus(4, collector)
	defer bus.Close()

	asOf := time.Date(2026, 3, 1, 2, 0, 0, 0, time.UTC)
	require.NoError(t, bus.Dispatch(context.Background(), NewRunRecurrenceCommand(asOf, "test")))
	require.NoError(t, bus.Dispatch(context.Background(), NewRunRecurrenceCommand(asOf, "test")))

	ctx, cancel := context.WithCancel(context.Background())
	received := make(chan Command, 2)
	done := make(chan error, 1)
	handled := 0
	go func() {
		done <- bus.Consume(ctx, func(_ context.Context, cmd Command) error {
			handled++
			received <- cmd
			if handled == 2 {
				return errors.New("handler failed")
			}
			return nil
		})
	}()

	for i := 0; i < 2; i++ {
		select {
		case cmd := <-received:
			assert.Equal(t, CommandRunRecurrence, cmd.Type)
			assert.True(t, asOf.Equal(cmd.AsOf))
			assert.NotEmpty(t, cmd.ID)
		case <-time.After(2 * time.Second):
			t.Fatal("command not delivered")
		}
	}

	cancel()
	require.NoError(t, <-done)
	assert.Equal(t, int64(2), collector.GetCounters()[metrics.CommandsDispatched])
}

func TestLocalBusClosed(t *testing.T) {
	bus := NewLocalBus(1, nil)
	require.NoError(t, bus.Close())
	require.NoError(t, bus.Close())

	err := bus.Dispatch(context.Background(), NewRunRecurrenceCommand(time.Now(), "test"))
	assert.ErrorIs(t, err, ErrBusClosed)
	assert.NoError(t, bus.Consume(context.Background(), func(context.Context, Command) error { return nil }))
}

func TestLocalBusDispatchHonoursContext(t *testing.T) {
	bus := NewLocalBus(1, nil)
	defer bus.Close()
	require.NoError(t, bus.Dispatch(context.Background(), NewRunRecurrenceCommand(time.Now(), "test")))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := bus.Dispatch(ctx, NewRunRecurrenceCommand(time.Now(), "test"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestDecodeCommand(t *testing.T) {
	cmd, err := decodeCommand([]byte(`{"id":"c1","type":"run_recurrence","as_of":"2026-03-01T02:00:00Z"}`))
	require.NoError(t, err)
	assert.Equal(t, "c1", cmd.ID)
	assert.Equal(t, 2026, cmd.AsOf.Year())

	_, err = decodeCommand([]byte(`{"id":"c2"}`))
	assert.ErrorIs(t, err, ErrUnknownCommand)

	_, err = decodeCommand([]byte(`not json`))
	assert.Error(t, err)
}
