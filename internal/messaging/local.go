package messaging

import (
	"context"
	"sync"

	"example.com/backstage/invoicing/internal/metrics"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// ErrBusClosed is returned when dispatching to a closed local bus
var ErrBusClosed = errors.New("command bus is closed")

// LocalBus is an in-process command queue for single-node deployments and tests.
// Commands that fail are logged and dropped.
type LocalBus struct {
	commands chan Command
	metrics  *metrics.Metrics
	once     sync.Once
	closed   chan struct{}
}

// NewLocalBus creates a bus buffering up to size commands
func NewLocalBus(size int, collector *metrics.Metrics) *LocalBus {
	if size < 1 {
		size = 1
	}
	return &LocalBus{
		commands: make(chan Command, size),
		metrics:  collector,
		closed:   make(chan struct{}),
	}
}

// Dispatch enqueues cmd, blocking while the buffer is full
func (b *LocalBus) Dispatch(ctx context.Context, cmd Command) error {
	select {
	case <-b.closed:
		return ErrBusClosed
	default:
	}

	select {
	case b.commands <- cmd:
		b.metrics.IncrementCounter(metrics.CommandsDispatched)
		log.Debug().Str("command_id", cmd.ID).Str("type", cmd.Type).Msg("Command dispatched")
		return nil
	case <-b.closed:
		return ErrBusClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Consume runs handler for every command until ctx is cancelled or the bus closes
func (b *LocalBus) Consume(ctx context.Context, handler Handler) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-b.closed:
			return nil
		case cmd := <-b.commands:
			err := handler(ctx, cmd)
			b.metrics.RecordOutcome(metrics.CommandsProcessed, err)
			if err != nil {
				log.Error().Err(err).Str("command_id", cmd.ID).Str("type", cmd.Type).Msg("Command failed")
			}
		}
	}
}

// Close stops consumers; pending commands are discarded
func (b *LocalBus) Close() error {
	b.once.Do(func() { close(b.closed) })
	return nil
}
