package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// CommandRunRecurrence asks a worker to run one recurrence pass
const CommandRunRecurrence = "run_recurrence"

// ErrUnknownCommand is returned for a command type no handler understands
var ErrUnknownCommand = errors.New("unknown command type")

// Command is the message that travels between the scheduler and the workers
type Command struct {
	ID          string    `json:"id"`
	Type        string    `json:"type"`
	AsOf        time.Time `json:"as_of"`
	RequestedAt time.Time `json:"requested_at"`
	Source      string    `json:"source"`
}

// NewRunRecurrenceCommand builds a pass request for asOf
func NewRunRecurrenceCommand(asOf time.Time, source string) Command {
	return Command{
		ID:          uuid.NewString(),
		Type:        CommandRunRecurrence,
		AsOf:        asOf.UTC(),
		RequestedAt: time.Now().UTC(),
		Source:      source,
	}
}

// Handler processes one command. Returning an error hands the command back
// for redelivery where the transport supports it.
type Handler func(ctx context.Context, cmd Command) error

// Dispatcher enqueues commands
type Dispatcher interface {
	Dispatch(ctx context.Context, cmd Command) error
	Close() error
}

// Consumer delivers commands to a handler until ctx is cancelled
type Consumer interface {
	Consume(ctx context.Context, handler Handler) error
	Close() error
}

func decodeCommand(body []byte) (Command, error) {
	var cmd Command
	if err := json.Unmarshal(body, &cmd); err != nil {
		return Command{}, errors.Wrap(err, "failed to decode command")
	}
	if cmd.Type == "" {
		return Command{}, errors.Wrap(ErrUnknownCommand, "command has no type")
	}
	return cmd, nil
}
