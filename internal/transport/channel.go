package transport

import (
	"context"
	"errors"
	"time"

	"github.com/danmuck/drivectl/internal/protocol/scl"
)

var (
	ErrNotConnected = errors.New("transport: not connected")
	ErrConnect      = errors.New("transport: connect failed")
)

// Channel is a duplex link to one drive. Implementations are not safe for
// concurrent exchanges; the caller serializes them.
type Channel interface {
	Connect(ctx context.Context) error
	// Send frames text for the link and writes it.
	Send(text string) error
	// ReadResponse reads until a terminator or timeout; see scl.ReadFramed.
	ReadResponse(timeout time.Duration) (string, error)
	// Discard drops unread input left over from earlier exchanges.
	Discard() error
	Close() error
	Framing() scl.Framing
	Target() string
}

// IsTimeout reports a read that ended on its deadline rather than a link fault.
func IsTimeout(err error) bool {
	return scl.IsTimeout(err)
}
