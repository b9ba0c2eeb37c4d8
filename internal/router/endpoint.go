package router

import (
	"sync"

	"github.com/google/uuid"

	"github.com/atsika/dbuslink/internal/wire"
)

// Endpoint is a DeliveryEndpoint (spec §3): a bounded channel to a
// subscriber plus a stable identity that outlives individual send
// operations, used by the DetachByEndpoint family of commands (spec
// §9 Design Notes). The identity is a uuid.UUID minted by NewEndpoint,
// the same role the teacher's aznet.Dial gives a connection ID.
type Endpoint struct {
	ID uuid.UUID
	C  chan *wire.Message

	done     chan struct{}
	closeOne sync.Once
}

// NewEndpoint creates a subscriber-owned delivery endpoint with the
// given channel capacity. The subscriber must call Close when it is
// no longer reading from C, so the Router can prune its subscriptions
// instead of accumulating dropped sends forever.
func NewEndpoint(capacity int) *Endpoint {
	return &Endpoint{
		ID:   uuid.New(),
		C:    make(chan *wire.Message, capacity),
		done: make(chan struct{}),
	}
}

// Close marks the endpoint as disconnected. Safe to call more than
// once, and from both the subscriber and the Router's own shutdown
// path, the same way internal/queue.Unbounded's Close is.
func (e *Endpoint) Close() { e.closeOne.Do(func() { close(e.done) }) }

// Done reports when the endpoint has been closed, either by the
// subscriber (explicit Close) or by the Router during shutdown.
func (e *Endpoint) Done() <-chan struct{} { return e.done }

// TrySend attempts a non-blocking delivery. delivered is true iff the
// message was placed on C. disconnected is true iff the subscriber has
// called Close; a full-but-alive channel reports (false, false) — spec
// §5 "a 'full' try-send is treated as a normal transient condition".
func (e *Endpoint) TrySend(msg *wire.Message) (delivered, disconnected bool) {
	select {
	case <-e.done:
		return false, true
	default:
	}
	select {
	case e.C <- msg:
		return true, false
	default:
		return false, false
	}
}
