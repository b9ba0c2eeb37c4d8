package router

import (
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/atsika/dbuslink/internal/wire"
)

// replySink is a PendingReply's ReplySink (spec §3): either a one-shot
// handoff to an awaited-reply caller, or a Stream endpoint that is
// also the client's delivery endpoint for correlated signals.
type replySink struct {
	oneshot chan<- *wire.Message // non-nil for the OneShot variant
	stream  *Endpoint            // non-nil for the Stream variant
}

func newOneShotSink(ch chan<- *wire.Message) replySink { return replySink{oneshot: ch} }
func newStreamSink(ep *Endpoint) replySink             { return replySink{stream: ep} }

// deliver offers msg to the sink. evict reports whether the caller
// should remove this entry from the pending-reply map: always true
// for OneShot (single-use, spec §3); for Stream, only once the
// endpoint is discovered disconnected, matching §4.4.2 ("deliver and
// retain (Stream until explicit detach)") and §9's cancellation note
// ("the Router discovers this on the next delivery attempt... removes
// the entry").
func (s replySink) deliver(msg *wire.Message) (evict bool) {
	if s.stream != nil {
		_, disconnected := s.stream.TrySend(msg)
		return disconnected
	}
	select {
	case s.oneshot <- msg:
	default:
	}
	return true
}

// cancel is called when the entry is dropped without being evicted
// through deliver — LRU capacity overflow or connection close. The
// caller observes cancellation (spec §3 ReplyCache).
func (s replySink) cancel() {
	if s.oneshot != nil {
		close(s.oneshot)
	}
	if s.stream != nil {
		s.stream.Close()
	}
}

// replyCacheCapacity is the default bound on pending replies (spec §9
// "Bounded reply cache (1024)"), overridable via
// Config.ReplyCacheCapacity (the root package's WithReplyCacheCapacity
// option).
const replyCacheCapacity = 1024

// pendingReplies is the serial -> ReplySink LRU (spec §3 ReplyCache).
type pendingReplies struct {
	cache *lru.Cache[uint32, replySink]

	// removing is set while remove runs: golang-lru invokes the
	// eviction callback for Remove as well, and an entry removed after
	// deliver must not be cancelled.
	removing bool
}

func newPendingReplies(capacity int, onEvict func(serial uint32, sink replySink)) *pendingReplies {
	if capacity <= 0 {
		capacity = replyCacheCapacity
	}
	p := &pendingReplies{}
	cache, err := lru.NewWithEvict(capacity, func(serial uint32, sink replySink) {
		if !p.removing {
			onEvict(serial, sink)
		}
	})
	if err != nil {
		// Only possible for a non-positive size, excluded above.
		panic(err)
	}
	p.cache = cache
	return p
}

func (p *pendingReplies) install(serial uint32, sink replySink) {
	p.cache.Add(serial, sink)
}

func (p *pendingReplies) lookup(serial uint32) (replySink, bool) {
	return p.cache.Get(serial)
}

func (p *pendingReplies) remove(serial uint32) {
	p.removing = true
	p.cache.Remove(serial)
	p.removing = false
}

// clear removes every entry, invoking the eviction callback for each
// (used by Close, spec §4.4.5, to cancel every outstanding reply).
func (p *pendingReplies) clear() {
	p.cache.Purge()
}
