// Package router implements the connection core's single event loop:
// the component that owns the serial counter, the pending-reply cache,
// and every routing table, and mediates between the Writer/Reader
// tasks and the Facade's command queue.
package router

import (
	"github.com/sirupsen/logrus"

	"github.com/atsika/dbuslink/internal/queue"
	"github.com/atsika/dbuslink/internal/wire"
)

// Router runs the single-threaded event loop described in spec §4.4:
// it is the sole mutator of the serial counter, the pending-reply
// cache, and every routing table, giving it an implicit lock over all
// of them without any external synchronization (spec §9).
type Router struct {
	log *logrus.Entry

	commands *queue.Unbounded[Command]
	inbound  *queue.Unbounded[*wire.Message]
	outbound *queue.Unbounded[*wire.Message]

	// writerDone is closed by the Writer task on a fatal encode/write
	// failure, observed here as transport loss (spec §4.2, §7).
	writerDone <-chan struct{}

	serial  uint32
	pending *pendingReplies
	tables  *tables

	metrics Metrics

	stopped chan struct{}
}

// Metrics is the subset of the root package's Metrics interface the
// Router feeds directly, satisfied structurally so this package never
// imports the root package (which imports this one).
type Metrics interface {
	IncrementMessagesSent()
	IncrementMessagesReceived()
	IncrementDrops()
}

type noopMetrics struct{}

func (noopMetrics) IncrementMessagesSent()     {}
func (noopMetrics) IncrementMessagesReceived() {}
func (noopMetrics) IncrementDrops()            {}

// Config collects the tunables a Router needs beyond its queues.
type Config struct {
	ReplyCacheCapacity int
	Log                logrus.FieldLogger
	Metrics            Metrics
}

// New builds a Router. commands/inbound are consumed here; outbound is
// produced here and consumed by the Writer task; writerDone is closed
// by the Writer on fatal failure.
func New(commands *queue.Unbounded[Command], inbound, outbound *queue.Unbounded[*wire.Message], writerDone <-chan struct{}, cfg Config) *Router {
	log := cfg.Log
	if log == nil {
		log = logrus.StandardLogger()
	}
	metrics := cfg.Metrics
	if metrics == nil {
		metrics = noopMetrics{}
	}
	r := &Router{
		log:        log.WithField("component", "router"),
		commands:   commands,
		inbound:    inbound,
		outbound:   outbound,
		writerDone: writerDone,
		tables:     newTables(),
		metrics:    metrics,
		stopped:    make(chan struct{}),
	}
	r.pending = newPendingReplies(cfg.ReplyCacheCapacity, r.onReplyEvicted)
	return r
}

// Stopped is closed once Run returns, so callers (the Facade) can
// detect connection loss and fail further calls with Closed (spec §7).
func (r *Router) Stopped() <-chan struct{} { return r.stopped }

// Run is the event loop (spec §4.4): it waits on inbound messages,
// commands, and closure signals, handling exactly one source at a
// time. It returns once the connection is closed, explicitly or by
// fatal transport loss.
func (r *Router) Run() {
	defer close(r.stopped)

	commandsOut := r.commands.Out()
	for {
		select {
		case cmd, ok := <-commandsOut:
			if !ok {
				// Spontaneous Facade closure (spec §4.4.5): stop taking
				// new commands but keep draining inbound traffic until
				// every subscription has been detached. Reached when a
				// Client is garbage collected without an explicit Close
				// (its finalizer closes this queue directly), the Go
				// stand-in for the original's Drop-triggered sender
				// closure.
				commandsOut = nil
				if r.tables.empty() {
					r.shutdown()
					return
				}
				continue
			}
			if cmd.Kind == Close {
				r.shutdown()
				if cmd.Done != nil {
					close(cmd.Done)
				}
				return
			}
			r.handleCommand(cmd)
			if commandsOut == nil && r.tables.empty() {
				r.shutdown()
				return
			}

		case msg, ok := <-r.inbound.Out():
			if !ok {
				// Reader closure: EOF or fatal decode error (spec §4.3,
				// §7). Treated as transport loss.
				r.shutdown()
				return
			}
			r.dispatchInbound(msg)
			if commandsOut == nil && r.tables.empty() {
				r.shutdown()
				return
			}

		case <-r.writerDone:
			// Fatal write failure (spec §4.2, §7): transport loss.
			r.shutdown()
			return
		}
	}
}

// shutdown implements spec §4.4.5 and the transport-loss path of §7:
// stop producing outbound traffic, drop every subscription (closing
// each endpoint so subscribers observe end-of-stream), and abandon
// every pending reply (cancellation, not a delivered message).
func (r *Router) shutdown() {
	r.commands.Close()
	r.outbound.Close()
	r.closeAllEndpoints()
	r.tables.clear()
	r.pending.clear()
}

func (r *Router) closeAllEndpoints() {
	closed := make(map[*Endpoint]bool)
	closeOnce := func(ep *Endpoint) {
		if ep != nil && !closed[ep] {
			ep.Close()
			closed[ep] = true
		}
	}
	for _, ep := range r.tables.paths {
		closeOnce(ep)
	}
	for _, ep := range r.tables.interfaces {
		closeOnce(ep)
	}
	for _, list := range r.tables.signals {
		for _, e := range list {
			closeOnce(e.ep)
		}
	}
	for _, e := range r.tables.matchRules {
		closeOnce(e.ep)
	}
}

func (r *Router) onReplyEvicted(serial uint32, sink replySink) {
	r.log.WithField("serial", serial).Warn("router: pending reply evicted from bounded cache")
	r.metrics.IncrementDrops()
	sink.cancel()
}

// --- outbound path (spec §4.4.1) ---

func (r *Router) handleCommand(cmd Command) {
	switch cmd.Kind {
	case SendMessage, SendMessageOneShot, SendMessageStream:
		r.sendMessage(cmd)
	case AttachPath:
		r.tables.attachPath(cmd.Path, cmd.Endpoint)
	case DetachPath:
		r.tables.detachPath(cmd.Path)
	case DetachPathByEndpoint:
		r.tables.detachPathByEndpoint(cmd.EndpointID)
	case AttachInterface:
		r.tables.attachInterface(cmd.Interface, cmd.Endpoint)
	case DetachInterface:
		r.tables.detachInterface(cmd.Interface)
	case AttachSignal:
		r.tables.attachSignal(cmd.Path, cmd.Filter, cmd.Endpoint)
	case DetachSignalByEndpoint:
		r.tables.detachSignalByEndpoint(cmd.EndpointID)
	case AttachMatchRules:
		r.tables.attachMatchRules(cmd.Rules, cmd.Endpoint)
	case DetachMatchRulesByEndpoint:
		r.tables.detachMatchRulesByEndpoint(cmd.EndpointID)
	case ListUnderPath:
		result := r.tables.listUnderPath(cmd.Path)
		if cmd.Result != nil {
			cmd.Result <- result
		}
	}
}

func (r *Router) sendMessage(cmd Command) {
	msg := cmd.Message
	if msg.Sender != "" && msg.Destination != "" && msg.Sender == msg.Destination {
		r.log.WithField("destination", msg.Destination).Error("router: dropping self-addressed message")
		r.metrics.IncrementDrops()
		return
	}

	r.serial++
	msg.Serial = r.serial

	switch cmd.Kind {
	case SendMessageOneShot:
		r.pending.install(msg.Serial, newOneShotSink(cmd.Reply))
	case SendMessageStream:
		if cmd.Serial != nil {
			cmd.Serial <- msg.Serial
		}
		r.pending.install(msg.Serial, newStreamSink(cmd.Endpoint))
	}

	r.metrics.IncrementMessagesSent()
	r.outbound.Push(msg)
}

// --- inbound path (spec §4.4.2) ---

func (r *Router) dispatchInbound(msg *wire.Message) {
	r.metrics.IncrementMessagesReceived()
	r.fanOutMatchRules(msg)

	switch msg.Type {
	case wire.TypeMethodReturn, wire.TypeError:
		r.dispatchReply(msg)
	case wire.TypeSignal:
		r.dispatchSignal(msg)
	case wire.TypeMethodCall:
		r.dispatchMethodCall(msg)
	default:
		r.log.WithField("type", msg.Type).Warn("router: dropping message of unrecognized type")
		r.metrics.IncrementDrops()
	}
}

func (r *Router) fanOutMatchRules(msg *wire.Message) {
	kept := r.tables.matchRules[:0]
	for _, e := range r.tables.matchRules {
		if e.rule.Matches(msg) {
			if _, disconnected := e.ep.TrySend(msg); disconnected {
				continue
			}
		}
		kept = append(kept, e)
	}
	r.tables.matchRules = kept
}

func (r *Router) dispatchReply(msg *wire.Message) {
	if !msg.HasReplySerial() {
		r.log.Warn("router: dropping reply-typed message with no reply-serial")
		r.metrics.IncrementDrops()
		return
	}
	sink, ok := r.pending.lookup(msg.ReplySerial)
	if !ok {
		r.log.WithField("reply_serial", msg.ReplySerial).Warn("router: dropping unmatched reply")
		r.metrics.IncrementDrops()
		return
	}
	if sink.deliver(msg) {
		r.pending.remove(msg.ReplySerial)
	}
}

func (r *Router) dispatchSignal(msg *wire.Message) {
	if msg.Path == "" || msg.Interface == "" || msg.Member == "" {
		r.log.Warn("router: dropping malformed signal")
		r.metrics.IncrementDrops()
		return
	}
	list, ok := r.tables.signals[msg.Path]
	if !ok {
		r.log.WithField("path", msg.Path).Warn("router: dropping signal with no subscribers")
		r.metrics.IncrementDrops()
		return
	}
	kept := list[:0]
	for _, e := range list {
		if e.filter != nil && e.filter(msg) {
			kept = append(kept, e)
			continue
		}
		_, disconnected := e.ep.TrySend(msg)
		if disconnected {
			continue
		}
		kept = append(kept, e)
	}
	if len(kept) == 0 {
		delete(r.tables.signals, msg.Path)
	} else {
		r.tables.signals[msg.Path] = kept
	}
}

func (r *Router) dispatchMethodCall(msg *wire.Message) {
	if msg.Path == "" {
		r.log.Warn("router: dropping method call with no object path")
		r.metrics.IncrementDrops()
		return
	}
	if r.tryPathRoute(msg) {
		return
	}
	if r.tryInterfaceRoute(msg) {
		return
	}
	r.respondUnknownPath(msg)
}

func (r *Router) tryPathRoute(msg *wire.Message) (consumed bool) {
	ep, ok := r.tables.paths[msg.Path]
	if !ok {
		return false
	}
	delivered, disconnected := ep.TrySend(msg)
	switch {
	case disconnected:
		r.tables.detachPath(msg.Path)
		return false
	case delivered:
		return true
	default: // full but alive: spec §4.4.2 treats this as unhandled
		r.respondUnknownPath(msg)
		return true
	}
}

func (r *Router) tryInterfaceRoute(msg *wire.Message) (consumed bool) {
	if msg.Interface == "" {
		return false
	}
	ep, ok := r.tables.interfaces[msg.Interface]
	if !ok {
		return false
	}
	delivered, disconnected := ep.TrySend(msg)
	switch {
	case disconnected:
		r.tables.detachInterface(msg.Interface)
		return false
	case delivered:
		return true
	default:
		r.respondUnknownPath(msg)
		return true
	}
}

// respondUnknownPath implements spec §4.4.3.
func (r *Router) respondUnknownPath(msg *wire.Message) {
	reply := wire.UnknownPath(msg)
	if reply == nil {
		return
	}
	r.serial++
	reply.Serial = r.serial
	r.outbound.Push(reply)
}
