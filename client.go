package dbuslink

import (
	"io"
	"os"
	"runtime"

	"github.com/sirupsen/logrus"

	"github.com/atsika/dbuslink/internal/addr"
	"github.com/atsika/dbuslink/internal/queue"
	"github.com/atsika/dbuslink/internal/router"
	"github.com/atsika/dbuslink/internal/transport"
	"github.com/atsika/dbuslink/introspect"
	"github.com/atsika/dbuslink/peer"
)

const defaultSystemBusAddress = "unix:path=/var/run/dbus/system_bus_socket"

// Client is the Public Facade (spec §4.5): a handle over a Connection
// that translates typed calls into commands submitted to the Router.
// A Client is safe for concurrent use by multiple goroutines; every
// method funnels through the command queue, which is itself safe for
// concurrent Push.
type Client struct {
	address string
	cfg     *config
	log     *logrus.Entry

	conn       io.ReadWriteCloser
	commands   *queue.Unbounded[router.Command]
	inbound    *queue.Unbounded[*Message]
	outbound   *queue.Unbounded[*Message]
	writerDone chan struct{}
	r          *router.Router
}

// Dial decodes a D-Bus server address string, connects to the first
// connectable address that succeeds (spec §4.1 "Address list
// ordering"), performs the SASL handshake, and completes the Hello
// bootstrap (spec §4.5).
func Dial(address string, opts ...Option) (*Client, error) {
	list, err := addr.Decode(address)
	if err != nil {
		return nil, &RoutingError{Op: "Dial", Item: address, Err: err}
	}
	return dial(address, list, opts)
}

// DialSession connects using DBUS_SESSION_BUS_ADDRESS (spec §6
// Environment). It fails with ErrNoSessionAddress if unset.
func DialSession(opts ...Option) (*Client, error) {
	address := os.Getenv("DBUS_SESSION_BUS_ADDRESS")
	if address == "" {
		return nil, ErrNoSessionAddress
	}
	return Dial(address, opts...)
}

// DialSystem connects using DBUS_SYSTEM_BUS_ADDRESS, defaulting to the
// standard system bus socket path if unset (spec §6 Environment).
func DialSystem(opts ...Option) (*Client, error) {
	address := os.Getenv("DBUS_SYSTEM_BUS_ADDRESS")
	if address == "" {
		address = defaultSystemBusAddress
	}
	return Dial(address, opts...)
}

func dial(address string, list []addr.Address, opts []Option) (*Client, error) {
	cfg := applyOptions(opts)

	rawConn, chosen, err := transport.Connect(list, transport.Options{
		NegotiateUnixFD: cfg.negotiateUnixFD,
		Logf:            loggerLogf(cfg.log),
	})
	if err != nil {
		return nil, err
	}
	conn := newCountingConn(rawConn, cfg.metrics)

	c := &Client{
		address:    chosen.String(),
		cfg:        cfg,
		log:        cfg.log.WithField("component", "client"),
		conn:       conn,
		commands:   queue.NewUnbounded[router.Command](),
		inbound:    queue.NewUnbounded[*Message](),
		outbound:   queue.NewUnbounded[*Message](),
		writerDone: make(chan struct{}),
	}

	c.r = router.New(c.commands, c.inbound, c.outbound, c.writerDone, router.Config{
		ReplyCacheCapacity: cfg.replyCacheCapacity,
		Log:                cfg.log,
		Metrics:            cfg.metrics,
	})
	go c.r.Run()
	go router.RunWriter(c.conn, c.outbound, c.writerDone, cfg.log)
	go router.RunReader(c.conn, c.inbound, cfg.log)

	// Rust's original owns the Router's command sender through the
	// Facade's Drop impl: letting the last handle go out of scope closes
	// the channel and the Router drains itself. Go has no Drop, so a
	// Client abandoned without a Close call would otherwise leak its
	// goroutines; the finalizer is the closest equivalent, closing the
	// command queue exactly as an explicit Close does and letting Run's
	// spontaneous-closure branch take it from there.
	runtime.SetFinalizer(c, (*Client).finalize)

	if cfg.peer {
		peer.Attach(c, cfg.endpointCapacity)
	}
	if cfg.introspectable {
		introspect.Attach(c, cfg.endpointCapacity)
	}

	if err := c.hello(); err != nil {
		c.Close()
		return nil, err
	}
	return c, nil
}

// loggerLogf adapts a logrus.FieldLogger to the printf-style callback
// internal/transport uses for address-attempt diagnostics.
func loggerLogf(log logrus.FieldLogger) func(string, ...interface{}) {
	return func(format string, args ...interface{}) {
		log.Debugf(format, args...)
	}
}

// hello implements the Facade's construction-time bootstrap (spec
// §4.5): call the daemon's Hello method and await the response. A
// non-Error reply completes setup; an Error reply fails construction.
func (c *Client) hello() error {
	reply, err := c.Call(NewMethodCall("/org/freedesktop/DBus", "org.freedesktop.DBus", "Hello", "org.freedesktop.DBus"))
	if err != nil {
		return err
	}
	if reply.Type == TypeError {
		return &ProtocolError{Kind: "hello_failed", ErrorName: reply.ErrorName}
	}
	return nil
}

// Address returns the address string this Client connected to.
func (c *Client) Address() string { return c.address }

// Send submits msg fire-and-forget (spec §4.4.1): the caller observes
// only enqueue success, never delivery.
func (c *Client) Send(msg *Message) error {
	select {
	case <-c.r.Stopped():
		return ErrClosed
	default:
	}
	c.commands.Push(router.Command{Kind: router.SendMessage, Message: msg})
	return nil
}

// Call sends msg and awaits exactly one reply (spec §4.4.1 "Awaited
// reply"). It returns ErrClosed if the connection is already closed,
// and ErrCancelled if the pending entry is evicted or the connection
// closes before a reply arrives.
func (c *Client) Call(msg *Message) (*Message, error) {
	select {
	case <-c.r.Stopped():
		return nil, ErrClosed
	default:
	}

	reply := make(chan *Message, 1)
	c.commands.Push(router.Command{Kind: router.SendMessageOneShot, Message: msg, Reply: reply})

	select {
	case m, ok := <-reply:
		if !ok {
			return nil, ErrCancelled
		}
		return m, nil
	case <-c.r.Stopped():
		return nil, ErrClosed
	}
}

// CallStream sends msg expecting a reply plus possibly many correlated
// signals (spec §4.4.1 "Streamed reply"). It returns the assigned
// serial as soon as it is known; deliveries (the MethodReturn/Error
// and any correlated traffic routed to ep by the caller's own match
// rules) arrive on ep.
func (c *Client) CallStream(msg *Message, ep *Endpoint) (uint32, error) {
	select {
	case <-c.r.Stopped():
		return 0, ErrClosed
	default:
	}

	serial := make(chan uint32, 1)
	c.commands.Push(router.Command{Kind: router.SendMessageStream, Message: msg, Serial: serial, Endpoint: ep})

	select {
	case s := <-serial:
		return s, nil
	case <-c.r.Stopped():
		return 0, ErrClosed
	}
}

// AttachPath registers ep to receive every MethodCall addressed to
// path, replacing any prior registration (spec §4.4.4).
func (c *Client) AttachPath(path ObjectPath, ep *Endpoint) {
	c.commands.Push(router.Command{Kind: router.AttachPath, Path: path, Endpoint: ep})
}

// DetachPath removes path's registration, if any (idempotent).
func (c *Client) DetachPath(path ObjectPath) {
	c.commands.Push(router.Command{Kind: router.DetachPath, Path: path})
}

// DetachPathByEndpoint removes any path entry pointing at ep.
func (c *Client) DetachPathByEndpoint(ep *Endpoint) {
	c.commands.Push(router.Command{Kind: router.DetachPathByEndpoint, EndpointID: ep.ID})
}

// AttachInterface registers ep to receive every MethodCall whose
// interface is iface and whose path did not already consume it,
// replacing any prior registration (spec §4.4.4).
func (c *Client) AttachInterface(iface string, ep *Endpoint) {
	c.commands.Push(router.Command{Kind: router.AttachInterface, Interface: iface, Endpoint: ep})
}

// DetachInterface removes iface's registration, if any.
func (c *Client) DetachInterface(iface string) {
	c.commands.Push(router.Command{Kind: router.DetachInterface, Interface: iface})
}

// AttachSignal appends ep to the signal-subscription list for path. If
// filter is non-nil, a signal is suppressed for this subscriber when
// filter returns true (spec §4.4.2 "suppress if true").
func (c *Client) AttachSignal(path ObjectPath, filter func(*Message) bool, ep *Endpoint) {
	c.commands.Push(router.Command{Kind: router.AttachSignal, Path: path, Filter: filter, Endpoint: ep})
}

// DetachSignalByEndpoint removes every signal-subscription entry
// pointing at ep, across all paths.
func (c *Client) DetachSignalByEndpoint(ep *Endpoint) {
	c.commands.Push(router.Command{Kind: router.DetachSignalByEndpoint, EndpointID: ep.ID})
}

// AttachMatchRules appends ep to the match-rule subscription list; ep
// receives a copy of every inbound message matching any rule in rules.
func (c *Client) AttachMatchRules(rules []MatchRule, ep *Endpoint) {
	c.commands.Push(router.Command{Kind: router.AttachMatchRules, Rules: rules, Endpoint: ep})
}

// DetachMatchRulesByEndpoint removes every match-rule subscription
// entry pointing at ep.
func (c *Client) DetachMatchRulesByEndpoint(ep *Endpoint) {
	c.commands.Push(router.Command{Kind: router.DetachMatchRulesByEndpoint, EndpointID: ep.ID})
}

// ListUnderPath returns the set of immediate child name segments among
// registered path routes strictly under path (spec §4.4.4), used by
// the Introspectable handler.
func (c *Client) ListUnderPath(path ObjectPath) []string {
	result := make(chan []string, 1)
	c.commands.Push(router.Command{Kind: router.ListUnderPath, Path: path, Result: result})
	select {
	case r := <-result:
		return r
	case <-c.r.Stopped():
		return nil
	}
}

// RequestName calls org.freedesktop.DBus.RequestName and decodes its
// reply (spec's supplemented RequestName helper, original_source's
// name_flag.rs).
func (c *Client) RequestName(name string, flags NameFlags) (RequestNameReply, error) {
	reply, err := c.Call(NewMethodCall("/org/freedesktop/DBus", "org.freedesktop.DBus", "RequestName", "org.freedesktop.DBus", name, uint32(flags)))
	if err != nil {
		return 0, err
	}
	if reply.Type == TypeError {
		return 0, &ProtocolError{Kind: "request_name_failed", ErrorName: reply.ErrorName}
	}
	if len(reply.Body) != 1 {
		return 0, &RoutingError{Op: "RequestName", Item: name, Err: ErrCancelled}
	}
	switch v := reply.Body[0].(type) {
	case uint32:
		return RequestNameReply(v), nil
	default:
		return 0, &RoutingError{Op: "RequestName", Item: name, Err: ErrCancelled}
	}
}

// Close implements spec §4.4.5: stop command intake, drain the
// outbound queue, close every subscription endpoint, and abandon every
// pending reply. Close blocks until the Router has finished shutting
// down. It is safe to call more than once.
func (c *Client) Close() error {
	runtime.SetFinalizer(c, nil)
	done := make(chan struct{})
	select {
	case <-c.r.Stopped():
		return nil
	default:
		c.commands.Push(router.Command{Kind: router.Close, Done: done})
	}
	select {
	case <-done:
	case <-c.r.Stopped():
	}
	return c.conn.Close()
}

// Stopped is closed once the underlying connection has shut down,
// explicitly or by fatal transport loss (spec §7).
func (c *Client) Stopped() <-chan struct{} { return c.r.Stopped() }

// finalize is the Drop-equivalent safety net (see dial): it closes
// command intake, mirroring a spontaneous Facade closure rather than a
// transport failure, so the Router keeps draining inbound traffic
// until every subscription has gone quiet (spec §4.4.5) instead of
// tearing everything down immediately. It then waits for that shutdown
// to finish before closing the connection, since unlike Close it
// cannot block the caller to do so itself.
func (c *Client) finalize() {
	c.commands.Close()
	go func() {
		<-c.r.Stopped()
		c.conn.Close()
	}()
}
