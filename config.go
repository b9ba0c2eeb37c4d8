package dbuslink

import "github.com/sirupsen/logrus"

const (
	// defaultReplyCacheCapacity is the bounded pending-reply cache
	// size (spec §3 ReplyCache, §9 "Bounded reply cache (1024)").
	defaultReplyCacheCapacity = 1024

	// defaultEndpointCapacity is the channel capacity of the delivery
	// endpoints Dial creates for the Peer and Introspectable handlers.
	defaultEndpointCapacity = 16
)

// Option is a functional option for Dial/DialSession/DialSystem.
type Option func(*config)

// config holds construction-time settings. The zero value is not
// meaningful; build one with applyOptions, which seeds library
// defaults before running the supplied Options.
type config struct {
	log     logrus.FieldLogger
	metrics Metrics

	replyCacheCapacity int
	endpointCapacity   int

	negotiateUnixFD bool

	introspectable bool
	peer           bool
}

func defaultConfig() *config {
	return &config{
		log:                logrus.StandardLogger(),
		metrics:            NewDefaultMetrics(),
		replyCacheCapacity: defaultReplyCacheCapacity,
		endpointCapacity:   defaultEndpointCapacity,
	}
}

func applyOptions(opts []Option) *config {
	cfg := defaultConfig()
	for _, o := range opts {
		o(cfg)
	}
	return cfg
}

// WithLogger sets a custom structured logger. If not provided, the
// standard logrus logger is used.
func WithLogger(log logrus.FieldLogger) Option {
	return func(c *config) {
		if log != nil {
			c.log = log
		}
	}
}

// WithMetrics sets a custom Metrics implementation for tracking
// connection statistics. If not provided, DefaultMetrics is used.
func WithMetrics(m Metrics) Option {
	return func(c *config) {
		if m != nil {
			c.metrics = m
		}
	}
}

// WithReplyCacheCapacity overrides the bounded pending-reply cache's
// capacity (spec §9 flags this as an implementer's choice to expose;
// the source does not make it configurable).
func WithReplyCacheCapacity(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.replyCacheCapacity = n
		}
	}
}

// WithEndpointCapacity sets the default channel capacity for delivery
// endpoints created implicitly by Attach* convenience methods.
func WithEndpointCapacity(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.endpointCapacity = n
		}
	}
}

// WithNegotiateUnixFD requests file-descriptor passing during the
// handshake (spec §4.1; Unix transport only).
func WithNegotiateUnixFD() Option {
	return func(c *config) { c.negotiateUnixFD = true }
}

// WithIntrospectable attaches an interface-route handler for
// org.freedesktop.DBus.Introspectable (spec §6 Configuration).
func WithIntrospectable() Option {
	return func(c *config) { c.introspectable = true }
}

// WithPeer attaches an interface-route handler for
// org.freedesktop.DBus.Peer (spec §6 Configuration).
func WithPeer() Option {
	return func(c *config) { c.peer = true }
}
