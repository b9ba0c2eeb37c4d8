package dbuslink

import "errors"

// Sentinel errors for configuration and connection-state failures.
// Protocol and Routing failures carry enough context to identify the
// offending item and are returned as *ProtocolError and *RoutingError
// below.
var (
	// ErrNoSessionAddress is returned by DialSession when
	// DBUS_SESSION_BUS_ADDRESS is unset (spec §6 Environment).
	ErrNoSessionAddress = errors.New("dbuslink: DBUS_SESSION_BUS_ADDRESS is not set")

	// ErrUnsupportedAddress names an address class the implementation
	// deliberately does not support. Dial does not return it: an
	// unsupported address (abstract unix, autolaunch, launchd) is
	// logged and skipped, and Dial fails with the transport's
	// no-connectable-address error once no address in the list works.
	ErrUnsupportedAddress = errors.New("dbuslink: unsupported address class")

	// ErrClosed is returned by Send, Call and CallStream after the
	// connection has been closed, explicitly or by fatal transport
	// loss. The Attach*/Detach* methods return no error and have no
	// effect on a closed Client; ListUnderPath then returns nil.
	ErrClosed = errors.New("dbuslink: connection closed")

	// ErrCancelled is returned to an awaited-reply caller whose
	// pending entry was evicted from the bounded reply cache, or whose
	// connection was closed before a reply arrived (spec §5
	// "Cancellation and timeouts").
	ErrCancelled = errors.New("dbuslink: reply cancelled")
)

// HandshakeError describes a SASL handshake failure (spec §7 Handshake
// category): NoMechanism, AuthFailed, or UnixFdRefused. Dial does not
// return it: a handshake failure on one address is logged and the next
// address is tried, and Dial fails with the transport's
// no-connectable-address error when none succeeds.
type HandshakeError struct {
	Kind     string // "no_mechanism", "auth_failed", "unix_fd_refused"
	Response string // the verbatim, non-success response from the daemon
}

func (e *HandshakeError) Error() string {
	if e.Response == "" {
		return "dbuslink: handshake failed: " + e.Kind
	}
	return "dbuslink: handshake failed: " + e.Kind + ": " + e.Response
}

// ProtocolError reports a protocol-level failure (spec §7 Protocol
// category): an Error reply to the Hello bootstrap or to RequestName.
type ProtocolError struct {
	Kind      string // "hello_failed", "request_name_failed"
	ErrorName string // the D-Bus error name carried by the Error reply
}

func (e *ProtocolError) Error() string {
	if e.ErrorName == "" {
		return "dbuslink: protocol error: " + e.Kind
	}
	return "dbuslink: protocol error: " + e.Kind + ": " + e.ErrorName
}

// RoutingError reports a failed Client operation together with the
// item it concerned: an address string Dial could not decode, or a
// RequestName reply whose body is not a single uint32.
type RoutingError struct {
	Op   string // "Dial", "RequestName"
	Item string // the address string or bus name, if any
	Err  error
}

func (e *RoutingError) Error() string {
	if e.Item == "" {
		return "dbuslink: " + e.Op + ": " + e.Err.Error()
	}
	return "dbuslink: " + e.Op + " " + e.Item + ": " + e.Err.Error()
}

func (e *RoutingError) Unwrap() error { return e.Err }
