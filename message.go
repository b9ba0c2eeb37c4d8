package dbuslink

import "github.com/atsika/dbuslink/internal/wire"

// ObjectPath is a D-Bus object path, shared verbatim with the wire
// layer and (via it) with godbus/dbus/v5's own type.
type ObjectPath = wire.ObjectPath

// Message is this library's typed D-Bus message. The same value
// travels from the Facade through the Router to the Writer without
// conversion: Client.Call and a DeliveryEndpoint's channel both carry
// *Message.
type Message = wire.Message

// MessageType is the message's fixed-header type byte.
type MessageType = wire.Type

const (
	TypeMethodCall   = wire.TypeMethodCall
	TypeMethodReturn = wire.TypeMethodReturn
	TypeError        = wire.TypeError
	TypeSignal       = wire.TypeSignal
)

// MessageFlags is the message flags bitmask.
type MessageFlags = wire.Flags

const (
	FlagNoReplyExpected               = wire.FlagNoReplyExpected
	FlagNoAutoStart                   = wire.FlagNoAutoStart
	FlagAllowInteractiveAuthorization = wire.FlagAllowInteractiveAuthorization
)

// Signature is a D-Bus type signature string, e.g. "a{sv}".
type Signature = wire.Signature

// NewMethodCall builds a MethodCall message. Its serial is assigned by
// the Router at send time; leave it zero.
func NewMethodCall(path ObjectPath, iface, member, destination string, body ...interface{}) *Message {
	return wire.MethodCall(path, iface, member, destination, body...)
}

// NewSignal builds a Signal message.
func NewSignal(path ObjectPath, iface, member string, body ...interface{}) *Message {
	return wire.Signal(path, iface, member, body...)
}

// NewMethodReturn builds a reply to orig carrying body.
func NewMethodReturn(orig *Message, body ...interface{}) *Message {
	return wire.MethodReturn(orig, body...)
}

// NewError builds an Error reply to orig.
func NewError(orig *Message, name, text string) *Message {
	return wire.Error(orig, name, text)
}
