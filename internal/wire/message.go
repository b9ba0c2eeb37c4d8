// Package wire implements the D-Bus message envelope: the typed
// representation of a message and the marshal/unmarshal walk that turns
// it into wire bytes and back. It is the hand-rolled half of the
// "codec" collaborator the rest of this module treats as external
// (see DESIGN.md for why it isn't built on top of godbus/dbus/v5).
package wire

import (
	"fmt"

	"github.com/godbus/dbus/v5"
)

// ObjectPath is a D-Bus object path. It is a direct alias of
// dbus.ObjectPath so values can cross the boundary with this module's
// one deliberately narrow dependency on godbus/dbus/v5 without a
// conversion at every call site.
type ObjectPath = dbus.ObjectPath

// Signature is a D-Bus type signature string, e.g. "a{sv}" or "(ii)".
type Signature string

// Type is the message type byte in the fixed header.
type Type byte

const (
	TypeInvalid      Type = 0
	TypeMethodCall   Type = 1
	TypeMethodReturn Type = 2
	TypeError        Type = 3
	TypeSignal       Type = 4
)

func (t Type) String() string {
	switch t {
	case TypeMethodCall:
		return "method_call"
	case TypeMethodReturn:
		return "method_return"
	case TypeError:
		return "error"
	case TypeSignal:
		return "signal"
	default:
		return "invalid"
	}
}

// Flags is the message flags bitmask.
type Flags byte

const (
	FlagNoReplyExpected               Flags = 1 << 0
	FlagNoAutoStart                   Flags = 1 << 1
	FlagAllowInteractiveAuthorization Flags = 1 << 2
)

// headerField identifies an entry in the variable header fields array.
type headerField byte

const (
	fieldInvalid      headerField = 0
	fieldPath         headerField = 1
	fieldInterface    headerField = 2
	fieldMember       headerField = 3
	fieldErrorName    headerField = 4
	fieldReplySerial  headerField = 5
	fieldDestination  headerField = 6
	fieldSender       headerField = 7
	fieldSignature    headerField = 8
	fieldUnixFDs      headerField = 9
)

const protocolVersion = 1

// Message is this module's own representation of a D-Bus message. The
// Router mutates Serial exactly once, after allocating it and before
// handing the message to the Writer (spec §4.4.1); every other field
// is set at construction time.
type Message struct {
	Type        Type
	Flags       Flags
	Serial      uint32
	ReplySerial uint32 // 0 means absent; D-Bus serials never start at 0
	Path        ObjectPath
	Interface   string
	Member      string
	ErrorName   string
	Destination string
	Sender      string
	Signature   Signature
	Body        []interface{}
}

// HasReplySerial reports whether this message carries a reply-serial
// header field (MethodReturn and Error do).
func (m *Message) HasReplySerial() bool { return m.ReplySerial != 0 }

// HasPath reports whether the Path header field is present.
func (m *Message) HasPath() bool { return m.Path != "" }

// NoReply reports whether the sender asked for no reply (§4.4.1
// "Fire-and-forget" and the NO_REPLY_EXPECTED flag).
func (m *Message) NoReply() bool { return m.Flags&FlagNoReplyExpected != 0 }

// MethodCall builds a MethodCall message. Serial is left zero; the
// Router assigns it at send time.
func MethodCall(path ObjectPath, iface, member, destination string, body ...interface{}) *Message {
	return &Message{
		Type:        TypeMethodCall,
		Path:        path,
		Interface:   iface,
		Member:      member,
		Destination: destination,
		Body:        body,
	}
}

// Signal builds a Signal message.
func Signal(path ObjectPath, iface, member string, body ...interface{}) *Message {
	return &Message{
		Type:      TypeSignal,
		Path:      path,
		Interface: iface,
		Member:    member,
		Body:      body,
	}
}

// MethodReturn builds a reply to orig carrying body.
func MethodReturn(orig *Message, body ...interface{}) *Message {
	return &Message{
		Type:        TypeMethodReturn,
		ReplySerial: orig.Serial,
		Destination: orig.Sender,
		Body:        body,
	}
}

// Error builds an Error reply to orig.
func Error(orig *Message, name, text string) *Message {
	body := []interface{}{}
	if text != "" {
		body = append(body, text)
	}
	return &Message{
		Type:        TypeError,
		ReplySerial: orig.Serial,
		Destination: orig.Sender,
		ErrorName:   name,
		Body:        body,
	}
}

// UnknownPath builds the "unknown object" error reply used by the
// Router's unhandled-method-call path (spec §4.4.3). It returns nil if
// orig did not request a reply, matching the codec contract's
// unknown_path(orig) -> Option<Message> semantics.
func UnknownPath(orig *Message) *Message {
	if orig.NoReply() {
		return nil
	}
	return Error(orig, "org.freedesktop.DBus.Error.UnknownObject",
		fmt.Sprintf("Unknown object path %q", string(orig.Path)))
}

// UnknownMember builds the "unknown method" error reply.
func UnknownMember(orig *Message) *Message {
	if orig.NoReply() {
		return nil
	}
	return Error(orig, "org.freedesktop.DBus.Error.UnknownMethod",
		fmt.Sprintf("Unknown method %q", orig.Member))
}

// InvalidArgs builds an "invalid arguments" error reply carrying text.
func InvalidArgs(orig *Message, text string) *Message {
	if orig.NoReply() {
		return nil
	}
	return Error(orig, "org.freedesktop.DBus.Error.InvalidArgs", text)
}
