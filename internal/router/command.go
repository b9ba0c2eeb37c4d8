package router

import (
	"github.com/google/uuid"

	"github.com/atsika/dbuslink/internal/wire"
)

// Command is the sum type submitted through the Facade's command
// queue (spec §4.4.4, plus the send variants of §4.4.1). Only the
// fields that belong to a given Kind are meaningful for it; this
// mirrors the teacher's options.go preference for small data-carrying
// structs over an interface hierarchy, adapted to a discriminated
// union since the Router must switch on many more cases here.
type Command struct {
	Kind Kind

	// SendMessage / SendMessageOneShot / SendMessageStream
	Message *wire.Message
	Reply   chan<- *wire.Message // OneShot: single reply, closed on cancellation
	Serial  chan<- uint32        // Stream: assigned serial, sent before PendingReply is installed

	// AttachPath / DetachPath
	Path wire.ObjectPath

	// AttachInterface / DetachInterface
	Interface string

	// AttachSignal
	Filter func(*wire.Message) bool

	// AttachMatchRules
	Rules []MatchRule

	// any Attach* variant
	Endpoint *Endpoint

	// any DetachByEndpoint variant
	EndpointID uuid.UUID

	// ListUnderPath
	Result chan<- []string

	// Close
	Done chan<- struct{}
}

// Kind discriminates Command. Named after the spec's command table
// (§4.4.4) plus the three send variants (§4.4.1).
type Kind int

const (
	SendMessage Kind = iota
	SendMessageOneShot
	SendMessageStream
	AttachPath
	DetachPath
	DetachPathByEndpoint
	AttachInterface
	DetachInterface
	AttachSignal
	DetachSignalByEndpoint
	AttachMatchRules
	DetachMatchRulesByEndpoint
	ListUnderPath
	Close
)
