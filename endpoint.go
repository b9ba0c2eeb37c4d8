package dbuslink

import "github.com/atsika/dbuslink/internal/router"

// Endpoint is a DeliveryEndpoint (spec §3): a bounded channel carrying
// *Message plus a stable identity that outlives individual sends, used
// by the DetachByEndpoint family of Client methods.
type Endpoint = router.Endpoint

// NewEndpoint creates a subscriber-owned delivery endpoint with the
// given channel capacity. The subscriber must call Close when it is
// done reading, so the Client can prune the corresponding subscription
// instead of accumulating dropped deliveries forever.
func NewEndpoint(capacity int) *Endpoint { return router.NewEndpoint(capacity) }

// MatchRule is a parsed D-Bus match rule, used locally to decide
// whether an inbound message is forwarded to a match subscription.
type MatchRule = router.MatchRule

// ParseMatchRule parses a match-rule string such as
// "type='signal',sender='org.freedesktop.DBus'" into a MatchRule.
func ParseMatchRule(s string) (MatchRule, error) { return router.ParseMatchRule(s) }
