package router

import (
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/atsika/dbuslink/internal/wire"
)

// signalEntry is one (optional filter, endpoint) pair in a
// SignalSubscription list (spec §3). The filter's semantics are
// "suppress if true" (spec §4.4.2).
type signalEntry struct {
	filter func(*wire.Message) bool
	ep     *Endpoint
}

// matchEntry is one (rule, endpoint) pair in the MatchRuleSubscription
// list (spec §3), evaluated against every inbound message.
type matchEntry struct {
	rule MatchRule
	ep   *Endpoint
}

// tables holds the Router's exclusively-owned routing state (spec §3
// "Ownership": the Router exclusively owns all routing tables). It is
// never accessed from any goroutine but the Router's event loop.
type tables struct {
	paths      map[wire.ObjectPath]*Endpoint
	interfaces map[string]*Endpoint
	signals    map[wire.ObjectPath][]signalEntry
	matchRules []matchEntry
}

func newTables() *tables {
	return &tables{
		paths:      make(map[wire.ObjectPath]*Endpoint),
		interfaces: make(map[string]*Endpoint),
		signals:    make(map[wire.ObjectPath][]signalEntry),
	}
}

func (t *tables) attachPath(path wire.ObjectPath, ep *Endpoint) {
	t.paths[path] = ep
}

func (t *tables) detachPath(path wire.ObjectPath) {
	delete(t.paths, path)
}

func (t *tables) detachPathByEndpoint(id uuid.UUID) {
	for p, ep := range t.paths {
		if ep.ID == id {
			delete(t.paths, p)
		}
	}
}

func (t *tables) attachInterface(iface string, ep *Endpoint) {
	t.interfaces[iface] = ep
}

func (t *tables) detachInterface(iface string) {
	delete(t.interfaces, iface)
}

func (t *tables) attachSignal(path wire.ObjectPath, filter func(*wire.Message) bool, ep *Endpoint) {
	t.signals[path] = append(t.signals[path], signalEntry{filter: filter, ep: ep})
}

func (t *tables) detachSignalByEndpoint(id uuid.UUID) {
	for path, list := range t.signals {
		kept := list[:0]
		for _, e := range list {
			if e.ep.ID != id {
				kept = append(kept, e)
			}
		}
		if len(kept) == 0 {
			delete(t.signals, path)
		} else {
			t.signals[path] = kept
		}
	}
}

func (t *tables) attachMatchRules(rules []MatchRule, ep *Endpoint) {
	for _, r := range rules {
		t.matchRules = append(t.matchRules, matchEntry{rule: r, ep: ep})
	}
}

func (t *tables) detachMatchRulesByEndpoint(id uuid.UUID) {
	kept := t.matchRules[:0]
	for _, e := range t.matchRules {
		if e.ep.ID != id {
			kept = append(kept, e)
		}
	}
	t.matchRules = kept
}

// clear drops every table entry, closing nothing itself — callers
// (Close, spec §4.4.5) are responsible for closing the endpoints they
// own before or after calling this.
func (t *tables) clear() {
	t.paths = make(map[wire.ObjectPath]*Endpoint)
	t.interfaces = make(map[string]*Endpoint)
	t.signals = make(map[wire.ObjectPath][]signalEntry)
	t.matchRules = nil
}

// empty reports whether no subscriptions of any kind remain, used by
// the Router's spontaneous-shutdown drain (spec §4.4.5: "continues to
// drain inbound messages until there are no live subscriptions").
func (t *tables) empty() bool {
	return len(t.paths) == 0 && len(t.interfaces) == 0 && len(t.signals) == 0 && len(t.matchRules) == 0
}

// listUnderPath implements the ListUnderPath command (spec §4.4.4):
// for every registered path route that strictly extends query by at
// least one segment, contribute the first additional segment.
func (t *tables) listUnderPath(query wire.ObjectPath) []string {
	set := make(map[string]struct{})
	q := string(query)
	for p := range t.paths {
		if child, ok := firstExtraSegment(string(p), q); ok {
			set[child] = struct{}{}
		}
	}
	out := make([]string, 0, len(set))
	for s := range set {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

// firstExtraSegment reports the first path segment of p beyond query,
// if p strictly extends query by at least one segment.
func firstExtraSegment(p, query string) (string, bool) {
	if query != "/" && !strings.HasPrefix(query, "/") {
		return "", false
	}
	trimmedQuery := strings.TrimSuffix(query, "/")
	if !strings.HasPrefix(p, trimmedQuery+"/") {
		return "", false
	}
	rest := strings.TrimPrefix(p, trimmedQuery+"/")
	if rest == "" {
		return "", false
	}
	if idx := strings.IndexByte(rest, '/'); idx >= 0 {
		return rest[:idx], true
	}
	return rest, true
}
