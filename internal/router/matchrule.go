package router

import (
	"fmt"
	"strings"

	"github.com/atsika/dbuslink/internal/wire"
)

// MatchRule is this module's own representation of a D-Bus match rule
// (spec §6 "Match-rule contract": encode/matches are delegated to a
// collaborator; see DESIGN.md for why that collaborator is hand-rolled
// here rather than borrowed from godbus/dbus/v5). It mirrors the
// field set `original_source` itself delegates to an external crate
// for the same purpose (`dbus_message_parser::match_rule::MatchRule`).
type MatchRule struct {
	Type      string // "signal", "method_call", "method_return", "error", or "" (any)
	Sender    string
	Interface string
	Member    string
	Path      string
	PathNamespace string
	Destination string
	Arg0      string
}

// ParseMatchRule parses a D-Bus match rule string such as
// "type='signal',sender='org.freedesktop.DBus',path='/org/freedesktop/DBus'"
// into a MatchRule. Unrecognized keys are ignored, matching the
// daemon-side convention of tolerating forward-compatible keys.
func ParseMatchRule(s string) (MatchRule, error) {
	var r MatchRule
	for _, field := range splitMatchRuleFields(s) {
		key, value, ok := strings.Cut(field, "=")
		if !ok {
			return MatchRule{}, fmt.Errorf("router: malformed match rule field %q", field)
		}
		value = strings.Trim(value, "'")
		switch key {
		case "type":
			r.Type = value
		case "sender":
			r.Sender = value
		case "interface":
			r.Interface = value
		case "member":
			r.Member = value
		case "path":
			r.Path = value
		case "path_namespace":
			r.PathNamespace = value
		case "destination":
			r.Destination = value
		case "arg0":
			r.Arg0 = value
		}
	}
	return r, nil
}

func splitMatchRuleFields(s string) []string {
	var fields []string
	var cur strings.Builder
	inQuote := false
	for _, c := range s {
		switch {
		case c == '\'':
			inQuote = !inQuote
			cur.WriteRune(c)
		case c == ',' && !inQuote:
			fields = append(fields, cur.String())
			cur.Reset()
		default:
			cur.WriteRune(c)
		}
	}
	if cur.Len() > 0 {
		fields = append(fields, cur.String())
	}
	return fields
}

// Matches reports whether msg satisfies every field r specifies. An
// empty field imposes no constraint.
func (r MatchRule) Matches(msg *wire.Message) bool {
	if r.Type != "" && r.Type != typeName(msg.Type) {
		return false
	}
	if r.Sender != "" && r.Sender != msg.Sender {
		return false
	}
	if r.Interface != "" && r.Interface != msg.Interface {
		return false
	}
	if r.Member != "" && r.Member != msg.Member {
		return false
	}
	if r.Path != "" && r.Path != string(msg.Path) {
		return false
	}
	if r.PathNamespace != "" && !pathUnderNamespace(string(msg.Path), r.PathNamespace) {
		return false
	}
	if r.Destination != "" && r.Destination != msg.Destination {
		return false
	}
	if r.Arg0 != "" {
		if len(msg.Body) == 0 {
			return false
		}
		arg0, ok := msg.Body[0].(string)
		if !ok || arg0 != r.Arg0 {
			return false
		}
	}
	return true
}

func typeName(t wire.Type) string {
	switch t {
	case wire.TypeMethodCall:
		return "method_call"
	case wire.TypeMethodReturn:
		return "method_return"
	case wire.TypeError:
		return "error"
	case wire.TypeSignal:
		return "signal"
	default:
		return ""
	}
}

func pathUnderNamespace(path, ns string) bool {
	if path == ns {
		return true
	}
	return strings.HasPrefix(path, strings.TrimSuffix(ns, "/")+"/")
}
