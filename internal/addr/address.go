// Package addr decodes D-Bus server address strings into a typed list
// of addresses, the "address contract" collaborator named in spec §6.
// It generalizes the key=value transport parsing shown for unix/tcp/
// nonce-tcp addresses, adding the unixexec/autolaunch/launchd address
// kinds and an IsConnectable predicate per kind.
package addr

import (
	"fmt"
	"net/url"
	"strings"
)

// Kind identifies the transport family of an Address.
type Kind int

const (
	KindUnix Kind = iota
	KindUnixexec
	KindTCP
	KindNonceTCP
	KindAutolaunch
	KindLaunchd
)

// UnixType distinguishes the two unix address forms. Abstract-namespace
// sockets are recognized but never connectable here (spec §4.1).
type UnixType int

const (
	UnixPath UnixType = iota
	UnixAbstract
)

// Address is one decoded entry of a D-Bus address string.
type Address struct {
	Kind Kind

	// Unix / Unixexec
	UnixType UnixType
	Path     string
	Argv     []string

	// Tcp / NonceTcp
	Host      string
	Port      string
	Family    string // "", "ipv4" or "ipv6"
	NonceFile string

	// Launchd
	Env string
}

// IsConnectable reports whether this module will attempt to dial this
// address. Abstract Unix sockets, autolaunch and launchd addresses are
// recognized syntax but not connectable (spec §4.1 "out of scope").
func (a Address) IsConnectable() bool {
	switch a.Kind {
	case KindUnix:
		return a.UnixType == UnixPath
	case KindUnixexec, KindTCP, KindNonceTCP:
		return true
	case KindAutolaunch, KindLaunchd:
		return false
	default:
		return false
	}
}

// String renders an Address back into D-Bus address-string form, used
// for the round-trip property (spec §8).
func (a Address) String() string {
	esc := url.QueryEscape
	switch a.Kind {
	case KindUnix:
		if a.UnixType == UnixAbstract {
			return "unix:abstract=" + esc(a.Path)
		}
		return "unix:path=" + esc(a.Path)
	case KindUnixexec:
		parts := make([]string, 0, 1+len(a.Argv))
		parts = append(parts, "path="+esc(a.Path))
		for i, arg := range a.Argv {
			parts = append(parts, fmt.Sprintf("argv%d=%s", i, esc(arg)))
		}
		return "unixexec:" + strings.Join(parts, ",")
	case KindTCP:
		return fmt.Sprintf("tcp:host=%s,port=%s,family=%s", esc(a.Host), esc(a.Port), familyOrDefault(a.Family))
	case KindNonceTCP:
		return fmt.Sprintf("nonce-tcp:host=%s,port=%s,family=%s,noncefile=%s",
			esc(a.Host), esc(a.Port), familyOrDefault(a.Family), esc(a.NonceFile))
	case KindAutolaunch:
		return "autolaunch:"
	case KindLaunchd:
		return "launchd:env=" + esc(a.Env)
	default:
		return ""
	}
}

func familyOrDefault(f string) string {
	if f == "" {
		return "ipv4"
	}
	return f
}

// Decode parses a semicolon-separated D-Bus address string into a
// typed address list, tried in order by the transport layer (spec
// §4.1 "Address list ordering").
func Decode(s string) ([]Address, error) {
	if s == "" {
		return nil, fmt.Errorf("addr: empty address string")
	}
	var out []Address
	for _, one := range strings.Split(s, ";") {
		if one == "" {
			continue
		}
		a, err := decodeOne(one)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("addr: no addresses decoded from %q", s)
	}
	return out, nil
}

func decodeOne(s string) (Address, error) {
	idx := strings.IndexByte(s, ':')
	if idx < 0 {
		return Address{}, fmt.Errorf("addr: missing ':' in address %q", s)
	}
	kind := s[:idx]
	opts, err := decodeOptions(s[idx+1:])
	if err != nil {
		return Address{}, fmt.Errorf("addr: %w", err)
	}

	switch kind {
	case "unix":
		if v, ok := opts["abstract"]; ok {
			return Address{Kind: KindUnix, UnixType: UnixAbstract, Path: v}, nil
		}
		if v, ok := opts["path"]; ok {
			return Address{Kind: KindUnix, UnixType: UnixPath, Path: v}, nil
		}
		return Address{}, fmt.Errorf("addr: unix address requires 'path' or 'abstract'")
	case "unixexec":
		path, ok := opts["path"]
		if !ok {
			return Address{}, fmt.Errorf("addr: unixexec address requires 'path'")
		}
		var argv []string
		for i := 0; ; i++ {
			v, ok := opts[fmt.Sprintf("argv%d", i)]
			if !ok {
				break
			}
			argv = append(argv, v)
		}
		return Address{Kind: KindUnixexec, Path: path, Argv: argv}, nil
	case "tcp", "nonce-tcp":
		family, err := decodeFamily(opts["family"])
		if err != nil {
			return Address{}, err
		}
		a := Address{
			Kind:   KindTCP,
			Host:   opts["host"],
			Port:   opts["port"],
			Family: family,
		}
		if kind == "nonce-tcp" {
			a.Kind = KindNonceTCP
			a.NonceFile = opts["noncefile"]
		}
		return a, nil
	case "autolaunch":
		return Address{Kind: KindAutolaunch}, nil
	case "launchd":
		return Address{Kind: KindLaunchd, Env: opts["env"]}, nil
	default:
		return Address{}, fmt.Errorf("addr: unknown address kind %q", kind)
	}
}

func decodeFamily(f string) (string, error) {
	switch f {
	case "", "ipv4":
		return "ipv4", nil
	case "ipv6":
		return "ipv6", nil
	default:
		return "", fmt.Errorf("addr: unknown tcp family %q", f)
	}
}

func decodeOptions(s string) (map[string]string, error) {
	opts := make(map[string]string)
	if s == "" {
		return opts, nil
	}
	for _, kv := range strings.Split(s, ",") {
		pair := strings.SplitN(kv, "=", 2)
		if len(pair) != 2 {
			return nil, fmt.Errorf("malformed option %q", kv)
		}
		k, err := url.QueryUnescape(pair[0])
		if err != nil {
			return nil, err
		}
		v, err := url.QueryUnescape(pair[1])
		if err != nil {
			return nil, err
		}
		opts[k] = v
	}
	return opts, nil
}

// NetworkFamily maps an Address's Family selector to a Go "network"
// string suitable for net.Dial/net.ResolveTCPAddr.
func (a Address) NetworkFamily() string {
	if a.Family == "ipv6" {
		return "tcp6"
	}
	return "tcp4"
}
