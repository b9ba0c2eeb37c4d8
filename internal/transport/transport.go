// Package transport establishes the byte-oriented stream for a
// Connection: it walks a decoded address list in order, dials the
// first connectable address, performs the SASL handshake over it, and
// hands back a ready-to-frame net.Conn (spec §4.1).
package transport

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"os/exec"
	"strings"

	"github.com/atsika/dbuslink/internal/addr"
	"github.com/atsika/dbuslink/internal/handshake"
)

var (
	// ErrNoConnectable is returned when no address in the list yielded
	// a working connection.
	ErrNoConnectable = errors.New("transport: could not connect to any address")
	// ErrNotConnectable is returned for an address the address decoder
	// marked non-connectable (e.g. listen-only, abstract Unix socket).
	ErrNotConnectable = errors.New("transport: address is not connectable")
	// ErrUnsupported is returned for address kinds this module
	// deliberately does not dial (autolaunch, launchd).
	ErrUnsupported = errors.New("transport: address kind not supported")
	// ErrFamilyMismatch is returned when a resolved TCP address does
	// not match the address's requested IPv4/IPv6 family.
	ErrFamilyMismatch = errors.New("transport: resolved address family mismatch")
	// ErrNonceSize is returned when a nonce file is not exactly 16
	// bytes.
	ErrNonceSize = errors.New("transport: nonce file must be exactly 16 bytes")
)

// Options configures how Connect dials and hands off each address.
type Options struct {
	NegotiateUnixFD bool
	Logf            func(format string, args ...interface{})
}

func (o Options) logf(format string, args ...interface{}) {
	if o.Logf != nil {
		o.Logf(format, args...)
	}
}

// Connect tries each address in list in order, performing the
// handshake over the first one that dials successfully. It returns the
// connection and the address that succeeded, or ErrNoConnectable if
// every address failed (spec §4.1 "Address list ordering" — partial
// progress such as a successful dial followed by a failed handshake
// counts as failure for that address).
func Connect(list []addr.Address, opt Options) (net.Conn, addr.Address, error) {
	for _, a := range list {
		conn, err := connectOne(a, opt)
		if err != nil {
			opt.logf("transport: could not connect to %s: %v", a.String(), err)
			continue
		}
		return conn, a, nil
	}
	return nil, addr.Address{}, ErrNoConnectable
}

func connectOne(a addr.Address, opt Options) (net.Conn, error) {
	if !a.IsConnectable() {
		switch a.Kind {
		case addr.KindAutolaunch, addr.KindLaunchd:
			return nil, ErrUnsupported
		default:
			return nil, ErrNotConnectable
		}
	}

	switch a.Kind {
	case addr.KindUnix:
		return dialUnix(a, opt)
	case addr.KindUnixexec:
		return dialUnixexec(a, opt)
	case addr.KindTCP:
		return dialTCP(a, nil, opt)
	case addr.KindNonceTCP:
		nonce, err := readNonceFile(a.NonceFile)
		if err != nil {
			return nil, err
		}
		return dialTCP(a, nonce, opt)
	default:
		return nil, ErrUnsupported
	}
}

func dialUnix(a addr.Address, opt Options) (net.Conn, error) {
	conn, err := net.Dial("unix", a.Path)
	if err != nil {
		return nil, fmt.Errorf("transport: dial unix %s: %w", a.Path, err)
	}
	if err := handshake.Perform(conn, handshake.Options{NegotiateUnixFD: opt.NegotiateUnixFD, Logf: opt.Logf}); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func dialUnixexec(a addr.Address, opt Options) (net.Conn, error) {
	out, err := exec.Command(a.Path, a.Argv...).Output()
	if err != nil {
		return nil, fmt.Errorf("transport: unixexec %s: %w", a.Path, err)
	}
	list, err := addr.Decode(strings.TrimSpace(string(out)))
	if err != nil {
		return nil, fmt.Errorf("transport: unixexec stdout: %w", err)
	}
	conn, _, err := Connect(list, opt)
	return conn, err
}

func dialTCP(a addr.Address, nonce []byte, opt Options) (net.Conn, error) {
	if ip := net.ParseIP(a.Host); ip != nil {
		sa := net.JoinHostPort(a.Host, a.Port)
		return tcpConnectAddress(a.NetworkFamily(), sa, ip, a.Family, nonce, opt)
	}

	addrs, err := net.LookupHost(a.Host)
	if err != nil {
		return nil, fmt.Errorf("transport: resolve %s: %w", a.Host, err)
	}
	var lastErr error
	for _, resolved := range addrs {
		ip := net.ParseIP(resolved)
		sa := net.JoinHostPort(resolved, a.Port)
		conn, err := tcpConnectAddress(a.NetworkFamily(), sa, ip, a.Family, nonce, opt)
		if err != nil {
			lastErr = err
			opt.logf("transport: could not connect to %s: %v", sa, err)
			continue
		}
		return conn, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("transport: no addresses resolved for %s", a.Host)
	}
	return nil, lastErr
}

func tcpConnectAddress(network, socketAddr string, ip net.IP, family string, nonce []byte, opt Options) (net.Conn, error) {
	if !familyMatches(ip, family) {
		return nil, ErrFamilyMismatch
	}
	conn, err := net.Dial(network, socketAddr)
	if err != nil {
		return nil, fmt.Errorf("transport: dial tcp %s: %w", socketAddr, err)
	}
	if len(nonce) > 0 {
		if _, err := conn.Write(nonce); err != nil {
			conn.Close()
			return nil, fmt.Errorf("transport: write nonce: %w", err)
		}
	}
	if err := handshake.Perform(conn, handshake.Options{Logf: opt.Logf}); err != nil {
		conn.Close()
		return nil, err
	}
	return conn, nil
}

func familyMatches(ip net.IP, family string) bool {
	if ip == nil {
		return true
	}
	switch family {
	case "ipv6":
		return ip.To4() == nil
	default:
		return ip.To4() != nil
	}
}

// readNonceFile reads exactly 16 bytes from path, the precondition for
// nonce-TCP preauthentication (spec §4.1). A short read means the file
// is too small; a successful extra read after the 16th byte means it's
// too large. Both are reported as ErrNonceSize.
func readNonceFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("transport: open noncefile: %w", err)
	}
	defer f.Close()

	nonce := make([]byte, 16)
	if _, err := io.ReadFull(f, nonce); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNonceSize, err)
	}
	var extra [1]byte
	if n, _ := f.Read(extra[:]); n > 0 {
		return nil, ErrNonceSize
	}
	return nonce, nil
}
