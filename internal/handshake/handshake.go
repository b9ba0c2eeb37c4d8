// Package handshake implements the SASL preamble that precedes the
// binary D-Bus message stream: an optional nonce, a NUL byte, a
// CRLF-terminated line exchange negotiating EXTERNAL or ANONYMOUS
// authentication, optional unix-fd negotiation, and BEGIN.
package handshake

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
)

const lineTerminator = "\r\n"

// anonymousHex is hex("dbus-async"), the fixed credential literal the
// upstream client library sends for ANONYMOUS auth.
const anonymousHex = "646275732d6173796e63"

var (
	// ErrNoMechanism is returned when the daemon advertises no usable
	// SASL mechanism in its REJECTED response.
	ErrNoMechanism = errors.New("handshake: no mechanism advertised")
	// ErrNoAuthentication is returned when every advertised mechanism
	// this client supports (EXTERNAL, ANONYMOUS) was rejected.
	ErrNoAuthentication = errors.New("handshake: no supported mechanism authenticated")
	// ErrUnixFDRefused is returned when the daemon does not agree to
	// unix-fd passing after it was requested.
	ErrUnixFDRefused = errors.New("handshake: daemon refused unix fd negotiation")
)

// Options configures a single handshake attempt.
type Options struct {
	// Nonce, when non-nil, is written before the NUL byte (nonce-TCP
	// preauthentication, spec §4.1).
	Nonce []byte
	// NegotiateUnixFD requests NEGOTIATE_UNIX_FD; only meaningful over
	// a Unix domain socket.
	NegotiateUnixFD bool
	// Logf receives per-mechanism failures, mirroring the upstream
	// client's "log and try the next mechanism" behavior. May be nil.
	Logf func(format string, args ...interface{})
}

// handshake carries the buffered view over the transport for the
// duration of the line exchange, mirroring the teacher's stateful
// handshake-object idiom (NewNoiseClient/NewNoiseServer) even though
// the exchange itself is plaintext SASL rather than a cipher suite.
type handshake struct {
	rw  io.ReadWriter
	buf *bufio.Reader
	opt Options
}

// Perform runs the full handshake over rw and returns once the stream
// is ready to carry binary D-Bus frames (after BEGIN has been sent),
// or an error naming which stage failed.
func Perform(rw io.ReadWriter, opt Options) error {
	h := &handshake{rw: rw, buf: bufio.NewReader(rw), opt: opt}

	if len(opt.Nonce) > 0 {
		if _, err := rw.Write(opt.Nonce); err != nil {
			return fmt.Errorf("handshake: write nonce: %w", err)
		}
	}
	if _, err := rw.Write([]byte{0}); err != nil {
		return fmt.Errorf("handshake: write NUL byte: %w", err)
	}

	if err := h.authenticate(); err != nil {
		return err
	}
	if opt.NegotiateUnixFD {
		if err := h.negotiateUnixFD(); err != nil {
			return err
		}
	}
	return h.begin()
}

func (h *handshake) readLine() (string, error) {
	line, err := h.buf.ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r"), nil
}

func (h *handshake) writeLine(line string) error {
	_, err := io.WriteString(h.rw, line+lineTerminator)
	return err
}

func (h *handshake) request(line string) (string, error) {
	if err := h.writeLine(line); err != nil {
		return "", err
	}
	return h.readLine()
}

func (h *handshake) listAvailableMechanisms() ([]string, error) {
	response, err := h.request("AUTH")
	if err != nil {
		return nil, fmt.Errorf("handshake: AUTH: %w", err)
	}
	rest, ok := strings.CutPrefix(response, "REJECTED ")
	if !ok {
		return nil, ErrNoMechanism
	}
	mechanisms := strings.Fields(rest)
	if len(mechanisms) == 0 {
		return nil, ErrNoMechanism
	}
	return mechanisms, nil
}

func (h *handshake) negotiateUnixFD() error {
	response, err := h.request("NEGOTIATE_UNIX_FD")
	if err != nil {
		return fmt.Errorf("handshake: NEGOTIATE_UNIX_FD: %w", err)
	}
	if response != "AGREE_UNIX_FD" {
		return fmt.Errorf("%w: %s", ErrUnixFDRefused, response)
	}
	return nil
}

func (h *handshake) authExternal() error {
	uid := hex.EncodeToString([]byte(strconv.Itoa(os.Getuid())))
	response, err := h.request("AUTH EXTERNAL " + uid)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(response, "OK ") {
		return fmt.Errorf("handshake: EXTERNAL rejected: %s", response)
	}
	return nil
}

func (h *handshake) authAnonymous() error {
	response, err := h.request("AUTH ANONYMOUS " + anonymousHex)
	if err != nil {
		return err
	}
	if !strings.HasPrefix(response, "OK ") {
		return fmt.Errorf("handshake: ANONYMOUS rejected: %s", response)
	}
	return nil
}

func (h *handshake) authenticate() error {
	mechanisms, err := h.listAvailableMechanisms()
	if err != nil {
		return err
	}
	logf := h.opt.Logf
	if logf == nil {
		logf = func(string, ...interface{}) {}
	}
	for _, mechanism := range mechanisms {
		switch mechanism {
		case "EXTERNAL":
			if err := h.authExternal(); err != nil {
				logf("handshake: EXTERNAL failed: %v", err)
				continue
			}
			return nil
		case "ANONYMOUS":
			if err := h.authAnonymous(); err != nil {
				logf("handshake: ANONYMOUS failed: %v", err)
				continue
			}
			return nil
		default:
			logf("handshake: unsupported mechanism advertised: %s", mechanism)
		}
	}
	return ErrNoAuthentication
}

func (h *handshake) begin() error {
	return h.writeLine("BEGIN")
}
