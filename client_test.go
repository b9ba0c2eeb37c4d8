package dbuslink_test

import (
	"bufio"
	"errors"
	"net"
	"os"
	"path/filepath"
	"strings"

	"github.com/atsika/dbuslink"
	"github.com/atsika/dbuslink/internal/wire"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// fakeDaemon plays the server side of one connection: the EXTERNAL
// handshake, then a tiny request handler good enough to exercise the
// Facade end to end (Hello, Ping, and an UnknownObject case).
type fakeDaemon struct {
	ln     net.Listener
	connCh chan net.Conn
}

func newFakeDaemon() (*fakeDaemon, string) {
	dir, err := os.MkdirTemp("", "dbuslink-client")
	Expect(err).ToNot(HaveOccurred())
	DeferCleanup(func() { os.RemoveAll(dir) })

	sockPath := filepath.Join(dir, "bus.sock")
	ln, err := net.Listen("unix", sockPath)
	Expect(err).ToNot(HaveOccurred())
	DeferCleanup(func() { ln.Close() })

	d := &fakeDaemon{ln: ln, connCh: make(chan net.Conn, 1)}
	go d.serve()
	return d, "unix:path=" + sockPath
}

// sendToClient delivers msg unprompted, as the daemon would a routed
// signal or method call; it blocks until the connection is accepted.
func (d *fakeDaemon) sendToClient(msg *wire.Message) {
	conn := <-d.connCh
	d.connCh <- conn
	encoded, err := wire.Encode(msg)
	Expect(err).ToNot(HaveOccurred())
	_, err = conn.Write(encoded)
	Expect(err).ToNot(HaveOccurred())
}

func (d *fakeDaemon) serve() {
	conn, err := d.ln.Accept()
	if err != nil {
		return
	}
	defer conn.Close()

	if !d.handshake(conn) {
		return
	}
	d.connCh <- conn

	var buf []byte
	chunk := make([]byte, 4096)
	for {
		n, err := conn.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			for {
				msg, consumed, err := wire.Decode(buf)
				if err != nil {
					break
				}
				buf = buf[consumed:]
				reply := d.respond(msg)
				if reply == nil {
					continue
				}
				encoded, err := wire.Encode(reply)
				if err != nil {
					return
				}
				if _, err := conn.Write(encoded); err != nil {
					return
				}
			}
		}
		if err != nil {
			return
		}
	}
}

func (d *fakeDaemon) respond(msg *wire.Message) *wire.Message {
	if msg.Type != wire.TypeMethodCall {
		return nil
	}
	switch msg.Member {
	case "Hello":
		return wire.MethodReturn(msg, ":1.1")
	case "Ping":
		return wire.MethodReturn(msg)
	default:
		return wire.UnknownPath(msg)
	}
}

func (d *fakeDaemon) handshake(conn net.Conn) bool {
	buf := bufio.NewReader(conn)
	if _, err := buf.ReadByte(); err != nil {
		return false
	}
	for {
		line, err := buf.ReadString('\n')
		if err != nil {
			return false
		}
		line = strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")
		switch {
		case line == "AUTH":
			conn.Write([]byte("REJECTED EXTERNAL\r\n"))
		case strings.HasPrefix(line, "AUTH EXTERNAL "):
			conn.Write([]byte("OK deadbeef\r\n"))
		case line == "BEGIN":
			return true
		default:
			return false
		}
	}
}

var _ = Describe("Client", func() {
	It("completes Hello on construction and reports its address", func() {
		_, address := newFakeDaemon()

		c, err := dbuslink.Dial(address)
		Expect(err).ToNot(HaveOccurred())
		defer c.Close()

		Expect(c.Address()).To(HavePrefix("unix:path="))
	})

	It("awaits a reply via Call", func() {
		_, address := newFakeDaemon()

		c, err := dbuslink.Dial(address)
		Expect(err).ToNot(HaveOccurred())
		defer c.Close()

		reply, err := c.Call(dbuslink.NewMethodCall("/org/freedesktop/DBus", "org.freedesktop.DBus.Peer", "Ping", "org.freedesktop.DBus"))
		Expect(err).ToNot(HaveOccurred())
		Expect(reply.Type).To(Equal(dbuslink.TypeMethodReturn))
		Expect(reply.Body).To(BeEmpty())
	})

	It("surfaces an unknown-object error reply through Call", func() {
		_, address := newFakeDaemon()

		c, err := dbuslink.Dial(address)
		Expect(err).ToNot(HaveOccurred())
		defer c.Close()

		reply, err := c.Call(dbuslink.NewMethodCall("/nonexistent", "com.example.Iface", "Noop", "org.example.Dest"))
		Expect(err).ToNot(HaveOccurred())
		Expect(reply.Type).To(Equal(dbuslink.TypeError))
		Expect(reply.ErrorName).To(Equal("org.freedesktop.DBus.Error.UnknownObject"))
	})

	It("rejects DialSession when DBUS_SESSION_BUS_ADDRESS is unset", func() {
		old, had := os.LookupEnv("DBUS_SESSION_BUS_ADDRESS")
		os.Unsetenv("DBUS_SESSION_BUS_ADDRESS")
		DeferCleanup(func() {
			if had {
				os.Setenv("DBUS_SESSION_BUS_ADDRESS", old)
			}
		})

		_, err := dbuslink.DialSession()
		Expect(errors.Is(err, dbuslink.ErrNoSessionAddress)).To(BeTrue())
	})

	It("fails further calls with ErrClosed after Close", func() {
		_, address := newFakeDaemon()

		c, err := dbuslink.Dial(address)
		Expect(err).ToNot(HaveOccurred())
		Expect(c.Close()).ToNot(HaveOccurred())

		_, err = c.Call(dbuslink.NewMethodCall("/org/freedesktop/DBus", "org.freedesktop.DBus.Peer", "Ping", "org.freedesktop.DBus"))
		Expect(errors.Is(err, dbuslink.ErrClosed)).To(BeTrue())
	})
})
