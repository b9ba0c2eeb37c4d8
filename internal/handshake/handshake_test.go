package handshake_test

import (
	"bufio"
	"net"
	"strings"

	"github.com/atsika/dbuslink/internal/handshake"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// fakeDaemon plays the server side of the handshake over one half of a
// net.Pipe, consuming the NUL byte then responding to each requested
// line per script, in order. script maps the exact request line to
// the response line to send back.
func fakeDaemon(conn net.Conn, script map[string]string, negotiateFD bool) {
	defer conn.Close()
	buf := bufio.NewReader(conn)
	_, _ = buf.ReadByte() // NUL byte

	for {
		line, err := buf.ReadString('\n')
		if err != nil {
			return
		}
		line = strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r")
		if line == "BEGIN" {
			return
		}
		response, ok := script[line]
		if !ok {
			return
		}
		_, _ = conn.Write([]byte(response + "\r\n"))
	}
}

var _ = Describe("Perform", func() {
	It("authenticates via EXTERNAL when offered first", func() {
		client, server := net.Pipe()
		script := map[string]string{
			"AUTH": "REJECTED EXTERNAL ANONYMOUS",
		}
		go func() {
			buf := bufio.NewReader(server)
			_, _ = buf.ReadByte()
			line, _ := buf.ReadString('\n')
			Expect(strings.TrimSpace(line)).To(Equal("AUTH"))
			_, _ = server.Write([]byte(script["AUTH"] + "\r\n"))

			line, _ = buf.ReadString('\n')
			Expect(strings.HasPrefix(line, "AUTH EXTERNAL ")).To(BeTrue())
			_, _ = server.Write([]byte("OK 1234deadbeef\r\n"))

			line, _ = buf.ReadString('\n')
			Expect(strings.TrimSpace(line)).To(Equal("BEGIN"))
			server.Close()
		}()

		err := handshake.Perform(client, handshake.Options{})
		Expect(err).ToNot(HaveOccurred())
	})

	It("negotiates unix fd when requested", func() {
		client, server := net.Pipe()
		go func() {
			buf := bufio.NewReader(server)
			_, _ = buf.ReadByte()
			_, _ = buf.ReadString('\n') // AUTH
			_, _ = server.Write([]byte("REJECTED EXTERNAL\r\n"))
			_, _ = buf.ReadString('\n') // AUTH EXTERNAL ...
			_, _ = server.Write([]byte("OK deadbeef\r\n"))
			_, _ = buf.ReadString('\n') // NEGOTIATE_UNIX_FD
			_, _ = server.Write([]byte("AGREE_UNIX_FD\r\n"))
			_, _ = buf.ReadString('\n') // BEGIN
			server.Close()
		}()

		err := handshake.Perform(client, handshake.Options{NegotiateUnixFD: true})
		Expect(err).ToNot(HaveOccurred())
	})

	It("fails with ErrNoAuthentication when every mechanism is rejected", func() {
		client, server := net.Pipe()
		go func() {
			buf := bufio.NewReader(server)
			_, _ = buf.ReadByte()
			_, _ = buf.ReadString('\n') // AUTH
			_, _ = server.Write([]byte("REJECTED EXTERNAL\r\n"))
			_, _ = buf.ReadString('\n') // AUTH EXTERNAL ...
			_, _ = server.Write([]byte("REJECTED EXTERNAL\r\n"))
			server.Close()
		}()

		err := handshake.Perform(client, handshake.Options{})
		Expect(err).To(MatchError(handshake.ErrNoAuthentication))
	})

	It("writes the nonce before the NUL byte for nonce-TCP", func() {
		client, server := net.Pipe()
		nonce := []byte("0123456789abcdef")
		go func() {
			got := make([]byte, 16)
			_, _ = server.Read(got)
			Expect(got).To(Equal(nonce))
			fakeDaemon(server, map[string]string{
				"AUTH":                                       "REJECTED ANONYMOUS",
				"AUTH ANONYMOUS 646275732d6173796e63": "OK deadbeef",
			}, false)
		}()

		done := make(chan error, 1)
		go func() { done <- handshake.Perform(client, handshake.Options{Nonce: nonce}) }()
		Eventually(done).Should(Receive())
	})
})
