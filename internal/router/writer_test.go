package router_test

import (
	"bytes"
	"time"

	"github.com/atsika/dbuslink/internal/queue"
	"github.com/atsika/dbuslink/internal/router"
	"github.com/atsika/dbuslink/internal/wire"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("RunWriter", func() {
	It("encodes and writes messages in FIFO order, then exits once outbound is closed", func() {
		outbound := queue.NewUnbounded[*wire.Message]()
		var buf bytes.Buffer
		done := make(chan struct{})

		go router.RunWriter(&buf, outbound, done, nil)

		a := wire.Signal("/a", "com.example.I", "A")
		a.Serial = 1
		b := wire.Signal("/a", "com.example.I", "B")
		b.Serial = 2
		outbound.Push(a)
		outbound.Push(b)

		encodedA, err := wire.Encode(a)
		Expect(err).NotTo(HaveOccurred())
		encodedB, err := wire.Encode(b)
		Expect(err).NotTo(HaveOccurred())

		Eventually(func() int { return buf.Len() }, time.Second).Should(Equal(len(encodedA) + len(encodedB)))
		Expect(buf.Bytes()).To(Equal(append(append([]byte{}, encodedA...), encodedB...)))

		outbound.Close()
		Eventually(done, time.Second).Should(BeClosed())
	})

	It("terminates on a write failure", func() {
		outbound := queue.NewUnbounded[*wire.Message]()
		done := make(chan struct{})

		go router.RunWriter(failingWriter{}, outbound, done, nil)

		msg := wire.Signal("/a", "com.example.I", "A")
		msg.Serial = 1
		outbound.Push(msg)

		Eventually(done, time.Second).Should(BeClosed())
	})
})

type failingWriter struct{}

func (failingWriter) Write(p []byte) (int, error) {
	return 0, bytes.ErrTooLarge
}
