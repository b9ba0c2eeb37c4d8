package queue_test

import (
	"time"

	"github.com/atsika/dbuslink/internal/queue"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Unbounded", func() {
	It("delivers items in FIFO order", func() {
		q := queue.NewUnbounded[int]()
		defer q.Close()

		for i := 0; i < 5; i++ {
			q.Push(i)
		}

		for i := 0; i < 5; i++ {
			Eventually(q.Out()).Should(Receive(Equal(i)))
		}
	})

	It("never blocks Push even when nothing is draining Out()", func() {
		q := queue.NewUnbounded[int]()
		defer q.Close()

		done := make(chan struct{})
		go func() {
			for i := 0; i < 1000; i++ {
				q.Push(i)
			}
			close(done)
		}()

		Eventually(done, 2*time.Second).Should(BeClosed())
	})

	It("closes Out() once Close is called, without panicking on a second Close", func() {
		q := queue.NewUnbounded[string]()
		q.Push("a")
		q.Close()
		q.Close() // idempotent

		Eventually(func() bool {
			_, ok := <-q.Out()
			return ok
		}).Should(BeFalse())
	})
})
