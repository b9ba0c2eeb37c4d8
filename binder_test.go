package dbuslink_test

import (
	"github.com/atsika/dbuslink"
	"github.com/atsika/dbuslink/internal/wire"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Binder", func() {
	It("dispatches an inbound call routed to a bound path and replies", func() {
		daemon, address := newFakeDaemon()

		c, err := dbuslink.Dial(address)
		Expect(err).ToNot(HaveOccurred())
		defer c.Close()

		var seen *dbuslink.Message
		b := dbuslink.BindPath(c, "/com/example/widget", 4, func(msg *dbuslink.Message) *dbuslink.Message {
			seen = msg
			return dbuslink.NewMethodReturn(msg, "ack")
		})
		defer b.Unbind()

		// ListUnderPath round-trips through the same command queue
		// AttachPath used, so its return guarantees the route above is
		// already installed before the inbound call below is sent.
		c.ListUnderPath("/com/example")

		inbound := &wire.Message{
			Type:   wire.TypeMethodCall,
			Path:   "/com/example/widget",
			Member: "Poke",
			Serial: 7,
		}
		daemon.sendToClient(inbound)

		Eventually(func() *dbuslink.Message { return seen }).ShouldNot(BeNil())
		Expect(seen.Member).To(Equal("Poke"))
	})

	It("stops dispatching once unbound", func() {
		_, address := newFakeDaemon()

		c, err := dbuslink.Dial(address)
		Expect(err).ToNot(HaveOccurred())
		defer c.Close()

		called := false
		b := dbuslink.BindInterface(c, "com.example.Widget", 4, func(msg *dbuslink.Message) *dbuslink.Message {
			called = true
			return nil
		})
		b.Unbind()

		Consistently(func() bool { return called }).Should(BeFalse())
	})
})
