package peer_test

import (
	"github.com/atsika/dbuslink/internal/router"
	"github.com/atsika/dbuslink/internal/wire"
	"github.com/atsika/dbuslink/peer"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

// fakeFacade records every AttachInterface call and every Send, and
// lets a test hand a message straight to the endpoint it captured.
type fakeFacade struct {
	iface string
	ep    *router.Endpoint
	sent  []*wire.Message
}

func (f *fakeFacade) AttachInterface(iface string, ep *router.Endpoint) {
	f.iface = iface
	f.ep = ep
}

func (f *fakeFacade) Send(msg *wire.Message) error {
	f.sent = append(f.sent, msg)
	return nil
}

func deliverAndWait(f *fakeFacade, msg *wire.Message) *wire.Message {
	f.ep.C <- msg
	Eventually(func() int { return len(f.sent) }).Should(Equal(1))
	return f.sent[0]
}

var _ = Describe("Attach", func() {
	It("registers the Peer interface route", func() {
		f := &fakeFacade{}
		ep := peer.Attach(f, 4)
		defer ep.Close()

		Expect(f.iface).To(Equal(peer.InterfaceName))
		Expect(f.ep).To(Equal(ep))
	})
})

var _ = Describe("handle", func() {
	var f *fakeFacade
	var ep *router.Endpoint

	BeforeEach(func() {
		f = &fakeFacade{}
		ep = peer.Attach(f, 4)
	})

	AfterEach(func() {
		ep.Close()
	})

	It("answers Ping with an empty MethodReturn", func() {
		call := wire.MethodCall("/org/freedesktop/DBus", peer.InterfaceName, "Ping", "org.freedesktop.DBus")
		call.Serial = 1

		reply := deliverAndWait(f, call)
		Expect(reply.Type).To(Equal(wire.TypeMethodReturn))
		Expect(reply.ReplySerial).To(Equal(uint32(1)))
		Expect(reply.Body).To(BeEmpty())
	})

	It("rejects a Ping carrying unexpected arguments", func() {
		call := wire.MethodCall("/org/freedesktop/DBus", peer.InterfaceName, "Ping", "org.freedesktop.DBus", "unexpected")
		call.Serial = 2

		reply := deliverAndWait(f, call)
		Expect(reply.Type).To(Equal(wire.TypeError))
		Expect(reply.ErrorName).To(Equal("org.freedesktop.DBus.Error.InvalidArgs"))
	})

	It("answers GetMachineId with either an id or a MachineIdError", func() {
		call := wire.MethodCall("/org/freedesktop/DBus", peer.InterfaceName, "GetMachineId", "org.freedesktop.DBus")
		call.Serial = 3

		reply := deliverAndWait(f, call)
		switch reply.Type {
		case wire.TypeMethodReturn:
			Expect(reply.Body).To(HaveLen(1))
			id, ok := reply.Body[0].(string)
			Expect(ok).To(BeTrue())
			Expect(id).To(HaveLen(32))
		case wire.TypeError:
			Expect(reply.ErrorName).To(Equal("org.freedesktop.DBus.Peer.MachineIdError"))
		default:
			Fail("unexpected reply type")
		}
	})

	It("answers an unknown member with UnknownMethod", func() {
		call := wire.MethodCall("/org/freedesktop/DBus", peer.InterfaceName, "Nope", "org.freedesktop.DBus")
		call.Serial = 4

		reply := deliverAndWait(f, call)
		Expect(reply.Type).To(Equal(wire.TypeError))
		Expect(reply.ErrorName).To(Equal("org.freedesktop.DBus.Error.UnknownMethod"))
	})

	It("drops a call flagged NoReplyExpected", func() {
		call := wire.MethodCall("/org/freedesktop/DBus", peer.InterfaceName, "Nope", "org.freedesktop.DBus")
		call.Serial = 5
		call.Flags = wire.FlagNoReplyExpected

		ep.C <- call
		Consistently(func() int { return len(f.sent) }).Should(Equal(0))
	})
})
