package wire_test

import (
	"github.com/atsika/dbuslink/internal/wire"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Encode/Decode", func() {
	It("round-trips a method call with a simple body", func() {
		msg := wire.MethodCall("/org/example/Obj", "org.example.Iface", "DoThing", "org.example.Dest",
			"hello", int32(42), true)
		msg.Serial = 7
		msg.Sender = "org.example.Src"

		raw, err := wire.Encode(msg)
		Expect(err).ToNot(HaveOccurred())

		decoded, consumed, err := wire.Decode(raw)
		Expect(err).ToNot(HaveOccurred())
		Expect(consumed).To(Equal(len(raw)))

		Expect(decoded.Type).To(Equal(wire.TypeMethodCall))
		Expect(decoded.Serial).To(Equal(uint32(7)))
		Expect(string(decoded.Path)).To(Equal("/org/example/Obj"))
		Expect(decoded.Interface).To(Equal("org.example.Iface"))
		Expect(decoded.Member).To(Equal("DoThing"))
		Expect(decoded.Destination).To(Equal("org.example.Dest"))
		Expect(decoded.Sender).To(Equal("org.example.Src"))
		Expect(decoded.Body).To(Equal([]interface{}{"hello", int32(42), true}))
	})

	It("reports NeedMore on a truncated fixed header", func() {
		_, _, err := wire.Decode([]byte{'l', 1, 0, 1})
		var needMore *wire.NeedMoreError
		Expect(err).To(BeAssignableToTypeOf(needMore))
	})

	It("reports NeedMore when the body hasn't fully arrived", func() {
		msg := wire.Signal("/a/b", "org.example.Iface", "Changed", "value")
		msg.Serial = 1
		raw, err := wire.Encode(msg)
		Expect(err).ToNot(HaveOccurred())

		_, _, err = wire.Decode(raw[:len(raw)-2])
		var needMore *wire.NeedMoreError
		Expect(err).To(BeAssignableToTypeOf(needMore))
	})

	It("round-trips a method return carrying a reply-serial", func() {
		orig := wire.MethodCall("/a", "org.example.Iface", "Get", "org.example.Dest")
		orig.Serial = 99
		orig.Sender = "org.example.Caller"

		reply := wire.MethodReturn(orig, "ok")
		reply.Serial = 100

		raw, err := wire.Encode(reply)
		Expect(err).ToNot(HaveOccurred())

		decoded, _, err := wire.Decode(raw)
		Expect(err).ToNot(HaveOccurred())
		Expect(decoded.Type).To(Equal(wire.TypeMethodReturn))
		Expect(decoded.ReplySerial).To(Equal(uint32(99)))
		Expect(decoded.Destination).To(Equal("org.example.Caller"))
	})

	It("round-trips nested struct and array body values", func() {
		msg := wire.Signal("/a", "org.example.Iface", "Complex",
			wire.Struct{int32(1), "two"},
			wire.Array{Elem: "s", Items: []interface{}{"x", "y", "z"}},
		)
		msg.Serial = 1

		raw, err := wire.Encode(msg)
		Expect(err).ToNot(HaveOccurred())

		decoded, _, err := wire.Decode(raw)
		Expect(err).ToNot(HaveOccurred())
		Expect(decoded.Body[0]).To(Equal(wire.Struct{int32(1), "two"}))

		arr, ok := decoded.Body[1].(wire.Array)
		Expect(ok).To(BeTrue())
		Expect(arr.Items).To(Equal([]interface{}{"x", "y", "z"}))
	})

	It("round-trips a dict body value (a{sv})", func() {
		msg := wire.MethodReturn(&wire.Message{Serial: 1, Sender: "org.example.A"}, wire.Dict{
			KeySig: "s",
			ValSig: "v",
			Entries: []wire.DictEntry{
				{Key: "count", Value: wire.Variant{Sig: "i", Value: int32(3)}},
			},
		})
		msg.Serial = 2

		raw, err := wire.Encode(msg)
		Expect(err).ToNot(HaveOccurred())

		decoded, _, err := wire.Decode(raw)
		Expect(err).ToNot(HaveOccurred())

		d, ok := decoded.Body[0].(wire.Dict)
		Expect(ok).To(BeTrue())
		Expect(d.Entries).To(HaveLen(1))
		Expect(d.Entries[0].Key).To(Equal("count"))
	})

	It("builds a nil UnknownPath reply when no reply was requested", func() {
		orig := wire.MethodCall("/missing", "", "Foo", "")
		orig.Flags = wire.FlagNoReplyExpected
		Expect(wire.UnknownPath(orig)).To(BeNil())
	})

	It("builds an UnknownObject error reply otherwise", func() {
		orig := wire.MethodCall("/missing", "", "Foo", "")
		orig.Serial = 5
		orig.Sender = "org.example.Caller"
		reply := wire.UnknownPath(orig)
		Expect(reply).ToNot(BeNil())
		Expect(reply.Type).To(Equal(wire.TypeError))
		Expect(reply.ErrorName).To(Equal("org.freedesktop.DBus.Error.UnknownObject"))
		Expect(reply.ReplySerial).To(Equal(uint32(5)))
	})
})
