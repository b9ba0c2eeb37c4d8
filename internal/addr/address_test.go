package addr_test

import (
	"github.com/atsika/dbuslink/internal/addr"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Decode", func() {
	It("decodes a unix path address", func() {
		list, err := addr.Decode("unix:path=/run/dbus/system_bus_socket")
		Expect(err).ToNot(HaveOccurred())
		Expect(list).To(HaveLen(1))
		Expect(list[0].Kind).To(Equal(addr.KindUnix))
		Expect(list[0].Path).To(Equal("/run/dbus/system_bus_socket"))
		Expect(list[0].IsConnectable()).To(BeTrue())
	})

	It("marks abstract unix sockets non-connectable", func() {
		list, err := addr.Decode("unix:abstract=/tmp/dbus-xyz")
		Expect(err).ToNot(HaveOccurred())
		Expect(list[0].IsConnectable()).To(BeFalse())
	})

	It("decodes a tcp address with default family", func() {
		list, err := addr.Decode("tcp:host=127.0.0.1,port=1234")
		Expect(err).ToNot(HaveOccurred())
		Expect(list[0].Kind).To(Equal(addr.KindTCP))
		Expect(list[0].Host).To(Equal("127.0.0.1"))
		Expect(list[0].Port).To(Equal("1234"))
		Expect(list[0].Family).To(Equal("ipv4"))
		Expect(list[0].NetworkFamily()).To(Equal("tcp4"))
	})

	It("decodes a nonce-tcp address", func() {
		list, err := addr.Decode("nonce-tcp:host=localhost,port=9999,noncefile=/tmp/nonce")
		Expect(err).ToNot(HaveOccurred())
		Expect(list[0].Kind).To(Equal(addr.KindNonceTCP))
		Expect(list[0].NonceFile).To(Equal("/tmp/nonce"))
		Expect(list[0].IsConnectable()).To(BeTrue())
	})

	It("decodes a semicolon-separated address list in order", func() {
		list, err := addr.Decode("unix:path=/a;tcp:host=h,port=1")
		Expect(err).ToNot(HaveOccurred())
		Expect(list).To(HaveLen(2))
		Expect(list[0].Kind).To(Equal(addr.KindUnix))
		Expect(list[1].Kind).To(Equal(addr.KindTCP))
	})

	It("marks autolaunch and launchd non-connectable", func() {
		list, err := addr.Decode("autolaunch:;launchd:env=DBUS_LAUNCHD_SESSION_BUS_SOCKET")
		Expect(err).ToNot(HaveOccurred())
		Expect(list[0].IsConnectable()).To(BeFalse())
		Expect(list[1].IsConnectable()).To(BeFalse())
	})

	It("round-trips decode(encode(decode(s))) for a tcp address", func() {
		first, err := addr.Decode("tcp:host=example.org,port=55,family=ipv6")
		Expect(err).ToNot(HaveOccurred())

		second, err := addr.Decode(first[0].String())
		Expect(err).ToNot(HaveOccurred())
		Expect(second[0]).To(Equal(first[0]))
	})

	It("rejects an address with no scheme separator", func() {
		_, err := addr.Decode("garbage")
		Expect(err).To(HaveOccurred())
	})
})
