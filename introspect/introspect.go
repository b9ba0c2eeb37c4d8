// Package introspect implements the org.freedesktop.DBus.Introspectable
// interface handler (spec §6 Configuration, grounded on
// original_source's introspect.rs): Introspect, answered by listing
// children under the requested path and packaging the standard D-Bus
// introspection XML header+body as a string reply.
package introspect

import (
	"strings"

	"github.com/atsika/dbuslink/internal/router"
	"github.com/atsika/dbuslink/internal/wire"
)

// InterfaceName is the well-known interface this handler answers.
const InterfaceName = "org.freedesktop.DBus.Introspectable"

const xmlHeader = `<!DOCTYPE node PUBLIC "-//freedesktop//DTD D-BUS Object Introspection 1.0//EN" "http://www.freedesktop.org/standards/dbus/1.0/introspect.dtd">
<node>
`

// Facade is the subset of dbuslink.Client this handler needs.
// Satisfied structurally so this package never imports the root
// package.
type Facade interface {
	AttachInterface(iface string, ep *router.Endpoint)
	ListUnderPath(path wire.ObjectPath) []string
	Send(msg *wire.Message) error
}

// Attach registers the Introspectable interface route on f and starts
// a goroutine serving it.
func Attach(f Facade, endpointCapacity int) *router.Endpoint {
	ep := router.NewEndpoint(endpointCapacity)
	f.AttachInterface(InterfaceName, ep)
	go serve(f, ep)
	return ep
}

func serve(f Facade, ep *router.Endpoint) {
	for {
		select {
		case msg, ok := <-ep.C:
			if !ok {
				return
			}
			if msg.Type != wire.TypeMethodCall {
				continue
			}
			handle(f, msg)
		case <-ep.Done():
			return
		}
	}
}

func handle(f Facade, msg *wire.Message) {
	if msg.Member != "Introspect" {
		if reply := wire.UnknownMember(msg); reply != nil {
			f.Send(reply)
		}
		return
	}
	if msg.Signature != "" {
		if reply := wire.InvalidArgs(msg, "Too many arguments"); reply != nil {
			f.Send(reply)
		}
		return
	}
	if !msg.HasPath() {
		return
	}

	children := f.ListUnderPath(msg.Path)
	var xml strings.Builder
	xml.WriteString(xmlHeader)
	for _, name := range children {
		xml.WriteString("  <node name=\"")
		xml.WriteString(name)
		xml.WriteString("\"/>\n")
	}
	xml.WriteString("</node>")

	f.Send(wire.MethodReturn(msg, xml.String()))
}
