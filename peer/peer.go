// Package peer implements the org.freedesktop.DBus.Peer interface
// handler (spec §6 Configuration, grounded on original_source's
// peer.rs): Ping and GetMachineId, attached to a Facade's interface
// route when the peer Option is enabled.
package peer

import (
	"encoding/hex"
	"fmt"
	"os"

	"github.com/atsika/dbuslink/internal/router"
	"github.com/atsika/dbuslink/internal/wire"
)

// InterfaceName is the well-known interface this handler answers.
const InterfaceName = "org.freedesktop.DBus.Peer"

var machineIDPaths = []string{"/var/lib/dbus/machine-id", "/etc/machine-id"}

// Facade is the subset of dbuslink.Client this handler needs: register
// an interface route and push a reply message. Satisfied structurally
// so this package never imports the root package.
type Facade interface {
	AttachInterface(iface string, ep *router.Endpoint)
	Send(msg *wire.Message) error
}

// Attach registers the Peer interface route on f and starts a
// goroutine serving it. Closing the returned Endpoint stops that
// goroutine; the Router drops the interface route on its next delivery
// attempt, or at once on DetachInterface(InterfaceName).
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
	var reply *wire.Message
	switch msg.Member {
	case "Ping":
		if len(msg.Body) != 0 {
			reply = wire.InvalidArgs(msg, "Too many arguments")
			break
		}
		reply = wire.MethodReturn(msg)
	case "GetMachineId":
		if len(msg.Body) != 0 {
			reply = wire.InvalidArgs(msg, "Too many arguments")
			break
		}
		id, err := readMachineID()
		if err != nil {
			reply = wire.Error(msg, "org.freedesktop.DBus.Peer.MachineIdError", "Could not retrieve Machine ID.")
			break
		}
		reply = wire.MethodReturn(msg, id)
	default:
		reply = wire.UnknownMember(msg)
	}
	if reply == nil {
		return
	}
	f.Send(reply)
}

// readMachineID reads exactly 32 hex characters followed by nothing or
// a single newline from the primary machine-id path, falling back to
// the secondary path on any error (spec §6 Configuration).
func readMachineID() (string, error) {
	var lastErr error
	for _, path := range machineIDPaths {
		id, err := readMachineIDFile(path)
		if err == nil {
			return id, nil
		}
		lastErr = err
	}
	return "", lastErr
}

func readMachineIDFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	switch {
	case len(data) == 32:
	case len(data) == 33 && data[32] == '\n':
		data = data[:32]
	default:
		return "", fmt.Errorf("peer: %s is not exactly 32 hex characters", path)
	}
	if _, err := hex.DecodeString(string(data)); err != nil {
		return "", fmt.Errorf("peer: %s: %w", path, err)
	}
	return string(data), nil
}
