// Command dbuslink-echo connects to a D-Bus daemon and performs the
// Ping round trip (spec §8 scenario 1): connect, call
// org.freedesktop.DBus.Peer.Ping, print the round-trip time.
//
// Usage: go run ./cmd/dbuslink-echo [-address <addr>] [-system]
package main

import (
	"flag"
	"fmt"
	"log"
	"time"

	"github.com/atsika/dbuslink"
)

func main() {
	addressFlag := flag.String("address", "", "D-Bus server address string; defaults to the session bus")
	systemFlag := flag.Bool("system", false, "connect to the system bus instead of the session bus")
	flag.Parse()

	var (
		client *dbuslink.Client
		err    error
	)
	switch {
	case *addressFlag != "":
		client, err = dbuslink.Dial(*addressFlag)
	case *systemFlag:
		client, err = dbuslink.DialSystem()
	default:
		client, err = dbuslink.DialSession()
	}
	if err != nil {
		log.Fatalf("dial: %v", err)
	}
	defer client.Close()

	fmt.Printf("[dbuslink] connected to %s\n", client.Address())

	start := time.Now()
	reply, err := client.Call(dbuslink.NewMethodCall(
		"/org/freedesktop/DBus", "org.freedesktop.DBus.Peer", "Ping", "org.freedesktop.DBus"))
	if err != nil {
		log.Fatalf("ping: %v", err)
	}
	elapsed := time.Since(start)

	if reply.Type == dbuslink.TypeError {
		log.Fatalf("ping: daemon returned %s", reply.ErrorName)
	}
	fmt.Printf("[dbuslink] pong in %s (reply_serial=%d)\n", elapsed, reply.ReplySerial)
}
