package router

import (
	"errors"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/atsika/dbuslink/internal/queue"
	"github.com/atsika/dbuslink/internal/wire"
)

// readChunk is the size of each read(2) into the accumulator. Chosen
// to comfortably hold a typical handful of small D-Bus frames without
// growing the buffer on every call.
const readChunk = 4096

// RunReader is the Reader task (spec §4.3): reads into a growing
// accumulator, repeatedly decodes frames out of it, and pushes decoded
// messages onto inbound. It closes inbound on end-of-stream (orderly
// shutdown) or on any fatal decode error (unrecoverable corruption).
func RunReader(r io.Reader, inbound *queue.Unbounded[*wire.Message], log logrus.FieldLogger) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	entry := log.WithField("component", "reader")
	defer inbound.Close()

	var buf []byte
	chunk := make([]byte, readChunk)

	for {
		n, err := r.Read(chunk)
		if n > 0 {
			buf = append(buf, chunk[:n]...)
			var fatal bool
			buf, fatal = decodeAvailable(buf, inbound, entry)
			if fatal {
				return
			}
		}
		if err != nil {
			if !errors.Is(err, io.EOF) {
				entry.WithError(err).Error("reader: read failed, terminating")
			}
			return
		}
	}
}

// decodeAvailable repeatedly decodes frames out of buf, pushing each
// onto inbound, and returns the unconsumed remainder. A NeedMore
// result stops the loop until more bytes arrive; any other decode
// error is unrecoverable transport corruption (spec §4.3) and the
// caller terminates the task entirely.
func decodeAvailable(buf []byte, inbound *queue.Unbounded[*wire.Message], log logrus.FieldLogger) (remainder []byte, fatal bool) {
	for {
		msg, consumed, err := wire.Decode(buf)
		if err == nil {
			inbound.Push(msg)
			buf = buf[consumed:]
			continue
		}
		var needMore *wire.NeedMoreError
		if errors.As(err, &needMore) {
			return buf, false
		}
		log.WithError(err).Error("reader: decode failed, terminating")
		return buf, true
	}
}
