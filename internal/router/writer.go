package router

import (
	"io"

	"github.com/sirupsen/logrus"

	"github.com/atsika/dbuslink/internal/queue"
	"github.com/atsika/dbuslink/internal/wire"
)

// RunWriter is the Writer task (spec §4.2): single consumer of the
// outbound queue, serializing messages to w in FIFO order. It
// terminates and closes done on the first encode or write failure, or
// once outbound is closed and drained (spec §4.4.5: Close "closes the
// outbound queue, causing the Writer to drain and exit").
func RunWriter(w io.Writer, outbound *queue.Unbounded[*wire.Message], done chan<- struct{}, log logrus.FieldLogger) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	entry := log.WithField("component", "writer")
	defer close(done)

	for msg := range outbound.Out() {
		buf, err := wire.Encode(msg)
		if err != nil {
			entry.WithError(err).Error("writer: encode failed, terminating")
			return
		}
		if _, err := writeFull(w, buf); err != nil {
			entry.WithError(err).Error("writer: write failed, terminating")
			return
		}
	}
}

// writeFull drains buf to w, advancing past partial writes (spec
// §4.2: "write the entire buffer with a drain loop").
func writeFull(w io.Writer, buf []byte) (int, error) {
	total := 0
	for total < len(buf) {
		n, err := w.Write(buf[total:])
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
