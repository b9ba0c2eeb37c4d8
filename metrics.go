package dbuslink

import "sync/atomic"

// Metrics tracks connection-core traffic counters. The Router feeds the
// message and drop counters; the Writer/Reader tasks feed the byte
// counters through countingConn below. Collectors read via Get*.
type Metrics interface {
	IncrementMessagesSent()
	IncrementMessagesReceived()
	IncrementBytesSent(n int64)
	IncrementBytesReceived(n int64)
	IncrementDrops()

	GetMessagesSent() int64
	GetMessagesReceived() int64
	GetBytesSent() int64
	GetBytesReceived() int64
	GetDrops() int64
}

// DefaultMetrics implements Metrics with atomic counters.
type DefaultMetrics struct {
	messagesSent     int64
	messagesReceived int64
	bytesSent        int64
	bytesReceived    int64
	drops            int64
}

// NewDefaultMetrics creates a new DefaultMetrics instance.
func NewDefaultMetrics() *DefaultMetrics { return &DefaultMetrics{} }

func (m *DefaultMetrics) IncrementMessagesSent()     { atomic.AddInt64(&m.messagesSent, 1) }
func (m *DefaultMetrics) IncrementMessagesReceived() { atomic.AddInt64(&m.messagesReceived, 1) }
func (m *DefaultMetrics) IncrementBytesSent(n int64) { atomic.AddInt64(&m.bytesSent, n) }
func (m *DefaultMetrics) IncrementBytesReceived(n int64) {
	atomic.AddInt64(&m.bytesReceived, n)
}
func (m *DefaultMetrics) IncrementDrops() { atomic.AddInt64(&m.drops, 1) }

func (m *DefaultMetrics) GetMessagesSent() int64     { return atomic.LoadInt64(&m.messagesSent) }
func (m *DefaultMetrics) GetMessagesReceived() int64 { return atomic.LoadInt64(&m.messagesReceived) }
func (m *DefaultMetrics) GetBytesSent() int64        { return atomic.LoadInt64(&m.bytesSent) }
func (m *DefaultMetrics) GetBytesReceived() int64    { return atomic.LoadInt64(&m.bytesReceived) }
func (m *DefaultMetrics) GetDrops() int64            { return atomic.LoadInt64(&m.drops) }

// countingConn wraps a net.Conn so the Writer/Reader tasks' ordinary
// Read/Write calls also feed the connection's Metrics, without
// threading a Metrics parameter through internal/router's signatures.
type countingConn struct {
	netConn
	m Metrics
}

// netConn is the subset of net.Conn the Writer/Reader tasks use.
type netConn interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
}

func newCountingConn(c netConn, m Metrics) *countingConn {
	return &countingConn{netConn: c, m: m}
}

func (c *countingConn) Read(p []byte) (int, error) {
	n, err := c.netConn.Read(p)
	if n > 0 {
		c.m.IncrementBytesReceived(int64(n))
	}
	return n, err
}

func (c *countingConn) Write(p []byte) (int, error) {
	n, err := c.netConn.Write(p)
	if n > 0 {
		c.m.IncrementBytesSent(int64(n))
	}
	return n, err
}
