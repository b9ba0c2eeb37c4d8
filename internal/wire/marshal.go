package wire

import (
	"encoding/binary"
	"fmt"
	"math"
)

// marshaler accumulates encoded bytes and tracks alignment relative to
// the start of the whole message, matching the D-Bus requirement that
// alignment padding is computed against the message's own start, not
// the start of the current value.
type marshaler struct {
	buf   []byte
	order binary.ByteOrder
}

func newMarshaler(order binary.ByteOrder) *marshaler {
	return &marshaler{order: order}
}

func (m *marshaler) align(n int) {
	if pad := (n - len(m.buf)%n) % n; pad > 0 {
		m.buf = append(m.buf, make([]byte, pad)...)
	}
}

func (m *marshaler) byte(b byte)  { m.buf = append(m.buf, b) }
func (m *marshaler) bytes(b []byte) { m.buf = append(m.buf, b...) }

func (m *marshaler) uint16(v uint16) {
	m.align(2)
	var b [2]byte
	m.order.PutUint16(b[:], v)
	m.buf = append(m.buf, b[:]...)
}

func (m *marshaler) uint32(v uint32) {
	m.align(4)
	var b [4]byte
	m.order.PutUint32(b[:], v)
	m.buf = append(m.buf, b[:]...)
}

func (m *marshaler) uint64(v uint64) {
	m.align(8)
	var b [8]byte
	m.order.PutUint64(b[:], v)
	m.buf = append(m.buf, b[:]...)
}

func (m *marshaler) string(s string) {
	m.uint32(uint32(len(s)))
	m.buf = append(m.buf, s...)
	m.byte(0)
}

func (m *marshaler) signatureStr(s Signature) {
	m.align(1)
	m.byte(byte(len(s)))
	m.buf = append(m.buf, s...)
	m.byte(0)
}

// sigOf returns the D-Bus type signature for a single Go value as this
// package represents it.
func sigOf(v interface{}) (Signature, error) {
	switch t := v.(type) {
	case byte:
		return "y", nil
	case bool:
		return "b", nil
	case int16:
		return "n", nil
	case uint16:
		return "q", nil
	case int32:
		return "i", nil
	case uint32:
		return "u", nil
	case int64:
		return "x", nil
	case uint64:
		return "t", nil
	case float64:
		return "d", nil
	case string:
		return "s", nil
	case ObjectPath:
		return "o", nil
	case Signature:
		return "g", nil
	case UnixFD:
		return "h", nil
	case Variant:
		return "v", nil
	case Struct:
		sig := Signature("(")
		for _, elem := range t {
			s, err := sigOf(elem)
			if err != nil {
				return "", err
			}
			sig += s
		}
		return sig + ")", nil
	case Array:
		return "a" + t.Elem, nil
	case Dict:
		return Signature(fmt.Sprintf("a{%s%s}", t.KeySig, t.ValSig)), nil
	default:
		return "", fmt.Errorf("wire: unsupported body value type %T", v)
	}
}

// BodySignature returns the concatenated signature of a message body,
// the value the encoder stamps into the FieldSignature header entry.
func BodySignature(body []interface{}) (Signature, error) {
	var sig Signature
	for _, v := range body {
		s, err := sigOf(v)
		if err != nil {
			return "", err
		}
		sig += s
	}
	return sig, nil
}

func (m *marshaler) value(v interface{}) error {
	switch t := v.(type) {
	case byte:
		m.byte(t)
	case bool:
		if t {
			m.uint32(1)
		} else {
			m.uint32(0)
		}
	case int16:
		m.uint16(uint16(t))
	case uint16:
		m.uint16(t)
	case int32:
		m.uint32(uint32(t))
	case uint32:
		m.uint32(t)
	case int64:
		m.uint64(uint64(t))
	case uint64:
		m.uint64(t)
	case float64:
		m.uint64(math.Float64bits(t))
	case string:
		m.string(t)
	case ObjectPath:
		m.string(string(t))
	case Signature:
		m.signatureStr(t)
	case UnixFD:
		m.uint32(uint32(t))
	case Variant:
		sig, err := sigOf(t.Value)
		if err != nil {
			return fmt.Errorf("wire: variant: %w", err)
		}
		m.signatureStr(sig)
		if err := m.value(t.Value); err != nil {
			return err
		}
	case Struct:
		m.align(8)
		for _, elem := range t {
			if err := m.value(elem); err != nil {
				return err
			}
		}
	case Array:
		// Array length is a byte count written before the elements;
		// it must be backpatched once the element bytes are known,
		// since elements are aligned relative to the whole message.
		m.uint32(0)
		lenOffset := len(m.buf) - 4
		if elemAlign(t.Elem) > 4 {
			m.align(elemAlign(t.Elem))
		}
		start := len(m.buf)
		for _, item := range t.Items {
			if err := m.value(item); err != nil {
				return err
			}
		}
		m.order.PutUint32(m.buf[lenOffset:lenOffset+4], uint32(len(m.buf)-start))
	case Dict:
		m.uint32(0)
		lenOffset := len(m.buf) - 4
		m.align(8)
		start := len(m.buf)
		for _, e := range t.Entries {
			m.align(8)
			if err := m.value(e.Key); err != nil {
				return err
			}
			if err := m.value(e.Value); err != nil {
				return err
			}
		}
		m.order.PutUint32(m.buf[lenOffset:lenOffset+4], uint32(len(m.buf)-start))
	default:
		return fmt.Errorf("wire: unsupported body value type %T", v)
	}
	return nil
}

// elemAlign returns the alignment in bytes for a single D-Bus type
// code, used to decide array-element padding.
func elemAlign(sig Signature) int {
	if len(sig) == 0 {
		return 1
	}
	switch sig[0] {
	case 'y', 'g':
		return 1
	case 'n', 'q':
		return 2
	case 'b', 'i', 'u', 'h', 'a':
		return 4
	case 'x', 't', 'd', '(', '{':
		return 8
	case 's', 'o':
		return 4
	case 'v':
		return 1
	default:
		return 1
	}
}
