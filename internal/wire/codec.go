package wire

import (
	"encoding/binary"
	"fmt"
)

// NeedMoreError is returned by Decode when data does not yet contain a
// complete message. Want is the total number of bytes required from
// the start of data before decoding can make progress; the Reader task
// (spec §4.3) treats this as "break, await more bytes".
type NeedMoreError struct {
	Want int
}

func (e *NeedMoreError) Error() string {
	return fmt.Sprintf("wire: need more data (want %d bytes)", e.Want)
}

func align8(n int) int {
	if r := n % 8; r != 0 {
		return n + (8 - r)
	}
	return n
}

// Encode serializes msg into wire bytes. Serial must already be
// assigned by the caller (the Router, per §4.4.1); Encode does not
// allocate or mutate it.
func Encode(msg *Message) ([]byte, error) {
	bodyBuf := newMarshaler(binary.LittleEndian)
	for _, v := range msg.Body {
		if err := bodyBuf.value(v); err != nil {
			return nil, fmt.Errorf("wire: encode body: %w", err)
		}
	}

	sig, err := BodySignature(msg.Body)
	if err != nil {
		return nil, fmt.Errorf("wire: encode: %w", err)
	}

	h := newMarshaler(binary.LittleEndian)
	h.byte('l')
	h.byte(byte(msg.Type))
	h.byte(byte(msg.Flags))
	h.byte(protocolVersion)
	h.uint32(uint32(len(bodyBuf.buf)))
	h.uint32(msg.Serial)

	fields := headerFieldsArray(msg, sig)
	if err := h.value(fields); err != nil {
		return nil, fmt.Errorf("wire: encode header fields: %w", err)
	}
	h.align(8)

	out := make([]byte, 0, len(h.buf)+len(bodyBuf.buf))
	out = append(out, h.buf...)
	out = append(out, bodyBuf.buf...)
	return out, nil
}

func headerFieldsArray(msg *Message, bodySig Signature) Array {
	arr := Array{Elem: "(yv)"}
	add := func(code headerField, sig Signature, value interface{}) {
		arr.Items = append(arr.Items, Struct{byte(code), Variant{Sig: sig, Value: value}})
	}
	if msg.HasPath() {
		add(fieldPath, "o", msg.Path)
	}
	if msg.Interface != "" {
		add(fieldInterface, "s", msg.Interface)
	}
	if msg.Member != "" {
		add(fieldMember, "s", msg.Member)
	}
	if msg.ErrorName != "" {
		add(fieldErrorName, "s", msg.ErrorName)
	}
	if msg.HasReplySerial() {
		add(fieldReplySerial, "u", msg.ReplySerial)
	}
	if msg.Destination != "" {
		add(fieldDestination, "s", msg.Destination)
	}
	if msg.Sender != "" {
		add(fieldSender, "s", msg.Sender)
	}
	if len(bodySig) > 0 {
		add(fieldSignature, "g", bodySig)
	}
	return arr
}

// Decode attempts to parse one message from the front of data. On
// success it returns the message and the number of bytes consumed. If
// data does not yet hold a complete message it returns a *NeedMoreError
// naming how many bytes are needed in total; the caller should retry
// once more bytes have arrived, per §4.3.
func Decode(data []byte) (*Message, int, error) {
	const fixedHeaderSize = 16
	if len(data) < fixedHeaderSize {
		return nil, 0, &NeedMoreError{Want: fixedHeaderSize}
	}

	switch data[0] {
	case 'l':
		// little-endian, the only order this module produces and the
		// common case for local daemons; continue below.
	case 'B':
		return nil, 0, fmt.Errorf("wire: big-endian messages not supported")
	default:
		return nil, 0, fmt.Errorf("wire: invalid endianness byte %#x", data[0])
	}
	order := binary.ByteOrder(binary.LittleEndian)

	msgType := Type(data[1])
	flags := Flags(data[2])
	if data[3] != protocolVersion {
		return nil, 0, fmt.Errorf("wire: unsupported protocol version %d", data[3])
	}
	bodyLen := order.Uint32(data[4:8])
	serial := order.Uint32(data[8:12])
	fieldsLen := order.Uint32(data[12:16])

	headerFieldsEnd := fixedHeaderSize + int(fieldsLen)
	bodyStart := align8(headerFieldsEnd)
	total := bodyStart + int(bodyLen)
	if len(data) < total {
		return nil, 0, &NeedMoreError{Want: total}
	}

	// The array-length field (fieldsLen) was already read directly from
	// the fixed header above, so the header fields array is parsed as a
	// bare struct sequence rather than through readValue("a(yv)"), which
	// would expect to read its own length prefix.
	u := &unmarshaler{data: data[:headerFieldsEnd], pos: fixedHeaderSize, order: order}
	var items []interface{}
	for u.pos < headerFieldsEnd {
		v, err := u.readValue("(yv)")
		if err != nil {
			return nil, 0, fmt.Errorf("wire: decode header fields: %w", err)
		}
		items = append(items, v)
	}
	msg := &Message{Type: msgType, Flags: flags, Serial: serial}
	for _, item := range items {
		s, ok := item.(Struct)
		if !ok || len(s) != 2 {
			continue
		}
		code, _ := s[0].(byte)
		variant, _ := s[1].(Variant)
		switch headerField(code) {
		case fieldPath:
			if p, ok := variant.Value.(ObjectPath); ok {
				msg.Path = p
			}
		case fieldInterface:
			if v, ok := variant.Value.(string); ok {
				msg.Interface = v
			}
		case fieldMember:
			if v, ok := variant.Value.(string); ok {
				msg.Member = v
			}
		case fieldErrorName:
			if v, ok := variant.Value.(string); ok {
				msg.ErrorName = v
			}
		case fieldReplySerial:
			if v, ok := variant.Value.(uint32); ok {
				msg.ReplySerial = v
			}
		case fieldDestination:
			if v, ok := variant.Value.(string); ok {
				msg.Destination = v
			}
		case fieldSender:
			if v, ok := variant.Value.(string); ok {
				msg.Sender = v
			}
		case fieldSignature:
			if v, ok := variant.Value.(Signature); ok {
				msg.Signature = v
			}
		}
	}

	if len(msg.Signature) > 0 {
		bu := &unmarshaler{data: data[bodyStart:total], pos: 0, order: order}
		rest := string(msg.Signature)
		for len(rest) > 0 {
			var head string
			var err error
			head, rest, err = splitOneType(rest)
			if err != nil {
				return nil, 0, fmt.Errorf("wire: decode body: %w", err)
			}
			v, err := bu.readValue(Signature(head))
			if err != nil {
				return nil, 0, fmt.Errorf("wire: decode body: %w", err)
			}
			msg.Body = append(msg.Body, v)
		}
	}

	return msg, total, nil
}
