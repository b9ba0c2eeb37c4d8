package wire

import (
	"encoding/binary"
	"fmt"
	"math"
)

type unmarshaler struct {
	data  []byte
	pos   int
	order binary.ByteOrder
}

func (u *unmarshaler) align(n int) error {
	pad := (n - u.pos%n) % n
	if u.pos+pad > len(u.data) {
		return fmt.Errorf("wire: truncated alignment padding")
	}
	u.pos += pad
	return nil
}

func (u *unmarshaler) need(n int) error {
	if u.pos+n > len(u.data) {
		return fmt.Errorf("wire: truncated value, need %d bytes at offset %d", n, u.pos)
	}
	return nil
}

func (u *unmarshaler) byte() (byte, error) {
	if err := u.need(1); err != nil {
		return 0, err
	}
	b := u.data[u.pos]
	u.pos++
	return b, nil
}

func (u *unmarshaler) uint16() (uint16, error) {
	if err := u.align(2); err != nil {
		return 0, err
	}
	if err := u.need(2); err != nil {
		return 0, err
	}
	v := u.order.Uint16(u.data[u.pos:])
	u.pos += 2
	return v, nil
}

func (u *unmarshaler) uint32() (uint32, error) {
	if err := u.align(4); err != nil {
		return 0, err
	}
	if err := u.need(4); err != nil {
		return 0, err
	}
	v := u.order.Uint32(u.data[u.pos:])
	u.pos += 4
	return v, nil
}

func (u *unmarshaler) uint64() (uint64, error) {
	if err := u.align(8); err != nil {
		return 0, err
	}
	if err := u.need(8); err != nil {
		return 0, err
	}
	v := u.order.Uint64(u.data[u.pos:])
	u.pos += 8
	return v, nil
}

func (u *unmarshaler) string() (string, error) {
	n, err := u.uint32()
	if err != nil {
		return "", err
	}
	if err := u.need(int(n) + 1); err != nil {
		return "", err
	}
	s := string(u.data[u.pos : u.pos+int(n)])
	u.pos += int(n) + 1 // skip trailing NUL
	return s, nil
}

func (u *unmarshaler) signatureStr() (Signature, error) {
	n, err := u.byte()
	if err != nil {
		return "", err
	}
	if err := u.need(int(n) + 1); err != nil {
		return "", err
	}
	s := Signature(u.data[u.pos : u.pos+int(n)])
	u.pos += int(n) + 1
	return s, nil
}

// splitOneType returns the first complete type in sig and the
// remainder, handling nested array/struct/dict markers.
func splitOneType(sig string) (head, rest string, err error) {
	if len(sig) == 0 {
		return "", "", fmt.Errorf("wire: empty signature")
	}
	switch sig[0] {
	case 'a':
		elemHead, elemRest, err := splitOneType(sig[1:])
		if err != nil {
			return "", "", err
		}
		return "a" + elemHead, elemRest, nil
	case '(':
		depth := 1
		i := 1
		for i < len(sig) && depth > 0 {
			switch sig[i] {
			case '(':
				depth++
			case ')':
				depth--
			}
			i++
		}
		if depth != 0 {
			return "", "", fmt.Errorf("wire: unbalanced struct signature %q", sig)
		}
		return sig[:i], sig[i:], nil
	case '{':
		depth := 1
		i := 1
		for i < len(sig) && depth > 0 {
			switch sig[i] {
			case '{':
				depth++
			case '}':
				depth--
			}
			i++
		}
		if depth != 0 {
			return "", "", fmt.Errorf("wire: unbalanced dict signature %q", sig)
		}
		return sig[:i], sig[i:], nil
	default:
		return sig[:1], sig[1:], nil
	}
}

func (u *unmarshaler) readValue(sig Signature) (interface{}, error) {
	if len(sig) == 0 {
		return nil, fmt.Errorf("wire: empty type signature")
	}
	switch sig[0] {
	case 'y':
		return u.byte()
	case 'b':
		v, err := u.uint32()
		if err != nil {
			return nil, err
		}
		return v != 0, nil
	case 'n':
		v, err := u.uint16()
		if err != nil {
			return nil, err
		}
		return int16(v), nil
	case 'q':
		return u.uint16()
	case 'i':
		v, err := u.uint32()
		if err != nil {
			return nil, err
		}
		return int32(v), nil
	case 'u':
		return u.uint32()
	case 'x':
		v, err := u.uint64()
		if err != nil {
			return nil, err
		}
		return int64(v), nil
	case 't':
		return u.uint64()
	case 'd':
		v, err := u.uint64()
		if err != nil {
			return nil, err
		}
		return math.Float64frombits(v), nil
	case 's':
		return u.string()
	case 'o':
		s, err := u.string()
		if err != nil {
			return nil, err
		}
		return ObjectPath(s), nil
	case 'g':
		return u.signatureStr()
	case 'h':
		v, err := u.uint32()
		if err != nil {
			return nil, err
		}
		return UnixFD(v), nil
	case 'v':
		vsig, err := u.signatureStr()
		if err != nil {
			return nil, err
		}
		val, err := u.readValue(vsig)
		if err != nil {
			return nil, err
		}
		return Variant{Sig: vsig, Value: val}, nil
	case '(':
		if err := u.align(8); err != nil {
			return nil, err
		}
		inner := sig[1 : len(sig)-1]
		var fields Struct
		for len(inner) > 0 {
			var head string
			var err error
			head, inner, err = splitOneType(string(inner))
			if err != nil {
				return nil, err
			}
			v, err := u.readValue(Signature(head))
			if err != nil {
				return nil, err
			}
			fields = append(fields, v)
		}
		return fields, nil
	case 'a':
		elemSig := sig[1:]
		length, err := u.uint32()
		if err != nil {
			return nil, err
		}
		if elemAlign(elemSig) > 4 {
			if err := u.align(elemAlign(elemSig)); err != nil {
				return nil, err
			}
		}
		end := u.pos + int(length)
		if end > len(u.data) {
			return nil, fmt.Errorf("wire: truncated array body")
		}
		if elemSig[0] == '{' {
			dictInner := elemSig[1 : len(elemSig)-1]
			keySig, valSig, err := splitOneType(string(dictInner))
			if err != nil {
				return nil, err
			}
			d := Dict{KeySig: Signature(keySig), ValSig: Signature(valSig)}
			for u.pos < end {
				if err := u.align(8); err != nil {
					return nil, err
				}
				k, err := u.readValue(Signature(keySig))
				if err != nil {
					return nil, err
				}
				v, err := u.readValue(Signature(valSig))
				if err != nil {
					return nil, err
				}
				d.Entries = append(d.Entries, DictEntry{Key: k, Value: v})
			}
			return d, nil
		}
		arr := Array{Elem: elemSig}
		for u.pos < end {
			v, err := u.readValue(elemSig)
			if err != nil {
				return nil, err
			}
			arr.Items = append(arr.Items, v)
		}
		return arr, nil
	default:
		return nil, fmt.Errorf("wire: unsupported type code %q", sig[0])
	}
}
