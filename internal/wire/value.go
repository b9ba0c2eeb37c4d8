package wire

// Variant wraps a value whose concrete D-Bus type is carried alongside
// it on the wire (signature 'v').
type Variant struct {
	Sig   Signature
	Value interface{}
}

// Struct is a fixed-arity heterogeneous tuple (D-Bus "(...)").
type Struct []interface{}

// Array is a homogeneous D-Bus array ("a<Elem>"). Elem names the
// element signature explicitly rather than being inferred from Items,
// so an empty array still encodes with a well-defined element type.
type Array struct {
	Elem  Signature
	Items []interface{}
}

// DictEntry is one key/value pair of a D-Bus dict ("a{kv}").
type DictEntry struct {
	Key   interface{}
	Value interface{}
}

// Dict is an ordered D-Bus dict ("a{KeySig ValSig}"). It is
// represented as an ordered slice rather than a Go map so that nested,
// non-comparable values (structs, variants, arrays) can appear as
// dict values without fighting Go's map-key comparability rules; wire
// order is preserved on encode and is whatever order was read on
// decode. KeySig/ValSig make the element type explicit even for an
// empty dict.
type Dict struct {
	KeySig Signature
	ValSig Signature
	Entries []DictEntry
}

// UnixFD is a placeholder for a file-descriptor index carried in the
// body of a message whose signature contains 'h'. This module does
// not perform FD passing, so decoded 'h' values surface as the raw
// wire index only.
type UnixFD uint32
