// Copyright 2026 TRIP Verifier Project
//
// Canonical Encoding - deterministic binary-object encoding for wire messages
// Per the TRIP Verifier specification: integer map keys sorted ascending,
// shortest-length integer encoding, no indeterminate-length forms.
//
// This is a small, purpose-built codec rather than a generic reflection-based
// one: every wire message (Breadcrumb, Epoch, PoH Certificate) has a fixed,
// spec-defined field layout, so the encoder's only job is to make that layout
// byte-for-byte reproducible across processes and across encode/decode
// round-trips.

package canon

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
)

// Value kinds. These are wire tags, not Go types — keep them stable.
const (
	KindUint  byte = 0x01
	KindBytes byte = 0x02
	KindNull  byte = 0x03
	KindMeta  byte = 0x04
)

var (
	// ErrTruncated indicates the input ended before a complete value could be read.
	ErrTruncated = errors.New("canon: truncated encoding")
	// ErrBadTag indicates an unrecognized value tag was encountered while decoding.
	ErrBadTag = errors.New("canon: unrecognized value tag")
	// ErrNotSorted indicates map keys were not in strictly ascending order.
	ErrNotSorted = errors.New("canon: map keys not in ascending canonical order")
)

// Value is a tagged field value: an unsigned integer, a byte string, an
// explicit null, or a meta-flags map.
type Value struct {
	Kind  byte
	Uint  uint64
	Bytes []byte
	Meta  map[string]bool
}

// Uint constructs an unsigned-integer value.
func Uint(v uint64) Value { return Value{Kind: KindUint, Uint: v} }

// Bytes constructs a byte-string value.
func Bytes(b []byte) Value { return Value{Kind: KindBytes, Bytes: b} }

// Null constructs the explicit null sentinel.
func Null() Value { return Value{Kind: KindNull} }

// MetaMap constructs a meta-flags value from a string->bool map.
func MetaMap(m map[string]bool) Value { return Value{Kind: KindMeta, Meta: m} }

// Entry is one (integer key, value) pair of a canonical map.
type Entry struct {
	Key   int
	Value Value
}

// Encode serializes entries in ascending key order. Entries must already be
// sorted by Key; Encode returns ErrNotSorted otherwise so that callers never
// silently produce a non-canonical encoding.
func Encode(entries []Entry) ([]byte, error) {
	for i := 1; i < len(entries); i++ {
		if entries[i].Key <= entries[i-1].Key {
			return nil, ErrNotSorted
		}
	}

	var buf bytes.Buffer
	writeUintShort(&buf, uint64(len(entries)))
	for _, e := range entries {
		writeUintShort(&buf, uint64(e.Key))
		if err := writeValue(&buf, e.Value); err != nil {
			return nil, err
		}
	}
	return buf.Bytes(), nil
}

// Decode parses a canonical map into its entries, in the ascending key order
// they were written. It rejects encodings whose keys are not strictly
// ascending, since such an encoding could not have come from Encode.
func Decode(data []byte) ([]Entry, error) {
	r := bytes.NewReader(data)
	n, err := readUintShort(r)
	if err != nil {
		return nil, err
	}
	entries := make([]Entry, 0, n)
	lastKey := -1
	for i := uint64(0); i < n; i++ {
		key, err := readUintShort(r)
		if err != nil {
			return nil, err
		}
		if int(key) <= lastKey {
			return nil, ErrNotSorted
		}
		lastKey = int(key)
		v, err := readValue(r)
		if err != nil {
			return nil, err
		}
		entries = append(entries, Entry{Key: int(key), Value: v})
	}
	return entries, nil
}

// DecodeOne parses a single canonical map from the front of data and returns
// the entries together with the number of bytes consumed, so callers can
// decode a concatenation of several canonical messages back to back.
func DecodeOne(data []byte) (entries []Entry, consumed int, err error) {
	r := bytes.NewReader(data)
	n, err := readUintShort(r)
	if err != nil {
		return nil, 0, err
	}
	out := make([]Entry, 0, n)
	lastKey := -1
	for i := uint64(0); i < n; i++ {
		key, err := readUintShort(r)
		if err != nil {
			return nil, 0, err
		}
		if int(key) <= lastKey {
			return nil, 0, ErrNotSorted
		}
		lastKey = int(key)
		v, err := readValue(r)
		if err != nil {
			return nil, 0, err
		}
		out = append(out, Entry{Key: int(key), Value: v})
	}
	return out, len(data) - r.Len(), nil
}

// Lookup returns the value for key, if present.
func Lookup(entries []Entry, key int) (Value, bool) {
	for _, e := range entries {
		if e.Key == key {
			return e.Value, true
		}
	}
	return Value{}, false
}

func writeValue(buf *bytes.Buffer, v Value) error {
	buf.WriteByte(v.Kind)
	switch v.Kind {
	case KindUint:
		writeUintShort(buf, v.Uint)
	case KindBytes:
		writeUintShort(buf, uint64(len(v.Bytes)))
		buf.Write(v.Bytes)
	case KindNull:
		// no payload
	case KindMeta:
		keys := make([]string, 0, len(v.Meta))
		for k := range v.Meta {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		writeUintShort(buf, uint64(len(keys)))
		for _, k := range keys {
			writeUintShort(buf, uint64(len(k)))
			buf.WriteString(k)
			if v.Meta[k] {
				buf.WriteByte(1)
			} else {
				buf.WriteByte(0)
			}
		}
	default:
		return fmt.Errorf("%w: %d", ErrBadTag, v.Kind)
	}
	return nil
}

func readValue(r *bytes.Reader) (Value, error) {
	tag, err := r.ReadByte()
	if err != nil {
		return Value{}, ErrTruncated
	}
	switch tag {
	case KindUint:
		u, err := readUintShort(r)
		if err != nil {
			return Value{}, err
		}
		return Uint(u), nil
	case KindBytes:
		n, err := readUintShort(r)
		if err != nil {
			return Value{}, err
		}
		b := make([]byte, n)
		if _, err := readFull(r, b); err != nil {
			return Value{}, err
		}
		return Bytes(b), nil
	case KindNull:
		return Null(), nil
	case KindMeta:
		n, err := readUintShort(r)
		if err != nil {
			return Value{}, err
		}
		m := make(map[string]bool, n)
		for i := uint64(0); i < n; i++ {
			klen, err := readUintShort(r)
			if err != nil {
				return Value{}, err
			}
			kb := make([]byte, klen)
			if _, err := readFull(r, kb); err != nil {
				return Value{}, err
			}
			flag, err := r.ReadByte()
			if err != nil {
				return Value{}, ErrTruncated
			}
			m[string(kb)] = flag != 0
		}
		return MetaMap(m), nil
	default:
		return Value{}, fmt.Errorf("%w: %d", ErrBadTag, tag)
	}
}

// writeUintShort writes v using the shortest of 1/2/4/8 bytes, preceded by a
// single length byte, so two encoders never disagree about how many bytes a
// given magnitude needs.
func writeUintShort(buf *bytes.Buffer, v uint64) {
	switch {
	case v < 1<<8:
		buf.WriteByte(1)
		buf.WriteByte(byte(v))
	case v < 1<<16:
		buf.WriteByte(2)
		buf.WriteByte(byte(v >> 8))
		buf.WriteByte(byte(v))
	case v < 1<<32:
		buf.WriteByte(4)
		for i := 3; i >= 0; i-- {
			buf.WriteByte(byte(v >> (8 * uint(i))))
		}
	default:
		buf.WriteByte(8)
		for i := 7; i >= 0; i-- {
			buf.WriteByte(byte(v >> (8 * uint(i))))
		}
	}
}

func readUintShort(r *bytes.Reader) (uint64, error) {
	lenByte, err := r.ReadByte()
	if err != nil {
		return 0, ErrTruncated
	}
	switch lenByte {
	case 1, 2, 4, 8:
		buf := make([]byte, lenByte)
		if _, err := readFull(r, buf); err != nil {
			return 0, err
		}
		var v uint64
		for _, b := range buf {
			v = v<<8 | uint64(b)
		}
		// Reject non-shortest encodings: a value that fits in a shorter form
		// must never have been written in a longer one.
		if lenByte > 1 && v < minForLen(lenByte) {
			return 0, fmt.Errorf("canon: non-canonical integer length %d for value %d", lenByte, v)
		}
		return v, nil
	default:
		return 0, fmt.Errorf("%w: bad integer length byte %d", ErrBadTag, lenByte)
	}
}

func minForLen(lenByte byte) uint64 {
	switch lenByte {
	case 2:
		return 1 << 8
	case 4:
		return 1 << 16
	case 8:
		return 1 << 32
	default:
		return 0
	}
}

func readFull(r *bytes.Reader, b []byte) (int, error) {
	n, err := r.Read(b)
	if err != nil || n != len(b) {
		return n, ErrTruncated
	}
	return n, nil
}
