package adt

import (
	"encoding/binary"

	"golang.org/x/xerrors"
)

// Adapts an unsigned integer as a mapping key. The key is the unsigned varint encoding.
type UIntKey uint64

func (k UIntKey) Key() string {
	buf := make([]byte, binary.MaxVarintLen64)
	n := binary.PutUvarint(buf, uint64(k))
	return string(buf[:n])
}

// Parses a key built by UIntKey.
func ParseUIntKey(k string) (uint64, error) {
	i, n := binary.Uvarint([]byte(k))
	if n != len(k) {
		return 0, xerrors.Errorf("failed to parse uint key %x: consumed %d of %d bytes", k, n, len(k))
	}
	return i, nil
}

// Adapts a raw string as a mapping key.
type StringKey string

func (k StringKey) Key() string {
	return string(k)
}
