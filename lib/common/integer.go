package common

/*
I2P Integer
https://geti2p.net/spec/common-structures#integer
Accurate for version 0.9.24
*/

import (
	"encoding/binary"
	"errors"
)

// Total byte length of an I2P integer
const (
	INTEGER_SIZE = 8
)

//
// Interpret a slice of bytes from length 0 to length 8 as a big-endian
// integer and return an int representation.
//
func Integer(number []byte) (value int) {
	num_len := len(number)
	if num_len < INTEGER_SIZE {
		number = append(
			make([]byte, INTEGER_SIZE-num_len),
			number...,
		)
	}
	value = int(binary.BigEndian.Uint64(number))
	return
}

//
// Take an int representation and return a big endian integer.
//
func IntegerBytes(value int) (number []byte) {
	number = make([]byte, INTEGER_SIZE)
	binary.BigEndian.PutUint64(number, uint64(value))
	return
}

// VarInt is a variable-width (1-8 byte) big-endian I2P integer, the form
// used by most common-structures fields (RouterAddress cost, Certificate
// length, KeyCertificate key types). It reuses Integer/IntegerBytes above
// for the actual big-endian conversion.
type VarInt struct {
	value int
	size  int
}

// NewInteger reads a VarInt of the given size from the front of data.
func NewInteger(data []byte, size int) (*VarInt, []byte, error) {
	if size < 1 {
		return nil, data, errors.New("error parsing Integer: size must be at least 1")
	}
	if len(data) < size {
		return nil, data, errors.New("error parsing Integer: not enough data")
	}
	return &VarInt{value: Integer(data[:size]), size: size}, data[size:], nil
}

// NewIntegerFromInt builds a VarInt of the given size from a native int,
// truncating to the low size*8 bits.
func NewIntegerFromInt(value int, size int) (*VarInt, error) {
	if size < 1 || size > INTEGER_SIZE {
		return nil, errors.New("error creating Integer: invalid size")
	}
	return &VarInt{value: value, size: size}, nil
}

// Int returns the native int value.
func (i *VarInt) Int() int {
	if i == nil {
		return 0
	}
	return i.value
}

// Bytes returns the big-endian, size-byte encoding of the integer.
func (i *VarInt) Bytes() []byte {
	if i == nil {
		return nil
	}
	full := IntegerBytes(i.value)
	return full[INTEGER_SIZE-i.size:]
}
