package common

/*
I2P String
https://geti2p.net/spec/common-structures#string

A 1-byte length prefix followed by that many bytes of UTF-8 data.
*/

import (
	"encoding/base64"
	"errors"
)

// i2pBase64 is I2P's modified base64 alphabet: '-' and '~' in place of
// the standard '+' and '/', used throughout router addresses and
// destinations for keys encoded as printable options (e.g. a RouterAddress's
// SSU2 "i"/"s" options). No third-party library in the retrieved example
// pack implements this alphabet, so it is built directly on
// encoding/base64.NewEncoding, the same approach stdlib-based I2P tooling
// takes for it.
var i2pBase64 = base64.NewEncoding("ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789-~").WithPadding(base64.NoPadding)

// Base64Decode decodes an I2P-alphabet base64 string (as carried in
// RouterAddress options) to raw bytes.
func Base64Decode(s string) ([]byte, error) {
	return i2pBase64.DecodeString(s)
}

// Base64Encode encodes raw bytes using I2P's base64 alphabet.
func Base64Encode(b []byte) string {
	return i2pBase64.EncodeToString(b)
}

// I2PString is a length-prefixed UTF-8 string as used throughout the
// common data structures (RouterAddress transport style, Mapping keys
// and values).
type I2PString []byte

// ToI2PString builds an I2PString from a native Go string.
func ToI2PString(s string) (I2PString, error) {
	if len(s) > 255 {
		return nil, errors.New("error creating I2PString: string too long")
	}
	out := make(I2PString, 0, len(s)+1)
	out = append(out, byte(len(s)))
	out = append(out, []byte(s)...)
	return out, nil
}

// NewI2PString reads an I2PString from the front of data.
func NewI2PString(data []byte) (*I2PString, []byte, error) {
	if len(data) < 1 {
		return nil, data, errors.New("error parsing I2PString: no data")
	}
	length := int(data[0])
	if len(data) < 1+length {
		return nil, data, errors.New("error parsing I2PString: not enough data")
	}
	s := I2PString(append([]byte{byte(length)}, data[1:1+length]...))
	return &s, data[1+length:], nil
}

// Data returns the string content without the length prefix.
func (s I2PString) Data() (string, error) {
	if len(s) < 1 {
		return "", errors.New("error reading I2PString: empty")
	}
	length := int(s[0])
	if len(s) < 1+length {
		return "", errors.New("error reading I2PString: malformed")
	}
	return string(s[1 : 1+length]), nil
}

// Bytes returns the full length-prefixed wire encoding.
func (s I2PString) Bytes() []byte {
	return []byte(s)
}
