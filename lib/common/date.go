package common

/*
I2P Date
https://geti2p.net/spec/common-structures#date

8 bytes, milliseconds since the Unix epoch, big-endian. A Date of all
zeros means "never expires" where that is contextually meaningful (see
RouterAddress.Expiration).
*/

import (
	"encoding/binary"
	"errors"
	"time"
)

const DATE_SIZE = 8

// Date is an I2P millisecond-resolution timestamp.
type Date struct {
	millis uint64
}

// NewDate reads a Date from the front of data.
func NewDate(data []byte) (*Date, []byte, error) {
	if len(data) < DATE_SIZE {
		return nil, data, errors.New("error parsing Date: not enough data")
	}
	return &Date{millis: binary.BigEndian.Uint64(data[:DATE_SIZE])}, data[DATE_SIZE:], nil
}

// DateFromTime builds a Date from a time.Time.
func DateFromTime(t time.Time) (*Date, error) {
	return &Date{millis: uint64(t.UnixMilli())}, nil
}

// Time returns the Date as a time.Time.
func (d *Date) Time() time.Time {
	if d == nil {
		return time.Time{}
	}
	return time.UnixMilli(int64(d.millis))
}

// Bytes returns the 8-byte big-endian encoding of the Date.
func (d *Date) Bytes() []byte {
	out := make([]byte, DATE_SIZE)
	if d != nil {
		binary.BigEndian.PutUint64(out, d.millis)
	}
	return out
}
