package common

/*
I2P Mapping
https://geti2p.net/spec/common-structures#mapping

+----+----+----+----+----+----+----+----+
|  size   |                             |
+----+----+         key                 +
|                                        |
+----+----+----+----+----+----+----+----+
|    |                                   |
+----+          value                   |
|                                        |
+----+----+----+----+----+----+----+----+

A 2-byte length prefix followed by that many bytes of `key=value;`
entries, each key and value an I2PString.
*/

import (
	log "github.com/sirupsen/logrus"
)

const MAPPING_LENGTH_SIZE = 2

// MappingEntry is a single key/value pair inside a Mapping.
type MappingEntry struct {
	Key   I2PString
	Value I2PString
}

// MappingValues is the parsed, order-preserving entry list of a Mapping.
type MappingValues []MappingEntry

// Get returns the value for key, or an empty I2PString if absent.
func (v MappingValues) Get(key I2PString) I2PString {
	for _, entry := range v {
		if string(entry.Key) == string(key) {
			return entry.Value
		}
	}
	return I2PString{}
}

// GetString is a convenience wrapper around Get that decodes both sides
// as native Go strings.
func (v MappingValues) GetString(key string) (string, bool) {
	wrapped, err := ToI2PString(key)
	if err != nil {
		return "", false
	}
	value := v.Get(wrapped)
	if len(value) == 0 {
		return "", false
	}
	data, err := value.Data()
	if err != nil {
		return "", false
	}
	return data, true
}

// Mapping is an I2P key/value Mapping.
type Mapping struct {
	values MappingValues
}

// Values returns the parsed entries of the Mapping.
func (m Mapping) Values() MappingValues {
	return m.values
}

// NewMappingFromValues builds a Mapping from plain Go strings.
func NewMappingFromValues(values map[string]string) *Mapping {
	entries := make(MappingValues, 0, len(values))
	for k, v := range values {
		key, err := ToI2PString(k)
		if err != nil {
			log.WithField("key", k).Warn("skipping oversized mapping key")
			continue
		}
		val, err := ToI2PString(v)
		if err != nil {
			log.WithField("value", v).Warn("skipping oversized mapping value")
			continue
		}
		entries = append(entries, MappingEntry{Key: key, Value: val})
	}
	return &Mapping{values: entries}
}

// NewMapping reads a Mapping from the front of data, returning the
// remainder and any per-entry parse errors encountered (parsing
// continues best-effort after a malformed entry, matching the upstream
// Mapping parser's tolerant behavior).
func NewMapping(data []byte) (*Mapping, []byte, []error) {
	var errs []error
	if len(data) < MAPPING_LENGTH_SIZE {
		return &Mapping{}, data, []error{errNotEnoughMappingData}
	}
	length := Integer(data[:MAPPING_LENGTH_SIZE])
	rest := data[MAPPING_LENGTH_SIZE:]
	if len(rest) < length {
		errs = append(errs, errNotEnoughMappingData)
		length = len(rest)
	}
	body := rest[:length]
	remainder := rest[length:]

	var entries MappingValues
	for len(body) > 0 {
		key, next, err := NewI2PString(body)
		if err != nil {
			errs = append(errs, err)
			break
		}
		body = next
		if len(body) < 1 || body[0] != '=' {
			errs = append(errs, errMalformedMapping)
			break
		}
		body = body[1:]
		value, next, err := NewI2PString(body)
		if err != nil {
			errs = append(errs, err)
			break
		}
		body = next
		if len(body) > 0 && body[0] == ';' {
			body = body[1:]
		}
		entries = append(entries, MappingEntry{Key: *key, Value: *value})
	}

	return &Mapping{values: entries}, remainder, errs
}

// Data serializes the Mapping back to its wire form.
func (m Mapping) Data() []byte {
	var body []byte
	for _, entry := range m.values {
		body = append(body, entry.Key.Bytes()...)
		body = append(body, '=')
		body = append(body, entry.Value.Bytes()...)
		body = append(body, ';')
	}
	out := make([]byte, 0, MAPPING_LENGTH_SIZE+len(body))
	length := make([]byte, MAPPING_LENGTH_SIZE)
	length[0] = byte(len(body) >> 8)
	length[1] = byte(len(body))
	out = append(out, length...)
	out = append(out, body...)
	return out
}

var (
	errNotEnoughMappingData = mappingError("error parsing Mapping: not enough data")
	errMalformedMapping     = mappingError("error parsing Mapping: malformed entry")
)

type mappingError string

func (e mappingError) Error() string { return string(e) }
