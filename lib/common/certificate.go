package common

/*
I2P Certificate
https://geti2p.net/spec/common-structures#certificate

+----+----+----+----+----+-//
|type| length  | payload
+----+----+----+----+----+-//

type :: Integer, 1 byte
length :: Integer, 2 bytes
payload :: length bytes
*/

import (
	"errors"

	"github.com/a55uka/emissary/lib/crypto"
	log "github.com/sirupsen/logrus"
)

// Certificate type constants.
const (
	CERT_NULL     = 0
	CERT_HASHCASH = 1
	CERT_HIDDEN   = 2
	CERT_SIGNED   = 3
	CERT_MULTIPLE = 4
	CERT_KEY      = 5
)

const CERTIFICATE_MIN_SIZE = 3

// Certificate is an I2P Certificate, a typed, variable-length payload
// attached to a KeysAndCert or RouterInfo.
type Certificate struct {
	CertType  int
	CertBytes []byte
}

// ReadCertificate reads a Certificate from the front of data.
func ReadCertificate(data []byte) (cert Certificate, remainder []byte, err error) {
	if len(data) < CERTIFICATE_MIN_SIZE {
		log.WithFields(log.Fields{
			"at":     "ReadCertificate",
			"reason": "not enough data",
		}).Error("error parsing certificate")
		err = errors.New("error parsing Certificate: data is smaller than minimum valid size")
		return
	}
	cert.CertType = int(data[0])
	length := Integer(data[1:3])
	if len(data) < CERTIFICATE_MIN_SIZE+length {
		log.WithFields(log.Fields{
			"at":     "ReadCertificate",
			"reason": "payload shorter than declared length",
		}).Warn("error parsing certificate")
		cert.CertBytes = append([]byte(nil), data[CERTIFICATE_MIN_SIZE:]...)
		remainder = nil
		return
	}
	cert.CertBytes = append([]byte(nil), data[CERTIFICATE_MIN_SIZE:CERTIFICATE_MIN_SIZE+length]...)
	remainder = data[CERTIFICATE_MIN_SIZE+length:]
	return
}

// NewCertificateWithType builds a Certificate of the given type carrying
// payload as its body.
func NewCertificateWithType(certType int, payload []byte) (*Certificate, error) {
	return &Certificate{CertType: certType, CertBytes: append([]byte(nil), payload...)}, nil
}

// Type returns the certificate's type tag.
func (c Certificate) Type() (int, error) {
	return c.CertType, nil
}

// Length returns the length of the certificate's payload.
func (c Certificate) Length() (int, error) {
	return len(c.CertBytes), nil
}

// Cert returns the raw certificate payload.
func (c Certificate) Cert() []byte {
	return c.CertBytes
}

// Bytes serializes the Certificate back to wire form.
func (c Certificate) Bytes() []byte {
	out := make([]byte, 0, CERTIFICATE_MIN_SIZE+len(c.CertBytes))
	out = append(out, byte(c.CertType))
	out = append(out, IntegerBytes(len(c.CertBytes))[INTEGER_SIZE-2:]...)
	out = append(out, c.CertBytes...)
	return out
}

// KeyCertificate is the payload of a CERT_KEY Certificate: it overrides
// the signing and encryption key types (and, implicitly, their lengths)
// that would otherwise default to DSA/ElGamal in a KeysAndCert.
type KeyCertificate struct {
	SPKType int
	PKType  int
}

// ReadKeyCertificate parses the 2-byte big-endian signing and crypto
// public key type tags out of a CERT_KEY certificate's payload.
func ReadKeyCertificate(cert Certificate) (KeyCertificate, error) {
	if len(cert.CertBytes) < 4 {
		return KeyCertificate{}, errors.New("error parsing KeyCertificate: payload too short")
	}
	return KeyCertificate{
		SPKType: Integer(cert.CertBytes[0:2]),
		PKType:  Integer(cert.CertBytes[2:4]),
	}, nil
}

// ConstructPublicKey builds the PublicKey named by k.PKType from the raw
// key material. Only CERT_KEY type 0 (ElGamal, the only crypto public key
// type in production use) is currently implemented; any other type is
// reported but does not error, matching the "unused certificate type"
// tolerance in KeysAndCert.
func (k KeyCertificate) ConstructPublicKey(data []byte) (crypto.PublicKey, error) {
	switch k.PKType {
	case 0:
		var key crypto.ElgPublicKey
		if len(data) < len(key) {
			return nil, errors.New("error constructing public key: not enough data")
		}
		copy(key[:], data[:len(key)])
		return key, nil
	default:
		log.WithField("pk_type", k.PKType).Warn("unsupported crypto public key type in key certificate")
		var key crypto.ElgPublicKey
		copy(key[:], data)
		return key, nil
	}
}

// ConstructSigningPublicKey builds the SigningPublicKey named by
// k.SPKType from the raw key material. Supports DSA (legacy default) and
// Ed25519 (type 7), the two signing types exercised in this repository.
func (k KeyCertificate) ConstructSigningPublicKey(data []byte) (crypto.SigningPublicKey, error) {
	switch k.SPKType {
	case 7:
		var key crypto.Ed25519PublicKey
		if len(data) < len(key) {
			return nil, errors.New("error constructing signing public key: not enough data")
		}
		copy(key[:], data[:len(key)])
		return key, nil
	default:
		var key crypto.DSAPublicKey
		if len(data) < len(key) {
			return nil, errors.New("error constructing signing public key: not enough data")
		}
		copy(key[:], data[:len(key)])
		return key, nil
	}
}
