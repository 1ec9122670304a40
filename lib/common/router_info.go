package common

/*
I2P RouterInfo
https://geti2p.net/spec/common-structures#routerinfo

+----+----+----+----+----+----+----+----+
| router_identity
+                                       +
~                                       ~
+----+----+----+----+----+----+----+----+
| published
+----+----+----+----+----+----+----+----+
|size| RouterAddress 0
+----+                                  +
~                                       ~
+----+----+----+----+----+----+----+----+
| RouterAddress 1 ...
+----+----+----+----+----+----+----+----+
|peer_size| (unused, always 0)
+----+----+----+----+----+----+----+----+
| options
+----+----+----+----+----+----+----+----+
| signature
+----+----+----+----+----+----+----+----+

router_identity :: RouterIdentity
published :: Date
size :: Integer, 1 byte, number of RouterAddresses that follow
addresses :: [RouterAddress]
peer_size :: Integer, 1 byte, unused, always 0
options :: Mapping
signature :: Signature
*/

import (
	"errors"

	"github.com/a55uka/emissary/lib/crypto"
	log "github.com/sirupsen/logrus"
)

// RouterInfo is a signed, dated collection of a router's identity,
// addresses, and options: the structure a transport reads to learn how
// to reach a peer and what its static keys are.
type RouterInfo struct {
	RouterIdentity RouterIdentity
	Published      Date
	Addresses      []RouterAddress
	PeerSize       *VarInt
	Options        Mapping
	Signature      []byte
}

// NewRouterInfo builds and signs a RouterInfo from its parts. signer, if
// non-nil, is used to sign the assembled structure; the signature is left
// empty otherwise (useful for constructing test fixtures where signature
// validity doesn't matter).
func NewRouterInfo(identity RouterIdentity, published Date, addresses []RouterAddress, options map[string]string, signer crypto.SigningPrivateKey) (*RouterInfo, error) {
	peerSize, err := NewIntegerFromInt(0, 1)
	if err != nil {
		return nil, err
	}
	ri := &RouterInfo{
		RouterIdentity: identity,
		Published:      published,
		Addresses:      addresses,
		PeerSize:       peerSize,
		Options:        *NewMappingFromValues(options),
	}
	if signer != nil {
		s, err := signer.NewSigner()
		if err != nil {
			return nil, err
		}
		sig, err := s.Sign(ri.signedBytes())
		if err != nil {
			return nil, err
		}
		ri.Signature = sig
	}
	return ri, nil
}

// signedBytes returns the portion of the RouterInfo wire encoding that is
// covered by Signature (everything except the signature itself).
func (ri RouterInfo) signedBytes() []byte {
	out := make([]byte, 0, 512)
	out = append(out, ri.RouterIdentity.Bytes()...)
	out = append(out, ri.Published.Bytes()...)
	sizeByte, _ := NewIntegerFromInt(len(ri.Addresses), 1)
	out = append(out, sizeByte.Bytes()...)
	for _, addr := range ri.Addresses {
		out = append(out, addr.Bytes()...)
	}
	out = append(out, ri.PeerSize.Bytes()...)
	out = append(out, ri.Options.Data()...)
	return out
}

// Bytes serializes the RouterInfo back to wire form, signature included.
func (ri RouterInfo) Bytes() []byte {
	return append(ri.signedBytes(), ri.Signature...)
}

// RouterAddresses returns the RouterInfo's addresses.
func (ri RouterInfo) RouterAddresses() []RouterAddress {
	return ri.Addresses
}

// IdentHash returns the 32-byte router identity hash.
func (ri RouterInfo) IdentHash() [32]byte {
	return ri.RouterIdentity.Hash()
}

// SSU2Address returns the RouterInfo's SSU2 RouterAddress along with its
// base64-encoded intro key ("i") and static key ("s") options, if present.
// ok is false if the RouterInfo advertises no SSU2 address.
func (ri RouterInfo) SSU2Address() (addr RouterAddress, introKeyB64 string, staticKeyB64 string, ok bool) {
	for _, a := range ri.Addresses {
		if a.TransportName() != "SSU2" {
			continue
		}
		introKeyB64, _ = a.GetOption("i")
		staticKeyB64, _ = a.GetOption("s")
		return a, introKeyB64, staticKeyB64, true
	}
	return RouterAddress{}, "", "", false
}

// ReadRouterInfo parses a RouterInfo from the front of data.
func ReadRouterInfo(data []byte) (ri RouterInfo, remainder []byte, err error) {
	identity, remainder, err := ReadRouterIdentity(data)
	if err != nil {
		log.WithFields(log.Fields{
			"at":     "ReadRouterInfo",
			"reason": "error parsing router identity",
		}).Error("error parsing RouterInfo")
		return
	}
	ri.RouterIdentity = identity

	published, remainder, err := NewDate(remainder)
	if err != nil {
		log.WithFields(log.Fields{
			"at":     "ReadRouterInfo",
			"reason": "error parsing published date",
		}).Error("error parsing RouterInfo")
		return
	}
	ri.Published = *published

	size, remainder, err := NewInteger(remainder, 1)
	if err != nil {
		log.WithFields(log.Fields{
			"at":     "ReadRouterInfo",
			"reason": "error parsing address count",
		}).Error("error parsing RouterInfo")
		return
	}
	count := size.Int()
	ri.Addresses = make([]RouterAddress, 0, count)
	for i := 0; i < count; i++ {
		var addr RouterAddress
		addr, remainder, err = ReadRouterAddress(remainder)
		if err != nil {
			log.WithFields(log.Fields{
				"at":     "ReadRouterInfo",
				"reason": "error parsing RouterAddress",
				"index":  i,
			}).Error("error parsing RouterInfo")
			return
		}
		ri.Addresses = append(ri.Addresses, addr)
	}

	peerSize, remainder, err := NewInteger(remainder, 1)
	if err != nil {
		log.WithFields(log.Fields{
			"at":     "ReadRouterInfo",
			"reason": "error parsing peer size",
		}).Error("error parsing RouterInfo")
		return
	}
	ri.PeerSize = peerSize

	var errs []error
	options, remainder, errs := NewMapping(remainder)
	for _, e := range errs {
		log.WithFields(log.Fields{
			"at":     "ReadRouterInfo",
			"reason": "error parsing options",
			"error":  e,
		}).Error("error parsing RouterInfo")
	}
	ri.Options = *options

	if len(remainder) == 0 {
		err = errors.New("error parsing RouterInfo: missing signature")
		return
	}
	ri.Signature = append([]byte(nil), remainder...)
	remainder = nil
	return
}
