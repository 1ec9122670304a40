package ssu2

/*
Block codec.

Each block on the wire is type(1) | length(2) | body(length). Parsing is
total: ParseBlocks either consumes the buffer exactly into an ordered
block list or rejects the whole packet as Malformed. Unknown block types
are a hard failure in strict mode (handshake messages) and are skipped
(with a log line) in tolerant mode (data phase), per the Block
description.
*/

import (
	"encoding/binary"

	"github.com/a55uka/emissary/lib/common"
	"github.com/go-i2p/logger"
	"github.com/sirupsen/logrus"
)

var blockLog = logger.GetGoI2PLogger()

type BlockType byte

const (
	BlockTypeDateTime          BlockType = 0
	BlockTypeOptions           BlockType = 1
	BlockTypeRouterInfo        BlockType = 2
	BlockTypeI2NP              BlockType = 3
	BlockTypeFirstFragment     BlockType = 4
	BlockTypeFollowOnFragment  BlockType = 5
	BlockTypeTermination       BlockType = 6
	BlockTypeRelayRequest      BlockType = 7
	BlockTypeRelayResponse     BlockType = 8
	BlockTypeRelayIntro        BlockType = 9
	BlockTypePeerTest          BlockType = 10
	BlockTypePadding           BlockType = 18
	BlockTypeAck               BlockType = 254
	BlockTypeAddress           BlockType = 255
)

// Block is a single tagged sub-record carried inside an AEAD-protected
// SSU2 payload.
type Block interface {
	Type() BlockType
	Encode() []byte
}

// DateTimeBlock carries a Unix-seconds timestamp.
type DateTimeBlock struct{ Seconds uint32 }

func (b DateTimeBlock) Type() BlockType { return BlockTypeDateTime }
func (b DateTimeBlock) Encode() []byte {
	out := make([]byte, 4)
	binary.BigEndian.PutUint32(out, b.Seconds)
	return out
}

// OptionsBlock carries a Mapping of free-form key/value options.
type OptionsBlock struct{ Options common.Mapping }

func (b OptionsBlock) Type() BlockType { return BlockTypeOptions }
func (b OptionsBlock) Encode() []byte  { return b.Options.Data() }

// RouterInfoBlock carries a peer's full RouterInfo, mandatory in
// SessionConfirmed.
type RouterInfoBlock struct{ Info common.RouterInfo }

func (b RouterInfoBlock) Type() BlockType { return BlockTypeRouterInfo }
func (b RouterInfoBlock) Encode() []byte  { return b.Info.Bytes() }

// I2NPBlock carries a complete (unfragmented) I2NP message.
type I2NPBlock struct {
	MsgType    byte
	MessageID  uint32
	Expiration uint32
	Payload    []byte
}

func (b I2NPBlock) Type() BlockType { return BlockTypeI2NP }
func (b I2NPBlock) Encode() []byte {
	out := make([]byte, 9+len(b.Payload))
	out[0] = b.MsgType
	binary.BigEndian.PutUint32(out[1:5], b.MessageID)
	binary.BigEndian.PutUint32(out[5:9], b.Expiration)
	copy(out[9:], b.Payload)
	return out
}

// FirstFragmentBlock carries the first fragment of an oversized I2NP
// message; FragmentCount is the total number of fragments to follow.
type FirstFragmentBlock struct {
	MsgType       byte
	MessageID     uint32
	Expiration    uint32
	FragmentCount byte
	Payload       []byte
}

func (b FirstFragmentBlock) Type() BlockType { return BlockTypeFirstFragment }
func (b FirstFragmentBlock) Encode() []byte {
	out := make([]byte, 10+len(b.Payload))
	out[0] = b.MsgType
	binary.BigEndian.PutUint32(out[1:5], b.MessageID)
	binary.BigEndian.PutUint32(out[5:9], b.Expiration)
	out[9] = b.FragmentCount
	copy(out[10:], b.Payload)
	return out
}

// FollowOnFragmentBlock carries a subsequent fragment; Last marks the
// final fragment of the message.
type FollowOnFragmentBlock struct {
	MessageID uint32
	FragNum   byte
	Last      bool
	Payload   []byte
}

func (b FollowOnFragmentBlock) Type() BlockType { return BlockTypeFollowOnFragment }
func (b FollowOnFragmentBlock) Encode() []byte {
	out := make([]byte, 6+len(b.Payload))
	binary.BigEndian.PutUint32(out[0:4], b.MessageID)
	out[4] = b.FragNum
	if b.Last {
		out[5] = 1
	}
	copy(out[6:], b.Payload)
	return out
}

// TerminationBlock carries the reason a session is ending, optionally
// followed by the highest packet number received so far.
type TerminationBlock struct {
	Reason          TerminationReason
	LastReceivedPkt uint32
}

func (b TerminationBlock) Type() BlockType { return BlockTypeTermination }
func (b TerminationBlock) Encode() []byte {
	out := make([]byte, 5)
	out[0] = byte(b.Reason)
	binary.BigEndian.PutUint32(out[1:5], b.LastReceivedPkt)
	return out
}

// AckRange is a single (NACKs, ACKs) run in an Ack block's range list.
type AckRange struct {
	NACKs byte
	ACKs  byte
}

// AckBlock reports received packet numbers: AckThrough is the highest
// contiguously-received packet number, Ranges describes gaps below it.
type AckBlock struct {
	AckThrough uint32
	Ranges     []AckRange
}

func (b AckBlock) Type() BlockType { return BlockTypeAck }
func (b AckBlock) Encode() []byte {
	out := make([]byte, 5+2*len(b.Ranges))
	binary.BigEndian.PutUint32(out[0:4], b.AckThrough)
	out[4] = byte(len(b.Ranges))
	for i, r := range b.Ranges {
		out[5+2*i] = r.NACKs
		out[5+2*i+1] = r.ACKs
	}
	return out
}

// AddressBlock carries a UDP socket address, used in TokenRequest/Retry
// replies so the peer can learn its own externally visible address.
type AddressBlock struct {
	IP   []byte
	Port uint16
}

func (b AddressBlock) Type() BlockType { return BlockTypeAddress }
func (b AddressBlock) Encode() []byte {
	out := make([]byte, 3+len(b.IP))
	if len(b.IP) == 16 {
		out[0] = 6
	} else {
		out[0] = 4
	}
	binary.BigEndian.PutUint16(out[1:3], b.Port)
	copy(out[3:], b.IP)
	return out
}

// PaddingBlock carries arbitrary filler bytes used to round a packet up
// to a minimum size and obscure its true content length.
type PaddingBlock struct{ Data []byte }

func (b PaddingBlock) Type() BlockType { return BlockTypePadding }
func (b PaddingBlock) Encode() []byte  { return b.Data }

// PeerTestBlock, RelayRequestBlock, RelayResponseBlock, RelayIntroBlock
// carry the NAT-traversal message types; their payload
// structure is out of this transport's tested scope
// so they are modeled as opaque bodies round-tripped verbatim.
type PeerTestBlock struct{ Raw []byte }

func (b PeerTestBlock) Type() BlockType { return BlockTypePeerTest }
func (b PeerTestBlock) Encode() []byte  { return b.Raw }

type RelayRequestBlock struct{ Raw []byte }

func (b RelayRequestBlock) Type() BlockType { return BlockTypeRelayRequest }
func (b RelayRequestBlock) Encode() []byte  { return b.Raw }

type RelayResponseBlock struct{ Raw []byte }

func (b RelayResponseBlock) Type() BlockType { return BlockTypeRelayResponse }
func (b RelayResponseBlock) Encode() []byte  { return b.Raw }

type RelayIntroBlock struct{ Raw []byte }

func (b RelayIntroBlock) Type() BlockType { return BlockTypeRelayIntro }
func (b RelayIntroBlock) Encode() []byte  { return b.Raw }

// UnknownBlock preserves an unrecognized block's raw type tag and body so
// tolerant (data-phase) parsing can log and skip it without losing the
// byte accounting needed to keep parsing total.
type UnknownBlock struct {
	RawType BlockType
	Raw     []byte
}

func (b UnknownBlock) Type() BlockType { return b.RawType }
func (b UnknownBlock) Encode() []byte  { return b.Raw }

// AppendBlock serializes block and appends its wire form (type, length,
// body) to buf, returning the extended slice.
func AppendBlock(buf []byte, b Block) []byte {
	body := b.Encode()
	header := make([]byte, 3)
	header[0] = byte(b.Type())
	binary.BigEndian.PutUint16(header[1:3], uint16(len(body)))
	buf = append(buf, header...)
	buf = append(buf, body...)
	return buf
}

// ParseBlocks parses data into an ordered list of blocks. strict rejects
// unknown block types (used for handshake messages); otherwise unknown
// types are logged and left out of the result. Parsing is total: any
// trailing bytes that don't form a complete block header+body is
// Malformed.
func ParseBlocks(data []byte, strict bool) ([]Block, error) {
	var blocks []Block
	for len(data) > 0 {
		if len(data) < 3 {
			return nil, ErrMalformed
		}
		typ := BlockType(data[0])
		length := int(binary.BigEndian.Uint16(data[1:3]))
		if len(data) < 3+length {
			return nil, ErrMalformed
		}
		body := data[3 : 3+length]
		data = data[3+length:]

		block, err := decodeBlock(typ, body)
		if err != nil {
			if strict {
				return nil, ErrMalformed
			}
			blockLog.WithFields(logrus.Fields{
				"type":   typ,
				"length": length,
			}).Warn("skipping unparsable block in data phase")
			continue
		}
		if _, isUnknown := block.(UnknownBlock); isUnknown {
			if strict {
				return nil, ErrMalformed
			}
			blockLog.WithField("type", typ).Warn("skipping unknown block type in data phase")
			continue
		}
		blocks = append(blocks, block)
	}
	return blocks, nil
}

func decodeBlock(typ BlockType, body []byte) (Block, error) {
	switch typ {
	case BlockTypeDateTime:
		if len(body) != 4 {
			return nil, ErrMalformed
		}
		return DateTimeBlock{Seconds: binary.BigEndian.Uint32(body)}, nil
	case BlockTypeOptions:
		prefixed := make([]byte, 2+len(body))
		binary.BigEndian.PutUint16(prefixed[0:2], uint16(len(body)))
		copy(prefixed[2:], body)
		mapping, _, errs := common.NewMapping(prefixed)
		if len(errs) > 0 {
			return nil, ErrMalformed
		}
		return OptionsBlock{Options: *mapping}, nil
	case BlockTypeRouterInfo:
		info, _, err := common.ReadRouterInfo(body)
		if err != nil {
			return nil, ErrMalformed
		}
		return RouterInfoBlock{Info: info}, nil
	case BlockTypeI2NP:
		if len(body) < 9 {
			return nil, ErrMalformed
		}
		return I2NPBlock{
			MsgType:    body[0],
			MessageID:  binary.BigEndian.Uint32(body[1:5]),
			Expiration: binary.BigEndian.Uint32(body[5:9]),
			Payload:    append([]byte(nil), body[9:]...),
		}, nil
	case BlockTypeFirstFragment:
		if len(body) < 10 {
			return nil, ErrMalformed
		}
		return FirstFragmentBlock{
			MsgType:       body[0],
			MessageID:     binary.BigEndian.Uint32(body[1:5]),
			Expiration:    binary.BigEndian.Uint32(body[5:9]),
			FragmentCount: body[9],
			Payload:       append([]byte(nil), body[10:]...),
		}, nil
	case BlockTypeFollowOnFragment:
		if len(body) < 6 {
			return nil, ErrMalformed
		}
		return FollowOnFragmentBlock{
			MessageID: binary.BigEndian.Uint32(body[0:4]),
			FragNum:   body[4],
			Last:      body[5] != 0,
			Payload:   append([]byte(nil), body[6:]...),
		}, nil
	case BlockTypeTermination:
		if len(body) < 1 {
			return nil, ErrMalformed
		}
		b := TerminationBlock{Reason: TerminationReason(body[0])}
		if len(body) >= 5 {
			b.LastReceivedPkt = binary.BigEndian.Uint32(body[1:5])
		}
		return b, nil
	case BlockTypeRelayRequest:
		return RelayRequestBlock{Raw: append([]byte(nil), body...)}, nil
	case BlockTypeRelayResponse:
		return RelayResponseBlock{Raw: append([]byte(nil), body...)}, nil
	case BlockTypeRelayIntro:
		return RelayIntroBlock{Raw: append([]byte(nil), body...)}, nil
	case BlockTypePeerTest:
		return PeerTestBlock{Raw: append([]byte(nil), body...)}, nil
	case BlockTypePadding:
		return PaddingBlock{Data: append([]byte(nil), body...)}, nil
	case BlockTypeAck:
		if len(body) < 5 {
			return nil, ErrMalformed
		}
		numRanges := int(body[4])
		if len(body) != 5+2*numRanges {
			return nil, ErrMalformed
		}
		ranges := make([]AckRange, numRanges)
		for i := 0; i < numRanges; i++ {
			ranges[i] = AckRange{NACKs: body[5+2*i], ACKs: body[5+2*i+1]}
		}
		return AckBlock{AckThrough: binary.BigEndian.Uint32(body[0:4]), Ranges: ranges}, nil
	case BlockTypeAddress:
		if len(body) < 3 {
			return nil, ErrMalformed
		}
		port := binary.BigEndian.Uint16(body[1:3])
		ip := append([]byte(nil), body[3:]...)
		return AddressBlock{IP: ip, Port: port}, nil
	default:
		return UnknownBlock{RawType: typ, Raw: append([]byte(nil), body...)}, nil
	}
}

// PadTo appends a PaddingBlock so the serialized blocks reach at least
// minSize bytes in total, rounding packets up to a minimum size.
func PadTo(blocks []byte, minSize int) []byte {
	if len(blocks) >= minSize {
		return blocks
	}
	need := minSize - len(blocks) - 3
	if need < 0 {
		need = 0
	}
	return AppendBlock(blocks, PaddingBlock{Data: make([]byte, need)})
}
