// Package wire implements the on-the-wire packet and frame codec: fixed
// big-endian headers, length-prefixed frames, and the two verification
// tails (CRC-64/ECMA-182 and Ed25519-over-BLAKE3) that protect every
// datagram exchanged between sender and receiver.
package wire

import "fmt"

const (
	// Version is the only packet version this codec understands.
	Version uint8 = 1

	// MTU bounds the size of a single on-wire packet.
	MTU = 1490

	// DefaultFrameLen bounds the size of a single fountain-code symbol
	// payload carried in a Data frame.
	DefaultFrameLen = 1440

	// TransmissionInfoLength is the width of the opaque decoder
	// configuration blob a Data frame's header carries.
	TransmissionInfoLength = 12

	// PageSize is the alignment unit chunk boundaries must respect.
	PageSize = 4096

	// ChunkSize is the nominal size of a full chunk: 8192 pages of 4096 B.
	ChunkSize = 8192 * PageSize

	// PubKeyLength is the width of an Ed25519 public key.
	PubKeyLength = 32

	// Ed25519SignatureLength is the width of the Ed25519 verification tail.
	Ed25519SignatureLength = 64

	// CRC64TailLength is the width of the CRC-64/ECMA-182 verification tail.
	CRC64TailLength = 8

	// CommonPacketHeaderLength is the size of CommonPacketHeader on the wire.
	CommonPacketHeaderLength = 10

	// TicketPacketHeaderLength is the size of TicketPacketHeader on the wire.
	TicketPacketHeaderLength = PubKeyLength + 8

	// FrameHeaderLength is the size of the common frame header (type + length).
	FrameHeaderLength = 3

	// DataFrameHeaderLength is the size of DataFrameHeader, excluding payload.
	DataFrameHeaderLength = 4 + 4 + TransmissionInfoLength

	// GetChunkFrameHeaderLength is the size of GetChunkFrameHeader.
	GetChunkFrameHeaderLength = 4 + 4 + 4

	// RateLimitFrameHeaderLength is the size of RateLimitFrameHeader.
	RateLimitFrameHeaderLength = 4
)

// PacketType identifies which specific header and verification tail a
// packet carries.
type PacketType uint8

const (
	// PacketTypeData carries exactly one Data frame and a CRC-64 tail.
	PacketTypeData PacketType = 0x81
	// PacketTypeTicket carries GetChunk/RateLimit frames and an Ed25519 tail.
	PacketTypeTicket PacketType = 0x41
)

func (t PacketType) String() string {
	switch t {
	case PacketTypeData:
		return "Data"
	case PacketTypeTicket:
		return "Ticket"
	default:
		return fmt.Sprintf("PacketType(0x%02x)", uint8(t))
	}
}

// FrameType identifies the layout of a frame's specific header.
type FrameType uint8

const (
	FrameTypeData      FrameType = 0x01
	FrameTypeGetChunk  FrameType = 0x02
	FrameTypeRateLimit FrameType = 0x03
)

func (t FrameType) String() string {
	switch t {
	case FrameTypeData:
		return "Data"
	case FrameTypeGetChunk:
		return "GetChunk"
	case FrameTypeRateLimit:
		return "RateLimit"
	default:
		return fmt.Sprintf("FrameType(0x%02x)", uint8(t))
	}
}

// CommonPacketHeader is the fixed 10-byte prefix of every packet.
type CommonPacketHeader struct {
	Version      uint8
	PacketType   PacketType
	HeaderLength uint16
	BodyLength   uint16
	PacketID     uint32
}

// TicketPacketHeader is the specific header of a Ticket packet.
type TicketPacketHeader struct {
	PubKey      [PubKeyLength]byte
	TimestampMs uint64
}

// DataFrameHeader is the specific header of a Data frame.
type DataFrameHeader struct {
	ChunkID          uint32
	FrameOffset      uint32
	TransmissionInfo [TransmissionInfoLength]byte
}

// GetChunkFrameHeader is the specific header of a GetChunk frame.
type GetChunkFrameHeader struct {
	ChunkID             uint32
	NextReceiveOffset   uint32
	ReceiveWindowFrames uint32
}

// RateLimitFrameHeader is the specific header of a RateLimit frame.
type RateLimitFrameHeader struct {
	DesiredMaxKbps uint32
}
