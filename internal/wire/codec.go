package wire

import (
	"encoding/binary"
)

// Signer produces verification tails over a packet's prefix bytes.
type Signer interface {
	// SignCRC64 folds the CRC-64/ECMA-182 digest over prefix.
	SignCRC64(prefix []byte) [CRC64TailLength]byte
	// Ed25519PublicKey returns the key BuildTicketPacket must embed in the
	// specific header before the prefix is signed.
	Ed25519PublicKey() ([PubKeyLength]byte, error)
	// SignEd25519 signs BLAKE3(prefix); prefix already carries the public
	// key returned by Ed25519PublicKey.
	SignEd25519(prefix []byte) ([Ed25519SignatureLength]byte, error)
}

// Verifier checks verification tails against a packet's prefix bytes.
type Verifier interface {
	VerifyCRC64(prefix []byte, tail [CRC64TailLength]byte) error
	VerifyEd25519(prefix []byte, pubkey [PubKeyLength]byte, sig [Ed25519SignatureLength]byte) error
}

// Buffers is a gathered sequence of byte slices meant for vectored I/O. Use
// Flatten when the underlying transport has no vectored write.
type Buffers [][]byte

// Flatten concatenates all buffers into one contiguous slice.
func (b Buffers) Flatten() []byte {
	total := 0
	for _, buf := range b {
		total += len(buf)
	}
	out := make([]byte, 0, total)
	for _, buf := range b {
		out = append(out, buf...)
	}
	return out
}

// Len returns the total byte length across all buffers.
func (b Buffers) Len() int {
	total := 0
	for _, buf := range b {
		total += len(buf)
	}
	return total
}

// BuildDataPacket assembles a Data packet carrying exactly one DataFrame,
// terminated with a CRC-64/ECMA-182 verification tail.
func BuildDataPacket(packetID uint32, frame *DataFrame, signer Signer) (Buffers, error) {
	bodyLen := encodedFrameLen(frame)
	header := make([]byte, CommonPacketHeaderLength)
	putCommonHeader(header, CommonPacketHeader{
		Version:      Version,
		PacketType:   PacketTypeData,
		HeaderLength: 0,
		BodyLength:   uint16(bodyLen),
		PacketID:     packetID,
	})

	body := make([]byte, bodyLen)
	encodeFrame(frame, body)

	prefix := make([]byte, 0, len(header)+len(body))
	prefix = append(prefix, header...)
	prefix = append(prefix, body...)

	if len(prefix)+CRC64TailLength > MTU {
		return nil, parseErrorf(ErrInconsistentFields, "Data packet of %d bytes exceeds MTU %d", len(prefix)+CRC64TailLength, MTU)
	}

	tail := signer.SignCRC64(prefix)
	return Buffers{prefix, tail[:]}, nil
}

// BuildTicketPacket assembles a Ticket packet carrying an optional
// RateLimit frame and any number of GetChunk frames, terminated with an
// Ed25519-over-BLAKE3 verification tail.
func BuildTicketPacket(packetID uint32, timestampMs uint64, rateLimit *RateLimitFrame, getChunks []*GetChunkFrame, signer Signer) (Buffers, error) {
	var frames []Frame
	if rateLimit != nil {
		frames = append(frames, rateLimit)
	}
	for _, gc := range getChunks {
		frames = append(frames, gc)
	}

	bodyLen := 0
	for _, f := range frames {
		bodyLen += encodedFrameLen(f)
	}

	header := make([]byte, CommonPacketHeaderLength)
	putCommonHeader(header, CommonPacketHeader{
		Version:      Version,
		PacketType:   PacketTypeTicket,
		HeaderLength: TicketPacketHeaderLength,
		BodyLength:   uint16(bodyLen),
		PacketID:     packetID,
	})

	pubkey, err := signer.Ed25519PublicKey()
	if err != nil {
		return nil, err
	}

	specific := make([]byte, TicketPacketHeaderLength)
	copy(specific[:PubKeyLength], pubkey[:])
	binary.BigEndian.PutUint64(specific[PubKeyLength:], timestampMs)

	body := make([]byte, bodyLen)
	off := 0
	for _, f := range frames {
		n := encodedFrameLen(f)
		encodeFrame(f, body[off:off+n])
		off += n
	}

	prefix := make([]byte, 0, len(header)+len(specific)+len(body))
	prefix = append(prefix, header...)
	prefix = append(prefix, specific...)
	prefix = append(prefix, body...)

	sig, err := signer.SignEd25519(prefix)
	if err != nil {
		return nil, err
	}

	if len(prefix)+Ed25519SignatureLength > MTU {
		return nil, parseErrorf(ErrInconsistentFields, "Ticket packet of %d bytes exceeds MTU %d", len(prefix)+Ed25519SignatureLength, MTU)
	}

	return Buffers{prefix, sig[:]}, nil
}

func putCommonHeader(dst []byte, h CommonPacketHeader) {
	dst[0] = h.Version
	dst[1] = byte(h.PacketType)
	binary.BigEndian.PutUint16(dst[2:4], h.HeaderLength)
	binary.BigEndian.PutUint16(dst[4:6], h.BodyLength)
	binary.BigEndian.PutUint32(dst[6:10], h.PacketID)
}

func getCommonHeader(src []byte) CommonPacketHeader {
	return CommonPacketHeader{
		Version:      src[0],
		PacketType:   PacketType(src[1]),
		HeaderLength: binary.BigEndian.Uint16(src[2:4]),
		BodyLength:   binary.BigEndian.Uint16(src[4:6]),
		PacketID:     binary.BigEndian.Uint32(src[6:10]),
	}
}

// Packet is the parsed, verified representation of one datagram.
type Packet struct {
	Header       CommonPacketHeader
	TicketHeader *TicketPacketHeader
	Frames       []Frame
}

// DataFrame returns the packet's single Data frame, valid only when
// Header.PacketType is PacketTypeData.
func (p *Packet) DataFrame() *DataFrame {
	if len(p.Frames) != 1 {
		return nil
	}
	df, _ := p.Frames[0].(*DataFrame)
	return df
}

// ParsePacket validates structure, dispatches on packet type, parses every
// frame, and verifies the trailing signature or checksum.
func ParsePacket(data []byte, verifier Verifier) (*Packet, error) {
	if len(data) < CommonPacketHeaderLength {
		return nil, parseErrorf(ErrPacketTooShort, "%d bytes, want at least %d", len(data), CommonPacketHeaderLength)
	}

	header := getCommonHeader(data)
	if header.Version != Version {
		return nil, parseErrorf(ErrUnsupportedVersion, "%d", header.Version)
	}

	switch header.PacketType {
	case PacketTypeData:
		return parseDataPacket(data, header, verifier)
	case PacketTypeTicket:
		return parseTicketPacket(data, header, verifier)
	default:
		return nil, parseErrorf(ErrUnsupportedPacketType, "0x%02x", uint8(header.PacketType))
	}
}

func parseDataPacket(data []byte, header CommonPacketHeader, verifier Verifier) (*Packet, error) {
	if header.HeaderLength != 0 {
		return nil, parseErrorf(ErrInconsistentFields, "Data packet declares non-empty specific header of %d bytes", header.HeaderLength)
	}

	want := CommonPacketHeaderLength + int(header.BodyLength) + CRC64TailLength
	if len(data) < want {
		return nil, parseErrorf(ErrBodyTooShort, "have %d bytes, need %d", len(data), want)
	}

	prefix := data[:CommonPacketHeaderLength+int(header.BodyLength)]
	var tail [CRC64TailLength]byte
	copy(tail[:], data[CommonPacketHeaderLength+int(header.BodyLength):want])

	if err := verifier.VerifyCRC64(prefix, tail); err != nil {
		return nil, err
	}

	body := data[CommonPacketHeaderLength : CommonPacketHeaderLength+int(header.BodyLength)]
	frames, err := decodeFrames(body)
	if err != nil {
		return nil, err
	}
	if len(frames) != 1 {
		return nil, parseErrorf(ErrInconsistentFields, "Data packet carries %d frames, want exactly 1", len(frames))
	}
	if _, ok := frames[0].(*DataFrame); !ok {
		return nil, parseErrorf(ErrInconsistentFields, "Data packet's frame is not a Data frame")
	}

	return &Packet{Header: header, Frames: frames}, nil
}

func parseTicketPacket(data []byte, header CommonPacketHeader, verifier Verifier) (*Packet, error) {
	if int(header.HeaderLength) != TicketPacketHeaderLength {
		return nil, parseErrorf(ErrInconsistentFields, "Ticket packet declares specific header of %d bytes, want %d", header.HeaderLength, TicketPacketHeaderLength)
	}

	specificStart := CommonPacketHeaderLength
	bodyStart := specificStart + TicketPacketHeaderLength
	bodyEnd := bodyStart + int(header.BodyLength)
	want := bodyEnd + Ed25519SignatureLength
	if len(data) < want {
		return nil, parseErrorf(ErrBodyTooShort, "have %d bytes, need %d", len(data), want)
	}

	prefix := data[:bodyEnd]
	specific := data[specificStart:bodyStart]
	var pubkey [PubKeyLength]byte
	copy(pubkey[:], specific[:PubKeyLength])
	timestampMs := binary.BigEndian.Uint64(specific[PubKeyLength:])

	var sig [Ed25519SignatureLength]byte
	copy(sig[:], data[bodyEnd:want])

	if err := verifier.VerifyEd25519(prefix, pubkey, sig); err != nil {
		return nil, err
	}

	frames, err := decodeFrames(data[bodyStart:bodyEnd])
	if err != nil {
		return nil, err
	}

	return &Packet{
		Header:       header,
		TicketHeader: &TicketPacketHeader{PubKey: pubkey, TimestampMs: timestampMs},
		Frames:       frames,
	}, nil
}
