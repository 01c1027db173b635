package wire

import "encoding/binary"

// Frame is one logical payload unit inside a packet body: a common
// 3-byte header (type, length) followed by a type-specific header and an
// optional body.
type Frame interface {
	FrameType() FrameType
	bodyLen() int
	encodeBody(dst []byte)
}

// DataFrame carries one fountain-code symbol for a chunk.
type DataFrame struct {
	ChunkID          uint32
	FrameOffset      uint32
	TransmissionInfo [TransmissionInfoLength]byte
	Payload          []byte
}

func (f *DataFrame) FrameType() FrameType { return FrameTypeData }

func (f *DataFrame) bodyLen() int {
	return DataFrameHeaderLength + len(f.Payload)
}

func (f *DataFrame) encodeBody(dst []byte) {
	binary.BigEndian.PutUint32(dst[0:4], f.ChunkID)
	binary.BigEndian.PutUint32(dst[4:8], f.FrameOffset)
	copy(dst[8:8+TransmissionInfoLength], f.TransmissionInfo[:])
	copy(dst[DataFrameHeaderLength:], f.Payload)
}

// GetChunkFrame is a receiver's pull request naming a chunk, the offset it
// next wants, and how many frames of window it is advertising.
type GetChunkFrame struct {
	ChunkID             uint32
	NextReceiveOffset   uint32
	ReceiveWindowFrames uint32
}

func (f *GetChunkFrame) FrameType() FrameType { return FrameTypeGetChunk }
func (f *GetChunkFrame) bodyLen() int         { return GetChunkFrameHeaderLength }
func (f *GetChunkFrame) encodeBody(dst []byte) {
	binary.BigEndian.PutUint32(dst[0:4], f.ChunkID)
	binary.BigEndian.PutUint32(dst[4:8], f.NextReceiveOffset)
	binary.BigEndian.PutUint32(dst[8:12], f.ReceiveWindowFrames)
}

// RateLimitFrame is a receiver's advisory pacing rate.
type RateLimitFrame struct {
	DesiredMaxKbps uint32
}

func (f *RateLimitFrame) FrameType() FrameType { return FrameTypeRateLimit }
func (f *RateLimitFrame) bodyLen() int         { return RateLimitFrameHeaderLength }
func (f *RateLimitFrame) encodeBody(dst []byte) {
	binary.BigEndian.PutUint32(dst[0:4], f.DesiredMaxKbps)
}

// encodeFrame writes one frame's common header and body into dst, which
// must be exactly encodedFrameLen(f) bytes long.
func encodeFrame(f Frame, dst []byte) {
	n := f.bodyLen()
	dst[0] = byte(f.FrameType())
	binary.BigEndian.PutUint16(dst[1:3], uint16(n))
	f.encodeBody(dst[FrameHeaderLength:])
}

func encodedFrameLen(f Frame) int {
	return FrameHeaderLength + f.bodyLen()
}

// decodeFrames parses every frame out of a packet body until exhausted.
func decodeFrames(body []byte) ([]Frame, error) {
	var frames []Frame
	for len(body) > 0 {
		if len(body) < FrameHeaderLength {
			return nil, parseErrorf(ErrFailedToParseFrame, "truncated frame header: %d bytes left", len(body))
		}
		frameType := FrameType(body[0])
		length := int(binary.BigEndian.Uint16(body[1:3]))
		body = body[FrameHeaderLength:]
		if length > len(body) {
			return nil, parseErrorf(ErrFailedToParseFrame, "frame of type %s declares length %d, only %d remain", frameType, length, len(body))
		}
		specific := body[:length]
		body = body[length:]

		frame, err := decodeFrameBody(frameType, specific)
		if err != nil {
			return nil, err
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

func decodeFrameBody(frameType FrameType, specific []byte) (Frame, error) {
	switch frameType {
	case FrameTypeData:
		if len(specific) < DataFrameHeaderLength {
			return nil, parseErrorf(ErrFailedToParseFrame, "Data frame header truncated: %d bytes", len(specific))
		}
		f := &DataFrame{
			ChunkID:     binary.BigEndian.Uint32(specific[0:4]),
			FrameOffset: binary.BigEndian.Uint32(specific[4:8]),
		}
		copy(f.TransmissionInfo[:], specific[8:8+TransmissionInfoLength])
		if payload := specific[DataFrameHeaderLength:]; len(payload) > 0 {
			f.Payload = append([]byte(nil), payload...)
		}
		return f, nil

	case FrameTypeGetChunk:
		if len(specific) != GetChunkFrameHeaderLength {
			return nil, parseErrorf(ErrFailedToParseFrame, "GetChunk frame has length %d, want %d", len(specific), GetChunkFrameHeaderLength)
		}
		return &GetChunkFrame{
			ChunkID:             binary.BigEndian.Uint32(specific[0:4]),
			NextReceiveOffset:   binary.BigEndian.Uint32(specific[4:8]),
			ReceiveWindowFrames: binary.BigEndian.Uint32(specific[8:12]),
		}, nil

	case FrameTypeRateLimit:
		if len(specific) != RateLimitFrameHeaderLength {
			return nil, parseErrorf(ErrFailedToParseFrame, "RateLimit frame has length %d, want %d", len(specific), RateLimitFrameHeaderLength)
		}
		return &RateLimitFrame{
			DesiredMaxKbps: binary.BigEndian.Uint32(specific[0:4]),
		}, nil

	default:
		return nil, parseErrorf(ErrUnsupportedFrameType, "0x%02x", uint8(frameType))
	}
}
