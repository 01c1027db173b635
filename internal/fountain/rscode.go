package fountain

import (
	"encoding/binary"
	"fmt"

	"github.com/fountainlink/transfer/internal/wire"
	"github.com/klauspost/reedsolomon"
)

// overheadNumerator/Denominator sets the parity-shard ratio: roughly one
// repair shard for every four data shards, floor 4, so small chunks still
// tolerate a handful of losses.
const (
	overheadNumerator   = 1
	overheadDenominator = 4
	minParityShards     = 4
	maxTotalShards      = 65536
)

// planShards picks (k, r, shardLen) for a chunk of chunkLen bytes, such
// that k data shards of shardLen bytes each exactly cover the chunk and
// shardLen never exceeds wire.DefaultFrameLen.
func planShards(chunkLen uint32) (k, r int, shardLen uint32) {
	shardLen = wire.DefaultFrameLen
	k = int((uint64(chunkLen) + uint64(shardLen) - 1) / uint64(shardLen))
	if k < 1 {
		k = 1
	}
	r = k * overheadNumerator / overheadDenominator
	if r < minParityShards {
		r = minParityShards
	}
	if k+r > maxTotalShards {
		r = maxTotalShards - k
	}
	return k, r, shardLen
}

func encodeTransmissionInfo(chunkLen uint32, k, r int, shardLen uint32) [wire.TransmissionInfoLength]byte {
	var info [wire.TransmissionInfoLength]byte
	binary.BigEndian.PutUint32(info[0:4], chunkLen)
	binary.BigEndian.PutUint16(info[4:6], uint16(k))
	binary.BigEndian.PutUint16(info[6:8], uint16(r))
	binary.BigEndian.PutUint32(info[8:12], shardLen)
	return info
}

func decodeTransmissionInfo(info [wire.TransmissionInfoLength]byte) (chunkLen uint32, k, r int, shardLen uint32) {
	chunkLen = binary.BigEndian.Uint32(info[0:4])
	k = int(binary.BigEndian.Uint16(info[4:6]))
	r = int(binary.BigEndian.Uint16(info[6:8]))
	shardLen = binary.BigEndian.Uint32(info[8:12])
	return
}

// Sender is a FrameSender backed by systematic Reed-Solomon shards: ids
// [0, k) are the chunk's own bytes, ids [k, k+r) are parity shards, and
// ids beyond k+r map to shard id mod (k+r), repeating the whole sequence.
type Sender struct {
	chunkLen uint32
	k, r     int
	shardLen uint32
	shards   [][]byte
	nextID   uint32
}

// NewSender builds encoder state for chunkBytes, primed so the first
// NextFrame call returns id nextID.
func NewSender(chunkBytes []byte, nextID uint32) (*Sender, error) {
	chunkLen := uint32(len(chunkBytes))
	k, r, shardLen := planShards(chunkLen)

	shards := make([][]byte, k+r)
	for i := 0; i < k; i++ {
		shards[i] = make([]byte, shardLen)
		start := i * int(shardLen)
		end := start + int(shardLen)
		if end > len(chunkBytes) {
			end = len(chunkBytes)
		}
		if start < len(chunkBytes) {
			copy(shards[i], chunkBytes[start:end])
		}
	}
	for i := k; i < k+r; i++ {
		shards[i] = make([]byte, shardLen)
	}

	enc, err := newCodec(k, r)
	if err != nil {
		return nil, err
	}
	if err := enc.Encode(shards); err != nil {
		return nil, fmt.Errorf("fountain: encode parity shards: %w", err)
	}

	return &Sender{
		chunkLen: chunkLen,
		k:        k,
		r:        r,
		shardLen: shardLen,
		shards:   shards,
		nextID:   nextID,
	}, nil
}

// NextFrame implements FrameSender.
func (s *Sender) NextFrame() (uint32, []byte) {
	id := s.nextID
	s.nextID++
	shard := s.shards[int(id)%(s.k+s.r)]
	payload := make([]byte, len(shard))
	copy(payload, shard)
	return id, payload
}

// TransmissionInfo implements FrameSender.
func (s *Sender) TransmissionInfo() [wire.TransmissionInfoLength]byte {
	return encodeTransmissionInfo(s.chunkLen, s.k, s.r, s.shardLen)
}

// Receiver is a FrameReceiver backed by systematic Reed-Solomon shards.
type Receiver struct {
	chunkLen uint32
	k, r     int
	shardLen uint32
	shards   [][]byte
	have     int
	highest  uint32
	done     bool
	codec    reedsolomon.Encoder
}

// TryNewReceiver attempts to construct decoder state from a transmission
// info blob. It returns (nil, err) if the blob is malformed.
func TryNewReceiver(info [wire.TransmissionInfoLength]byte) (*Receiver, error) {
	chunkLen, k, r, shardLen := decodeTransmissionInfo(info)
	if k <= 0 || r < 0 || shardLen == 0 || shardLen > wire.DefaultFrameLen {
		return nil, fmt.Errorf("fountain: malformed transmission info: k=%d r=%d shardLen=%d", k, r, shardLen)
	}

	codec, err := newCodec(k, r)
	if err != nil {
		return nil, err
	}

	return &Receiver{
		chunkLen: chunkLen,
		k:        k,
		r:        r,
		shardLen: shardLen,
		shards:   make([][]byte, k+r),
		codec:    codec,
	}, nil
}

// Update implements FrameReceiver.
func (r *Receiver) Update(frameID uint32, payload []byte) []byte {
	if r.done {
		return nil
	}
	if frameID+1 > r.highest {
		r.highest = frameID + 1
	}

	idx := int(frameID) % (r.k + r.r)
	if r.shards[idx] == nil {
		shard := make([]byte, r.shardLen)
		copy(shard, payload)
		r.shards[idx] = shard
		r.have++
	}

	if r.have < r.k {
		return nil
	}

	shards := make([][]byte, len(r.shards))
	copy(shards, r.shards)
	if err := r.codec.Reconstruct(shards); err != nil {
		return nil
	}

	plaintext := make([]byte, 0, r.chunkLen)
	for i := 0; i < r.k && uint32(len(plaintext)) < r.chunkLen; i++ {
		remaining := r.chunkLen - uint32(len(plaintext))
		take := r.shardLen
		if uint32(take) > remaining {
			take = remaining
		}
		plaintext = append(plaintext, shards[i][:take]...)
	}

	r.done = true
	return plaintext
}

// ExpectedFrameID implements FrameReceiver.
func (r *Receiver) ExpectedFrameID() uint32 {
	return r.highest
}

func newCodec(k, r int) (reedsolomon.Encoder, error) {
	if k+r <= 256 {
		return reedsolomon.New(k, r)
	}
	return reedsolomon.New(k, r, reedsolomon.WithLeopardGF16(true))
}
