package wire

import (
	"bytes"
	"testing"
)

// fakeSigner implements Signer and Verifier with no real cryptography, so
// codec tests can focus on framing rather than key management.
type fakeSigner struct {
	pubkey [PubKeyLength]byte
}

func (s *fakeSigner) SignCRC64(prefix []byte) [CRC64TailLength]byte {
	var tail [CRC64TailLength]byte
	var sum byte
	for _, b := range prefix {
		sum ^= b
	}
	tail[CRC64TailLength-1] = sum
	return tail
}

func (s *fakeSigner) Ed25519PublicKey() ([PubKeyLength]byte, error) {
	return s.pubkey, nil
}

func (s *fakeSigner) SignEd25519(prefix []byte) ([Ed25519SignatureLength]byte, error) {
	var sig [Ed25519SignatureLength]byte
	var sum byte
	for _, b := range prefix {
		sum ^= b
	}
	sig[0] = sum
	return sig, nil
}

func (s *fakeSigner) VerifyCRC64(prefix []byte, tail [CRC64TailLength]byte) error {
	got := s.SignCRC64(prefix)
	if got != tail {
		return parseErrorf("CorruptContent", "crc mismatch")
	}
	return nil
}

func (s *fakeSigner) VerifyEd25519(prefix []byte, pubkey [PubKeyLength]byte, sig [Ed25519SignatureLength]byte) error {
	if pubkey != s.pubkey {
		return parseErrorf("UnknownPublicKey", "")
	}
	got, _ := s.SignEd25519(prefix)
	if got != sig {
		return parseErrorf("IncorrectSign", "")
	}
	return nil
}

func TestDataPacketRoundTrip(t *testing.T) {
	signer := &fakeSigner{}
	var info [TransmissionInfoLength]byte
	for i := range info {
		info[i] = byte(7)
	}
	payload := bytes.Repeat([]byte{88}, 1440)

	frame := &DataFrame{
		ChunkID:          19_260_817,
		FrameOffset:      85_213,
		TransmissionInfo: info,
		Payload:          payload,
	}

	buffers, err := BuildDataPacket(42, frame, signer)
	if err != nil {
		t.Fatalf("BuildDataPacket: %v", err)
	}
	if buffers.Len() > MTU {
		t.Fatalf("packet of %d bytes exceeds MTU %d", buffers.Len(), MTU)
	}

	packet, err := ParsePacket(buffers.Flatten(), signer)
	if err != nil {
		t.Fatalf("ParsePacket: %v", err)
	}

	got := packet.DataFrame()
	if got == nil {
		t.Fatalf("parsed packet carries no Data frame")
	}
	if got.ChunkID != frame.ChunkID || got.FrameOffset != frame.FrameOffset {
		t.Fatalf("header mismatch: got %+v, want %+v", got, frame)
	}
	if got.TransmissionInfo != frame.TransmissionInfo {
		t.Fatalf("transmission info mismatch")
	}
	if !bytes.Equal(got.Payload, frame.Payload) {
		t.Fatalf("payload mismatch")
	}
}

func TestTicketPacketRoundTrip(t *testing.T) {
	signer := &fakeSigner{pubkey: [PubKeyLength]byte{1, 2, 3}}

	getChunks := []*GetChunkFrame{
		{ChunkID: 8, NextReceiveOffset: 75, ReceiveWindowFrames: 400},
		{ChunkID: 17, NextReceiveOffset: 2334, ReceiveWindowFrames: 800},
		{ChunkID: 8, NextReceiveOffset: 234, ReceiveWindowFrames: 600},
	}
	rateLimit := &RateLimitFrame{DesiredMaxKbps: 80_000}

	buffers, err := BuildTicketPacket(7, 1_700_000_000_000, rateLimit, getChunks, signer)
	if err != nil {
		t.Fatalf("BuildTicketPacket: %v", err)
	}

	packet, err := ParsePacket(buffers.Flatten(), signer)
	if err != nil {
		t.Fatalf("ParsePacket: %v", err)
	}
	if packet.TicketHeader == nil {
		t.Fatalf("parsed packet carries no ticket header")
	}
	if packet.TicketHeader.PubKey != signer.pubkey {
		t.Fatalf("pubkey mismatch")
	}

	seen := map[uint32]*GetChunkFrame{}
	var sawRateLimit *RateLimitFrame
	for _, f := range packet.Frames {
		switch v := f.(type) {
		case *GetChunkFrame:
			seen[v.ChunkID] = v
		case *RateLimitFrame:
			sawRateLimit = v
		}
	}
	if sawRateLimit == nil || sawRateLimit.DesiredMaxKbps != 80_000 {
		t.Fatalf("rate limit frame not recovered")
	}
	if len(seen) != 2 {
		t.Fatalf("expected 2 distinct chunk ids, got %d", len(seen))
	}
	if seen[8].NextReceiveOffset != 234 || seen[8].ReceiveWindowFrames != 600 {
		t.Fatalf("later GetChunk frame for chunk 8 did not shadow earlier one: %+v", seen[8])
	}
	if seen[17].NextReceiveOffset != 2334 || seen[17].ReceiveWindowFrames != 800 {
		t.Fatalf("chunk 17 frame mismatch: %+v", seen[17])
	}
}

func TestVerificationSoundness(t *testing.T) {
	signer := &fakeSigner{}
	frame := &DataFrame{ChunkID: 1, FrameOffset: 0, Payload: []byte("x")}
	buffers, err := BuildDataPacket(1, frame, signer)
	if err != nil {
		t.Fatalf("BuildDataPacket: %v", err)
	}
	raw := buffers.Flatten()
	// flip the single payload byte, inside the checksummed prefix
	raw[CommonPacketHeaderLength+FrameHeaderLength+DataFrameHeaderLength] ^= 0xFF

	if _, err := ParsePacket(raw, signer); err == nil {
		t.Fatalf("expected verification failure after bit flip")
	}
}

func TestUnknownPublicKeyRejected(t *testing.T) {
	signer := &fakeSigner{pubkey: [PubKeyLength]byte{9}}
	buffers, err := BuildTicketPacket(1, 0, nil, nil, signer)
	if err != nil {
		t.Fatalf("BuildTicketPacket: %v", err)
	}

	otherSigner := &fakeSigner{pubkey: [PubKeyLength]byte{1}}
	_, err = ParsePacket(buffers.Flatten(), otherSigner)
	if err == nil {
		t.Fatalf("expected UnknownPublicKey failure")
	}
}

func TestParsePacketRejectsUnsupportedVersion(t *testing.T) {
	signer := &fakeSigner{}
	frame := &DataFrame{ChunkID: 1, FrameOffset: 0, Payload: []byte("x")}
	buffers, err := BuildDataPacket(1, frame, signer)
	if err != nil {
		t.Fatalf("BuildDataPacket: %v", err)
	}
	raw := buffers.Flatten()
	raw[0] = 2

	_, err = ParsePacket(raw, signer)
	pe, ok := err.(*ParseError)
	if !ok || pe.Kind != ErrUnsupportedVersion {
		t.Fatalf("expected UnsupportedVersion, got %v", err)
	}
}

func TestParsePacketRejectsTruncatedBody(t *testing.T) {
	signer := &fakeSigner{}
	frame := &DataFrame{ChunkID: 1, FrameOffset: 0, Payload: []byte("x")}
	buffers, err := BuildDataPacket(1, frame, signer)
	if err != nil {
		t.Fatalf("BuildDataPacket: %v", err)
	}
	raw := buffers.Flatten()
	truncated := raw[:len(raw)-4]

	_, err = ParsePacket(truncated, signer)
	if err == nil {
		t.Fatalf("expected parse error for truncated packet")
	}
}
