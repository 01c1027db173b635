// Package fountain implements spec.md §4.4's FrameSender/FrameReceiver
// contract: a decoder-configuration blob ("transmission info") that a
// receiver must obtain before decoding, and a rateless-looking symbol
// stream that the encoder/decoder actors drive on their own schedule.
//
// The concrete codec (rscode.go) is systematic Reed-Solomon via
// klauspost/reedsolomon rather than a true LT/Raptor rateless code — the
// nearest fountain-shaped primitive available in the example corpus. Once
// every (K+R) distinct symbol ids have been offered, further ids cycle
// through the same K+R shards again; this trades the "arbitrarily many
// distinct symbols" property of a true fountain code for a code whose
// overhead is fixed and computable up front, which is the tradeoff
// documented in DESIGN.md's internal/fountain notes.
package fountain

import "github.com/fountainlink/transfer/internal/wire"

// FrameSender turns one chunk's plaintext bytes into an unbounded sequence
// of fixed-size symbols.
type FrameSender interface {
	// NextFrame returns the next monotonically increasing symbol id and
	// its serialized payload, which never exceeds DefaultFrameLen bytes.
	NextFrame() (id uint32, payload []byte)

	// TransmissionInfo returns the opaque decoder-configuration blob a
	// FrameReceiver needs before it can absorb symbols.
	TransmissionInfo() [wire.TransmissionInfoLength]byte
}

// FrameReceiver absorbs symbols and reconstructs the original chunk bytes.
type FrameReceiver interface {
	// Update absorbs one symbol. It returns the decoded plaintext on the
	// first call that completes the chunk, and nil otherwise.
	Update(frameID uint32, payload []byte) []byte

	// ExpectedFrameID is one more than the highest frame id absorbed so
	// far — the decoder's suggested next-receive anchor.
	ExpectedFrameID() uint32
}
