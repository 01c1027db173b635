package fountain

import (
	"bytes"
	"crypto/rand"
	"testing"

	"github.com/zeebo/blake3"
)

func TestSenderReceiverRoundTripNoLoss(t *testing.T) {
	chunk := make([]byte, 64*1024)
	if _, err := rand.Read(chunk); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}

	sender, err := NewSender(chunk, 0)
	if err != nil {
		t.Fatalf("NewSender: %v", err)
	}

	receiver, err := TryNewReceiver(sender.TransmissionInfo())
	if err != nil {
		t.Fatalf("TryNewReceiver: %v", err)
	}

	var decoded []byte
	for decoded == nil {
		id, payload := sender.NextFrame()
		decoded = receiver.Update(id, payload)
	}

	if !bytes.Equal(decoded, chunk) {
		t.Fatalf("decoded chunk does not match source")
	}
}

func TestReceiverToleratesUniformLoss(t *testing.T) {
	chunk := make([]byte, 1024*1024)
	if _, err := rand.Read(chunk); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}
	wantHash := blake3.Sum256(chunk)

	sender, err := NewSender(chunk, 0)
	if err != nil {
		t.Fatalf("NewSender: %v", err)
	}
	receiver, err := TryNewReceiver(sender.TransmissionInfo())
	if err != nil {
		t.Fatalf("TryNewReceiver: %v", err)
	}

	// Deterministic 20% uniform loss: drop every 5th symbol.
	var decoded []byte
	for i := 0; decoded == nil && i < 1_000_000; i++ {
		id, payload := sender.NextFrame()
		if id%5 == 0 {
			continue
		}
		decoded = receiver.Update(id, payload)
	}

	if decoded == nil {
		t.Fatalf("decode did not complete within bound")
	}
	gotHash := blake3.Sum256(decoded)
	if gotHash != wantHash {
		t.Fatalf("decoded chunk hash mismatch")
	}
}

func TestTryNewReceiverRejectsMalformedInfo(t *testing.T) {
	var info [12]byte // all zero: k=0, shardLen=0
	if _, err := TryNewReceiver(info); err == nil {
		t.Fatalf("expected error for malformed transmission info")
	}
}

func TestExpectedFrameIDTracksHighest(t *testing.T) {
	chunk := make([]byte, 8192)
	sender, err := NewSender(chunk, 0)
	if err != nil {
		t.Fatalf("NewSender: %v", err)
	}
	receiver, err := TryNewReceiver(sender.TransmissionInfo())
	if err != nil {
		t.Fatalf("TryNewReceiver: %v", err)
	}

	id, payload := sender.NextFrame()
	receiver.Update(id, payload)
	if receiver.ExpectedFrameID() != id+1 {
		t.Fatalf("ExpectedFrameID = %d, want %d", receiver.ExpectedFrameID(), id+1)
	}
}
