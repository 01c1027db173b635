package bus

import (
	"context"
	"testing"
	"time"
)

func TestSendToUnregisteredAddressFails(t *testing.T) {
	b := New()
	err := b.Send(ReceiverSocketAddress(), ChunkReportMsg{ChunkID: 1})
	if err != ErrNoSuchAddress {
		t.Fatalf("Send = %v, want ErrNoSuchAddress", err)
	}
}

func TestDoubleRegisterFails(t *testing.T) {
	b := New()
	addr := FrameDecoderAddress(3)
	if _, err := b.Register(addr); err != nil {
		t.Fatalf("first Register: %v", err)
	}
	if _, err := b.Register(addr); err != ErrAddressInUse {
		t.Fatalf("second Register = %v, want ErrAddressInUse", err)
	}
}

func TestFIFOOrderingPerAddress(t *testing.T) {
	b := New()
	addr := FrameDecoderAddress(7)
	q, err := b.Register(addr)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	for i := uint32(0); i < 5; i++ {
		if err := b.Send(addr, ParsedDataFrame{ChunkID: 7, FrameOffset: i}); err != nil {
			t.Fatalf("Send %d: %v", i, err)
		}
	}

	ctx := context.Background()
	for i := uint32(0); i < 5; i++ {
		m, err := RecvAs[ParsedDataFrame](ctx, q)
		if err != nil {
			t.Fatalf("RecvAs %d: %v", i, err)
		}
		if m.FrameOffset != i {
			t.Fatalf("message %d: FrameOffset = %d, want %d", i, m.FrameOffset, i)
		}
	}
}

func TestRecvAsDropsMismatchedVariant(t *testing.T) {
	b := New()
	addr := ReceiverSocketAddress()
	q, err := b.Register(addr)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	if err := b.Send(addr, SendingOrder{OffsetNext: 1}); err != nil {
		t.Fatalf("Send SendingOrder: %v", err)
	}
	if err := b.Send(addr, ChunkReportMsg{ChunkID: 9}); err != nil {
		t.Fatalf("Send ChunkReportMsg: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	got, err := RecvAs[ChunkReportMsg](ctx, q)
	if err != nil {
		t.Fatalf("RecvAs: %v", err)
	}
	if got.ChunkID != 9 {
		t.Fatalf("ChunkID = %d, want 9", got.ChunkID)
	}
}

func TestCloseUnregistersAndUnblocksRecv(t *testing.T) {
	b := New()
	addr := FrameEncoderAddress(1, "peer:1")
	q, err := b.Register(addr)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, err := q.Recv(context.Background())
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	q.Close()

	select {
	case err := <-done:
		if err != ErrQueueClosed {
			t.Fatalf("Recv after Close = %v, want ErrQueueClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("Recv did not unblock after Close")
	}

	if b.Registered(addr) {
		t.Fatalf("address still registered after Close")
	}
}

// TestReportOrdering reproduces spec.md's S4 scenario: WantNext(5),
// Finished(3), WantNext(10) merge to a final state of Finished(3).
func TestReportOrdering(t *testing.T) {
	state := ChunkReport{Kind: WantNext, Value: 5}
	state = MergeReport(state, ChunkReport{Kind: Finished, Value: 3})
	state = MergeReport(state, ChunkReport{Kind: WantNext, Value: 10})

	if state.Kind != Finished || state.Value != 3 {
		t.Fatalf("final state = %+v, want Finished(3)", state)
	}
}

func TestReportMergeTakesLargerWantNext(t *testing.T) {
	state := ChunkReport{Kind: WantNext, Value: 5}
	state = MergeReport(state, ChunkReport{Kind: WantNext, Value: 10})
	if state.Kind != WantNext || state.Value != 10 {
		t.Fatalf("state = %+v, want WantNext(10)", state)
	}
}
