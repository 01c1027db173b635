package udpsocket

import (
	"bytes"
	"context"
	"testing"
	"time"
)

func TestLoopbackSendRecvRoundTrip(t *testing.T) {
	a, b := NewLoopbackPair("a", "b")
	defer a.Close()
	defer b.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := a.SendTo(ctx, [][]byte{[]byte("hello "), []byte("world")}, "b"); err != nil {
		t.Fatalf("SendTo: %v", err)
	}

	buf := make([]byte, 64)
	n, from, err := b.RecvFrom(ctx, buf)
	if err != nil {
		t.Fatalf("RecvFrom: %v", err)
	}
	if from != "a" {
		t.Fatalf("from = %q, want a", from)
	}
	if !bytes.Equal(buf[:n], []byte("hello world")) {
		t.Fatalf("got %q, want %q", buf[:n], "hello world")
	}
}

func TestLoopbackSendToUnknownTargetFails(t *testing.T) {
	a, b := NewLoopbackPair("a", "b")
	defer a.Close()
	defer b.Close()

	ctx := context.Background()
	if err := a.SendTo(ctx, [][]byte{[]byte("x")}, "c"); err == nil {
		t.Fatalf("expected error sending to unrelated address")
	}
}

func TestLoopbackCloseUnblocksRecv(t *testing.T) {
	a, b := NewLoopbackPair("a", "b")
	defer a.Close()

	done := make(chan error, 1)
	go func() {
		_, _, err := b.RecvFrom(context.Background(), make([]byte, 16))
		done <- err
	}()

	time.Sleep(10 * time.Millisecond)
	b.Close()

	select {
	case err := <-done:
		if err != ErrClosed {
			t.Fatalf("RecvFrom after Close = %v, want ErrClosed", err)
		}
	case <-time.After(time.Second):
		t.Fatalf("RecvFrom did not unblock after Close")
	}
}
