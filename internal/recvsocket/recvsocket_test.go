package recvsocket

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"testing"
	"time"

	"github.com/fountainlink/transfer/internal/bus"
	"github.com/fountainlink/transfer/internal/config"
	"github.com/fountainlink/transfer/internal/fountain"
	"github.com/fountainlink/transfer/internal/keyring"
	"github.com/fountainlink/transfer/internal/udpsocket"
	"github.com/fountainlink/transfer/internal/wire"
)

func newKeyRing(t *testing.T) *keyring.KeyRing {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(nil)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	k := keyring.New()
	if err := k.SetPrivate(priv); err != nil {
		t.Fatalf("SetPrivate: %v", err)
	}
	var pubArr [wire.PubKeyLength]byte
	copy(pubArr[:], pub)
	k.AddAllowed(pubArr)
	return k
}

func recvTicket(t *testing.T, ctx context.Context, sock udpsocket.Socket, keys *keyring.KeyRing) *wire.Packet {
	t.Helper()
	buf := make([]byte, wire.MTU)
	n, _, err := sock.RecvFrom(ctx, buf)
	if err != nil {
		t.Fatalf("RecvFrom ticket: %v", err)
	}
	packet, err := wire.ParsePacket(buf[:n], keys)
	if err != nil {
		t.Fatalf("ParsePacket ticket: %v", err)
	}
	if packet.Header.PacketType != wire.PacketTypeTicket {
		t.Fatalf("packet type = %v, want Ticket", packet.Header.PacketType)
	}
	return packet
}

func getChunkFor(t *testing.T, packet *wire.Packet, chunkID uint32) *wire.GetChunkFrame {
	t.Helper()
	for _, f := range packet.Frames {
		if gc, ok := f.(*wire.GetChunkFrame); ok && gc.ChunkID == chunkID {
			return gc
		}
	}
	return nil
}

func TestReportsIssuedAsTicketThenWithdrawnAfterFinish(t *testing.T) {
	keys := newKeyRing(t)

	server, receiver := udpsocket.NewLoopbackPair("server", "receiver")
	defer server.Close()
	defer receiver.Close()

	b := bus.New()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg := config.DefaultConfig()
	if _, err := Spawn(ctx, receiver, "server", b, keys, cfg, nil, nil); err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	chunk := make([]byte, 3000)
	if _, err := rand.Read(chunk); err != nil {
		t.Fatalf("rand.Read: %v", err)
	}
	sender, err := fountain.NewSender(chunk, 0)
	if err != nil {
		t.Fatalf("NewSender: %v", err)
	}

	deliverFrame := func() {
		id, payload := sender.NextFrame()
		packet, err := wire.BuildDataPacket(id, &wire.DataFrame{
			ChunkID:          5,
			FrameOffset:      id,
			TransmissionInfo: sender.TransmissionInfo(),
			Payload:          payload,
		}, keys)
		if err != nil {
			t.Fatalf("BuildDataPacket: %v", err)
		}
		if err := server.SendTo(ctx, packet, "receiver"); err != nil {
			t.Fatalf("SendTo data frame: %v", err)
		}
	}

	// Deliver one frame so the decoder actor exists, then expect the first
	// Ticket to carry a WantNext GetChunk for chunk 5.
	deliverFrame()

	firstTicket := recvTicket(t, ctx, server, keys)
	first := getChunkFor(t, firstTicket, 5)
	if first == nil {
		t.Fatalf("first ticket missing GetChunk for chunk 5")
	}
	if first.ReceiveWindowFrames < cfg.MinReceiveWindowFrames {
		t.Fatalf("ReceiveWindowFrames = %d, want >= %d", first.ReceiveWindowFrames, cfg.MinReceiveWindowFrames)
	}

	// Deliver enough frames to complete the chunk before the next tick.
	for i := 0; i < 16; i++ {
		deliverFrame()
	}

	secondTicket := recvTicket(t, ctx, server, keys)
	second := getChunkFor(t, secondTicket, 5)
	if second == nil {
		t.Fatalf("second ticket missing GetChunk for chunk 5 (expected Finished retransmit)")
	}
	if second.ReceiveWindowFrames != 0 {
		t.Fatalf("ReceiveWindowFrames = %d, want 0 after Finished", second.ReceiveWindowFrames)
	}
}

func TestStartChunkSeedsTicketBeforeAnyFrameArrives(t *testing.T) {
	keys := newKeyRing(t)

	server, receiver := udpsocket.NewLoopbackPair("server", "receiver")
	defer server.Close()
	defer receiver.Close()

	b := bus.New()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	cfg := config.DefaultConfig()
	actor, err := Spawn(ctx, receiver, "server", b, keys, cfg, nil, nil)
	if err != nil {
		t.Fatalf("Spawn: %v", err)
	}

	d := actor.StartChunk(ctx, 9)
	if d == nil {
		t.Fatalf("StartChunk returned nil decoder")
	}

	ticket := recvTicket(t, ctx, server, keys)
	gc := getChunkFor(t, ticket, 9)
	if gc == nil {
		t.Fatalf("ticket missing GetChunk for chunk 9 started with no frame received yet")
	}
	if gc.NextReceiveOffset != 0 {
		t.Fatalf("NextReceiveOffset = %d, want 0", gc.NextReceiveOffset)
	}

	// A second StartChunk for the same id must return the same decoder,
	// not spawn a competing one.
	if again := actor.StartChunk(ctx, 9); again != d {
		t.Fatalf("StartChunk spawned a second decoder for an already-started chunk")
	}
}
