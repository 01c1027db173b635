// Package sendsocket implements spec.md §4.8's sending socket actor: it
// owns the sender-side UDP socket, turns incoming Ticket packets into
// SendingOrders for per-chunk encoder actors (spawning them lazily), and
// forwards outgoing data frames from the bus back onto the wire.
package sendsocket

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/fountainlink/transfer/internal/bus"
	"github.com/fountainlink/transfer/internal/chunkindex"
	"github.com/fountainlink/transfer/internal/config"
	"github.com/fountainlink/transfer/internal/encoder"
	"github.com/fountainlink/transfer/internal/observability"
	"github.com/fountainlink/transfer/internal/pktid"
	"github.com/fountainlink/transfer/internal/ratelimit"
	"github.com/fountainlink/transfer/internal/udpsocket"
	"github.com/fountainlink/transfer/internal/wire"
)

// wireTimePerByteMs is the constant spec.md §4.8 names for deriving a
// pacing interval from a requested kbps rate: 8 ms of wire time per byte
// at 1 kbps, scaled by the per-packet overhead of MTU+20.
const wireTimePerByteMs = 8

// SignerVerifier is what a sending socket needs from its identity: it
// signs outgoing Data packets' CRC-64 tail and verifies incoming Ticket
// packets' Ed25519 signature against the allow list.
type SignerVerifier interface {
	wire.Signer
	wire.Verifier
}

// Actor is the running sending socket.
type Actor struct {
	sock    udpsocket.Socket
	bus     *bus.Bus
	idx     *chunkindex.ChunkIndex
	ids     *pktid.Counter
	keys    SignerVerifier
	cfg     config.Config
	log     *observability.Logger
	metrics *observability.Metrics
	budget  *ratelimit.TokenBucket
}

// Spawn starts the sending socket actor over sock, reading Ticket packets
// from the network and data frames from the bus's SenderSocket address.
func Spawn(ctx context.Context, sock udpsocket.Socket, b *bus.Bus, idx *chunkindex.ChunkIndex, keys SignerVerifier, cfg config.Config, log *observability.Logger, metrics *observability.Metrics) (*Actor, error) {
	outbound, err := b.Register(bus.SenderSocketAddress())
	if err != nil {
		return nil, fmt.Errorf("sendsocket: register SenderSocket: %w", err)
	}

	a := &Actor{
		sock:    sock,
		bus:     b,
		idx:     idx,
		ids:     pktid.New(),
		keys:    keys,
		cfg:     cfg,
		log:     log,
		metrics: metrics,
	}
	if cfg.GlobalSendRateBytesPerSec > 0 {
		a.budget = ratelimit.NewTokenBucket(cfg.GlobalSendRateBytesPerSec, cfg.GlobalSendBurstBytes)
	}

	go a.recvLoop(ctx)
	go a.sendLoop(ctx, outbound)
	return a, nil
}

// recvLoop reads datagrams, keeps only Ticket packets, and folds their
// frames into SendingOrders.
func (a *Actor) recvLoop(ctx context.Context) {
	buf := make([]byte, wire.MTU)
	for {
		n, peer, err := a.sock.RecvFrom(ctx, buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, udpsocket.ErrClosed) {
				return
			}
			if a.log != nil {
				a.log.Warn("sendsocket: recv error: " + err.Error())
			}
			continue
		}

		packet, err := wire.ParsePacket(buf[:n], a.keys)
		if err != nil {
			if a.metrics != nil {
				a.metrics.RecordFrameDropped("parse_error")
			}
			continue
		}
		if packet.Header.PacketType != wire.PacketTypeTicket {
			continue
		}

		var rateInterval *time.Duration
		for _, f := range packet.Frames {
			switch frame := f.(type) {
			case *wire.RateLimitFrame:
				d := rateIntervalFromKbps(frame.DesiredMaxKbps)
				rateInterval = &d
			case *wire.GetChunkFrame:
				a.deliverOrder(ctx, peer, frame, rateInterval)
			}
		}
	}
}

// rateIntervalFromKbps implements spec.md's interval = 8ms·(MTU+20)/rate_kbps.
func rateIntervalFromKbps(rateKbps uint32) time.Duration {
	if rateKbps == 0 {
		return 0
	}
	ms := float64(wireTimePerByteMs) * float64(wire.MTU+20) / float64(rateKbps)
	return time.Duration(ms * float64(time.Millisecond))
}

func (a *Actor) deliverOrder(ctx context.Context, peer string, frame *wire.GetChunkFrame, rateInterval *time.Duration) {
	order := bus.SendingOrder{
		OffsetNext:       uint64(frame.NextReceiveOffset),
		OffsetNoMoreThan: uint64(frame.NextReceiveOffset) + uint64(frame.ReceiveWindowFrames),
		CloseNow:         frame.ReceiveWindowFrames == 0,
	}
	if rateInterval != nil {
		ms := uint32(rateInterval.Milliseconds())
		order.RateHint = &ms
	}

	addr := bus.FrameEncoderAddress(frame.ChunkID, peer)
	err := a.bus.Send(addr, order)
	if err == nil {
		return
	}
	if order.CloseNow {
		// Nothing to close; a non-existent encoder is already closed.
		return
	}

	start := encoder.StartOrder{ChunkID: frame.ChunkID, Peer: peer, Order: order}
	if _, spawnErr := encoder.Spawn(ctx, a.bus, a.idx, start, a.cfg, a.log, a.metrics); spawnErr != nil {
		if a.log != nil {
			a.log.Warn(fmt.Sprintf("sendsocket: spawn encoder for chunk %d: %v", frame.ChunkID, spawnErr))
		}
	}
}

// sendLoop drains outgoing PeerDataFrame messages from the bus and writes
// them to the network as Data packets.
func (a *Actor) sendLoop(ctx context.Context, q *bus.Queue) {
	for {
		msg, err := bus.RecvAs[bus.PeerDataFrame](ctx, q)
		if err != nil {
			return
		}

		if a.budget != nil {
			if err := a.budget.Wait(ctx, len(msg.Payload)); err != nil {
				return
			}
		}

		packet, err := wire.BuildDataPacket(a.ids.Next(), &wire.DataFrame{
			ChunkID:          msg.ChunkID,
			FrameOffset:      msg.FrameOffset,
			TransmissionInfo: msg.TransInfo,
			Payload:          msg.Payload,
		}, a.keys)
		if err != nil {
			if a.log != nil {
				a.log.Warn("sendsocket: build data packet: " + err.Error())
			}
			continue
		}

		if err := a.sock.SendTo(ctx, packet, msg.Peer); err != nil {
			if a.log != nil {
				a.log.Warn("sendsocket: send to " + msg.Peer + ": " + err.Error())
			}
			continue
		}
		if a.metrics != nil {
			// Repair-vs-systematic classification lives with the fountain
			// codec, not here; sendsocket only counts bytes on the wire.
			a.metrics.RecordFrameSent(len(msg.Payload), false)
		}
	}
}
