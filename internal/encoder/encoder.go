// Package encoder implements spec.md §4.6's per-chunk encoder actor: it
// owns one chunk's fountain encoder state, turns pacing ticks into bursts
// of Data frames, and tracks how far along the peer has let it send via
// SendingOrder updates from the sending socket actor.
package encoder

import (
	"context"
	"fmt"
	"time"

	"github.com/fountainlink/transfer/internal/bus"
	"github.com/fountainlink/transfer/internal/chunkindex"
	"github.com/fountainlink/transfer/internal/config"
	"github.com/fountainlink/transfer/internal/fileio"
	"github.com/fountainlink/transfer/internal/fountain"
	"github.com/fountainlink/transfer/internal/observability"
	"github.com/fountainlink/transfer/internal/pacing"
)

// StartOrder carries an encoder actor's spawn inputs: the bus.SendingOrder
// that triggered the spawn, plus the peer it is sending to.
type StartOrder struct {
	ChunkID uint32
	Peer    string
	Order   bus.SendingOrder
}

// Actor is a running per-chunk encoder.
type Actor struct {
	chunkID uint32
	peer    string
	bus     *bus.Bus
	queue   *bus.Queue
	log     *observability.Logger
	metrics *observability.Metrics
}

// Spawn registers a new encoder under FrameEncoder(chunkID, peer), maps
// the chunk's bytes via idx, and starts its main loop in a new goroutine.
// It returns an error synchronously if the address is already registered
// or the chunk cannot be located, mapped or encoded; once the loop starts,
// failures are logged, not returned.
func Spawn(ctx context.Context, b *bus.Bus, idx *chunkindex.ChunkIndex, start StartOrder, cfg config.Config, log *observability.Logger, metrics *observability.Metrics) (*Actor, error) {
	addr := bus.FrameEncoderAddress(start.ChunkID, start.Peer)
	queue, err := b.Register(addr)
	if err != nil {
		return nil, fmt.Errorf("encoder: register %v: %w", addr, err)
	}

	entry, err := idx.Lookup(start.ChunkID)
	if err != nil {
		queue.Close()
		return nil, fmt.Errorf("encoder: lookup chunk %d: %w", start.ChunkID, err)
	}
	path, err := idx.Path(entry.FileKey)
	if err != nil {
		queue.Close()
		return nil, fmt.Errorf("encoder: path for %s: %w", entry.FileKey, err)
	}

	segment, err := fileio.MmapSegment(path, entry.Offset, entry.Length)
	if err != nil {
		queue.Close()
		return nil, fmt.Errorf("encoder: mmap chunk %d: %w", start.ChunkID, err)
	}

	sender, err := fountain.NewSender(segment.Bytes(), uint32(start.Order.OffsetNext))
	if err != nil {
		segment.Close()
		queue.Close()
		return nil, fmt.Errorf("encoder: construct sender for chunk %d: %w", start.ChunkID, err)
	}

	a := &Actor{
		chunkID: start.ChunkID,
		peer:    start.Peer,
		bus:     b,
		queue:   queue,
		log:     log,
		metrics: metrics,
	}

	if log != nil {
		log.EncoderSpawned(start.ChunkID, start.Peer, start.Order.OffsetNext)
	}
	if metrics != nil {
		metrics.EncoderActorsActive.Inc()
	}

	go a.run(ctx, segment, sender, start.Order, cfg)
	return a, nil
}

func (a *Actor) run(ctx context.Context, segment *fileio.Segment, sender *fountain.Sender, start bus.SendingOrder, cfg config.Config) {
	defer segment.Close()
	defer a.queue.Close()
	defer func() {
		if a.metrics != nil {
			a.metrics.EncoderActorsActive.Dec()
		}
	}()

	interval := cfg.PacingTickInterval
	if start.RateHint != nil {
		interval = time.Duration(*start.RateHint) * time.Millisecond
	}

	startedAt := time.Now()
	now := func() time.Duration { return time.Since(startedAt) }

	timer := pacing.NewWithLimits(now(), interval, cfg.EncoderIdleSleep, cfg.EncoderIdleExit, cfg.MaxBurst)
	maxFrameOffset := start.OffsetNext + start.OffsetNoMoreThan
	maxSentOffset := uint64(0)
	reason := "idle-exit"

	orders := make(chan bus.SendingOrder)
	go a.pumpOrders(ctx, orders)

	for {
		result := timer.Poll(now())
		switch result.Decision {
		case pacing.Close:
			a.exit(reason)
			return
		case pacing.Send:
			for i := 0; i < result.Count && maxSentOffset < maxFrameOffset; i++ {
				id, payload := sender.NextFrame()
				// Wire-level send accounting happens in sendsocket, which
				// owns the actual datagram write.
				_ = a.bus.Send(bus.SenderSocketAddress(), bus.PeerDataFrame{
					Peer:        a.peer,
					ChunkID:     a.chunkID,
					FrameOffset: id,
					TransInfo:   sender.TransmissionInfo(),
					Payload:     payload,
				})
				maxSentOffset = uint64(id) + 1
			}
		}

		wait := result.WakeAt - now()
		if wait < 0 {
			wait = 0
		}

		select {
		case order, ok := <-orders:
			if !ok {
				reason = "bus-closed"
				a.exit(reason)
				return
			}
			if order.RateHint != nil {
				timer.SetRate(now(), time.Duration(*order.RateHint)*time.Millisecond)
			}
			if order.OffsetNoMoreThan > maxFrameOffset {
				maxFrameOffset = order.OffsetNoMoreThan
			}
			if order.CloseNow {
				reason = "close-now"
				a.exit(reason)
				return
			}
		case <-time.After(wait):
		case <-ctx.Done():
			reason = "context-canceled"
			a.exit(reason)
			return
		}
	}
}

func (a *Actor) pumpOrders(ctx context.Context, out chan<- bus.SendingOrder) {
	defer close(out)
	for {
		order, err := bus.RecvAs[bus.SendingOrder](ctx, a.queue)
		if err != nil {
			return
		}
		select {
		case out <- order:
		case <-ctx.Done():
			return
		}
	}
}

func (a *Actor) exit(reason string) {
	if a.log != nil {
		a.log.EncoderExited(a.chunkID, reason)
	}
}
