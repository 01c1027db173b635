// Package decoder implements spec.md §4.7's per-chunk decoder actor: it
// owns one chunk's FrameReceiver state, turns incoming data frames into
// decoded bytes, and keeps the receiving socket informed of its progress
// via WantNext/Finished reports.
package decoder

import (
	"context"
	"fmt"

	"github.com/fountainlink/transfer/internal/bus"
	"github.com/fountainlink/transfer/internal/fountain"
	"github.com/fountainlink/transfer/internal/observability"
)

// Result is delivered on a decoder actor's Done channel once it finishes,
// successfully or not.
type Result struct {
	ChunkID   uint32
	Plaintext []byte // nil on failure
	Err       error
}

// Actor is a running per-chunk decoder.
type Actor struct {
	chunkID uint32
	bus     *bus.Bus
	queue   *bus.Queue
	log     *observability.Logger
	metrics *observability.Metrics
	done    chan Result
}

// Spawn registers a new decoder under FrameDecoder(chunkID), sends the
// initial WantNext(0) report, and starts its main loop in a new goroutine.
// The returned Actor's Done channel receives exactly one Result.
func Spawn(ctx context.Context, b *bus.Bus, chunkID uint32, log *observability.Logger, metrics *observability.Metrics) (*Actor, error) {
	addr := bus.FrameDecoderAddress(chunkID)
	queue, err := b.Register(addr)
	if err != nil {
		return nil, fmt.Errorf("decoder: register %v: %w", addr, err)
	}

	a := &Actor{
		chunkID: chunkID,
		bus:     b,
		queue:   queue,
		log:     log,
		metrics: metrics,
		done:    make(chan Result, 1),
	}

	if metrics != nil {
		metrics.DecoderActorsActive.Inc()
	}

	a.sendReport(bus.ChunkReport{Kind: bus.WantNext, Value: 0})

	go a.run(ctx)
	return a, nil
}

// Done returns the channel that receives this decoder's single Result.
func (a *Actor) Done() <-chan Result {
	return a.done
}

func (a *Actor) run(ctx context.Context) {
	defer a.queue.Close()
	defer func() {
		if a.metrics != nil {
			a.metrics.DecoderActorsActive.Dec()
		}
	}()

	frame, err := bus.RecvAs[bus.ParsedDataFrame](ctx, a.queue)
	if err != nil {
		a.finish(Result{ChunkID: a.chunkID, Err: err})
		return
	}

	receiver, err := fountain.TryNewReceiver(frame.TransInfo)
	if err != nil {
		if a.log != nil {
			a.log.DecoderFailed(a.chunkID, err)
		}
		if a.metrics != nil {
			a.metrics.RecordChunkDecode(false)
		}
		a.finish(Result{ChunkID: a.chunkID, Err: err})
		return
	}

	if plaintext := a.absorb(receiver, frame); plaintext != nil {
		a.finish(Result{ChunkID: a.chunkID, Plaintext: plaintext})
		return
	}

	for {
		frame, err := bus.RecvAs[bus.ParsedDataFrame](ctx, a.queue)
		if err != nil {
			a.finish(Result{ChunkID: a.chunkID, Err: err})
			return
		}
		if plaintext := a.absorb(receiver, frame); plaintext != nil {
			a.finish(Result{ChunkID: a.chunkID, Plaintext: plaintext})
			return
		}
	}
}

// absorb feeds one frame to receiver and reports progress. It returns the
// decoded plaintext once the chunk completes, nil otherwise.
func (a *Actor) absorb(receiver *fountain.Receiver, frame bus.ParsedDataFrame) []byte {
	plaintext := receiver.Update(frame.FrameOffset, frame.Payload)
	if plaintext != nil {
		expected := receiver.ExpectedFrameID()
		a.sendReport(bus.ChunkReport{Kind: bus.Finished, Value: expected})
		if a.metrics != nil {
			a.metrics.RecordChunkDecode(true)
		}
		if a.log != nil {
			a.log.DecoderCompleted(a.chunkID, expected)
		}
		return plaintext
	}
	a.sendReport(bus.ChunkReport{Kind: bus.WantNext, Value: receiver.ExpectedFrameID()})
	return nil
}

// sendReport delivers a report to ReceiverSocket, silently dropping the
// send if that address has no registered consumer.
func (a *Actor) sendReport(report bus.ChunkReport) {
	_ = a.bus.Send(bus.ReceiverSocketAddress(), bus.ChunkReportMsg{ChunkID: a.chunkID, Report: report})
}

func (a *Actor) finish(r Result) {
	a.done <- r
}
