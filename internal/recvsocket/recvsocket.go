// Package recvsocket implements spec.md §4.9's receiving socket actor: it
// tracks each chunk's decode progress as a Reporter, periodically folds
// that progress into a signed Ticket packet addressed to the sender, and
// routes incoming Data frames to the matching per-chunk decoder actor.
package recvsocket

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fountainlink/transfer/internal/bus"
	"github.com/fountainlink/transfer/internal/config"
	"github.com/fountainlink/transfer/internal/decoder"
	"github.com/fountainlink/transfer/internal/observability"
	"github.com/fountainlink/transfer/internal/pktid"
	"github.com/fountainlink/transfer/internal/udpsocket"
	"github.com/fountainlink/transfer/internal/wire"
)

// exitingGenerations bounds how many past promotion rounds are retained
// so a lost final Finished report still gets retransmitted.
const exitingGenerations = 3

// Reporter accumulates per-chunk decode progress between ticks.
type Reporter struct {
	mu      sync.Mutex
	active  map[uint32]bus.ChunkReport
	exiting []map[uint32]bus.ChunkReport
}

func newReporter() *Reporter {
	return &Reporter{active: make(map[uint32]bus.ChunkReport)}
}

// Update merges report into active under chunkID using bus.MergeReport.
func (r *Reporter) Update(chunkID uint32, report bus.ChunkReport) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if existing, ok := r.active[chunkID]; ok {
		r.active[chunkID] = bus.MergeReport(existing, report)
	} else {
		r.active[chunkID] = report
	}
}

// snapshotAndPromote returns the set of chunk ids to request in this
// tick's Ticket (active ∪ every still-retained exiting generation) along
// with their latest known report, then promotes any Finished entries out
// of active into a new front-of-queue exiting generation.
func (r *Reporter) snapshotAndPromote() map[uint32]bus.ChunkReport {
	r.mu.Lock()
	defer r.mu.Unlock()

	combined := make(map[uint32]bus.ChunkReport, len(r.active))
	for id, report := range r.active {
		combined[id] = report
	}
	for _, gen := range r.exiting {
		for id, report := range gen {
			if _, ok := combined[id]; !ok {
				combined[id] = report
			}
		}
	}

	promoted := make(map[uint32]bus.ChunkReport)
	for id, report := range r.active {
		if report.Kind == bus.Finished {
			promoted[id] = report
			delete(r.active, id)
		}
	}
	if len(promoted) > 0 {
		r.exiting = append([]map[uint32]bus.ChunkReport{promoted}, r.exiting...)
		if len(r.exiting) > exitingGenerations {
			r.exiting = r.exiting[:exitingGenerations]
		}
	}

	return combined
}

func (r *Reporter) empty() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active) == 0 && len(r.exiting) == 0
}

// windowFor implements spec.md §4.9's GetChunk window policy.
func windowFor(report bus.ChunkReport, minWindow uint32) *wire.GetChunkFrame {
	if report.Kind == bus.Finished {
		return &wire.GetChunkFrame{NextReceiveOffset: report.Value, ReceiveWindowFrames: 0}
	}
	window := report.Value / 5
	if window < minWindow {
		window = minWindow
	}
	return &wire.GetChunkFrame{NextReceiveOffset: report.Value, ReceiveWindowFrames: window}
}

// SignerVerifier is what a receiving socket needs from its identity: it
// signs outgoing Ticket packets and verifies incoming Data packets' tail.
type SignerVerifier interface {
	wire.Signer
	wire.Verifier
}

// Actor is the running receiving socket.
type Actor struct {
	sock       udpsocket.Socket
	serverAddr string
	bus        *bus.Bus
	keys       SignerVerifier
	ids        *pktid.Counter
	cfg        config.Config
	log        *observability.Logger
	metrics    *observability.Metrics

	reporter *Reporter

	decodersMu sync.Mutex
	decoders   map[uint32]*decoder.Actor
}

// Spawn starts the receiving socket actor over sock, registers the bus's
// ReceiverSocket address, and begins both the network recv loop and the
// periodic Ticket ticker addressed to serverAddr.
func Spawn(ctx context.Context, sock udpsocket.Socket, serverAddr string, b *bus.Bus, keys SignerVerifier, cfg config.Config, log *observability.Logger, metrics *observability.Metrics) (*Actor, error) {
	reportQ, err := b.Register(bus.ReceiverSocketAddress())
	if err != nil {
		return nil, fmt.Errorf("recvsocket: register ReceiverSocket: %w", err)
	}

	a := &Actor{
		sock:       sock,
		serverAddr: serverAddr,
		bus:        b,
		keys:       keys,
		ids:        pktid.New(),
		cfg:        cfg,
		log:        log,
		metrics:    metrics,
		reporter:   newReporter(),
		decoders:   make(map[uint32]*decoder.Actor),
	}

	go a.reportLoop(ctx, reportQ)
	go a.recvLoop(ctx)
	go a.tickLoop(ctx)
	return a, nil
}

// reportLoop absorbs ChunkReportMsg updates from decoder actors.
func (a *Actor) reportLoop(ctx context.Context, q *bus.Queue) {
	for {
		msg, err := bus.RecvAs[bus.ChunkReportMsg](ctx, q)
		if err != nil {
			return
		}
		a.reporter.Update(msg.ChunkID, msg.Report)
	}
}

// recvLoop reads datagrams, keeps only Data packets, and routes each
// frame to its chunk's decoder, spawning one on first sight.
func (a *Actor) recvLoop(ctx context.Context) {
	buf := make([]byte, wire.MTU)
	for {
		n, _, err := a.sock.RecvFrom(ctx, buf)
		if err != nil {
			if ctx.Err() != nil {
				return
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
		df := packet.DataFrame()
		if df == nil {
			continue
		}
		if a.metrics != nil {
			a.metrics.RecordFrameReceived(len(df.Payload))
		}

		a.ensureDecoder(ctx, df.ChunkID)
		_ = a.bus.Send(bus.FrameDecoderAddress(df.ChunkID), bus.ParsedDataFrame{
			ChunkID:     df.ChunkID,
			FrameOffset: df.FrameOffset,
			TransInfo:   df.TransmissionInfo,
			Payload:     df.Payload,
		})
	}
}

// StartChunk spawns chunkID's decoder actor if it does not already exist
// and returns it. A freshly spawned decoder immediately reports
// WantNext(0) to the Reporter, which is what seeds the very first
// Ticket's GetChunk for a chunk no Data frame has arrived for yet.
// Callers fetching a file drive this once per chunk id at transfer
// start so they can watch the returned Actor's Done channel; recvLoop's
// own call to ensureDecoder on frame arrival reaches the same
// bookkeeping from the opposite direction, e.g. a sender retransmitting
// after a Ticket was lost for a chunk nothing is actively watching.
func (a *Actor) StartChunk(ctx context.Context, chunkID uint32) *decoder.Actor {
	return a.ensureDecoder(ctx, chunkID)
}

func (a *Actor) ensureDecoder(ctx context.Context, chunkID uint32) *decoder.Actor {
	a.decodersMu.Lock()
	defer a.decodersMu.Unlock()
	if d, ok := a.decoders[chunkID]; ok {
		return d
	}
	d, err := decoder.Spawn(ctx, a.bus, chunkID, a.log, a.metrics)
	if err != nil {
		return nil
	}
	a.decoders[chunkID] = d
	return d
}

// tickLoop builds and transmits a Ticket packet every cfg.TicketInterval,
// skipping ticks where the Reporter has nothing to report.
func (a *Actor) tickLoop(ctx context.Context) {
	ticker := time.NewTicker(a.cfg.TicketInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.tick(ctx)
		}
	}
}

func (a *Actor) tick(ctx context.Context) {
	if a.reporter.empty() {
		return
	}
	combined := a.reporter.snapshotAndPromote()
	if len(combined) == 0 {
		return
	}

	getChunks := make([]*wire.GetChunkFrame, 0, len(combined))
	var maxWindow uint32
	for chunkID, report := range combined {
		frame := windowFor(report, a.cfg.MinReceiveWindowFrames)
		frame.ChunkID = chunkID
		getChunks = append(getChunks, frame)
		if frame.ReceiveWindowFrames > maxWindow {
			maxWindow = frame.ReceiveWindowFrames
		}
	}

	rateLimit := &wire.RateLimitFrame{DesiredMaxKbps: a.cfg.ReceiverRateLimitKbps}
	packet, err := wire.BuildTicketPacket(a.ids.Next(), uint64(time.Now().UnixMilli()), rateLimit, getChunks, a.keys)
	if err != nil {
		if a.log != nil {
			a.log.Warn("recvsocket: build ticket packet: " + err.Error())
		}
		return
	}

	if err := a.sock.SendTo(ctx, packet, a.serverAddr); err != nil {
		if a.log != nil {
			a.log.Warn("recvsocket: send ticket to " + a.serverAddr + ": " + err.Error())
		}
		return
	}
	if a.metrics != nil {
		a.metrics.RecordTicketIssued(maxWindow)
	}
}
