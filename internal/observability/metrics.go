package observability

import (
	"net/http"
	"sync/atomic"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the transfer engine.
type Metrics struct {
	TransfersTotal        *prometheus.CounterVec
	TransfersActive       prometheus.Gauge
	TransferDuration      prometheus.Histogram
	BytesTransferredTotal *prometheus.CounterVec

	FramesSentTotal     prometheus.Counter
	FramesReceivedTotal prometheus.Counter
	FramesDroppedTotal  *prometheus.CounterVec
	RepairFramesTotal   prometheus.Counter

	ChunksDecodedTotal          prometheus.Counter
	ChunkDecodeFailuresTotal    prometheus.Counter
	ChunkIntegrityFailuresTotal prometheus.Counter

	TicketsIssuedTotal    prometheus.Counter
	ReceiveWindowFrames   prometheus.Gauge
	PacingRateKbps        prometheus.Gauge
	EncoderActorsActive   prometheus.Gauge
	DecoderActorsActive   prometheus.Gauge

	SignatureVerificationsTotal *prometheus.CounterVec

	activeTransfers int64
}

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	m := &Metrics{
		TransfersTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fountainlink_transfers_total",
				Help: "Total file transfers initiated",
			},
			[]string{"status"},
		),

		TransfersActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "fountainlink_transfers_active",
				Help: "Currently active file transfers",
			},
		),

		TransferDuration: promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "fountainlink_transfer_duration_seconds",
				Help:    "Transfer completion time distribution",
				Buckets: []float64{1, 5, 10, 30, 60, 120, 300, 600, 1200, 1800},
			},
		),

		BytesTransferredTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fountainlink_bytes_transferred_total",
				Help: "Total bytes transferred",
			},
			[]string{"direction"},
		),

		FramesSentTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "fountainlink_frames_sent_total",
				Help: "Total data frames sent",
			},
		),

		FramesReceivedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "fountainlink_frames_received_total",
				Help: "Total data frames received",
			},
		),

		FramesDroppedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fountainlink_frames_dropped_total",
				Help: "Frames dropped at parse or verification time",
			},
			[]string{"reason"},
		),

		RepairFramesTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "fountainlink_repair_frames_total",
				Help: "Repair (non-systematic) frames sent",
			},
		),

		ChunksDecodedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "fountainlink_chunks_decoded_total",
				Help: "Chunks successfully decoded",
			},
		),

		ChunkDecodeFailuresTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "fountainlink_chunk_decode_failures_total",
				Help: "Chunk decode attempts that failed",
			},
		),

		ChunkIntegrityFailuresTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "fountainlink_chunk_integrity_failures_total",
				Help: "Decoded chunks whose hash did not match",
			},
		),

		TicketsIssuedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "fountainlink_tickets_issued_total",
				Help: "Signed ticket packets issued by the receiver",
			},
		),

		ReceiveWindowFrames: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "fountainlink_receive_window_frames",
				Help: "Most recently advertised receive window, in frames",
			},
		),

		PacingRateKbps: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "fountainlink_pacing_rate_kbps",
				Help: "Current sender pacing rate in kbps",
			},
		),

		EncoderActorsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "fountainlink_encoder_actors_active",
				Help: "Currently running per-chunk encoder actors",
			},
		),

		DecoderActorsActive: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "fountainlink_decoder_actors_active",
				Help: "Currently running per-chunk decoder actors",
			},
		),

		SignatureVerificationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fountainlink_signature_verifications_total",
				Help: "Ticket/packet signature verifications",
			},
			[]string{"result"},
		),
	}

	return m
}

// RecordTransferStart increments active transfer counters.
func (m *Metrics) RecordTransferStart() {
	atomic.AddInt64(&m.activeTransfers, 1)
	m.TransfersActive.Set(float64(atomic.LoadInt64(&m.activeTransfers)))
}

// RecordTransferComplete records transfer completion metrics.
func (m *Metrics) RecordTransferComplete(success bool, durationSeconds float64) {
	atomic.AddInt64(&m.activeTransfers, -1)
	m.TransfersActive.Set(float64(atomic.LoadInt64(&m.activeTransfers)))

	status := "success"
	if !success {
		status = "failure"
	}

	m.TransfersTotal.WithLabelValues(status).Inc()
	m.TransferDuration.Observe(durationSeconds)
}

// RecordFrameSent updates metrics for a sent data frame.
func (m *Metrics) RecordFrameSent(bytes int, repair bool) {
	m.FramesSentTotal.Inc()
	m.BytesTransferredTotal.WithLabelValues("sent").Add(float64(bytes))
	if repair {
		m.RepairFramesTotal.Inc()
	}
}

// RecordFrameReceived updates metrics for a received data frame.
func (m *Metrics) RecordFrameReceived(bytes int) {
	m.FramesReceivedTotal.Inc()
	m.BytesTransferredTotal.WithLabelValues("received").Add(float64(bytes))
}

// RecordFrameDropped increments drop counters by reason.
func (m *Metrics) RecordFrameDropped(reason string) {
	m.FramesDroppedTotal.WithLabelValues(reason).Inc()
}

// RecordChunkDecode records a chunk decode attempt outcome.
func (m *Metrics) RecordChunkDecode(success bool) {
	if success {
		m.ChunksDecodedTotal.Inc()
	} else {
		m.ChunkDecodeFailuresTotal.Inc()
	}
}

// RecordChunkIntegrityFailure increments the hash-mismatch counter.
func (m *Metrics) RecordChunkIntegrityFailure() {
	m.ChunkIntegrityFailuresTotal.Inc()
}

// RecordTicketIssued increments the ticket counter and records the window.
func (m *Metrics) RecordTicketIssued(windowFrames uint32) {
	m.TicketsIssuedTotal.Inc()
	m.ReceiveWindowFrames.Set(float64(windowFrames))
}

// SetPacingRate records the current sender pacing rate.
func (m *Metrics) SetPacingRate(kbps float64) {
	m.PacingRateKbps.Set(kbps)
}

// RecordSignatureVerification increments the signature verification counter.
func (m *Metrics) RecordSignatureVerification(success bool) {
	result := "success"
	if !success {
		result = "failure"
	}
	m.SignatureVerificationsTotal.WithLabelValues(result).Inc()
}

// Handler exposes the Prometheus metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.Handler()
}
