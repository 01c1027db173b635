// Package observability wires the engine's logging, metrics, and tracing
// ambient stack: zerolog for structured logs, prometheus client_golang for
// metrics, and OpenTelemetry with a Jaeger exporter for traces.
package observability

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog for structured, field-rich logging.
type Logger struct {
	logger zerolog.Logger
}

// NewLogger creates a new structured logger for the given component.
func NewLogger(component, version string, output io.Writer) *Logger {
	if output == nil {
		output = os.Stdout
	}

	zerolog.TimeFieldFormat = time.RFC3339

	logger := zerolog.New(output).With().
		Timestamp().
		Str("component", component).
		Str("version", version).
		Str("host", getHostname()).
		Logger()

	return &Logger{logger: logger}
}

// WithChunk adds chunk_id context to the logger.
func (l *Logger) WithChunk(chunkID uint32) *Logger {
	return &Logger{logger: l.logger.With().Uint32("chunk_id", chunkID).Logger()}
}

// WithPeer adds peer address context to the logger.
func (l *Logger) WithPeer(peer string) *Logger {
	return &Logger{logger: l.logger.With().Str("peer", peer).Logger()}
}

// WithRun adds a run correlation id to the logger, so every line a single
// server or client invocation emits can be grepped out of a shared log
// stream.
func (l *Logger) WithRun(runID string) *Logger {
	return &Logger{logger: l.logger.With().Str("run_id", runID).Logger()}
}

// WithFile adds file context to the logger.
func (l *Logger) WithFile(fileKey string, totalLength uint64) *Logger {
	return &Logger{logger: l.logger.With().
		Str("file_key", fileKey).
		Uint64("total_length", totalLength).
		Logger()}
}

// Debug logs a debug message.
func (l *Logger) Debug(msg string) { l.logger.Debug().Msg(msg) }

// Info logs an info message.
func (l *Logger) Info(msg string) { l.logger.Info().Msg(msg) }

// Warn logs a warning message.
func (l *Logger) Warn(msg string) { l.logger.Warn().Msg(msg) }

// Error logs an error message.
func (l *Logger) Error(err error, msg string) { l.logger.Error().Err(err).Msg(msg) }

// Fatal logs a fatal message and exits.
func (l *Logger) Fatal(err error, msg string) { l.logger.Fatal().Err(err).Msg(msg) }

// EncoderSpawned logs a per-chunk encoder actor starting up.
func (l *Logger) EncoderSpawned(chunkID uint32, peer string, offset uint64) {
	l.logger.Info().
		Uint32("chunk_id", chunkID).
		Str("peer", peer).
		Uint64("offset_next", offset).
		Msg("encoder actor spawned")
}

// EncoderExited logs a per-chunk encoder actor shutting down.
func (l *Logger) EncoderExited(chunkID uint32, reason string) {
	l.logger.Debug().
		Uint32("chunk_id", chunkID).
		Str("reason", reason).
		Msg("encoder actor exited")
}

// DecoderCompleted logs a per-chunk decoder actor finishing.
func (l *Logger) DecoderCompleted(chunkID uint32, frameCount uint32) {
	l.logger.Info().
		Uint32("chunk_id", chunkID).
		Uint32("frames_absorbed", frameCount).
		Msg("chunk decoded")
}

// DecoderFailed logs a per-chunk decoder actor failing to initialize or
// decode.
func (l *Logger) DecoderFailed(chunkID uint32, err error) {
	l.logger.Warn().
		Uint32("chunk_id", chunkID).
		Err(err).
		Msg("decoder actor failed")
}

// TicketIssued logs a signed ticket being sent to a sender.
func (l *Logger) TicketIssued(peer string, wantNext uint32, windowFrames uint32) {
	l.logger.Debug().
		Str("peer", peer).
		Uint32("want_next_chunk", wantNext).
		Uint32("receive_window_frames", windowFrames).
		Msg("ticket issued")
}

// PacketDropped logs a datagram dropped at parse or verification time.
func (l *Logger) PacketDropped(reason string, err error) {
	l.logger.Debug().
		Str("reason", reason).
		Err(err).
		Msg("packet dropped")
}

// ChunkCorrupt logs a decoded chunk that failed its hash check.
func (l *Logger) ChunkCorrupt(chunkID uint32, expected, got string) {
	l.logger.Warn().
		Uint32("chunk_id", chunkID).
		Str("expected_hash", expected).
		Str("computed_hash", got).
		Msg("decoded chunk failed integrity check")
}

// TransferCompleted logs a whole-file transfer finishing and passing
// verification.
func (l *Logger) TransferCompleted(fileKey string, totalLength uint64, duration time.Duration, verified bool) {
	l.logger.Info().
		Str("file_key", fileKey).
		Uint64("total_length", totalLength).
		Float64("duration_seconds", duration.Seconds()).
		Bool("verified", verified).
		Msg("transfer completed")
}

func getHostname() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return hostname
}
