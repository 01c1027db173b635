// Package config holds the tunable knobs of the transfer engine.
//
// Every value here was a hard-coded constant in the original design; the
// spec's open questions ask for each of them to be surfaced as configuration
// in a rewrite, so DefaultConfig documents the value it replaces.
package config

import "time"

// Config holds engine-wide tunables shared by the sender and receiver sides.
type Config struct {
	// TicketInterval is how often the receiving socket aggregates its
	// reporter state into a signed ticket packet. Replaces the hard-coded
	// 2 second ticker.
	TicketInterval time.Duration

	// ReceiverRateLimitKbps is the advisory rate a receiver asks the sender
	// to honor. Replaces the hard-coded 40960 kbps (40 Mbps) constant.
	ReceiverRateLimitKbps uint32

	// MinReceiveWindowFrames is the floor applied to receive_window_frames
	// for an active (WantNext) chunk, before the n/5 growth term.
	MinReceiveWindowFrames uint32

	// EncoderIdleSleep is how long an encoder actor waits without a fresh
	// order before it arms its quiescence sleep.
	EncoderIdleSleep time.Duration

	// EncoderIdleExit is how long an encoder actor waits without a fresh
	// order before it terminates unconditionally.
	EncoderIdleExit time.Duration

	// PacingTickInterval is the default per-chunk pacing interval used when
	// a sending order carries no explicit rate.
	PacingTickInterval time.Duration

	// MaxBurst bounds the number of frames a single pacing tick may emit.
	MaxBurst int

	// MTU bounds the size of a single on-wire packet.
	MTU int

	// DefaultFrameLen bounds the size of a single fountain-code symbol
	// payload.
	DefaultFrameLen int

	// GlobalSendRateBytesPerSec caps a sending socket's total outbound
	// byte rate across every chunk and peer it serves, independent of
	// each chunk's own advisory pacing. Zero disables the cap.
	GlobalSendRateBytesPerSec float64

	// GlobalSendBurstBytes bounds how many bytes the global send cap
	// lets through in a single burst.
	GlobalSendBurstBytes int
}

// DefaultConfig returns the values the original design hard-coded.
func DefaultConfig() Config {
	return Config{
		TicketInterval:         2 * time.Second,
		ReceiverRateLimitKbps:  40960,
		MinReceiveWindowFrames: 8192,
		EncoderIdleSleep:       10 * time.Second,
		EncoderIdleExit:        20 * time.Second,
		PacingTickInterval:     20 * time.Millisecond,
		MaxBurst:               8,
		MTU:                    1490,
		DefaultFrameLen:        1440,
		// 40960 kbps == 5,120,000 bytes/sec; match the receiver's default
		// advisory rate so the global cap does not bind below it.
		GlobalSendRateBytesPerSec: 5_120_000,
		GlobalSendBurstBytes:      1 << 20,
	}
}

// Option overrides a single field of a Config produced by DefaultConfig.
type Option func(*Config)

// WithTicketInterval overrides TicketInterval.
func WithTicketInterval(d time.Duration) Option {
	return func(c *Config) { c.TicketInterval = d }
}

// WithReceiverRateLimitKbps overrides ReceiverRateLimitKbps.
func WithReceiverRateLimitKbps(kbps uint32) Option {
	return func(c *Config) { c.ReceiverRateLimitKbps = kbps }
}

// WithPacingTickInterval overrides PacingTickInterval.
func WithPacingTickInterval(d time.Duration) Option {
	return func(c *Config) { c.PacingTickInterval = d }
}

// WithGlobalSendRateBytesPerSec overrides GlobalSendRateBytesPerSec. Pass
// 0 to disable the global send cap entirely.
func WithGlobalSendRateBytesPerSec(bytesPerSec float64) Option {
	return func(c *Config) { c.GlobalSendRateBytesPerSec = bytesPerSec }
}

// New builds a Config from DefaultConfig with the given overrides applied.
func New(opts ...Option) Config {
	c := DefaultConfig()
	for _, opt := range opts {
		opt(&c)
	}
	return c
}
