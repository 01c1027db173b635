// Package pktid implements spec.md's global packet-id counter: a single
// process-wide source of packet ids, shared by every actor that builds an
// outgoing packet, incremented with a relaxed atomic add.
package pktid

import "sync/atomic"

// Counter hands out monotonically increasing packet ids.
type Counter struct {
	next atomic.Uint32
}

// New returns a counter starting at 0.
func New() *Counter {
	return &Counter{}
}

// Next returns the next packet id.
func (c *Counter) Next() uint32 {
	return c.next.Add(1) - 1
}
