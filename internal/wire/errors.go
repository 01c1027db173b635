package wire

import "fmt"

// ParseError is returned by ParsePacket for any structural defect in a
// datagram. Every ParseError is recovered locally by the caller: drop the
// datagram and log it.
type ParseError struct {
	Kind string
	Msg  string
}

func (e *ParseError) Error() string {
	if e.Msg == "" {
		return e.Kind
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Msg)
}

func parseErrorf(kind, format string, args ...any) *ParseError {
	return &ParseError{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// Parse error kinds, named after spec.md's error taxonomy.
const (
	ErrUnsupportedVersion     = "UnsupportedVersion"
	ErrUnsupportedPacketType  = "UnsupportedPacketType"
	ErrUnsupportedFrameType   = "UnsupportedFrameType"
	ErrInconsistentFields     = "InconsistentFields"
	ErrPacketTooShort         = "PacketTooShort"
	ErrBodyTooShort           = "BodyTooShort"
	ErrFailedToParsePacketHeader = "FailedToParsePacketHeader"
	ErrFailedToParseFrame     = "FailedToParseFrame"
)
