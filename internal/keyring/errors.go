package keyring

import "errors"

// VerifyError is returned by VerifyCRC64/VerifyEd25519, named after
// spec.md §4.3's failure-kind taxonomy.
type VerifyError struct {
	Kind string
}

func (e *VerifyError) Error() string { return e.Kind }

const (
	ErrIncorrectLength  = "IncorrectLength"
	ErrPacketTooLong    = "PacketTooLong"
	ErrUnknownPublicKey = "UnknownPublicKey"
	ErrCorruptContent   = "CorruptContent"
	ErrIncorrectSign    = "IncorrectSign"
)

var (
	errAlreadyInitialized     = errors.New("keyring: private key already initialized")
	errInvalidPrivateKeySize  = errors.New("keyring: private key has wrong size")
	errNoPrivateKey           = errors.New("keyring: no private key loaded")
)
