// Package keyring implements spec.md §4.3: an allow-list of authorized
// Ed25519 public keys plus at most one private signing key, and the two
// verification modes (CRC-64/ECMA-182, Ed25519-over-BLAKE3) the wire codec
// calls into through the wire.Signer/wire.Verifier interfaces.
package keyring

import (
	"crypto/ed25519"
	"hash/crc64"
	"sync"

	"github.com/fountainlink/transfer/internal/wire"
	"github.com/zeebo/blake3"
)

var crc64Table = crc64.MakeTable(crc64.ECMA)

// KeyRing holds the authorization state for one process: the set of public
// keys whose signatures are accepted, and at most one private key this
// process signs with. It is write-once at startup and read-only afterward
// (spec §9 "global write-once state").
type KeyRing struct {
	mu       sync.RWMutex
	allowed  map[[wire.PubKeyLength]byte]struct{}
	priv     ed25519.PrivateKey
	pub      [wire.PubKeyLength]byte
	hasPriv  bool
}

// New returns an empty keyring.
func New() *KeyRing {
	return &KeyRing{allowed: make(map[[wire.PubKeyLength]byte]struct{})}
}

// AddAllowed authorizes a public key for Ed25519 verification.
func (k *KeyRing) AddAllowed(pub [wire.PubKeyLength]byte) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.allowed[pub] = struct{}{}
}

// IsAllowed reports whether pub is on the allow-list.
func (k *KeyRing) IsAllowed(pub [wire.PubKeyLength]byte) bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	_, ok := k.allowed[pub]
	return ok
}

// SetPrivate installs this process's signing key. Calling it twice is a
// programmer error, matching spec's "second initialization is a programmer
// error" for write-once global state.
func (k *KeyRing) SetPrivate(priv ed25519.PrivateKey) error {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.hasPriv {
		return errAlreadyInitialized
	}
	if len(priv) != ed25519.PrivateKeySize {
		return errInvalidPrivateKeySize
	}
	k.priv = priv
	copy(k.pub[:], priv.Public().(ed25519.PublicKey))
	k.hasPriv = true
	return nil
}

// HasPrivate reports whether a private key has been loaded.
func (k *KeyRing) HasPrivate() bool {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return k.hasPriv
}

// SignCRC64 folds the CRC-64/ECMA-182 digest over prefix, big-endian.
func (k *KeyRing) SignCRC64(prefix []byte) [wire.CRC64TailLength]byte {
	var tail [wire.CRC64TailLength]byte
	sum := crc64.Checksum(prefix, crc64Table)
	putUint64BE(tail[:], sum)
	return tail
}

// Ed25519PublicKey returns this process's signing public key.
func (k *KeyRing) Ed25519PublicKey() ([wire.PubKeyLength]byte, error) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if !k.hasPriv {
		return [wire.PubKeyLength]byte{}, errNoPrivateKey
	}
	return k.pub, nil
}

// SignEd25519 signs BLAKE3(prefix) with the private key.
func (k *KeyRing) SignEd25519(prefix []byte) ([wire.Ed25519SignatureLength]byte, error) {
	k.mu.RLock()
	priv := k.priv
	hasPriv := k.hasPriv
	k.mu.RUnlock()

	var sig [wire.Ed25519SignatureLength]byte
	if !hasPriv {
		return sig, errNoPrivateKey
	}
	digest := blake3.Sum256(prefix)
	copy(sig[:], ed25519.Sign(priv, digest[:]))
	return sig, nil
}

// VerifyCRC64 recomputes the checksum over prefix and compares to tail.
func (k *KeyRing) VerifyCRC64(prefix []byte, tail [wire.CRC64TailLength]byte) error {
	if len(prefix)+wire.CRC64TailLength > wire.MTU {
		return &VerifyError{Kind: ErrPacketTooLong}
	}
	if k.SignCRC64(prefix) != tail {
		return &VerifyError{Kind: ErrCorruptContent}
	}
	return nil
}

// VerifyEd25519 requires pubkey to be allow-listed, then verifies sig
// against BLAKE3(prefix).
func (k *KeyRing) VerifyEd25519(prefix []byte, pubkey [wire.PubKeyLength]byte, sig [wire.Ed25519SignatureLength]byte) error {
	if len(prefix)+wire.Ed25519SignatureLength > wire.MTU {
		return &VerifyError{Kind: ErrPacketTooLong}
	}
	if !k.IsAllowed(pubkey) {
		return &VerifyError{Kind: ErrUnknownPublicKey}
	}
	digest := blake3.Sum256(prefix)
	if !ed25519.Verify(ed25519.PublicKey(pubkey[:]), digest[:], sig[:]) {
		return &VerifyError{Kind: ErrIncorrectSign}
	}
	return nil
}

func putUint64BE(dst []byte, v uint64) {
	for i := 7; i >= 0; i-- {
		dst[i] = byte(v)
		v >>= 8
	}
}
