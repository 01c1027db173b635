package keyring

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fountainlink/transfer/internal/wire"
	"golang.org/x/crypto/argon2"
)

// ErrInvalidPassphrase is returned by LoadIdentityKey when the supplied
// passphrase fails to decrypt the on-disk identity key.
var ErrInvalidPassphrase = errors.New("keyring: invalid passphrase")

// Argon2id parameters the identity keystore derives its AES-256-GCM key
// with. Kept fixed rather than configurable: every keystore this process
// writes uses the same cost, and entries still record their own parameters
// so a future process can read an older keystore if these ever change.
const (
	argon2Time      = 3
	argon2Memory    = 65536 // KiB
	argon2Threads   = 4
	argon2KeyLen    = 32
	identitySalt    = 32
	identityVersion = 1
)

// identityEntry is the on-disk encoding of a passphrase-protected identity
// key: the Argon2id parameters the key was derived under, the GCM nonce,
// and the sealed key bytes.
type identityEntry struct {
	Version       int    `json:"version"`
	Argon2Time    int    `json:"argon2_time"`
	Argon2Memory  int    `json:"argon2_memory"`
	Argon2Threads int    `json:"argon2_threads"`
	Salt          []byte `json:"salt"`
	Nonce         []byte `json:"nonce"`
	Ciphertext    []byte `json:"ciphertext"`
}

// SaveIdentityKey persists priv to path, sealed with a key Argon2id derives
// from passphrase. An empty passphrase stores priv unencrypted instead,
// with ".insecure" appended to path so the on-disk state is self-describing.
func SaveIdentityKey(priv ed25519.PrivateKey, path string, passphrase string) error {
	if len(priv) != ed25519.PrivateKeySize {
		return fmt.Errorf("keyring: identity key must be %d bytes", ed25519.PrivateKeySize)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("keyring: create keystore directory: %w", err)
	}

	var data []byte
	if passphrase == "" {
		data = priv
		path += ".insecure"
	} else {
		entry, err := sealIdentityKey(priv, passphrase)
		if err != nil {
			return fmt.Errorf("keyring: seal identity key: %w", err)
		}
		data, err = json.MarshalIndent(entry, "", "  ")
		if err != nil {
			return fmt.Errorf("keyring: marshal identity keystore: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("keyring: write identity keystore: %w", err)
	}
	return nil
}

// LoadIdentityKey loads and, if the file is not a ".insecure" plaintext
// dump, decrypts the identity key at path. A wrong passphrase is reported
// as ErrInvalidPassphrase.
func LoadIdentityKey(path string, passphrase string) (ed25519.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("keyring: read identity keystore: %w", err)
	}

	if filepath.Ext(path) == ".insecure" {
		if len(data) != ed25519.PrivateKeySize {
			return nil, fmt.Errorf("keyring: unencrypted identity keystore has %d bytes, want %d", len(data), ed25519.PrivateKeySize)
		}
		return ed25519.PrivateKey(data), nil
	}

	var entry identityEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("keyring: unmarshal identity keystore: %w", err)
	}
	return openIdentityKey(&entry, passphrase)
}

func sealIdentityKey(priv ed25519.PrivateKey, passphrase string) (*identityEntry, error) {
	salt := make([]byte, identitySalt)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	key := argon2.IDKey([]byte(passphrase), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("construct AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("construct GCM: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}

	return &identityEntry{
		Version:       identityVersion,
		Argon2Time:    argon2Time,
		Argon2Memory:  argon2Memory,
		Argon2Threads: argon2Threads,
		Salt:          salt,
		Nonce:         nonce,
		Ciphertext:    gcm.Seal(nil, nonce, priv, nil),
	}, nil
}

func openIdentityKey(entry *identityEntry, passphrase string) (ed25519.PrivateKey, error) {
	if entry.Version != identityVersion {
		return nil, fmt.Errorf("keyring: unsupported identity keystore version %d", entry.Version)
	}

	key := argon2.IDKey([]byte(passphrase), entry.Salt, uint32(entry.Argon2Time), uint32(entry.Argon2Memory), uint8(entry.Argon2Threads), argon2KeyLen)
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("keyring: construct AES cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("keyring: construct GCM: %w", err)
	}
	if len(entry.Nonce) != gcm.NonceSize() {
		return nil, fmt.Errorf("keyring: identity keystore nonce has %d bytes, want %d", len(entry.Nonce), gcm.NonceSize())
	}

	priv, err := gcm.Open(nil, entry.Nonce, entry.Ciphertext, nil)
	if err != nil {
		return nil, ErrInvalidPassphrase
	}
	if len(priv) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("keyring: decrypted identity key has %d bytes, want %d", len(priv), ed25519.PrivateKeySize)
	}
	return ed25519.PrivateKey(priv), nil
}

// DefaultKeystorePath returns the default directory identity keys are
// stored under: %APPDATA%\fountainlink\keys on Windows,
// $XDG_DATA_HOME/fountainlink/keys or ~/.local/share/fountainlink/keys
// elsewhere.
func DefaultKeystorePath() string {
	if appData := os.Getenv("APPDATA"); appData != "" {
		return filepath.Join(appData, "fountainlink", "keys")
	}
	if xdgData := os.Getenv("XDG_DATA_HOME"); xdgData != "" {
		return filepath.Join(xdgData, "fountainlink", "keys")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "fountainlink", "keys")
}

// LoadAllowList reads one hex-encoded Ed25519 public key per line from
// path, ignoring blank lines and "#"-prefixed comments, and authorizes
// each one.
func (k *KeyRing) LoadAllowList(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("keyring: read allow list %s: %w", path, err)
	}
	for _, line := range strings.Split(string(data), "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		raw, err := hex.DecodeString(line)
		if err != nil {
			return fmt.Errorf("keyring: decode allow list entry %q: %w", line, err)
		}
		if len(raw) != wire.PubKeyLength {
			return fmt.Errorf("keyring: allow list entry %q has length %d, want %d", line, len(raw), wire.PubKeyLength)
		}
		var arr [wire.PubKeyLength]byte
		copy(arr[:], raw)
		k.AddAllowed(arr)
	}
	return nil
}
