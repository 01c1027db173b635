// Package chunkplan builds and verifies spec.md §3's FileConfig: the
// ordered, page-aligned chunk layout and per-chunk BLAKE3 hashes that a
// sender publishes and a receiver checks a completed transfer against.
package chunkplan

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/fountainlink/transfer/internal/planner"
	"github.com/zeebo/blake3"
)

// FileChunk describes one chunk of a planned transfer.
type FileChunk struct {
	ChunkID uint32 `toml:"chunk_id"`
	Offset  uint64 `toml:"offset"`
	Length  uint64 `toml:"length"`
	Hash    string `toml:"hash"`
}

// FileConfig is the complete description of a file's chunk layout, as
// published in a plan file and checked against on completion.
type FileConfig struct {
	FileName    string      `toml:"file_name"`
	TotalLength uint64      `toml:"total_length"`
	TotalHash   string      `toml:"total_hash"`
	Chunks      []FileChunk `toml:"chunks"`
}

// Build computes a FileConfig for the file at path: it plans chunk
// boundaries with planner.Plan, then hashes the whole file and each chunk
// with BLAKE3.
func Build(path string) (*FileConfig, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("chunkplan: open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("chunkplan: stat %s: %w", path, err)
	}
	totalLength := uint64(info.Size())

	ranges := planner.Plan(totalLength)
	chunks := make([]FileChunk, 0, len(ranges))
	totalHasher := blake3.New()

	for id, r := range ranges {
		chunkHasher := blake3.New()
		w := io.MultiWriter(totalHasher, chunkHasher)
		if _, err := io.Copy(w, io.NewSectionReader(f, int64(r.Offset), int64(r.Length))); err != nil {
			return nil, fmt.Errorf("chunkplan: hash chunk %d: %w", id, err)
		}
		chunks = append(chunks, FileChunk{
			ChunkID: uint32(id),
			Offset:  r.Offset,
			Length:  r.Length,
			Hash:    hex.EncodeToString(chunkHasher.Sum(nil)),
		})
	}

	return &FileConfig{
		FileName:    filepath.Base(path),
		TotalLength: totalLength,
		TotalHash:   hex.EncodeToString(totalHasher.Sum(nil)),
		Chunks:      chunks,
	}, nil
}

// VerifyChunk reports whether chunkBytes matches the hash recorded for
// chunkID in cfg.
func (cfg *FileConfig) VerifyChunk(chunkID uint32, chunkBytes []byte) error {
	if int(chunkID) >= len(cfg.Chunks) {
		return fmt.Errorf("chunkplan: chunk id %d out of range", chunkID)
	}
	want := cfg.Chunks[chunkID].Hash
	sum := blake3.Sum256(chunkBytes)
	got := hex.EncodeToString(sum[:])
	if got != want {
		return fmt.Errorf("chunkplan: chunk %d hash mismatch: got %s want %s", chunkID, got, want)
	}
	return nil
}

// VerifyComplete re-hashes the assembled file at path and compares it
// against cfg.TotalHash and cfg.TotalLength.
func VerifyComplete(path string, cfg *FileConfig) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("chunkplan: open %s: %w", path, err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("chunkplan: stat %s: %w", path, err)
	}
	if uint64(info.Size()) != cfg.TotalLength {
		return fmt.Errorf("chunkplan: length mismatch: got %d want %d", info.Size(), cfg.TotalLength)
	}

	hasher := blake3.New()
	if _, err := io.Copy(hasher, f); err != nil {
		return fmt.Errorf("chunkplan: hash %s: %w", path, err)
	}
	got := hex.EncodeToString(hasher.Sum(nil))
	if got != cfg.TotalHash {
		return fmt.Errorf("chunkplan: hash mismatch: got %s want %s", got, cfg.TotalHash)
	}
	return nil
}
