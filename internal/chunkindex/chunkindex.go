// Package chunkindex implements spec.md's ChunkIndex: a process-wide
// registry mapping chunk_id to the file and byte range it belongs to, and
// file_key to the file's path on disk. It is built once at startup by
// registering every served file's plan, then frozen; all reads after that
// point are lock-free in spirit (RLock-guarded, but nothing ever mutates
// again).
package chunkindex

import (
	"errors"
	"sync"

	"github.com/fountainlink/transfer/internal/chunkplan"
)

var (
	ErrAlreadyFrozen  = errors.New("chunkindex: index is frozen, cannot register")
	ErrFileKeyExists  = errors.New("chunkindex: file key already registered")
	ErrChunkIDExists  = errors.New("chunkindex: chunk id already registered")
	ErrChunkNotFound  = errors.New("chunkindex: chunk id not found")
	ErrFileKeyUnknown = errors.New("chunkindex: file key not found")
)

// Entry describes where one chunk's bytes live.
type Entry struct {
	FileKey string
	Offset  uint64
	Length  uint64
}

// ChunkIndex is the process-wide chunk_id/file_key registry.
type ChunkIndex struct {
	mu     sync.RWMutex
	frozen bool
	chunks map[uint32]Entry
	paths  map[string]string
}

// New returns an empty, unfrozen ChunkIndex ready for registration.
func New() *ChunkIndex {
	return &ChunkIndex{
		chunks: make(map[uint32]Entry),
		paths:  make(map[string]string),
	}
}

// RegisterFile adds every chunk in cfg under fileKey, pointing at path. It
// returns ErrAlreadyFrozen once Freeze has been called, ErrFileKeyExists if
// fileKey was already registered, and ErrChunkIDExists if cfg's chunk ids
// collide with a previously registered file's.
func (c *ChunkIndex) RegisterFile(fileKey, path string, cfg *chunkplan.FileConfig) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.frozen {
		return ErrAlreadyFrozen
	}
	if _, exists := c.paths[fileKey]; exists {
		return ErrFileKeyExists
	}
	for _, chunk := range cfg.Chunks {
		if _, exists := c.chunks[chunk.ChunkID]; exists {
			return ErrChunkIDExists
		}
	}

	for _, chunk := range cfg.Chunks {
		c.chunks[chunk.ChunkID] = Entry{
			FileKey: fileKey,
			Offset:  chunk.Offset,
			Length:  chunk.Length,
		}
	}
	c.paths[fileKey] = path
	return nil
}

// Freeze marks the index immutable. Every RegisterFile call after Freeze
// fails with ErrAlreadyFrozen.
func (c *ChunkIndex) Freeze() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frozen = true
}

// Lookup returns the entry for chunkID.
func (c *ChunkIndex) Lookup(chunkID uint32) (Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.chunks[chunkID]
	if !ok {
		return Entry{}, ErrChunkNotFound
	}
	return e, nil
}

// Path returns the on-disk path registered under fileKey.
func (c *ChunkIndex) Path(fileKey string) (string, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	p, ok := c.paths[fileKey]
	if !ok {
		return "", ErrFileKeyUnknown
	}
	return p, nil
}
