package chunkindex

import (
	"testing"

	"github.com/fountainlink/transfer/internal/chunkplan"
)

func sampleConfig() *chunkplan.FileConfig {
	return &chunkplan.FileConfig{
		FileName:    "movie.mkv",
		TotalLength: 100,
		TotalHash:   "deadbeef",
		Chunks: []chunkplan.FileChunk{
			{ChunkID: 0, Offset: 0, Length: 50, Hash: "aa"},
			{ChunkID: 1, Offset: 50, Length: 50, Hash: "bb"},
		},
	}
}

func TestRegisterAndLookup(t *testing.T) {
	idx := New()
	if err := idx.RegisterFile("movie", "/data/movie.mkv", sampleConfig()); err != nil {
		t.Fatalf("RegisterFile: %v", err)
	}

	e, err := idx.Lookup(1)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	if e.FileKey != "movie" || e.Offset != 50 || e.Length != 50 {
		t.Fatalf("unexpected entry: %+v", e)
	}

	path, err := idx.Path("movie")
	if err != nil || path != "/data/movie.mkv" {
		t.Fatalf("Path = %q, %v", path, err)
	}
}

func TestFreezeRejectsFurtherRegistration(t *testing.T) {
	idx := New()
	if err := idx.RegisterFile("movie", "/data/movie.mkv", sampleConfig()); err != nil {
		t.Fatalf("RegisterFile: %v", err)
	}
	idx.Freeze()

	err := idx.RegisterFile("other", "/data/other.mkv", sampleConfig())
	if err != ErrAlreadyFrozen {
		t.Fatalf("expected ErrAlreadyFrozen, got %v", err)
	}
}

func TestDuplicateFileKeyRejected(t *testing.T) {
	idx := New()
	if err := idx.RegisterFile("movie", "/data/movie.mkv", sampleConfig()); err != nil {
		t.Fatalf("RegisterFile: %v", err)
	}
	if err := idx.RegisterFile("movie", "/data/other.mkv", sampleConfig()); err != ErrFileKeyExists {
		t.Fatalf("expected ErrFileKeyExists, got %v", err)
	}
}

func TestLookupMissingChunk(t *testing.T) {
	idx := New()
	if _, err := idx.Lookup(99); err != ErrChunkNotFound {
		t.Fatalf("expected ErrChunkNotFound, got %v", err)
	}
}
