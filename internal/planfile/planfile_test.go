package planfile

import (
	"path/filepath"
	"reflect"
	"testing"

	"github.com/fountainlink/transfer/internal/chunkplan"
)

func sampleConfig() *chunkplan.FileConfig {
	return &chunkplan.FileConfig{
		FileName:    "video.mp4",
		TotalLength: 3_000_000,
		TotalHash:   "deadbeef",
		Chunks: []chunkplan.FileChunk{
			{ChunkID: 0, Offset: 0, Length: 1_500_000, Hash: "aaaa"},
			{ChunkID: 1, Offset: 1_500_000, Length: 1_500_000, Hash: "bbbb"},
		},
	}
}

func TestWriteReadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "video.plan.toml")
	want := sampleConfig()

	if err := Write(path, want); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := Read(path)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if !reflect.DeepEqual(want, got) {
		t.Fatalf("round trip mismatch: got %+v, want %+v", got, want)
	}
}

func TestManifestRoundTrip(t *testing.T) {
	dir := t.TempDir()
	m := Manifest{
		"video": sampleConfig(),
		"audio": {FileName: "theme.mp3", TotalLength: 1000, TotalHash: "cafe", Chunks: []chunkplan.FileChunk{
			{ChunkID: 0, Offset: 0, Length: 1000, Hash: "feed"},
		}},
	}
	if err := WriteManifest(dir, m); err != nil {
		t.Fatalf("WriteManifest: %v", err)
	}

	got, err := ReadManifest(dir)
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if len(got) != len(m) {
		t.Fatalf("ReadManifest returned %d entries, want %d", len(got), len(m))
	}
	for key, want := range m {
		cfg, ok := got[key]
		if !ok {
			t.Fatalf("missing manifest entry %q", key)
		}
		if !reflect.DeepEqual(cfg, want) {
			t.Fatalf("entry %q mismatch: got %+v, want %+v", key, cfg, want)
		}
	}
}

func TestReadManifestIgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	if err := WriteManifest(dir, Manifest{"video": sampleConfig()}); err != nil {
		t.Fatalf("WriteManifest: %v", err)
	}
	if err := Write(filepath.Join(dir, "README.txt"), sampleConfig()); err != nil {
		t.Fatalf("Write stray file: %v", err)
	}

	got, err := ReadManifest(dir)
	if err != nil {
		t.Fatalf("ReadManifest: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("ReadManifest returned %d entries, want 1", len(got))
	}
}
