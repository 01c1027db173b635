package resumeledger

import (
	"path/filepath"
	"testing"
)

func openTest(t *testing.T) *Ledger {
	t.Helper()
	path := filepath.Join(t.TempDir(), "resume.db")
	l, err := Open(path)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { l.Close() })
	return l
}

func TestMarkCompleteIsQueryable(t *testing.T) {
	l := openTest(t)

	if l.IsComplete("video.mp4", 3) {
		t.Fatalf("chunk 3 reported complete before MarkComplete")
	}
	if err := l.MarkComplete("video.mp4", 3); err != nil {
		t.Fatalf("MarkComplete: %v", err)
	}
	if !l.IsComplete("video.mp4", 3) {
		t.Fatalf("chunk 3 not reported complete after MarkComplete")
	}
	if l.IsComplete("video.mp4", 4) {
		t.Fatalf("chunk 4 reported complete unexpectedly")
	}
}

func TestCompletedChunksIsolatesFileKeys(t *testing.T) {
	l := openTest(t)

	for _, id := range []uint32{0, 1, 2} {
		if err := l.MarkComplete("video.mp4", id); err != nil {
			t.Fatalf("MarkComplete video %d: %v", id, err)
		}
	}
	if err := l.MarkComplete("audio.mp3", 0); err != nil {
		t.Fatalf("MarkComplete audio 0: %v", err)
	}

	video, err := l.CompletedChunks("video.mp4")
	if err != nil {
		t.Fatalf("CompletedChunks video: %v", err)
	}
	if len(video) != 3 {
		t.Fatalf("video.mp4 completed = %d, want 3", len(video))
	}

	audio, err := l.CompletedChunks("audio.mp3")
	if err != nil {
		t.Fatalf("CompletedChunks audio: %v", err)
	}
	if len(audio) != 1 {
		t.Fatalf("audio.mp3 completed = %d, want 1", len(audio))
	}
}

func TestForgetClearsOnlyThatFileKey(t *testing.T) {
	l := openTest(t)

	if err := l.MarkComplete("video.mp4", 0); err != nil {
		t.Fatalf("MarkComplete video: %v", err)
	}
	if err := l.MarkComplete("audio.mp3", 0); err != nil {
		t.Fatalf("MarkComplete audio: %v", err)
	}

	if err := l.Forget("video.mp4"); err != nil {
		t.Fatalf("Forget: %v", err)
	}
	if l.IsComplete("video.mp4", 0) {
		t.Fatalf("video.mp4 chunk 0 still marked complete after Forget")
	}
	if !l.IsComplete("audio.mp3", 0) {
		t.Fatalf("audio.mp3 chunk 0 lost after unrelated Forget")
	}
}
