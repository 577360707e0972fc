package workers

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/clipscribe/clipscribe/internal/models"
	"github.com/clipscribe/clipscribe/internal/queue"
	"github.com/clipscribe/clipscribe/internal/store"
	"github.com/clipscribe/clipscribe/internal/stt"
)

// fakeProvider maps audio file base names to canned transcripts.
type fakeProvider struct {
	texts    map[string]string
	err      error
	lastHint string
}

func (f *fakeProvider) Transcribe(_ context.Context, audioPath, hint string) (stt.Result, error) {
	f.lastHint = hint
	if f.err != nil {
		return stt.Result{}, f.err
	}
	text := f.texts[filepath.Base(audioPath)]
	if text == "" {
		return stt.Result{}, nil
	}
	return stt.Result{Segments: []stt.Segment{{Text: text}}, Language: "en"}, nil
}

func (f *fakeProvider) Close() error { return nil }

type fixture struct {
	worker *PipelineWorker
	store  *store.Store
	locks  *store.LockManager
	queue  *queue.Queue
	clock  *time.Time
}

func newFixture(t *testing.T, fp *fakeProvider) *fixture {
	t.Helper()
	dir := t.TempDir()
	st, err := store.New(filepath.Join(dir, "uploads"), filepath.Join(dir, "transcripts"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	locks := store.NewLockManager(st.LockDir())
	q := queue.New()

	log := logrus.New()
	log.SetOutput(io.Discard)

	w := NewPipelineWorker(st, locks, q, fp, log, Options{})
	clock := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	w.now = func() time.Time { return clock }

	return &fixture{worker: w, store: st, locks: locks, queue: q, clock: &clock}
}

func (f *fixture) publish(t *testing.T, id string) {
	t.Helper()
	meta := models.ClipMetadata{Timestamp: "2026-03-01T12:00:00.000000", Username: "kim", Subject: "general"}
	if _, err := f.store.PublishClip(id, strings.NewReader("audio"), meta); err != nil {
		t.Fatalf("publish %s: %v", id, err)
	}
}

// drain runs one reconcile cycle and processes everything it enqueued.
func (f *fixture) drain(t *testing.T) {
	t.Helper()
	ctx := context.Background()
	f.worker.reconcile()
	for {
		id, ok := f.queue.Pop(ctx, 10*time.Millisecond)
		if !ok {
			return
		}
		f.worker.process(ctx, id)
	}
}

func (f *fixture) transcripts(t *testing.T) []models.TranscriptInfo {
	t.Helper()
	infos, err := f.store.ListTranscripts()
	if err != nil {
		t.Fatalf("list transcripts: %v", err)
	}
	return infos
}

// TestClipsWithinGapShareOneTranscript verifies two clips close in time merge
// into a single document separated by one newline.
func TestClipsWithinGapShareOneTranscript(t *testing.T) {
	fp := &fakeProvider{texts: map[string]string{"a.wav": "hello there", "b.wav": "second part"}}
	f := newFixture(t, fp)

	f.publish(t, "a")
	f.drain(t)

	*f.clock = f.clock.Add(10 * time.Second)
	f.publish(t, "b")
	f.drain(t)

	infos := f.transcripts(t)
	if len(infos) != 1 {
		t.Fatalf("transcript count = %d, want 1", len(infos))
	}
	raw, err := os.ReadFile(infos[0].Path)
	if err != nil {
		t.Fatalf("read transcript: %v", err)
	}
	if !strings.Contains(string(raw), "Transcript:\nhello there\nsecond part") {
		t.Fatalf("merged content wrong:\n%s", raw)
	}
	if got := f.worker.Status().FilesProcessed; got != 2 {
		t.Fatalf("files processed = %d, want 2", got)
	}
}

// TestGapExceededStartsNewDocument verifies a 90s silence splits sessions.
func TestGapExceededStartsNewDocument(t *testing.T) {
	fp := &fakeProvider{texts: map[string]string{"a.wav": "first session", "b.wav": "second session"}}
	f := newFixture(t, fp)

	f.publish(t, "a")
	f.drain(t)

	*f.clock = f.clock.Add(90 * time.Second)
	f.publish(t, "b")
	f.drain(t)

	infos := f.transcripts(t)
	if len(infos) != 2 {
		t.Fatalf("transcript count = %d, want 2", len(infos))
	}
	for _, info := range infos {
		raw, err := os.ReadFile(info.Path)
		if err != nil {
			t.Fatalf("read %s: %v", info.Path, err)
		}
		if !strings.HasPrefix(string(raw), "Recording from ") {
			t.Fatalf("transcript %s lacks header:\n%s", info.Path, raw)
		}
	}
}

// TestEmptyTranscriptDiscardsClip verifies silence consumes the clip without
// touching counters or creating output.
func TestEmptyTranscriptDiscardsClip(t *testing.T) {
	fp := &fakeProvider{texts: map[string]string{}}
	f := newFixture(t, fp)

	f.publish(t, "a")
	f.drain(t)

	if f.store.HasAudio("a") || f.store.HasMetadata("a") {
		t.Fatal("discarded clip files still present")
	}
	if got := f.worker.Status().FilesProcessed; got != 0 {
		t.Fatalf("files processed = %d, want 0", got)
	}
	if infos := f.transcripts(t); len(infos) != 0 {
		t.Fatalf("transcripts created for empty result: %v", infos)
	}
}

// TestOrphanRemovedOnScan verifies audio without a sidecar is deleted during
// reconcile and never reaches the transcriber.
func TestOrphanRemovedOnScan(t *testing.T) {
	fp := &fakeProvider{texts: map[string]string{"x.wav": "should never appear"}}
	f := newFixture(t, fp)

	if err := os.WriteFile(f.store.AudioPath("x"), []byte("audio"), 0o644); err != nil {
		t.Fatalf("write orphan: %v", err)
	}

	f.drain(t)

	if f.store.HasAudio("x") {
		t.Fatal("orphan audio survived the scan")
	}
	if infos := f.transcripts(t); len(infos) != 0 {
		t.Fatalf("orphan produced transcripts: %v", infos)
	}
}

// TestTranscriptionErrorLeavesFilesForRetry verifies an engine failure keeps
// the clip on disk, releases the lock, and leaves counters untouched.
func TestTranscriptionErrorLeavesFilesForRetry(t *testing.T) {
	fp := &fakeProvider{err: errors.New("engine exploded")}
	f := newFixture(t, fp)

	f.publish(t, "a")
	f.drain(t)

	if !f.store.HasAudio("a") || !f.store.HasMetadata("a") {
		t.Fatal("failed clip files were deleted")
	}
	if f.locks.IsClaimed("a") {
		t.Fatal("lock not released after failure")
	}
	if got := f.worker.Status().FilesProcessed; got != 0 {
		t.Fatalf("files processed = %d, want 0", got)
	}
}

// TestContextHintCarriesSessionText verifies the open session's text is
// passed to the transcriber for the following clip.
func TestContextHintCarriesSessionText(t *testing.T) {
	fp := &fakeProvider{texts: map[string]string{"a.wav": "alpha words", "b.wav": "beta words"}}
	f := newFixture(t, fp)

	f.publish(t, "a")
	f.drain(t)

	*f.clock = f.clock.Add(5 * time.Second)
	f.publish(t, "b")
	f.drain(t)

	if !strings.Contains(fp.lastHint, "alpha words") {
		t.Fatalf("hint %q does not carry session text", fp.lastHint)
	}
}

// TestPendingCountPublished verifies reconcile reports the scan result.
func TestPendingCountPublished(t *testing.T) {
	fp := &fakeProvider{err: errors.New("hold processing")}
	f := newFixture(t, fp)

	f.publish(t, "a")
	f.publish(t, "b")
	f.worker.reconcile()

	if got := f.worker.Status().FilesPending; got != 2 {
		t.Fatalf("files pending = %d, want 2", got)
	}
}
