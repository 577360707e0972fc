package workers

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/clipscribe/clipscribe/internal/models"
	"github.com/clipscribe/clipscribe/internal/queue"
	"github.com/clipscribe/clipscribe/internal/store"
	"github.com/clipscribe/clipscribe/internal/stt"
)

// Options tunes the pipeline worker.
type Options struct {
	SessionGap   time.Duration // max silence between clips of one session
	PopWait      time.Duration // bounded queue wait before falling back to a scan
	StaleLockAge time.Duration // locks older than this are reclaimed
	HintLimit    int           // max runes of session text passed as context hint
}

func (o *Options) applyDefaults() {
	if o.SessionGap <= 0 {
		o.SessionGap = 60 * time.Second
	}
	if o.PopWait <= 0 {
		o.PopWait = 5 * time.Second
	}
	if o.StaleLockAge <= 0 {
		o.StaleLockAge = 5 * time.Minute
	}
	if o.HintLimit <= 0 {
		o.HintLimit = 2000
	}
}

// session is the single open transcript accumulation. It is open iff text is
// non-empty; closure happens implicitly when the next clip arrives past the
// gap and a new session is opened in its place.
type session struct {
	text       string
	lastUpdate time.Time
	baseMeta   models.ClipMetadata
	outputPath string
}

func (s *session) open() bool { return s.text != "" }

// PipelineWorker drains the ingestion queue one clip at a time: it invokes
// the transcriber, merges the result into the open session or starts a new
// one, persists the transcript, and deletes the source files. All session and
// status state is owned here; other goroutines observe it only through
// Status().
type PipelineWorker struct {
	store *store.Store
	locks *store.LockManager
	queue *queue.Queue
	stt   stt.Provider
	log   *logrus.Logger
	opts  Options
	now   func() time.Time

	mu      sync.Mutex
	status  models.PipelineStatus
	session session
}

func NewPipelineWorker(st *store.Store, locks *store.LockManager, q *queue.Queue, provider stt.Provider, log *logrus.Logger, opts Options) *PipelineWorker {
	opts.applyDefaults()
	return &PipelineWorker{
		store: st,
		locks: locks,
		queue: q,
		stt:   provider,
		log:   log,
		opts:  opts,
		now:   time.Now,
	}
}

// Run cycles until ctx is cancelled: reconcile disk state with the queue,
// wait a bounded time for a clip, process it to completion. Per-clip failures
// are logged and isolated; one bad file never halts the loop.
func (w *PipelineWorker) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		w.reconcile()

		id, ok := w.queue.Pop(ctx, w.opts.PopWait)
		if !ok {
			continue
		}
		w.process(ctx, id)
	}
}

// Status returns a snapshot of pipeline progress.
func (w *PipelineWorker) Status() models.PipelineStatus {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.status
}

// reconcile sweeps stale locks, removes orphaned audio, and claims+enqueues
// every published clip the queue does not know about (freshly scanned after a
// restart, reclaimed after a sweep, or abandoned after an error).
func (w *PipelineWorker) reconcile() {
	if freed, err := w.locks.SweepStale(w.opts.StaleLockAge); err != nil {
		w.log.WithError(err).Warn("stale lock sweep failed")
	} else if len(freed) > 0 {
		w.log.WithField("clip_ids", freed).Warn("reclaimed stale locks")
	}

	ids, err := w.store.ScanPending()
	if err != nil {
		w.log.WithError(err).Error("upload scan failed")
		return
	}

	pending := 0
	for _, id := range ids {
		if !w.store.HasMetadata(id) {
			// Orphan: metadata sidecar never made it. Discard without transcribing.
			if err := w.store.RemoveAudio(id); err != nil {
				w.log.WithError(err).WithField("clip_id", id).Warn("orphan cleanup failed")
			} else {
				w.log.WithField("clip_id", id).Info("removed orphaned audio file")
			}
			_ = w.locks.Release(id)
			continue
		}
		pending++

		acquired, err := w.locks.Claim(id)
		if err != nil {
			w.log.WithError(err).WithField("clip_id", id).Warn("scan claim failed")
			continue
		}
		if acquired {
			w.queue.Push(id)
		}
	}

	w.mu.Lock()
	w.status.FilesPending = pending
	w.mu.Unlock()
}

// process handles one claimed clip to completion. The lock is released on
// every exit path; files are only deleted after a successful merge or when
// the clip is discarded on purpose.
func (w *PipelineWorker) process(ctx context.Context, id string) {
	log := w.log.WithField("clip_id", id)
	defer func() {
		if err := w.locks.Release(id); err != nil {
			log.WithError(err).Warn("lock release failed")
		}
	}()

	if !w.store.HasAudio(id) {
		// Already cleaned up elsewhere; nothing to do.
		return
	}
	if !w.store.HasMetadata(id) {
		if err := w.store.RemoveAudio(id); err != nil {
			log.WithError(err).Warn("orphan cleanup failed")
		}
		return
	}

	meta, err := w.store.ReadMetadata(id)
	if err != nil {
		log.WithError(err).Error("metadata load failed, leaving clip for rescan")
		return
	}

	w.mu.Lock()
	w.status.CurrentFile = filepath.Base(w.store.AudioPath(id))
	hint := tail(w.session.text, w.opts.HintLimit)
	w.mu.Unlock()

	res, err := w.stt.Transcribe(ctx, w.store.AudioPath(id), hint)
	if err != nil {
		log.WithError(err).Error("transcription failed, leaving clip for rescan")
		w.clearCurrent()
		return
	}
	transcript := res.Text()

	if strings.TrimSpace(transcript) == "" {
		// Normal outcome for silence; the clip is consumed without output.
		log.Info("empty transcript, discarding clip")
		if err := w.store.DeleteClip(id); err != nil {
			log.WithError(err).Warn("discard failed")
		}
		w.clearCurrent()
		return
	}

	log.WithFields(logrus.Fields{
		"language":    res.Language,
		"duration_ms": res.Duration.Milliseconds(),
	}).Info("clip transcribed")

	if err := w.merge(id, meta, transcript); err != nil {
		log.WithError(err).Error("transcript write failed, leaving clip for rescan")
		w.clearCurrent()
		return
	}

	if err := w.store.DeleteClip(id); err != nil {
		log.WithError(err).Warn("source cleanup failed")
	}

	w.mu.Lock()
	w.status.CurrentFile = ""
	w.status.FilesProcessed++
	w.status.LastTranscript = w.session.outputPath
	w.mu.Unlock()
}

// merge appends the transcript to the open session or starts a new one when
// the session is empty or the gap since its last update exceeds SessionGap.
// The file is written before the in-memory session commits, so a failed
// write leaves the session untouched and the clip eligible for retry.
func (w *PipelineWorker) merge(id string, meta models.ClipMetadata, transcript string) error {
	now := w.now()

	w.mu.Lock()
	defer w.mu.Unlock()

	next := w.session
	if !next.open() || now.Sub(next.lastUpdate) > w.opts.SessionGap {
		next = session{
			baseMeta:   meta,
			outputPath: w.store.TranscriptPath(id),
			text:       header(meta) + transcript,
		}
	} else {
		next.text += "\n" + transcript
	}
	next.lastUpdate = now

	if err := w.store.WriteTranscript(next.outputPath, next.text); err != nil {
		return err
	}
	w.session = next
	return nil
}

func (w *PipelineWorker) clearCurrent() {
	w.mu.Lock()
	w.status.CurrentFile = ""
	w.mu.Unlock()
}

// header formats the block opening every transcript document.
func header(meta models.ClipMetadata) string {
	lat, lon := meta.GPSLat, meta.GPSLon
	if lat == "" {
		lat = "N/A"
	}
	if lon == "" {
		lon = "N/A"
	}
	return fmt.Sprintf("Recording from %s\nUsername: %s\nSubject: %s\nLocation: %s, %s\n\nTranscript:\n",
		meta.Timestamp, meta.Username, meta.Subject, lat, lon)
}

// tail returns at most limit runes from the end of s.
func tail(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[len(runes)-limit:])
}
