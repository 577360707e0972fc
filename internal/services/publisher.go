package services

import (
	"context"
	"errors"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/clipscribe/clipscribe/internal/models"
	"github.com/clipscribe/clipscribe/internal/queue"
	"github.com/clipscribe/clipscribe/internal/store"
	"github.com/clipscribe/clipscribe/internal/utils"
)

// UploadRequest carries the client-supplied and request-derived fields of one
// audio upload. Username and Subject default when empty.
type UploadRequest struct {
	Username    string
	Subject     string
	GPSLat      string
	GPSLon      string
	ClientIP    string
	DeviceInfo  string
	ContentType string
}

// Publisher accepts a completed audio blob plus metadata and makes the pair
// visible to the pipeline atomically, then claims and enqueues it so the
// worker picks it up without waiting for the next directory scan.
type Publisher interface {
	Publish(ctx context.Context, audio io.Reader, req UploadRequest) (models.PendingClip, error)
}

type publisher struct {
	store *store.Store
	locks *store.LockManager
	queue *queue.Queue
	log   *logrus.Logger
	now   func() time.Time
}

func NewPublisher(st *store.Store, locks *store.LockManager, q *queue.Queue, log *logrus.Logger) Publisher {
	return &publisher{store: st, locks: locks, queue: q, log: log, now: time.Now}
}

func (p *publisher) Publish(ctx context.Context, audio io.Reader, req UploadRequest) (models.PendingClip, error) {
	const op = "Publisher.Publish"

	if audio == nil {
		return models.PendingClip{}, utils.E(utils.CodeInvalidUpload, op, "no audio file provided", nil)
	}
	if req.Username == "" {
		req.Username = "anonymous"
	}
	if req.Subject == "" {
		req.Subject = "general"
	}

	ts := p.now().UTC().Format("2006-01-02T15:04:05.000000")
	meta := models.ClipMetadata{
		Timestamp:   ts,
		ClientIP:    req.ClientIP,
		Username:    req.Username,
		Subject:     req.Subject,
		GPSLat:      req.GPSLat,
		GPSLon:      req.GPSLon,
		DeviceInfo:  req.DeviceInfo,
		ContentType: req.ContentType,
	}

	id := clipID(ts, req.Username, req.Subject)
	clip, err := p.store.PublishClip(id, audio, meta)
	if err != nil {
		if errors.Is(err, store.ErrEmptyAudio) {
			return models.PendingClip{}, utils.E(utils.CodeInvalidUpload, op, "empty audio payload", err)
		}
		return models.PendingClip{}, utils.E(utils.CodeStorage, op, "persist upload", err)
	}

	// Claim-then-push keeps the scan loop from enqueueing the same clip twice.
	// A failed claim is not fatal: the files are durable and the next scan
	// will pick the clip up.
	acquired, err := p.locks.Claim(clip.ID)
	if err != nil {
		p.log.WithError(err).WithField("clip_id", clip.ID).Warn("claim after publish failed, deferring to scan")
		return clip, nil
	}
	if acquired {
		p.queue.Push(clip.ID)
	}

	p.log.WithFields(logrus.Fields{
		"clip_id":   clip.ID,
		"username":  req.Username,
		"subject":   req.Subject,
		"file_size": clip.Metadata.FileSize,
	}).Info("clip published")

	return clip, nil
}

// clipID derives the storage base name from the upload timestamp, username
// and subject, with characters unsafe in file names replaced.
func clipID(ts, username, subject string) string {
	base := strings.ReplaceAll(ts, ":", "-") + "_" + username + "_" + subject
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '\\', ' ':
			return '-'
		}
		return r
	}, base)
}
