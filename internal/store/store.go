package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/clipscribe/clipscribe/internal/models"
)

const (
	audioExt      = ".wav"
	metadataExt   = ".json"
	transcriptExt = ".txt"
	tempSuffix    = ".temp"
	lockDirName   = ".locks"
)

// ErrEmptyAudio is returned by PublishClip when the audio payload has zero bytes.
var ErrEmptyAudio = errors.New("empty audio payload")

// ErrNoTranscripts is returned by LatestTranscript when the transcript dir is empty.
var ErrNoTranscripts = errors.New("no transcripts available")

// Store owns the on-disk layout: uploads/<id>.wav, uploads/<id>.json,
// uploads/.locks/<id>.wav.lock and transcripts/<id>.txt. Files carrying the
// .temp suffix are in-progress writes and invisible to every reader.
type Store struct {
	uploadDir     string
	transcriptDir string
}

func New(uploadDir, transcriptDir string) (*Store, error) {
	s := &Store{uploadDir: uploadDir, transcriptDir: transcriptDir}
	for _, dir := range []string{uploadDir, transcriptDir, s.LockDir()} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return s, nil
}

func (s *Store) LockDir() string { return filepath.Join(s.uploadDir, lockDirName) }

func (s *Store) AudioPath(id string) string {
	return filepath.Join(s.uploadDir, id+audioExt)
}

func (s *Store) MetadataPath(id string) string {
	return filepath.Join(s.uploadDir, id+metadataExt)
}

func (s *Store) TranscriptPath(id string) string {
	return filepath.Join(s.transcriptDir, id+transcriptExt)
}

// PublishClip persists the audio stream and its metadata sidecar atomically.
// Both files are written under .temp names first; the metadata sidecar is
// renamed into place before the audio file, so any reader that sees the .wav
// can rely on the .json existing. A failure leaves no final-named partials.
func (s *Store) PublishClip(id string, audio io.Reader, meta models.ClipMetadata) (models.PendingClip, error) {
	audioPath := s.AudioPath(id)
	metaPath := s.MetadataPath(id)
	audioTemp := audioPath + tempSuffix
	metaTemp := metaPath + tempSuffix

	size, err := writeStream(audioTemp, audio)
	if err != nil {
		_ = os.Remove(audioTemp)
		return models.PendingClip{}, fmt.Errorf("write audio: %w", err)
	}
	if size == 0 {
		_ = os.Remove(audioTemp)
		return models.PendingClip{}, ErrEmptyAudio
	}
	meta.FileSize = size

	raw, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		_ = os.Remove(audioTemp)
		return models.PendingClip{}, fmt.Errorf("encode metadata: %w", err)
	}
	if err := os.WriteFile(metaTemp, raw, 0o644); err != nil {
		_ = os.Remove(audioTemp)
		_ = os.Remove(metaTemp)
		return models.PendingClip{}, fmt.Errorf("write metadata: %w", err)
	}

	// Metadata first: a scan must never observe audio without its sidecar.
	if err := os.Rename(metaTemp, metaPath); err != nil {
		_ = os.Remove(audioTemp)
		_ = os.Remove(metaTemp)
		return models.PendingClip{}, fmt.Errorf("publish metadata: %w", err)
	}
	if err := os.Rename(audioTemp, audioPath); err != nil {
		_ = os.Remove(audioTemp)
		_ = os.Remove(metaPath)
		return models.PendingClip{}, fmt.Errorf("publish audio: %w", err)
	}

	return models.PendingClip{
		ID:           id,
		AudioPath:    audioPath,
		MetadataPath: metaPath,
		Metadata:     meta,
	}, nil
}

func writeStream(path string, r io.Reader) (int64, error) {
	f, err := os.Create(path)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return n, err
}

func (s *Store) ReadMetadata(id string) (models.ClipMetadata, error) {
	raw, err := os.ReadFile(s.MetadataPath(id))
	if err != nil {
		return models.ClipMetadata{}, err
	}
	var meta models.ClipMetadata
	if err := json.Unmarshal(raw, &meta); err != nil {
		return models.ClipMetadata{}, fmt.Errorf("decode metadata %s: %w", id, err)
	}
	return meta, nil
}

func (s *Store) HasAudio(id string) bool    { return exists(s.AudioPath(id)) }
func (s *Store) HasMetadata(id string) bool { return exists(s.MetadataPath(id)) }

func exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// DeleteClip removes both files of a pending clip; absent files are fine.
func (s *Store) DeleteClip(id string) error {
	var errs []error
	for _, p := range []string{s.AudioPath(id), s.MetadataPath(id)} {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// RemoveAudio deletes just the audio file, used for orphan cleanup.
func (s *Store) RemoveAudio(id string) error {
	if err := os.Remove(s.AudioPath(id)); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// ScanPending lists the ids of all fully published clips, oldest first.
// The id encodes the upload timestamp, so lexical order is arrival order.
func (s *Store) ScanPending() ([]string, error) {
	entries, err := os.ReadDir(s.uploadDir)
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasSuffix(name, tempSuffix) || !strings.HasSuffix(name, audioExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, audioExt))
	}
	sort.Strings(ids)
	return ids, nil
}

// WriteTranscript rewrites the transcript file wholesale via a temp rename,
// so readers never see a half-written document.
func (s *Store) WriteTranscript(path, text string) error {
	temp := path + tempSuffix
	if err := os.WriteFile(temp, []byte(text), 0o644); err != nil {
		_ = os.Remove(temp)
		return err
	}
	if err := os.Rename(temp, path); err != nil {
		_ = os.Remove(temp)
		return err
	}
	return nil
}

// ListTranscripts returns every finished transcript file, oldest first.
func (s *Store) ListTranscripts() ([]models.TranscriptInfo, error) {
	entries, err := os.ReadDir(s.transcriptDir)
	if err != nil {
		return nil, err
	}
	var infos []models.TranscriptInfo
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasSuffix(name, tempSuffix) || !strings.HasSuffix(name, transcriptExt) {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		infos = append(infos, models.TranscriptInfo{
			Path:       filepath.Join(s.transcriptDir, name),
			ModifiedAt: fi.ModTime(),
		})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].ModifiedAt.Before(infos[j].ModifiedAt) })
	return infos, nil
}

// LatestTranscript returns the most recently modified transcript and its content.
func (s *Store) LatestTranscript() (models.TranscriptInfo, string, error) {
	infos, err := s.ListTranscripts()
	if err != nil {
		return models.TranscriptInfo{}, "", err
	}
	if len(infos) == 0 {
		return models.TranscriptInfo{}, "", ErrNoTranscripts
	}
	latest := infos[len(infos)-1]
	raw, err := os.ReadFile(latest.Path)
	if err != nil {
		return models.TranscriptInfo{}, "", err
	}
	return latest, string(raw), nil
}
