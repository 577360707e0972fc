package stt

import (
	"context"
	"strings"
	"time"
)

// Segment is one transcribed span of audio.
type Segment struct {
	Text string
}

// Result is the outcome of transcribing a single clip.
type Result struct {
	Segments            []Segment
	Language            string
	LanguageProbability float64
	Duration            time.Duration
}

// Text joins the segment texts with newlines into one transcript string.
func (r Result) Text() string {
	parts := make([]string, 0, len(r.Segments))
	for _, s := range r.Segments {
		parts = append(parts, s.Text)
	}
	return strings.Join(parts, "\n")
}

// Provider converts an audio file into text. contextHint carries the text of
// the open transcript session so the engine can bias recognition toward
// session-consistent vocabulary; providers may ignore it.
type Provider interface {
	Transcribe(ctx context.Context, audioPath string, contextHint string) (Result, error)
	Close() error
}
