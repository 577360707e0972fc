package stt

import (
	"context"
	"time"

	"github.com/sashabaranov/go-openai"
)

// OpenAI transcribes through the OpenAI audio API. Setting a base URL points
// it at any OpenAI-compatible server instead, e.g. a local faster-whisper
// deployment exposing the same endpoint.
type OpenAI struct {
	client   *openai.Client
	model    string
	language string
}

func NewOpenAI(apiKey, baseURL, model, language string) *OpenAI {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return &OpenAI{
		client:   openai.NewClientWithConfig(cfg),
		model:    model,
		language: language,
	}
}

func (o *OpenAI) Close() error { return nil }

func (o *OpenAI) Transcribe(ctx context.Context, audioPath string, contextHint string) (Result, error) {
	resp, err := o.client.CreateTranscription(ctx, openai.AudioRequest{
		Model:    o.model,
		FilePath: audioPath,
		Language: o.language,
		Prompt:   contextHint,
		Format:   openai.AudioResponseFormatVerboseJSON,
	})
	if err != nil {
		return Result{}, err
	}

	res := Result{
		Language: resp.Language,
		Duration: time.Duration(resp.Duration * float64(time.Second)),
	}
	for _, seg := range resp.Segments {
		res.Segments = append(res.Segments, Segment{Text: seg.Text})
	}
	// Servers that skip segment timestamps still return the flat text.
	if len(res.Segments) == 0 && resp.Text != "" {
		res.Segments = []Segment{{Text: resp.Text}}
	}
	return res, nil
}
