package stt

import (
	"context"
	"os"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
)

const maxHintPhrases = 100

type GoogleSpeech struct {
	c *speech.Client

	Encoding     speechpb.RecognitionConfig_AudioEncoding
	SampleRateHz int32
	Language     string
}

func NewGoogleSpeech(ctx context.Context, language string) (*GoogleSpeech, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	if language == "" {
		language = "en-US"
	}
	return &GoogleSpeech{
		c:            c,
		Encoding:     speechpb.RecognitionConfig_LINEAR16,
		SampleRateHz: 16000,
		Language:     language,
	}, nil
}

func (g *GoogleSpeech) Close() error { return g.c.Close() }

func (g *GoogleSpeech) Transcribe(ctx context.Context, audioPath string, contextHint string) (Result, error) {
	audio, err := os.ReadFile(audioPath)
	if err != nil {
		return Result{}, err
	}

	cfg := &speechpb.RecognitionConfig{
		Encoding:                   g.Encoding,
		SampleRateHertz:            g.SampleRateHz,
		LanguageCode:               g.Language,
		EnableAutomaticPunctuation: true,
	}
	if phrases := hintPhrases(contextHint); len(phrases) > 0 {
		cfg.SpeechContexts = []*speechpb.SpeechContext{{Phrases: phrases}}
	}

	resp, err := g.c.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: cfg,
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: audio},
		},
	})
	if err != nil {
		return Result{}, err
	}

	res := Result{Language: g.Language}
	var bestConf float64
	for _, r := range resp.Results {
		if len(r.Alternatives) == 0 {
			continue
		}
		alt := r.Alternatives[0]
		if alt.Transcript == "" {
			continue
		}
		res.Segments = append(res.Segments, Segment{Text: alt.Transcript})
		if float64(alt.Confidence) > bestConf {
			bestConf = float64(alt.Confidence)
		}
	}
	res.LanguageProbability = bestConf
	return res, nil
}

// hintPhrases turns the tail of the session text into adaptation phrases.
// The API caps phrase count and length, so only the most recent words go in.
func hintPhrases(hint string) []string {
	words := strings.Fields(hint)
	if len(words) > maxHintPhrases {
		words = words[len(words)-maxHintPhrases:]
	}
	var phrases []string
	for _, w := range words {
		if len(w) <= 100 {
			phrases = append(phrases, w)
		}
	}
	return phrases
}
