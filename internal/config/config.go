package config

import (
	"os"
	"strconv"
	"time"
)

// Config carries every tunable the pipeline reads from the environment.
type Config struct {
	Port          string
	UploadDir     string
	TranscriptDir string

	SessionGap   time.Duration
	QueuePopWait time.Duration
	StaleLockAge time.Duration

	MaxUploadBytes int64

	STTProvider   string // "openai" or "google"
	OpenAIAPIKey  string
	OpenAIBaseURL string // optional; points at an OpenAI-compatible whisper server
	STTModel      string
	STTLanguage   string
}

func Load() Config {
	return Config{
		Port:          getenv("PORT", "8080"),
		UploadDir:     getenv("UPLOAD_DIR", "uploads"),
		TranscriptDir: getenv("TRANSCRIPT_DIR", "transcripts"),

		SessionGap:   secs("SESSION_GAP_SECONDS", 60),
		QueuePopWait: secs("QUEUE_POP_SECONDS", 5),
		StaleLockAge: secs("STALE_LOCK_SECONDS", 300),

		MaxUploadBytes: int64n("MAX_UPLOAD_BYTES", 32<<20),

		STTProvider:   getenv("STT_PROVIDER", "openai"),
		OpenAIAPIKey:  os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL: os.Getenv("OPENAI_BASE_URL"),
		STTModel:      getenv("STT_MODEL", "whisper-1"),
		STTLanguage:   os.Getenv("STT_LANGUAGE"),
	}
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func secs(key string, fallback int) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			return time.Duration(n) * time.Second
		}
	}
	return time.Duration(fallback) * time.Second
}

func int64n(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil && n > 0 {
			return n
		}
	}
	return fallback
}
