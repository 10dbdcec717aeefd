// Package config reads the process-wide environment configuration.
package config

import (
	"os"
	"strconv"
	"time"
)

// Config is the immutable, process-wide configuration handed to the
// orchestrator at startup. It never changes after New returns.
type Config struct {
	MaxConcurrentSessions int
	ConfidenceThreshold   float64
	MaxFrameWidth         int
	MaxFrameHeight        int
	IdleTimeout           time.Duration
	MaxFrameSizeBytes     int64

	InferenceRemoteURL     string
	InferenceRemoteKey     string
	InferenceRemoteTimeout time.Duration

	InferenceLocalEnabled     bool
	InferenceLocalWeightsPath string

	BlurWarningThreshold float64

	AudioWindowSeconds float64
	AudioBatchSize     int
	AudioSampleRate    int

	EmotionClassificationEnabled bool
	OpenAIAPIKey                 string

	LogLevel string
}

// New loads Config from the process environment, applying spec defaults
// wherever a variable is unset or unparsable.
func New() Config {
	return Config{
		MaxConcurrentSessions: envInt("MAX_CONCURRENT_SESSIONS", 10),
		ConfidenceThreshold:   envFloat("CONFIDENCE_THRESHOLD", 0.5),
		MaxFrameWidth:         envInt("MAX_FRAME_WIDTH", 1280),
		MaxFrameHeight:        envInt("MAX_FRAME_HEIGHT", 720),
		IdleTimeout:           time.Duration(envInt("IDLE_TIMEOUT_SEC", 30)) * time.Second,
		MaxFrameSizeBytes:     int64(envInt("MAX_FRAME_SIZE_BYTES", 10*1024*1024)),

		InferenceRemoteURL:     os.Getenv("INFERENCE_REMOTE_URL"),
		InferenceRemoteKey:     os.Getenv("INFERENCE_REMOTE_KEY"),
		InferenceRemoteTimeout: time.Duration(envInt("INFERENCE_REMOTE_TIMEOUT_SEC", 10)) * time.Second,

		InferenceLocalEnabled:     envBool("INFERENCE_LOCAL_ENABLED", false),
		InferenceLocalWeightsPath: os.Getenv("INFERENCE_LOCAL_WEIGHTS_PATH"),

		BlurWarningThreshold: envFloat("BLUR_WARNING_THRESHOLD", 100.0),

		AudioWindowSeconds: envFloat("AUDIO_WINDOW_SECONDS", 1.0),
		AudioBatchSize:     envInt("AUDIO_BATCH_SIZE", 10),
		AudioSampleRate:    envInt("AUDIO_SAMPLE_RATE", 48000),

		EmotionClassificationEnabled: os.Getenv("OPENAI_API_KEY") != "",
		OpenAIAPIKey:                 os.Getenv("OPENAI_API_KEY"),

		LogLevel: os.Getenv("LOG_LEVEL"),
	}
}

func envInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func envFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func envBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
