// Command server runs the wound-detection media gateway: it accepts
// WebRTC offers, analyzes inbound video/audio, and streams JSON events
// back over a data channel. Grounded on this pack's former main.go entry
// point (env-driven config, one http.ListenAndServe), rebuilt around
// zerolog instead of the stdlib logger.
package main

import (
	"net/http"
	"time"

	"github.com/n0remac/wound-gateway/internal/acoustic"
	"github.com/n0remac/wound-gateway/internal/config"
	"github.com/n0remac/wound-gateway/internal/inference"
	"github.com/n0remac/wound-gateway/internal/orchestrator"
	"github.com/n0remac/wound-gateway/internal/registry"
	"github.com/n0remac/wound-gateway/internal/telemetry"
	"github.com/n0remac/wound-gateway/internal/transport"
	"github.com/n0remac/wound-gateway/internal/workerpool"
)

const addr = ":8080"

func main() {
	cfg := config.New()
	log := telemetry.New(cfg.LogLevel)

	pool := workerpool.New(0) // defaults to runtime.NumCPU()

	router := inference.NewRouter(inference.Config{
		RemoteURL:     cfg.InferenceRemoteURL,
		RemoteKey:     cfg.InferenceRemoteKey,
		RemoteTimeout: cfg.InferenceRemoteTimeout,
		LocalEnabled:  cfg.InferenceLocalEnabled,
		LocalWeights:  cfg.InferenceLocalWeightsPath,
		ConfidenceMin: cfg.ConfidenceThreshold,
	}, pool, log)

	emotion := acoustic.NewEmotionClassifier(cfg.OpenAIAPIKey)

	orch := orchestrator.New(orchestrator.Config{
		ConfidenceThreshold:          cfg.ConfidenceThreshold,
		MaxFrameWidth:                cfg.MaxFrameWidth,
		MaxFrameHeight:               cfg.MaxFrameHeight,
		MaxFrameSizeBytes:            cfg.MaxFrameSizeBytes,
		BlurWarningThreshold:         cfg.BlurWarningThreshold,
		IdleTimeout:                  cfg.IdleTimeout,
		AudioSampleRate:              cfg.AudioSampleRate,
		AudioBatchSize:               cfg.AudioBatchSize,
		AudioWindowSeconds:           cfg.AudioWindowSeconds,
		EmotionClassificationEnabled: cfg.EmotionClassificationEnabled,
		FrameBufferCapacity:          1,
		AudioBufferCapacity:          1024,
	}, router, pool, emotion, log)

	reg := registry.New(cfg.MaxConcurrentSessions)
	srv := transport.New(reg, orch, log)

	httpServer := &http.Server{
		Addr:         addr,
		Handler:      srv.Mux(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	log.Info().Str("addr", addr).Msg("wound-gateway listening")
	if err := httpServer.ListenAndServe(); err != nil {
		log.Fatal().Err(err).Msg("server exited")
	}
}
