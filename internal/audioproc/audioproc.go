// Package audioproc implements the audio processing loop (spec.md §4.9,
// C9): accumulate raw audio frames into a window, batch B of them off to
// the shared worker pool for risk-scoring analysis, and emit one
// AudioEvent per analyzed window. Grounded on this pack's former
// audio-forwarding goroutine in webrtc/sfu.go (accumulate RTP packets,
// flush on a batch boundary), generalized from RTP relay to PCM decode
// plus acoustic feature extraction.
package audioproc

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/n0remac/wound-gateway/internal/acoustic"
	"github.com/n0remac/wound-gateway/internal/buffer"
	"github.com/n0remac/wound-gateway/internal/clock"
	"github.com/n0remac/wound-gateway/internal/model"
	"github.com/n0remac/wound-gateway/internal/session"
	"github.com/n0remac/wound-gateway/internal/workerpool"
)

// Emitter is the minimal surface audioproc needs from internal/emitter.
type Emitter interface {
	Emit(event any) bool
}

// Decoder turns one raw inbound audio payload into PCM16 mono samples.
// Declared as an interface so audioproc does not depend on a concrete
// codec; the transport layer supplies an Opus decoder bound to the
// negotiated track.
type Decoder interface {
	Decode(raw []byte) ([]int16, error)
}

// Config bundles audioproc's fixed parameters.
type Config struct {
	SampleRate                   int
	BatchSize                    int
	WindowSeconds                float64
	EmotionClassificationEnabled bool
}

// Processor drives one session's audio track through the pipeline.
type Processor struct {
	cfg     Config
	buf     *buffer.Buffer[model.FrameItem]
	decoder Decoder
	pool    *workerpool.Pool
	emotion *acoustic.EmotionClassifier
	sess    *session.Session
	emit    Emitter
	log     zerolog.Logger

	mu      sync.Mutex
	window  []int16
	frames  int
}

// New builds a Processor.
func New(cfg Config, buf *buffer.Buffer[model.FrameItem], decoder Decoder, pool *workerpool.Pool, emotion *acoustic.EmotionClassifier, sess *session.Session, emit Emitter, logger zerolog.Logger) *Processor {
	return &Processor{cfg: cfg, buf: buf, decoder: decoder, pool: pool, emotion: emotion, sess: sess, emit: emit, log: logger}
}

// Run pulls raw audio frames until ctx is cancelled, batching BatchSize
// of them per analyzed window. On cancellation, any partial window is
// flushed before returning (spec.md §4.9 "flush partial window on track
// end").
func (p *Processor) Run(ctx context.Context) {
	for {
		item, ok := p.buf.Get(ctx)
		if !ok {
			p.flush()
			return
		}
		p.accumulate(item)
	}
}

func (p *Processor) accumulate(item model.FrameItem) {
	samples, err := p.decoder.Decode(item.RawPayload)
	if err != nil {
		p.log.Warn().Err(err).Msg("audio decode failed, dropping frame")
		return
	}

	p.mu.Lock()
	p.window = append(p.window, samples...)
	p.frames++
	ready := p.frames >= p.cfg.BatchSize
	var batch []int16
	var frames int
	if ready {
		batch = p.window
		frames = p.frames
		p.window = nil
		p.frames = 0
	}
	p.mu.Unlock()

	if ready {
		p.analyzeAndEmit(batch, frames)
	}
}

func (p *Processor) flush() {
	p.mu.Lock()
	batch := p.window
	frames := p.frames
	p.window = nil
	p.frames = 0
	p.mu.Unlock()

	if frames > 0 {
		p.analyzeAndEmit(batch, frames)
	}
}

func (p *Processor) analyzeAndEmit(batch []int16, frames int) {
	done := make(chan struct{})
	defer func() { <-done }()
	p.pool.Submit(func() {
		defer close(done)
		features := acoustic.Analyze(acoustic.Window{Samples: batch, SampleRate: p.cfg.SampleRate, Channels: 1})
		audioSeconds := acoustic.AudioSeconds(len(batch), p.cfg.SampleRate, 1)

		emotion := ""
		if p.cfg.EmotionClassificationEnabled && p.emotion != nil {
			emotion = p.emotion.Classify(context.Background(), features)
		}

		p.sess.RecordAudio(frames, audioSeconds)

		event := model.AudioEvent{
			EventType:   model.EventAudio,
			SessionID:   p.sess.ID,
			TimestampMs: clock.NowMillis(),
			Analysis: model.AudioAnalysis{
				RiskScore: features.RiskScore,
				MFCCMean:  features.MFCCMean,
				Energy:    features.Energy,
				Emotion:   emotion,
			},
			AudioSeconds:  audioSeconds,
			Frames:        frames,
			WindowSeconds: p.cfg.WindowSeconds,
		}
		p.emit.Emit(event)
	})
}
