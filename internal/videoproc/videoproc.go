// Package videoproc implements the video processing loop (spec.md §4.8,
// C8): pull a raw frame off its buffer, decode/resize/score it, dispatch
// it to the inference router, update the session, and emit a
// DetectionEvent — isolating any per-frame failure into a warning
// ErrorEvent rather than letting it end the session. Grounded on this
// pack's former cvpipe frame loop (buffer.Get -> decode -> CV pass ->
// publish), generalized from a single hardcoded pipeline to the
// configurable decode/resize/blur/infer chain this gateway needs.
package videoproc

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/n0remac/wound-gateway/internal/buffer"
	"github.com/n0remac/wound-gateway/internal/clock"
	"github.com/n0remac/wound-gateway/internal/inference"
	"github.com/n0remac/wound-gateway/internal/model"
	"github.com/n0remac/wound-gateway/internal/preprocess"
	"github.com/n0remac/wound-gateway/internal/session"
)

// Emitter is the minimal surface videoproc needs from internal/emitter.
type Emitter interface {
	Emit(event any) bool
}

// Config bundles the per-session-fixed parameters videoproc needs.
type Config struct {
	MaxFrameSizeBytes    int64
	MaxFrameWidth        int
	MaxFrameHeight       int
	BlurWarningThreshold float64
	ConfidenceThreshold  float64
}

// Processor drives one session's video track through the pipeline.
type Processor struct {
	cfg       Config
	buf       *buffer.Buffer[model.FrameItem]
	router    *inference.Router
	sess      *session.Session
	emit      Emitter
	log       zerolog.Logger
	frameIdx  int64
	dropsLast int64
}

// New builds a Processor. router and emit must be non-nil; sess is the
// owning session aggregate.
func New(cfg Config, buf *buffer.Buffer[model.FrameItem], router *inference.Router, sess *session.Session, emit Emitter, logger zerolog.Logger) *Processor {
	return &Processor{cfg: cfg, buf: buf, router: router, sess: sess, emit: emit, log: logger}
}

// Run pulls frames until ctx is cancelled or the buffer's producer side
// closes the loop (signaled by ctx). It never returns an error: every
// per-frame failure is reported as an ErrorEvent and the loop continues.
func (p *Processor) Run(ctx context.Context) {
	for {
		item, ok := p.buf.Get(ctx)
		if !ok {
			return
		}
		p.processOne(item)
	}
}

func (p *Processor) processOne(item model.FrameItem) {
	start := clock.NowMillis()
	drops := p.buf.Dropped() - p.dropsLast
	p.dropsLast = p.buf.Dropped()

	img, err := preprocess.Decode(item.RawPayload, p.cfg.MaxFrameSizeBytes)
	if err != nil {
		p.emitFrameError(err)
		p.sess.RecordFrame(false)
		return
	}

	img, err = preprocess.ResizeToCeiling(img, p.cfg.MaxFrameWidth, p.cfg.MaxFrameHeight)
	if err != nil {
		p.emitFrameError(err)
		p.sess.RecordFrame(false)
		return
	}

	img, err = preprocess.BlurScore(img, p.cfg.BlurWarningThreshold)
	if err != nil {
		p.emitFrameError(err)
		p.sess.RecordFrame(false)
		return
	}

	dets, err := p.router.Infer(context.Background(), img)
	if err != nil {
		p.emitError(model.ErrInferenceFailed, err.Error(), model.SeverityWarning)
		p.sess.RecordFrame(false)
		return
	}

	p.sess.RecordFrame(true)
	p.sess.RecordDetection(len(dets))

	event := model.DetectionEvent{
		EventType:   model.EventDetection,
		SessionID:   p.sess.ID,
		TimestampMs: clock.NowMillis(),
		FrameIndex:  p.frameIdx,
		HasWounds:   len(dets) > 0,
		Wounds:      dets,
		Metadata: model.DetectionMetadata{
			ProcessingTimeMs:       clock.NowMillis() - start,
			QualityWarning:         img.QualityWarning,
			FramesDroppedSinceLast: drops,
		},
	}
	p.emit.Emit(event)
	p.frameIdx++
}

func (p *Processor) emitFrameError(err error) {
	code := model.ErrInvalidImageFormat
	if _, ok := err.(*preprocess.FrameTooLargeError); ok {
		code = model.ErrFrameTooLarge
	}
	p.emitError(code, err.Error(), model.SeverityWarning)
}

func (p *Processor) emitError(code model.ErrorCode, msg string, sev model.Severity) {
	idx := p.frameIdx
	event := model.ErrorEvent{
		EventType:    model.EventError,
		SessionID:    p.sess.ID,
		TimestampMs:  clock.NowMillis(),
		FrameIndex:   &idx,
		ErrorCode:    code,
		ErrorMessage: msg,
		Severity:     sev,
	}
	p.emit.Emit(event)
	p.log.Warn().Str("code", string(code)).Str("session_id", p.sess.ID).Msg(msg)
}
