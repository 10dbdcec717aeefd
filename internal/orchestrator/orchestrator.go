// Package orchestrator implements the session lifecycle state machine
// (spec.md §4.10, C10): admit a peer connection, create a Session at
// first track arrival, wire a processor per track kind, watch for
// idleness, and drive an orderly Created -> Active -> Closing -> Closed
// shutdown exactly once. Grounded on this pack's former websocket.Hub
// register/unregister pattern and richinsley-bunghole's session.Session
// (one struct owning a *webrtc.PeerConnection plus its own Close),
// generalized here from a single video-conference room to one media
// session per peer connection.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog"

	"github.com/n0remac/wound-gateway/internal/acoustic"
	"github.com/n0remac/wound-gateway/internal/audioproc"
	"github.com/n0remac/wound-gateway/internal/buffer"
	"github.com/n0remac/wound-gateway/internal/clock"
	"github.com/n0remac/wound-gateway/internal/emitter"
	"github.com/n0remac/wound-gateway/internal/inference"
	"github.com/n0remac/wound-gateway/internal/model"
	"github.com/n0remac/wound-gateway/internal/opusdec"
	"github.com/n0remac/wound-gateway/internal/registry"
	"github.com/n0remac/wound-gateway/internal/session"
	"github.com/n0remac/wound-gateway/internal/videoproc"
	"github.com/n0remac/wound-gateway/internal/workerpool"
)

// shutdownDeadline bounds how long beginClosing waits for every attached
// processor loop to exit before giving up and closing anyway (spec.md
// §5 "bounded deadline (default 2s)").
const shutdownDeadline = 2 * time.Second

// Config bundles the process-wide parameters the orchestrator hands down
// to every session's processors.
type Config struct {
	ConfidenceThreshold  float64
	MaxFrameWidth        int
	MaxFrameHeight       int
	MaxFrameSizeBytes    int64
	BlurWarningThreshold float64
	IdleTimeout          time.Duration

	AudioSampleRate              int
	AudioBatchSize               int
	AudioWindowSeconds           float64
	EmotionClassificationEnabled bool

	FrameBufferCapacity int
	AudioBufferCapacity int
}

// Orchestrator holds the shared, cross-session resources: the inference
// router, the CPU-bound worker pool, and the optional emotion classifier.
type Orchestrator struct {
	cfg     Config
	router  *inference.Router
	pool    *workerpool.Pool
	emotion *acoustic.EmotionClassifier
	log     zerolog.Logger
}

// New builds an Orchestrator.
func New(cfg Config, router *inference.Router, pool *workerpool.Pool, emotion *acoustic.EmotionClassifier, logger zerolog.Logger) *Orchestrator {
	return &Orchestrator{cfg: cfg, router: router, pool: pool, emotion: emotion, log: logger}
}

type state int

const (
	stateCreated state = iota
	stateActive
	stateClosing
	stateClosed
)

// conn is the per-peer-connection state machine. It implements
// registry.Closer so the registry can sweep it on shutdown.
type conn struct {
	orch *Orchestrator
	pc   *webrtc.PeerConnection
	reg  *registry.Registry
	log  zerolog.Logger

	mu                  sync.Mutex
	regID               string
	state               state
	sess                *session.Session
	emit                *emitter.Emitter
	ctx                 context.Context
	cancel              context.CancelFunc
	wg                  sync.WaitGroup
	activeTracks        int
	sessionStartedSent  bool
}

// Admit wires a freshly created *webrtc.PeerConnection into the
// orchestrator and registers it with reg. It returns false if reg is at
// its concurrent-session cap (spec.md §6: "503 when the process is above
// its concurrent-session cap"); in that case the caller must close pc
// itself. On success it returns a closeFn the caller may use to abort
// admission before the offer/answer exchange completes.
func (o *Orchestrator) Admit(pc *webrtc.PeerConnection, reg *registry.Registry) (bool, func()) {
	regID := clock.NewSessionID()
	c := &conn{
		orch:  o,
		pc:    pc,
		reg:   reg,
		log:   o.log,
		regID: regID,
		emit:  emitter.New(nil, o.log),
	}
	if err := reg.Register(regID, c); err != nil {
		return false, func() {}
	}

	pc.OnTrack(c.onTrack)
	pc.OnDataChannel(c.onDataChannel)
	pc.OnConnectionStateChange(c.onConnectionStateChange)

	return true, func() { reg.Close(regID) }
}

type dataChannelAdapter struct{ dc *webrtc.DataChannel }

func (a *dataChannelAdapter) Ready() bool {
	return a.dc.ReadyState() == webrtc.DataChannelStateOpen
}

func (a *dataChannelAdapter) SendText(s string) error {
	return a.dc.SendText(s)
}

func (c *conn) onDataChannel(dc *webrtc.DataChannel) {
	if dc.Label() != "detections" {
		return
	}
	dc.OnOpen(func() {
		c.emit.Bind(&dataChannelAdapter{dc: dc})
		c.maybeSendSessionStarted()
	})
	dc.OnMessage(func(msg webrtc.DataChannelMessage) {
		if !msg.IsString {
			return
		}
		var ping struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(msg.Data, &ping); err != nil || ping.Type != "ping" {
			return
		}
		c.emit.Emit(model.PongEvent{EventType: model.EventPong, TimestampMs: clock.NowMillis()})
	})
}

func (c *conn) onConnectionStateChange(s webrtc.PeerConnectionState) {
	switch s {
	case webrtc.PeerConnectionStateDisconnected, webrtc.PeerConnectionStateFailed, webrtc.PeerConnectionStateClosed:
		c.beginClosing()
	}
}

// onTrack fires once per negotiated remote track (spec.md's Open Question
// #1 is resolved here: a Session is created at first track arrival, not
// at offer/answer completion, per SPEC_FULL.md §9).
func (c *conn) onTrack(track *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
	c.mu.Lock()
	if c.sess == nil {
		c.sess = session.New()
		c.ctx, c.cancel = context.WithCancel(context.Background())
		c.state = stateActive
		go c.watchIdle()
	}
	c.activeTracks++
	c.mu.Unlock()

	c.maybeSendSessionStarted()

	switch track.Kind() {
	case webrtc.RTPCodecTypeVideo:
		c.consumeVideo(track)
	case webrtc.RTPCodecTypeAudio:
		c.consumeAudio(track)
	}

	c.mu.Lock()
	c.activeTracks--
	allEnded := c.activeTracks == 0
	c.mu.Unlock()

	// Open Question #3 (SPEC_FULL.md §9): a multi-track session closes
	// only once every attached track's reader loop has returned, never on
	// the first one to end.
	if allEnded {
		c.beginClosing()
	}
}

func (c *conn) consumeVideo(track *webrtc.TrackRemote) {
	buf := buffer.New[model.FrameItem](c.orch.cfg.FrameBufferCapacity)
	proc := videoproc.New(videoproc.Config{
		MaxFrameSizeBytes:    c.orch.cfg.MaxFrameSizeBytes,
		MaxFrameWidth:        c.orch.cfg.MaxFrameWidth,
		MaxFrameHeight:       c.orch.cfg.MaxFrameHeight,
		BlurWarningThreshold: c.orch.cfg.BlurWarningThreshold,
		ConfidenceThreshold:  c.orch.cfg.ConfidenceThreshold,
	}, buf, c.orch.router, c.sess, c.emit, c.log)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		proc.Run(c.ctx)
	}()

	var frame []byte
	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			return
		}
		frame = append(frame, pkt.Payload...)
		if pkt.Marker {
			item := model.FrameItem{ArrivalTimeMs: clock.NowMillis(), RawPayload: frame, Kind: model.KindVideo}
			if buf.Put(item) {
				c.sess.RecordDropped(1)
			}
			frame = nil
		}
	}
}

func (c *conn) consumeAudio(track *webrtc.TrackRemote) {
	codec := track.Codec()
	channels := int(codec.Channels)
	if channels == 0 {
		channels = 2
	}
	sampleRate := int(codec.ClockRate)
	if sampleRate == 0 {
		sampleRate = c.orch.cfg.AudioSampleRate
	}

	dec, err := opusdec.New(sampleRate, channels)
	if err != nil {
		c.log.Error().Err(err).Msg("opus decoder init failed, dropping audio track")
		return
	}

	buf := buffer.New[model.FrameItem](c.orch.cfg.AudioBufferCapacity)
	proc := audioproc.New(audioproc.Config{
		SampleRate:                   c.orch.cfg.AudioSampleRate,
		BatchSize:                    c.orch.cfg.AudioBatchSize,
		WindowSeconds:                c.orch.cfg.AudioWindowSeconds,
		EmotionClassificationEnabled: c.orch.cfg.EmotionClassificationEnabled,
	}, buf, dec, c.orch.pool, c.orch.emotion, c.sess, c.emit, c.log)

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		proc.Run(c.ctx)
	}()

	for {
		pkt, _, err := track.ReadRTP()
		if err != nil {
			return
		}
		item := model.FrameItem{ArrivalTimeMs: clock.NowMillis(), RawPayload: pkt.Payload, Kind: model.KindAudio}
		if buf.Put(item) {
			c.sess.RecordDropped(1)
		}
	}
}

func (c *conn) watchIdle() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-c.ctx.Done():
			return
		case <-ticker.C:
			c.mu.Lock()
			sess := c.sess
			c.mu.Unlock()
			if sess == nil {
				continue
			}
			if sess.IsIdle(clock.NowMillis(), c.orch.cfg.IdleTimeout.Milliseconds()) {
				c.beginClosing()
				return
			}
		}
	}
}

func (c *conn) maybeSendSessionStarted() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.sessionStartedSent || c.sess == nil {
		return
	}

	evt := model.SessionStartedEvent{
		EventType:   model.EventSessionStarted,
		SessionID:   c.sess.ID,
		TimestampMs: clock.NowMillis(),
		Config: model.SessionConfig{
			MaxResolution:       fmt.Sprintf("%dx%d", c.orch.cfg.MaxFrameWidth, c.orch.cfg.MaxFrameHeight),
			ConfidenceThreshold: c.orch.cfg.ConfidenceThreshold,
			IdleTimeoutSec:      int(c.orch.cfg.IdleTimeout.Seconds()),
			BBoxConvention:      "absolute_pixel",
		},
	}
	c.sessionStartedSent = c.emit.Emit(evt)
}

// beginClosing drives the Closing -> Closed transition exactly once:
// cancel every processor, wait up to shutdownDeadline for them to exit,
// close the session and emit its summary, then release the peer
// connection and registry handle (spec.md §5 Closing step list).
func (c *conn) beginClosing() {
	c.mu.Lock()
	if c.state == stateClosing || c.state == stateClosed {
		c.mu.Unlock()
		return
	}
	c.state = stateClosing
	cancel := c.cancel
	sess := c.sess
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}

	if cancel != nil {
		done := make(chan struct{})
		go func() {
			c.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(shutdownDeadline):
			c.log.Warn().Msg("processor shutdown exceeded deadline")
		}
	}

	if sess != nil {
		summary := sess.Close()
		c.emit.Emit(model.StreamClosedEvent{
			EventType:   model.EventStreamClosed,
			SessionID:   sess.ID,
			TimestampMs: clock.NowMillis(),
			Summary:     summary,
		})
	}

	c.mu.Lock()
	c.state = stateClosed
	c.mu.Unlock()

	c.pc.Close()
	if c.reg != nil {
		c.reg.Unregister(c.regID)
	}
}

// Close implements registry.Closer, used by Registry.CloseAll for
// graceful process shutdown.
func (c *conn) Close() {
	c.beginClosing()
}
