// Package emitter implements the data-channel gate (spec.md §4.6):
// serialize an event, check readiness, deliver or drop — never blocking
// the calling processor for I/O beyond the channel's own non-blocking
// send. Grounded on this pack's richinsley-bunghole session wiring, which
// checks dc.ReadyState() == webrtc.DataChannelStateOpen before SendText.
package emitter

import (
	"encoding/json"
	"sync"

	"github.com/rs/zerolog"
)

// DataChannel is the minimal surface the emitter needs from a
// *webrtc.DataChannel, declared as an interface so the core pipeline
// never imports pion/webrtc directly (spec.md §1: the data channel is
// "an opaque JSON-capable data channel").
type DataChannel interface {
	Ready() bool
	SendText(string) error
}

// Emitter serializes events and gates delivery on data-channel readiness.
// dc is guarded by mu since Bind (called from the signaling goroutine when
// OnDataChannel fires) and Emit (called concurrently from the video and
// audio processor goroutines) both touch it.
type Emitter struct {
	mu  sync.Mutex
	dc  DataChannel
	log zerolog.Logger
}

// New builds an Emitter bound to dc. dc may be nil; emits are then always
// dropped (used before the data channel has opened).
func New(dc DataChannel, logger zerolog.Logger) *Emitter {
	return &Emitter{dc: dc, log: logger}
}

// Bind attaches (or replaces) the data channel, e.g. once OnDataChannel
// fires for the "detections" label.
func (e *Emitter) Bind(dc DataChannel) {
	e.mu.Lock()
	e.dc = dc
	e.mu.Unlock()
}

// Emit serializes event and sends it if the data channel is open. It
// returns true if the event was actually delivered. Serialization or send
// failures are logged and never propagated to the caller.
func (e *Emitter) Emit(event any) bool {
	payload, err := json.Marshal(event)
	if err != nil {
		e.log.Debug().Err(err).Msg("emit: marshal failed")
		return false
	}

	e.mu.Lock()
	dc := e.dc
	e.mu.Unlock()

	if dc == nil || !dc.Ready() {
		e.log.Debug().Msg("emit: data channel not open, dropping event")
		return false
	}

	if err := dc.SendText(string(payload)); err != nil {
		e.log.Debug().Err(err).Msg("emit: send failed")
		return false
	}
	return true
}
