// Package session implements the per-connection Session aggregate
// (spec.md §4.7): counters, idle detection, and an idempotent close that
// produces the terminal Summary exactly once. Grounded on this pack's
// websocket.Hub client bookkeeping (atomic counters guarded by a single
// mutex, a one-shot close), generalized from a chat client to a media
// session.
package session

import (
	"sync"

	"github.com/n0remac/wound-gateway/internal/clock"
	"github.com/n0remac/wound-gateway/internal/model"
)

// Session tracks one peer connection's lifetime counters.
type Session struct {
	ID string

	mu              sync.Mutex
	startMs         int64
	lastActivityMs  int64
	framesReceived  int64
	framesProcessed int64
	framesDropped   int64
	detections      int64
	audioFrames     int64
	audioSeconds    float64
	closed          bool
	summary         model.Summary
}

// New creates a Session starting now, per the Open Question resolution
// that a session begins at first track arrival (SPEC_FULL.md §9).
func New() *Session {
	now := clock.NowMillis()
	return &Session{
		ID:             clock.NewSessionID(),
		startMs:        now,
		lastActivityMs: now,
	}
}

func (s *Session) touch() {
	s.lastActivityMs = clock.NowMillis()
}

// RecordFrame increments the received counter and, if processed is true,
// the processed counter. Call once per frame pulled off the buffer.
func (s *Session) RecordFrame(processed bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.framesReceived++
	if processed {
		s.framesProcessed++
	}
	s.touch()
}

// RecordDropped increments the dropped-frame counter by n (buffer
// evictions, per spec.md's drop-replace backpressure policy).
func (s *Session) RecordDropped(n int64) {
	if n <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.framesDropped += n
}

// RecordDetection adds count detections found in one processed frame.
func (s *Session) RecordDetection(count int) {
	if count <= 0 {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detections += int64(count)
}

// RecordAudio accounts for one analyzed audio window of frames items and
// seconds duration (spec.md §4.5 record_audio(frames=len(window))).
func (s *Session) RecordAudio(frames int, seconds float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.audioFrames += int64(frames)
	s.audioSeconds += seconds
	s.touch()
}

// IsIdle reports whether the session has had no activity for strictly
// more than timeoutMs, measured against nowMs. A session idle exactly at
// the timeout is not yet idle (spec.md §4.7, §8 boundary fix).
func (s *Session) IsIdle(nowMs int64, timeoutMs int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return nowMs-s.lastActivityMs > timeoutMs
}

// Close finalizes the session and returns its Summary. Idempotent: the
// second and later calls return the same Summary computed on first close
// without mutating counters further (spec.md §4.7 "close is idempotent").
func (s *Session) Close() model.Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return s.summary
	}
	s.closed = true
	durationSec := float64(clock.NowMillis()-s.startMs) / 1000.0
	s.summary = model.Summary{
		TotalFramesReceived:  s.framesReceived,
		TotalFramesProcessed: s.framesProcessed,
		TotalFramesDropped:   s.framesDropped,
		TotalDetections:      s.detections,
		DurationSec:          durationSec,
	}
	return s.summary
}

// StartMs returns the session's creation timestamp.
func (s *Session) StartMs() int64 {
	return s.startMs
}
