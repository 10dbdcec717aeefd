// Package model holds the authoritative domain types shared by every
// pipeline component. Each type carries its own JSON tags so there is a
// single representation from in-process value to wire message, per the
// repo's "one authoritative definition" design decision — there is no
// separate persistence layer here to justify a second, decoupled shape.
package model

// FrameKind distinguishes the two track kinds a session may carry.
type FrameKind int

const (
	KindVideo FrameKind = iota
	KindAudio
)

// FrameItem is one ephemeral unit of track data placed into a Buffer.
// It is never retained after the owning processor finishes with it.
type FrameItem struct {
	ArrivalTimeMs int64
	RawPayload    []byte
	Kind          FrameKind
}

// BBox is an absolute-pixel bounding box. This deployment fixes the
// bbox convention to absolute pixels (SPEC_FULL.md §6); it is never
// normalized to [0,1].
type BBox struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"width"`
	H float64 `json:"height"`
}

// Detection is one wound hypothesis surviving the confidence threshold.
type Detection struct {
	ID             int     `json:"id"`
	WoundID        int     `json:"wound_id"`
	Cls            string  `json:"cls"`
	BBox           BBox    `json:"bbox"`
	Confidence     float64 `json:"confidence"`
	TypeConfidence float64 `json:"type_confidence"`
}

// EventType enumerates the data-channel message kinds (spec.md §6).
type EventType string

const (
	EventSessionStarted EventType = "session_started"
	EventDetection       EventType = "detection_event"
	EventAudio           EventType = "audio_event"
	EventError           EventType = "error"
	EventStreamClosed    EventType = "stream_closed"
	EventPong            EventType = "pong"
)

// ErrorCode enumerates the taxonomy from spec.md §7.
type ErrorCode string

const (
	ErrInvalidImageFormat ErrorCode = "INVALID_IMAGE_FORMAT"
	ErrFrameTooLarge      ErrorCode = "FRAME_TOO_LARGE"
	ErrInferenceFailed    ErrorCode = "INFERENCE_FAILED"
	ErrInternal           ErrorCode = "INTERNAL_ERROR"
)

// Severity distinguishes a skipped frame from a terminating session.
type Severity string

const (
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// SessionConfig is advertised once in SessionStartedEvent so a client can
// learn the deployment's fixed conventions without a side channel.
type SessionConfig struct {
	MaxResolution       string  `json:"max_resolution"`
	ConfidenceThreshold float64 `json:"confidence_threshold"`
	IdleTimeoutSec      int     `json:"idle_timeout_sec"`
	BBoxConvention      string  `json:"bbox_convention"`
}

// SessionStartedEvent is sent exactly once, when the data channel opens.
type SessionStartedEvent struct {
	EventType   EventType     `json:"event_type"`
	SessionID   string        `json:"session_id"`
	TimestampMs int64         `json:"timestamp_ms"`
	Config      SessionConfig `json:"config"`
}

// DetectionMetadata accompanies every DetectionEvent.
type DetectionMetadata struct {
	ProcessingTimeMs        int64  `json:"processing_time_ms"`
	QualityWarning          string `json:"quality_warning,omitempty"`
	FramesDroppedSinceLast  int64  `json:"frames_dropped_since_last"`
}

// DetectionEvent is emitted once per processed video frame.
type DetectionEvent struct {
	EventType   EventType         `json:"event_type"`
	SessionID   string            `json:"session_id"`
	TimestampMs int64             `json:"timestamp_ms"`
	FrameIndex  int64             `json:"frame_index"`
	HasWounds   bool              `json:"has_wounds"`
	Wounds      []Detection       `json:"wounds"`
	Metadata    DetectionMetadata `json:"metadata"`
}

// AudioAnalysis is the feature summary computed for one audio window.
type AudioAnalysis struct {
	RiskScore float64 `json:"risk_score"`
	MFCCMean  float64 `json:"mfcc_mean"`
	Energy    float64 `json:"energy"`
	Emotion   string  `json:"emotion,omitempty"`
}

// AudioEvent is emitted once per analyzed audio window.
type AudioEvent struct {
	EventType     EventType     `json:"event_type"`
	SessionID     string        `json:"session_id"`
	TimestampMs   int64         `json:"timestamp_ms"`
	Analysis      AudioAnalysis `json:"analysis"`
	AudioSeconds  float64       `json:"audio_seconds"`
	Frames        int           `json:"frames"`
	WindowSeconds float64       `json:"window_seconds"`
}

// ErrorEvent reports a recovered per-frame failure or a terminal one.
type ErrorEvent struct {
	EventType    EventType `json:"event_type"`
	SessionID    string    `json:"session_id"`
	TimestampMs  int64     `json:"timestamp_ms"`
	FrameIndex   *int64    `json:"frame_index,omitempty"`
	ErrorCode    ErrorCode `json:"error_code"`
	ErrorMessage string    `json:"error_message"`
	Severity     Severity  `json:"severity"`
}

// Summary is the terminal record produced exactly once, at session close.
type Summary struct {
	TotalFramesReceived  int64   `json:"total_frames_received"`
	TotalFramesProcessed int64   `json:"total_frames_processed"`
	TotalFramesDropped   int64   `json:"total_frames_dropped"`
	TotalDetections      int64   `json:"total_detections"`
	DurationSec          float64 `json:"duration_sec"`
}

// StreamClosedEvent is emitted once, at the end of the Closing transition.
type StreamClosedEvent struct {
	EventType   EventType `json:"event_type"`
	SessionID   string    `json:"session_id"`
	TimestampMs int64     `json:"timestamp_ms"`
	Summary     Summary   `json:"summary"`
}

// PongEvent answers a client {"type":"ping"} message.
type PongEvent struct {
	EventType   EventType `json:"event_type"`
	TimestampMs int64     `json:"timestamp_ms"`
}
