package videoproc

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/jpeg"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/n0remac/wound-gateway/internal/buffer"
	"github.com/n0remac/wound-gateway/internal/inference"
	"github.com/n0remac/wound-gateway/internal/model"
	"github.com/n0remac/wound-gateway/internal/session"
)

type recordingEmitter struct {
	events []any
}

func (r *recordingEmitter) Emit(event any) bool {
	r.events = append(r.events, event)
	return true
}

func solidJPEG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, color.RGBA{R: 128, G: 128, B: 128, A: 255})
		}
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, nil); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestProcessOneFrameEmitsDetectionEvent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"predictions":[]}`))
	}))
	defer srv.Close()

	router := inference.NewRouter(inference.Config{
		RemoteURL:     srv.URL,
		RemoteTimeout: 2 * time.Second,
		ConfidenceMin: 0.5,
	}, nil, zerolog.Nop())

	buf := buffer.New[model.FrameItem](4)
	sess := session.New()
	emit := &recordingEmitter{}

	p := New(Config{
		MaxFrameSizeBytes:    10 * 1024 * 1024,
		MaxFrameWidth:        1280,
		MaxFrameHeight:       720,
		BlurWarningThreshold: 0,
		ConfidenceThreshold:  0.5,
	}, buf, router, sess, emit, zerolog.Nop())

	buf.Put(model.FrameItem{RawPayload: solidJPEG(t, 64, 48), Kind: model.KindVideo})

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	go p.Run(ctx)

	deadline := time.After(150 * time.Millisecond)
	for len(emit.events) == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for a DetectionEvent")
		case <-time.After(5 * time.Millisecond):
		}
	}

	evt, ok := emit.events[0].(model.DetectionEvent)
	if !ok {
		t.Fatalf("expected a DetectionEvent, got %T", emit.events[0])
	}
	if evt.HasWounds {
		t.Fatal("no predictions were returned, HasWounds should be false")
	}
	if evt.FrameIndex != 0 {
		t.Fatalf("got frame_index %d, want 0 for the first processed frame", evt.FrameIndex)
	}
	summary := sess.Close()
	if summary.TotalFramesProcessed != 1 {
		t.Fatalf("got %d processed frames, want 1", summary.TotalFramesProcessed)
	}
}

func TestFrameTooLargeEmitsWarningAndContinues(t *testing.T) {
	router := inference.NewRouter(inference.Config{ConfidenceMin: 0.5}, nil, zerolog.Nop())
	buf := buffer.New[model.FrameItem](4)
	sess := session.New()
	emit := &recordingEmitter{}

	p := New(Config{
		MaxFrameSizeBytes:    8, // smaller than any real payload
		MaxFrameWidth:        1280,
		MaxFrameHeight:       720,
		BlurWarningThreshold: 0,
		ConfidenceThreshold:  0.5,
	}, buf, router, sess, emit, zerolog.Nop())

	buf.Put(model.FrameItem{RawPayload: solidJPEG(t, 64, 48), Kind: model.KindVideo})

	p.processOne(item(t))

	if len(emit.events) != 1 {
		t.Fatalf("got %d events, want 1", len(emit.events))
	}
	errEvt, ok := emit.events[0].(model.ErrorEvent)
	if !ok {
		t.Fatalf("expected an ErrorEvent, got %T", emit.events[0])
	}
	if errEvt.ErrorCode != model.ErrFrameTooLarge {
		t.Fatalf("got error code %s, want FRAME_TOO_LARGE", errEvt.ErrorCode)
	}
}

func item(t *testing.T) model.FrameItem {
	return model.FrameItem{RawPayload: solidJPEG(t, 64, 48), Kind: model.KindVideo}
}
