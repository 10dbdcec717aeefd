package audioproc

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/n0remac/wound-gateway/internal/buffer"
	"github.com/n0remac/wound-gateway/internal/model"
	"github.com/n0remac/wound-gateway/internal/session"
	"github.com/n0remac/wound-gateway/internal/workerpool"
)

type recordingEmitter struct {
	events []any
}

func (r *recordingEmitter) Emit(event any) bool {
	r.events = append(r.events, event)
	return true
}

type passthroughDecoder struct{}

func (passthroughDecoder) Decode(raw []byte) ([]int16, error) {
	out := make([]int16, len(raw)/2)
	for i := range out {
		out[i] = int16(raw[i*2]) | int16(raw[i*2+1])<<8
	}
	return out, nil
}

func rawFrame(n int) []byte {
	return make([]byte, n*2)
}

func TestBatchOfTenFramesEmitsOneAudioEvent(t *testing.T) {
	buf := buffer.New[model.FrameItem](32)
	pool := workerpool.New(2)
	sess := session.New()
	emit := &recordingEmitter{}

	p := New(Config{SampleRate: 48000, BatchSize: 10}, buf, passthroughDecoder{}, pool, nil, sess, emit, zerolog.Nop())

	for i := 0; i < 10; i++ {
		buf.Put(model.FrameItem{RawPayload: rawFrame(4800), Kind: model.KindAudio})
	}

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	go p.Run(ctx)

	deadline := time.After(150 * time.Millisecond)
	for len(emit.events) == 0 {
		select {
		case <-deadline:
			t.Fatal("timed out waiting for an AudioEvent")
		case <-time.After(5 * time.Millisecond):
		}
	}

	evt, ok := emit.events[0].(model.AudioEvent)
	if !ok {
		t.Fatalf("expected an AudioEvent, got %T", emit.events[0])
	}
	if evt.Frames != 10 {
		t.Fatalf("got %d frames, want 10", evt.Frames)
	}
}

func TestFlushEmitsPartialWindowOnTrackEnd(t *testing.T) {
	buf := buffer.New[model.FrameItem](32)
	pool := workerpool.New(2)
	sess := session.New()
	emit := &recordingEmitter{}

	p := New(Config{SampleRate: 48000, BatchSize: 10}, buf, passthroughDecoder{}, pool, nil, sess, emit, zerolog.Nop())

	for i := 0; i < 3; i++ {
		buf.Put(model.FrameItem{RawPayload: rawFrame(4800), Kind: model.KindAudio})
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()
	<-done

	if len(emit.events) != 1 {
		t.Fatalf("got %d events, want 1 (flushed partial window)", len(emit.events))
	}
	evt := emit.events[0].(model.AudioEvent)
	if evt.Frames != 3 {
		t.Fatalf("got %d frames, want 3", evt.Frames)
	}
}
