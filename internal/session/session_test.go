package session

import "testing"

func TestCloseIsIdempotent(t *testing.T) {
	s := New()
	s.RecordFrame(true)
	s.RecordDetection(2)
	first := s.Close()
	s.RecordFrame(true) // must not affect an already-closed session's summary
	second := s.Close()
	if first != second {
		t.Fatalf("second close returned a different summary: %+v vs %+v", first, second)
	}
	if second.TotalFramesReceived != 1 {
		t.Fatalf("expected counters frozen at first close, got %+v", second)
	}
}

func TestRecordDroppedAccumulates(t *testing.T) {
	s := New()
	s.RecordDropped(3)
	s.RecordDropped(2)
	summary := s.Close()
	if summary.TotalFramesDropped != 5 {
		t.Fatalf("got %d dropped, want 5", summary.TotalFramesDropped)
	}
}

func TestIsIdleThreshold(t *testing.T) {
	s := New()
	now := s.StartMs()
	if s.IsIdle(now+999, 1000) {
		t.Fatal("should not be idle before the timeout elapses")
	}
	if s.IsIdle(now+1000, 1000) {
		t.Fatal("should not be idle exactly at the timeout (strict inequality)")
	}
	if !s.IsIdle(now+1001, 1000) {
		t.Fatal("should be idle once the timeout has strictly elapsed")
	}
}

func TestRecordAudioAccumulatesSeconds(t *testing.T) {
	s := New()
	s.RecordAudio(4, 1.0)
	s.RecordAudio(2, 0.5)
	// Summary carries no audio totals, so the accumulated values are read
	// from the aggregate's own fields.
	if s.audioSeconds != 1.5 || s.audioFrames != 6 {
		t.Fatalf("got audioSeconds=%.2f audioFrames=%d, want 1.5 and 6", s.audioSeconds, s.audioFrames)
	}
	summary := s.Close()
	if summary.TotalFramesReceived != 0 {
		t.Fatalf("audio frames must not count as video frames, got %+v", summary)
	}
}
