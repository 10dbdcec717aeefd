package inference

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"

	"github.com/n0remac/wound-gateway/internal/model"
	"github.com/n0remac/wound-gateway/internal/preprocess"
)

type fakeLocalModel struct {
	dets []model.Detection
	err  error
}

func (f *fakeLocalModel) Detect(preprocess.Image) ([]model.Detection, error) {
	return f.dets, f.err
}

func testImage() preprocess.Image {
	px := make([]byte, 8*8*3)
	return preprocess.Image{Width: 8, Height: 8, Pixels: px}
}

func TestRouterRemoteSuccessFiltersByConfidence(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"predictions":[
			{"cls":"cut","bbox":[120.5,200.3,45.0,60.0],"confidence":0.92,"type_confidence":0.88},
			{"cls":"scratch","bbox":[1,2,3,4],"confidence":0.2}
		]}`))
	}))
	defer srv.Close()

	r := NewRouter(Config{
		RemoteURL:     srv.URL,
		RemoteTimeout: 2_000_000_000,
		ConfidenceMin: 0.5,
	}, nil, zerolog.Nop())

	dets, err := r.Infer(context.Background(), testImage())
	if err != nil {
		t.Fatal(err)
	}
	if len(dets) != 1 {
		t.Fatalf("got %d detections, want 1 (low-confidence one filtered)", len(dets))
	}
	if dets[0].Cls != "cut" || dets[0].Confidence != 0.92 {
		t.Fatalf("unexpected detection: %+v", dets[0])
	}
}

func TestRouterFallsBackOnRemoteFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	fallback := &fakeLocalModel{dets: []model.Detection{
		{ID: 0, Cls: "wound", Confidence: 0.8, TypeConfidence: 0.8},
	}}
	r := newRouterWithLocal(Config{
		RemoteURL:     srv.URL,
		RemoteTimeout: 2_000_000_000,
		ConfidenceMin: 0.5,
		LocalEnabled:  true,
	}, nil, zerolog.Nop(), fallback)

	dets, err := r.Infer(context.Background(), testImage())
	if err != nil {
		t.Fatal(err)
	}
	if len(dets) != 1 {
		t.Fatalf("got %d detections, want 1 from local fallback", len(dets))
	}
}

func TestRouterReturnsEmptyWhenFallbackDisabled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	r := NewRouter(Config{
		RemoteURL:     srv.URL,
		RemoteTimeout: 2_000_000_000,
		ConfidenceMin: 0.5,
		LocalEnabled:  false,
	}, nil, zerolog.Nop())

	dets, err := r.Infer(context.Background(), testImage())
	if err != nil {
		t.Fatal(err)
	}
	if len(dets) != 0 {
		t.Fatalf("got %d detections, want 0", len(dets))
	}
}

func TestRouterSkipsRemoteWhenUnconfigured(t *testing.T) {
	fallback := &fakeLocalModel{dets: []model.Detection{{ID: 0, Cls: "wound", Confidence: 0.9}}}
	r := newRouterWithLocal(Config{ConfidenceMin: 0.5, LocalEnabled: true}, nil, zerolog.Nop(), fallback)

	dets, err := r.Infer(context.Background(), testImage())
	if err != nil {
		t.Fatal(err)
	}
	if len(dets) != 1 {
		t.Fatalf("got %d, want 1 (straight to local)", len(dets))
	}
}

func TestConfidenceExactlyAtThresholdAccepted(t *testing.T) {
	dets := filterByConfidence([]model.Detection{{Confidence: 0.5}}, 0.5)
	if len(dets) != 1 {
		t.Fatal("detection at exactly the threshold must be accepted")
	}
}
