package inference

import (
	"fmt"
	"image"
	"sync"

	"golang.org/x/sync/singleflight"

	"gocv.io/x/gocv"

	"github.com/n0remac/wound-gateway/internal/model"
	"github.com/n0remac/wound-gateway/internal/preprocess"
)

// LocalModel is the declared interface for the in-process fallback
// detector (Design Notes §9: "a router function whose signature is
// (image, config) -> list<Detection>"). A real trained model can be
// substituted behind this interface without touching Router.
type LocalModel interface {
	Detect(img preprocess.Image) ([]model.Detection, error)
}

// CascadeModel is a concrete LocalModel stand-in for "a YOLO-equivalent
// model," grounded directly on this repo's own Haar-cascade detector
// (formerly cvpipe/pipeline.go): same gocv.CascadeClassifier,
// DetectMultiScaleWithParams call shape, generalized from faces to a
// single "wound" class. Every hit is reported at a fixed calibrated
// confidence, since a cascade classifier has no native confidence score.
type CascadeModel struct {
	classifier gocv.CascadeClassifier
	confidence float64
}

// NewCascadeModel loads a cascade XML from weightsPath. Returns an error
// if the file cannot be loaded, per spec.md §4.3 step 5 ("fails to load").
func NewCascadeModel(weightsPath string) (*CascadeModel, error) {
	c := gocv.NewCascadeClassifier()
	if !c.Load(weightsPath) {
		c.Close()
		return nil, fmt.Errorf("load cascade weights %q", weightsPath)
	}
	return &CascadeModel{classifier: c, confidence: 0.75}, nil
}

func (m *CascadeModel) Close() { m.classifier.Close() }

// Detect runs the cascade over img and returns each hit as a Detection.
func (m *CascadeModel) Detect(img preprocess.Image) ([]model.Detection, error) {
	mat, err := gocv.NewMatFromBytes(img.Height, img.Width, gocv.MatTypeCV8UC3, img.Pixels)
	if err != nil {
		return nil, fmt.Errorf("rehydrate mat: %w", err)
	}
	defer mat.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)

	rects := m.classifier.DetectMultiScaleWithParams(
		gray, 1.1, 5, 0, image.Pt(30, 30), image.Pt(0, 0),
	)

	out := make([]model.Detection, 0, len(rects))
	for i, r := range rects {
		out = append(out, model.Detection{
			ID:             i,
			WoundID:        i,
			Cls:            "wound",
			Confidence:     m.confidence,
			TypeConfidence: m.confidence,
			BBox: model.BBox{
				X: float64(r.Min.X),
				Y: float64(r.Min.Y),
				W: float64(r.Dx()),
				H: float64(r.Dy()),
			},
		})
	}
	return out, nil
}

// lazyLocalModel loads a LocalModel at most once per process, with
// construction serialized by a single-flight guard (Design Notes §9:
// "Lazy ML-model initialization ... a one-shot initializer protected by
// a single-flight guard, returning a handle"). The handle, once built, is
// shared and immutable.
type lazyLocalModel struct {
	weightsPath string
	group       singleflight.Group

	mu      sync.RWMutex
	model   LocalModel
	loadErr error
	loaded  bool
}

func newLazyLocalModel(weightsPath string) *lazyLocalModel {
	return &lazyLocalModel{weightsPath: weightsPath}
}

func (l *lazyLocalModel) get() (LocalModel, error) {
	l.mu.RLock()
	if l.loaded {
		m, err := l.model, l.loadErr
		l.mu.RUnlock()
		return m, err
	}
	l.mu.RUnlock()

	v, err, _ := l.group.Do("load", func() (interface{}, error) {
		l.mu.RLock()
		if l.loaded {
			m, loadErr := l.model, l.loadErr
			l.mu.RUnlock()
			return m, loadErr
		}
		l.mu.RUnlock()

		m, loadErr := NewCascadeModel(l.weightsPath)

		l.mu.Lock()
		l.loaded = true
		if loadErr != nil {
			l.loadErr = loadErr
		} else {
			l.model = m
		}
		l.mu.Unlock()
		return m, loadErr
	})
	if err != nil {
		return nil, err
	}
	return v.(LocalModel), nil
}
