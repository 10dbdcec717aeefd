package inference

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
	"gocv.io/x/gocv"

	"github.com/n0remac/wound-gateway/internal/model"
	"github.com/n0remac/wound-gateway/internal/preprocess"
)

// remoteBackend POSTs a JPEG-encoded frame to a wound-detection HTTP
// service. The response shape is an external contract the gateway does
// not own, so it is walked with gjson rather than unmarshaled into a
// fixed struct — the same "pull a few fields out of someone else's JSON"
// idiom this pack reaches for whenever a response shape isn't ours.
type remoteBackend struct {
	client  *http.Client
	url     string
	apiKey  string
	timeout time.Duration
}

func newRemoteBackend(url, apiKey string, timeout time.Duration) *remoteBackend {
	return &remoteBackend{
		url:     url,
		apiKey:  apiKey,
		timeout: timeout,
		client: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:        64,
				MaxIdleConnsPerHost: 64,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}
}

func (r *remoteBackend) detect(ctx context.Context, img preprocess.Image, confidence float64) ([]model.Detection, error) {
	jpegBytes, err := encodeJPEG(img)
	if err != nil {
		return nil, fmt.Errorf("encode jpeg: %w", err)
	}

	reqCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	url := fmt.Sprintf("%s?confidence=%.4f", r.url, confidence)
	req, err := http.NewRequestWithContext(reqCtx, http.MethodPost, url, bytes.NewReader(jpegBytes))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "image/jpeg")
	if r.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+r.apiKey)
	}

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("remote request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("remote status %d", resp.StatusCode)
	}

	buf := new(bytes.Buffer)
	if _, err := buf.ReadFrom(resp.Body); err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	return parsePredictions(buf.Bytes())
}

// parsePredictions normalizes a remote backend response body into
// Detection values. Confidence filtering happens in Router, not here;
// this function only normalizes shape.
func parsePredictions(body []byte) ([]model.Detection, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("unparseable response body")
	}
	root := gjson.ParseBytes(body)

	predictions := root.Get("predictions")
	if !predictions.Exists() || !predictions.IsArray() {
		predictions = root
		if !predictions.IsArray() {
			return nil, fmt.Errorf("response has no prediction list")
		}
	}

	var out []model.Detection
	idx := 0
	predictions.ForEach(func(_, elem gjson.Result) bool {
		cls := elem.Get("cls").String()
		if cls == "" {
			cls = elem.Get("label").String()
		}
		if cls == "" {
			return true // skip entries with no usable class label
		}

		confidence := elem.Get("confidence").Float()
		typeConf := elem.Get("type_confidence")
		typeConfidence := confidence
		if typeConf.Exists() {
			typeConfidence = typeConf.Float()
		}

		bbox := parseBBox(elem.Get("bbox"))

		out = append(out, model.Detection{
			ID:             idx,
			WoundID:        idx,
			Cls:            cls,
			Confidence:     confidence,
			TypeConfidence: typeConfidence,
			BBox:           bbox,
		})
		idx++
		return true
	})
	return out, nil
}

func parseBBox(v gjson.Result) model.BBox {
	if v.IsArray() {
		vals := v.Array()
		get := func(i int) float64 {
			if i < len(vals) {
				return vals[i].Float()
			}
			return 0
		}
		return model.BBox{X: get(0), Y: get(1), W: get(2), H: get(3)}
	}
	return model.BBox{
		X: v.Get("x").Float(),
		Y: v.Get("y").Float(),
		W: firstNonZero(v.Get("w").Float(), v.Get("width").Float()),
		H: firstNonZero(v.Get("h").Float(), v.Get("height").Float()),
	}
}

func firstNonZero(a, b float64) float64 {
	if a != 0 {
		return a
	}
	return b
}

func encodeJPEG(img preprocess.Image) ([]byte, error) {
	mat, err := gocv.NewMatFromBytes(img.Height, img.Width, gocv.MatTypeCV8UC3, img.Pixels)
	if err != nil {
		return nil, err
	}
	defer mat.Close()

	buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
	if err != nil {
		return nil, err
	}
	defer buf.Close()
	return append([]byte(nil), buf.GetBytes()...), nil
}
