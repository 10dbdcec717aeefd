// Package preprocess turns a raw inbound video frame into a DecodedImage
// ready for inference: decode, validate/resize to a ceiling resolution,
// and score blur. Grounded on this repo's own former cvpipe pipeline,
// which already ran frames through gocv for colorspace conversion,
// Gaussian blur, CLAHE and gocv.Resize with area interpolation — the same
// gocv toolchain, aimed at a sharpness score instead of a face cascade.
package preprocess

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// DecodeError signals that raw_payload could not be decoded into an image.
// The caller must emit an ErrorEvent (INVALID_IMAGE_FORMAT) and continue.
type DecodeError struct {
	Reason string
}

func (e *DecodeError) Error() string { return "decode frame: " + e.Reason }

// FrameTooLargeError signals raw_payload exceeded MaxFrameSizeBytes.
type FrameTooLargeError struct {
	Size, Limit int64
}

func (e *FrameTooLargeError) Error() string {
	return fmt.Sprintf("frame size %d exceeds limit %d", e.Size, e.Limit)
}

// Image is an in-process decoded frame. Pixels are row-major BGR, 8-bit.
type Image struct {
	Width, Height int
	Pixels        []byte
	BlurScore     float64
	QualityWarning string
}

// Decode converts an opaque encoded frame buffer into a BGR pixel matrix.
// It fails with *DecodeError on corrupt or unsupported input and with
// *FrameTooLargeError when raw exceeds maxBytes (0 disables the check).
func Decode(raw []byte, maxBytes int64) (Image, error) {
	if maxBytes > 0 && int64(len(raw)) > maxBytes {
		return Image{}, &FrameTooLargeError{Size: int64(len(raw)), Limit: maxBytes}
	}
	mat, err := gocv.IMDecode(raw, gocv.IMReadColor)
	if err != nil {
		return Image{}, &DecodeError{Reason: err.Error()}
	}
	defer mat.Close()
	if mat.Empty() {
		return Image{}, &DecodeError{Reason: "empty image after decode"}
	}

	return Image{
		Width:  mat.Cols(),
		Height: mat.Rows(),
		Pixels: append([]byte(nil), mat.ToBytes()...),
	}, nil
}

// ResizeToCeiling scales img proportionally so both dimensions fit within
// maxW x maxH, using area interpolation for downscale. It is a no-op if
// img already fits within the ceiling (spec.md §8 boundary: exactly
// maxW x maxH triggers no resize).
func ResizeToCeiling(img Image, maxW, maxH int) (Image, error) {
	if img.Width <= maxW && img.Height <= maxH {
		return img, nil
	}

	mat, err := gocv.NewMatFromBytes(img.Height, img.Width, gocv.MatTypeCV8UC3, img.Pixels)
	if err != nil {
		return Image{}, fmt.Errorf("rehydrate mat: %w", err)
	}
	defer mat.Close()

	scale := float64(maxW) / float64(img.Width)
	if hScale := float64(maxH) / float64(img.Height); hScale < scale {
		scale = hScale
	}
	newW := int(float64(img.Width)*scale + 0.5)
	newH := int(float64(img.Height)*scale + 0.5)
	if newW < 1 {
		newW = 1
	}
	if newH < 1 {
		newH = 1
	}

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(mat, &resized, image.Pt(newW, newH), 0, 0, gocv.InterpolationArea)

	return Image{
		Width:  resized.Cols(),
		Height: resized.Rows(),
		Pixels: append([]byte(nil), resized.ToBytes()...),
	}, nil
}

// BlurScore computes the variance of the Laplacian over a luminance
// conversion of img. Higher is sharper. When the score falls strictly
// below warningThreshold, it sets QualityWarning on the returned copy.
func BlurScore(img Image, warningThreshold float64) (Image, error) {
	mat, err := gocv.NewMatFromBytes(img.Height, img.Width, gocv.MatTypeCV8UC3, img.Pixels)
	if err != nil {
		return img, fmt.Errorf("rehydrate mat: %w", err)
	}
	defer mat.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(mat, &gray, gocv.ColorBGRToGray)

	lap := gocv.NewMat()
	defer lap.Close()
	gocv.Laplacian(gray, &lap, gocv.MatTypeCV64F, 1, 1, 0, gocv.BorderDefault)

	mean := gocv.NewMat()
	defer mean.Close()
	stddev := gocv.NewMat()
	defer stddev.Close()
	gocv.MeanStdDev(lap, &mean, &stddev)

	sd := stddev.GetDoubleAt(0, 0)
	score := sd * sd

	out := img
	out.BlurScore = score
	if score < warningThreshold {
		out.QualityWarning = fmt.Sprintf("blurry:score=%.2f", score)
	}
	return out, nil
}
