// Package acoustic implements the speech risk-scoring analyzer (spec.md
// §4.5): accumulate a window of PCM audio, derive spectral-ish features,
// and optionally classify emotion. No FFT/MFCC library exists anywhere in
// the retrieved example pack, so the feature extraction below is a small,
// explicitly documented heuristic over math.Log/math.Sqrt rather than a
// faithful MFCC — see DESIGN.md for the justification.
package acoustic

import (
	"math"
)

// Window is one accumulated window of mono PCM16 audio ready for analysis.
type Window struct {
	Samples    []int16
	SampleRate int
	Channels   int
}

// Features is the computed feature summary for a Window.
type Features struct {
	Energy    float64
	MFCCMean  float64
	RiskScore float64
}

// Analyze computes Features for w. RiskScore is the documented heuristic
// risk_score = mfcc_mean * energy (spec.md §4.5 step 2).
func Analyze(w Window) Features {
	energy := rmsEnergy(w.Samples)
	mfccMean := mfccMeanProxy(w.Samples, w.SampleRate)
	return Features{
		Energy:    energy,
		MFCCMean:  mfccMean,
		RiskScore: mfccMean * energy,
	}
}

// AudioSeconds computes the cumulative analyzed duration of a window
// (spec.md §4.5 step 4).
func AudioSeconds(totalSamples, sampleRate, channels int) float64 {
	if sampleRate <= 0 || channels <= 0 {
		return 0
	}
	return float64(totalSamples) / float64(sampleRate*channels)
}

// rmsEnergy is the root-mean-square amplitude, normalized to [0,1] by the
// int16 full-scale range.
func rmsEnergy(samples []int16) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sumSq float64
	for _, s := range samples {
		v := float64(s) / math.MaxInt16
		sumSq += v * v
	}
	return math.Sqrt(sumSq / float64(len(samples)))
}

// mfccMeanProxy approximates the mean of the first MFCC-like coefficient
// by folding the window into sub-frames, taking the log-energy of each,
// and averaging. It tracks loudness contour rather than true cepstral
// structure, but is monotonic in the same direction real MFCC-mean energy
// features move in for this gateway's purpose: a coarse risk heuristic,
// not a perceptual or forensic measurement.
func mfccMeanProxy(samples []int16, sampleRate int) float64 {
	if len(samples) == 0 {
		return 0
	}
	frameSize := sampleRate / 100 // 10ms sub-frames
	if frameSize < 1 {
		frameSize = len(samples)
	}

	var sum float64
	count := 0
	for start := 0; start < len(samples); start += frameSize {
		end := start + frameSize
		if end > len(samples) {
			end = len(samples)
		}
		frame := samples[start:end]
		if len(frame) == 0 {
			continue
		}
		var sumAbs float64
		for _, s := range frame {
			sumAbs += math.Abs(float64(s))
		}
		meanAbs := sumAbs / float64(len(frame))
		sum += math.Log1p(meanAbs)
		count++
	}
	if count == 0 {
		return 0
	}
	return sum / float64(count)
}
