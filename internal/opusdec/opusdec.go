// Package opusdec adapts github.com/hraban/opus into audioproc.Decoder.
// Grounded on this pack's richinsley-bunghole internal/audio package,
// which already depends on hraban/opus for its capture pipeline (there as
// an encoder; here as the matching decoder for inbound browser audio
// tracks, which WebRTC always carries as Opus).
package opusdec

import (
	"fmt"

	"github.com/hraban/opus"
)

// maxFrameMs bounds the largest Opus frame duration the decoder must
// support in one call, per the Opus spec's 2.5-60ms frame sizes.
const maxFrameMs = 60

// Decoder decodes one track's Opus RTP payloads into mono PCM16. Decoder
// state (the "opus.Decoder") is per-stream and must not be shared across
// concurrent tracks.
type Decoder struct {
	dec        *opus.Decoder
	sampleRate int
	channels   int
	scratch    []int16
}

// New builds a Decoder for a stream encoded at sampleRate with channels
// channels (WebRTC browsers negotiate Opus at 48000/2 almost universally).
func New(sampleRate, channels int) (*Decoder, error) {
	dec, err := opus.NewDecoder(sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("opusdec: new decoder: %w", err)
	}
	maxSamples := sampleRate * maxFrameMs / 1000 * channels
	return &Decoder{
		dec:        dec,
		sampleRate: sampleRate,
		channels:   channels,
		scratch:    make([]int16, maxSamples),
	}, nil
}

// Decode returns mono PCM16 samples for one Opus RTP payload. Stereo
// input is downmixed by averaging channel pairs, since acoustic.Analyze
// operates on a single channel.
func (d *Decoder) Decode(raw []byte) ([]int16, error) {
	n, err := d.dec.Decode(raw, d.scratch)
	if err != nil {
		return nil, fmt.Errorf("opusdec: decode: %w", err)
	}
	samples := d.scratch[:n*d.channels]
	if d.channels == 1 {
		out := make([]int16, len(samples))
		copy(out, samples)
		return out, nil
	}
	return downmix(samples, d.channels), nil
}

func downmix(samples []int16, channels int) []int16 {
	mono := make([]int16, len(samples)/channels)
	for i := range mono {
		var sum int32
		for c := 0; c < channels; c++ {
			sum += int32(samples[i*channels+c])
		}
		mono[i] = int16(sum / int32(channels))
	}
	return mono
}
