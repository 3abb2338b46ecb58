package audio

import (
	"encoding/binary"
	"math"
	"time"
)

// PCM is mono audio normalised to [-1, 1]
type PCM struct {
	Samples    []float64
	SampleRate int
}

// Duration returns the playback length of the buffer
func (p PCM) Duration() time.Duration {
	if p.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(p.Samples)) / float64(p.SampleRate) * float64(time.Second))
}

// Empty reports whether the buffer holds no samples
func (p PCM) Empty() bool {
	return len(p.Samples) == 0
}

// Energy returns the mean squared amplitude of the buffer, 0 for silence
func (p PCM) Energy() float64 {
	if len(p.Samples) == 0 {
		return 0
	}
	total := 0.0
	for _, s := range p.Samples {
		total += s * s
	}
	return total / float64(len(p.Samples))
}

// FromInt16 converts interleaved 16-bit samples to mono PCM, averaging channels
func FromInt16(samples []int16, channels, sampleRate int) PCM {
	if channels <= 0 {
		channels = 1
	}
	frames := len(samples) / channels
	out := make([]float64, frames)
	for i := 0; i < frames; i++ {
		sum := 0.0
		for c := 0; c < channels; c++ {
			sum += float64(samples[i*channels+c]) / 32768.0
		}
		out[i] = sum / float64(channels)
	}
	return PCM{Samples: out, SampleRate: sampleRate}
}

// FromS16LE converts raw little-endian 16-bit PCM bytes to mono PCM.
// A trailing odd byte is ignored.
func FromS16LE(data []byte, channels, sampleRate int) PCM {
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return FromInt16(samples, channels, sampleRate)
}

// S16LE renders the buffer as little-endian 16-bit PCM, clipping out of range samples
func (p PCM) S16LE() []byte {
	out := make([]byte, len(p.Samples)*2)
	for i, s := range p.Samples {
		var v int16
		switch {
		case s >= 1.0:
			v = math.MaxInt16
		case s <= -1.0:
			v = math.MinInt16
		default:
			v = int16(s * 32767.0)
		}
		binary.LittleEndian.PutUint16(out[i*2:], uint16(v))
	}
	return out
}

// WAV renders the buffer as a mono 16-bit WAV blob
func (p PCM) WAV() []byte {
	return EncodeWAV(p.S16LE(), p.SampleRate, 1)
}
