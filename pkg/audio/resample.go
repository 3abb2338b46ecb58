package audio

import (
	"fmt"

	resampling "github.com/tphakala/go-audio-resampling"
)

// Resample converts p to targetRate. Buffers already at the target rate are returned as is.
func Resample(p PCM, targetRate int) (PCM, error) {
	if targetRate <= 0 {
		return PCM{}, fmt.Errorf("invalid target sample rate: %d", targetRate)
	}
	if p.SampleRate == targetRate || len(p.Samples) == 0 {
		return PCM{Samples: p.Samples, SampleRate: targetRate}, nil
	}
	if p.SampleRate <= 0 {
		return PCM{}, fmt.Errorf("invalid source sample rate: %d", p.SampleRate)
	}

	resampler, err := resampling.New(&resampling.Config{
		InputRate:  float64(p.SampleRate),
		OutputRate: float64(targetRate),
		Channels:   1,
		Quality:    resampling.QualitySpec{Preset: resampling.QualityHigh},
	})
	if err != nil {
		return PCM{}, fmt.Errorf("failed to create resampler: %w", err)
	}

	out, err := resampler.Process(p.Samples)
	if err != nil {
		return PCM{}, fmt.Errorf("resample error: %w", err)
	}

	return PCM{Samples: out, SampleRate: targetRate}, nil
}
