package audio

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strconv"

	"github.com/sirupsen/logrus"
)

// transcodeFunc converts an arbitrary container (webm, ogg, mp3) to a WAV blob
type transcodeFunc func(ctx context.Context, ffmpegPath string, input []byte, sampleRate int) ([]byte, error)

// Decoder turns uploaded or captured blobs into mono PCM at a fixed rate
type Decoder struct {
	logger     *logrus.Logger
	ffmpegPath string
	targetRate int
	transcode  transcodeFunc
}

// NewDecoder creates a decoder that resamples everything to targetRate.
// Non-WAV input is piped through ffmpegPath ("ffmpeg" when empty).
func NewDecoder(logger *logrus.Logger, ffmpegPath string, targetRate int) *Decoder {
	if ffmpegPath == "" {
		ffmpegPath = "ffmpeg"
	}
	if targetRate <= 0 {
		targetRate = 16000
	}
	return &Decoder{
		logger:     logger,
		ffmpegPath: ffmpegPath,
		targetRate: targetRate,
		transcode:  ffmpegTranscode,
	}
}

// TargetRate returns the sample rate of decoded output
func (d *Decoder) TargetRate() int {
	return d.targetRate
}

// Decode parses blob and resamples it to the decoder's target rate
func (d *Decoder) Decode(ctx context.Context, blob []byte) (PCM, error) {
	if len(blob) == 0 {
		return PCM{}, fmt.Errorf("empty audio blob")
	}

	wav := blob
	if !IsWAV(blob) {
		d.logger.WithField("bytes", len(blob)).Debug("Non-WAV audio, transcoding with ffmpeg")
		converted, err := d.transcode(ctx, d.ffmpegPath, blob, d.targetRate)
		if err != nil {
			return PCM{}, fmt.Errorf("transcode failed: %w", err)
		}
		wav = converted
	}

	pcm, info, err := DecodeWAV(wav)
	if err != nil {
		return PCM{}, err
	}
	if pcm.Empty() {
		return PCM{}, fmt.Errorf("audio contains no samples")
	}

	resampled, err := Resample(pcm, d.targetRate)
	if err != nil {
		return PCM{}, err
	}

	d.logger.WithFields(logrus.Fields{
		"source_rate": info.SampleRate,
		"channels":    info.Channels,
		"target_rate": d.targetRate,
		"duration":    resampled.Duration().String(),
	}).Debug("Decoded audio")

	return resampled, nil
}

func ffmpegTranscode(ctx context.Context, ffmpegPath string, input []byte, sampleRate int) ([]byte, error) {
	cmd := exec.CommandContext(ctx, ffmpegPath,
		"-hide_banner", "-loglevel", "error",
		"-i", "pipe:0",
		"-ac", "1",
		"-ar", strconv.Itoa(sampleRate),
		"-f", "wav",
		"-acodec", "pcm_s16le",
		"pipe:1",
	)
	cmd.Stdin = bytes.NewReader(input)

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("%s: %w (%s)", ffmpegPath, err, bytes.TrimSpace(stderr.Bytes()))
	}
	return stdout.Bytes(), nil
}
