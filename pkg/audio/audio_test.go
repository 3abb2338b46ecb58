package audio

import (
	"context"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sine(freq float64, rate int, d time.Duration) PCM {
	n := int(float64(rate) * d.Seconds())
	samples := make([]float64, n)
	for i := range samples {
		samples[i] = 0.5 * math.Sin(2*math.Pi*freq*float64(i)/float64(rate))
	}
	return PCM{Samples: samples, SampleRate: rate}
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestWAVRoundTrip(t *testing.T) {
	original := sine(440, 16000, 250*time.Millisecond)
	blob := original.WAV()

	require.True(t, IsWAV(blob))
	assert.Equal(t, wavHeaderSize+len(original.Samples)*2, len(blob))

	decoded, info, err := DecodeWAV(blob)
	require.NoError(t, err)
	assert.Equal(t, 16000, info.SampleRate)
	assert.Equal(t, 1, info.Channels)
	require.Len(t, decoded.Samples, len(original.Samples))
	for i := range decoded.Samples {
		assert.InDelta(t, original.Samples[i], decoded.Samples[i], 1e-3)
	}
	assert.Equal(t, 250*time.Millisecond, decoded.Duration())
}

func TestDecodeStereoDownmix(t *testing.T) {
	pcm := make([]byte, 8)
	binary.LittleEndian.PutUint16(pcm[0:], uint16(int16(16384)))
	binary.LittleEndian.PutUint16(pcm[2:], uint16(0xC000))
	binary.LittleEndian.PutUint16(pcm[4:], uint16(int16(16384)))
	binary.LittleEndian.PutUint16(pcm[6:], uint16(int16(16384)))

	decoded, info, err := DecodeWAV(EncodeWAV(pcm, 8000, 2))
	require.NoError(t, err)
	assert.Equal(t, 2, info.Channels)
	require.Len(t, decoded.Samples, 2)
	assert.InDelta(t, 0.0, decoded.Samples[0], 1e-9)
	assert.InDelta(t, 0.5, decoded.Samples[1], 1e-9)
}

func TestDecodeWAVRejectsBadInput(t *testing.T) {
	_, _, err := DecodeWAV([]byte("not a wav file at all"))
	assert.Error(t, err)

	// 8-bit PCM
	blob := EncodeWAV([]byte{1, 2, 3, 4}, 8000, 1)
	binary.LittleEndian.PutUint16(blob[34:], 8)
	_, _, err = DecodeWAV(blob)
	assert.ErrorContains(t, err, "bits per sample")
}

func TestDecodeWAVRejectsOversizedFmtChunk(t *testing.T) {
	blob := make([]byte, 36)
	copy(blob[0:], "RIFF")
	binary.LittleEndian.PutUint32(blob[4:], 28)
	copy(blob[8:], "WAVE")
	copy(blob[12:], "fmt ")
	binary.LittleEndian.PutUint32(blob[16:], 0xFFFFFFF0)

	var before, after runtime.MemStats
	runtime.ReadMemStats(&before)
	_, _, err := DecodeWAV(blob)
	runtime.ReadMemStats(&after)

	require.Error(t, err)
	assert.ErrorContains(t, err, "fmt chunk size")
	assert.Less(t, after.TotalAlloc-before.TotalAlloc, uint64(1<<20))

	// plausible size but longer than the blob
	binary.LittleEndian.PutUint32(blob[16:], 40)
	_, _, err = DecodeWAV(blob)
	assert.ErrorContains(t, err, "fmt chunk size")
}

func TestWAVWriterFinalize(t *testing.T) {
	path := filepath.Join(t.TempDir(), "capture.wav")
	f, err := os.Create(path)
	require.NoError(t, err)

	w, err := NewWAVWriter(f, 16000, 1)
	require.NoError(t, err)
	payload := sine(220, 16000, 100*time.Millisecond).S16LE()
	_, err = w.Write(payload)
	require.NoError(t, err)
	require.NoError(t, w.Finalize())
	require.NoError(t, f.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, uint32(len(payload)), binary.LittleEndian.Uint32(data[40:44]))
	assert.Equal(t, uint32(len(payload)+36), binary.LittleEndian.Uint32(data[4:8]))

	_, err = w.Write(payload)
	assert.Error(t, err)
}

func TestResampleSameRateIsPassthrough(t *testing.T) {
	p := sine(440, 16000, 10*time.Millisecond)
	out, err := Resample(p, 16000)
	require.NoError(t, err)
	assert.Equal(t, p.Samples, out.Samples)

	_, err = Resample(p, 0)
	assert.Error(t, err)
}

func TestResampleChangesRate(t *testing.T) {
	p := sine(440, 48000, time.Second)
	out, err := Resample(p, 16000)
	require.NoError(t, err)
	assert.Equal(t, 16000, out.SampleRate)
	// filter delay may hold back a few samples
	assert.InDelta(t, 16000, len(out.Samples), 1000)
}

func TestDecoderTranscodesNonWAV(t *testing.T) {
	d := NewDecoder(quietLogger(), "", 16000)

	var gotInput []byte
	d.transcode = func(ctx context.Context, ffmpegPath string, input []byte, rate int) ([]byte, error) {
		gotInput = input
		assert.Equal(t, "ffmpeg", ffmpegPath)
		return sine(300, rate, 200*time.Millisecond).WAV(), nil
	}

	webm := []byte{0x1a, 0x45, 0xdf, 0xa3, 0x00}
	pcm, err := d.Decode(context.Background(), webm)
	require.NoError(t, err)
	assert.Equal(t, webm, gotInput)
	assert.Equal(t, 16000, pcm.SampleRate)
	assert.Len(t, pcm.Samples, 3200)
}

func TestDecoderErrors(t *testing.T) {
	d := NewDecoder(quietLogger(), "ffmpeg", 16000)
	d.transcode = func(context.Context, string, []byte, int) ([]byte, error) {
		return nil, errors.New("exit status 1")
	}

	_, err := d.Decode(context.Background(), nil)
	assert.Error(t, err)

	_, err = d.Decode(context.Background(), []byte("OggS"))
	assert.ErrorContains(t, err, "transcode failed")

	_, err = d.Decode(context.Background(), EncodeWAV(nil, 16000, 1))
	assert.ErrorContains(t, err, "no samples")
}

func TestEnergy(t *testing.T) {
	assert.Equal(t, 0.0, PCM{Samples: make([]float64, 100)}.Energy())
	assert.InDelta(t, 0.125, sine(100, 8000, time.Second).Energy(), 1e-3)
}
