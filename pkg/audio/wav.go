package audio

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"sync"
)

const wavHeaderSize = 44

// maxFmtChunkSize bounds the fmt chunk; WAVE_FORMAT_EXTENSIBLE needs 40 bytes
const maxFmtChunkSize = 1024

// IsWAV reports whether data starts with a RIFF/WAVE header
func IsWAV(data []byte) bool {
	return len(data) >= 12 && string(data[0:4]) == "RIFF" && string(data[8:12]) == "WAVE"
}

func wavHeader(sampleRate, channels int, dataSize uint32) []byte {
	header := make([]byte, wavHeaderSize)

	copy(header[0:], "RIFF")
	binary.LittleEndian.PutUint32(header[4:], dataSize+36)
	copy(header[8:], "WAVE")
	copy(header[12:], "fmt ")
	binary.LittleEndian.PutUint32(header[16:], 16)
	// PCM
	binary.LittleEndian.PutUint16(header[20:], 1)
	binary.LittleEndian.PutUint16(header[22:], uint16(channels))
	binary.LittleEndian.PutUint32(header[24:], uint32(sampleRate))
	// byte rate and block align for 16-bit samples
	binary.LittleEndian.PutUint32(header[28:], uint32(sampleRate*channels*2))
	binary.LittleEndian.PutUint16(header[32:], uint16(channels*2))
	binary.LittleEndian.PutUint16(header[34:], 16)
	copy(header[36:], "data")
	binary.LittleEndian.PutUint32(header[40:], dataSize)

	return header
}

// EncodeWAV wraps raw 16-bit little-endian PCM in a WAV container
func EncodeWAV(pcm []byte, sampleRate, channels int) []byte {
	if channels <= 0 {
		channels = 1
	}
	out := make([]byte, 0, wavHeaderSize+len(pcm))
	out = append(out, wavHeader(sampleRate, channels, uint32(len(pcm)))...)
	return append(out, pcm...)
}

// WAVInfo describes the fmt chunk of a decoded WAV blob
type WAVInfo struct {
	SampleRate    int
	Channels      int
	BitsPerSample int
}

// DecodeWAV parses a 16-bit PCM WAV blob into mono PCM
func DecodeWAV(data []byte) (PCM, WAVInfo, error) {
	var info WAVInfo
	r := bytes.NewReader(data)

	header := make([]byte, 12)
	if _, err := io.ReadFull(r, header); err != nil {
		return PCM{}, info, fmt.Errorf("short WAV header: %w", err)
	}
	if !IsWAV(header) {
		return PCM{}, info, fmt.Errorf("missing RIFF/WAVE header")
	}

	var pcm []byte
	var fmtFound, dataFound bool
	for !fmtFound || !dataFound {
		chunkHeader := make([]byte, 8)
		if _, err := io.ReadFull(r, chunkHeader); err != nil {
			if err == io.EOF && fmtFound {
				// recorders that die mid-write leave no data chunk
				break
			}
			return PCM{}, info, fmt.Errorf("reading chunk header: %w", err)
		}
		chunkID := string(chunkHeader[0:4])
		chunkSize := int64(binary.LittleEndian.Uint32(chunkHeader[4:8]))

		switch chunkID {
		case "fmt ":
			if chunkSize < 16 {
				return PCM{}, info, fmt.Errorf("fmt chunk too small: %d", chunkSize)
			}
			if chunkSize > maxFmtChunkSize || chunkSize > int64(r.Len()) {
				return PCM{}, info, fmt.Errorf("fmt chunk size %d exceeds %d remaining bytes", chunkSize, r.Len())
			}
			fmtChunk := make([]byte, chunkSize)
			if _, err := io.ReadFull(r, fmtChunk); err != nil {
				return PCM{}, info, err
			}
			if format := binary.LittleEndian.Uint16(fmtChunk[0:2]); format != 1 {
				return PCM{}, info, fmt.Errorf("unsupported audio format: %d", format)
			}
			info.Channels = int(binary.LittleEndian.Uint16(fmtChunk[2:4]))
			info.SampleRate = int(binary.LittleEndian.Uint32(fmtChunk[4:8]))
			info.BitsPerSample = int(binary.LittleEndian.Uint16(fmtChunk[14:16]))
			if info.BitsPerSample != 16 {
				return PCM{}, info, fmt.Errorf("unsupported bits per sample: %d", info.BitsPerSample)
			}
			if info.Channels <= 0 || info.SampleRate <= 0 {
				return PCM{}, info, fmt.Errorf("invalid format: %d channels at %d Hz", info.Channels, info.SampleRate)
			}
			fmtFound = true
		case "data":
			// streaming writers leave the size at 0 or 0xFFFFFFFF
			remaining := int64(r.Len())
			if chunkSize == 0 || chunkSize > remaining {
				chunkSize = remaining
			}
			pcm = make([]byte, chunkSize)
			if _, err := io.ReadFull(r, pcm); err != nil {
				return PCM{}, info, err
			}
			dataFound = true
		default:
			if _, err := r.Seek(chunkSize+chunkSize%2, io.SeekCurrent); err != nil {
				return PCM{}, info, err
			}
		}
	}

	return FromS16LE(pcm, info.Channels, info.SampleRate), info, nil
}

// WAVWriter streams 16-bit PCM into a WAV container and patches the sizes on Finalize
type WAVWriter struct {
	w            io.WriteSeeker
	sampleRate   int
	channels     int
	bytesWritten uint32
	finalized    bool
	mu           sync.Mutex
}

// NewWAVWriter writes a provisional header and returns a writer for PCM payload
func NewWAVWriter(w io.WriteSeeker, sampleRate, channels int) (*WAVWriter, error) {
	if w == nil {
		return nil, fmt.Errorf("nil destination for WAV writer")
	}
	if sampleRate <= 0 {
		sampleRate = 16000
	}
	if channels <= 0 {
		channels = 1
	}

	if _, err := w.Write(wavHeader(sampleRate, channels, 0)); err != nil {
		return nil, err
	}
	return &WAVWriter{w: w, sampleRate: sampleRate, channels: channels}, nil
}

// Write appends PCM bytes
func (ww *WAVWriter) Write(p []byte) (int, error) {
	ww.mu.Lock()
	defer ww.mu.Unlock()

	if ww.finalized {
		return 0, fmt.Errorf("write after finalize")
	}
	n, err := ww.w.Write(p)
	ww.bytesWritten += uint32(n)
	return n, err
}

// Finalize rewrites the header with the final data size
func (ww *WAVWriter) Finalize() error {
	ww.mu.Lock()
	defer ww.mu.Unlock()

	if ww.finalized {
		return nil
	}
	if _, err := ww.w.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if _, err := ww.w.Write(wavHeader(ww.sampleRate, ww.channels, ww.bytesWritten)); err != nil {
		return err
	}
	if _, err := ww.w.Seek(0, io.SeekEnd); err != nil {
		return err
	}
	ww.finalized = true
	return nil
}
