package capture

import (
	"bufio"
	"bytes"
	"context"
	goerrors "errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"cognivox-server/pkg/errors"
)

// Format describes the raw PCM produced by a device
type Format struct {
	SampleRate int
	Channels   int
}

// Device yields raw signed 16-bit little-endian PCM in its Format
type Device interface {
	Name() string
	Format() Format
	Open(ctx context.Context) (io.ReadCloser, error)
}

// startupGrace bounds how long Open waits for a recorder to fail before treating it as started
const startupGrace = 300 * time.Millisecond

// CommandDevice records by running an external recorder (arecord, ffmpeg, sox)
// and reading PCM from its stdout.
type CommandDevice struct {
	logger  *logrus.Logger
	command string
	args    []string
	device  string
	format  Format
}

// NewCommandDevice creates a device around command. When args is empty a
// default argument list is derived from the command's base name.
func NewCommandDevice(logger *logrus.Logger, command string, args []string, device string, format Format) *CommandDevice {
	if format.SampleRate <= 0 {
		format.SampleRate = 16000
	}
	if format.Channels <= 0 {
		format.Channels = 1
	}
	if device == "" {
		device = "default"
	}
	if len(args) == 0 {
		args = defaultRecorderArgs(command, device, format)
	}
	return &CommandDevice{
		logger:  logger,
		command: command,
		args:    args,
		device:  device,
		format:  format,
	}
}

func defaultRecorderArgs(command, device string, format Format) []string {
	rate := strconv.Itoa(format.SampleRate)
	channels := strconv.Itoa(format.Channels)

	switch filepath.Base(command) {
	case "ffmpeg":
		return []string{"-hide_banner", "-loglevel", "error", "-f", "alsa", "-i", device,
			"-ac", channels, "-ar", rate, "-f", "s16le", "pipe:1"}
	case "sox", "rec":
		return []string{"-q", "-d", "-t", "raw", "-b", "16", "-e", "signed-integer",
			"-r", rate, "-c", channels, "-"}
	default:
		return []string{"-q", "-D", device, "-f", "S16_LE", "-r", rate, "-c", channels, "-t", "raw"}
	}
}

// Name returns the ALSA/pulse device name
func (d *CommandDevice) Name() string {
	return d.device
}

// Format returns the PCM format requested from the recorder
func (d *CommandDevice) Format() Format {
	return d.format
}

// Open starts the recorder. Failures that surface within the startup grace
// period, such as a denied microphone, are returned here rather than from Read.
func (d *CommandDevice) Open(ctx context.Context) (io.ReadCloser, error) {
	cmd := exec.CommandContext(ctx, d.command, d.args...)
	stderr := &syncBuffer{}
	cmd.Stderr = stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to attach recorder stdout: %w", err)
	}

	if err := cmd.Start(); err != nil {
		return nil, classifyRecorderError(d.device, err, "")
	}

	d.logger.WithFields(logrus.Fields{
		"command": d.command,
		"device":  d.device,
		"pid":     cmd.Process.Pid,
	}).Debug("Recorder started")

	rc := &commandReader{
		cmd:    cmd,
		reader: bufio.NewReaderSize(stdout, 64*1024),
		stderr: stderr,
		ready:  make(chan struct{}),
	}
	go func() {
		_, rc.peekErr = rc.reader.Peek(1)
		close(rc.ready)
	}()

	select {
	case <-rc.ready:
		if rc.peekErr != nil {
			waitErr := cmd.Wait()
			if waitErr == nil {
				waitErr = rc.peekErr
			}
			return nil, classifyRecorderError(d.device, waitErr, stderr.String())
		}
	case <-time.After(startupGrace):
		// slow devices produce nothing for a while; the pump will see later failures
	}

	return rc, nil
}

type commandReader struct {
	cmd     *exec.Cmd
	reader  *bufio.Reader
	stderr  *syncBuffer
	ready   chan struct{}
	peekErr error
	once    sync.Once
}

func (r *commandReader) Read(p []byte) (int, error) {
	// the startup probe owns the reader until it returns
	<-r.ready
	return r.reader.Read(p)
}

// Close stops the recorder and reaps it
func (r *commandReader) Close() error {
	r.once.Do(func() {
		if r.cmd.Process != nil {
			_ = r.cmd.Process.Signal(os.Interrupt)
		}
		done := make(chan struct{})
		go func() {
			_ = r.cmd.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(2 * time.Second):
			_ = r.cmd.Process.Kill()
			<-done
		}
	})
	return nil
}

// classifyRecorderError maps recorder start failures to the capture error taxonomy
func classifyRecorderError(device string, err error, stderr string) error {
	lower := strings.ToLower(stderr)

	switch {
	case goerrors.Is(err, syscall.EACCES), goerrors.Is(err, os.ErrPermission),
		strings.Contains(lower, "permission denied"), strings.Contains(lower, "not allowed"):
		return errors.NewPermissionDenied(device, err)
	case goerrors.Is(err, syscall.EBUSY), strings.Contains(lower, "device or resource busy"):
		return errors.Wrap(errors.ErrUnavailable, fmt.Sprintf("capture device %s is busy", device),
			map[string]interface{}{"device": device})
	case goerrors.Is(err, exec.ErrNotFound):
		return errors.Wrap(errors.ErrUnavailable, "recorder binary not found",
			map[string]interface{}{"device": device, "cause": err.Error()})
	}

	msg := fmt.Sprintf("recorder failed on %s", device)
	if s := strings.TrimSpace(stderr); s != "" {
		msg = fmt.Sprintf("%s: %s", msg, s)
	}
	return errors.Wrap(err, msg, map[string]interface{}{"device": device})
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// ReaderDevice adapts any stream factory to a Device; used for stdin capture and tests
type ReaderDevice struct {
	name   string
	format Format
	open   func(ctx context.Context) (io.ReadCloser, error)
}

// NewReaderDevice creates a device that calls open for every capture
func NewReaderDevice(name string, format Format, open func(ctx context.Context) (io.ReadCloser, error)) *ReaderDevice {
	if format.SampleRate <= 0 {
		format.SampleRate = 16000
	}
	if format.Channels <= 0 {
		format.Channels = 1
	}
	return &ReaderDevice{name: name, format: format, open: open}
}

// NewStdinDevice reads raw PCM piped into the process
func NewStdinDevice(format Format) *ReaderDevice {
	return NewReaderDevice("stdin", format, func(context.Context) (io.ReadCloser, error) {
		return io.NopCloser(os.Stdin), nil
	})
}

func (d *ReaderDevice) Name() string   { return d.name }
func (d *ReaderDevice) Format() Format { return d.format }

func (d *ReaderDevice) Open(ctx context.Context) (io.ReadCloser, error) {
	return d.open(ctx)
}
