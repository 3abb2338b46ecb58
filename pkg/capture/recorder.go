package capture

import (
	"context"
	"fmt"
	"io"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"cognivox-server/pkg/audio"
	"cognivox-server/pkg/errors"
	"cognivox-server/pkg/metrics"
)

// State is the lifecycle position of a recording session
type State int

const (
	StateIdle State = iota
	StateCapturing
	StateCaptured
	StateSubmitted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	case StateCaptured:
		return "captured"
	case StateSubmitted:
		return "submitted"
	default:
		return "unknown"
	}
}

// Slot is a fixed recording position shown to the user
type Slot struct {
	ID    string
	Label string
}

// DefaultSlots are the three recordings of an assessment; the first is the baseline
var DefaultSlots = []Slot{
	{ID: "1", Label: "Recording 1 (Baseline)"},
	{ID: "2", Label: "Recording 2"},
	{ID: "3", Label: "Recording 3"},
}

// SessionInfo is a read-only view of a session
type SessionInfo struct {
	ID              string    `json:"id"`
	Label           string    `json:"label"`
	State           string    `json:"state"`
	DurationSeconds int       `json:"durationSeconds"`
	AudioBytes      int       `json:"audioBytes"`
	CapturedAt      time.Time `json:"capturedAt,omitempty"`
}

// Captured is a session whose audio is ready to hand to analysis
type Captured struct {
	ID              string
	Label           string
	Audio           []byte
	DurationSeconds int
}

type session struct {
	id         string
	label      string
	state      State
	audio      []byte
	duration   int
	capturedAt time.Time
	// submitting is set while a Claim holds the session
	submitting bool
}

func (s *session) info() SessionInfo {
	return SessionInfo{
		ID:              s.id,
		Label:           s.label,
		State:           s.state.String(),
		DurationSeconds: s.duration,
		AudioBytes:      len(s.audio),
		CapturedAt:      s.capturedAt,
	}
}

// activeCapture is the single in-flight capture
type activeCapture struct {
	sessionID string
	started   time.Time
	cancel    context.CancelFunc
	stream    io.ReadCloser
	buf       []byte
	readErr   error
	done      chan struct{}

	mu     sync.Mutex
	halted bool
}

func (c *activeCapture) attach(stream io.ReadCloser) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stream = stream
	if c.halted {
		stream.Close()
	}
}

func (c *activeCapture) halt() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.halted {
		return
	}
	c.halted = true
	c.cancel()
	if c.stream != nil {
		c.stream.Close()
	}
}

func (c *activeCapture) isHalted() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.halted
}

// Recorder owns the recording sessions and enforces that only one captures at a time
type Recorder struct {
	logger      *logrus.Entry
	device      Device
	maxDuration time.Duration
	chunkSize   int
	now         func() time.Time

	// active is the compare-and-set guard for the single capture
	active atomic.Pointer[activeCapture]

	mu       sync.Mutex
	sessions map[string]*session
	order    []string
	listener func(SessionInfo)
}

// RecorderOption customises a Recorder
type RecorderOption func(*Recorder)

// WithMaxDuration stops captures automatically after d. Zero disables the cap.
func WithMaxDuration(d time.Duration) RecorderOption {
	return func(r *Recorder) { r.maxDuration = d }
}

// WithChunkSize sets the read size used when draining the device
func WithChunkSize(n int) RecorderOption {
	return func(r *Recorder) {
		if n > 1 {
			r.chunkSize = n
		}
	}
}

// WithSlots replaces the default three recording slots
func WithSlots(slots []Slot) RecorderOption {
	return func(r *Recorder) {
		r.sessions = make(map[string]*session, len(slots))
		r.order = r.order[:0]
		for _, s := range slots {
			r.sessions[s.ID] = &session{id: s.ID, label: s.Label}
			r.order = append(r.order, s.ID)
		}
	}
}

// NewRecorder creates a recorder with the default slots
func NewRecorder(logger *logrus.Logger, device Device, opts ...RecorderOption) *Recorder {
	r := &Recorder{
		logger:    logger.WithField("component", "recorder"),
		device:    device,
		chunkSize: 3200,
		now:       time.Now,
	}
	WithSlots(DefaultSlots)(r)
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// OnChange registers a callback invoked after every state transition
func (r *Recorder) OnChange(fn func(SessionInfo)) {
	r.mu.Lock()
	r.listener = fn
	r.mu.Unlock()
}

// ActiveSession returns the capturing session ID, or "" when idle
func (r *Recorder) ActiveSession() string {
	if c := r.active.Load(); c != nil {
		return c.sessionID
	}
	return ""
}

// Start begins capturing into sessionID. It fails with ErrAlreadyRecording
// while any session is capturing and leaves that session untouched.
func (r *Recorder) Start(ctx context.Context, sessionID string) error {
	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		return errors.Wrap(errors.ErrUnknownSession, fmt.Sprintf("unknown recording session %q", sessionID))
	}
	if s.state == StateSubmitted {
		r.mu.Unlock()
		return errors.Wrap(errors.ErrFailedPrecondition, fmt.Sprintf("session %s was already submitted", sessionID))
	}
	if s.submitting {
		r.mu.Unlock()
		return errSubmitting(sessionID)
	}
	r.mu.Unlock()

	captureCtx, cancel := context.WithCancel(context.Background())
	c := &activeCapture{
		sessionID: sessionID,
		cancel:    cancel,
		done:      make(chan struct{}),
	}
	if !r.active.CompareAndSwap(nil, c) {
		cancel()
		activeID := r.ActiveSession()
		metrics.RecordCapture("rejected")
		r.logger.WithFields(logrus.Fields{
			"session_id":        sessionID,
			"active_session_id": activeID,
		}).Warn("Capture rejected, another session is recording")
		return errors.NewAlreadyRecording(sessionID, activeID)
	}

	// a Claim may have taken the session between the check above and the CAS
	r.mu.Lock()
	claimed := s.submitting
	r.mu.Unlock()
	if claimed {
		cancel()
		r.active.Store(nil)
		close(c.done)
		return errSubmitting(sessionID)
	}

	// the caller's ctx only bounds opening the device
	openCtx, openCancel := context.WithCancel(captureCtx)
	stop := context.AfterFunc(ctx, openCancel)
	stream, err := r.device.Open(openCtx)
	interrupted := !stop()
	if err == nil && interrupted {
		stream.Close()
		err = ctx.Err()
	}
	if err != nil {
		openCancel()
		cancel()
		r.active.Store(nil)
		close(c.done)
		metrics.RecordCapture("failed")
		r.logger.WithError(err).WithField("session_id", sessionID).Error("Failed to open capture device")
		return err
	}
	c.started = r.now()
	c.attach(stream)

	r.mu.Lock()
	s.state = StateCapturing
	s.audio = nil
	s.duration = 0
	info := s.info()
	listener := r.listener
	r.mu.Unlock()

	metrics.RecordCapture("started")
	metrics.SetCaptureActive(true)
	r.logger.WithFields(logrus.Fields{
		"session_id": sessionID,
		"device":     r.device.Name(),
	}).Info("Capture started")
	if listener != nil {
		listener(info)
	}

	go r.pump(c, openCancel)
	return nil
}

// pump drains the device until it is halted or fails, then finalises the session
func (r *Recorder) pump(c *activeCapture, release context.CancelFunc) {
	defer release()

	var timer *time.Timer
	if r.maxDuration > 0 {
		timer = time.AfterFunc(r.maxDuration, func() {
			r.logger.WithField("session_id", c.sessionID).Info("Maximum capture duration reached")
			c.halt()
		})
	}

	chunk := make([]byte, r.chunkSize)
	for {
		n, err := c.stream.Read(chunk)
		if n > 0 {
			c.buf = append(c.buf, chunk[:n]...)
		}
		if err != nil {
			if err != io.EOF && !c.isHalted() {
				c.readErr = err
			}
			break
		}
	}

	if timer != nil {
		timer.Stop()
	}
	c.halt()
	r.finish(c)
}

func (r *Recorder) finish(c *activeCapture) {
	duration := int(r.now().Sub(c.started) / time.Second)
	format := r.device.Format()

	r.mu.Lock()
	s := r.sessions[c.sessionID]
	if len(c.buf) == 0 {
		s.state = StateIdle
		s.audio = nil
		s.duration = 0
	} else {
		s.state = StateCaptured
		s.audio = audio.EncodeWAV(c.buf, format.SampleRate, format.Channels)
		s.duration = duration
		s.capturedAt = r.now()
	}
	info := s.info()
	listener := r.listener
	r.mu.Unlock()

	r.active.CompareAndSwap(c, nil)
	metrics.SetCaptureActive(false)

	fields := logrus.Fields{
		"session_id": c.sessionID,
		"duration":   duration,
		"bytes":      len(c.buf),
	}
	if c.readErr != nil {
		metrics.RecordCapture("read_error")
		r.logger.WithError(c.readErr).WithFields(fields).Warn("Capture ended by device error")
	} else {
		metrics.RecordCapture("completed")
		metrics.ObserveCaptureDuration(duration)
		r.logger.WithFields(fields).Info("Capture finished")
	}

	close(c.done)
	if listener != nil {
		listener(info)
	}
}

// Stop ends the capture of sessionID and returns the captured session
func (r *Recorder) Stop(sessionID string) (SessionInfo, error) {
	c := r.active.Load()
	if c == nil || c.sessionID != sessionID {
		return SessionInfo{}, errors.Wrap(errors.ErrFailedPrecondition, fmt.Sprintf("session %s is not capturing", sessionID))
	}

	c.halt()
	<-c.done

	r.mu.Lock()
	info := r.sessions[sessionID].info()
	r.mu.Unlock()

	if c.readErr != nil && info.AudioBytes == 0 {
		return info, errors.Wrap(c.readErr, "capture device failed before any audio was recorded")
	}
	if info.AudioBytes == 0 {
		return info, errors.Wrap(errors.ErrNotCaptured, fmt.Sprintf("session %s captured no audio", sessionID))
	}
	return info, nil
}

// Delete discards the captured audio of sessionID and returns it to idle
func (r *Recorder) Delete(sessionID string) error {
	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		return errors.Wrap(errors.ErrUnknownSession, fmt.Sprintf("unknown recording session %q", sessionID))
	}
	if s.submitting {
		r.mu.Unlock()
		return errSubmitting(sessionID)
	}
	switch s.state {
	case StateCapturing:
		r.mu.Unlock()
		return errors.Wrap(errors.ErrFailedPrecondition, fmt.Sprintf("session %s is capturing, stop it first", sessionID))
	case StateSubmitted:
		r.mu.Unlock()
		return errors.Wrap(errors.ErrFailedPrecondition, fmt.Sprintf("session %s was already submitted", sessionID))
	}
	s.state = StateIdle
	s.audio = nil
	s.duration = 0
	s.capturedAt = time.Time{}
	info := s.info()
	listener := r.listener
	r.mu.Unlock()

	r.logger.WithField("session_id", sessionID).Info("Recording deleted")
	if listener != nil {
		listener(info)
	}
	return nil
}

// Load places an existing WAV blob into sessionID as if it had been captured
func (r *Recorder) Load(sessionID string, wav []byte, durationSeconds int) error {
	if len(wav) == 0 {
		return errors.NewInvalidInput("empty audio")
	}

	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		return errors.Wrap(errors.ErrUnknownSession, fmt.Sprintf("unknown recording session %q", sessionID))
	}
	if s.state == StateCapturing || s.state == StateSubmitted {
		r.mu.Unlock()
		return errors.Wrap(errors.ErrFailedPrecondition, fmt.Sprintf("session %s is %s", sessionID, s.state))
	}
	if s.submitting {
		r.mu.Unlock()
		return errSubmitting(sessionID)
	}
	s.state = StateCaptured
	s.audio = wav
	s.duration = durationSeconds
	s.capturedAt = r.now()
	info := s.info()
	listener := r.listener
	r.mu.Unlock()

	if listener != nil {
		listener(info)
	}
	return nil
}

// Audio returns the WAV blob of a captured session
func (r *Recorder) Audio(sessionID string) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, errors.Wrap(errors.ErrUnknownSession, fmt.Sprintf("unknown recording session %q", sessionID))
	}
	if s.state != StateCaptured || len(s.audio) == 0 {
		return nil, errors.Wrap(errors.ErrNotCaptured, fmt.Sprintf("session %s has no captured audio", sessionID))
	}
	return s.audio, nil
}

// Sessions returns every session in slot order
func (r *Recorder) Sessions() []SessionInfo {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]SessionInfo, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.sessions[id].info())
	}
	return out
}

// Captured returns the sessions holding audio, in slot order
func (r *Recorder) Captured() []Captured {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []Captured
	for _, id := range r.order {
		s := r.sessions[id]
		if s.state == StateCaptured && len(s.audio) > 0 {
			out = append(out, Captured{ID: s.id, Label: s.label, Audio: s.audio, DurationSeconds: s.duration})
		}
	}
	return out
}

// Claim returns the captured sessions and holds them for submission: until
// release is called they cannot be restarted, deleted or replaced. Sessions
// already held by another Claim are skipped.
func (r *Recorder) Claim() (sessions []Captured, release func()) {
	r.mu.Lock()
	defer r.mu.Unlock()

	active := r.ActiveSession()
	var ids []string
	for _, id := range r.order {
		s := r.sessions[id]
		if s.state != StateCaptured || len(s.audio) == 0 || s.submitting || id == active {
			continue
		}
		s.submitting = true
		ids = append(ids, id)
		sessions = append(sessions, Captured{ID: s.id, Label: s.label, Audio: s.audio, DurationSeconds: s.duration})
	}

	var once sync.Once
	release = func() {
		once.Do(func() {
			r.mu.Lock()
			defer r.mu.Unlock()
			for _, id := range ids {
				r.sessions[id].submitting = false
			}
		})
	}
	return sessions, release
}

func errSubmitting(sessionID string) error {
	return errors.Wrap(errors.ErrFailedPrecondition, fmt.Sprintf("session %s is being submitted", sessionID))
}

// MarkSubmitted moves a captured session to its terminal state and releases the buffer
func (r *Recorder) MarkSubmitted(sessionID string) error {
	r.mu.Lock()
	s, ok := r.sessions[sessionID]
	if !ok {
		r.mu.Unlock()
		return errors.Wrap(errors.ErrUnknownSession, fmt.Sprintf("unknown recording session %q", sessionID))
	}
	if s.state != StateCaptured {
		r.mu.Unlock()
		return errors.Wrap(errors.ErrNotCaptured, fmt.Sprintf("session %s is %s", sessionID, s.state))
	}
	s.state = StateSubmitted
	s.submitting = false
	s.audio = nil
	info := s.info()
	listener := r.listener
	r.mu.Unlock()

	if listener != nil {
		listener(info)
	}
	return nil
}

// Reset returns every session to idle. It fails while a capture is running.
func (r *Recorder) Reset() error {
	if id := r.ActiveSession(); id != "" {
		return errors.Wrap(errors.ErrFailedPrecondition, fmt.Sprintf("session %s is capturing", id))
	}

	r.mu.Lock()
	for _, s := range r.sessions {
		if s.submitting {
			r.mu.Unlock()
			return errSubmitting(s.id)
		}
	}
	for _, s := range r.sessions {
		s.state = StateIdle
		s.audio = nil
		s.duration = 0
		s.capturedAt = time.Time{}
	}
	r.mu.Unlock()
	return nil
}

// Close halts any running capture and waits for the device to be released
func (r *Recorder) Close() error {
	if c := r.active.Load(); c != nil {
		c.halt()
		<-c.done
	}
	return nil
}
