// Package submission turns captured recording sessions into stored
// voicerecordings documents.
package submission

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"cognivox-server/pkg/analysis"
	"cognivox-server/pkg/capture"
	cerrors "cognivox-server/pkg/errors"
	"cognivox-server/pkg/sentiment"
	"cognivox-server/pkg/store"
)

// ErrNothingToSubmit is returned when no session holds captured audio
var ErrNothingToSubmit = errors.New("record at least one voice sample before analyzing")

// Stress at or above this value on a NEGATIVE verdict produces an analysis marker
const MarkerStressThreshold = 70.0

// Marker moves a session to its submitted state
type Marker interface {
	MarkSubmitted(sessionID string) error
}

// Outcome describes one written recording
type Outcome struct {
	SessionID string                `json:"sessionId"`
	Recording store.StoredRecording `json:"recording"`
	Analysis  *analysis.Result      `json:"analysis,omitempty"`
	Marker    *store.AnalysisMarker `json:"marker,omitempty"`
}

// Report summarises a submission
type Report struct {
	Outcomes []Outcome `json:"outcomes"`
}

// Submitter writes captured sessions to the store one at a time
type Submitter struct {
	logger   *logrus.Entry
	store    store.Store
	marker   Marker
	analyzer analysis.Analyzer

	persistDir string
	notify     []func(context.Context, Outcome)

	// mu serialises Submit calls and guards rng
	mu  sync.Mutex
	rng *rand.Rand
	now func() time.Time
}

// Option configures a Submitter
type Option func(*Submitter)

// WithAnalyzer analyses every session before it is stored
func WithAnalyzer(a analysis.Analyzer) Option {
	return func(s *Submitter) { s.analyzer = a }
}

// WithPersistDir writes each recording as a WAV file under dir
func WithPersistDir(dir string) Option {
	return func(s *Submitter) { s.persistDir = dir }
}

// WithNotifier registers a callback invoked after each successful write
func WithNotifier(fn func(context.Context, Outcome)) Option {
	return func(s *Submitter) { s.notify = append(s.notify, fn) }
}

// WithRand replaces the placeholder score source
func WithRand(rng *rand.Rand) Option {
	return func(s *Submitter) { s.rng = rng }
}

// NewSubmitter creates a Submitter. marker may be nil.
func NewSubmitter(logger *logrus.Logger, st store.Store, marker Marker, opts ...Option) *Submitter {
	s := &Submitter{
		logger: logger.WithField("component", "submission"),
		store:  st,
		marker: marker,
		rng:    rand.New(rand.NewSource(time.Now().UnixNano())),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit stores one voicerecordings document per session, in order. The first
// failure stops the batch; documents already written are kept.
func (s *Submitter) Submit(ctx context.Context, sessions []capture.Captured) (*Report, error) {
	if len(sessions) == 0 {
		return nil, ErrNothingToSubmit
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	report := &Report{Outcomes: make([]Outcome, 0, len(sessions))}
	for _, sess := range sessions {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		outcome, err := s.submitOne(ctx, sess)
		if err != nil {
			s.logger.WithError(err).WithFields(logrus.Fields{
				"session_id": sess.ID,
				"written":    len(report.Outcomes),
			}).Error("Submission aborted")
			return report, err
		}
		report.Outcomes = append(report.Outcomes, outcome)

		for _, fn := range s.notify {
			fn(ctx, outcome)
		}
	}

	s.logger.WithField("count", len(report.Outcomes)).Info("Recordings submitted")
	return report, nil
}

func (s *Submitter) submitOne(ctx context.Context, sess capture.Captured) (Outcome, error) {
	logger := s.logger.WithField("session_id", sess.ID)
	outcome := Outcome{SessionID: sess.ID}

	var result *analysis.Result
	if s.analyzer != nil {
		r, err := s.analyzer.Analyze(ctx, sess.Audio)
		switch {
		case err == nil:
			result = &r
		case errors.Is(err, cerrors.ErrNoSpeech):
			logger.Warn("No speech detected, storing placeholder stress level")
		default:
			return outcome, fmt.Errorf("analyze session %s: %w", sess.ID, err)
		}
	}

	audioFile, err := s.audioReference(sess)
	if err != nil {
		return outcome, err
	}

	rec := store.StoredRecording{
		RecordingLabel: sess.Label,
		AudioFile:      audioFile,
		CognitiveScore: s.between(70, 100),
		FatigueIndex:   s.between(15, 50),
		SubmissionDate: s.now().UTC().Format(time.RFC3339),
	}
	if result != nil {
		rec.StressLevel = int(math.Round(result.StressScore))
	} else {
		rec.StressLevel = s.between(20, 60)
	}

	saved, err := store.CreateTyped(ctx, s.store, store.CollectionVoiceRecordings, rec)
	if err != nil {
		return outcome, err
	}
	outcome.Recording = saved
	outcome.Analysis = result

	if result != nil && result.Sentiment == sentiment.LabelNegative && result.StressScore >= MarkerStressThreshold {
		marker, err := store.CreateTyped(ctx, s.store, store.CollectionAnalysisMarkers, stressMarker(saved, sess, *result))
		if err != nil {
			return outcome, err
		}
		outcome.Marker = &marker
	}

	if s.marker != nil {
		if err := s.marker.MarkSubmitted(sess.ID); err != nil {
			return outcome, err
		}
	}

	logger.WithFields(logrus.Fields{
		"record_id":    saved.ID,
		"stress_level": saved.StressLevel,
		"analyzed":     result != nil,
	}).Debug("Recording stored")
	return outcome, nil
}

// audioReference persists the blob when configured and returns where it can be found
func (s *Submitter) audioReference(sess capture.Captured) (string, error) {
	name := uuid.NewString() + ".wav"
	if s.persistDir == "" {
		return fmt.Sprintf("recording://%s/%s", sess.ID, name), nil
	}

	dir := filepath.Join(s.persistDir, sess.ID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", cerrors.NewStoreWriteError(store.CollectionVoiceRecordings, err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, sess.Audio, 0o644); err != nil {
		return "", cerrors.NewStoreWriteError(store.CollectionVoiceRecordings, err)
	}
	return path, nil
}

// between returns an integer in [lo, hi)
func (s *Submitter) between(lo, hi int) int {
	return lo + s.rng.Intn(hi-lo)
}

func stressMarker(rec store.StoredRecording, sess capture.Captured, result analysis.Result) store.AnalysisMarker {
	return store.AnalysisMarker{
		Timestamp:           formatClock(sess.DurationSeconds),
		DetectedIssue:       "Elevated stress",
		Explanation:         fmt.Sprintf("Negative sentiment (confidence %.2f) maps to stress score %.0f", result.Confidence, result.StressScore),
		RecordingIdentifier: rec.ID,
		IssueCategory:       "stress",
	}
}

// formatClock renders seconds as m:ss
func formatClock(seconds int) string {
	return fmt.Sprintf("%d:%02d", seconds/60, seconds%60)
}
