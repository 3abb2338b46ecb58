package analysis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"cognivox-server/pkg/audio"
	cerrors "cognivox-server/pkg/errors"
	"cognivox-server/pkg/metrics"
	"cognivox-server/pkg/sentiment"
	"cognivox-server/pkg/stt"
)

// Decoder turns a captured blob into mono PCM at the model rate
type Decoder interface {
	Decode(ctx context.Context, blob []byte) (audio.PCM, error)
}

// Transcriber converts PCM into text with the named provider
type Transcriber interface {
	Transcribe(ctx context.Context, provider string, pcm audio.PCM) (stt.Transcript, error)
}

// Pipeline analyses recordings in-process: decode, transcribe, classify, score
type Pipeline struct {
	logger      *logrus.Entry
	decoder     Decoder
	transcriber Transcriber
	provider    string
	classifier  sentiment.Classifier
	timeout     time.Duration
	// silenceRMS is the level below which audio is treated as silent; 0 disables the check
	silenceRMS float64
}

// PipelineOption customises a Pipeline
type PipelineOption func(*Pipeline)

// WithProvider selects the transcription provider; empty uses the default
func WithProvider(name string) PipelineOption {
	return func(p *Pipeline) { p.provider = name }
}

// WithTimeout bounds every Analyze call; zero disables the bound
func WithTimeout(d time.Duration) PipelineOption {
	return func(p *Pipeline) { p.timeout = d }
}

// WithSilenceThreshold reports recordings whose RMS level is below rms as
// no speech without transcribing them
func WithSilenceThreshold(rms float64) PipelineOption {
	return func(p *Pipeline) { p.silenceRMS = rms }
}

// NewPipeline creates a local analysis pipeline
func NewPipeline(logger *logrus.Logger, decoder Decoder, transcriber Transcriber, classifier sentiment.Classifier, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		logger:      logger.WithField("component", "analysis_pipeline"),
		decoder:     decoder,
		transcriber: transcriber,
		classifier:  classifier,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name identifies the backend in metrics and logs
func (p *Pipeline) Name() string {
	return "local"
}

// Analyze runs the full pipeline over blob. Any failure is reported as the
// generic analysis error; the cause is logged and stays matchable.
func (p *Pipeline) Analyze(ctx context.Context, blob []byte) (Result, error) {
	if p.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, p.timeout)
		defer cancel()
	}

	done := metrics.ObserveAnalysisLatency(p.Name())
	result, err := p.run(ctx, blob)
	done()

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			err = fmt.Errorf("%w after %s: %w", cerrors.ErrTimeout, p.timeout, err)
		}
		p.logger.WithFields(logrus.Fields{
			"error":      err.Error(),
			"error_code": cerrors.GetErrorCode(err),
			"bytes":      len(blob),
		}).Error("Error analyzing speech")
		metrics.RecordAnalysis(p.Name(), "error", 0)
		return Result{}, cerrors.NewAnalysisError(err)
	}

	metrics.RecordAnalysis(p.Name(), "success", result.StressScore)
	p.logger.WithFields(logrus.Fields{
		"sentiment":    result.Sentiment,
		"stress_score": result.StressScore,
		"word_count":   result.WordCount,
	}).Info("Speech analysis completed")
	return result, nil
}

func (p *Pipeline) run(ctx context.Context, blob []byte) (Result, error) {
	pcm, err := p.decoder.Decode(ctx, blob)
	if err != nil {
		return Result{}, cerrors.NewTranscriptionError(p.provider, err)
	}
	if p.silenceRMS > 0 && pcm.Energy() < p.silenceRMS*p.silenceRMS {
		p.logger.WithField("duration", pcm.Duration()).Debug("Recording is silent, skipping transcription")
		return Result{}, cerrors.NewNoSpeech(p.provider)
	}

	transcript, err := p.transcriber.Transcribe(ctx, p.provider, pcm)
	if err != nil {
		return Result{}, err
	}
	text := strings.TrimSpace(transcript.Text)
	if WordCount(text) == 0 {
		return Result{}, cerrors.NewNoSpeech(transcript.Provider)
	}

	scores, err := p.classifier.Classify(ctx, text)
	if err != nil {
		return Result{}, err
	}
	if len(scores) == 0 {
		return Result{}, cerrors.NewClassificationError(p.classifier.Name(), errors.New("classifier returned no scores"))
	}

	return NewResult(text, scores, pcm.Duration()), nil
}
