// Package sentiment classifies transcripts as POSITIVE or NEGATIVE.
package sentiment

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"cognivox-server/pkg/config"
	cerrors "cognivox-server/pkg/errors"
	"cognivox-server/pkg/metrics"
)

// Sentiment labels
const (
	LabelPositive = "POSITIVE"
	LabelNegative = "NEGATIVE"
)

// ErrEmptyText is returned for blank input
var ErrEmptyText = errors.New("text is empty")

// Score is one label with its probability
type Score struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Classifier scores text. The first returned entry is the dominant label.
type Classifier interface {
	Name() string
	Classify(ctx context.Context, text string) ([]Score, error)
}

// NewFromConfig builds the configured classifier. OpenAI credentials are
// shared with the transcription settings.
func NewFromConfig(logger *logrus.Logger, cfg *config.SentimentConfig, openaiCfg *config.OpenAISTTConfig) (Classifier, error) {
	var classifier Classifier
	switch strings.ToLower(cfg.Classifier) {
	case "", "lexicon":
		classifier = NewLexiconClassifier(logger)
	case "http":
		classifier = NewHTTPClassifier(logger, cfg.HTTPURL, cfg.Timeout)
	case "openai":
		c, err := NewOpenAIClassifier(logger, openaiCfg.APIKey, openaiCfg.BaseURL, cfg.OpenAIModel)
		if err != nil {
			return nil, err
		}
		classifier = c
	default:
		return nil, cerrors.NewInvalidInput(fmt.Sprintf("unknown sentiment classifier %q", cfg.Classifier))
	}
	return Instrument(classifier, cfg.Timeout), nil
}

// instrumented records metrics and bounds each call by timeout
type instrumented struct {
	inner   Classifier
	timeout time.Duration
}

// Instrument wraps c with classification metrics and an optional per-call timeout
func Instrument(c Classifier, timeout time.Duration) Classifier {
	return &instrumented{inner: c, timeout: timeout}
}

func (i *instrumented) Name() string { return i.inner.Name() }

func (i *instrumented) Classify(ctx context.Context, text string) ([]Score, error) {
	if i.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, i.timeout)
		defer cancel()
	}
	scores, err := i.inner.Classify(ctx, text)
	if err != nil {
		metrics.RecordClassification(i.inner.Name(), "error")
		return nil, err
	}
	metrics.RecordClassification(i.inner.Name(), scores[0].Label)
	return scores, nil
}

// binary turns a positive-class probability into an ordered pair
func binary(positive float64) []Score {
	positive = clamp01(positive)
	scores := []Score{
		{Label: LabelPositive, Score: positive},
		{Label: LabelNegative, Score: 1 - positive},
	}
	if positive < 0.5 {
		scores[0], scores[1] = scores[1], scores[0]
	}
	return scores
}

// polarity maps a free-form label onto POSITIVE or NEGATIVE
func polarity(label string) (string, bool) {
	switch strings.ToLower(strings.TrimSpace(label)) {
	case "positive", "pos", "label_1", "joy", "love", "surprise", "neutral", "happiness", "calm":
		return LabelPositive, true
	case "negative", "neg", "label_0", "anger", "sadness", "fear", "disgust", "stress", "anxiety":
		return LabelNegative, true
	}
	return "", false
}

// normalize folds arbitrary label scores into a POSITIVE/NEGATIVE pair
func normalize(raw []Score) ([]Score, error) {
	var pos, neg float64
	for _, s := range raw {
		label, ok := polarity(s.Label)
		if !ok {
			continue
		}
		if label == LabelPositive {
			pos += s.Score
		} else {
			neg += s.Score
		}
	}
	if pos+neg <= 0 {
		return nil, fmt.Errorf("no usable labels in %d scores", len(raw))
	}
	return binary(pos / (pos + neg)), nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
