package analysis

import (
	"context"
	"time"

	"cognivox-server/pkg/sentiment"
)

// Emotion is one classifier label with its score rounded to two decimals
type Emotion struct {
	Label string  `json:"label"`
	Score float64 `json:"score"`
}

// Result is the outcome of analysing one recording. It is never modified
// after NewResult returns.
type Result struct {
	Transcript         string    `json:"transcript"`
	Sentiment          string    `json:"sentiment"`
	Confidence         float64   `json:"confidence"`
	StressScore        float64   `json:"stress_score"`
	WordCount          int       `json:"word_count"`
	SpeechRate         float64   `json:"speech_rate"`
	SpeechRateMeasured bool      `json:"speech_rate_measured"`
	WordsPerMinute     float64   `json:"words_per_minute,omitempty"`
	Emotions           []Emotion `json:"emotions"`
}

// Analyzer turns an audio blob into a Result
type Analyzer interface {
	Name() string
	Analyze(ctx context.Context, blob []byte) (Result, error)
}

// NewResult derives a Result from a transcript and classifier scores, the
// first score being dominant. scores must not be empty.
func NewResult(transcript string, scores []sentiment.Score, duration time.Duration) Result {
	dominant := scores[0]
	confidence := dominant.Score
	if confidence < 0 {
		confidence = 0
	} else if confidence > 1 {
		confidence = 1
	}

	words := WordCount(transcript)
	wpm, _ := WordsPerMinute(words, duration)

	emotions := make([]Emotion, len(scores))
	for i, s := range scores {
		emotions[i] = Emotion{Label: s.Label, Score: round2(s.Score)}
	}

	return Result{
		Transcript:         transcript,
		Sentiment:          dominant.Label,
		Confidence:         confidence,
		StressScore:        StressScore(dominant.Label, confidence),
		WordCount:          words,
		SpeechRate:         PlaceholderSpeechRate,
		SpeechRateMeasured: false,
		WordsPerMinute:     wpm,
		Emotions:           emotions,
	}
}
