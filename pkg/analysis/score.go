// Package analysis turns a recording into a transcript, a sentiment verdict
// and a heuristic stress score.
package analysis

import (
	"math"
	"strings"
	"time"

	"cognivox-server/pkg/sentiment"
)

// PlaceholderSpeechRate is the fixed speech_rate figure. It is not measured;
// see WordsPerMinute for the rate derived from the recording length.
const PlaceholderSpeechRate = 120.0

// StressScore maps a sentiment verdict to a 0-100 heuristic. Confidence is
// clamped to [0, 1] first.
func StressScore(label string, confidence float64) float64 {
	c := math.Max(0, math.Min(1, confidence))
	var score float64
	if strings.EqualFold(label, sentiment.LabelNegative) {
		score = 70 + c*30
	} else {
		score = 30 - c*20
	}
	return math.Max(0, math.Min(100, score))
}

// WordCount counts whitespace-delimited tokens. An empty transcript has zero words.
func WordCount(transcript string) int {
	return len(strings.Fields(transcript))
}

// WordsPerMinute returns the measured rate, rounded to one decimal. ok is
// false when the duration is unknown.
func WordsPerMinute(words int, duration time.Duration) (wpm float64, ok bool) {
	if duration <= 0 {
		return 0, false
	}
	rate := float64(words) / duration.Minutes()
	return math.Round(rate*10) / 10, true
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
