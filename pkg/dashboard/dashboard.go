// Package dashboard builds the read models shown after submission: metric
// averages, per-recording chart series and the comparison against the
// baseline recording.
package dashboard

import (
	"context"
	"math"
	"strings"

	"cognivox-server/pkg/store"
)

// Averages are the rounded means of every stored recording
type Averages struct {
	Cognitive int `json:"cognitive"`
	Stress    int `json:"stress"`
	Fatigue   int `json:"fatigue"`
}

// ChartPoint is one recording on the trend chart
type ChartPoint struct {
	Name      string `json:"name"`
	Cognitive int    `json:"cognitive"`
	Stress    int    `json:"stress"`
	Fatigue   int    `json:"fatigue"`
}

// Summary is the dashboard read model
type Summary struct {
	Count      int                     `json:"count"`
	Averages   Averages                `json:"averages"`
	Chart      []ChartPoint            `json:"chart"`
	Recordings []store.StoredRecording `json:"recordings"`
}

// Load reads voicerecordings from s and builds the dashboard
func Load(ctx context.Context, s store.Store) (*Summary, error) {
	recs, err := store.GetAllTyped[store.StoredRecording](ctx, s, store.CollectionVoiceRecordings)
	if err != nil {
		return nil, err
	}
	return Build(recs), nil
}

// Build computes the dashboard from recordings in creation order
func Build(recs []store.StoredRecording) *Summary {
	summary := &Summary{
		Count:      len(recs),
		Averages:   Average(recs),
		Chart:      make([]ChartPoint, 0, len(recs)),
		Recordings: recs,
	}
	for _, r := range recs {
		summary.Chart = append(summary.Chart, ChartPoint{
			Name:      ShortLabel(r.RecordingLabel),
			Cognitive: r.CognitiveScore,
			Stress:    r.StressLevel,
			Fatigue:   r.FatigueIndex,
		})
	}
	return summary
}

// Average returns zeroes for an empty slice
func Average(recs []store.StoredRecording) Averages {
	if len(recs) == 0 {
		return Averages{}
	}
	var cog, stress, fatigue int
	for _, r := range recs {
		cog += r.CognitiveScore
		stress += r.StressLevel
		fatigue += r.FatigueIndex
	}
	n := float64(len(recs))
	return Averages{
		Cognitive: roundHalfUp(float64(cog) / n),
		Stress:    roundHalfUp(float64(stress) / n),
		Fatigue:   roundHalfUp(float64(fatigue) / n),
	}
}

// ShortLabel turns "Recording 2" into "R2"
func ShortLabel(label string) string {
	if label == "" {
		return "Unknown"
	}
	return strings.Replace(label, "Recording ", "R", 1)
}

// roundHalfUp rounds .5 towards positive infinity, so -2.5 becomes -2
func roundHalfUp(v float64) int {
	return int(math.Floor(v + 0.5))
}
