package dashboard

import (
	"context"

	"cognivox-server/pkg/store"
)

// Deviations within this many percent of the baseline count as flat
const TrendThreshold = 5

// Trend directions
const (
	TrendUp   = "up"
	TrendDown = "down"
	TrendFlat = "flat"
)

// Assessments of a trend for the metric it applies to
const (
	Improved  = "improved"
	Worsened  = "worsened"
	Unchanged = "unchanged"
)

// MetricDelta compares one metric against the baseline
type MetricDelta struct {
	Baseline   int    `json:"baseline"`
	Current    int    `json:"current"`
	Deviation  int    `json:"deviation"`
	Trend      string `json:"trend"`
	Assessment string `json:"assessment"`
}

// RecordingComparison is one recording measured against the baseline
type RecordingComparison struct {
	Recording store.StoredRecording `json:"recording"`
	Cognitive MetricDelta           `json:"cognitive"`
	Stress    MetricDelta           `json:"stress"`
	Fatigue   MetricDelta           `json:"fatigue"`
}

// Comparison is the comparison read model. Baseline is nil when nothing is stored.
type Comparison struct {
	Baseline    *store.StoredRecording `json:"baseline"`
	Comparisons []RecordingComparison  `json:"comparisons"`
}

// LoadComparison reads voicerecordings from s and compares them
func LoadComparison(ctx context.Context, s store.Store) (*Comparison, error) {
	recs, err := store.GetAllTyped[store.StoredRecording](ctx, s, store.CollectionVoiceRecordings)
	if err != nil {
		return nil, err
	}
	return Compare(recs), nil
}

// Compare treats the first recording as the baseline
func Compare(recs []store.StoredRecording) *Comparison {
	out := &Comparison{Comparisons: []RecordingComparison{}}
	if len(recs) == 0 {
		return out
	}
	base := recs[0]
	out.Baseline = &base

	for _, r := range recs[1:] {
		out.Comparisons = append(out.Comparisons, RecordingComparison{
			Recording: r,
			Cognitive: delta(base.CognitiveScore, r.CognitiveScore, true),
			Stress:    delta(base.StressLevel, r.StressLevel, false),
			Fatigue:   delta(base.FatigueIndex, r.FatigueIndex, false),
		})
	}
	return out
}

// Deviation is the percent change from baseline, 0 when the baseline is 0
func Deviation(baseline, current int) int {
	if baseline == 0 {
		return 0
	}
	return roundHalfUp(float64(current-baseline) / float64(baseline) * 100)
}

// Trend classifies a deviation
func Trend(deviation int) string {
	switch {
	case deviation > TrendThreshold:
		return TrendUp
	case deviation < -TrendThreshold:
		return TrendDown
	default:
		return TrendFlat
	}
}

func delta(baseline, current int, higherIsBetter bool) MetricDelta {
	dev := Deviation(baseline, current)
	trend := Trend(dev)

	assessment := Unchanged
	switch {
	case trend == TrendUp && higherIsBetter, trend == TrendDown && !higherIsBetter:
		assessment = Improved
	case trend != TrendFlat:
		assessment = Worsened
	}

	return MetricDelta{
		Baseline:   baseline,
		Current:    current,
		Deviation:  dev,
		Trend:      trend,
		Assessment: assessment,
	}
}
