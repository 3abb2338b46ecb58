package dashboard

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cognivox-server/pkg/metrics"
	"cognivox-server/pkg/store"
)

func init() {
	metrics.EnableMetrics(false)
}

func recording(label string, cog, stress, fatigue int) store.StoredRecording {
	return store.StoredRecording{RecordingLabel: label, CognitiveScore: cog, StressLevel: stress, FatigueIndex: fatigue}
}

func TestAverage(t *testing.T) {
	assert.Equal(t, Averages{}, Average(nil))

	avg := Average([]store.StoredRecording{
		recording("Recording 1", 80, 30, 20),
		recording("Recording 2", 85, 45, 25),
	})
	assert.Equal(t, Averages{Cognitive: 83, Stress: 38, Fatigue: 23}, avg)
}

func TestShortLabel(t *testing.T) {
	assert.Equal(t, "R1 (Baseline)", ShortLabel("Recording 1 (Baseline)"))
	assert.Equal(t, "R3", ShortLabel("Recording 3"))
	assert.Equal(t, "Unknown", ShortLabel(""))
	assert.Equal(t, "Morning check", ShortLabel("Morning check"))
}

func TestDeviationAndTrend(t *testing.T) {
	tests := []struct {
		name      string
		baseline  int
		current   int
		deviation int
		trend     string
	}{
		{"zero baseline", 0, 50, 0, TrendFlat},
		{"up", 80, 90, 13, TrendUp},
		{"down", 40, 30, -25, TrendDown},
		{"within threshold", 80, 84, 5, TrendFlat},
		{"negative half rounds up", 40, 39, -2, TrendFlat},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dev := Deviation(tt.baseline, tt.current)
			assert.Equal(t, tt.deviation, dev)
			assert.Equal(t, tt.trend, Trend(dev))
		})
	}
}

func TestCompare(t *testing.T) {
	assert.Nil(t, Compare(nil).Baseline)

	c := Compare([]store.StoredRecording{
		recording("Recording 1 (Baseline)", 80, 40, 20),
		recording("Recording 2", 90, 50, 18),
	})
	require.NotNil(t, c.Baseline)
	require.Len(t, c.Comparisons, 1)

	rc := c.Comparisons[0]
	assert.Equal(t, TrendUp, rc.Cognitive.Trend)
	assert.Equal(t, Improved, rc.Cognitive.Assessment)
	assert.Equal(t, 25, rc.Stress.Deviation)
	assert.Equal(t, Worsened, rc.Stress.Assessment)
	assert.Equal(t, TrendDown, rc.Fatigue.Trend)
	assert.Equal(t, Improved, rc.Fatigue.Assessment)
}

func TestLoadFromStore(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	for _, r := range []store.StoredRecording{
		recording("Recording 1 (Baseline)", 70, 20, 15),
		recording("", 90, 60, 45),
	} {
		_, err := store.CreateTyped(ctx, s, store.CollectionVoiceRecordings, r)
		require.NoError(t, err)
	}

	summary, err := Load(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Count)
	assert.Equal(t, Averages{Cognitive: 80, Stress: 40, Fatigue: 30}, summary.Averages)
	assert.Equal(t, "Unknown", summary.Chart[1].Name)

	cmp, err := LoadComparison(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, "Recording 1 (Baseline)", cmp.Baseline.RecordingLabel)
	assert.Len(t, cmp.Comparisons, 1)
}

func TestLoadToleratesLooseScores(t *testing.T) {
	ctx := context.Background()
	s := store.NewMemoryStore()
	_, err := store.CreateTyped(ctx, s, store.CollectionVoiceRecordings, recording("Recording 1 (Baseline)", 70, 20, 15))
	require.NoError(t, err)
	_, err = s.Create(ctx, store.CollectionVoiceRecordings, map[string]interface{}{
		"recordingLabel": "Recording 2",
		"cognitiveScore": 72.5,
		"stressLevel":    "40",
	})
	require.NoError(t, err)

	summary, err := Load(ctx, s)
	require.NoError(t, err)
	assert.Equal(t, ChartPoint{Name: "R2", Cognitive: 73, Stress: 40, Fatigue: 0}, summary.Chart[1])

	cmp, err := LoadComparison(ctx, s)
	require.NoError(t, err)
	require.Len(t, cmp.Comparisons, 1)
	assert.Equal(t, 73, cmp.Comparisons[0].Cognitive.Current)
}

func TestRender(t *testing.T) {
	assert.Contains(t, RenderSummary(Build(nil)), "No recordings yet")
	assert.Contains(t, RenderComparison(Compare(nil)), "No baseline")

	recs := []store.StoredRecording{
		recording("Recording 1 (Baseline)", 80, 40, 20),
		recording("Recording 2", 90, 50, 18),
	}
	out := RenderSummary(Build(recs))
	assert.Contains(t, out, "2 recordings")
	assert.Contains(t, out, "R2")

	out = RenderComparison(Compare(recs))
	assert.Contains(t, out, "Baseline: R1 (Baseline)")
	assert.Contains(t, out, "+25%")
}
