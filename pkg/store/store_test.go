package store

import (
	"context"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cognivox-server/pkg/config"
	cerrors "cognivox-server/pkg/errors"
	"cognivox-server/pkg/metrics"
)

func init() {
	metrics.EnableMetrics(false)
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

// exerciseStore runs the behaviour every backend must share
func exerciseStore(t *testing.T, s Store) {
	ctx := context.Background()

	for i, label := range []string{"Recording 1 (Baseline)", "Recording 2", "Recording 3"} {
		rec, err := CreateTyped(ctx, s, CollectionVoiceRecordings, StoredRecording{
			RecordingLabel: label,
			AudioFile:      "recording://1/a.wav",
			CognitiveScore: 80 + i,
			StressLevel:    40,
			FatigueIndex:   20,
			SubmissionDate: "2026-10-18T10:00:00Z",
		})
		require.NoError(t, err)
		assert.NotEmpty(t, rec.ID)
		assert.NotEmpty(t, rec.CreatedDate)
		assert.Equal(t, label, rec.RecordingLabel)
	}

	recs, err := GetAllTyped[StoredRecording](ctx, s, CollectionVoiceRecordings)
	require.NoError(t, err)
	require.Len(t, recs, 3)
	assert.Equal(t, "Recording 1 (Baseline)", recs[0].RecordingLabel)
	assert.Equal(t, 82, recs[2].CognitiveScore)

	empty, err := s.GetAll(ctx, "unknowncollection")
	require.NoError(t, err)
	assert.Empty(t, empty)

	doc, err := s.Create(ctx, "notes", map[string]interface{}{"_id": "fixed", "text": "hi"})
	require.NoError(t, err)
	assert.Equal(t, "fixed", doc.ID())

	_, err = s.Create(ctx, "bad name!", map[string]interface{}{})
	assert.True(t, cerrors.IsErrorType(err, cerrors.ErrInvalidInput))

	_, err = s.Create(ctx, "notes", []int{1, 2})
	assert.True(t, cerrors.IsErrorType(err, cerrors.ErrInvalidInput))
}

func TestStoredRecordingLooseScores(t *testing.T) {
	var rec StoredRecording
	err := json.Unmarshal([]byte(`{"_id":"r1","recordingLabel":"Recording 2","cognitiveScore":72.5,"stressLevel":"41.2","fatigueIndex":null}`), &rec)
	require.NoError(t, err)
	assert.Equal(t, "r1", rec.ID)
	assert.Equal(t, "Recording 2", rec.RecordingLabel)
	assert.Equal(t, 73, rec.CognitiveScore)
	assert.Equal(t, 41, rec.StressLevel)
	assert.Equal(t, 0, rec.FatigueIndex)

	err = json.Unmarshal([]byte(`{"cognitiveScore":true,"stressLevel":"high","fatigueIndex":18}`), &rec)
	require.NoError(t, err)
	assert.Equal(t, 0, rec.CognitiveScore)
	assert.Equal(t, 0, rec.StressLevel)
	assert.Equal(t, 18, rec.FatigueIndex)
}

func TestMemoryStore(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	exerciseStore(t, s)
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	doc, err := s.Create(ctx, "notes", map[string]interface{}{"text": "a"})
	require.NoError(t, err)
	doc["text"] = "mutated"

	docs, err := s.GetAll(ctx, "notes")
	require.NoError(t, err)
	assert.Equal(t, "a", docs[0]["text"])
}

func TestMemoryStoreCancelledContext(t *testing.T) {
	s := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Create(ctx, "notes", map[string]interface{}{"text": "a"})
	require.Error(t, err)
	assert.True(t, cerrors.IsErrorType(err, cerrors.ErrStoreWrite))
}

func TestSQLiteStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cognivox.db")
	s, err := OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	defer s.Close()

	exerciseStore(t, s)
}

func TestSQLiteStoreSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "cognivox.db")

	s, err := OpenSQLite(ctx, path)
	require.NoError(t, err)
	_, err = s.Create(ctx, CollectionHealthMetrics, HealthMetric{MetricName: "Stress Levels"})
	require.NoError(t, err)
	require.NoError(t, s.Close())

	s, err = OpenSQLite(ctx, path)
	require.NoError(t, err)
	defer s.Close()
	hm, err := GetAllTyped[HealthMetric](ctx, s, CollectionHealthMetrics)
	require.NoError(t, err)
	require.Len(t, hm, 1)
	assert.Equal(t, "Stress Levels", hm[0].MetricName)
}

func TestSQLiteStoreWriteAfterClose(t *testing.T) {
	s, err := OpenSQLite(context.Background(), filepath.Join(t.TempDir(), "x.db"))
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = s.Create(context.Background(), "notes", map[string]interface{}{"a": 1})
	require.Error(t, err)
	assert.True(t, cerrors.IsErrorType(err, cerrors.ErrStoreWrite))
	assert.Equal(t, "STORE_WRITE_FAILED", cerrors.GetErrorCode(err))
}

func TestRedisStoreUnreachable(t *testing.T) {
	cfg := &config.StoreConfig{Backend: "redis", RedisAddr: "127.0.0.1:1", RedisKeyPrefix: "cognivox:"}
	_, err := New(context.Background(), quietLogger(), cfg)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to Redis")
}

func TestRedisCollectionKey(t *testing.T) {
	r := &RedisStore{keyPrefix: "cognivox:"}
	assert.Equal(t, "cognivox:voicerecordings", r.collectionKey(CollectionVoiceRecordings))
}

func TestNewSelectsBackend(t *testing.T) {
	s, err := New(context.Background(), quietLogger(), &config.StoreConfig{Backend: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = New(context.Background(), quietLogger(), &config.StoreConfig{
		Backend:    "sqlite",
		SQLitePath: filepath.Join(t.TempDir(), "n.db"),
	})
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	s.Close()

	_, err = New(context.Background(), quietLogger(), &config.StoreConfig{Backend: "mongo"})
	assert.True(t, cerrors.IsErrorType(err, cerrors.ErrInvalidInput))
}

func TestValidateCollection(t *testing.T) {
	for _, name := range []string{"voicerecordings", "health_metrics", "a1-b"} {
		assert.NoError(t, ValidateCollection(name), name)
	}
	for _, name := range []string{"", "1abc", "has space", "semi;colon"} {
		assert.Error(t, ValidateCollection(name), name)
	}
}

func TestSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
healthmetrics:
  - metricName: Cognitive Sharpness
    tagline: Clear thinking
  - metricName: Stress Levels
analysismarkers:
  - timestamp: "00:12"
    detectedIssue: Elevated stress
    issueCategory: stress
    recordingIdentifier: "1"
`), 0o644))

	s := NewMemoryStore()
	n, err := Seed(context.Background(), s, path)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	hm, err := GetAllTyped[HealthMetric](context.Background(), s, CollectionHealthMetrics)
	require.NoError(t, err)
	require.Len(t, hm, 2)
	assert.Equal(t, "Clear thinking", hm[0].Tagline)

	markers, err := GetAllTyped[AnalysisMarker](context.Background(), s, CollectionAnalysisMarkers)
	require.NoError(t, err)
	require.Len(t, markers, 1)
	assert.Equal(t, "stress", markers[0].IssueCategory)
}

func TestSeedBundledFixtures(t *testing.T) {
	n, err := Seed(context.Background(), NewMemoryStore(), filepath.Join("..", "..", "configs", "seed.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 4, n)
}

func TestSeedBadFile(t *testing.T) {
	_, err := Seed(context.Background(), NewMemoryStore(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("healthmetrics: [unterminated"), 0o644))
	_, err = Seed(context.Background(), NewMemoryStore(), path)
	assert.Error(t, err)
}
