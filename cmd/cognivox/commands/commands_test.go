package commands

import (
	"context"
	"io"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cognivox-server/pkg/audio"
	"cognivox-server/pkg/config"
	"cognivox-server/pkg/messaging"
	"cognivox-server/pkg/metrics"
	"cognivox-server/pkg/store"
)

func init() {
	metrics.EnableMetrics(false)
	logger.SetOutput(io.Discard)
}

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := &config.Config{}
	cfg.Capture = config.CaptureConfig{Source: "stdin", SampleRate: 16000, Channels: 1, ChunkSize: 3200}
	cfg.STT = config.STTConfig{
		DefaultProvider:  "mock",
		TargetSampleRate: 16000,
		Mock:             config.MockSTTConfig{Enabled: true, Transcript: "I am feeling fine today"},
	}
	cfg.Sentiment = config.SentimentConfig{Classifier: "lexicon"}
	cfg.Analysis = config.AnalysisConfig{Mode: "local", Enabled: true}
	cfg.Backend = config.BackendConfig{URL: "http://127.0.0.1:1", UserID: "demo-user"}
	cfg.Store = config.StoreConfig{Backend: "sqlite", SQLitePath: filepath.Join(t.TempDir(), "cognivox.db")}
	return cfg
}

func toneWAV(seconds int) []byte {
	const rate = 16000
	pcm := make([]byte, 0, rate*seconds*2)
	for i := 0; i < rate*seconds; i++ {
		v := int16(8000 * math.Sin(2*math.Pi*220*float64(i)/rate))
		pcm = append(pcm, byte(v), byte(uint16(v)>>8))
	}
	return audio.EncodeWAV(pcm, rate, 1)
}

func TestBuildDevice(t *testing.T) {
	cfg := testConfig(t)
	assert.Equal(t, "stdin", buildDevice(cfg).Name())

	cfg.Capture.Source = "command"
	cfg.Capture.Command = "arecord"
	cfg.Capture.Device = "hw:1"
	dev := buildDevice(cfg)
	assert.Equal(t, "hw:1", dev.Name())
	assert.Equal(t, 16000, dev.Format().SampleRate)
}

func TestBuildAnalyzerLocal(t *testing.T) {
	analyzer, manager, err := buildAnalyzer(testConfig(t))
	require.NoError(t, err)
	assert.Equal(t, "local", analyzer.Name())
	require.NotNil(t, manager)
	assert.Contains(t, manager.Providers(), "mock")
}

func TestBuildAnalyzerRemote(t *testing.T) {
	cfg := testConfig(t)
	cfg.Analysis.Mode = "remote"

	analyzer, manager, err := buildAnalyzer(cfg)
	require.NoError(t, err)
	assert.Equal(t, "remote", analyzer.Name())
	assert.Nil(t, manager)
}

func TestBuildAnalyzerUnknownClassifier(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sentiment.Classifier = "tarot"

	_, _, err := buildAnalyzer(cfg)
	assert.Error(t, err)
}

func TestOpenStoreSeedsOnce(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.SeedFile = filepath.Join("..", "..", "..", "configs", "seed.yaml")
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		st, err := openStore(ctx, cfg)
		require.NoError(t, err)
		docs, err := st.GetAll(ctx, store.CollectionHealthMetrics)
		require.NoError(t, err)
		assert.Len(t, docs, 4)
		require.NoError(t, st.Close())
	}
}

func TestOpenStoreBadSeedFile(t *testing.T) {
	cfg := testConfig(t)
	cfg.Store.SeedFile = filepath.Join(t.TempDir(), "missing.yaml")

	_, err := openStore(context.Background(), cfg)
	assert.Error(t, err)
}

func TestConnectPublisherDisabled(t *testing.T) {
	p := connectPublisher(testConfig(t))
	assert.IsType(t, messaging.NoopPublisher{}, p)
	assert.False(t, p.IsConnected())
}

func TestSubmitStoresAnalyzedRecordings(t *testing.T) {
	cfg := testConfig(t)
	appConfig = cfg
	ctx := context.Background()

	dir := t.TempDir()
	var files []string
	for _, name := range []string{"r1.wav", "r2.wav"} {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, toneWAV(2), 0644))
		files = append(files, path)
	}

	submitCmd.SetContext(ctx)
	stdout := os.Stdout
	devnull, err := os.Open(os.DevNull)
	require.NoError(t, err)
	os.Stdout = devnull
	err = submitCmd.RunE(submitCmd, files)
	os.Stdout = stdout
	devnull.Close()
	require.NoError(t, err)

	st, err := store.New(ctx, logger, &cfg.Store)
	require.NoError(t, err)
	defer st.Close()

	recs, err := store.GetAllTyped[store.StoredRecording](ctx, st, store.CollectionVoiceRecordings)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "Recording 1 (Baseline)", recs[0].RecordingLabel)
	assert.Equal(t, "Recording 2", recs[1].RecordingLabel)
	for _, rec := range recs {
		assert.GreaterOrEqual(t, rec.CognitiveScore, 70)
		assert.Less(t, rec.CognitiveScore, 100)
		assert.NotEmpty(t, rec.AudioFile)
	}
}

func TestSubmitRejectsNonWAV(t *testing.T) {
	appConfig = testConfig(t)
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("not audio"), 0644))

	submitCmd.SetContext(context.Background())
	err := submitCmd.RunE(submitCmd, []string{path})
	assert.Error(t, err)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 10))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
