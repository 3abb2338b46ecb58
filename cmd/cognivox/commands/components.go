package commands

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"cognivox-server/pkg/analysis"
	"cognivox-server/pkg/audio"
	"cognivox-server/pkg/backend"
	"cognivox-server/pkg/capture"
	"cognivox-server/pkg/config"
	"cognivox-server/pkg/dashboard"
	"cognivox-server/pkg/messaging"
	"cognivox-server/pkg/sentiment"
	"cognivox-server/pkg/store"
	"cognivox-server/pkg/stt"
	"cognivox-server/pkg/submission"
)

// openStore opens the configured store. The seed file is applied only while
// the health metrics collection is still empty, so restarts do not duplicate it.
func openStore(ctx context.Context, cfg *config.Config) (store.Store, error) {
	st, err := store.New(ctx, logger, &cfg.Store)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s store: %w", cfg.Store.Backend, err)
	}
	if cfg.Store.SeedFile == "" {
		return st, nil
	}

	existing, err := st.GetAll(ctx, store.CollectionHealthMetrics)
	if err != nil {
		st.Close()
		return nil, err
	}
	if len(existing) > 0 {
		logger.WithField("documents", len(existing)).Debug("Store already seeded")
		return st, nil
	}

	n, err := store.Seed(ctx, st, cfg.Store.SeedFile)
	if err != nil {
		st.Close()
		return nil, fmt.Errorf("failed to seed store: %w", err)
	}
	logger.WithField("documents", n).Info("Seeded store")
	return st, nil
}

// buildAnalyzer returns the remote backend client or the local pipeline. The
// provider manager is nil in remote mode.
func buildAnalyzer(cfg *config.Config) (analysis.Analyzer, *stt.ProviderManager, error) {
	if cfg.Analysis.Mode == "remote" {
		logger.WithField("url", cfg.Backend.URL).Info("Using remote analysis backend")
		return backend.NewClient(logger, &cfg.Backend), nil, nil
	}

	manager := stt.NewManagerFromConfig(logger, &cfg.STT)
	classifier, err := sentiment.NewFromConfig(logger, &cfg.Sentiment, &cfg.STT.OpenAI)
	if err != nil {
		return nil, nil, err
	}
	decoder := audio.NewDecoder(logger, cfg.Analysis.FFmpegPath, cfg.STT.TargetSampleRate)
	pipeline := analysis.NewPipeline(logger, decoder, manager, classifier,
		analysis.WithTimeout(cfg.Analysis.Timeout),
		analysis.WithSilenceThreshold(cfg.Analysis.SilenceRMS))

	logger.WithField("providers", manager.Providers()).Info("Using local analysis pipeline")
	return pipeline, manager, nil
}

func buildDevice(cfg *config.Config) capture.Device {
	format := capture.Format{SampleRate: cfg.Capture.SampleRate, Channels: cfg.Capture.Channels}
	if cfg.Capture.Source == "stdin" {
		return capture.NewStdinDevice(format)
	}
	return capture.NewCommandDevice(logger, cfg.Capture.Command, cfg.Capture.Args, cfg.Capture.Device, format)
}

func buildRecorder(cfg *config.Config) *capture.Recorder {
	return capture.NewRecorder(logger, buildDevice(cfg),
		capture.WithMaxDuration(cfg.Capture.MaxDuration),
		capture.WithChunkSize(cfg.Capture.ChunkSize))
}

// connectPublisher returns a connected AMQP client, or a no-op publisher when
// messaging is disabled. A failed connect is logged and the client is still
// returned so health checks report it.
func connectPublisher(cfg *config.Config) messaging.Publisher {
	if !cfg.Messaging.Enabled {
		return messaging.NoopPublisher{}
	}
	client := messaging.NewAMQPClient(logger, cfg.Messaging)
	if err := client.Connect(); err != nil {
		logger.WithError(err).Warn("AMQP unavailable, analysis events will not be published")
	}
	return client
}

func buildSubmitter(cfg *config.Config, st store.Store, marker submission.Marker, analyzer analysis.Analyzer, notifiers ...func(context.Context, submission.Outcome)) *submission.Submitter {
	opts := []submission.Option{}
	if analyzer != nil && cfg.Analysis.Enabled {
		opts = append(opts, submission.WithAnalyzer(analyzer))
	}
	if cfg.Recording.Persist {
		opts = append(opts, submission.WithPersistDir(cfg.Recording.Directory))
	}
	for _, fn := range notifiers {
		opts = append(opts, submission.WithNotifier(fn))
	}
	return submission.NewSubmitter(logger, st, marker, opts...)
}

var (
	labelStyle  = lipgloss.NewStyle().Bold(true)
	markerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F5F"))
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#6e7681"))
)

func printReport(w io.Writer, report *submission.Report) {
	for _, o := range report.Outcomes {
		rec := o.Recording
		line := fmt.Sprintf("%-4s cognitive %3d  stress %3d  fatigue %3d",
			labelStyle.Render(dashboard.ShortLabel(rec.RecordingLabel)),
			rec.CognitiveScore, rec.StressLevel, rec.FatigueIndex)
		if o.Analysis != nil {
			line += mutedStyle.Render(fmt.Sprintf("  %s %q", o.Analysis.Sentiment, truncate(o.Analysis.Transcript, 48)))
		}
		if o.Marker != nil {
			line += "  " + markerStyle.Render(o.Marker.DetectedIssue)
		}
		fmt.Fprintln(w, line)
	}
}

func printAnalysis(w io.Writer, r analysis.Result) {
	rows := [][2]string{
		{"Transcript", r.Transcript},
		{"Sentiment", fmt.Sprintf("%s (%.2f)", r.Sentiment, r.Confidence)},
		{"Stress score", fmt.Sprintf("%.1f", r.StressScore)},
		{"Words", fmt.Sprintf("%d", r.WordCount)},
		{"Speech rate", speechRate(r)},
	}
	for _, row := range rows {
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render(fmt.Sprintf("%-13s", row[0]+":")), row[1])
	}
	if len(r.Emotions) > 0 {
		parts := make([]string, 0, len(r.Emotions))
		for _, e := range r.Emotions {
			parts = append(parts, fmt.Sprintf("%s %.2f", e.Label, e.Score))
		}
		fmt.Fprintf(w, "%s %s\n", labelStyle.Render(fmt.Sprintf("%-13s", "Emotions:")), strings.Join(parts, ", "))
	}
}

func speechRate(r analysis.Result) string {
	if r.WordsPerMinute > 0 {
		return fmt.Sprintf("%.0f (placeholder), measured %.1f wpm", r.SpeechRate, r.WordsPerMinute)
	}
	return fmt.Sprintf("%.0f (placeholder)", r.SpeechRate)
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n-1]) + "…"
}
