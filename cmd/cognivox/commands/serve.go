package commands

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"cognivox-server/pkg/capture"
	httpserver "cognivox-server/pkg/http"
	"cognivox-server/pkg/messaging"
	"cognivox-server/pkg/metrics"
	"cognivox-server/pkg/submission"
	"cognivox-server/pkg/util"
	"cognivox-server/pkg/version"
)

const shutdownTimeout = 15 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP API",
	Long: `Run the HTTP API: speech analysis uploads, collection documents,
server-side recording control, the dashboard summary, websocket events,
health probes and Prometheus metrics.

The server stops gracefully on SIGINT or SIGTERM.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		return runServe(ctx)
	},
}

func runServe(ctx context.Context) error {
	cfg := getConfig()
	if !cfg.HTTP.Enabled {
		return fmt.Errorf("HTTP server is disabled (HTTP_ENABLED=false)")
	}

	logger.WithFields(logrus.Fields{
		"version":       version.Version,
		"analysis_mode": cfg.Analysis.Mode,
		"store":         cfg.Store.Backend,
		"capture":       cfg.Capture.Source,
	}).Info("Starting cognivox server")

	metrics.StartMetrics(logger, cfg.HTTP.EnableMetrics)
	if err := cfg.EnsureDirectories(); err != nil {
		return err
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}

	analyzer, providers, err := buildAnalyzer(cfg)
	if err != nil {
		st.Close()
		return err
	}

	recorder := buildRecorder(cfg)

	hubCtx, stopHub := context.WithCancel(context.Background())
	hub := httpserver.NewAnalysisHub(logger)
	go hub.Run(hubCtx)
	recorder.OnChange(func(info capture.SessionInfo) {
		hub.Broadcast(httpserver.EventRecordingState, info)
	})

	publisher := connectPublisher(cfg)
	submitter := buildSubmitter(cfg, st, recorder, analyzer,
		func(_ context.Context, o submission.Outcome) {
			hub.Broadcast(httpserver.EventAnalysisCompleted, o)
		},
		messaging.Notifier(logger, publisher),
	)

	deps := httpserver.Deps{
		Analyzer:  analyzer,
		Store:     st,
		Recorder:  recorder,
		Submitter: submitter,
		Publisher: publisher,
		Hub:       hub,
	}
	if providers != nil {
		deps.Providers = providers
	}
	server := httpserver.NewServer(logger, &cfg.HTTP, deps)
	server.Start()

	<-ctx.Done()
	logger.Info("Shutdown signal received")

	shutdown := util.NewGracefulShutdown(logger, shutdownTimeout)
	shutdown.Register(util.ShutdownResource{Name: "http", Priority: 10, Shutdown: server.Shutdown})
	shutdown.RegisterCloser("recorder", recorder, 20)
	shutdown.RegisterFunc("websocket hub", stopHub, 30)
	shutdown.RegisterFunc("amqp", publisher.Close, 40)
	shutdown.RegisterCloser("store", st, 50)
	return shutdown.Shutdown(context.Background())
}
