package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"cognivox-server/pkg/config"
)

var (
	// Global flags
	outputJSON bool
	verbose    bool

	logger    = logrus.New()
	appConfig *config.Config
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "cognivox",
	Short: "Voice stress and sentiment analysis",
	Long: `cognivox records short voice samples, transcribes them, scores
sentiment and stress, and keeps the results for a trend dashboard.

Examples:
  # Run the HTTP API
  cognivox serve

  # Record the baseline slot from the microphone
  cognivox record 1 -o baseline.wav

  # Analyze a file with the configured pipeline
  cognivox analyze sample.wav --json

  # Submit up to three recordings and show the dashboard
  cognivox submit r1.wav r2.wav r3.wav
  cognivox dashboard --comparison
`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: loadConfig,
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	logger.SetFormatter(&logrus.JSONFormatter{
		TimestampFormat: time.RFC3339Nano,
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyTime:  "timestamp",
			logrus.FieldKeyLevel: "level",
			logrus.FieldKeyMsg:   "message",
		},
	})
	logger.SetOutput(os.Stderr)

	rootCmd.PersistentFlags().BoolVar(&outputJSON, "json", false, "output as JSON (for piping)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(recordCmd)
	rootCmd.AddCommand(analyzeCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(dashboardCmd)
	rootCmd.AddCommand(seedCmd)
}

// loadConfig reads the environment once per invocation. Only serve keeps the
// configured log destination; the other commands log to stderr so stdout
// stays clean for their output.
func loadConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(logger)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	if err := cfg.ApplyLogging(logger); err != nil {
		return err
	}
	if cmd != serveCmd && cfg.Logging.OutputFile == "" {
		logger.SetOutput(os.Stderr)
	}
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	appConfig = cfg
	return nil
}

func getConfig() *config.Config {
	return appConfig
}

// printJSON writes v to stdout as indented JSON
func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
