package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"cognivox-server/pkg/backend"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <audio-file>",
	Short: "Transcribe and score an audio file",
	Long: `Run one audio file through the configured analyzer and print the
transcript, sentiment, stress score and speech rate.

ANALYSIS_MODE=local runs the in-process pipeline; ANALYSIS_MODE=remote sends
the file to BACKEND_URL. With --json the output has the same shape as the
POST /analyze-speech response.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		blob, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", args[0], err)
		}
		if len(blob) == 0 {
			return fmt.Errorf("%s is empty", args[0])
		}

		analyzer, _, err := buildAnalyzer(getConfig())
		if err != nil {
			return err
		}
		result, err := analyzer.Analyze(cmd.Context(), blob)
		if err != nil {
			return err
		}

		if outputJSON {
			return printJSON(backend.AnalyzeResponse{Status: "success", Analysis: result})
		}
		printAnalysis(os.Stdout, result)
		return nil
	},
}
