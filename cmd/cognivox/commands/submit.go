package commands

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"cognivox-server/pkg/analysis"
	"cognivox-server/pkg/audio"
	"cognivox-server/pkg/capture"
	"cognivox-server/pkg/messaging"
)

var submitSkipAnalysis bool

var submitCmd = &cobra.Command{
	Use:   "submit <wav-file>...",
	Short: "Analyze WAV files and store them as voice recordings",
	Long: `Load up to three WAV files into the recording slots, in order, and
submit them: each is analyzed, scored and written to the voicerecordings
collection. The first file is the baseline.

Submission stops at the first failure; recordings already stored are kept.`,
	Args: cobra.RangeArgs(1, len(capture.DefaultSlots)),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()
		recorder := buildRecorder(cfg)
		defer recorder.Close()

		for i, path := range args {
			data, err := os.ReadFile(path)
			if err != nil {
				return fmt.Errorf("failed to read %s: %w", path, err)
			}
			pcm, _, err := audio.DecodeWAV(data)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}
			if err := recorder.Load(capture.DefaultSlots[i].ID, data, int(pcm.Duration()/time.Second)); err != nil {
				return err
			}
		}
		return submitCaptured(cmd, recorder)
	},
}

func init() {
	submitCmd.Flags().BoolVar(&submitSkipAnalysis, "no-analysis", false, "store placeholder scores without running analysis")
}

// submitCaptured submits every captured slot of recorder and prints the report
func submitCaptured(cmd *cobra.Command, recorder *capture.Recorder) error {
	cfg := getConfig()
	ctx := cmd.Context()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	var analyzer analysis.Analyzer
	if !submitSkipAnalysis {
		if analyzer, _, err = buildAnalyzer(cfg); err != nil {
			return err
		}
	}

	publisher := connectPublisher(cfg)
	defer publisher.Close()

	submitter := buildSubmitter(cfg, st, recorder, analyzer, messaging.Notifier(logger, publisher))

	sessions, release := recorder.Claim()
	defer release()

	report, err := submitter.Submit(ctx, sessions)
	if report != nil {
		if outputJSON {
			if perr := printJSON(report); perr != nil {
				return perr
			}
		} else {
			printReport(os.Stdout, report)
		}
	}
	return err
}
