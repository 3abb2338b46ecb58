package commands

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"cognivox-server/pkg/capture"
	"cognivox-server/pkg/errors"
)

var (
	recordOutput string
	recordSubmit bool
)

var recordCmd = &cobra.Command{
	Use:   "record [slot]",
	Short: "Record one slot from the microphone",
	Long: `Capture audio from the configured device into a recording slot and
write it as a WAV file.

Recording stops on Enter, on Ctrl-C, at CAPTURE_MAX_DURATION, or when the
device ends its stream (stdin capture ends at EOF).

Slots: 1 (baseline), 2, 3. The default is 1.

Examples:
  cognivox record 1 -o baseline.wav
  arecord -f S16_LE -r 16000 -t raw | CAPTURE_SOURCE=stdin cognivox record 2 --submit`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRecord,
}

func init() {
	recordCmd.Flags().StringVarP(&recordOutput, "output", "o", "", "output WAV file (default recording-<slot>.wav)")
	recordCmd.Flags().BoolVar(&recordSubmit, "submit", false, "analyze and store the recording when done")
}

func runRecord(cmd *cobra.Command, args []string) error {
	cfg := getConfig()
	slot := capture.DefaultSlots[0].ID
	if len(args) == 1 {
		slot = args[0]
	}
	output := recordOutput
	if output == "" {
		output = fmt.Sprintf("recording-%s.wav", slot)
	}

	recorder := buildRecorder(cfg)
	defer recorder.Close()

	finished := make(chan struct{}, 1)
	recorder.OnChange(func(info capture.SessionInfo) {
		if info.ID == slot && info.State != capture.StateCapturing.String() {
			select {
			case finished <- struct{}{}:
			default:
			}
		}
	})

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := recorder.Start(ctx, slot); err != nil {
		return err
	}

	enter := make(chan struct{})
	if cfg.Capture.Source != "stdin" {
		fmt.Fprintln(os.Stderr, "Recording... press Enter to stop")
		go func() {
			bufio.NewReader(os.Stdin).ReadString('\n')
			close(enter)
		}()
	}

	select {
	case <-enter:
	case <-ctx.Done():
	case <-finished:
	}

	if recorder.ActiveSession() == slot {
		if _, err := recorder.Stop(slot); err != nil {
			return err
		}
	}

	wav, err := recorder.Audio(slot)
	if err != nil {
		return errors.Wrap(err, "nothing was recorded")
	}
	if err := os.WriteFile(output, wav, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", output, err)
	}
	fmt.Fprintf(os.Stderr, "Saved %s (%d bytes)\n", output, len(wav))

	if !recordSubmit {
		return nil
	}
	return submitCaptured(cmd, recorder)
}
