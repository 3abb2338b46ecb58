package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"cognivox-server/pkg/dashboard"
)

var showComparison bool

var dashboardCmd = &cobra.Command{
	Use:   "dashboard",
	Short: "Show stored recordings as a terminal dashboard",
	Long: `Read the voicerecordings collection and print the averages and the
per-recording chart. With --comparison, show each recording against the
baseline (the first stored recording) instead.

The memory store starts empty on every run; point STORE_BACKEND at sqlite or
redis to see recordings stored by earlier commands.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		st, err := openStore(ctx, getConfig())
		if err != nil {
			return err
		}
		defer st.Close()

		if showComparison {
			cmp, err := dashboard.LoadComparison(ctx, st)
			if err != nil {
				return err
			}
			if outputJSON {
				return printJSON(cmp)
			}
			fmt.Println(dashboard.RenderComparison(cmp))
			return nil
		}

		summary, err := dashboard.Load(ctx, st)
		if err != nil {
			return err
		}
		if outputJSON {
			return printJSON(summary)
		}
		fmt.Println(dashboard.RenderSummary(summary))
		return nil
	},
}

func init() {
	dashboardCmd.Flags().BoolVar(&showComparison, "comparison", false, "compare recordings with the baseline")
}
