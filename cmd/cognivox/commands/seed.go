package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"cognivox-server/pkg/store"
)

const defaultSeedFile = "configs/seed.yaml"

var seedCmd = &cobra.Command{
	Use:   "seed [file]",
	Short: "Load fixture documents into the store",
	Long: `Write the health metrics and analysis markers of a YAML fixture file
into the configured store. The file defaults to STORE_SEED_FILE, then
configs/seed.yaml. Documents are appended; running seed twice stores them twice.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg := getConfig()
		path := cfg.Store.SeedFile
		if len(args) == 1 {
			path = args[0]
		}
		if path == "" {
			path = defaultSeedFile
		}

		ctx := cmd.Context()
		st, err := store.New(ctx, logger, &cfg.Store)
		if err != nil {
			return err
		}
		defer st.Close()

		n, err := store.Seed(ctx, st, path)
		if err != nil {
			return err
		}
		if outputJSON {
			return printJSON(map[string]interface{}{"file": path, "documents": n})
		}
		fmt.Printf("Seeded %d documents from %s\n", n, path)
		return nil
	},
}
