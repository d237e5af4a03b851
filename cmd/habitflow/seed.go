package main

import (
	"fmt"
	"os"

	"github.com/aatumaykin/habitflow/internal/store"
	"github.com/spf13/cobra"
)

// seedCmd represents the seed command
var seedCmd = &cobra.Command{
	Use:   "seed <file.yaml>",
	Short: "Load users and habits from a YAML file",
	Long: `Upsert the users and habits of a YAML fixture into the configured store.
Users are written first; every habit must reference an existing user.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadValidConfig()
		if err != nil {
			return err
		}
		log, err := newLogger(cfg)
		if err != nil {
			return err
		}

		f, err := os.Open(args[0])
		if err != nil {
			return fmt.Errorf("failed to open seed file: %w", err)
		}
		defer f.Close()

		st, err := store.Open(cfg.Store.Store(), log)
		if err != nil {
			return err
		}
		defer st.Close()

		res, err := store.Seed(cmd.Context(), st, f)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Seeded %d user(s) and %d habit(s)\n", len(res.Users), len(res.Habits))
		return nil
	},
}
