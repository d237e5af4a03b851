package main

import (
	"fmt"
	"io"
	"time"

	"github.com/aatumaykin/habitflow/internal/app"
	"github.com/aatumaykin/habitflow/internal/cron"
	"github.com/spf13/cobra"
)

// remindersCmd represents the reminders command
var remindersCmd = &cobra.Command{
	Use:   "reminders",
	Short: "Inspect reminder jobs",
}

var previewFrom string

// remindersPreviewCmd arms every stored reminder without starting the
// engine and prints the next fire time of each job.
var remindersPreviewCmd = &cobra.Command{
	Use:   "preview",
	Short: "Show the next fire time of every reminder job",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadValidConfig()
		if err != nil {
			return err
		}
		cfg.Metrics.Enabled = false
		cfg.Notify.Transport = "log"

		log, err := newLogger(cfg)
		if err != nil {
			return err
		}

		a := app.New(cfg, log)
		if err := a.Initialize(cmd.Context()); err != nil {
			return err
		}
		defer a.Shutdown(cmd.Context())

		summary, err := a.Orchestrator().InitializeAllReminders(cmd.Context())
		if err != nil {
			return err
		}

		now := time.Now()
		if previewFrom != "" {
			now, err = time.Parse(time.RFC3339, previewFrom)
			if err != nil {
				return fmt.Errorf("invalid --from: %w", err)
			}
		}

		out := cmd.OutOrStdout()
		printPreview(out, a.Registry(), now)
		fmt.Fprintf(out, "\n%d habit(s): %d scheduled, %d skipped, %d failed, %d job(s)\n",
			summary.Habits, summary.Scheduled, summary.Skipped, summary.Failed, summary.Jobs)
		return nil
	},
}

func printPreview(w io.Writer, registry *cron.Registry, now time.Time) {
	loc := registry.Engine().Location()
	fmt.Fprintf(w, "%-38s %-4s %-6s %s\n", "HABIT", "DAY", "AT", "NEXT")
	for _, job := range registry.Snapshot() {
		next, ok := registry.Next(job.Key, now)
		if !ok {
			continue
		}
		fmt.Fprintf(w, "%-38s %-4s %02d:%02d  %s\n",
			job.Key.HabitID, job.Key.Weekday.Token(), job.Rule.Hour, job.Rule.Minute,
			next.In(loc).Format("2006-01-02 15:04 MST"))
	}
}

func init() {
	remindersPreviewCmd.Flags().StringVar(&previewFrom, "from", "", "compute next fire times from this RFC3339 instant")
	remindersCmd.AddCommand(remindersPreviewCmd)
}
