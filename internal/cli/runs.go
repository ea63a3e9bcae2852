package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/vietddude/mailsweep/internal/core/config"
	"github.com/vietddude/mailsweep/internal/infra/storage/postgres"
)

var runsLimit int

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "List archived sweep runs",
	Run:   runRuns,
}

var failuresCmd = &cobra.Command{
	Use:   "failures [run_id]",
	Short: "List the permanent failures recorded for a run",
	Args:  cobra.ExactArgs(1),
	Run:   runFailures,
}

func init() {
	runsCmd.Flags().IntVar(&runsLimit, "limit", 20, "maximum runs to list")
	rootCmd.AddCommand(runsCmd)
	rootCmd.AddCommand(failuresCmd)
}

func openRepo(ctx context.Context) (*postgres.RunRepo, func()) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Database.URL == "" {
		slog.Error("No database configured, nothing archived")
		os.Exit(1)
	}

	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		slog.Error("Failed to connect to database", "error", err)
		os.Exit(1)
	}
	return postgres.NewRunRepo(db), func() { _ = db.Close() }
}

func runRuns(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	repo, closeDB := openRepo(ctx)
	defer closeDB()

	recs, err := repo.ListRuns(ctx, runsLimit)
	if err != nil {
		slog.Error("Failed to list runs", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "RUN\tFOLDER\tMODE\tMATCHED\tDELETED\tFAILED\tWAVES\tSTARTED")
	for _, r := range recs {
		mode := r.Mode
		if r.DryRun {
			mode += " (dry)"
		}
		_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%d\t%d\t%s\n",
			r.RunID, r.Folder, mode, r.Matched, r.Deleted, r.Failed, r.Waves,
			r.StartedAt.Format(time.RFC3339))
	}
	_ = w.Flush()
}

func runFailures(cmd *cobra.Command, args []string) {
	ctx := context.Background()
	repo, closeDB := openRepo(ctx)
	defer closeDB()

	rec, err := repo.GetRun(ctx, args[0])
	if err != nil {
		slog.Error("Failed to load run", "run_id", args[0], "error", err)
		os.Exit(1)
	}
	fmt.Printf("Run %s (%s, mode=%s): %d matched, %d deleted, %d failed, %d waves\n\n",
		rec.RunID, rec.Folder, rec.Mode, rec.Matched, rec.Deleted, rec.Failed, rec.Waves)

	failures, err := repo.ListFailures(ctx, args[0])
	if err != nil {
		slog.Error("Failed to list failures", "error", err)
		os.Exit(1)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 3, ' ', tabwriter.Debug)
	_, _ = fmt.Fprintln(w, "MESSAGE\tSTATUS\tREASON")
	for _, f := range failures {
		_, _ = fmt.Fprintf(w, "%s\t%d\t%s\n", f.ID, f.StatusCode, f.Reason)
	}
	_ = w.Flush()
}
