package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/vietddude/mailsweep/internal/core/config"
	redisclient "github.com/vietddude/mailsweep/internal/infra/redis"
)

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint [run_id]",
	Short: "Show or clear the pending checkpoint of an interrupted run",
	Args:  cobra.ExactArgs(1),
	Run:   runCheckpoint,
}

var clearCheckpoint bool

func init() {
	checkpointCmd.Flags().BoolVar(&clearCheckpoint, "clear", false, "delete the checkpoint instead of showing it")
	rootCmd.AddCommand(checkpointCmd)
}

func runCheckpoint(cmd *cobra.Command, args []string) {
	runID := args[0]

	cfg, err := config.Load(cfgPath)
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Redis.URL == "" {
		slog.Error("No redis configured, checkpoints unavailable")
		os.Exit(1)
	}

	client, err := redisclient.NewClient(cfg.Redis)
	if err != nil {
		slog.Error("Failed to connect to redis", "error", err)
		os.Exit(1)
	}
	defer func() { _ = client.Close() }()

	ctx := context.Background()
	store := redisclient.NewCheckpointStore(client)

	if clearCheckpoint {
		if err := store.Clear(ctx, runID); err != nil {
			slog.Error("Failed to clear checkpoint", "error", err)
			os.Exit(1)
		}
		fmt.Printf("Cleared checkpoint for run %s\n", runID)
		return
	}

	wave, ids, err := store.LoadPending(ctx, runID)
	if err != nil {
		slog.Error("Failed to load checkpoint", "error", err)
		os.Exit(1)
	}
	if len(ids) == 0 {
		fmt.Printf("No checkpoint for run %s\n", runID)
		return
	}
	fmt.Printf("Run %s: %d messages pending before wave %d\n", runID, len(ids), wave)
	for _, id := range ids {
		fmt.Println(" ", id)
	}
}
