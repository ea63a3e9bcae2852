package cli

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/mailsweep/internal/control"
	"github.com/vietddude/mailsweep/internal/core/config"
	"github.com/vietddude/mailsweep/internal/core/domain"
)

var (
	cfgPath   string
	isDebug   bool
	dryRun    bool
	assumeYes bool
	testAuth  bool
)

var rootCmd = &cobra.Command{
	Use:   "mailsweep",
	Short: "Mailsweep bulk mailbox cleanup",
	Long:  `Mailsweep deletes matching mailbox messages in throttle-aware parallel batches.`,
	Run:   runSweep,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
	rootCmd.Flags().BoolVar(&dryRun, "dry-run", false, "select and report, delete nothing")
	rootCmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "skip the confirmation prompt")
	rootCmd.Flags().BoolVar(&testAuth, "test-auth", false, "sign in and list folders, then exit")
}

func runSweep(cmd *cobra.Command, args []string) {
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		stylelog.InitDefault()
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		stylelog.InitDefault()
		slog.Error("Invalid config", "error", err)
		os.Exit(1)
	}

	setupLogging(*cfg)

	app, err := control.NewSweeper(*cfg, control.Options{
		DryRun:    dryRun,
		AssumeYes: assumeYes,
		Confirm:   promptConfirm,
		Notify:    printDeviceCode,
	})
	if err != nil {
		slog.Error("Failed to initialize sweeper", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigChan
		slog.Warn("Received signal, finishing in-flight batches...", "signal", sig)
		cancel()
		// A second signal aborts immediately.
		<-sigChan
		os.Exit(130)
	}()

	if testAuth {
		if err := app.TestAuth(ctx); err != nil {
			slog.Error("Auth test failed", "error", err)
			os.Exit(1)
		}
		slog.Info("Auth test passed")
		return
	}

	summary, err := app.Run(ctx)
	if err != nil {
		slog.Error("Sweep failed", "error", err)
		if summary != nil {
			printSummary(summary)
		}
		os.Exit(1)
	}

	printSummary(summary)
	if summary.Cancelled {
		os.Exit(1)
	}
}

func setupLogging(cfg config.AppConfig) {
	slogLevel := slog.LevelInfo
	if isDebug || cfg.Logging.Level == "debug" {
		slogLevel = slog.LevelDebug
	}

	stylelog.InitDefault(&tint.Options{
		Level:      slogLevel,
		TimeFormat: time.RFC3339,
	})
}

// printDeviceCode shows the sign-in instructions on stdout, outside the
// log stream, so they stay visible.
func printDeviceCode(verificationURI, userCode string) {
	fmt.Printf("\nTo sign in, open %s and enter the code %s\n\n", verificationURI, userCode)
}

// promptConfirm asks before a large deletion.
func promptConfirm(matched int) bool {
	fmt.Printf("About to delete %d messages. Continue? [y/N]: ", matched)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes"
}

func printSummary(s *domain.Summary) {
	fmt.Printf("\nRun %s (%s, mode=%s", s.RunID, s.Folder, s.Mode)
	if s.DryRun {
		fmt.Print(", dry-run")
	}
	fmt.Println(")")
	fmt.Printf("  matched:       %d\n", s.Matched)
	fmt.Printf("  deleted:       %d\n", s.Deleted)
	fmt.Printf("  failed:        %d\n", len(s.Failed))
	fmt.Printf("  not processed: %d\n", s.NotProcessed)
	fmt.Printf("  waves:         %d\n", s.Waves)
	fmt.Printf("  duration:      %s\n", s.Finished.Sub(s.Started).Round(time.Second))
	if s.Cancelled {
		fmt.Println("  run was cancelled before completion")
	}
	for _, f := range s.Failed {
		fmt.Printf("  failed %s: %s\n", f.ID, f.Reason)
	}
}
