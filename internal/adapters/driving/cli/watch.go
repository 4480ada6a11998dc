package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/pdfqa/internal/adapters/driving/watch"
	"github.com/custodia-labs/pdfqa/internal/logger"
)

var watchCmd = &cobra.Command{
	Use:   "watch [dir]",
	Short: "Process PDFs as they appear in a directory",
	Long: `Watch a directory and index every PDF that is created or changed in it.
Files whose bytes were indexed before reuse their existing index.

Runs until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().Bool("initial-scan", false, "process PDFs already in the directory")
	watchCmd.Flags().Duration("debounce", watch.DefaultDebounce, "quiet period before a changed file is processed")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	initialScan, err := cmd.Flags().GetBool("initial-scan")
	if err != nil {
		return fmt.Errorf("getting initial-scan flag: %w", err)
	}
	debounce, err := cmd.Flags().GetDuration("debounce")
	if err != nil {
		return fmt.Errorf("getting debounce flag: %w", err)
	}

	svc, err := getServices(cmd.Context())
	if err != nil {
		return err
	}

	opts := []watch.Option{watch.WithDebounce(debounce)}
	if initialScan {
		opts = append(opts, watch.WithInitialScan())
	}
	w := watch.New(args[0], svc.Pipeline, opts...)
	defer w.Close()

	results, err := w.Watch(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to watch %s: %w", args[0], err)
	}

	cmd.Printf("Watching %s for PDFs (ctrl+c to stop)\n", args[0])
	for r := range results {
		stamp := time.Now().Format("15:04:05")
		switch {
		case r.Err != nil:
			logger.Warn("processing %s: %v", r.Path, r.Err)
			cmd.Printf("[%s] %s: failed: %v\n", stamp, r.Path, r.Err)
		case r.Result.IsExisting:
			cmd.Printf("[%s] %s: already indexed (%s)\n", stamp, r.Path, r.Result.Hash)
		default:
			cmd.Printf("[%s] %s: %d chunks indexed (%s)\n", stamp, r.Path, r.Result.ChunkCount, r.Result.Hash)
		}
	}
	return nil
}
