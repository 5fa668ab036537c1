package cli

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/megu-dl/megu/internal/core/services"
)

var (
	getDir     string
	getName    string
	getQuality float64
	getType    string
)

var getCmd = &cobra.Command{
	Use:   "get URL...",
	Short: "Download the best content at each URL",
	Long: `Discovers the content behind each URL, keeps the best variant of
every item (optionally narrowed by name, quality, or type), and downloads
the survivors into the destination directory.

Items whose destination file already verifies against the declared
checksum are skipped.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runGet,
}

func init() {
	getCmd.Flags().StringVarP(&getDir, "dir", "d", "", "destination directory (default from config, else the working directory)")
	getCmd.Flags().StringVarP(&getName, "name", "n", "", "keep only content whose name contains this fragment")
	getCmd.Flags().Float64VarP(&getQuality, "quality", "q", 0, "keep only content with exactly this quality")
	getCmd.Flags().StringVarP(&getType, "type", "t", "", "keep only content with this mimetype")
	rootCmd.AddCommand(getCmd)
}

func runGet(cmd *cobra.Command, args []string) error {
	if err := initServices(); err != nil {
		return err
	}
	if pipeline == nil {
		return errors.New("pipeline not configured")
	}

	toDir := getDir
	if toDir == "" && settingsStore != nil {
		toDir = settingsStore.Settings().DownloadDir
	}
	if toDir == "" {
		toDir = "."
	}

	pipeline.SetFilter(getFilter())
	pipeline.SetProgress(newProgressReporter().report)

	var failed int
	for _, rawURL := range args {
		if err := getOne(cmd.Context(), cmd, rawURL, toDir); err != nil {
			failed++
			cmd.PrintErrf("%s: %v\n", rawURL, err)
		}
	}

	if failed > 0 {
		return fmt.Errorf("%d of %d URLs failed", failed, len(args))
	}
	return nil
}

// getOne runs the pipeline for a single URL and reports its results.
func getOne(ctx context.Context, cmd *cobra.Command, rawURL, toDir string) error {
	results, err := pipeline.Fetch(ctx, rawURL, toDir)
	if err != nil {
		return err
	}

	var failures int
	for result := range results {
		switch {
		case result.Err != nil:
			failures++
			cmd.PrintErrf("Failed %s: %v\n", result.Content.ID, result.Err)
		case result.Skipped:
			cmd.Printf("Skipped %s: already downloaded at %s\n", result.Content.ID, result.Path)
		default:
			cmd.Printf("Downloaded %s -> %s\n", result.Content.ID, result.Path)
		}
	}

	if failures > 0 {
		return fmt.Errorf("%d content items failed", failures)
	}
	return nil
}

// getFilter builds the content filter from the command's flags, always
// ending with the best-variant selection.
func getFilter() services.ContentFilter {
	filters := make([]services.ContentFilter, 0, 4)
	if getName != "" {
		filters = append(filters, services.ByName(getName))
	}
	if getQuality > 0 {
		filters = append(filters, services.ByQuality(getQuality))
	}
	if getType != "" {
		filters = append(filters, services.ByType(getType))
	}
	filters = append(filters, services.BestContent)
	return services.Compose(filters...)
}

// progressReporter renders one progress bar per content item.
type progressReporter struct {
	mu   sync.Mutex
	bars map[string]*progressbar.ProgressBar
}

func newProgressReporter() *progressReporter {
	return &progressReporter{bars: make(map[string]*progressbar.ProgressBar)}
}

// report is a driven.ProgressFunc. Downloads call it concurrently.
func (r *progressReporter) report(contentID string, n int, total int64) {
	r.mu.Lock()
	bar, ok := r.bars[contentID]
	if !ok {
		if total <= 0 {
			total = -1 // spinner when the size is unknown
		}
		bar = progressbar.DefaultBytes(total, contentID)
		r.bars[contentID] = bar
	}
	r.mu.Unlock()

	_ = bar.Add(n)
}
