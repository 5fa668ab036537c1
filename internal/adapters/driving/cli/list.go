package cli

import (
	"errors"
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/megu-dl/megu/internal/core/domain"
)

var listCmd = &cobra.Command{
	Use:   "list URL",
	Short: "List the content available at a URL",
	Long: `Discovers the content behind a URL without downloading anything and
prints it grouped by content group, best quality first.`,
	Args: cobra.ExactArgs(1),
	RunE: runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	if err := initServices(); err != nil {
		return err
	}
	if pipeline == nil {
		return errors.New("pipeline not configured")
	}

	discovered, err := pipeline.Discover(cmd.Context(), args[0])
	if err != nil {
		return err
	}
	if len(discovered) == 0 {
		cmd.Println("No content found.")
		return nil
	}

	groups, order := groupContent(discovered)
	for _, group := range order {
		cmd.Printf("%s\n", group)
		for _, content := range groups[group] {
			cmd.Printf("  %-40s quality=%-8s type=%-24s size=%s\n",
				content.Name, formatQuality(content.Quality), content.Type, formatSize(content.Size))
		}
	}

	return nil
}

// groupContent buckets content by group, quality descending within each
// group, preserving first-seen group order.
func groupContent(discovered []domain.Content) (map[string][]domain.Content, []string) {
	groups := make(map[string][]domain.Content)
	order := make([]string, 0)

	for _, content := range discovered {
		group := content.Group
		if group == "" {
			group = content.ID
		}
		if _, seen := groups[group]; !seen {
			order = append(order, group)
		}
		groups[group] = append(groups[group], content)
	}

	for _, group := range order {
		bucket := groups[group]
		sort.SliceStable(bucket, func(i, j int) bool {
			return bucket[i].Quality > bucket[j].Quality
		})
	}

	return groups, order
}

// formatQuality trims trailing zeros from a quality value.
func formatQuality(quality float64) string {
	return fmt.Sprintf("%g", quality)
}

// formatSize renders a byte count human-readably.
func formatSize(size int64) string {
	if size <= 0 {
		return "unknown"
	}

	const unit = 1024
	if size < unit {
		return fmt.Sprintf("%d B", size)
	}
	div, exp := int64(unit), 0
	for n := size / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(size)/float64(div), "KMGTPE"[exp])
}
