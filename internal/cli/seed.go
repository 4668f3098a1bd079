package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/topicast/topicast/pkg/topicast/pipeline"
)

// seedCmd represents the seed command
var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create the baseline exam hierarchy",
	Long: `Seed inserts the baseline exams (UPSC, CBSE, JEE_MAIN) with their
subjects and sample chapters into an empty store. A store that already
holds exams is left untouched, so seed is safe to run repeatedly.`,
	RunE: runSeed,
}

func init() {
	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	eng, err := newEngine(ctx, pipeline.Hooks{})
	if err != nil {
		return err
	}
	defer eng.Close()

	if err := eng.Seed(ctx); err != nil {
		return fmt.Errorf("seeding store: %w", err)
	}

	stats, err := eng.Stats(ctx)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stderr, "✓ Store ready: %d exams, %d subjects, %d chapters\n",
		stats.Exams, stats.Subjects, stats.Chapters)
	return nil
}
