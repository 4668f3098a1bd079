package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/topicast/topicast/pkg/topicast/pipeline"
)

var statsExam string

// statsCmd represents the stats command
var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show store counts, or one exam's coverage",
	RunE:  runStats,
}

func init() {
	rootCmd.AddCommand(statsCmd)

	statsCmd.Flags().StringVar(&statsExam, "exam", "", "show coverage of this exam")
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	eng, err := newEngine(ctx, pipeline.Hooks{})
	if err != nil {
		return err
	}
	defer eng.Close()

	if statsExam != "" {
		stats, err := eng.ExamStats(ctx, statsExam)
		if err != nil {
			return err
		}
		fmt.Printf("Exam:           %s\n", stats.Exam)
		fmt.Printf("Subjects:       %d\n", stats.TotalSubjects)
		fmt.Printf("Questions:      %d\n", stats.TotalQuestions)
		fmt.Printf("Years covered:  %d\n", stats.YearsCovered)
		fmt.Printf("Data quality:   %s\n", stats.DataQuality)
		return nil
	}

	stats, err := eng.Stats(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("Exams:              %d\n", stats.Exams)
	fmt.Printf("Subjects:           %d\n", stats.Subjects)
	fmt.Printf("Chapters:           %d\n", stats.Chapters)
	fmt.Printf("Questions:          %d\n", stats.Questions)
	fmt.Printf("Topic frequencies:  %d\n", stats.TopicFrequencies)
	fmt.Printf("Predictions:        %d\n", stats.Predictions)
	fmt.Printf("Source documents:   %d\n", stats.SourceDocuments)
	return nil
}
