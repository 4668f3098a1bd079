package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/topicast/topicast/pkg/topicast/pipeline"
)

var examsExam string

// examsCmd represents the exams command
var examsCmd = &cobra.Command{
	Use:   "exams",
	Short: "List exams, or one exam's subjects and chapters",
	RunE:  runExams,
}

func init() {
	rootCmd.AddCommand(examsCmd)

	examsCmd.Flags().StringVar(&examsExam, "exam", "", "show subjects and chapters of this exam")
}

func runExams(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	eng, err := newEngine(ctx, pipeline.Hooks{})
	if err != nil {
		return err
	}
	defer eng.Close()

	if examsExam == "" {
		exams, err := eng.Query().Exams(ctx)
		if err != nil {
			return err
		}
		if len(exams) == 0 {
			fmt.Println("No exams stored. Run 'topicast seed' first.")
			return nil
		}
		for _, e := range exams {
			fmt.Printf("%-10s %s (%s)\n", e.Name, e.FullName, e.Category)
		}
		return nil
	}

	subjects, err := eng.Query().SubjectsForExam(ctx, examsExam)
	if err != nil {
		return err
	}
	for _, sub := range subjects {
		fmt.Printf("%s (%s)\n", sub.Name, sub.Code)
		chapters, err := eng.Query().ChaptersForSubject(ctx, examsExam, sub.Name)
		if err != nil {
			return err
		}
		for _, ch := range chapters {
			fmt.Printf("  %d. %s (%d marks)\n", ch.OrderIndex, ch.Name, ch.WeightageMarks)
		}
	}
	return nil
}
