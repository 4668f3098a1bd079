package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/topicast/topicast/pkg/topicast/pipeline"
)

var (
	analyzeExam    string
	analyzeSubject string
	analyzeChapter string
	analyzeJSON    bool
)

// analyzeCmd represents the analyze command
var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Build a frequency and prediction report",
	Long: `Analyze aggregates the stored questions for one exam and subject
(optionally narrowed to a chapter) into a year-wise topic report with
predictions for the next paper.

Names are matched case-insensitively and may be partial: --exam jee
resolves to JEE_MAIN.`,
	RunE: runAnalyze,
}

func init() {
	rootCmd.AddCommand(analyzeCmd)

	analyzeCmd.Flags().StringVar(&analyzeExam, "exam", "", "exam name (required)")
	analyzeCmd.Flags().StringVar(&analyzeSubject, "subject", "", "subject name (required)")
	analyzeCmd.Flags().StringVar(&analyzeChapter, "chapter", "", "narrow the report to one chapter")
	analyzeCmd.Flags().BoolVar(&analyzeJSON, "json", false, "emit the raw report as JSON")
	_ = analyzeCmd.MarkFlagRequired("exam")
	_ = analyzeCmd.MarkFlagRequired("subject")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	eng, err := newEngine(ctx, pipeline.Hooks{})
	if err != nil {
		return err
	}
	defer eng.Close()

	report, err := eng.Analyze(ctx, analyzeExam, analyzeSubject, analyzeChapter)
	if err != nil {
		return err
	}

	if analyzeJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	scope := analyzeExam + " / " + analyzeSubject
	if analyzeChapter != "" {
		scope += " / " + analyzeChapter
	}
	fmt.Printf("Report for %s\n\n", scope)

	fmt.Println("Year-wise coverage:")
	if len(report.YearWiseData) == 0 {
		fmt.Println("  no questions stored yet")
	}
	for _, y := range report.YearWiseData {
		line := fmt.Sprintf("  %d: %d questions", y.Year, y.QuestionCount)
		if len(y.Topics) > 0 {
			line += " (" + strings.Join(y.Topics, ", ") + ")"
		}
		fmt.Println(line)
	}

	fmt.Println("\nPredicted topics:")
	if len(report.Predictions) == 0 {
		fmt.Println("  not enough data for predictions")
	}
	for _, p := range report.Predictions {
		fmt.Printf("  %3d%%  %-28s %-8s %s\n", p.Probability, p.Topic, p.Trend, p.Logic)
	}

	if len(report.SourceDocuments) > 0 {
		fmt.Println("\nSources:")
		for _, s := range report.SourceDocuments {
			fmt.Printf("  %d  %-16s %s\n", s.Year, s.SourceLabel, s.URL)
		}
	}

	fmt.Printf("\nQuestions analyzed: %d\n", report.TotalQuestionsAnalyzed)
	fmt.Printf("Most frequent topic: %s\n", report.MostFrequentTopic)
	fmt.Printf("Data quality: %s (confidence %.2f)\n", report.DataQuality, report.ConfidenceScore)
	return nil
}
