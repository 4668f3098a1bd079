package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/topicast/topicast/pkg/topicast/pipeline"
)

var (
	predictExam    string
	predictSubject string
	predictChapter string
	predictTop     int
)

// predictCmd represents the predict command
var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Score the topics most likely to appear next",
	Long: `Predict ranks the topics of one exam and subject by how likely each
is to appear in the next paper, from frequency, recency, gap and trend
signals over the stored years.`,
	RunE: runPredict,
}

func init() {
	rootCmd.AddCommand(predictCmd)

	predictCmd.Flags().StringVar(&predictExam, "exam", "", "exam name (required)")
	predictCmd.Flags().StringVar(&predictSubject, "subject", "", "subject name (required)")
	predictCmd.Flags().StringVar(&predictChapter, "chapter", "", "narrow to one chapter")
	predictCmd.Flags().IntVar(&predictTop, "top", 5, "number of topics to show")
	_ = predictCmd.MarkFlagRequired("exam")
	_ = predictCmd.MarkFlagRequired("subject")
}

func runPredict(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	eng, err := newEngine(ctx, pipeline.Hooks{})
	if err != nil {
		return err
	}
	defer eng.Close()

	predictions, err := eng.Predict(ctx, predictExam, predictSubject, predictChapter, predictTop)
	if err != nil {
		return err
	}
	if len(predictions) == 0 {
		fmt.Println("No topic history stored for this scope yet.")
		return nil
	}

	for i, p := range predictions {
		fmt.Printf("%d. %s\n", i+1, p.Topic)
		fmt.Printf("   probability %.0f%%  confidence %.2f  trend %s\n",
			p.Probability*100, p.Confidence, p.Trend)
		fmt.Printf("   %s\n", p.Reasoning)
	}
	return nil
}
