package cli

import (
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/topicast/topicast/pkg/topicast/pipeline"
)

var (
	processExam    string
	processSubject string
)

// processCmd represents the process command
var processCmd = &cobra.Command{
	Use:   "process <dir>",
	Short: "Ingest question paper PDFs from a directory",
	Long: `Process walks a directory tree of question paper PDFs, extracts the
text, segments it into questions, tags each question against the
curriculum and stores everything for analysis.

Path components supply metadata: a 4-digit directory or filename part
is the paper year, a month name the session, and the file stem names
the subject.

Example:
  topicast process ./papers --exam JEE_MAIN
  topicast process ./papers --exam CBSE --subject mathematics --limit 10`,
	Args: cobra.ExactArgs(1),
	RunE: runProcess,
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().StringVar(&processExam, "exam", "", "exam the papers belong to (required)")
	processCmd.Flags().StringVar(&processSubject, "subject", "", "only process files whose path mentions this subject")
	processCmd.Flags().Int("limit", 0, "process at most N PDFs (0 = no limit)")
	processCmd.Flags().Int("workers", 0, "concurrent documents")
	_ = processCmd.MarkFlagRequired("exam")

	_ = viper.BindPFlag("pipeline.limit", processCmd.Flags().Lookup("limit"))
	_ = viper.BindPFlag("pipeline.workers", processCmd.Flags().Lookup("workers"))
}

func runProcess(cmd *cobra.Command, args []string) error {
	root := args[0]
	ctx := cmd.Context()

	eng, err := newEngine(ctx, pipeline.Hooks{})
	if err != nil {
		return err
	}
	defer eng.Close()

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Topicast Batch Processing\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  Directory:  %s\n", root)
	fmt.Fprintf(os.Stderr, "  Exam:       %s\n", processExam)
	if processSubject != "" {
		fmt.Fprintf(os.Stderr, "  Subject:    %s\n", processSubject)
	}
	fmt.Fprintf(os.Stderr, "  Workers:    %d\n", cfg.Pipeline.Workers)
	if cfg.Pipeline.Limit > 0 {
		fmt.Fprintf(os.Stderr, "  Limit:      %d\n", cfg.Pipeline.Limit)
	}
	fmt.Fprintf(os.Stderr, "\n")

	start := time.Now()
	summary, err := eng.ProcessExamDir(ctx, root, processExam, processSubject, cfg.Pipeline.Limit)
	if err != nil {
		return fmt.Errorf("processing %s: %w", root, err)
	}

	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "  Batch Complete\n")
	fmt.Fprintf(os.Stderr, "═══════════════════════════════════════════════════════════\n")
	fmt.Fprintf(os.Stderr, "\n")
	fmt.Fprintf(os.Stderr, "  PDFs:       %d\n", summary.TotalPDFs)
	fmt.Fprintf(os.Stderr, "  Processed:  %d\n", summary.Processed)
	fmt.Fprintf(os.Stderr, "  Failed:     %d\n", summary.Failed)
	fmt.Fprintf(os.Stderr, "  Questions:  %d\n", summary.TotalQuestions)
	fmt.Fprintf(os.Stderr, "  Elapsed:    %s\n", time.Since(start).Round(time.Millisecond))

	if len(summary.BySubject) > 0 {
		fmt.Fprintf(os.Stderr, "\n")
		subjects := make([]string, 0, len(summary.BySubject))
		for s := range summary.BySubject {
			subjects = append(subjects, s)
		}
		sort.Strings(subjects)
		for _, s := range subjects {
			fmt.Fprintf(os.Stderr, "  ✓ %s: %d questions\n", s, summary.BySubject[s])
		}
	}
	fmt.Fprintf(os.Stderr, "\n")
	return nil
}
