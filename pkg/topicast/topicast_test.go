package topicast

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/topicast/topicast/pkg/topicast/internalerr"
	"github.com/topicast/topicast/pkg/topicast/store"
	"github.com/topicast/topicast/pkg/topicast/store/memstore"
)

func newSeeded(t *testing.T) *Topicast {
	t.Helper()
	ctx := context.Background()

	eng, err := New(Options{Store: memstore.New()})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { eng.Close() })

	if err := eng.Seed(ctx); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	return eng
}

func TestNewDefaults(t *testing.T) {
	eng, err := New(Options{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer eng.Close()

	stats, err := eng.Stats(context.Background())
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Exams != 0 {
		t.Errorf("fresh engine has %d exams, want 0", stats.Exams)
	}
}

func TestSeedIdempotent(t *testing.T) {
	ctx := context.Background()
	eng := newSeeded(t)

	stats, err := eng.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Exams != 3 || stats.Subjects != 10 || stats.Chapters != 10 {
		t.Errorf("seeded counts = %d/%d/%d, want 3/10/10", stats.Exams, stats.Subjects, stats.Chapters)
	}

	if err := eng.Seed(ctx); err != nil {
		t.Fatalf("second Seed: %v", err)
	}
	again, err := eng.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if again != stats {
		t.Errorf("second seed changed counts: %+v -> %+v", stats, again)
	}
}

func TestSeededLookups(t *testing.T) {
	ctx := context.Background()
	eng := newSeeded(t)

	exam, found, err := eng.Store().FindExam(ctx, "jee")
	if err != nil || !found {
		t.Fatalf("FindExam(jee): found=%v err=%v", found, err)
	}
	if exam.Name != "JEE_MAIN" || exam.FullName != "JEE Main" {
		t.Errorf("exam = %+v, want JEE_MAIN / JEE Main", exam)
	}

	chapters, err := eng.Query().ChaptersForSubject(ctx, "cbse", "math")
	if err != nil {
		t.Fatalf("ChaptersForSubject: %v", err)
	}
	if len(chapters) != 5 || chapters[0].Name != "Algebra" || chapters[4].Name != "Statistics" {
		t.Errorf("CBSE math chapters = %+v, want Algebra..Statistics in order", chapters)
	}

	examStats, err := eng.ExamStats(ctx, "cbse")
	if err != nil {
		t.Fatalf("ExamStats: %v", err)
	}
	if examStats.Exam != "Central Board of Secondary Education" {
		t.Errorf("ExamStats.Exam = %q", examStats.Exam)
	}
	if examStats.TotalSubjects != 5 || examStats.TotalQuestions != 0 || examStats.DataQuality != "low" {
		t.Errorf("ExamStats = %+v, want 5 subjects, 0 questions, low quality", examStats)
	}
}

func seedQuestions(t *testing.T, eng *Topicast) store.Scope {
	t.Helper()
	ctx := context.Background()

	exam, _, err := eng.Store().FindExam(ctx, "JEE_MAIN")
	if err != nil {
		t.Fatalf("FindExam: %v", err)
	}
	subject, _, err := eng.Store().FindSubject(ctx, exam.ID, "Physics")
	if err != nil {
		t.Fatalf("FindSubject: %v", err)
	}
	chapter, _, err := eng.Store().FindChapter(ctx, subject.ID, "Thermodynamics")
	if err != nil {
		t.Fatalf("FindChapter: %v", err)
	}

	questions := []store.Question{
		{PDFSource: "jee-2021.pdf", Year: 2021, ExamID: exam.ID, SubjectID: subject.ID, ChapterID: chapter.ID, Text: "Define entropy.", Topics: []string{"Entropy"}},
		{PDFSource: "jee-2022.pdf", Year: 2022, ExamID: exam.ID, SubjectID: subject.ID, ChapterID: chapter.ID, Text: "Carnot cycle efficiency.", Topics: []string{"Carnot Cycle"}},
		{PDFSource: "jee-2023.pdf", Year: 2023, ExamID: exam.ID, SubjectID: subject.ID, ChapterID: chapter.ID, Text: "Entropy of mixing.", Topics: []string{"Entropy"}},
	}
	if err := eng.Store().InsertQuestions(ctx, questions); err != nil {
		t.Fatalf("InsertQuestions: %v", err)
	}
	return store.Scope{ExamID: exam.ID, SubjectID: subject.ID, ChapterID: chapter.ID}
}

func TestAnalyzeEndToEnd(t *testing.T) {
	ctx := context.Background()
	eng := newSeeded(t)
	seedQuestions(t, eng)

	report, err := eng.Analyze(ctx, "jee", "physics", "thermo")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if report.TotalQuestionsAnalyzed != 3 {
		t.Errorf("TotalQuestionsAnalyzed = %d, want 3", report.TotalQuestionsAnalyzed)
	}
	if report.MostFrequentTopic != "Entropy" {
		t.Errorf("MostFrequentTopic = %q, want Entropy", report.MostFrequentTopic)
	}
	if len(report.YearWiseData) != 3 {
		t.Errorf("YearWiseData covers %d years, want 3", len(report.YearWiseData))
	}
	if len(report.Predictions) != 2 {
		t.Fatalf("got %d predictions, want 2", len(report.Predictions))
	}
	for i, p := range report.Predictions {
		if p.Probability < 0 || p.Probability > 100 {
			t.Errorf("prediction %d probability %d out of [0,100]", i, p.Probability)
		}
		if i > 0 && p.Probability > report.Predictions[i-1].Probability {
			t.Errorf("predictions not sorted: %d after %d", p.Probability, report.Predictions[i-1].Probability)
		}
	}

	preds, err := eng.Predict(ctx, "jee", "physics", "", 1)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if len(preds) != 1 {
		t.Errorf("Predict top 1 returned %d rows", len(preds))
	}

	top, err := eng.TopTopics(ctx, "jee", "physics", "", 10)
	if err != nil {
		t.Fatalf("TopTopics: %v", err)
	}
	if len(top) != 2 || top[0].Topic != "Entropy" {
		t.Errorf("TopTopics = %+v, want Entropy first", top)
	}
}

func TestProcessExamDirFlushesCache(t *testing.T) {
	ctx := context.Background()
	eng := newSeeded(t)
	scope := seedQuestions(t, eng)

	first, err := eng.Analyze(ctx, "jee", "physics", "")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if first.TotalQuestionsAnalyzed != 3 {
		t.Fatalf("TotalQuestionsAnalyzed = %d, want 3", first.TotalQuestionsAnalyzed)
	}

	extra := []store.Question{
		{PDFSource: "jee-2024.pdf", Year: 2024, ExamID: scope.ExamID, SubjectID: scope.SubjectID, ChapterID: scope.ChapterID, Text: "Heat engines.", Topics: []string{"Entropy"}},
	}
	if err := eng.Store().InsertQuestions(ctx, extra); err != nil {
		t.Fatalf("InsertQuestions: %v", err)
	}

	// An empty batch still invalidates cached reports.
	empty := filepath.Join(t.TempDir(), "papers")
	if err := os.MkdirAll(empty, 0o755); err != nil {
		t.Fatalf("MkdirAll: %v", err)
	}
	summary, err := eng.ProcessExamDir(ctx, empty, "JEE_MAIN", "", 0)
	if err != nil {
		t.Fatalf("ProcessExamDir: %v", err)
	}
	if summary.TotalPDFs != 0 {
		t.Errorf("TotalPDFs = %d, want 0", summary.TotalPDFs)
	}

	fresh, err := eng.Analyze(ctx, "jee", "physics", "")
	if err != nil {
		t.Fatalf("Analyze after batch: %v", err)
	}
	if fresh.TotalQuestionsAnalyzed != 4 {
		t.Errorf("TotalQuestionsAnalyzed = %d, want 4 after cache flush", fresh.TotalQuestionsAnalyzed)
	}
}

func TestProcessExamDirMissingRoot(t *testing.T) {
	ctx := context.Background()
	eng := newSeeded(t)

	_, err := eng.ProcessExamDir(ctx, filepath.Join(t.TempDir(), "missing"), "JEE_MAIN", "", 0)
	if !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("ProcessExamDir missing root: got %v, want ErrNotFound", err)
	}
}
