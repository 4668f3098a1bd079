package query

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/topicast/topicast/pkg/topicast/internalerr"
	"github.com/topicast/topicast/pkg/topicast/store"
	"github.com/topicast/topicast/pkg/topicast/store/memstore"
	"github.com/topicast/topicast/pkg/topicast/trend"
)

func seedStore(t *testing.T) (*memstore.Store, store.Scope) {
	t.Helper()
	ctx := context.Background()
	st := memstore.New()

	examID, err := st.UpsertExam(ctx, store.Exam{
		Name:     "JEE_MAIN",
		FullName: "Joint Entrance Examination - Main",
		Category: "competitive",
	})
	if err != nil {
		t.Fatalf("UpsertExam: %v", err)
	}
	subjectID, err := st.UpsertSubject(ctx, store.Subject{ExamID: examID, Name: "Physics", Code: "PHY"})
	if err != nil {
		t.Fatalf("UpsertSubject: %v", err)
	}
	chapterID, err := st.UpsertChapter(ctx, store.Chapter{
		SubjectID:      subjectID,
		Name:           "Thermodynamics",
		WeightageMarks: 15,
		OrderIndex:     2,
	})
	if err != nil {
		t.Fatalf("UpsertChapter: %v", err)
	}

	questions := []store.Question{
		{PDFSource: "phy-2021.pdf", Year: 2021, ExamID: examID, SubjectID: subjectID, ChapterID: chapterID, Text: "Define entropy.", Topics: []string{"Entropy"}},
		{PDFSource: "phy-2022.pdf", Year: 2022, ExamID: examID, SubjectID: subjectID, ChapterID: chapterID, Text: "Carnot engine efficiency.", Topics: []string{"Entropy", "Carnot Cycle"}},
		{PDFSource: "phy-2023.pdf", Year: 2023, ExamID: examID, SubjectID: subjectID, ChapterID: chapterID, Text: "Entropy change of mixing.", Topics: []string{"Entropy"}},
	}
	if err := st.InsertQuestions(ctx, questions); err != nil {
		t.Fatalf("InsertQuestions: %v", err)
	}

	docs := []store.SourceDocument{
		{ID: "doc-2023", ExamID: examID, Year: 2023, ExamName: "JEE_MAIN", SourceLabel: "Physics", FilePath: "/data/phy-2023.pdf", Status: store.SourceProcessed},
		{ID: "doc-2022", ExamID: examID, Year: 2022, ExamName: "JEE_MAIN", SourceLabel: "Physics", FilePath: "/data/phy-2022.pdf", URL: "https://example.com/phy-2022.pdf", Status: store.SourceProcessed},
	}
	for _, doc := range docs {
		if err := st.RecordSourceDocument(ctx, doc); err != nil {
			t.Fatalf("RecordSourceDocument: %v", err)
		}
	}

	return st, store.Scope{ExamID: examID, SubjectID: subjectID, ChapterID: chapterID}
}

func newTestService(t *testing.T, st store.Store) *Service {
	t.Helper()
	svc, err := New(Options{
		Store:    st,
		CacheTTL: time.Hour,
		Now: func() time.Time {
			return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
		},
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return svc
}

func TestNewRequiresStore(t *testing.T) {
	_, err := New(Options{})
	if !errors.Is(err, internalerr.ErrInvalidConfig) {
		t.Fatalf("New without store: got %v, want ErrInvalidConfig", err)
	}
}

func TestAnalyzeNotFoundErrors(t *testing.T) {
	ctx := context.Background()
	st, _ := seedStore(t)
	svc := newTestService(t, st)

	cases := []struct {
		name                   string
		exam, subject, chapter string
		wantMsg                string
	}{
		{"missing exam", "GATE", "Physics", "", "exam 'GATE'"},
		{"missing subject", "jee", "Biology", "", "subject 'Biology' for exam 'JEE_MAIN'"},
		{"missing chapter", "jee", "phys", "Optics", "chapter 'Optics' for subject 'Physics'"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.Analyze(ctx, tc.exam, tc.subject, tc.chapter)
			if !errors.Is(err, internalerr.ErrNotFound) {
				t.Fatalf("Analyze: got %v, want ErrNotFound", err)
			}
			if !strings.Contains(err.Error(), tc.wantMsg) {
				t.Errorf("error %q does not mention %q", err.Error(), tc.wantMsg)
			}
		})
	}
}

func TestAnalyzeSubjectWideReport(t *testing.T) {
	ctx := context.Background()
	st, scope := seedStore(t)
	svc := newTestService(t, st)

	report, err := svc.Analyze(ctx, "jee", "physics", "")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if report.TotalQuestionsAnalyzed != 3 {
		t.Errorf("TotalQuestionsAnalyzed = %d, want 3", report.TotalQuestionsAnalyzed)
	}
	if report.MostFrequentTopic != "Entropy" {
		t.Errorf("MostFrequentTopic = %q, want Entropy", report.MostFrequentTopic)
	}
	if report.DataQuality != "medium" {
		t.Errorf("DataQuality = %q, want medium", report.DataQuality)
	}
	if report.ConfidenceScore != 0.43 {
		t.Errorf("ConfidenceScore = %v, want 0.43", report.ConfidenceScore)
	}

	wantYears := []YearData{
		{Year: 2021, QuestionCount: 1, Topics: []string{"Entropy"}},
		{Year: 2022, QuestionCount: 1, Topics: []string{"Carnot Cycle", "Entropy"}},
		{Year: 2023, QuestionCount: 1, Topics: []string{"Entropy"}},
	}
	if !reflect.DeepEqual(report.YearWiseData, wantYears) {
		t.Errorf("YearWiseData = %+v, want %+v", report.YearWiseData, wantYears)
	}

	if len(report.Predictions) != 2 {
		t.Fatalf("got %d predictions, want 2", len(report.Predictions))
	}
	carnot := report.Predictions[0]
	if carnot.Topic != "Carnot Cycle" || carnot.Probability != 42 {
		t.Errorf("top prediction = %+v, want Carnot Cycle at 42", carnot)
	}
	if carnot.Trend != trend.TrendStable {
		t.Errorf("Carnot trend = %q, want stable", carnot.Trend)
	}
	wantLogic := "Low frequency (1.0 questions/year). gap of 2 years increases probability."
	if carnot.Logic != wantLogic {
		t.Errorf("Carnot logic = %q, want %q", carnot.Logic, wantLogic)
	}
	entropy := report.Predictions[1]
	if entropy.Topic != "Entropy" || entropy.Probability != 37 {
		t.Errorf("second prediction = %+v, want Entropy at 37", entropy)
	}

	wantSources := []SourceDocument{
		{Year: 2023, ExamName: "JEE_MAIN", SourceLabel: "Physics", URL: "/data/phy-2023.pdf"},
		{Year: 2022, ExamName: "JEE_MAIN", SourceLabel: "Physics", URL: "https://example.com/phy-2022.pdf"},
	}
	if !reflect.DeepEqual(report.SourceDocuments, wantSources) {
		t.Errorf("SourceDocuments = %+v, want %+v", report.SourceDocuments, wantSources)
	}

	// The forecast is persisted at the analyzed scope.
	subjectScope := store.Scope{ExamID: scope.ExamID, SubjectID: scope.SubjectID}
	saved, err := st.PredictionsByScope(ctx, subjectScope, 10)
	if err != nil {
		t.Fatalf("PredictionsByScope: %v", err)
	}
	if len(saved) != 2 {
		t.Fatalf("got %d saved predictions, want 2", len(saved))
	}
	if saved[0].Topic != "Carnot Cycle" || saved[0].Probability != 0.42 {
		t.Errorf("saved[0] = %+v, want Carnot Cycle at 0.42", saved[0])
	}
}

func TestAnalyzeChapterScoped(t *testing.T) {
	ctx := context.Background()
	st, scope := seedStore(t)
	svc := newTestService(t, st)

	opticsID, err := st.UpsertChapter(ctx, store.Chapter{SubjectID: scope.SubjectID, Name: "Optics", OrderIndex: 4})
	if err != nil {
		t.Fatalf("UpsertChapter: %v", err)
	}
	extra := []store.Question{
		{PDFSource: "phy-2022.pdf", Year: 2022, ExamID: scope.ExamID, SubjectID: scope.SubjectID, ChapterID: opticsID, Text: "Thin lens formula.", Topics: []string{"Lenses"}},
	}
	if err := st.InsertQuestions(ctx, extra); err != nil {
		t.Fatalf("InsertQuestions: %v", err)
	}

	report, err := svc.Analyze(ctx, "jee", "physics", "thermo")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	if report.TotalQuestionsAnalyzed != 3 {
		t.Errorf("TotalQuestionsAnalyzed = %d, want 3", report.TotalQuestionsAnalyzed)
	}
	for _, p := range report.Predictions {
		if p.Topic == "Lenses" {
			t.Errorf("chapter scope leaked prediction for %q", p.Topic)
		}
	}

	saved, err := st.PredictionsByScope(ctx, scope, 10)
	if err != nil {
		t.Fatalf("PredictionsByScope: %v", err)
	}
	if len(saved) != 2 {
		t.Errorf("got %d chapter predictions, want 2", len(saved))
	}
	opticsScope := store.Scope{ExamID: scope.ExamID, SubjectID: scope.SubjectID, ChapterID: opticsID}
	other, err := st.PredictionsByScope(ctx, opticsScope, 10)
	if err != nil {
		t.Fatalf("PredictionsByScope: %v", err)
	}
	if len(other) != 0 {
		t.Errorf("optics scope has %d predictions, want 0", len(other))
	}
}

func TestAnalyzeCacheAndFlush(t *testing.T) {
	ctx := context.Background()
	st, scope := seedStore(t)
	svc := newTestService(t, st)

	first, err := svc.Analyze(ctx, "jee", "physics", "")
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if first.TotalQuestionsAnalyzed != 3 {
		t.Fatalf("TotalQuestionsAnalyzed = %d, want 3", first.TotalQuestionsAnalyzed)
	}

	more := []store.Question{
		{PDFSource: "phy-2024.pdf", Year: 2024, ExamID: scope.ExamID, SubjectID: scope.SubjectID, ChapterID: scope.ChapterID, Text: "Heat engines.", Topics: []string{"Entropy"}},
	}
	if err := st.InsertQuestions(ctx, more); err != nil {
		t.Fatalf("InsertQuestions: %v", err)
	}

	cached, err := svc.Analyze(ctx, "jee", "physics", "")
	if err != nil {
		t.Fatalf("Analyze cached: %v", err)
	}
	if cached.TotalQuestionsAnalyzed != 3 {
		t.Errorf("cached TotalQuestionsAnalyzed = %d, want 3", cached.TotalQuestionsAnalyzed)
	}

	svc.FlushCache()
	fresh, err := svc.Analyze(ctx, "jee", "physics", "")
	if err != nil {
		t.Fatalf("Analyze after flush: %v", err)
	}
	if fresh.TotalQuestionsAnalyzed != 4 {
		t.Errorf("fresh TotalQuestionsAnalyzed = %d, want 4", fresh.TotalQuestionsAnalyzed)
	}
}

func TestBuildReportFallbacks(t *testing.T) {
	predictions := []trend.Prediction{{Topic: "Entropy", Probability: 0.5}}
	report := buildReport(nil, predictions, nil, nil)

	if len(report.YearWiseData) != 0 {
		t.Errorf("YearWiseData = %+v, want empty", report.YearWiseData)
	}
	if report.MostFrequentTopic != "Unknown" {
		t.Errorf("MostFrequentTopic = %q, want Unknown", report.MostFrequentTopic)
	}
	if report.DataQuality != "low" {
		t.Errorf("DataQuality = %q, want low", report.DataQuality)
	}
	if report.ConfidenceScore != 0 {
		t.Errorf("ConfidenceScore = %v, want 0", report.ConfidenceScore)
	}

	p := report.Predictions[0]
	if p.Probability != 50 {
		t.Errorf("Probability = %d, want 50", p.Probability)
	}
	if p.Logic != "Based on historical frequency" {
		t.Errorf("Logic = %q, want fallback", p.Logic)
	}
	if p.Trend != trend.TrendStable {
		t.Errorf("Trend = %q, want stable", p.Trend)
	}
}

func TestPredictAndTopTopics(t *testing.T) {
	ctx := context.Background()
	st, _ := seedStore(t)
	svc := newTestService(t, st)

	// Analyze populates the frequency table Predict reads from.
	if _, err := svc.Analyze(ctx, "jee", "physics", ""); err != nil {
		t.Fatalf("Analyze: %v", err)
	}

	preds, err := svc.Predict(ctx, "jee", "physics", "", 1)
	if err != nil {
		t.Fatalf("Predict: %v", err)
	}
	if len(preds) != 1 || preds[0].Topic != "Carnot Cycle" {
		t.Errorf("Predict top 1 = %+v, want Carnot Cycle", preds)
	}

	top, err := svc.TopTopics(ctx, "jee", "physics", "", 2)
	if err != nil {
		t.Fatalf("TopTopics: %v", err)
	}
	if len(top) != 2 || top[0].Topic != "Entropy" || top[0].Count != 3 {
		t.Errorf("TopTopics = %+v, want Entropy count 3 first", top)
	}

	if _, err := svc.Predict(ctx, "GATE", "Physics", "", 0); !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("Predict missing exam: got %v, want ErrNotFound", err)
	}
}

func TestExamStats(t *testing.T) {
	ctx := context.Background()
	st, _ := seedStore(t)
	svc := newTestService(t, st)

	stats, err := svc.ExamStats(ctx, "jee")
	if err != nil {
		t.Fatalf("ExamStats: %v", err)
	}
	want := &ExamStats{
		Exam:           "Joint Entrance Examination - Main",
		TotalQuestions: 3,
		TotalSubjects:  1,
		YearsCovered:   3,
		DataQuality:    "medium",
	}
	if !reflect.DeepEqual(stats, want) {
		t.Errorf("ExamStats = %+v, want %+v", stats, want)
	}

	if _, err := svc.ExamStats(ctx, "GATE"); !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("ExamStats missing exam: got %v, want ErrNotFound", err)
	}
}

func TestLookupHelpers(t *testing.T) {
	ctx := context.Background()
	st, scope := seedStore(t)
	svc := newTestService(t, st)

	exams, err := svc.Exams(ctx)
	if err != nil {
		t.Fatalf("Exams: %v", err)
	}
	if len(exams) != 1 || exams[0].Name != "JEE_MAIN" {
		t.Errorf("Exams = %+v, want [JEE_MAIN]", exams)
	}

	found, err := svc.SearchExams(ctx, "main")
	if err != nil {
		t.Fatalf("SearchExams: %v", err)
	}
	if len(found) != 1 {
		t.Errorf("SearchExams = %+v, want one match", found)
	}

	subjects, err := svc.SubjectsForExam(ctx, "jee")
	if err != nil {
		t.Fatalf("SubjectsForExam: %v", err)
	}
	if len(subjects) != 1 || subjects[0].ID != scope.SubjectID {
		t.Errorf("SubjectsForExam = %+v, want the seeded subject", subjects)
	}

	chapters, err := svc.ChaptersForSubject(ctx, "jee", "phys")
	if err != nil {
		t.Fatalf("ChaptersForSubject: %v", err)
	}
	if len(chapters) != 1 || chapters[0].Name != "Thermodynamics" {
		t.Errorf("ChaptersForSubject = %+v, want [Thermodynamics]", chapters)
	}

	if _, err := svc.SubjectsForExam(ctx, "GATE"); !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("SubjectsForExam missing exam: got %v, want ErrNotFound", err)
	}
	if _, err := svc.ChaptersForSubject(ctx, "jee", "Biology"); !errors.Is(err, internalerr.ErrNotFound) {
		t.Errorf("ChaptersForSubject missing subject: got %v, want ErrNotFound", err)
	}
}
