package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/topicast/topicast/pkg/topicast/internalerr"
	"github.com/topicast/topicast/pkg/topicast/store"
)

func openTestStore(t *testing.T) store.Store {
	t.Helper()
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	st, err := Open(ctx, dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { st.Close() })
	return st
}

func seedHierarchy(t *testing.T, st store.Store) (examID, subjectID, chapterID int64) {
	t.Helper()
	ctx := context.Background()

	examID, err := st.UpsertExam(ctx, store.Exam{Name: "JEE_MAIN", FullName: "Joint Entrance Examination - Main", Category: "competitive"})
	if err != nil {
		t.Fatalf("UpsertExam: %v", err)
	}
	subjectID, err = st.UpsertSubject(ctx, store.Subject{ExamID: examID, Name: "Physics", Code: "PHY"})
	if err != nil {
		t.Fatalf("UpsertSubject: %v", err)
	}
	chapterID, err = st.UpsertChapter(ctx, store.Chapter{SubjectID: subjectID, Name: "Thermodynamics", WeightageMarks: 15, OrderIndex: 2})
	if err != nil {
		t.Fatalf("UpsertChapter: %v", err)
	}
	return examID, subjectID, chapterID
}

// TestUpsertExamIdempotent verifies repeated upserts keep the same row.
func TestUpsertExamIdempotent(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	id1, err := st.UpsertExam(ctx, store.Exam{Name: "CBSE", FullName: "Central Board of Secondary Education", Category: "board"})
	if err != nil {
		t.Fatalf("UpsertExam: %v", err)
	}
	id2, err := st.UpsertExam(ctx, store.Exam{Name: "CBSE", FullName: "Updated Name", Category: "board"})
	if err != nil {
		t.Fatalf("UpsertExam again: %v", err)
	}
	if id1 != id2 {
		t.Fatalf("expected same id on conflict, got %d then %d", id1, id2)
	}

	e, err := st.GetExam(ctx, id1)
	if err != nil {
		t.Fatalf("GetExam: %v", err)
	}
	if e.FullName != "Updated Name" {
		t.Errorf("FullName not updated: got %q", e.FullName)
	}
	if e.CreatedAt.IsZero() {
		t.Error("CreatedAt should be populated")
	}
}

func TestGetExamNotFound(t *testing.T) {
	st := openTestStore(t)

	_, err := st.GetExam(context.Background(), 999)
	if !errors.Is(err, internalerr.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

// TestFindExamSubstring checks the case-insensitive partial lookup
// used by the analysis endpoint.
func TestFindExamSubstring(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	seedHierarchy(t, st)

	e, found, err := st.FindExam(ctx, "jee")
	if err != nil {
		t.Fatalf("FindExam: %v", err)
	}
	if !found {
		t.Fatal("exam should be found by fragment")
	}
	if e.Name != "JEE_MAIN" {
		t.Errorf("got %q, want JEE_MAIN", e.Name)
	}

	_, found, err = st.FindExam(ctx, "gate")
	if err != nil {
		t.Fatalf("FindExam miss: %v", err)
	}
	if found {
		t.Error("no exam should match 'gate'")
	}
}

func TestSearchExams(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)

	for _, name := range []string{"JEE_MAIN", "JEE_ADVANCED", "CBSE"} {
		if _, err := st.UpsertExam(ctx, store.Exam{Name: name}); err != nil {
			t.Fatalf("UpsertExam %s: %v", name, err)
		}
	}

	matches, err := st.SearchExams(ctx, "jee")
	if err != nil {
		t.Fatalf("SearchExams: %v", err)
	}
	if len(matches) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(matches))
	}
	if matches[0].Name != "JEE_MAIN" || matches[1].Name != "JEE_ADVANCED" {
		t.Errorf("unexpected order: %q, %q", matches[0].Name, matches[1].Name)
	}

	all, err := st.ListExams(ctx)
	if err != nil {
		t.Fatalf("ListExams: %v", err)
	}
	if len(all) != 3 {
		t.Errorf("expected 3 exams, got %d", len(all))
	}
}

func TestSubjectAndChapterLookups(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	examID, subjectID, _ := seedHierarchy(t, st)

	if _, err := st.UpsertChapter(ctx, store.Chapter{SubjectID: subjectID, Name: "Mechanics", WeightageMarks: 30, OrderIndex: 1}); err != nil {
		t.Fatalf("UpsertChapter: %v", err)
	}

	sub, found, err := st.FindSubject(ctx, examID, "phys")
	if err != nil || !found {
		t.Fatalf("FindSubject: found=%v err=%v", found, err)
	}
	if sub.Code != "PHY" {
		t.Errorf("got code %q, want PHY", sub.Code)
	}

	_, found, err = st.GetSubjectByName(ctx, examID, "physics")
	if err != nil {
		t.Fatalf("GetSubjectByName: %v", err)
	}
	if found {
		t.Error("exact lookup should be case-sensitive")
	}

	c, found, err := st.FindChapter(ctx, subjectID, "THERMO")
	if err != nil || !found {
		t.Fatalf("FindChapter: found=%v err=%v", found, err)
	}
	if c.Name != "Thermodynamics" {
		t.Errorf("got %q, want Thermodynamics", c.Name)
	}

	// Declared order, not insertion order
	chapters, err := st.ListChapters(ctx, subjectID)
	if err != nil {
		t.Fatalf("ListChapters: %v", err)
	}
	if len(chapters) != 2 {
		t.Fatalf("expected 2 chapters, got %d", len(chapters))
	}
	if chapters[0].Name != "Mechanics" || chapters[1].Name != "Thermodynamics" {
		t.Errorf("unexpected order: %q, %q", chapters[0].Name, chapters[1].Name)
	}
}

func TestInsertAndQueryQuestions(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	examID, subjectID, chapterID := seedHierarchy(t, st)

	questions := []store.Question{
		{
			PDFSource: "physics_2023.pdf",
			Year:      2023,
			ExamID:    examID,
			SubjectID: subjectID,
			ChapterID: chapterID,
			Text:      "Calculate the entropy change of an ideal gas.",
			Marks:     5,
			Topics:    []string{"Entropy", "Second Law of Thermodynamics"},
			Meta:      map[string]string{"session": "Jan", "shift": "shift-1"},
		},
		{
			PDFSource: "physics_2023.pdf",
			Year:      2023,
			ExamID:    examID,
			SubjectID: subjectID,
			Text:      "A question without a chapter.",
			Marks:     1,
		},
	}

	if err := st.InsertQuestions(ctx, questions); err != nil {
		t.Fatalf("InsertQuestions: %v", err)
	}

	all, err := st.QuestionsByScope(ctx, store.Scope{ExamID: examID})
	if err != nil {
		t.Fatalf("QuestionsByScope: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(all))
	}

	got := all[0]
	if len(got.Topics) != 2 || got.Topics[0] != "Entropy" {
		t.Errorf("topics did not round-trip: %v", got.Topics)
	}
	if got.Meta["session"] != "Jan" {
		t.Errorf("meta did not round-trip: %v", got.Meta)
	}
	if got.ExtractedAt.IsZero() {
		t.Error("ExtractedAt should default to now")
	}

	scoped, err := st.QuestionsByScope(ctx, store.Scope{ExamID: examID, SubjectID: subjectID, ChapterID: chapterID})
	if err != nil {
		t.Fatalf("QuestionsByScope chapter: %v", err)
	}
	if len(scoped) != 1 {
		t.Fatalf("expected 1 chapter-scoped question, got %d", len(scoped))
	}

	none, err := st.QuestionsByScope(ctx, store.Scope{ExamID: examID + 100})
	if err != nil {
		t.Fatalf("QuestionsByScope other exam: %v", err)
	}
	if len(none) != 0 {
		t.Errorf("expected no questions for other exam, got %d", len(none))
	}
}

// TestMalformedTopicsJSON verifies a corrupted row degrades to an
// untagged question instead of failing the whole query.
func TestMalformedTopicsJSON(t *testing.T) {
	ctx := context.Background()
	dbPath := filepath.Join(t.TempDir(), "test.db")

	st, err := Open(ctx, dbPath)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer st.Close()

	examID, subjectID, _ := seedHierarchy(t, st)

	raw := st.(*sqliteStore)
	_, err = raw.db.ExecContext(ctx, `
INSERT INTO questions (pdf_source, year, exam_id, subject_id, question_text, marks, topics, meta, extracted_at)
VALUES ('x.pdf', 2022, ?, ?, 'Broken topics row.', 1, '{not json', '', ?)`,
		examID, subjectID, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		t.Fatalf("raw insert: %v", err)
	}

	questions, err := st.QuestionsByScope(ctx, store.Scope{ExamID: examID})
	if err != nil {
		t.Fatalf("QuestionsByScope: %v", err)
	}
	if len(questions) != 1 {
		t.Fatalf("expected 1 question, got %d", len(questions))
	}
	if questions[0].Topics != nil {
		t.Errorf("malformed topics should scan as nil, got %v", questions[0].Topics)
	}
}

func TestTopicFrequenciesUpsertAndOrder(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	examID, subjectID, chapterID := seedHierarchy(t, st)

	rows := []store.TopicFrequency{
		{ExamID: examID, SubjectID: subjectID, ChapterID: chapterID, Topic: "Entropy", Year: 2022, Count: 2, TotalMarks: 2},
		{ExamID: examID, SubjectID: subjectID, ChapterID: chapterID, Topic: "Entropy", Year: 2021, Count: 1, TotalMarks: 1},
		{ExamID: examID, SubjectID: subjectID, ChapterID: chapterID, Topic: "Carnot Cycle", Year: 2022, Count: 3, TotalMarks: 3},
	}
	if err := st.UpsertTopicFrequencies(ctx, rows); err != nil {
		t.Fatalf("UpsertTopicFrequencies: %v", err)
	}

	// Re-run with a new count for an existing key
	update := []store.TopicFrequency{
		{ExamID: examID, SubjectID: subjectID, ChapterID: chapterID, Topic: "Entropy", Year: 2022, Count: 5, TotalMarks: 7},
	}
	if err := st.UpsertTopicFrequencies(ctx, update); err != nil {
		t.Fatalf("UpsertTopicFrequencies update: %v", err)
	}

	got, err := st.TopicFrequencies(ctx, store.Scope{ExamID: examID, SubjectID: subjectID, ChapterID: chapterID})
	if err != nil {
		t.Fatalf("TopicFrequencies: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(got))
	}
	// Topic asc, then year asc
	if got[0].Topic != "Carnot Cycle" || got[1].Year != 2021 || got[2].Year != 2022 {
		t.Errorf("unexpected order: %+v", got)
	}
	if got[2].Count != 5 || got[2].TotalMarks != 7 {
		t.Errorf("upsert did not update counts: %+v", got[2])
	}
}

func TestTopTopics(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	examID, subjectID, chapterID := seedHierarchy(t, st)

	rows := []store.TopicFrequency{
		{ExamID: examID, SubjectID: subjectID, ChapterID: chapterID, Topic: "Entropy", Year: 2021, Count: 2},
		{ExamID: examID, SubjectID: subjectID, ChapterID: chapterID, Topic: "Entropy", Year: 2022, Count: 3},
		{ExamID: examID, SubjectID: subjectID, ChapterID: chapterID, Topic: "Carnot Cycle", Year: 2022, Count: 5},
		{ExamID: examID, SubjectID: subjectID, ChapterID: chapterID, Topic: "Heat Engines", Year: 2022, Count: 5},
	}
	if err := st.UpsertTopicFrequencies(ctx, rows); err != nil {
		t.Fatalf("UpsertTopicFrequencies: %v", err)
	}

	top, err := st.TopTopics(ctx, store.Scope{ExamID: examID}, 2)
	if err != nil {
		t.Fatalf("TopTopics: %v", err)
	}
	if len(top) != 2 {
		t.Fatalf("expected 2 topics, got %d", len(top))
	}
	// Ties break alphabetically
	if top[0].Topic != "Carnot Cycle" || top[0].Count != 5 {
		t.Errorf("unexpected first topic: %+v", top[0])
	}
	if top[1].Topic != "Entropy" || top[1].Count != 5 {
		t.Errorf("unexpected second topic: %+v", top[1])
	}
}

// TestSavePredictionsReplacesScope verifies stale predictions are
// dropped while other scopes stay untouched.
func TestSavePredictionsReplacesScope(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	examID, subjectID, chapterID := seedHierarchy(t, st)

	otherChapter, err := st.UpsertChapter(ctx, store.Chapter{SubjectID: subjectID, Name: "Mechanics", OrderIndex: 1})
	if err != nil {
		t.Fatalf("UpsertChapter: %v", err)
	}

	scope := store.Scope{ExamID: examID, SubjectID: subjectID, ChapterID: chapterID}
	first := []store.Prediction{
		{ExamID: examID, SubjectID: subjectID, ChapterID: chapterID, Topic: "Entropy", Probability: 0.9, Confidence: 0.5},
		{ExamID: examID, SubjectID: subjectID, ChapterID: chapterID, Topic: "Carnot Cycle", Probability: 0.4, Confidence: 0.5},
	}
	if err := st.SavePredictions(ctx, scope, first); err != nil {
		t.Fatalf("SavePredictions: %v", err)
	}

	otherScope := store.Scope{ExamID: examID, SubjectID: subjectID, ChapterID: otherChapter}
	other := []store.Prediction{
		{ExamID: examID, SubjectID: subjectID, ChapterID: otherChapter, Topic: "Gravitation", Probability: 0.6, Confidence: 0.5},
	}
	if err := st.SavePredictions(ctx, otherScope, other); err != nil {
		t.Fatalf("SavePredictions other: %v", err)
	}

	second := []store.Prediction{
		{ExamID: examID, SubjectID: subjectID, ChapterID: chapterID, Topic: "Heat Engines", Probability: 0.8, Confidence: 0.5},
	}
	if err := st.SavePredictions(ctx, scope, second); err != nil {
		t.Fatalf("SavePredictions replace: %v", err)
	}

	got, err := st.PredictionsByScope(ctx, scope, 10)
	if err != nil {
		t.Fatalf("PredictionsByScope: %v", err)
	}
	if len(got) != 1 || got[0].Topic != "Heat Engines" {
		t.Fatalf("replace failed: %+v", got)
	}

	kept, err := st.PredictionsByScope(ctx, otherScope, 10)
	if err != nil {
		t.Fatalf("PredictionsByScope other: %v", err)
	}
	if len(kept) != 1 || kept[0].Topic != "Gravitation" {
		t.Errorf("other scope should be untouched: %+v", kept)
	}
}

func TestPredictionsOrdering(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	examID, subjectID, chapterID := seedHierarchy(t, st)

	scope := store.Scope{ExamID: examID, SubjectID: subjectID, ChapterID: chapterID}
	rows := []store.Prediction{
		{ExamID: examID, SubjectID: subjectID, ChapterID: chapterID, Topic: "Beta", Probability: 0.7},
		{ExamID: examID, SubjectID: subjectID, ChapterID: chapterID, Topic: "Alpha", Probability: 0.7},
		{ExamID: examID, SubjectID: subjectID, ChapterID: chapterID, Topic: "Gamma", Probability: 0.9},
	}
	if err := st.SavePredictions(ctx, scope, rows); err != nil {
		t.Fatalf("SavePredictions: %v", err)
	}

	got, err := st.PredictionsByScope(ctx, scope, 2)
	if err != nil {
		t.Fatalf("PredictionsByScope: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(got))
	}
	if got[0].Topic != "Gamma" || got[1].Topic != "Alpha" {
		t.Errorf("unexpected order: %q, %q", got[0].Topic, got[1].Topic)
	}
}

func TestSourceDocuments(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	examID, _, _ := seedHierarchy(t, st)

	docs := []store.SourceDocument{
		{ID: "01A", ExamID: examID, Year: 2021, ExamName: "JEE_MAIN", SourceLabel: "physics_2021", FilePath: "/data/physics_2021.pdf", Status: store.SourceProcessed},
		{ID: "01B", ExamID: examID, Year: 2023, ExamName: "JEE_MAIN", SourceLabel: "physics_2023", FilePath: "/data/physics_2023.pdf", Status: store.SourceFailed, Error: "extraction failed"},
	}
	for _, d := range docs {
		if err := st.RecordSourceDocument(ctx, d); err != nil {
			t.Fatalf("RecordSourceDocument: %v", err)
		}
	}

	// Re-recording the same ID updates status
	if err := st.RecordSourceDocument(ctx, store.SourceDocument{ID: "01B", ExamID: examID, Year: 2023, Status: store.SourceProcessed}); err != nil {
		t.Fatalf("RecordSourceDocument update: %v", err)
	}

	got, err := st.SourceDocuments(ctx, examID, 10)
	if err != nil {
		t.Fatalf("SourceDocuments: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(got))
	}
	if got[0].Year != 2023 {
		t.Errorf("most recent year should sort first, got %d", got[0].Year)
	}
	if got[0].Status != store.SourceProcessed {
		t.Errorf("status not updated: %q", got[0].Status)
	}
	if got[0].SourceLabel != "physics_2023" {
		t.Errorf("update should keep original fields, got %q", got[0].SourceLabel)
	}
}

func TestStats(t *testing.T) {
	ctx := context.Background()
	st := openTestStore(t)
	examID, subjectID, chapterID := seedHierarchy(t, st)

	if err := st.InsertQuestions(ctx, []store.Question{
		{ExamID: examID, SubjectID: subjectID, ChapterID: chapterID, Year: 2023, Text: "One question.", Marks: 1},
	}); err != nil {
		t.Fatalf("InsertQuestions: %v", err)
	}

	stats, err := st.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Exams != 1 || stats.Subjects != 1 || stats.Chapters != 1 || stats.Questions != 1 {
		t.Errorf("unexpected stats: %+v", stats)
	}
}
