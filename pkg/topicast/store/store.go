package store

import (
	"context"
	"time"
)

// Store is the main interface for persisting and querying exam data
type Store interface {
	Close() error

	// Exams
	UpsertExam(ctx context.Context, e Exam) (int64, error)
	GetExam(ctx context.Context, id int64) (Exam, error)
	GetExamByName(ctx context.Context, name string) (Exam, bool, error)
	FindExam(ctx context.Context, name string) (Exam, bool, error)
	SearchExams(ctx context.Context, name string) ([]Exam, error)
	ListExams(ctx context.Context) ([]Exam, error)

	// Subjects
	UpsertSubject(ctx context.Context, s Subject) (int64, error)
	GetSubject(ctx context.Context, id int64) (Subject, error)
	GetSubjectByName(ctx context.Context, examID int64, name string) (Subject, bool, error)
	FindSubject(ctx context.Context, examID int64, name string) (Subject, bool, error)
	ListSubjects(ctx context.Context, examID int64) ([]Subject, error)

	// Chapters
	UpsertChapter(ctx context.Context, c Chapter) (int64, error)
	GetChapterByName(ctx context.Context, subjectID int64, name string) (Chapter, bool, error)
	FindChapter(ctx context.Context, subjectID int64, name string) (Chapter, bool, error)
	ListChapters(ctx context.Context, subjectID int64) ([]Chapter, error)

	// Questions
	InsertQuestions(ctx context.Context, questions []Question) error
	QuestionsByScope(ctx context.Context, scope Scope) ([]Question, error)

	// Topic frequencies
	UpsertTopicFrequencies(ctx context.Context, rows []TopicFrequency) error
	TopicFrequencies(ctx context.Context, scope Scope) ([]TopicFrequency, error)
	TopTopics(ctx context.Context, scope Scope, limit int) ([]TopicCount, error)

	// Predictions
	SavePredictions(ctx context.Context, scope Scope, rows []Prediction) error
	PredictionsByScope(ctx context.Context, scope Scope, limit int) ([]Prediction, error)

	// Source documents
	RecordSourceDocument(ctx context.Context, doc SourceDocument) error
	SourceDocuments(ctx context.Context, examID int64, limit int) ([]SourceDocument, error)

	// Stats
	Stats(ctx context.Context) (Stats, error)
}

// Scope narrows a query to an exam and optionally a subject and
// chapter. A zero ID means "all".
type Scope struct {
	ExamID    int64
	SubjectID int64
	ChapterID int64
}

// Exam represents one examination (board or competitive).
type Exam struct {
	ID          int64
	Name        string
	FullName    string
	Category    string
	Description string
	CreatedAt   time.Time
}

// Subject belongs to an exam.
type Subject struct {
	ID        int64
	ExamID    int64
	Name      string
	Code      string
	CreatedAt time.Time
}

// Chapter belongs to a subject.
type Chapter struct {
	ID             int64
	SubjectID      int64
	Name           string
	WeightageMarks int
	OrderIndex     int
	CreatedAt      time.Time
}

// Question is one stored question. Topics and Meta stay structured in
// memory; backends serialize them only at the persistence boundary.
type Question struct {
	ID          int64
	PDFSource   string
	Year        int
	ExamID      int64
	SubjectID   int64
	ChapterID   int64
	Text        string
	Marks       int
	Difficulty  string
	Topics      []string
	Meta        map[string]string
	ExtractedAt time.Time
}

// TopicFrequency is one (scope, topic, year) aggregate row.
type TopicFrequency struct {
	ID         int64
	ExamID     int64
	SubjectID  int64
	ChapterID  int64
	Topic      string
	Year       int
	Count      int
	TotalMarks int
	UpdatedAt  time.Time
}

// Prediction is a stored forecast for one topic within a scope.
type Prediction struct {
	ID          int64
	ExamID      int64
	SubjectID   int64
	ChapterID   int64
	Topic       string
	Probability float64
	Confidence  float64
	Reasoning   string
	Trend       string
	UpdatedAt   time.Time
}

// Source document statuses.
const (
	SourceProcessed = "processed"
	SourceFailed    = "failed"
)

// SourceDocument records one ingested file, successful or not.
type SourceDocument struct {
	ID          string
	ExamID      int64
	Year        int
	ExamName    string
	SourceLabel string
	FilePath    string
	URL         string
	Status      string
	Error       string
	CreatedAt   time.Time
}

// TopicCount is a topic with its summed frequency count.
type TopicCount struct {
	Topic string
	Count int
}

// Stats holds row counts per entity.
type Stats struct {
	Exams            int
	Subjects         int
	Chapters         int
	Questions        int
	TopicFrequencies int
	Predictions      int
	SourceDocuments  int
}
