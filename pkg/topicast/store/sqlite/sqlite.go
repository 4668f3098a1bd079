package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/topicast/topicast/pkg/topicast/internalerr"
	"github.com/topicast/topicast/pkg/topicast/store"
)

// sqliteStore implements the Store interface using SQLite
type sqliteStore struct {
	db  *sql.DB
	log *zap.Logger
}

// Open opens a SQLite database with WAL mode enabled and creates the
// schema when missing. An optional logger receives warnings about
// malformed stored rows; without one those rows drop silently.
func Open(ctx context.Context, path string, log ...*zap.Logger) (store.Store, error) {
	logger := zap.NewNop()
	if len(log) > 0 && log[0] != nil {
		logger = log[0]
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", internalerr.ErrStoreUnavailable, err)
	}

	// Enable WAL mode for better concurrency
	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, err
	}

	// Enable foreign keys
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, err
	}

	// Wait on locked writers instead of failing immediately
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, err
	}

	if err := initSchema(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &sqliteStore{db: db, log: logger}, nil
}

// Close closes the database connection
func (s *sqliteStore) Close() error {
	return s.db.Close()
}

// initSchema creates tables if they don't exist
func initSchema(ctx context.Context, db *sql.DB) error {
	schema := `
CREATE TABLE IF NOT EXISTS exams (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	name TEXT UNIQUE NOT NULL,
	full_name TEXT NOT NULL DEFAULT '',
	category TEXT NOT NULL DEFAULT '',
	description TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS subjects (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	exam_id INTEGER NOT NULL,
	name TEXT NOT NULL,
	code TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	UNIQUE(exam_id, name),
	FOREIGN KEY(exam_id) REFERENCES exams(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS chapters (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	subject_id INTEGER NOT NULL,
	name TEXT NOT NULL,
	weightage_marks INTEGER NOT NULL DEFAULT 0,
	order_index INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL,
	UNIQUE(subject_id, name),
	FOREIGN KEY(subject_id) REFERENCES subjects(id) ON DELETE CASCADE
);

CREATE TABLE IF NOT EXISTS questions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	pdf_source TEXT NOT NULL DEFAULT '',
	year INTEGER NOT NULL,
	exam_id INTEGER NOT NULL,
	subject_id INTEGER NOT NULL,
	chapter_id INTEGER NOT NULL DEFAULT 0,
	question_text TEXT NOT NULL,
	marks INTEGER NOT NULL DEFAULT 1,
	difficulty TEXT NOT NULL DEFAULT '',
	topics TEXT NOT NULL DEFAULT '',
	meta TEXT NOT NULL DEFAULT '',
	extracted_at TEXT NOT NULL,
	FOREIGN KEY(exam_id) REFERENCES exams(id) ON DELETE CASCADE,
	FOREIGN KEY(subject_id) REFERENCES subjects(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_questions_scope ON questions(exam_id, subject_id, chapter_id);

CREATE TABLE IF NOT EXISTS topic_frequency (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	exam_id INTEGER NOT NULL,
	subject_id INTEGER NOT NULL,
	chapter_id INTEGER NOT NULL DEFAULT 0,
	topic TEXT NOT NULL,
	year INTEGER NOT NULL,
	count INTEGER NOT NULL DEFAULT 0,
	total_marks INTEGER NOT NULL DEFAULT 0,
	updated_at TEXT NOT NULL,
	UNIQUE(exam_id, subject_id, chapter_id, topic, year)
);

CREATE TABLE IF NOT EXISTS predictions (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	exam_id INTEGER NOT NULL,
	subject_id INTEGER NOT NULL,
	chapter_id INTEGER NOT NULL DEFAULT 0,
	topic TEXT NOT NULL,
	predicted_probability REAL NOT NULL,
	confidence_score REAL NOT NULL,
	reasoning TEXT NOT NULL DEFAULT '',
	trend TEXT NOT NULL DEFAULT '',
	updated_at TEXT NOT NULL,
	UNIQUE(exam_id, subject_id, chapter_id, topic)
);

CREATE TABLE IF NOT EXISTS source_documents (
	id TEXT PRIMARY KEY,
	exam_id INTEGER NOT NULL,
	year INTEGER NOT NULL DEFAULT 0,
	exam_name TEXT NOT NULL DEFAULT '',
	source_label TEXT NOT NULL DEFAULT '',
	file_path TEXT NOT NULL DEFAULT '',
	url TEXT NOT NULL DEFAULT '',
	status TEXT NOT NULL DEFAULT '',
	error TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL,
	FOREIGN KEY(exam_id) REFERENCES exams(id) ON DELETE CASCADE
);

CREATE INDEX IF NOT EXISTS idx_source_documents_exam ON source_documents(exam_id, year);
`

	_, err := db.ExecContext(ctx, schema)
	return err
}

// UpsertExam inserts an exam or updates its descriptive fields,
// returning the row id either way.
func (s *sqliteStore) UpsertExam(ctx context.Context, e store.Exam) (int64, error) {
	const stmt = `
INSERT INTO exams (name, full_name, category, description, created_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(name) DO UPDATE SET
	full_name=excluded.full_name,
	category=excluded.category,
	description=excluded.description
RETURNING id;
`
	var id int64
	err := s.db.QueryRowContext(ctx, stmt,
		e.Name, e.FullName, e.Category, e.Description, fmtTime(e.CreatedAt),
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// GetExam retrieves an exam by ID
func (s *sqliteStore) GetExam(ctx context.Context, id int64) (store.Exam, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, full_name, category, description, created_at FROM exams WHERE id = ?`, id)
	e, err := scanExam(row)
	if err == sql.ErrNoRows {
		return store.Exam{}, fmt.Errorf("exam %d: %w", id, internalerr.ErrNotFound)
	}
	return e, err
}

// GetExamByName retrieves an exam by exact name
func (s *sqliteStore) GetExamByName(ctx context.Context, name string) (store.Exam, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, full_name, category, description, created_at FROM exams WHERE name = ?`, name)
	e, err := scanExam(row)
	if err == sql.ErrNoRows {
		return store.Exam{}, false, nil
	}
	if err != nil {
		return store.Exam{}, false, err
	}
	return e, true, nil
}

// FindExam retrieves the first exam whose name contains the fragment,
// case-insensitively.
func (s *sqliteStore) FindExam(ctx context.Context, name string) (store.Exam, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, name, full_name, category, description, created_at FROM exams
		 WHERE name LIKE ? ORDER BY id LIMIT 1`, "%"+name+"%")
	e, err := scanExam(row)
	if err == sql.ErrNoRows {
		return store.Exam{}, false, nil
	}
	if err != nil {
		return store.Exam{}, false, err
	}
	return e, true, nil
}

// SearchExams lists exams whose name contains the fragment.
func (s *sqliteStore) SearchExams(ctx context.Context, name string) ([]store.Exam, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, full_name, category, description, created_at FROM exams
		 WHERE name LIKE ? ORDER BY id`, "%"+name+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanExams(rows)
}

// ListExams lists all exams
func (s *sqliteStore) ListExams(ctx context.Context) ([]store.Exam, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, full_name, category, description, created_at FROM exams ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanExams(rows)
}

// UpsertSubject inserts a subject or updates its code, returning the
// row id either way.
func (s *sqliteStore) UpsertSubject(ctx context.Context, sub store.Subject) (int64, error) {
	const stmt = `
INSERT INTO subjects (exam_id, name, code, created_at)
VALUES (?, ?, ?, ?)
ON CONFLICT(exam_id, name) DO UPDATE SET
	code=excluded.code
RETURNING id;
`
	var id int64
	err := s.db.QueryRowContext(ctx, stmt,
		sub.ExamID, sub.Name, sub.Code, fmtTime(sub.CreatedAt),
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// GetSubject retrieves a subject by ID
func (s *sqliteStore) GetSubject(ctx context.Context, id int64) (store.Subject, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, exam_id, name, code, created_at FROM subjects WHERE id = ?`, id)
	sub, err := scanSubject(row)
	if err == sql.ErrNoRows {
		return store.Subject{}, fmt.Errorf("subject %d: %w", id, internalerr.ErrNotFound)
	}
	return sub, err
}

// GetSubjectByName retrieves a subject by exact name within an exam
func (s *sqliteStore) GetSubjectByName(ctx context.Context, examID int64, name string) (store.Subject, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, exam_id, name, code, created_at FROM subjects WHERE exam_id = ? AND name = ?`,
		examID, name)
	sub, err := scanSubject(row)
	if err == sql.ErrNoRows {
		return store.Subject{}, false, nil
	}
	if err != nil {
		return store.Subject{}, false, err
	}
	return sub, true, nil
}

// FindSubject retrieves the first subject within an exam whose name
// contains the fragment, case-insensitively.
func (s *sqliteStore) FindSubject(ctx context.Context, examID int64, name string) (store.Subject, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, exam_id, name, code, created_at FROM subjects
		 WHERE exam_id = ? AND name LIKE ? ORDER BY id LIMIT 1`,
		examID, "%"+name+"%")
	sub, err := scanSubject(row)
	if err == sql.ErrNoRows {
		return store.Subject{}, false, nil
	}
	if err != nil {
		return store.Subject{}, false, err
	}
	return sub, true, nil
}

// ListSubjects lists the subjects of an exam
func (s *sqliteStore) ListSubjects(ctx context.Context, examID int64) ([]store.Subject, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, exam_id, name, code, created_at FROM subjects WHERE exam_id = ? ORDER BY id`, examID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Subject
	for rows.Next() {
		var sub store.Subject
		var createdAt string
		if err := rows.Scan(&sub.ID, &sub.ExamID, &sub.Name, &sub.Code, &createdAt); err != nil {
			return nil, err
		}
		sub.CreatedAt = parseTime(createdAt)
		out = append(out, sub)
	}
	return out, rows.Err()
}

// UpsertChapter inserts a chapter or updates its weightage and order,
// returning the row id either way.
func (s *sqliteStore) UpsertChapter(ctx context.Context, c store.Chapter) (int64, error) {
	const stmt = `
INSERT INTO chapters (subject_id, name, weightage_marks, order_index, created_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(subject_id, name) DO UPDATE SET
	weightage_marks=excluded.weightage_marks,
	order_index=excluded.order_index
RETURNING id;
`
	var id int64
	err := s.db.QueryRowContext(ctx, stmt,
		c.SubjectID, c.Name, c.WeightageMarks, c.OrderIndex, fmtTime(c.CreatedAt),
	).Scan(&id)
	if err != nil {
		return 0, err
	}
	return id, nil
}

// GetChapterByName retrieves a chapter by exact name within a subject
func (s *sqliteStore) GetChapterByName(ctx context.Context, subjectID int64, name string) (store.Chapter, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, subject_id, name, weightage_marks, order_index, created_at FROM chapters
		 WHERE subject_id = ? AND name = ?`, subjectID, name)
	c, err := scanChapter(row)
	if err == sql.ErrNoRows {
		return store.Chapter{}, false, nil
	}
	if err != nil {
		return store.Chapter{}, false, err
	}
	return c, true, nil
}

// FindChapter retrieves the first chapter within a subject whose name
// contains the fragment, case-insensitively.
func (s *sqliteStore) FindChapter(ctx context.Context, subjectID int64, name string) (store.Chapter, bool, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, subject_id, name, weightage_marks, order_index, created_at FROM chapters
		 WHERE subject_id = ? AND name LIKE ? ORDER BY id LIMIT 1`,
		subjectID, "%"+name+"%")
	c, err := scanChapter(row)
	if err == sql.ErrNoRows {
		return store.Chapter{}, false, nil
	}
	if err != nil {
		return store.Chapter{}, false, err
	}
	return c, true, nil
}

// ListChapters lists the chapters of a subject in declared order
func (s *sqliteStore) ListChapters(ctx context.Context, subjectID int64) ([]store.Chapter, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, subject_id, name, weightage_marks, order_index, created_at FROM chapters
		 WHERE subject_id = ? ORDER BY order_index, id`, subjectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Chapter
	for rows.Next() {
		var c store.Chapter
		var createdAt string
		if err := rows.Scan(&c.ID, &c.SubjectID, &c.Name, &c.WeightageMarks, &c.OrderIndex, &createdAt); err != nil {
			return nil, err
		}
		c.CreatedAt = parseTime(createdAt)
		out = append(out, c)
	}
	return out, rows.Err()
}

// InsertQuestions stores a batch of questions in one transaction.
// Topics and Meta are serialized to JSON here and nowhere else.
func (s *sqliteStore) InsertQuestions(ctx context.Context, questions []store.Question) error {
	if len(questions) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO questions (pdf_source, year, exam_id, subject_id, chapter_id, question_text, marks, difficulty, topics, meta, extracted_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, q := range questions {
		topics, err := encodeJSON(q.Topics)
		if err != nil {
			return err
		}
		meta, err := encodeJSON(q.Meta)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			q.PDFSource, q.Year, q.ExamID, q.SubjectID, q.ChapterID,
			q.Text, q.Marks, q.Difficulty, topics, meta, fmtTime(q.ExtractedAt),
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// QuestionsByScope retrieves questions matching the scope
func (s *sqliteStore) QuestionsByScope(ctx context.Context, scope store.Scope) ([]store.Question, error) {
	where, args := scopeWhere(scope)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, pdf_source, year, exam_id, subject_id, chapter_id, question_text, marks, difficulty, topics, meta, extracted_at
		 FROM questions`+where+` ORDER BY id`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Question
	for rows.Next() {
		var q store.Question
		var topics, meta, extractedAt string
		if err := rows.Scan(&q.ID, &q.PDFSource, &q.Year, &q.ExamID, &q.SubjectID, &q.ChapterID,
			&q.Text, &q.Marks, &q.Difficulty, &topics, &meta, &extractedAt); err != nil {
			return nil, err
		}
		q.Topics = s.decodeTopics(q.ID, topics)
		q.Meta = s.decodeMeta(q.ID, meta)
		q.ExtractedAt = parseTime(extractedAt)
		out = append(out, q)
	}
	return out, rows.Err()
}

// UpsertTopicFrequencies stores aggregate rows in one transaction,
// updating counts for keys that already exist.
func (s *sqliteStore) UpsertTopicFrequencies(ctx context.Context, rows []store.TopicFrequency) error {
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO topic_frequency (exam_id, subject_id, chapter_id, topic, year, count, total_marks, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(exam_id, subject_id, chapter_id, topic, year) DO UPDATE SET
	count=excluded.count,
	total_marks=excluded.total_marks,
	updated_at=excluded.updated_at`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx,
			r.ExamID, r.SubjectID, r.ChapterID, r.Topic, r.Year,
			r.Count, r.TotalMarks, fmtTime(r.UpdatedAt),
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// TopicFrequencies retrieves aggregate rows matching the scope
func (s *sqliteStore) TopicFrequencies(ctx context.Context, scope store.Scope) ([]store.TopicFrequency, error) {
	where, args := scopeWhere(scope)
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, exam_id, subject_id, chapter_id, topic, year, count, total_marks, updated_at
		 FROM topic_frequency`+where+` ORDER BY topic, year`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.TopicFrequency
	for rows.Next() {
		var r store.TopicFrequency
		var updatedAt string
		if err := rows.Scan(&r.ID, &r.ExamID, &r.SubjectID, &r.ChapterID, &r.Topic, &r.Year,
			&r.Count, &r.TotalMarks, &updatedAt); err != nil {
			return nil, err
		}
		r.UpdatedAt = parseTime(updatedAt)
		out = append(out, r)
	}
	return out, rows.Err()
}

// TopTopics ranks topics within the scope by summed count
func (s *sqliteStore) TopTopics(ctx context.Context, scope store.Scope, limit int) ([]store.TopicCount, error) {
	if limit <= 0 {
		limit = 10
	}
	where, args := scopeWhere(scope)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx,
		`SELECT topic, SUM(count) AS total FROM topic_frequency`+where+`
		 GROUP BY topic ORDER BY total DESC, topic ASC LIMIT ?`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.TopicCount
	for rows.Next() {
		var tc store.TopicCount
		if err := rows.Scan(&tc.Topic, &tc.Count); err != nil {
			return nil, err
		}
		out = append(out, tc)
	}
	return out, rows.Err()
}

// SavePredictions replaces the scope's predictions in one transaction.
func (s *sqliteStore) SavePredictions(ctx context.Context, scope store.Scope, rows []store.Prediction) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	where, args := scopeWhere(scope)
	if _, err := tx.ExecContext(ctx, `DELETE FROM predictions`+where, args...); err != nil {
		return err
	}

	if len(rows) > 0 {
		stmt, err := tx.PrepareContext(ctx, `
INSERT INTO predictions (exam_id, subject_id, chapter_id, topic, predicted_probability, confidence_score, reasoning, trend, updated_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for _, p := range rows {
			if _, err := stmt.ExecContext(ctx,
				p.ExamID, p.SubjectID, p.ChapterID, p.Topic,
				p.Probability, p.Confidence, p.Reasoning, p.Trend, fmtTime(p.UpdatedAt),
			); err != nil {
				return err
			}
		}
	}

	return tx.Commit()
}

// PredictionsByScope retrieves predictions ordered by probability
// descending, topic ascending.
func (s *sqliteStore) PredictionsByScope(ctx context.Context, scope store.Scope, limit int) ([]store.Prediction, error) {
	if limit <= 0 {
		limit = 5
	}
	where, args := scopeWhere(scope)
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, exam_id, subject_id, chapter_id, topic, predicted_probability, confidence_score, reasoning, trend, updated_at
		 FROM predictions`+where+` ORDER BY predicted_probability DESC, topic ASC LIMIT ?`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.Prediction
	for rows.Next() {
		var p store.Prediction
		var updatedAt string
		if err := rows.Scan(&p.ID, &p.ExamID, &p.SubjectID, &p.ChapterID, &p.Topic,
			&p.Probability, &p.Confidence, &p.Reasoning, &p.Trend, &updatedAt); err != nil {
			return nil, err
		}
		p.UpdatedAt = parseTime(updatedAt)
		out = append(out, p)
	}
	return out, rows.Err()
}

// RecordSourceDocument stores one ingestion record
func (s *sqliteStore) RecordSourceDocument(ctx context.Context, doc store.SourceDocument) error {
	const stmt = `
INSERT INTO source_documents (id, exam_id, year, exam_name, source_label, file_path, url, status, error, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
	status=excluded.status,
	error=excluded.error`
	_, err := s.db.ExecContext(ctx, stmt,
		doc.ID, doc.ExamID, doc.Year, doc.ExamName, doc.SourceLabel,
		doc.FilePath, doc.URL, doc.Status, doc.Error, fmtTime(doc.CreatedAt))
	return err
}

// SourceDocuments lists an exam's source documents, most recent years
// first.
func (s *sqliteStore) SourceDocuments(ctx context.Context, examID int64, limit int) ([]store.SourceDocument, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, exam_id, year, exam_name, source_label, file_path, url, status, error, created_at
		 FROM source_documents WHERE exam_id = ? ORDER BY year DESC, id ASC LIMIT ?`, examID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.SourceDocument
	for rows.Next() {
		var d store.SourceDocument
		var createdAt string
		if err := rows.Scan(&d.ID, &d.ExamID, &d.Year, &d.ExamName, &d.SourceLabel,
			&d.FilePath, &d.URL, &d.Status, &d.Error, &createdAt); err != nil {
			return nil, err
		}
		d.CreatedAt = parseTime(createdAt)
		out = append(out, d)
	}
	return out, rows.Err()
}

// Stats counts rows per entity
func (s *sqliteStore) Stats(ctx context.Context) (store.Stats, error) {
	var st store.Stats
	counts := []struct {
		table string
		dst   *int
	}{
		{"exams", &st.Exams},
		{"subjects", &st.Subjects},
		{"chapters", &st.Chapters},
		{"questions", &st.Questions},
		{"topic_frequency", &st.TopicFrequencies},
		{"predictions", &st.Predictions},
		{"source_documents", &st.SourceDocuments},
	}
	for _, c := range counts {
		if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM `+c.table).Scan(c.dst); err != nil {
			return store.Stats{}, err
		}
	}
	return st, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanExam(row rowScanner) (store.Exam, error) {
	var e store.Exam
	var createdAt string
	err := row.Scan(&e.ID, &e.Name, &e.FullName, &e.Category, &e.Description, &createdAt)
	if err != nil {
		return store.Exam{}, err
	}
	e.CreatedAt = parseTime(createdAt)
	return e, nil
}

func scanExams(rows *sql.Rows) ([]store.Exam, error) {
	var out []store.Exam
	for rows.Next() {
		e, err := scanExam(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func scanSubject(row rowScanner) (store.Subject, error) {
	var sub store.Subject
	var createdAt string
	err := row.Scan(&sub.ID, &sub.ExamID, &sub.Name, &sub.Code, &createdAt)
	if err != nil {
		return store.Subject{}, err
	}
	sub.CreatedAt = parseTime(createdAt)
	return sub, nil
}

func scanChapter(row rowScanner) (store.Chapter, error) {
	var c store.Chapter
	var createdAt string
	err := row.Scan(&c.ID, &c.SubjectID, &c.Name, &c.WeightageMarks, &c.OrderIndex, &createdAt)
	if err != nil {
		return store.Chapter{}, err
	}
	c.CreatedAt = parseTime(createdAt)
	return c, nil
}

// decodeTopics unpacks the stored topics JSON. Malformed rows log a
// warning and behave like untagged questions.
func (s *sqliteStore) decodeTopics(questionID int64, raw string) []string {
	if raw == "" {
		return nil
	}
	var topics []string
	if err := json.Unmarshal([]byte(raw), &topics); err != nil {
		s.log.Warn("skipping malformed topics json",
			zap.Int64("question_id", questionID), zap.Error(err))
		return nil
	}
	if len(topics) == 0 {
		return nil
	}
	return topics
}

func (s *sqliteStore) decodeMeta(questionID int64, raw string) map[string]string {
	if raw == "" {
		return nil
	}
	var meta map[string]string
	if err := json.Unmarshal([]byte(raw), &meta); err != nil {
		s.log.Warn("skipping malformed meta json",
			zap.Int64("question_id", questionID), zap.Error(err))
		return nil
	}
	if len(meta) == 0 {
		return nil
	}
	return meta
}

func encodeJSON(v interface{}) (string, error) {
	switch val := v.(type) {
	case []string:
		if len(val) == 0 {
			return "", nil
		}
	case map[string]string:
		if len(val) == 0 {
			return "", nil
		}
	}
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func scopeWhere(scope store.Scope) (string, []interface{}) {
	var conds []string
	var args []interface{}
	if scope.ExamID > 0 {
		conds = append(conds, "exam_id = ?")
		args = append(args, scope.ExamID)
	}
	if scope.SubjectID > 0 {
		conds = append(conds, "subject_id = ?")
		args = append(args, scope.SubjectID)
	}
	if scope.ChapterID > 0 {
		conds = append(conds, "chapter_id = ?")
		args = append(args, scope.ChapterID)
	}
	if len(conds) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func fmtTime(t time.Time) string {
	if t.IsZero() {
		t = time.Now()
	}
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
