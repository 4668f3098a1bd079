package memstore

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/topicast/topicast/pkg/topicast/internalerr"
	"github.com/topicast/topicast/pkg/topicast/store"
)

// Store is an in-memory implementation of store.Store for tests.
// Unlike the SQLite backend it keeps Topics and Meta as structured
// values rather than serialized text.
type Store struct {
	mu          sync.RWMutex
	nextID      int64
	exams       map[int64]store.Exam
	examNames   map[string]int64
	subjects    map[int64]store.Subject
	subjectKeys map[string]int64
	chapters    map[int64]store.Chapter
	chapterKeys map[string]int64
	questions   map[int64]store.Question
	frequencies map[string]store.TopicFrequency
	predictions map[string]store.Prediction
	sources     map[string]store.SourceDocument
}

// New creates a new in-memory store.
func New() *Store {
	return &Store{
		nextID:      1,
		exams:       make(map[int64]store.Exam),
		examNames:   make(map[string]int64),
		subjects:    make(map[int64]store.Subject),
		subjectKeys: make(map[string]int64),
		chapters:    make(map[int64]store.Chapter),
		chapterKeys: make(map[string]int64),
		questions:   make(map[int64]store.Question),
		frequencies: make(map[string]store.TopicFrequency),
		predictions: make(map[string]store.Prediction),
		sources:     make(map[string]store.SourceDocument),
	}
}

// Close implements store.Store.
func (s *Store) Close() error { return nil }

// UpsertExam inserts or updates an exam, keyed by name.
func (s *Store) UpsertExam(ctx context.Context, e store.Exam) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if id, ok := s.examNames[e.Name]; ok {
		existing := s.exams[id]
		existing.FullName = e.FullName
		existing.Category = e.Category
		existing.Description = e.Description
		s.exams[id] = existing
		return id, nil
	}

	id := s.nextID
	s.nextID++
	e.ID = id
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}
	s.exams[id] = e
	s.examNames[e.Name] = id
	return id, nil
}

// GetExam returns an exam by ID.
func (s *Store) GetExam(ctx context.Context, id int64) (store.Exam, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if e, ok := s.exams[id]; ok {
		return e, nil
	}
	return store.Exam{}, fmt.Errorf("exam %d: %w", id, internalerr.ErrNotFound)
}

// GetExamByName returns an exam by exact name.
func (s *Store) GetExamByName(ctx context.Context, name string) (store.Exam, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id, ok := s.examNames[name]; ok {
		return s.exams[id], true, nil
	}
	return store.Exam{}, false, nil
}

// FindExam returns the lowest-id exam whose name contains the fragment.
func (s *Store) FindExam(ctx context.Context, name string) (store.Exam, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := s.matchExams(name)
	if len(matches) == 0 {
		return store.Exam{}, false, nil
	}
	return matches[0], true, nil
}

// SearchExams returns all exams whose name contains the fragment.
func (s *Store) SearchExams(ctx context.Context, name string) ([]store.Exam, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.matchExams(name), nil
}

// ListExams returns all exams ordered by ID.
func (s *Store) ListExams(ctx context.Context) ([]store.Exam, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.matchExams(""), nil
}

func (s *Store) matchExams(fragment string) []store.Exam {
	needle := strings.ToLower(fragment)
	var out []store.Exam
	for _, e := range s.exams {
		if needle == "" || strings.Contains(strings.ToLower(e.Name), needle) {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// UpsertSubject inserts or updates a subject, keyed by exam and name.
func (s *Store) UpsertSubject(ctx context.Context, sub store.Subject) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := fmt.Sprintf("%d|%s", sub.ExamID, sub.Name)
	if id, ok := s.subjectKeys[key]; ok {
		existing := s.subjects[id]
		existing.Code = sub.Code
		s.subjects[id] = existing
		return id, nil
	}

	id := s.nextID
	s.nextID++
	sub.ID = id
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = time.Now().UTC()
	}
	s.subjects[id] = sub
	s.subjectKeys[key] = id
	return id, nil
}

// GetSubject returns a subject by ID.
func (s *Store) GetSubject(ctx context.Context, id int64) (store.Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if sub, ok := s.subjects[id]; ok {
		return sub, nil
	}
	return store.Subject{}, fmt.Errorf("subject %d: %w", id, internalerr.ErrNotFound)
}

// GetSubjectByName returns a subject by exact name within an exam.
func (s *Store) GetSubjectByName(ctx context.Context, examID int64, name string) (store.Subject, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id, ok := s.subjectKeys[fmt.Sprintf("%d|%s", examID, name)]; ok {
		return s.subjects[id], true, nil
	}
	return store.Subject{}, false, nil
}

// FindSubject returns the lowest-id subject within an exam whose name
// contains the fragment.
func (s *Store) FindSubject(ctx context.Context, examID int64, name string) (store.Subject, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	matches := s.matchSubjects(examID, name)
	if len(matches) == 0 {
		return store.Subject{}, false, nil
	}
	return matches[0], true, nil
}

// ListSubjects returns an exam's subjects ordered by ID.
func (s *Store) ListSubjects(ctx context.Context, examID int64) ([]store.Subject, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.matchSubjects(examID, ""), nil
}

func (s *Store) matchSubjects(examID int64, fragment string) []store.Subject {
	needle := strings.ToLower(fragment)
	var out []store.Subject
	for _, sub := range s.subjects {
		if sub.ExamID != examID {
			continue
		}
		if needle == "" || strings.Contains(strings.ToLower(sub.Name), needle) {
			out = append(out, sub)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// UpsertChapter inserts or updates a chapter, keyed by subject and name.
func (s *Store) UpsertChapter(ctx context.Context, c store.Chapter) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := fmt.Sprintf("%d|%s", c.SubjectID, c.Name)
	if id, ok := s.chapterKeys[key]; ok {
		existing := s.chapters[id]
		existing.WeightageMarks = c.WeightageMarks
		existing.OrderIndex = c.OrderIndex
		s.chapters[id] = existing
		return id, nil
	}

	id := s.nextID
	s.nextID++
	c.ID = id
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	s.chapters[id] = c
	s.chapterKeys[key] = id
	return id, nil
}

// GetChapterByName returns a chapter by exact name within a subject.
func (s *Store) GetChapterByName(ctx context.Context, subjectID int64, name string) (store.Chapter, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if id, ok := s.chapterKeys[fmt.Sprintf("%d|%s", subjectID, name)]; ok {
		return s.chapters[id], true, nil
	}
	return store.Chapter{}, false, nil
}

// FindChapter returns the lowest-id chapter within a subject whose
// name contains the fragment.
func (s *Store) FindChapter(ctx context.Context, subjectID int64, name string) (store.Chapter, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(name)
	var matches []store.Chapter
	for _, c := range s.chapters {
		if c.SubjectID == subjectID && strings.Contains(strings.ToLower(c.Name), needle) {
			matches = append(matches, c)
		}
	}
	if len(matches) == 0 {
		return store.Chapter{}, false, nil
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].ID < matches[j].ID })
	return matches[0], true, nil
}

// ListChapters returns a subject's chapters in declared order.
func (s *Store) ListChapters(ctx context.Context, subjectID int64) ([]store.Chapter, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.Chapter
	for _, c := range s.chapters {
		if c.SubjectID == subjectID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].OrderIndex != out[j].OrderIndex {
			return out[i].OrderIndex < out[j].OrderIndex
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// InsertQuestions stores a batch of questions.
func (s *Store) InsertQuestions(ctx context.Context, questions []store.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, q := range questions {
		id := s.nextID
		s.nextID++
		q.ID = id
		if q.ExtractedAt.IsZero() {
			q.ExtractedAt = time.Now().UTC()
		}
		s.questions[id] = copyQuestion(q)
	}
	return nil
}

// QuestionsByScope returns questions matching the scope ordered by ID.
func (s *Store) QuestionsByScope(ctx context.Context, scope store.Scope) ([]store.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.Question
	for _, q := range s.questions {
		if matchScope(scope, q.ExamID, q.SubjectID, q.ChapterID) {
			out = append(out, copyQuestion(q))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// UpsertTopicFrequencies inserts or updates aggregate rows.
func (s *Store) UpsertTopicFrequencies(ctx context.Context, rows []store.TopicFrequency) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range rows {
		key := freqKey(r)
		if existing, ok := s.frequencies[key]; ok {
			existing.Count = r.Count
			existing.TotalMarks = r.TotalMarks
			existing.UpdatedAt = updatedOrNow(r.UpdatedAt)
			s.frequencies[key] = existing
			continue
		}
		r.ID = s.nextID
		s.nextID++
		r.UpdatedAt = updatedOrNow(r.UpdatedAt)
		s.frequencies[key] = r
	}
	return nil
}

// TopicFrequencies returns aggregate rows matching the scope ordered
// by topic then year.
func (s *Store) TopicFrequencies(ctx context.Context, scope store.Scope) ([]store.TopicFrequency, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []store.TopicFrequency
	for _, r := range s.frequencies {
		if matchScope(scope, r.ExamID, r.SubjectID, r.ChapterID) {
			out = append(out, r)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Topic != out[j].Topic {
			return out[i].Topic < out[j].Topic
		}
		return out[i].Year < out[j].Year
	})
	return out, nil
}

// TopTopics ranks topics within the scope by summed count.
func (s *Store) TopTopics(ctx context.Context, scope store.Scope, limit int) ([]store.TopicCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}

	totals := make(map[string]int)
	for _, r := range s.frequencies {
		if matchScope(scope, r.ExamID, r.SubjectID, r.ChapterID) {
			totals[r.Topic] += r.Count
		}
	}

	out := make([]store.TopicCount, 0, len(totals))
	for topic, count := range totals {
		out = append(out, store.TopicCount{Topic: topic, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Topic < out[j].Topic
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SavePredictions replaces the scope's predictions.
func (s *Store) SavePredictions(ctx context.Context, scope store.Scope, rows []store.Prediction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, p := range s.predictions {
		if matchScope(scope, p.ExamID, p.SubjectID, p.ChapterID) {
			delete(s.predictions, key)
		}
	}

	for _, p := range rows {
		p.ID = s.nextID
		s.nextID++
		p.UpdatedAt = updatedOrNow(p.UpdatedAt)
		s.predictions[predKey(p)] = p
	}
	return nil
}

// PredictionsByScope returns predictions ordered by probability
// descending, topic ascending.
func (s *Store) PredictionsByScope(ctx context.Context, scope store.Scope, limit int) ([]store.Prediction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 5
	}

	var out []store.Prediction
	for _, p := range s.predictions {
		if matchScope(scope, p.ExamID, p.SubjectID, p.ChapterID) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Probability != out[j].Probability {
			return out[i].Probability > out[j].Probability
		}
		return out[i].Topic < out[j].Topic
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// RecordSourceDocument stores one ingestion record, keyed by ID.
func (s *Store) RecordSourceDocument(ctx context.Context, doc store.SourceDocument) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	if existing, ok := s.sources[doc.ID]; ok {
		existing.Status = doc.Status
		existing.Error = doc.Error
		s.sources[doc.ID] = existing
		return nil
	}
	s.sources[doc.ID] = doc
	return nil
}

// SourceDocuments returns an exam's source documents, most recent
// years first.
func (s *Store) SourceDocuments(ctx context.Context, examID int64, limit int) ([]store.SourceDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}

	var out []store.SourceDocument
	for _, d := range s.sources {
		if d.ExamID == examID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Year != out[j].Year {
			return out[i].Year > out[j].Year
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// Stats counts rows per entity.
func (s *Store) Stats(ctx context.Context) (store.Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return store.Stats{
		Exams:            len(s.exams),
		Subjects:         len(s.subjects),
		Chapters:         len(s.chapters),
		Questions:        len(s.questions),
		TopicFrequencies: len(s.frequencies),
		Predictions:      len(s.predictions),
		SourceDocuments:  len(s.sources),
	}, nil
}

func matchScope(scope store.Scope, examID, subjectID, chapterID int64) bool {
	if scope.ExamID > 0 && examID != scope.ExamID {
		return false
	}
	if scope.SubjectID > 0 && subjectID != scope.SubjectID {
		return false
	}
	if scope.ChapterID > 0 && chapterID != scope.ChapterID {
		return false
	}
	return true
}

func freqKey(r store.TopicFrequency) string {
	return fmt.Sprintf("%d|%d|%d|%s|%d", r.ExamID, r.SubjectID, r.ChapterID, r.Topic, r.Year)
}

func predKey(p store.Prediction) string {
	return fmt.Sprintf("%d|%d|%d|%s", p.ExamID, p.SubjectID, p.ChapterID, p.Topic)
}

func updatedOrNow(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}

func copyQuestion(q store.Question) store.Question {
	if len(q.Topics) > 0 {
		topics := make([]string, len(q.Topics))
		copy(topics, q.Topics)
		q.Topics = topics
	}
	if len(q.Meta) > 0 {
		meta := make(map[string]string, len(q.Meta))
		for k, v := range q.Meta {
			meta[k] = v
		}
		q.Meta = meta
	}
	return q
}
