// Package query builds analysis reports from stored questions,
// frequencies and predictions.
package query

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/topicast/topicast/pkg/topicast/freq"
	"github.com/topicast/topicast/pkg/topicast/internalerr"
	"github.com/topicast/topicast/pkg/topicast/store"
	"github.com/topicast/topicast/pkg/topicast/trend"
)

// DefaultCacheTTL bounds how long a report is served unchanged.
const DefaultCacheTTL = 5 * time.Minute

// Report view limits.
const (
	maxTopicsPerYear   = 5
	maxPredictions     = 5
	maxSources         = 10
	highQualityYears   = 5
	mediumQualityYears = 3
)

// YearData is one year's slice of a report.
type YearData struct {
	Year          int      `json:"year"`
	QuestionCount int      `json:"questionCount"`
	Topics        []string `json:"topics"`
}

// TopicPrediction is one forecast row of a report.
type TopicPrediction struct {
	Topic       string `json:"topic"`
	Probability int    `json:"probability"`
	Logic       string `json:"logic"`
	Trend       string `json:"trend"`
}

// SourceDocument is one ingested file reference in a report.
type SourceDocument struct {
	Year        int    `json:"year"`
	ExamName    string `json:"examName"`
	SourceLabel string `json:"sourceLabel"`
	URL         string `json:"url"`
}

// Report is the full analysis response for one scope.
type Report struct {
	YearWiseData           []YearData        `json:"yearWiseData"`
	Predictions            []TopicPrediction `json:"predictions"`
	SourceDocuments        []SourceDocument  `json:"sourceDocuments"`
	TotalQuestionsAnalyzed int               `json:"totalQuestionsAnalyzed"`
	MostFrequentTopic      string            `json:"mostFrequentTopic"`
	ConfidenceScore        float64           `json:"confidenceScore"`
	DataQuality            string            `json:"dataQuality"`
}

// ExamStats is the per-exam overview.
type ExamStats struct {
	Exam           string `json:"exam"`
	TotalQuestions int    `json:"total_questions"`
	TotalSubjects  int    `json:"total_subjects"`
	YearsCovered   int    `json:"years_covered"`
	DataQuality    string `json:"data_quality"`
}

// Options configures a Service.
type Options struct {
	Store    store.Store
	CacheTTL time.Duration
	Logger   *zap.Logger
	Now      func() time.Time
}

// Service answers analysis queries. Reports are cached per scope until
// the TTL expires or a new batch flushes the cache.
type Service struct {
	store     store.Store
	analyzer  *freq.Analyzer
	predictor *trend.Predictor
	cache     *gocache.Cache
	log       *zap.Logger
	now       func() time.Time
}

// New creates a query service over the store.
func New(opts Options) (*Service, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("%w: store is required", internalerr.ErrInvalidConfig)
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Service{
		store:     opts.Store,
		analyzer:  freq.New(opts.Store),
		predictor: trend.New(),
		cache:     gocache.New(opts.CacheTTL, 2*opts.CacheTTL),
		log:       opts.Logger,
		now:       opts.Now,
	}, nil
}

// resolveScope maps names to stored IDs. Lookups are substring and
// case-insensitive; the chapter is optional.
func (s *Service) resolveScope(ctx context.Context, examName, subjectName, chapterName string) (store.Scope, error) {
	exam, found, err := s.store.FindExam(ctx, examName)
	if err != nil {
		return store.Scope{}, err
	}
	if !found {
		return store.Scope{}, fmt.Errorf("exam '%s': %w", examName, internalerr.ErrNotFound)
	}

	subject, found, err := s.store.FindSubject(ctx, exam.ID, subjectName)
	if err != nil {
		return store.Scope{}, err
	}
	if !found {
		return store.Scope{}, fmt.Errorf("subject '%s' for exam '%s': %w", subjectName, exam.Name, internalerr.ErrNotFound)
	}

	scope := store.Scope{ExamID: exam.ID, SubjectID: subject.ID}
	if chapterName != "" {
		chapter, found, err := s.store.FindChapter(ctx, subject.ID, chapterName)
		if err != nil {
			return store.Scope{}, err
		}
		if !found {
			return store.Scope{}, fmt.Errorf("chapter '%s' for subject '%s': %w", chapterName, subject.Name, internalerr.ErrNotFound)
		}
		scope.ChapterID = chapter.ID
	}
	return scope, nil
}

// Analyze resolves the names to a scope, refreshes the frequency
// aggregate and predictions, and assembles the report. The chapter is
// optional; an empty name analyzes the whole subject.
func (s *Service) Analyze(ctx context.Context, examName, subjectName, chapterName string) (*Report, error) {
	scope, err := s.resolveScope(ctx, examName, subjectName, chapterName)
	if err != nil {
		return nil, err
	}

	key := fmt.Sprintf("analyze:%d:%d:%d", scope.ExamID, scope.SubjectID, scope.ChapterID)
	if cached, ok := s.cache.Get(key); ok {
		return cached.(*Report), nil
	}

	if _, err := s.analyzer.Analyze(ctx, scope); err != nil {
		return nil, err
	}

	var (
		questions []store.Question
		freqs     []store.TopicFrequency
		sources   []store.SourceDocument
		topTopics []store.TopicCount
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		questions, err = s.store.QuestionsByScope(gctx, scope)
		return err
	})
	g.Go(func() error {
		var err error
		freqs, err = s.store.TopicFrequencies(gctx, scope)
		return err
	})
	g.Go(func() error {
		var err error
		sources, err = s.store.SourceDocuments(gctx, scope.ExamID, maxSources)
		return err
	})
	g.Go(func() error {
		var err error
		topTopics, err = s.store.TopTopics(gctx, scope, 1)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	predictions := s.predictor.Predict(freqs, s.now().Year())
	s.persistPredictions(ctx, scope, predictions)

	report := buildReport(questions, predictions, sources, topTopics)
	s.cache.SetDefault(key, report)
	return report, nil
}

// persistPredictions caches the freshly computed forecast in the
// store. Failure leaves the report intact.
func (s *Service) persistPredictions(ctx context.Context, scope store.Scope, predictions []trend.Prediction) {
	now := s.now().UTC()
	rows := make([]store.Prediction, len(predictions))
	for i, p := range predictions {
		rows[i] = store.Prediction{
			ExamID:      scope.ExamID,
			SubjectID:   scope.SubjectID,
			ChapterID:   scope.ChapterID,
			Topic:       p.Topic,
			Probability: p.Probability,
			Confidence:  p.Confidence,
			Reasoning:   p.Reasoning,
			Trend:       p.Trend,
			UpdatedAt:   now,
		}
	}
	if err := s.store.SavePredictions(ctx, scope, rows); err != nil {
		s.log.Warn("persisting predictions", zap.Error(err))
	}
}

func buildReport(questions []store.Question, predictions []trend.Prediction,
	sources []store.SourceDocument, topTopics []store.TopicCount) *Report {

	type yearAgg struct {
		count  int
		topics map[string]struct{}
	}
	byYear := make(map[int]*yearAgg)
	for _, q := range questions {
		agg := byYear[q.Year]
		if agg == nil {
			agg = &yearAgg{topics: make(map[string]struct{})}
			byYear[q.Year] = agg
		}
		agg.count++
		for _, topic := range q.Topics {
			agg.topics[topic] = struct{}{}
		}
	}

	years := make([]int, 0, len(byYear))
	for year := range byYear {
		years = append(years, year)
	}
	sort.Ints(years)

	yearWise := make([]YearData, 0, len(years))
	for _, year := range years {
		agg := byYear[year]
		topics := make([]string, 0, len(agg.topics))
		for topic := range agg.topics {
			topics = append(topics, topic)
		}
		sort.Strings(topics)
		if len(topics) > maxTopicsPerYear {
			topics = topics[:maxTopicsPerYear]
		}
		yearWise = append(yearWise, YearData{Year: year, QuestionCount: agg.count, Topics: topics})
	}

	predViews := make([]TopicPrediction, 0, maxPredictions)
	for _, p := range predictions {
		if len(predViews) == maxPredictions {
			break
		}
		logic := p.Reasoning
		if logic == "" {
			logic = "Based on historical frequency"
		}
		direction := p.Trend
		if direction == "" {
			direction = trend.TrendStable
		}
		predViews = append(predViews, TopicPrediction{
			Topic:       p.Topic,
			Probability: int(p.Probability * 100),
			Logic:       logic,
			Trend:       direction,
		})
	}

	sourceViews := make([]SourceDocument, 0, len(sources))
	for _, src := range sources {
		url := src.URL
		if url == "" {
			url = src.FilePath
		}
		sourceViews = append(sourceViews, SourceDocument{
			Year:        src.Year,
			ExamName:    src.ExamName,
			SourceLabel: src.SourceLabel,
			URL:         url,
		})
	}

	mostFrequent := "Unknown"
	if len(topTopics) > 0 {
		mostFrequent = topTopics[0].Topic
	}

	yearsCovered := len(yearWise)
	return &Report{
		YearWiseData:           yearWise,
		Predictions:            predViews,
		SourceDocuments:        sourceViews,
		TotalQuestionsAnalyzed: len(questions),
		MostFrequentTopic:      mostFrequent,
		ConfidenceScore:        round2(math.Min(float64(yearsCovered)/7.0, 1.0)),
		DataQuality:            dataQuality(yearsCovered),
	}
}

func dataQuality(yearsCovered int) string {
	switch {
	case yearsCovered >= highQualityYears:
		return "high"
	case yearsCovered >= mediumQualityYears:
		return "medium"
	default:
		return "low"
	}
}

// Predict recomputes the forecast from stored frequencies without
// touching questions or the cache. Top bounds the result when > 0.
func (s *Service) Predict(ctx context.Context, examName, subjectName, chapterName string, top int) ([]trend.Prediction, error) {
	scope, err := s.resolveScope(ctx, examName, subjectName, chapterName)
	if err != nil {
		return nil, err
	}
	freqs, err := s.store.TopicFrequencies(ctx, scope)
	if err != nil {
		return nil, err
	}
	predictions := s.predictor.Predict(freqs, s.now().Year())
	if top > 0 && len(predictions) > top {
		predictions = predictions[:top]
	}
	return predictions, nil
}

// TopTopics ranks topics by total appearances within the scope.
func (s *Service) TopTopics(ctx context.Context, examName, subjectName, chapterName string, limit int) ([]store.TopicCount, error) {
	scope, err := s.resolveScope(ctx, examName, subjectName, chapterName)
	if err != nil {
		return nil, err
	}
	return s.analyzer.TopTopics(ctx, scope, limit)
}

// Exams lists all exams.
func (s *Service) Exams(ctx context.Context) ([]store.Exam, error) {
	return s.store.ListExams(ctx)
}

// SearchExams lists exams whose name contains the fragment.
func (s *Service) SearchExams(ctx context.Context, name string) ([]store.Exam, error) {
	return s.store.SearchExams(ctx, name)
}

// SubjectsForExam lists an exam's subjects, resolving the exam by
// substring.
func (s *Service) SubjectsForExam(ctx context.Context, examName string) ([]store.Subject, error) {
	exam, found, err := s.store.FindExam(ctx, examName)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("exam '%s': %w", examName, internalerr.ErrNotFound)
	}
	return s.store.ListSubjects(ctx, exam.ID)
}

// ChaptersForSubject lists a subject's chapters in declared order.
func (s *Service) ChaptersForSubject(ctx context.Context, examName, subjectName string) ([]store.Chapter, error) {
	exam, found, err := s.store.FindExam(ctx, examName)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("exam '%s': %w", examName, internalerr.ErrNotFound)
	}
	subject, found, err := s.store.FindSubject(ctx, exam.ID, subjectName)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("subject '%s' for exam '%s': %w", subjectName, exam.Name, internalerr.ErrNotFound)
	}
	return s.store.ListChapters(ctx, subject.ID)
}

// ExamStats summarizes one exam's coverage.
func (s *Service) ExamStats(ctx context.Context, examName string) (*ExamStats, error) {
	exam, found, err := s.store.FindExam(ctx, examName)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("exam '%s': %w", examName, internalerr.ErrNotFound)
	}

	questions, err := s.store.QuestionsByScope(ctx, store.Scope{ExamID: exam.ID})
	if err != nil {
		return nil, err
	}
	subjects, err := s.store.ListSubjects(ctx, exam.ID)
	if err != nil {
		return nil, err
	}

	years := make(map[int]struct{})
	for _, q := range questions {
		years[q.Year] = struct{}{}
	}

	return &ExamStats{
		Exam:           exam.FullName,
		TotalQuestions: len(questions),
		TotalSubjects:  len(subjects),
		YearsCovered:   len(years),
		DataQuality:    dataQuality(len(years)),
	}, nil
}

// Stats counts stored rows per entity.
func (s *Service) Stats(ctx context.Context) (store.Stats, error) {
	return s.store.Stats(ctx)
}

// FlushCache drops all cached reports, typically after a new batch.
func (s *Service) FlushCache() {
	s.cache.Flush()
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
