// Package topicast mines exam question papers and predicts which
// topics are likely to appear next. The facade bundles extraction,
// segmentation, tagging, storage, frequency analysis and trend
// prediction behind one instance.
package topicast

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/topicast/topicast/pkg/topicast/curriculum"
	"github.com/topicast/topicast/pkg/topicast/extract"
	"github.com/topicast/topicast/pkg/topicast/ocr"
	"github.com/topicast/topicast/pkg/topicast/pipeline"
	"github.com/topicast/topicast/pkg/topicast/query"
	"github.com/topicast/topicast/pkg/topicast/store"
	"github.com/topicast/topicast/pkg/topicast/store/memstore"
	"github.com/topicast/topicast/pkg/topicast/tag"
	"github.com/topicast/topicast/pkg/topicast/trend"
)

// Options configures a Topicast instance
type Options struct {
	Store            store.Store
	Curriculum       *curriculum.Curriculum
	OCR              ocr.Engine
	Workers          int
	Limit            int
	DefaultYear      int
	MaxQuestionChars int
	MinCharsForOCR   int
	CacheTTL         time.Duration
	Logger           *zap.Logger
	Hooks            pipeline.Hooks
}

// Topicast is the exam mining and prediction engine facade
type Topicast struct {
	store    store.Store
	pipeline *pipeline.Pipeline
	query    *query.Service
	log      *zap.Logger
}

// New creates a Topicast instance. Zero-value options select working
// defaults: an in-memory store, the built-in curriculum and no OCR.
func New(opts Options) (*Topicast, error) {
	if opts.Store == nil {
		opts.Store = memstore.New()
	}
	cur := opts.Curriculum
	if cur == nil {
		cur = curriculum.Default()
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}

	tagger, err := tag.New(cur)
	if err != nil {
		return nil, err
	}

	extractor := extract.New(extract.Options{
		MinCharsForOCR: opts.MinCharsForOCR,
		Engine:         opts.OCR,
		Logger:         log,
	})

	pipe, err := pipeline.New(pipeline.Options{
		Store:            opts.Store,
		Extractor:        extractor,
		Tagger:           tagger,
		Workers:          opts.Workers,
		Limit:            opts.Limit,
		DefaultYear:      opts.DefaultYear,
		MaxQuestionChars: opts.MaxQuestionChars,
		Logger:           log,
		Hooks:            opts.Hooks,
	})
	if err != nil {
		return nil, err
	}

	svc, err := query.New(query.Options{
		Store:    opts.Store,
		CacheTTL: opts.CacheTTL,
		Logger:   log,
	})
	if err != nil {
		return nil, err
	}

	return &Topicast{
		store:    opts.Store,
		pipeline: pipe,
		query:    svc,
		log:      log,
	}, nil
}

// Store exposes the underlying store for direct lookups.
func (t *Topicast) Store() store.Store { return t.store }

// Query exposes the query service for list and search lookups.
func (t *Topicast) Query() *query.Service { return t.query }

// ProcessExamDir ingests every paper under root for the named exam and
// invalidates cached reports.
func (t *Topicast) ProcessExamDir(ctx context.Context, root, examName, subjectFilter string, limit int) (*pipeline.Summary, error) {
	summary, err := t.pipeline.ProcessExamDir(ctx, root, examName, subjectFilter, limit)
	if err != nil {
		return nil, err
	}
	t.query.FlushCache()
	return summary, nil
}

// Analyze builds the full report for an exam and subject. The chapter
// is optional.
func (t *Topicast) Analyze(ctx context.Context, examName, subjectName, chapterName string) (*query.Report, error) {
	return t.query.Analyze(ctx, examName, subjectName, chapterName)
}

// Predict forecasts from stored frequencies without re-analyzing.
func (t *Topicast) Predict(ctx context.Context, examName, subjectName, chapterName string, top int) ([]trend.Prediction, error) {
	return t.query.Predict(ctx, examName, subjectName, chapterName, top)
}

// TopTopics ranks topics by total appearances within the scope.
func (t *Topicast) TopTopics(ctx context.Context, examName, subjectName, chapterName string, limit int) ([]store.TopicCount, error) {
	return t.query.TopTopics(ctx, examName, subjectName, chapterName, limit)
}

// ExamStats summarizes one exam's stored coverage.
func (t *Topicast) ExamStats(ctx context.Context, examName string) (*query.ExamStats, error) {
	return t.query.ExamStats(ctx, examName)
}

// Stats counts stored rows per entity.
func (t *Topicast) Stats(ctx context.Context) (store.Stats, error) {
	return t.store.Stats(ctx)
}

// Close cleanly shuts down the instance
func (t *Topicast) Close() error {
	return t.store.Close()
}
