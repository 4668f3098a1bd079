// Package pipeline walks directories of exam papers (PDF or HTML) and
// turns them into stored, tagged questions.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/oklog/ulid/v2"
	"go.uber.org/zap"

	"github.com/topicast/topicast/internal/worker"
	"github.com/topicast/topicast/pkg/topicast/extract"
	"github.com/topicast/topicast/pkg/topicast/internalerr"
	"github.com/topicast/topicast/pkg/topicast/segment"
	"github.com/topicast/topicast/pkg/topicast/store"
	"github.com/topicast/topicast/pkg/topicast/tag"
)

// Defaults applied by New.
const (
	DefaultWorkers          = 4
	DefaultYear             = 2020
	DefaultMaxQuestionChars = 1000
)

// Extractor pulls text out of one source file.
type Extractor interface {
	Extract(ctx context.Context, path string) (*extract.Result, error)
}

// Hooks receive processing events, typically for metrics.
type Hooks struct {
	DocumentProcessed func(status string)
	QuestionsStored   func(count int)
}

// Options configures a Pipeline.
type Options struct {
	Store            store.Store
	Extractor        Extractor
	Tagger           *tag.Tagger
	Workers          int
	Limit            int
	DefaultYear      int
	MaxQuestionChars int
	Logger           *zap.Logger
	Hooks            Hooks
}

// Pipeline ingests exam papers into the store.
type Pipeline struct {
	store            store.Store
	extractor        Extractor
	tagger           *tag.Tagger
	workers          int
	limit            int
	defaultYear      int
	maxQuestionChars int
	log              *zap.Logger
	hooks            Hooks
}

// Summary reports one batch run.
type Summary struct {
	TotalPDFs      int            `json:"total_pdfs"`
	Processed      int            `json:"processed"`
	Failed         int            `json:"failed"`
	TotalQuestions int            `json:"total_questions"`
	BySubject      map[string]int `json:"by_subject"`
}

// New validates the options and returns a ready pipeline.
func New(opts Options) (*Pipeline, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("%w: store is required", internalerr.ErrInvalidConfig)
	}
	if opts.Extractor == nil {
		return nil, fmt.Errorf("%w: extractor is required", internalerr.ErrInvalidConfig)
	}
	if opts.Tagger == nil {
		return nil, fmt.Errorf("%w: tagger is required", internalerr.ErrInvalidConfig)
	}
	if opts.Workers <= 0 {
		opts.Workers = DefaultWorkers
	}
	if opts.DefaultYear <= 0 {
		opts.DefaultYear = DefaultYear
	}
	if opts.MaxQuestionChars <= 0 {
		opts.MaxQuestionChars = DefaultMaxQuestionChars
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	return &Pipeline{
		store:            opts.Store,
		extractor:        opts.Extractor,
		tagger:           opts.Tagger,
		workers:          opts.Workers,
		limit:            opts.Limit,
		defaultYear:      opts.DefaultYear,
		maxQuestionChars: opts.MaxQuestionChars,
		log:              opts.Logger,
		hooks:            opts.Hooks,
	}, nil
}

// ProcessExamDir walks root for question paper files and processes
// them against an existing exam. A missing exam aborts; individual
// document failures are recorded and counted but never stop the batch.
func (p *Pipeline) ProcessExamDir(ctx context.Context, root, examName, subjectFilter string, limit int) (*Summary, error) {
	exam, found, err := p.store.GetExamByName(ctx, examName)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, fmt.Errorf("exam %q: %w", examName, internalerr.ErrNotFound)
	}

	paths, err := collectSources(root, subjectFilter)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = p.limit
	}
	if limit > 0 && len(paths) > limit {
		paths = paths[:limit]
	}

	summary := &Summary{TotalPDFs: len(paths), BySubject: make(map[string]int)}
	if len(paths) == 0 {
		return summary, nil
	}

	p.log.Info("processing exam directory",
		zap.String("exam", exam.Name),
		zap.String("root", root),
		zap.Int("pdfs", len(paths)),
		zap.Int("workers", p.workers))

	pool := worker.NewPool(ctx, p.workers)
	pool.Start()
	for _, path := range paths {
		pool.Submit(&docJob{pipeline: p, exam: exam, path: path})
	}

	for _, res := range pool.Wait() {
		doc, ok := res.(*docResult)
		if !ok {
			continue
		}
		if doc.err != nil {
			summary.Failed++
			continue
		}
		summary.Processed++
		summary.TotalQuestions += doc.questions
		summary.BySubject[doc.subject] += doc.questions
	}

	p.log.Info("batch complete",
		zap.String("exam", exam.Name),
		zap.Int("processed", summary.Processed),
		zap.Int("failed", summary.Failed),
		zap.Int("questions", summary.TotalQuestions))

	return summary, nil
}

type docJob struct {
	pipeline *Pipeline
	exam     store.Exam
	path     string
}

type docResult struct {
	path      string
	subject   string
	questions int
	err       error
}

func (r *docResult) GetError() error { return r.err }

func (j *docJob) Execute(ctx context.Context) worker.Result {
	return j.pipeline.processDocument(ctx, j.exam, j.path)
}

func (p *Pipeline) processDocument(ctx context.Context, exam store.Exam, path string) *docResult {
	meta := metadataFromPath(path, p.defaultYear)
	docID := ulid.Make().String()

	extraction, err := p.extractor.Extract(ctx, path)
	if err != nil {
		return p.failDocument(ctx, exam, path, meta, docID, err)
	}
	if !extraction.Success {
		return p.failDocument(ctx, exam, path, meta, docID,
			fmt.Errorf("%w: %s", internalerr.ErrExtraction, extraction.Error))
	}

	// Segmentation needs the raw line structure; bodies are normalized
	// afterwards, one question at a time.
	segmented := segment.Segment(extraction.FullText, exam.Category)

	subject, err := p.subjectFor(ctx, exam.ID, meta.Subject)
	if err != nil {
		return p.failDocument(ctx, exam, path, meta, docID, err)
	}

	chapterIDs := make(map[string]int64)
	questions := make([]store.Question, 0, len(segmented))
	for _, q := range segmented {
		text := segment.CleanText(q.Text)
		if text == "" {
			continue
		}
		tagged := p.tagger.Tag(text, exam.Name, meta.Subject)
		chapterID, err := p.chapterFor(ctx, subject.ID, tagged.Chapter, chapterIDs)
		if err != nil {
			return p.failDocument(ctx, exam, path, meta, docID, err)
		}
		questions = append(questions, store.Question{
			PDFSource: filepath.Base(path),
			Year:      meta.Year,
			ExamID:    exam.ID,
			SubjectID: subject.ID,
			ChapterID: chapterID,
			Text:      truncate(text, p.maxQuestionChars),
			Marks:     q.EstimatedMarks,
			Topics:    tagged.Topics,
			Meta:      meta.questionMeta(path),
		})
	}

	if err := p.store.InsertQuestions(ctx, questions); err != nil {
		return p.failDocument(ctx, exam, path, meta, docID, err)
	}

	record := store.SourceDocument{
		ID:          docID,
		ExamID:      exam.ID,
		Year:        meta.Year,
		ExamName:    exam.Name,
		SourceLabel: meta.Subject,
		FilePath:    path,
		Status:      store.SourceProcessed,
	}
	if err := p.store.RecordSourceDocument(ctx, record); err != nil {
		p.log.Warn("recording source document", zap.String("path", path), zap.Error(err))
	}

	if p.hooks.DocumentProcessed != nil {
		p.hooks.DocumentProcessed(store.SourceProcessed)
	}
	if p.hooks.QuestionsStored != nil {
		p.hooks.QuestionsStored(len(questions))
	}

	p.log.Info("processed document",
		zap.String("path", path),
		zap.String("subject", meta.Subject),
		zap.Int("year", meta.Year),
		zap.Int("questions", len(questions)))

	return &docResult{path: path, subject: meta.Subject, questions: len(questions)}
}

func (p *Pipeline) failDocument(ctx context.Context, exam store.Exam, path string, meta pathMeta, docID string, cause error) *docResult {
	p.log.Warn("document failed", zap.String("path", path), zap.Error(cause))

	record := store.SourceDocument{
		ID:          docID,
		ExamID:      exam.ID,
		Year:        meta.Year,
		ExamName:    exam.Name,
		SourceLabel: meta.Subject,
		FilePath:    path,
		Status:      store.SourceFailed,
		Error:       cause.Error(),
	}
	if err := p.store.RecordSourceDocument(ctx, record); err != nil {
		p.log.Warn("recording failed source document", zap.String("path", path), zap.Error(err))
	}

	if p.hooks.DocumentProcessed != nil {
		p.hooks.DocumentProcessed(store.SourceFailed)
	}

	return &docResult{path: path, subject: meta.Subject, err: cause}
}

// subjectFor looks up the subject by exact name, creating it when
// missing. Lookup-first keeps seeded codes intact.
func (p *Pipeline) subjectFor(ctx context.Context, examID int64, name string) (store.Subject, error) {
	sub, found, err := p.store.GetSubjectByName(ctx, examID, name)
	if err != nil {
		return store.Subject{}, err
	}
	if found {
		return sub, nil
	}

	id, err := p.store.UpsertSubject(ctx, store.Subject{
		ExamID: examID,
		Name:   name,
		Code:   subjectCode(name),
	})
	if err != nil {
		return store.Subject{}, err
	}
	return store.Subject{ID: id, ExamID: examID, Name: name}, nil
}

// chapterFor resolves a tagged chapter name to an id, creating the
// chapter when missing. Lookup-first keeps seeded weightages intact.
func (p *Pipeline) chapterFor(ctx context.Context, subjectID int64, name string, cache map[string]int64) (int64, error) {
	if id, ok := cache[name]; ok {
		return id, nil
	}

	c, found, err := p.store.GetChapterByName(ctx, subjectID, name)
	if err != nil {
		return 0, err
	}
	if found {
		cache[name] = c.ID
		return c.ID, nil
	}

	id, err := p.store.UpsertChapter(ctx, store.Chapter{SubjectID: subjectID, Name: name})
	if err != nil {
		return 0, err
	}
	cache[name] = id
	return id, nil
}

// Question papers are mostly PDFs, with the occasional paper published
// as a plain HTML page.
var sourceExts = map[string]struct{}{
	".pdf":  {},
	".html": {},
	".htm":  {},
}

// collectSources walks root for question paper files. When
// subjectFilter is set, a file's directory path must contain the
// filter.
func collectSources(root, subjectFilter string) ([]string, error) {
	filter := strings.ToLower(subjectFilter)

	var paths []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}
		if _, ok := sourceExts[strings.ToLower(filepath.Ext(d.Name()))]; !ok {
			return nil
		}
		if filter != "" && !strings.Contains(strings.ToLower(filepath.Dir(path)), filter) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("directory %q: %w", root, internalerr.ErrNotFound)
		}
		return nil, err
	}

	sort.Strings(paths)
	return paths, nil
}

// Month abbreviations that mark an exam session in a path.
var sessionMonths = map[string]struct{}{
	"jan": {}, "apr": {}, "may": {}, "jun": {}, "jul": {},
	"aug": {}, "sep": {}, "oct": {}, "nov": {}, "dec": {},
}

type pathMeta struct {
	Year    int
	Subject string
	Session string
	Shift   string
}

// metadataFromPath derives year, subject, session and shift from the
// file's path components. The subject is the file stem; the year is
// the first four-digit component, falling back to the default.
func metadataFromPath(path string, defaultYear int) pathMeta {
	meta := pathMeta{Year: defaultYear}

	base := filepath.Base(path)
	meta.Subject = strings.TrimSuffix(base, filepath.Ext(base))

	yearFound := false
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == "" {
			continue
		}
		lower := strings.ToLower(part)

		if !yearFound && len(part) == 4 && allDigits(part) {
			if year, err := strconv.Atoi(part); err == nil {
				meta.Year = year
				yearFound = true
			}
		}
		if meta.Session == "" {
			if _, ok := sessionMonths[lower]; ok {
				meta.Session = part
			}
		}
		if meta.Shift == "" && strings.Contains(lower, "shift") {
			meta.Shift = lower
		}
	}

	return meta
}

func (m pathMeta) questionMeta(path string) map[string]string {
	out := map[string]string{"source": filepath.Base(path)}
	if m.Session != "" {
		out["session"] = m.Session
	}
	if m.Shift != "" {
		out["shift"] = m.Shift
	}
	return out
}

// subjectCode derives a short code from the subject name: the first
// ten characters, uppercased.
func subjectCode(name string) string {
	runes := []rune(name)
	if len(runes) > 10 {
		runes = runes[:10]
	}
	return strings.ToUpper(string(runes))
}

func truncate(text string, max int) string {
	runes := []rune(text)
	if len(runes) <= max {
		return text
	}
	return string(runes[:max])
}

func allDigits(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
