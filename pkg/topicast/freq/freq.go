// Package freq aggregates stored questions into per-topic, per-year
// frequency rows, the raw material for trend prediction.
package freq

import (
	"context"
	"sort"
	"time"

	"github.com/topicast/topicast/pkg/topicast/store"
)

// Analyzer recomputes frequency aggregates from stored questions.
// Each run recounts the scope from scratch.
type Analyzer struct {
	store store.Store
}

// New creates an analyzer over the given store.
func New(st store.Store) *Analyzer {
	return &Analyzer{store: st}
}

// Result summarizes one aggregation run.
type Result struct {
	QuestionsAnalyzed int
	UniqueTopics      int
	RecordsStored     int
}

type freqKey struct {
	examID    int64
	subjectID int64
	chapterID int64
	topic     string
	year      int
}

// Analyze counts topic occurrences per year across the scope's
// questions and stores the aggregate in one transaction. Questions
// without topics are skipped.
func (a *Analyzer) Analyze(ctx context.Context, scope store.Scope) (*Result, error) {
	questions, err := a.store.QuestionsByScope(ctx, scope)
	if err != nil {
		return nil, err
	}

	counts := make(map[freqKey]int)
	topics := make(map[string]struct{})
	analyzed := 0

	for _, q := range questions {
		if len(q.Topics) == 0 {
			continue
		}
		analyzed++
		for _, topic := range q.Topics {
			if topic == "" {
				continue
			}
			counts[freqKey{q.ExamID, q.SubjectID, q.ChapterID, topic, q.Year}]++
			topics[topic] = struct{}{}
		}
	}

	now := time.Now().UTC()
	rows := make([]store.TopicFrequency, 0, len(counts))
	for k, count := range counts {
		rows = append(rows, store.TopicFrequency{
			ExamID:     k.examID,
			SubjectID:  k.subjectID,
			ChapterID:  k.chapterID,
			Topic:      k.topic,
			Year:       k.year,
			Count:      count,
			TotalMarks: count,
			UpdatedAt:  now,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Topic != rows[j].Topic {
			return rows[i].Topic < rows[j].Topic
		}
		return rows[i].Year < rows[j].Year
	})

	if err := a.store.UpsertTopicFrequencies(ctx, rows); err != nil {
		return nil, err
	}

	return &Result{
		QuestionsAnalyzed: analyzed,
		UniqueTopics:      len(topics),
		RecordsStored:     len(rows),
	}, nil
}

// TopTopics ranks topics within the scope by total occurrence count.
func (a *Analyzer) TopTopics(ctx context.Context, scope store.Scope, limit int) ([]store.TopicCount, error) {
	return a.store.TopTopics(ctx, scope, limit)
}
