// Package tag assigns curriculum chapters and topics to questions by
// whole-word keyword scoring.
package tag

import (
	"fmt"
	"math"
	"regexp"
	"strings"
	"sync"

	"github.com/topicast/topicast/pkg/topicast/curriculum"
	"github.com/topicast/topicast/pkg/topicast/internalerr"
)

// UnknownChapter is assigned when no curriculum keyword matches.
const UnknownChapter = "Unknown"

// Scores above this keyword count saturate confidence at 1.0.
const confidenceCeiling = 5.0

// Maximum topics attached to one question.
const maxTopics = 3

// Tag is the outcome of tagging one question.
type Tag struct {
	Chapter    string
	Topics     []string
	Confidence float64
	Scores     map[string]int
}

// Tagger scores questions against an immutable curriculum. It is safe
// for concurrent use.
type Tagger struct {
	cur *curriculum.Curriculum

	mu       sync.RWMutex
	patterns map[string]*regexp.Regexp
}

// New creates a Tagger over the given curriculum.
func New(cur *curriculum.Curriculum) (*Tagger, error) {
	if cur == nil {
		return nil, fmt.Errorf("%w: curriculum is required", internalerr.ErrInvalidInput)
	}
	return &Tagger{cur: cur, patterns: make(map[string]*regexp.Regexp)}, nil
}

// Curriculum returns the curriculum this tagger scores against.
func (t *Tagger) Curriculum() *curriculum.Curriculum { return t.cur }

// Tag scores one question against the chapters of (exam, subject).
// The winning chapter is the highest keyword count; equal scores fall
// to the chapter declared first in the curriculum. A question matching
// nothing gets UnknownChapter with zero confidence.
func (t *Tagger) Tag(question, exam, subject string) Tag {
	lower := strings.ToLower(question)
	chapters := t.cur.Chapters(exam, subject)

	scores := make(map[string]int)
	var winner *curriculum.Entry
	bestScore := 0

	for i, ch := range chapters {
		score := 0
		for _, kw := range ch.Keywords {
			score += len(t.pattern(kw).FindAllString(lower, -1))
		}
		if score > 0 {
			scores[ch.Chapter] = score
		}
		if score > bestScore {
			bestScore = score
			winner = &chapters[i]
		}
	}

	if winner == nil {
		return Tag{Chapter: UnknownChapter, Confidence: 0, Scores: scores}
	}

	return Tag{
		Chapter:    winner.Chapter,
		Topics:     relevantTopics(lower, winner),
		Confidence: round2(math.Min(float64(bestScore)/confidenceCeiling, 1.0)),
		Scores:     scores,
	}
}

// TagBatch tags each question independently.
func (t *Tagger) TagBatch(questions []string, exam, subject string) []Tag {
	tags := make([]Tag, len(questions))
	for i, q := range questions {
		tags[i] = t.Tag(q, exam, subject)
	}
	return tags
}

// relevantTopics keeps the chapter topics whose label shares a keyword
// with the question (substring match on both sides). When no topic
// label connects, the whole chapter list applies.
func relevantTopics(questionLower string, entry *curriculum.Entry) []string {
	var relevant []string
	for _, topic := range entry.Topics {
		topicLower := strings.ToLower(topic)
		for _, kw := range entry.Keywords {
			kwLower := strings.ToLower(kw)
			if strings.Contains(questionLower, kwLower) && strings.Contains(topicLower, kwLower) {
				relevant = append(relevant, topic)
				break
			}
		}
	}
	if len(relevant) == 0 {
		relevant = append([]string(nil), entry.Topics...)
	}
	if len(relevant) > maxTopics {
		relevant = relevant[:maxTopics]
	}
	return relevant
}

func (t *Tagger) pattern(keyword string) *regexp.Regexp {
	key := strings.ToLower(keyword)

	t.mu.RLock()
	re, ok := t.patterns[key]
	t.mu.RUnlock()
	if ok {
		return re
	}

	re = regexp.MustCompile(`\b` + regexp.QuoteMeta(key) + `\b`)
	t.mu.Lock()
	t.patterns[key] = re
	t.mu.Unlock()
	return re
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
