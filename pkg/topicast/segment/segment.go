// Package segment splits extracted paper text into individual
// questions using layered numbering heuristics.
package segment

import (
	"regexp"
	"strconv"
	"strings"
)

// Question is one segmented question candidate.
type Question struct {
	Number         int
	Text           string
	HasSubParts    bool
	EstimatedMarks int
}

// Bodies shorter than this after trimming are noise, not questions.
const minQuestionChars = 10

// Fallback chunks shorter than this are discarded.
const minChunkChars = 20

// numberingPatterns are tried in priority order; the first pattern
// with at least two matches segments the paper. All forms anchor at
// line starts, where a number is a marker rather than a prose
// reference like "see Q 3".
var numberingPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?:^|\n)\s*[Qq]\.?\s*(\d+)\.?\s*`),
	regexp.MustCompile(`(?:^|\n)\s*(\d+)\.\s+`),
	regexp.MustCompile(`(?:^|\n)\s*[Qq]uestion\s+(\d+)\.?\s*`),
	regexp.MustCompile(`(?:^|\n)\s*\[(\d+)\]\s*`),
	regexp.MustCompile(`(?:^|\n)\s*\((\d+)\)\s*`),
}

var subPartPatterns = []*regexp.Regexp{
	regexp.MustCompile(`\([a-e]\)`),
	regexp.MustCompile(`[a-e]\)`),
	regexp.MustCompile(`\b[a-e]\.\s`),
}

var marksPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)[\[\(](\d+)\s*marks?[\]\)]`),
	regexp.MustCompile(`(?i)(\d+)\s*marks?`),
	regexp.MustCompile(`(?i)marks?\s*:\s*(\d+)`),
}

var (
	blankLineRe    = regexp.MustCompile(`\n\s*\n`)
	spaceRunRe     = regexp.MustCompile(`\s+`)
	pageMarkerRe   = regexp.MustCompile(`(?i)-{2,}\s*Page\s+\d+\s*-{2,}`)
	pageArtifactRe = regexp.MustCompile(`(?i)Page\s+\d+\s+of\s+\d+`)
	linkLineRe     = regexp.MustCompile(`(?:^|\n)www\.\S+`)
)

// Segment splits text into questions. examType is reserved for
// exam-specific numbering conventions; all exams currently share the
// same pattern set. When no numbering pattern matches twice, blank-line
// separated chunks become sequentially numbered questions.
func Segment(text, examType string) []Question {
	var questions []Question
	for _, re := range numberingPatterns {
		matches := re.FindAllStringSubmatchIndex(text, -1)
		if len(matches) >= 2 {
			questions = splitByMatches(text, matches)
			break
		}
	}
	if len(questions) == 0 {
		questions = fallbackSplit(text)
	}
	return questions
}

func splitByMatches(text string, matches [][]int) []Question {
	var questions []Question
	for i, m := range matches {
		num, _ := strconv.Atoi(text[m[2]:m[3]])

		end := len(text)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		body := strings.TrimSpace(text[m[1]:end])
		if len(body) < minQuestionChars {
			continue
		}

		questions = append(questions, Question{
			Number:         num,
			Text:           body,
			HasSubParts:    hasSubParts(body),
			EstimatedMarks: estimateMarks(body),
		})
	}
	return questions
}

func fallbackSplit(text string) []Question {
	var questions []Question
	for _, chunk := range blankLineRe.Split(text, -1) {
		chunk = strings.TrimSpace(chunk)
		if len(chunk) < minChunkChars {
			continue
		}
		questions = append(questions, Question{
			Number:         len(questions) + 1,
			Text:           chunk,
			HasSubParts:    hasSubParts(chunk),
			EstimatedMarks: estimateMarks(chunk),
		})
	}
	return questions
}

func hasSubParts(text string) bool {
	for _, re := range subPartPatterns {
		if len(re.FindAllString(text, -1)) >= 2 {
			return true
		}
	}
	return false
}

// estimateMarks reads an explicit marks annotation when one exists,
// otherwise buckets by question length.
func estimateMarks(text string) int {
	for _, re := range marksPatterns {
		if m := re.FindStringSubmatch(text); m != nil {
			if marks, err := strconv.Atoi(m[1]); err == nil {
				return marks
			}
		}
	}

	words := len(strings.Fields(text))
	switch {
	case words < 20:
		return 1
	case words < 50:
		return 2
	case words < 100:
		return 3
	default:
		return 5
	}
}

// CleanText normalizes question text: page markers, artifacts and
// leading link lines drop out, then whitespace runs collapse to
// single spaces.
func CleanText(text string) string {
	text = pageMarkerRe.ReplaceAllString(text, " ")
	text = pageArtifactRe.ReplaceAllString(text, " ")
	text = linkLineRe.ReplaceAllString(text, " ")
	text = spaceRunRe.ReplaceAllString(text, " ")
	return strings.TrimSpace(text)
}
