// Package trend turns per-year topic frequencies into next-exam
// probability forecasts.
package trend

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"unicode"

	"github.com/topicast/topicast/pkg/topicast/store"
)

// Trend directions.
const (
	TrendUp     = "up"
	TrendDown   = "down"
	TrendStable = "stable"
)

// Weights defines the probability component weights
type Weights struct {
	Frequency float64 // how often the topic appears per covered year
	Recency   float64 // how recently it last appeared
	Gap       float64 // overdue-for-return pressure
	Trend     float64 // year-over-year slope direction
}

// DefaultWeights weight frequency heaviest, with the remaining mass
// split across recency, gap and slope.
func DefaultWeights() Weights {
	return Weights{Frequency: 0.35, Recency: 0.25, Gap: 0.20, Trend: 0.20}
}

// Stats summarizes one topic's appearance history.
type Stats struct {
	TotalOccurrences int
	YearsCovered     int
	LastSeen         int
	AvgPerYear       float64
}

// Prediction is one topic's forecast with its supporting numbers.
type Prediction struct {
	Topic       string
	Probability float64
	Confidence  float64
	Trend       string
	Reasoning   string
	Stats       Stats
}

// Predictor scores topics from their frequency history.
type Predictor struct {
	weights Weights
}

// New creates a predictor with default weights.
func New() *Predictor {
	return &Predictor{weights: DefaultWeights()}
}

// NewWithWeights creates a predictor with custom weights.
func NewWithWeights(w Weights) *Predictor {
	return &Predictor{weights: w}
}

// Predict scores every topic present in the frequency rows. Rows for
// the same topic and year are summed, so mixed-chapter scopes
// aggregate cleanly. Output is sorted by probability descending, then
// topic ascending.
func Predict(rows []store.TopicFrequency, currentYear int) []Prediction {
	return New().Predict(rows, currentYear)
}

// Predict implements the package-level Predict for this predictor's
// weights.
func (p *Predictor) Predict(rows []store.TopicFrequency, currentYear int) []Prediction {
	byTopic := make(map[string]map[int]int)
	for _, r := range rows {
		if r.Topic == "" {
			continue
		}
		if byTopic[r.Topic] == nil {
			byTopic[r.Topic] = make(map[int]int)
		}
		byTopic[r.Topic][r.Year] += r.Count
	}

	out := make([]Prediction, 0, len(byTopic))
	for topic, yearCounts := range byTopic {
		out = append(out, p.predictTopic(topic, yearCounts, currentYear))
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].Probability != out[j].Probability {
			return out[i].Probability > out[j].Probability
		}
		return out[i].Topic < out[j].Topic
	})
	return out
}

func (p *Predictor) predictTopic(topic string, yearCounts map[int]int, currentYear int) Prediction {
	years := make([]int, 0, len(yearCounts))
	total := 0
	for year, count := range yearCounts {
		years = append(years, year)
		total += count
	}
	sort.Ints(years)

	lastYear := years[len(years)-1]
	yearsCovered := len(years)
	avgPerYear := float64(total) / float64(yearsCovered)
	yearsSince := currentYear - lastYear

	// Frequency: average appearances per covered year, saturating at 5
	frequency := math.Min(avgPerYear/5.0, 1.0)

	// Recency: linear decay over five years since last appearance
	recency := math.Max(0, 1.0-float64(yearsSince)/5.0)

	// Gap: topics absent two or more years become due for a return
	gap := 0.0
	if yearsSince >= 2 {
		gap = math.Min(float64(yearsSince)/3.0, 0.5)
	}

	direction, trendScore := slopeDirection(years, yearCounts)

	probability := round2(p.weights.Frequency*frequency +
		p.weights.Recency*recency +
		p.weights.Gap*gap +
		p.weights.Trend*trendScore)
	confidence := round2(math.Min(float64(yearsCovered)/7.0, 1.0))

	return Prediction{
		Topic:       topic,
		Probability: probability,
		Confidence:  confidence,
		Trend:       direction,
		Reasoning:   reasoning(avgPerYear, lastYear, yearsSince, direction),
		Stats: Stats{
			TotalOccurrences: total,
			YearsCovered:     yearsCovered,
			LastSeen:         lastYear,
			AvgPerYear:       avgPerYear,
		},
	}
}

// slopeDirection fits a least-squares line through the per-year counts
// in year order and buckets the slope into a direction.
func slopeDirection(years []int, yearCounts map[int]int) (string, float64) {
	if len(years) < 2 {
		return TrendStable, 0.5
	}

	n := float64(len(years))
	var sumX, sumY, sumXY, sumXX float64
	for i, year := range years {
		x := float64(i)
		y := float64(yearCounts[year])
		sumX += x
		sumY += y
		sumXY += x * y
		sumXX += x * x
	}

	denom := n*sumXX - sumX*sumX
	if denom == 0 {
		return TrendStable, 0.5
	}
	slope := (n*sumXY - sumX*sumY) / denom

	switch {
	case slope > 0.5:
		return TrendUp, 0.7
	case slope < -0.5:
		return TrendDown, 0.3
	default:
		return TrendStable, 0.5
	}
}

func reasoning(avgPerYear float64, lastYear, yearsSince int, direction string) string {
	var parts []string

	switch {
	case avgPerYear >= 3:
		parts = append(parts, fmt.Sprintf("High frequency topic (avg %.1f questions/year)", avgPerYear))
	case avgPerYear >= 1.5:
		parts = append(parts, fmt.Sprintf("Moderate frequency (%.1f questions/year)", avgPerYear))
	default:
		parts = append(parts, fmt.Sprintf("Low frequency (%.1f questions/year)", avgPerYear))
	}

	switch {
	case yearsSince == 0:
		parts = append(parts, fmt.Sprintf("appeared in %d", lastYear))
	case yearsSince == 1:
		parts = append(parts, "last seen 1 year ago")
	case yearsSince <= 2:
		parts = append(parts, fmt.Sprintf("gap of %d years increases probability", yearsSince))
	default:
		parts = append(parts, fmt.Sprintf("not seen for %d years - due for return", yearsSince))
	}

	switch direction {
	case TrendUp:
		parts = append(parts, "showing upward trend")
	case TrendDown:
		parts = append(parts, "decreasing trend")
	}

	sentence := strings.Join(parts, ". ")
	if sentence == "" {
		return sentence
	}
	runes := []rune(sentence)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes) + "."
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}
