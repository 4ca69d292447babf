package dashboard

import (
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/volatiletech/null/v8"

	"github.com/njautech/schoolhub/core/submission"
)

// WeekPoint is the value of one ISO-8601 week bucket.
type WeekPoint struct {
	Week  string  `json:"week"` // YYYY-Www
	Value float64 `json:"value"`
}

// ISOWeekLabel formats the ISO-8601 week of t, eg. 2024-W01.
func ISOWeekLabel(t time.Time) string {
	year, week := t.UTC().ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

func round2(f float64) float64 {
	return math.Round(f*100) / 100
}

// MeanGrade averages the grades of graded submissions. Ungraded ones are left out,
// and the mean is null when nothing is graded.
func MeanGrade(subs []submission.Submission) null.Float64 {
	var sum, n int64
	for _, sub := range subs {
		if sub.Graded && sub.Grade.Valid {
			sum += int64(sub.Grade.Int)
			n++
		}
	}
	if n == 0 {
		return null.Float64{}
	}
	return null.Float64From(round2(float64(sum) / float64(n)))
}

// CompletionRate returns done/total as a percentage, 0 when total is 0.
func CompletionRate(done, total int) float64 {
	if total <= 0 {
		return 0
	}
	return round2(float64(done) / float64(total) * 100)
}

// WeeklyGradeTrend averages graded submissions per ISO week of submission.
// Weeks without graded submissions are omitted.
func WeeklyGradeTrend(subs []submission.Submission) []WeekPoint {
	type bucket struct{ sum, n int64 }
	buckets := make(map[string]*bucket)
	for _, sub := range subs {
		if !sub.Graded || !sub.Grade.Valid {
			continue
		}
		label := ISOWeekLabel(sub.SubmittedAt)
		b, ok := buckets[label]
		if !ok {
			b = new(bucket)
			buckets[label] = b
		}
		b.sum += int64(sub.Grade.Int)
		b.n++
	}

	points := make([]WeekPoint, 0, len(buckets))
	for label, b := range buckets {
		points = append(points, WeekPoint{Week: label, Value: round2(float64(b.sum) / float64(b.n))})
	}
	sortWeeks(points)
	return points
}

// WeeklyCounts counts timestamps per ISO week. Empty weeks are omitted.
func WeeklyCounts(times []time.Time) []WeekPoint {
	counts := make(map[string]int)
	for _, t := range times {
		counts[ISOWeekLabel(t)]++
	}
	points := make([]WeekPoint, 0, len(counts))
	for label, n := range counts {
		points = append(points, WeekPoint{Week: label, Value: float64(n)})
	}
	sortWeeks(points)
	return points
}

// labels are zero-padded so lexical order is chronological
func sortWeeks(points []WeekPoint) {
	sort.Slice(points, func(i, j int) bool { return points[i].Week < points[j].Week })
}
