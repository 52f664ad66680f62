// ABOUTME: Pure derivation of dashboard summary statistics from analytics records
// ABOUTME: Computes totals, averages, the accuracy score, and the peak activity hour

package metrics

import (
	"math"
	"strconv"
	"strings"

	"github.com/thirdeye/visioncount/internal/analytics"
)

// Summary holds the derived dashboard metrics for one filtered record set.
type Summary struct {
	TotalUploads int
	TotalBags    int
	AvgBags      int

	TotalAI     int
	TotalActual int

	// AccuracyScore is the percentage agreement between AI-produced and
	// human-verified counts. The dashboard surfaces this same value under
	// the "success rate" label; despite that name it measures
	// count-agreement, not the ratio of successful tasks.
	AccuracyScore int

	// PeakHour is the hour of day (0-23) with the largest summed count.
	// Valid only when PeakHourValid is set; with no positive counts the
	// peak is undefined and rendered as a placeholder.
	PeakHour      int
	PeakHourValid bool
}

// SuccessRate returns the accuracy score under the label the dashboard
// displays it as. See AccuracyScore for the naming caveat.
func (s Summary) SuccessRate() int {
	return s.AccuracyScore
}

// Aggregate recomputes the summary from scratch over the given records.
// Pure: no side effects, no external calls. The collection is bounded at 50
// records, so incremental updates are not worth their complexity.
func Aggregate(records []analytics.Record) Summary {
	s := Summary{TotalUploads: len(records)}

	for i := range records {
		r := &records[i]
		s.TotalBags += r.Count
		s.TotalAI += r.Count
		s.TotalActual += r.Actual()
	}

	if s.TotalUploads > 0 {
		s.AvgBags = int(math.Round(float64(s.TotalBags) / float64(s.TotalUploads)))
	}

	if s.TotalActual > 0 && s.TotalAI > 0 {
		lo, hi := s.TotalAI, s.TotalActual
		if lo > hi {
			lo, hi = hi, lo
		}
		s.AccuracyScore = int(math.Round(float64(lo) / float64(hi) * 100))
	}

	s.PeakHour, s.PeakHourValid = peakHour(records)
	return s
}

// peakHour buckets counts by the hour prefix of each record's display time
// and returns the hour with the largest sum. Ties resolve to the first hour
// in ascending 0-23 scan order.
func peakHour(records []analytics.Record) (int, bool) {
	var sums [24]int
	for i := range records {
		if h, ok := hourOf(records[i].Time); ok {
			sums[h] += records[i].Count
		}
	}

	best, bestSum := 0, 0
	for h := 0; h < 24; h++ {
		if sums[h] > bestSum {
			best, bestSum = h, sums[h]
		}
	}
	if bestSum <= 0 {
		return 0, false
	}
	return best, true
}

// hourOf extracts the hour from a localized "HH:MM" display string.
func hourOf(display string) (int, bool) {
	prefix, _, found := strings.Cut(display, ":")
	if !found {
		return 0, false
	}
	h, err := strconv.Atoi(strings.TrimSpace(prefix))
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	return h, true
}
