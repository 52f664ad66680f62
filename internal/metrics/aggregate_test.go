// ABOUTME: Tests for summary statistic derivation
// ABOUTME: Pins totals, averages, accuracy scoring, and peak-hour tie-breaking

package metrics

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/thirdeye/visioncount/internal/analytics"
)

func intPtr(v int) *int { return &v }

func TestAggregate_Totals(t *testing.T) {
	records := []analytics.Record{
		{Time: "09:15", Filename: "a.mp4", Count: 10, Status: analytics.StatusCompleted},
		{Time: "10:00", Filename: "b.mp4", Count: 20, Status: analytics.StatusVerified},
		{Time: "11:30", Filename: "c.mp4", Count: 5, Status: analytics.StatusFailed},
	}

	s := Aggregate(records)

	assert.Equal(t, 3, s.TotalUploads)
	assert.Equal(t, 35, s.TotalBags)
	assert.Equal(t, 12, s.AvgBags, "round(35/3)")
}

func TestAggregate_AccuracyScore(t *testing.T) {
	records := []analytics.Record{
		{Time: "09:15", Filename: "a.mp4", Count: 100, ActualCount: intPtr(90), Status: analytics.StatusVerified},
	}

	s := Aggregate(records)

	assert.Equal(t, 90, s.AccuracyScore, "round(90/100*100)")
	assert.Equal(t, 100, s.TotalAI)
	assert.Equal(t, 90, s.TotalActual)
}

func TestAggregate_AccuracySymmetric(t *testing.T) {
	// Undercounting and overcounting score the same: min/max is symmetric.
	under := Aggregate([]analytics.Record{
		{Time: "09:15", Filename: "a.mp4", Count: 90, ActualCount: intPtr(100), Status: analytics.StatusVerified},
	})
	over := Aggregate([]analytics.Record{
		{Time: "09:15", Filename: "a.mp4", Count: 100, ActualCount: intPtr(90), Status: analytics.StatusVerified},
	})

	assert.Equal(t, under.AccuracyScore, over.AccuracyScore)
	assert.Equal(t, 90, under.AccuracyScore)
}

func TestAggregate_UnverifiedDefaultsToAICount(t *testing.T) {
	records := []analytics.Record{
		{Time: "09:15", Filename: "a.mp4", Count: 40, Status: analytics.StatusCompleted},
	}

	s := Aggregate(records)

	assert.Equal(t, 40, s.TotalActual, "actualCount defaults to count when never verified")
	assert.Equal(t, 100, s.AccuracyScore)
}

func TestAggregate_SuccessRateIsAccuracyScore(t *testing.T) {
	// The "success rate" label is the agreement score, not completed/total.
	records := []analytics.Record{
		{Time: "09:15", Filename: "a.mp4", Count: 100, ActualCount: intPtr(50), Status: analytics.StatusVerified},
		{Time: "10:15", Filename: "b.mp4", Count: 0, Status: analytics.StatusFailed},
	}

	s := Aggregate(records)

	assert.Equal(t, s.AccuracyScore, s.SuccessRate())
	assert.Equal(t, 50, s.SuccessRate(), "one failed task out of two does not make this 50%; the count ratio does")
}

func TestAggregate_PeakHourTieBreak(t *testing.T) {
	records := []analytics.Record{
		{Time: "09:15", Filename: "a.mp4", Count: 5, Status: analytics.StatusCompleted},
		{Time: "09:50", Filename: "b.mp4", Count: 5, Status: analytics.StatusCompleted},
		{Time: "14:00", Filename: "c.mp4", Count: 9, Status: analytics.StatusCompleted},
	}

	s := Aggregate(records)

	assert.True(t, s.PeakHourValid)
	assert.Equal(t, 9, s.PeakHour, "hour 9 sums to 10, beating hour 14's 9")
}

func TestAggregate_PeakHourEqualSumsFirstWins(t *testing.T) {
	records := []analytics.Record{
		{Time: "14:00", Filename: "a.mp4", Count: 7, Status: analytics.StatusCompleted},
		{Time: "09:15", Filename: "b.mp4", Count: 7, Status: analytics.StatusCompleted},
	}

	s := Aggregate(records)

	assert.True(t, s.PeakHourValid)
	assert.Equal(t, 9, s.PeakHour, "ascending scan order resolves ties to the earlier hour")
}

func TestAggregate_EmptyRecords(t *testing.T) {
	s := Aggregate(nil)

	assert.Zero(t, s.TotalUploads)
	assert.Zero(t, s.TotalBags)
	assert.Zero(t, s.AvgBags)
	assert.Zero(t, s.AccuracyScore)
	assert.False(t, s.PeakHourValid, "peak hour is undefined without positive counts")
}

func TestAggregate_ZeroCountsLeavePeakUndefined(t *testing.T) {
	records := []analytics.Record{
		{Time: "09:15", Filename: "a.mp4", Count: 0, Status: analytics.StatusFailed},
	}

	s := Aggregate(records)
	assert.False(t, s.PeakHourValid)
}

func TestHourOf(t *testing.T) {
	cases := []struct {
		in    string
		hour  int
		valid bool
	}{
		{"09:15", 9, true},
		{"9:15", 9, true},
		{"23:59", 23, true},
		{"00:00", 0, true},
		{"24:00", 0, false},
		{"noon", 0, false},
		{"", 0, false},
	}

	for _, tc := range cases {
		h, ok := hourOf(tc.in)
		assert.Equal(t, tc.valid, ok, tc.in)
		if tc.valid {
			assert.Equal(t, tc.hour, h, tc.in)
		}
	}
}
