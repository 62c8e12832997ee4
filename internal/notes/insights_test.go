package notes

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vlad-lazar/sokrati/internal/models"
)

// seed stores a note with a fixed creation time and optional score.
func (f *fixture) seed(t *testing.T, owner string, at time.Time, score *float64) {
	t.Helper()
	note := &models.Note{OwnerID: owner, Text: "seeded", CreatedAt: at, Version: 1}
	if score != nil {
		note.Sentiment = &models.Sentiment{Score: *score, Magnitude: 1}
	}
	require.NoError(t, f.store.CreateNote(context.Background(), note))
}

func score(v float64) *float64 { return &v }

func TestParseRange(t *testing.T) {
	assert.Equal(t, RangeDay, ParseRange("day"))
	assert.Equal(t, RangeWeek, ParseRange(" WEEK "))
	assert.Equal(t, RangeYear, ParseRange("year"))
	assert.Equal(t, RangeMonth, ParseRange("month"))
	assert.Equal(t, RangeMonth, ParseRange(""))
	assert.Equal(t, RangeMonth, ParseRange("fortnight"))
}

func TestAggregateDayIsPerNote(t *testing.T) {
	f := newFixture(t)
	now := f.clock.Now()
	same := now.Add(-2 * time.Hour)

	f.seed(t, "u1", same, score(0.5))
	f.seed(t, "u1", same, score(-0.3))
	f.seed(t, "u1", now.Add(-time.Hour), nil)
	f.seed(t, "u1", now.Add(-30*time.Hour), score(0.9))
	f.seed(t, "u2", now.Add(-time.Hour), score(1))

	points, err := f.svc.AggregateSentimentOverTime(context.Background(), "u1", RangeDay)
	require.NoError(t, err)
	require.Len(t, points, 2)
	for _, p := range points {
		assert.Equal(t, PerNote, p.Granularity)
		assert.Equal(t, 1, p.Count)
		assert.True(t, same.Equal(p.Bucket))
	}
	assert.ElementsMatch(t, []float64{0.5, -0.3}, []float64{points[0].AverageScore, points[1].AverageScore})
}

func TestAggregateMonthAveragesPerDay(t *testing.T) {
	f := newFixture(t)
	now := f.clock.Now() // 2025-06-15 12:00 UTC

	f.seed(t, "u1", time.Date(2025, 6, 10, 9, 0, 0, 0, time.UTC), score(0.4))
	f.seed(t, "u1", time.Date(2025, 6, 10, 21, 0, 0, 0, time.UTC), score(-0.2))
	f.seed(t, "u1", time.Date(2025, 6, 10, 22, 0, 0, 0, time.UTC), nil)
	f.seed(t, "u1", time.Date(2025, 5, 20, 8, 0, 0, 0, time.UTC), score(1))
	f.seed(t, "u1", time.Date(2025, 5, 1, 8, 0, 0, 0, time.UTC), score(-1))
	f.seed(t, "u1", now.Add(time.Hour), score(-1))

	points, err := f.svc.AggregateSentimentOverTime(context.Background(), "u1", RangeMonth)
	require.NoError(t, err)
	require.Len(t, points, 2)

	assert.Equal(t, time.Date(2025, 5, 20, 0, 0, 0, 0, time.UTC), points[0].Bucket)
	assert.InDelta(t, 1.0, points[0].AverageScore, 1e-9)

	assert.Equal(t, time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC), points[1].Bucket)
	assert.Equal(t, PerDay, points[1].Granularity)
	assert.Equal(t, 2, points[1].Count)
	assert.InDelta(t, 0.10, points[1].AverageScore, 1e-9)
}

func TestAggregateWeekWindow(t *testing.T) {
	f := newFixture(t)
	now := f.clock.Now()

	f.seed(t, "u1", now.AddDate(0, 0, -6), score(0.2))
	f.seed(t, "u1", now.AddDate(0, 0, -8), score(0.8))

	points, err := f.svc.AggregateSentimentOverTime(context.Background(), "u1", RangeWeek)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.InDelta(t, 0.2, points[0].AverageScore, 1e-9)
}

func TestAggregateYearBucketsByMonth(t *testing.T) {
	f := newFixture(t)

	f.seed(t, "u1", time.Date(2024, 12, 3, 0, 0, 0, 0, time.UTC), score(0.6))
	f.seed(t, "u1", time.Date(2024, 12, 28, 0, 0, 0, 0, time.UTC), score(0.2))
	f.seed(t, "u1", time.Date(2025, 2, 14, 0, 0, 0, 0, time.UTC), score(-0.5))
	f.seed(t, "u1", time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), score(1))

	points, err := f.svc.AggregateSentimentOverTime(context.Background(), "u1", RangeYear)
	require.NoError(t, err)
	require.Len(t, points, 2)

	assert.Equal(t, time.Date(2024, 12, 1, 0, 0, 0, 0, time.UTC), points[0].Bucket)
	assert.Equal(t, PerMonth, points[0].Granularity)
	assert.InDelta(t, 0.4, points[0].AverageScore, 1e-9)
	assert.Equal(t, time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), points[1].Bucket)
	assert.InDelta(t, -0.5, points[1].AverageScore, 1e-9)
}

func TestAggregateUsesConfiguredLocation(t *testing.T) {
	tokyo := time.FixedZone("JST", 9*60*60)
	f := newFixture(t, WithLocation(tokyo))

	// 20:00 UTC on the 9th is already the 10th in Tokyo.
	f.seed(t, "u1", time.Date(2025, 6, 9, 20, 0, 0, 0, time.UTC), score(0.3))
	f.seed(t, "u1", time.Date(2025, 6, 10, 3, 0, 0, 0, time.UTC), score(0.5))

	points, err := f.svc.AggregateSentimentOverTime(context.Background(), "u1", RangeWeek)
	require.NoError(t, err)
	require.Len(t, points, 1)
	assert.Equal(t, 2, points[0].Count)
	assert.True(t, time.Date(2025, 6, 10, 0, 0, 0, 0, tokyo).Equal(points[0].Bucket))
}

func TestAggregateEmpty(t *testing.T) {
	f := newFixture(t)

	points, err := f.svc.AggregateSentimentOverTime(context.Background(), "u1", RangeMonth)
	require.NoError(t, err)
	assert.NotNil(t, points)
	assert.Empty(t, points)

	_, err = f.svc.AggregateSentimentOverTime(context.Background(), "", RangeMonth)
	assert.ErrorIs(t, err, ErrUnauthenticated)
}
