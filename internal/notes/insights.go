package notes

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/vlad-lazar/sokrati/internal/storage"
	"go.uber.org/zap"
)

type Range string

const (
	RangeDay   Range = "day"
	RangeWeek  Range = "week"
	RangeMonth Range = "month"
	RangeYear  Range = "year"
)

// ParseRange accepts day, week, month or year; anything else means month.
func ParseRange(s string) Range {
	switch r := Range(strings.ToLower(strings.TrimSpace(s))); r {
	case RangeDay, RangeWeek, RangeMonth, RangeYear:
		return r
	default:
		return RangeMonth
	}
}

func (r Range) start(now time.Time) time.Time {
	switch r {
	case RangeDay:
		return now.AddDate(0, 0, -1)
	case RangeWeek:
		return now.AddDate(0, 0, -7)
	case RangeYear:
		return now.AddDate(-1, 0, 0)
	default:
		return now.AddDate(0, -1, 0)
	}
}

// Granularity is how a SentimentPoint's bucket should be read.
type Granularity string

const (
	PerNote  Granularity = "note"
	PerDay   Granularity = "day"
	PerMonth Granularity = "month"
)

func (r Range) granularity() Granularity {
	switch r {
	case RangeDay:
		return PerNote
	case RangeYear:
		return PerMonth
	default:
		return PerDay
	}
}

// SentimentPoint is one chart point. For PerNote points Bucket is the note's
// creation time and AverageScore is that note's score.
type SentimentPoint struct {
	Bucket       time.Time
	Granularity  Granularity
	AverageScore float64
	Count        int
}

func (s *Service) AggregateSentimentOverTime(ctx context.Context, callerID string, r Range) ([]SentimentPoint, error) {
	if callerID == "" {
		return nil, ErrUnauthenticated
	}
	now := s.now().UTC()

	notes, err := s.store.ListNotes(ctx, storage.NoteQuery{
		OwnerID:     callerID,
		CreatedFrom: r.start(now),
		CreatedTo:   now,
		Ascending:   true,
	})
	if err != nil {
		s.logger.Error("Failed to fetch notes for insights",
			zap.Error(err),
			zap.String("owner_id", callerID),
			zap.String("range", string(r)))
		return nil, newError(KindDependency, "failed to fetch insights", err)
	}

	granularity := r.granularity()
	points := make([]SentimentPoint, 0)

	if granularity == PerNote {
		for _, note := range notes {
			if note.Sentiment == nil {
				continue
			}
			points = append(points, SentimentPoint{
				Bucket:       note.CreatedAt.In(s.location),
				Granularity:  PerNote,
				AverageScore: note.Sentiment.Score,
				Count:        1,
			})
		}
		return points, nil
	}

	type acc struct {
		total float64
		count int
	}
	buckets := make(map[time.Time]*acc)
	for _, note := range notes {
		if note.Sentiment == nil {
			continue
		}
		key := s.bucketStart(note.CreatedAt, granularity)
		b, ok := buckets[key]
		if !ok {
			b = &acc{}
			buckets[key] = b
		}
		b.total += note.Sentiment.Score
		b.count++
	}

	for key, b := range buckets {
		points = append(points, SentimentPoint{
			Bucket:       key,
			Granularity:  granularity,
			AverageScore: b.total / float64(b.count),
			Count:        b.count,
		})
	}
	sort.Slice(points, func(i, j int) bool {
		return points[i].Bucket.Before(points[j].Bucket)
	})
	return points, nil
}

func (s *Service) bucketStart(t time.Time, g Granularity) time.Time {
	t = t.In(s.location)
	if g == PerMonth {
		return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, s.location)
	}
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, s.location)
}
