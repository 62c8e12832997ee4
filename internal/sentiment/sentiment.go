package sentiment

import (
	"context"
	"math"
)

// Result is a document-level sentiment reading.
type Result struct {
	Score     float64
	Magnitude float64
}

// Analyzer reports sentiment for a piece of text. The boolean is false when
// the analyzer has no opinion; implementations never return errors and map
// their own failures to no opinion.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (Result, bool)
}

// Nop never has an opinion.
type Nop struct{}

func (Nop) Analyze(context.Context, string) (Result, bool) {
	return Result{}, false
}

// normalize clamps a reading into the documented ranges and rejects NaN.
func normalize(r Result) (Result, bool) {
	if math.IsNaN(r.Score) || math.IsNaN(r.Magnitude) || math.IsInf(r.Magnitude, 0) {
		return Result{}, false
	}
	r.Score = math.Max(-1, math.Min(1, r.Score))
	r.Magnitude = math.Max(0, r.Magnitude)
	return r, true
}
