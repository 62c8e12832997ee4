package sentiment

import (
	"context"
	"strings"
	"unicode"
)

// LexiconAnalyzer scores text by counting words from small positive and
// negative word lists. It needs no network and is used when no NLP
// provider is configured.
type LexiconAnalyzer struct {
	positive map[string]struct{}
	negative map[string]struct{}
	negators map[string]struct{}
}

func NewLexiconAnalyzer() *LexiconAnalyzer {
	return &LexiconAnalyzer{
		positive: wordSet(
			"love", "loved", "happy", "glad", "great", "good", "wonderful", "amazing",
			"excited", "grateful", "thankful", "calm", "proud", "joy", "enjoy", "enjoyed",
			"fun", "nice", "beautiful", "best", "relaxed", "hopeful", "fantastic", "awesome",
		),
		negative: wordSet(
			"hate", "hated", "sad", "angry", "awful", "bad", "terrible", "horrible",
			"tired", "anxious", "worried", "stressed", "lonely", "upset", "worst", "cry",
			"cried", "pain", "sick", "afraid", "annoyed", "frustrated", "miserable", "bored",
		),
		negators: wordSet("not", "no", "never", "don't", "didn't", "isn't", "wasn't", "can't"),
	}
}

func wordSet(words ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(words))
	for _, w := range words {
		set[w] = struct{}{}
	}
	return set
}

func (a *LexiconAnalyzer) Analyze(ctx context.Context, text string) (Result, bool) {
	words := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
	if len(words) == 0 {
		return Result{}, false
	}

	var pos, neg float64
	for i, word := range words {
		polarity := 0.0
		if _, ok := a.positive[word]; ok {
			polarity = 1
		} else if _, ok := a.negative[word]; ok {
			polarity = -1
		}
		if polarity == 0 {
			continue
		}
		// A negator directly before a sentiment word flips it.
		if i > 0 {
			if _, ok := a.negators[words[i-1]]; ok {
				polarity = -polarity
			}
		}
		if polarity > 0 {
			pos++
		} else {
			neg++
		}
	}

	hits := pos + neg
	if hits == 0 {
		return Result{Score: 0, Magnitude: 0}, true
	}
	return normalize(Result{
		Score:     (pos - neg) / hits,
		Magnitude: hits / 2,
	})
}
