package sentiment

import (
	"math"
	"strings"
	"unicode"
)

// Analyzer scores short informal text with a word lexicon.
type Analyzer struct {
	lexicon map[string]float64
}

func NewAnalyzer() *Analyzer {
	return &Analyzer{lexicon: buildLexicon()}
}

// Polarity returns the mean polarity of the opinion words in text, in
// [-1, 1] and rounded to 4 decimals. Text without opinion words scores 0.
func (a *Analyzer) Polarity(text string) float64 {
	tokens := tokenize(strings.ToLower(text))

	var sum float64
	n := 0
	for i, tok := range tokens {
		p, ok := a.lexicon[tok]
		if !ok {
			continue
		}
		j := i - 1
		if j >= 0 {
			if m, ok := intensifiers[tokens[j]]; ok {
				p *= m
				j--
			}
		}
		if j >= 0 && negators[tokens[j]] {
			p *= -0.5
		}
		sum += clamp(p)
		n++
	}
	if n == 0 {
		return 0
	}
	return round4(clamp(sum / float64(n)))
}

// tokenize splits on anything that is not a letter, digit or apostrophe.
func tokenize(text string) []string {
	var words []string
	var cur strings.Builder
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsNumber(r) || r == '\'' {
			cur.WriteRune(r)
			continue
		}
		if cur.Len() > 0 {
			words = append(words, strings.Trim(cur.String(), "'"))
			cur.Reset()
		}
	}
	if cur.Len() > 0 {
		words = append(words, strings.Trim(cur.String(), "'"))
	}
	return words
}

func clamp(v float64) float64 {
	return math.Max(-1, math.Min(1, v))
}

func round4(v float64) float64 {
	return math.Round(v*1e4) / 1e4
}
