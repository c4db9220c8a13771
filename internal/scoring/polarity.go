package scoring

import (
	"math"
	"strings"
)

// LexiconAnalyzer averages word polarities from a fixed lexicon. A negator
// in the two preceding tokens flips and halves a word's polarity; an
// intensifier directly before it scales it. Text with no lexicon hit is
// neutral.
type LexiconAnalyzer struct {
	lexicon      map[string]float64
	intensifiers map[string]float64
	negators     map[string]struct{}
}

func NewLexiconAnalyzer() *LexiconAnalyzer {
	return &LexiconAnalyzer{
		lexicon:      polarityLexicon,
		intensifiers: intensifierWords,
		negators:     negatorSet(),
	}
}

func (a *LexiconAnalyzer) Polarity(text string) float64 {
	tokens := tokenize(text)
	var (
		sum  float64
		hits int
	)
	for i, tok := range tokens {
		p, ok := a.lexicon[tok]
		if !ok {
			continue
		}
		if i > 0 {
			if mult, ok := a.intensifiers[tokens[i-1]]; ok {
				p *= mult
			}
		}
		if negatedAt(a.negators, tokens, i) {
			p *= -0.5
		}
		sum += math.Max(-1, math.Min(1, p))
		hits++
	}
	if hits == 0 {
		return 0
	}
	return math.Max(-1, math.Min(1, sum/float64(hits)))
}

// negatedAt reports whether a negator sits in the two tokens before i.
func negatedAt(negators map[string]struct{}, tokens []string, i int) bool {
	for j := i - 1; j >= 0 && j >= i-2; j-- {
		tok := tokens[j]
		if _, ok := negators[tok]; ok || strings.HasSuffix(tok, "n't") {
			return true
		}
	}
	return false
}

func negatorSet() map[string]struct{} {
	neg := make(map[string]struct{}, len(negatorWords))
	for _, w := range negatorWords {
		neg[w] = struct{}{}
	}
	return neg
}

var negatorWords = []string{"not", "no", "never", "nothing", "hardly", "without", "cannot", "cant", "dont", "isnt", "wasnt"}

var intensifierWords = map[string]float64{
	"very":       1.3,
	"really":     1.3,
	"so":         1.3,
	"extremely":  1.5,
	"incredibly": 1.5,
	"totally":    1.4,
	"super":      1.4,
	"quite":      1.1,
	"pretty":     1.1,
	"slightly":   0.6,
	"somewhat":   0.7,
	"bit":        0.7,
}

var polarityLexicon = map[string]float64{
	// positive
	"good": 0.7, "great": 0.8, "excellent": 1.0, "amazing": 0.9, "wonderful": 1.0,
	"happy": 0.8, "glad": 0.5, "calm": 0.5, "relaxed": 0.6, "peaceful": 0.6,
	"love": 0.5, "enjoy": 0.4, "enjoyed": 0.4, "fine": 0.4, "okay": 0.2, "ok": 0.2,
	"productive": 0.5, "grateful": 0.7, "proud": 0.8, "excited": 0.4, "rested": 0.5,
	"better": 0.5, "best": 1.0, "nice": 0.6, "positive": 0.3, "supported": 0.5,
	"confident": 0.5, "motivated": 0.5, "balanced": 0.4, "content": 0.4, "fun": 0.3,
	"energized": 0.6, "cheerful": 0.8, "satisfied": 0.5, "accomplished": 0.6,
	// negative
	"bad": -0.7, "terrible": -1.0, "awful": -1.0, "horrible": -1.0, "sad": -0.5,
	"stressed": -0.7, "stress": -0.5, "stressful": -0.7, "anxious": -0.6, "worried": -0.6,
	"tired": -0.4, "exhausted": -0.8, "overwhelmed": -0.8, "angry": -0.5, "upset": -0.6,
	"frustrated": -0.7, "frustrating": -0.7, "hopeless": -0.9, "depressed": -0.8,
	"lonely": -0.5, "miserable": -1.0, "worst": -1.0, "hate": -0.8, "afraid": -0.6,
	"scared": -0.6, "nervous": -0.4, "panic": -0.8, "burnout": -0.8, "burned": -0.5,
	"drained": -0.7, "pressure": -0.4, "difficult": -0.5, "hard": -0.3, "worse": -0.6,
	"unhappy": -0.7, "annoyed": -0.5, "irritated": -0.5, "sick": -0.7, "pain": -0.6,
	"crying": -0.7, "struggling": -0.7, "deadline": -0.2, "overworked": -0.8,
	"unmotivated": -0.5, "fail": -0.5, "failed": -0.5, "failing": -0.6, "problem": -0.3,
}
