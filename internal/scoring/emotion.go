package scoring

import (
	"context"
	"strings"
	"unicode"
)

type Emotion string

const (
	Fear     Emotion = "fear"
	Anger    Emotion = "anger"
	Sadness  Emotion = "sadness"
	Disgust  Emotion = "disgust"
	Surprise Emotion = "surprise"
	Joy      Emotion = "joy"
	Neutral  Emotion = "neutral"
)

// Labels is the fixed label set a classifier is asked to distribute over.
var Labels = []Emotion{Fear, Anger, Sadness, Disgust, Surprise, Joy, Neutral}

// Distribution maps an emotion label to its probability.
type Distribution map[Emotion]float64

// DefaultWeights returns the per-label stress weights. Unlisted labels weigh 0.
func DefaultWeights() map[Emotion]float64 {
	return map[Emotion]float64{
		Fear:     90,
		Anger:    85,
		Sadness:  70,
		Disgust:  60,
		Surprise: 30,
		Joy:      -40,
	}
}

// EmotionClassifier produces a probability distribution over emotion labels.
type EmotionClassifier interface {
	Classify(ctx context.Context, text string) (Distribution, error)
}

// LexiconEmotionClassifier counts keyword hits per label and normalises the
// counts. A negated joy word counts as sadness; other negated keywords are
// dropped. Text without any hit is classified as fully neutral.
type LexiconEmotionClassifier struct {
	keywords map[string]Emotion
	negators map[string]struct{}
}

func NewLexiconEmotionClassifier() *LexiconEmotionClassifier {
	kw := make(map[string]Emotion)
	for label, words := range emotionKeywords {
		for _, w := range words {
			kw[w] = label
		}
	}
	return &LexiconEmotionClassifier{keywords: kw, negators: negatorSet()}
}

func (c *LexiconEmotionClassifier) Classify(_ context.Context, text string) (Distribution, error) {
	counts := make(map[Emotion]int)
	total := 0
	tokens := tokenize(text)
	for i, tok := range tokens {
		label, ok := c.keywords[tok]
		if !ok {
			continue
		}
		if negatedAt(c.negators, tokens, i) {
			if label != Joy {
				continue
			}
			label = Sadness
		}
		counts[label]++
		total++
	}
	if total == 0 {
		return Distribution{Neutral: 1}, nil
	}
	dist := make(Distribution, len(counts))
	for label, n := range counts {
		dist[label] = float64(n) / float64(total)
	}
	return dist, nil
}

var emotionKeywords = map[Emotion][]string{
	Fear: {
		"afraid", "anxious", "anxiety", "scared", "fear", "fearful", "worried", "worry",
		"nervous", "panic", "panicking", "terrified", "dread", "overwhelmed", "uneasy",
	},
	Anger: {
		"angry", "anger", "furious", "mad", "irritated", "annoyed", "frustrated",
		"frustrating", "rage", "resent", "hate", "livid", "outraged",
	},
	Sadness: {
		"sad", "sadness", "unhappy", "depressed", "lonely", "miserable", "hopeless",
		"tired", "exhausted", "drained", "down", "cry", "crying", "burnout", "burned",
	},
	Disgust: {
		"disgusted", "disgusting", "gross", "sick", "awful", "toxic", "revolting",
	},
	Surprise: {
		"surprised", "surprise", "unexpected", "shocked", "suddenly", "astonished", "sudden",
	},
	Joy: {
		"happy", "joy", "glad", "great", "excited", "calm", "relaxed", "grateful",
		"proud", "good", "content", "cheerful", "peaceful", "rested", "wonderful",
	},
}

var apostrophes = strings.NewReplacer("\u2019", "'", "\u2018", "'")

// tokenize lowercases text and splits it into words. Typographic apostrophes
// are folded to ASCII so contractions like "don’t" stay one token.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(apostrophes.Replace(text)), func(r rune) bool {
		return !unicode.IsLetter(r) && r != '\''
	})
}
