package sentiment

import (
	"context"
	"math"
	"regexp"
	"strings"
	"sync"

	"github.com/sirupsen/logrus"

	cerrors "cognivox-server/pkg/errors"
)

// LexiconClassifier scores text with word lexicons, negators, intensifiers
// and a few emotion patterns. It is deterministic and needs no model files.
type LexiconClassifier struct {
	logger *logrus.Entry

	once            sync.Once
	positiveWords   map[string]float64
	negativeWords   map[string]float64
	intensifiers    map[string]float64
	negators        map[string]float64
	contractions    map[string]string
	emotionPatterns map[string]*regexp.Regexp
	punctuation     map[string]float64
	tokenTrim       string
}

// NewLexiconClassifier creates a lexicon classifier. Lexicons are built on first use.
func NewLexiconClassifier(logger *logrus.Logger) *LexiconClassifier {
	return &LexiconClassifier{
		logger: logger.WithField("component", "sentiment_lexicon"),
	}
}

// Name returns the classifier name
func (lc *LexiconClassifier) Name() string {
	return "lexicon"
}

// Classify returns POSITIVE and NEGATIVE scores, dominant first
func (lc *LexiconClassifier) Classify(ctx context.Context, text string) ([]Score, error) {
	if strings.TrimSpace(text) == "" {
		return nil, cerrors.NewClassificationError(lc.Name(), ErrEmptyText)
	}
	if err := ctx.Err(); err != nil {
		return nil, cerrors.NewClassificationError(lc.Name(), err)
	}
	lc.once.Do(lc.initialize)

	words := lc.tokenize(text)
	lexicon := lc.lexiconScore(words)
	pattern := lc.patternScore(text)
	punct := lc.punctuationScore(text)

	combined := lexicon*0.6 + pattern*0.3 + punct*0.1
	if combined > 1 {
		combined = 1
	} else if combined < -1 {
		combined = -1
	}

	scores := binary((combined + 1) / 2)
	lc.logger.WithFields(logrus.Fields{
		"words":    len(words),
		"combined": combined,
		"label":    scores[0].Label,
	}).Debug("Classified text")
	return scores, nil
}

// tokenize lowercases, expands contractions and strips punctuation
func (lc *LexiconClassifier) tokenize(text string) []string {
	fields := strings.Fields(strings.ToLower(text))
	words := make([]string, 0, len(fields))
	for _, f := range fields {
		if expansion, ok := lc.contractions[strings.Trim(f, lc.tokenTrim)]; ok {
			words = append(words, strings.Fields(expansion)...)
			continue
		}
		w := strings.Trim(f, lc.tokenTrim)
		if w == "" {
			continue
		}
		// sentence end resets negation scope
		if strings.ContainsAny(f, ".!?") {
			w += "."
		}
		words = append(words, w)
	}
	return words
}

func (lc *LexiconClassifier) lexiconScore(words []string) float64 {
	score := 0.0
	wordCount := 0
	modifier := 1.0
	scope := 0

	for _, token := range words {
		word := strings.TrimSuffix(token, ".")
		endOfSentence := token != word

		if negValue, isNegator := lc.negators[word]; isNegator {
			modifier = negValue
			scope = 3
		} else if intValue, isIntensifier := lc.intensifiers[word]; isIntensifier {
			modifier *= intValue
			if scope == 0 {
				scope = 2
			}
		} else {
			if posValue, isPositive := lc.positiveWords[word]; isPositive {
				score += posValue * modifier
				wordCount++
			} else if negValue, isNegative := lc.negativeWords[word]; isNegative {
				score += negValue * modifier
				wordCount++
			}
			if scope > 0 {
				scope--
			}
		}

		if scope == 0 || endOfSentence {
			modifier = 1.0
			scope = 0
		}
	}

	if wordCount > 0 {
		return score / float64(wordCount)
	}
	return 0.0
}

func (lc *LexiconClassifier) patternScore(text string) float64 {
	score := 0.0
	for emotion, pattern := range lc.emotionPatterns {
		if !pattern.MatchString(text) {
			continue
		}
		switch emotion {
		case "joy", "love":
			score += 0.8
		case "anger", "sadness", "fear":
			score -= 0.8
		case "surprise":
			score += 0.3
		}
	}
	return math.Max(-1, math.Min(1, score))
}

func (lc *LexiconClassifier) punctuationScore(text string) float64 {
	score := 0.0
	for punct, value := range lc.punctuation {
		score += float64(strings.Count(text, punct)) * value
	}
	return math.Max(-1, math.Min(1, score))
}

func (lc *LexiconClassifier) initialize() {
	lc.tokenTrim = ".,;:!?\"()[]{}"

	lc.positiveWords = map[string]float64{
		"good": 0.7, "great": 0.8, "excellent": 0.9, "amazing": 0.9, "wonderful": 0.8,
		"fantastic": 0.9, "awesome": 0.8, "brilliant": 0.8, "perfect": 0.9, "outstanding": 0.9,
		"love": 0.8, "like": 0.6, "enjoy": 0.7, "happy": 0.8, "pleased": 0.7,
		"satisfied": 0.7, "delighted": 0.8, "thrilled": 0.9, "excited": 0.8, "positive": 0.7,
		"fine": 0.5, "well": 0.5, "calm": 0.7, "relaxed": 0.8, "rested": 0.7,
		"better": 0.6, "energetic": 0.7, "glad": 0.7, "grateful": 0.8, "peaceful": 0.8,
		"confident": 0.7, "okay": 0.4, "ok": 0.4, "success": 0.8, "nice": 0.6,
	}

	lc.negativeWords = map[string]float64{
		"bad": -0.7, "terrible": -0.8, "awful": -0.9, "horrible": -0.9, "disgusting": -0.8,
		"hate": -0.8, "dislike": -0.6, "angry": -0.8, "mad": -0.7, "furious": -0.9,
		"sad": -0.7, "depressed": -0.8, "disappointed": -0.7, "upset": -0.7, "frustrated": -0.7,
		"stressed": -0.8, "anxious": -0.8, "worried": -0.7, "tired": -0.6, "exhausted": -0.8,
		"overwhelmed": -0.8, "nervous": -0.7, "afraid": -0.7, "scared": -0.7, "sick": -0.6,
		"pain": -0.7, "hurt": -0.7, "lonely": -0.7, "failure": -0.8, "problem": -0.6,
		"wrong": -0.6, "worse": -0.7, "sleepless": -0.7, "panic": -0.9, "pressure": -0.5,
	}

	lc.intensifiers = map[string]float64{
		"very": 1.3, "extremely": 1.5, "really": 1.2, "quite": 1.1, "rather": 1.1,
		"absolutely": 1.4, "completely": 1.4, "totally": 1.4, "incredibly": 1.5,
		"so": 1.2, "too": 1.2, "particularly": 1.2,
	}

	lc.negators = map[string]float64{
		"not": -1.0, "no": -1.0, "never": -1.0, "nothing": -1.0, "nobody": -1.0,
		"neither": -1.0, "nor": -1.0, "without": -0.8, "barely": -0.7, "hardly": -0.7,
	}

	lc.contractions = map[string]string{
		"don't": "do not", "won't": "will not", "can't": "can not", "cannot": "can not",
		"shouldn't": "should not", "wouldn't": "would not", "couldn't": "could not",
		"isn't": "is not", "aren't": "are not", "wasn't": "was not", "weren't": "were not",
		"haven't": "have not", "hasn't": "has not", "hadn't": "had not", "didn't": "did not",
		"doesn't": "does not", "i'm": "i am", "it's": "it is",
	}

	lc.emotionPatterns = map[string]*regexp.Regexp{
		"joy":      regexp.MustCompile(`(?i)\b(haha|lol|yay)\b`),
		"love":     regexp.MustCompile(`(?i)\b(adore|cherish)\b`),
		"anger":    regexp.MustCompile(`(?i)\b(damn|rage|grr)\b`),
		"sadness":  regexp.MustCompile(`(?i)\b(cry|crying|tears)\b`),
		"fear":     regexp.MustCompile(`(?i)\b(terrified|dread)\b`),
		"surprise": regexp.MustCompile(`(?i)\b(wow|unbelievable)\b`),
	}

	lc.punctuation = map[string]float64{
		"!":   0.1,
		"...": -0.1,
	}

	lc.logger.Debug("Sentiment lexicons initialized")
}
