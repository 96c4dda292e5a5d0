// Package nlp scores the writing quality of bid proposals with lightweight
// lexical heuristics.
package nlp

import (
	"math"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/cases"
	"golang.org/x/text/unicode/norm"
)

var technicalTerms = []string{
	"specification", "requirements", "implementation", "methodology",
	"deliverable", "milestone", "compliance", "quality assurance",
	"project management", "risk assessment", "stakeholder", "framework",
	"infrastructure", "procurement", "contract", "budget", "timeline",
	"resource", "capability", "expertise", "experience", "qualification",
}

var completenessIndicators = []string{
	"objective", "goal", "approach", "method", "timeline", "budget",
	"team", "experience", "qualification", "deliverable", "outcome",
	"benefit", "advantage", "solution", "strategy", "plan",
}

var professionalPhrases = []string{
	"we propose", "our team", "our experience", "we will", "we have",
	"pleased to", "look forward", "thank you", "sincerely", "respectfully",
}

var casualWords = []string{
	"definitely", "awesome", "super", "totally", "basically",
	"stuff", "things", "whatever", "kinda", "sorta",
}

// Quality score weights.
const (
	weightReadability  = 0.2
	weightCompleteness = 0.3
	weightProfessional = 0.2
	weightTechnical    = 0.1
	weightLength       = 0.1
)

// Result holds the metrics of one proposal. QualityScore is in [0, 1].
type Result struct {
	QualityScore         float64 `json:"quality_score"`
	WordCount            int     `json:"word_count"`
	SentenceCount        int     `json:"sentence_count"`
	ReadabilityScore     float64 `json:"readability_score"`
	TechnicalTermsCount  int     `json:"technical_terms_count"`
	CompletenessScore    float64 `json:"completeness_score"`
	ProfessionalScore    float64 `json:"professional_score"`
	AvgTokenLength       float64 `json:"avg_token_length"`
	LinguisticComplexity float64 `json:"linguistic_complexity"`
	Error                string  `json:"error,omitempty"`
}

var fold = cases.Fold()

// Analyze scores text. Blank input yields a zero score and an error message.
func Analyze(text string) Result {
	text = norm.NFKC.String(strings.TrimSpace(text))
	if text == "" {
		return Result{Error: "Invalid or empty text"}
	}
	lower := fold.String(text)
	words := strings.Fields(text)
	sentences := countSentences(text)

	r := Result{
		WordCount:           len(words),
		SentenceCount:       sentences,
		ReadabilityScore:    readability(words, sentences),
		TechnicalTermsCount: countContained(lower, technicalTerms),
		CompletenessScore:   math.Min(1, float64(countContained(lower, completenessIndicators))/float64(len(completenessIndicators))),
		ProfessionalScore:   professionalism(lower),
	}
	r.AvgTokenLength = avgTokenLength(text)
	r.LinguisticComplexity = math.Min(1, r.AvgTokenLength/10)
	r.QualityScore = quality(r)
	return r
}

// countSentences splits on runs of . ! ? and counts non-blank pieces.
func countSentences(text string) int {
	n := 0
	for _, part := range strings.FieldsFunc(text, func(r rune) bool {
		return r == '.' || r == '!' || r == '?'
	}) {
		if strings.TrimSpace(part) != "" {
			n++
		}
	}
	return n
}

// readability is a Flesch reading ease approximation scaled to [0, 1].
func readability(words []string, sentences int) float64 {
	if len(words) == 0 || sentences == 0 {
		return 0
	}
	syllables := 0
	for _, w := range words {
		syllables += countSyllables(w)
	}
	avgSentence := float64(len(words)) / float64(sentences)
	avgSyllables := float64(syllables) / float64(len(words))
	score := 206.835 - 1.015*avgSentence - 84.6*avgSyllables
	return clamp(score / 100)
}

// countSyllables counts vowel groups, dropping a trailing silent e.
func countSyllables(word string) int {
	word = strings.ToLower(strings.TrimSpace(word))
	if word == "" {
		return 0
	}
	count := 0
	prevVowel := false
	for _, r := range word {
		vowel := strings.ContainsRune("aeiouy", r)
		if vowel && !prevVowel {
			count++
		}
		prevVowel = vowel
	}
	if strings.HasSuffix(word, "e") && count > 1 {
		count--
	}
	return max(count, 1)
}

func countContained(text string, terms []string) int {
	n := 0
	for _, t := range terms {
		if strings.Contains(text, t) {
			n++
		}
	}
	return n
}

// professionalism starts at 0.5 and moves 0.1 per formal or casual phrase.
func professionalism(lower string) float64 {
	formal := countContained(lower, professionalPhrases)
	casual := countContained(lower, casualWords)
	return clamp(0.5 + 0.1*float64(formal) - 0.1*float64(casual))
}

func avgTokenLength(text string) float64 {
	tokens := strings.FieldsFunc(text, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsPunct(r)
	})
	if len(tokens) == 0 {
		return 0
	}
	total := 0
	for _, t := range tokens {
		total += utf8.RuneCountInString(t)
	}
	return float64(total) / float64(len(tokens))
}

// lengthScore favours proposals of 200 to 1000 words.
func lengthScore(words int) float64 {
	switch {
	case words < 50:
		return 0.2
	case words < 200:
		return 0.6
	case words < 1000:
		return 1.0
	case words < 2000:
		return 0.8
	default:
		return 0.5
	}
}

func quality(r Result) float64 {
	score := r.ReadabilityScore*weightReadability +
		r.CompletenessScore*weightCompleteness +
		r.ProfessionalScore*weightProfessional +
		math.Min(1, float64(r.TechnicalTermsCount)/10)*weightTechnical +
		lengthScore(r.WordCount)*weightLength
	total := weightReadability + weightCompleteness + weightProfessional + weightTechnical + weightLength
	return clamp(score / total)
}

func clamp(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
