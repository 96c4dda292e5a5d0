package nlp

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAnalyzeEmpty(t *testing.T) {
	for _, in := range []string{"", "   \n\t"} {
		r := Analyze(in)
		require.Zero(t, r.QualityScore)
		require.Zero(t, r.WordCount)
		require.Equal(t, "Invalid or empty text", r.Error)
	}
}

func TestCountSyllables(t *testing.T) {
	cases := map[string]int{
		"cat":            1,
		"make":           1,
		"table":          1,
		"proposal":       3,
		"infrastructure": 4,
		"rhythm":         1,
		"e":              1,
	}
	for word, want := range cases {
		require.Equal(t, want, countSyllables(word), word)
	}
}

func TestCountSentences(t *testing.T) {
	require.Equal(t, 1, countSentences("Hello."))
	require.Equal(t, 3, countSentences("One. Two! Three?"))
	require.Equal(t, 2, countSentences("Wait... what?!"))
	require.Equal(t, 1, countSentences("no terminator"))
	require.Equal(t, 0, countSentences("..."))
}

func TestProfessionalism(t *testing.T) {
	require.Equal(t, 0.5, professionalism("plain text"))
	require.InDelta(t, 0.7, professionalism("we propose a plan and our team is ready"), 1e-9)
	require.InDelta(t, 0.3, professionalism("basically awesome"), 1e-9)
	require.Equal(t, 0.0, professionalism("definitely awesome super totally basically stuff"))
}

func TestLengthScore(t *testing.T) {
	require.Equal(t, 0.2, lengthScore(10))
	require.Equal(t, 0.6, lengthScore(50))
	require.Equal(t, 1.0, lengthScore(200))
	require.Equal(t, 0.8, lengthScore(1000))
	require.Equal(t, 0.5, lengthScore(2000))
}

func TestAnalyzeRanksProposals(t *testing.T) {
	weak := Analyze("Short proposal")
	require.Equal(t, 2, weak.WordCount)
	require.Equal(t, 1, weak.SentenceCount)
	require.Empty(t, weak.Error)

	paragraph := "We propose a clear approach to the project. Our team has deep experience in " +
		"infrastructure procurement and compliance. The timeline, budget and each deliverable " +
		"are defined with a milestone plan and risk assessment. We will report to every stakeholder " +
		"and we look forward to a successful outcome. Thank you. "
	strong := Analyze(strings.Repeat(paragraph, 5))

	require.Greater(t, strong.QualityScore, weak.QualityScore)
	require.GreaterOrEqual(t, strong.TechnicalTermsCount, 8)
	require.GreaterOrEqual(t, strong.CompletenessScore, 0.5)
	require.Equal(t, 1.0, strong.ProfessionalScore)
	require.LessOrEqual(t, strong.QualityScore, 1.0)
	require.Greater(t, strong.LinguisticComplexity, 0.0)
}
