package chat

import (
	_ "embed"
	"fmt"
	"os"
	"strings"
	"sync"
	"unicode"

	"gopkg.in/yaml.v3"
)

//go:embed faq.yaml
var defaultFAQ []byte

// minMatchScore is the keyword overlap a FAQ entry must beat to be used.
const minMatchScore = 0.3

type FAQEntry struct {
	Question   string  `yaml:"question" json:"question"`
	Answer     string  `yaml:"answer" json:"answer"`
	Confidence float64 `yaml:"confidence" json:"confidence"`
}

// FAQ is a keyword-matched list of canned answers, safe for concurrent use.
type FAQ struct {
	mu      sync.RWMutex
	entries []FAQEntry
}

// NewFAQ returns the built-in FAQ, extended with the entries in extraFile
// when it is set.
func NewFAQ(extraFile string) (*FAQ, error) {
	f := &FAQ{}
	if err := f.load(defaultFAQ); err != nil {
		return nil, fmt.Errorf("built-in faq: %w", err)
	}
	if extraFile != "" {
		raw, err := os.ReadFile(extraFile)
		if err != nil {
			return nil, fmt.Errorf("read faq file: %w", err)
		}
		if err := f.load(raw); err != nil {
			return nil, fmt.Errorf("parse %s: %w", extraFile, err)
		}
	}
	return f, nil
}

func (f *FAQ) load(raw []byte) error {
	var entries []FAQEntry
	if err := yaml.Unmarshal(raw, &entries); err != nil {
		return err
	}
	for _, e := range entries {
		if e.Confidence == 0 {
			e.Confidence = 1
		}
		f.Add(e.Question, e.Answer, e.Confidence)
	}
	return nil
}

// Add inserts an entry, replacing one with the same normalised question.
func (f *FAQ) Add(question, answer string, confidence float64) {
	e := FAQEntry{Question: normalize(question), Answer: answer, Confidence: confidence}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.entries {
		if f.entries[i].Question == e.Question {
			f.entries[i] = e
			return
		}
	}
	f.entries = append(f.entries, e)
}

func (f *FAQ) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.entries)
}

// Match returns the entry whose question words overlap most with message,
// and the overlap score. ok is false when no entry scores above 0.3.
func (f *FAQ) Match(message string) (entry FAQEntry, score float64, ok bool) {
	words := make(map[string]struct{})
	for _, w := range tokens(message) {
		words[w] = struct{}{}
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, e := range f.entries {
		keys := uniq(tokens(e.Question))
		if len(keys) == 0 {
			continue
		}
		overlap := 0
		for _, k := range keys {
			if _, hit := words[k]; hit {
				overlap++
			}
		}
		s := float64(overlap) / float64(len(keys))
		if s > score && s > minMatchScore {
			entry, score, ok = e, s, true
		}
	}
	return entry, score, ok
}

// normalize lower-cases and collapses whitespace.
func normalize(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func tokens(s string) []string {
	return strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func uniq(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := in[:0:0]
	for _, s := range in {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
