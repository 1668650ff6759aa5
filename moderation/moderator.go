// Package moderation masks disallowed words in conversation text before it
// reaches the durable log. Matching is case-insensitive, skips punctuation
// and spacing, and understands common character substitutions.
package moderation

import (
	"bufio"
	"bytes"
	_ "embed"
	"strings"
	"unicode"

	goahocorasick "github.com/anknown/ahocorasick"
)

//go:embed words.txt
var defaultWordList []byte

type Moderator struct {
	machine *goahocorasick.Machine
	mask    rune
}

// New builds the Aho-Corasick automaton from the embedded word list.
func New(mask rune) (*Moderator, error) {
	return NewFromWords(readWordList(defaultWordList), mask)
}

func NewFromWords(words []string, mask rune) (*Moderator, error) {
	patterns := make([][]rune, 0, len(words))
	for _, w := range words {
		if norm, _ := normalize([]rune(w)); len(norm) > 0 {
			patterns = append(patterns, norm)
		}
	}
	machine := new(goahocorasick.Machine)
	if err := machine.Build(patterns); err != nil {
		return nil, err
	}
	return &Moderator{machine: machine, mask: mask}, nil
}

// Mask replaces every character of a matched word with the mask rune,
// preserving text length and the position of everything else.
func (m *Moderator) Mask(text string) string {
	runes := []rune(text)
	norm, origIdx := normalize(runes)
	if len(norm) == 0 {
		return text
	}

	hits := m.machine.MultiPatternSearch(norm, false)
	if len(hits) == 0 {
		return text
	}

	for _, hit := range hits {
		from := hit.Pos
		to := from + len(hit.Word)
		if from < 0 || to > len(origIdx) {
			continue
		}
		for i := origIdx[from]; i <= origIdx[to-1]; i++ {
			runes[i] = m.mask
		}
	}
	return string(runes)
}

// normalize lowercases, folds substitution characters, and drops noise
// runes, keeping a mapping back to original positions.
func normalize(in []rune) ([]rune, []int) {
	norm := make([]rune, 0, len(in))
	origIdx := make([]int, 0, len(in))
	for i, r := range in {
		r = foldSubstitution(r)
		if unicode.IsPunct(r) || unicode.IsSpace(r) || unicode.IsSymbol(r) {
			continue
		}
		norm = append(norm, unicode.ToLower(r))
		origIdx = append(origIdx, i)
	}
	return norm, origIdx
}

func foldSubstitution(r rune) rune {
	switch r {
	case '4', '@':
		return 'a'
	case '3':
		return 'e'
	case '1', '!', '|':
		return 'i'
	case '0':
		return 'o'
	case '5', '$':
		return 's'
	default:
		return r
	}
}

func readWordList(raw []byte) []string {
	var words []string
	scanner := bufio.NewScanner(bytes.NewReader(raw))
	for scanner.Scan() {
		word := strings.TrimSpace(scanner.Text())
		if word == "" || strings.HasPrefix(word, "#") {
			continue
		}
		words = append(words, word)
	}
	return words
}
