// Package matcher compiles the taxonomy into an Aho-Corasick automaton so
// every keyword of every category is searched in one left-to-right scan of
// the text. The index is immutable after Build and safe to share across
// goroutines without locking.
package matcher

import (
	"unicode/utf8"

	"github.com/rotisserie/eris"

	"github.com/sells-group/feedback-cli/internal/taxonomy"
)

// Match is one keyword hit. Overlapping hits are all reported: a compound
// phrase and its sub-words each count, accumulating weight when they share
// a category and reflecting ambiguity honestly when they do not.
type Match struct {
	Category   string
	Ordinal    int // category declaration position, used for tie-breaks
	MinLength  int // category minimum text length, 0 = none
	Pattern    string
	PatternLen int // rune length, the matching weight
	Start      int // rune offset of the first matched rune
}

type pattern struct {
	text      string
	runeLen   int
	category  string
	ordinal   int
	minLength int
}

type node struct {
	next    map[rune]int32
	fail    int32
	outputs []int32
}

// Index is the compiled multi-pattern search structure for one taxonomy
// version.
type Index struct {
	version  string
	nodes    []node
	patterns []pattern
}

// Build compiles all category keywords into an automaton. Keywords are
// passed through normalize so patterns and texts live in the same space;
// keywords that normalize to the empty string are rejected.
func Build(tax *taxonomy.Taxonomy, normalize func(string) string) (*Index, error) {
	idx := &Index{
		version: tax.Version,
		nodes:   []node{{next: make(map[rune]int32)}},
	}

	for _, cat := range tax.Categories {
		seen := make(map[string]struct{}, len(cat.Keywords))
		for _, kw := range cat.Keywords {
			norm := normalize(kw)
			if norm == "" {
				return nil, eris.Errorf("matcher: keyword %q of category %q is empty after normalization", kw, cat.Name)
			}
			// The same keyword declared twice in one category adds no
			// evidence; skip the duplicate.
			if _, dup := seen[norm]; dup {
				continue
			}
			seen[norm] = struct{}{}

			idx.insert(norm, pattern{
				text:      norm,
				runeLen:   utf8.RuneCountInString(norm),
				category:  cat.Name,
				ordinal:   cat.Ordinal,
				minLength: cat.MinLength,
			})
		}
	}

	idx.buildFailLinks()
	return idx, nil
}

// Version returns the taxonomy content hash the index was built from.
func (idx *Index) Version() string {
	return idx.version
}

// PatternCount returns the number of compiled patterns.
func (idx *Index) PatternCount() int {
	return len(idx.patterns)
}

func (idx *Index) insert(word string, p pattern) {
	cur := int32(0)
	for _, r := range word {
		next, ok := idx.nodes[cur].next[r]
		if !ok {
			idx.nodes = append(idx.nodes, node{next: make(map[rune]int32)})
			next = int32(len(idx.nodes) - 1)
			idx.nodes[cur].next[r] = next
		}
		cur = next
	}
	idx.patterns = append(idx.patterns, p)
	idx.nodes[cur].outputs = append(idx.nodes[cur].outputs, int32(len(idx.patterns)-1))
}

// buildFailLinks computes failure links breadth-first and folds each
// node's suffix outputs into its own output list, so the scan never has
// to walk suffix chains.
func (idx *Index) buildFailLinks() {
	queue := make([]int32, 0, len(idx.nodes))
	for _, child := range idx.nodes[0].next {
		idx.nodes[child].fail = 0
		queue = append(queue, child)
	}

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		for r, child := range idx.nodes[cur].next {
			queue = append(queue, child)

			fail := idx.nodes[cur].fail
			for fail != 0 {
				if next, ok := idx.nodes[fail].next[r]; ok {
					fail = next
					goto linked
				}
				fail = idx.nodes[fail].fail
			}
			if next, ok := idx.nodes[0].next[r]; ok && next != child {
				fail = next
			}
		linked:
			idx.nodes[child].fail = fail
			idx.nodes[child].outputs = append(idx.nodes[child].outputs, idx.nodes[fail].outputs...)
		}
	}
}

// FindMatches scans the normalized text once and returns every keyword
// hit, in order of match end position. Deterministic for a fixed index
// and text.
func (idx *Index) FindMatches(normalized string) []Match {
	var matches []Match

	state := int32(0)
	pos := 0 // rune offset
	for _, r := range normalized {
		for {
			if next, ok := idx.nodes[state].next[r]; ok {
				state = next
				break
			}
			if state == 0 {
				break
			}
			state = idx.nodes[state].fail
		}

		for _, pid := range idx.nodes[state].outputs {
			p := idx.patterns[pid]
			matches = append(matches, Match{
				Category:   p.category,
				Ordinal:    p.ordinal,
				MinLength:  p.minLength,
				Pattern:    p.text,
				PatternLen: p.runeLen,
				Start:      pos - p.runeLen + 1,
			})
		}
		pos++
	}

	return matches
}
