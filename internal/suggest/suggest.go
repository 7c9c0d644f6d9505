// Package suggest mines keyword candidates from texts that fell through
// to Manual Review. It counts unigram and bigram frequencies across the
// normalized texts and reports the most common n-grams so a reviewer can
// promote them into the taxonomy.
package suggest

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strings"
	"unicode"

	"github.com/rotisserie/eris"

	"github.com/sells-group/feedback-cli/internal/model"
)

// Spanish function words that carry no category signal.
var stopwords = map[string]struct{}{
	"el": {}, "la": {}, "de": {}, "que": {}, "y": {}, "en": {}, "un": {},
	"ser": {}, "se": {}, "no": {}, "haber": {}, "por": {}, "con": {},
	"su": {}, "para": {}, "como": {}, "estar": {}, "tener": {}, "le": {},
	"lo": {}, "todo": {}, "pero": {}, "mas": {}, "hacer": {}, "poder": {},
	"decir": {}, "este": {}, "ir": {}, "otro": {}, "ese": {}, "si": {},
	"me": {}, "ya": {}, "ver": {}, "porque": {}, "dar": {}, "cuando": {},
	"muy": {}, "sin": {}, "vez": {}, "mucho": {}, "saber": {}, "sobre": {},
	"mi": {}, "alguno": {}, "mismo": {}, "yo": {}, "tambien": {},
	"hasta": {}, "ano": {}, "dos": {}, "querer": {}, "entre": {},
	"asi": {}, "primero": {}, "desde": {}, "grande": {}, "eso": {},
	"ni": {}, "nos": {}, "llegar": {}, "pasar": {}, "tiempo": {},
	"ella": {}, "del": {}, "al": {}, "los": {}, "las": {}, "una": {},
	"unos": {}, "unas": {}, "es": {}, "son": {}, "fue": {}, "era": {},
	"han": {}, "hay": {}, "he": {}, "has": {}, "ha": {}, "estoy": {},
	"esta": {}, "estan": {}, "sea": {}, "solo": {}, "bien": {},
	"cual": {}, "donde": {}, "quien": {}, "cada": {},
}

const (
	minTokenLen = 3
	maxTokenLen = 25
	maxExamples = 3
)

// Suggestion is one candidate keyword with its document frequency.
type Suggestion struct {
	NGram     string
	Frequency int
	Examples  []string
}

// Miner extracts candidate keywords from fallback texts.
type Miner struct {
	topK int
}

// New creates a Miner returning at most topK suggestions.
func New(topK int) *Miner {
	if topK <= 0 {
		topK = 50
	}
	return &Miner{topK: topK}
}

// Mine counts unigrams and bigrams across the given texts. An n-gram is
// counted once per text regardless of repetition, so frequency reads as
// "number of comments mentioning this". Results are sorted by frequency
// descending, ties broken lexicographically.
func (m *Miner) Mine(texts []model.ReviewText) []Suggestion {
	freq := make(map[string]int)
	examples := make(map[string][]string)

	for _, t := range texts {
		tokens := tokenize(t.NormalizedText)
		if len(tokens) == 0 {
			continue
		}

		seen := make(map[string]struct{})
		for i, tok := range tokens {
			seen[tok] = struct{}{}
			if i+1 < len(tokens) {
				seen[tok+" "+tokens[i+1]] = struct{}{}
			}
		}

		for ngram := range seen {
			freq[ngram]++
			if len(examples[ngram]) < maxExamples {
				examples[ngram] = append(examples[ngram], t.NormalizedText)
			}
		}
	}

	suggestions := make([]Suggestion, 0, len(freq))
	for ngram, n := range freq {
		suggestions = append(suggestions, Suggestion{
			NGram:     ngram,
			Frequency: n,
			Examples:  examples[ngram],
		})
	}
	sort.Slice(suggestions, func(i, j int) bool {
		if suggestions[i].Frequency != suggestions[j].Frequency {
			return suggestions[i].Frequency > suggestions[j].Frequency
		}
		return suggestions[i].NGram < suggestions[j].NGram
	})

	if len(suggestions) > m.topK {
		suggestions = suggestions[:m.topK]
	}
	return suggestions
}

// tokenize splits normalized text into letter-only tokens of useful
// length, dropping stopwords. Bigrams built from the surviving tokens may
// therefore bridge a dropped word; in practice that still surfaces the
// content pair a reviewer cares about.
func tokenize(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return !unicode.IsLetter(r)
	})

	tokens := fields[:0]
	for _, f := range fields {
		n := len([]rune(f))
		if n < minTokenLen || n > maxTokenLen {
			continue
		}
		if _, stop := stopwords[f]; stop {
			continue
		}
		tokens = append(tokens, f)
	}
	return tokens
}

// WriteReport writes suggestions as a plain text review artifact.
func WriteReport(path string, suggestions []Suggestion) error {
	f, err := os.Create(path)
	if err != nil {
		return eris.Wrapf(err, "suggest: create report %s", path)
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	fmt.Fprintf(w, "keyword suggestions (%d n-grams)\n\n", len(suggestions))
	for _, s := range suggestions {
		fmt.Fprintf(w, "%6d  %s\n", s.Frequency, s.NGram)
		for _, ex := range s.Examples {
			fmt.Fprintf(w, "        e.g. %s\n", truncate(ex, 100))
		}
	}
	if err := w.Flush(); err != nil {
		return eris.Wrapf(err, "suggest: write report %s", path)
	}
	return nil
}

func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "..."
}
