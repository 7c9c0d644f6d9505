package classify

import (
	"math"
	"sort"

	"github.com/sells-group/feedback-cli/internal/matcher"
	"github.com/sells-group/feedback-cli/internal/model"
)

// tieEpsilon is the score distance under which two categories are
// considered tied and the documented tie-break order applies.
const tieEpsilon = 1e-6

// Verdict is the scoring outcome for one text.
type Verdict struct {
	Category   string
	Confidence float64
	RawScore   float64 // length-normalized weight of the winner
	Evidence   []model.MatchEvidence
}

type categoryScore struct {
	name       string
	ordinal    int
	weight     int // summed pattern rune lengths
	longestHit int // longest single matched pattern, first tie-break
	raw        float64
}

// Score turns raw automaton hits into a winning category and confidence.
//
// Per category the weight is the sum of matched pattern rune lengths, so a
// long phrase outweighs a single word. Categories are ranked by raw score:
// weight divided by text rune length, clipped to [0,1], correcting for
// longer texts mechanically accumulating more hits. Ties within tieEpsilon
// go to the category with the longer single matched pattern, then to the
// lower declaration ordinal; taxonomy authors rely on that order.
//
// Confidence is the winner's share of the total matched weight across all
// categories: 1.0 for an unambiguous hit, lower when evidence is split.
// A confidence below floor, or no matches at all, resolves to Manual
// Review carrying the computed confidence. That is the designed fallback
// for human triage, not a failure.
func Score(matches []matcher.Match, textLen int, floor float64) Verdict {
	if len(matches) == 0 || textLen <= 0 {
		return Verdict{Category: model.CategoryManualReview, Confidence: 0}
	}

	byCat := make(map[string]*categoryScore)
	totalWeight := 0
	for _, m := range matches {
		// A category's own minimum-length threshold disqualifies it for
		// texts shorter than the threshold.
		if m.MinLength > 0 && textLen < m.MinLength {
			continue
		}
		cs, ok := byCat[m.Category]
		if !ok {
			cs = &categoryScore{name: m.Category, ordinal: m.Ordinal}
			byCat[m.Category] = cs
		}
		cs.weight += m.PatternLen
		totalWeight += m.PatternLen
		if m.PatternLen > cs.longestHit {
			cs.longestHit = m.PatternLen
		}
	}
	if len(byCat) == 0 {
		return Verdict{Category: model.CategoryManualReview, Confidence: 0}
	}

	scores := make([]*categoryScore, 0, len(byCat))
	for _, cs := range byCat {
		cs.raw = math.Min(float64(cs.weight)/float64(textLen), 1.0)
		scores = append(scores, cs)
	}

	sort.Slice(scores, func(i, j int) bool {
		a, b := scores[i], scores[j]
		if math.Abs(a.raw-b.raw) > tieEpsilon {
			return a.raw > b.raw
		}
		if a.longestHit != b.longestHit {
			return a.longestHit > b.longestHit
		}
		return a.ordinal < b.ordinal
	})

	winner := scores[0]
	confidence := float64(winner.weight) / float64(totalWeight)

	if confidence < floor {
		return Verdict{Category: model.CategoryManualReview, Confidence: confidence, RawScore: winner.raw}
	}

	return Verdict{
		Category:   winner.name,
		Confidence: confidence,
		RawScore:   winner.raw,
		Evidence:   evidenceFor(matches, winner.name),
	}
}

// evidenceFor collects the (pattern, category) pairs that contributed to
// the winning category, in match order, for audit.
func evidenceFor(matches []matcher.Match, category string) []model.MatchEvidence {
	var ev []model.MatchEvidence
	for _, m := range matches {
		if m.Category == category {
			ev = append(ev, model.MatchEvidence{Pattern: m.Pattern, Category: m.Category})
		}
	}
	return ev
}
