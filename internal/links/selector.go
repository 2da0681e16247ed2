package links

import (
	"context"
	"math/rand/v2"
	"strings"
	"sync"
	"unicode"

	"github.com/neboloop/wikirace/internal/ai"
	"github.com/neboloop/wikirace/internal/logging"
	"github.com/neboloop/wikirace/internal/metrics"
)

// MaxOffered bounds how many candidates are shown to the reasoner.
const MaxOffered = 75

// fuzzyThreshold is the minimum token-overlap score accepted in tier 3.
const fuzzyThreshold = 0.5

// Request is what the reasoner sees for a single hop.
type Request struct {
	Candidates   []Candidate
	Target       string // display form, underscores replaced with spaces
	CurrentTitle string
}

// Reasoner recommends one link for the next hop as free text.
type Reasoner interface {
	Recommend(ctx context.Context, req Request) (string, error)
}

// MatchTier records how a selection was resolved.
type MatchTier string

const (
	TierExact     MatchTier = "exact"
	TierContains  MatchTier = "contains"
	TierTokens    MatchTier = "tokens"
	TierFirst     MatchTier = "first"
	TierRandom    MatchTier = "random"
	TierNoOptions MatchTier = "none"
)

// Selector chooses the next link. It is safe for concurrent use.
type Selector struct {
	reasoner Reasoner

	mu  sync.Mutex
	rng *rand.Rand
}

// NewSelector creates a selector. A nil reasoner always takes the random fallback.
func NewSelector(reasoner Reasoner, rng *rand.Rand) *Selector {
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Selector{reasoner: reasoner, rng: rng}
}

// SelectNextLink returns the candidate to follow next, or nil when there
// are no candidates. The returned pointer always refers to an element of
// candidates; the engine never fabricates a link.
func (s *Selector) SelectNextLink(ctx context.Context, candidates []Candidate, targetTopic, currentPageTitle string) *Candidate {
	c, _ := s.Select(ctx, candidates, targetTopic, currentPageTitle)
	return c
}

// Select is SelectNextLink plus the tier that resolved the choice.
func (s *Selector) Select(ctx context.Context, candidates []Candidate, targetTopic, currentPageTitle string) (*Candidate, MatchTier) {
	if len(candidates) == 0 {
		metrics.ObserveSelection(string(TierNoOptions))
		return nil, TierNoOptions
	}

	offered := candidates
	if len(offered) > MaxOffered {
		offered = offered[:MaxOffered]
	}

	if s.reasoner == nil {
		return s.fallback(candidates)
	}

	answer, err := s.reasoner.Recommend(ctx, Request{
		Candidates:   offered,
		Target:       DisplayTopic(targetTopic),
		CurrentTitle: currentPageTitle,
	})
	if err != nil {
		logging.Warnf("[links] reasoner failed, using random fallback: %v", err)
		metrics.ReasonerErrors.WithLabelValues(ai.ClassifyErrorReason(err)).Inc()
		return s.fallback(candidates)
	}

	i, tier := Match(offered, answer)
	metrics.ObserveSelection(string(tier))
	return &candidates[i], tier
}

// Match maps a free-text answer onto an index of candidates. It never
// fails: when nothing matches, index 0 is returned with TierFirst.
func Match(candidates []Candidate, answer string) (int, MatchTier) {
	answer = strings.TrimSpace(answer)
	if answer == "" || len(candidates) == 0 {
		return 0, TierFirst
	}

	for i, c := range candidates {
		if c.Text == answer {
			return i, TierExact
		}
	}

	for i, c := range candidates {
		if strings.EqualFold(c.Text, answer) {
			return i, TierContains
		}
	}
	lowerAnswer := strings.ToLower(answer)
	for i, c := range candidates {
		text := strings.ToLower(c.Text)
		if text == "" {
			continue
		}
		if strings.Contains(text, lowerAnswer) || strings.Contains(lowerAnswer, text) {
			return i, TierContains
		}
	}

	tokens := strings.Fields(lowerAnswer)
	best, bestScore := -1, 0.0
	for i, c := range candidates {
		if score := tokenScore(tokens, strings.ToLower(c.Text)); score > bestScore {
			best, bestScore = i, score
		}
	}
	if best >= 0 && bestScore > fuzzyThreshold {
		return best, TierTokens
	}

	return 0, TierFirst
}

func tokenScore(tokens []string, text string) float64 {
	if len(tokens) == 0 {
		return 0
	}
	found := 0
	for _, t := range tokens {
		if strings.Contains(text, t) {
			found++
		}
	}
	return float64(found) / float64(len(tokens))
}

func (s *Selector) fallback(candidates []Candidate) (*Candidate, MatchTier) {
	preferred := make([]int, 0, len(candidates))
	for i, c := range candidates {
		if LooksLikeTitle(c.Text) {
			preferred = append(preferred, i)
		}
	}

	s.mu.Lock()
	var i int
	if len(preferred) > 0 {
		i = preferred[s.rng.IntN(len(preferred))]
	} else {
		i = s.rng.IntN(len(candidates))
	}
	s.mu.Unlock()

	metrics.ObserveSelection(string(TierRandom))
	return &candidates[i], TierRandom
}

// LooksLikeTitle is the fallback heuristic for "probably a proper-noun article".
func LooksLikeTitle(text string) bool {
	if len([]rune(text)) > 10 {
		return true
	}
	for _, r := range text {
		return unicode.IsUpper(r)
	}
	return false
}
