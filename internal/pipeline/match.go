package pipeline

import (
	"math"
	"sort"
	"strings"

	"github.com/Maggerino21/ai-component-extractor/internal"
	"github.com/Maggerino21/ai-component-extractor/internal/catalog"
	"github.com/Maggerino21/ai-component-extractor/internal/config"
	"github.com/Maggerino21/ai-component-extractor/internal/util"
)

// Matcher annotates finalized components with the closest catalog
// product. A wrong match is worse than no match, so any comparable spec
// outside tolerance disqualifies a candidate outright.
type Matcher struct {
	cfg   config.Config
	index *catalog.Index
}

const (
	// Description similarity a candidate needs on top of exact specs to
	// reach the strong band.
	strongDescScore = 0.75
	// Spec values this close count as equal; covers rounding between
	// catalog and document ("27.5" vs "27,50").
	exactSpecEpsilon = 0.005
)

func NewMatcher(cfg config.Config, products []internal.ProductRecord) *Matcher {
	return &Matcher{cfg: cfg, index: catalog.BuildIndex(products)}
}

func (m *Matcher) Match(rec internal.ComponentRecord) internal.MatchResult {
	if hit, ok := m.matchByPartNumber(rec); ok {
		return hit
	}

	query := util.NormalizeText(rec.RawDescription)
	queryTokens := util.Tokenize(query)

	ranked := m.rankCandidates(rec, query, queryTokens)
	if len(ranked) == 0 {
		return internal.MatchResult{Confidence: 0, Reason: internal.ReasonNone, Candidates: []internal.MatchCandidate{}}
	}

	top := ranked[0]
	candidates := toCandidateList(ranked, m.index)

	switch {
	case top.strong:
		product := m.index.ProductsByID[top.id]
		return internal.MatchResult{
			ProductID:   util.IntPtr(product.ID),
			ProductName: util.StringPtr(product.Name),
			Confidence:  top.score,
			Reason:      internal.ReasonTypeSpecDesc,
			Candidates:  candidates,
		}
	case top.qualified:
		product := m.index.ProductsByID[top.id]
		return internal.MatchResult{
			ProductID:   util.IntPtr(product.ID),
			ProductName: util.StringPtr(product.Name),
			Confidence:  top.score,
			Reason:      internal.ReasonTypeSpec,
			Candidates:  candidates,
		}
	default:
		return internal.MatchResult{Confidence: top.score, Reason: internal.ReasonNone, Candidates: candidates}
	}
}

// matchByPartNumber checks the extracted part number, then codes embedded
// in the description, against the catalog part-number index.
func (m *Matcher) matchByPartNumber(rec internal.ComponentRecord) (internal.MatchResult, bool) {
	code := ""
	if rec.PartNumber != nil {
		code = util.NormalizeCode(*rec.PartNumber)
	}
	if code == "" {
		code = m.codeFromDescription(rec.RawDescription)
	}
	if code == "" {
		return internal.MatchResult{}, false
	}

	hits := m.index.ByPartNumber[code]
	if len(hits) == 1 {
		product := hits[0]
		return internal.MatchResult{
			ProductID:   util.IntPtr(product.ID),
			ProductName: util.StringPtr(product.Name),
			Confidence:  m.cfg.MatchPartNumberConfidence,
			Reason:      internal.ReasonPartNumber,
			Candidates:  []internal.MatchCandidate{{ProductID: product.ID, Name: product.Name, Score: m.cfg.MatchPartNumberConfidence}},
		}, true
	}
	if len(hits) > 1 {
		// Part number shared by several catalog entries: surface them for
		// review instead of guessing.
		return internal.MatchResult{
			Confidence: 0.80,
			Reason:     internal.ReasonPartNumber,
			Candidates: toSharedCandidates(hits, 0.80),
		}, true
	}
	return internal.MatchResult{}, false
}

func (m *Matcher) codeFromDescription(description string) string {
	for _, field := range strings.Fields(description) {
		if !util.LooksLikeCode(field) {
			continue
		}
		code := util.NormalizeCode(field)
		if code == "" {
			continue
		}
		if _, ok := m.index.ByPartNumber[code]; ok {
			return code
		}
	}
	return ""
}

type rankedCandidate struct {
	id        int
	score     float64
	strong    bool
	qualified bool
}

func (m *Matcher) rankCandidates(rec internal.ComponentRecord, query string, queryTokens []string) []rankedCandidate {
	ids := map[int]struct{}{}
	if rec.ComponentType != internal.ComponentUnknown {
		for _, id := range m.index.ByType[rec.ComponentType] {
			ids[id] = struct{}{}
		}
	}
	if len(ids) == 0 {
		for _, token := range queryTokens {
			for id := range m.index.TokenToProductIDs[token] {
				ids[id] = struct{}{}
			}
		}
	}
	if len(ids) == 0 {
		return nil
	}

	out := make([]rankedCandidate, 0, len(ids))
	for id := range ids {
		product := m.index.ProductsByID[id]
		out = append(out, m.scoreCandidate(rec, product, query, queryTokens))
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].strong != out[j].strong {
			return out[i].strong
		}
		if out[i].qualified != out[j].qualified {
			return out[i].qualified
		}
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].id < out[j].id
	})
	if len(out) > 5 {
		out = out[:5]
	}
	return out
}

func (m *Matcher) scoreCandidate(rec internal.ComponentRecord, product internal.ProductRecord, query string, queryTokens []string) rankedCandidate {
	candidateName := m.index.NormalizedNameByID[product.ID]
	desc := scoreDescription(query, candidateName, queryTokens, util.Tokenize(candidateName))

	typeMatch := rec.ComponentType != internal.ComponentUnknown && product.Type == rec.ComponentType
	compared, worst, within := compareSpecs(rec.Specs, product.Specs, m.cfg.MatchSpecTolerance)

	qualified := typeMatch && compared >= 1 && within
	if !qualified {
		return rankedCandidate{id: product.ID, score: desc}
	}

	if worst <= exactSpecEpsilon && desc >= strongDescScore {
		score := m.cfg.MatchStrongThreshold + 0.06*desc
		if score > 0.96 {
			score = 0.96
		}
		return rankedCandidate{id: product.ID, score: score, strong: true, qualified: true}
	}

	closeness := 1 - worst/m.cfg.MatchSpecTolerance
	if closeness < 0 {
		closeness = 0
	}
	score := m.cfg.MatchWeakThreshold + (0.89-m.cfg.MatchWeakThreshold)*(0.6*closeness+0.4*desc)
	return rankedCandidate{id: product.ID, score: score, qualified: true}
}

// compareSpecs diffs every spec field present on both sides. worst is the
// largest relative difference seen.
func compareSpecs(a, b internal.Specifications, tolerance float64) (compared int, worst float64, within bool) {
	pairs := [][2]*float64{
		{a.WeightKg, b.WeightKg},
		{a.LengthM, b.LengthM},
		{a.DiameterMm, b.DiameterMm},
		{a.CapacityT, b.CapacityT},
	}
	within = true
	for _, pair := range pairs {
		if pair[0] == nil || pair[1] == nil {
			continue
		}
		compared++
		diff := relativeDiff(*pair[0], *pair[1])
		if diff > worst {
			worst = diff
		}
		if diff > tolerance {
			within = false
		}
	}
	return compared, worst, within
}

func relativeDiff(a, b float64) float64 {
	if a == b {
		return 0
	}
	scale := math.Abs(a)
	if math.Abs(b) > scale {
		scale = math.Abs(b)
	}
	if scale == 0 {
		return 0
	}
	return math.Abs(a-b) / scale
}

func scoreDescription(query, candidate string, queryTokens, candidateTokens []string) float64 {
	dice := util.DiceCoefficient(query, candidate)
	if len(queryTokens) == 0 || len(candidateTokens) == 0 {
		return dice
	}

	set := map[string]struct{}{}
	for _, t := range candidateTokens {
		set[t] = struct{}{}
	}
	overlap := 0
	for _, t := range queryTokens {
		if _, ok := set[t]; ok {
			overlap++
		}
	}
	tokenScore := float64(overlap) / float64(len(queryTokens))
	return 0.65*dice + 0.35*tokenScore
}

func toCandidateList(ranked []rankedCandidate, index *catalog.Index) []internal.MatchCandidate {
	out := make([]internal.MatchCandidate, 0, len(ranked))
	for _, rc := range ranked {
		product := index.ProductsByID[rc.id]
		out = append(out, internal.MatchCandidate{ProductID: product.ID, Name: product.Name, Score: rc.score})
	}
	return out
}

func toSharedCandidates(products []internal.ProductRecord, score float64) []internal.MatchCandidate {
	limit := len(products)
	if limit > 5 {
		limit = 5
	}
	out := make([]internal.MatchCandidate, 0, limit)
	for i := 0; i < limit; i++ {
		out = append(out, internal.MatchCandidate{ProductID: products[i].ID, Name: products[i].Name, Score: score})
	}
	return out
}
