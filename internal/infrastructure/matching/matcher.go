// Package matching scores document signatures against template signatures.
// Scoring is pure arithmetic over ratio features, so a match run is fully
// deterministic and replayable from the persisted signature.
package matching

import (
	"math"
	"sort"

	"github.com/scanwell/digidoc/internal/core/domain"
)

// composite score weights: zone count 30%, content area 20%, zone
// geometry 50%.
const (
	weightZoneCount = 0.3
	weightArea      = 0.2
	weightGeometry  = 0.5
)

type Options struct {
	AutoMatchThreshold    float64 // score >= this is an automatic match
	PartialMatchThreshold float64 // score >= this (but below auto) is a variant
	TopN                  int     // ranked candidates kept on the result
}

type Matcher struct {
	opts Options
}

func NewMatcher(opts Options) *Matcher {
	if opts.AutoMatchThreshold <= 0 {
		opts.AutoMatchThreshold = 0.85
	}
	if opts.PartialMatchThreshold <= 0 {
		opts.PartialMatchThreshold = 0.60
	}
	if opts.TopN <= 0 {
		opts.TopN = 5
	}
	return &Matcher{opts: opts}
}

// Match scores sig against every candidate template and classifies the best
// score. Ties keep the earlier candidate, so ordering of the input list is
// part of the contract. An empty candidate list yields OutcomeNoTemplates.
func (m *Matcher) Match(sig domain.StructuralSignature, candidates []domain.Template) domain.MatchResult {
	if len(candidates) == 0 {
		return domain.MatchResult{Outcome: domain.OutcomeNoTemplates}
	}

	scored := make([]domain.Candidate, 0, len(candidates))
	for _, tpl := range candidates {
		scored = append(scored, domain.Candidate{
			TemplateID:   tpl.ID,
			FormatName:   tpl.FormatName,
			DocumentType: tpl.DocumentType,
			Vendor:       tpl.Vendor,
			Score:        Compare(sig, tpl.Signature),
		})
	}
	// stable sort keeps first-seen order among equal scores
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	best := scored[0]
	kept := scored
	if len(kept) > m.opts.TopN {
		kept = kept[:m.opts.TopN]
	}

	outcome := domain.OutcomeNone
	switch {
	case best.Score >= m.opts.AutoMatchThreshold:
		outcome = domain.OutcomeAuto
	case best.Score >= m.opts.PartialMatchThreshold:
		outcome = domain.OutcomeVariant
	}

	result := domain.MatchResult{
		Score:      best.Score,
		Outcome:    outcome,
		Candidates: kept,
	}
	if outcome != domain.OutcomeNone {
		b := best
		result.Best = &b
	}
	return result
}

// Compare returns a similarity in [0,1] between two signatures. Two blank
// documents compare as identical; a blank against a non-blank scores zero.
func Compare(a, b domain.StructuralSignature) float64 {
	if a.ZoneCount() == 0 && b.ZoneCount() == 0 {
		return 1.0
	}
	if a.ZoneCount() == 0 || b.ZoneCount() == 0 {
		return 0.0
	}

	maxZones := a.ZoneCount()
	if b.ZoneCount() > maxZones {
		maxZones = b.ZoneCount()
	}
	countScore := 1.0 - float64(absInt(a.ZoneCount()-b.ZoneCount()))/float64(maxZones)

	areaDiff := math.Abs(a.ContentRatio - b.ContentRatio)
	if areaDiff > 1 {
		areaDiff = 1
	}
	areaScore := 1.0 - areaDiff

	geometryScore := meanZoneSimilarity(a, b)

	score := weightZoneCount*countScore + weightArea*areaScore + weightGeometry*geometryScore
	return clamp01(score)
}

// meanZoneSimilarity compares the topmost zone of each kind both signatures
// share. Geometry distance decays exponentially so small offsets still score
// high while layouts drifting apart fall off quickly.
func meanZoneSimilarity(a, b domain.StructuralSignature) float64 {
	kinds := []domain.ZoneKind{
		domain.ZoneHeader, domain.ZoneTable, domain.ZoneFooter,
		domain.ZoneLogo, domain.ZoneOther,
	}
	var sum float64
	var n int
	for _, kind := range kinds {
		za := a.ZonesOfKind(kind)
		zb := b.ZonesOfKind(kind)
		if len(za) == 0 || len(zb) == 0 {
			continue
		}
		sum += math.Exp(-2 * zoneDistance(za[0], zb[0]))
		n++
	}
	if n == 0 {
		return 0.0
	}
	return sum / float64(n)
}

func zoneDistance(a, b domain.Zone) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	dw := a.Width - b.Width
	dh := a.Height - b.Height
	da := a.Area - b.Area
	return math.Sqrt(dx*dx + dy*dy + dw*dw + dh*dh + da*da)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
