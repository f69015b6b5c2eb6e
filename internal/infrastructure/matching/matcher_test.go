package matching

import (
	"testing"

	"github.com/scanwell/digidoc/internal/core/domain"
)

func invoiceSignature() domain.StructuralSignature {
	return domain.StructuralSignature{
		Zones: []domain.Zone{
			{Kind: domain.ZoneHeader, X: 0.1, Y: 0.05, Width: 0.7, Height: 0.1, Area: 0.07},
			{Kind: domain.ZoneTable, X: 0.1, Y: 0.3, Width: 0.8, Height: 0.45, Area: 0.36},
			{Kind: domain.ZoneFooter, X: 0.2, Y: 0.85, Width: 0.6, Height: 0.08, Area: 0.048},
		},
		ContentRatio: 0.478,
	}
}

func shiftedSignature(delta float64) domain.StructuralSignature {
	sig := invoiceSignature()
	for i := range sig.Zones {
		sig.Zones[i].X += delta
		sig.Zones[i].Y += delta
	}
	return sig
}

func tpl(id string, sig domain.StructuralSignature) domain.Template {
	return domain.Template{ID: id, FormatName: id, DocumentType: "invoice", Signature: sig}
}

func TestCompareIdenticalSignatures(t *testing.T) {
	score := Compare(invoiceSignature(), invoiceSignature())
	if score < 0.999 {
		t.Fatalf("identical signatures should score ~1.0, got %v", score)
	}
}

func TestCompareBlankSignatures(t *testing.T) {
	blank := domain.StructuralSignature{}
	if got := Compare(blank, blank); got != 1.0 {
		t.Fatalf("two blank signatures should match, got %v", got)
	}
	if got := Compare(blank, invoiceSignature()); got != 0.0 {
		t.Fatalf("blank vs content should score 0, got %v", got)
	}
}

func TestCompareDecreasesWithDrift(t *testing.T) {
	base := invoiceSignature()
	near := Compare(base, shiftedSignature(0.02))
	far := Compare(base, shiftedSignature(0.25))
	if near <= far {
		t.Fatalf("closer layout should score higher: near=%v far=%v", near, far)
	}
	if near < 0.85 {
		t.Fatalf("small drift should stay above auto threshold, got %v", near)
	}
}

func TestMatchIsDeterministic(t *testing.T) {
	m := NewMatcher(Options{})
	sig := invoiceSignature()
	candidates := []domain.Template{
		tpl("a", shiftedSignature(0.05)),
		tpl("b", invoiceSignature()),
		tpl("c", shiftedSignature(0.3)),
	}
	first := m.Match(sig, candidates)
	for i := 0; i < 5; i++ {
		again := m.Match(sig, candidates)
		if again.Best == nil || first.Best == nil || again.Best.TemplateID != first.Best.TemplateID {
			t.Fatalf("match result changed between runs: %+v vs %+v", first, again)
		}
		if again.Score != first.Score {
			t.Fatalf("score changed between runs: %v vs %v", first.Score, again.Score)
		}
	}
	if first.Best.TemplateID != "b" {
		t.Fatalf("expected exact template to win, got %s", first.Best.TemplateID)
	}
}

func TestMatchTieKeepsFirstCandidate(t *testing.T) {
	m := NewMatcher(Options{})
	sig := invoiceSignature()
	candidates := []domain.Template{
		tpl("first", invoiceSignature()),
		tpl("second", invoiceSignature()),
	}
	res := m.Match(sig, candidates)
	if res.Best == nil || res.Best.TemplateID != "first" {
		t.Fatalf("tie should keep the earlier candidate, got %+v", res.Best)
	}
}

func TestMatchOutcomeThresholds(t *testing.T) {
	m := NewMatcher(Options{AutoMatchThreshold: 0.85, PartialMatchThreshold: 0.60})
	sig := invoiceSignature()

	auto := m.Match(sig, []domain.Template{tpl("exact", invoiceSignature())})
	if auto.Outcome != domain.OutcomeAuto {
		t.Fatalf("exact candidate should be auto, got %s (score %v)", auto.Outcome, auto.Score)
	}

	variant := m.Match(sig, []domain.Template{tpl("drifted", shiftedSignature(0.2))})
	if variant.Outcome != domain.OutcomeVariant {
		t.Fatalf("drifted candidate should be variant, got %s (score %v)", variant.Outcome, variant.Score)
	}
	if variant.Best == nil {
		t.Fatal("variant outcome should still carry a best candidate")
	}

	none := m.Match(sig, []domain.Template{tpl("unrelated", domain.StructuralSignature{
		Zones:        []domain.Zone{{Kind: domain.ZoneOther, X: 0.4, Y: 0.4, Width: 0.1, Height: 0.1, Area: 0.01}},
		ContentRatio: 0.01,
	})})
	if none.Outcome != domain.OutcomeNone {
		t.Fatalf("unrelated candidate should be none, got %s (score %v)", none.Outcome, none.Score)
	}
	if none.Best != nil {
		t.Fatalf("no-match result should not carry a best candidate, got %+v", none.Best)
	}
}

func TestMatchOutcomeAtExactThreshold(t *testing.T) {
	sig := invoiceSignature()
	drifted := shiftedSignature(0.2)
	score := Compare(sig, drifted)
	if score <= 0 || score >= 1 {
		t.Fatalf("fixture score out of the open interval: %v", score)
	}
	candidates := []domain.Template{tpl("drifted", drifted)}
	const eps = 1e-9

	at := NewMatcher(Options{AutoMatchThreshold: score, PartialMatchThreshold: score / 2}).
		Match(sig, candidates)
	if at.Outcome != domain.OutcomeAuto {
		t.Fatalf("score equal to the auto threshold should auto-match, got %s (score %v)", at.Outcome, at.Score)
	}

	below := NewMatcher(Options{AutoMatchThreshold: score + eps, PartialMatchThreshold: score / 2}).
		Match(sig, candidates)
	if below.Outcome != domain.OutcomeVariant {
		t.Fatalf("score just under the auto threshold should be a variant, got %s (score %v)", below.Outcome, below.Score)
	}

	atPartial := NewMatcher(Options{AutoMatchThreshold: score + eps, PartialMatchThreshold: score}).
		Match(sig, candidates)
	if atPartial.Outcome != domain.OutcomeVariant {
		t.Fatalf("score equal to the partial threshold should be a variant, got %s (score %v)", atPartial.Outcome, atPartial.Score)
	}

	belowPartial := NewMatcher(Options{AutoMatchThreshold: score + eps, PartialMatchThreshold: score + eps}).
		Match(sig, candidates)
	if belowPartial.Outcome != domain.OutcomeNone {
		t.Fatalf("score under both thresholds should be none, got %s (score %v)", belowPartial.Outcome, belowPartial.Score)
	}
}

func TestMatchEmptyLibrary(t *testing.T) {
	res := NewMatcher(Options{}).Match(invoiceSignature(), nil)
	if res.Outcome != domain.OutcomeNoTemplates {
		t.Fatalf("empty library should yield no_templates, got %s", res.Outcome)
	}
	if res.Best != nil || len(res.Candidates) != 0 {
		t.Fatalf("no_templates result should be empty, got %+v", res)
	}
}

func TestMatchLimitsRankedCandidates(t *testing.T) {
	m := NewMatcher(Options{TopN: 2})
	sig := invoiceSignature()
	candidates := []domain.Template{
		tpl("a", invoiceSignature()),
		tpl("b", shiftedSignature(0.05)),
		tpl("c", shiftedSignature(0.1)),
		tpl("d", shiftedSignature(0.2)),
	}
	res := m.Match(sig, candidates)
	if len(res.Candidates) != 2 {
		t.Fatalf("expected 2 ranked candidates, got %d", len(res.Candidates))
	}
	if res.Candidates[0].Score < res.Candidates[1].Score {
		t.Fatal("candidates should be ranked by descending score")
	}
}
