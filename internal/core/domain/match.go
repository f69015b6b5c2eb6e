package domain

// MatchOutcome classifies a match score against the configured thresholds.
// OutcomeNoTemplates is deliberately distinct from OutcomeNone: an empty
// library should trigger a sync refresh, not a low-confidence guess.
type MatchOutcome string

const (
	OutcomeAuto        MatchOutcome = "auto"
	OutcomeVariant     MatchOutcome = "variant"
	OutcomeNone        MatchOutcome = "none"
	OutcomeNoTemplates MatchOutcome = "no_templates"
)

// Candidate is one scored template from a match run.
type Candidate struct {
	TemplateID   string  `json:"template_id"`
	FormatName   string  `json:"format_name"`
	DocumentType string  `json:"document_type"`
	Vendor       string  `json:"vendor"`
	Score        float64 `json:"score"`
}

// MatchResult is the ranked outcome of comparing one document signature
// against the template library. Ephemeral: computed per document and kept
// only on the document's audit trail.
type MatchResult struct {
	Best       *Candidate   `json:"best,omitempty"`
	Score      float64      `json:"score"`
	Outcome    MatchOutcome `json:"outcome"`
	Candidates []Candidate  `json:"candidates,omitempty"`
}
