package domain

// ExtractedField is one recognized field value with the confidence the
// recognizer assigned to it, discounted for zone drift.
type ExtractedField struct {
	Name       string   `json:"name"`
	Value      string   `json:"value"`
	Confidence float64  `json:"confidence"`
	Zone       ZoneKind `json:"zone"`
}

// Routing is the terminal decision for a validated document. Validation
// never produces RouteFail: data-quality problems route to review, and
// failures are reserved for stage errors.
type Routing string

const (
	RouteAutoCommit Routing = "auto_commit"
	RouteReview     Routing = "review"
	RouteFail       Routing = "fail"
)

// ValidationResult aggregates per-field and cross-field checks into one
// routing decision.
type ValidationResult struct {
	IsValid             bool     `json:"is_valid"`
	MissingFields       []string `json:"missing_fields,omitempty"`
	LowConfidenceFields []string `json:"low_confidence_fields,omitempty"`
	Warnings            []string `json:"warnings,omitempty"`
	OverallConfidence   float64  `json:"overall_confidence"`
	Decision            Routing  `json:"decision"`
}
