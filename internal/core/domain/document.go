package domain

import "time"

type DocumentState string

const (
	StatePending       DocumentState = "pending"
	StatePreprocessing DocumentState = "preprocessing"
	StateMatching      DocumentState = "matching"
	StateExtracting    DocumentState = "extracting"
	StateReview        DocumentState = "review"
	StateCompleted     DocumentState = "completed"
	StateFailed        DocumentState = "failed"
)

// legal transitions; failed is reachable from any non-terminal state and
// is handled separately in CanTransition. Review and failed documents can
// be reset to pending for reprocessing; completed results are immutable.
var transitions = map[DocumentState][]DocumentState{
	StatePending:       {StatePreprocessing},
	StatePreprocessing: {StateMatching},
	StateMatching:      {StateExtracting, StateReview},
	StateExtracting:    {StateCompleted, StateReview},
	StateReview:        {StatePending},
	StateFailed:        {StatePending},
}

func (s DocumentState) Terminal() bool {
	return s == StateReview || s == StateCompleted || s == StateFailed
}

func CanTransition(from, to DocumentState) bool {
	if to == StateFailed {
		return !from.Terminal()
	}
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// Document is one ingested file instance. Mutated exclusively by the
// processing lifecycle as it advances through states.
type Document struct {
	ID               string                      `json:"id"`
	AppID            string                      `json:"app_id"`
	SourcePath       string                      `json:"source_path"`
	OriginalFilename string                      `json:"original_filename,omitempty"`
	SourceChannel    string                      `json:"source_channel,omitempty"`
	IngestedAt       time.Time                   `json:"ingested_at"`
	State            DocumentState               `json:"state"`
	StateTimes       map[DocumentState]time.Time `json:"state_times,omitempty"`
	ErrorStage       string                      `json:"error_stage,omitempty"`
	ErrorDetail      string                      `json:"error_detail,omitempty"`
	CreatedAt        time.Time                   `json:"created_at"`
	UpdatedAt        time.Time                   `json:"updated_at"`
}

// NormalizedImage is the immutable preprocessing artifact of a Document,
// recomputed rather than mutated when reprocessing is requested.
type NormalizedImage struct {
	Raster          Raster  `json:"-"`
	SkewAngle       float64 `json:"skew_angle"`
	SourceDPI       int     `json:"source_dpi"`
	ThresholdMethod string  `json:"threshold_method"`
}
