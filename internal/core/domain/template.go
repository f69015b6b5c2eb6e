package domain

import "time"

type FieldType string

const (
	FieldText   FieldType = "text"
	FieldAmount FieldType = "amount"
	FieldDate   FieldType = "date"
	FieldNumber FieldType = "number"
)

// FieldDef declares one expected field of a template: where to look for it,
// how to parse it, and whether its absence blocks auto-commit.
type FieldDef struct {
	Name     string    `json:"name" yaml:"name"`
	Zone     ZoneKind  `json:"zone" yaml:"zone"`
	Type     FieldType `json:"type" yaml:"type"`
	Required bool      `json:"required" yaml:"required"`
}

// Template is a named, versioned reference layout owned by the downstream
// business system and mirrored into the local cache. The pipeline proposes
// variants but never promotes them itself.
type Template struct {
	ID           string              `json:"template_id" yaml:"template_id"`
	AppID        string              `json:"app_id" yaml:"app_id"`
	DocumentType string              `json:"document_type" yaml:"document_type"`
	Vendor       string              `json:"vendor" yaml:"vendor"`
	FormatName   string              `json:"format_name" yaml:"format_name"`
	Version      int                 `json:"version" yaml:"version"`
	Signature    StructuralSignature `json:"signature" yaml:"signature"`
	Fields       []FieldDef          `json:"fields" yaml:"fields"`
	UpdatedAt    time.Time           `json:"updated_at" yaml:"updated_at"`
}

func (t Template) RequiredFields() []string {
	var out []string
	for _, f := range t.Fields {
		if f.Required {
			out = append(out, f.Name)
		}
	}
	return out
}

func (t Template) FieldByName(name string) (FieldDef, bool) {
	for _, f := range t.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldDef{}, false
}

// VariantProposal records a near-miss match suspected of being a drifted
// version of an existing template. Approval happens upstream.
type VariantProposal struct {
	ID             string              `json:"id"`
	AppID          string              `json:"app_id"`
	BaseTemplateID string              `json:"base_template_id"`
	DocumentID     string              `json:"document_id"`
	Observed       StructuralSignature `json:"observed"`
	Similarity     float64             `json:"similarity"`
	CreatedAt      time.Time           `json:"created_at"`
}
