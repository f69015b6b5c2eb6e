package export

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/scanwell/digidoc/internal/core/domain"
)

type fakeDocs struct {
	docs    []domain.Document
	matches map[string]*domain.MatchResult
	fields  map[string][]domain.ExtractedField
}

func (f *fakeDocs) Create(context.Context, *domain.Document) error { return nil }
func (f *fakeDocs) GetByID(context.Context, string) (*domain.Document, error) {
	return nil, domain.ErrDocumentNotFound
}
func (f *fakeDocs) UpdateState(context.Context, string, domain.DocumentState, string, string) error {
	return nil
}
func (f *fakeDocs) SaveSignature(context.Context, string, domain.StructuralSignature) error {
	return nil
}
func (f *fakeDocs) GetSignature(context.Context, string) (*domain.StructuralSignature, error) {
	return nil, domain.ErrDocumentNotFound
}
func (f *fakeDocs) SaveMatchResult(context.Context, string, domain.MatchResult) error { return nil }
func (f *fakeDocs) GetMatchResult(_ context.Context, id string) (*domain.MatchResult, error) {
	m, ok := f.matches[id]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	return m, nil
}
func (f *fakeDocs) SaveFields(context.Context, string, []domain.ExtractedField) error { return nil }
func (f *fakeDocs) GetFields(_ context.Context, id string) ([]domain.ExtractedField, error) {
	fields, ok := f.fields[id]
	if !ok {
		return nil, domain.ErrDocumentNotFound
	}
	return fields, nil
}
func (f *fakeDocs) SaveValidation(context.Context, string, domain.ValidationResult) error {
	return nil
}
func (f *fakeDocs) ListByStates(_ context.Context, states ...domain.DocumentState) ([]domain.Document, error) {
	var out []domain.Document
	for _, doc := range f.docs {
		for _, s := range states {
			if doc.State == s {
				out = append(out, doc)
			}
		}
	}
	return out, nil
}

func TestExportWritesDocumentAndFieldSheets(t *testing.T) {
	repo := &fakeDocs{
		docs: []domain.Document{
			{
				ID: "doc-1", AppID: "app-1", OriginalFilename: "a.png",
				SourceChannel: "scanner", State: domain.StateReview,
				IngestedAt: time.Date(2024, 5, 20, 10, 0, 0, 0, time.UTC),
			},
			{
				ID: "doc-2", AppID: "app-1", State: domain.StateFailed,
				ErrorStage: "preprocessing", ErrorDetail: "decode failed",
				IngestedAt: time.Date(2024, 5, 21, 9, 0, 0, 0, time.UTC),
			},
		},
		matches: map[string]*domain.MatchResult{
			"doc-1": {
				Score:   0.72,
				Outcome: domain.OutcomeVariant,
				Best:    &domain.Candidate{TemplateID: "tpl-1", Score: 0.72},
			},
		},
		fields: map[string][]domain.ExtractedField{
			"doc-1": {
				{Name: "total_amount", Value: "162.00", Confidence: 0.8, Zone: domain.ZoneFooter},
			},
		},
	}

	var buf bytes.Buffer
	exporter := NewXLSXExporter(repo, nil)
	err := exporter.Export(context.Background(), &buf, domain.StateReview, domain.StateFailed)
	if err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	wb, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer wb.Close()

	rows, err := wb.GetRows(documentsSheet)
	if err != nil {
		t.Fatalf("read documents sheet: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header + 2 document rows, got %d", len(rows))
	}
	if rows[1][0] != "doc-1" || rows[1][6] != "variant" || rows[1][8] != "tpl-1" {
		t.Fatalf("unexpected doc-1 row: %v", rows[1])
	}
	if rows[2][0] != "doc-2" || rows[2][9] != "preprocessing" {
		t.Fatalf("unexpected doc-2 row: %v", rows[2])
	}

	fieldRows, err := wb.GetRows(fieldsSheet)
	if err != nil {
		t.Fatalf("read fields sheet: %v", err)
	}
	if len(fieldRows) != 2 {
		t.Fatalf("expected header + 1 field row, got %d", len(fieldRows))
	}
	if fieldRows[1][1] != "total_amount" || fieldRows[1][2] != "162.00" {
		t.Fatalf("unexpected field row: %v", fieldRows[1])
	}
}

func TestExportDefaultsToReviewQueue(t *testing.T) {
	repo := &fakeDocs{
		docs: []domain.Document{
			{ID: "doc-1", State: domain.StateReview},
			{ID: "doc-2", State: domain.StateCompleted},
		},
	}

	var buf bytes.Buffer
	if err := NewXLSXExporter(repo, nil).Export(context.Background(), &buf); err != nil {
		t.Fatalf("Export() error = %v", err)
	}

	wb, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("reopen workbook: %v", err)
	}
	defer wb.Close()

	rows, err := wb.GetRows(documentsSheet)
	if err != nil {
		t.Fatalf("read documents sheet: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("default export should only include review documents, got %d rows", len(rows))
	}
}
