// Package export renders operator-facing reports of processed documents.
// The review queue has no GUI in this service; an exported workbook is
// how operators triage it.
package export

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/xuri/excelize/v2"

	"github.com/scanwell/digidoc/internal/core/domain"
	"github.com/scanwell/digidoc/internal/core/ports"
)

const (
	documentsSheet = "Documents"
	fieldsSheet    = "Fields"
)

type XLSXExporter struct {
	docs   ports.DocumentRepository
	logger *slog.Logger
}

func NewXLSXExporter(docs ports.DocumentRepository, logger *slog.Logger) *XLSXExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &XLSXExporter{docs: docs, logger: logger}
}

// Export writes one workbook: a document overview sheet and a per-field
// detail sheet. Documents that never reached matching or extraction simply
// have empty columns there.
func (e *XLSXExporter) Export(ctx context.Context, w io.Writer, states ...domain.DocumentState) error {
	if len(states) == 0 {
		states = []domain.DocumentState{domain.StateReview}
	}

	docs, err := e.docs.ListByStates(ctx, states...)
	if err != nil {
		return fmt.Errorf("list documents for report: %w", err)
	}

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", documentsSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(fieldsSheet); err != nil {
		return fmt.Errorf("create fields sheet: %w", err)
	}

	docHeaders := []any{"Document ID", "App", "Filename", "Channel", "State", "Ingested At", "Match Outcome", "Match Score", "Matched Template", "Error Stage", "Error Detail"}
	if err := f.SetSheetRow(documentsSheet, "A1", &docHeaders); err != nil {
		return fmt.Errorf("write document headers: %w", err)
	}
	fieldHeaders := []any{"Document ID", "Field", "Value", "Confidence", "Zone"}
	if err := f.SetSheetRow(fieldsSheet, "A1", &fieldHeaders); err != nil {
		return fmt.Errorf("write field headers: %w", err)
	}

	fieldRow := 2
	for i, doc := range docs {
		if err := ctx.Err(); err != nil {
			return err
		}

		outcome, score, templateID := e.matchColumns(ctx, doc.ID)
		row := []any{
			doc.ID, doc.AppID, doc.OriginalFilename, doc.SourceChannel, string(doc.State),
			doc.IngestedAt.Format("2006-01-02 15:04:05"),
			outcome, score, templateID, doc.ErrorStage, doc.ErrorDetail,
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(documentsSheet, cell, &row); err != nil {
			return fmt.Errorf("write document row: %w", err)
		}

		fields, err := e.docs.GetFields(ctx, doc.ID)
		if err != nil {
			if !domain.IsKind(err, domain.ErrDocumentNotFound) {
				e.logger.Warn("report skipping fields", "document_id", doc.ID, "error", err)
			}
			continue
		}
		for _, field := range fields {
			cell, err := excelize.CoordinatesToCellName(1, fieldRow)
			if err != nil {
				return err
			}
			fr := []any{doc.ID, field.Name, field.Value, field.Confidence, string(field.Zone)}
			if err := f.SetSheetRow(fieldsSheet, cell, &fr); err != nil {
				return fmt.Errorf("write field row: %w", err)
			}
			fieldRow++
		}
	}

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

func (e *XLSXExporter) matchColumns(ctx context.Context, docID string) (outcome string, score any, templateID string) {
	match, err := e.docs.GetMatchResult(ctx, docID)
	if err != nil {
		return "", nil, ""
	}
	outcome = string(match.Outcome)
	score = match.Score
	if match.Best != nil {
		templateID = match.Best.TemplateID
	}
	return outcome, score, templateID
}
