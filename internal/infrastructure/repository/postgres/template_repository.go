package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/scanwell/digidoc/internal/core/domain"
)

// TemplateRepository is the local mirror of the authoritative template
// library plus the variant proposals queued for upstream review.
type TemplateRepository struct {
	db *sql.DB
}

func NewTemplateRepository(db *sql.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

// ReplaceForApp swaps the whole template set of one application in a
// single transaction, so readers never observe a half-synced mirror.
func (r *TemplateRepository) ReplaceForApp(ctx context.Context, appID string, tpls []domain.Template) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin template tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if _, err := tx.ExecContext(ctx, `DELETE FROM templates WHERE app_id = $1`, appID); err != nil {
		return fmt.Errorf("clear templates: %w", err)
	}

	for _, tpl := range tpls {
		sigJSON, err := json.Marshal(tpl.Signature)
		if err != nil {
			return fmt.Errorf("marshal signature for %s: %w", tpl.ID, err)
		}
		fieldsJSON, err := json.Marshal(tpl.Fields)
		if err != nil {
			return fmt.Errorf("marshal fields for %s: %w", tpl.ID, err)
		}
		updatedAt := tpl.UpdatedAt
		if updatedAt.IsZero() {
			updatedAt = time.Now().UTC()
		}
		if _, err := tx.ExecContext(ctx, `
INSERT INTO templates (id, app_id, document_type, vendor, format_name, version, signature, fields, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
`, tpl.ID, appID, tpl.DocumentType, tpl.Vendor, tpl.FormatName, tpl.Version, sigJSON, fieldsJSON, updatedAt); err != nil {
			return fmt.Errorf("insert template %s: %w", tpl.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit template tx: %w", err)
	}
	return nil
}

func (r *TemplateRepository) ListByApp(ctx context.Context, appID string) ([]domain.Template, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, app_id, document_type, vendor, format_name, version, signature, fields, updated_at
FROM templates
WHERE app_id = $1
ORDER BY id ASC
`, appID)
	if err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	defer rows.Close()

	var tpls []domain.Template
	for rows.Next() {
		var tpl domain.Template
		var docType, vendor, formatName sql.NullString
		var sigRaw, fieldsRaw []byte

		if err := rows.Scan(&tpl.ID, &tpl.AppID, &docType, &vendor, &formatName, &tpl.Version, &sigRaw, &fieldsRaw, &tpl.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scan template: %w", err)
		}
		tpl.DocumentType = docType.String
		tpl.Vendor = vendor.String
		tpl.FormatName = formatName.String
		if err := json.Unmarshal(sigRaw, &tpl.Signature); err != nil {
			return nil, fmt.Errorf("unmarshal signature for %s: %w", tpl.ID, err)
		}
		if len(fieldsRaw) > 0 {
			if err := json.Unmarshal(fieldsRaw, &tpl.Fields); err != nil {
				return nil, fmt.Errorf("unmarshal fields for %s: %w", tpl.ID, err)
			}
		}
		tpls = append(tpls, tpl)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate templates: %w", err)
	}
	return tpls, nil
}

func (r *TemplateRepository) SaveVariantProposal(ctx context.Context, proposal domain.VariantProposal) error {
	observedJSON, err := json.Marshal(proposal.Observed)
	if err != nil {
		return fmt.Errorf("marshal observed signature: %w", err)
	}
	_, err = r.db.ExecContext(ctx, `
INSERT INTO template_variant_proposals (id, app_id, base_template_id, document_id, observed, similarity, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`, proposal.ID, proposal.AppID, proposal.BaseTemplateID, proposal.DocumentID, observedJSON, proposal.Similarity, proposal.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert variant proposal: %w", err)
	}
	return nil
}

func (r *TemplateRepository) RecordSync(ctx context.Context, appID, status, detail string) error {
	_, err := r.db.ExecContext(ctx, `
INSERT INTO template_sync_metadata (app_id, last_attempt_at, status, detail)
VALUES ($1,$2,$3,$4)
ON CONFLICT (app_id) DO UPDATE SET last_attempt_at = $2, status = $3, detail = $4
`, appID, time.Now().UTC(), status, detail)
	if err != nil {
		return fmt.Errorf("record template sync: %w", err)
	}
	return nil
}
