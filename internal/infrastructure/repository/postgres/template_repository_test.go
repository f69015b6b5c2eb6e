package postgres

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/scanwell/digidoc/internal/core/domain"
)

func newTemplateRepoWithMock(t *testing.T) (*TemplateRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &TemplateRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestReplaceForAppDeletesThenInserts(t *testing.T) {
	repo, mock, done := newTemplateRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM templates").
		WithArgs("app-1").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec("INSERT INTO templates").
		WithArgs("t1", "app-1", "invoice", "acme", "acme standard", 2,
			sqlmock.AnyArg(), sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	err := repo.ReplaceForApp(context.Background(), "app-1", []domain.Template{{
		ID:           "t1",
		AppID:        "app-1",
		DocumentType: "invoice",
		Vendor:       "acme",
		FormatName:   "acme standard",
		Version:      2,
	}})
	if err != nil {
		t.Fatalf("ReplaceForApp() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestReplaceForAppRollsBackOnInsertFailure(t *testing.T) {
	repo, mock, done := newTemplateRepoWithMock(t)
	defer done()

	mock.ExpectBegin()
	mock.ExpectExec("DELETE FROM templates").
		WithArgs("app-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("INSERT INTO templates").
		WillReturnError(context.DeadlineExceeded)
	mock.ExpectRollback()

	err := repo.ReplaceForApp(context.Background(), "app-1", []domain.Template{{ID: "t1"}})
	if err == nil {
		t.Fatal("expected error")
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestListByAppRestoresSignatureAndFields(t *testing.T) {
	repo, mock, done := newTemplateRepoWithMock(t)
	defer done()

	sig, _ := json.Marshal(domain.StructuralSignature{ContentRatio: 0.3})
	fields, _ := json.Marshal([]domain.FieldDef{{Name: "total_amount", Zone: domain.ZoneFooter, Type: domain.FieldAmount, Required: true}})

	rows := sqlmock.NewRows([]string{
		"id", "app_id", "document_type", "vendor", "format_name", "version", "signature", "fields", "updated_at",
	}).AddRow("t1", "app-1", "invoice", nil, "acme standard", 1, sig, fields, time.Now())

	mock.ExpectQuery("SELECT id, app_id, document_type").
		WithArgs("app-1").
		WillReturnRows(rows)

	tpls, err := repo.ListByApp(context.Background(), "app-1")
	if err != nil {
		t.Fatalf("ListByApp() error = %v", err)
	}
	if len(tpls) != 1 {
		t.Fatalf("expected 1 template, got %d", len(tpls))
	}
	tpl := tpls[0]
	if tpl.Signature.ContentRatio != 0.3 {
		t.Fatalf("signature not restored: %+v", tpl.Signature)
	}
	if len(tpl.Fields) != 1 || !tpl.Fields[0].Required {
		t.Fatalf("fields not restored: %+v", tpl.Fields)
	}
}

func TestRecordSyncUpserts(t *testing.T) {
	repo, mock, done := newTemplateRepoWithMock(t)
	defer done()

	mock.ExpectExec("INSERT INTO template_sync_metadata").
		WithArgs("app-1", sqlmock.AnyArg(), "failed", "authority unreachable").
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.RecordSync(context.Background(), "app-1", "failed", "authority unreachable"); err != nil {
		t.Fatalf("RecordSync() error = %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
