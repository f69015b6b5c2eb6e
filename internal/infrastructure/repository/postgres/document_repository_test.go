package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/scanwell/digidoc/internal/core/domain"
)

func newRepoWithMock(t *testing.T) (*DocumentRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &DocumentRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestGetByIDReturnsDomainNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT id, app_id, source_path").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetByID(context.Background(), "missing")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetByIDScansStateTimes(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	now := time.Now().UTC().Truncate(time.Second)
	stateTimes, _ := json.Marshal(map[domain.DocumentState]time.Time{
		domain.StatePending:  now,
		domain.StateMatching: now.Add(time.Second),
	})

	rows := sqlmock.NewRows([]string{
		"id", "app_id", "source_path", "original_filename", "source_channel", "ingested_at",
		"state", "state_times", "error_stage", "error_detail", "created_at", "updated_at",
	}).AddRow("doc-1", "app-1", "/scans/a.png", "a.png", "scanner", now,
		"matching", stateTimes, nil, nil, now, now)

	mock.ExpectQuery("SELECT id, app_id, source_path").
		WithArgs("doc-1").
		WillReturnRows(rows)

	doc, err := repo.GetByID(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("GetByID() error = %v", err)
	}
	if doc.State != domain.StateMatching {
		t.Fatalf("expected matching state, got %s", doc.State)
	}
	if len(doc.StateTimes) != 2 {
		t.Fatalf("expected state times restored, got %v", doc.StateTimes)
	}
}

func TestUpdateStateReturnsDomainNotFoundWhenNoRowsAffected(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE documents").
		WithArgs("missing", string(domain.StatePreprocessing), sqlmock.AnyArg(), "", "").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.UpdateState(context.Background(), "missing", domain.StatePreprocessing, "", "")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestSaveSignatureReturnsDomainNotFoundWhenNoRowsAffected(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectExec("UPDATE documents SET signature").
		WithArgs("missing", sqlmock.AnyArg(), sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SaveSignature(context.Background(), "missing", domain.StructuralSignature{ContentRatio: 0.4})
	if err == nil {
		t.Fatalf("expected error")
	}
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("expected ErrDocumentNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestGetSignatureRoundTripsJSON(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	sig := domain.StructuralSignature{
		Zones:        []domain.Zone{{Kind: domain.ZoneHeader, X: 0.1, Y: 0.05, Width: 0.7, Height: 0.1, Area: 0.07}},
		ContentRatio: 0.42,
	}
	raw, _ := json.Marshal(sig)

	mock.ExpectQuery("SELECT signature FROM documents").
		WithArgs("doc-1").
		WillReturnRows(sqlmock.NewRows([]string{"signature"}).AddRow(raw))

	got, err := repo.GetSignature(context.Background(), "doc-1")
	if err != nil {
		t.Fatalf("GetSignature() error = %v", err)
	}
	if got.ContentRatio != 0.42 || len(got.Zones) != 1 || got.Zones[0].Kind != domain.ZoneHeader {
		t.Fatalf("signature did not survive persistence: %+v", got)
	}
}

func TestGetSignatureMissingColumnIsNotFound(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT signature FROM documents").
		WithArgs("doc-1").
		WillReturnRows(sqlmock.NewRows([]string{"signature"}).AddRow(nil))

	_, err := repo.GetSignature(context.Background(), "doc-1")
	if !domain.IsKind(err, domain.ErrDocumentNotFound) {
		t.Fatalf("document without signature should read as not found, got %v", err)
	}
}

func TestListByStatesBuildsPlaceholders(t *testing.T) {
	repo, mock, done := newRepoWithMock(t)
	defer done()

	now := time.Now().UTC()
	rows := sqlmock.NewRows([]string{
		"id", "app_id", "source_path", "original_filename", "source_channel", "ingested_at",
		"state", "state_times", "error_stage", "error_detail", "created_at", "updated_at",
	}).AddRow("doc-1", "app-1", "/scans/a.png", nil, nil, now, "preprocessing", []byte("{}"), nil, nil, now, now).
		AddRow("doc-2", "app-1", "/scans/b.png", nil, nil, now, "matching", []byte("{}"), nil, nil, now, now)

	mock.ExpectQuery("WHERE state IN").
		WithArgs("preprocessing", "matching", "extracting").
		WillReturnRows(rows)

	docs, err := repo.ListByStates(context.Background(),
		domain.StatePreprocessing, domain.StateMatching, domain.StateExtracting)
	if err != nil {
		t.Fatalf("ListByStates() error = %v", err)
	}
	if len(docs) != 2 {
		t.Fatalf("expected 2 documents, got %d", len(docs))
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}
