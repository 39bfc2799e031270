package postgres

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/kirillkom/knowledge-retrieval-service/internal/core/domain"
)

func newKeyRepoWithMock(t *testing.T) (*APIKeyRepository, sqlmock.Sqlmock, func()) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock.New() error = %v", err)
	}
	return &APIKeyRepository{db: db}, mock, func() { _ = db.Close() }
}

func TestResolveKey(t *testing.T) {
	repo, mock, done := newKeyRepoWithMock(t)
	defer done()

	rows := sqlmock.NewRows([]string{"key_id", "allowed_kb_ids", "rate_limit_per_sec", "rate_limit_burst"}).
		AddRow("key-1", []byte(`["kb-1","kb-2"]`), 10.0, 20)
	mock.ExpectQuery("SELECT key_id, allowed_kb_ids").
		WithArgs(hashKey("secret-token")).
		WillReturnRows(rows)

	perms, err := repo.ResolveKey(context.Background(), "secret-token")
	if err != nil {
		t.Fatalf("ResolveKey() error = %v", err)
	}
	if perms.KeyID != "key-1" || len(perms.AllowedKBIDs) != 2 {
		t.Fatalf("unexpected permissions: %+v", perms)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestResolveKeyUnknownIsUnauthorized(t *testing.T) {
	repo, mock, done := newKeyRepoWithMock(t)
	defer done()

	mock.ExpectQuery("SELECT key_id, allowed_kb_ids").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.ResolveKey(context.Background(), "bogus")
	if !domain.IsKind(err, domain.ErrUnauthorized) {
		t.Fatalf("expected ErrUnauthorized, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestHashKeyStableAndOpaque(t *testing.T) {
	if hashKey("a") != hashKey("a") {
		t.Fatal("hash must be deterministic")
	}
	if hashKey("a") == "a" || len(hashKey("a")) != 64 {
		t.Fatalf("unexpected hash form: %s", hashKey("a"))
	}
}
