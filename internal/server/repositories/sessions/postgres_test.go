package sessions

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/dmitrijs2005/signalrelay/internal/common"
)

func newRepoWithMock(t *testing.T) (*PostgresRepository, sqlmock.Sqlmock, *sql.DB) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	if err != nil {
		t.Fatalf("sqlmock.New error: %v", err)
	}
	return NewPostgresRepository(db), mock, db
}

const (
	insertQ = `(?s)^\s*INSERT\s+INTO\s+sessions\s*\(user_id,\s*token,\s*expires_at\)\s*VALUES\s*\(\$1,\s*\$2,\s*\$3\)\s*$`
	deleteQ = `(?s)^DELETE\s+FROM\s+sessions\s+WHERE\s+token\s*=\s*\$1\s+AND\s+user_id\s*=\s*\$2$`
)

func TestCreate_Success(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(insertQ).
		WithArgs("u1", "tok123", sqlmock.AnyArg()). // expires_at = time.Now().Add(validity)
		WillReturnResult(sqlmock.NewResult(0, 1))

	if err := repo.Create(context.Background(), "u1", "tok123", 30*time.Minute); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestCreate_DBError(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(insertQ).
		WithArgs("u1", "tok123", sqlmock.AnyArg()).
		WillReturnError(errors.New("db down"))

	err := repo.Create(context.Background(), "u1", "tok123", time.Hour)
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestFind(t *testing.T) {
	q := `(?s)^\s*SELECT\s+user_id,\s*expires_at,\s*created_at\s+FROM\s+sessions\s+WHERE\s+token\s*=\s*\$1\s*$`

	t.Run("found", func(t *testing.T) {
		repo, mock, db := newRepoWithMock(t)
		defer db.Close()

		expires := time.Now().Add(10 * time.Minute)
		mock.ExpectQuery(q).WithArgs("tok123").
			WillReturnRows(sqlmock.NewRows([]string{"user_id", "expires_at", "created_at"}).AddRow("u1", expires, time.Now()))

		got, err := repo.Find(context.Background(), "tok123")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got.UserID != "u1" || got.Token != "tok123" || !got.ExpiresAt.Equal(expires) {
			t.Fatalf("unexpected row: %+v", got)
		}
	})

	t.Run("not found", func(t *testing.T) {
		repo, mock, db := newRepoWithMock(t)
		defer db.Close()

		mock.ExpectQuery(q).WithArgs("missing").WillReturnError(sql.ErrNoRows)

		if _, err := repo.Find(context.Background(), "missing"); !errors.Is(err, common.ErrorNotFound) {
			t.Fatalf("want common.ErrorNotFound, got %v", err)
		}
	})
}

func TestRotate_Commits(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(deleteQ).WithArgs("old", "u1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertQ).WithArgs("u1", "new", sqlmock.AnyArg()).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.Rotate(context.Background(), "old", "new", "u1", time.Hour); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRotate_ReusedTokenRollsBack(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(deleteQ).WithArgs("old", "u1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.Rotate(context.Background(), "old", "new", "u1", time.Hour)
	if !errors.Is(err, common.ErrorNotFound) {
		t.Fatalf("want common.ErrorNotFound, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestRotate_InsertErrorRollsBack(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectBegin()
	mock.ExpectExec(deleteQ).WithArgs("old", "u1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(insertQ).WillReturnError(errors.New("db down"))
	mock.ExpectRollback()

	err := repo.Rotate(context.Background(), "old", "new", "u1", time.Hour)
	if err == nil || !regexp.MustCompile(`db error: .*db down`).MatchString(err.Error()) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestDeleteByUser(t *testing.T) {
	repo, mock, db := newRepoWithMock(t)
	defer db.Close()

	mock.ExpectExec(`(?s)^DELETE\s+FROM\s+sessions\s+WHERE\s+user_id\s*=\s*\$1$`).
		WithArgs("u1").WillReturnResult(sqlmock.NewResult(0, 3))

	if err := repo.DeleteByUser(context.Background(), "u1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
