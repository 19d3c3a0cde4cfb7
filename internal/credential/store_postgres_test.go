package credential

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"askgate/pkg/platform/sentinel"
)

func newMockStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return NewPostgresStore(db), mock
}

func credentialRows(cred Credential) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "employee_id", "full_name", "email", "phone", "department", "team",
		"position", "hire_date", "location", "status", "private_id_hash",
		"metadata", "created_by", "created_at", "updated_at", "verified_at",
	}).AddRow(
		cred.ID, cred.EmployeeID, cred.FullName, cred.Email, cred.Phone,
		cred.Department, cred.Team, cred.Position, nil, cred.Location,
		string(cred.Status), cred.PrivateIDHash, []byte(`{"source":"hr"}`),
		cred.CreatedBy, cred.CreatedAt, cred.UpdatedAt, nil,
	)
}

func TestPostgresStoreFindByID(t *testing.T) {
	t.Run("scans a full row", func(t *testing.T) {
		store, mock := newMockStore(t)
		now := time.Now()
		want := Credential{
			ID:         "cred-1",
			EmployeeID: "EMP-001",
			FullName:   "Kim Jiwoo",
			Email:      "jiwoo@example.com",
			Department: "Engineering",
			Status:     StatusVerified,
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		mock.ExpectQuery(`SELECT(.|\n)*FROM credentials WHERE id = \$1`).
			WithArgs("cred-1").
			WillReturnRows(credentialRows(want))

		got, err := store.FindByID(context.Background(), "cred-1")
		require.NoError(t, err)
		assert.Equal(t, want.EmployeeID, got.EmployeeID)
		assert.Equal(t, StatusVerified, got.Status)
		assert.Equal(t, map[string]string{"source": "hr"}, got.Metadata)
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("maps missing rows to the not-found sentinel", func(t *testing.T) {
		store, mock := newMockStore(t)
		mock.ExpectQuery(`SELECT(.|\n)*FROM credentials WHERE id = \$1`).
			WithArgs("missing").
			WillReturnRows(sqlmock.NewRows([]string{"id"}))

		_, err := store.FindByID(context.Background(), "missing")
		assert.ErrorIs(t, err, sentinel.ErrNotFound)
	})
}

func TestPostgresStoreStats(t *testing.T) {
	store, mock := newMockStore(t)
	mock.ExpectQuery(`SELECT status, count\(\*\) FROM credentials GROUP BY status`).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("pending", 3).
			AddRow("verified", 5).
			AddRow("inactive", 1))

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Stats{Total: 9, Pending: 3, Verified: 5, Inactive: 1}, stats)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStoreUpdateBuildsSparseSet(t *testing.T) {
	store, mock := newMockStore(t)
	name := "Renamed"
	status := StatusVerified

	mock.ExpectQuery(`UPDATE credentials SET updated_at = now\(\), full_name = \$2, status = \$3, verified_at = COALESCE`).
		WithArgs("cred-2", "Renamed", "verified").
		WillReturnRows(credentialRows(Credential{
			ID:         "cred-2",
			EmployeeID: "EMP-002",
			FullName:   "Renamed",
			Status:     StatusVerified,
			CreatedAt:  time.Now(),
			UpdatedAt:  time.Now(),
		}))

	got, err := store.Update(context.Background(), "cred-2", UpdateInput{
		FullName: &name,
		Status:   &status,
	})
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.FullName)
	require.NoError(t, mock.ExpectationsWereMet())
}
