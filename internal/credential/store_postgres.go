package credential

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"askgate/pkg/platform/sentinel"
)

// PostgresStore persists credentials in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore constructs a PostgreSQL-backed credential store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const credentialColumns = `
	id, employee_id, full_name, email, phone, department, team, position,
	hire_date, location, status, private_id_hash, metadata, created_by,
	created_at, updated_at, verified_at`

func (s *PostgresStore) Upsert(ctx context.Context, cred Credential) (Credential, error) {
	metadata, err := json.Marshal(cred.Metadata)
	if err != nil {
		return Credential{}, fmt.Errorf("marshal credential metadata: %w", err)
	}
	query := `
		INSERT INTO credentials (
			id, employee_id, full_name, email, phone, department, team, position,
			hire_date, location, status, private_id_hash, metadata, created_by,
			created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $15)
		ON CONFLICT (employee_id) DO UPDATE SET
			full_name = EXCLUDED.full_name,
			email = EXCLUDED.email,
			phone = EXCLUDED.phone,
			department = EXCLUDED.department,
			team = EXCLUDED.team,
			position = EXCLUDED.position,
			hire_date = EXCLUDED.hire_date,
			location = EXCLUDED.location,
			private_id_hash = EXCLUDED.private_id_hash,
			metadata = EXCLUDED.metadata,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + credentialColumns

	row := s.db.QueryRowContext(ctx, query,
		cred.ID, cred.EmployeeID, cred.FullName, cred.Email, cred.Phone,
		cred.Department, cred.Team, cred.Position, cred.HireDate, cred.Location,
		string(cred.Status), cred.PrivateIDHash, metadata, cred.CreatedBy,
		time.Now(),
	)
	return scanCredential(row)
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (Credential, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+credentialColumns+` FROM credentials WHERE id = $1`, id)
	return scanCredential(row)
}

func (s *PostgresStore) FindByEmail(ctx context.Context, email string) (Credential, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+credentialColumns+` FROM credentials WHERE lower(email) = lower($1)`,
		strings.TrimSpace(email))
	return scanCredential(row)
}

func (s *PostgresStore) FindByEmployeeID(ctx context.Context, employeeID string) (Credential, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+credentialColumns+` FROM credentials WHERE employee_id = $1`, employeeID)
	return scanCredential(row)
}

func (s *PostgresStore) Update(ctx context.Context, id string, patch UpdateInput) (Credential, error) {
	// Build a sparse SET clause; nil patch fields stay untouched.
	sets := []string{"updated_at = now()"}
	args := []any{id}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.FullName != nil {
		add("full_name", *patch.FullName)
	}
	if patch.Email != nil {
		add("email", *patch.Email)
	}
	if patch.Phone != nil {
		add("phone", *patch.Phone)
	}
	if patch.Department != nil {
		add("department", *patch.Department)
	}
	if patch.Team != nil {
		add("team", *patch.Team)
	}
	if patch.Position != nil {
		add("position", *patch.Position)
	}
	if patch.Location != nil {
		add("location", *patch.Location)
	}
	if patch.Status != nil {
		add("status", string(*patch.Status))
		if *patch.Status == StatusVerified {
			sets = append(sets, "verified_at = COALESCE(verified_at, now())")
		}
	}
	if patch.Metadata != nil {
		metadata, err := json.Marshal(patch.Metadata)
		if err != nil {
			return Credential{}, fmt.Errorf("marshal credential metadata: %w", err)
		}
		add("metadata", metadata)
	}

	query := `UPDATE credentials SET ` + strings.Join(sets, ", ") +
		` WHERE id = $1 RETURNING ` + credentialColumns
	row := s.db.QueryRowContext(ctx, query, args...)
	return scanCredential(row)
}

func (s *PostgresStore) Stats(ctx context.Context) (Stats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT status, count(*) FROM credentials GROUP BY status`)
	if err != nil {
		return Stats{}, fmt.Errorf("credential stats: %w", err)
	}
	defer rows.Close()

	var stats Stats
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return Stats{}, fmt.Errorf("scan credential stats: %w", err)
		}
		stats.Total += count
		switch Status(status) {
		case StatusPending:
			stats.Pending = count
		case StatusVerified:
			stats.Verified = count
		case StatusSuspended:
			stats.Suspended = count
		case StatusInactive:
			stats.Inactive = count
		}
	}
	return stats, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCredential(row rowScanner) (Credential, error) {
	var cred Credential
	var status string
	var metadata []byte
	var hireDate, verifiedAt sql.NullTime
	var email, phone, department, team, position, location, hash, createdBy sql.NullString

	err := row.Scan(
		&cred.ID, &cred.EmployeeID, &cred.FullName, &email, &phone,
		&department, &team, &position, &hireDate, &location, &status,
		&hash, &metadata, &createdBy, &cred.CreatedAt, &cred.UpdatedAt, &verifiedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Credential{}, sentinel.ErrNotFound
		}
		return Credential{}, fmt.Errorf("scan credential: %w", err)
	}

	cred.Status = Status(status)
	cred.Email = email.String
	cred.Phone = phone.String
	cred.Department = department.String
	cred.Team = team.String
	cred.Position = position.String
	cred.Location = location.String
	cred.PrivateIDHash = hash.String
	cred.CreatedBy = createdBy.String
	if hireDate.Valid {
		cred.HireDate = &hireDate.Time
	}
	if verifiedAt.Valid {
		cred.VerifiedAt = &verifiedAt.Time
	}
	if len(metadata) > 0 {
		if err := json.Unmarshal(metadata, &cred.Metadata); err != nil {
			return Credential{}, fmt.Errorf("unmarshal credential metadata: %w", err)
		}
	}
	return cred, nil
}
