package code

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"askgate/internal/access"
	"askgate/pkg/platform/sentinel"
)

// PostgresStore persists verification codes in PostgreSQL. Consume relies on
// a conditional UPDATE so the use-count check and increment are one statement.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore constructs a PostgreSQL-backed code store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const codeColumns = `
	id, value, status, max_uses, current_uses, expires_at, role, tier,
	department, namespace, credential_id, require_match, match_fields,
	used_by, created_by, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, c Code) (Code, error) {
	query := `
		INSERT INTO verification_codes (
			id, value, status, max_uses, current_uses, expires_at, role, tier,
			department, namespace, credential_id, require_match, match_fields,
			used_by, created_by, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $16)
		RETURNING ` + codeColumns

	row := s.db.QueryRowContext(ctx, query,
		c.ID, c.Value, string(c.Status), c.MaxUses, c.CurrentUses, c.ExpiresAt,
		c.Role.String(), c.Tier.String(), c.Department, c.Namespace,
		nullable(c.CredentialID), c.RequireMatch, pq.Array(c.MatchFields),
		pq.Array(c.UsedBy), c.CreatedBy, time.Now(),
	)
	created, err := scanCode(row)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return Code{}, sentinel.ErrConflict
		}
		return Code{}, err
	}
	return created, nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id string) (Code, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+codeColumns+` FROM verification_codes WHERE id = $1`, id)
	return scanCode(row)
}

func (s *PostgresStore) FindByValue(ctx context.Context, value string) (Code, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+codeColumns+` FROM verification_codes WHERE value = $1`, value)
	return scanCode(row)
}

func (s *PostgresStore) List(ctx context.Context, filter ListFilter) ([]Code, error) {
	where := []string{"TRUE"}
	args := []any{}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.CreatedBy != "" {
		args = append(args, filter.CreatedBy)
		where = append(where, fmt.Sprintf("created_by = $%d", len(args)))
	}
	query := `SELECT ` + codeColumns + ` FROM verification_codes WHERE ` +
		strings.Join(where, " AND ") + ` ORDER BY created_at DESC`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list codes: %w", err)
	}
	defer rows.Close()

	var out []Code
	for rows.Next() {
		c, err := scanCode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// Consume performs the compare-and-swap redemption write. The WHERE clause
// carries both the status and the expected use count so two racing callers
// can never both succeed on the same use slot.
func (s *PostgresStore) Consume(ctx context.Context, id string, expectedUses int, usedBy string, at time.Time) (Code, error) {
	query := `
		UPDATE verification_codes
		SET current_uses = current_uses + 1,
			used_by = array_append(used_by, $3),
			status = CASE WHEN max_uses > 0 AND current_uses + 1 >= max_uses THEN 'used' ELSE status END,
			updated_at = $4
		WHERE id = $1 AND status = 'active' AND current_uses = $2
		RETURNING ` + codeColumns

	row := s.db.QueryRowContext(ctx, query, id, expectedUses, usedBy, at)
	c, err := scanCode(row)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			// Row exists but the guard failed, or the row is gone. Either way
			// the caller re-reads, so conflate both into a conflict.
			return Code{}, sentinel.ErrConflict
		}
		return Code{}, err
	}
	return c, nil
}

func (s *PostgresStore) UpdateStatus(ctx context.Context, id string, status Status) (Code, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE verification_codes
		SET status = $2, updated_at = now()
		WHERE id = $1
		RETURNING `+codeColumns, id, string(status))
	return scanCode(row)
}

func (s *PostgresStore) ActiveValueExists(ctx context.Context, value string) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM verification_codes WHERE value = $1 AND status = 'active'
		)`, value).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check code value: %w", err)
	}
	return exists, nil
}

func (s *PostgresStore) Stats(ctx context.Context) (Stats, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT
			count(*),
			count(*) FILTER (WHERE status = 'active'),
			count(*) FILTER (WHERE status = 'used'),
			count(*) FILTER (WHERE status = 'expired'),
			count(*) FILTER (WHERE status = 'disabled'),
			COALESCE(sum(current_uses), 0)
		FROM verification_codes`)

	var stats Stats
	err := row.Scan(&stats.Total, &stats.Active, &stats.Used, &stats.Expired,
		&stats.Disabled, &stats.Redemptions)
	if err != nil {
		return Stats{}, fmt.Errorf("code stats: %w", err)
	}
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCode(row rowScanner) (Code, error) {
	var c Code
	var status, role, tier string
	var department, namespace, credentialID sql.NullString
	var expiresAt sql.NullTime
	var matchFields, usedBy pq.StringArray

	err := row.Scan(
		&c.ID, &c.Value, &status, &c.MaxUses, &c.CurrentUses, &expiresAt,
		&role, &tier, &department, &namespace, &credentialID, &c.RequireMatch,
		&matchFields, &usedBy, &c.CreatedBy, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Code{}, sentinel.ErrNotFound
		}
		return Code{}, fmt.Errorf("scan code: %w", err)
	}

	c.Status = Status(status)
	c.Role, err = access.ParseRole(role)
	if err != nil {
		return Code{}, fmt.Errorf("scan code role: %w", err)
	}
	c.Tier, err = access.ParseTier(tier)
	if err != nil {
		return Code{}, fmt.Errorf("scan code tier: %w", err)
	}
	c.Department = department.String
	c.Namespace = namespace.String
	c.CredentialID = credentialID.String
	if expiresAt.Valid {
		c.ExpiresAt = &expiresAt.Time
	}
	c.MatchFields = []string(matchFields)
	c.UsedBy = []string(usedBy)
	return c, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
