package principal

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

// PostgresStore persists principal profiles in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore constructs a PostgreSQL-backed principal store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const profileColumns = `
	id, external_id, display_name, role, tier, department, namespace,
	credential_id, first_contact_at, last_contact_at, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, p Profile) (Profile, error) {
	query := `
		INSERT INTO principals (
			id, external_id, display_name, role, tier, department, namespace,
			credential_id, first_contact_at, last_contact_at, created_at, updated_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $9, $10, $10)
		RETURNING ` + profileColumns

	row := s.db.QueryRowContext(ctx, query,
		p.ID, p.ExternalID, p.DisplayName, p.Role.String(), p.Tier.String(),
		p.Department, p.Namespace, nullable(p.CredentialID),
		p.FirstContactAt, time.Now(),
	)
	created, err := scanProfile(row)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
			return Profile{}, sentinel.ErrConflict
		}
		return Profile{}, err
	}
	return created, nil
}

func (s *PostgresStore) FindByExternalID(ctx context.Context, externalID string) (Profile, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+profileColumns+` FROM principals WHERE external_id = $1`, externalID)
	return scanProfile(row)
}

func (s *PostgresStore) Update(ctx context.Context, externalID string, patch UpdateInput) (Profile, error) {
	sets := []string{"updated_at = now()"}
	args := []any{externalID}
	add := func(column string, value any) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.DisplayName != nil {
		add("display_name", *patch.DisplayName)
	}
	if patch.Role != nil {
		add("role", patch.Role.String())
	}
	if patch.Tier != nil {
		add("tier", patch.Tier.String())
	}
	if patch.Department != nil {
		add("department", *patch.Department)
	}

	query := `UPDATE principals SET ` + strings.Join(sets, ", ") +
		` WHERE external_id = $1 RETURNING ` + profileColumns
	row := s.db.QueryRowContext(ctx, query, args...)
	return scanProfile(row)
}

func (s *PostgresStore) SetNamespace(ctx context.Context, externalID, namespace string) (Profile, error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE principals
		SET namespace = $2, updated_at = now()
		WHERE external_id = $1
		RETURNING `+profileColumns, externalID, namespace)
	return scanProfile(row)
}

func (s *PostgresStore) TouchContact(ctx context.Context, externalID string, at time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE principals SET last_contact_at = $2 WHERE external_id = $1`,
		externalID, at)
	if err != nil {
		return fmt.Errorf("touch principal contact: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("touch principal contact: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *PostgresStore) Stats(ctx context.Context) (Stats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role, tier, count(*) FROM principals GROUP BY role, tier`)
	if err != nil {
		return Stats{}, fmt.Errorf("principal stats: %w", err)
	}
	defer rows.Close()

	stats := Stats{
		ByRole: make(map[string]int),
		ByTier: make(map[string]int),
	}
	for rows.Next() {
		var role, tier string
		var count int
		if err := rows.Scan(&role, &tier, &count); err != nil {
			return Stats{}, fmt.Errorf("scan principal stats: %w", err)
		}
		stats.Total += count
		stats.ByRole[role] += count
		stats.ByTier[tier] += count
	}
	return stats, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (Profile, error) {
	var p Profile
	var role, tier string
	var department, credentialID sql.NullString

	err := row.Scan(
		&p.ID, &p.ExternalID, &p.DisplayName, &role, &tier, &department,
		&p.Namespace, &credentialID, &p.FirstContactAt, &p.LastContactAt,
		&p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Profile{}, sentinel.ErrNotFound
		}
		return Profile{}, fmt.Errorf("scan principal: %w", err)
	}

	p.Role, err = access.ParseRole(role)
	if err != nil {
		return Profile{}, fmt.Errorf("scan principal role: %w", err)
	}
	p.Tier, err = access.ParseTier(tier)
	if err != nil {
		return Profile{}, fmt.Errorf("scan principal tier: %w", err)
	}
	p.Department = department.String
	p.CredentialID = credentialID.String
	return p, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
