package query

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// PostgresLogStore persists the query log in PostgreSQL.
type PostgresLogStore struct {
	db *sql.DB
}

// NewPostgresLogStore constructs a PostgreSQL-backed query log.
func NewPostgresLogStore(db *sql.DB) *PostgresLogStore {
	return &PostgresLogStore{db: db}
}

func (s *PostgresLogStore) Append(ctx context.Context, rec Record) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO query_log (
			id, principal_id, external_id, question, namespaces, answer,
			status, latency_ms, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ID, rec.PrincipalID, rec.ExternalID, rec.Question,
		pq.Array(rec.Namespaces), rec.Answer, rec.Status, rec.LatencyMS,
		rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append query log: %w", err)
	}
	return nil
}

func (s *PostgresLogStore) CountSince(ctx context.Context, principalID string, since time.Time) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT count(*) FROM query_log
		WHERE principal_id = $1 AND created_at >= $2`,
		principalID, since).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count query log: %w", err)
	}
	return n, nil
}

func (s *PostgresLogStore) ListByPrincipal(ctx context.Context, principalID string, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, principal_id, external_id, question, namespaces, answer,
			status, latency_ms, created_at
		FROM query_log
		WHERE principal_id = $1
		ORDER BY created_at DESC
		LIMIT $2`, principalID, limit)
	if err != nil {
		return nil, fmt.Errorf("list query log: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var rec Record
		var namespaces pq.StringArray
		if err := rows.Scan(
			&rec.ID, &rec.PrincipalID, &rec.ExternalID, &rec.Question,
			&namespaces, &rec.Answer, &rec.Status, &rec.LatencyMS, &rec.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan query log: %w", err)
		}
		rec.Namespaces = []string(namespaces)
		out = append(out, rec)
	}
	return out, rows.Err()
}
