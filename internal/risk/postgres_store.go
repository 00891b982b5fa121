package risk

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/gothainayaki-coder/Nexora-Fraud-Prediction/internal/entity"
)

// PostgresStore reads fraud reports from PostgreSQL. The reports table is
// owned by the reporting service; this store only queries it.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed report store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const findActiveReportsQuery = `
		SELECT target_entity, category, created_at, is_active
		FROM fraud_reports
		WHERE target_entity ~* $1
		  AND is_active = TRUE
		  AND created_at >= $2
		ORDER BY created_at DESC
		LIMIT $3`

// FindActiveReports matches key as an escaped, case-insensitive pattern so
// identifiers containing regex metacharacters cannot widen the search.
func (s *PostgresStore) FindActiveReports(ctx context.Context, key string, since time.Time, limit int) ([]Report, error) {
	rows, err := s.db.QueryContext(ctx, findActiveReportsQuery, entity.EscapeForSearch(key), since, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer func() { _ = rows.Close() }()

	var result []Report
	for rows.Next() {
		var r Report
		var category sql.NullString
		if err := rows.Scan(&r.TargetEntity, &category, &r.CreatedAt, &r.IsActive); err != nil {
			continue
		}
		r.Category = category.String
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return result, nil
}

// Ping reports whether the database is reachable.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

var _ ReportStore = (*PostgresStore)(nil)
