package audit

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PGRepository reads audit_logs from PostgreSQL.
type PGRepository struct {
	pool *pgxpool.Pool
}

// NewPGRepository constructs a repository.
func NewPGRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{pool: pool}
}

// TimelineWindow returns at most limit rows matching the filters, newest
// first. Zero-valued filters are wildcards; the query collapses them with
// NULL guards so one statement serves every combination.
func (r *PGRepository) TimelineWindow(ctx context.Context, filters TimelineFilters, offset, limit int) ([]TimelineRow, error) {
	var operation *string
	if filters.Operation != "" {
		operation = &filters.Operation
	}
	var from, to any
	if !filters.From.IsZero() {
		from = filters.From
	}
	if !filters.To.IsZero() {
		to = filters.To
	}

	rows, err := r.pool.Query(ctx, `
		SELECT occurred_at, operation, actor_id, snapshot
		FROM audit_logs
		WHERE ($1::timestamptz IS NULL OR occurred_at >= $1)
		  AND ($2::timestamptz IS NULL OR occurred_at <= $2)
		  AND ($3::uuid IS NULL OR actor_id = $3)
		  AND ($4::text IS NULL OR operation = $4)
		ORDER BY occurred_at DESC, id DESC
		OFFSET $5 LIMIT $6`,
		from, to, filters.ActorID, operation, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("audit: timeline window: %w", err)
	}
	defer rows.Close()

	var result []TimelineRow
	for rows.Next() {
		var (
			row TimelineRow
			raw []byte
		)
		if err := rows.Scan(&row.At, &row.Operation, &row.ActorID, &raw); err != nil {
			return nil, fmt.Errorf("audit: scan timeline row: %w", err)
		}
		if err := json.Unmarshal(raw, &row.Snapshot); err != nil {
			return nil, fmt.Errorf("audit: decode snapshot: %w", err)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}
