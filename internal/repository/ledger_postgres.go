package repository

import (
	"context"
	"fmt"

	"github.com/gbhide1993/mina-merchant-webhook/internal/domain"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresMemoryLedger struct {
	pool *pgxpool.Pool
}

func NewPostgresMemoryLedger(pool *pgxpool.Pool) *PostgresMemoryLedger {
	return &PostgresMemoryLedger{pool: pool}
}

func (l *PostgresMemoryLedger) Append(ctx context.Context, entry *domain.MemoryEntry) error {
	err := l.pool.QueryRow(ctx, `
		INSERT INTO merchant_memory (merchant_id, contact_id, source, content)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at
	`, entry.MerchantID, entry.ContactID, entry.Source, entry.Content).Scan(&entry.ID, &entry.CreatedAt)
	if err != nil {
		return fmt.Errorf("append memory entry: %w", err)
	}
	return nil
}

func (l *PostgresMemoryLedger) ListByMerchant(ctx context.Context, merchantID int64, limit int) ([]domain.MemoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := l.pool.Query(ctx, `
		SELECT id, merchant_id, contact_id, source, content, created_at
		FROM merchant_memory
		WHERE merchant_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2
	`, merchantID, limit)
	if err != nil {
		return nil, fmt.Errorf("list memory entries: %w", err)
	}
	defer rows.Close()

	entries := make([]domain.MemoryEntry, 0, limit)
	for rows.Next() {
		var entry domain.MemoryEntry
		if err := rows.Scan(
			&entry.ID,
			&entry.MerchantID,
			&entry.ContactID,
			&entry.Source,
			&entry.Content,
			&entry.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan memory entry: %w", err)
		}
		entries = append(entries, entry)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("iterate memory entries: %w", rows.Err())
	}
	return entries, nil
}
