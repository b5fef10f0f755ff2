package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/gbhide1993/mina-merchant-webhook/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PostgresMerchantDirectory struct {
	pool *pgxpool.Pool
}

func NewPostgresMerchantDirectory(pool *pgxpool.Pool) *PostgresMerchantDirectory {
	return &PostgresMerchantDirectory{pool: pool}
}

// Resolve finds or creates the merchant row for a phone. The lookup is an
// optimization; the unique constraint on phone decides races. A concurrent
// first contact loses the insert, hits the conflict, and re-fetches the
// winner's row, so every caller sees the same merchant.
func (d *PostgresMerchantDirectory) Resolve(ctx context.Context, phone string) (*domain.Merchant, error) {
	merchant, err := d.getByPhone(ctx, phone)
	if err == nil {
		return merchant, nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	var created domain.Merchant
	err = d.pool.QueryRow(ctx, `
		INSERT INTO merchants (phone)
		VALUES ($1)
		ON CONFLICT (phone) DO NOTHING
		RETURNING id, phone, created_at
	`, phone).Scan(&created.ID, &created.Phone, &created.CreatedAt)
	if err == nil {
		return &created, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("insert merchant: %w", err)
	}

	// Lost the race: the conflicting row exists now.
	return d.getByPhone(ctx, phone)
}

func (d *PostgresMerchantDirectory) GetByID(ctx context.Context, merchantID int64) (*domain.Merchant, error) {
	var merchant domain.Merchant
	err := d.pool.QueryRow(ctx, `
		SELECT id, phone, created_at
		FROM merchants
		WHERE id = $1
	`, merchantID).Scan(&merchant.ID, &merchant.Phone, &merchant.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query merchant: %w", err)
	}
	return &merchant, nil
}

func (d *PostgresMerchantDirectory) getByPhone(ctx context.Context, phone string) (*domain.Merchant, error) {
	var merchant domain.Merchant
	err := d.pool.QueryRow(ctx, `
		SELECT id, phone, created_at
		FROM merchants
		WHERE phone = $1
	`, phone).Scan(&merchant.ID, &merchant.Phone, &merchant.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("query merchant by phone: %w", err)
	}
	return &merchant, nil
}
