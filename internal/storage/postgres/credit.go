package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bookproof/bookproof/internal/domain/credit"
)

var _ credit.Repository = (*CreditRepository)(nil)

// CreditRepository implements credit.Repository backed by PostgreSQL.
type CreditRepository struct {
	pool *pgxpool.Pool
}

// NewCreditRepository returns a CreditRepository that uses the given pool.
func NewCreditRepository(pool *pgxpool.Pool) *CreditRepository {
	return &CreditRepository{pool: pool}
}

const purchaseColumns = `id, author_id, credits, amount_paid, currency,
	coupon_code, discount, purchased_at, expires_at, activation_deadline,
	activated, activated_at, payment_status`

func scanPurchase(row pgx.Row) (*credit.Purchase, error) {
	var p credit.Purchase
	err := row.Scan(
		&p.ID, &p.AuthorID, &p.Credits, &p.AmountPaid, &p.Currency,
		&p.CouponCode, &p.Discount, &p.PurchasedAt, &p.ExpiresAt, &p.ActivationDeadline,
		&p.Activated, &p.ActivatedAt, &p.PaymentStatus,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create persists a new credit purchase ledger entry.
func (r *CreditRepository) Create(ctx context.Context, p *credit.Purchase) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO credit_purchases (id, author_id, credits, amount_paid, currency,
			coupon_code, discount, purchased_at, expires_at, activation_deadline,
			payment_status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		p.ID, p.AuthorID, p.Credits, p.AmountPaid, p.Currency,
		p.CouponCode, p.Discount, p.PurchasedAt, p.ExpiresAt, p.ActivationDeadline,
		p.PaymentStatus,
	)
	if err != nil {
		return fmt.Errorf("creating credit purchase %q: %w", p.ID, err)
	}
	return nil
}

// GetByID returns a purchase by id, or credit.ErrPurchaseNotFound.
func (r *CreditRepository) GetByID(ctx context.Context, id string) (*credit.Purchase, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+purchaseColumns+` FROM credit_purchases WHERE id = $1`, id)

	p, err := scanPurchase(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, credit.ErrPurchaseNotFound
		}
		return nil, fmt.Errorf("getting credit purchase %q: %w", id, err)
	}
	return p, nil
}

// SetPaymentStatus updates the purchase's payment status.
func (r *CreditRepository) SetPaymentStatus(ctx context.Context, id string, status credit.PaymentStatus) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE credit_purchases SET payment_status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("setting payment status for %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return credit.ErrPurchaseNotFound
	}
	return nil
}

// MarkActivated flips the purchase to activated at the given time.
func (r *CreditRepository) MarkActivated(ctx context.Context, id string, at time.Time) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE credit_purchases SET activated = true, activated_at = $2 WHERE id = $1`,
		id, at)
	if err != nil {
		return fmt.Errorf("activating purchase %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return credit.ErrPurchaseNotFound
	}
	return nil
}

// ListByAuthor returns all of an author's purchases, oldest first.
func (r *CreditRepository) ListByAuthor(ctx context.Context, authorID string) ([]credit.Purchase, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+purchaseColumns+` FROM credit_purchases
		 WHERE author_id = $1 ORDER BY purchased_at`, authorID)
	if err != nil {
		return nil, fmt.Errorf("listing purchases for %q: %w", authorID, err)
	}
	defer rows.Close()

	var out []credit.Purchase
	for rows.Next() {
		p, err := scanPurchase(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning purchase: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// ListUsageByAuthor returns the usage records against the author's purchases.
func (r *CreditRepository) ListUsageByAuthor(ctx context.Context, authorID string) ([]credit.UsageRecord, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT u.id, u.purchase_id, u.credits, u.used_at
		FROM credit_usages u
		JOIN credit_purchases p ON p.id = u.purchase_id
		WHERE p.author_id = $1
		ORDER BY u.used_at`, authorID)
	if err != nil {
		return nil, fmt.Errorf("listing credit usage for %q: %w", authorID, err)
	}
	defer rows.Close()

	var out []credit.UsageRecord
	for rows.Next() {
		var u credit.UsageRecord
		if err := rows.Scan(&u.ID, &u.PurchaseID, &u.Credits, &u.UsedAt); err != nil {
			return nil, fmt.Errorf("scanning credit usage: %w", err)
		}
		out = append(out, u)
	}
	return out, rows.Err()
}
