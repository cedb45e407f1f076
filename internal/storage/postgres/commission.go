package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/bookproof/bookproof/internal/domain/commission"
)

var _ commission.Repository = (*CommissionRepository)(nil)

// CommissionRepository implements commission.Repository backed by PostgreSQL.
type CommissionRepository struct {
	pool *pgxpool.Pool
}

// NewCommissionRepository returns a CommissionRepository using the given pool.
func NewCommissionRepository(pool *pgxpool.Pool) *CommissionRepository {
	return &CommissionRepository{pool: pool}
}

const commissionColumns = `id, affiliate_id, purchase_id, author_id,
	purchase_amount, rate, amount, status, created_at,
	approved_at, paid_at, cancelled_at`

func scanCommission(row pgx.Row) (*commission.Commission, error) {
	var c commission.Commission
	err := row.Scan(
		&c.ID, &c.AffiliateID, &c.PurchaseID, &c.AuthorID,
		&c.PurchaseAmount, &c.Rate, &c.Amount, &c.Status, &c.CreatedAt,
		&c.ApprovedAt, &c.PaidAt, &c.CancelledAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// Create records a new commission. The (affiliate_id, purchase_id) unique
// index makes duplicate recording for the same purchase a no-op failure.
func (r *CommissionRepository) Create(ctx context.Context, c *commission.Commission) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO affiliate_commissions (id, affiliate_id, purchase_id, author_id,
			purchase_amount, rate, amount, status, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.ID, c.AffiliateID, c.PurchaseID, c.AuthorID,
		c.PurchaseAmount, c.Rate, c.Amount, c.Status, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating commission for purchase %q: %w", c.PurchaseID, err)
	}
	return nil
}

// GetByID returns a commission by id, or commission.ErrNotFound.
func (r *CommissionRepository) GetByID(ctx context.Context, id string) (*commission.Commission, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+commissionColumns+` FROM affiliate_commissions WHERE id = $1`, id)

	c, err := scanCommission(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, commission.ErrNotFound
		}
		return nil, fmt.Errorf("getting commission %q: %w", id, err)
	}
	return c, nil
}

// SetStatus updates the status and stamps the matching lifecycle timestamp.
func (r *CommissionRepository) SetStatus(ctx context.Context, id string, status commission.Status, at time.Time) error {
	var column string
	switch status {
	case commission.StatusApproved:
		column = "approved_at"
	case commission.StatusPaid:
		column = "paid_at"
	case commission.StatusCancelled:
		column = "cancelled_at"
	default:
		return fmt.Errorf("no timestamp column for status %q", status)
	}

	tag, err := r.pool.Exec(ctx,
		`UPDATE affiliate_commissions SET status = $2, `+column+` = $3 WHERE id = $1`,
		id, status, at)
	if err != nil {
		return fmt.Errorf("setting commission %q status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return commission.ErrNotFound
	}
	return nil
}

// ListByAffiliate returns the affiliate's commissions, newest first.
func (r *CommissionRepository) ListByAffiliate(ctx context.Context, affiliateID string) ([]commission.Commission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+commissionColumns+` FROM affiliate_commissions
		 WHERE affiliate_id = $1 ORDER BY created_at DESC`, affiliateID)
	if err != nil {
		return nil, fmt.Errorf("listing commissions for %q: %w", affiliateID, err)
	}
	defer rows.Close()

	return collectCommissions(rows)
}

// ListPendingCreatedBefore returns pending commissions created at or before
// the cutoff, oldest first. Feeds the holding period sweeper.
func (r *CommissionRepository) ListPendingCreatedBefore(ctx context.Context, cutoff time.Time) ([]commission.Commission, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+commissionColumns+` FROM affiliate_commissions
		 WHERE status = 'pending' AND created_at <= $1
		 ORDER BY created_at`, cutoff)
	if err != nil {
		return nil, fmt.Errorf("listing matured pending commissions: %w", err)
	}
	defer rows.Close()

	return collectCommissions(rows)
}

// SumApprovedUnpaid returns the total of the affiliate's approved commissions
// that have not yet been attached to a payout.
func (r *CommissionRepository) SumApprovedUnpaid(ctx context.Context, affiliateID string) (decimal.Decimal, error) {
	var sum decimal.Decimal
	err := r.pool.QueryRow(ctx, `
		SELECT COALESCE(SUM(amount), 0)
		FROM affiliate_commissions
		WHERE affiliate_id = $1 AND status = 'approved'`, affiliateID,
	).Scan(&sum)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("summing approved commissions for %q: %w", affiliateID, err)
	}
	return sum, nil
}

func collectCommissions(rows pgx.Rows) ([]commission.Commission, error) {
	var out []commission.Commission
	for rows.Next() {
		c, err := scanCommission(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning commission: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}
