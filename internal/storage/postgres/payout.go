package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/bookproof/bookproof/internal/domain/payout"
)

var _ payout.Repository = (*PayoutRepository)(nil)

// PayoutRepository implements payout.Repository backed by PostgreSQL.
type PayoutRepository struct {
	pool *pgxpool.Pool
}

// NewPayoutRepository returns a PayoutRepository that uses the given pool.
func NewPayoutRepository(pool *pgxpool.Pool) *PayoutRepository {
	return &PayoutRepository{pool: pool}
}

const payoutColumns = `id, affiliate_id, amount, method, masked_details,
	status, transaction_id, requested_at, resolved_at`

func scanPayout(row pgx.Row) (*payout.Request, error) {
	var p payout.Request
	err := row.Scan(
		&p.ID, &p.AffiliateID, &p.Amount, &p.Method, &p.MaskedDetails,
		&p.Status, &p.TransactionID, &p.RequestedAt, &p.ResolvedAt,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Create inserts a new payout request.
func (r *PayoutRepository) Create(ctx context.Context, p *payout.Request) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO payout_requests (id, affiliate_id, amount, method,
			masked_details, status, requested_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		p.ID, p.AffiliateID, p.Amount, p.Method,
		p.MaskedDetails, p.Status, p.RequestedAt,
	)
	if err != nil {
		return fmt.Errorf("creating payout request %q: %w", p.ID, err)
	}
	return nil
}

// GetByID returns a payout request by id, or payout.ErrNotFound.
func (r *PayoutRepository) GetByID(ctx context.Context, id string) (*payout.Request, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+payoutColumns+` FROM payout_requests WHERE id = $1`, id)

	p, err := scanPayout(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, payout.ErrNotFound
		}
		return nil, fmt.Errorf("getting payout request %q: %w", id, err)
	}
	return p, nil
}

// SetStatus updates the request's status, transaction id and resolution time.
func (r *PayoutRepository) SetStatus(ctx context.Context, id string, status payout.Status, transactionID string, at time.Time) error {
	tag, err := r.pool.Exec(ctx, `
		UPDATE payout_requests
		SET status = $2, transaction_id = $3, resolved_at = $4
		WHERE id = $1`,
		id, status, transactionID, at)
	if err != nil {
		return fmt.Errorf("setting payout %q status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return payout.ErrNotFound
	}
	return nil
}

// ListByAffiliate returns the affiliate's payout requests, newest first.
func (r *PayoutRepository) ListByAffiliate(ctx context.Context, affiliateID string) ([]payout.Request, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+payoutColumns+` FROM payout_requests
		 WHERE affiliate_id = $1 ORDER BY requested_at DESC`, affiliateID)
	if err != nil {
		return nil, fmt.Errorf("listing payout requests for %q: %w", affiliateID, err)
	}
	defer rows.Close()

	var out []payout.Request
	for rows.Next() {
		p, err := scanPayout(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning payout request: %w", err)
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// MarkCommissionsPaid marks the affiliate's oldest approved commissions as
// paid until their running total reaches the payout amount, linking each to
// the payout. Runs in one statement so a crashed payout never half-marks.
func (r *PayoutRepository) MarkCommissionsPaid(ctx context.Context, affiliateID, payoutID string, upTo decimal.Decimal) error {
	_, err := r.pool.Exec(ctx, `
		UPDATE affiliate_commissions
		SET status = 'paid', paid_at = now(), payout_id = $2
		WHERE id IN (
			SELECT id FROM (
				SELECT id,
				       SUM(amount) OVER (ORDER BY created_at, id) AS running
				FROM affiliate_commissions
				WHERE affiliate_id = $1 AND status = 'approved'
			) ranked
			WHERE running <= $3
		)`,
		affiliateID, payoutID, upTo)
	if err != nil {
		return fmt.Errorf("marking commissions paid for payout %q: %w", payoutID, err)
	}
	return nil
}
