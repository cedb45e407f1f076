package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/bookproof/bookproof/internal/domain/coupon"
)

var _ coupon.Repository = (*CouponRepository)(nil)

const uniqueViolation = "23505"

// CouponRepository implements coupon.Repository backed by PostgreSQL.
type CouponRepository struct {
	pool *pgxpool.Pool
}

// NewCouponRepository returns a CouponRepository that uses the given pool.
func NewCouponRepository(pool *pgxpool.Pool) *CouponRepository {
	return &CouponRepository{pool: pool}
}

const couponColumns = `id, code, discount_type, percent, amount, scope,
	min_purchase, min_credits, max_uses, max_uses_per_user, active,
	valid_from, valid_until, current_uses, created_at`

func scanCoupon(row pgx.Row) (*coupon.Coupon, error) {
	var c coupon.Coupon
	err := row.Scan(
		&c.ID, &c.Code, &c.DiscountType, &c.Percent, &c.Amount, &c.Scope,
		&c.MinPurchase, &c.MinCredits, &c.MaxUses, &c.MaxUsesPerUser, &c.Active,
		&c.ValidFrom, &c.ValidUntil, &c.CurrentUses, &c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// FindByCode looks up a coupon by its code, case-insensitively.
// Returns coupon.ErrNotFound when no such coupon exists.
func (r *CouponRepository) FindByCode(ctx context.Context, code string) (*coupon.Coupon, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+couponColumns+` FROM coupons WHERE UPPER(code) = UPPER($1)`, code)

	c, err := scanCoupon(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, coupon.ErrNotFound
		}
		return nil, fmt.Errorf("finding coupon by code %q: %w", code, err)
	}
	return c, nil
}

// Create inserts a new coupon.
func (r *CouponRepository) Create(ctx context.Context, c *coupon.Coupon) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO coupons (id, code, discount_type, percent, amount, scope,
			min_purchase, min_credits, max_uses, max_uses_per_user, active,
			valid_from, valid_until)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		c.ID, c.Code, c.DiscountType, c.Percent, c.Amount, c.Scope,
		c.MinPurchase, c.MinCredits, c.MaxUses, c.MaxUsesPerUser, c.Active,
		c.ValidFrom, c.ValidUntil,
	)
	if err != nil {
		return fmt.Errorf("creating coupon %q: %w", c.Code, err)
	}
	return nil
}

// Upsert inserts the coupon or refreshes its rule when the code exists.
// Used by the bulk import tool; usage counters are left untouched.
func (r *CouponRepository) Upsert(ctx context.Context, c *coupon.Coupon) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO coupons (id, code, discount_type, percent, amount, scope,
			min_purchase, min_credits, max_uses, max_uses_per_user, active,
			valid_from, valid_until)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (UPPER(code)) DO UPDATE SET
			discount_type = EXCLUDED.discount_type,
			percent = EXCLUDED.percent,
			amount = EXCLUDED.amount,
			scope = EXCLUDED.scope,
			min_purchase = EXCLUDED.min_purchase,
			min_credits = EXCLUDED.min_credits,
			max_uses = EXCLUDED.max_uses,
			max_uses_per_user = EXCLUDED.max_uses_per_user,
			active = EXCLUDED.active`,
		c.ID, c.Code, c.DiscountType, c.Percent, c.Amount, c.Scope,
		c.MinPurchase, c.MinCredits, c.MaxUses, c.MaxUsesPerUser, c.Active,
		c.ValidFrom, c.ValidUntil,
	)
	if err != nil {
		return fmt.Errorf("upserting coupon %q: %w", c.Code, err)
	}
	return nil
}

// Deactivate soft-disables a coupon by code.
func (r *CouponRepository) Deactivate(ctx context.Context, code string) error {
	tag, err := r.pool.Exec(ctx,
		`UPDATE coupons SET active = false WHERE UPPER(code) = UPPER($1)`, code)
	if err != nil {
		return fmt.Errorf("deactivating coupon %q: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return coupon.ErrNotFound
	}
	return nil
}

// List returns all coupons ordered by creation time, newest first.
func (r *CouponRepository) List(ctx context.Context) ([]coupon.Coupon, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT `+couponColumns+` FROM coupons ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing coupons: %w", err)
	}
	defer rows.Close()

	var out []coupon.Coupon
	for rows.Next() {
		c, err := scanCoupon(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning coupon: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// CountUserRedemptions returns how many times the user has redeemed the coupon.
func (r *CouponRepository) CountUserRedemptions(ctx context.Context, couponID, userID string) (int, error) {
	var count int
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM coupon_usages WHERE coupon_id = $1 AND user_id = $2`,
		couponID, userID,
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting redemptions: %w", err)
	}
	return count, nil
}

// Redeem consumes one use of the coupon inside a single serializable
// transaction: the coupon row is locked, both usage limits are re-checked
// under the lock, current_uses is incremented, and the usage record inserted.
// The unique (coupon_id, user_id, purchase_id) index turns duplicate
// redemption races into coupon.ErrAlreadyRedeemed.
func (r *CouponRepository) Redeem(ctx context.Context, p coupon.RedeemParams) error {
	tx, err := r.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return fmt.Errorf("begin redemption tx: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		couponID       string
		maxUses        int
		maxUsesPerUser int
		currentUses    int
	)
	err = tx.QueryRow(ctx, `
		SELECT id, max_uses, max_uses_per_user, current_uses
		FROM coupons
		WHERE UPPER(code) = UPPER($1)
		FOR UPDATE`, p.Code,
	).Scan(&couponID, &maxUses, &maxUsesPerUser, &currentUses)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return coupon.ErrNotFound
		}
		return fmt.Errorf("locking coupon %q: %w", p.Code, err)
	}

	if maxUses > 0 && currentUses >= maxUses {
		return coupon.ErrUsageLimitReached
	}

	var userUses int
	err = tx.QueryRow(ctx,
		`SELECT COUNT(*) FROM coupon_usages WHERE coupon_id = $1 AND user_id = $2`,
		couponID, p.UserID,
	).Scan(&userUses)
	if err != nil {
		return fmt.Errorf("counting user redemptions: %w", err)
	}
	if userUses >= maxUsesPerUser {
		return coupon.ErrPerUserLimitReached
	}

	if _, err := tx.Exec(ctx,
		`UPDATE coupons SET current_uses = current_uses + 1 WHERE id = $1`, couponID,
	); err != nil {
		return fmt.Errorf("incrementing coupon uses: %w", err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO coupon_usages (id, coupon_id, user_id, purchase_id, discount)
		VALUES ($1, $2, $3, $4, $5)`,
		uuid.New().String(), couponID, p.UserID, p.PurchaseID, p.Discount,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return coupon.ErrAlreadyRedeemed
		}
		return fmt.Errorf("inserting coupon usage: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit redemption: %w", err)
	}
	return nil
}
