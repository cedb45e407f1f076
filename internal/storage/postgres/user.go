package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/bookproof/bookproof/internal/domain/user"
)

var _ user.Repository = (*UserRepository)(nil)

// UserRepository implements user.Repository backed by PostgreSQL.
type UserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository returns a UserRepository that uses the given pool.
func NewUserRepository(pool *pgxpool.Pool) *UserRepository {
	return &UserRepository{pool: pool}
}

// CreateUser inserts a new account. A duplicate email maps to
// user.ErrEmailTaken. ReferredBy links the account to the affiliate profile
// whose referral code was presented at signup, or is empty.
func (r *UserRepository) CreateUser(ctx context.Context, u *user.User) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO users (id, email, password_hash, role, referred_by)
		VALUES ($1, $2, $3, $4, $5)`,
		u.ID, u.Email, u.PasswordHash, u.Role, u.ReferredBy,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return user.ErrEmailTaken
		}
		return fmt.Errorf("creating user %q: %w", u.Email, err)
	}
	return nil
}

// FindByEmail returns the user with the given email, or user.ErrNotFound.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*user.User, error) {
	var u user.User
	err := r.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, role, referred_by, created_at
		FROM users WHERE email = $1`, email,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.ReferredBy, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("finding user by email: %w", err)
	}
	return &u, nil
}

// GetByID returns the user with the given id, or user.ErrNotFound.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*user.User, error) {
	var u user.User
	err := r.pool.QueryRow(ctx, `
		SELECT id, email, password_hash, role, referred_by, created_at
		FROM users WHERE id = $1`, id,
	).Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Role, &u.ReferredBy, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("getting user %q: %w", id, err)
	}
	return &u, nil
}

// CreateAffiliateProfile inserts a referral profile for an affiliate user.
func (r *UserRepository) CreateAffiliateProfile(ctx context.Context, p *user.AffiliateProfile) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO affiliate_profiles (id, user_id, referral_code, custom_rate)
		VALUES ($1, $2, $3, $4)`,
		p.ID, p.UserID, p.ReferralCode, p.CustomRate,
	)
	if err != nil {
		return fmt.Errorf("creating affiliate profile for %q: %w", p.UserID, err)
	}
	return nil
}

// FindAffiliateByUser returns the affiliate profile owned by the user.
func (r *UserRepository) FindAffiliateByUser(ctx context.Context, userID string) (*user.AffiliateProfile, error) {
	var p user.AffiliateProfile
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, referral_code, custom_rate, created_at
		FROM affiliate_profiles WHERE user_id = $1`, userID,
	).Scan(&p.ID, &p.UserID, &p.ReferralCode, &p.CustomRate, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("finding affiliate profile for %q: %w", userID, err)
	}
	return &p, nil
}

// FindAffiliateByReferralCode resolves a referral code presented at signup.
func (r *UserRepository) FindAffiliateByReferralCode(ctx context.Context, code string) (*user.AffiliateProfile, error) {
	var p user.AffiliateProfile
	err := r.pool.QueryRow(ctx, `
		SELECT id, user_id, referral_code, custom_rate, created_at
		FROM affiliate_profiles WHERE referral_code = $1`, code,
	).Scan(&p.ID, &p.UserID, &p.ReferralCode, &p.CustomRate, &p.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("finding affiliate by referral code: %w", err)
	}
	return &p, nil
}

// ReferrerOf returns the affiliate profile id that referred the author, or ""
// when the author has no referrer.
func (r *UserRepository) ReferrerOf(ctx context.Context, authorID string) (string, error) {
	var referredBy string
	err := r.pool.QueryRow(ctx,
		`SELECT referred_by FROM users WHERE id = $1`, authorID,
	).Scan(&referredBy)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return "", user.ErrNotFound
		}
		return "", fmt.Errorf("looking up referrer of %q: %w", authorID, err)
	}
	return referredBy, nil
}

// AffiliateRate returns the affiliate's custom commission rate, or nil when
// the platform default applies.
func (r *UserRepository) AffiliateRate(ctx context.Context, affiliateID string) (*decimal.Decimal, error) {
	var rate *decimal.Decimal
	err := r.pool.QueryRow(ctx,
		`SELECT custom_rate FROM affiliate_profiles WHERE id = $1`, affiliateID,
	).Scan(&rate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("looking up rate for affiliate %q: %w", affiliateID, err)
	}
	return rate, nil
}
