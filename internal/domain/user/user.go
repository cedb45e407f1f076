package user

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Role is a user's marketplace role.
type Role string

const (
	RoleAuthor    Role = "author"
	RoleAffiliate Role = "affiliate"
	RoleAdmin     Role = "admin"
)

// Permission names a capability checked once per request by the routing layer.
type Permission string

const (
	PermValidateCoupons   Permission = "coupons:validate"
	PermBuyCredits        Permission = "credits:buy"
	PermViewBalance       Permission = "credits:balance"
	PermViewCommissions   Permission = "commissions:view"
	PermRequestPayout     Permission = "payouts:request"
	PermManageCoupons     Permission = "admin:coupons"
	PermManageCommissions Permission = "admin:commissions"
	PermManagePayouts     Permission = "admin:payouts"
)

var grants = map[Role]map[Permission]bool{
	RoleAuthor: {
		PermValidateCoupons: true,
		PermBuyCredits:      true,
		PermViewBalance:     true,
	},
	RoleAffiliate: {
		PermValidateCoupons: true,
		PermViewCommissions: true,
		PermRequestPayout:   true,
	},
	RoleAdmin: {
		PermValidateCoupons:   true,
		PermManageCoupons:     true,
		PermManageCommissions: true,
		PermManagePayouts:     true,
	},
}

// Can is the authorization predicate: it reports whether a role holds a
// permission. Pure; middleware calls it once per guarded route.
func Can(role Role, p Permission) bool {
	return grants[role][p]
}

var (
	// ErrNotFound is returned when no user matches.
	ErrNotFound = errors.New("user not found")
	// ErrEmailTaken is returned when registering a duplicate email.
	ErrEmailTaken = errors.New("email already registered")
)

// User is an account with exactly one role. ReferredBy holds the affiliate
// profile id whose referral code was used at signup, or "".
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Role         Role
	ReferredBy   string
	CreatedAt    time.Time
}

// AffiliateProfile carries an affiliate's referral identity and optional
// commission rate override. A nil CustomRate means the platform default applies.
type AffiliateProfile struct {
	ID           string
	UserID       string
	ReferralCode string
	CustomRate   *decimal.Decimal
	CreatedAt    time.Time
}

// Repository defines persistence for users and affiliate profiles.
type Repository interface {
	CreateUser(ctx context.Context, u *User) error
	FindByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, id string) (*User, error)
	CreateAffiliateProfile(ctx context.Context, p *AffiliateProfile) error
	FindAffiliateByUser(ctx context.Context, userID string) (*AffiliateProfile, error)
	FindAffiliateByReferralCode(ctx context.Context, code string) (*AffiliateProfile, error)
	// ReferrerOf returns the affiliate profile id that referred the author,
	// or "" when the author signed up without a referral.
	ReferrerOf(ctx context.Context, authorID string) (string, error)
	// AffiliateRate returns the affiliate's custom rate, or nil when unset.
	AffiliateRate(ctx context.Context, affiliateID string) (*decimal.Decimal, error)
}
