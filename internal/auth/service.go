package auth

import (
	"context"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"

	"github.com/bookproof/bookproof/internal/domain/user"
)

// ErrBadCredentials is returned on login with an unknown email or wrong
// password. Deliberately indistinguishable between the two.
var ErrBadCredentials = errors.New("invalid email or password")

// Service handles registration and login on top of the user repository.
type Service struct {
	users  user.Repository
	tokens *TokenManager
	now    func() time.Time
}

// NewService creates an auth Service.
func NewService(users user.Repository, tokens *TokenManager) *Service {
	return &Service{users: users, tokens: tokens, now: time.Now}
}

// Register creates an account with the given role. Affiliates also get a
// profile with a fresh referral code. Authors may present another affiliate's
// referral code; an unknown code is ignored rather than failing signup.
func (s *Service) Register(ctx context.Context, email, password string, role user.Role, referral string) (*user.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !strings.Contains(email, "@") {
		return nil, errors.Wrap(ErrInvalidInput, "valid email required")
	}
	if role != user.RoleAuthor && role != user.RoleAffiliate {
		return nil, errors.Wrap(ErrInvalidInput, "role must be author or affiliate")
	}

	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}

	var referredBy string
	if referral != "" && role == user.RoleAuthor {
		profile, err := s.users.FindAffiliateByReferralCode(ctx, strings.ToUpper(strings.TrimSpace(referral)))
		switch {
		case err == nil:
			referredBy = profile.ID
		case errors.Is(err, user.ErrNotFound):
			// ignored
		default:
			return nil, errors.Wrap(err, "resolve referral code")
		}
	}

	u := &user.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		ReferredBy:   referredBy,
		CreatedAt:    s.now(),
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return nil, err
	}

	if role == user.RoleAffiliate {
		profile := &user.AffiliateProfile{
			ID:           uuid.New().String(),
			UserID:       u.ID,
			ReferralCode: referralCode(),
			CreatedAt:    u.CreatedAt,
		}
		if err := s.users.CreateAffiliateProfile(ctx, profile); err != nil {
			return nil, errors.Wrap(err, "create affiliate profile")
		}
	}
	return u, nil
}

// Login verifies credentials and issues a bearer token.
func (s *Service) Login(ctx context.Context, email, password string) (string, *user.User, error) {
	u, err := s.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		if errors.Is(err, user.ErrNotFound) {
			return "", nil, ErrBadCredentials
		}
		return "", nil, errors.Wrap(err, "find user")
	}
	if !CheckPassword(u.PasswordHash, password) {
		return "", nil, ErrBadCredentials
	}

	token, err := s.tokens.Issue(u.ID, u.Role)
	if err != nil {
		return "", nil, err
	}
	return token, u, nil
}

// referralCode returns a short shareable code derived from a fresh UUID.
func referralCode() string {
	return strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:10])
}
