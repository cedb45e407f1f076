// Command seed-db prepares a fresh database: it runs migrations, creates the
// initial admin account, and upserts a set of demo coupons.
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bookproof/bookproof/internal/auth"
	"github.com/bookproof/bookproof/internal/domain/coupon"
	"github.com/bookproof/bookproof/internal/domain/user"
	"github.com/bookproof/bookproof/internal/storage/postgres"
)

func main() {
	var (
		databaseURL   string
		adminEmail    string
		adminPassword string
	)

	flag.StringVar(&databaseURL, "database-url", "", "PostgreSQL connection URL (or DATABASE_URL env)")
	flag.StringVar(&adminEmail, "admin-email", "admin@bookproof.local", "email for the seeded admin account")
	flag.StringVar(&adminPassword, "admin-password", "", "password for the seeded admin account (or BOOKPROOF_SEED_ADMIN_PASSWORD env)")
	flag.Parse()

	if databaseURL == "" {
		databaseURL = os.Getenv("DATABASE_URL")
	}
	if databaseURL == "" {
		slog.Error("database URL is required: set --database-url or DATABASE_URL")
		os.Exit(1)
	}
	if adminPassword == "" {
		adminPassword = os.Getenv("BOOKPROOF_SEED_ADMIN_PASSWORD")
	}
	if adminPassword == "" {
		slog.Error("admin password is required: set --admin-password or BOOKPROOF_SEED_ADMIN_PASSWORD")
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	if err := run(ctx, databaseURL, adminEmail, adminPassword); err != nil {
		slog.Error("seed failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	slog.Info("seed completed successfully")
}

func run(ctx context.Context, databaseURL, adminEmail, adminPassword string) error {
	slog.Info("connecting to database")

	pool, err := postgres.NewPool(ctx, databaseURL)
	if err != nil {
		return errors.Wrap(err, "connect to database")
	}
	defer pool.Close()

	slog.Info("running migrations")

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	if err := seedAdmin(ctx, postgres.NewUserRepository(pool), adminEmail, adminPassword); err != nil {
		return errors.Wrap(err, "seed admin")
	}

	if err := seedCoupons(ctx, postgres.NewCouponRepository(pool)); err != nil {
		return errors.Wrap(err, "seed coupons")
	}

	return nil
}

func seedAdmin(ctx context.Context, users *postgres.UserRepository, email, password string) error {
	slog.Info("seeding admin account", slog.String("email", email))

	hash, err := auth.HashPassword(password)
	if err != nil {
		return errors.Wrap(err, "hash admin password")
	}

	err = users.CreateUser(ctx, &user.User{
		ID:           uuid.New().String(),
		Email:        email,
		PasswordHash: hash,
		Role:         user.RoleAdmin,
	})
	if err != nil {
		if errors.Is(err, user.ErrEmailTaken) {
			slog.Info("admin account already exists, skipping")
			return nil
		}
		return err
	}

	slog.Info("admin account created")
	return nil
}

func seedCoupons(ctx context.Context, coupons *postgres.CouponRepository) error {
	slog.Info("seeding demo coupons")

	launchEnd := time.Date(2027, time.January, 1, 0, 0, 0, 0, time.UTC)

	demo := []coupon.Coupon{
		{
			Code:           "WELCOME10",
			DiscountType:   coupon.DiscountPercentage,
			Percent:        decimal.NewFromInt(10),
			Scope:          coupon.ScopeBoth,
			MaxUsesPerUser: 1,
			Active:         true,
		},
		{
			Code:           "SUMMER2024",
			DiscountType:   coupon.DiscountPercentage,
			Percent:        decimal.NewFromInt(20),
			Scope:          coupon.ScopeCredits,
			MinPurchase:    decimal.NewFromInt(100),
			MaxUsesPerUser: 1,
			Active:         true,
		},
		{
			Code:           "LAUNCH25",
			DiscountType:   coupon.DiscountFixed,
			Amount:         decimal.NewFromInt(25),
			Scope:          coupon.ScopeCredits,
			MinPurchase:    decimal.NewFromInt(50),
			MinCredits:     50,
			MaxUses:        1000,
			MaxUsesPerUser: 1,
			ValidUntil:     &launchEnd,
			Active:         true,
		},
	}

	for i := range demo {
		c := &demo[i]
		c.ID = uuid.New().String()
		c.ValidFrom = time.Now()

		if err := c.ValidateRule(); err != nil {
			return errors.Wrapf(err, "demo coupon %s", c.Code)
		}
		if err := coupons.Upsert(ctx, c); err != nil {
			return errors.Wrapf(err, "upsert coupon %s", c.Code)
		}

		slog.Info("upserted coupon", slog.String("code", c.Code))
	}

	return nil
}
