// Package app wires every dependency together and runs the service.
package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bookproof/bookproof/internal/auth"
	"github.com/bookproof/bookproof/internal/domain/commission"
	"github.com/bookproof/bookproof/internal/domain/coupon"
	"github.com/bookproof/bookproof/internal/domain/credit"
	"github.com/bookproof/bookproof/internal/domain/payout"
	"github.com/bookproof/bookproof/internal/domain/user"
	"github.com/bookproof/bookproof/internal/events"
	"github.com/bookproof/bookproof/internal/handler"
	"github.com/bookproof/bookproof/internal/storage/postgres"
	"github.com/bookproof/bookproof/internal/storage/redis"
	"github.com/bookproof/bookproof/pkg/health"
	"github.com/bookproof/bookproof/pkg/httpmiddleware"
)

// rateSource resolves an affiliate's commission rate: the profile's custom
// override when set, the platform default otherwise.
type rateSource struct {
	users       user.Repository
	defaultRate decimal.Decimal
}

func (r rateSource) CommissionRate(ctx context.Context, affiliateID string) (decimal.Decimal, error) {
	custom, err := r.users.AffiliateRate(ctx, affiliateID)
	if err != nil {
		return decimal.Decimal{}, err
	}
	if custom != nil {
		return *custom, nil
	}
	return r.defaultRate, nil
}

// Run creates all dependencies, starts the HTTP server and the commission
// sweeper, and handles graceful shutdown. It is the single wiring point for
// the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	defaultRate, err := decimal.NewFromString(cfg.Commission.DefaultRate)
	if err != nil {
		return errors.Wrap(err, "parse default commission rate")
	}

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))

	// Repositories.
	userRepo := postgres.NewUserRepository(pool)
	couponRepo := postgres.NewCouponRepository(pool)
	creditRepo := postgres.NewCreditRepository(pool)
	commissionRepo := postgres.NewCommissionRepository(pool)
	payoutRepo := postgres.NewPayoutRepository(pool)

	// Optional coupon cache.
	var (
		couponFinder coupon.Finder      = couponRepo
		couponCache  coupon.Invalidator = nil
	)
	if cfg.Redis.Addr != "" {
		cache, err := redis.NewCouponCache(ctx, cfg.Redis.Addr, couponRepo, cfg.Redis.TTL)
		if err != nil {
			return errors.Wrap(err, "create coupon cache")
		}
		defer func() { _ = cache.Close() }()
		couponFinder = cache
		couponCache = cache
		healthSvc.AddReadinessCheck("redis", 5*time.Second, func(ctx context.Context) error {
			return cache.Ping(ctx)
		})
	}

	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	// Optional Kafka producer; a no-op sink when no brokers are configured.
	var publisher events.Publisher = events.Noop{}
	if len(cfg.Kafka.Brokers) > 0 {
		producer, err := events.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic, lg.Named("events"))
		if err != nil {
			return errors.Wrap(err, "create event producer")
		}
		defer func() { _ = producer.Close() }()
		publisher = producer
	}

	// Domain services.
	tokens := auth.NewTokenManager([]byte(cfg.TokenSecret), cfg.TokenTTL)
	authSvc := auth.NewService(userRepo, tokens)
	couponSvc := coupon.NewService(couponRepo, couponFinder, couponCache)
	commissionSvc := commission.NewService(
		commissionRepo,
		rateSource{users: userRepo, defaultRate: defaultRate},
		publisher,
		commission.Config{HoldingPeriod: cfg.Commission.HoldingPeriod},
		lg.Named("commission"),
	)
	creditSvc := credit.NewService(creditRepo, couponSvc, commissionSvc, userRepo, publisher, credit.Config{
		Validity:         cfg.Credits.Validity,
		ActivationWindow: cfg.Credits.ActivationWindow,
		ExpiryLookAhead:  cfg.Credits.ExpiryLookAhead,
	})
	payoutSvc := payout.NewService(payoutRepo, commissionSvc, publisher)

	// HTTP handlers: API routes + health probes on one mux.
	h := handler.New(authSvc, couponSvc, creditSvc, commissionSvc, payoutSvc, userRepo, tokens)
	mux := h.Routes()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.CORS(httpmiddleware.CORSConfig{
				AllowOrigins:     cfg.CORS.Origins,
				AllowHeaders:     []string{"Content-Type", "Authorization"},
				AllowCredentials: cfg.CORS.AllowCredentials,
				MaxAge:           86400,
			}),
			httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.Instrument(m),
			httpmiddleware.LogRequests(),
		),
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		lg.Info("Server listening", zap.String("addr", cfg.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return errors.Wrap(err, "server")
		}
		return nil
	})

	// Commission sweeper: auto-approve pending commissions whose holding
	// period has elapsed.
	g.Go(func() error {
		ticker := time.NewTicker(cfg.Commission.SweepInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				approved, err := commissionSvc.ApproveMatured(ctx)
				if err != nil {
					lg.Error("commission sweep failed", zap.Error(err))
					continue
				}
				if approved > 0 {
					lg.Info("commissions auto-approved", zap.Int("count", approved))
				}
			}
		}
	})

	// Graceful shutdown: on context cancellation flip readiness, drain, stop.
	g.Go(func() error {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		return nil
	})

	return g.Wait()
}
