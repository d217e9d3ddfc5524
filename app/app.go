package app

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/LovationAdmin/expense-api/config"
	"github.com/LovationAdmin/expense-api/handlers"
	"github.com/LovationAdmin/expense-api/middleware"
	"github.com/LovationAdmin/expense-api/routes"
	"github.com/LovationAdmin/expense-api/services"
	"github.com/LovationAdmin/expense-api/utils"
)

const Version = "1.0.0"

// App holds the wired services for one process.
type App struct {
	Config  *config.Config
	Logger  *zap.Logger
	DB      *sql.DB
	Gateway *services.Gateway
	Ledger  *services.Ledger
	WS      *handlers.WSHandler
	Limiter *middleware.RateLimiter
	Router  *gin.Engine
}

// New connects the configured backend and builds the router. The returned
// cleanup closes sockets and the database.
func New(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*App, func(), error) {
	policy, err := services.ParseConfirmationPolicy(cfg.Auth.ConfirmationPolicy)
	if err != nil {
		return nil, nil, err
	}

	a := &App{Config: cfg, Logger: logger}

	var (
		identity services.IdentityProvider
		store    services.TransactionStore
	)

	switch cfg.Auth.Provider {
	case config.BackendSupabase:
		sc := services.SupabaseConfig{
			URL:        cfg.Supabase.URL,
			AnonKey:    cfg.Supabase.AnonKey,
			ServiceKey: cfg.Supabase.ServiceKey,
			Table:      cfg.Supabase.Table,
		}
		identity = services.NewSupabaseIdentity(sc)
		store = services.NewRestStore(sc)
		logger.Info("using supabase backend", zap.String("url", cfg.Supabase.URL))

	default:
		db, dialect, err := config.OpenDatabase(ctx, cfg.Database)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := config.RunMigrations(ctx, db, dialect); err != nil {
			db.Close()
			return nil, nil, fmt.Errorf("failed to run migrations: %w", err)
		}
		a.DB = db

		tokens, err := utils.NewTokenIssuer(cfg.Auth.JWTSecret, "expense-api")
		if err != nil {
			db.Close()
			return nil, nil, err
		}

		var sender services.ConfirmationSender = services.LogSender{Logger: logger}
		if cfg.Email.ResendAPIKey != "" {
			sender = services.NewEmailService(cfg.Email.ResendAPIKey, cfg.Email.From)
		}

		identity = services.NewLocalIdentity(db, dialect, tokens, services.LocalIdentityConfig{
			AccessTTL: cfg.Auth.AccessTTL,
			PublicURL: cfg.PublicURL,
			Sender:    sender,
			Logger:    logger,
		})
		store = services.NewSQLStore(db, dialect)
		logger.Info("database connected", zap.String("driver", string(dialect)))
	}

	a.Gateway = services.NewGateway(identity, policy, logger)
	a.Ledger = services.NewLedger(identity, store, policy, logger)
	a.WS = handlers.NewWSHandler(a.Ledger, logger)
	a.Ledger.SetNotifier(a.WS)
	a.Limiter = middleware.NewRateLimiter(cfg.RateLimit.Requests, cfg.RateLimit.Window)
	a.Router = a.newRouter()

	cleanup := func() {
		if err := a.WS.Close(); err != nil {
			logger.Debug("closing websockets", zap.Error(err))
		}
		if a.DB != nil {
			if err := a.DB.Close(); err != nil {
				logger.Warn("error closing database", zap.Error(err))
			}
		}
	}

	return a, cleanup, nil
}

func (a *App) newRouter() *gin.Engine {
	switch {
	case a.Config.GinMode != "":
		gin.SetMode(a.Config.GinMode)
	case a.Config.IsProduction():
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(middleware.RequestLogger(a.Logger))
	router.Use(middleware.Recovery(a.Logger))
	router.Use(a.Limiter.Handler())

	routes.Setup(router, routes.Dependencies{
		Gateway: a.Gateway,
		Ledger:  a.Ledger,
		WS:      a.WS,
		Version: Version,
	})
	return router
}
