// Package app builds the services from the loaded config and serves them
// over HTTP
package app

import (
	"bitwise74/account-api/db"
	"bitwise74/account-api/internal"
	"bitwise74/account-api/internal/account"
	"bitwise74/account-api/internal/dashboard"
	"bitwise74/account-api/internal/limiter"
	"bitwise74/account-api/internal/recovery"
	"bitwise74/account-api/internal/service"
	"bitwise74/account-api/internal/store"
	"bitwise74/account-api/pkg/security"
	"context"
	"fmt"
	"time"

	"github.com/chenyahui/gin-cache/persist"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	v "github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

const (
	gray  = "\x1b[90m"
	reset = "\x1b[0m"
)

type App struct {
	Router *gin.Engine
	Deps   *internal.Deps

	closers []func()
}

// New wires every dependency from the viper config. The returned app owns
// the store, mail queue and background jobs, call Close to release them.
func New(ctx context.Context) (*App, error) {
	makeLogger()

	a := &App{Deps: &internal.Deps{}}
	d := a.Deps

	s, err := openStore(ctx)
	if err != nil {
		return nil, err
	}
	d.Store = s
	a.onClose(func() {
		if err := s.Close(); err != nil {
			zap.L().Error("Failed to close store", zap.Error(err))
		}
	})

	d.Argon = security.New().WithCost(
		v.GetUint32("security.argon.memory"),
		v.GetUint32("security.argon.iterations"),
		uint8(v.GetUint("security.argon.parallelism")),
	)

	d.Tokens, err = security.NewTokenIssuer(security.TokenIssuerOpts{
		Secret:          v.GetString("jwt.secret"),
		VerificationTTL: v.GetDuration("security.verification_ttl"),
		ResetTTL:        v.GetDuration("security.reset_ttl"),
	})
	if err != nil {
		a.Close()
		return nil, fmt.Errorf("failed to initialize token issuer, %w", err)
	}

	var next service.Notifier = service.ConsoleNotifier{}
	if v.GetString("mail.host") != "" {
		next, err = service.NewSMTPNotifier(service.SMTPOpts{
			Host:     v.GetString("mail.host"),
			Port:     v.GetInt("mail.port"),
			Username: v.GetString("mail.username"),
			Password: v.GetString("mail.password"),
			From:     v.GetString("mail.sender"),
		})
		if err != nil {
			a.Close()
			return nil, fmt.Errorf("failed to initialize mailer, %w", err)
		}
	}

	d.Mail = service.NewMailQueue(next, v.GetInt("mail.workers"), v.GetInt("mail.queue_size"))
	d.Mail.StartWorkerPool()
	a.onClose(d.Mail.Close)

	loginLimiter, dashLimiter, err := a.setupLimiters(ctx)
	if err != nil {
		a.Close()
		return nil, err
	}

	publicURL := v.GetString("app.public_url")

	d.Accounts = account.New(account.Opts{
		Store:     d.Store,
		Hasher:    d.Argon,
		Tokens:    d.Tokens,
		Notifier:  d.Mail,
		Limiter:   loginLimiter,
		PublicURL: publicURL,
	})

	d.Recovery = recovery.New(recovery.Opts{
		Store:     d.Store,
		Hasher:    d.Argon,
		Tokens:    d.Tokens,
		Notifier:  d.Mail,
		PublicURL: publicURL,
	})

	d.Dashboard = dashboard.New(dashboard.Opts{
		Store:    d.Store,
		Hasher:   d.Argon,
		Notifier: d.Mail,
		Limiter:  dashLimiter,
	})

	// Tokens are cleared on use, this only catches the abandoned ones
	cleanupCtx, cancel := context.WithCancel(ctx)
	service.TokenCleanup(cleanupCtx, v.GetDuration("storage.cleanup_interval"), d.Store)
	a.onClose(cancel)

	a.Router = NewEngine(d, RouterOpts{
		APISecret:      v.GetString("security.api_secret"),
		CORSOrigins:    v.GetStringSlice("host.cors"),
		TrustedProxies: v.GetStringSlice("host.trusted_proxies"),
		RateLimit:      v.GetInt("security.rate_limit"),
		Cache:          persist.NewMemoryStore(time.Minute),
	})

	return a, nil
}

func openStore(ctx context.Context) (store.Store, error) {
	switch driver := v.GetString("storage.driver"); driver {
	case "mongo":
		client, err := db.NewMongo(ctx, v.GetString("storage.mongo.uri"))
		if err != nil {
			return nil, err
		}

		zap.L().Info("Using MongoDB store", zap.String("database", v.GetString("storage.mongo.database")))

		return store.NewMongoStore(client, v.GetString("storage.mongo.database")), nil
	case "postgres":
		conn, err := db.NewPostgres(v.GetString("storage.postgres.dsn"))
		if err != nil {
			return nil, err
		}

		zap.L().Info("Using PostgreSQL store")

		return store.NewGormStore(conn)
	case "sqlite":
		conn, err := db.NewSQLite(v.GetString("storage.sqlite.path"))
		if err != nil {
			return nil, err
		}

		zap.L().Info("Using SQLite store", zap.String("path", v.GetString("storage.sqlite.path")))

		return store.NewGormStore(conn)
	default:
		return nil, fmt.Errorf("unknown storage driver %q", driver)
	}
}

// setupLimiters shares counters through Redis when it's configured and falls
// back to per instance memory otherwise
func (a *App) setupLimiters(ctx context.Context) (login, dash limiter.Limiter, err error) {
	loginCfg := limiter.Config{
		MaxAttempts: v.GetInt("security.login.max_attempts"),
		Window:      v.GetDuration("security.login.window"),
		Prefix:      "login",
	}

	dashCfg := loginCfg
	dashCfg.Prefix = "dash"

	if addr := v.GetString("redis.addr"); addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: v.GetString("redis.password"),
			DB:       v.GetInt("redis.db"),
		})

		pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()

		if err := rdb.Ping(pingCtx).Err(); err != nil {
			rdb.Close()
			return nil, nil, fmt.Errorf("failed to connect to redis, %w", err)
		}

		a.onClose(func() { rdb.Close() })

		zap.L().Info("Using Redis for login limits", zap.String("addr", addr))

		return limiter.NewRedisLimiter(rdb, loginCfg), limiter.NewRedisLimiter(rdb, dashCfg), nil
	}

	loginMem := limiter.NewMemoryLimiter(loginCfg)
	dashMem := limiter.NewMemoryLimiter(dashCfg)

	loginMem.StartCleanup(time.Minute)
	dashMem.StartCleanup(time.Minute)

	a.onClose(loginMem.Stop)
	a.onClose(dashMem.Stop)

	return loginMem, dashMem, nil
}

func (a *App) onClose(f func()) {
	a.closers = append(a.closers, f)
}

// Close releases everything in reverse order of creation. Queued mails are
// sent before the store is closed.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}

	a.closers = nil
}

func makeLogger() {
	cfg := zap.NewDevelopmentConfig()

	if v.GetString("app.env") == "production" {
		cfg = zap.NewProductionConfig()
	} else {
		cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		cfg.EncoderConfig.EncodeTime = func(t time.Time, pae zapcore.PrimitiveArrayEncoder) {
			pae.AppendString(gray + t.Format("15:04:05.000") + reset)
		}
		cfg.EncoderConfig.EncodeCaller = func(ec zapcore.EntryCaller, pae zapcore.PrimitiveArrayEncoder) {
			pae.AppendString(gray + ec.TrimmedPath() + reset)
		}
	}

	if lvl, err := zapcore.ParseLevel(v.GetString("app.log_level")); err == nil {
		cfg.Level = zap.NewAtomicLevelAt(lvl)
	}

	cfg.DisableStacktrace = true

	log, _ := cfg.Build()
	zap.ReplaceGlobals(log)
}
