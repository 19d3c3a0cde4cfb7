// Command server runs the access-gated knowledge chat service: the public
// chat webhook, the operator admin API, health and metrics.
package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"
	"golang.org/x/sync/errgroup"

	"askgate/internal/audit"
	"askgate/internal/code"
	codehandler "askgate/internal/code/handler"
	"askgate/internal/credential"
	credentialhandler "askgate/internal/credential/handler"
	httpapi "askgate/internal/http"
	jwttoken "askgate/internal/jwt_token"
	"askgate/internal/onboarding"
	onboardinghandler "askgate/internal/onboarding/handler"
	"askgate/internal/platform/config"
	"askgate/internal/platform/httpserver"
	"askgate/internal/platform/logger"
	"askgate/internal/platform/metrics"
	platformredis "askgate/internal/platform/redis"
	"askgate/internal/principal"
	principalhandler "askgate/internal/principal/handler"
	"askgate/internal/query"
	"askgate/internal/ratelimit"
)

func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

type stores struct {
	credentials credential.Store
	codes       code.Store
	principals  principal.Store
	queryLog    query.LogStore
	audit       audit.Store
	health      func() error
}

// buildStores picks PostgreSQL when configured, in-memory otherwise. The
// in-memory set keeps local development dependency-free.
func buildStores(cfg config.Server, log *slog.Logger) (stores, func(), error) {
	if cfg.DatabaseURL == "" {
		log.Info("no DATABASE_URL configured, using in-memory stores")
		return stores{
			credentials: credential.NewInMemoryStore(),
			codes:       code.NewInMemoryStore(),
			principals:  principal.NewInMemoryStore(),
			queryLog:    query.NewInMemoryLogStore(),
			audit:       audit.NewInMemoryStore(),
		}, func() {}, nil
	}

	db, err := sql.Open("postgres", cfg.DatabaseURL)
	if err != nil {
		return stores{}, nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return stores{}, nil, err
	}

	return stores{
		credentials: credential.NewPostgresStore(db),
		codes:       code.NewPostgresStore(db),
		principals:  principal.NewPostgresStore(db),
		queryLog:    query.NewPostgresLogStore(db),
		audit:       audit.NewPostgresStore(db),
		health:      db.Ping,
	}, func() { db.Close() }, nil
}

func run(cfg config.Server, log *slog.Logger) error {
	m := metrics.New()

	st, closeStores, err := buildStores(cfg, log)
	if err != nil {
		return err
	}
	defer closeStores()

	cache, err := platformredis.New(cfg.Redis)
	if err != nil {
		return err
	}
	if cache != nil {
		defer cache.Close()
	}

	// Audit events are queued and drained off the request path.
	auditQueue := audit.NewChannelStore(st.audit, 1024)
	auditor := audit.NewPublisher(auditQueue, audit.WithLogger(log))
	auditWorker := auditQueue.Worker()
	auditWorker.OnDrop = func(event audit.Event, err error) {
		log.Error("audit event dropped", "kind", string(event.Kind), "error", err)
	}

	credentials, err := credential.NewService(st.credentials,
		credential.WithLogger(log),
		credential.WithAuditor(auditor),
		credential.WithMetrics(m),
	)
	if err != nil {
		return err
	}

	codes, err := code.NewService(st.codes, credentials,
		code.Defaults{
			MaxUses:  cfg.Defaults.CodeMaxUses,
			Expiry:   cfg.Defaults.CodeExpiry,
			RetryMax: cfg.Defaults.CodeRetryMax,
		},
		code.WithLogger(log),
		code.WithAuditor(auditor),
		code.WithMetrics(m),
	)
	if err != nil {
		return err
	}

	principals, err := principal.NewService(
		principal.NewCachedStore(st.principals, cache, cfg.Redis.ProfileTTL, log),
		principal.WithLogger(log),
		principal.WithAuditor(auditor),
		principal.WithMetrics(m),
	)
	if err != nil {
		return err
	}

	limiter, err := ratelimit.NewChecker(st.queryLog, cfg.Quotas.Daily,
		ratelimit.WithLogger(log),
		ratelimit.WithMetrics(m),
	)
	if err != nil {
		return err
	}

	knowledge := query.NewKnowledgeClient(cfg.KnowledgeURL)
	queries, err := query.NewService(knowledge, knowledge, st.queryLog, cfg.AnswerTimeout,
		query.WithLogger(log),
		query.WithAuditor(auditor),
		query.WithMetrics(m),
	)
	if err != nil {
		return err
	}

	flow, err := onboarding.NewService(principals, codes, limiter, queries,
		onboarding.WithLogger(log),
		onboarding.WithAuditor(auditor),
	)
	if err != nil {
		return err
	}

	tokens := jwttoken.NewJWTService(cfg.JWTSigningKey, "askgate", "askgate-admin")

	router := httpapi.NewRouter(httpapi.Deps{
		Webhook: onboardinghandler.New(flow, log, m),
		Admin: []httpapi.Registrar{
			credentialhandler.New(credentials, cfg.Defaults, log),
			codehandler.New(codes, cfg.Defaults, log),
			principalhandler.New(principals, auditor, queries, log),
		},
		TokenCheck:   tokens,
		WebhookRate:  cfg.WebhookRate,
		WebhookBurst: cfg.WebhookBurst,
		Logger:       log,
		Health:       st.health,
	})

	srv := httpserver.New(cfg.Addr, router)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		if err := auditWorker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
