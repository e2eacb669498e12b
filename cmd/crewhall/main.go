// Command crewhall runs the access-control service: API key
// authentication, role and scope guards, session/project access
// evaluation, quota enforcement, and rate limiting for every route the
// backend exposes.
package main

import (
	"context"
	"database/sql"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/gorilla/mux"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"github.com/crewhall/crewhall/pkg/access"
	"github.com/crewhall/crewhall/pkg/auth"
	"github.com/crewhall/crewhall/pkg/config"
	"github.com/crewhall/crewhall/pkg/contextkeys"
	"github.com/crewhall/crewhall/pkg/httputil"
	"github.com/crewhall/crewhall/pkg/middleware"
	"github.com/crewhall/crewhall/pkg/observability"
	"github.com/crewhall/crewhall/pkg/quota"
	"github.com/crewhall/crewhall/pkg/ratelimit"
	"github.com/crewhall/crewhall/pkg/sessions"
	"github.com/crewhall/crewhall/pkg/teams"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logrus.WithError(err).Fatal("failed to load configuration")
	}

	logger := observability.NewLogger(cfg.LogLevel, os.Stdout)

	db, err := sql.Open("postgres", cfg.Database.PostgresURL)
	if err != nil {
		logger.WithError(err).Fatal("failed to open postgres")
	}
	defer db.Close()
	if err := db.Ping(); err != nil {
		logger.WithError(err).Fatal("failed to ping postgres")
	}

	registry := prometheus.NewRegistry()
	metrics := observability.NewMetrics(registry)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Rate windows persist to Redis when configured, Postgres otherwise.
	var durable ratelimit.PersistentStore
	if cfg.Database.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.Database.RedisURL)
		if err != nil {
			logger.WithError(err).Fatal("invalid redis url")
		}
		client := redis.NewClient(opts)
		defer client.Close()
		if err := client.Ping(ctx).Err(); err != nil {
			logger.WithError(err).Fatal("failed to ping redis")
		}
		durable = ratelimit.NewRedisStore(client, "ratelimit")
	} else {
		durable = ratelimit.NewPostgresStore(db)
	}

	windowCache := ratelimit.NewMemoryStore()
	limiter := ratelimit.NewLimiter(windowCache, durable, cfg.RateLimit.Window, logger)
	limiter.StartSweep(ctx)

	keyStore := auth.NewPostgresKeyStore(db)
	authenticator := auth.NewAuthenticator(keyStore, auth.NewPostgresUserResolver(db), logger)
	evaluator := access.NewEvaluator(teams.NewPostgresResolver(db))
	quotaService := quota.NewPostgresService(db)

	authMW := middleware.NewAuthMiddleware(authenticator, true, logger, metrics)
	accessMW := middleware.NewAccessMiddleware(evaluator, sessions.NewPostgresFetcher(db), logger, metrics)
	quotaMW := middleware.NewQuotaMiddleware(quotaService, logger, metrics)
	rateMW := middleware.NewRateLimitMiddleware(limiter, quotaService, cfg.RateLimit.Window, logger, metrics)

	router := mux.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.RequestLogger(logger))
	router.Use(authMW.Handler)
	router.Use(rateMW.PerUserRateLimit(nil))

	router.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{})).Methods(http.MethodGet)
	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	}).Methods(http.MethodGet)

	router.Handle("/api/me",
		middleware.RequireRole(auth.RoleViewer)(http.HandlerFunc(whoamiHandler)),
	).Methods(http.MethodGet)

	router.Handle("/api/sessions/{sessionID}",
		chain(http.HandlerFunc(sessionHandler),
			middleware.RequireScope(auth.ScopeSessions),
			accessMW.RequireSessionAccess(access.LevelReadOnly),
		),
	).Methods(http.MethodGet)

	router.Handle("/api/sessions/{sessionID}/terminal",
		chain(http.HandlerFunc(sessionHandler),
			middleware.RequireScope(auth.ScopeSessions),
			accessMW.RequireSessionAccess(access.LevelReadWrite),
		),
	).Methods(http.MethodPost)

	router.Handle("/api/sessions",
		chain(http.HandlerFunc(acceptedHandler),
			middleware.RequireScope(auth.ScopeSessions),
			middleware.RequireRole(auth.RoleUser),
			quotaMW.EnforceQuota(quota.ResourceActiveSessions),
		),
	).Methods(http.MethodPost)

	router.Handle("/api/agents",
		chain(http.HandlerFunc(acceptedHandler),
			middleware.RequireScope(auth.ScopeAgents),
			middleware.RequireRole(auth.RoleUser),
			quotaMW.EnforceQuota(quota.ResourceActiveAgents),
		),
	).Methods(http.MethodPost)

	router.Handle("/api/projects/settings",
		chain(http.HandlerFunc(acceptedHandler),
			middleware.RequireScope(auth.ScopeProjects),
			accessMW.RequireProjectAccess(access.LevelAdmin),
		),
	).Methods(http.MethodPut)

	// Periodic cleanup of expired credentials and stale durable windows.
	scheduler := cron.New()
	scheduler.AddFunc("@hourly", func() {
		cutoff := time.Now().Add(-2 * cfg.RateLimit.Window)
		if removed, err := durable.Purge(context.Background(), cutoff); err != nil {
			logger.WithError(err).Warn("rate window purge failed")
		} else if removed > 0 {
			logger.WithField("removed", removed).Info("purged stale rate windows")
		}
	})
	scheduler.AddFunc("@every 1m", func() {
		metrics.RateWindowsCached.Set(float64(windowCache.Len()))
	})
	scheduler.AddFunc("@daily", func() {
		if removed, err := keyStore.DeleteExpiredKeys(context.Background(), time.Now()); err != nil {
			logger.WithError(err).Warn("expired key purge failed")
		} else if removed > 0 {
			logger.WithField("removed", removed).Info("purged expired api keys")
		}
	})
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.WithField("addr", server.Addr).Info("server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("server failed")
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Error("graceful shutdown failed")
	}
}

// chain applies guards outer-to-inner in the order given
func chain(handler http.Handler, guards ...func(http.Handler) http.Handler) http.Handler {
	for i := len(guards) - 1; i >= 0; i-- {
		handler = guards[i](handler)
	}
	return handler
}

func whoamiHandler(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, contextkeys.Caller(r.Context()))
}

func sessionHandler(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"session":      contextkeys.Session(r.Context()),
		"access_level": contextkeys.AccessLevel(r.Context()),
	})
}

func acceptedHandler(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusAccepted, map[string]string{"status": "accepted"})
}
