package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/promptvault/promptvault/internal/api/handlers"
	"github.com/promptvault/promptvault/internal/api/middleware"
	"github.com/promptvault/promptvault/internal/audit"
	"github.com/promptvault/promptvault/internal/auth"
	"github.com/promptvault/promptvault/internal/cache"
	"github.com/promptvault/promptvault/internal/config"
	"github.com/promptvault/promptvault/internal/metrics"
	"github.com/promptvault/promptvault/internal/models"
	"github.com/promptvault/promptvault/internal/project"
	"github.com/promptvault/promptvault/internal/prompt"
	"github.com/promptvault/promptvault/internal/queue"
	"github.com/promptvault/promptvault/internal/resolver"
	"github.com/promptvault/promptvault/internal/store"
	"github.com/promptvault/promptvault/internal/webhook"
)

type Router struct {
	mux    *chi.Mux
	db     *pgxpool.Pool
	redis  *redis.Client
	cfg    *config.Config
	ps     *project.Service
	jwt    *auth.JWTMiddleware
	apikey *auth.APIKeyMiddleware
}

func NewRouter(db *pgxpool.Pool, rdb *redis.Client, cfg *config.Config) *Router {
	ps := project.NewService(db)
	return &Router{
		mux:    chi.NewRouter(),
		db:     db,
		redis:  rdb,
		cfg:    cfg,
		ps:     ps,
		jwt:    auth.NewJWTMiddleware(cfg.Auth.JWTSecret, ps),
		apikey: auth.NewAPIKeyMiddleware(db, cfg.Auth.APIKeyHeader, ps),
	}
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.CORS([]string{"*"}))

	// Health endpoints (no auth)
	health := handlers.NewHealthHandler(rt.db, rt.redis)
	r.Get("/healthz", health.Healthz)
	r.Get("/readyz", health.Readyz)

	// The resolution engine and its collaborators
	promptStore := store.NewPostgresStore(rt.db)
	eng := resolver.New(promptStore, resolver.Options{
		Cache:       cache.NewRedisCache(rt.redis),
		Metrics:     metrics.NewRedisSink(rt.redis),
		CacheTTL:    rt.cfg.Resolver.CacheTTL,
		MaxDepth:    rt.cfg.Resolver.MaxDepth,
		Parallelism: rt.cfg.Resolver.Parallelism,
		Strict:      rt.cfg.Resolver.MissingRefPolicy == "strict",
	})

	queueClient := queue.NewClient(rt.cfg.Redis)
	webhookSvc := webhook.NewService(rt.db, queueClient)
	promptSvc := prompt.NewService(rt.db, queueClient, webhookSvc)
	auditSvc := audit.NewService(rt.db)

	rl := middleware.NewRateLimiter(rt.cfg.RateLimit.RPS, rt.cfg.RateLimit.Burst)

	// API v1
	r.Route("/api/v1", func(r chi.Router) {
		// Auth: try API key first, then JWT
		r.Use(rt.apikey.Authenticate)
		r.Use(rt.jwt.Authenticate)

		promptH := handlers.NewPromptHandler(promptSvc, promptStore, eng, auditSvc)
		r.Route("/prompts", func(r chi.Router) {
			r.Use(auth.RequireScope(models.ScopeProject))
			r.Use(rl.LimitResource("prompts"))
			r.Post("/", promptH.Create)
			r.Get("/", promptH.List)
			r.Get("/{name}", promptH.Get)
			r.Post("/{name}/versions", promptH.CreateVersion)
			r.Put("/{name}/labels/{label}", promptH.SetLabel)
			r.Get("/{name}/resolve", promptH.Resolve)
		})

		webhookH := handlers.NewWebhookHandler(webhookSvc)
		r.Route("/webhooks", func(r chi.Router) {
			r.Use(auth.RequireScope(models.ScopeProject))
			r.Use(rl.LimitResource("webhooks"))
			r.Post("/", webhookH.Create)
			r.Get("/", webhookH.List)
			r.Delete("/{id}", webhookH.Delete)
		})

		adminH := handlers.NewAdminHandler(auditSvc)
		r.Route("/admin", func(r chi.Router) {
			r.Use(auth.RequireScope(models.ScopeAdmin))
			r.Get("/audit", adminH.AuditLogs)
		})
	})

	return r
}
