// Package api composes the kwai HTTP API: it registers the read models of every
// module, wires repositories and handlers, and wraps the router with the
// middleware stack.
package api

import (
	"database/sql"
	"net/http"

	"go.uber.org/zap"

	"github.com/kwai-club/kwai/internal/club"
	"github.com/kwai-club/kwai/internal/config"
	"github.com/kwai-club/kwai/internal/identity"
	"github.com/kwai-club/kwai/internal/logging"
	"github.com/kwai-club/kwai/internal/news"
	"github.com/kwai-club/kwai/internal/teams"
	"github.com/kwai-club/kwai/internal/training"
	"github.com/kwai-club/kwai/internal/web/auth"
	"github.com/kwai-club/kwai/internal/web/cache"
	webcontext "github.com/kwai-club/kwai/internal/web/context"
	"github.com/kwai-club/kwai/internal/web/middleware"
	"github.com/kwai-club/kwai/internal/web/ratelimit"
	"github.com/kwai-club/kwai/internal/web/request"
	"github.com/kwai-club/kwai/internal/web/resource"
	"github.com/kwai-club/kwai/internal/web/response"
	"github.com/kwai-club/kwai/internal/web/router"
	"github.com/kwai-club/kwai/pkg/jsonapi"
)

// Dependents lists, per cache scope, the scopes whose documents embed its
// resources. Trainings include their teams with the team members.
var Dependents = map[string][]string{
	"teams": {"trainings"},
}

// Resources returns the declarations of every module in registration order.
func Resources() []jsonapi.Declaration {
	var decls []jsonapi.Declaration
	decls = append(decls, club.Resources()...)
	decls = append(decls, teams.Resources()...)
	decls = append(decls, training.Resources()...)
	decls = append(decls, identity.Resources()...)
	decls = append(decls, news.Resources()...)
	return decls
}

// NewRegistry returns a sealed registry with every kwai resource.
func NewRegistry() (*jsonapi.Registry, error) {
	registry := jsonapi.NewRegistry()
	for _, decl := range Resources() {
		if _, err := registry.Register(decl); err != nil {
			return nil, err
		}
	}
	if err := registry.Seal(); err != nil {
		return nil, err
	}
	return registry, nil
}

// Options carries the dependencies of the API.
type Options struct {
	Config *config.Config
	DB     *sql.DB
	// Cache stores rendered documents. Nil disables document caching.
	Cache cache.Cache
	// LoginLimiter throttles login attempts per client. Nil disables it.
	LoginLimiter ratelimit.Limiter
	Logger       *zap.Logger
}

// New builds the API router.
func New(opts Options) (*router.Router, error) {
	registry, err := NewRegistry()
	if err != nil {
		return nil, err
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg := opts.Config
	prefix := cfg.Server.APIPrefix

	r := router.NewRouter()
	router.SetupDefaultErrorHandlers(r)

	stack := middleware.NewChain(
		middleware.RequestID(),
		middleware.Recovery(logging.PanicLogger(logger)),
		middleware.Logging(logging.RequestLogger(logger)),
	)
	if len(cfg.Server.CORSOrigins) > 0 {
		stack.Use(middleware.CORS(cfg.Server.CORSOrigins...))
	}
	if opts.Cache != nil {
		cacheConfig := cache.DefaultCacheMiddlewareConfig(opts.Cache, prefix)
		if cfg.Redis.TTL > 0 {
			cacheConfig.TTL = cfg.Redis.TTL
		}
		cacheConfig.Dependents = Dependents
		cacheConfig.OnError = func(err error) {
			logger.Warn("document cache failure", zap.Error(err))
		}
		// Login responses carry tokens.
		stack.Use(middleware.Conditional(
			middleware.Not(middleware.PathPrefix(prefix+"/auth")),
			cache.CacheMiddleware(cacheConfig),
		))
	}
	r.Use(stack.Middlewares()...)

	render := resource.NewRenderer(registry, func(req *http.Request, err error) {
		logger.Error("request failed",
			zap.String("request_id", webcontext.GetRequestID(req.Context())),
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Error(err),
		)
	})
	parser := request.NewParser(registry.Shapes())
	tokens := auth.NewTokenService(cfg.Security.JWTSecret, cfg.Security.TokenTTL)
	authenticate := middleware.Auth(tokens)

	teamRepo := teams.NewDBRepository(opts.DB)
	clubHandler := club.NewHandler(club.NewCountryDBRepository(opts.DB), club.NewMemberDBRepository(opts.DB), render)
	teamsHandler := teams.NewHandler(teamRepo, render, parser)
	trainingHandler := training.NewHandler(training.NewDBRepository(opts.DB, teamRepo), render)
	newsHandler := news.NewHandler(news.NewDBRepository(opts.DB), render)
	identityHandler := identity.NewHandler(identity.NewDBRepository(opts.DB), tokens, render, parser, logger)
	if opts.LoginLimiter != nil {
		identityHandler.ThrottleLogin(middleware.RateLimitWithConfig(middleware.RateLimitConfig{
			Limiter: opts.LoginLimiter,
			KeyFunc: middleware.ClientIP(cfg.Server.TrustProxy),
			OnError: func(err error) {
				logger.Warn("login rate limiter failure", zap.Error(err))
			},
		}))
	}

	mount := func(r *router.Router) {
		clubHandler.Routes(r)
		teamsHandler.Routes(r, authenticate)
		trainingHandler.Routes(r)
		identityHandler.Routes(r, authenticate)
		newsHandler.Routes(r, middleware.OptionalAuth(tokens))
		r.Get("/schemas/{type}", render.Handle(schemaHandler(registry.Shapes()))).
			Named("schemas.show")
	}
	if prefix == "" {
		mount(r)
	} else {
		r.Route(prefix, mount)
	}
	return r, nil
}

// schemaHandler serves the JSON Schema of the document of a resource type.
func schemaHandler(shapes *jsonapi.Shapes) resource.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) error {
		typeName := router.GetPathParam(r, "type")
		doc, err := shapes.Document(typeName)
		if err != nil {
			return response.NotFound("unknown resource type " + typeName).Wrap(err)
		}
		return response.RenderJSON(w, http.StatusOK, response.SchemaMediaType, doc.JSONSchema())
	}
}
