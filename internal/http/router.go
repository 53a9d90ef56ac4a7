package http

import (
	"log/slog"

	"github.com/geocoder89/expensehub/internal/auth"
	"github.com/geocoder89/expensehub/internal/config"
	"github.com/geocoder89/expensehub/internal/http/handlers"
	"github.com/geocoder89/expensehub/internal/http/middlewares"
	"github.com/geocoder89/expensehub/internal/observability"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

// TokenService issues tokens at login and verifies them at the auth gate.
type TokenService interface {
	handlers.TokenIssuer
	Verify(token string) (*auth.Claims, error)
}

// Deps is everything the router needs. Prom, Summaries and Readiness may be
// nil; LimitStore defaults to an in-memory store.
type Deps struct {
	Config config.Config
	Log    *slog.Logger
	Prom   *observability.Prom

	Users     handlers.UserStore
	Expenses  handlers.ExpenseStore
	Hasher    handlers.PasswordHasher
	Tokens    TokenService
	Summaries handlers.SummaryCache

	LimitStore middlewares.LimitStore
	Readiness  map[string]handlers.Pinger

	// Tracing adds the otelgin middleware; set when a tracer provider is installed.
	Tracing bool
}

func NewRouter(deps Deps) *gin.Engine {
	cfg := deps.Config

	if cfg.Env != "dev" && cfg.Env != "test" {
		gin.SetMode(gin.ReleaseMode)
	}

	log := deps.Log
	if log == nil {
		log = slog.Default()
	}

	r := gin.New()

	// middleware

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())

	if deps.Tracing {
		r.Use(otelgin.Middleware(cfg.ServiceName))
	}

	if deps.Prom != nil {
		r.Use(deps.Prom.GinHandleMiddleware())
	}

	r.Use(middlewares.RequestLogger(log))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORS(cfg.CORSAllowedOrigins))
	r.Use(middlewares.MaxBodyBytes(cfg.MaxBodyBytes))
	r.Use(middlewares.RequireJSON())

	// health
	h := handlers.NewHealthHandler(deps.Readiness)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	if deps.Prom != nil {
		r.GET("/metrics", deps.Prom.Handler())
	}

	limitStore := deps.LimitStore
	if limitStore == nil {
		limitStore = middlewares.NewMemoryLimitStore()
	}
	limiter := middlewares.NewRateLimiter(limitStore, cfg.AuthRateLimit, cfg.AuthRateWindow, log)

	// wire up handlers
	authHandler := handlers.NewAuthHandler(deps.Users, deps.Hasher, deps.Tokens, log, deps.Prom)
	usersHandler := handlers.NewUsersHandler(deps.Users, deps.Hasher, log, deps.Prom)
	expensesHandler := handlers.NewExpensesHandler(deps.Expenses, deps.Summaries, log, deps.Prom)

	// public auth routes
	r.POST("/signup", limiter.Middleware("signup", middlewares.KeyByIP), authHandler.SignUp)
	r.POST("/login", limiter.Middleware("login", middlewares.KeyByIP), authHandler.Login)

	authMW := middlewares.NewAuthMiddleware(deps.Tokens)

	api := r.Group("/api")
	api.Use(authMW.RequireAuth())
	{
		api.GET("/users/:id", usersHandler.GetProfile)
		api.POST("/users/verify-password", usersHandler.VerifyPassword)
		api.PUT("/users/:id/update-password", usersHandler.UpdatePassword)

		api.POST("/expenses", expensesHandler.CreateExpense)
		api.GET("/expenses", expensesHandler.ListExpenses)
		api.GET("/expenses/summary", expensesHandler.Summary)
		api.GET("/expenses/:id", expensesHandler.GetExpense)
		api.PUT("/expenses/:id", expensesHandler.UpdateExpense)
		api.DELETE("/expenses/:id", expensesHandler.DeleteExpense)
	}

	return r
}
