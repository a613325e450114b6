package http

import (
	"context"
	"log/slog"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/medicareplus/portal/internal/auth"
	"github.com/medicareplus/portal/internal/chat"
	"github.com/medicareplus/portal/internal/config"
	"github.com/medicareplus/portal/internal/domain/role"
	"github.com/medicareplus/portal/internal/http/handlers"
	"github.com/medicareplus/portal/internal/http/middlewares"
	"github.com/medicareplus/portal/internal/identity"
	"github.com/medicareplus/portal/internal/observability"
	"github.com/medicareplus/portal/internal/repo/postgres"
	"github.com/medicareplus/portal/internal/session"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

type RouterDeps struct {
	Cfg       config.Config
	Log       *slog.Logger
	Pool      *pgxpool.Pool
	Bus       *session.RedisBus
	Resolver  *session.Resolver
	Completer chat.Completer
	Prom      *observability.Prom
	Registry  *prometheus.Registry
	JWT       *auth.Manager
}

func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// middleware

	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger())
	r.Use(middlewares.SecurityHeaders())
	r.Use(otelgin.Middleware("medicare-portal"))

	if deps.Prom != nil {
		r.Use(deps.Prom.GinHandleMiddleware())
	}

	// health

	ping := func() error {
		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		if deps.Pool != nil {
			if err := deps.Pool.Ping(ctx); err != nil {
				return err
			}
		}

		if deps.Bus != nil {
			return deps.Bus.Ping(ctx)
		}

		return nil
	}

	health := handlers.NewHealthHandler(ping)
	r.GET("/healthz", health.Healthz)
	r.GET("/readyz", health.Readyz)

	if deps.Registry != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Registry, promhttp.HandlerOpts{})))
	}

	// wire up repositories

	accountsRepo := postgres.NewAccountsRepo(deps.Pool)
	rolesRepo := postgres.NewRolesRepo(deps.Pool)
	profilesRepo := postgres.NewProfilesRepo(deps.Pool)
	patientsRepo := postgres.NewPatientsRepo(deps.Pool)
	activitiesRepo := postgres.NewActivitiesRepo(deps.Pool)
	refreshRepo := postgres.NewRefreshTokensRepo(deps.Pool)

	issuer := identity.NewIssuer(accountsRepo, rolesRepo, profilesRepo, deps.Log)

	// an absent bus (tests, redis outage at boot) disables event publishing
	var busPublisher handlers.SessionPublisher

	if deps.Bus != nil {
		busPublisher = deps.Bus
	}

	// wire up handlers

	authHandler := handlers.NewAuthHandler(issuer, deps.JWT, refreshRepo, busPublisher, deps.Cfg, deps.Log)
	patientsHandler := handlers.NewPatientsHandler(patientsRepo, deps.Log)
	activitiesHandler := handlers.NewActivitiesHandler(activitiesRepo, deps.Log)
	chatbotHandler := handlers.NewChatbotHandler(deps.Completer, deps.Prom, deps.Log)
	sessionHandler := handlers.NewSessionHandler(deps.Resolver)
	profileHandler := handlers.NewProfileHandler(accountsRepo, profilesRepo, deps.Log)

	authMW := middlewares.NewAuthMiddleware(deps.JWT)
	roleGate := middlewares.NewRoleGate(rolesRepo, deps.Prom)
	loginLimiter := middlewares.NewRateLimiter(10, time.Minute)

	// credential issuing

	authGroup := r.Group("/auth")
	authGroup.Use(middlewares.CORSMiddleware(deps.Cfg.AllowedOrigins))
	authGroup.Use(middlewares.MaxBodyBytes(1 << 16))
	authGroup.Use(loginLimiter.RateLimiterMiddleware(middlewares.KeyByIP))
	{
		// refresh and logout carry no body, only the cookie
		authGroup.POST("/refresh", authHandler.Refresh)
		authGroup.POST("/logout", authHandler.Logout)

		creds := authGroup.Group("", middlewares.RequireJSON())
		creds.POST("/patient/signup", authHandler.PatientSignUp)
		creds.POST("/doctor/signup", authHandler.DoctorSignUp)
		creds.POST("/patient/login", authHandler.PatientLogin)
		creds.POST("/doctor/login", authHandler.DoctorLogin)
	}

	// resolver-backed session view

	sessionGroup := r.Group("/session")
	sessionGroup.Use(middlewares.CORSMiddleware(deps.Cfg.AllowedOrigins))
	{
		sessionGroup.GET("", sessionHandler.Current)
	}

	// role-gated portal API

	api := r.Group("/api")
	api.Use(middlewares.CORSMiddleware(deps.Cfg.AllowedOrigins))
	api.Use(authMW.RequireAuth())

	api.GET("/me", profileHandler.Me)

	doctor := api.Group("", roleGate.RequireRole(role.Doctor))
	{
		doctor.POST("/patients", patientsHandler.Create)
		doctor.GET("/patients", patientsHandler.List)
		doctor.GET("/patients/:id", patientsHandler.Get)
		doctor.POST("/patients/:id/checks", patientsHandler.RecordCheck)
	}

	patientGroup := api.Group("", roleGate.RequireRole(role.Patient))
	{
		patientGroup.POST("/activities", activitiesHandler.Log)
		patientGroup.GET("/activities", activitiesHandler.List)
	}

	// public chatbot gateway; the web widget calls it before sign-in, so it
	// gets permissive CORS and no auth middleware

	functions := r.Group("/functions")
	functions.Use(middlewares.PublicCORS())
	{
		functions.POST("/chatbot", chatbotHandler.Chat)
		functions.OPTIONS("/chatbot", func(*gin.Context) {})
	}

	return r
}
