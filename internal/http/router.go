package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/nbclinic/portal/internal/auth"
	"github.com/nbclinic/portal/internal/cache"
	"github.com/nbclinic/portal/internal/config"
	"github.com/nbclinic/portal/internal/domain/profile"
	"github.com/nbclinic/portal/internal/http/handlers"
	"github.com/nbclinic/portal/internal/http/middlewares"
	"github.com/nbclinic/portal/internal/observability"
	"github.com/nbclinic/portal/internal/repo/postgres"
)

// Deps carries everything the router wires together. The repos are built
// here from the pool; the auth pieces are built in main because the
// reconciler shares them.
type Deps struct {
	Cfg         config.Config
	Log         *slog.Logger
	Pool        *pgxpool.Pool
	Prom        *observability.Prom
	Metrics     http.Handler
	Cache       *cache.Cache
	Session     *auth.Context
	Provisioner *auth.Provisioner
	Tokens      *auth.TokenManager
	CachePing   func() error
}

func NewRouter(d Deps) *gin.Engine {
	if d.Cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// middleware
	r.Use(gin.Recovery())
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(d.Log))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(d.Cfg.AllowedOrigins))
	r.Use(middlewares.MaxBodyBytes(1 << 20))
	r.Use(middlewares.RequireJSON())
	r.Use(otelgin.Middleware("portal-api"))
	if d.Prom != nil {
		r.Use(d.Prom.GinMiddleware())
	}

	// health + metrics
	dbPing := func() error {
		if d.Pool == nil {
			return nil
		}
		ctx, cancel := config.WithTimeout(1 * time.Second)
		defer cancel()
		return d.Pool.Ping(ctx)
	}

	h := handlers.NewHealthHandler(dbPing, d.CachePing)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)

	if d.Metrics != nil {
		r.GET("/metrics", gin.WrapH(d.Metrics))
	}

	// wire up repositories
	profilesRepo := postgres.NewProfilesRepo(d.Pool, d.Prom)
	partnersRepo := postgres.NewPartnersRepo(d.Pool)
	doctorsRepo := postgres.NewDoctorsRepo(d.Pool)
	insurancesRepo := postgres.NewInsurancesRepo(d.Pool)
	unitsRepo := postgres.NewUnitsRepo(d.Pool)
	batteriesRepo := postgres.NewBatteriesRepo(d.Pool)
	examsRepo := postgres.NewExamRequestsRepo(d.Pool, d.Prom)
	checkupsRepo := postgres.NewCheckupRequestsRepo(d.Pool, d.Prom)

	// wire up handlers
	authHandler := handlers.NewAuthHandler(d.Session, d.Provisioner)
	usersHandler := handlers.NewUsersHandler(profilesRepo, d.Provisioner, d.Cfg)
	partnersHandler := handlers.NewPartnersHandler(partnersRepo)
	doctorsHandler := handlers.NewDoctorsHandler(doctorsRepo)
	insurancesHandler := handlers.NewInsurancesHandler(insurancesRepo)
	unitsHandler := handlers.NewUnitsHandler(unitsRepo)
	batteriesHandler := handlers.NewBatteriesHandler(batteriesRepo)
	examsHandler := handlers.NewExamsHandler(examsRepo, doctorsRepo, insurancesRepo, d.Cache)
	checkupsHandler := handlers.NewCheckupsHandler(checkupsRepo, batteriesRepo, unitsRepo, d.Cache)
	reportsHandler := handlers.NewReportsHandler(examsRepo, checkupsRepo, d.Cache)

	authmw := middlewares.NewAuthMiddleware(d.Tokens, profilesRepo, d.Cache, d.Cfg.ProfileFallbackRole)

	// brute-force guard on the credential endpoints
	loginLimiter := middlewares.NewRateLimiter(10, time.Minute)

	public := r.Group("/auth")
	public.Use(loginLimiter.RateLimiterMiddleware(middlewares.KeyByIP))
	public.POST("/login", authHandler.Login)
	public.POST("/logout", authHandler.Logout)
	public.POST("/recover", authHandler.Recover)
	public.POST("/bootstrap", authHandler.Bootstrap)

	api := r.Group("")
	api.Use(authmw.RequireAuth())

	api.GET("/auth/me", authHandler.Me)

	// admin: user management, partners, reports
	admin := api.Group("", authmw.RequireRole(profile.RoleAdmin))
	admin.GET("/users", usersHandler.List)
	admin.POST("/users", usersHandler.Create)
	admin.DELETE("/users/:id", usersHandler.Delete)

	admin.POST("/partners", partnersHandler.Create)
	admin.GET("/partners", partnersHandler.List)
	admin.GET("/partners/:id", partnersHandler.GetByID)
	admin.PUT("/partners/:id", partnersHandler.Update)
	admin.DELETE("/partners/:id", partnersHandler.Delete)

	admin.POST("/units", unitsHandler.Create)
	admin.DELETE("/units/:id", unitsHandler.Delete)

	// reception works the same report screens the admin does
	reporting := api.Group("", authmw.RequireRole(profile.RoleReception))
	reporting.GET("/reports/exams", reportsHandler.Exams)
	reporting.GET("/reports/checkups", reportsHandler.Checkups)

	// partner: own reference data + exam referrals
	partnerGroup := api.Group("", authmw.RequireRole(profile.RolePartner))
	partnerGroup.POST("/doctors", doctorsHandler.Create)
	partnerGroup.GET("/doctors", doctorsHandler.List)
	partnerGroup.DELETE("/doctors/:id", doctorsHandler.Delete)

	partnerGroup.POST("/insurances", insurancesHandler.Create)
	partnerGroup.GET("/insurances", insurancesHandler.List)
	partnerGroup.DELETE("/insurances/:id", insurancesHandler.Delete)

	partnerGroup.POST("/exams", examsHandler.Create)

	// reception shares the exam queue with partners (scoped inside the
	// handler) and owns status changes
	examReaders := api.Group("", authmw.RequireRole(profile.RolePartner, profile.RoleReception))
	examReaders.GET("/exams", examsHandler.List)
	examReaders.GET("/exams/:id", examsHandler.GetByID)

	reception := api.Group("", authmw.RequireRole(profile.RoleReception))
	reception.PATCH("/exams/:id/status", examsHandler.UpdateStatus)

	// check-up track
	checkupGroup := api.Group("", authmw.RequireRole(profile.RoleCheckup))
	checkupGroup.POST("/batteries", batteriesHandler.Create)
	checkupGroup.GET("/batteries", batteriesHandler.List)
	checkupGroup.GET("/batteries/:id", batteriesHandler.GetByID)
	checkupGroup.DELETE("/batteries/:id", batteriesHandler.Delete)

	checkupGroup.GET("/units", unitsHandler.List)

	checkupGroup.POST("/checkups", checkupsHandler.Create)
	checkupGroup.PATCH("/checkups/:id/status", checkupsHandler.UpdateStatus)

	// reception follows check-ups read-only
	checkupReaders := api.Group("", authmw.RequireRole(profile.RoleCheckup, profile.RoleReception))
	checkupReaders.GET("/checkups", checkupsHandler.List)
	checkupReaders.GET("/checkups/:id", checkupsHandler.GetByID)

	return r
}
