package server

import (
	"fmt"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/attachments"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/bunkers"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/compliance"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/config"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/infra"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/lookups"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/machinery"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/mail"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/metrics"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/ports"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/reports"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/rob"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/security"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/server/apidocs"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/server/handlers"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/server/mw"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/server/resp"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/store"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/tanks"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/tasks"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/team"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/users"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/vessels"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/voyages"
)

// ServiceAll mounts every service under /api/<name> in one process.
const ServiceAll = "all"

// Services lists the names accepted by -service, in gateway order.
var Services = []string{"auth", "team", "tasks", "ships", "machinery", "ports", "voyages", "tanks", "bunkering", "reporting"}

// complianceWorkers bounds per-ship work in fleet summaries.
const complianceWorkers = 4

// registrar is a domain handler that mounts its own routes.
type registrar interface {
	Register(g gin.IRoutes)
}

// app holds the handlers of every service; NewRouter mounts the requested ones.
type app struct {
	jwtm *security.JWTManager

	auth    *handlers.AuthHandler
	profile *handlers.ProfileHandler
	users   *handlers.UsersHandler
	files   *handlers.FilesHandler

	domain map[string]registrar
}

func newApp(cfg config.Config, deps *infra.Infra, m *metrics.Registry, logger *zap.Logger) *app {
	jwtm := security.NewJWTManager(cfg.Security.JWTSecret, cfg.Security.JWTAccessTTL, cfg.Security.JWTRefreshTTL)
	otpStore := store.NewOTPStore(deps.Redis, cfg.Security.JWTSecret, cfg.Security.OTPTTL, cfg.Security.OTPCooldown, cfg.Security.OTPMaxAttempts)
	refreshStore := store.NewRefreshStore(deps.Redis, cfg.Security.JWTRefreshTTL)

	usersRepo := users.NewRepo(deps.PG)
	usersSvc := users.NewService(logger.Named("users"), usersRepo, otpStore, refreshStore, jwtm,
		mail.New(cfg.Mail, logger.Named("mail")), cfg.Security.OTPLength, cfg.Security.OTPTTL)

	uploads := attachments.NewService(deps.Blob, cfg.Storage.MaxUploadSize, logger.Named("attachments"))
	files := attachments.NewRepo(deps.PG)
	lk := lookups.NewService(lookups.NewRepo(deps.PG), deps.Redis, cfg.Security.LookupCacheTTL, logger.Named("lookups"))

	shipsRepo := vessels.NewRepo(deps.PG)
	portsRepo := ports.NewRepo(deps.PG)
	voyagesRepo := voyages.NewRepo(deps.PG)
	tanksRepo := tanks.NewRepo(deps.PG)
	complianceSvc := compliance.NewService(compliance.NewPGSource(deps.PG), logger.Named("compliance"), complianceWorkers)

	bunkerLookups := handlers.BunkerLookups{Ships: shipsRepo, Voyages: voyagesRepo, Ports: portsRepo, Tanks: tanksRepo, Lists: lk}

	return &app{
		jwtm:    jwtm,
		auth:    handlers.NewAuthHandler(logger, usersSvc),
		profile: handlers.NewProfileHandler(logger, usersRepo, uploads),
		users:   handlers.NewUsersHandler(logger, usersRepo),
		files:   handlers.NewFilesHandler(logger, deps.Blob, files, cfg.Storage.PresignTTL),
		domain: map[string]registrar{
			"team":      handlers.NewTeamHandler(logger, team.NewRepo(deps.PG), uploads),
			"tasks":     handlers.NewTasksHandler(logger, tasks.NewRepo(deps.PG), uploads, files, lk),
			"ships":     handlers.NewShipsHandler(logger, shipsRepo, uploads, lk),
			"machinery": handlers.NewMachineryHandler(logger, machinery.NewRepo(deps.PG), lk),
			"ports":     handlers.NewPortsHandler(logger, portsRepo),
			"voyages":   handlers.NewVoyagesHandler(logger, voyagesRepo, uploads, files),
			"tanks":     handlers.NewTanksHandler(logger, tanksRepo, lk),
			"bunkering": handlers.NewBunkeringHandler(logger, bunkers.NewRepo(deps.PG), rob.NewRepo(deps.PG), uploads, files, bunkerLookups, m),
			"reporting": multi{
				handlers.NewReportsHandler(logger, reports.NewRepo(deps.PG), shipsRepo, lk, m),
				handlers.NewComplianceHandler(logger, complianceSvc),
			},
		},
	}
}

// multi mounts several handlers on one group.
type multi []registrar

func (ms multi) Register(g gin.IRoutes) {
	for _, r := range ms {
		r.Register(g)
	}
}

// mountPrefix is where a service lives. Team keeps /api/team even standalone,
// since the gateway forwards it unstripped.
func mountPrefix(service string, all bool) string {
	if all || service == "team" {
		return "/api/" + service
	}
	return "/"
}

// NewRouter builds the HTTP handler for one service, or for every service when service is "all".
func NewRouter(cfg config.Config, service string, deps *infra.Infra, m *metrics.Registry, logger *zap.Logger) (http.Handler, error) {
	selected := []string{service}
	if service == ServiceAll {
		selected = Services
	} else if !slices.Contains(Services, service) {
		return nil, fmt.Errorf("unknown service %q (allowed: %s, %s)", service, strings.Join(Services, ", "), ServiceAll)
	}

	if cfg.AppEnv == "local" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(mw.RequestID())
	r.Use(mw.RequestLogger(logger))
	r.Use(m.Middleware())
	r.Use(mw.SecurityHeaders())
	r.Use(mw.Deadline(cfg.Server.RequestTimeout, cfg.Server.UploadTimeout))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Security.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Requested-With", mw.HeaderRequestID},
		ExposeHeaders:    []string{"Content-Disposition", mw.HeaderRequestID},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		resp.OK(c, gin.H{"status": "ok", "service": service})
	})
	r.GET("/metrics", gin.WrapH(m.Handler()))
	apidocs.Register(r)
	r.NoRoute(func(c *gin.Context) {
		resp.Error(c, http.StatusNotFound, "Route not found", c.Request.URL.Path)
	})

	a := newApp(cfg, deps, m, logger)
	r.GET("/uploads/*key", a.files.Serve)

	limit := mw.RateLimit(deps.Redis, cfg.Security.RateLimitRPS, logger)
	requireAuth := mw.RequireAuth(a.jwtm)
	for _, name := range selected {
		prefix := mountPrefix(name, service == ServiceAll)
		if prefix != "/" {
			r.GET(prefix+"/uploads/*key", a.files.Serve)
		}
		g := r.Group(prefix, limit)
		if name == "auth" {
			a.mountAuth(g, requireAuth)
			continue
		}
		g.Use(requireAuth)
		a.domain[name].Register(g)
	}
	return r, nil
}

func (a *app) mountAuth(g *gin.RouterGroup, requireAuth gin.HandlerFunc) {
	g.POST("/login", a.auth.Login)
	g.POST("/verify-login-otp", a.auth.VerifyLoginOTP)
	g.POST("/refresh", a.auth.Refresh)
	g.POST("/logout", a.auth.Logout)
	g.POST("/request-forgot-password-otp", a.auth.ForgotPassword)
	g.POST("/verify-forgot-password-otp", a.auth.ResetPassword)

	authed := g.Group("", requireAuth)
	authed.POST("/change-password", a.auth.ChangePassword)
	authed.GET("/me", a.profile.Me)
	authed.POST("/users/upload-image", a.profile.UploadImage)

	admin := authed.Group("/users", mw.RequireAdmin())
	admin.GET("/metadata/rights", a.users.Rights)
	admin.GET("", a.users.List)
	admin.GET("/:id", a.users.Get)
	admin.POST("", a.users.Create)
	admin.PUT("/:id", a.users.Update)
	admin.DELETE("/:id", a.users.Deactivate)
}
