package gateway

import (
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/config"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/metrics"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/server/mw"
	"github.com/anifocks/MEMP-Shore-Mobile-sub000/internal/server/resp"
)

// NewRouter serves /health and /metrics itself and proxies everything else.
func NewRouter(cfg config.Config, proxy *Proxy, m *metrics.Registry, logger *zap.Logger) http.Handler {
	if cfg.AppEnv == "local" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(mw.RequestID())
	r.Use(mw.RequestLogger(logger))
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Security.CORSOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "X-Requested-With", mw.HeaderRequestID},
		ExposeHeaders:    []string{"Content-Disposition", mw.HeaderRequestID},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	r.GET("/health", func(c *gin.Context) {
		resp.OK(c, gin.H{"status": "ok", "service": "gateway"})
	})
	r.GET("/metrics", gin.WrapH(m.Handler()))

	r.NoRoute(func(c *gin.Context) {
		c.Request.Header.Set(mw.HeaderRequestID, c.GetString(mw.CtxRequestID))
		proxy.ServeHTTP(c.Writer, c.Request)
	})
	r.NoMethod(func(c *gin.Context) {
		resp.Error(c, http.StatusMethodNotAllowed, "Method not allowed", c.Request.Method)
	})
	return r
}
