package http

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"groupwire/internal/gateway"
	"groupwire/internal/service"
)

// NewRouter configura el router de Gin con middlewares y rutas.
func NewRouter(
	logger *zap.Logger,
	authH *AuthHandler,
	groupH *GroupHandler,
	jwtSvc *service.JWTService,
	ws *gateway.Server,
) *gin.Engine {
	r := gin.New()

	r.Use(zapLoggerMiddleware(logger), gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	auth := r.Group("/auth")
	auth.POST("/login", authH.Login)

	groups := r.Group("/groups")
	groups.Use(JWTAuthMiddleware(jwtSvc))
	groups.POST("", groupH.CreateGroup)
	groups.GET("", groupH.ListGroups)
	groups.GET("/:id/messages", groupH.ListMessages)

	// El gate del gateway valida el token por su cuenta: el middleware JWT
	// de arriba no aplica al upgrade.
	r.GET("/ws", ws.Handle)

	return r
}

// zapLoggerMiddleware crea un middleware simple de logging con zap.
func zapLoggerMiddleware(logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		latency := time.Since(start)
		logger.Info("request",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}
