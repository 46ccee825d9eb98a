package http

import (
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HealthChecker reports the liveness of the media engine.
type HealthChecker interface {
	Done() <-chan struct{}
	Err() error
}

type RouterConfig struct {
	AllowOrigins []string
	Health       HealthChecker
	Gatherer     prometheus.Gatherer
}

func SetupRouter(cfg RouterConfig, roomController *RoomController, signalingController *SignalingController) *gin.Engine {
	router := gin.Default()
	config := cors.DefaultConfig()
	if len(cfg.AllowOrigins) == 0 {
		config.AllowAllOrigins = true
	} else {
		config.AllowOrigins = cfg.AllowOrigins
		config.AllowCredentials = true
	}
	config.AllowHeaders = []string{
		"Authorization",
		"Content-Type",
		"Origin",
		"Accept",
	}
	config.AllowMethods = []string{"GET", "HEAD", "OPTIONS"}
	router.Use(cors.New(config))

	router.GET("/healthz", healthHandler(cfg.Health))
	if cfg.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{})))
	}

	if signalingController != nil {
		router.GET("/ws/*path", signalingController.Connect)
	}

	if roomController != nil {
		rooms := router.Group("/api/rooms")
		rooms.GET("", roomController.ListRooms)
		rooms.GET("/:roomID", roomController.GetRoom)
		rooms.GET("/:roomID/events", roomController.ListEvents)
	}

	return router
}

func healthHandler(health HealthChecker) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		if health != nil {
			select {
			case <-health.Done():
				ctx.JSON(http.StatusServiceUnavailable, gin.H{"status": "media engine down", "error": errString(health.Err())})
				return
			default:
			}
		}
		ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
	}
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
