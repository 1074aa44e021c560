package http

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/dkeye/arena/internal/adapters/signal"
	"github.com/dkeye/arena/internal/app"
	"github.com/dkeye/arena/internal/config"
)

func SetupRouter(ctx context.Context, cfg *config.Config, ctl *signal.Controller, coordinator *app.Coordinator) *gin.Engine {
	if cfg.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	if cfg.Mode == "debug" {
		r.Use(gin.Logger())
	}
	r.Use(gin.Recovery())

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	r.GET("/api/rooms", func(c *gin.Context) {
		rooms, err := coordinator.Rooms(c.Request.Context())
		if err != nil {
			log.Error().Err(err).Str("module", "adapters.http").Msg("list rooms")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"rooms": rooms})
	})

	r.GET("/ws/arena/:room", func(c *gin.Context) {
		ctl.HandleArena(ctx, c)
	})

	log.Info().Str("module", "adapters.http").Msg("router setup")
	return r
}
