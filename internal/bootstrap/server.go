package bootstrap

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/feelincoding/openmat/api"
	"github.com/feelincoding/openmat/config"
	"github.com/feelincoding/openmat/internal/service/reservation"
	"github.com/feelincoding/openmat/internal/service/schedule"
	"github.com/gin-gonic/gin"
)

// Run starts the HTTP server and blocks until the context is canceled or the
// server fails.
func Run(ctx context.Context, cfg *config.Config, scheduleSvc schedule.ScheduleUseCase, reservationSvc reservation.ReservationUseCase) error {
	srv := &http.Server{
		Addr:    cfg.HTTP.Address,
		Handler: NewRouter(scheduleSvc, reservationSvc),
	}

	errCh := make(chan error, 1)
	go func() { errCh <- srv.ListenAndServe() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown http server: %w", err)
		}
		return nil
	}
}

func NewRouter(scheduleSvc schedule.ScheduleUseCase, reservationSvc reservation.ReservationUseCase) *gin.Engine {
	router := gin.Default()
	router.Use(corsMiddleware())

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"service": "open-mat",
		})
	})

	apiGroup := router.Group("/api")
	api.NewScheduleHandler(scheduleSvc).Register(apiGroup)
	api.NewReservationHandler(reservationSvc).Register(apiGroup)

	return router
}

func corsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Actor-Id")
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
