package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/feelincoding/openmat/config"
	"github.com/feelincoding/openmat/internal/bootstrap"
	"github.com/feelincoding/openmat/internal/cache"
	"github.com/feelincoding/openmat/internal/kafka"
	"github.com/feelincoding/openmat/internal/repository"
	"github.com/feelincoding/openmat/internal/service/reservation"
	"github.com/feelincoding/openmat/internal/service/schedule"
	"github.com/jackc/pgx/v5/pgxpool"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	redisCache := cache.NewRedisCache(cfg.Redis, time.Duration(cfg.Booking.ScheduleCacheTTLSeconds)*time.Second)
	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()

	slotStore := repository.NewSlotStore(pool)
	reservationRepo := repository.NewReservationRepository(pool)
	auditLog := repository.NewAuditLog(pool)

	scheduleService := schedule.NewService(slotStore, auditLog, redisCache)
	reservationService := reservation.NewService(
		slotStore,
		reservationRepo,
		auditLog,
		producer,
		cfg.Kafka.ReservationsTopic,
		time.Duration(cfg.Booking.OpTimeoutSeconds)*time.Second,
		reservation.WithNotificationsTopic(cfg.Kafka.NotificationsTopic),
	)

	if err := bootstrap.Run(ctx, cfg, scheduleService, reservationService); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
