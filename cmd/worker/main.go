package main

import (
	"context"
	"encoding/json"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/feelincoding/openmat/config"
	"github.com/feelincoding/openmat/internal/cache"
	"github.com/feelincoding/openmat/internal/email"
	"github.com/feelincoding/openmat/internal/kafka"
	"github.com/feelincoding/openmat/internal/repository"
	"github.com/feelincoding/openmat/internal/service/schedule"
	"github.com/jackc/pgx/v5/pgxpool"
	kafkaGo "github.com/segmentio/kafka-go"
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

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	redisCache := cache.NewRedisCache(cfg.Redis, time.Duration(cfg.Booking.ScheduleCacheTTLSeconds)*time.Second)
	slotStore := repository.NewSlotStore(pool)
	auditLog := repository.NewAuditLog(pool)
	scheduleService := schedule.NewService(slotStore, auditLog, redisCache)

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.NotificationsTopic,
		time.Duration(cfg.Kafka.HeartbeatIntervalSeconds)*time.Second,
		time.Duration(cfg.Kafka.SessionTimeoutSeconds)*time.Second)
	defer consumer.Close()

	sender := email.NewSender()

	go func() {
		if err := consumer.Consume(ctx, func(ctx context.Context, msg kafkaGo.Message) error {
			var event kafka.ReservationEvent
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				log.Printf("decode event error: %v", err)
				return nil
			}
			return sender.Send(ctx, event)
		}); err != nil {
			log.Printf("consumer stopped: %v", err)
		}
	}()

	sweep := time.NewTicker(time.Duration(cfg.Worker.RetireSweepMinutes) * time.Minute)
	defer sweep.Stop()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	for {
		select {
		case <-sweep.C:
			retired, err := scheduleService.RetireEndedSlots(ctx)
			if err != nil {
				log.Printf("retire ended slots error: %v", err)
				continue
			}
			if len(retired) > 0 {
				log.Printf("retired %d ended slots", len(retired))
			}
		case s := <-sig:
			log.Printf("received signal %v, shutting down", s)
			return
		}
	}
}
