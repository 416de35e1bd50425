package main // Entry point package

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/busline/seat-lock/internal/config"
	"github.com/busline/seat-lock/internal/database"
	"github.com/busline/seat-lock/internal/handler"
	"github.com/busline/seat-lock/internal/lock"
	"github.com/busline/seat-lock/internal/middleware"
	"github.com/busline/seat-lock/internal/queue"
	"github.com/busline/seat-lock/internal/repository"
	"github.com/busline/seat-lock/internal/router"
	queue_publisher "github.com/busline/seat-lock/internal/service"
)

func main() {
	_ = godotenv.Load() // .env is optional; real env vars win

	cfg := config.Load()
	lockCfg := config.LoadLockConfig()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("db open: %v", err)
	}
	defer db.Close()

	lockRepo := repository.NewSeatLockRepo(db)
	seatRepo := repository.NewTripSeatRepo(db)
	manager := lock.NewManager(db, lockRepo, seatRepo, lockCfg.HoldDuration)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Background reaper reclaims abandoned holds; it talks to the store
	// directly and never goes through the HTTP layer.
	reaper := lock.NewReaper(lockRepo, lockCfg.ReaperInterval)
	go reaper.Run(ctx)

	// Booking-subsystem intake for confirmed seats.
	go func() {
		if err := queue.StartSeatConfirmedConsumer(); err != nil {
			log.Printf("booking-consumer: %v", err)
		}
	}()

	e := echo.New()
	router.RegisterRoutes(e)

	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), config.NewRedisClient())
	h := handler.NewReservationHandler(manager, seatRepo, lockRepo, queue_publisher.PublishSeatConfirmed)
	router.RegisterReservation(e, h, cfg.JWTSecret, limiter)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s, hold=%s, reaper=%s)", addr, cfg.Env, lockCfg.HoldDuration, lockCfg.ReaperInterval)

	go func() {
		<-ctx.Done()
		_ = e.Shutdown(context.Background())
	}()
	if err := e.Start(addr); err != nil {
		log.Printf("server stopped: %v", err)
	}
}
