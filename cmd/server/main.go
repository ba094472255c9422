package main

import (
	"log"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"

	"github.com/fleetos/identity/internal/config"
	"github.com/fleetos/identity/internal/database"
	"github.com/fleetos/identity/internal/handler"
	"github.com/fleetos/identity/internal/queue"
	"github.com/fleetos/identity/internal/repository"
	"github.com/fleetos/identity/internal/router"
	"github.com/fleetos/identity/internal/service"
	"github.com/fleetos/identity/internal/service/queue_publisher"
)

func main() {
	_ = godotenv.Load() // optional .env for local development

	cfg := config.Load()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		log.Fatalf("open database: %v", err)
	}
	defer db.Close()

	rdb, err := config.NewRedisClient()
	if err != nil {
		log.Fatalf("connect redis: %v", err)
	}
	defer rdb.Close()

	// Drain notification events in the background; the consumer keeps its
	// own reconnect loop.
	go func() {
		if err := queue.StartNotificationConsumer(); err != nil {
			log.Printf("notification consumer stopped: %v", err)
		}
	}()

	users := repository.NewUserRepo(db)
	tenants := repository.NewTenantRepo(db)
	tokens := repository.NewTokenRepo(db)

	otp := service.NewOtpService(rdb)
	auth := service.NewAuthService(cfg, users, tenants, tokens, otp, rdb, queue_publisher.PublishNotification)
	tenantSvc := service.NewTenantService(cfg, tenants, users, otp, auth, queue_publisher.PublishNotification)

	e := echo.New()
	router.Register(e, cfg,
		handler.NewAuthHandler(cfg, auth, tenantSvc),
		handler.NewTenantHandler(tenantSvc, auth),
		rdb)

	addr := ":" + cfg.Port
	log.Printf("listening on %s (env=%s)", addr, cfg.Env)
	if err := e.Start(addr); err != nil {
		log.Fatal(err)
	}
}
