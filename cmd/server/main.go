package main

import (
	"database/sql"
	"log"
	"net/http"
	"time"

	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/driver/pgdriver"

	"github.com/IsaacEduardo/chat-umn/config"
	"github.com/IsaacEduardo/chat-umn/internal/chat/hub"
	"github.com/IsaacEduardo/chat-umn/internal/chat/ratelimit"
	chatRepository "github.com/IsaacEduardo/chat-umn/internal/chat/repository"
	"github.com/IsaacEduardo/chat-umn/internal/chat/transport"
	chatUsecase "github.com/IsaacEduardo/chat-umn/internal/chat/usecase"
	userRepository "github.com/IsaacEduardo/chat-umn/internal/user/repository"
	"github.com/IsaacEduardo/chat-umn/pkg/logger"
)

func main() {
	v, err := config.LoadConfig("config")
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	cfg, err := config.ParseConfig(v)
	if err != nil {
		log.Fatalf("failed to parse config: %v", err)
	}

	appLogger, err := logger.NewLogger(cfg)
	if err != nil {
		log.Fatalf("failed to build logger: %v", err)
	}

	connector := pgdriver.NewConnector(pgdriver.WithDSN(cfg.Bun.DSN))
	sqlDB := sql.OpenDB(connector)
	db := bun.NewDB(sqlDB, pgdialect.New())
	defer db.Close()

	userRepo := userRepository.NewUserRepository(db, *appLogger)
	messageRepo := chatRepository.NewMessageRepository(db, *appLogger)

	registry := hub.NewRegistry()
	limiter := ratelimit.NewLimiter(
		cfg.Chat.MessageRateLimit,
		cfg.Chat.ActionRateLimit,
		time.Duration(cfg.Chat.RateWindowSeconds)*time.Second,
	)

	uc := chatUsecase.NewChatUsecase(userRepo, messageRepo, registry, limiter, *appLogger, *cfg)

	mux := http.NewServeMux()
	mux.Handle("/ws", transport.NewServer(uc, userRepo, *appLogger, *cfg))

	appLogger.Info("chat server listening", "port", cfg.Server.Port, "env", cfg.Server.Environment)
	if err := http.ListenAndServe(":"+cfg.Server.Port, mux); err != nil {
		appLogger.Error("server stopped", "err", err)
	}
}
