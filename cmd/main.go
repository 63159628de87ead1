package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/hearthchat/chat-history-service/internal/cache"
	"github.com/hearthchat/chat-history-service/internal/config"
	"github.com/hearthchat/chat-history-service/internal/handler"
	"github.com/hearthchat/chat-history-service/internal/mailbox"
	"github.com/hearthchat/chat-history-service/internal/repository"
	"github.com/hearthchat/chat-history-service/internal/service"
	"github.com/hearthchat/chat-history-service/pkg/log"
)

func main() {
	configPath := "config/config.yaml"
	if len(os.Args) > 1 {
		configPath = os.Args[1]
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log.Init(cfg.Log)
	logger := log.L()

	// Mongo is the authoritative store; without it there is no service.
	ctx := context.Background()
	mongoClient, err := repository.NewClient(ctx, cfg.Mongo)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to mongo")
	}
	if err := mongoClient.EnsureIndexes(ctx); err != nil {
		logger.Fatal().Err(err).Msg("failed to ensure mongo indexes")
	}

	// Redis is not: a failed connect leaves the service running with
	// no overlay and no alert delivery. No reconnect loop; the guard
	// stays down until the next process start.
	guard := cache.NewGuard(cfg.Redis)
	guard.TryConnect(ctx, cfg.Redis.ConnectTimeout)

	rooms := repository.NewMongoRoomRepository(mongoClient)
	users := repository.NewMongoUserRepository(mongoClient)
	logs := repository.NewMongoChatLogRepository(mongoClient)
	overlay := cache.NewRedisOverlayCache(guard.Hashes(), cfg.Cache.OverlayKey)
	mbox := mailbox.NewRedisMailbox(guard, guard.Hashes(), cfg.Cache.AlertKey)

	historyService := service.NewChatHistoryService(rooms, users, logs, guard, overlay, mbox)
	httpHandler := handler.NewHTTPHandler(historyService, mbox)

	if cfg.Log.Level != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(log.GinMiddleware(logger))

	httpHandler.RegisterRoutes(router)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	go func() {
		logger.Info().Str("addr", addr).Msg("starting chat-history-service")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("failed to start server")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("server forced to shutdown")
	}

	guard.Close()
	if err := mongoClient.Close(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("error closing mongo connection")
	}

	logger.Info().Msg("server exited")
}
