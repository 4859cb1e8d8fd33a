package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"supportchat/backend/internal/api/handler"
	"supportchat/backend/internal/chathub"
	"supportchat/backend/internal/config"
	"supportchat/backend/internal/models"
	"supportchat/backend/internal/storage"
	"supportchat/backend/internal/telegram"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func setupDependencies(cfg *config.Config) (*gorm.DB, *redis.Client) {
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect PostgreSQL: %v", err)
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		log.Fatalf("Failed to connect Redis: %v", err)
	}

	if err := db.AutoMigrate(
		&models.User{},
		&models.Conversation{},
		&models.Message{},
	); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	// Single-active-conversation invariant: at most one non-CLOSED
	// conversation per customer. Partial indexes are beyond gorm tags.
	if err := db.Exec(
		`CREATE UNIQUE INDEX IF NOT EXISTS uniq_active_conversation
		 ON conversations (customer_id) WHERE status <> 'CLOSED'`,
	).Error; err != nil {
		log.Fatalf("Failed to create active-conversation index: %v", err)
	}

	log.Println("Database and Redis connections established, migrations complete.")
	return db, rdb
}

func main() {
	log.Println("Starting supportchat backend...")

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	db, rdb := setupDependencies(cfg)
	s := storage.NewStorageService(db, rdb)

	hub := chathub.NewManagerService(s, cfg.Chat.HistoryLimit)

	if cfg.Telegram.BotToken != "" {
		alerts, err := telegram.NewAlertService(cfg.Telegram.BotToken, cfg.Telegram.StaffChatID)
		if err != nil {
			log.Fatalf("Failed to start Telegram alert bot: %v", err)
		}
		alerts.Directory = s
		hub.SetAlertSink(alerts)
	}

	go hub.Run()
	hub.StartPubSubListener(s)

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.Default()
	h := handler.NewHandler(hub, s, cfg)

	r.POST("/api/session", h.CreateSession)
	r.GET("/api/conversations", h.ListConversations)
	r.GET("/ws/chat", h.ServeWebSocket)
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	server := &http.Server{
		Addr:           fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:        r,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		MaxHeaderBytes: 1 << 20,
	}

	go func() {
		log.Printf("Listening on :%d", cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}
	hub.Stop()
	log.Println("Server exited")
}
