package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"github.com/gin-gonic/gin"

	"stressguard/internal/alerting"
	"stressguard/internal/api"
	"stressguard/internal/auth"
	"stressguard/internal/config"
	"stressguard/internal/logger"
	"stressguard/internal/redis"
	"stressguard/internal/scoring"
	"stressguard/internal/service/account"
	"stressguard/internal/service/ai"
	"stressguard/internal/service/assistant"
	"stressguard/internal/service/team"
	"stressguard/internal/service/wellness"
	"stressguard/internal/storage"
)

func main() {
	cfg, err := config.Load(os.Getenv("STRESSGUARD_CONFIG"))
	if err != nil {
		slog.Error("load config", "err", err)
		os.Exit(1)
	}
	logger.Init(cfg.Log)

	dbType := os.Getenv("STRESSGUARD_DB")
	if dbType == "" {
		dbType = "sqlite3"
	}
	slog.Info("opening database", "driver", dbType)
	db, err := storage.Open(dbType, cfg)
	if err != nil {
		slog.Error("open database", "err", err)
		os.Exit(1)
	}
	defer db.Close()
	if err := storage.Migrate(db, dbType); err != nil {
		slog.Error("migrate database", "err", err)
		os.Exit(1)
	}

	rdb, err := redis.NewRedisClient(cfg)
	switch {
	case errors.Is(err, redis.ErrDisabled):
		slog.Info("redis token cache disabled")
	case err != nil:
		slog.Warn("redis unavailable, tokens served from the database", "err", err)
		rdb = nil
	default:
		defer rdb.Close()
	}

	// A missing provider key leaves the assistant on its fallback reply.
	var (
		gen       scoring.Generator
		responder assistant.Responder
	)
	chatModel, err := ai.FromConfig(context.Background(), cfg, cfg.Assistant.Provider)
	if err != nil {
		slog.Warn("chat model unavailable", "provider", cfg.Assistant.Provider, "err", err)
	} else {
		gen = chatModel
		responder = assistant.NewModelResponder(chatModel)
	}

	scorer, err := scoring.New(cfg.Wellness, gen)
	if err != nil {
		slog.Error("init scorer", "err", err)
		os.Exit(1)
	}

	accounts := account.NewService(db)
	authService := auth.NewService(db, rdb, time.Duration(cfg.BasicConfig.TokenTTLHours)*time.Hour)
	wellnessService := wellness.NewService(db, scorer,
		alerting.NewPolicy(cfg.Wellness.AlertThreshold), cfg.Wellness.BurnoutThreshold, accounts)
	teamService := team.NewService(db, cfg.Wellness.AssignmentMode, accounts)
	assistantService := assistant.NewService(db, responder,
		cfg.Assistant.HistoryTurns, time.Duration(cfg.Assistant.TimeoutSeconds)*time.Second)
	handlers := api.NewHandler(accounts, authService, wellnessService, teamService, assistantService)

	router := gin.Default()
	router.Use(api.CORS(cfg.BasicConfig.AllowedOrigins))
	handlers.RegisterRoutes(router)

	addr := cfg.BasicConfig.ServerAddress
	if addr == "" {
		addr = ":8090"
	}
	slog.Info("server starting", "addr", addr, "scoring", cfg.Wellness.ScoringStrategy)
	if err := router.Run(addr); err != nil {
		slog.Error("server stopped", "err", err)
		os.Exit(1)
	}
}
