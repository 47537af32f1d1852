// Command server runs the CRM analytics and advisory API.
//
// @title       CRM Backend API
// @version     1.0
// @description Clients, purchases and products with dashboards and AI advice.
// @BasePath    /api/v1
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"golang.org/x/text/language"
	"gorm.io/gorm"

	"github.com/tbourn/go-crm-backend/docs"
	"github.com/tbourn/go-crm-backend/internal/advisory"
	"github.com/tbourn/go-crm-backend/internal/config"
	httpapi "github.com/tbourn/go-crm-backend/internal/http"
	"github.com/tbourn/go-crm-backend/internal/observability"
	"github.com/tbourn/go-crm-backend/internal/ratelimit"
	"github.com/tbourn/go-crm-backend/internal/repo"
	"github.com/tbourn/go-crm-backend/internal/search"
	"github.com/tbourn/go-crm-backend/internal/sysutil"
)

const shutdownTimeout = 10 * time.Second

func main() {
	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg := config.MustLoad()
	gin.SetMode(cfg.GinMode)

	version := sysutil.FirstNonEmpty(os.Getenv("APP_VERSION"), "dev")
	sysutil.ConfigureLogger(sysutil.LoggerOptions{
		Level:   cfg.LogLevel,
		Pretty:  cfg.LogPretty,
		Service: cfg.OTEL.ServiceName,
		Version: version,
	})
	docs.SwaggerInfo.BasePath = cfg.APIBasePath
	docs.SwaggerInfo.Version = version

	ctx := context.Background()
	shutdownOTel, err := observability.Setup(ctx, cfg.OTEL, version)
	if err != nil {
		log.Fatal().Err(err).Msg("otel setup failed")
	}

	db, err := repo.OpenSQLite(cfg.DBPath)
	if err != nil {
		log.Fatal().Err(err).Str("path", cfg.DBPath).Msg("open database")
	}
	if err := repo.AutoMigrate(db); err != nil {
		log.Fatal().Err(err).Msg("migrate database")
	}

	store, closeStore := cacheStore(ctx, cfg, db)
	defer closeStore()

	gwOpts := []advisory.GatewayOption{}
	if cfg.AI.KnowledgeDir != "" {
		idx, err := search.NewIndexFromDir(cfg.AI.KnowledgeDir)
		if err != nil {
			log.Warn().Err(err).Str("dir", cfg.AI.KnowledgeDir).Msg("knowledge base not loaded")
		} else {
			gwOpts = append(gwOpts, advisory.WithKnowledge(idx, cfg.AI.KnowledgeTopK, cfg.AI.KnowledgeMinScore))
		}
	}
	gateway := advisory.NewGateway(
		advisory.NewCache(store, nil),
		advisory.NewChatClient(advisory.ChatOptions{
			BaseURL:     cfg.AI.BaseURL,
			APIKey:      cfg.AI.APIKey,
			Model:       cfg.AI.Model,
			MaxTokens:   cfg.AI.MaxTokens,
			Temperature: cfg.AI.Temperature,
			Timeout:     cfg.AI.Timeout,
		}),
		cfg.AI.CacheTTL,
		gwOpts...,
	)
	if cfg.AI.APIKey == "" {
		log.Warn().Msg("AI_API_KEY not set; advisory endpoints will answer 502")
	}

	tag, err := language.Parse(cfg.AI.Locale)
	if err != nil {
		tag = language.English
	}

	r := gin.New()
	httpapi.RegisterRoutes(r, httpapi.Deps{
		DB:       db,
		Gateway:  gateway,
		Prompter: advisory.NewPrompter(tag),
		Gate:     ratelimit.New(ratelimit.WithIdleEviction(2*cfg.AI.RateWindow, 1024)),
	}, cfg)

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           r,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadHeaderTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		IdleTimeout:       cfg.IdleTimeout,
		MaxHeaderBytes:    cfg.MaxHeaderBytes,
	}

	go func() {
		log.Info().Str("addr", srv.Addr).Str("version", version).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
	if err := shutdownOTel(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("otel shutdown failed")
	}
	if sqlDB, err := db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	log.Info().Msg("server stopped")
}

// cacheStore picks the advisory answer store named by AI_CACHE_BACKEND. A
// Redis store that cannot be reached falls back to the database.
func cacheStore(ctx context.Context, cfg config.Config, db *gorm.DB) (advisory.Store, func()) {
	switch cfg.AI.CacheBackend {
	case config.CacheRedis:
		rs, err := advisory.NewRedisStoreFromAddr(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
		if err != nil {
			log.Error().Err(err).Str("addr", cfg.Redis.Addr).Msg("redis unavailable, caching in database")
			return advisory.DBStore{DB: db}, func() {}
		}
		return rs, func() { _ = rs.Close() }
	case config.CacheDB:
		return advisory.DBStore{DB: db}, func() {}
	default:
		return advisory.NewMemoryStore(), func() {}
	}
}
