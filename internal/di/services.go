// Package di provides dependency injection for service initialization.
package di

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"

	"github.com/aristath/compass/internal/clientdata"
	"github.com/aristath/compass/internal/clients/finnhub"
	"github.com/aristath/compass/internal/clients/gemini"
	"github.com/aristath/compass/internal/clients/yahoo"
	"github.com/aristath/compass/internal/config"
	"github.com/aristath/compass/internal/domain"
	"github.com/aristath/compass/internal/events"
	"github.com/aristath/compass/internal/modules/auth"
	"github.com/aristath/compass/internal/modules/commentary"
	"github.com/aristath/compass/internal/modules/decisions"
	"github.com/aristath/compass/internal/modules/market"
	"github.com/aristath/compass/internal/modules/portfolio"
	"github.com/aristath/compass/internal/reliability"
	"github.com/rs/zerolog"
)

// InitializeServices creates clients and services. Missing API keys leave the
// dependent features degraded; they never fail startup.
func InitializeServices(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}

	// Events
	container.EventBus = events.NewBus()
	container.EventManager = events.NewManager(container.EventBus, log)

	// Cache
	container.CacheStore = buildCacheStore(ctx, container, cfg, log)
	container.Cache = clientdata.NewCache(container.CacheStore, log,
		clientdata.WithNamespace(cfg.Cache.Namespace),
		clientdata.WithDefaultTTL(cfg.Cache.TTL),
	)

	// Clients
	container.YahooClient = yahoo.NewClient(log)
	container.FinnhubClient = finnhub.NewClient(cfg.FinnhubAPIKey, log)

	geminiClient, err := gemini.NewClient(ctx, cfg.GeminiAPIKey, log, gemini.WithModel(cfg.GeminiModel))
	switch {
	case errors.Is(err, domain.ErrMissingAPIKey):
		log.Warn().Msg("GEMINI_API_KEY not set, commentary will serve cached entries only")
	case err != nil:
		log.Error().Err(err).Msg("Failed to create Gemini client, commentary generation disabled")
	default:
		container.GeminiClient = geminiClient
	}

	// Auth
	container.Tokens = auth.NewTokenManager(cfg.JWTSecret, cfg.TokenExpiry)
	container.AuthService = auth.NewService(container.UserRepo, container.Tokens, log)

	// Decisions and portfolios
	container.DecisionService = decisions.NewService(container.DecisionRepo, container.EventManager, log)
	container.PortfolioService = portfolio.NewService(container.PortfolioRepo, container.YahooClient, container.EventManager, log)

	// Market
	container.MarketService = market.NewService(container.YahooClient, container.YahooClient, container.FinnhubClient, log)
	container.IndexBoard = market.NewIndexBoard(
		container.YahooClient,
		market.ParseIndexSymbols(cfg.Market.IndexSymbols),
		cfg.Market.RefreshInterval,
		container.EventManager,
		log,
	)

	// Commentary. A nil *gemini.Client must not reach the interface.
	var generator domain.ContentGenerator
	if container.GeminiClient != nil {
		generator = container.GeminiClient
	}
	container.CommentaryService = commentary.NewService(
		container.Cache,
		generator,
		container.IndexBoard,
		container.MarketService,
		container.DecisionRepo,
		container.EventManager,
		log,
	)

	// Backups
	container.BackupService = buildBackupService(ctx, container, cfg, log)

	return nil
}

// buildBackupService returns nil when backups are disabled or the bucket is unreachable
func buildBackupService(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) *reliability.BackupService {
	if !cfg.Backup.Enabled {
		return nil
	}
	store, err := clientdata.NewS3StoreFromOptions(ctx, clientdata.S3Options{
		Bucket:    cfg.Backup.Bucket,
		Prefix:    cfg.Backup.Prefix,
		Region:    cfg.Cache.S3.Region,
		Endpoint:  cfg.Cache.S3.Endpoint,
		AccessKey: cfg.Cache.S3.AccessKey,
		SecretKey: cfg.Cache.S3.SecretKey,
	})
	if err != nil {
		log.Error().Err(err).Msg("Backup store unavailable, backups disabled")
		return nil
	}
	return reliability.NewBackupService(store, filepath.Join(cfg.DataDir, "backup-staging"), log,
		container.AppDB, container.CacheDB)
}

// buildCacheStore picks the durable cache backend, falling back to memory
func buildCacheStore(ctx context.Context, container *Container, cfg *config.Config, log zerolog.Logger) clientdata.Store {
	switch cfg.Cache.Backend {
	case config.CacheBackendS3:
		store, err := clientdata.NewS3StoreFromOptions(ctx, clientdata.S3Options{
			Bucket:    cfg.Cache.S3.Bucket,
			Prefix:    cfg.Cache.S3.Prefix,
			Region:    cfg.Cache.S3.Region,
			Endpoint:  cfg.Cache.S3.Endpoint,
			AccessKey: cfg.Cache.S3.AccessKey,
			SecretKey: cfg.Cache.S3.SecretKey,
		})
		if err != nil {
			log.Error().Err(err).Msg("S3 cache store unavailable, falling back to memory")
			return clientdata.NewMemoryStore()
		}
		return store
	case config.CacheBackendSQLite:
		if container.CacheDB == nil {
			log.Warn().Msg("Cache database missing, falling back to memory")
			return clientdata.NewMemoryStore()
		}
		return clientdata.NewSQLStore(container.CacheDB.Conn())
	default:
		return clientdata.NewMemoryStore()
	}
}
