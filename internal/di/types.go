// Package di provides dependency injection type definitions.
//
// Container holds every long-lived dependency. It is built once by Wire and
// handed to the HTTP server, which reads services from it.
package di

import (
	"github.com/aristath/compass/internal/clientdata"
	"github.com/aristath/compass/internal/clients/finnhub"
	"github.com/aristath/compass/internal/clients/gemini"
	"github.com/aristath/compass/internal/clients/yahoo"
	"github.com/aristath/compass/internal/database"
	"github.com/aristath/compass/internal/events"
	"github.com/aristath/compass/internal/modules/auth"
	"github.com/aristath/compass/internal/modules/commentary"
	"github.com/aristath/compass/internal/modules/decisions"
	"github.com/aristath/compass/internal/modules/market"
	"github.com/aristath/compass/internal/modules/portfolio"
	"github.com/aristath/compass/internal/reliability"
	"github.com/aristath/compass/internal/scheduler"
)

// Container holds all application dependencies
type Container struct {
	// Databases
	AppDB   *database.DB // users, decisions, portfolios
	CacheDB *database.DB // durable commentary cache

	// Events
	EventBus     *events.Bus
	EventManager *events.Manager

	// Cache
	Cache      *clientdata.Cache
	CacheStore clientdata.Store

	// Clients
	YahooClient   *yahoo.Client
	FinnhubClient *finnhub.Client
	GeminiClient  *gemini.Client // nil when GEMINI_API_KEY is unset

	// Repositories
	UserRepo      *auth.UserRepository
	DecisionRepo  *decisions.Repository
	PortfolioRepo *portfolio.Repository

	// Services
	Tokens            *auth.TokenManager
	AuthService       *auth.Service
	DecisionService   *decisions.Service
	PortfolioService  *portfolio.Service
	MarketService     *market.Service
	IndexBoard        *market.IndexBoard
	CommentaryService *commentary.Service
	BackupService     *reliability.BackupService // nil unless BACKUP_ENABLED

	// Jobs
	Scheduler *scheduler.Scheduler
	Jobs      *JobInstances
}

// JobInstances holds registered jobs for manual triggering via the API
type JobInstances struct {
	CacheCleanup  *clientdata.CleanupJob
	WALCheckpoint *scheduler.CheckWALCheckpointsJob
	Vacuum        *reliability.VacuumJob
	Backup        *reliability.BackupJob // nil unless backups are enabled
}

// Close stops background work and closes databases. Safe on a partial container.
func (c *Container) Close() {
	if c == nil {
		return
	}
	if c.IndexBoard != nil {
		c.IndexBoard.Stop()
	}
	if c.CacheDB != nil {
		c.CacheDB.Close()
	}
	if c.AppDB != nil {
		c.AppDB.Close()
	}
}
