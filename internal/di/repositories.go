// Package di provides dependency injection for repository implementations.
package di

import (
	"fmt"

	"github.com/aristath/compass/internal/modules/auth"
	"github.com/aristath/compass/internal/modules/decisions"
	"github.com/aristath/compass/internal/modules/portfolio"
	"github.com/rs/zerolog"
)

// InitializeRepositories creates all repositories over app.db
func InitializeRepositories(container *Container, log zerolog.Logger) error {
	if container == nil {
		return fmt.Errorf("container cannot be nil")
	}
	if container.AppDB == nil {
		return fmt.Errorf("app database not initialized")
	}

	conn := container.AppDB.Conn()
	container.UserRepo = auth.NewUserRepository(conn, log)
	container.DecisionRepo = decisions.NewRepository(conn, log)
	container.PortfolioRepo = portfolio.NewRepository(conn, log)

	return nil
}
