package repository

import (
	"errors"
	"fmt"

	"github.com/strikeline/strikeline/pkg/interfaces"
	"github.com/strikeline/strikeline/pkg/logger"
	"github.com/strikeline/strikeline/pkg/types"
)

// Loader is implemented by repositories that can read the saved book back.
// Both bundled drivers do; the status command depends on it.
type Loader interface {
	Load() ([]types.Position, error)
}

// New selects the repository implementation from config: "csv" keeps a
// local snapshot file, "postgres" shares a database.
func New(cfg types.RepositoryConfig, log logger.Logger) (interfaces.PositionRepository, error) {
	switch cfg.DriverName() {
	case "csv":
		return NewCSV(cfg.StorePath(), log), nil
	case "postgres":
		if cfg.DSN == "" {
			return nil, errors.New("postgres repository requires a dsn")
		}
		return NewPostgres(cfg.DSN, log)
	default:
		return nil, fmt.Errorf("unknown repository driver %q", cfg.Driver)
	}
}
