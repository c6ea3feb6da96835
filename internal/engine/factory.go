package engine

import (
	"fmt"

	"github.com/strikeline/strikeline/pkg/interfaces"
	"github.com/strikeline/strikeline/pkg/logger"
	"github.com/strikeline/strikeline/pkg/market"
	"github.com/strikeline/strikeline/pkg/notifier"
	"github.com/strikeline/strikeline/pkg/repository"
	"github.com/strikeline/strikeline/pkg/types"
)

// DependencyFactory creates default implementations of dependencies.
// This follows the dependency injection pattern and removes hidden
// concrete fallbacks from constructors.
type DependencyFactory struct {
	config *types.StrikelineConfig
	logger logger.Logger
}

// NewDependencyFactory creates a new dependency factory
func NewDependencyFactory(config *types.StrikelineConfig, log logger.Logger) *DependencyFactory {
	return &DependencyFactory{
		config: config,
		logger: log,
	}
}

// CreateDefaults creates all default dependencies for the screener.
// This centralizes dependency creation and makes it explicit and testable.
func (f *DependencyFactory) CreateDefaults() (interfaces.Dependencies, error) {
	return f.CreateWithOverrides(interfaces.Dependencies{})
}

// CreateWithOverrides creates dependencies with specific overrides.
// Defaults are only constructed for the slots the overrides leave nil, so
// an injected repository never causes the configured one to be opened.
func (f *DependencyFactory) CreateWithOverrides(overrides interfaces.Dependencies) (interfaces.Dependencies, error) {
	deps := overrides

	if deps.Source == nil {
		deps.Source = f.createSource()
	}
	if deps.Repository == nil {
		repo, err := f.createRepository()
		if err != nil {
			return interfaces.Dependencies{}, fmt.Errorf("failed to create repository: %w", err)
		}
		deps.Repository = repo
	}
	if deps.Notifier == nil {
		deps.Notifier = f.createNotifier()
	}

	return deps, nil
}

// Individual factory methods for each dependency

func (f *DependencyFactory) createSource() interfaces.ChainSource {
	return market.NewSimulatedSource()
}

func (f *DependencyFactory) createRepository() (interfaces.PositionRepository, error) {
	return repository.New(f.config.Repository, f.logger)
}

func (f *DependencyFactory) createNotifier() interfaces.PositionNotifier {
	return notifier.FromConfig(f.config.Notifications, f.logger)
}
