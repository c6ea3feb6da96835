package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/strikeline/strikeline/pkg/config"
	"github.com/strikeline/strikeline/pkg/utils"
)

const sampleWatchlist = `# One ticker per line. Lines starting with # are ignored.
SPY
QQQ
IWM
`

func newInitCmd() *cobra.Command {
	var format string
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize a new Strikeline configuration",
		Long: `Initialize a new Strikeline configuration file in the project root, along
with a starter watchlist. The defaults screen five-dollar-wide put credit
spreads and cap the book at ten open positions.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(format, force)
		},
	}

	cmd.Flags().StringVarP(&format, "format", "t", "json", "config format (json, yaml)")
	cmd.Flags().BoolVarP(&force, "force", "f", false, "overwrite existing configuration")

	return cmd
}

func runInit(format string, force bool) error {
	var configPath string
	switch format {
	case "json":
		configPath = filepath.Join(projectRoot, config.DefaultFileName)
	case "yaml", "yml":
		configPath = filepath.Join(projectRoot, config.YAMLFileName)
	default:
		return fmt.Errorf("unknown format: %s", format)
	}
	if cfgFile != "" {
		configPath = cfgFile
	}

	// Check if config already exists
	if utils.FileExists(configPath) && !force {
		return fmt.Errorf("configuration already exists. Use --force to overwrite")
	}

	cfg := config.Default()

	if err := config.Save(cfg, configPath); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	printSuccess(fmt.Sprintf("Created configuration at %s", configPath))

	// Seed a starter watchlist unless one is already there
	if path := cfg.Watchlist.Path; path != "" {
		if !filepath.IsAbs(path) {
			path = filepath.Join(projectRoot, path)
		}
		if !utils.FileExists(path) {
			if err := os.WriteFile(path, []byte(sampleWatchlist), 0644); err != nil {
				return fmt.Errorf("failed to write watchlist: %w", err)
			}
			printSuccess(fmt.Sprintf("Created watchlist at %s", path))
		}
	}

	printInfo("Edit the configuration to adjust spread width, score floor, and position cap")
	return nil
}
