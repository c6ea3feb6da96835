package cli

import (
	"context"
	"fmt"
	"os"
	"sort"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/strikeline/strikeline/internal/engine"
	"github.com/strikeline/strikeline/pkg/config"
	"github.com/strikeline/strikeline/pkg/daemon"
	"github.com/strikeline/strikeline/pkg/logger"
	"github.com/strikeline/strikeline/pkg/policy"
	"github.com/strikeline/strikeline/pkg/repository"
	"github.com/strikeline/strikeline/pkg/types"
	"github.com/strikeline/strikeline/pkg/utils"
)

func newScanCmd() *cobra.Command {
	var statusFilter string
	var limit int

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Run a single screening pass",
		Long: `Screen the watchlist once and print every candidate with its score and
admission status. Nothing is persisted; use 'strikeline run' for that.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(statusFilter, limit)
		},
	}

	cmd.Flags().StringVarP(&statusFilter, "status", "s", "", "only show rows with this status (pending, accepted, rejected, ...)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of rows to show (0 = all)")

	return cmd
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the persisted position book",
		Long:  `Display every position the daemon has filled and written to the repository.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStatus()
		},
	}
}

func newValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file",
		Long:  `Check that the configuration file is valid and the screener can run on it.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate()
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version number of Strikeline",
		Long:  `Print the version number of Strikeline`,
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("🎯 Strikeline v%s\n", version)
		},
	}
}

// Implementation functions

func runScan(statusFilter string, limit int) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	var want types.Status
	if statusFilter != "" {
		want, err = types.ParseStatus(statusFilter)
		if err != nil {
			return err
		}
	}

	log := logger.CreateLogger(verbosity)

	factory := engine.NewDependencyFactory(cfg, log)
	deps, err := factory.CreateDefaults()
	if err != nil {
		return err
	}
	defer deps.Repository.Close()

	s, err := engine.New(cfg, log, deps)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Engine.ShutdownTimeout())
	defer cancel()

	rows, outcome, err := s.ScanOnce(ctx)
	if err != nil {
		return fmt.Errorf("scan failed: %w", err)
	}

	// Best candidates first
	sort.Slice(rows, func(i, j int) bool { return rows[i].Score > rows[j].Score })

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tSTATUS\tSCORE\tCREDIT\tROC\tDELTA\tOI\tSPREAD")
	fmt.Fprintln(w, "---\t------\t-----\t------\t---\t-----\t--\t------")

	shown := 0
	pending := 0
	for _, p := range rows {
		if p.Status == types.StatusPending {
			pending++
		}
		if want != "" && p.Status != want {
			continue
		}
		if limit > 0 && shown >= limit {
			continue
		}

		fmt.Fprintf(w, "%s\t%s\t%.1f\t%.2f\t%.1f%%\t%.2f\t%d\t%.1f%%\n",
			p.Key.String(),
			colorStatus(p.Status),
			p.Score,
			p.Premium,
			p.ReturnOnCollateral*100,
			p.ShortDelta,
			p.OpenInterest,
			p.BidAskPct*100,
		)
		shown++
	}

	w.Flush()
	fmt.Println()

	printInfo(fmt.Sprintf("%d candidate(s) from %d ticker(s): %d accepted, %d rejected, %d still pending",
		len(rows),
		len(s.Watchlist()),
		outcome.Count(policy.RuleAcceptTop),
		outcome.Count(policy.RuleRejectFloor),
		pending,
	))
	return nil
}

func runStatus() error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if pid, running := daemon.NewLock(projectRoot, nil).Status(); running {
		printInfo(fmt.Sprintf("Daemon is running (pid %d)", pid))
	} else {
		printWarning("Daemon is not running")
	}

	repo, err := repository.New(cfg.Repository, logger.CreateLogger(verbosity))
	if err != nil {
		return fmt.Errorf("failed to open repository: %w", err)
	}
	defer repo.Close()

	loader, ok := repo.(repository.Loader)
	if !ok {
		return fmt.Errorf("repository driver %q cannot be read back", cfg.Repository.DriverName())
	}

	positions, err := loader.Load()
	if err != nil {
		return fmt.Errorf("failed to load positions: %w", err)
	}

	if len(positions) == 0 {
		printWarning("No positions on record. Run 'strikeline run' to start screening.")
		return nil
	}

	// Most recent fills first
	sort.Slice(positions, func(i, j int) bool {
		return positions[i].Updated.After(positions[j].Updated)
	})

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "KEY\tSTATUS\tCREDIT\tQTY\tCOLLATERAL\tFILLED")
	fmt.Fprintln(w, "---\t------\t------\t---\t----------\t------")

	for _, p := range positions {
		filled := "-"
		if !p.Updated.IsZero() {
			filled = p.Updated.Format("2006-01-02 15:04")
		}

		fmt.Fprintf(w, "%s\t%s\t%.2f\t%d\t%.0f\t%s\n",
			p.Key.String(),
			colorStatus(p.Status),
			p.Premium,
			p.Quantity,
			p.Collateral,
			filled,
		)
	}

	w.Flush()
	printInfo(fmt.Sprintf("%d position(s) on record", len(positions)))
	return nil
}

func runValidate() error {
	configPath := getConfigPath()

	cfg, err := config.Load(configPath)
	if err != nil {
		printError(fmt.Sprintf("Configuration is invalid: %v", err))
		return err
	}

	warnings := []string{}

	if cfg.Watchlist.Path != "" && !utils.FileExists(cfg.Watchlist.Path) {
		if len(cfg.Watchlist.Tickers) == 0 {
			warnings = append(warnings, fmt.Sprintf("watchlist file %s does not exist yet", cfg.Watchlist.Path))
		} else {
			warnings = append(warnings, fmt.Sprintf("watchlist file %s does not exist, inline tickers will be used", cfg.Watchlist.Path))
		}
	}

	if cfg.Admission.MinScore == 0 {
		warnings = append(warnings, "no score floor set, any candidate that fits the book can be accepted")
	}

	if cfg.Notifications == nil || !cfg.Notifications.IsEnabled() {
		warnings = append(warnings, "desktop notifications are disabled")
	}

	if len(warnings) > 0 {
		printWarning("Configuration warnings:")
		for _, warn := range warnings {
			fmt.Printf("  ⚠ %s\n", warn)
		}
	}

	printSuccess("Configuration is valid")
	printInfo(fmt.Sprintf("Watchlist: %s", describeWatchlist(cfg)))
	printInfo(fmt.Sprintf("Position cap: %d, repository: %s", cfg.Admission.PositionCap(), describeRepository(cfg)))
	return nil
}

func describeWatchlist(cfg *types.StrikelineConfig) string {
	if cfg.Watchlist.Path != "" {
		return cfg.Watchlist.Path
	}
	return fmt.Sprintf("%d inline ticker(s)", len(cfg.Watchlist.Tickers))
}

func describeRepository(cfg *types.StrikelineConfig) string {
	if cfg.Repository.DriverName() == "postgres" {
		return "postgres"
	}
	return cfg.Repository.StorePath()
}

func colorStatus(s types.Status) string {
	switch s {
	case types.StatusAccepted, types.StatusPurchased:
		return color.GreenString(string(s))
	case types.StatusRejected, types.StatusAbandoned:
		return color.RedString(string(s))
	case types.StatusPending:
		return color.YellowString(string(s))
	default:
		return color.WhiteString(string(s))
	}
}
