// Package cli provides the command-line interface for Strikeline
package cli

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/strikeline/strikeline/pkg/config"
)

var (
	cfgFile     string
	projectRoot string
	verbosity   string
	version     string
)

// rootCmd represents the base command
var rootCmd = &cobra.Command{
	Use:   "strikeline",
	Short: "The patient screener that sells puts while you sleep",
	Long: `🎯 Strikeline - Automated put credit spread screening

Strikeline watches your ticker list, values put credit spreads from option
chains, and admits the best candidates into a capacity-limited book. It keeps
screening around the clock so the next trade is already waiting when you are.`,

	Run: func(cmd *cobra.Command, args []string) {
		// Check if version flag is set
		if v, _ := cmd.Flags().GetBool("version"); v {
			fmt.Printf("🎯 Strikeline v%s\n", version)
			return
		}
		// If no subcommand, show help
		cmd.Help()
	},
}

// Execute runs the CLI
func Execute(v string) error {
	version = v

	// Initialize the root command explicitly (avoiding init())
	initializeRootCommand()

	return rootCmd.Execute()
}

// initializeRootCommand sets up the root command and its flags.
// This replaces the init() function to make initialization explicit and testable.
func initializeRootCommand() {
	// Set up config initialization
	cobra.OnInitialize(initConfig)

	// Global flags
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: strikeline.config.json)")
	rootCmd.PersistentFlags().StringVar(&projectRoot, "root", ".", "project root directory")
	rootCmd.PersistentFlags().StringVarP(&verbosity, "verbosity", "v", "info", "log level (debug, info, warn, error)")

	// Add version flag
	rootCmd.Flags().Bool("version", false, "Print version information and quit")

	// Add subcommands
	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newScanCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newInitCmd())
	rootCmd.AddCommand(newValidateCmd())
	rootCmd.AddCommand(newVersionCmd())
}

func initConfig() {
	if cfgFile != "" {
		// Use config file from flag
		viper.SetConfigFile(cfgFile)
	} else {
		// Search for config in project root
		viper.AddConfigPath(projectRoot)
		viper.SetConfigName("strikeline.config")
		viper.SetConfigType("json")
	}

	// Read in environment variables
	viper.SetEnvPrefix("STRIKELINE")
	viper.AutomaticEnv()

	// Read config file
	if err := viper.ReadInConfig(); err == nil {
		if verbosity == "debug" {
			fmt.Println("Using config file:", viper.ConfigFileUsed())
		}
	}
}

// Helper functions

func printSuccess(message string) {
	target := "🎯"
	fmt.Printf("%s %s %s\n", target, color.GreenString("[Strikeline]"), message)
}

func printError(message string) {
	target := "🎯"
	fmt.Fprintf(os.Stderr, "%s %s %s\n", target, color.RedString("[Strikeline]"), message)
}

func printInfo(message string) {
	target := "🎯"
	fmt.Printf("%s %s %s\n", target, color.CyanString("[Strikeline]"), message)
}

func printWarning(message string) {
	target := "🎯"
	fmt.Printf("%s %s %s\n", target, color.YellowString("[Strikeline]"), message)
}

func getConfigPath() string {
	return config.Discover(projectRoot, cfgFile)
}
