package main

import (
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const (
	appName = "launchgate"
	version = "v1.0.0"
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	rootCmd := &cobra.Command{
		Use:     appName,
		Short:   "Go/no-go launch decisions for Web3 campaigns",
		Version: version,
		Long: `launchgate reconciles three independent signals into one launch decision:
contract risk from a block-explorer source audit, an hourly gas-price
forecast gated by its own backtest, and user-activity timing from the
on-chain warehouse.

Run 'launchgate' in a terminal to open the interactive menu, or use the
subcommands for automation:

  launchgate run --config config/launchgate.yaml
  launchgate forecast --config config/launchgate.yaml
  launchgate serve --config config/launchgate.yaml`,
		Run: runDefaultEntry,
	}

	rootCmd.PersistentFlags().String("config", "config/launchgate.yaml", "Engine configuration file")
	rootCmd.PersistentFlags().String("policy", "", "Policy profiles file (built-in standard profile when empty)")

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Execute a full decision run",
		Long:  "Runs all three pillars, reconciles them under the active policy profile and writes the report",
		RunE:  runFull,
	}

	forecastCmd := &cobra.Command{
		Use:   "forecast",
		Short: "Run the gas-price pillar only",
		Long:  "Fits the forecasting model on warehouse gas data, backtests it and prints the artifact",
		RunE:  runForecast,
	}

	riskCmd := &cobra.Command{
		Use:   "risk",
		Short: "Run the contract-risk pillar only",
		Long:  "Fetches verified source from the explorer, applies the static findings and prints the artifact",
		RunE:  runRisk,
	}

	behaviorCmd := &cobra.Command{
		Use:   "behavior",
		Short: "Run the user-behavior pillar only",
		Long:  "Computes the activity histogram, Sybil clusters and cohort retention and prints the artifact",
		RunE:  runBehavior,
	}

	decideCmd := &cobra.Command{
		Use:   "decide",
		Short: "Reconcile cached artifacts without recomputing",
		Long:  "Reads whatever artifacts the cache holds for today and applies the policy; missing pillars degrade explicitly",
		RunE:  runDecide,
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve reports and metrics over HTTP",
		Long:  "Read-only server exposing /health, /metrics, /decisions and /artifacts; never triggers runs",
		RunE:  runServe,
	}

	menuCmd := &cobra.Command{
		Use:   "menu",
		Short: "Open the interactive menu",
		RunE:  runMenuCmd,
	}

	runCmd.Flags().String("campaign", "", "Override the configured campaign name")
	runCmd.Flags().String("contract", "", "Override the configured contract address")
	runCmd.Flags().String("wallets", "", "Override the configured wallets file")
	forecastCmd.Flags().String("campaign", "", "Override the configured campaign name")
	riskCmd.Flags().String("contract", "", "Override the configured contract address")
	behaviorCmd.Flags().String("wallets", "", "Override the configured wallets file")
	behaviorCmd.Flags().String("start", "", "Campaign start date (YYYY-MM-DD)")
	serveCmd.Flags().String("addr", "", "Override the configured listen address")

	rootCmd.AddCommand(runCmd, forecastCmd, riskCmd, behaviorCmd, decideCmd, serveCmd, menuCmd)

	if err := rootCmd.Execute(); err != nil {
		log.Error().Err(err).Msg("command failed")
		os.Exit(1)
	}
}

// runDefaultEntry routes a bare invocation: interactive menu on a TTY,
// guidance otherwise.
func runDefaultEntry(cmd *cobra.Command, args []string) {
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		fmt.Fprintf(os.Stderr, "Interactive menu requires a TTY terminal.\n")
		fmt.Fprintf(os.Stderr, "Use subcommands for non-interactive automation:\n\n")
		fmt.Fprintf(os.Stderr, "  launchgate run --config config/launchgate.yaml\n")
		fmt.Fprintf(os.Stderr, "  launchgate serve --config config/launchgate.yaml\n")
		fmt.Fprintf(os.Stderr, "  launchgate --help\n")
		os.Exit(2)
	}
	if err := runMenuCmd(cmd, args); err != nil {
		log.Error().Err(err).Msg("menu failed")
		os.Exit(1)
	}
}
