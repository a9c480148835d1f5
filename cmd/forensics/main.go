package main

import (
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

const (
	appName = "forensics-shadow"
	version = "v0.1.0"
)

var (
	flagConfigPath  string
	flagRedisAddr   string
	flagPostgresDSN string
	flagEnvPrefix   string
	flagInMemory    bool
)

func main() {
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	rootCmd := &cobra.Command{
		Use:     "forensics",
		Short:   "Forensics shadow pipeline — fusion, calibrated anomaly, topology, and causal discovery over a blackboard",
		Version: version,
		Long: `forensics-shadow runs a batch analytics pass over a signal batch:
weak-supervision fusion, split-conformal anomaly calibration, persistent-homology
topology features, and bucketed causal discovery, sequenced by a learned Q-table
policy and persisted through a pluggable blackboard.`,
	}

	rootCmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "path to forensics.yaml (optional)")
	rootCmd.PersistentFlags().StringVar(&flagRedisAddr, "redis-addr", "", "Redis address for the blackboard cache tier")
	rootCmd.PersistentFlags().StringVar(&flagPostgresDSN, "postgres-dsn", "", "Postgres DSN for the blackboard durable tier")
	rootCmd.PersistentFlags().StringVar(&flagEnvPrefix, "env-prefix", "forensics", "blackboard key environment prefix")
	rootCmd.PersistentFlags().BoolVar(&flagInMemory, "in-memory", false, "use an in-memory blackboard instead of Redis/Postgres")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newServeCmd())
	rootCmd.AddCommand(newRunsCmd())
	rootCmd.AddCommand(newPolicyCmd())

	if err := rootCmd.Execute(); err != nil {
		log.Fatal().Err(err).Msg("forensics command failed")
	}
}
