package main

import (
	stdLog "log"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap/zapcore"

	"github.com/smabibs/SiPerpus/circulation/app"
	"github.com/smabibs/SiPerpus/circulation/config"
)

func main() {
	// .env is optional; the environment wins.
	_ = godotenv.Load()

	var (
		dbPath string
		debug  bool
	)
	newConfig := func() *config.Config {
		opts := []config.Option{
			config.WithWriteTimeout(time.Minute),
			config.WithDatabasePath(dbPath),
		}
		if debug {
			opts = append(opts, config.WithLogLevel(zapcore.DebugLevel))
		}
		return config.NewConfig(opts...)
	}

	serve := &cobra.Command{
		Use:   "serve",
		Short: "Run the circulation HTTP service",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.Run(newConfig())
		},
	}
	migrate := &cobra.Command{
		Use:   "migrate",
		Short: "Apply database migrations and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return app.Migrate(newConfig())
		},
	}

	root := &cobra.Command{
		Use:          "circulation",
		Short:        "School library circulation service",
		SilenceUsage: true,
		RunE:         serve.RunE,
	}
	root.PersistentFlags().StringVar(&dbPath, "db", "", "SQLite database path (overrides DB_PATH)")
	root.PersistentFlags().BoolVar(&debug, "debug", false, "debug logging")
	root.AddCommand(serve, migrate)

	if err := root.Execute(); err != nil {
		stdLog.Fatal(err)
	}
}
