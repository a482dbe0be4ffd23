package cli

import (
	"errors"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/csvcompare/internal/app"
	"github.com/JonMunkholm/csvcompare/internal/config"
	"github.com/JonMunkholm/csvcompare/internal/logging"
)

func newServeCmd() *cobra.Command {
	var envFile string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP comparison service",
		Long: "Starts the HTTP service configured from the environment. Runs are kept in\n" +
			"Postgres when DATABASE_URL is set and in memory otherwise.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}

			cfg, err := config.Load()
			if err != nil {
				return err
			}

			closeLogs := logging.Setup(logging.Options{
				Level:     cfg.Logging.Level,
				Format:    cfg.Logging.Format,
				SeqURL:    cfg.Logging.SeqURL,
				SeqAPIKey: cfg.Logging.SeqAPIKey,
				Output:    cmd.ErrOrStderr(),
			})
			defer closeLogs()

			if err := app.Run(cmd.Context(), cfg); err != nil {
				slog.Error("server stopped", "error", err)
				return err
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&envFile, "env-file", ".env", "Environment file to load if present")
	return cmd
}
