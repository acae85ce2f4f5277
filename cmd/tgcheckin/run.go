package main

import (
	"context"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/micubot/tgcheckin/internal/checkin"
	"github.com/micubot/tgcheckin/internal/config"
	"github.com/micubot/tgcheckin/internal/logutil"
	"github.com/micubot/tgcheckin/internal/store"
	"github.com/micubot/tgcheckin/internal/telegram"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run one check-in pass over every configured bot",
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, closer, err := logutil.LoggerFromViper()
			if err != nil {
				return err
			}
			if closer != nil {
				defer closer.Close()
			}
			slog.SetDefault(logger)

			// Missing credentials or an unusable bot list is fatal: exit
			// nonzero before touching the network.
			cred, err := config.LoadCredentials()
			if err != nil {
				return err
			}
			entries, err := config.Bots()
			if err != nil {
				return err
			}

			targets := make([]checkin.Target, 0, len(entries))
			for _, e := range entries {
				t, err := e.Target()
				if err != nil {
					logger.Warn("checkin_config_invalid", "bot", e.Username, "error", err.Error())
					continue
				}
				targets = append(targets, t)
			}

			st, err := store.NewBoltStore(cred.SessionDBPath())
			if err != nil {
				return err
			}
			defer st.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			imported, err := telegram.ImportTelethonSession(ctx, st, cred.SessionString)
			if err != nil {
				return err
			}
			if imported {
				logger.Info("session_imported_from_env")
			}

			client := telegram.NewClient(cred.APIID, cred.APIHash, st, logger)
			return client.Run(ctx, func(ctx context.Context) error {
				runner := checkin.NewRunner(client, logger, config.RunnerOptions())
				runner.RunAll(ctx, targets)
				return nil
			})
		},
	}
}
