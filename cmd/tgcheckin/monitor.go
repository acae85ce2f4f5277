package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/micubot/tgcheckin/internal/config"
	"github.com/micubot/tgcheckin/internal/logutil"
	"github.com/micubot/tgcheckin/internal/monitor"
	"github.com/micubot/tgcheckin/internal/store"
	"github.com/micubot/tgcheckin/internal/telegram"
)

func newMonitorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "monitor",
		Short: "Observe one bot's messages, panels and callback data",
		Long: "Sends /start to the bot and records every exchanged message in " +
			"detail (button text, position, callback data) until interrupted. " +
			"Use it to discover how to configure a check-in target.",
		RunE: func(cmd *cobra.Command, args []string) error {
			bot := viper.GetString("monitor.bot")
			if bot == "" {
				return fmt.Errorf("--bot is required")
			}

			// Monitoring is long-lived; mirror logs to a file by default so
			// overnight observations survive the terminal.
			if viper.GetString("logging.file") == "" {
				viper.Set("logging.file", "monitor_logs.txt")
			}
			logger, closer, err := logutil.LoggerFromViper()
			if err != nil {
				return err
			}
			if closer != nil {
				defer closer.Close()
			}
			slog.SetDefault(logger)

			cred, err := config.LoadCredentials()
			if err != nil {
				return err
			}
			st, err := store.NewBoltStore(cred.SessionDBPath())
			if err != nil {
				return err
			}
			defer st.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			if _, err := telegram.ImportTelethonSession(ctx, st, cred.SessionString); err != nil {
				return err
			}

			client := telegram.NewClient(cred.APIID, cred.APIHash, st, logger)
			m := monitor.New(client, logger, bot)

			return client.Run(ctx, func(ctx context.Context) error {
				listen := viper.GetString("monitor.listen")
				srv := &http.Server{
					Addr:         listen,
					Handler:      m.Handler(),
					ReadTimeout:  10 * time.Second,
					WriteTimeout: 30 * time.Second,
				}
				go func() {
					logger.Info("monitor_http_listening", "addr", listen)
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						logger.Error("monitor_http_error", "error", err.Error())
					}
				}()
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					_ = srv.Shutdown(shutdownCtx)
				}()

				if err := m.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					return err
				}
				return nil
			})
		},
	}

	cmd.Flags().String("bot", "", "Username of the bot to observe (e.g. @micu_user_bot).")
	cmd.Flags().String("listen", "127.0.0.1:8087", "Listen address for the /health and /events endpoints.")
	_ = viper.BindPFlag("monitor.bot", cmd.Flags().Lookup("bot"))
	_ = viper.BindPFlag("monitor.listen", cmd.Flags().Lookup("listen"))

	return cmd
}
