package main

import (
	"bufio"
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/gotd/td/telegram/auth"
	"github.com/gotd/td/tg"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/micubot/tgcheckin/internal/config"
	"github.com/micubot/tgcheckin/internal/logutil"
	"github.com/micubot/tgcheckin/internal/store"
	"github.com/micubot/tgcheckin/internal/telegram"
)

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in interactively and store the session locally",
		RunE: func(cmd *cobra.Command, args []string) error {
			phone := strings.TrimSpace(viper.GetString("login.phone"))
			if phone == "" {
				return fmt.Errorf("--phone is required")
			}

			logger, closer, err := logutil.LoggerFromViper()
			if err != nil {
				return err
			}
			if closer != nil {
				defer closer.Close()
			}

			cred, err := config.LoadCredentials()
			if err != nil {
				return err
			}
			// The example config ships placeholder values; logging in with
			// them would only produce a confusing API error.
			if cred.APIID == 12345 || cred.APIHash == "your_api_hash" {
				return fmt.Errorf("placeholder credentials detected: set your real API_ID and API_HASH from my.telegram.org")
			}

			st, err := store.NewBoltStore(cred.SessionDBPath())
			if err != nil {
				return err
			}
			defer st.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			client := telegram.NewClient(cred.APIID, cred.APIHash, st, logger)
			flow := auth.NewFlow(termAuth{phone: phone}, auth.SendCodeOptions{})

			self, err := client.Login(ctx, flow)
			if err != nil {
				return err
			}
			fmt.Printf("Logged in as %s (@%s). Session stored in %s.\n",
				self.FirstName, self.Username, cred.SessionDBPath())
			return nil
		},
	}

	cmd.Flags().String("phone", "", "Phone number of the account, international format.")
	_ = viper.BindPFlag("login.phone", cmd.Flags().Lookup("phone"))

	return cmd
}

// termAuth answers the authorization flow's prompts from the terminal.
type termAuth struct {
	phone string
}

func (a termAuth) Phone(_ context.Context) (string, error) {
	return a.phone, nil
}

func (a termAuth) Code(_ context.Context, _ *tg.AuthSentCode) (string, error) {
	return prompt("Login code: ")
}

func (a termAuth) Password(_ context.Context) (string, error) {
	return prompt("2FA password: ")
}

func (a termAuth) AcceptTermsOfService(_ context.Context, _ tg.HelpTermsOfService) error {
	return nil
}

func (a termAuth) SignUp(_ context.Context) (auth.UserInfo, error) {
	return auth.UserInfo{}, fmt.Errorf("this account is not registered; sign up is not supported")
}

func prompt(label string) (string, error) {
	fmt.Print(label)
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(line), nil
}
