package config

import (
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/micubot/tgcheckin/internal/checkin"
	"github.com/micubot/tgcheckin/internal/panel"
)

// Credentials hold the Telegram API identity for the user account.
// SessionString is optional: a previously stored session in the local
// database also works.
type Credentials struct {
	APIID         int
	APIHash       string
	SessionString string
	DataDir       string
}

// LoadCredentials reads credentials from environment variables first
// (loading an optional .env file), then falls back to the config file.
// Missing API identity is fatal: the caller must not attempt any
// interaction without it.
func LoadCredentials() (*Credentials, error) {
	// .env is optional — env vars may already be set (e.g. in CI)
	_ = godotenv.Load()

	cred := &Credentials{
		APIHash:       os.Getenv("API_HASH"),
		SessionString: os.Getenv("TELEGRAM_SESSION"),
		DataDir:       os.Getenv("DATA_DIR"),
	}
	if v := os.Getenv("API_ID"); v != "" {
		id, err := strconv.Atoi(v)
		if err != nil {
			return nil, fmt.Errorf("API_ID must be numeric: %w", err)
		}
		cred.APIID = id
	}

	if cred.APIID == 0 {
		cred.APIID = viper.GetInt("telegram.api_id")
	}
	if cred.APIHash == "" {
		cred.APIHash = viper.GetString("telegram.api_hash")
	}
	if cred.DataDir == "" {
		cred.DataDir = viper.GetString("data_dir")
	}
	if cred.DataDir == "" {
		cred.DataDir = "."
	}

	if cred.APIID == 0 || cred.APIHash == "" {
		return nil, fmt.Errorf("missing credentials: set API_ID and API_HASH (env or config file)")
	}
	return cred, nil
}

// SessionDBPath is the bbolt file holding MTProto session state.
func (c *Credentials) SessionDBPath() string {
	return c.DataDir + "/tgcheckin.db"
}

// BotEntry is one bot record as written in the config file.
type BotEntry struct {
	Username     string      `mapstructure:"username"`
	StartCommand string      `mapstructure:"start_command"`
	Button       *ButtonSpec `mapstructure:"button"`
}

// ButtonSpec selects the check-in button. Exactly one of Position, Text or
// Data must be set; an absent button key means the start command alone
// suffices.
type ButtonSpec struct {
	Position []int  `mapstructure:"position"`
	Text     string `mapstructure:"text"`
	Data     string `mapstructure:"data"`
}

// Target converts a config entry into a resolver target. A button spec
// that names no variant (or several) is rejected.
func (b BotEntry) Target() (checkin.Target, error) {
	d := panel.Descriptor{Kind: panel.KindNone}
	if b.Button != nil {
		var err error
		d, err = b.Button.Descriptor()
		if err != nil {
			return checkin.Target{}, fmt.Errorf("bot %s: %w", b.Username, err)
		}
	}
	return checkin.Target{
		Username:     b.Username,
		StartCommand: b.StartCommand,
		Button:       d,
	}, nil
}

func (s *ButtonSpec) Descriptor() (panel.Descriptor, error) {
	set := 0
	if len(s.Position) > 0 {
		set++
	}
	if s.Text != "" {
		set++
	}
	if s.Data != "" {
		set++
	}
	if set != 1 {
		return panel.Descriptor{}, fmt.Errorf("button spec must set exactly one of position, text or data")
	}

	switch {
	case len(s.Position) > 0:
		if len(s.Position) != 2 {
			return panel.Descriptor{}, fmt.Errorf("button position must be [row, col], got %v", s.Position)
		}
		return panel.Descriptor{Kind: panel.KindPosition, Row: s.Position[0], Col: s.Position[1]}, nil
	case s.Text != "":
		return panel.Descriptor{Kind: panel.KindText, Text: s.Text}, nil
	default:
		return panel.Descriptor{Kind: panel.KindData, Data: s.Data}, nil
	}
}

// Bots reads the configured bot list. An empty list is an error: the run
// would be a no-op and almost certainly a misconfiguration.
func Bots() ([]BotEntry, error) {
	var entries []BotEntry
	if err := viper.UnmarshalKey("bots", &entries); err != nil {
		return nil, fmt.Errorf("parsing bots config: %w", err)
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("no bots configured (set the bots list in the config file)")
	}
	return entries, nil
}

// RunnerOptions builds the resolver timing options from viper, falling
// back to the built-in defaults for unset keys.
func RunnerOptions() checkin.Options {
	return checkin.Options{
		PanelTimeout:     viper.GetDuration("checkin.panel_timeout"),
		ReplyTimeout:     viper.GetDuration("checkin.reply_timeout"),
		EscalateTimeout:  viper.GetDuration("checkin.escalate_timeout"),
		SettleDelay:      viper.GetDuration("checkin.settle_delay"),
		InterBotDelay:    viper.GetDuration("checkin.inter_bot_delay"),
		FallbackCommands: viper.GetStringSlice("checkin.fallback_commands"),
	}
}
