package config

import (
	"bytes"
	"testing"

	"github.com/spf13/viper"

	"github.com/micubot/tgcheckin/internal/panel"
)

func loadYAML(t *testing.T, y string) {
	t.Helper()
	viper.Reset()
	t.Cleanup(viper.Reset)
	viper.SetConfigType("yaml")
	if err := viper.ReadConfig(bytes.NewBufferString(y)); err != nil {
		t.Fatalf("reading test config: %v", err)
	}
}

func TestBotsDescriptorForms(t *testing.T) {
	loadYAML(t, `
bots:
  - username: "@a"
    start_command: "/start"
    button:
      data: checkin
  - username: "@b"
    start_command: "/start"
    button:
      text: "签到"
  - username: "@c"
    start_command: "/start"
    button:
      position: [1, 1]
  - username: "@d"
    start_command: "/sign"
`)
	entries, err := Bots()
	if err != nil {
		t.Fatalf("Bots: %v", err)
	}
	if len(entries) != 4 {
		t.Fatalf("got %d entries, want 4", len(entries))
	}

	wantKinds := []panel.DescriptorKind{panel.KindData, panel.KindText, panel.KindPosition, panel.KindNone}
	for i, e := range entries {
		tgt, err := e.Target()
		if err != nil {
			t.Fatalf("entry %d Target: %v", i, err)
		}
		if tgt.Button.Kind != wantKinds[i] {
			t.Errorf("entry %d kind = %s, want %s", i, tgt.Button.Kind, wantKinds[i])
		}
	}

	tgt, _ := entries[2].Target()
	if tgt.Button.Row != 1 || tgt.Button.Col != 1 {
		t.Errorf("position descriptor = [%d,%d], want [1,1]", tgt.Button.Row, tgt.Button.Col)
	}
	tgt, _ = entries[0].Target()
	if tgt.Button.Data != "checkin" {
		t.Errorf("data descriptor = %q, want checkin", tgt.Button.Data)
	}
}

func TestBotsEmptyListIsError(t *testing.T) {
	loadYAML(t, `bots: []`)
	if _, err := Bots(); err == nil {
		t.Fatal("empty bot list should be an error")
	}
}

func TestInvalidButtonSpecs(t *testing.T) {
	cases := []ButtonSpec{
		{},                                         // present but empty
		{Text: "签到", Data: "checkin"},              // two variants
		{Position: []int{1}},                       // not [row, col]
		{Position: []int{0, 0}, Text: "签到"},        // two variants again
		{Position: []int{1, 2, 3}},                 // too many coordinates
	}
	for i, s := range cases {
		spec := s
		if _, err := spec.Descriptor(); err == nil {
			t.Errorf("case %d: %+v should be invalid", i, s)
		}
	}
}

func TestCredentialsFromEnv(t *testing.T) {
	viper.Reset()
	t.Cleanup(viper.Reset)
	t.Setenv("API_ID", "12345")
	t.Setenv("API_HASH", "abcdef")
	t.Setenv("TELEGRAM_SESSION", "blob")
	t.Setenv("DATA_DIR", "/tmp/tgcheckin")

	cred, err := LoadCredentials()
	if err != nil {
		t.Fatalf("LoadCredentials: %v", err)
	}
	if cred.APIID != 12345 || cred.APIHash != "abcdef" || cred.SessionString != "blob" {
		t.Fatalf("credentials = %+v", cred)
	}
	if cred.SessionDBPath() != "/tmp/tgcheckin/tgcheckin.db" {
		t.Fatalf("SessionDBPath = %q", cred.SessionDBPath())
	}
}

func TestCredentialsFallBackToConfig(t *testing.T) {
	t.Setenv("API_ID", "")
	t.Setenv("API_HASH", "")
	t.Setenv("TELEGRAM_SESSION", "")
	t.Setenv("DATA_DIR", "")
	loadYAML(t, `
telegram:
  api_id: 777
  api_hash: feedface
`)
	cred, err := LoadCredentials()
	if err != nil {
		t.Fatalf("LoadCredentials: %v", err)
	}
	if cred.APIID != 777 || cred.APIHash != "feedface" {
		t.Fatalf("credentials = %+v", cred)
	}
	if cred.DataDir != "." {
		t.Fatalf("DataDir = %q, want default", cred.DataDir)
	}
}

func TestCredentialsMissingIsFatal(t *testing.T) {
	t.Setenv("API_ID", "")
	t.Setenv("API_HASH", "")
	viper.Reset()
	t.Cleanup(viper.Reset)
	if _, err := LoadCredentials(); err == nil {
		t.Fatal("missing credentials should be an error")
	}
}

func TestRunnerOptionsFromConfig(t *testing.T) {
	loadYAML(t, `
checkin:
  panel_timeout: 10s
  reply_timeout: 30s
  fallback_commands: ["/sign"]
`)
	opts := RunnerOptions()
	if opts.PanelTimeout.Seconds() != 10 || opts.ReplyTimeout.Seconds() != 30 {
		t.Fatalf("options = %+v", opts)
	}
	if len(opts.FallbackCommands) != 1 || opts.FallbackCommands[0] != "/sign" {
		t.Fatalf("fallback commands = %v", opts.FallbackCommands)
	}
}
