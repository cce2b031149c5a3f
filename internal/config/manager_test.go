package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	logx "leadpulse/pkg/logx"
)

const validYAML = `
logging:
  level: debug
  console: true
storage:
  driver: file
  path: ./store
backend:
  base_url: https://dash.example.com
  token: secret
  timeout: 15s
engine:
  utc_offset: "+07:00"
  poll_interval: 30s
principal:
  id: agent-1
  role: agent
`

func writeConfig(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadYAML(t *testing.T) {
	t.Parallel()

	m := NewManager(writeConfig(t, "config.yaml", validYAML), logx.Nop())
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend.BaseURL != "https://dash.example.com" {
		t.Errorf("base_url = %q", cfg.Backend.BaseURL)
	}
	if cfg.Engine.UTCOffset != "+07:00" {
		t.Errorf("utc_offset = %q", cfg.Engine.UTCOffset)
	}
	if cfg.Principal.ID != "agent-1" {
		t.Errorf("principal.id = %q", cfg.Principal.ID)
	}
	if got := m.Get(); got != cfg {
		t.Error("Get did not return the committed config")
	}
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	t.Parallel()

	body := validYAML + "\nmetricz:\n  enabled: true\n"
	m := NewManager(writeConfig(t, "config.yaml", body), logx.Nop())
	if _, err := m.Load(); err == nil {
		t.Fatal("unknown top-level key accepted")
	}
}

func TestValidateFailures(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name string
		body string
		want string
	}{
		{
			name: "missing backend url",
			body: strings.Replace(validYAML, "base_url: https://dash.example.com", "base_url: \"\"", 1),
			want: "backend.base_url",
		},
		{
			name: "missing principal id",
			body: strings.Replace(validYAML, "id: agent-1", "id: \"\"", 1),
			want: "principal.id",
		},
		{
			name: "bad role",
			body: strings.Replace(validYAML, "role: agent", "role: superuser", 1),
			want: "principal.role",
		},
		{
			name: "telegram enabled without token",
			body: validYAML + "\ntelegram:\n  enabled: true\n  chat_id: 42\n",
			want: "telegram.token",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			m := NewManager(writeConfig(t, "config.yaml", tc.body), logx.Nop())
			_, err := m.Load()
			if err == nil {
				t.Fatal("invalid config accepted")
			}
			if !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("error %q does not mention %q", err, tc.want)
			}
		})
	}
}

func TestTokensFallBackToEnvironment(t *testing.T) {
	// t.Setenv forbids t.Parallel.
	t.Setenv(EnvBackendToken, "env-backend-secret")
	t.Setenv(EnvTelegramToken, "env-telegram-secret")

	body := strings.Replace(validYAML, "token: secret", "token: \"\"", 1) +
		"\ntelegram:\n  enabled: true\n  chat_id: 42\n"
	m := NewManager(writeConfig(t, "config.yaml", body), logx.Nop())
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load with env tokens: %v", err)
	}
	if cfg.Backend.Token != "env-backend-secret" {
		t.Errorf("backend token = %q", cfg.Backend.Token)
	}
	if cfg.Telegram.Token != "env-telegram-secret" {
		t.Errorf("telegram token = %q", cfg.Telegram.Token)
	}
}

func TestFileTokenWinsOverEnvironment(t *testing.T) {
	t.Setenv(EnvBackendToken, "env-backend-secret")

	m := NewManager(writeConfig(t, "config.yaml", validYAML), logx.Nop())
	cfg, err := m.Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Backend.Token != "secret" {
		t.Errorf("backend token = %q, want the file value", cfg.Backend.Token)
	}
}

func TestLoadJSONTrailingDataRejected(t *testing.T) {
	t.Parallel()

	body := `{"logging":{},"storage":{"driver":"memory"},` +
		`"backend":{"base_url":"https://dash.example.com","token":"x"},` +
		`"engine":{"utc_offset":"+07:00"},` +
		`"principal":{"id":"a1","role":"agent"}}{"extra":1}`
	m := NewManager(writeConfig(t, "config.json", body), logx.Nop())
	if _, err := m.Load(); err == nil {
		t.Fatal("trailing JSON accepted")
	}
}
