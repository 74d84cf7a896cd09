package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

func writeFile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	if cfg.Dispatch.Workers != 5 {
		t.Errorf("workers = %d, want 5", cfg.Dispatch.Workers)
	}
	if cfg.Dispatch.Timeout.Std() != 120*time.Second {
		t.Errorf("timeout = %s, want 120s", cfg.Dispatch.Timeout.Std())
	}
	if cfg.Artifact.Path != "results/final.html" {
		t.Errorf("artifact path = %q", cfg.Artifact.Path)
	}
	if len(cfg.Agents) != 5 || cfg.Agents[0].Name != "core" {
		t.Errorf("agents = %+v", cfg.Agents)
	}
	if len(cfg.Providers) != 1 || cfg.Providers[0].Type != "ollama" {
		t.Errorf("providers = %+v", cfg.Providers)
	}
}

func TestLoadJSONWithEnv(t *testing.T) {
	t.Setenv("CREW_TEST_KEY", "sk-test")
	path := writeFile(t, "crew.json", `{
		"providers": [{"id": "oa", "type": "openai", "api_key": "${CREW_TEST_KEY}", "endpoint": "${CREW_TEST_UNSET:http://localhost:11434/v1}"}],
		"agents": [{"name": "core", "model": "oa/gpt-4o-mini"}],
		"dispatch": {"workers": 2, "timeout": "30s"}
	}`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	p := cfg.Providers[0]
	if p.APIKey != "sk-test" {
		t.Errorf("api_key = %q", p.APIKey)
	}
	if p.Endpoint != "http://localhost:11434/v1" {
		t.Errorf("endpoint = %q", p.Endpoint)
	}
	if cfg.Dispatch.Workers != 2 || cfg.Dispatch.Timeout.Std() != 30*time.Second {
		t.Errorf("dispatch = %+v", cfg.Dispatch)
	}
	reg, err := cfg.Roster()
	if err != nil {
		t.Fatal(err)
	}
	if reg.Len() != 1 {
		t.Errorf("roster len = %d", reg.Len())
	}
}

func TestLoadYAML(t *testing.T) {
	path := writeFile(t, "crew.yaml", `
dispatch:
  workers: 3
  timeout: 45
artifact:
  format: text
schedules:
  - name: nightly
    cron: "0 3 * * *"
    prompt: summarize the day
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Dispatch.Workers != 3 || cfg.Dispatch.Timeout.Std() != 45*time.Second {
		t.Errorf("dispatch = %+v", cfg.Dispatch)
	}
	if cfg.Artifact.Format != "text" {
		t.Errorf("format = %q", cfg.Artifact.Format)
	}
	if len(cfg.Schedules) != 1 || cfg.Schedules[0].Name != "nightly" {
		t.Errorf("schedules = %+v", cfg.Schedules)
	}
}

func TestLoadRejectsInvalid(t *testing.T) {
	tests := []struct {
		name, body, want string
	}{
		{"bad workers", `{"dispatch": {"workers": 0}}`, "schema"},
		{"bad format", `{"artifact": {"format": "pdf"}}`, "schema"},
		{"agent without model", `{"agents": [{"name": "core"}]}`, "schema"},
		{"duplicate agents", `{"agents": [{"name": "a", "model": "m"}, {"name": "a", "model": "n"}]}`, "duplicate"},
		{"bad duration", `{"dispatch": {"timeout": "soon"}}`, "invalid duration"},
		{"not json", `{`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, "crew.json", tt.body))
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.want != "" && !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.json")); err == nil {
		t.Fatal("expected error")
	}
}

func TestWatcherReloads(t *testing.T) {
	path := writeFile(t, "crew.json", `{"agents": [{"name": "a", "model": "m"}]}`)

	changes := make(chan *Config, 4)
	w, err := Watch(path, func(c *Config) { changes <- c }, zap.NewNop())
	if err != nil {
		t.Fatal(err)
	}
	defer w.Stop()

	// An invalid edit is ignored.
	if err := os.WriteFile(path, []byte(`{"agents": [{"name": ""}]}`), 0o644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(400 * time.Millisecond)
	if err := os.WriteFile(path, []byte(`{"agents": [{"name": "a", "model": "m"}, {"name": "b", "model": "m"}]}`), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case c := <-changes:
		if len(c.Agents) != 2 {
			t.Fatalf("reloaded agents = %d, want 2", len(c.Agents))
		}
	case <-time.After(3 * time.Second):
		t.Fatal("no reload observed")
	}
}
