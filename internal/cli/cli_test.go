package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nidhogg/crew/internal/orchestrator"
	"github.com/nidhogg/crew/internal/roster"
)

type result struct {
	code int
	out  string
	err  string
}

func execute(t *testing.T, stdin string, args ...string) result {
	t.Helper()
	var out, errOut bytes.Buffer
	code := Execute(context.Background(), args, strings.NewReader(stdin), &out, &errOut)
	return result{code: code, out: out.String(), err: errOut.String()}
}

// writeConfig points a single ollama provider at a shell script that echoes
// the model name and returns the config path.
func writeConfig(t *testing.T, extra string) (cfgPath, artifactPath string) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake needs a POSIX shell")
	}
	dir := t.TempDir()
	bin := filepath.Join(dir, "ollama")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\necho \"answer from $2\"\n"), 0o755))

	artifactPath = filepath.Join(dir, "out", "final.html")
	doc := fmt.Sprintf(`{
  "server": {"log_level": "error"},
  "providers": [{"id": "ollama", "type": "ollama", "endpoint": %q}],
  "agents": [{"name": "A", "model": "m1"}, {"name": "B", "model": "m2"}],
  "dispatch": {"workers": 2, "timeout": "10s"},
  "artifact": {"path": %q}%s
}`, bin, artifactPath, extra)
	cfgPath = filepath.Join(dir, "crew.json")
	require.NoError(t, os.WriteFile(cfgPath, []byte(doc), 0o644))
	return cfgPath, artifactPath
}

func TestMissingPromptExitsWithReport(t *testing.T) {
	t.Setenv("CREW_CONFIG", filepath.Join(t.TempDir(), "never-read.json"))

	res := execute(t, "")
	assert.Equal(t, 1, res.code)

	var report map[string]any
	require.NoError(t, json.Unmarshal([]byte(res.out), &report))
	assert.Equal(t, "error", report["status"])
	assert.Nil(t, report["html_output"])
	assert.Equal(t, []any{}, report["agents"])
	assert.Contains(t, report["error"], "missing prompt")
}

func TestRunRoundWritesReportAndArtifact(t *testing.T) {
	cfg, artifactPath := writeConfig(t, "")

	res := execute(t, "", "--config", cfg, "summarize", "the", "news")
	require.Equal(t, 0, res.code, res.err)

	var report orchestrator.Report
	require.NoError(t, json.Unmarshal([]byte(res.out), &report))
	assert.Equal(t, orchestrator.ReportOK, report.Status)
	assert.Equal(t, "summarize the news", report.Prompt)
	require.NotNil(t, report.ArtifactPath)
	assert.Equal(t, artifactPath, *report.ArtifactPath)
	require.Len(t, report.Agents, 2)
	for _, r := range report.Agents {
		assert.Equal(t, orchestrator.StatusSuccess, r.Status)
	}

	doc, err := os.ReadFile(artifactPath)
	require.NoError(t, err)
	assert.Contains(t, string(doc), "answer from m1")
	assert.Contains(t, string(doc), "answer from m2")
}

func TestRunSubcommandAcceptsReservedWords(t *testing.T) {
	cfg, _ := writeConfig(t, "")

	res := execute(t, "", "--config", cfg, "run", "roster")
	require.Equal(t, 0, res.code, res.err)

	var report orchestrator.Report
	require.NoError(t, json.Unmarshal([]byte(res.out), &report))
	assert.Equal(t, "roster", report.Prompt)
}

func TestPrettyWritesSummaryToStderr(t *testing.T) {
	cfg, _ := writeConfig(t, "")

	res := execute(t, "", "--config", cfg, "--pretty", "hello")
	require.Equal(t, 0, res.code, res.err)
	assert.Contains(t, res.err, "2/2 succeeded")
	assert.True(t, json.Valid([]byte(res.out)))
}

func TestRosterPrintsAgents(t *testing.T) {
	cfg, _ := writeConfig(t, "")

	res := execute(t, "", "--config", cfg, "roster")
	require.Equal(t, 0, res.code, res.err)

	var agents []roster.AgentSpec
	require.NoError(t, json.Unmarshal([]byte(res.out), &agents))
	assert.Equal(t, []roster.AgentSpec{{Name: "A", Model: "m1"}, {Name: "B", Model: "m2"}}, agents)
}

func TestCachePutGet(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "cache.db")
	cfg, _ := writeConfig(t, fmt.Sprintf(`,
  "cache": {"backend": "sqlite", "path": %q}`, dbPath))

	res := execute(t, "<p>cached</p>", "--config", cfg, "cache", "put", "hello", "v1")
	require.Equal(t, 0, res.code, res.err)

	res = execute(t, "", "--config", cfg, "cache", "get", "hello")
	require.Equal(t, 0, res.code, res.err)
	assert.Equal(t, "<p>cached</p>", res.out)

	res = execute(t, "", "--config", cfg, "cache", "get", "unknown")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.err, "not cached")
}

func TestCacheWithoutBackendFails(t *testing.T) {
	cfg, _ := writeConfig(t, "")

	res := execute(t, "", "--config", cfg, "cache", "get", "hello")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.err, "no cache backend configured")
}

func TestSetupErrorsExitOne(t *testing.T) {
	res := execute(t, "", "--config", filepath.Join(t.TempDir(), "missing.json"), "hello")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.err, "Error:")

	res = execute(t, "", "--no-such-flag")
	assert.Equal(t, 1, res.code)
}

func TestWatchNeedsRedis(t *testing.T) {
	cfg, _ := writeConfig(t, "")

	res := execute(t, "", "--config", cfg, "watch")
	assert.Equal(t, 1, res.code)
	assert.Contains(t, res.err, "database.redis.url")
}
