package provider

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"
)

// fakeOllama writes a shell script standing in for the ollama binary.
func fakeOllama(t *testing.T, body string) string {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("shell script fake needs a POSIX shell")
	}
	path := filepath.Join(t.TempDir(), "ollama")
	script := "#!/bin/sh\n" + body + "\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatalf("write fake binary: %v", err)
	}
	return path
}

func TestOllamaInvokeReadsStdin(t *testing.T) {
	bin := fakeOllama(t, `echo "model=$2"; cat; echo`)
	p := NewOllamaProvider(ProviderConfig{ID: "ollama", Endpoint: bin}, zap.NewNop())

	out, err := p.Invoke(context.Background(), "gemma3:1b", "hello crew")
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if out != "model=gemma3:1b\nhello crew" {
		t.Errorf("got %q", out)
	}
}

func TestOllamaInvokeNonZeroExit(t *testing.T) {
	bin := fakeOllama(t, `echo "model not found" >&2; exit 3`)
	p := NewOllamaProvider(ProviderConfig{ID: "ollama", Endpoint: bin}, zap.NewNop())

	_, err := p.Invoke(context.Background(), "nope", "hi")
	var invErr *InvocationError
	if !errors.As(err, &invErr) {
		t.Fatalf("expected InvocationError, got %v", err)
	}
	if !strings.Contains(invErr.Reason, "model not found") || !strings.Contains(invErr.Reason, "exit status 3") {
		t.Errorf("reason = %q", invErr.Reason)
	}
}

func TestOllamaInvokeHonoursContext(t *testing.T) {
	bin := fakeOllama(t, `exec sleep 5`)
	p := NewOllamaProvider(ProviderConfig{ID: "ollama", Endpoint: bin}, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := p.Invoke(ctx, "m", "hi")
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
	if time.Since(start) > 3*time.Second {
		t.Error("child process was not killed on timeout")
	}
}

func TestOllamaHealthCheck(t *testing.T) {
	p := NewOllamaProvider(ProviderConfig{ID: "ollama", Endpoint: "/definitely/not/here"}, zap.NewNop())
	if err := p.HealthCheck(context.Background()); err == nil {
		t.Error("expected error for missing binary")
	}
}
