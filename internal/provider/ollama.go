package provider

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"

	"go.uber.org/zap"
)

// OllamaProvider runs models through the local ollama binary, feeding the
// prompt on stdin and reading the completion from stdout.
type OllamaProvider struct {
	config ProviderConfig
	binary string
	logger *zap.Logger
}

// NewOllamaProvider creates a provider backed by `ollama run`. Endpoint is
// the path to the binary; Extra["host"] sets OLLAMA_HOST for the child.
func NewOllamaProvider(cfg ProviderConfig, logger *zap.Logger) *OllamaProvider {
	bin := cfg.Endpoint
	if bin == "" {
		bin = "ollama"
	}
	return &OllamaProvider{config: cfg, binary: bin, logger: logger}
}

func (p *OllamaProvider) ID() string   { return p.config.ID }
func (p *OllamaProvider) Name() string { return p.config.displayName() }

// Invoke runs `ollama run <model>`. The child is killed when ctx ends.
func (p *OllamaProvider) Invoke(ctx context.Context, model, prompt string) (string, error) {
	cmd := exec.CommandContext(ctx, p.binary, "run", model)
	cmd.Stdin = strings.NewReader(prompt)
	if host := p.config.Extra["host"]; host != "" {
		cmd.Env = append(os.Environ(), "OLLAMA_HOST="+host)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	p.logger.Debug("spawning ollama", zap.String("binary", p.binary), zap.String("model", model))

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return "", ctxErr
		}
		reason := strings.TrimSpace(stderr.String())
		if reason == "" {
			reason = err.Error()
		}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			reason = fmt.Sprintf("exit status %d: %s", exitErr.ExitCode(), reason)
		}
		return "", &InvocationError{Provider: p.config.ID, Model: model, Reason: reason, Err: err}
	}
	return strings.TrimSpace(stdout.String()), nil
}

// HealthCheck verifies the binary resolves on PATH.
func (p *OllamaProvider) HealthCheck(_ context.Context) error {
	if _, err := exec.LookPath(p.binary); err != nil {
		return fmt.Errorf("ollama binary %q: %w", p.binary, err)
	}
	return nil
}
