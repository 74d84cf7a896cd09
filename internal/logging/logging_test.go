package logging

import (
	"bytes"
	"strings"
	"testing"
)

func TestNewFiltersByLevel(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New("warn", &buf)
	if err != nil {
		t.Fatal(err)
	}
	logger.Info("hidden")
	logger.Warn("shown")
	_ = logger.Sync()

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Error("info line should be filtered at warn level")
	}
	if !strings.Contains(out, "shown") {
		t.Error("warn line missing")
	}
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	if _, err := New("loud", &bytes.Buffer{}); err == nil {
		t.Fatal("expected error")
	}
}

func TestNewDefaultsToInfo(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New("", &buf)
	if err != nil {
		t.Fatal(err)
	}
	logger.Debug("quiet")
	logger.Info("loud")
	if strings.Contains(buf.String(), "quiet") || !strings.Contains(buf.String(), "loud") {
		t.Errorf("unexpected output %q", buf.String())
	}
}
