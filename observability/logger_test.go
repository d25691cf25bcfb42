package observability_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/xraph/conduit/config"
	"github.com/xraph/conduit/observability"
)

func TestNewLogger_WritesJSONToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "conduit.log")

	logger, zl, err := observability.NewLogger(config.LogConfig{
		Level:   "info",
		Format:  "json",
		Outputs: []string{path},
	})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}

	logger.Info("job submitted", "job_id", "job_123")
	logger.Debug("hidden at info level")
	_ = zl.Sync()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	out := string(data)
	if !strings.Contains(out, `"msg":"job submitted"`) {
		t.Errorf("missing message in %q", out)
	}
	if !strings.Contains(out, `"job_id":"job_123"`) {
		t.Errorf("missing attribute in %q", out)
	}
	if strings.Contains(out, "hidden at info level") {
		t.Errorf("debug record written at info level: %q", out)
	}
}

func TestNewLogger_UnknownLevel(t *testing.T) {
	if _, _, err := observability.NewLogger(config.LogConfig{Level: "verbose"}); err == nil {
		t.Fatal("expected error for unknown level")
	}
}

func TestNewLogger_Rotation(t *testing.T) {
	dir := t.TempDir()
	rotated := filepath.Join(dir, "rotated.log")

	logger, zl, err := observability.NewLogger(config.LogConfig{
		Level:   "debug",
		Format:  "console",
		Outputs: []string{filepath.Join(dir, "ignored.log")},
		Rotation: config.RotationConfig{
			Enable:   true,
			Filename: rotated,
		},
	})
	if err != nil {
		t.Fatalf("NewLogger: %v", err)
	}
	logger.Debug("rotating sink")
	_ = zl.Sync()

	data, err := os.ReadFile(rotated)
	if err != nil {
		t.Fatalf("read rotated log: %v", err)
	}
	if !strings.Contains(string(data), "rotating sink") {
		t.Errorf("rotated log = %q", data)
	}
}
