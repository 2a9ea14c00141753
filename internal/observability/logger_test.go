package observability

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap"

	"speech-assessment-platform/backend/internal/config"
)

func TestSetupLoggerWritesJSONFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "worker.log")
	logger, err := SetupLogger(config.LogConfig{
		Level:   "debug",
		Format:  "json",
		Outputs: []string{path},
	})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	logger.Debug("task received", zap.String("exercise_id", "ex-1"))
	_ = logger.Sync()

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if !strings.Contains(string(b), `"exercise_id":"ex-1"`) {
		t.Fatalf("log line missing field: %s", b)
	}
}

func TestSetupLoggerRespectsLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker.log")
	logger, err := SetupLogger(config.LogConfig{
		Level:    "warn",
		Format:   "console",
		Outputs:  []string{path},
		Rotation: config.RotationConfig{Enable: true, MaxSizeMB: 1},
	})
	if err != nil {
		t.Fatalf("setup: %v", err)
	}
	logger.Info("hidden")
	logger.Warn("shown")
	_ = logger.Sync()

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read log: %v", err)
	}
	if strings.Contains(string(b), "hidden") || !strings.Contains(string(b), "shown") {
		t.Fatalf("unexpected log content: %s", b)
	}
}

func TestParseLevel(t *testing.T) {
	if parseLevel("WARNING") != zap.WarnLevel || parseLevel("nonsense") != zap.InfoLevel {
		t.Fatalf("unexpected level mapping")
	}
}
