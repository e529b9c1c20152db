package config_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-test/deep"
	"github.com/stretchr/testify/require"

	"github.com/petrijr/reactor/pkg/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	name := filepath.Join(t.TempDir(), "reactor.yaml")
	require.NoError(t, os.WriteFile(name, []byte(content), 0o600))
	return name
}

func TestLoad_FileNotExist(t *testing.T) {
	t.Parallel()

	_, err := config.Load("nonexistent_file.yaml")
	require.True(t, os.IsNotExist(err), "expected a 'file does not exist' error, got %v", err)
}

func TestLoad_BadContent(t *testing.T) {
	t.Parallel()

	_, err := config.Load(writeConfig(t, "%%---invalid_yaml"))
	require.Error(t, err)
}

func TestLoad(t *testing.T) {
	t.Parallel()

	name := writeConfig(t, `
---
default_timeout_ms: 1500
log:
  level: debug
  format: json
history:
  driver: sqlite
  dsn: "file:reactor.db"
`)
	cfg, err := config.Load(name)
	require.NoError(t, err)

	expect := config.Config{
		DefaultTimeoutMs: 1500,
		Log:              config.Log{Level: "debug", Format: "json"},
		History:          config.History{Driver: config.HistorySQLite, DSN: "file:reactor.db"},
		API:              config.API{ListenAddress: "127.0.0.1:8080"},
	}
	if diff := deep.Equal(cfg, expect); diff != nil {
		t.Error(diff)
	}
	require.Equal(t, 1500*time.Millisecond, cfg.Timeout())
}

func TestValidate(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"negative timeout": "default_timeout_ms: -1\n",
		"sqlite no dsn":    "history:\n  driver: sqlite\n",
		"mysql no dsn":     "history:\n  driver: mysql\n",
		"mysql bad dsn":    "history:\n  driver: mysql\n  dsn: reactor@localhost\n",
		"unknown driver":   "history:\n  driver: mongo\n",
		"unknown level":    "log:\n  level: loud\n",
		"unknown format":   "log:\n  format: xml\n",
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := config.Load(writeConfig(t, content))
			require.Error(t, err)
		})
	}
}

func TestLoad_MySQL(t *testing.T) {
	t.Parallel()

	cfg, err := config.Load(writeConfig(t, `
history:
  driver: mysql
  dsn: "reactor:secret@tcp(127.0.0.1:3306)/reactor"
`))
	require.NoError(t, err)
	require.Equal(t, config.HistoryMySQL, cfg.History.Driver)
	require.True(t, cfg.History.Durable())
	require.False(t, config.Default().History.Durable())
}

func TestLogger(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	cfg := config.Default()
	cfg.Log = config.Log{Level: "warn", Format: "json"}

	logger := cfg.Logger(&buf)
	logger.Info("hidden")
	logger.Warn("shown", "graph", "checkout")

	require.NotContains(t, buf.String(), "hidden")
	require.Contains(t, buf.String(), `"msg":"shown"`)
	require.Contains(t, buf.String(), `"graph":"checkout"`)
}
