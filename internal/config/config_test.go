package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "topology.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeTemp(t, `
app_name: demo
agents:
  - name: Alice
    binds:
      - alias: main
        role: PUB
`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "demo", cfg.AppName)
	require.Equal(t, "0.0.0.0", cfg.Nameserver.Host)
	require.Equal(t, "0.0.0.0", cfg.Agents[0].Host)
	require.Equal(t, "PUB", cfg.Agents[0].Binds[0].Role)
}

func TestLoadRejectsMissingAgentName(t *testing.T) {
	path := writeTemp(t, `
agents:
  - host: 127.0.0.1
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadRejectsBindWithoutRole(t *testing.T) {
	path := writeTemp(t, `
agents:
  - name: Alice
    binds:
      - alias: main
`)
	_, err := Load(path)
	require.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
