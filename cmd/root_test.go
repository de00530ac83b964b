package cmd

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "hostpulse.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := NewRootCommand()
	var out bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.ExecuteContext(t.Context())
	return out.String(), err
}

func validConfig(t *testing.T) string {
	t.Helper()
	db := filepath.Join(t.TempDir(), "hostpulse.db")
	return writeConfig(t, `
database:
  type: sqlite
  path: `+db+`
notification:
  smtp:
    host: smtp.example.com
    from: alerts@example.com
    password: hunter2
hosts:
  - id: local
    kind: local
`)
}

func TestVersionCommand(t *testing.T) {
	out, err := execute(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "hostpulse ")
	assert.Contains(t, out, "Go version:")
}

func TestConfigCheck(t *testing.T) {
	out, err := execute(t, "config", "check", "--config", validConfig(t))
	require.NoError(t, err)
	assert.Contains(t, out, "Configuration OK (1 hosts, database sqlite)")
}

func TestConfigCheck_Invalid(t *testing.T) {
	path := writeConfig(t, `
hosts:
  - id: web-1
    kind: ssh
`)
	_, err := execute(t, "config", "check", "-c", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "configuration error")
	assert.Contains(t, err.Error(), "hosts[0].address")
}

func TestConfigShow_MasksSecrets(t *testing.T) {
	out, err := execute(t, "config", "show", "-c", validConfig(t))
	require.NoError(t, err)
	assert.Contains(t, out, "smtp.example.com")
	assert.NotContains(t, out, "hunter2")
	assert.Contains(t, out, "********")
	assert.Contains(t, out, "poll_interval: 1m0s")
}

func TestCollect_RequiresHostArgument(t *testing.T) {
	_, err := execute(t, "collect")
	require.Error(t, err)
}

func TestCollect_UnknownHost(t *testing.T) {
	_, err := execute(t, "collect", "missing", "-c", validConfig(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing")
}
