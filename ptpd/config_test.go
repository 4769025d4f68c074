package ptpd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleConfig = `
[global]
domain_number = 3
log_announce_interval = 2

[interfaces.eth0]
log_sync_interval = -1

[interfaces.eth1]
`

func writeConfig(t *testing.T, contents string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "ptp4l.conf")
	require.NoError(t, os.WriteFile(path, []byte(contents), 0644))
	return path
}

func TestLoadParsesGlobalAndPerInterfaceSections(t *testing.T) {
	path := writeConfig(t, sampleConfig)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.EqualValues(t, 3, cfg.DomainNumber)
	require.Contains(t, cfg.Ports, "eth0")
	require.Contains(t, cfg.Ports, "eth1")

	assert.EqualValues(t, -1, cfg.Ports["eth0"].LogSyncInterval)
	assert.EqualValues(t, 2, cfg.Ports["eth0"].LogAnnounceInterval, "eth0 inherits global log_announce_interval")
	assert.EqualValues(t, 2, cfg.Ports["eth1"].LogAnnounceInterval, "eth1 inherits global log_announce_interval")
	assert.EqualValues(t, 0, cfg.Ports["eth1"].LogSyncInterval, "eth1 keeps the default, unset in its own section")
}

func TestLoadRejectsConfigWithNoInterfaces(t *testing.T) {
	path := writeConfig(t, "[global]\ndomain_number = 0\n")

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "does-not-exist.conf"))
	assert.Error(t, err)
}
