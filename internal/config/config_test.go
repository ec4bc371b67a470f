package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeTempConfig(t, `{
		"receivers": [
			{"id": "front", "variant": "ubx", "path": "/dev/ttyACM0"},
			{"id": "rear", "variant": "unicore", "path": "/dev/ttyACM1"}
		],
		"mounts": [
			{"host": "caster.example.com", "port": 2101, "mountpoint": "RTCM3", "priority": 1, "enabled": true}
		]
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	require.Len(t, cfg.Receivers, 2)
	assert.Equal(t, defaultUBXBaud, cfg.Receivers[0].Baud)
	assert.Equal(t, defaultUnicoreBaud, cfg.Receivers[1].Baud)

	assert.Equal(t, defaultMaxConsecutiveFailures, cfg.MountManager.MaxConsecutiveFailures)
	assert.Equal(t, defaultRetryDelaySeconds, cfg.MountManager.RetryDelaySeconds)
	assert.Equal(t, defaultHealthCheckIntervalSeconds, cfg.MountManager.HealthCheckIntervalSeconds)
	assert.Equal(t, defaultDataTimeoutSeconds, cfg.MountManager.DataTimeoutSeconds)
	assert.Equal(t, defaultLogLevel, cfg.LogLevel)
}

func TestLoadPreservesExplicitValues(t *testing.T) {
	path := writeTempConfig(t, `{
		"receivers": [{"id": "front", "variant": "ubx", "path": "/dev/ttyACM0", "baud": 38400}],
		"mount_manager": {"max_consecutive_failures": 5, "retry_delay_seconds": 10, "health_check_interval_seconds": 15, "data_timeout_seconds": 45},
		"log_level": "debug"
	}`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 38400, cfg.Receivers[0].Baud)
	assert.Equal(t, 5, cfg.MountManager.MaxConsecutiveFailures)
	assert.Equal(t, 10, cfg.MountManager.RetryDelaySeconds)
	assert.Equal(t, 15, cfg.MountManager.HealthCheckIntervalSeconds)
	assert.Equal(t, 45, cfg.MountManager.DataTimeoutSeconds)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}

func TestLoadInvalidJSON(t *testing.T) {
	path := writeTempConfig(t, `{not valid json`)
	_, err := Load(path)
	assert.Error(t, err)
}

func TestMountConfigToDescriptor(t *testing.T) {
	m := MountConfig{
		Host: "caster.example.com", Port: 2101, Mountpoint: "RTCM3",
		Username: "u", Password: "p", Priority: 1, Description: "test", Enabled: true,
	}
	d := m.ToDescriptor()
	assert.Equal(t, m.Host, d.Host)
	assert.Equal(t, m.Port, d.Port)
	assert.Equal(t, m.Mountpoint, d.Mountpoint)
	assert.Equal(t, m.Username, d.Username)
	assert.Equal(t, m.Password, d.Password)
	assert.Equal(t, m.Priority, d.Priority)
	assert.Equal(t, m.Enabled, d.Enabled)
}

func TestMountManagerConfigToManagerConfig(t *testing.T) {
	c := MountManagerConfig{
		MaxConsecutiveFailures: 3, RetryDelaySeconds: 30,
		HealthCheckIntervalSeconds: 60, DataTimeoutSeconds: 120,
	}
	mc := c.ToManagerConfig()
	assert.Equal(t, 3, mc.MaxConsecutiveFailures)
	assert.Equal(t, 30*time.Second, mc.RetryDelay)
	assert.Equal(t, 60*time.Second, mc.HealthCheckInterval)
	assert.Equal(t, 120*time.Second, mc.DataTimeout)
}
