// Package config reads the JSON startup configuration for cmd/rtkhubd:
// the set of receivers to register, the NTRIP mounts to add, and the
// mount manager's failover timing knobs.
//
// An example config file:
//
//	{
//		"receivers": [
//			{"id": "front", "variant": "ubx", "path": "/dev/ttyACM0", "baud": 115200}
//		],
//		"mounts": [
//			{"host": "caster.example.com", "port": 2101, "mountpoint": "RTCM3", "username": "user", "password": "pass", "priority": 1, "enabled": true}
//		],
//		"mount_manager": {
//			"max_consecutive_failures": 3,
//			"retry_delay_seconds": 30,
//			"health_check_interval_seconds": 60,
//			"data_timeout_seconds": 120
//		},
//		"log_level": "info"
//	}
package config

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/CNGdrive/CNG-RTK-HUB/internal/ntrip"
	"github.com/CNGdrive/CNG-RTK-HUB/internal/receiver"
)

const (
	defaultUBXBaud     = 115200
	defaultUnicoreBaud = 9600

	defaultMaxConsecutiveFailures     = 3
	defaultRetryDelaySeconds          = 30
	defaultHealthCheckIntervalSeconds = 60
	defaultDataTimeoutSeconds         = 120
	defaultLogLevel                   = "info"
)

// ReceiverConfig describes one receiver to register at startup.
type ReceiverConfig struct {
	ID      string `json:"id"`
	Variant string `json:"variant"` // "ubx" or "unicore"
	Path    string `json:"path"`
	Baud    int    `json:"baud"`
}

// MountConfig describes one NTRIP mountpoint to add at startup.
type MountConfig struct {
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Mountpoint  string `json:"mountpoint"`
	Username    string `json:"username"`
	Password    string `json:"password"`
	Priority    int    `json:"priority"`
	Description string `json:"description"`
	Enabled     bool   `json:"enabled"`
}

// ToDescriptor converts a MountConfig to the ntrip package's descriptor type.
func (m MountConfig) ToDescriptor() ntrip.MountDescriptor {
	return ntrip.MountDescriptor{
		Host:        m.Host,
		Port:        m.Port,
		Mountpoint:  m.Mountpoint,
		Username:    m.Username,
		Password:    m.Password,
		Priority:    m.Priority,
		Description: m.Description,
		Enabled:     m.Enabled,
	}
}

// MountManagerConfig carries the mount manager's timing knobs in JSON's
// native seconds representation.
type MountManagerConfig struct {
	MaxConsecutiveFailures     int `json:"max_consecutive_failures"`
	RetryDelaySeconds          int `json:"retry_delay_seconds"`
	HealthCheckIntervalSeconds int `json:"health_check_interval_seconds"`
	DataTimeoutSeconds         int `json:"data_timeout_seconds"`
}

// ToManagerConfig converts to the ntrip package's duration-based config.
func (c MountManagerConfig) ToManagerConfig() ntrip.ManagerConfig {
	return ntrip.ManagerConfig{
		MaxConsecutiveFailures: c.MaxConsecutiveFailures,
		RetryDelay:             time.Duration(c.RetryDelaySeconds) * time.Second,
		HealthCheckInterval:    time.Duration(c.HealthCheckIntervalSeconds) * time.Second,
		DataTimeout:            time.Duration(c.DataTimeoutSeconds) * time.Second,
	}
}

// Config is the top-level shape of the JSON startup file.
type Config struct {
	Receivers    []ReceiverConfig   `json:"receivers"`
	Mounts       []MountConfig      `json:"mounts"`
	MountManager MountManagerConfig `json:"mount_manager"`
	LogLevel     string             `json:"log_level"`
}

// Load reads and parses the JSON configuration file at path, applying
// documented defaults to any zero-valued field.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: opening %s: %w", path, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	for i := range c.Receivers {
		if c.Receivers[i].Baud != 0 {
			continue
		}
		switch receiver.Variant(c.Receivers[i].Variant) {
		case receiver.VariantUBX:
			c.Receivers[i].Baud = defaultUBXBaud
		case receiver.VariantUnicore:
			c.Receivers[i].Baud = defaultUnicoreBaud
		}
	}

	if c.MountManager.MaxConsecutiveFailures == 0 {
		c.MountManager.MaxConsecutiveFailures = defaultMaxConsecutiveFailures
	}
	if c.MountManager.RetryDelaySeconds == 0 {
		c.MountManager.RetryDelaySeconds = defaultRetryDelaySeconds
	}
	if c.MountManager.HealthCheckIntervalSeconds == 0 {
		c.MountManager.HealthCheckIntervalSeconds = defaultHealthCheckIntervalSeconds
	}
	if c.MountManager.DataTimeoutSeconds == 0 {
		c.MountManager.DataTimeoutSeconds = defaultDataTimeoutSeconds
	}
	if c.LogLevel == "" {
		c.LogLevel = defaultLogLevel
	}
}
