// Package ntrip implements an NTRIP v2 streaming client for a single
// mountpoint and a failover-aware pool manager over several mountpoints.
package ntrip

import (
	"errors"
	"time"
)

var (
	// ErrConnection covers TCP-connect and non-200/non-401 HTTP failures.
	ErrConnection = errors.New("ntrip: connection error")
	// ErrAuth covers an HTTP 401 response.
	ErrAuth = errors.New("ntrip: authentication error")
)

// MountDescriptor is the immutable configuration for one NTRIP endpoint.
type MountDescriptor struct {
	Host        string
	Port        int
	Mountpoint  string
	Username    string
	Password    string
	Priority    int // smaller = preferred
	Description string
	Enabled     bool
}

// MountRuntimeState is the mutable, per-descriptor bookkeeping the
// manager maintains across connection attempts.
type MountRuntimeState struct {
	Connected           bool
	LastAttempt         time.Time
	ConsecutiveFailures int
	BytesReceived       uint64
	FramesForwarded     uint64
	LastData            time.Time
}
