package aggregator

import (
	"time"

	"github.com/CNGdrive/CNG-RTK-HUB/internal/receiver"
)

// ReceiverStatus is a point-in-time snapshot of one registered receiver.
type ReceiverStatus struct {
	ID      string
	Variant receiver.Variant
	Path    string
	Baud    int
	State   receiver.State
}

// NTRIPStatus is a point-in-time snapshot of the mount manager and the
// correction fan-out counters.
type NTRIPStatus struct {
	Enabled         bool
	ActiveMount     string
	BytesReceived   uint64
	FramesForwarded uint64
	LastData        time.Time

	CorrectionFrames uint64
	CorrectionBytes  uint64
	LastCorrection   time.Time
}

// Status is the full snapshot returned by Aggregator.Status.
type Status struct {
	Receivers []ReceiverStatus
	NTRIP     NTRIPStatus
}
