// Package fix defines the normalized position record produced by every
// receiver driver, independent of which wire protocol decoded it.
package fix

import (
	"errors"
	"fmt"
	"time"
)

// Quality is the normalized fix quality, derived differently by each
// driver variant but always collapsed to this set.
type Quality string

const (
	QualityNone         Quality = "NONE"
	QualityDifferential Quality = "DIFFERENTIAL"
	QualityRTKFloat     Quality = "RTK-FLOAT"
	QualityRTKFixed     Quality = "RTK-FIXED"
)

// ErrInvalid is wrapped by Validate when a Fix violates an invariant.
var ErrInvalid = errors.New("fix: invalid record")

// Fix is an immutable snapshot of a receiver's position at a point in time.
type Fix struct {
	Timestamp time.Time
	Quality   Quality

	Latitude  float64 // decimal degrees, WGS-84
	Longitude float64 // decimal degrees, WGS-84
	Height    float64 // metres, ellipsoidal

	HorizontalAccuracy float64 // metres, 1-sigma
	PDOP               float64

	Satellites map[string]int // constellation -> count, e.g. "GPS": 9
	Baseline   float64        // metres, 0 when not RTK

	CorrectionSource string
	ReceiverMeta     map[string]string
}

// Validate checks the invariants every Fix must satisfy regardless of
// which driver produced it.
func (f Fix) Validate() error {
	if f.Latitude < -90 || f.Latitude > 90 {
		return fmt.Errorf("%w: latitude %f out of range", ErrInvalid, f.Latitude)
	}
	if f.Longitude < -180 || f.Longitude > 180 {
		return fmt.Errorf("%w: longitude %f out of range", ErrInvalid, f.Longitude)
	}
	if f.HorizontalAccuracy < 0 {
		return fmt.Errorf("%w: negative horizontal accuracy %f", ErrInvalid, f.HorizontalAccuracy)
	}
	return nil
}

// Equal reports value equality between two Fix records, as used by the
// per-receiver monitor task to detect a change worth publishing.
// ReceiverMeta is not compared.
func (f Fix) Equal(other Fix) bool {
	if !f.Timestamp.Equal(other.Timestamp) ||
		f.Quality != other.Quality ||
		f.Latitude != other.Latitude ||
		f.Longitude != other.Longitude ||
		f.Height != other.Height ||
		f.HorizontalAccuracy != other.HorizontalAccuracy ||
		f.PDOP != other.PDOP ||
		f.Baseline != other.Baseline ||
		f.CorrectionSource != other.CorrectionSource {
		return false
	}
	if len(f.Satellites) != len(other.Satellites) {
		return false
	}
	for k, v := range f.Satellites {
		if other.Satellites[k] != v {
			return false
		}
	}
	return true
}

// TimestampString renders the fix timestamp as ISO-8601 UTC with
// millisecond precision, the wire format used across the publisher sink.
func (f Fix) TimestampString() string {
	return f.Timestamp.UTC().Format("2006-01-02T15:04:05.000Z")
}
