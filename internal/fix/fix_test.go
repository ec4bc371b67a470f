package fix

import (
	"errors"
	"testing"
	"time"
)

func TestValidateRange(t *testing.T) {
	cases := []struct {
		name    string
		f       Fix
		wantErr bool
	}{
		{"valid", Fix{Latitude: 37.7749, Longitude: -122.4194, HorizontalAccuracy: 0.5}, false},
		{"lat too high", Fix{Latitude: 90.1, Longitude: 0, HorizontalAccuracy: 1}, true},
		{"lat too low", Fix{Latitude: -90.1, Longitude: 0, HorizontalAccuracy: 1}, true},
		{"lon too high", Fix{Latitude: 0, Longitude: 180.1, HorizontalAccuracy: 1}, true},
		{"lon too low", Fix{Latitude: 0, Longitude: -180.1, HorizontalAccuracy: 1}, true},
		{"negative accuracy", Fix{Latitude: 0, Longitude: 0, HorizontalAccuracy: -0.1}, true},
	}

	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			err := c.f.Validate()
			if c.wantErr && !errors.Is(err, ErrInvalid) {
				t.Errorf("Validate() = %v, want ErrInvalid", err)
			}
			if !c.wantErr && err != nil {
				t.Errorf("Validate() = %v, want nil", err)
			}
		})
	}
}

func TestEqual(t *testing.T) {
	now := time.Date(2025, 8, 25, 14, 30, 15, 123_000_000, time.UTC)
	a := Fix{Timestamp: now, Quality: QualityRTKFixed, Latitude: 1, Longitude: 2, Satellites: map[string]int{"GPS": 9}}
	b := Fix{Timestamp: now, Quality: QualityRTKFixed, Latitude: 1, Longitude: 2, Satellites: map[string]int{"GPS": 9}}
	if !a.Equal(b) {
		t.Errorf("expected equal fixes")
	}

	c := b
	c.Satellites = map[string]int{"GPS": 8}
	if a.Equal(c) {
		t.Errorf("expected unequal fixes when satellite counts differ")
	}

	d := b
	d.Latitude = 1.00001
	if a.Equal(d) {
		t.Errorf("expected unequal fixes when latitude differs")
	}
}

func TestTimestampString(t *testing.T) {
	f := Fix{Timestamp: time.Date(2025, 8, 25, 14, 30, 15, 123_000_000, time.UTC)}
	want := "2025-08-25T14:30:15.123Z"
	if got := f.TimestampString(); got != want {
		t.Errorf("TimestampString() = %q, want %q", got, want)
	}
}
