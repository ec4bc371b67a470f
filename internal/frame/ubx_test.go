package frame

import (
	"encoding/binary"
	"testing"
)

func buildNavPVTPayload(fixType, carrSoln byte) []byte {
	payload := make([]byte, 92)
	binary.LittleEndian.PutUint16(payload[navPVTOffYear:], 2025)
	payload[navPVTOffMonth] = 8
	payload[navPVTOffDay] = 25
	payload[navPVTOffHour] = 14
	payload[navPVTOffMinute] = 30
	payload[navPVTOffSecond] = 15
	binary.LittleEndian.PutUint32(payload[navPVTOffNano:], uint32(123_000_000))

	payload[navPVTOffFixType] = fixType
	payload[navPVTOffCarrSoln] = carrSoln
	payload[navPVTOffNumSV] = 12

	binary.LittleEndian.PutUint32(payload[navPVTOffLat:], uint32(int32(37.7749*1e7)))
	binary.LittleEndian.PutUint32(payload[navPVTOffLon:], uint32(int32(-122.4194*1e7)))
	binary.LittleEndian.PutUint32(payload[navPVTOffHeight:], uint32(int32(10500)))
	binary.LittleEndian.PutUint32(payload[navPVTOffHAcc:], uint32(500))
	binary.LittleEndian.PutUint16(payload[navPVTOffPDOP:], uint16(120))

	return payload
}

func buildUBXFrame(class, id byte, payload []byte) []byte {
	frame := []byte{ubxSync1, ubxSync2, class, id}
	length := make([]byte, 2)
	binary.LittleEndian.PutUint16(length, uint16(len(payload)))
	frame = append(frame, length...)
	frame = append(frame, payload...)
	ckA, ckB := fletcherChecksum(frame[2:])
	frame = append(frame, ckA, ckB)
	return frame
}

func TestDecodeNavPVTScenario1(t *testing.T) {
	payload := buildNavPVTPayload(0x03, 0x02)
	f, ok := DecodeNavPVT(payload)
	if !ok {
		t.Fatalf("DecodeNavPVT returned ok=false")
	}
	if f.Quality != "RTK-FIXED" {
		t.Errorf("Quality = %v, want RTK-FIXED", f.Quality)
	}
	if diff := f.Latitude - 37.7749; diff > 1e-6 || diff < -1e-6 {
		t.Errorf("Latitude = %v, want ~37.7749", f.Latitude)
	}
	if diff := f.Longitude - (-122.4194); diff > 1e-6 || diff < -1e-6 {
		t.Errorf("Longitude = %v, want ~-122.4194", f.Longitude)
	}
	if diff := f.Height - 10.5; diff > 1e-2 || diff < -1e-2 {
		t.Errorf("Height = %v, want ~10.5", f.Height)
	}
	if f.HorizontalAccuracy != 0.5 {
		t.Errorf("HorizontalAccuracy = %v, want 0.5", f.HorizontalAccuracy)
	}
	if f.PDOP != 1.2 {
		t.Errorf("PDOP = %v, want 1.2", f.PDOP)
	}
	if got := f.TimestampString(); got != "2025-08-25T14:30:15.123Z" {
		t.Errorf("TimestampString = %v, want 2025-08-25T14:30:15.123Z", got)
	}
}

func TestQualityDerivationOrder(t *testing.T) {
	cases := []struct {
		fixType, carrSoln byte
		want              string
	}{
		{0x03, 0x01, "RTK-FLOAT"},
		{0x03, 0x00, "DIFFERENTIAL"},
		{0x00, 0x00, "NONE"},
	}
	for _, c := range cases {
		payload := buildNavPVTPayload(c.fixType, c.carrSoln)
		f, ok := DecodeNavPVT(payload)
		if !ok {
			t.Fatalf("DecodeNavPVT returned ok=false")
		}
		if string(f.Quality) != c.want {
			t.Errorf("fixType=%v carrSoln=%v: Quality = %v, want %v", c.fixType, c.carrSoln, f.Quality, c.want)
		}
	}
}

func TestUBXExtractorIncrementalEqualsOneShot(t *testing.T) {
	payload := buildNavPVTPayload(0x03, 0x02)
	frame := buildUBXFrame(ubxClassNAV, ubxIDNavPVT, payload)

	oneShot := &UBXExtractor{}
	oneShotMsgs := oneShot.Feed(frame)

	incremental := &UBXExtractor{}
	var incrementalMsgs []UBXMessage
	for i := 0; i < len(frame); i++ {
		incrementalMsgs = append(incrementalMsgs, incremental.Feed(frame[i:i+1])...)
	}

	if len(oneShotMsgs) != 1 || len(incrementalMsgs) != 1 {
		t.Fatalf("expected 1 message each, got oneShot=%d incremental=%d", len(oneShotMsgs), len(incrementalMsgs))
	}
	if string(oneShotMsgs[0].Payload) != string(incrementalMsgs[0].Payload) {
		t.Errorf("incremental feed produced different payload than one-shot feed")
	}
}

func TestUBXExtractorBoundary(t *testing.T) {
	payload := buildNavPVTPayload(0x03, 0x02)
	frame := buildUBXFrame(ubxClassNAV, ubxIDNavPVT, payload)

	e := &UBXExtractor{}
	msgs := e.Feed(frame)
	if len(msgs) != 1 {
		t.Fatalf("expected exactly one frame at boundary, got %d", len(msgs))
	}
	if len(e.buf) != 0 {
		t.Errorf("expected empty buffer after exact boundary feed, got %d bytes", len(e.buf))
	}

	e2 := &UBXExtractor{}
	short := frame[:len(frame)-1]
	msgs2 := e2.Feed(short)
	if len(msgs2) != 0 {
		t.Errorf("expected no frames when one byte short, got %d", len(msgs2))
	}
}

func TestUBXExtractorChecksumMismatchDropped(t *testing.T) {
	payload := buildNavPVTPayload(0x03, 0x02)
	frame := buildUBXFrame(ubxClassNAV, ubxIDNavPVT, payload)
	frame[len(frame)-1] ^= 0xFF

	e := &UBXExtractor{}
	msgs := e.Feed(frame)
	if len(msgs) != 0 {
		t.Errorf("expected 0 messages after checksum corruption, got %d", len(msgs))
	}
	if e.Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", e.Dropped)
	}
}
