package frame

import (
	"encoding/binary"
	"testing"
)

func buildBestPosFrame(status string, week uint16, secsOfWeekMs uint32, lat, lon, heightMM int64, latStdevMM, lonStdevMM uint32, numSats byte) []byte {
	payloadLen := bestPosMinPayloadLen
	raw := make([]byte, unicoreHeaderLen+payloadLen+unicoreTrailerLen)
	copy(raw[0:4], unicoreSync)
	binary.LittleEndian.PutUint16(raw[unicoreOffMessageID:], unicoreMessageIDBestPos)
	binary.LittleEndian.PutUint16(raw[unicoreOffLength:], uint16(payloadLen))

	payload := raw[unicoreHeaderLen : unicoreHeaderLen+payloadLen]
	copy(payload[bestPosOffStatus:bestPosOffStatus+bestPosStatusLen], status)
	binary.LittleEndian.PutUint16(payload[bestPosOffWeek:], week)
	binary.LittleEndian.PutUint32(payload[bestPosOffSecsOfWeek:], secsOfWeekMs)
	binary.LittleEndian.PutUint64(payload[bestPosOffLat:], uint64(lat))
	binary.LittleEndian.PutUint64(payload[bestPosOffLon:], uint64(lon))
	binary.LittleEndian.PutUint64(payload[bestPosOffHeight:], uint64(heightMM))
	binary.LittleEndian.PutUint32(payload[bestPosOffLatStdev:], latStdevMM)
	binary.LittleEndian.PutUint32(payload[bestPosOffLonStdev:], lonStdevMM)
	payload[bestPosOffNumSats] = numSats

	return raw
}

func TestDecodeBestPos(t *testing.T) {
	raw := buildBestPosFrame("SOL_COMPUTED", 2300, 123456000, int64(37.7749*1e7), int64(-122.4194*1e7), 10500, 12, 18, 14)

	e := &UnicoreExtractor{}
	msgs := e.Feed(raw)
	if len(msgs) != 1 {
		t.Fatalf("expected 1 message, got %d", len(msgs))
	}
	if msgs[0].MessageID != unicoreMessageIDBestPos {
		t.Fatalf("MessageID = %d, want %d", msgs[0].MessageID, unicoreMessageIDBestPos)
	}

	f, ok := DecodeBestPos(msgs[0].Payload)
	if !ok {
		t.Fatalf("DecodeBestPos returned ok=false")
	}
	if f.Quality != "RTK-FIXED" {
		t.Errorf("Quality = %v, want RTK-FIXED", f.Quality)
	}
	if diff := f.Latitude - 37.7749; diff > 1e-6 || diff < -1e-6 {
		t.Errorf("Latitude = %v, want ~37.7749", f.Latitude)
	}
	if f.HorizontalAccuracy != 0.018 {
		t.Errorf("HorizontalAccuracy = %v, want 0.018 (max of stdevs)", f.HorizontalAccuracy)
	}
	if f.Satellites["GPS"] != 14 {
		t.Errorf("Satellites[GPS] = %d, want 14", f.Satellites["GPS"])
	}
}

func TestDecodeBestPosQualityTable(t *testing.T) {
	cases := []struct {
		status string
		want   string
	}{
		{"SOL_COMPUTED", "RTK-FIXED"},
		{"COV_TRACE", "DIFFERENTIAL"},
		{"INTEGRITY_WARNING", "RTK-FLOAT"},
		{"INSUFFICIENT_OBS", "NONE"},
		{"SOMETHING_UNKNOWN", "NONE"},
	}
	for _, c := range cases {
		raw := buildBestPosFrame(c.status, 2300, 0, 0, 0, 0, 0, 0, 0)
		e := &UnicoreExtractor{}
		msgs := e.Feed(raw)
		if len(msgs) != 1 {
			t.Fatalf("status=%s: expected 1 message, got %d", c.status, len(msgs))
		}
		f, ok := DecodeBestPos(msgs[0].Payload)
		if !ok {
			t.Fatalf("status=%s: DecodeBestPos returned ok=false", c.status)
		}
		if string(f.Quality) != c.want {
			t.Errorf("status=%s: Quality = %v, want %v", c.status, f.Quality, c.want)
		}
	}
}

func TestUnicoreExtractorIncrementalEqualsOneShot(t *testing.T) {
	raw := buildBestPosFrame("SOL_COMPUTED", 2300, 0, 0, 0, 0, 0, 0, 1)

	oneShot := &UnicoreExtractor{}
	oneShotMsgs := oneShot.Feed(raw)

	incremental := &UnicoreExtractor{}
	var incrementalMsgs []UnicoreMessage
	for i := 0; i < len(raw); i++ {
		incrementalMsgs = append(incrementalMsgs, incremental.Feed(raw[i:i+1])...)
	}

	if len(oneShotMsgs) != 1 || len(incrementalMsgs) != 1 {
		t.Fatalf("expected 1 message each, got oneShot=%d incremental=%d", len(oneShotMsgs), len(incrementalMsgs))
	}
	if string(oneShotMsgs[0].Payload) != string(incrementalMsgs[0].Payload) {
		t.Errorf("incremental feed produced a different payload than one-shot feed")
	}
}
