package frame

import (
	"bytes"
	"encoding/binary"
	"time"

	"github.com/CNGdrive/CNG-RTK-HUB/internal/fix"
)

var unicoreSync = []byte{0xAA, 0x44, 0x12, 0x1C}

const (
	unicoreHeaderLen  = 28
	unicoreTrailerLen = 4

	unicoreOffMessageID = 4
	unicoreOffLength    = 8

	unicoreMessageIDBestPos = 42
)

// UnicoreMessageIDBestPos identifies the one message this system
// decodes from the variant-B protocol, exported for driver callers.
const UnicoreMessageIDBestPos = unicoreMessageIDBestPos

// UnicoreMessage is one validated fixed-header frame from the variant-B
// protocol. Payload holds everything after the 28-byte header, up to
// but not including the trailing 4-byte CRC (read but not validated,
// matching the documented deviation for this variant).
type UnicoreMessage struct {
	MessageID uint16
	Payload   []byte
}

// UnicoreExtractor pulls complete, length-consistent frames out of an
// append-only byte buffer for the variant-B protocol.
type UnicoreExtractor struct {
	buf []byte
}

// Feed appends newly read bytes and returns every complete frame found
// so far, in arrival order.
func (e *UnicoreExtractor) Feed(data []byte) []UnicoreMessage {
	e.buf = append(e.buf, data...)

	var out []UnicoreMessage
	for {
		msg, consumed, ok := e.tryExtract()
		if consumed == 0 {
			break
		}
		e.buf = e.buf[consumed:]
		if ok {
			out = append(out, msg)
		}
	}
	return out
}

func (e *UnicoreExtractor) tryExtract() (UnicoreMessage, int, bool) {
	buf := e.buf

	syncAt := bytes.Index(buf, unicoreSync)
	if syncAt == -1 {
		keep := len(unicoreSync) - 1
		if len(buf) > keep {
			return UnicoreMessage{}, len(buf) - keep, false
		}
		return UnicoreMessage{}, 0, false
	}
	if syncAt > 0 {
		return UnicoreMessage{}, syncAt, false
	}

	if len(buf) < unicoreHeaderLen {
		return UnicoreMessage{}, 0, false
	}

	msgID := binary.LittleEndian.Uint16(buf[unicoreOffMessageID : unicoreOffMessageID+2])
	length := int(binary.LittleEndian.Uint16(buf[unicoreOffLength : unicoreOffLength+2]))
	total := unicoreHeaderLen + length + unicoreTrailerLen
	if len(buf) < total {
		return UnicoreMessage{}, 0, false
	}

	payload := buf[unicoreHeaderLen : unicoreHeaderLen+length]
	return UnicoreMessage{
		MessageID: msgID,
		Payload:   append([]byte(nil), payload...),
	}, total, true
}

// BESTPOS field offsets are relative to the start of the payload (the
// first byte after the 28-byte header). The status string occupies a
// full 16-byte run with nothing else overlapping it; every field after
// it is laid out back-to-back from where the status run ends.
const (
	bestPosOffStatus     = 4
	bestPosStatusLen     = 16
	bestPosOffWeek       = bestPosOffStatus + bestPosStatusLen // 20
	bestPosOffSecsOfWeek = bestPosOffWeek + 2                  // 22
	bestPosOffLat        = bestPosOffSecsOfWeek + 4            // 26
	bestPosOffLon        = bestPosOffLat + 8                   // 34
	bestPosOffHeight     = bestPosOffLon + 8                   // 42
	bestPosOffLatStdev   = bestPosOffHeight + 8                // 50
	bestPosOffLonStdev   = bestPosOffLatStdev + 4              // 54
	bestPosOffNumSats    = bestPosOffLonStdev + 16             // 70
	bestPosMinPayloadLen = bestPosOffNumSats + 1               // 71
)

var gpsEpoch = time.Date(1980, time.January, 6, 0, 0, 0, 0, time.UTC)

// unicoreStatusQuality maps the ASCII solution-status string embedded in
// a BESTPOS payload to a normalized fix quality.
var unicoreStatusQuality = map[string]fix.Quality{
	"SOL_COMPUTED":      fix.QualityRTKFixed,
	"COV_TRACE":         fix.QualityDifferential,
	"TEST_DIST":         fix.QualityDifferential,
	"V_H_LIMIT":         fix.QualityDifferential,
	"VARIANCE":          fix.QualityDifferential,
	"RESIDUALS":         fix.QualityDifferential,
	"DELTA_POS":         fix.QualityDifferential,
	"NEGATIVE_VAR":      fix.QualityDifferential,
	"INS_INACTIVE":      fix.QualityDifferential,
	"INS_ALIGNING":      fix.QualityDifferential,
	"INS_BAD":           fix.QualityDifferential,
	"IMU_UNPLUGGED":     fix.QualityDifferential,
	"INTEGRITY_WARNING": fix.QualityRTKFloat,
	"INSUFFICIENT_OBS":  fix.QualityNone,
	"NO_CONVERGENCE":    fix.QualityNone,
	"SINGULARITY":       fix.QualityNone,
	"COLD_START":        fix.QualityNone,
	"PENDING":           fix.QualityNone,
	"INVALID_FIX":       fix.QualityNone,
}

// DecodeBestPos converts a BESTPOS payload (as returned in
// UnicoreMessage.Payload) into a normalized Fix.
func DecodeBestPos(payload []byte) (fix.Fix, bool) {
	if len(payload) < bestPosMinPayloadLen {
		return fix.Fix{}, false
	}

	statusRaw := payload[bestPosOffStatus : bestPosOffStatus+bestPosStatusLen]
	status := string(bytes.TrimRight(statusRaw, "\x00"))

	week := binary.LittleEndian.Uint16(payload[bestPosOffWeek : bestPosOffWeek+2])
	secsOfWeekMs := binary.LittleEndian.Uint32(payload[bestPosOffSecsOfWeek : bestPosOffSecsOfWeek+4])

	ts := gpsEpoch.Add(time.Duration(week) * 7 * 24 * time.Hour).Add(time.Duration(secsOfWeekMs) * time.Millisecond)

	lat := float64(int64(binary.LittleEndian.Uint64(payload[bestPosOffLat:bestPosOffLat+8]))) * 1e-7
	lon := float64(int64(binary.LittleEndian.Uint64(payload[bestPosOffLon:bestPosOffLon+8]))) * 1e-7
	height := float64(int64(binary.LittleEndian.Uint64(payload[bestPosOffHeight:bestPosOffHeight+8]))) * 1e-3

	latStdevMM := binary.LittleEndian.Uint32(payload[bestPosOffLatStdev : bestPosOffLatStdev+4])
	lonStdevMM := binary.LittleEndian.Uint32(payload[bestPosOffLonStdev : bestPosOffLonStdev+4])
	accuracy := float64(latStdevMM) / 1000.0
	if lonAcc := float64(lonStdevMM) / 1000.0; lonAcc > accuracy {
		accuracy = lonAcc
	}

	numSats := int(payload[bestPosOffNumSats])

	quality, ok := unicoreStatusQuality[status]
	if !ok {
		quality = fix.QualityNone
	}

	return fix.Fix{
		Timestamp:          ts,
		Quality:            quality,
		Latitude:           lat,
		Longitude:          lon,
		Height:             height,
		HorizontalAccuracy: accuracy,
		Satellites:         map[string]int{"GPS": numSats},
		ReceiverMeta:       map[string]string{"model": "UM980"},
	}, true
}
