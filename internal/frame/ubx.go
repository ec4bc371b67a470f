// Package frame implements the byte-stream framing and checksum/CRC
// validation for the wire protocols this system consumes: the UBX-like
// TLV protocol (variant A), the Unicore-like fixed-header protocol
// (variant B), and RTCM3 correction frames.
package frame

import (
	"encoding/binary"
	"time"

	"github.com/CNGdrive/CNG-RTK-HUB/internal/fix"
)

const (
	ubxSync1 = 0xB5
	ubxSync2 = 0x62

	ubxHeaderLen   = 6 // sync(2) + class(1) + id(1) + length(2)
	ubxChecksumLen = 2

	ubxClassNAV = 0x01
	ubxIDNavPVT = 0x07
)

// UBXClassNAV and UBXIDNavPVT identify the one message this system
// decodes from the variant-A protocol, exported for driver callers that
// need to filter extractor output without depending on package-private
// constants.
const (
	UBXClassNAV = ubxClassNAV
	UBXIDNavPVT = ubxIDNavPVT
)

// UBXMessage is one validated TLV frame from the variant-A protocol.
type UBXMessage struct {
	Class   byte
	ID      byte
	Payload []byte
}

// UBXExtractor pulls complete, checksum-validated UBX-like frames out of
// an append-only byte buffer. It is not safe for concurrent use; each
// receiver driver owns one extractor fed by its own reader goroutine.
type UBXExtractor struct {
	buf     []byte
	Dropped int // frames discarded due to checksum mismatch
}

// Feed appends newly read bytes and returns every complete frame that
// can be extracted so far. Feeding a byte stream in arbitrary chunks
// yields the same frames as feeding it in one chunk.
func (e *UBXExtractor) Feed(data []byte) []UBXMessage {
	e.buf = append(e.buf, data...)

	var out []UBXMessage
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

// tryExtract looks for one frame at the front of the buffer. It returns
// consumed=0 when it needs more bytes to make progress.
func (e *UBXExtractor) tryExtract() (UBXMessage, int, bool) {
	buf := e.buf

	syncAt := -1
	for i := 0; i+1 < len(buf); i++ {
		if buf[i] == ubxSync1 && buf[i+1] == ubxSync2 {
			syncAt = i
			break
		}
	}
	if syncAt == -1 {
		if len(buf) > 1 {
			return UBXMessage{}, len(buf) - 1, false
		}
		return UBXMessage{}, 0, false
	}
	if syncAt > 0 {
		return UBXMessage{}, syncAt, false
	}

	if len(buf) < ubxHeaderLen {
		return UBXMessage{}, 0, false
	}

	class := buf[2]
	id := buf[3]
	length := int(binary.LittleEndian.Uint16(buf[4:6]))
	total := ubxHeaderLen + length + ubxChecksumLen
	if len(buf) < total {
		return UBXMessage{}, 0, false
	}

	payload := buf[ubxHeaderLen : ubxHeaderLen+length]
	ckA, ckB := fletcherChecksum(buf[2 : ubxHeaderLen+length])
	wantA, wantB := buf[total-2], buf[total-1]

	if ckA != wantA || ckB != wantB {
		e.Dropped++
		return UBXMessage{}, total, false
	}

	msg := UBXMessage{
		Class:   class,
		ID:      id,
		Payload: append([]byte(nil), payload...),
	}
	return msg, total, true
}

// fletcherChecksum computes the 8-bit rolling checksum pair used by the
// variant-A protocol over class..end-of-payload.
func fletcherChecksum(data []byte) (byte, byte) {
	var ckA, ckB byte
	for _, b := range data {
		ckA += b
		ckB += ckA
	}
	return ckA, ckB
}

const (
	navPVTMinPayload = 92

	navPVTOffYear   = 10
	navPVTOffMonth  = 12
	navPVTOffDay    = 13
	navPVTOffHour   = 14
	navPVTOffMinute = 15
	navPVTOffSecond = 16
	navPVTOffNano   = 22

	navPVTOffFixType   = 26
	navPVTOffCarrSoln  = 27
	navPVTOffNumSV     = 29
	navPVTOffLon       = 36
	navPVTOffLat       = 32
	navPVTOffHeight    = 40
	navPVTOffHAcc      = 48
	navPVTOffPDOP      = 82
)

// DecodeNavPVT converts a NAV-PVT payload into a normalized Fix. It
// returns false if the payload is too short to be a NAV-PVT message.
func DecodeNavPVT(payload []byte) (fix.Fix, bool) {
	if len(payload) < navPVTMinPayload {
		return fix.Fix{}, false
	}

	year := int(binary.LittleEndian.Uint16(payload[navPVTOffYear : navPVTOffYear+2]))
	month := int(payload[navPVTOffMonth])
	day := int(payload[navPVTOffDay])
	hour := int(payload[navPVTOffHour])
	minute := int(payload[navPVTOffMinute])
	second := int(payload[navPVTOffSecond])
	nano := int32(binary.LittleEndian.Uint32(payload[navPVTOffNano : navPVTOffNano+4]))

	ts := time.Date(year, time.Month(month), day, hour, minute, second, int(nano), time.UTC)

	fixType := payload[navPVTOffFixType]
	carrSoln := payload[navPVTOffCarrSoln]
	numSV := int(payload[navPVTOffNumSV])

	lat := float64(int32(binary.LittleEndian.Uint32(payload[navPVTOffLat:navPVTOffLat+4]))) * 1e-7
	lon := float64(int32(binary.LittleEndian.Uint32(payload[navPVTOffLon:navPVTOffLon+4]))) * 1e-7
	height := float64(int32(binary.LittleEndian.Uint32(payload[navPVTOffHeight:navPVTOffHeight+4]))) * 1e-3
	hAcc := float64(binary.LittleEndian.Uint32(payload[navPVTOffHAcc:navPVTOffHAcc+4])) * 1e-3
	pdop := float64(binary.LittleEndian.Uint16(payload[navPVTOffPDOP:navPVTOffPDOP+2])) * 1e-2

	return fix.Fix{
		Timestamp:          ts,
		Quality:            navPVTQuality(fixType, carrSoln),
		Latitude:           lat,
		Longitude:          lon,
		Height:             height,
		HorizontalAccuracy: hAcc,
		PDOP:               pdop,
		Satellites:         map[string]int{"GPS": numSV},
	}, true
}

// navPVTQuality derives fix quality in the order required by the
// variant-A protocol: carrier solution first, then fix type.
func navPVTQuality(fixType, carrSoln byte) fix.Quality {
	switch carrSoln {
	case 2:
		return fix.QualityRTKFixed
	case 1:
		return fix.QualityRTKFloat
	}
	switch fixType {
	case 2, 3, 4:
		return fix.QualityDifferential
	}
	return fix.QualityNone
}
