package frame

import "testing"

func buildRTCMFrame(payload []byte) []byte {
	header := []byte{
		rtcmPreamble,
		byte((len(payload) >> 8) & 0x03),
		byte(len(payload) & 0xFF),
	}
	body := append(append([]byte{}, header...), payload...)
	crc := CRC24Q(body)
	frame := append(body, byte(crc>>16), byte(crc>>8), byte(crc))
	return frame
}

func TestCRC24QKnownFrame(t *testing.T) {
	payload := make([]byte, 19)
	for i := range payload {
		payload[i] = byte(i * 7)
	}
	frame := buildRTCMFrame(payload)
	// 3-byte header + 19-byte payload (0xD3 0x00 0x13) + 3-byte CRC.
	if len(frame) != 25 {
		t.Fatalf("built frame length = %d, want 25", len(frame))
	}

	e := &RTCMExtractor{}
	frames := e.Feed(frame)
	if len(frames) != 1 {
		t.Fatalf("expected 1 frame, got %d", len(frames))
	}
	if len(frames[0]) != 25 {
		t.Errorf("frame length = %d, want 25", len(frames[0]))
	}
}

func TestRTCMExtractorIncrementalEqualsOneShot(t *testing.T) {
	frame := buildRTCMFrame(make([]byte, 19))

	oneShot := &RTCMExtractor{}
	oneShotFrames := oneShot.Feed(frame)

	incremental := &RTCMExtractor{}
	var incrementalFrames [][]byte
	for i := 0; i < len(frame); i++ {
		incrementalFrames = append(incrementalFrames, incremental.Feed(frame[i:i+1])...)
	}

	if len(oneShotFrames) != 1 || len(incrementalFrames) != 1 {
		t.Fatalf("expected 1 frame each, got oneShot=%d incremental=%d", len(oneShotFrames), len(incrementalFrames))
	}
	if string(oneShotFrames[0]) != string(incrementalFrames[0]) {
		t.Errorf("incremental feed produced a different frame than one-shot feed")
	}
}

func TestRTCMExtractorCorruptedPayloadDropped(t *testing.T) {
	frame := buildRTCMFrame(make([]byte, 19))
	frame[10] ^= 0xFF // flip a payload byte, CRC no longer matches

	e := &RTCMExtractor{}
	frames := e.Feed(frame)
	if len(frames) != 0 {
		t.Errorf("expected 0 frames after corruption, got %d", len(frames))
	}
	if e.Dropped == 0 {
		t.Errorf("expected Dropped counter to advance")
	}
}

func TestRTCMExtractorRescansAfterBadPreamble(t *testing.T) {
	good := buildRTCMFrame(make([]byte, 5))
	noise := []byte{0x00, 0x11, 0x22} // non-preamble bytes to be discarded one at a time
	input := append(append([]byte{}, noise...), good...)

	e := &RTCMExtractor{}
	var frames [][]byte
	for i := 0; i < len(input); i++ {
		frames = append(frames, e.Feed(input[i:i+1])...)
	}
	if len(frames) != 1 {
		t.Fatalf("expected to recover the trailing good frame, got %d frames", len(frames))
	}
}

func TestRTCMExtractorBoundary(t *testing.T) {
	frame := buildRTCMFrame(make([]byte, 5))

	e := &RTCMExtractor{}
	frames := e.Feed(frame)
	if len(frames) != 1 {
		t.Fatalf("expected exactly one frame at boundary, got %d", len(frames))
	}
	if len(e.buf) != 0 {
		t.Errorf("expected empty buffer after exact boundary feed, got %d bytes", len(e.buf))
	}

	e2 := &RTCMExtractor{}
	short := frame[:len(frame)-1]
	frames2 := e2.Feed(short)
	if len(frames2) != 0 {
		t.Errorf("expected no frames when one byte short, got %d", len(frames2))
	}
}
