// Package publish fans normalized fix updates out to local subscribers
// over buffered Go channels — the "streaming channel" downstream
// consumers read from, independent of whatever external transport (a
// REST poller, a WebSocket bridge) eventually relays an Envelope further.
package publish

import (
	"sync"

	"github.com/CNGdrive/CNG-RTK-HUB/internal/fix"
)

// MessageType identifies the shape of an Envelope's Payload.
type MessageType string

const (
	MessageTypePositionUpdate  MessageType = "position_update"
	MessageTypeNTRIPStatus     MessageType = "ntrip_status"
	MessageTypeNTRIPStatistics MessageType = "ntrip_statistics"
)

// Envelope is the wire-shaped message every publisher sink consumer
// receives: a type tag plus a type-specific payload.
type Envelope struct {
	Type    MessageType `json:"type"`
	Payload interface{} `json:"payload"`
}

// FixRecord is the JSON-facing projection of a fix.Fix, with the quality
// enum rendered as a string per the publisher sink contract.
type FixRecord struct {
	FixType            string         `json:"fix_type"`
	Latitude           float64        `json:"latitude"`
	Longitude          float64        `json:"longitude"`
	Height             float64        `json:"height"`
	HorizontalAccuracy float64        `json:"horizontal_accuracy"`
	PDOP               float64        `json:"pdop"`
	Satellites         map[string]int `json:"satellites,omitempty"`
	Baseline           float64        `json:"baseline"`
	CorrectionSource   string         `json:"correction_source,omitempty"`
}

// PositionPayload is the payload of a position_update Envelope.
type PositionPayload struct {
	ReceiverID string    `json:"receiver_id"`
	State      FixRecord `json:"state"`
	Timestamp  string    `json:"timestamp"`
}

// NewPositionUpdate builds the position_update Envelope for one
// receiver's fix.
func NewPositionUpdate(receiverID string, f fix.Fix) Envelope {
	return Envelope{
		Type: MessageTypePositionUpdate,
		Payload: PositionPayload{
			ReceiverID: receiverID,
			State: FixRecord{
				FixType:            string(f.Quality),
				Latitude:           f.Latitude,
				Longitude:          f.Longitude,
				Height:             f.Height,
				HorizontalAccuracy: f.HorizontalAccuracy,
				PDOP:               f.PDOP,
				Satellites:         f.Satellites,
				Baseline:           f.Baseline,
				CorrectionSource:   f.CorrectionSource,
			},
			Timestamp: f.TimestampString(),
		},
	}
}

const defaultSubscriberBuffer = 32

// Hub is a local fan-out point: every Publish call is relayed to every
// currently subscribed channel. A subscriber that falls behind has
// published envelopes dropped rather than ever blocking the publisher.
type Hub struct {
	mu   sync.Mutex
	subs map[chan Envelope]struct{}
}

// NewHub builds an empty hub.
func NewHub() *Hub {
	return &Hub{subs: make(map[chan Envelope]struct{})}
}

// Subscribe registers a new output channel and returns it along with an
// unsubscribe function that closes it. buffer <= 0 uses a small default.
func (h *Hub) Subscribe(buffer int) (<-chan Envelope, func()) {
	if buffer <= 0 {
		buffer = defaultSubscriberBuffer
	}
	ch := make(chan Envelope, buffer)

	h.mu.Lock()
	h.subs[ch] = struct{}{}
	h.mu.Unlock()

	unsubscribe := func() {
		h.mu.Lock()
		if _, ok := h.subs[ch]; ok {
			delete(h.subs, ch)
			close(ch)
		}
		h.mu.Unlock()
	}
	return ch, unsubscribe
}

// Publish relays e to every current subscriber.
func (h *Hub) Publish(e Envelope) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ch := range h.subs {
		select {
		case ch <- e:
		default:
		}
	}
}

// OnFix implements the aggregator package's FixSink contract by
// publishing a position_update envelope for every dispatched fix.
func (h *Hub) OnFix(receiverID string, f fix.Fix) error {
	h.Publish(NewPositionUpdate(receiverID, f))
	return nil
}
