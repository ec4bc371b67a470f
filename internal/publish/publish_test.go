package publish

import (
	"testing"
	"time"

	"github.com/CNGdrive/CNG-RTK-HUB/internal/fix"
)

func TestHubPublishDeliversToSubscriber(t *testing.T) {
	h := NewHub()
	ch, unsubscribe := h.Subscribe(4)
	defer unsubscribe()

	f := fix.Fix{Quality: fix.QualityRTKFixed, Latitude: 1.5, Longitude: 2.5}
	if err := h.OnFix("r1", f); err != nil {
		t.Fatalf("OnFix returned an error: %v", err)
	}

	select {
	case env := <-ch:
		payload, ok := env.Payload.(PositionPayload)
		if !ok {
			t.Fatalf("payload type = %T, want PositionPayload", env.Payload)
		}
		if payload.ReceiverID != "r1" {
			t.Errorf("ReceiverID = %q, want r1", payload.ReceiverID)
		}
		if payload.State.FixType != string(fix.QualityRTKFixed) {
			t.Errorf("FixType = %q, want %q", payload.State.FixType, fix.QualityRTKFixed)
		}
		if env.Type != MessageTypePositionUpdate {
			t.Errorf("Type = %q, want %q", env.Type, MessageTypePositionUpdate)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for published envelope")
	}
}

func TestHubUnsubscribeStopsDelivery(t *testing.T) {
	h := NewHub()
	ch, unsubscribe := h.Subscribe(4)
	unsubscribe()

	h.Publish(Envelope{Type: MessageTypeNTRIPStatus, Payload: nil})

	if _, ok := <-ch; ok {
		t.Fatal("expected channel to be closed after unsubscribe")
	}
}

func TestHubDropsOnFullBuffer(t *testing.T) {
	h := NewHub()
	ch, unsubscribe := h.Subscribe(1)
	defer unsubscribe()

	h.Publish(Envelope{Type: MessageTypeNTRIPStatus})
	h.Publish(Envelope{Type: MessageTypeNTRIPStatistics}) // dropped, buffer full

	first := <-ch
	if first.Type != MessageTypeNTRIPStatus {
		t.Errorf("first received type = %q, want %q", first.Type, MessageTypeNTRIPStatus)
	}
	select {
	case <-ch:
		t.Fatal("expected no second envelope; it should have been dropped")
	case <-time.After(50 * time.Millisecond):
	}
}
