package chatws

import (
	"encoding/json"
	"testing"
)

func TestRelayDeliversFramesFromOtherInstances(t *testing.T) {
	registry := NewRegistry(2, 4, nil)
	client := registry.NewClient(nil, "42", "parent")
	registry.Register(client)
	bridge := newRedisBridge(nil, registry, nil)

	frame, err := json.Marshal(bridgeFrame{Origin: "other-instance", Payload: json.RawMessage(`{"type":"notification"}`)})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	bridge.relay(bridgeChannelPrefix+"42", string(frame))

	select {
	case payload := <-client.send:
		if string(payload) != `{"type":"notification"}` {
			t.Fatalf("unexpected payload %s", payload)
		}
	default:
		t.Fatalf("expected relayed frame to be delivered")
	}
}

func TestRelaySkipsOwnFramesAndGarbage(t *testing.T) {
	registry := NewRegistry(2, 4, nil)
	client := registry.NewClient(nil, "42", "parent")
	registry.Register(client)
	bridge := newRedisBridge(nil, registry, nil)

	own, err := json.Marshal(bridgeFrame{Origin: bridge.origin, Payload: json.RawMessage(`{}`)})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	bridge.relay(bridgeChannelPrefix+"42", string(own))
	bridge.relay(bridgeChannelPrefix+"42", "not json")

	if len(client.send) != 0 {
		t.Fatalf("expected no deliveries, got %d", len(client.send))
	}
}
