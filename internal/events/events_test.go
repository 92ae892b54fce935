package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"
)

func TestNewWithoutBrokersIsNop(t *testing.T) {
	pub := New(nil, "memeboard.events")
	if _, ok := pub.(Nop); !ok {
		t.Fatalf("New(nil) = %T, want Nop", pub)
	}
	if err := pub.Publish(context.Background(), Event{Type: MemeLiked}); err != nil {
		t.Fatalf("Nop.Publish: %v", err)
	}
	if err := pub.Close(); err != nil {
		t.Fatalf("Nop.Close: %v", err)
	}
}

func TestNewWithBrokersIsKafka(t *testing.T) {
	pub := New([]string{"127.0.0.1:1"}, "memeboard.events")
	defer pub.Close()
	if _, ok := pub.(*Kafka); !ok {
		t.Fatalf("New(brokers) = %T, want *Kafka", pub)
	}
}

func TestEncodeStampsTime(t *testing.T) {
	data, err := Encode(Event{Type: MessageSent, ActorID: "0xa", SubjectID: "0xa_0xb"})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}

	var decoded Event
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded.Type != MessageSent || decoded.SubjectID != "0xa_0xb" {
		t.Fatalf("unexpected event: %+v", decoded)
	}
	if time.Since(decoded.OccurredAt) > time.Minute {
		t.Fatalf("OccurredAt = %s, want now", decoded.OccurredAt)
	}

	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	data, _ = Encode(Event{Type: MemeUploaded, OccurredAt: fixed})
	json.Unmarshal(data, &decoded)
	if !decoded.OccurredAt.Equal(fixed) {
		t.Fatalf("OccurredAt = %s, want %s", decoded.OccurredAt, fixed)
	}
}
