// Package events publishes domain events (uploads, likes, follows, messages)
// for downstream consumers such as feed fan-out or analytics.
package events

import (
	"context"
	"encoding/json"
	"log"
	"time"

	kgo "github.com/segmentio/kafka-go"
)

const (
	MemeUploaded = "meme.uploaded"
	MemeLiked    = "meme.liked"
	MemeUnliked  = "meme.unliked"
	CommentAdded = "comment.added"
	UserFollowed = "user.followed"
	MessageSent  = "message.sent"
)

type Event struct {
	Type       string         `json:"type"`
	ActorID    string         `json:"actor_id,omitempty"`
	SubjectID  string         `json:"subject_id,omitempty"`
	Attributes map[string]any `json:"attributes,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
	Close() error
}

// Nop drops every event. It is used when no broker is configured.
type Nop struct{}

func (Nop) Publish(context.Context, Event) error { return nil }
func (Nop) Close() error                         { return nil }

// Kafka writes events as JSON to a single topic, keyed by subject so events
// about the same meme or conversation stay ordered within a partition.
type Kafka struct {
	w *kgo.Writer
}

func NewKafka(brokers []string, topic string) *Kafka {
	w := &kgo.Writer{
		Addr:                   kgo.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kgo.Hash{},
		RequiredAcks:           kgo.RequireOne,
		Async:                  true,
		BatchTimeout:           50 * time.Millisecond,
		AllowAutoTopicCreation: true,
		Completion: func(messages []kgo.Message, err error) {
			if err != nil {
				log.Printf("events: failed to deliver %d message(s): %v", len(messages), err)
			}
		},
	}
	return &Kafka{w: w}
}

// New returns a Kafka publisher when brokers are configured and Nop otherwise.
func New(brokers []string, topic string) Publisher {
	if len(brokers) == 0 {
		return Nop{}
	}
	log.Printf("events: publishing to kafka brokers=%v topic=%s", brokers, topic)
	return NewKafka(brokers, topic)
}

func (k *Kafka) Publish(ctx context.Context, e Event) error {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	b, err := Encode(e)
	if err != nil {
		return err
	}
	return k.w.WriteMessages(ctx, kgo.Message{Key: []byte(e.SubjectID), Value: b, Time: e.OccurredAt})
}

func (k *Kafka) Close() error { return k.w.Close() }

// Encode stamps OccurredAt when missing and marshals e.
func Encode(e Event) ([]byte, error) {
	if e.OccurredAt.IsZero() {
		e.OccurredAt = time.Now().UTC()
	}
	return json.Marshal(e)
}
