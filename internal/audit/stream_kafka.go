package audit

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/twmb/franz-go/pkg/kgo"
)

// KafkaStream publishes audit entries to a Kafka topic for SIEM consumption.
// The durable Postgres store remains the source of truth; this sink exists so
// security tooling sees terminal pipeline outcomes without polling the table.
type KafkaStream struct {
	client *kgo.Client
	topic  string
}

func NewKafkaStream(brokers []string, topic string) (*KafkaStream, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.ProduceRequestTimeout(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("create kafka client: %w", err)
	}
	return &KafkaStream{client: client, topic: topic}, nil
}

type streamPayload struct {
	ID           string         `json:"id"`
	Actor        string         `json:"actor"`
	Action       string         `json:"action"`
	ResourceType string         `json:"resource_type,omitempty"`
	ResourceID   string         `json:"resource_id,omitempty"`
	Success      bool           `json:"success"`
	Metadata     map[string]any `json:"metadata,omitempty"`
	Timestamp    string         `json:"timestamp"`
}

func (s *KafkaStream) Publish(ctx context.Context, entry Entry) error {
	payload, err := json.Marshal(streamPayload{
		ID:           entry.ID,
		Actor:        entry.Actor,
		Action:       entry.Action,
		ResourceType: entry.ResourceType,
		ResourceID:   entry.ResourceID,
		Success:      entry.Success,
		Metadata:     entry.Metadata,
		Timestamp:    entry.CreatedAt.Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal audit stream payload: %w", err)
	}
	record := &kgo.Record{
		Topic: s.topic,
		Key:   []byte(entry.Actor),
		Value: payload,
	}
	return s.client.ProduceSync(ctx, record).FirstErr()
}

func (s *KafkaStream) Close() {
	s.client.Close()
}
