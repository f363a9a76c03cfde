package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/kefkio/bloc-sacco/internal/domain/event"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher writes outbox rows to one topic, keyed by loan so that a
// loan's events stay ordered within a partition.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
}

func NewKafkaPublisher(brokers []string, topic string) (*KafkaPublisher, error) {
	if len(brokers) == 0 {
		return nil, fmt.Errorf("kafka publisher requires at least one broker")
	}
	if topic == "" {
		return nil, fmt.Errorf("kafka publisher requires a topic")
	}
	return &KafkaPublisher{
		writer: &kafka.Writer{
			Addr:         kafka.TCP(brokers...),
			Topic:        topic,
			RequiredAcks: kafka.RequireAll,
			Balancer:     &kafka.Hash{},
		},
		topic: topic,
	}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, e event.Outbox) error {
	value, err := json.Marshal(envelope(e))
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(partitionKey(e)),
		Value: value,
		Time:  e.CreatedAt,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(e.Type)},
			{Key: "event_id", Value: []byte(e.EventID)},
		},
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// Envelope is the published shape of an outbox row.
type Envelope struct {
	EventID   string          `json:"event_id"`
	Type      event.Type      `json:"type"`
	LoanID    uint64          `json:"loan_id,omitempty"`
	Subject   string          `json:"subject,omitempty"`
	Amount    int64           `json:"amount,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	CreatedAt string          `json:"created_at"`
}

func envelope(e event.Outbox) Envelope {
	env := Envelope{
		EventID:   e.EventID,
		Type:      e.Type,
		LoanID:    e.LoanID,
		Subject:   e.Subject,
		Amount:    e.Amount,
		CreatedAt: e.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	if e.Payload != "" {
		env.Payload = json.RawMessage(e.Payload)
	}
	return env
}

// member events have no loan; they partition by subject instead
func partitionKey(e event.Outbox) string {
	if e.LoanID != 0 {
		return "loan:" + strconv.FormatUint(e.LoanID, 10)
	}
	return e.Subject
}

var _ event.Publisher = (*KafkaPublisher)(nil)
