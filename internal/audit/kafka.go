package audit

import (
	"context"
	"time"

	k "github.com/segmentio/kafka-go"
)

// KafkaPublisher writes audit events to a topic keyed by class id, so one
// class's history stays ordered within a partition.
type KafkaPublisher struct {
	w *k.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	w := &k.Writer{
		Addr:         k.TCP(brokers...),
		Topic:        topic,
		Balancer:     &k.Hash{},
		BatchTimeout: 50 * time.Millisecond,
		RequiredAcks: k.RequireOne,
		Async:        true,
	}
	return &KafkaPublisher{w: w}
}

func (p *KafkaPublisher) Close() error { return p.w.Close() }

func (p *KafkaPublisher) Publish(ctx context.Context, e Event) error {
	value, err := encode(e)
	if err != nil {
		return err
	}
	return p.w.WriteMessages(ctx, k.Message{
		Key:   []byte(e.ClassID),
		Value: value,
		Time:  time.Now(),
	})
}
