package kafka

import (
	"context"
	"encoding/json"

	"github.com/BearBump/OrderBox/internal/broker/messages"
	"github.com/pkg/errors"
	"github.com/segmentio/kafka-go"
)

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
}

type Producer struct {
	w messageWriter
}

func NewProducer(brokers []string) *Producer {
	return newProducerWithWriter(&kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Balancer:               &kafka.Hash{},
		AllowAutoTopicCreation: true,
	})
}

func newProducerWithWriter(w messageWriter) *Producer {
	return &Producer{w: w}
}

func (p *Producer) Publish(ctx context.Context, topic string, key, value []byte) error {
	if err := p.w.WriteMessages(ctx, kafka.Message{
		Topic: topic,
		Key:   key,
		Value: value,
	}); err != nil {
		return errors.Wrap(err, "kafka publish")
	}
	return nil
}

func (p *Producer) Close() error {
	if c, ok := p.w.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}

// LifecyclePublisher пишет события жизненного цикла заказа, ключ = order id,
// чтобы события одного заказа попадали в одну партицию.
type LifecyclePublisher struct {
	p     *Producer
	topic string
}

func NewLifecyclePublisher(p *Producer, topic string) *LifecyclePublisher {
	return &LifecyclePublisher{p: p, topic: topic}
}

func (lp *LifecyclePublisher) PublishLifecycle(ctx context.Context, ev messages.OrderLifecycle) error {
	b, err := json.Marshal(ev)
	if err != nil {
		return errors.Wrap(err, "marshal lifecycle event")
	}
	return lp.p.Publish(ctx, lp.topic, []byte(ev.OrderID), b)
}
