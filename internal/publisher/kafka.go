package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/MarketMasterPlus/mm-shopping-cart/internal/domain"
	"github.com/segmentio/kafka-go"
)

const EventCartPurchased = "CartPurchased"

// KafkaPublisher emits cart lifecycle events keyed by cart id.
type KafkaPublisher struct {
	writer  *kafka.Writer
	timeout time.Duration
}

func NewKafkaPublisher(topic string, brokers ...string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		AllowAutoTopicCreation: true,
		WriteTimeout:           10 * time.Second,
	}
	return &KafkaPublisher{writer: w, timeout: 5 * time.Second}
}

func newWithWriter(w *kafka.Writer) *KafkaPublisher {
	return &KafkaPublisher{writer: w, timeout: 15 * time.Second}
}

func (p *KafkaPublisher) PublishCartPurchased(ctx context.Context, event domain.CartPurchasedEvent) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal cart purchased event: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(strconv.FormatInt(event.CartID, 10)), // cart id for ordering
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventCartPurchased)},
			{Key: "event_id", Value: []byte(event.EventID)},
		},
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish cart %d purchased: %w", event.CartID, err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NoopPublisher drops events; used when no brokers are configured.
type NoopPublisher struct{}

func (NoopPublisher) PublishCartPurchased(context.Context, domain.CartPurchasedEvent) error {
	return nil
}

func (NoopPublisher) Close() error { return nil }
