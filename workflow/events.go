package workflow

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"bitbucket.org/mmdatafocus/manufacturing_backend/config"
	"bitbucket.org/mmdatafocus/manufacturing_backend/models"
	"cloud.google.com/go/pubsub"
	"github.com/segmentio/kafka-go"
)

type ProductionEventType string

const (
	ProductionEventPlanned   ProductionEventType = "production.planned"
	ProductionEventStarted   ProductionEventType = "production.started"
	ProductionEventHeld      ProductionEventType = "production.held"
	ProductionEventResumed   ProductionEventType = "production.resumed"
	ProductionEventCompleted ProductionEventType = "production.completed"
	ProductionEventCancelled ProductionEventType = "production.cancelled"
)

// ProductionEvent is published after a production transition has been committed.
// Entries holds the ledger postings of the transition (completion only).
type ProductionEvent struct {
	Type          ProductionEventType       `json:"type"`
	ProductionId  int                       `json:"productionId"`
	RecipeId      int                       `json:"recipeId"`
	Status        models.ProductionStatus   `json:"status"`
	Entries       []models.StockLedgerEntry `json:"entries,omitempty"`
	OccurredAt    time.Time                 `json:"occurredAt"`
	CorrelationId string                    `json:"correlationId"`
}

type EventPublisher interface {
	Publish(ctx context.Context, event ProductionEvent) error
	Close() error
}

func newProductionEvent(eventType ProductionEventType, batch models.ProductionBatch, entries []models.StockLedgerEntry, at time.Time, correlationId string) ProductionEvent {
	return ProductionEvent{
		Type:          eventType,
		ProductionId:  batch.ID,
		RecipeId:      batch.RecipeId,
		Status:        batch.Status,
		Entries:       entries,
		OccurredAt:    at.UTC(),
		CorrelationId: correlationId,
	}
}

type NoopPublisher struct{}

func (NoopPublisher) Publish(ctx context.Context, event ProductionEvent) error { return nil }
func (NoopPublisher) Close() error                                           { return nil }

// PubSubPublisher publishes to the configured Pub/Sub topic and waits for the server ack.
type PubSubPublisher struct {
	client *pubsub.Client
	topic  *pubsub.Topic
}

func NewPubSubPublisher(ctx context.Context) (*PubSubPublisher, error) {
	client, err := config.GetPubSubClient(ctx)
	if err != nil {
		return nil, err
	}
	topic, err := config.CreateTopicIfNotExists(ctx, client, config.PubSubTopic())
	if err != nil {
		return nil, err
	}
	// events of one batch must stay in order
	topic.EnableMessageOrdering = true
	return &PubSubPublisher{client: client, topic: topic}, nil
}

func (p *PubSubPublisher) Publish(ctx context.Context, event ProductionEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	res := p.topic.Publish(ctx, &pubsub.Message{
		Data:        data,
		OrderingKey: strconv.Itoa(event.ProductionId),
		Attributes: map[string]string{
			"type":          string(event.Type),
			"correlationId": event.CorrelationId,
		},
	})
	if _, err := res.Get(ctx); err != nil {
		p.topic.ResumePublish(strconv.Itoa(event.ProductionId))
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

func (p *PubSubPublisher) Close() error {
	p.topic.Stop()
	return nil
}

type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher() (*KafkaPublisher, error) {
	writer, err := config.NewKafkaWriter()
	if err != nil {
		return nil, err
	}
	return &KafkaPublisher{writer: writer}, nil
}

func (p *KafkaPublisher) Publish(ctx context.Context, event ProductionEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return err
	}
	return p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(strconv.Itoa(event.ProductionId)),
		Value: data,
		Headers: []kafka.Header{
			{Key: "type", Value: []byte(event.Type)},
			{Key: "correlationId", Value: []byte(event.CorrelationId)},
		},
	})
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NewEventPublisher picks the publisher for EVENT_SINK.
func NewEventPublisher(ctx context.Context) (EventPublisher, error) {
	switch config.EventSink() {
	case config.EventSinkPubSub:
		return NewPubSubPublisher(ctx)
	case config.EventSinkKafka:
		return NewKafkaPublisher()
	case config.EventSinkNone, "":
		return NoopPublisher{}, nil
	default:
		return nil, fmt.Errorf("unsupported EVENT_SINK %q", config.EventSink())
	}
}
