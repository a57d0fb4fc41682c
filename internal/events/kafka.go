package events

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/kamenolom/transport-service/internal/models"

	"github.com/IBM/sarama"
)

// envelope is the wire format published to Kafka.
type envelope struct {
	Event     models.EventType `json:"event"`
	Payload   interface{}      `json:"payload"`
	Timestamp time.Time        `json:"timestamp"`
}

// KafkaDispatcher publishes events to a single Kafka topic.
type KafkaDispatcher struct {
	producer sarama.SyncProducer
	topic    string
	logger   *log.Logger
}

// NewKafkaDispatcher connects a synchronous producer to the brokers.
func NewKafkaDispatcher(brokers []string, topic string, logger *log.Logger) (*KafkaDispatcher, error) {
	config := sarama.NewConfig()
	config.Producer.Return.Successes = true
	config.Producer.Timeout = 5 * time.Second
	prod, err := sarama.NewSyncProducer(brokers, config)
	if err != nil {
		return nil, err
	}
	return &KafkaDispatcher{producer: prod, topic: topic, logger: logger}, nil
}

// Publish sends the event envelope; failures are logged, not returned.
func (d *KafkaDispatcher) Publish(ctx context.Context, event models.EventType, payload interface{}) {
	data, err := json.Marshal(envelope{Event: event, Payload: payload, Timestamp: time.Now().UTC()})
	if err != nil {
		d.logger.Printf("events: failed to encode %s envelope: %v", event, err)
		return
	}
	msg := &sarama.ProducerMessage{
		Topic: d.topic,
		Key:   sarama.StringEncoder(event),
		Value: sarama.ByteEncoder(data),
	}
	if _, _, err := d.producer.SendMessage(msg); err != nil {
		d.logger.Printf("events: failed to send %s to topic %s: %v", event, d.topic, err)
	}
}

func (d *KafkaDispatcher) Close() error {
	return d.producer.Close()
}
