package config

import (
	"errors"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// NewKafkaWriter builds a writer for KAFKA_BROKERS (comma separated) and KAFKA_TOPIC.
// Messages are keyed by production id, so the hash balancer keeps one batch on one partition.
func NewKafkaWriter() (*kafka.Writer, error) {
	raw := strings.TrimSpace(stringFromEnv("KAFKA_BROKERS", ""))
	if raw == "" {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	var brokers []string
	for _, b := range strings.Split(raw, ",") {
		if b = strings.TrimSpace(b); b != "" {
			brokers = append(brokers, b)
		}
	}
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  stringFromEnv("KAFKA_TOPIC", "manufacturing-events"),
		Balancer:               &kafka.Hash{},
		RequiredAcks:           kafka.RequireAll,
		WriteTimeout:           10 * time.Second,
		AllowAutoTopicCreation: true,
	}, nil
}
