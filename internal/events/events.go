// Package events publikuje wyniki przebiegów synchronizacji na Kafkę.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/bartek5186/woo2mag/internal/db"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"
)

const TypeRunFinished = "inventory.sync.finished"

type Publisher interface {
	PublishRunFinished(ctx context.Context, e db.SyncLogEntry) error
	Close() error
}

type Event struct {
	Type      string          `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      db.SyncLogEntry `json:"data"`
}

// Nop - gdy brak brokerów w configu
type Nop struct{}

func (Nop) PublishRunFinished(context.Context, db.SyncLogEntry) error { return nil }
func (Nop) Close() error { return nil }

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type KafkaPublisher struct {
	log    zerolog.Logger
	writer messageWriter
}

func NewKafka(log zerolog.Logger, brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		log: log,
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafka.LeastBytes{},
			RequiredAcks:           kafka.RequireOne,
			WriteTimeout:           10 * time.Second,
			AllowAutoTopicCreation: true,
		},
	}
}

// New wybiera Kafkę albo Nop
func New(log zerolog.Logger, brokers []string, topic string) Publisher {
	if len(brokers) == 0 {
		return Nop{}
	}
	if topic == "" {
		topic = "inventory-sync"
	}
	log.Info().Strs("brokers", brokers).Str("topic", topic).Msg("events: kafka publisher")
	return NewKafka(log, brokers, topic)
}

func (p *KafkaPublisher) PublishRunFinished(ctx context.Context, e db.SyncLogEntry) error {
	payload, err := json.Marshal(Event{Type: TypeRunFinished, Timestamp: time.Now().UTC(), Data: e})
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, kafka.Message{Key: []byte(e.RunID), Value: payload}); err != nil {
		return fmt.Errorf("kafka publish: %w", err)
	}
	p.log.Debug().Str("run_id", e.RunID).Str("status", e.Status).Msg("run event published")
	return nil
}

func (p *KafkaPublisher) Close() error { return p.writer.Close() }
