// Package events publishes workflow stage changes to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/example/ev-rescue/internal/models"
	"github.com/example/ev-rescue/internal/workflow"
)

type Publisher interface {
	Publish(ctx context.Context, ev models.StageEvent) error
	Close() error
}

type KafkaPublisher struct {
	writer *kafka.Writer
}

func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	w := &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: 10 * time.Millisecond,
		Async:        true,
	}
	return &KafkaPublisher{writer: w}
}

// Publish keys messages by session so one session's events stay ordered.
func (k *KafkaPublisher) Publish(ctx context.Context, ev models.StageEvent) error {
	b, err := Encode(ev)
	if err != nil {
		return err
	}
	return k.writer.WriteMessages(ctx, kafka.Message{Key: []byte(ev.SessionID), Value: b})
}

func (k *KafkaPublisher) Close() error {
	if k.writer == nil {
		return nil
	}
	return k.writer.Close()
}

type NopPublisher struct{}

func (NopPublisher) Publish(ctx context.Context, ev models.StageEvent) error { return nil }
func (NopPublisher) Close() error                                            { return nil }

func Encode(ev models.StageEvent) ([]byte, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("encode stage event: %w", err)
	}
	return b, nil
}

func Decode(b []byte) (models.StageEvent, error) {
	var ev models.StageEvent
	if err := json.Unmarshal(b, &ev); err != nil {
		return ev, fmt.Errorf("decode stage event: %w", err)
	}
	if ev.SessionID == "" || ev.To == "" {
		return ev, fmt.Errorf("decode stage event: missing session_id or to")
	}
	return ev, nil
}

// FromUpdate returns the stage event carried by u, if any.
func FromUpdate(u workflow.Update) (models.StageEvent, bool) {
	tr := u.Transition
	if tr == nil {
		return models.StageEvent{}, false
	}
	return models.StageEvent{
		SessionID: u.Snapshot.SessionID,
		Role:      string(u.Snapshot.Role),
		From:      string(tr.From),
		To:        string(tr.To),
		Event:     string(tr.Event),
		At:        tr.At,
	}, true
}

// Listener publishes every transition. Failures are logged and dropped.
func Listener(p Publisher, log *zap.Logger) workflow.Listener {
	if log == nil {
		log = zap.NewNop()
	}
	return workflow.ListenerFunc(func(ctx context.Context, u workflow.Update) {
		ev, ok := FromUpdate(u)
		if !ok {
			return
		}
		ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := p.Publish(ctx, ev); err != nil {
			log.Warn("publish stage event failed", zap.String("session_id", ev.SessionID), zap.Error(err))
		}
	})
}
