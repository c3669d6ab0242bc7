// internal/messaging/kafka.go
package messaging

import (
	"context"
	"encoding/json"
	"time"

	"github.com/segmentio/kafka-go"

	"github.com/yusukekikuta0509/projectKAIKA/internal/models"
	"github.com/yusukekikuta0509/projectKAIKA/internal/utils"
)

// MessageWriter is the part of *kafka.Writer the sink uses.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaSink mirrors session events onto a topic, keyed by session so one
// session's events stay ordered within a partition.
type KafkaSink struct {
	writer  MessageWriter
	topic   string
	timeout time.Duration
	logger  *utils.Logger
}

// NewWriter builds an async writer; delivery errors are logged, never returned to publishers.
func NewWriter(brokers []string, topic string, logger *utils.Logger) *kafka.Writer {
	if logger == nil {
		logger = utils.GetLogger()
	}
	return &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireOne,
		Async:        true,
		BatchTimeout: 50 * time.Millisecond,
		ErrorLogger:  kafka.LoggerFunc(logger.Zap().Sugar().Errorf),
		Completion: func(messages []kafka.Message, err error) {
			if err != nil {
				logger.Warn("kafka delivery failed", map[string]interface{}{
					"topic":    topic,
					"messages": len(messages),
					"error":    err.Error(),
				})
			}
		},
	}
}

func NewKafkaSink(writer MessageWriter, topic string, logger *utils.Logger) *KafkaSink {
	if logger == nil {
		logger = utils.GetLogger()
	}
	return &KafkaSink{
		writer:  writer,
		topic:   topic,
		timeout: time.Second,
		logger:  logger,
	}
}

// Publish encodes evt and hands it to the writer.
func (k *KafkaSink) Publish(evt models.Event) {
	msg, err := EncodeEvent(evt)
	if err != nil {
		k.logger.Warn("event not encodable", map[string]interface{}{
			"type":  string(evt.Type),
			"error": err.Error(),
		})
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), k.timeout)
	defer cancel()
	if err := k.writer.WriteMessages(ctx, msg); err != nil {
		k.logger.Warn("kafka publish failed", map[string]interface{}{
			"topic":      k.topic,
			"session_id": evt.SessionID,
			"error":      err.Error(),
		})
	}
}

func (k *KafkaSink) Close() error {
	return k.writer.Close()
}

// EncodeEvent builds the record for evt: key is the session id, value the JSON event.
func EncodeEvent(evt models.Event) (kafka.Message, error) {
	value, err := json.Marshal(evt)
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(evt.SessionID),
		Value: value,
		Time:  evt.Timestamp,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(evt.Type)},
		},
	}, nil
}
