package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"storefront/internal/telemetry"
	"storefront/internal/usecase"

	"github.com/segmentio/kafka-go"
)

const (
	TypeOrderCreated       = "order.created"
	TypeCompensationFailed = "order.compensation_failed"
)

// kafka.Writer のうち使う部分だけ（テストで差し替える）
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Envelope はトピックに流す1件のイベント。
type Envelope struct {
	Type       string          `json:"type"`
	OrderID    string          `json:"order_id"`
	UserID     string          `json:"user_id"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload,omitempty"`
	Error      string          `json:"error,omitempty"`
}

// KafkaOrderEvents は注文イベントをKafkaへ送る。keyはorder_id。
type KafkaOrderEvents struct {
	w   messageWriter
	now func() time.Time
}

// 1件ずつ同期で書くので、バッチ待ち（デフォルト1s）は短くする
const (
	writerBatchTimeout = 5 * time.Millisecond
	writerWriteTimeout = 2 * time.Second
	writerMaxAttempts  = 3
)

func NewKafkaOrderEvents(brokers []string, topic string) *KafkaOrderEvents {
	return newKafkaOrderEvents(newWriter(brokers, topic))
}

func newWriter(brokers []string, topic string) *kafka.Writer {
	return &kafka.Writer{
		Addr:                   kafka.TCP(brokers...),
		Topic:                  topic,
		Balancer:               &kafka.LeastBytes{},
		RequiredAcks:           kafka.RequireAll,
		AllowAutoTopicCreation: true,
		BatchSize:              1,
		BatchTimeout:           writerBatchTimeout,
		WriteTimeout:           writerWriteTimeout,
		MaxAttempts:            writerMaxAttempts,
	}
}

func newKafkaOrderEvents(w messageWriter) *KafkaOrderEvents {
	return &KafkaOrderEvents{w: w, now: time.Now}
}

func (k *KafkaOrderEvents) OrderCreated(ctx context.Context, out usecase.OrderOutput) error {
	payload, err := json.Marshal(out)
	if err != nil {
		return fmt.Errorf("kafka: marshal order failed: %w", err)
	}
	return k.publish(ctx, Envelope{
		Type:    TypeOrderCreated,
		OrderID: out.ID,
		UserID:  out.UserID,
		Payload: payload,
	})
}

// CompensationFailed は明細なしで残ったpending注文の通知（アラート用）。
func (k *KafkaOrderEvents) CompensationFailed(ctx context.Context, orderID string, userID string, cause error) error {
	msg := ""
	if cause != nil {
		msg = cause.Error()
	}
	return k.publish(ctx, Envelope{
		Type:    TypeCompensationFailed,
		OrderID: orderID,
		UserID:  userID,
		Error:   msg,
	})
}

func (k *KafkaOrderEvents) Close() error {
	return k.w.Close()
}

func (k *KafkaOrderEvents) publish(ctx context.Context, env Envelope) error {
	env.OccurredAt = k.now().UTC()

	value, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("kafka: marshal event failed: %w", err)
	}

	headers := []kafka.Header{{Key: "event_type", Value: []byte(env.Type)}}
	headers = telemetry.InjectKafkaHeaders(ctx, headers)

	if err := k.w.WriteMessages(ctx, kafka.Message{
		Key:     []byte(env.OrderID),
		Value:   value,
		Headers: headers,
	}); err != nil {
		return fmt.Errorf("kafka: write %s failed: %w", env.Type, err)
	}
	return nil
}
