package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// KindTransferReceived tells the target account it was credited.
	KindTransferReceived = "transfer_received"
	// KindDepositReceived tells an account an administrator credited it.
	KindDepositReceived = "deposit_received"

	channelPrefix = "ledgerd:notifications:"
)

// Message describes a notification payload.
type Message struct {
	Kind        string `json:"kind"`
	Destination string `json:"destination"`
	Body        string `json:"body"`
	TransferID  string `json:"transfer_id,omitempty"`
	Amount      uint32 `json:"amount,omitempty"`
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(_ context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.Info("notification",
		slog.String("kind", message.Kind),
		slog.String("destination", message.Destination),
		slog.String("body", message.Body),
		slog.String("transfer_id", message.TransferID),
	)
	return nil
}

// RedisNotifier publishes each message on the destination's channel,
// ledgerd:notifications:{destination}.
type RedisNotifier struct {
	rdb     *redis.Client
	timeout time.Duration
}

// NewRedisNotifier constructs a Redis pub/sub notifier.
func NewRedisNotifier(rdb *redis.Client, timeout time.Duration) *RedisNotifier {
	return &RedisNotifier{rdb: rdb, timeout: timeout}
}

// Channel names the pub/sub channel for a destination account.
func Channel(destination string) string {
	return channelPrefix + destination
}

// Send publishes the message as JSON.
func (n *RedisNotifier) Send(ctx context.Context, message Message) error {
	if message.Destination == "" {
		return fmt.Errorf("notification destination is required")
	}
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("encode notification: %w", err)
	}
	if n.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, n.timeout)
		defer cancel()
	}
	if err := n.rdb.Publish(ctx, Channel(message.Destination), payload).Err(); err != nil {
		return fmt.Errorf("publish notification: %w", err)
	}
	return nil
}
