package service

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	rediscommon "github.com/zukhriddin2012/c-space-niya-sub004/common/redis"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/metrics"
	"github.com/zukhriddin2012/c-space-niya-sub004/internal/notify"
)

// RelayOptions name the consumer group position of one relay instance.
type RelayOptions struct {
	Stream        string
	ConsumerGroup string
	ConsumerName  string
	BatchSize     int64
	Block         time.Duration
}

// StreamRelay drains prompts queued by notify.StreamDispatcher and hands them
// to the outbound transport. Only delivered messages are acknowledged;
// failures stay pending and are retried from the consumer's backlog.
type StreamRelay struct {
	client  *redis.Client
	out     notify.Dispatcher
	opts    RelayOptions
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func NewStreamRelay(client *redis.Client, out notify.Dispatcher, opts RelayOptions, logger *zap.Logger, m *metrics.Metrics) *StreamRelay {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	if opts.Block <= 0 {
		opts.Block = 5 * time.Second
	}
	return &StreamRelay{client: client, out: out, opts: opts, logger: logger, metrics: m}
}

// Start consumes until ctx is done, backing off on read errors.
func (r *StreamRelay) Start(ctx context.Context) error {
	if err := rediscommon.CreateConsumerGroup(ctx, r.client, r.opts.Stream, r.opts.ConsumerGroup); err != nil {
		return err
	}
	r.logger.Info("Notify relay started",
		zap.String("stream", r.opts.Stream),
		zap.String("consumer_group", r.opts.ConsumerGroup),
		zap.String("consumer_name", r.opts.ConsumerName),
		zap.String("channel", r.out.Channel()),
	)

	backoff := time.Second
	maxBackoff := 30 * time.Second
	for {
		select {
		case <-ctx.Done():
			return nil
		default:
		}

		if _, err := r.RelayOnce(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.logger.Error("Failed to relay prompts", zap.Error(err), zap.Duration("backoff", backoff))
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			continue
		}
		backoff = time.Second
	}
}

// RelayOnce retries this consumer's unacknowledged backlog, then reads one
// batch of new messages. It returns how many prompts were delivered.
func (r *StreamRelay) RelayOnce(ctx context.Context) (int, error) {
	pending, err := rediscommon.ReadPendingFromStream(ctx, r.client, r.opts.Stream, r.opts.ConsumerGroup, r.opts.ConsumerName, r.opts.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("failed to read pending prompts: %w", err)
	}
	delivered := r.relay(ctx, pending)
	if len(pending) > 0 && delivered == 0 {
		// transport still down; do not pile new messages onto the backlog
		return 0, fmt.Errorf("%d pending prompts undeliverable", len(pending))
	}

	fresh, err := rediscommon.ReadFromStream(ctx, r.client, r.opts.Stream, r.opts.ConsumerGroup, r.opts.ConsumerName, r.opts.BatchSize, r.opts.Block)
	if err != nil {
		return delivered, fmt.Errorf("failed to read from stream: %w", err)
	}
	return delivered + r.relay(ctx, fresh), nil
}

func (r *StreamRelay) relay(ctx context.Context, msgs []rediscommon.StreamMessage) int {
	delivered := 0
	for _, msg := range msgs {
		if len(msg.Values) == 0 {
			// trimmed from the stream while pending
			r.ack(ctx, msg.ID)
			continue
		}
		payload, err := notify.DecodeStreamPayload(msg)
		if err != nil {
			r.logger.Error("Dropping malformed prompt message", zap.String("stream_id", msg.ID), zap.Error(err))
			r.ack(ctx, msg.ID)
			continue
		}
		err = r.out.Dispatch(ctx, payload)
		r.metrics.RecordDispatch(r.out.Channel(), err)
		if err != nil {
			r.logger.Error("Checkout prompt dispatch failed",
				zap.String("stream_id", msg.ID),
				zap.String("reminder_id", payload.ReminderID),
				zap.String("worker_handle", payload.WorkerHandle),
				zap.String("channel", r.out.Channel()),
				zap.Error(err),
			)
			continue
		}
		r.ack(ctx, msg.ID)
		delivered++
	}
	return delivered
}

func (r *StreamRelay) ack(ctx context.Context, id string) {
	if err := rediscommon.AckStream(ctx, r.client, r.opts.Stream, r.opts.ConsumerGroup, id); err != nil {
		r.logger.Warn("Failed to ack prompt message", zap.String("stream_id", id), zap.Error(err))
	}
}
