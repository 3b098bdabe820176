package natsadapter

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/geoagg/internal/core/domain"
)

// Subscriber implements ports.EventSubscriber using NATS JetStream.
type Subscriber struct {
	conn *nats.Conn
	js   nats.JetStreamContext
	subs []*nats.Subscription
}

// NewSubscriber creates a subscriber with its own NATS connection.
func NewSubscriber(url string) (*Subscriber, error) {
	conn, err := connect(url, "geoagg-subscriber")
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}
	js, err := conn.JetStream()
	if err != nil {
		conn.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}
	if err := ensureStreams(js); err != nil {
		conn.Close()
		return nil, err
	}
	return &Subscriber{conn: conn, js: js}, nil
}

// SubscribeAggregationRequests delivers queued requests to handler. Malformed
// payloads are terminated. Handler errors are retried with a growing delay
// up to maxDeliver attempts.
func (s *Subscriber) SubscribeAggregationRequests(ctx context.Context, handler func(ctx context.Context, req *domain.AggregationRequest) error) error {
	sub, err := s.js.QueueSubscribe(SubjectRequests, "aggregators", func(msg *nats.Msg) {
		req, err := decodeRequest(msg)
		if err != nil {
			slog.Warn("dropping malformed aggregation request", "error", err)
			_ = msg.Term()
			return
		}
		if err := handler(ctx, req); err != nil {
			attempt := deliveries(msg)
			slog.Error("aggregation request failed",
				"request_id", req.RequestID,
				"attempt", attempt,
				"error", err,
			)
			_ = msg.NakWithDelay(redeliveryDelay(attempt))
			return
		}
		_ = msg.Ack()
	},
		nats.Durable("aggregation-worker"),
		nats.ManualAck(),
		nats.MaxDeliver(maxDeliver),
		nats.AckWait(time.Minute),
	)
	if err != nil {
		return err
	}
	s.subs = append(s.subs, sub)
	return nil
}

const maxDeliver = 3

// deliveries returns how often msg has been delivered, 1 on the first try.
func deliveries(msg *nats.Msg) uint64 {
	meta, err := msg.Metadata()
	if err != nil {
		return 1
	}
	return meta.NumDelivered
}

// redeliveryDelay backs off 5s, 10s, 20s and so on, capped at one minute.
func redeliveryDelay(attempt uint64) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := 5 * time.Second << (attempt - 1)
	if d > time.Minute || d <= 0 {
		return time.Minute
	}
	return d
}

// Close unsubscribes and drains.
func (s *Subscriber) Close() {
	for _, sub := range s.subs {
		_ = sub.Unsubscribe()
	}
	_ = s.conn.Drain()
}
