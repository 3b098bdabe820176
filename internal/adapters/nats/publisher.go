package natsadapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/geoagg/internal/core/domain"
)

// Publisher implements ports.EventPublisher using NATS JetStream.
type Publisher struct {
	conn *nats.Conn
	js   nats.JetStreamContext
}

// streams lists the JetStream streams the adapter relies on. Requests are a
// work queue deduplicated by request ID; domain events are kept for a day so
// late subscribers can catch up.
func streams() []nats.StreamConfig {
	return []nats.StreamConfig{
		{
			Name:       streamRequests,
			Subjects:   []string{SubjectRequests},
			Retention:  nats.WorkQueuePolicy,
			MaxAge:     24 * time.Hour,
			Storage:    nats.FileStorage,
			Duplicates: 10 * time.Minute,
		},
		{
			Name:      streamDomains,
			Subjects:  []string{SubjectDomainCompleted},
			Retention: nats.LimitsPolicy,
			MaxAge:    24 * time.Hour,
			MaxMsgs:   100_000,
			Discard:   nats.DiscardOld,
			Storage:   nats.FileStorage,
		},
	}
}

// ensureStreams creates missing streams and updates existing ones.
func ensureStreams(js nats.JetStreamContext) error {
	for _, cfg := range streams() {
		cfg := cfg
		_, err := js.StreamInfo(cfg.Name)
		switch {
		case errors.Is(err, nats.ErrStreamNotFound):
			_, err = js.AddStream(&cfg)
		case err == nil:
			_, err = js.UpdateStream(&cfg)
		}
		if err != nil {
			return fmt.Errorf("ensure stream %s: %w", cfg.Name, err)
		}
	}
	return nil
}

// NewPublisher connects to NATS and makes sure the streams exist.
func NewPublisher(url string) (*Publisher, error) {
	conn, err := connect(url, "geoagg-publisher")
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
	return &Publisher{conn: conn, js: js}, nil
}

// PublishDomainCompleted announces a stored domain.
func (p *Publisher) PublishDomainCompleted(ctx context.Context, s *domain.Summary) error {
	data, err := EncodeSummary(s)
	if err != nil {
		return err
	}
	msg := nats.NewMsg(SubjectDomainCompleted)
	msg.Header.Set(headerContentType, contentTypeProtobuf)
	msg.Header.Set(nats.MsgIdHdr, s.ID)
	msg.Data = data
	_, err = p.js.PublishMsg(msg, nats.Context(ctx))
	return err
}

// PublishAggregationRequest queues a run for the worker. Requests with the
// same RequestID are deduplicated by the stream.
func (p *Publisher) PublishAggregationRequest(ctx context.Context, req *domain.AggregationRequest) error {
	msg, err := requestMsg(SubjectRequests, req)
	if err != nil {
		return err
	}
	_, err = p.js.PublishMsg(msg, nats.Context(ctx))
	return err
}

// Conn exposes the underlying connection for readiness checks and the
// WebSocket relay.
func (p *Publisher) Conn() *nats.Conn { return p.conn }

// Close drains and closes the connection.
func (p *Publisher) Close() {
	_ = p.conn.Drain()
}

func connect(url, name string) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name(name),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				slog.Warn("nats disconnected", "connection", name, "error", err)
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			slog.Info("nats reconnected", "connection", name, "url", nc.ConnectedUrl())
		}),
	)
}
