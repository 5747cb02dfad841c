package hermes

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
)

// ErrStreamUnavailable means a retained event could not be published
// because the RISK_EVENTS stream does not exist and could not be created.
var ErrStreamUnavailable = errors.New("event stream unavailable")

const defaultPublishTimeout = 5 * time.Second

// Client is the event bus used by the service. Published payloads are JSON.
type Client interface {
	Publish(subject string, data interface{}) error
	Subscribe(subject string, handler func(subject string, data []byte)) error
	Close()
}

// coreConn is the slice of *nats.Conn the client uses.
type coreConn interface {
	Publish(subject string, data []byte) error
	Subscribe(subject string, cb nats.MsgHandler) (*nats.Subscription, error)
	Close()
}

// streamAPI is the slice of jetstream.JetStream the client uses.
type streamAPI interface {
	CreateOrUpdateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
	Publish(ctx context.Context, subject string, payload []byte, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// NATSClient publishes evaluation and population events. Subjects the
// stream retains go through JetStream and wait for the stream's ack; live
// broadcasts such as cache invalidation use core NATS.
type NATSClient struct {
	conn           coreConn
	js             streamAPI
	publishTimeout time.Duration
	logger         *slog.Logger

	mu          sync.Mutex
	streamReady bool
	subs        []*nats.Subscription
}

func NewNATSClient(ctx context.Context, url string, logger *slog.Logger) (*NATSClient, error) {
	nc, err := nats.Connect(url,
		nats.Name("riskscore"),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	js, err := jetstream.New(nc)
	if err != nil {
		nc.Close()
		return nil, fmt.Errorf("jetstream: %w", err)
	}

	c := newClient(nc, js, logger)
	if err := c.ensureStream(ctx); err != nil {
		// Retried on the next retained publish.
		logger.Warn("failed to ensure stream", "stream", StreamName, "error", err)
	}
	return c, nil
}

func newClient(conn coreConn, js streamAPI, logger *slog.Logger) *NATSClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &NATSClient{
		conn:           conn,
		js:             js,
		publishTimeout: defaultPublishTimeout,
		logger:         logger,
	}
}

// ensureStream creates or updates RISK_EVENTS once per client. A failure
// leaves the stream marked missing so the next call retries.
func (c *NATSClient) ensureStream(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.streamReady {
		return nil
	}

	maxAge, _ := time.ParseDuration(StreamMaxAge)
	_, err := c.js.CreateOrUpdateStream(ctx, jetstream.StreamConfig{
		Name:     StreamName,
		Subjects: StreamSubjects,
		MaxAge:   maxAge,
	})
	if err != nil {
		return err
	}
	c.streamReady = true
	c.logger.Debug("stream ready", "stream", StreamName)
	return nil
}

func (c *NATSClient) markStreamStale() {
	c.mu.Lock()
	c.streamReady = false
	c.mu.Unlock()
}

// Publish sends data as JSON. For retained subjects a missing stream is
// reported as ErrStreamUnavailable and nothing is sent.
func (c *NATSClient) Publish(subject string, data interface{}) error {
	payload, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal %s: %w", subject, err)
	}
	if !Retained(subject) {
		return c.conn.Publish(subject, payload)
	}

	ctx, cancel := context.WithTimeout(context.Background(), c.publishTimeout)
	defer cancel()
	if err := c.ensureStream(ctx); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrStreamUnavailable, subject, err)
	}
	if _, err := c.js.Publish(ctx, subject, payload); err != nil {
		// The stream may have been deleted underneath us.
		c.markStreamStale()
		return fmt.Errorf("publish %s: %w", subject, err)
	}
	return nil
}

func (c *NATSClient) Subscribe(subject string, handler func(string, []byte)) error {
	sub, err := c.conn.Subscribe(subject, func(msg *nats.Msg) {
		handler(msg.Subject, msg.Data)
	})
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.subs = append(c.subs, sub)
	c.mu.Unlock()
	return nil
}

func (c *NATSClient) Close() {
	c.mu.Lock()
	subs := c.subs
	c.subs = nil
	c.mu.Unlock()
	for _, sub := range subs {
		_ = sub.Unsubscribe()
	}
	c.conn.Close()
}
