// Package notify announces finished aggregation runs over NATS.
package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// DefaultSubjectPrefix is used when no prefix is configured.
const DefaultSubjectPrefix = "poolstats"

// Event is published after a network's stats are persisted.
type Event struct {
	Network     string    `json:"network"`
	GeneratedAt time.Time `json:"generatedAt"`
	Pools       int       `json:"pools"`
}

// Publisher announces aggregation events.
type Publisher interface {
	Publish(ctx context.Context, event Event) error
}

// NopPublisher discards events.
type NopPublisher struct{}

// Publish does nothing.
func (NopPublisher) Publish(context.Context, Event) error { return nil }

// Subject returns the subject an event for network is published on.
func Subject(prefix, network string) string {
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return prefix + "." + network + ".aggregated"
}

// Client is a NATS connection publishing and receiving aggregation events.
type Client struct {
	nc     *nats.Conn
	prefix string
	logger *zap.Logger
}

// Connect dials url. The connection retries and reconnects indefinitely.
func Connect(url, prefix string, logger *zap.Logger) (*Client, error) {
	if url == "" {
		return nil, errors.New("nats url is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	opts := []nats.Option{
		nats.Name("amm-stats"),
		nats.Timeout(5 * time.Second),
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", zap.Error(err))
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}

	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("connect to nats: %w", err)
	}
	if prefix == "" {
		prefix = DefaultSubjectPrefix
	}
	return &Client{nc: nc, prefix: prefix, logger: logger}, nil
}

// Compile-time interface check.
var _ Publisher = (*Client)(nil)

// Ready reports whether the connection is up.
func (c *Client) Ready() bool {
	return c.nc != nil && c.nc.Status() == nats.CONNECTED
}

// Publish sends event and flushes the connection.
func (c *Client) Publish(ctx context.Context, event Event) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := c.nc.Publish(Subject(c.prefix, event.Network), data); err != nil {
		return fmt.Errorf("publish: %w", err)
	}
	if err := c.nc.FlushWithContext(ctx); err != nil {
		return fmt.Errorf("flush: %w", err)
	}
	return nil
}

// Subscribe calls handler for events of every network until the returned
// subscription is drained or the client is closed.
func (c *Client) Subscribe(handler func(Event)) (*nats.Subscription, error) {
	return c.nc.Subscribe(Subject(c.prefix, "*"), func(msg *nats.Msg) {
		var event Event
		if err := json.Unmarshal(msg.Data, &event); err != nil {
			c.logger.Warn("invalid aggregation event",
				zap.String("subject", msg.Subject),
				zap.Error(err),
			)
			return
		}
		if event.Network == "" {
			event.Network = networkFromSubject(c.prefix, msg.Subject)
		}
		handler(event)
	})
}

func networkFromSubject(prefix, subject string) string {
	rest := strings.TrimPrefix(subject, prefix+".")
	return strings.TrimSuffix(rest, ".aggregated")
}

// Close drains and closes the connection.
func (c *Client) Close() error {
	if c.nc == nil || c.nc.IsClosed() {
		return nil
	}
	if err := c.nc.Drain(); err != nil {
		c.nc.Close()
		return fmt.Errorf("drain nats connection: %w", err)
	}
	return nil
}
