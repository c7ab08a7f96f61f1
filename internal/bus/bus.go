// Package bus wraps the NATS connection used by every game component. It is
// the only place that knows about transport-level concerns: initial connect,
// background delivery, and automatic reconnect.
package bus

import (
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

// ErrBusUnavailable is returned when the initial connect fails. Later
// transport faults are handled by the client's reconnect loop and surface only
// as log events.
var ErrBusUnavailable = errors.New("bus: broker unavailable")

// Handler receives one inbound message. It runs on the NATS delivery
// goroutine; handlers must hand work off rather than block.
type Handler func(subject string, payload []byte)

// Bus is the publish/subscribe surface the rest of the system depends on.
// *Client implements it over NATS; tests substitute an in-memory fake.
type Bus interface {
	Subscribe(subject string, h Handler) (Subscription, error)
	Publish(subject string, payload []byte) error
}

// Subscription undoes one Subscribe.
type Subscription interface {
	Unsubscribe() error
}

type Client struct {
	nc  *nats.Conn
	log *zap.Logger
}

// Connect dials the broker. A failed initial connect is fatal to the caller;
// once connected the client reconnects forever on its own.
func Connect(url, name string, log *zap.Logger) (*Client, error) {
	opts := []nats.Option{
		nats.Name(name),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			log.Warn("bus disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Info("bus reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	}
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBusUnavailable, err)
	}
	return &Client{nc: nc, log: log}, nil
}

func (c *Client) Subscribe(subject string, h Handler) (Subscription, error) {
	sub, err := c.nc.Subscribe(subject, func(m *nats.Msg) {
		h(m.Subject, m.Data)
	})
	if err != nil {
		return nil, fmt.Errorf("subscribe %s: %w", subject, err)
	}
	return sub, nil
}

func (c *Client) Publish(subject string, payload []byte) error {
	if c.nc == nil || c.nc.IsClosed() {
		return fmt.Errorf("publish %s: connection closed", subject)
	}
	return c.nc.Publish(subject, payload)
}

// Close drains in-flight messages before tearing the connection down.
func (c *Client) Close() {
	if c.nc != nil {
		if err := c.nc.Drain(); err != nil {
			c.log.Warn("bus drain", zap.Error(err))
		}
		c.nc.Close()
	}
}
