package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/gamegoo/socialgraph/cache"
	"github.com/nats-io/nats.go"
	"go.uber.org/zap"
)

var errSinkPanic = errors.New("event: sink panicked")

// PubSubSink fans events out on a cache.PubSub channel (local or Redis).
type PubSubSink struct {
	ps      cache.PubSub
	channel string
}

// NewPubSubSink creates a sink publishing to channel.
func NewPubSubSink(ps cache.PubSub, channel string) *PubSubSink {
	return &PubSubSink{ps: ps, channel: channel}
}

func (s *PubSubSink) Name() string { return "pubsub" }

func (s *PubSubSink) Deliver(ctx context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return s.ps.Publish(ctx, s.channel, string(data))
}

// Publisher is the part of *nats.Conn the NATS sink needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSSink publishes each event on "<prefix>.<type>",
// e.g. "social.friend_request.accepted".
type NATSSink struct {
	nc     Publisher
	prefix string
}

// NewNATSSink creates a sink publishing through nc.
func NewNATSSink(nc Publisher, prefix string) *NATSSink {
	return &NATSSink{nc: nc, prefix: prefix}
}

func (s *NATSSink) Name() string { return "nats" }

func (s *NATSSink) Subject(t Type) string {
	if s.prefix == "" {
		return string(t)
	}
	return s.prefix + "." + string(t)
}

func (s *NATSSink) Deliver(_ context.Context, e Event) error {
	data, err := json.Marshal(e)
	if err != nil {
		return err
	}
	if err := s.nc.Publish(s.Subject(e.Type), data); err != nil {
		return fmt.Errorf("nats publish %s: %w", s.Subject(e.Type), err)
	}
	return nil
}

// ConnectNATS dials url with reconnect logging wired to logger.
func ConnectNATS(url string, logger *zap.Logger) (*nats.Conn, error) {
	return nats.Connect(url,
		nats.Name("socialgraph"),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", zap.String("url", nc.ConnectedUrl()))
		}),
	)
}
