// Package nats is the JetStream pubsub provider used in distributed mode.
package nats

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/syntrixbase/tripsync/internal/core/pubsub"
)

// JetStream is the part of jetstream.JetStream the provider uses.
type JetStream interface {
	CreateOrUpdateStream(ctx context.Context, cfg jetstream.StreamConfig) (jetstream.Stream, error)
	CreateOrUpdateConsumer(ctx context.Context, stream string, cfg jetstream.ConsumerConfig) (jetstream.Consumer, error)
	PublishMsg(ctx context.Context, msg *nats.Msg, opts ...jetstream.PublishOpt) (*jetstream.PubAck, error)
}

// NewJetStream opens a JetStream context on nc.
func NewJetStream(nc *nats.Conn) (JetStream, error) {
	if nc == nil {
		return nil, errors.New("nats connection cannot be nil")
	}
	return jetstream.New(nc)
}

// conn is an established server connection.
type conn interface {
	JetStream() (JetStream, error)
	Close()
}

type natsConn struct{ *nats.Conn }

func (c natsConn) JetStream() (JetStream, error) { return NewJetStream(c.Conn) }

func dialNATS(url string, opts ...nats.Option) (conn, error) {
	nc, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, err
	}
	return natsConn{nc}, nil
}

// ensureStream creates the stream or reconciles an existing one with cfg.
func ensureStream(ctx context.Context, js JetStream, cfg jetstream.StreamConfig) error {
	if _, err := js.CreateOrUpdateStream(ctx, cfg); err != nil {
		return fmt.Errorf("failed to ensure stream %s: %w", cfg.Name, err)
	}
	return nil
}

func storageType(s pubsub.StorageType) jetstream.StorageType {
	if s == pubsub.FileStorage {
		return jetstream.FileStorage
	}
	return jetstream.MemoryStorage
}
