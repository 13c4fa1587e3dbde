package nats

import (
	"github.com/nats-io/nats.go/jetstream"
	"github.com/syntrixbase/tripsync/internal/core/pubsub"
)

type message struct {
	jetstream.Msg
}

// WrapMessage adapts a JetStream delivery to pubsub.Message.
func WrapMessage(msg jetstream.Msg) pubsub.Message {
	return message{msg}
}

// Header reads the first value of key; a message without headers yields "".
func (m message) Header(key string) string {
	if h := m.Headers(); h != nil {
		return h.Get(key)
	}
	return ""
}

func (m message) Metadata() (pubsub.MessageMetadata, error) {
	md, err := m.Msg.Metadata()
	if err != nil {
		return pubsub.MessageMetadata{}, err
	}
	return pubsub.MessageMetadata{
		NumDelivered: md.NumDelivered,
		Timestamp:    md.Timestamp,
		Subject:      m.Subject(),
		Stream:       md.Stream,
		Consumer:     md.Consumer,
	}, nil
}
