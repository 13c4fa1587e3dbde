package pubsub

import "time"

type StorageType int

const (
	MemoryStorage StorageType = iota
	FileStorage
)

const (
	DefaultChannelBufSize  = 100
	DefaultAckWait         = 30 * time.Second
	DefaultMaxAckPending   = 1000
	DefaultDuplicateWindow = 2 * time.Minute
)

type PublisherOptions struct {
	StreamName    string
	SubjectPrefix string
	Storage       StorageType

	// RetryAttempts is how often a publish is retried when the broker has no
	// responders. Zero disables retries.
	RetryAttempts int

	MaxAge          time.Duration // 0 retains messages indefinitely
	DuplicateWindow time.Duration
}

// FullSubject prefixes subject with SubjectPrefix.
func (o PublisherOptions) FullSubject(subject string) string {
	if o.SubjectPrefix == "" {
		return subject
	}
	return o.SubjectPrefix + "." + subject
}

// Window returns DuplicateWindow, or the default when unset.
func (o PublisherOptions) Window() time.Duration {
	if o.DuplicateWindow <= 0 {
		return DefaultDuplicateWindow
	}
	return o.DuplicateWindow
}

type ConsumerOptions struct {
	StreamName   string
	ConsumerName string
	// FilterSubject defaults to every subject of StreamName.
	FilterSubject  string
	ChannelBufSize int
	Storage        StorageType

	AckWait       time.Duration
	MaxDeliver    int // 0 means unlimited
	MaxAckPending int
}

// Filter returns the subject pattern the consumer reads.
func (o ConsumerOptions) Filter() string {
	switch {
	case o.FilterSubject != "":
		return o.FilterSubject
	case o.StreamName != "":
		return o.StreamName + ".>"
	}
	return ">"
}

// WithDefaults fills unset buffer, ack wait and pending limits.
func (o ConsumerOptions) WithDefaults() ConsumerOptions {
	if o.ChannelBufSize <= 0 {
		o.ChannelBufSize = DefaultChannelBufSize
	}
	if o.AckWait <= 0 {
		o.AckWait = DefaultAckWait
	}
	if o.MaxAckPending <= 0 {
		o.MaxAckPending = DefaultMaxAckPending
	}
	return o
}
