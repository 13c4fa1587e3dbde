package channel

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/syntrixbase/tripsync/internal/core/pubsub"
	services "github.com/syntrixbase/tripsync/internal/services/config"
)

// Config configures the ordered channel and its dead-letter stream.
type Config struct {
	// NATSURL is used in distributed mode. Standalone mode uses the in-memory engine.
	NATSURL string `yaml:"nats_url"`

	Stream           string `yaml:"stream"`
	SubjectPrefix    string `yaml:"subject_prefix"`
	DeadLetterStream string `yaml:"dead_letter_stream"`
	ConsumerName     string `yaml:"consumer_name"`
	StorageType      string `yaml:"storage_type"`

	NumWorkers      int           `yaml:"num_workers"`
	ChannelBufSize  int           `yaml:"channel_buf_size"`
	HandlerTimeout  time.Duration `yaml:"handler_timeout"`
	DrainTimeout    time.Duration `yaml:"drain_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`

	AckWait         time.Duration `yaml:"ack_wait"`
	MaxDeliver      int           `yaml:"max_deliver"`
	MaxAckPending   int           `yaml:"max_ack_pending"`
	MaxAge          time.Duration `yaml:"max_age"`
	DuplicateWindow time.Duration `yaml:"duplicate_window"`

	// DeadLetterRetention is how many dead-letter records the inspector keeps in memory.
	DeadLetterRetention int `yaml:"dead_letter_retention"`
}

// DefaultConfig returns the default channel configuration.
func DefaultConfig() Config {
	return Config{
		NATSURL:             "nats://localhost:4222",
		Stream:              "TRIPS",
		SubjectPrefix:       "changes",
		DeadLetterStream:    "TRIPS_DLQ",
		ConsumerName:        "trip-cache-projector",
		StorageType:         "file",
		NumWorkers:          16,
		ChannelBufSize:      DefaultChannelBufferSize,
		HandlerTimeout:      DefaultHandlerTimeout,
		DrainTimeout:        DefaultDrainTimeout,
		ShutdownTimeout:     DefaultShutdownTimeout,
		AckWait:             30 * time.Second,
		MaxDeliver:          5,
		MaxAckPending:       1000,
		MaxAge:              7 * 24 * time.Hour,
		DuplicateWindow:     pubsub.DefaultDuplicateWindow,
		DeadLetterRetention: 500,
	}
}

// StorageTypeValue returns the pubsub.StorageType from the config string.
func (c Config) StorageTypeValue() pubsub.StorageType {
	if c.StorageType == "memory" {
		return pubsub.MemoryStorage
	}
	return pubsub.FileStorage
}

// ApplyDefaults fills in zero values with defaults.
func (c *Config) ApplyDefaults() {
	d := DefaultConfig()
	if c.NATSURL == "" {
		c.NATSURL = d.NATSURL
	}
	if c.Stream == "" {
		c.Stream = d.Stream
	}
	if c.SubjectPrefix == "" {
		c.SubjectPrefix = d.SubjectPrefix
	}
	if c.DeadLetterStream == "" {
		c.DeadLetterStream = d.DeadLetterStream
	}
	if c.ConsumerName == "" {
		c.ConsumerName = d.ConsumerName
	}
	if c.StorageType == "" {
		c.StorageType = d.StorageType
	}
	if c.NumWorkers <= 0 {
		c.NumWorkers = d.NumWorkers
	}
	if c.ChannelBufSize <= 0 {
		c.ChannelBufSize = d.ChannelBufSize
	}
	if c.HandlerTimeout <= 0 {
		c.HandlerTimeout = d.HandlerTimeout
	}
	if c.DrainTimeout <= 0 {
		c.DrainTimeout = d.DrainTimeout
	}
	if c.ShutdownTimeout <= 0 {
		c.ShutdownTimeout = d.ShutdownTimeout
	}
	if c.AckWait <= 0 {
		c.AckWait = d.AckWait
	}
	if c.MaxDeliver == 0 {
		c.MaxDeliver = d.MaxDeliver
	}
	if c.MaxAckPending <= 0 {
		c.MaxAckPending = d.MaxAckPending
	}
	if c.MaxAge <= 0 {
		c.MaxAge = d.MaxAge
	}
	if c.DuplicateWindow <= 0 {
		c.DuplicateWindow = d.DuplicateWindow
	}
	if c.DeadLetterRetention <= 0 {
		c.DeadLetterRetention = d.DeadLetterRetention
	}
}

// ApplyEnvOverrides applies environment variable overrides.
func (c *Config) ApplyEnvOverrides() {
	if val := os.Getenv("TRIPSYNC_NATS_URL"); val != "" {
		c.NATSURL = val
	}
	if val := os.Getenv("TRIPSYNC_CHANNEL_WORKERS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil {
			c.NumWorkers = n
		}
	}
}

// ResolvePaths is a no-op; the channel has no paths.
func (*Config) ResolvePaths(_, _ string) {}

// Validate returns an error if the configuration is invalid.
func (c *Config) Validate(mode services.DeploymentMode) error {
	if mode.IsDistributed() && c.NATSURL == "" {
		return errors.New("channel.nats_url is required in distributed mode")
	}
	if c.Stream == "" {
		return errors.New("channel.stream is required")
	}
	if c.DeadLetterStream == "" || c.DeadLetterStream == c.Stream {
		return errors.New("channel.dead_letter_stream must be set and differ from channel.stream")
	}
	if c.ConsumerName == "" {
		return errors.New("channel.consumer_name is required")
	}
	if c.NumWorkers < 0 {
		return errors.New("channel.num_workers must be non-negative")
	}
	if c.MaxDeliver < -1 {
		return fmt.Errorf("channel.max_deliver must be -1 (unlimited) or positive, got %d", c.MaxDeliver)
	}
	if c.StorageType != "file" && c.StorageType != "memory" {
		return errors.New("channel.storage_type must be 'file' or 'memory'")
	}
	return nil
}

// PublisherOptions returns the options for the change-event publisher.
func (c Config) PublisherOptions() pubsub.PublisherOptions {
	return pubsub.PublisherOptions{
		StreamName:      c.Stream,
		SubjectPrefix:   c.Stream,
		Storage:         c.StorageTypeValue(),
		MaxAge:          c.MaxAge,
		DuplicateWindow: c.DuplicateWindow,
		RetryAttempts:   2,
	}
}

// ConsumerOptions returns the options for the projector's durable consumer.
func (c Config) ConsumerOptions() pubsub.ConsumerOptions {
	return pubsub.ConsumerOptions{
		StreamName:     c.Stream,
		ConsumerName:   c.ConsumerName,
		FilterSubject:  c.Stream + "." + c.SubjectPrefix + ".>",
		ChannelBufSize: c.ChannelBufSize,
		Storage:        c.StorageTypeValue(),
		AckWait:        c.AckWait,
		MaxDeliver:     c.MaxDeliver,
		MaxAckPending:  c.MaxAckPending,
	}
}

// DeadLetterPublisherOptions returns the options for the dead-letter publisher.
func (c Config) DeadLetterPublisherOptions() pubsub.PublisherOptions {
	return pubsub.PublisherOptions{
		StreamName:    c.DeadLetterStream,
		SubjectPrefix: c.DeadLetterStream,
		Storage:       c.StorageTypeValue(),
		RetryAttempts: 2,
	}
}

// DeadLetterConsumerOptions returns the options for the dead-letter inspector.
func (c Config) DeadLetterConsumerOptions() pubsub.ConsumerOptions {
	return pubsub.ConsumerOptions{
		StreamName:     c.DeadLetterStream,
		ConsumerName:   c.ConsumerName + "-dlq-inspector",
		ChannelBufSize: c.ChannelBufSize,
		Storage:        c.StorageTypeValue(),
		AckWait:        c.AckWait,
	}
}
