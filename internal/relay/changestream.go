package relay

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/syntrixbase/tripsync/internal/channel"
	"github.com/syntrixbase/tripsync/internal/events"
	"github.com/syntrixbase/tripsync/internal/metrics"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const sourceChangeStream = "changestream"

// changeDoc is the subset of a change stream document the relay reads.
type changeDoc struct {
	ID                       bson.Raw    `bson:"_id"`
	OperationType            string      `bson:"operationType"`
	FullDocument             *events.Row `bson:"fullDocument"`
	FullDocumentBeforeChange *events.Row `bson:"fullDocumentBeforeChange"`
}

// ChangeStream tails a trips collection and forwards each change.
type ChangeStream struct {
	coll   *mongo.Collection
	sender channel.Sender
	delay  time.Duration
	logger *slog.Logger

	resumeToken bson.Raw
}

// NewChangeStream creates a ChangeStream over coll.
func NewChangeStream(coll *mongo.Collection, sender channel.Sender, cfg ChangeStreamConfig) *ChangeStream {
	delay := cfg.ReconnectDelay
	if delay <= 0 {
		delay = DefaultConfig().ChangeStream.ReconnectDelay
	}
	return &ChangeStream{
		coll:   coll,
		sender: sender,
		delay:  delay,
		logger: slog.Default().With("component", "relay", "source", sourceChangeStream),
	}
}

// Run watches until ctx is cancelled, reopening the stream after errors
// from the last seen resume token.
func (c *ChangeStream) Run(ctx context.Context) error {
	for {
		err := c.watch(ctx)
		if ctx.Err() != nil {
			return nil
		}
		c.logger.Error("Change stream error, reconnecting", "error", err)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(c.delay):
		}
	}
}

func (c *ChangeStream) watch(ctx context.Context) error {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{
			"operationType": bson.M{"$in": bson.A{"insert", "update", "replace", "delete"}},
		}}},
	}
	opts := options.ChangeStream().
		SetFullDocument(options.UpdateLookup).
		SetFullDocumentBeforeChange(options.WhenAvailable)
	if c.resumeToken != nil {
		opts.SetResumeAfter(c.resumeToken)
	}

	stream, err := c.coll.Watch(ctx, pipeline, opts)
	if err != nil {
		return fmt.Errorf("failed to open change stream: %w", err)
	}
	defer stream.Close(context.WithoutCancel(ctx))

	c.logger.Info("Change stream opened", "collection", c.coll.Name(), "resumed", c.resumeToken != nil)

	for stream.Next(ctx) {
		var doc changeDoc
		if err := stream.Decode(&doc); err != nil {
			c.logger.Error("Failed to decode change", "error", err)
			metrics.RelayRows.WithLabelValues(sourceChangeStream, metrics.ResultSkipped).Inc()
			c.resumeToken = stream.ResumeToken()
			continue
		}

		if err := c.forward(ctx, &doc); err != nil {
			// Keep the old token so the change is replayed after reconnect.
			return err
		}
		c.resumeToken = stream.ResumeToken()
	}
	return stream.Err()
}

func (c *ChangeStream) forward(ctx context.Context, doc *changeDoc) error {
	ev, err := toEvent(doc)
	if err != nil {
		metrics.RelayRows.WithLabelValues(sourceChangeStream, metrics.ResultSkipped).Inc()
		c.logger.Warn("Skipping change", "operation", doc.OperationType, "error", err)
		return nil
	}
	if err := c.sender.Send(ctx, ev); err != nil {
		metrics.RelayRows.WithLabelValues(sourceChangeStream, metrics.ResultError).Inc()
		return fmt.Errorf("failed to forward change for trip %s: %w", ev.TripNumber, err)
	}
	metrics.RelayRows.WithLabelValues(sourceChangeStream, metrics.ResultOK).Inc()
	return nil
}

// toEvent maps a change document to a change event. Deletes need the
// pre-image to recover the trip number.
func toEvent(doc *changeDoc) (*events.ChangeEvent, error) {
	row := doc.FullDocument
	if events.ParseChangeType(doc.OperationType) == events.ChangeDelete {
		row = doc.FullDocumentBeforeChange
	}
	if row == nil {
		return nil, fmt.Errorf("%w: %s change without document", events.ErrMalformedEvent, doc.OperationType)
	}
	return events.FromRow(doc.OperationType, *row)
}
