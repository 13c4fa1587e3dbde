// Package mongo is the MongoDB trip repository.
package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/syntrixbase/tripsync/internal/store"
	"github.com/syntrixbase/tripsync/pkg/model"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Store persists trips in a single collection keyed by trip id, with a
// unique index on trip_number.
type Store struct {
	client *mongo.Client
	coll   *mongo.Collection
}

var _ store.Repository = (*Store)(nil)

// Connect dials MongoDB, verifies the connection and ensures indexes.
func Connect(ctx context.Context, cfg store.MongoConfig) (*Store, error) {
	clientOpts := options.Client().ApplyURI(cfg.URI)
	if clientOpts.ConnectTimeout == nil && cfg.ConnectTimeout > 0 {
		clientOpts.SetConnectTimeout(cfg.ConnectTimeout)
	}

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("failed to ping mongo: %w", err)
	}

	s := &Store{
		client: client,
		coll:   client.Database(cfg.Database).Collection(cfg.Collection),
	}
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}
	return s, nil
}

// EnsureIndexes creates the trip_number unique index and the status index.
func (s *Store) EnsureIndexes(ctx context.Context) error {
	_, err := s.coll.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "trip_number", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "status", Value: 1}},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create trip indexes: %w", err)
	}
	return nil
}

// Collection returns the trips collection, used by the change stream relay.
func (s *Store) Collection() *mongo.Collection {
	return s.coll
}

func (s *Store) Create(ctx context.Context, trip *model.Trip) error {
	if err := trip.Validate(); err != nil {
		return err
	}
	_, err := s.coll.InsertOne(ctx, trip)
	if mongo.IsDuplicateKeyError(err) {
		return model.ErrExists
	}
	return model.WrapError(err)
}

func (s *Store) Get(ctx context.Context, id string) (*model.Trip, error) {
	return s.findOne(ctx, bson.M{"_id": id})
}

func (s *Store) GetByNumber(ctx context.Context, tripNumber string) (*model.Trip, error) {
	return s.findOne(ctx, bson.M{"trip_number": tripNumber})
}

func (s *Store) findOne(ctx context.Context, filter bson.M) (*model.Trip, error) {
	var trip model.Trip
	if err := s.coll.FindOne(ctx, filter).Decode(&trip); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, model.ErrNotFound
		}
		return nil, model.WrapError(err)
	}
	return &trip, nil
}

func (s *Store) List(ctx context.Context, opts store.ListOptions) ([]*model.Trip, error) {
	filter := bson.M{}
	if opts.Status != "" {
		filter["status"] = opts.Status
	}
	findOpts := options.Find().SetSort(bson.D{{Key: "trip_number", Value: 1}})
	if opts.Limit > 0 {
		findOpts.SetLimit(int64(opts.Limit))
	}

	cursor, err := s.coll.Find(ctx, filter, findOpts)
	if err != nil {
		return nil, model.WrapError(err)
	}
	defer cursor.Close(ctx)

	trips := make([]*model.Trip, 0)
	if err := cursor.All(ctx, &trips); err != nil {
		return nil, model.WrapError(err)
	}
	return trips, nil
}

func (s *Store) Update(ctx context.Context, trip *model.Trip, expectedVersion int64) error {
	filter := bson.M{"_id": trip.ID, "version": expectedVersion}
	result, err := s.coll.ReplaceOne(ctx, filter, trip)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return model.ErrPreconditionFailed
		}
		return model.WrapError(err)
	}
	if result.MatchedCount > 0 {
		return nil
	}

	// Distinguish a missing trip from a version conflict.
	count, err := s.coll.CountDocuments(ctx, bson.M{"_id": trip.ID})
	if err != nil {
		return model.WrapError(err)
	}
	if count == 0 {
		return model.ErrNotFound
	}
	return model.ErrPreconditionFailed
}

func (s *Store) Delete(ctx context.Context, id string) error {
	result, err := s.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return model.WrapError(err)
	}
	if result.DeletedCount == 0 {
		return model.ErrNotFound
	}
	return nil
}

// Close disconnects the client.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
