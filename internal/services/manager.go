// Package services assembles the pipeline. The Manager opens the shared
// clients, wires every component to them, runs the background loops and
// tears everything down in a fixed order.
package services

import (
	"context"
	"log/slog"

	"github.com/syntrixbase/tripsync/internal/cache"
	"github.com/syntrixbase/tripsync/internal/channel"
	"github.com/syntrixbase/tripsync/internal/config"
	"github.com/syntrixbase/tripsync/internal/core/pubsub"
	"github.com/syntrixbase/tripsync/internal/publisher"
	"github.com/syntrixbase/tripsync/internal/realtime"
	"github.com/syntrixbase/tripsync/internal/relay"
	"github.com/syntrixbase/tripsync/internal/server"
	"github.com/syntrixbase/tripsync/internal/store"
	mongostore "github.com/syntrixbase/tripsync/internal/store/mongo"
	"github.com/syntrixbase/tripsync/internal/tripservice"
	"golang.org/x/sync/errgroup"
)

type Manager struct {
	cfg    *config.Config
	logger *slog.Logger

	// Shared clients, opened in Init and closed in Shutdown.
	repo       store.Repository
	mongoStore *mongostore.Store
	cache      *cache.Cache
	bus        pubsub.Provider
	publishers []pubsub.Publisher

	producer     *channel.Producer
	deadLetterer *channel.DeadLetterer
	consumer     *channel.OrderedConsumer
	inspector    *channel.Inspector
	changeStream *relay.ChangeStream
	hub          *realtime.Hub
	events       *publisher.Publisher
	trips        *tripservice.Service
	server       server.Service

	realtimeCancel context.CancelFunc
	realtimeDone   chan struct{}
	pipelineCancel context.CancelFunc
	group          *errgroup.Group
	stopped        chan struct{}
	err            error
}

func NewManager(cfg *config.Config, logger *slog.Logger) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{
		cfg:    cfg,
		logger: logger.With("component", "manager"),
	}
}

// TripService returns the write/read service. Nil before Init.
func (m *Manager) TripService() *tripservice.Service {
	return m.trips
}

// Server returns the network server. Nil before Init.
func (m *Manager) Server() server.Service {
	return m.server
}

// DeadLetters returns the dead-letter inspector. Nil before Init.
func (m *Manager) DeadLetters() *channel.Inspector {
	return m.inspector
}
