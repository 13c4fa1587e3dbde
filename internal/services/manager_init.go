package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/syntrixbase/tripsync/internal/cache"
	memorycache "github.com/syntrixbase/tripsync/internal/cache/memory"
	rediscache "github.com/syntrixbase/tripsync/internal/cache/redis"
	"github.com/syntrixbase/tripsync/internal/channel"
	"github.com/syntrixbase/tripsync/internal/core/pubsub"
	"github.com/syntrixbase/tripsync/internal/core/pubsub/memory"
	natspubsub "github.com/syntrixbase/tripsync/internal/core/pubsub/nats"
	"github.com/syntrixbase/tripsync/internal/gateway"
	"github.com/syntrixbase/tripsync/internal/projector"
	"github.com/syntrixbase/tripsync/internal/publisher"
	"github.com/syntrixbase/tripsync/internal/realtime"
	"github.com/syntrixbase/tripsync/internal/relay"
	"github.com/syntrixbase/tripsync/internal/server"
	services "github.com/syntrixbase/tripsync/internal/services/config"
	"github.com/syntrixbase/tripsync/internal/store"
	memorystore "github.com/syntrixbase/tripsync/internal/store/memory"
	mongostore "github.com/syntrixbase/tripsync/internal/store/mongo"
	"github.com/syntrixbase/tripsync/internal/store/postgres"
	"github.com/syntrixbase/tripsync/internal/tripservice"
)

// Client constructors, replaceable in tests.
var (
	connectMongo = mongostore.Connect
	openPostgres = postgres.Open
	connectRedis = rediscache.Connect
	openBus      = func(ctx context.Context, mode services.DeploymentMode, cfg channel.Config) (pubsub.Provider, error) {
		if mode.IsStandalone() {
			return memory.New(), nil
		}
		p := natspubsub.NewProvider(cfg.NATSURL, "tripsync")
		if err := p.Connect(ctx); err != nil {
			return nil, err
		}
		return p, nil
	}
	newServer = server.New
)

// Init opens the shared clients and wires every component. On failure the
// clients opened so far are closed again.
func (m *Manager) Init(ctx context.Context) (err error) {
	defer func() {
		if err != nil {
			m.closeClients(ctx)
		}
	}()

	if err := m.initStore(ctx); err != nil {
		return err
	}
	if err := m.initCache(ctx); err != nil {
		return err
	}
	if err := m.initChannel(ctx); err != nil {
		return err
	}
	if err := m.initPipeline(); err != nil {
		return err
	}
	m.initServer()

	m.logger.Info("Manager initialized",
		"mode", m.cfg.Deployment.Mode,
		"store", m.cfg.Store.Backend,
		"cache", m.cfg.Cache.Backend,
		"change_stream", m.changeStream != nil,
		"webhook", m.cfg.Relay.Webhook.Enabled,
	)
	return nil
}

func (m *Manager) initStore(ctx context.Context) error {
	cfg := m.cfg.Store
	switch cfg.Backend {
	case store.BackendMongo:
		s, err := connectMongo(ctx, cfg.Mongo)
		if err != nil {
			return fmt.Errorf("failed to connect trip store: %w", err)
		}
		m.mongoStore = s
		m.repo = s
	case store.BackendPostgres:
		s, err := openPostgres(ctx, cfg.Postgres)
		if err != nil {
			return fmt.Errorf("failed to open trip store: %w", err)
		}
		m.repo = s
	default:
		m.repo = memorystore.New()
	}
	return nil
}

func (m *Manager) initCache(ctx context.Context) error {
	cfg := m.cfg.Cache
	var backend cache.Backend
	switch cfg.Backend {
	case cache.BackendRedis:
		s, err := connectRedis(ctx, cfg.Redis)
		if err != nil {
			return fmt.Errorf("failed to connect cache: %w", err)
		}
		backend = s
	default:
		backend = memorycache.New(cfg.TTL.List)
	}
	m.cache = cache.New(backend, cfg.TTL)
	return nil
}

func (m *Manager) initChannel(ctx context.Context) error {
	cfg := m.cfg.Channel

	bus, err := openBus(ctx, m.cfg.Deployment.Mode, cfg)
	if err != nil {
		return fmt.Errorf("failed to open message bus: %w", err)
	}
	m.bus = bus

	pub, err := bus.NewPublisher(cfg.PublisherOptions())
	if err != nil {
		return fmt.Errorf("failed to create change publisher: %w", err)
	}
	m.publishers = append(m.publishers, pub)

	dlqPub, err := bus.NewPublisher(cfg.DeadLetterPublisherOptions())
	if err != nil {
		return fmt.Errorf("failed to create dead-letter publisher: %w", err)
	}
	m.publishers = append(m.publishers, dlqPub)

	m.producer = channel.NewProducer(pub, cfg.SubjectPrefix)
	m.deadLetterer = channel.NewDeadLetterer(dlqPub)
	return nil
}

func (m *Manager) initPipeline() error {
	cfg := m.cfg.Channel

	changes, err := m.bus.NewConsumer(cfg.ConsumerOptions())
	if err != nil {
		return fmt.Errorf("failed to create change consumer: %w", err)
	}
	deadLetters, err := m.bus.NewConsumer(cfg.DeadLetterConsumerOptions())
	if err != nil {
		return fmt.Errorf("failed to create dead-letter consumer: %w", err)
	}

	m.hub = realtime.NewHub()
	m.events = publisher.New(m.producer, m.hub, publisher.WithLogger(m.logger))
	m.trips = tripservice.New(m.repo, m.cache, m.events)

	proj := projector.New(m.cache, m.logger)
	m.consumer = channel.NewOrderedConsumer(changes, proj, m.deadLetterer, cfg.NumWorkers,
		channel.WithChannelBufferSize(cfg.ChannelBufSize),
		channel.WithHandlerTimeout(cfg.HandlerTimeout),
		channel.WithDrainTimeout(cfg.DrainTimeout),
		channel.WithShutdownTimeout(cfg.ShutdownTimeout),
		channel.WithLogger(m.logger),
	)
	m.inspector = channel.NewInspector(deadLetters, cfg.DeadLetterRetention)

	if m.cfg.Relay.ChangeStream.Enabled {
		if m.mongoStore == nil {
			m.logger.Warn("Change stream relay needs the mongo store backend, skipping", "backend", m.cfg.Store.Backend)
		} else {
			m.changeStream = relay.NewChangeStream(m.mongoStore.Collection(), m.producer, m.cfg.Relay.ChangeStream)
		}
	}
	return nil
}

func (m *Manager) initServer() {
	m.server = newServer(m.cfg.Server, m.logger)

	opts := []gateway.ServerOption{
		gateway.WithGatewayConfig(m.cfg.Gateway),
		gateway.WithDeadLetters(m.inspector),
	}
	if m.cfg.Relay.Webhook.Enabled {
		opts = append(opts, gateway.WithRelay(relay.NewWebhook(m.producer, m.cfg.Relay)))
	}

	rt := realtime.NewServer(m.hub, m.cfg.Realtime)
	gateway.NewServer(m.trips, rt, opts...).RegisterRoutes(m.server.HTTPMux())
}

// closeClients releases everything Init opened, newest first.
func (m *Manager) closeClients(ctx context.Context) error {
	var errs []error
	if m.events != nil {
		if err := m.events.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close event publisher: %w", err))
		}
		m.events = nil
	}
	for i := len(m.publishers) - 1; i >= 0; i-- {
		if err := m.publishers[i].Close(); err != nil {
			errs = append(errs, fmt.Errorf("close publisher: %w", err))
		}
	}
	m.publishers = nil

	if m.bus != nil {
		if err := m.bus.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close message bus: %w", err))
		}
		m.bus = nil
	}
	if m.cache != nil {
		if err := m.cache.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close cache: %w", err))
		}
		m.cache = nil
	}
	if m.repo != nil {
		if err := m.repo.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("close trip store: %w", err))
		}
		m.repo = nil
		m.mongoStore = nil
	}
	return errors.Join(errs...)
}
