package services

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"
)

var errNotInitialized = errors.New("manager is not initialized")

// Start launches the background loops and the network server, then marks the
// process ready. It does not block; Stopped reports when the loops have ended.
// A loop that fails stops the others; its error is returned by Err.
func (m *Manager) Start(ctx context.Context) error {
	if m.server == nil {
		return errNotInitialized
	}
	if m.stopped != nil {
		return errors.New("manager already started")
	}

	rtCtx, rtCancel := context.WithCancel(ctx)
	m.realtimeCancel = rtCancel
	m.realtimeDone = make(chan struct{})
	go func() {
		defer close(m.realtimeDone)
		m.hub.Run(rtCtx)
	}()

	pipelineCtx, pipelineCancel := context.WithCancel(ctx)
	m.pipelineCancel = pipelineCancel

	g, gctx := errgroup.WithContext(pipelineCtx)
	m.group = g
	g.Go(func() error { return m.consumer.Start(gctx) })
	g.Go(func() error { return m.inspector.Start(gctx) })
	if m.changeStream != nil {
		g.Go(func() error { return m.changeStream.Run(gctx) })
	}
	g.Go(func() error { return m.server.Start(gctx) })

	m.stopped = make(chan struct{})
	go func() {
		m.err = g.Wait()
		if m.err != nil {
			m.logger.Error("Background loop failed", "error", m.err)
		}
		close(m.stopped)
	}()

	m.server.SetServing(true)
	m.logger.Info("Manager started",
		"http_port", m.cfg.Server.HTTPPort,
		"grpc_port", m.cfg.Server.GRPCPort,
		"workers", m.cfg.Channel.NumWorkers,
	)
	return nil
}

// Stopped is closed once every background loop has returned. Nil before Start.
func (m *Manager) Stopped() <-chan struct{} {
	return m.stopped
}

// Err returns the first loop error. Valid after Stopped is closed.
func (m *Manager) Err() error {
	return m.err
}
