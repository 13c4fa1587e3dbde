package services

import (
	"context"
	"errors"
	"fmt"
)

// Shutdown stops the process in four phases:
//  1. readiness off and streaming clients disconnected
//  2. HTTP and gRPC listeners drained, so no new mutations or relay batches,
//     then queued change events handed to the channel
//  3. background loops cancelled; the consumer finishes in-flight messages
//  4. bus, cache and store clients closed
//
// ctx bounds the waits in phases 1 to 3. Closing always runs.
func (m *Manager) Shutdown(ctx context.Context) error {
	var errs []error

	// Phase 1
	if m.server != nil {
		m.server.SetServing(false)
	}
	if m.realtimeCancel != nil {
		m.realtimeCancel()
		select {
		case <-m.realtimeDone:
		case <-ctx.Done():
			m.logger.Warn("Timeout waiting for realtime hub")
		}
	}

	// Phase 2
	if m.server != nil {
		m.logger.Info("Stopping server...")
		if err := m.server.Stop(ctx); err != nil {
			errs = append(errs, fmt.Errorf("stop server: %w", err))
		}
	}
	if m.events != nil {
		if err := m.events.Close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("flush change events: %w", err))
		}
		m.events = nil
	}

	// Phase 3
	if m.pipelineCancel != nil {
		m.logger.Info("Waiting for background tasks to finish...")
		m.pipelineCancel()
		select {
		case <-m.stopped:
			m.logger.Info("Background tasks finished")
		case <-ctx.Done():
			m.logger.Warn("Timeout waiting for background tasks")
		}
	}

	// Phase 4
	if err := m.closeClients(context.WithoutCancel(ctx)); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}
