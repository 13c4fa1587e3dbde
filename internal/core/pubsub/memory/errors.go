// Package memory is the in-process pubsub provider used in standalone mode.
package memory

import "errors"

var (
	ErrEngineClosed      = errors.New("memory pubsub: engine closed")
	ErrPatternSubscribed = errors.New("memory pubsub: pattern already subscribed")
)
