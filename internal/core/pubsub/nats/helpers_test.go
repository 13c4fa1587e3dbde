package nats

import (
	"os"
	"testing"
)

// liveNATSURL returns the URL of a JetStream-enabled server for integration
// tests, skipping the test when none is configured.
func liveNATSURL(t *testing.T) string {
	t.Helper()
	url := os.Getenv("TRIPSYNC_TEST_NATS_URL")
	if url == "" {
		t.Skip("TRIPSYNC_TEST_NATS_URL not set, skipping NATS integration test")
	}
	return url
}
