package memory

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMatchSubject(t *testing.T) {
	tests := []struct {
		pattern string
		subject string
		want    bool
	}{
		{"TRIPS.changes.VDE", "TRIPS.changes.VDE", true},
		{"TRIPS.changes.VDE", "TRIPS.changes.VDF", false},
		{"TRIPS.changes.*", "TRIPS.changes.VDE", true},
		{"TRIPS.changes.*", "TRIPS.changes.a.b", false},
		{"TRIPS.*.VDE", "TRIPS.changes.VDE", true},
		{"TRIPS.>", "TRIPS.changes.VDE", true},
		{"TRIPS.>", "TRIPS", false},
		{"TRIPS_DLQ.>", "TRIPS.changes.VDE", false},
		{">", "anything.at.all", true},
		{"TRIPS.changes", "TRIPS.changes.VDE", false},
		{"", "TRIPS", false},
		{"TRIPS", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.pattern+"|"+tt.subject, func(t *testing.T) {
			assert.Equal(t, tt.want, matchSubject(tt.pattern, tt.subject))
		})
	}
}
