package realtime

import (
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"
	"github.com/syntrixbase/tripsync/internal/events"
)

// compileFilter compiles a boolean CEL expression over the `event` map.
// An empty expression yields a nil program, which matches everything.
func compileFilter(expr string) (cel.Program, error) {
	if strings.TrimSpace(expr) == "" {
		return nil, nil
	}

	env, err := cel.NewEnv(
		cel.Variable("event", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}

	ast, issues := env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("CEL compile error: %w", issues.Err())
	}

	prg, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("CEL program creation error: %w", err)
	}
	return prg, nil
}

// filterVars flattens an event into the map exposed to filters.
func filterVars(ev *events.ChangeEvent) map[string]interface{} {
	vars := map[string]interface{}{
		"tripId":       ev.TripID,
		"tripNumber":   ev.TripNumber,
		"status":       ev.Status,
		"version":      ev.Version,
		"changeType":   string(ev.ChangeType),
		"lastModified": ev.LastModified,
	}
	if ev.Trip != nil {
		vars["driverId"] = ev.Trip.DriverID
		vars["vehicleId"] = ev.Trip.VehicleID
	}
	return vars
}

// matches reports whether ev passes prg. Evaluation errors count as no match.
func matches(prg cel.Program, ev *events.ChangeEvent) bool {
	if prg == nil {
		return true
	}
	out, _, err := prg.Eval(map[string]interface{}{"event": filterVars(ev)})
	if err != nil {
		return false
	}
	b, ok := out.Value().(bool)
	return ok && b
}
