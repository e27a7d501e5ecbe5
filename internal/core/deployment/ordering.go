package deployment

import (
	"github.com/artpar/honeymesh/internal/core/compose"
)

// =============================================================================
// Service Start Ordering
// =============================================================================

// StartOrder arranges services so that every service starts after its
// dependencies. The log pipeline demands it: logstash cannot accept events
// before elasticsearch is up, and cowrie should not emit before filebeat
// ships.
//
// The order is deterministic: services are placed in repeated sweeps over
// the input, appending each service once all of its dependencies are
// already placed, so ties resolve in input order. A dependency that names
// no service in the slice is treated as satisfied. If a cycle survives
// parsing, the services caught in it are appended in input order rather
// than dropped.
//
// Example:
//
//	services := []compose.Service{
//	    {Name: "cowrie", DependsOn: []string{"filebeat"}},
//	    {Name: "filebeat", DependsOn: []string{"logstash"}},
//	    {Name: "logstash", DependsOn: []string{"elasticsearch"}},
//	    {Name: "elasticsearch"},
//	}
//	ordered := StartOrder(services)
//	// elasticsearch, logstash, filebeat, cowrie
func StartOrder(services []compose.Service) []compose.Service {
	if len(services) == 0 {
		return services
	}

	known := make(map[string]bool, len(services))
	for _, svc := range services {
		known[svc.Name] = true
	}

	placed := make(map[string]bool, len(services))
	ordered := make([]compose.Service, 0, len(services))

	for len(ordered) < len(services) {
		progressed := false
		for _, svc := range services {
			if placed[svc.Name] || !depsPlaced(svc, known, placed) {
				continue
			}
			placed[svc.Name] = true
			ordered = append(ordered, svc)
			progressed = true
		}
		if !progressed {
			break
		}
	}

	// Cycle fallback: append whatever could not be placed, input order.
	for _, svc := range services {
		if !placed[svc.Name] {
			ordered = append(ordered, svc)
		}
	}

	return ordered
}

// depsPlaced reports whether every dependency of svc that names a known
// service has already been placed.
func depsPlaced(svc compose.Service, known, placed map[string]bool) bool {
	for _, dep := range svc.DependsOn {
		if known[dep] && !placed[dep] {
			return false
		}
	}
	return true
}
