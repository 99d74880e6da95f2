package stage

import (
	"strings"

	"mediaferry/internal/deps"
)

// Health is a handler's readiness as shown in the daemon status.
type Health struct {
	Name   string
	Ready  bool
	Detail string
}

// Healthy marks name as able to take tasks.
func Healthy(name string) Health {
	return Health{Name: name, Ready: true}
}

// Unhealthy marks name as unable to take tasks and says why.
func Unhealthy(name, detail string) Health {
	return Health{Name: name, Detail: detail}
}

// FromDependencies derives readiness from a binary check. Optional tools
// never make the handler unready.
func FromDependencies(name string, statuses []deps.Status) Health {
	var problems []string
	for _, status := range deps.Missing(statuses) {
		detail := status.Detail
		if detail == "" {
			detail = status.Name + " not available"
		}
		problems = append(problems, detail)
	}
	if len(problems) == 0 {
		return Healthy(name)
	}
	return Unhealthy(name, strings.Join(problems, "; "))
}
