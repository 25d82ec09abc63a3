package incident

import "strings"

// Priority is the ticket severity derived from incident text. There is no
// Low in this design: anything that does not match a keyword set stays
// Medium so a misclassified incident is never buried.
type Priority string

const (
	PriorityHigh   Priority = "High"
	PriorityMedium Priority = "Medium"
)

// highKeywords is checked before mediumKeywords; an incident mentioning
// both "prod" and "staging" is High.
var highKeywords = []string{
	"critical", "prod", "5xx",
	"production", "billing", "database",
	"failed",
}

var mediumKeywords = []string{
	"staging", "beta", "retry",
	"warning", "latency", "throttle",
}

// DecidePriority derives a priority from the incident's text fields via a
// case-insensitive substring match. Empty fields are skipped.
func DecidePriority(title, metric, reason, namespace string) Priority {
	var parts []string
	for _, s := range []string{title, metric, reason, namespace} {
		if s != "" {
			parts = append(parts, s)
		}
	}
	blob := strings.ToLower(strings.Join(parts, " "))

	for _, k := range highKeywords {
		if strings.Contains(blob, k) {
			return PriorityHigh
		}
	}
	for _, k := range mediumKeywords {
		if strings.Contains(blob, k) {
			return PriorityMedium
		}
	}
	return PriorityMedium
}

// Decide is DecidePriority applied to an Incident.
func Decide(in *Incident) Priority {
	return DecidePriority(in.Title, in.Metric, in.Reason, in.Namespace)
}
