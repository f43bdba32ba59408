package plugin

import (
	"fmt"
	"strings"
	"time"

	"github.com/crlotwhite/libetude-sub011/internal/events"
)

// Report aggregates registry and resolution diagnostics for a point in
// time, per SPEC_FULL.md §4.11.
type Report struct {
	Total         int
	Resolved      int
	Missing       int
	Incompatible  int
	Circular      int
	Vulnerable    int
	Outdated      int
	GeneratedAt   time.Time
}

// BuildReport aggregates the registry's live records against a resolution
// pass. Vulnerability and outdated counts rely on the caller-supplied
// advisory lists, since no CVE feed or update source is wired into this
// module.
func BuildReport(reg *Registry, results []ResolvedResult, vulnerableNames, outdatedNames []string, now time.Time) Report {
	r := Report{
		Total:       len(reg.All()),
		Vulnerable:  len(vulnerableNames),
		Outdated:    len(outdatedNames),
		GeneratedAt: now,
	}
	for _, res := range results {
		switch res.Status {
		case StatusResolved:
			r.Resolved++
		case StatusMissing:
			r.Missing++
		case StatusIncompatible:
			r.Incompatible++
		case StatusCircular:
			r.Circular++
		}
	}
	return r
}

// Structured exports the report as a plain map, suitable for JSON encoding
// or event payloads.
func (r Report) Structured() map[string]any {
	return map[string]any{
		"total":        r.Total,
		"resolved":     r.Resolved,
		"missing":      r.Missing,
		"incompatible": r.Incompatible,
		"circular":     r.Circular,
		"vulnerable":   r.Vulnerable,
		"outdated":     r.Outdated,
		"generated_at": r.GeneratedAt,
	}
}

// HumanReadable renders the same fields as a short text summary.
func (r Report) HumanReadable() string {
	var b strings.Builder
	fmt.Fprintf(&b, "plugin report @ %s\n", r.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(&b, "  total:        %d\n", r.Total)
	fmt.Fprintf(&b, "  resolved:     %d\n", r.Resolved)
	fmt.Fprintf(&b, "  missing:      %d\n", r.Missing)
	fmt.Fprintf(&b, "  incompatible: %d\n", r.Incompatible)
	fmt.Fprintf(&b, "  circular:     %d\n", r.Circular)
	fmt.Fprintf(&b, "  vulnerable:   %d\n", r.Vulnerable)
	fmt.Fprintf(&b, "  outdated:     %d\n", r.Outdated)
	return b.String()
}

// PublishResolution fires dependencies_resolved and, where applicable,
// updates_available / security_vulnerabilities_found events for a freshly
// built report.
func PublishResolution(sink *events.Sink, r Report, vulnerableNames, outdatedNames []string) {
	if sink == nil {
		return
	}
	sink.Publish(events.Event{Kind: events.KindDependenciesResolved, Payload: r.Structured()})
	if len(outdatedNames) > 0 {
		sink.Publish(events.Event{Kind: events.KindUpdatesAvailable, Payload: outdatedNames})
	}
	if len(vulnerableNames) > 0 {
		sink.Publish(events.Event{Kind: events.KindVulnerabilitiesFound, Payload: vulnerableNames})
	}
}
