// Package metrics collects game counters and gauges and renders them in the
// Prometheus text format. Components receive a Recorder explicitly.
package metrics

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
)

type Recorder interface {
	RobberyAttempt(success bool)
	HouseEdit(op string, ok bool)
	Eviction(reason string)
	SetGauge(name string, labels map[string]string, value float64)
}

// Nop discards everything.
type Nop struct{}

func (Nop) RobberyAttempt(bool) {}
func (Nop) HouseEdit(string, bool) {}
func (Nop) Eviction(string) {}
func (Nop) SetGauge(string, map[string]string, float64) {}

var (
	_ Recorder = Nop{}
	_ Recorder = (*Registry)(nil)
	_ Recorder = Multi(nil)
)

// Multi fans every call out to each recorder in order.
type Multi []Recorder

func (m Multi) RobberyAttempt(success bool) {
	for _, r := range m {
		r.RobberyAttempt(success)
	}
}

func (m Multi) HouseEdit(op string, ok bool) {
	for _, r := range m {
		r.HouseEdit(op, ok)
	}
}

func (m Multi) Eviction(reason string) {
	for _, r := range m {
		r.Eviction(reason)
	}
}

func (m Multi) SetGauge(name string, labels map[string]string, value float64) {
	for _, r := range m {
		r.SetGauge(name, labels, value)
	}
}

type series struct {
	name   string
	labels string
}

type metricInfo struct {
	help string
	kind string
}

var known = map[string]metricInfo{
	"robbery_attempts_total": {help: "Robbery attempts by result.", kind: "counter"},
	"house_edits_total":      {help: "House edits by operation and result.", kind: "counter"},
	"evictions_total":        {help: "Session evictions by reason.", kind: "counter"},
	"players":                {help: "Registered players by activity.", kind: "gauge"},
	"houses":                 {help: "Houses by abandonment state.", kind: "gauge"},
	"occupancy":              {help: "Open sessions by occupant role.", kind: "gauge"},
}

// Registry is the in-process Recorder backing /metrics.
type Registry struct {
	prefix string

	mu       sync.Mutex
	counters map[series]float64
	gauges   map[series]float64
}

func NewRegistry(prefix string) *Registry {
	return &Registry{
		prefix:   prefix,
		counters: map[series]float64{},
		gauges:   map[series]float64{},
	}
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

func (r *Registry) add(name string, labels map[string]string) {
	r.mu.Lock()
	r.counters[series{name: name, labels: formatLabels(labels)}]++
	r.mu.Unlock()
}

func (r *Registry) RobberyAttempt(success bool) {
	r.add("robbery_attempts_total", map[string]string{"result": result(success)})
}

func (r *Registry) HouseEdit(op string, ok bool) {
	r.add("house_edits_total", map[string]string{"op": op, "result": result(ok)})
}

func (r *Registry) Eviction(reason string) {
	r.add("evictions_total", map[string]string{"reason": reason})
}

func (r *Registry) SetGauge(name string, labels map[string]string, value float64) {
	r.mu.Lock()
	r.gauges[series{name: name, labels: formatLabels(labels)}] = value
	r.mu.Unlock()
}

// Counter returns the current value of one counter series, for tests and
// the admin state dump.
func (r *Registry) Counter(name string, labels map[string]string) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counters[series{name: name, labels: formatLabels(labels)}]
}

func (r *Registry) Gauge(name string, labels map[string]string) float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gauges[series{name: name, labels: formatLabels(labels)}]
}

// WritePrometheus renders every series in exposition format, grouped by
// metric name.
func (r *Registry) WritePrometheus(w io.Writer) error {
	r.mu.Lock()
	all := make(map[string][]string)
	kinds := make(map[string]string)
	for s, v := range r.counters {
		all[s.name] = append(all[s.name], sample(r.prefix+s.name, s.labels, v))
		kinds[s.name] = "counter"
	}
	for s, v := range r.gauges {
		all[s.name] = append(all[s.name], sample(r.prefix+s.name, s.labels, v))
		kinds[s.name] = "gauge"
	}
	r.mu.Unlock()

	names := make([]string, 0, len(all))
	for n := range all {
		names = append(names, n)
	}
	sort.Strings(names)
	for _, n := range names {
		info, ok := known[n]
		if !ok {
			info = metricInfo{help: n, kind: kinds[n]}
		}
		lines := all[n]
		sort.Strings(lines)
		if _, err := fmt.Fprintf(w, "# HELP %s%s %s\n# TYPE %s%s %s\n", r.prefix, n, info.help, r.prefix, n, info.kind); err != nil {
			return err
		}
		for _, l := range lines {
			if _, err := io.WriteString(w, l); err != nil {
				return err
			}
		}
	}
	return nil
}

func sample(name, labels string, v float64) string {
	if labels == "" {
		return fmt.Sprintf("%s %g\n", name, v)
	}
	return fmt.Sprintf("%s{%s} %g\n", name, labels, v)
}

func formatLabels(labels map[string]string) string {
	if len(labels) == 0 {
		return ""
	}
	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s=%q", k, labels[k]))
	}
	return strings.Join(parts, ",")
}
