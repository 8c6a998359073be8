package log

import (
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// Event is one metrics event: a counter bump or a gauge sample.
type Event struct {
	ID     string            `json:"id"`
	Time   time.Time         `json:"time"`
	Kind   string            `json:"kind"`
	Labels map[string]string `json:"labels,omitempty"`
	Value  float64           `json:"value"`
}

// EventLogger journals metrics events under <dir>/events.
type EventLogger struct{ j *Journal }

func NewEventLogger(dir string) *EventLogger {
	return &EventLogger{j: NewJournal(filepath.Join(dir, "events"), "events", 0)}
}

func (l *EventLogger) WriteEvent(e Event) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.Time.IsZero() {
		e.Time = l.j.clock().UTC()
	}
	return l.j.Append(e)
}

func (l *EventLogger) Close() error { return l.j.Close() }

// AuditEntry records one house mutation or session transition.
type AuditEntry struct {
	Time    time.Time `json:"time"`
	Actor   string    `json:"actor"`
	HouseID string    `json:"house_id,omitempty"`
	Action  string    `json:"action"`
	Pos     *[2]int   `json:"pos,omitempty"`
	From    string    `json:"from,omitempty"`
	To      string    `json:"to,omitempty"`
	Reason  string    `json:"reason,omitempty"`
}

// AuditLogger journals AuditEntry lines under <dir>/audit.
type AuditLogger struct{ j *Journal }

func NewAuditLogger(dir string) *AuditLogger {
	return &AuditLogger{j: NewJournal(filepath.Join(dir, "audit"), "audit", 0)}
}

func (l *AuditLogger) WriteAudit(e AuditEntry) error {
	if e.Time.IsZero() {
		e.Time = l.j.clock().UTC()
	}
	return l.j.Append(e)
}

func (l *AuditLogger) Close() error { return l.j.Close() }
