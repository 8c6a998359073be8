package metrics

import (
	persistlog "housevault/internal/persistence/log"
)

// EventSink is the journal side of metrics: *persistlog.EventLogger.
type EventSink interface {
	WriteEvent(e persistlog.Event) error
}

// Journal turns every recorder call into a journaled event. Write errors are
// reported through onErr and otherwise ignored; metrics never fail a request.
type Journal struct {
	sink  EventSink
	onErr func(error)
}

func NewJournal(sink EventSink, onErr func(error)) *Journal {
	return &Journal{sink: sink, onErr: onErr}
}

func (j *Journal) write(kind string, labels map[string]string, v float64) {
	if j == nil || j.sink == nil {
		return
	}
	if err := j.sink.WriteEvent(persistlog.Event{Kind: kind, Labels: labels, Value: v}); err != nil && j.onErr != nil {
		j.onErr(err)
	}
}

func (j *Journal) RobberyAttempt(success bool) {
	j.write("robbery_attempt", map[string]string{"result": result(success)}, 1)
}

func (j *Journal) HouseEdit(op string, ok bool) {
	j.write("house_edit", map[string]string{"op": op, "result": result(ok)}, 1)
}

func (j *Journal) Eviction(reason string) {
	j.write("eviction", map[string]string{"reason": reason}, 1)
}

func (j *Journal) SetGauge(name string, labels map[string]string, value float64) {
	j.write("gauge:"+name, labels, value)
}

var _ Recorder = (*Journal)(nil)
