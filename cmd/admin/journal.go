package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	persistlog "housevault/internal/persistence/log"
)

type journalFilter struct {
	Action    string
	Actor     string
	HouseID   string
	EventKind string
	Since     time.Time
}

func (f journalFilter) audit(e persistlog.AuditEntry) bool {
	if f.Action != "" && e.Action != f.Action {
		return false
	}
	if f.Actor != "" && e.Actor != f.Actor {
		return false
	}
	if f.HouseID != "" && e.HouseID != f.HouseID {
		return false
	}
	return f.Since.IsZero() || !e.Time.Before(f.Since)
}

func (f journalFilter) event(e persistlog.Event) bool {
	if f.EventKind != "" && e.Kind != f.EventKind {
		return false
	}
	return f.Since.IsZero() || !e.Time.Before(f.Since)
}

// dumpJournal prints every matching line from the journal files under dir
// and returns how many matched. The newest file may still be open for
// writing; a truncated tail there is reported but not fatal.
func dumpJournal(dir, kind string, f journalFilter, w io.Writer) (int, error) {
	files, err := persistlog.Files(dir)
	if err != nil {
		return 0, err
	}
	n := 0
	for i, path := range files {
		err := persistlog.ReadFile(path, func(line []byte) error {
			ok, err := matchLine(kind, f, line)
			if err != nil || !ok {
				return err
			}
			n++
			_, err = fmt.Fprintf(w, "%s\n", line)
			return err
		})
		if err != nil {
			if i == len(files)-1 {
				fmt.Fprintf(os.Stderr, "%s: %v (file may still be open)\n", filepath.Base(path), err)
				continue
			}
			return n, fmt.Errorf("%s: %w", filepath.Base(path), err)
		}
	}
	return n, nil
}

func matchLine(kind string, f journalFilter, line []byte) (bool, error) {
	if kind == "events" {
		var e persistlog.Event
		if err := json.Unmarshal(line, &e); err != nil {
			return false, fmt.Errorf("unmarshal: %w", err)
		}
		return f.event(e), nil
	}
	var e persistlog.AuditEntry
	if err := json.Unmarshal(line, &e); err != nil {
		return false, fmt.Errorf("unmarshal: %w", err)
	}
	return f.audit(e), nil
}
