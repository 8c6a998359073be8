package log

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"
)

// DefaultSegmentEntries caps how many lines go into one segment file.
const DefaultSegmentEntries = 50_000

// Journal appends JSON lines to zstd-compressed segment files in dir. Segments
// are named <stream>-YYYYMMDD-NNN.jsonl.zst, so Files returns them in write
// order. A new segment starts on each UTC day, after maxEntries lines, and on
// every process start.
type Journal struct {
	dir        string
	stream     string
	maxEntries int
	clock      func() time.Time

	mu  sync.Mutex
	seg *segment
}

type segment struct {
	day     string
	seq     int
	entries int
	file    *os.File
	zw      *zstd.Encoder
	buf     *bufio.Writer
}

func NewJournal(dir, stream string, maxEntries int) *Journal {
	if maxEntries <= 0 {
		maxEntries = DefaultSegmentEntries
	}
	return &Journal{dir: dir, stream: stream, maxEntries: maxEntries, clock: time.Now}
}

// Append writes v as one line and flushes it to the encoder.
func (j *Journal) Append(v any) error {
	line, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("journal %s: %w", j.stream, err)
	}
	line = append(line, '\n')

	j.mu.Lock()
	defer j.mu.Unlock()
	day := j.clock().UTC().Format("20060102")
	if j.seg == nil || j.seg.day != day || j.seg.entries >= j.maxEntries {
		if err := j.roll(day); err != nil {
			return err
		}
	}
	if _, err := j.seg.buf.Write(line); err != nil {
		return err
	}
	j.seg.entries++
	return j.seg.buf.Flush()
}

func (j *Journal) Close() error {
	j.mu.Lock()
	defer j.mu.Unlock()
	if j.seg == nil {
		return nil
	}
	err := j.seg.close()
	j.seg = nil
	return err
}

// roll closes the open segment and opens the next one for day. Caller holds mu.
func (j *Journal) roll(day string) error {
	seq := 0
	if j.seg != nil {
		if j.seg.day == day {
			seq = j.seg.seq + 1
		}
		err := j.seg.close()
		j.seg = nil
		if err != nil {
			return fmt.Errorf("journal %s: close segment: %w", j.stream, err)
		}
	} else {
		existing, err := filepath.Glob(filepath.Join(j.dir, j.stream+"-"+day+"-*.jsonl.zst"))
		if err != nil {
			return err
		}
		seq = len(existing)
	}

	if err := os.MkdirAll(j.dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(j.dir, fmt.Sprintf("%s-%s-%03d.jsonl.zst", j.stream, day, seq))
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	zw, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	j.seg = &segment{day: day, seq: seq, file: f, zw: zw, buf: bufio.NewWriter(zw)}
	return nil
}

func (s *segment) close() error {
	return errors.Join(s.buf.Flush(), s.zw.Close(), s.file.Close())
}
