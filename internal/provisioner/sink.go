package provisioner

import (
	"fmt"
	"os"
	"strings"
	"time"
)

// Sink records launch commands and their raw output for later diagnosis.
// Nothing reads the records back.
type Sink interface {
	Record(command []string, output []byte) error
}

// DiscardSink drops every record.
type DiscardSink struct{}

func (DiscardSink) Record([]string, []byte) error { return nil }

// MultiSink records to every sink in order and stops at the first error.
type MultiSink []Sink

func (m MultiSink) Record(command []string, output []byte) error {
	for _, s := range m {
		if err := s.Record(command, output); err != nil {
			return err
		}
	}
	return nil
}

// FileSink appends one line per record to Path. The file is opened and
// closed on every record so concurrent invocations can share it; each line
// is written with a single append.
type FileSink struct {
	Path string
	// Tag is written in front of every line, e.g. an invocation id.
	Tag string

	now func() time.Time
}

// NewFileSink returns a FileSink appending to path.
func NewFileSink(path, tag string) *FileSink {
	return &FileSink{Path: path, Tag: tag, now: time.Now}
}

func (s *FileSink) Record(command []string, output []byte) error {
	f, err := os.OpenFile(s.Path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open log file: %w", err)
	}

	if _, err := f.WriteString(s.line(command, output)); err != nil {
		f.Close()
		return fmt.Errorf("append log file: %w", err)
	}
	return f.Close()
}

func (s *FileSink) line(command []string, output []byte) string {
	now := time.Now
	if s.now != nil {
		now = s.now
	}

	var b strings.Builder
	b.WriteString(now().UTC().Format(time.RFC3339))
	if s.Tag != "" {
		b.WriteString(" [")
		b.WriteString(s.Tag)
		b.WriteString("]")
	}
	fmt.Fprintf(&b, " %s: %q\n", strings.Join(command, " "), strings.TrimSpace(string(output)))
	return b.String()
}
