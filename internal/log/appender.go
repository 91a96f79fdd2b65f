package log

import (
	"io"

	"go.uber.org/multierr"
)

// MultiWriter copies every log line to each appender. A failing appender
// does not stop the others; their errors are combined.
type MultiWriter struct {
	appenders []io.Writer
}

func NewMultiWriter() *MultiWriter {
	return &MultiWriter{}
}

// Add registers an appender. Nil writers are ignored.
func (m *MultiWriter) Add(w io.Writer) *MultiWriter {
	if w != nil {
		m.appenders = append(m.appenders, w)
	}
	return m
}

// Len returns the number of appenders.
func (m *MultiWriter) Len() int { return len(m.appenders) }

func (m *MultiWriter) Write(p []byte) (int, error) {
	var errs error
	for _, w := range m.appenders {
		_, err := w.Write(p)
		errs = multierr.Append(errs, err)
	}
	return len(p), errs
}
