// Package log is the process-wide structured logger, a thin adapter over
// logrus.
package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

type Logger interface {
	Debug(args ...interface{})
	Debugf(format string, args ...interface{})

	Info(args ...interface{})
	Infof(format string, args ...interface{})

	Warn(args ...interface{})
	Warnf(format string, args ...interface{})

	Error(args ...interface{})
	Errorf(format string, args ...interface{})

	WithField(field string, value interface{}) Logger
	WithFields(fields map[string]interface{}) Logger
	WithError(err error) Logger

	IsDebugEnabled() bool
}

var logger atomic.Pointer[logrusAdapter]

func init() {
	l, err := newLogrus(DefaultConfig(), os.Stderr)
	if err != nil {
		panic(err)
	}
	logger.Store(&logrusAdapter{entry: logrus.NewEntry(l)})
}

// GetLogger returns the process logger. It is usable before Init.
func GetLogger() Logger {
	return logger.Load()
}

// Init replaces the process logger according to cfg.
func Init(cfg *Config) error {
	var out io.Writer
	switch strings.ToLower(cfg.Output) {
	case "", "stderr":
		out = os.Stderr
	case "stdout":
		out = os.Stdout
	case "none":
		out = io.Discard
	default:
		return fmt.Errorf("log: unknown output %q", cfg.Output)
	}

	mw := NewMultiWriter().Add(out)
	if cfg.File != nil && cfg.File.Filename != "" {
		mw.AddFileAppender(*cfg.File)
	}

	l, err := newLogrus(cfg, mw)
	if err != nil {
		return err
	}
	logger.Store(&logrusAdapter{entry: logrus.NewEntry(l)})
	return nil
}

func newLogrus(cfg *Config, out io.Writer) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("log: %w", err)
	}

	timeFormat := cfg.Time
	if timeFormat == "" {
		timeFormat = DefaultTime
	}

	l := logrus.New()
	switch strings.ToLower(cfg.Format) {
	case "", "pattern":
		pattern := cfg.Pattern
		if pattern == "" {
			pattern = DefaultPattern
		}
		l.SetFormatter(&formatter{pattern: pattern, time: timeFormat})
	case "text":
		l.SetFormatter(&prefixed.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: timeFormat,
			ForceFormatting: true,
		})
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{TimestampFormat: timeFormat})
	default:
		return nil, fmt.Errorf("log: unknown format %q", cfg.Format)
	}
	l.SetLevel(level)
	l.SetReportCaller(cfg.Caller)
	l.SetOutput(out)
	return l, nil
}

type logrusAdapter struct {
	entry *logrus.Entry
}

func (l *logrusAdapter) Debug(args ...interface{})                 { l.entry.Debug(args...) }
func (l *logrusAdapter) Debugf(format string, args ...interface{}) { l.entry.Debugf(format, args...) }

func (l *logrusAdapter) Info(args ...interface{})                 { l.entry.Info(args...) }
func (l *logrusAdapter) Infof(format string, args ...interface{}) { l.entry.Infof(format, args...) }

func (l *logrusAdapter) Warn(args ...interface{})                 { l.entry.Warn(args...) }
func (l *logrusAdapter) Warnf(format string, args ...interface{}) { l.entry.Warnf(format, args...) }

func (l *logrusAdapter) Error(args ...interface{})                 { l.entry.Error(args...) }
func (l *logrusAdapter) Errorf(format string, args ...interface{}) { l.entry.Errorf(format, args...) }

func (l *logrusAdapter) WithField(field string, value interface{}) Logger {
	return &logrusAdapter{entry: l.entry.WithField(field, value)}
}
func (l *logrusAdapter) WithFields(fields map[string]interface{}) Logger {
	return &logrusAdapter{entry: l.entry.WithFields(fields)}
}
func (l *logrusAdapter) WithError(err error) Logger {
	return &logrusAdapter{entry: l.entry.WithError(err)}
}

func (l *logrusAdapter) IsDebugEnabled() bool {
	return l.entry.Logger.IsLevelEnabled(logrus.DebugLevel)
}
