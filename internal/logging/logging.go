// Package logging configures the process-wide logrus logger.
package logging

import (
	"fmt"
	"io"

	log "github.com/sirupsen/logrus"
)

// Setup applies level and format to the standard logrus logger.
func Setup(w io.Writer, level, format string) error {
	lvl, err := log.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	log.SetLevel(lvl)
	log.SetOutput(w)

	switch format {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "text", "":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("unknown log format %q", format)
	}
	return nil
}

// Component returns a logger tagged with the given component name.
func Component(name string) *log.Entry {
	return log.WithField("component", name)
}

// Leveled adapts a logrus entry to the key/value logger interface used by
// retryablehttp.
type Leveled struct {
	Entry *log.Entry
}

func (l Leveled) Error(msg string, keysAndValues ...interface{}) {
	l.with(keysAndValues).Error(msg)
}

func (l Leveled) Info(msg string, keysAndValues ...interface{}) {
	l.with(keysAndValues).Info(msg)
}

func (l Leveled) Debug(msg string, keysAndValues ...interface{}) {
	l.with(keysAndValues).Debug(msg)
}

func (l Leveled) Warn(msg string, keysAndValues ...interface{}) {
	l.with(keysAndValues).Warn(msg)
}

func (l Leveled) with(kv []interface{}) *log.Entry {
	fields := make(log.Fields, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		fields[fmt.Sprint(kv[i])] = kv[i+1]
	}
	if len(kv)%2 == 1 {
		fields["extra"] = kv[len(kv)-1]
	}
	return l.Entry.WithFields(fields)
}
