// Package logging configures the global zerolog logger used across e2ekit.
// Packages log through github.com/rs/zerolog/log directly; this package only
// owns level selection and the console output format.
package logging

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Level names accepted by SetLevel. "none" disables logging entirely.
const (
	LevelNone  = "none"
	LevelError = "error"
	LevelWarn  = "warn"
	LevelInfo  = "info"
	LevelDebug = "debug"
)

var levels = map[string]zerolog.Level{
	LevelNone:  zerolog.Disabled,
	LevelError: zerolog.ErrorLevel,
	LevelWarn:  zerolog.WarnLevel,
	LevelInfo:  zerolog.InfoLevel,
	LevelDebug: zerolog.DebugLevel,
}

func init() {
	log.Logger = zerolog.New(zerolog.ConsoleWriter{
		Out:        os.Stderr,
		TimeFormat: time.TimeOnly,
	}).With().Timestamp().Logger().Level(zerolog.ErrorLevel)
}

// ParseLevel maps a level name to a zerolog level. Unknown names are an error.
func ParseLevel(name string) (zerolog.Level, error) {
	l, ok := levels[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return zerolog.Disabled, fmt.Errorf("unknown log level %q", name)
	}
	return l, nil
}

// SetLevel changes the level of the global logger. Unknown names disable
// logging, matching the "none" level.
func SetLevel(name string) {
	l, err := ParseLevel(name)
	if err != nil {
		l = zerolog.Disabled
	}
	log.Logger = log.Logger.Level(l)
}

// DetailError logs err along with every error it wraps, outermost first.
func DetailError(err error) {
	if err == nil {
		return
	}
	chain := []string{}
	for e := errors.Unwrap(err); e != nil; e = errors.Unwrap(e) {
		chain = append(chain, e.Error())
	}
	log.Error().Strs("causes", chain).Msg(err.Error())
}

// KeyValueLogger forwards leveled, key/value style logging (as used by
// HTTP client libraries) to the global logger.
type KeyValueLogger struct {
	Component string
}

func (k KeyValueLogger) Error(msg string, keysAndValues ...any) {
	k.write(log.Error(), msg, keysAndValues)
}

func (k KeyValueLogger) Warn(msg string, keysAndValues ...any) {
	k.write(log.Warn(), msg, keysAndValues)
}

func (k KeyValueLogger) Info(msg string, keysAndValues ...any) {
	k.write(log.Info(), msg, keysAndValues)
}

func (k KeyValueLogger) Debug(msg string, keysAndValues ...any) {
	k.write(log.Debug(), msg, keysAndValues)
}

func (k KeyValueLogger) write(e *zerolog.Event, msg string, keysAndValues []any) {
	if k.Component != "" {
		e = e.Str("component", k.Component)
	}
	for i := 0; i+1 < len(keysAndValues); i += 2 {
		e = e.Interface(fmt.Sprint(keysAndValues[i]), keysAndValues[i+1])
	}
	e.Msg(msg)
}
