package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

type Level string

const (
	LevelDebug Level = "DEBUG"
	LevelInfo  Level = "INFO"
	LevelWarn  Level = "WARN"
	LevelError Level = "ERROR"
)

const consoleTimeFormat = "2006-01-02T15:04:05.000Z07:00"

var (
	mu         sync.RWMutex
	logger     zerolog.Logger
	loggerOnce sync.Once
)

// initLogger initializes the global logger to write to stderr with timestamps.
func initLogger() {
	loggerOnce.Do(func() {
		zerolog.TimeFieldFormat = time.RFC3339Nano
		zerolog.ErrorFieldName = "err"
		logger = newLogger(os.Stderr, "console", zerolog.InfoLevel)
	})
}

func newLogger(w io.Writer, format string, level zerolog.Level) zerolog.Logger {
	if format != "json" {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: consoleTimeFormat}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// Configure replaces the global logger. format is "console" (default) or "json".
func Configure(w io.Writer, format string, l Level) {
	initLogger()
	if w == nil {
		w = os.Stderr
	}
	mu.Lock()
	logger = newLogger(w, strings.ToLower(strings.TrimSpace(format)), toZerolog(l))
	mu.Unlock()
}

func SetLevel(l Level) {
	initLogger()
	mu.Lock()
	logger = logger.Level(toZerolog(l))
	mu.Unlock()
}

// ParseLevel maps a config string to a Level; unknown values become INFO.
func ParseLevel(s string) Level {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "DEBUG", "TRACE":
		return LevelDebug
	case "WARN", "WARNING":
		return LevelWarn
	case "ERROR":
		return LevelError
	default:
		return LevelInfo
	}
}

func Debug(msg string, kv ...any) {
	logWithLevel(zerolog.DebugLevel, msg, nil, kv...)
}

func Info(msg string, kv ...any) {
	logWithLevel(zerolog.InfoLevel, msg, nil, kv...)
}

func Warn(msg string, kv ...any) {
	logWithLevel(zerolog.WarnLevel, msg, nil, kv...)
}

func Error(msg string, err error, kv ...any) {
	logWithLevel(zerolog.ErrorLevel, msg, err, kv...)
}

func logWithLevel(level zerolog.Level, msg string, err error, kv ...any) {
	initLogger()
	mu.RLock()
	zl := logger
	mu.RUnlock()

	e := zl.WithLevel(level)
	if e == nil {
		return
	}
	if err != nil {
		e = e.Err(err)
	}
	appendKVs(e, kv...)
	e.Msg(msg)
}

func appendKVs(e *zerolog.Event, kv ...any) {
	// Expect kv as pairs: key, value, key, value, ...
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		switch v := kv[i+1].(type) {
		case string:
			e.Str(key, v)
		case int:
			e.Int(key, v)
		case int64:
			e.Int64(key, v)
		case bool:
			e.Bool(key, v)
		case time.Duration:
			e.Dur(key, v)
		case time.Time:
			e.Time(key, v)
		case error:
			e.AnErr(key, v)
		case fmt.Stringer:
			e.Stringer(key, v)
		default:
			e.Interface(key, v)
		}
	}
	// If odd number of args, last one is ignored.
}

func toZerolog(l Level) zerolog.Level {
	switch l {
	case LevelDebug:
		return zerolog.DebugLevel
	case LevelWarn:
		return zerolog.WarnLevel
	case LevelError:
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}
