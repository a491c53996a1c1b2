package utils

import (
	"os"

	"github.com/rs/zerolog"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

var logger = zerolog.New(os.Stderr).With().Timestamp().Logger()

// InitLogger configures the global logger. When file is non-empty, output goes
// through a size/age-rotated log file; otherwise it goes to stderr.
func InitLogger(file string, maxSizeMB, maxBackups, maxAgeDays int, compress bool, level string) {
	var w = zerolog.MultiLevelWriter(os.Stderr)
	if file != "" {
		w = zerolog.MultiLevelWriter(&lumberjack.Logger{
			Filename:   file,
			MaxSize:    maxSizeMB,
			MaxBackups: maxBackups,
			MaxAge:     maxAgeDays,
			Compress:   compress,
		})
	}

	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}

	logger = zerolog.New(w).With().Timestamp().Logger().Level(lvl)
}

// SetLogLevel adjusts the level of the already-initialized logger. Unknown
// levels fall back to info.
func SetLogLevel(level string) {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		lvl = zerolog.InfoLevel
	}
	logger = logger.Level(lvl)
}

// SetLoggerForTest swaps the package logger so tests can capture output.
func SetLoggerForTest(l zerolog.Logger) {
	logger = l
}

func logWith(ev *zerolog.Event, msg string, kv []interface{}) {
	for i := 0; i+1 < len(kv); i += 2 {
		key, ok := kv[i].(string)
		if !ok {
			continue
		}
		ev = ev.Interface(key, kv[i+1])
	}
	ev.Msg(msg)
}

// Info logs at info level with alternating key-value pairs.
func Info(msg string, kv ...interface{}) {
	logWith(logger.Info(), msg, kv)
}

// Warn logs at warn level with alternating key-value pairs.
func Warn(msg string, kv ...interface{}) {
	logWith(logger.Warn(), msg, kv)
}

// Error logs at error level with alternating key-value pairs.
func Error(msg string, kv ...interface{}) {
	logWith(logger.Error(), msg, kv)
}
