package logging

import (
	"log"
	"log/slog"
	"os"
	"strings"

	"github.com/phsym/console-slog"
)

var (
	Logger *slog.Logger
	level  = new(slog.LevelVar) // dynamic level if we ever want to adjust it
)

func init() {
	Init()
}

// Init builds the process logger from LOG_FORMAT ("text" | "json") and
// LOG_LEVEL ("debug" | "info" | "warn" | "error"). Runs once at package
// init; calling it again after changing the environment rebuilds the
// logger (tests use this).
func Init() {
	switch strings.ToLower(os.Getenv("LOG_LEVEL")) {
	case "debug":
		level.Set(slog.LevelDebug)
	case "warn":
		level.Set(slog.LevelWarn)
	case "error":
		level.Set(slog.LevelError)
	default:
		level.Set(slog.LevelInfo)
	}

	var handler slog.Handler
	if os.Getenv("LOG_FORMAT") == "json" {
		handler = slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	} else {
		handler = console.NewHandler(os.Stderr, &console.HandlerOptions{Level: level})
	}

	Logger = slog.New(handler)
}

func Debug(msg string, args ...any) { Logger.Debug(msg, args...) }
func Info(msg string, args ...any)  { Logger.Info(msg, args...) }
func Warn(msg string, args ...any)  { Logger.Warn(msg, args...) }
func Error(msg string, args ...any) { Logger.Error(msg, args...) }

// Fatal logs at error level and exits non-zero.
func Fatal(msg string, args ...any) {
	Logger.Error(msg, args...)
	os.Exit(1)
}

type slogWriter struct {
	logger *slog.Logger
}

func (w slogWriter) Write(p []byte) (int, error) {
	w.logger.Debug(strings.TrimRight(string(p), "\n"))
	return len(p), nil
}

// WrapSlog adapts the process logger to the *log.Logger the goburrow
// handlers expect for wire-level debug output. The given args become
// attributes on every line.
func WrapSlog(args ...any) *log.Logger {
	return log.New(slogWriter{logger: Logger.With(args...)}, "", 0)
}
