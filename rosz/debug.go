package rosz

import (
	"fmt"
	"log/slog"
	"os"
	"runtime/debug"
	"strings"
)

// logger is the package-level structured logger.
// Set ROSZ_LOG=DEBUG|INFO|WARN|ERROR to control verbosity at runtime.
// Default is WARN so production binaries are silent.
var logger = newLogger(os.Getenv("ROSZ_LOG"))

// newLogger builds a stderr text logger at level, falling back to WARN.
func newLogger(level string) *slog.Logger {
	lvl := slog.LevelWarn
	if level != "" {
		_ = lvl.UnmarshalText([]byte(level))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// safeCall runs fn and recovers any panic, returning it as an error.
// User callbacks run on transport goroutines; a panic there must not take
// the session down.
func safeCall(log *slog.Logger, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			log.Error("panic in callback",
				"recover", fmt.Sprintf("%v", r),
				"stack", string(debug.Stack()))
			err = fmt.Errorf("panic in callback: %v", r)
		}
	}()
	return fn()
}

// parseLogLevel accepts ROS severity names (debug, info, warn, error, fatal)
// in any case.
func parseLogLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	switch strings.ToUpper(s) {
	case "FATAL":
		return slog.LevelError, nil
	case "WARNING":
		return slog.LevelWarn, nil
	}
	if err := lvl.UnmarshalText([]byte(s)); err != nil {
		return 0, NewRoszError(ErrorCodeInvalidConfig, fmt.Sprintf("invalid log level %q", s))
	}
	return lvl, nil
}
