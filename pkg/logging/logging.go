// pkg/logging/logging.go
// Package logging configures zerolog for the insights CLI and hands out
// component-scoped loggers to the rest of the packages.
package logging

import (
	"fmt"
	"io"
	stdLog "log"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

var (
	// logWriter stores the current log writer globally
	logWriter io.Writer
)

// stdLogWriter forwards output of the standard library logger (used by the
// browser drivers) into zerolog at debug level.
type stdLogWriter struct {
	logger zerolog.Logger
}

func (w *stdLogWriter) Write(p []byte) (n int, err error) {
	message := strings.TrimSuffix(string(p), "\n")

	// "2026/05/23 14:40:15 conn.go:35: message"
	parts := strings.SplitN(message, " ", 4)
	if len(parts) >= 4 {
		stdTime, err := time.Parse("2006/01/02 15:04:05", parts[0]+" "+parts[1])
		if err == nil {
			w.logger.Debug().
				Str("file", strings.TrimSuffix(parts[2], ":")).
				Time("time", stdTime).
				Msg(parts[3])
			return len(p), nil
		}
	}

	w.logger.Debug().Msg(message)
	return len(p), nil
}

func init() {
	zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	logWriter = consoleWriter(os.Stderr)
}

func consoleWriter(out io.Writer) io.Writer {
	return zerolog.ConsoleWriter{
		Out:        out,
		TimeFormat: time.RFC3339,
	}
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Options describes how the global logger should be built.
type Options struct {
	Level  string
	Format string // text | json
	File   string
}

// Setup opens the configured destination and configures the global logger.
// The returned closer releases the log file, if any.
func Setup(opts Options) (io.Closer, error) {
	var (
		out    io.Writer = os.Stderr
		closer io.Closer = nopCloser{}
	)
	if opts.File != "" {
		f, err := os.OpenFile(opts.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, fmt.Errorf("open log file %s: %w", opts.File, err)
		}
		out, closer = f, f
	}

	if strings.EqualFold(opts.Format, "json") {
		SetLogWriter(out)
	} else {
		SetLogWriter(consoleWriter(out))
	}

	if err := ConfigureGlobalLogging(opts.Level); err != nil {
		_ = closer.Close()
		return nil, err
	}
	return closer, nil
}

// ConfigureGlobalLogging configures the global logger from a textual level.
func ConfigureGlobalLogging(levelStr string) error {
	ConfigureGlobal(parseLogLevel(levelStr))
	return nil
}

// ConfigureGlobal sets the global level and rebuilds log.Logger on top of
// the current writer.
func ConfigureGlobal(level zerolog.Level) {
	zerolog.SetGlobalLevel(level)

	logContext := zerolog.New(getLogWriter()).With().Timestamp()
	if level <= zerolog.DebugLevel {
		logContext = logContext.Caller()
	}

	log.Logger = logContext.Logger().Level(level)
	zerolog.DefaultContextLogger = &log.Logger

	stdLog.SetFlags(0)
	stdLog.SetOutput(&stdLogWriter{logger: WithLevelOverride(log.Logger, zerolog.DebugLevel)})
}

// NewLogger returns a logger derived from the global one, tagged with component.
func NewLogger(component string, level zerolog.Level) zerolog.Logger {
	return log.Logger.With().Str("component", component).Logger().Level(level)
}

// NewLoggerWithWriter builds an independent JSON logger writing to w.
func NewLoggerWithWriter(component string, level zerolog.Level, w io.Writer) zerolog.Logger {
	return zerolog.New(w).With().Timestamp().Str("component", component).Logger().Level(level)
}

// Component tags the current global logger with a component name.
func Component(component string) zerolog.Logger {
	return log.Logger.With().Str("component", component).Logger()
}

// LevelForVerbosity raises base by one level per -v flag, bottoming out at trace.
func LevelForVerbosity(base string, verbosity int) string {
	level := parseLogLevel(base)
	for i := 0; i < verbosity && level > zerolog.TraceLevel; i++ {
		level--
	}
	return level.String()
}

// parseLogLevel converts a string log level to zerolog.Level
func parseLogLevel(levelString string) zerolog.Level {
	if levelString == "" {
		levelString = "error"
	}

	level, err := zerolog.ParseLevel(strings.ToLower(levelString))
	if err != nil {
		log.Error().Err(err).
			Str("logLevel", levelString).
			Msg("Invalid log level provided. Defaulting to error level.")
		return zerolog.ErrorLevel
	}
	return level
}

func getLogWriter() io.Writer {
	return logWriter
}

// SetLogWriter sets the global log writer
func SetLogWriter(w io.Writer) {
	logWriter = w
}

// LevelOverrideHook upgrades NoLevel events (stdlib bridge) to a target level
// and drops them when the logger's minimum severity is above it.
type LevelOverrideHook struct {
	minSeverity zerolog.Level
	targetLevel zerolog.Level
}

// NewLevelOverrideHook creates a new LevelOverrideHook instance.
func NewLevelOverrideHook(minSeverity, targetLevel zerolog.Level) *LevelOverrideHook {
	return &LevelOverrideHook{
		minSeverity: minSeverity,
		targetLevel: targetLevel,
	}
}

// Run implements zerolog.Hook.
func (h LevelOverrideHook) Run(e *zerolog.Event, currentLevel zerolog.Level, _ string) {
	if h.minSeverity > h.targetLevel {
		e.Discard()
		return
	}

	if currentLevel == zerolog.NoLevel {
		e.Str("level", h.targetLevel.String())
	}
}

// WithLevelOverride configures a logger to handle NoLevel events and level filtering.
func WithLevelOverride(logger zerolog.Logger, targetLevel zerolog.Level) zerolog.Logger {
	return logger.Hook(NewLevelOverrideHook(logger.GetLevel(), targetLevel))
}
