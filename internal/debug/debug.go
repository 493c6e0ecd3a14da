package debug

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Log levels
const (
	LevelError   = 0 // Errors only
	LevelWarning = 1 // Policy warnings (default)
	LevelStatus  = 2 // State transitions, downloads, keep-alives
	LevelVerbose = 3 // Property events and transport details
)

// Logger is the leveled sink shared by the session, the input reader and
// the web server. It is built once in main and passed down explicitly.
type Logger struct {
	level int
	zl    zerolog.Logger
}

// New creates a logger writing human-readable lines to out.
// Extra writers receive the raw JSON events; writers implementing
// zerolog.LevelWriter also receive the event level.
func New(level int, out io.Writer, extra ...io.Writer) *Logger {
	level = clampLevel(level)

	writers := make([]io.Writer, 0, len(extra)+1)
	if out != nil {
		writers = append(writers, zerolog.ConsoleWriter{
			Out:         out,
			NoColor:     true,
			TimeFormat:  "15:04:05.000",
			FormatLevel: formatLevel,
		})
	}
	writers = append(writers, extra...)

	zl := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(zerologLevel(level)).
		With().
		Timestamp().
		Logger()

	return &Logger{level: level, zl: zl}
}

// Discard returns a logger that drops everything.
func Discard() *Logger {
	return &Logger{level: LevelError, zl: zerolog.Nop()}
}

// With returns a child logger annotated with key=value on every line.
func (l *Logger) With(key, value string) *Logger {
	return &Logger{level: l.level, zl: l.zl.With().Str(key, value).Logger()}
}

// Level returns the configured level.
func (l *Logger) Level() int {
	return l.level
}

// IsEnabled returns true if the logger level is >= the requested level.
func (l *Logger) IsEnabled(minLevel int) bool {
	return l.level >= minLevel
}

// Verbose prints a verbose message.
func (l *Logger) Verbose(format string, args ...interface{}) {
	l.zl.Debug().Msgf(format, args...)
}

// Status prints a state transition or progress message.
func (l *Logger) Status(format string, args ...interface{}) {
	l.zl.Info().Msgf(format, args...)
}

// Warning prints a non-fatal policy warning.
func (l *Logger) Warning(format string, args ...interface{}) {
	l.zl.Warn().Msgf(format, args...)
}

// Errorf prints an error message.
func (l *Logger) Errorf(format string, args ...interface{}) {
	l.zl.Error().Msgf(format, args...)
}

// Error prints err at error level.
func (l *Logger) Error(err error) {
	if err == nil {
		return
	}
	l.zl.Error().Msg(err.Error())
}

// Value prints a named configuration value (status level).
func (l *Logger) Value(name string, value interface{}) {
	l.zl.Info().Msgf("  %s = %v", name, value)
}

// Section prints a section separator (verbose level).
func (l *Logger) Section(name string) {
	if !l.IsEnabled(LevelVerbose) {
		return
	}
	l.zl.Debug().Msg("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	l.zl.Debug().Msgf("  %s", name)
	l.zl.Debug().Msg("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
}

// LevelName returns the bracketed prefix name for a zerolog level.
func LevelName(lvl zerolog.Level) string {
	switch lvl {
	case zerolog.DebugLevel, zerolog.TraceLevel:
		return "verbose"
	case zerolog.InfoLevel:
		return "status"
	case zerolog.WarnLevel:
		return "warning"
	case zerolog.ErrorLevel, zerolog.FatalLevel, zerolog.PanicLevel:
		return "error"
	default:
		return lvl.String()
	}
}

func formatLevel(i interface{}) string {
	s, ok := i.(string)
	if !ok {
		return fmt.Sprintf("[%v]", i)
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(s))
	if err != nil {
		return "[" + s + "]"
	}
	return "[" + LevelName(lvl) + "]"
}

func zerologLevel(level int) zerolog.Level {
	switch level {
	case LevelError:
		return zerolog.ErrorLevel
	case LevelWarning:
		return zerolog.WarnLevel
	case LevelStatus:
		return zerolog.InfoLevel
	default:
		return zerolog.DebugLevel
	}
}

func clampLevel(level int) int {
	if level < LevelError {
		return LevelError
	}
	if level > LevelVerbose {
		return LevelVerbose
	}
	return level
}

func init() {
	zerolog.TimeFieldFormat = time.RFC3339Nano
}
