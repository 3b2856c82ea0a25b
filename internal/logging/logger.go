package logging

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
)

const (
	Critical = 50
	Fatal    = Critical
	Error    = 40
	Warning  = 30
	Info     = 20
	Debug    = 10
	NotSet   = 0
)

var (
	LogLevel      int = Warning
	logLevelMutex sync.Mutex

	base = newBase(os.Stderr)
)

func init() {
	localEnv := os.Getenv("LOCAL")
	if strings.ToLower(localEnv) == "true" || localEnv == "1" {
		SetLogLevel(Debug)
	}
}

func newBase(w io.Writer) *log.Logger {
	l := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		TimeFormat:      time.RFC3339,
	})
	// Filtering happens against LogLevel; the backend lets everything through.
	l.SetLevel(log.DebugLevel)
	return l
}

// SetOutput redirects all log output. Loggers created earlier follow the change.
func SetOutput(w io.Writer) {
	logLevelMutex.Lock()
	defer logLevelMutex.Unlock()
	base = newBase(w)
}

func SetLogLevel(level int) {
	logLevelMutex.Lock()
	defer logLevelMutex.Unlock()
	LogLevel = level
}

// ParseLevel converts a textual level (debug, info, warn, error, critical) to
// its numeric value. Unknown names map to Warning.
func ParseLevel(name string) int {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "debug":
		return Debug
	case "info":
		return Info
	case "warn", "warning":
		return Warning
	case "error":
		return Error
	case "critical", "fatal":
		return Critical
	default:
		return Warning
	}
}

func Debugf(format string, v ...interface{}) {
	logLevelMutex.Lock()
	defer logLevelMutex.Unlock()
	if LogLevel <= Debug {
		base.Debug(Redact(fmt.Sprintf(format, v...)))
	}
}

func Infof(format string, v ...interface{}) {
	logLevelMutex.Lock()
	defer logLevelMutex.Unlock()
	if LogLevel <= Info {
		base.Info(Redact(fmt.Sprintf(format, v...)))
	}
}

func Warningf(format string, v ...interface{}) {
	logLevelMutex.Lock()
	defer logLevelMutex.Unlock()
	if LogLevel <= Warning {
		base.Warn(Redact(fmt.Sprintf(format, v...)))
	}
}

func Errorf(format string, v ...interface{}) {
	logLevelMutex.Lock()
	defer logLevelMutex.Unlock()
	if LogLevel <= Error {
		base.Error(Redact(fmt.Sprintf(format, v...)))
	}
}

func Criticalf(format string, v ...interface{}) {
	logLevelMutex.Lock()
	defer logLevelMutex.Unlock()
	if LogLevel <= Critical {
		base.Error(Redact(fmt.Sprintf(format, v...)), "severity", "critical")
	}
}

func Fatalf(format string, v ...interface{}) {
	base.Fatal(Redact(fmt.Sprintf(format, v...)))
}

// Logger is a component-scoped structured logger.
type Logger struct {
	prefix string
}

// NewLogger creates a new logger with a given prefix
func NewLogger(prefix string) *Logger {
	return &Logger{prefix: prefix}
}

// Debug logs a debug message
func (l *Logger) Debug(msg string, keyvals ...interface{}) {
	l.log(Debug, msg, keyvals...)
}

// Info logs an informational message
func (l *Logger) Info(msg string, keyvals ...interface{}) {
	l.log(Info, msg, keyvals...)
}

// Warn logs a warning message
func (l *Logger) Warn(msg string, keyvals ...interface{}) {
	l.log(Warning, msg, keyvals...)
}

// Error logs an error message
func (l *Logger) Error(msg string, keyvals ...interface{}) {
	l.log(Error, msg, keyvals...)
}

func (l *Logger) log(level int, msg string, keyvals ...interface{}) {
	logLevelMutex.Lock()
	defer logLevelMutex.Unlock()
	if LogLevel > level {
		return
	}

	out := base.WithPrefix(l.prefix)
	msg = Redact(msg)
	keyvals = redactKeyvals(keyvals)

	switch level {
	case Debug:
		out.Debug(msg, keyvals...)
	case Info:
		out.Info(msg, keyvals...)
	case Warning:
		out.Warn(msg, keyvals...)
	default:
		out.Error(msg, keyvals...)
	}
}
