package logger

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/AlibekovAA/social-auth/internal/common/constants"
)

type Fields map[string]any

type LogLevel int32

const (
	DEBUG LogLevel = iota
	INFO
	WARNING
	ERROR
	CRITICAL
)

func (l LogLevel) String() string {
	switch l {
	case DEBUG:
		return "DEBUG"
	case INFO:
		return "INFO"
	case WARNING:
		return "WARNING"
	case ERROR:
		return "ERROR"
	case CRITICAL:
		return "CRITICAL"
	}
	return fmt.Sprintf("LEVEL(%d)", int32(l))
}

// Field values under these keys never reach the output.
var redactedKeys = map[string]struct{}{
	"password":      {},
	"password_hash": {},
	"token":         {},
	"access_token":  {},
	"refresh_token": {},
	"authorization": {},
	"cookie":        {},
}

const redacted = "[REDACTED]"

// callerDepth skips emit and the exported method that called it.
const callerDepth = 2

type Logger struct {
	level       atomic.Int32
	out         *log.Logger
	closer      io.Closer
	serviceName string
}

// New builds a logger writing to stdout and, when logDir is set, to a
// rotating file inside it.
func New(logDir, serviceName, level string) (*Logger, error) {
	if logDir == "" {
		return NewWithWriter(os.Stdout, serviceName, level), nil
	}

	if err := os.MkdirAll(logDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create log directory: %w", err)
	}

	file := &lumberjack.Logger{
		Filename:   filepath.Join(logDir, serviceName+".log"),
		MaxSize:    constants.LoggerMaxSize,
		MaxBackups: constants.LoggerMaxBackups,
		MaxAge:     constants.LoggerMaxAge,
		Compress:   true,
	}

	l := NewWithWriter(io.MultiWriter(os.Stdout, file), serviceName, level)
	l.closer = file
	return l, nil
}

func NewWithWriter(w io.Writer, serviceName, level string) *Logger {
	l := &Logger{
		out:         log.New(w, "", log.LstdFlags),
		serviceName: serviceName,
	}
	l.level.Store(int32(parseLevel(level)))
	return l
}

// Discard is meant for tests.
func Discard() *Logger {
	return NewWithWriter(io.Discard, "test", "CRITICAL")
}

func (l *Logger) Close() error {
	if l.closer == nil {
		return nil
	}
	return l.closer.Close()
}

func (l *Logger) ShouldLog(level LogLevel) bool {
	return int32(level) >= l.level.Load()
}

func (l *Logger) SetLevel(level string) {
	l.level.Store(int32(parseLevel(level)))
}

func (l *Logger) emit(level LogLevel, ctx context.Context, fields Fields, msg string) {
	if !l.ShouldLog(level) {
		return
	}

	var b strings.Builder
	b.WriteString("[" + level.String() + "]")
	if l.serviceName != "" {
		b.WriteString(" [" + l.serviceName + "]")
	}
	if kv := formatFields(ctx, fields); kv != "" {
		b.WriteString(" [" + kv + "]")
	}

	file, line := "unknown", 0
	if _, path, n, ok := runtime.Caller(callerDepth); ok {
		file, line = filepath.Base(path), n
	}
	fmt.Fprintf(&b, " %s:%d %s", file, line, msg)

	_ = l.out.Output(0, b.String())
}

// formatFields renders the trace id first, then the fields sorted by key.
func formatFields(ctx context.Context, fields Fields) string {
	parts := make([]string, 0, len(fields)+1)

	if ctx != nil {
		if traceID, ok := ctx.Value(constants.TraceIDKey).(string); ok && traceID != "" {
			parts = append(parts, "trace_id="+traceID)
		}
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	for _, k := range keys {
		v := fields[k]
		if _, secret := redactedKeys[strings.ToLower(k)]; secret {
			v = redacted
		}
		parts = append(parts, fmt.Sprintf("%s=%v", k, v))
	}
	return strings.Join(parts, " ")
}

func (l *Logger) Debug(msg string)    { l.emit(DEBUG, nil, nil, msg) }
func (l *Logger) Info(msg string)     { l.emit(INFO, nil, nil, msg) }
func (l *Logger) Warn(msg string)     { l.emit(WARNING, nil, nil, msg) }
func (l *Logger) Error(msg string)    { l.emit(ERROR, nil, nil, msg) }
func (l *Logger) Critical(msg string) { l.emit(CRITICAL, nil, nil, msg) }

func (l *Logger) Debugf(format string, args ...any) {
	l.emit(DEBUG, nil, nil, fmt.Sprintf(format, args...))
}

func (l *Logger) Infof(format string, args ...any) {
	l.emit(INFO, nil, nil, fmt.Sprintf(format, args...))
}

func (l *Logger) Warnf(format string, args ...any) {
	l.emit(WARNING, nil, nil, fmt.Sprintf(format, args...))
}

func (l *Logger) Errorf(format string, args ...any) {
	l.emit(ERROR, nil, nil, fmt.Sprintf(format, args...))
}

func (l *Logger) Criticalf(format string, args ...any) {
	l.emit(CRITICAL, nil, nil, fmt.Sprintf(format, args...))
}

func (l *Logger) Fatalf(format string, args ...any) {
	l.emit(CRITICAL, nil, nil, fmt.Sprintf(format, args...))
	os.Exit(1)
}

func (l *Logger) WithFields(ctx context.Context, fields Fields) *Entry {
	return &Entry{logger: l, ctx: ctx, fields: fields}
}

type Entry struct {
	logger *Logger
	ctx    context.Context
	fields Fields
}

func (e *Entry) Debug(msg string) { e.logger.emit(DEBUG, e.ctx, e.fields, msg) }
func (e *Entry) Info(msg string)  { e.logger.emit(INFO, e.ctx, e.fields, msg) }
func (e *Entry) Warn(msg string)  { e.logger.emit(WARNING, e.ctx, e.fields, msg) }
func (e *Entry) Error(msg string) { e.logger.emit(ERROR, e.ctx, e.fields, msg) }

func (e *Entry) Debugf(format string, args ...any) {
	e.logger.emit(DEBUG, e.ctx, e.fields, fmt.Sprintf(format, args...))
}

func (e *Entry) Infof(format string, args ...any) {
	e.logger.emit(INFO, e.ctx, e.fields, fmt.Sprintf(format, args...))
}

func (e *Entry) Warnf(format string, args ...any) {
	e.logger.emit(WARNING, e.ctx, e.fields, fmt.Sprintf(format, args...))
}

func (e *Entry) Errorf(format string, args ...any) {
	e.logger.emit(ERROR, e.ctx, e.fields, fmt.Sprintf(format, args...))
}

func parseLevel(value string) LogLevel {
	switch strings.TrimSpace(strings.ToUpper(value)) {
	case "DEBUG":
		return DEBUG
	case "WARNING", "WARN":
		return WARNING
	case "ERROR":
		return ERROR
	case "CRITICAL":
		return CRITICAL
	default:
		return INFO
	}
}
