// Package logger provides structured logging capabilities for the application.
package logger

import (
	"fmt"
	"os"
	"sync"
	"time"

	"go.uber.org/zap/zapcore"
)

const (
	// FieldRepoID is the field key for the canonical repo key in log entries.
	FieldRepoID = "repoId"
	// FieldRequestID is the field key for the GitBackend/EventIO request id (§5
	// typed request/response protocol) in log entries.
	FieldRequestID = "requestId"

	// bufferSize is the size of the log buffer before flushing to storage.
	bufferSize = 100
	// flushInterval is the interval for periodic buffer flushing.
	flushInterval = 5 * time.Second
)

// OperationType distinguishes which subsystem an OperationLog entry belongs to.
type OperationType string

const (
	OperationSync OperationType = "sync"
	OperationPush OperationType = "push"
)

// LogLevel mirrors zapcore.Level for storage outside the zap dependency.
type LogLevel string

const (
	LogLevelDebug LogLevel = "debug"
	LogLevelInfo  LogLevel = "info"
	LogLevelWarn  LogLevel = "warn"
	LogLevelError LogLevel = "error"
	LogLevelFatal LogLevel = "fatal"
)

// JSONMap is a loosely typed field bag persisted alongside an OperationLog.
type JSONMap map[string]interface{}

// OperationLog is a single captured log line for a sync or push operation,
// keyed by operation and repoId so a CLI operator or webhook caller can retrieve
// the suspension-point trace for one in-flight request (§5 progress callback).
type OperationLog struct {
	CreatedAt time.Time
	Operation OperationType
	RepoID    string
	Level     LogLevel
	Message   string
	Caller    string
	Fields    JSONMap
}

// OperationLogWriter defines the interface for persisting OperationLog
// batches. This abstraction keeps the logger package independent of the
// cache store package.
type OperationLogWriter interface {
	Write(logs []OperationLog) error
}

// TaskLogHook captures logs tagged with FieldRepoID and an "op" field of
// sync or push, and writes them to a
// separate operation-log sink, batched and flushed periodically.
type TaskLogHook struct {
	writer OperationLogWriter

	buffer []OperationLog
	mu     sync.Mutex

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewTaskLogHook creates a new TaskLogHook with the given writer.
func NewTaskLogHook(writer OperationLogWriter) *TaskLogHook {
	hook := &TaskLogHook{
		writer: writer,
		buffer: make([]OperationLog, 0, bufferSize),
		stopCh: make(chan struct{}),
	}

	hook.wg.Add(1)
	go hook.backgroundFlush()

	return hook
}

// taskLogCore wraps a zapcore.Core to intercept logs and capture entries
// that carry a repoId field and a sync/push op field.
type taskLogCore struct {
	zapcore.Core
	hook   *TaskLogHook
	fields []zapcore.Field
}

// WrapCore wraps a zapcore.Core with the TaskLogHook to capture repo-scoped logs.
func (h *TaskLogHook) WrapCore(core zapcore.Core) zapcore.Core {
	return &taskLogCore{Core: core, hook: h}
}

func (c *taskLogCore) With(fields []zapcore.Field) zapcore.Core {
	newFields := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	newFields = append(newFields, c.fields...)
	newFields = append(newFields, fields...)

	return &taskLogCore{
		Core:   c.Core.With(fields),
		hook:   c.hook,
		fields: newFields,
	}
}

func (c *taskLogCore) Check(entry zapcore.Entry, ce *zapcore.CheckedEntry) *zapcore.CheckedEntry {
	if c.Enabled(entry.Level) {
		return ce.AddCore(entry, c)
	}
	return ce
}

func (c *taskLogCore) Write(entry zapcore.Entry, fields []zapcore.Field) error {
	if err := c.Core.Write(entry, fields); err != nil {
		return err
	}

	allFields := make([]zapcore.Field, 0, len(c.fields)+len(fields))
	allFields = append(allFields, c.fields...)
	allFields = append(allFields, fields...)

	op, repoID := extractOperationInfo(allFields)
	if op == "" || repoID == "" {
		return nil
	}

	c.hook.addToBuffer(OperationLog{
		CreatedAt: entry.Time,
		Operation: op,
		RepoID:    repoID,
		Level:     convertLevel(entry.Level),
		Message:   entry.Message,
		Caller:    entry.Caller.String(),
		Fields:    serializeFields(allFields),
	})

	return nil
}

func (c *taskLogCore) Sync() error {
	c.hook.Flush()
	return c.Core.Sync()
}

func (h *TaskLogHook) addToBuffer(log OperationLog) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.buffer = append(h.buffer, log)
	if len(h.buffer) >= bufferSize {
		h.flushLocked()
	}
}

// Flush writes all buffered logs to storage.
func (h *TaskLogHook) Flush() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.flushLocked()
}

func (h *TaskLogHook) flushLocked() {
	if len(h.buffer) == 0 {
		return
	}

	logs := h.buffer
	h.buffer = make([]OperationLog, 0, bufferSize)

	go func(logs []OperationLog) {
		if err := h.writer.Write(logs); err != nil {
			fmt.Fprintf(os.Stderr, "Failed to write operation logs: %v\n", err)
		}
	}(logs)
}

func (h *TaskLogHook) backgroundFlush() {
	defer h.wg.Done()

	ticker := time.NewTicker(flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			h.Flush()
		case <-h.stopCh:
			h.Flush()
			return
		}
	}
}

// Close stops background flushing and flushes remaining logs.
func (h *TaskLogHook) Close() {
	close(h.stopCh)
	h.wg.Wait()
}

func extractOperationInfo(fields []zapcore.Field) (OperationType, string) {
	var repoID string
	var op OperationType
	for _, field := range fields {
		switch field.Key {
		case FieldRepoID:
			if field.String != "" {
				repoID = field.String
			}
		case "op":
			switch field.String {
			case string(OperationSync):
				op = OperationSync
			case string(OperationPush):
				op = OperationPush
			}
		}
	}
	return op, repoID
}

func convertLevel(level zapcore.Level) LogLevel {
	switch level {
	case zapcore.DebugLevel:
		return LogLevelDebug
	case zapcore.InfoLevel:
		return LogLevelInfo
	case zapcore.WarnLevel:
		return LogLevelWarn
	case zapcore.ErrorLevel:
		return LogLevelError
	case zapcore.DPanicLevel, zapcore.PanicLevel, zapcore.FatalLevel:
		return LogLevelFatal
	default:
		return LogLevelInfo
	}
}

func serializeFields(fields []zapcore.Field) JSONMap {
	if len(fields) == 0 {
		return JSONMap{}
	}

	data := make(JSONMap)
	for _, field := range fields {
		if field.Key == FieldRepoID {
			continue
		}

		switch field.Type {
		case zapcore.StringType:
			data[field.Key] = field.String
		case zapcore.Int64Type, zapcore.Int32Type, zapcore.Int16Type, zapcore.Int8Type:
			data[field.Key] = field.Integer
		case zapcore.Uint64Type, zapcore.Uint32Type, zapcore.Uint16Type, zapcore.Uint8Type:
			data[field.Key] = uint64(field.Integer)
		case zapcore.Float64Type, zapcore.Float32Type:
			data[field.Key] = field.Integer
		case zapcore.BoolType:
			data[field.Key] = field.Integer == 1
		case zapcore.DurationType:
			data[field.Key] = time.Duration(field.Integer).String()
		case zapcore.TimeType, zapcore.TimeFullType:
			if t, ok := field.Interface.(time.Time); ok {
				data[field.Key] = t.Format(time.RFC3339)
			}
		case zapcore.ErrorType:
			if err, ok := field.Interface.(error); ok && err != nil {
				data[field.Key] = err.Error()
			}
		default:
			if field.Interface != nil {
				data[field.Key] = fmt.Sprint(field.Interface)
			}
		}
	}

	return data
}
