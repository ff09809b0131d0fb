package logger

import (
	"os"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger wraps zap.Logger with helpers that keep document content out of
// the log stream.
type Logger struct {
	*zap.Logger
}

// Config contains logger configuration
type Config struct {
	Level  string
	Format string // json or console
	File   *FileConfig
}

// FileConfig contains file logging configuration
type FileConfig struct {
	Enabled  bool
	Path     string
	MaxSize  int
	MaxAge   int
	Compress bool
}

// New builds a logger writing to stdout, plus a JSON file core when file
// logging is enabled.
func New(config Config) (*Logger, error) {
	level, err := zapcore.ParseLevel(config.Level)
	if err != nil {
		return nil, err
	}

	cores := []zapcore.Core{
		zapcore.NewCore(newEncoder(config.Format), zapcore.AddSync(os.Stdout), level),
	}

	if config.File != nil && config.File.Enabled {
		file, err := os.OpenFile(config.File.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0666)
		if err != nil {
			return nil, err
		}
		cores = append(cores, zapcore.NewCore(
			zapcore.NewJSONEncoder(zap.NewProductionEncoderConfig()),
			zapcore.AddSync(file),
			level,
		))
	}

	zl := zap.New(zapcore.NewTee(cores...), zap.AddCaller(), zap.AddStacktrace(zapcore.ErrorLevel))
	return &Logger{Logger: zl}, nil
}

func newEncoder(format string) zapcore.Encoder {
	if format == "console" {
		cfg := zap.NewDevelopmentEncoderConfig()
		cfg.EncodeTime = zapcore.ISO8601TimeEncoder
		return zapcore.NewConsoleEncoder(cfg)
	}
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "timestamp"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder
	return zapcore.NewJSONEncoder(cfg)
}

// WithRequestID returns a logger carrying the request ID field.
func (l *Logger) WithRequestID(requestID string) *Logger {
	return &Logger{Logger: l.Logger.With(zap.String("request_id", requestID))}
}

// WithComponent returns a logger carrying the component field.
func (l *Logger) WithComponent(component string) *Logger {
	return &Logger{Logger: l.Logger.With(zap.String("component", component))}
}

// LogRequest logs an HTTP request. Request bodies are never logged: they
// carry the documents being anonymized. Sensitive headers are redacted.
func (l *Logger) LogRequest(method, path, remoteAddr string, headers map[string][]string) {
	safe := make(map[string]string, len(headers))
	for name, values := range headers {
		switch {
		case isSensitiveHeader(name):
			safe[name] = "[REDACTED]"
		case len(values) > 0:
			safe[name] = values[0]
		}
	}

	l.Info("HTTP request",
		zap.String("method", method),
		zap.String("path", path),
		zap.String("remote_addr", remoteAddr),
		zap.Any("headers", safe),
	)
}

// LogResponse logs an HTTP response status and timing. Bodies are never
// logged for the same reason as requests.
func (l *Logger) LogResponse(statusCode int, duration time.Duration) {
	l.Info("HTTP response",
		zap.Int("status_code", statusCode),
		zap.Duration("duration", duration),
	)
}

// LogAnonymization logs a completed anonymization in aggregate terms only.
// Entity texts and document content must never reach the log.
func (l *Logger) LogAnonymization(documentID string, entities int, counts map[string]int, duration time.Duration) {
	l.Info("Anonymization completed",
		zap.String("document_id", documentID),
		zap.Int("entities", entities),
		zap.Any("counts_by_type", counts),
		zap.Duration("duration", duration),
	)
}

var sensitiveHeaderParts = []string{
	"authorization",
	"x-api-key",
	"cookie",
	"x-auth-token",
	"x-access-token",
	"bearer",
}

func isSensitiveHeader(header string) bool {
	lower := strings.ToLower(header)
	for _, part := range sensitiveHeaderParts {
		if strings.Contains(lower, part) {
			return true
		}
	}
	return false
}
