// Package logger hands out named logrus loggers that share one output
// configuration: stdout plus an optional size-rotated file.
package logger

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

type Config struct {
	Level      string `json:"level" yaml:"level"`
	Format     string `json:"format" yaml:"format"` // json or text
	File       string `json:"file" yaml:"file"`
	MaxSizeMB  int    `json:"max_size_mb" yaml:"max_size_mb"`
	MaxBackups int    `json:"max_backups" yaml:"max_backups"`
	MaxAgeDays int    `json:"max_age_days" yaml:"max_age_days"`
}

func DefaultConfig() Config {
	return Config{
		Level:      "info",
		Format:     "text",
		MaxSizeMB:  100,
		MaxBackups: 5,
		MaxAgeDays: 30,
	}
}

var (
	mu      sync.Mutex
	cfg     = DefaultConfig()
	output  io.Writer = os.Stdout
	rotator *lumberjack.Logger
	loggers = make(map[string]*logrus.Logger)
)

// Init applies c to every logger created afterwards and reconfigures the
// ones already handed out.
func Init(c Config) error {
	mu.Lock()
	defer mu.Unlock()

	if rotator != nil {
		rotator.Close()
		rotator = nil
	}
	cfg = c
	output = os.Stdout
	if c.File != "" {
		if err := os.MkdirAll(filepath.Dir(c.File), 0o755); err != nil {
			return err
		}
		rotator = &lumberjack.Logger{
			Filename:   c.File,
			MaxSize:    c.MaxSizeMB,
			MaxBackups: c.MaxBackups,
			MaxAge:     c.MaxAgeDays,
			Compress:   true,
		}
		output = io.MultiWriter(os.Stdout, rotator)
	}
	for _, l := range loggers {
		configure(l)
	}
	return nil
}

// Get returns the logger registered under name, creating it on first use.
func Get(name string) *logrus.Logger {
	mu.Lock()
	defer mu.Unlock()

	if l, ok := loggers[name]; ok {
		return l
	}
	l := logrus.New()
	configure(l)
	loggers[name] = l
	return l
}

func configure(l *logrus.Logger) {
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)
	l.SetOutput(output)

	if cfg.Format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: "2006-01-02 15:04:05.000",
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "level",
				logrus.FieldKeyMsg:   "message",
			},
		})
		return
	}
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05.000",
	})
}

// Close flushes and closes the rotating file, if any.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if rotator == nil {
		return nil
	}
	err := rotator.Close()
	rotator = nil
	return err
}

type userKey struct{}

// WithUserID stores the authenticated user id for log correlation.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userKey{}, userID)
}

// FromContext returns an entry tagged with the request and user ids found in ctx.
func FromContext(ctx context.Context, l *logrus.Logger) *logrus.Entry {
	entry := logrus.NewEntry(l)
	if ctx == nil {
		return entry
	}
	fields := logrus.Fields{}
	if reqID := middleware.GetReqID(ctx); reqID != "" {
		fields["request_id"] = reqID
	}
	if userID, ok := ctx.Value(userKey{}).(string); ok && userID != "" {
		fields["user_id"] = userID
	}
	if len(fields) == 0 {
		return entry.WithContext(ctx)
	}
	return entry.WithContext(ctx).WithFields(fields)
}
