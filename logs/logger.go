package logs

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rustyeddy/fillbook/config"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Fields is re-exported so callers do not import logrus for structured logs.
type Fields = logrus.Fields

// FileHook writes every entry to a rotated file with its own formatter.
type FileHook struct {
	formatter logrus.Formatter
	writer    io.Writer
}

func newFileHook(writer io.Writer, formatter logrus.Formatter) *FileHook {
	return &FileHook{writer: writer, formatter: formatter}
}

func (h *FileHook) Levels() []logrus.Level {
	return logrus.AllLevels
}

func (h *FileHook) Fire(entry *logrus.Entry) error {
	b, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}
	_, err = h.writer.Write(b)
	return err
}

var (
	log      = newDefault()
	fileHook *FileHook
)

func newDefault() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	l.SetLevel(logrus.InfoLevel)
	return l
}

// Init configures the package logger: console output at cfg.Level and, when
// cfg.File is set, a rotated plain-text file.
func Init(cfg config.LogConfig) error {
	l := logrus.New()
	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
		PadLevelText:    true,
	})
	l.SetOutput(os.Stderr)

	// keep third-party logrus users off our console
	logrus.SetOutput(io.Discard)

	if cfg.File != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.File), 0755); err != nil {
			return fmt.Errorf("create log directory: %w", err)
		}
		rotated := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   cfg.Compress,
		}
		fileHook = newFileHook(rotated, &logrus.TextFormatter{
			DisableColors:   true,
			FullTimestamp:   true,
			TimestampFormat: "2006-01-02 15:04:05",
		})
		l.AddHook(fileHook)
	}

	log = l
	return nil
}

// SetOutput redirects console output, mostly for tests.
func SetOutput(w io.Writer) { log.SetOutput(w) }

// Close closes the rotated log file, if any.
func Close() {
	if fileHook == nil {
		return
	}
	if c, ok := fileHook.writer.(io.Closer); ok {
		_ = c.Close()
	}
	fileHook = nil
}

func WithFields(f Fields) *logrus.Entry { return log.WithFields(f) }

func Debug(args ...interface{})                 { log.Debug(args...) }
func Debugf(format string, args ...interface{}) { log.Debugf(format, args...) }
func Info(args ...interface{})                  { log.Info(args...) }
func Infof(format string, args ...interface{})  { log.Infof(format, args...) }
func Warn(args ...interface{})                  { log.Warn(args...) }
func Warnf(format string, args ...interface{})  { log.Warnf(format, args...) }
func Error(args ...interface{})                 { log.Error(args...) }
func Errorf(format string, args ...interface{}) { log.Errorf(format, args...) }
