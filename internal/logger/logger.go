package logger

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"
)

// Level represents logging severity using slog levels
type Level slog.Level

const (
	DebugLevel Level = Level(slog.LevelDebug)
	InfoLevel  Level = Level(slog.LevelInfo)
	WarnLevel  Level = Level(slog.LevelWarn)
	ErrorLevel Level = Level(slog.LevelError)
)

const timeFormat = "2006-01-02T15:04:05.000-07:00"

// Config mirrors the [logging] section of the application configuration
type Config struct {
	Enabled         bool   `toml:"enabled"`
	Directory       string `toml:"directory"`
	FilenamePattern string `toml:"filename_pattern"`
	Level           string `toml:"level"`
	MaxSizeMB       int    `toml:"max_size_mb"`
	ConsoleOutput   bool   `toml:"console_output"`
}

// FileLogger is a slog.Logger that also owns an optional log file and
// rotates it by size or when the date in the filename pattern changes.
type FileLogger struct {
	*slog.Logger
	config   Config
	level    *slog.LevelVar
	file     *os.File
	fileName string
	fileSize int64
	writer   io.Writer
	mu       sync.Mutex
}

var (
	globalLogger *FileLogger
	globalMu     sync.Mutex
)

// Initialize replaces the global logger with one built from config
func Initialize(config Config) error {
	l, err := New(config)
	if err != nil {
		return err
	}

	globalMu.Lock()
	old := globalLogger
	globalLogger = l
	globalMu.Unlock()

	if old != nil {
		old.Close()
	}
	return nil
}

// Get returns the global logger, falling back to an info-level console logger
func Get() *FileLogger {
	globalMu.Lock()
	defer globalMu.Unlock()

	if globalLogger == nil {
		level := new(slog.LevelVar)
		level.Set(slog.LevelInfo)
		globalLogger = &FileLogger{writer: os.Stdout, level: level}
		globalLogger.Logger = slog.New(newHandler(globalLogger, level))
	}
	return globalLogger
}

// New creates a logger from config without touching the global instance
func New(config Config) (*FileLogger, error) {
	if config.Enabled {
		if err := ValidateFilenamePattern(config.FilenamePattern); err != nil {
			return nil, fmt.Errorf("invalid filename pattern: %w", err)
		}
	}

	level := new(slog.LevelVar)
	level.Set(parseLogLevel(config.Level))

	l := &FileLogger{config: config, level: level}

	if config.Enabled {
		dir := logDirectory(config.Directory)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		if err := l.openFile(); err != nil {
			return nil, fmt.Errorf("failed to open log file: %w", err)
		}
	}
	l.resetWriter()

	l.Logger = slog.New(newHandler(l, level))
	l.Debug("Logger initialized",
		slog.String("log_file", l.fileName),
		slog.String("level", config.Level),
		slog.Bool("console", config.ConsoleOutput))

	return l, nil
}

func newHandler(w io.Writer, level slog.Leveler) slog.Handler {
	return slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: level,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.TimeKey {
				return slog.String(slog.TimeKey, a.Value.Time().Format(timeFormat))
			}
			return a
		},
	})
}

// SetLevel changes the minimum level of the global logger
func SetLevel(level Level) {
	Get().level.Set(slog.Level(level))
}

// openFile opens the file for the current pattern in append mode (caller holds mu or owns l)
func (l *FileLogger) openFile() error {
	path := filepath.Join(logDirectory(l.config.Directory), generateLogFilename(l.config.FilenamePattern))

	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return err
	}
	info, err := file.Stat()
	if err != nil {
		file.Close()
		return err
	}

	l.file = file
	l.fileName = path
	l.fileSize = info.Size()
	return nil
}

func (l *FileLogger) resetWriter() {
	var writers []io.Writer
	if l.config.ConsoleOutput || l.file == nil {
		writers = append(writers, os.Stdout)
	}
	if l.file != nil {
		writers = append(writers, l.file)
	}
	l.writer = io.MultiWriter(writers...)
}

// Write implements io.Writer and rotates the file after each record if needed
func (l *FileLogger) Write(p []byte) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	n, err := l.writer.Write(p)
	if err != nil {
		return n, err
	}
	l.fileSize += int64(n)

	if l.needsRotation() {
		if err := l.rotate(); err != nil {
			fmt.Fprintf(os.Stderr, "log rotation failed: %v\n", err)
		}
	}
	return n, nil
}

func (l *FileLogger) needsRotation() bool {
	if l.file == nil {
		return false
	}
	maxSize := int64(l.config.MaxSizeMB) * 1024 * 1024
	if maxSize > 0 && l.fileSize >= maxSize {
		return true
	}
	return filepath.Base(l.fileName) != generateLogFilename(l.config.FilenamePattern)
}

// rotate archives the current file with a timestamp suffix and reopens (caller holds mu)
func (l *FileLogger) rotate() error {
	l.file.Close()

	if info, err := os.Stat(l.fileName); err == nil && info.Size() > 0 {
		ext := filepath.Ext(l.fileName)
		archived := fmt.Sprintf("%s-%s%s", strings.TrimSuffix(l.fileName, ext), time.Now().Format("20060102-150405"), ext)
		if err := os.Rename(l.fileName, archived); err != nil {
			fmt.Fprintf(os.Stderr, "failed to archive log file: %v\n", err)
		}
	}

	if err := l.openFile(); err != nil {
		l.file = nil
		l.resetWriter()
		return err
	}
	l.resetWriter()
	return nil
}

// Close closes the log file, if any
func (l *FileLogger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.file == nil {
		return nil
	}
	err := l.file.Close()
	l.file = nil
	l.resetWriter()
	return err
}

// FileName returns the path of the active log file, empty for console-only loggers
func (l *FileLogger) FileName() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.fileName
}

func logDirectory(dir string) string {
	if dir == "" {
		dir = "logs"
	}
	if filepath.IsAbs(dir) || dir == "logs" || strings.HasPrefix(dir, "./") {
		return dir
	}

	switch runtime.GOOS {
	case "windows":
		if appData := os.Getenv("APPDATA"); appData != "" {
			return filepath.Join(appData, "NMCWeather", "logs")
		}
	default:
		if home := os.Getenv("HOME"); home != "" {
			return filepath.Join(home, ".nmcweather", "logs")
		}
	}
	return "logs"
}

// generateLogFilename expands YYYY, YY, MM, DD and HH tokens in pattern
func generateLogFilename(pattern string) string {
	if pattern == "" {
		pattern = "nmcweather-YYYYMMDD.log"
	}

	now := time.Now()
	r := strings.NewReplacer(
		"YYYY", fmt.Sprintf("%04d", now.Year()),
		"YY", fmt.Sprintf("%02d", now.Year()%100),
		"MM", fmt.Sprintf("%02d", now.Month()),
		"DD", fmt.Sprintf("%02d", now.Day()),
		"HH", fmt.Sprintf("%02d", now.Hour()),
	)
	return r.Replace(pattern)
}

// ValidateFilenamePattern rejects patterns that cannot be used as a single file name
func ValidateFilenamePattern(pattern string) error {
	if strings.TrimSpace(pattern) == "" {
		return nil
	}
	if strings.ContainsAny(pattern, `/\:*?"<>|`) {
		return fmt.Errorf("pattern %q contains path separators or reserved characters", pattern)
	}
	if pattern == "." || pattern == ".." {
		return fmt.Errorf("pattern %q is not a file name", pattern)
	}
	return nil
}

func parseLogLevel(level string) slog.Level {
	l, err := ParseLevel(level)
	if err != nil {
		return slog.LevelInfo
	}
	return slog.Level(l)
}

// ParseLevel converts a string to a log level
func ParseLevel(levelStr string) (Level, error) {
	switch strings.ToLower(strings.TrimSpace(levelStr)) {
	case "debug":
		return DebugLevel, nil
	case "info", "":
		return InfoLevel, nil
	case "warn", "warning":
		return WarnLevel, nil
	case "error":
		return ErrorLevel, nil
	default:
		return InfoLevel, fmt.Errorf("unknown log level: %s", levelStr)
	}
}

// Debug logs a debug message
func Debug(format string, args ...interface{}) {
	Get().Debug(fmt.Sprintf(format, args...))
}

// Info logs an info message
func Info(format string, args ...interface{}) {
	Get().Info(fmt.Sprintf(format, args...))
}

// Warn logs a warning message
func Warn(format string, args ...interface{}) {
	Get().Warn(fmt.Sprintf(format, args...))
}

// Error logs an error message
func Error(format string, args ...interface{}) {
	Get().Error(fmt.Sprintf(format, args...))
}

// Fatal logs an error message and exits
func Fatal(format string, args ...interface{}) {
	Get().Error(fmt.Sprintf(format, args...))
	os.Exit(1)
}

// LogAPIRequest logs an outgoing HTTP request
func LogAPIRequest(method, url string) {
	Get().LogAttrs(context.Background(), slog.LevelDebug, "API request started",
		slog.Group("request",
			slog.String("method", method),
			slog.String("url", url),
		))
}

// LogAPIResponse logs a completed HTTP request, raising the level for error statuses
func LogAPIResponse(method, url string, statusCode int, duration time.Duration, bodySize int) {
	level := slog.LevelDebug
	if statusCode >= 400 {
		level = slog.LevelWarn
	}
	if statusCode >= 500 {
		level = slog.LevelError
	}

	Get().LogAttrs(context.Background(), level, "API request completed",
		slog.Group("request",
			slog.String("method", method),
			slog.String("url", url),
			slog.Int("status_code", statusCode),
			slog.Duration("duration", duration),
			slog.Int("body_size", bodySize),
		))
}

// LogOperationStart logs the beginning of an operation and returns a completion function
func LogOperationStart(operation string, details map[string]any) func(error) {
	start := time.Now()

	attrs := []slog.Attr{slog.String("operation", operation)}
	if len(details) > 0 {
		detailAttrs := make([]any, 0, len(details)*2)
		for k, v := range details {
			detailAttrs = append(detailAttrs, k, v)
		}
		attrs = append(attrs, slog.Group("details", detailAttrs...))
	}
	Get().LogAttrs(context.Background(), slog.LevelDebug, "Operation started", attrs...)

	return func(err error) {
		done := []slog.Attr{
			slog.String("operation", operation),
			slog.Duration("duration", time.Since(start)),
			slog.Bool("success", err == nil),
		}
		if err != nil {
			done = append(done, slog.String("error", err.Error()))
			Get().LogAttrs(context.Background(), slog.LevelWarn, "Operation failed", done...)
			return
		}
		Get().LogAttrs(context.Background(), slog.LevelInfo, "Operation completed", done...)
	}
}
