package errorutil

import (
	"fmt"
	"log/slog"
)

// LogAndWrap logs an error with structured context and returns it wrapped with operation
func LogAndWrap(logger *slog.Logger, operation string, err error, attrs ...slog.Attr) error {
	if logger == nil || err == nil {
		return err
	}

	logger.Error(operation+" failed", withError(err, attrs)...)
	return fmt.Errorf("%s: %w", operation, err)
}

// LogWarning logs a non-fatal error as a warning without wrapping.
// Used where a failure is contained locally and processing continues.
func LogWarning(logger *slog.Logger, operation string, err error, attrs ...slog.Attr) {
	if logger == nil || err == nil {
		return
	}

	logger.Warn("Non-fatal error in "+operation, withError(err, attrs)...)
}

func withError(err error, attrs []slog.Attr) []any {
	args := make([]any, 0, len(attrs)+1)
	args = append(args, slog.String("error", err.Error()))
	for _, attr := range attrs {
		args = append(args, attr)
	}
	return args
}

// StationContext creates context attributes for station-scoped operations
func StationContext(stationCode string) []slog.Attr {
	if stationCode == "" {
		return nil
	}
	return []slog.Attr{slog.String("station_code", stationCode)}
}

// URLContext creates context attributes for URL/API operations
func URLContext(url string) []slog.Attr {
	if url == "" {
		return nil
	}
	return []slog.Attr{slog.String("url", url)}
}

// FileContext creates context attributes for file operations
func FileContext(filePath string) []slog.Attr {
	if filePath == "" {
		return nil
	}
	return []slog.Attr{slog.String("file_path", filePath)}
}
