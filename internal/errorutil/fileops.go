package errorutil

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"syscall"
)

// FileError represents a file operation error with additional context
type FileError struct {
	Operation  string // The operation that failed (e.g., "read", "write_temp", "move")
	Path       string
	Underlying error
}

func (e *FileError) Error() string {
	return fmt.Sprintf("%s operation failed for %s: %v", e.Operation, e.Path, e.Underlying)
}

func (e *FileError) Unwrap() error {
	return e.Underlying
}

// NewFileError creates a new FileError
func NewFileError(operation, path string, err error) *FileError {
	return &FileError{
		Operation:  operation,
		Path:       path,
		Underlying: err,
	}
}

// LogFileError logs a file error with its classification and returns it
func LogFileError(logger *slog.Logger, fileErr *FileError) *FileError {
	if logger == nil || fileErr == nil {
		return fileErr
	}

	logger.Warn("File operation failed",
		slog.String("operation", fileErr.Operation),
		slog.String("file_path", fileErr.Path),
		slog.String("directory", filepath.Dir(fileErr.Path)),
		slog.String("error", fileErr.Underlying.Error()),
		slog.String("error_type", fileErrorType(fileErr.Underlying)))
	return fileErr
}

func fileErrorType(err error) string {
	switch {
	case err == nil:
		return "unknown"
	case errors.Is(err, fs.ErrNotExist):
		return "file_not_found"
	case errors.Is(err, fs.ErrPermission):
		return "permission_denied"
	case errors.Is(err, syscall.ENOSPC):
		return "no_space_left"
	}

	var pathErr *os.PathError
	if errors.As(err, &pathErr) {
		return "path_error_" + pathErr.Op
	}
	return "generic_file_error"
}

// SafeFileWrite writes data to a temporary sibling and renames it over path
func SafeFileWrite(logger *slog.Logger, path string, data []byte, perm os.FileMode) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return LogFileError(logger, NewFileError("mkdir", filepath.Dir(path), err))
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, data, perm); err != nil {
		return LogFileError(logger, NewFileError("write_temp", tempPath, err))
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return LogFileError(logger, NewFileError("move", path, err))
	}

	if logger != nil {
		logger.Debug("File written successfully",
			slog.String("file_path", path),
			slog.Int("bytes_written", len(data)))
	}
	return nil
}
