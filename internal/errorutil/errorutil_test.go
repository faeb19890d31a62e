package errorutil

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestNewNetworkErrorClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want NetworkErrorKind
	}{
		{
			name: "deadline exceeded",
			err:  fmt.Errorf("get provinces: %w", context.DeadlineExceeded),
			want: KindTimeout,
		},
		{
			name: "url timeout",
			err:  &url.Error{Op: "Get", URL: "http://x", Err: context.DeadlineExceeded},
			want: KindTimeout,
		},
		{
			name: "parse failure",
			err:  &url.Error{Op: "parse", URL: "::bad", Err: errors.New("missing protocol scheme")},
			want: KindBadURL,
		},
		{
			name: "unsupported scheme",
			err:  &url.Error{Op: "Get", URL: "ftp://x", Err: errors.New(`unsupported protocol scheme "ftp"`)},
			want: KindBadURL,
		},
		{
			name: "connection refused",
			err:  &url.Error{Op: "Get", URL: "http://x", Err: errors.New("connect: connection refused")},
			want: KindNetwork,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			netErr := NewNetworkError("fetch", "http://x", tt.err)
			if netErr.Kind != tt.want {
				t.Errorf("Kind = %s, want %s", netErr.Kind, tt.want)
			}
			if !errors.Is(netErr, tt.err) {
				t.Error("NetworkError does not unwrap to the underlying error")
			}
		})
	}
}

func TestNetworkErrorIsMatchesKind(t *testing.T) {
	err := fmt.Errorf("bootstrap: %w", NewStatusError("fetch provinces", "http://x", 502))

	if !errors.Is(err, &NetworkError{Kind: KindServer}) {
		t.Error("expected errors.Is to match KindServer")
	}
	if errors.Is(err, &NetworkError{Kind: KindTimeout}) {
		t.Error("errors.Is matched the wrong kind")
	}

	kind, ok := KindOf(err)
	if !ok || kind != KindServer {
		t.Errorf("KindOf = %s, %v; want server, true", kind, ok)
	}
	if !strings.Contains(err.Error(), "HTTP 502") {
		t.Errorf("error message missing status: %v", err)
	}
}

func TestDecodeErrorMessage(t *testing.T) {
	err := &DecodeError{
		Payload: "forecast date",
		Value:   "not-a-date",
		Formats: []string{"2006-01-02", "2006-01-02 15:04"},
	}

	msg := err.Error()
	for _, want := range []string{"forecast date", `"not-a-date"`, "2006-01-02, 2006-01-02 15:04"} {
		if !strings.Contains(msg, want) {
			t.Errorf("message %q missing %q", msg, want)
		}
	}
}

func TestSafeFileWrite(t *testing.T) {
	var logOutput strings.Builder
	logger := slog.New(slog.NewTextHandler(&logOutput, &slog.HandlerOptions{Level: slog.LevelDebug}))

	path := filepath.Join(t.TempDir(), "nested", "data.json")
	if err := SafeFileWrite(logger, path, []byte(`[]`), 0644); err != nil {
		t.Fatalf("SafeFileWrite failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil || string(data) != "[]" {
		t.Fatalf("unexpected file content %q, err %v", data, err)
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}
}

func TestSafeFileWriteFailure(t *testing.T) {
	var logOutput strings.Builder
	logger := slog.New(slog.NewTextHandler(&logOutput, nil))

	// A regular file where a directory is expected
	blocker := filepath.Join(t.TempDir(), "blocker")
	if err := os.WriteFile(blocker, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}

	err := SafeFileWrite(logger, filepath.Join(blocker, "data.json"), []byte("{}"), 0644)
	var fileErr *FileError
	if !errors.As(err, &fileErr) {
		t.Fatalf("expected *FileError, got %v", err)
	}
	if !strings.Contains(logOutput.String(), "File operation failed") {
		t.Error("failure was not logged")
	}
}

func TestLogAndWrap(t *testing.T) {
	var logOutput strings.Builder
	logger := slog.New(slog.NewTextHandler(&logOutput, nil))

	original := errors.New("original error")
	wrapped := LogAndWrap(logger, "save directory", original, slog.String("key1", "value1"))

	if !errors.Is(wrapped, original) {
		t.Error("wrapped error does not unwrap to original")
	}
	if !strings.Contains(wrapped.Error(), "save directory") {
		t.Errorf("wrapped error missing operation: %v", wrapped)
	}
	logStr := logOutput.String()
	if !strings.Contains(logStr, "save directory failed") || !strings.Contains(logStr, "key1=value1") {
		t.Errorf("unexpected log output: %s", logStr)
	}
}

func TestLogWarning(t *testing.T) {
	var logOutput strings.Builder
	logger := slog.New(slog.NewTextHandler(&logOutput, nil))

	LogWarning(logger, "fetch forecast", errors.New("boom"), StationContext("54594")...)

	logStr := logOutput.String()
	for _, want := range []string{"level=WARN", "Non-fatal error in fetch forecast", "station_code=54594"} {
		if !strings.Contains(logStr, want) {
			t.Errorf("log output missing %q: %s", want, logStr)
		}
	}
}
