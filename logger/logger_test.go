package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestLogger(t *testing.T) {
	// Test log levels with JSON format
	buf := &bytes.Buffer{}
	logger := New(slog.LevelDebug, FormatJSON, buf)

	// Test debug level
	logger.Debug("debug message", "key", "value")
	output := buf.String()
	var logEntry map[string]any
	if err := json.Unmarshal([]byte(output), &logEntry); err != nil {
		t.Fatalf("Failed to parse log output: %v", err)
	}
	if logEntry["level"] != "DEBUG" || logEntry["msg"] != "debug message" || logEntry["key"] != "value" {
		t.Error("Debug message not logged correctly")
	}
	buf.Reset()

	// Test info level
	logger.Info("info message", "key", "value")
	output = buf.String()
	if err := json.Unmarshal([]byte(output), &logEntry); err != nil {
		t.Fatalf("Failed to parse log output: %v", err)
	}
	if logEntry["level"] != "INFO" || logEntry["msg"] != "info message" || logEntry["key"] != "value" {
		t.Error("Info message not logged correctly")
	}
	buf.Reset()

	// Test warn level
	logger.Warn("warn message", "key", "value")
	output = buf.String()
	if err := json.Unmarshal([]byte(output), &logEntry); err != nil {
		t.Fatalf("Failed to parse log output: %v", err)
	}
	if logEntry["level"] != "WARN" || logEntry["msg"] != "warn message" || logEntry["key"] != "value" {
		t.Error("Warn message not logged correctly")
	}
	buf.Reset()

	// Test error level
	logger.Error("error message", "key", "value")
	output = buf.String()
	if err := json.Unmarshal([]byte(output), &logEntry); err != nil {
		t.Fatalf("Failed to parse log output: %v", err)
	}
	if logEntry["level"] != "ERROR" || logEntry["msg"] != "error message" || logEntry["key"] != "value" {
		t.Error("Error message not logged correctly")
	}
	buf.Reset()

	// Test level filtering
	logger.SetLevel(slog.LevelWarn)
	logger.Debug("debug message")
	logger.Info("info message")
	logger.Warn("warn message")
	logger.Error("error message")
	output = buf.String()
	lines := strings.Split(output, "\n")
	// Subtract 1 because the last line is empty
	if len(lines)-1 != 2 {
		t.Errorf("Expected 2 messages, got %d", len(lines)-1)
	}
	if !strings.Contains(output, "warn message") || !strings.Contains(output, "error message") {
		t.Error("Messages at or above warn level should be logged")
	}
}

func TestTextFormat(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := New(slog.LevelInfo, FormatText, buf)

	logger.Info("test message", "key", "value")
	output := buf.String()
	if !strings.Contains(output, "test message") || !strings.Contains(output, "key=value") {
		t.Error("Text format not logged correctly")
	}
}

// syncBuffer is a bytes.Buffer safe for the concurrent writes of two
// handlers while one replaces the other.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// restoreDefault puts back the package logger replaced by Init.
func restoreDefault(t *testing.T) {
	t.Helper()
	previous := Default()
	t.Cleanup(func() {
		if current := Default(); current != previous {
			current.Close()
		}
		defaultLogger.Store(previous)
	})
}

func TestMultipleOutputs(t *testing.T) {
	buf1 := &bytes.Buffer{}
	buf2 := &bytes.Buffer{}
	logger := New(slog.LevelInfo, FormatJSON, buf1)
	held := logger.Logger

	logger.Info("before", "key", "value")
	logger.AddOutput(buf2)
	// A *slog.Logger taken before AddOutput reaches the new writer too.
	held.Info("after", "key", "value")

	if strings.Contains(buf2.String(), "before") {
		t.Error("Output added later must not receive earlier messages")
	}
	lines1 := strings.Split(strings.TrimSpace(buf1.String()), "\n")
	lines2 := strings.Split(strings.TrimSpace(buf2.String()), "\n")
	if len(lines1) != 2 || len(lines2) != 1 || lines1[1] != lines2[0] {
		t.Fatalf("Unexpected fan out:\n%s\n--\n%s", buf1.String(), buf2.String())
	}

	var logEntry map[string]any
	if err := json.Unmarshal([]byte(lines2[0]), &logEntry); err != nil {
		t.Fatalf("Failed to parse log output: %v", err)
	}
	if logEntry["msg"] != "after" || logEntry["key"] != "value" {
		t.Error("Message not logged correctly to multiple outputs")
	}
}

func TestLogRotation(t *testing.T) {
	restoreDefault(t)
	tempDir := t.TempDir()
	logPath := filepath.Join(tempDir, "test.log")

	if err := Init(slog.LevelInfo, FormatJSON, logPath); err != nil {
		t.Fatalf("Failed to initialize logger: %v", err)
	}
	held := Default().Logger

	Info("test message 1", "key", "value1")

	newLogPath := filepath.Join(tempDir, "rotated", "test2.log")
	if err := Default().Rotate(newLogPath); err != nil {
		t.Fatalf("Failed to rotate log file: %v", err)
	}

	Info("test message 2", "key", "value2")
	held.Info("test message 3", "key", "value3")

	oldContent, err := os.ReadFile(logPath)
	if err != nil {
		t.Fatalf("Failed to read old log file: %v", err)
	}
	if !strings.Contains(string(oldContent), "test message 1") || strings.Contains(string(oldContent), "test message 2") {
		t.Errorf("Old log file should hold only the first message, got %q", oldContent)
	}

	newContent, err := os.ReadFile(newLogPath)
	if err != nil {
		t.Fatalf("Failed to read new log file: %v", err)
	}
	if !strings.Contains(string(newContent), "test message 2") || !strings.Contains(string(newContent), "test message 3") {
		t.Errorf("New log file should hold later messages, got %q", newContent)
	}
}

func TestInitSwapsDefaultWhileLogging(t *testing.T) {
	restoreDefault(t)
	dir := t.TempDir()

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					Debug("background")
				}
			}
		}()
	}

	var last *Logger
	for i := range 5 {
		if err := Init(slog.LevelError, FormatJSON, filepath.Join(dir, "swap.log")); err != nil {
			t.Fatalf("Init %d: %v", i, err)
		}
		if Default() == last {
			t.Fatal("Init must install a new logger")
		}
		if last != nil {
			last.Close()
		}
		last = Default()
	}
	close(stop)
	wg.Wait()

	Error("final", "round", 5)
	content, err := os.ReadFile(filepath.Join(dir, "swap.log"))
	if err != nil {
		t.Fatalf("Failed to read log file: %v", err)
	}
	if strings.Contains(string(content), "background") || !strings.Contains(string(content), `"msg":"final"`) {
		t.Errorf("Unexpected log content %q", content)
	}
}

func TestSetLevelWhileLogging(t *testing.T) {
	buf := &syncBuffer{}
	logger := New(slog.LevelInfo, FormatJSON, buf)
	held := logger.Logger

	stop := make(chan struct{})
	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
					held.Info("spin")
				}
			}
		}()
	}
	for i := range 50 {
		if i%2 == 0 {
			logger.SetLevel(slog.LevelWarn)
		} else {
			logger.SetLevel(slog.LevelInfo)
		}
	}
	close(stop)
	wg.Wait()

	logger.SetLevel(slog.LevelWarn)
	before := buf.String()
	held.Info("suppressed")
	if buf.String() != before {
		t.Error("Held logger must follow SetLevel")
	}
	if logger.Level() != slog.LevelWarn {
		t.Errorf("Expected warn level, got %v", logger.Level())
	}
}

func TestSetFormatSwitchesHandler(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := New(slog.LevelInfo, FormatText, buf)

	logger.SetFormat(FormatJSON)
	logger.Info("switched", "tool", "calculator/multiply")

	var logEntry map[string]any
	if err := json.Unmarshal(buf.Bytes(), &logEntry); err != nil {
		t.Fatalf("expected JSON output after SetFormat, got %q: %v", buf.String(), err)
	}
	if logEntry["tool"] != "calculator/multiply" {
		t.Errorf("Expected tool attribute, got %v", logEntry["tool"])
	}
}

func TestDefaultLoggerAvailable(t *testing.T) {
	if Default() == nil {
		t.Fatal("Default logger must never be nil")
	}
	// Must not panic.
	Debug("debug via package helper")
}

func TestLogLevelFromString(t *testing.T) {
	tests := []struct {
		input    string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"error", slog.LevelError},
		{"invalid", slog.LevelInfo}, // Default level
	}

	for _, test := range tests {
		level := GetLevelFromString(test.input)
		if level != test.expected {
			t.Errorf("Expected level %v for input %s, got %v", test.expected, test.input, level)
		}
	}
}

func TestConcurrentLogging(t *testing.T) {
	buf := &bytes.Buffer{}
	logger := New(slog.LevelDebug, FormatJSON, buf)

	// Create multiple goroutines to log messages
	done := make(chan bool)
	for i := range 10 {
		go func(id int) {
			for j := range 100 {
				logger.Info("message", "id", id, "count", j)
			}
			done <- true
		}(i)
	}

	// Wait for all goroutines to finish
	for range 10 {
		<-done
	}

	// Count the number of messages
	output := buf.String()
	lines := strings.Split(output, "\n")
	// Subtract 1 because the last line is empty
	if len(lines)-1 != 1000 {
		t.Errorf("Expected 1000 messages, got %d", len(lines)-1)
	}
}
