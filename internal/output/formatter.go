package output

import (
	"encoding/json"
	"fmt"
	"io"
	"time"
)

// SampleResult describes one completed voice sample
type SampleResult struct {
	Index      int       `json:"index"`
	DurationMs int64     `json:"duration_ms"`
	Bytes      int       `json:"bytes"`
	MediaType  string    `json:"media_type"`
	File       string    `json:"file,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
}

// Event represents a session event (state changes, rejections)
type Event struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// Formatter is the interface for output formatters
type Formatter interface {
	// WriteResult writes a completed sample result
	WriteResult(result SampleResult) error

	// WriteEvent writes a session event (e.g. state transitions)
	WriteEvent(eventType, message string) error

	// Flush ensures all buffered output is written
	Flush() error

	// Close closes the formatter and releases resources
	Close() error
}

// NewFormatter creates a formatter for the given format name
func NewFormatter(format string, writer io.Writer) (Formatter, error) {
	switch format {
	case "json":
		return NewJSONFormatter(writer), nil
	case "text", "console", "":
		return NewTextFormatter(writer), nil
	default:
		return nil, fmt.Errorf("unknown output format: %s", format)
	}
}

// JSONFormatter emits results and events as a JSON stream
type JSONFormatter struct {
	encoder *json.Encoder
}

// NewJSONFormatter creates a new JSON formatter
func NewJSONFormatter(writer io.Writer) *JSONFormatter {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return &JSONFormatter{encoder: encoder}
}

func (f *JSONFormatter) WriteResult(result SampleResult) error {
	return f.encoder.Encode(result)
}

func (f *JSONFormatter) WriteEvent(eventType, message string) error {
	return f.encoder.Encode(Event{
		Type:      eventType,
		Message:   message,
		Timestamp: time.Now(),
	})
}

func (f *JSONFormatter) Flush() error { return nil }
func (f *JSONFormatter) Close() error { return nil }

// TextFormatter emits human-readable lines
type TextFormatter struct {
	writer io.Writer
}

// NewTextFormatter creates a new text formatter
func NewTextFormatter(writer io.Writer) *TextFormatter {
	return &TextFormatter{writer: writer}
}

func (f *TextFormatter) WriteResult(result SampleResult) error {
	line := fmt.Sprintf("[%d] %s sample, %.1fs, %d bytes",
		result.Index, result.MediaType, float64(result.DurationMs)/1000, result.Bytes)
	if result.File != "" {
		line += " -> " + result.File
	}
	_, err := fmt.Fprintln(f.writer, line)
	return err
}

func (f *TextFormatter) WriteEvent(eventType, message string) error {
	_, err := fmt.Fprintf(f.writer, "[%s] %s\n", eventType, message)
	return err
}

func (f *TextFormatter) Flush() error { return nil }
func (f *TextFormatter) Close() error { return nil }
