package ndjson

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
)

// MaxMessageSize is the maximum NDJSON message size (1 MiB)
const MaxMessageSize = 1024 * 1024

var (
	// ErrEmpty is returned by DecodeObject when the input holds no JSON value.
	ErrEmpty = errors.New("no JSON value in output")
	// ErrMarshal is returned by Encode when the message has no JSON form.
	ErrMarshal = errors.New("failed to marshal message")
)

// Encoder writes NDJSON messages to an output stream
type Encoder struct {
	writer  *bufio.Writer
	logger  *slog.Logger
	maxSize int
}

// NewEncoder creates a new NDJSON encoder
func NewEncoder(w io.Writer, logger *slog.Logger) *Encoder {
	return NewEncoderSize(w, logger, MaxMessageSize)
}

// NewEncoderSize creates an encoder with a custom message size limit.
func NewEncoderSize(w io.Writer, logger *slog.Logger, maxSize int) *Encoder {
	if maxSize <= 0 {
		maxSize = MaxMessageSize
	}
	return &Encoder{
		writer:  bufio.NewWriter(w),
		logger:  logger,
		maxSize: maxSize,
	}
}

// Encode writes a message as a single JSON line
func (e *Encoder) Encode(v any) error {
	// json.Marshal escapes control characters inside strings, so the
	// payload never contains a raw newline
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrMarshal, err)
	}

	if len(data) > e.maxSize {
		e.logger.Error("message exceeds size limit",
			"size", len(data),
			"limit", e.maxSize,
			"overflow", len(data)-e.maxSize)
		return fmt.Errorf("message size %d exceeds limit %d", len(data), e.maxSize)
	}

	if _, err := e.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write message: %w", err)
	}
	if err := e.writer.WriteByte('\n'); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	if err := e.writer.Flush(); err != nil {
		return fmt.Errorf("failed to flush output: %w", err)
	}

	return nil
}

// Decoder reads NDJSON messages from an input stream
type Decoder struct {
	scanner *bufio.Scanner
	logger  *slog.Logger
	lineNum int
}

// NewDecoder creates a new NDJSON decoder
func NewDecoder(r io.Reader, logger *slog.Logger) *Decoder {
	scanner := bufio.NewScanner(r)

	buf := make([]byte, 64*1024)
	scanner.Buffer(buf, MaxMessageSize)

	return &Decoder{
		scanner: scanner,
		logger:  logger,
	}
}

// Line returns the number of the last line read.
func (d *Decoder) Line() int {
	return d.lineNum
}

// Decode reads the next NDJSON message
func (d *Decoder) Decode(v any) error {
	for {
		if !d.scanner.Scan() {
			if err := d.scanner.Err(); err != nil {
				return fmt.Errorf("scanner error at line %d: %w", d.lineNum, err)
			}
			return io.EOF
		}

		d.lineNum++
		data := bytes.TrimSpace(d.scanner.Bytes())

		// Skip empty lines
		if len(data) == 0 {
			continue
		}

		if err := json.Unmarshal(data, v); err != nil {
			d.logger.Error("failed to unmarshal JSON",
				"line", d.lineNum,
				"error", err,
				"data", string(data[:min(100, len(data))]))
			return fmt.Errorf("failed to unmarshal line %d: %w", d.lineNum, err)
		}

		return nil
	}
}

// DecodeObject decodes output that must hold exactly one JSON object.
// Surrounding whitespace is allowed; any second value is an error.
func DecodeObject(data []byte) (map[string]any, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, ErrEmpty
	}

	dec := json.NewDecoder(bytes.NewReader(trimmed))

	var obj map[string]any
	if err := dec.Decode(&obj); err != nil {
		return nil, fmt.Errorf("failed to decode object: %w", err)
	}
	if obj == nil {
		return nil, fmt.Errorf("expected a JSON object, got null")
	}

	if dec.More() {
		return nil, fmt.Errorf("unexpected data after JSON object at offset %d", dec.InputOffset())
	}
	var extra json.RawMessage
	if err := dec.Decode(&extra); err != io.EOF {
		return nil, fmt.Errorf("unexpected data after JSON object at offset %d", dec.InputOffset())
	}

	return obj, nil
}
