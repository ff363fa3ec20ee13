package transport

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/nadtcp/nadtcp-go/pkg/log"
)

// Framing constants.
const (
	// DefaultMaxLineLength bounds inbound lines, terminator excluded. Real
	// amplifier lines are well under 100 bytes.
	DefaultMaxLineLength = 1024

	// readBufferSize is the bufio buffer size for the line reader.
	readBufferSize = 4096
)

// lineLogger holds the optional capture settings shared by reader and writer.
type lineLogger struct {
	logger log.Logger
	connID string
	remote string
	model  string
}

func (l *lineLogger) event(dir log.Direction, text string, size int) {
	if l.logger == nil {
		return
	}
	l.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: l.connID,
		Direction:    dir,
		Layer:        log.LayerTransport,
		Category:     log.CategoryMessage,
		RemoteAddr:   l.remote,
		Model:        l.model,
		Line:         &log.LineEvent{Text: text, Size: size},
	})
}

func (l *lineLogger) dropped(size int) {
	if l.logger == nil {
		return
	}
	l.logger.Log(log.Event{
		Timestamp:    time.Now(),
		ConnectionID: l.connID,
		Direction:    log.DirectionIn,
		Layer:        log.LayerTransport,
		Category:     log.CategoryError,
		RemoteAddr:   l.remote,
		Model:        l.model,
		Error: &log.ErrorEventData{
			Layer:   log.LayerTransport,
			Message: ErrLineTooLong.Error(),
			Context: fmt.Sprintf("%d bytes discarded", size),
		},
	})
}

// LineWriter writes terminated lines to an underlying writer.
type LineWriter struct {
	w  io.Writer
	mu sync.Mutex
	lineLogger
}

// NewLineWriter creates a line writer.
func NewLineWriter(w io.Writer) *LineWriter {
	return &LineWriter{w: w}
}

// SetLogger configures capture for this writer. Pass nil to disable.
func (lw *LineWriter) SetLogger(logger log.Logger, connID, remote, model string) {
	lw.mu.Lock()
	defer lw.mu.Unlock()
	lw.lineLogger = lineLogger{logger: logger, connID: connID, remote: remote, model: model}
}

// WriteLine writes line followed by "\n", adding the terminator if line does
// not already end in one. Thread-safe: one line is written at a time.
func (lw *LineWriter) WriteLine(line string) error {
	text := strings.TrimSuffix(line, "\n")
	if text == "" {
		return ErrEmptyLine
	}
	if strings.ContainsAny(text, "\r\n") {
		return ErrEmbeddedNewline
	}
	data := []byte(text + "\n")

	lw.mu.Lock()
	defer lw.mu.Unlock()

	if _, err := lw.w.Write(data); err != nil {
		return fmt.Errorf("write line: %w", err)
	}
	lw.event(log.DirectionOut, text, len(data))
	return nil
}

// LineReader splits an input stream into lines. Both "\n" and "\r\n" end a
// line. It is not safe for concurrent use.
type LineReader struct {
	r      *bufio.Reader
	maxLen int
	lineLogger
}

// NewLineReader creates a line reader with DefaultMaxLineLength.
func NewLineReader(r io.Reader) *LineReader {
	return NewLineReaderWithMax(r, DefaultMaxLineLength)
}

// NewLineReaderWithMax creates a line reader with a custom maximum length.
func NewLineReaderWithMax(r io.Reader, maxLen int) *LineReader {
	if maxLen <= 0 {
		maxLen = DefaultMaxLineLength
	}
	return &LineReader{
		r:      bufio.NewReaderSize(r, readBufferSize),
		maxLen: maxLen,
	}
}

// SetLogger configures capture for this reader. Pass nil to disable.
func (lr *LineReader) SetLogger(logger log.Logger, connID, remote, model string) {
	lr.lineLogger = lineLogger{logger: logger, connID: connID, remote: remote, model: model}
}

// ReadLine returns the next line without its terminator.
//
// A line longer than the maximum is consumed and discarded, and ReadLine
// returns ErrLineTooLong; the reader stays usable. An unterminated fragment
// before EOF is discarded and io.EOF returned.
func (lr *LineReader) ReadLine() (string, error) {
	var (
		buf      []byte
		size     int
		overflow bool
	)
	for {
		chunk, err := lr.r.ReadSlice('\n')
		size += len(chunk)
		if !overflow {
			buf = append(buf, chunk...)
			// +2 leaves room for "\r\n".
			if len(buf) > lr.maxLen+2 {
				overflow = true
				buf = nil
			}
		}

		switch {
		case err == nil:
			if overflow {
				lr.dropped(size)
				return "", ErrLineTooLong
			}
			line := strings.TrimRight(string(buf), "\r\n")
			if len(line) > lr.maxLen {
				lr.dropped(size)
				return "", ErrLineTooLong
			}
			lr.event(log.DirectionIn, line, size)
			return line, nil
		case errors.Is(err, bufio.ErrBufferFull):
			continue
		default:
			return "", err
		}
	}
}
