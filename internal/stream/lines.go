// Package stream turns chunked byte streams into complete lines.
package stream

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
)

// DefaultChunkSize is the read size used when none is configured
const DefaultChunkSize = 4096

// LineSplitter buffers chunks and yields complete newline-terminated lines.
// Whatever follows the last newline is carried over to the next Write, so a line
// split across chunk boundaries is emitted exactly once, intact.
type LineSplitter struct {
	pending []byte
}

// Write appends a chunk and returns the lines it completed, without terminators
func (s *LineSplitter) Write(chunk []byte) []string {
	if len(chunk) == 0 {
		return nil
	}
	s.pending = append(s.pending, chunk...)

	var lines []string
	for {
		idx := bytes.IndexByte(s.pending, '\n')
		if idx < 0 {
			break
		}
		lines = append(lines, string(bytes.TrimSuffix(s.pending[:idx], []byte{'\r'})))
		s.pending = s.pending[idx+1:]
	}

	// Compact so the backing array does not grow with the whole stream
	if len(s.pending) == 0 {
		s.pending = nil
	} else {
		s.pending = append([]byte(nil), s.pending...)
	}

	return lines
}

// Pending returns the buffered partial line
func (s *LineSplitter) Pending() string {
	return string(s.pending)
}

// Flush returns the final unterminated line, if any, and clears the buffer
func (s *LineSplitter) Flush() (string, bool) {
	if len(s.pending) == 0 {
		return "", false
	}
	line := string(bytes.TrimSuffix(s.pending, []byte{'\r'}))
	s.pending = nil
	return line, true
}

// ScanLines reads r in chunks of chunkSize and calls fn for every line, including a
// trailing line without terminator. It stops early if ctx is done or fn returns an error.
func ScanLines(ctx context.Context, r io.Reader, chunkSize int, fn func(line string) error) error {
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}

	var splitter LineSplitter
	buf := make([]byte, chunkSize)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		n, readErr := r.Read(buf)
		if n > 0 {
			for _, line := range splitter.Write(buf[:n]) {
				if err := fn(line); err != nil {
					return err
				}
			}
		}

		if readErr != nil {
			if errors.Is(readErr, io.EOF) {
				if line, ok := splitter.Flush(); ok {
					return fn(line)
				}
				return nil
			}
			return fmt.Errorf("read stream: %w", readErr)
		}
	}
}
