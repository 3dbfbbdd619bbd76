package protocol

import (
	"bufio"
	"errors"
	"io"
	"strings"
	"unicode/utf8"
)

// MinBufferSize is the smallest read buffer a LineReader accepts.
const MinBufferSize = 16

// LineReader reads newline-terminated lines with a hard bound on line length.
//
// A line never exceeds size-1 bytes.  Longer input is truncated and the rest of
// that line is discarded; truncation is not an error.
type LineReader struct {
	r     *bufio.Reader
	limit int
}

// NewLineReader wraps r.  size is the read buffer size in bytes; values below
// MinBufferSize are raised to it.
func NewLineReader(r io.Reader, size int) *LineReader {
	if size < MinBufferSize {
		size = MinBufferSize
	}
	return &LineReader{
		r:     bufio.NewReaderSize(r, size),
		limit: size - 1,
	}
}

// Limit returns the maximum number of bytes a returned line may hold.
func (lr *LineReader) Limit() int { return lr.limit }

// ReadLine blocks until a full line arrives and returns it without the
// trailing CR/LF.
//
// When the peer closes or the read fails after part of a line arrived, that
// part is returned with a nil error and the failure surfaces on the next call.
// An error is returned only when no data at all could be read.
func (lr *LineReader) ReadLine() (string, error) {
	var (
		line      []byte
		truncated bool
	)
	for {
		chunk, err := lr.r.ReadSlice('\n')
		if !truncated {
			if room := lr.limit - len(line); len(chunk) > room {
				chunk = chunk[:room]
				truncated = true
			}
			line = append(line, chunk...)
		}

		switch {
		case err == nil:
			return finish(line, truncated), nil
		case errors.Is(err, bufio.ErrBufferFull):
			// keep draining the oversized line
		case len(line) > 0:
			return finish(line, truncated), nil
		default:
			return "", err
		}
	}
}

func finish(line []byte, truncated bool) string {
	if truncated {
		line = trimPartialRune(line)
	}
	return strings.TrimRight(string(line), "\r\n")
}

// trimPartialRune drops an incomplete UTF-8 sequence cut by truncation.
func trimPartialRune(b []byte) []byte {
	for i := len(b) - 1; i >= 0 && i >= len(b)-utf8.UTFMax; i-- {
		if !utf8.RuneStart(b[i]) {
			continue
		}
		if !utf8.FullRune(b[i:]) {
			return b[:i]
		}
		break
	}
	return b
}
