package store

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// maxLineBytes bounds a single record line; records carry per-URL reasoning
// and can exceed bufio's 64KB default
var maxLineBytes = 16 << 20

// ErrLineTooLong is reported for a line longer than the store accepts
var ErrLineTooLong = errors.New("line too long")

// LineFunc receives each decoded object, or the error for a line that is
// not a JSON object or is too long
type LineFunc func(lineNo int, obj map[string]json.RawMessage, err error)

// Scan reads the store at path line by line. A missing store is treated
// as empty. Decode errors are reported through fn rather than aborting.
func Scan(path string, fn LineFunc) error {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("open store: %w", err)
	}
	defer func() { _ = f.Close() }()

	return ScanReader(f, fn)
}

// ScanReader is Scan over an arbitrary reader
func ScanReader(r io.Reader, fn LineFunc) error {
	br := bufio.NewReaderSize(r, 64*1024)

	lineNo := 0
	for {
		line, tooLong, err := readLine(br)
		if err != nil && err != io.EOF {
			return fmt.Errorf("scan store: %w", err)
		}
		if err == io.EOF && len(line) == 0 && !tooLong {
			return nil
		}
		lineNo++

		if tooLong {
			fn(lineNo, nil, fmt.Errorf("line %d: %w", lineNo, ErrLineTooLong))
		} else if line = bytes.TrimSpace(line); len(line) > 0 {
			var obj map[string]json.RawMessage
			if uerr := json.Unmarshal(line, &obj); uerr != nil {
				fn(lineNo, nil, fmt.Errorf("parse line %d: %w", lineNo, uerr))
			} else {
				fn(lineNo, obj, nil)
			}
		}

		if err == io.EOF {
			return nil
		}
	}
}

// readLine returns the next line including its newline. A line longer
// than maxLineBytes is consumed and reported as tooLong.
func readLine(br *bufio.Reader) (line []byte, tooLong bool, err error) {
	for {
		chunk, rerr := br.ReadSlice('\n')
		if !tooLong {
			if len(line)+len(chunk) > maxLineBytes+1 {
				tooLong, line = true, nil
			} else {
				line = append(line, chunk...)
			}
		}
		if rerr != bufio.ErrBufferFull {
			return line, tooLong, rerr
		}
	}
}
