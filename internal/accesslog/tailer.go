// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package accesslog

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrLogFileNotFound is returned when the log file does not exist at open.
var ErrLogFileNotFound = errors.New("log file not found")

// Tailer reads lines appended to a file after it was opened. It follows
// logrotate-style replacement and copytruncate-style truncation.
type Tailer struct {
	path    string
	f       *os.File
	r       *bufio.Reader
	info    os.FileInfo
	offset  int64
	partial []byte
}

// OpenTailer opens path positioned at its end.
func OpenTailer(path string) (*Tailer, error) {
	t := &Tailer{path: path}
	if err := t.open(true); err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Tailer) open(atEnd bool) error {
	// #nosec G304 -- the access log path comes from operator config
	f, err := os.Open(t.path)
	if errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrLogFileNotFound, t.path)
	}
	if err != nil {
		return fmt.Errorf("open access log: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return fmt.Errorf("stat access log: %w", err)
	}

	var offset int64
	if atEnd {
		if offset, err = f.Seek(0, io.SeekEnd); err != nil {
			_ = f.Close()
			return fmt.Errorf("seek access log: %w", err)
		}
	}

	if t.f != nil {
		_ = t.f.Close()
	}
	t.f, t.info, t.offset, t.partial = f, info, offset, nil
	t.r = bufio.NewReader(f)
	return nil
}

// ReadLine returns the next complete line without its newline. It returns
// io.EOF when no complete line is available yet; a trailing partial line is
// kept until its newline arrives.
func (t *Tailer) ReadLine() (string, error) {
	if t.f == nil {
		return "", os.ErrClosed
	}

	line, err := t.readLine()
	if !errors.Is(err, io.EOF) {
		return line, err
	}

	if reopened, rerr := t.checkRotation(); rerr != nil || !reopened {
		return "", io.EOF
	}
	return t.readLine()
}

func (t *Tailer) readLine() (string, error) {
	chunk, err := t.r.ReadBytes('\n')
	t.offset += int64(len(chunk))
	if err != nil {
		t.partial = append(t.partial, chunk...)
		return "", err
	}

	if len(t.partial) > 0 {
		chunk = append(t.partial, chunk...)
		t.partial = nil
	}
	return string(chunk[:len(chunk)-1]), nil
}

// checkRotation reopens from the start if the path now names another file or
// the file shrank below what was read.
func (t *Tailer) checkRotation() (bool, error) {
	info, err := os.Stat(t.path)
	if err != nil {
		// mid-rotation; keep the old handle until the new file shows up
		return false, err
	}
	if !os.SameFile(info, t.info) {
		return true, t.open(false)
	}
	if info.Size() < t.offset {
		if _, err := t.f.Seek(0, io.SeekStart); err != nil {
			return false, err
		}
		t.r.Reset(t.f)
		t.offset, t.partial = 0, nil
		return true, nil
	}
	return false, nil
}

// Close closes the file.
func (t *Tailer) Close() error {
	if t.f == nil {
		return nil
	}
	err := t.f.Close()
	t.f = nil
	return err
}
