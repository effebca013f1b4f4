// Package buffer collects response body fragments in memory and moves them to
// a temporary file once they outgrow a limit.
package buffer

import (
	"bytes"
	"io"
	"os"
	"sync"

	"github.com/WhileEndless/go-sahttp/pkg/constants"
	"github.com/WhileEndless/go-sahttp/pkg/errors"
)

// Buffer is an io.Writer for body fragments. It is safe for concurrent use,
// though a single exchange only ever writes from one goroutine.
type Buffer struct {
	mu     sync.Mutex
	mem    bytes.Buffer
	file   *os.File
	limit  int64
	size   int64
	closed bool
}

// New creates a Buffer that spills to disk above limit bytes. A non-positive
// limit uses the default of 4MB.
func New(limit int64) *Buffer {
	if limit <= 0 {
		limit = constants.DefaultBodyMemLimit
	}
	return &Buffer{limit: limit}
}

// Write appends p.
func (b *Buffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return 0, errors.NewClosedError("buffer write")
	}
	if b.file == nil && int64(b.mem.Len()+len(p)) > b.limit {
		if err := b.spill(); err != nil {
			return 0, err
		}
	}

	var (
		n   int
		err error
	)
	if b.file != nil {
		n, err = b.file.Write(p)
		if err != nil {
			err = errors.NewIOError("writing to temp file", err)
		}
	} else {
		n, err = b.mem.Write(p)
	}
	b.size += int64(n)
	return n, err
}

// spill moves the in-memory bytes into a fresh temp file. Caller holds mu.
func (b *Buffer) spill() error {
	f, err := os.CreateTemp("", "sahttp-body-*.tmp")
	if err != nil {
		return errors.NewIOError("creating temp file", err)
	}
	if _, err := f.Write(b.mem.Bytes()); err != nil {
		f.Close()
		os.Remove(f.Name())
		return errors.NewIOError("writing to temp file", err)
	}
	b.file = f
	b.mem = bytes.Buffer{}
	return nil
}

// Size returns the total number of bytes written.
func (b *Buffer) Size() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.size
}

// Spilled reports whether the data lives in a temp file.
func (b *Buffer) Spilled() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.file != nil
}

// Path returns the temp file path, or "" while the data is in memory.
func (b *Buffer) Path() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.file == nil {
		return ""
	}
	return b.file.Name()
}

// Bytes returns the in-memory data, or nil once spilled.
func (b *Buffer) Bytes() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.file != nil {
		return nil
	}
	return b.mem.Bytes()
}

// Reader returns a fresh reader over everything written so far.
func (b *Buffer) Reader() (io.ReadCloser, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil, errors.NewClosedError("buffer read")
	}
	if b.file == nil {
		return io.NopCloser(bytes.NewReader(b.mem.Bytes())), nil
	}
	if err := b.file.Sync(); err != nil {
		return nil, errors.NewIOError("syncing temp file", err)
	}
	f, err := os.Open(b.file.Name())
	if err != nil {
		return nil, errors.NewIOError("opening temp file for reading", err)
	}
	return f, nil
}

// Close removes the temp file, if any. It is idempotent.
func (b *Buffer) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return nil
	}
	b.closed = true
	b.mem = bytes.Buffer{}
	if b.file == nil {
		return nil
	}
	name := b.file.Name()
	err := b.file.Close()
	b.file = nil
	if rmErr := os.Remove(name); rmErr != nil && err == nil {
		err = rmErr
	}
	if err != nil {
		return errors.NewIOError("removing temp file", err)
	}
	return nil
}
