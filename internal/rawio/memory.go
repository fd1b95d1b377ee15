package rawio

import (
	"io"
	"sync"

	"github.com/pkg/errors"
)

// MemoryChannel is a seekable, readable and writable raw channel backed by a byte slice. Writes past the end
// of the data extend it, filling any gap with zero bytes.
type MemoryChannel struct {
	mutex  sync.Mutex
	data   []byte
	pos    int64
	closed bool
}

// NewMemoryChannel creates a channel holding a copy of `data`, positioned at the start.
func NewMemoryChannel(data []byte) *MemoryChannel {
	return &MemoryChannel{
		data: append([]byte(nil), data...),
	}
}

func (m *MemoryChannel) Read(p []byte) (int, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.closed {
		return 0, errors.WithStack(io.ErrClosedPipe)
	}
	if m.pos >= int64(len(m.data)) {
		return 0, io.EOF
	}
	n := copy(p, m.data[m.pos:])
	m.pos += int64(n)
	return n, nil
}

func (m *MemoryChannel) Write(p []byte) (int, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.closed {
		return 0, errors.WithStack(io.ErrClosedPipe)
	}
	end := m.pos + int64(len(p))
	if end > int64(len(m.data)) {
		grown := make([]byte, end)
		copy(grown, m.data)
		m.data = grown
	}
	copy(m.data[m.pos:], p)
	m.pos = end
	return len(p), nil
}

func (m *MemoryChannel) Seek(offset int64, whence int) (int64, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	var target int64
	switch whence {
	case io.SeekStart:
		target = offset
	case io.SeekCurrent:
		target = m.pos + offset
	case io.SeekEnd:
		target = int64(len(m.data)) + offset
	default:
		return 0, errors.Errorf("invalid whence %d", whence)
	}
	if target < 0 {
		return 0, errors.Errorf("negative seek position %d", target)
	}
	m.pos = target
	return target, nil
}

func (m *MemoryChannel) Tell() (int64, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.pos, nil
}

func (m *MemoryChannel) Truncate(size int64) (int64, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if size < 0 {
		return 0, errors.Errorf("negative size %d", size)
	}
	if size < int64(len(m.data)) {
		m.data = m.data[:size]
	} else {
		grown := make([]byte, size)
		copy(grown, m.data)
		m.data = grown
	}
	return size, nil
}

func (m *MemoryChannel) Readable() bool { return true }
func (m *MemoryChannel) Writable() bool { return true }
func (m *MemoryChannel) Seekable() bool { return true }

func (m *MemoryChannel) Fileno() (uintptr, error) {
	return 0, errors.Wrap(ErrUnsupported, "memory channel has no file descriptor")
}

func (m *MemoryChannel) Isatty() bool { return false }

func (m *MemoryChannel) Close() error {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	m.closed = true
	return nil
}

func (m *MemoryChannel) Closed() bool {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return m.closed
}

// Bytes returns a copy of the channel contents
func (m *MemoryChannel) Bytes() []byte {
	m.mutex.Lock()
	defer m.mutex.Unlock()
	return append([]byte(nil), m.data...)
}

// SetBytes replaces the channel contents and rewinds the cursor
func (m *MemoryChannel) SetBytes(data []byte) error {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	if m.closed {
		return errors.WithStack(io.ErrClosedPipe)
	}
	m.data = append([]byte(nil), data...)
	m.pos = 0
	return nil
}
