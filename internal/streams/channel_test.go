package streams

import (
	"os"
	"syscall"

	"github.com/bokysan/streamio/internal/rawio"
)

// testChannel is a memory channel with injectable faults
type testChannel struct {
	*rawio.MemoryChannel

	notSeekable bool
	readBlocked bool
	// Bytes the channel accepts before writes block; negative means unlimited
	writeCapacity int
	// Upper bound on the bytes accepted by one write; zero means unlimited
	maxWrite int
	// Number of calls failing with EINTR before the next read or write goes through
	readInterrupts  int
	writeInterrupts int

	writeErr error
	closeErr error
	onWrite  func(p []byte)

	writes int
}

func newTestChannel(data string) *testChannel {
	return &testChannel{
		MemoryChannel: rawio.NewMemoryChannel([]byte(data)),
		writeCapacity: -1,
	}
}

func interrupted(op string) error {
	return &os.PathError{Op: op, Path: "test", Err: syscall.EINTR}
}

func (c *testChannel) Read(p []byte) (int, error) {
	if c.readInterrupts > 0 {
		c.readInterrupts--
		return 0, interrupted("read")
	}
	if c.readBlocked {
		return 0, rawio.ErrWouldBlock
	}
	return c.MemoryChannel.Read(p)
}

func (c *testChannel) Write(p []byte) (int, error) {
	c.writes++
	if c.onWrite != nil {
		c.onWrite(p)
	}
	if c.writeInterrupts > 0 {
		c.writeInterrupts--
		return 0, interrupted("write")
	}
	if c.writeErr != nil {
		return 0, c.writeErr
	}
	if c.writeCapacity == 0 {
		return 0, rawio.ErrWouldBlock
	}
	if c.maxWrite > 0 && len(p) > c.maxWrite {
		p = p[:c.maxWrite]
	}
	if c.writeCapacity > 0 && len(p) > c.writeCapacity {
		p = p[:c.writeCapacity]
	}
	n, err := c.MemoryChannel.Write(p)
	if c.writeCapacity > 0 {
		c.writeCapacity -= n
	}
	return n, err
}

func (c *testChannel) Seekable() bool {
	return !c.notSeekable
}

func (c *testChannel) Tell() (int64, error) {
	if c.notSeekable {
		return 0, rawio.ErrUnsupported
	}
	return c.MemoryChannel.Tell()
}

func (c *testChannel) Close() error {
	err := c.MemoryChannel.Close()
	if c.closeErr != nil {
		return c.closeErr
	}
	return err
}

func (c *testChannel) String() string {
	return "testChannel"
}
