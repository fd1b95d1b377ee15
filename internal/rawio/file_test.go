package rawio

import (
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func Test_ParseMode(t *testing.T) {
	cases := []struct {
		mode     string
		flag     int
		readable bool
		writable bool
	}{
		{"r", os.O_RDONLY, true, false},
		{"rb", os.O_RDONLY, true, false},
		{"w", os.O_WRONLY | os.O_CREATE | os.O_TRUNC, false, true},
		{"a", os.O_WRONLY | os.O_CREATE | os.O_APPEND, false, true},
		{"x", os.O_WRONLY | os.O_CREATE | os.O_EXCL, false, true},
		{"r+", os.O_RDWR, true, true},
		{"w+b", os.O_RDWR | os.O_CREATE | os.O_TRUNC, true, true},
	}
	for _, c := range cases {
		t.Run(c.mode, func(t *testing.T) {
			flag, readable, writable, err := parseMode(c.mode)
			require.NoError(t, err)
			require.Equal(t, c.flag, flag)
			require.Equal(t, c.readable, readable)
			require.Equal(t, c.writable, writable)
		})
	}

	_, _, _, err := parseMode("rw")
	require.Error(t, err)
	_, _, _, err = parseMode("")
	require.Error(t, err)
}

func Test_FileChannel_ReadWriteSeek(t *testing.T) {
	name := filepath.Join(t.TempDir(), "data.bin")

	c, err := OpenFile(name, "w+", 0o600)
	require.NoError(t, err)
	require.True(t, c.Readable())
	require.True(t, c.Writable())
	require.True(t, c.Seekable())
	require.False(t, c.Isatty())
	require.Equal(t, name, c.Name())

	n, err := c.Write([]byte("hello world"))
	require.NoError(t, err)
	require.Equal(t, 11, n)

	pos, err := c.Seek(6, io.SeekStart)
	require.NoError(t, err)
	require.Equal(t, int64(6), pos)

	buf := make([]byte, 16)
	n, err = c.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "world", string(buf[:n]))

	n, err = c.Read(buf)
	require.Equal(t, 0, n)
	require.Equal(t, io.EOF, err)

	tell, err := c.Tell()
	require.NoError(t, err)
	require.Equal(t, int64(11), tell)

	size, err := c.Truncate(5)
	require.NoError(t, err)
	require.Equal(t, int64(5), size)

	fd, err := c.Fileno()
	require.NoError(t, err)
	require.NotZero(t, fd)

	require.NoError(t, c.Close())
	require.True(t, c.Closed())
	require.NoError(t, c.Close(), "Second close should succeed")

	_, err = c.Read(buf)
	require.ErrorIs(t, err, os.ErrClosed)
	_, err = c.Fileno()
	require.ErrorIs(t, err, os.ErrClosed)

	data, err := os.ReadFile(name)
	require.NoError(t, err)
	require.Equal(t, "hello", string(data))
}

func Test_FileChannel_Directions(t *testing.T) {
	name := filepath.Join(t.TempDir(), "data.txt")
	require.NoError(t, os.WriteFile(name, []byte("abc"), 0o600))

	r, err := OpenFile(name, "r", 0)
	require.NoError(t, err)
	defer r.Close()
	_, err = r.Write([]byte("x"))
	require.ErrorIs(t, err, ErrUnsupported)

	w, err := OpenFile(name, "a", 0)
	require.NoError(t, err)
	defer w.Close()
	_, err = w.Read(make([]byte, 1))
	require.ErrorIs(t, err, ErrUnsupported)

	_, err = OpenFile(name, "x", 0o600)
	require.Error(t, err, "Exclusive create should fail on an existing file")

	_, err = OpenFile(name, "q", 0o600)
	require.Error(t, err)
}

func Test_FileChannel_PipeIsNotSeekable(t *testing.T) {
	pr, pw, err := os.Pipe()
	require.NoError(t, err)
	r := NewFileChannel(pr, true, false)
	w := NewFileChannel(pw, false, true)
	defer r.Close()

	require.False(t, r.Seekable())

	_, err = w.Write([]byte("ping"))
	require.NoError(t, err)
	require.NoError(t, w.Close())

	buf := make([]byte, 8)
	n, err := r.Read(buf)
	require.NoError(t, err)
	require.Equal(t, "ping", string(buf[:n]))

	_, err = r.Read(buf)
	require.Equal(t, io.EOF, err)
}
