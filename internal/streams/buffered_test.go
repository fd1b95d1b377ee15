package streams

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/bokysan/streamio/internal/rawio"
	"github.com/hashicorp/go-multierror"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func newMemoryStream(t *testing.T, data string) *BufferedStream {
	b, err := NewBufferedRandom(rawio.NewMemoryChannel([]byte(data)), 4)
	require.NoError(t, err)
	return b
}

func Test_BufferedReader_ShortReads(t *testing.T) {
	b, err := NewBufferedReader(newTestChannel("a\nb\nc"), 2)
	require.NoError(t, err)

	data, err := b.ReadN(1)
	require.NoError(t, err)
	require.Equal(t, "a", string(data))

	data, err = b.ReadN(2)
	require.NoError(t, err)
	require.Equal(t, "\nb", string(data))

	data, err = b.ReadN(3)
	require.NoError(t, err)
	require.Equal(t, "\nc", string(data), "Only two bytes should have remained")

	pos, err := b.Tell()
	require.NoError(t, err)
	require.Equal(t, int64(5), pos)

	_, err = b.ReadN(1)
	require.Equal(t, io.EOF, err)
}

func Test_BufferedReader_PeekDoesNotMove(t *testing.T) {
	for _, size := range []int{1, 3, 7, 64} {
		b, err := NewBufferedReader(newTestChannel("0123456789"), size)
		require.NoError(t, err)

		_, err = b.ReadN(2)
		require.NoError(t, err)

		peeked, err := b.Peek(5)
		require.NoError(t, err)
		require.NotEmpty(t, peeked)

		for k := 0; k <= len(peeked); k++ {
			pos, err := b.Tell()
			require.NoError(t, err)

			data, err := b.ReadN(k)
			require.NoError(t, err)
			require.Equalf(t, peeked[:k], data, "buffer size %d, read %d", size, k)

			_, err = b.Seek(pos, io.SeekStart)
			require.NoError(t, err)
		}
	}
}

func Test_BufferedReader_PeekEmptyBuffer(t *testing.T) {
	b, err := NewBufferedReader(newTestChannel("0123456789"), 4)
	require.NoError(t, err)

	peeked, err := b.Peek(1)
	require.NoError(t, err)
	require.Equal(t, "0123", string(peeked), "Peek should fill the whole buffer")

	data, err := b.ReadN(6)
	require.NoError(t, err)
	require.Equal(t, "012345", string(data))
}

func Test_BufferedReader_ReadAll(t *testing.T) {
	content := strings.Repeat("0123456789", 1000)
	b, err := NewBufferedReader(newTestChannel(content), 16)
	require.NoError(t, err)

	head, err := b.ReadN(5)
	require.NoError(t, err)
	require.Equal(t, "01234", string(head))

	rest, err := b.ReadN(-1)
	require.NoError(t, err)
	require.Equal(t, content[5:], string(rest))

	rest, err = b.ReadN(-1)
	require.NoError(t, err)
	require.Empty(t, rest)
}

func Test_BufferedReader_Read1(t *testing.T) {
	b, err := NewBufferedReader(newTestChannel("0123456789"), 4)
	require.NoError(t, err)

	data, err := b.ReadN(1)
	require.NoError(t, err)
	require.Equal(t, "0", string(data))

	data, err = b.Read1(10)
	require.NoError(t, err)
	require.Equal(t, "123", string(data), "Only buffered bytes should be returned")

	data, err = b.Read1(10)
	require.NoError(t, err)
	require.Equal(t, "456789", string(data), "Exactly one raw read should be done")

	_, err = b.Read1(10)
	require.Equal(t, io.EOF, err)
}

func Test_BufferedReader_ReadInto(t *testing.T) {
	content := strings.Repeat("abcdefgh", 10)
	b, err := NewBufferedReader(newTestChannel(content), 8)
	require.NoError(t, err)

	p := make([]byte, 3)
	n, err := b.ReadInto(p)
	require.NoError(t, err)
	require.Equal(t, 3, n)
	require.Equal(t, "abc", string(p))

	p = make([]byte, 30)
	n, err = b.ReadInto(p)
	require.NoError(t, err)
	require.Equal(t, 30, n)
	require.Equal(t, content[3:33], string(p))

	all, err := io.ReadAll(b)
	require.NoError(t, err)
	require.Equal(t, content[33:], string(all))
}

func Test_BufferedReader_ReadLine(t *testing.T) {
	b, err := NewBufferedReader(newTestChannel("first\nsecond line\n\nlast"), 4)
	require.NoError(t, err)

	line, err := b.ReadLine(-1)
	require.NoError(t, err)
	require.Equal(t, "first\n", string(line))

	line, err = b.ReadLine(3)
	require.NoError(t, err)
	require.Equal(t, "sec", string(line))

	line, err = b.ReadLine(-1)
	require.NoError(t, err)
	require.Equal(t, "ond line\n", string(line))

	lines, err := b.ReadLines(0)
	require.NoError(t, err)
	require.Len(t, lines, 2)
	require.Equal(t, "\n", string(lines[0]))
	require.Equal(t, "last", string(lines[1]))

	_, err = b.ReadLine(-1)
	require.Equal(t, io.EOF, err)
}

func Test_BufferedReader_WouldBlock(t *testing.T) {
	raw := newTestChannel("0123456789")
	raw.notSeekable = true
	b, err := NewBufferedReader(raw, 4)
	require.NoError(t, err)

	data, err := b.ReadN(2)
	require.NoError(t, err)
	require.Equal(t, "01", string(data))

	raw.readBlocked = true
	data, err = b.ReadN(5)
	require.NoError(t, err)
	require.Equal(t, "23", string(data), "Buffered bytes should be returned before blocking")

	_, err = b.ReadN(1)
	require.Equal(t, ErrWouldBlock, err)
	_, err = b.Read1(1)
	require.Equal(t, ErrWouldBlock, err)
	_, err = b.Peek(1)
	require.Equal(t, ErrWouldBlock, err)
	_, err = b.ReadN(-1)
	require.Equal(t, ErrWouldBlock, err)

	raw.readBlocked = false
	data, err = b.ReadN(-1)
	require.NoError(t, err)
	require.Equal(t, "456789", string(data))
}

func Test_BufferedReader_RetriesInterruptedReads(t *testing.T) {
	raw := newTestChannel("0123456789")
	raw.readInterrupts = 3
	b, err := NewBufferedReader(raw, 4)
	require.NoError(t, err)

	data, err := b.ReadN(10)
	require.NoError(t, err)
	require.Equal(t, "0123456789", string(data))
}

func Test_BufferedWriter_RoundTrip(t *testing.T) {
	content := []byte(strings.Repeat("The quick brown fox jumps over the lazy dog. ", 20))
	for _, size := range []int{1, 2, 3, 7, 16, 100, 4096} {
		for _, step := range []int{1, 2, 5, 13, 64, len(content)} {
			raw := newTestChannel("")
			b, err := NewBufferedWriter(raw, size)
			require.NoError(t, err)

			for i := 0; i < len(content); i += step {
				end := i + step
				if end > len(content) {
					end = len(content)
				}
				n, err := b.Write(content[i:end])
				require.NoError(t, err)
				require.Equal(t, end-i, n)
			}
			require.NoError(t, b.Flush())
			require.Equalf(t, content, raw.Bytes(), "buffer size %d, write size %d", size, step)
		}
	}
}

func Test_BufferedWriter_ShortRawWrites(t *testing.T) {
	raw := newTestChannel("")
	raw.maxWrite = 3
	b, err := NewBufferedWriter(raw, 4)
	require.NoError(t, err)

	content := []byte("0123456789abcdefghij")
	n, err := b.Write(content)
	require.NoError(t, err)
	require.Equal(t, len(content), n)
	require.NoError(t, b.Flush())
	require.Equal(t, content, raw.Bytes())
}

func Test_BufferedWriter_RetriesInterruptedWrites(t *testing.T) {
	raw := newTestChannel("")
	raw.writeInterrupts = 2
	b, err := NewBufferedWriter(raw, 4)
	require.NoError(t, err)

	_, err = b.Write([]byte("0123456789"))
	require.NoError(t, err)
	require.Equal(t, "0123456789", string(raw.Bytes()))

	_, err = b.Write([]byte("ab"))
	require.NoError(t, err)
	raw.writeInterrupts = 2
	require.NoError(t, b.Flush())
	require.Equal(t, "0123456789ab", string(raw.Bytes()))
	require.Equal(t, 0, raw.writeInterrupts)
}

func Test_BufferedWriter_PartialDirectWrite(t *testing.T) {
	raw := newTestChannel("")
	raw.writeCapacity = 5
	b, err := NewBufferedWriter(raw, 4)
	require.NoError(t, err)

	n, err := b.Write([]byte("0123456789"))
	require.True(t, errors.Is(err, ErrWouldBlock))
	var partial *BlockingPartialError
	require.True(t, errors.As(err, &partial))
	require.Equal(t, 9, partial.Written, "Five bytes written to the channel plus a full buffer")
	require.Equal(t, 9, n)
	require.Equal(t, "01234", string(raw.Bytes()))

	raw.writeCapacity = -1
	require.NoError(t, b.Flush())
	require.Equal(t, "012345678", string(raw.Bytes()))

	_, err = b.Write([]byte("9"))
	require.NoError(t, err)
	require.NoError(t, b.Flush())
	require.Equal(t, "0123456789", string(raw.Bytes()))
}

func Test_BufferedWriter_PartialFlushShiftsBuffer(t *testing.T) {
	raw := newTestChannel("")
	b, err := NewBufferedWriter(raw, 8)
	require.NoError(t, err)

	n, err := b.Write([]byte("abcdef"))
	require.NoError(t, err)
	require.Equal(t, 6, n)

	raw.writeCapacity = 2
	n, err = b.Write([]byte("ghijk"))
	var partial *BlockingPartialError
	require.True(t, errors.As(err, &partial))
	require.Equal(t, 4, partial.Written)
	require.Equal(t, 4, n)
	require.Equal(t, "ab", string(raw.Bytes()))

	// Flushing while still blocked keeps everything
	err = b.Flush()
	require.True(t, errors.Is(err, ErrWouldBlock))

	raw.writeCapacity = -1
	require.NoError(t, b.Flush())
	require.Equal(t, "abcdefghij", string(raw.Bytes()))

	_, err = b.Write([]byte("k"))
	require.NoError(t, err)
	require.NoError(t, b.Flush())
	require.Equal(t, "abcdefghijk", string(raw.Bytes()))
}

func Test_BufferedWriter_PartialFlushEverythingFits(t *testing.T) {
	raw := newTestChannel("")
	b, err := NewBufferedWriter(raw, 8)
	require.NoError(t, err)

	_, err = b.Write([]byte("abcdef"))
	require.NoError(t, err)

	raw.writeCapacity = 4
	n, err := b.Write([]byte("ghi"))
	require.NoError(t, err, "The shifted buffer has room for the whole write")
	require.Equal(t, 3, n)

	raw.writeCapacity = -1
	require.NoError(t, b.Flush())
	require.Equal(t, "abcdefghi", string(raw.Bytes()))
}

func Test_BufferedWriter_ReentrantWrite(t *testing.T) {
	raw := newTestChannel("")
	b, err := NewBufferedWriter(raw, 4)
	require.NoError(t, err)

	var inner error
	raw.onWrite = func(p []byte) {
		raw.onWrite = nil
		_, inner = b.Write([]byte("x"))
	}

	_, err = b.Write([]byte("0123456789"))
	require.NoError(t, err)

	var reentrancy *ReentrancyError
	require.Error(t, inner, "Reentrant write should fail")
	require.True(t, errors.As(inner, &reentrancy))

	require.NoError(t, b.Flush())
	require.Equal(t, "0123456789", string(raw.Bytes()), "Buffer state should not be corrupted")
}

func Test_BufferedRandom_SeekTell(t *testing.T) {
	raw := newTestChannel("0123456789")
	b, err := NewBufferedRandom(raw, 4)
	require.NoError(t, err)

	data, err := b.ReadN(3)
	require.NoError(t, err)
	require.Equal(t, "012", string(data))

	pos, err := b.Tell()
	require.NoError(t, err)
	require.Equal(t, int64(3), pos)

	pos, err = b.Seek(1, io.SeekCurrent)
	require.NoError(t, err)
	require.Equal(t, int64(4), pos)

	data, err = b.ReadN(2)
	require.NoError(t, err)
	require.Equal(t, "45", string(data))

	pos, err = b.Seek(-3, io.SeekEnd)
	require.NoError(t, err)
	require.Equal(t, int64(7), pos)

	data, err = b.ReadN(-1)
	require.NoError(t, err)
	require.Equal(t, "789", string(data))

	_, err = b.Seek(-1, io.SeekStart)
	require.True(t, IsUsageError(err))
	_, err = b.Seek(0, 42)
	require.True(t, IsUsageError(err))
}

func Test_BufferedRandom_SeekTellIdempotent(t *testing.T) {
	content := "abcdefghijklmnopqrstuvwxyz"
	for _, size := range []int{1, 3, 8, 64} {
		b, err := NewBufferedRandom(newTestChannel(content), size)
		require.NoError(t, err)

		for _, k := range []int{1, 4, 2, 9} {
			pos, err := b.Tell()
			require.NoError(t, err)
			_, err = b.Seek(pos, io.SeekStart)
			require.NoError(t, err)

			data, err := b.ReadN(k)
			require.NoError(t, err)
			require.Equal(t, content[pos:pos+int64(k)], string(data))
		}
	}
}

func Test_BufferedRandom_WriteAfterRead(t *testing.T) {
	raw := newTestChannel("0123456789")
	b, err := NewBufferedRandom(raw, 4)
	require.NoError(t, err)

	data, err := b.ReadN(2)
	require.NoError(t, err)
	require.Equal(t, "01", string(data))

	_, err = b.Write([]byte("XY"))
	require.NoError(t, err)

	pos, err := b.Tell()
	require.NoError(t, err)
	require.Equal(t, int64(4), pos)

	data, err = b.ReadN(2)
	require.NoError(t, err)
	require.Equal(t, "45", string(data))

	require.NoError(t, b.Flush())
	require.Equal(t, "01XY456789", string(raw.Bytes()))
}

func Test_BufferedRandom_LargeWriteAfterRead(t *testing.T) {
	raw := newTestChannel("0123456789")
	b, err := NewBufferedRandom(raw, 4)
	require.NoError(t, err)

	_, err = b.ReadN(1)
	require.NoError(t, err)

	_, err = b.Write([]byte("abcdefg"))
	require.NoError(t, err)
	require.NoError(t, b.Flush())
	require.Equal(t, "0abcdefg89", string(raw.Bytes()))

	pos, err := b.Tell()
	require.NoError(t, err)
	require.Equal(t, int64(8), pos)
}

func Test_BufferedRandom_Truncate(t *testing.T) {
	raw := newTestChannel("0123456789")
	b, err := NewBufferedRandom(raw, 4)
	require.NoError(t, err)

	_, err = b.ReadN(3)
	require.NoError(t, err)
	_, err = b.Write([]byte("ab"))
	require.NoError(t, err)

	size, err := b.Truncate(-1)
	require.NoError(t, err)
	require.Equal(t, int64(5), size)
	require.Equal(t, "012ab", string(raw.Bytes()))

	pos, err := b.Tell()
	require.NoError(t, err)
	require.Equal(t, int64(5), pos)
}

func Test_BufferedStream_CloseChainsErrors(t *testing.T) {
	writeErr := errors.New("disk full")
	closeErr := errors.New("close failed")

	raw := newTestChannel("")
	raw.writeErr = writeErr
	raw.closeErr = closeErr
	b, err := NewBufferedWriter(raw, 16)
	require.NoError(t, err)

	_, err = b.Write([]byte("abc"))
	require.NoError(t, err)

	err = b.Close()
	require.Error(t, err)
	var merr *multierror.Error
	require.True(t, errors.As(err, &merr))
	require.Len(t, merr.Errors, 2)
	require.True(t, errors.Is(merr.Errors[0], closeErr), "Close error should come first")
	require.True(t, errors.Is(merr.Errors[1], writeErr))
	require.True(t, b.Closed())
	require.True(t, raw.Closed(), "Raw channel should be closed even if the flush fails")
}

func Test_BufferedStream_CloseFlushFailure(t *testing.T) {
	writeErr := errors.New("disk full")
	raw := newTestChannel("")
	raw.writeErr = writeErr
	b, err := NewBufferedWriter(raw, 16)
	require.NoError(t, err)

	_, err = b.Write([]byte("abc"))
	require.NoError(t, err)

	err = b.Close()
	require.True(t, errors.Is(err, writeErr))
	var channelErr *ChannelError
	require.True(t, errors.As(err, &channelErr))
	require.True(t, raw.Closed())

	require.NoError(t, b.Close(), "Second close should be a no-op")
}

func Test_BufferedStream_UsageErrors(t *testing.T) {
	var zero BufferedStream
	_, err := zero.ReadN(1)
	require.True(t, IsUsageError(err))
	_, err = zero.Write([]byte("a"))
	require.True(t, IsUsageError(err))

	_, err = NewBufferedReader(newTestChannel(""), 0)
	require.True(t, IsUsageError(err))

	raw := newTestChannel("abc")
	raw.notSeekable = true
	_, err = NewBufferedRandom(raw, 4)
	require.True(t, IsUnsupported(err))

	r, err := NewBufferedReader(newTestChannel("abc"), 4)
	require.NoError(t, err)
	_, err = r.Write([]byte("a"))
	require.True(t, IsUnsupported(err))
	_, err = r.ReadN(-2)
	require.True(t, IsUsageError(err))

	w, err := NewBufferedWriter(newTestChannel(""), 4)
	require.NoError(t, err)
	_, err = w.ReadN(1)
	require.True(t, IsUnsupported(err))

	require.NoError(t, r.Close())
	_, err = r.ReadN(1)
	require.True(t, IsUsageError(err))
	_, err = r.Tell()
	require.True(t, IsUsageError(err))

	unseekable := newTestChannel("abc")
	unseekable.notSeekable = true
	u, err := NewBufferedReader(unseekable, 4)
	require.NoError(t, err)
	_, err = u.Seek(0, io.SeekStart)
	require.True(t, IsUnsupported(err))
}

func Test_BufferedStream_Detach(t *testing.T) {
	raw := newTestChannel("")
	b, err := NewBufferedWriter(raw, 16)
	require.NoError(t, err)

	_, err = b.Write([]byte("pending"))
	require.NoError(t, err)

	detached, err := b.Detach()
	require.NoError(t, err)
	require.Equal(t, raw, detached)
	require.Equal(t, "pending", string(raw.Bytes()), "Detach should flush")
	require.False(t, raw.Closed())

	_, err = b.Write([]byte("more"))
	require.True(t, IsUsageError(err))
	require.False(t, b.Writable())
	_, err = b.Detach()
	require.True(t, IsUsageError(err))
}

func Test_BufferedStream_State(t *testing.T) {
	raw := newTestChannel("0123456789")
	b, err := NewBufferedRandom(raw, 4)
	require.NoError(t, err)

	_, err = b.ReadN(3)
	require.NoError(t, err)
	b.SetAttribute("name", "digits")

	st, err := b.State()
	require.NoError(t, err)
	require.Nil(t, st.Content, "Only memory channels carry content")
	require.Equal(t, int64(3), st.Position)
	require.Equal(t, "digits", st.Attributes["name"])
	require.Contains(t, st.String(), "digits")

	mem := newMemoryStream(t, "hello world")
	_, err = mem.ReadN(6)
	require.NoError(t, err)
	st, err = mem.State()
	require.NoError(t, err)
	require.Equal(t, []byte("hello world"), st.Content)

	other := newMemoryStream(t, "")
	require.NoError(t, other.SetState(st))
	data, err := other.ReadN(-1)
	require.NoError(t, err)
	require.Equal(t, "world", string(data))

	require.True(t, IsUsageError(other.SetState(&StreamState{Position: -1})))
	require.True(t, IsUnsupported(b.SetState(&StreamState{Content: []byte("x")})))
}

func Test_Copy(t *testing.T) {
	src, err := NewBufferedReader(newTestChannel(strings.Repeat("x", 100)), 8)
	require.NoError(t, err)
	raw := newTestChannel("")
	dst, err := NewBufferedWriter(raw, 16)
	require.NoError(t, err)

	n, err := Copy(dst, src, 7)
	require.NoError(t, err)
	require.Equal(t, int64(100), n)
	require.True(t, bytes.Equal(bytes.Repeat([]byte("x"), 100), raw.Bytes()))
}
