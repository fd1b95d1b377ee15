package lines

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/bokysan/streamio/internal/rawio"
	"github.com/bokysan/streamio/internal/streams"
	"github.com/bokysan/streamio/internal/textio"
	"github.com/stretchr/testify/require"
)

func openText(t *testing.T, content string, encoding string) *textio.TextStream {
	name := filepath.Join(t.TempDir(), "input.txt")
	w, err := textio.Open(name, "w", 0, textio.Options{Encoding: encoding, Newline: textio.NewlineUntranslated})
	require.NoError(t, err)
	_, err = w.Write(content)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	r, err := textio.Open(name, "r", 0, textio.Options{Encoding: encoding})
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

func memoryOutput(t *testing.T) (*textio.TextStream, *rawio.MemoryChannel) {
	ch := rawio.NewMemoryChannel(nil)
	out, err := textio.Wrap(ch, 0, textio.Options{})
	require.NoError(t, err)
	return out, ch
}

func Test_Lines(t *testing.T) {
	in := openText(t, "one\r\ntwo\nthree", "utf-8")
	out, ch := memoryOutput(t)

	c := &Command{}
	require.NoError(t, c.Run(context.Background(), out, in))
	require.NoError(t, out.Flush())
	require.Equal(t, "0\tone\n5\ttwo\n9\tthree\n", string(ch.Bytes()))
}

func Test_Lines_FromAndCount(t *testing.T) {
	in := openText(t, "one\ntwo\nthree\n", "utf-16")
	out, ch := memoryOutput(t)

	c := &Command{From: "10", Count: 1}
	require.NoError(t, c.Run(context.Background(), out, in))
	require.NoError(t, out.Flush())
	require.Equal(t, "10\ttwo\n", string(ch.Bytes()))
}

func Test_Lines_InvalidFrom(t *testing.T) {
	in := openText(t, "one\n", "utf-8")
	out, _ := memoryOutput(t)

	c := &Command{From: "somewhere"}
	require.True(t, streams.IsUsageError(c.Run(context.Background(), out, in)))
}

func Test_Lines_Stats(t *testing.T) {
	in := openText(t, "cafe\u0301\n日本\n", "utf-8")
	out, ch := memoryOutput(t)

	c := &Command{Stats: true}
	require.NoError(t, c.Run(context.Background(), out, in))
	require.NoError(t, out.Flush())
	require.Equal(t, "0\t4\t4\tcafe\u0301\n7\t2\t4\t日本\n", string(ch.Bytes()))
}

func Test_Lines_Follow(t *testing.T) {
	name := filepath.Join(t.TempDir(), "growing.txt")
	require.NoError(t, os.WriteFile(name, []byte("one\ntw"), 0644))
	in, err := textio.Open(name, "r", 0, textio.Options{})
	require.NoError(t, err)
	defer func() { _ = in.Close() }()
	out, ch := memoryOutput(t)

	appends := []string{"o\n", "three\n"}
	c := &Command{Follow: true}
	c.wait = func(ctx context.Context) error {
		if len(appends) == 0 {
			return context.Canceled
		}
		f, err := os.OpenFile(name, os.O_APPEND|os.O_WRONLY, 0)
		require.NoError(t, err)
		_, err = f.WriteString(appends[0])
		require.NoError(t, err)
		require.NoError(t, f.Close())
		appends = appends[1:]
		return nil
	}

	require.NoError(t, c.Run(context.Background(), out, in))
	require.NoError(t, out.Flush())
	require.Equal(t, "0\tone\n4\ttwo\n8\tthree\n", string(ch.Bytes()))
}

func Test_Watcher(t *testing.T) {
	name := filepath.Join(t.TempDir(), "watched.txt")
	require.NoError(t, os.WriteFile(name, nil, 0644))

	w, err := NewWatcher(name)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	go func() {
		time.Sleep(20 * time.Millisecond)
		_ = os.WriteFile(name, []byte("more"), 0644)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, w.Wait(ctx))
}

func Test_Watcher_Cancelled(t *testing.T) {
	name := filepath.Join(t.TempDir(), "watched.txt")
	require.NoError(t, os.WriteFile(name, nil, 0644))

	w, err := NewWatcher(name)
	require.NoError(t, err)
	defer func() { _ = w.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, w.Wait(ctx), context.Canceled)
}
