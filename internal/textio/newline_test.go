package textio

import (
	"testing"

	"github.com/bokysan/streamio/internal/codec"
	"github.com/stretchr/testify/require"
)

func Test_NewlineDecoder_Translate(t *testing.T) {
	d := NewNewlineDecoder(nil, true)

	out, err := d.Decode([]byte("a\nb\rc\r\nd"), true)
	require.NoError(t, err)
	require.Equal(t, "a\nb\nc\nd", out)
	require.Equal(t, SeenLF|SeenCR|SeenCRLF, d.Seen())
	require.Equal(t, []string{"\r", "\n", "\r\n"}, d.Newlines())
}

func Test_NewlineDecoder_PendingCR(t *testing.T) {
	d := NewNewlineDecoder(nil, true)

	out, err := d.Decode([]byte("a\r"), false)
	require.NoError(t, err)
	require.Equal(t, "a", out)
	require.Equal(t, uint64(1), d.State().Flags, "The trailing CR should be held back")

	out, err = d.Decode([]byte("\nb"), false)
	require.NoError(t, err)
	require.Equal(t, "\nb", out)

	out, err = d.Decode([]byte("c\r"), true)
	require.NoError(t, err)
	require.Equal(t, "c\n", out)

	require.Equal(t, SeenCR|SeenCRLF, d.Seen())
	require.Equal(t, []string{"\r", "\r\n"}, d.Newlines())
}

func Test_NewlineDecoder_Untranslated(t *testing.T) {
	d := NewNewlineDecoder(nil, false)

	out, err := d.Decode([]byte("a\r\nb\rc\n"), true)
	require.NoError(t, err)
	require.Equal(t, "a\r\nb\rc\n", out)
	require.Equal(t, SeenLF|SeenCR|SeenCRLF, d.Seen())
}

func Test_NewlineDecoder_UntranslatedCRLFOnly(t *testing.T) {
	d := NewNewlineDecoder(nil, false)

	out, err := d.Decode([]byte("a\r\nb"), true)
	require.NoError(t, err)
	require.Equal(t, "a\r\nb", out)
	require.Equal(t, SeenCRLF, d.Seen())
	require.Equal(t, []string{"\r\n"}, d.Newlines())

	d.Reset()
	out, err = d.Decode([]byte("\r\n\r\né\r\n"), true)
	require.NoError(t, err)
	require.Equal(t, "\r\n\r\né\r\n", out)
	require.Equal(t, []string{"\r\n"}, d.Newlines())
}

func Test_NewlineDecoder_WrapsState(t *testing.T) {
	info, err := codec.Lookup("utf-8")
	require.NoError(t, err)
	d := NewNewlineDecoder(info.NewDecoder(codec.Strict), true)

	out, err := d.Decode([]byte{'x', 0xC3}, false)
	require.NoError(t, err)
	require.Equal(t, "x", out)
	st := d.State()
	require.Equal(t, []byte{0xC3}, st.Buffered)
	require.Equal(t, uint64(0), st.Flags)

	d.Reset()
	require.NoError(t, d.SetState(codec.DecoderState{Buffered: []byte{0xC3}, Flags: 1}))
	out, err = d.Decode([]byte{0xA9}, false)
	require.NoError(t, err)
	require.Equal(t, "\né", out, "The pending CR is emitted before the decoded text")
	require.Equal(t, SeenCR, d.Seen())
}
