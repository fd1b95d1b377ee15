package textio

import (
	"math/big"
	"testing"

	"github.com/bokysan/streamio/internal/streams"
	"github.com/stretchr/testify/require"
)

func Test_PositionCookie_Pack(t *testing.T) {
	require.Equal(t, int64(42), PositionCookie{StartPos: 42}.Pack().Int64(), "A plain byte offset packs to itself")
	require.Zero(t, PositionCookie{}.Pack().Sign())

	c := PositionCookie{StartPos: 5, DecFlags: 3, BytesToFeed: 2, CharsToSkip: 1, NeedEOF: true}
	expected := big.NewInt(1)
	for _, field := range []int64{1, 2, 3, 5} {
		expected.Lsh(expected, 64)
		expected.Add(expected, big.NewInt(field))
	}
	packed := c.Pack()
	require.Equal(t, 0, expected.Cmp(packed), "Expected %v, got %v", expected, packed)

	unpacked, err := UnpackCookie(packed)
	require.NoError(t, err)
	require.Equal(t, c, unpacked)
}

func Test_UnpackCookie_Invalid(t *testing.T) {
	_, err := UnpackCookie(nil)
	require.True(t, streams.IsUsageError(err))

	_, err = UnpackCookie(big.NewInt(-1))
	require.True(t, streams.IsUsageError(err))

	_, err = UnpackCookie(new(big.Int).Lsh(big.NewInt(1), 300))
	require.True(t, streams.IsUsageError(err))

	tooFar := new(big.Int).Lsh(big.NewInt(1), 63)
	_, err = UnpackCookie(tooFar)
	require.True(t, streams.IsUsageError(err), "Start position does not fit in an int64")
}
