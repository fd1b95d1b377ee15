package textio

import (
	"math"
	"math/big"

	"github.com/bokysan/streamio/internal/streams"
)

// PositionCookie describes a text stream position: seek the byte stream to StartPos, set the decoder flags to
// DecFlags, feed it BytesToFeed bytes (signalling the end of input if NeedEOF), then skip CharsToSkip code
// points of the output.
type PositionCookie struct {
	StartPos    int64
	DecFlags    uint64
	BytesToFeed int
	CharsToSkip int
	NeedEOF     bool
}

const cookieFieldBits = 64

var cookieFieldMask = new(big.Int).SetUint64(math.MaxUint64)

// Pack serializes the cookie into one integer:
// StartPos | DecFlags<<64 | BytesToFeed<<128 | CharsToSkip<<192 | NeedEOF<<256
func (c PositionCookie) Pack() *big.Int {
	res := new(big.Int)
	if c.NeedEOF {
		res.SetInt64(1)
	}
	for _, field := range []uint64{uint64(c.CharsToSkip), uint64(c.BytesToFeed), c.DecFlags, uint64(c.StartPos)} {
		res.Lsh(res, cookieFieldBits)
		res.Or(res, new(big.Int).SetUint64(field))
	}
	return res
}

// UnpackCookie is the reverse of Pack
func UnpackCookie(v *big.Int) (PositionCookie, error) {
	var c PositionCookie
	if v == nil {
		return c, streams.UsageErrorf("seek", "position cookie must not be nil")
	}
	if v.Sign() < 0 {
		return c, streams.UsageErrorf("seek", "negative seek position %v", v)
	}
	if v.BitLen() > 4*cookieFieldBits+1 {
		return c, streams.UsageErrorf("seek", "position cookie %v is out of range", v)
	}

	rest := new(big.Int).Set(v)
	field := func() uint64 {
		f := new(big.Int).And(rest, cookieFieldMask).Uint64()
		rest.Rsh(rest, cookieFieldBits)
		return f
	}
	start := field()
	c.DecFlags = field()
	bytesToFeed := field()
	charsToSkip := field()
	c.NeedEOF = rest.Sign() != 0

	if start > math.MaxInt64 || bytesToFeed > math.MaxInt32 || charsToSkip > math.MaxInt32 {
		return c, streams.UsageErrorf("seek", "position cookie %v is out of range", v)
	}
	c.StartPos = int64(start)
	c.BytesToFeed = int(bytesToFeed)
	c.CharsToSkip = int(charsToSkip)
	return c, nil
}
