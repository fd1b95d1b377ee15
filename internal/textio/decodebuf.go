package textio

import (
	"math"
	"unicode/utf8"
)

// DecodeBuffer holds one chunk of decoded text and a read cursor into it. The cursor is kept both as a byte
// offset (pos) and as a code point count (upos), which always refer to the same place.
type DecodeBuffer struct {
	text string
	pos  int
	upos int
	ulen int
}

// Set replaces the contents and rewinds the cursor
func (d *DecodeBuffer) Set(text string) {
	d.text = text
	d.pos = 0
	d.upos = 0
	d.ulen = utf8.RuneCountInString(text)
}

// Reset empties the buffer
func (d *DecodeBuffer) Reset() {
	d.Set("")
}

// HasData returns true if there are characters left to consume
func (d *DecodeBuffer) HasData() bool {
	return d.pos < len(d.text)
}

// Exhausted returns true if every character has been consumed
func (d *DecodeBuffer) Exhausted() bool {
	return d.pos >= len(d.text)
}

// Used returns the number of code points consumed
func (d *DecodeBuffer) Used() int {
	return d.upos
}

// Len returns the number of code points in the buffer
func (d *DecodeBuffer) Len() int {
	return d.ulen
}

// GetChars consumes and returns up to n code points. A negative n returns everything left.
func (d *DecodeBuffer) GetChars(n int) string {
	available := d.ulen - d.upos
	if n < 0 || n >= available {
		s := d.text[d.pos:]
		d.pos = len(d.text)
		d.upos = d.ulen
		return s
	}
	start := d.pos
	for i := 0; i < n; i++ {
		_, size := utf8.DecodeRuneInString(d.text[d.pos:])
		d.pos += size
	}
	d.upos += n
	return d.text[start:d.pos]
}

// SkipChars moves the cursor forward by n code points without returning them
func (d *DecodeBuffer) SkipChars(n int) {
	d.GetChars(n)
}

// NextChar consumes one code point
func (d *DecodeBuffer) NextChar() rune {
	r, size := utf8.DecodeRuneInString(d.text[d.pos:])
	d.pos += size
	d.upos++
	return r
}

// PeekChar returns the next code point without consuming it
func (d *DecodeBuffer) PeekChar() rune {
	r, _ := utf8.DecodeRuneInString(d.text[d.pos:])
	return r
}

// unread moves the cursor back over one single-byte character
func (d *DecodeBuffer) unread() {
	d.pos--
	d.upos--
}

func scanLimit(limit int) int {
	if limit < 0 {
		return math.MaxInt
	}
	return limit
}

// FindNewlineUniversal moves the cursor past the next "\n", "\r" or "\r\n", scanning at most limit code points.
// It returns false if no line ending was found. A "\r" at the very end of the buffer is consumed but not
// reported, so that a "\r\n" pair is not split.
func (d *DecodeBuffer) FindNewlineUniversal(limit int) bool {
	limit = scanLimit(limit)
	for scanned := 0; scanned < limit; {
		if d.Exhausted() {
			return false
		}
		ch := d.NextChar()
		scanned++
		if ch == '\n' {
			return true
		}
		if ch == '\r' {
			if scanned >= limit || d.Exhausted() {
				return false
			}
			if d.PeekChar() == '\n' {
				d.NextChar()
			}
			return true
		}
	}
	return false
}

// FindCRLF moves the cursor past the next "\r\n". A "\r" at the very end of the buffer is left unconsumed.
func (d *DecodeBuffer) FindCRLF(limit int) bool {
	limit = scanLimit(limit)
	for scanned := 0; scanned < limit; {
		if d.Exhausted() {
			return false
		}
		ch := d.NextChar()
		scanned++
		if ch == '\r' {
			if scanned >= limit {
				return false
			}
			if d.Exhausted() {
				d.unread()
				return false
			}
			if d.PeekChar() == '\n' {
				d.NextChar()
				return true
			}
		}
	}
	return false
}

// FindChar moves the cursor past the next occurrence of marker
func (d *DecodeBuffer) FindChar(marker rune, limit int) bool {
	limit = scanLimit(limit)
	for scanned := 0; scanned < limit; {
		if d.Exhausted() {
			return false
		}
		if d.NextChar() == marker {
			return true
		}
		scanned++
	}
	return false
}
