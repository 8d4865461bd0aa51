/*
Package huffman builds static Huffman trees over any ordered token type and derives
the encoder and decoder tables used to bit-pack token sequences.
*/
package huffman

import "strings"

// MaxCodeLen is the longest codeword a Code can hold.
const MaxCodeLen = 128

// Code is a single codeword of at most MaxCodeLen bits.  The bits are right-aligned in a
// 128-bit value (hi:lo), so the first bit of the code is bit Len-1 of that value.
//
// Code is comparable and is used directly as the key of a DecoderTable.
type Code struct {
	hi, lo uint64
	Len    uint8
}

// Append returns c extended by one bit.  Appending to a full code panics.
func (c Code) Append(bit bool) Code {
	if int(c.Len) >= MaxCodeLen {
		panic("huffman: code overflow")
	}
	c.hi = c.hi<<1 | c.lo>>63
	c.lo <<= 1
	if bit {
		c.lo |= 1
	}
	c.Len++
	return c
}

// Bit reports the i-th bit of c, counting from the first (root-most) bit.
func (c Code) Bit(i int) bool {
	pos := int(c.Len) - 1 - i
	if pos < 0 || i < 0 {
		panic("huffman: code bit out of range")
	}
	if pos >= 64 {
		return (c.hi>>(pos-64))&1 == 1
	}
	return (c.lo>>pos)&1 == 1
}

// HasPrefix reports whether p is a prefix of c.  A code is a prefix of itself.
func (c Code) HasPrefix(p Code) bool {
	if p.Len > c.Len {
		return false
	}
	shift := uint(c.Len - p.Len)
	hi, lo := c.hi, c.lo
	switch {
	case shift >= 64:
		lo = hi >> (shift - 64)
		hi = 0
	case shift > 0:
		lo = lo>>shift | hi<<(64-shift)
		hi >>= shift
	}
	return hi == p.hi && lo == p.lo
}

// Compare orders codes lexicographically by bits; a proper prefix sorts first.
func (c Code) Compare(o Code) int {
	n := min(int(c.Len), int(o.Len))
	for i := 0; i < n; i++ {
		a, b := c.Bit(i), o.Bit(i)
		if a == b {
			continue
		}
		if !a {
			return -1
		}
		return 1
	}
	switch {
	case c.Len < o.Len:
		return -1
	case c.Len > o.Len:
		return 1
	default:
		return 0
	}
}

// AppendPacked appends the code to dst as ceil(Len/8) bytes, most significant bit first,
// with the unused low bits of the last byte zeroed.
func (c Code) AppendPacked(dst []byte) []byte {
	var cur byte
	for i := 0; i < int(c.Len); i++ {
		if c.Bit(i) {
			cur |= 1 << uint(7-i%8)
		}
		if i%8 == 7 {
			dst = append(dst, cur)
			cur = 0
		}
	}
	if c.Len%8 != 0 {
		dst = append(dst, cur)
	}
	return dst
}

// ParseCode is the inverse of AppendPacked.  packed must hold exactly ceil(n/8) bytes.
func ParseCode(packed []byte, n int) (Code, error) {
	if n < 0 || n > MaxCodeLen {
		return Code{}, ErrCodeTooLong
	}
	if len(packed) != (n+7)/8 {
		return Code{}, ErrCodeTableInconsistent
	}
	var c Code
	for i := 0; i < n; i++ {
		c = c.Append((packed[i/8]>>uint(7-i%8))&1 == 1)
	}
	if n%8 != 0 && packed[len(packed)-1]&(1<<uint(8-n%8)-1) != 0 {
		return Code{}, ErrCodeTableInconsistent
	}
	return c, nil
}

func (c Code) String() string {
	var sb strings.Builder
	sb.Grow(int(c.Len))
	for i := 0; i < int(c.Len); i++ {
		if c.Bit(i) {
			sb.WriteByte('1')
		} else {
			sb.WriteByte('0')
		}
	}
	return sb.String()
}

// MustParseCode builds a Code from a string of '0' and '1' characters.
func MustParseCode(s string) Code {
	var c Code
	for _, r := range s {
		switch r {
		case '0':
			c = c.Append(false)
		case '1':
			c = c.Append(true)
		default:
			panic("huffman: invalid code literal " + s)
		}
	}
	return c
}
