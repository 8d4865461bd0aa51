package huffman

import "bytes"

// BitString is a packed bit sequence.  Within each octet, bits are addressed most significant first.
//
// Invariants:
//   - 0 <= BitLength <= len(Packed)*8
//   - bits of Packed past BitLength are zero
type BitString struct {
	Packed    []byte
	BitLength int
}

// Len returns the number of bits in bs.
func (bs BitString) Len() int {
	return bs.BitLength
}

// Bit reports the i-th bit of bs.
func (bs BitString) Bit(i int) bool {
	return (bs.Packed[i/8]>>uint(7-i%8))&1 == 1
}

// AppendBit extends bs by one bit.
func (bs *BitString) AppendBit(bit bool) {
	if bs.BitLength%8 == 0 {
		bs.Packed = append(bs.Packed, 0)
	}
	if bit {
		bs.Packed[bs.BitLength/8] |= 1 << uint(7-bs.BitLength%8)
	}
	bs.BitLength++
}

// AppendCode extends bs by every bit of c, first bit first.
func (bs *BitString) AppendCode(c Code) {
	for i := 0; i < int(c.Len); i++ {
		bs.AppendBit(c.Bit(i))
	}
}

// Equal reports whether bs and o hold the same bits.
func (bs BitString) Equal(o BitString) bool {
	return bs.BitLength == o.BitLength && bytes.Equal(bs.Packed[:(bs.BitLength+7)/8], o.Packed[:(o.BitLength+7)/8])
}

func (bs BitString) String() string {
	out := make([]byte, bs.BitLength)
	for i := range out {
		if bs.Bit(i) {
			out[i] = '1'
		} else {
			out[i] = '0'
		}
	}
	return string(out)
}
