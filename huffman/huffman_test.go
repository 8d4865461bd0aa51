package huffman_test

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/seiflotfy/ziphuff/huffman"
)

const randSeed = 0x5a025ca11825a5e7

func TestBuildWeightOrder(t *testing.T) {
	freqs := map[rune]uint64{'a': 40, 'b': 35, 'c': 20, 'd': 5}

	tree, err := huffman.Build(freqs)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if tree.Weight != 100 {
		t.Fatalf("root weight: got %d want 100", tree.Weight)
	}

	// the most frequent token only requires 1 bit
	if got := tree.Left; !got.Leaf() || got.Token != 'a' || got.Weight != 40 {
		t.Fatalf("left of root: got %+v, want leaf 'a' weighing 40", got)
	}
	// the second most frequent token requires 2 bits
	if got := tree.Right.Right; !got.Leaf() || got.Token != 'b' || got.Weight != 35 {
		t.Fatalf("right-right: got %+v, want leaf 'b' weighing 35", got)
	}
	// the least frequent tokens require 3 bits, the lighter one on the left
	if got := tree.Right.Left.Left; !got.Leaf() || got.Token != 'd' || got.Weight != 5 {
		t.Fatalf("right-left-left: got %+v, want leaf 'd' weighing 5", got)
	}
	if got := tree.Right.Left.Right; !got.Leaf() || got.Token != 'c' || got.Weight != 20 {
		t.Fatalf("right-left-right: got %+v, want leaf 'c' weighing 20", got)
	}

	table, err := huffman.NewEncoderTable(tree)
	if err != nil {
		t.Fatalf("NewEncoderTable failed: %v", err)
	}
	want := map[rune]string{'a': "0", 'b': "11", 'd': "100", 'c': "101"}
	for token, code := range want {
		if got := table[token].String(); got != code {
			t.Errorf("code for %q: got %s want %s", token, got, code)
		}
	}
}

func TestBuildEmpty(t *testing.T) {
	if _, err := huffman.Build(map[string]uint64{}); !errors.Is(err, huffman.ErrEmptyAlphabet) {
		t.Fatalf("expected ErrEmptyAlphabet, got %v", err)
	}
	if _, err := huffman.NewEncoderTable[string](nil); !errors.Is(err, huffman.ErrEmptyAlphabet) {
		t.Fatalf("expected ErrEmptyAlphabet for nil tree, got %v", err)
	}
}

func TestSingleLeafGetsOneBitCode(t *testing.T) {
	tree, err := huffman.Build(map[string]uint64{"only": 7})
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if !tree.Leaf() || tree.Depth() != 0 {
		t.Fatalf("expected single leaf, got depth %d", tree.Depth())
	}
	table, err := huffman.NewEncoderTable(tree)
	if err != nil {
		t.Fatalf("NewEncoderTable failed: %v", err)
	}
	if got := table["only"]; got.Len != 1 {
		t.Fatalf("expected 1-bit fallback code, got %q", got)
	}
	if _, err := table.Decoder(); err != nil {
		t.Fatalf("Decoder failed: %v", err)
	}
}

func TestBuildDeterministicTies(t *testing.T) {
	freqs := map[string]uint64{}
	for _, w := range []string{"q", "w", "e", "r", "t", "y", "u", "i", "o", "p"} {
		freqs[w] = 3
	}

	first, err := huffman.Build(freqs)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	want, _ := huffman.NewEncoderTable(first)
	for i := 0; i < 20; i++ {
		tree, err := huffman.Build(freqs)
		if err != nil {
			t.Fatalf("Build failed: %v", err)
		}
		got, _ := huffman.NewEncoderTable(tree)
		for token, code := range want {
			if got[token] != code {
				t.Fatalf("run %d: code for %q changed from %v to %v", i, token, code, got[token])
			}
		}
	}
}

func randomFreqs(rng *rand.Rand, n int) map[int]uint64 {
	freqs := make(map[int]uint64, n)
	for i := 0; i < n; i++ {
		freqs[i] = uint64(rng.Intn(1000))
	}
	return freqs
}

func TestPrefixFreeRandomTrees(t *testing.T) {
	rng := rand.New(rand.NewSource(randSeed))

	for iteration := 0; iteration < 50; iteration++ {
		freqs := randomFreqs(rng, 1+rng.Intn(300))
		tree, err := huffman.Build(freqs)
		if err != nil {
			t.Fatalf("iteration %d: Build failed: %v", iteration, err)
		}
		if tree.Leaves() != len(freqs) {
			t.Fatalf("iteration %d: %d leaves for %d tokens", iteration, tree.Leaves(), len(freqs))
		}
		var sum uint64
		for _, f := range freqs {
			sum += f
		}
		if tree.Weight != sum {
			t.Fatalf("iteration %d: root weight %d, want %d", iteration, tree.Weight, sum)
		}

		table, err := huffman.NewEncoderTable(tree)
		if err != nil {
			t.Fatalf("iteration %d: NewEncoderTable failed: %v", iteration, err)
		}
		if len(table) != len(freqs) {
			t.Fatalf("iteration %d: table has %d entries for %d tokens", iteration, len(table), len(freqs))
		}
		for a, ca := range table {
			for b, cb := range table {
				if a != b && cb.HasPrefix(ca) {
					t.Fatalf("iteration %d: code %v of %d is a prefix of %v of %d", iteration, ca, a, cb, b)
				}
			}
		}

		dec, err := table.Decoder()
		if err != nil {
			t.Fatalf("iteration %d: Decoder failed: %v", iteration, err)
		}
		for token, code := range table {
			if dec[code] != token {
				t.Fatalf("iteration %d: decoder maps %v to %d, want %d", iteration, code, dec[code], token)
			}
		}
	}
}

func TestHeavierTokensGetShorterCodes(t *testing.T) {
	rng := rand.New(rand.NewSource(randSeed))
	freqs := randomFreqs(rng, 64)
	tree, _ := huffman.Build(freqs)
	table, _ := huffman.NewEncoderTable(tree)

	for a, fa := range freqs {
		for b, fb := range freqs {
			if fa > fb && table[a].Len > table[b].Len {
				t.Fatalf("token %d (weight %d) has %d bits, token %d (weight %d) has %d bits",
					a, fa, table[a].Len, b, fb, table[b].Len)
			}
		}
	}
}

func TestValidateRejectsBadTables(t *testing.T) {
	prefix := huffman.EncoderTable[string]{
		"a": huffman.MustParseCode("0"),
		"b": huffman.MustParseCode("01"),
	}
	if err := prefix.Validate(); !errors.Is(err, huffman.ErrCodeTableInconsistent) {
		t.Fatalf("prefix table: expected ErrCodeTableInconsistent, got %v", err)
	}

	duplicate := huffman.EncoderTable[string]{
		"a": huffman.MustParseCode("10"),
		"b": huffman.MustParseCode("10"),
	}
	if _, err := duplicate.Decoder(); !errors.Is(err, huffman.ErrCodeTableInconsistent) {
		t.Fatalf("duplicate table: expected ErrCodeTableInconsistent, got %v", err)
	}

	empty := huffman.EncoderTable[string]{"a": {}}
	if err := empty.Validate(); !errors.Is(err, huffman.ErrCodeTableInconsistent) {
		t.Fatalf("empty code: expected ErrCodeTableInconsistent, got %v", err)
	}

	if err := (huffman.EncoderTable[string]{}).Validate(); !errors.Is(err, huffman.ErrEmptyAlphabet) {
		t.Fatalf("empty table: expected ErrEmptyAlphabet, got %v", err)
	}
}

func TestCodeBits(t *testing.T) {
	var long huffman.Code
	for i := 0; i < 100; i++ {
		long = long.Append(i%3 == 0)
	}
	for i := 0; i < 100; i++ {
		if long.Bit(i) != (i%3 == 0) {
			t.Fatalf("bit %d: got %v", i, long.Bit(i))
		}
	}

	packed := long.AppendPacked(nil)
	if len(packed) != 13 {
		t.Fatalf("packed length: got %d want 13", len(packed))
	}
	parsed, err := huffman.ParseCode(packed, 100)
	if err != nil {
		t.Fatalf("ParseCode failed: %v", err)
	}
	if parsed != long {
		t.Fatalf("ParseCode: got %v want %v", parsed, long)
	}

	if _, err := huffman.ParseCode([]byte{0xff}, 3); !errors.Is(err, huffman.ErrCodeTableInconsistent) {
		t.Fatalf("stray padding bits: expected ErrCodeTableInconsistent, got %v", err)
	}

	p := huffman.MustParseCode("1011")
	if !huffman.MustParseCode("101101").HasPrefix(p) {
		t.Fatalf("expected 101101 to have prefix 1011")
	}
	if huffman.MustParseCode("100101").HasPrefix(p) {
		t.Fatalf("did not expect 100101 to have prefix 1011")
	}
	if !long.HasPrefix(huffman.MustParseCode(long.String()[:70])) {
		t.Fatalf("expected long code to have its own 70-bit prefix")
	}
}

func TestBitString(t *testing.T) {
	var bs huffman.BitString
	bs.AppendCode(huffman.MustParseCode("101"))
	bs.AppendCode(huffman.MustParseCode("0000011"))
	if bs.Len() != 10 {
		t.Fatalf("length: got %d want 10", bs.Len())
	}
	if got := bs.String(); got != "1010000011" {
		t.Fatalf("bits: got %s", got)
	}
	if bs.Packed[0] != 0xa0 || bs.Packed[1] != 0xc0 {
		t.Fatalf("packed: got %08b %08b", bs.Packed[0], bs.Packed[1])
	}

	var other huffman.BitString
	for i := 0; i < bs.Len(); i++ {
		other.AppendBit(bs.Bit(i))
	}
	if !other.Equal(bs) {
		t.Fatalf("expected equal bit strings")
	}
	if (huffman.BitString{}).Equal(bs) {
		t.Fatalf("empty bit string should not equal %v", bs)
	}
}
