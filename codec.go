package ziphuff

import (
	"cmp"
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/seiflotfy/ziphuff/huffman"
)

// lineEncoder bit-packs single lines.  It is safe for concurrent use: the table is read-only
// and the cache is synchronized.
type lineEncoder[T cmp.Ordered] struct {
	table    huffman.EncoderTable[T]
	tokenize Tokenizer[T]
	cache    *lru.Cache[string, huffman.BitString]
}

func newLineEncoder[T cmp.Ordered](table huffman.EncoderTable[T], tokenize Tokenizer[T], cacheSize int) (*lineEncoder[T], error) {
	enc := &lineEncoder[T]{table: table, tokenize: tokenize}
	if cacheSize > 0 {
		cache, err := lru.New[string, huffman.BitString](cacheSize)
		if err != nil {
			return nil, err
		}
		enc.cache = cache
	}
	return enc, nil
}

func (e *lineEncoder[T]) encodeLine(line string) (huffman.BitString, error) {
	if e.cache != nil {
		if bits, ok := e.cache.Get(line); ok {
			return bits, nil
		}
	}

	var bits huffman.BitString
	for pos, token := range e.tokenize(line) {
		code, ok := e.table[token]
		if !ok {
			return huffman.BitString{}, fmt.Errorf("%w: token %v at position %d", ErrTokenNotFound, token, pos)
		}
		bits.AppendCode(code)
	}

	if e.cache != nil {
		e.cache.Add(line, bits)
	}
	return bits, nil
}

// encodeLines encodes every line in parallel.  The result is in input order.
func encodeLines[T cmp.Ordered](lines []string, enc *lineEncoder[T], cfg Config) ([]huffman.BitString, error) {
	workers := resolveWorkers(cfg)
	out := make([]huffman.BitString, len(lines))

	var done atomic.Int64
	report(cfg.Progress, OpCompress, StageEncode, 0, len(lines))
	err := forEachPartition(len(lines), workers, func(p partition) error {
		for i := p.lo; i < p.hi; i++ {
			bits, err := enc.encodeLine(lines[i])
			if err != nil {
				return fmt.Errorf("encode line %d: %w", i, err)
			}
			out[i] = bits
		}
		report(cfg.Progress, OpCompress, StageEncode, int(done.Add(int64(p.hi-p.lo))), len(lines))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// decodeLine resolves bits into tokens by growing a candidate code one bit at a time and
// emitting a token whenever the candidate is a codeword.  maxLen is the longest codeword.
func decodeLine[T cmp.Ordered](bits huffman.BitString, dec huffman.DecoderTable[T], maxLen int) ([]T, error) {
	var tokens []T
	var candidate huffman.Code
	for i := 0; i < bits.Len(); i++ {
		candidate = candidate.Append(bits.Bit(i))
		if token, ok := dec[candidate]; ok {
			tokens = append(tokens, token)
			candidate = huffman.Code{}
			continue
		}
		if int(candidate.Len) >= maxLen {
			return nil, fmt.Errorf("%w: no codeword matches %d bits ending at bit %d", ErrDecodeCorruption, candidate.Len, i)
		}
	}
	if candidate.Len != 0 {
		return nil, fmt.Errorf("%w: %d dangling bits at end of line", ErrDecodeCorruption, candidate.Len)
	}
	return tokens, nil
}

// decodeLines decodes every line in parallel and joins its tokens.  The result is in input order.
func decodeLines[T cmp.Ordered](data []huffman.BitString, dec huffman.DecoderTable[T], maxLen int, join Joiner[T], cfg Config) ([]string, error) {
	workers := resolveWorkers(cfg)
	out := make([]string, len(data))

	var done atomic.Int64
	report(cfg.Progress, OpExtract, StageDecode, 0, len(data))
	err := forEachPartition(len(data), workers, func(p partition) error {
		for i := p.lo; i < p.hi; i++ {
			tokens, err := decodeLine(data[i], dec, maxLen)
			if err != nil {
				return fmt.Errorf("decode line %d: %w", i, err)
			}
			out[i] = join(tokens)
		}
		report(cfg.Progress, OpExtract, StageDecode, int(done.Add(int64(p.hi-p.lo))), len(data))
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
