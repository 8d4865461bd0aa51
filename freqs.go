package ziphuff

import (
	"cmp"
)

// CountFrequencies counts the tokens of every line.  The corpus is split into contiguous
// partitions counted in parallel into local maps, which are then summed; the result does not
// depend on the partitioning.
func CountFrequencies[T cmp.Ordered](lines []string, tokenize Tokenizer[T], workers int) map[T]uint64 {
	if workers < 1 {
		workers = 1
	}
	parts := partitions(len(lines), workers)
	local := make([]map[T]uint64, len(parts))

	_ = forEachPartition(len(lines), workers, func(p partition) error {
		freqs := make(map[T]uint64)
		for _, line := range lines[p.lo:p.hi] {
			for _, token := range tokenize(line) {
				freqs[token]++
			}
		}
		local[p.index] = freqs
		return nil
	})

	return MergeFrequencies(local...)
}

// MergeFrequencies sums frequency maps by token into a new map.
func MergeFrequencies[T cmp.Ordered](maps ...map[T]uint64) map[T]uint64 {
	merged := make(map[T]uint64)
	for _, m := range maps {
		for token, n := range m {
			merged[token] += n
		}
	}
	return merged
}

// CharFrequencies counts Unicode code points.
func CharFrequencies(lines []string, workers int) map[rune]uint64 {
	return CountFrequencies(lines, charTokens, workers)
}

// WordFrequencies counts words separated by ASCII whitespace.
func WordFrequencies(lines []string, workers int) map[string]uint64 {
	return CountFrequencies(lines, wordTokens, workers)
}
