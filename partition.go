package ziphuff

import (
	"golang.org/x/sync/errgroup"
)

// minPartitionLines keeps tiny corpora from being spread over many goroutines.
const minPartitionLines = 256

type partition struct {
	index  int
	lo, hi int
}

// partitions splits [0, n) into contiguous ranges, a few per worker so uneven lines balance out.
func partitions(n, workers int) []partition {
	if n == 0 {
		return nil
	}
	count := workers * 4
	if limit := (n + minPartitionLines - 1) / minPartitionLines; count > limit {
		count = limit
	}
	if count < 1 {
		count = 1
	}

	parts := make([]partition, 0, count)
	size := (n + count - 1) / count
	for lo := 0; lo < n; lo += size {
		parts = append(parts, partition{index: len(parts), lo: lo, hi: min(lo+size, n)})
	}
	return parts
}

// forEachPartition runs fn over the partitions of [0, n) with at most workers goroutines and
// returns the first error.  fn must only write state owned by its partition.
func forEachPartition(n, workers int, fn func(p partition) error) error {
	var g errgroup.Group
	g.SetLimit(workers)
	for _, p := range partitions(n, workers) {
		g.Go(func() error {
			return fn(p)
		})
	}
	return g.Wait()
}
