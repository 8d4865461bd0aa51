package huffman

import (
	"cmp"
	"container/heap"
	"errors"
	"slices"

	"github.com/op/go-logging"
)

var log = logging.MustGetLogger("ziphuff/huffman")

var (
	// ErrEmptyAlphabet indicates a frequency map with no tokens.
	ErrEmptyAlphabet = errors.New("huffman: empty alphabet")
	// ErrCodeTooLong indicates a tree deeper than MaxCodeLen.
	ErrCodeTooLong = errors.New("huffman: code longer than 128 bits")
	// ErrCodeTableInconsistent indicates a code table that is not a valid prefix code.
	ErrCodeTableInconsistent = errors.New("huffman: inconsistent code table")
)

// Node is a node of a Huffman tree.  Leaves carry a Token; internal nodes carry two children
// and a Weight equal to the sum of their children's weights.
type Node[T cmp.Ordered] struct {
	Weight      uint64
	Token       T
	Left, Right *Node[T]

	seq int // creation order, breaks weight ties
}

// Leaf reports whether n is a leaf.
func (n *Node[T]) Leaf() bool {
	return n.Left == nil && n.Right == nil
}

// Leaves returns the number of leaves under n.
func (n *Node[T]) Leaves() int {
	if n.Leaf() {
		return 1
	}
	return n.Left.Leaves() + n.Right.Leaves()
}

// Depth returns the length of the longest root-to-leaf path.
func (n *Node[T]) Depth() int {
	if n.Leaf() {
		return 0
	}
	return 1 + max(n.Left.Depth(), n.Right.Depth())
}

// nodeHeap is a min-heap on (Weight, seq).
type nodeHeap[T cmp.Ordered] []*Node[T]

func (h nodeHeap[T]) Len() int { return len(h) }
func (h nodeHeap[T]) Less(i, j int) bool {
	if h[i].Weight != h[j].Weight {
		return h[i].Weight < h[j].Weight
	}
	return h[i].seq < h[j].seq
}
func (h nodeHeap[T]) Swap(i, j int) { h[i], h[j] = h[j], h[i] }
func (h *nodeHeap[T]) Push(x any)   { *h = append(*h, x.(*Node[T])) }
func (h *nodeHeap[T]) Pop() any {
	old := *h
	n := old[len(old)-1]
	old[len(old)-1] = nil
	*h = old[:len(old)-1]
	return n
}

// Build constructs a Huffman tree from token frequencies by repeatedly merging the two
// lightest nodes.  The first node taken becomes the left child.
//
// Ties are broken deterministically: leaves are numbered in (weight, token) order and every
// merged node is numbered after all existing nodes, so among equal weights the oldest node
// is taken first.  The same frequencies always produce the same tree.
func Build[T cmp.Ordered](freqs map[T]uint64) (*Node[T], error) {
	if len(freqs) == 0 {
		return nil, ErrEmptyAlphabet
	}

	leaves := make(nodeHeap[T], 0, len(freqs))
	for token, weight := range freqs {
		leaves = append(leaves, &Node[T]{Weight: weight, Token: token})
	}
	slices.SortFunc(leaves, func(a, b *Node[T]) int {
		if c := cmp.Compare(a.Weight, b.Weight); c != 0 {
			return c
		}
		return cmp.Compare(a.Token, b.Token)
	})
	for i, n := range leaves {
		n.seq = i
	}

	h := leaves
	heap.Init(&h)
	seq := len(h)
	for h.Len() > 1 {
		left := heap.Pop(&h).(*Node[T])
		right := heap.Pop(&h).(*Node[T])
		heap.Push(&h, &Node[T]{
			Weight: left.Weight + right.Weight,
			Left:   left,
			Right:  right,
			seq:    seq,
		})
		seq++
	}

	root := h[0]
	depth := root.Depth()
	if depth > MaxCodeLen {
		return nil, ErrCodeTooLong
	}
	log.Debugf("built tree: %d leaves, weight %d, depth %d", len(freqs), root.Weight, depth)
	return root, nil
}
