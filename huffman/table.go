package huffman

import (
	"cmp"
	"fmt"
	"slices"
)

// EncoderTable maps each token to its codeword.
type EncoderTable[T cmp.Ordered] map[T]Code

// DecoderTable maps each codeword back to its token.
type DecoderTable[T cmp.Ordered] map[Code]T

// Entry is one (token, code) pair of a table.
type Entry[T cmp.Ordered] struct {
	Token T
	Code  Code
}

type pathItem[T cmp.Ordered] struct {
	node *Node[T]
	path Code
}

// NewEncoderTable walks the tree and assigns every leaf the bits of its root-to-leaf path,
// 0 for a left edge and 1 for a right edge.  A tree that is a single leaf gives that leaf
// the one-bit code 0, since an empty code cannot be decoded.
func NewEncoderTable[T cmp.Ordered](root *Node[T]) (EncoderTable[T], error) {
	if root == nil {
		return nil, ErrEmptyAlphabet
	}
	table := make(EncoderTable[T])
	if root.Leaf() {
		table[root.Token] = Code{}.Append(false)
		return table, nil
	}

	stack := []pathItem[T]{{node: root}}
	for len(stack) > 0 {
		item := stack[len(stack)-1]
		stack = stack[:len(stack)-1]

		if item.node.Leaf() {
			table[item.node.Token] = item.path
			continue
		}
		if int(item.path.Len) >= MaxCodeLen {
			return nil, ErrCodeTooLong
		}
		stack = append(stack,
			pathItem[T]{node: item.node.Left, path: item.path.Append(false)},
			pathItem[T]{node: item.node.Right, path: item.path.Append(true)},
		)
	}
	return table, nil
}

// Entries returns the table's entries sorted by code.  The order does not depend on map
// iteration, so it is suitable for serialization.
func (t EncoderTable[T]) Entries() []Entry[T] {
	entries := make([]Entry[T], 0, len(t))
	for token, code := range t {
		entries = append(entries, Entry[T]{Token: token, Code: code})
	}
	slices.SortFunc(entries, func(a, b Entry[T]) int {
		if c := a.Code.Compare(b.Code); c != 0 {
			return c
		}
		return cmp.Compare(a.Token, b.Token)
	})
	return entries
}

// MaxLen returns the length of the longest code in t.
func (t EncoderTable[T]) MaxLen() int {
	n := 0
	for _, c := range t {
		n = max(n, int(c.Len))
	}
	return n
}

// Validate checks that t is a usable prefix code: non-empty, no empty codes, no duplicate
// codes, and no code a prefix of another.
func (t EncoderTable[T]) Validate() error {
	if len(t) == 0 {
		return ErrEmptyAlphabet
	}
	entries := t.Entries()
	for i, e := range entries {
		if e.Code.Len == 0 {
			return fmt.Errorf("%w: empty code for token %v", ErrCodeTableInconsistent, e.Token)
		}
		// In code order, any prefix relation shows up between neighbours.
		if i > 0 && e.Code.HasPrefix(entries[i-1].Code) {
			return fmt.Errorf("%w: code %v of token %v is a prefix of %v",
				ErrCodeTableInconsistent, entries[i-1].Code, entries[i-1].Token, e.Code)
		}
	}
	return nil
}

// Decoder validates t and returns its inverse.
func (t EncoderTable[T]) Decoder() (DecoderTable[T], error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	dec := make(DecoderTable[T], len(t))
	for token, code := range t {
		dec[code] = token
	}
	return dec, nil
}
