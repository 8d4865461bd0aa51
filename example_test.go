package ziphuff_test

import (
	"fmt"

	"github.com/seiflotfy/ziphuff"
)

// ExampleCompress demonstrates a full round trip over word tokens.
func ExampleCompress() {
	lines := []string{
		"the quick brown fox",
		"",
		"the lazy dog",
	}

	blob, err := ziphuff.Compress(lines, ziphuff.Words)
	if err != nil {
		panic(err)
	}

	restored, err := ziphuff.Extract(blob, ziphuff.Words)
	if err != nil {
		panic(err)
	}
	for _, line := range restored {
		fmt.Printf("%q\n", line)
	}

	// Output:
	// "the quick brown fox"
	// ""
	// "the lazy dog"
}

// ExampleModel shows the code table trained on a corpus and the size of an encoded line.
func ExampleModel() {
	lines := []string{"abracadabra"}

	m, err := ziphuff.TrainModel(lines, ziphuff.Chars)
	if err != nil {
		panic(err)
	}
	for _, e := range m.Table().Entries() {
		fmt.Printf("%c %v\n", e.Token, e.Code)
	}

	doc, err := m.Encode(lines)
	if err != nil {
		panic(err)
	}
	fmt.Printf("%d bits\n", doc.BitLen())

	// Output:
	// a 0
	// c 100
	// d 101
	// b 110
	// r 111
	// 23 bits
}
