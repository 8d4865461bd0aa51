/*
Package ziphuff compresses a text corpus line by line with a static Huffman code built over
characters or whitespace-delimited words.

Compress counts token frequencies over the whole corpus, builds a Huffman tree, derives the
token-to-code table, bit-packs every line independently and serializes the table together
with the per-line bit sequences into one self-contained blob.  Extract reverses the process
exactly.  The token kind is chosen with an Alphabet; Chars and Words are provided.
*/
package ziphuff

import (
	"bytes"
	"cmp"
	"errors"
	"fmt"
	"runtime"

	"github.com/klauspost/compress/flate"
	"github.com/op/go-logging"

	"github.com/seiflotfy/ziphuff/huffman"
)

var log = logging.MustGetLogger("ziphuff")

// LogModules lists the logger modules used by this module, for callers configuring levels.
// They log at WARNING and above until a caller raises their level.
var LogModules = []string{
	"ziphuff",
	"ziphuff/huffman",
}

func init() {
	for _, module := range LogModules {
		logging.SetLevel(logging.WARNING, module)
	}
}

var (
	// ErrIO wraps failures reading or writing files.
	ErrIO = errors.New("ziphuff: i/o error")
	// ErrSerialization indicates a malformed, truncated or mismatched blob.
	ErrSerialization = errors.New("ziphuff: malformed blob")
	// ErrEmptyAlphabet indicates a corpus that yields no tokens at all.
	ErrEmptyAlphabet = huffman.ErrEmptyAlphabet
	// ErrTokenNotFound indicates a token missing from the encoder table.  It means the
	// tokenizer and the frequency function disagree.
	ErrTokenNotFound = errors.New("ziphuff: token not in encoder table")
	// ErrDecodeCorruption indicates a line whose bits do not resolve to whole codes.
	ErrDecodeCorruption = errors.New("ziphuff: corrupt bit sequence")
	// ErrInvalidUTF8 indicates text that is not valid UTF-8.  Characters cannot represent it
	// without loss.
	ErrInvalidUTF8 = errors.New("ziphuff: invalid UTF-8")
	// ErrUntrainedModel indicates Encode was called before a model was trained.
	ErrUntrainedModel = errors.New("ziphuff: model is not trained")
)

// Config holds configuration for compression and extraction.
type Config struct {
	Workers          int             // Parallel workers (0 = GOMAXPROCS)
	LineCacheSize    int             // Entries in the repeated-line cache (0 = disabled)
	CompressionLevel int             // flate level tried for blob stages (0 = default)
	RawStages        bool            // Never flate blob stages
	Progress         chan<- Progress // Optional progress events, sent without blocking
}

// Option is a functional option for configuring compression.
type Option func(*Config)

// WithWorkers bounds the number of goroutines used for counting and line coding.
// Values below 1 select runtime.GOMAXPROCS(0).
func WithWorkers(n int) Option {
	return func(c *Config) {
		c.Workers = n
	}
}

// WithLineCache enables a shared LRU cache of encoded lines holding up to n entries.
// Corpora with many repeated lines (logs, CSV exports) are encoded faster; output is unchanged.
func WithLineCache(n int) Option {
	return func(c *Config) {
		c.LineCacheSize = n
	}
}

// WithCompressionLevel sets the flate level tried for the table and line stages of the blob.
// A stage is only stored deflated when that is smaller.  Levels outside
// [flate.HuffmanOnly, flate.BestCompression] fall back to flate.BestCompression.
func WithCompressionLevel(level int) Option {
	return func(c *Config) {
		c.CompressionLevel = level
	}
}

// WithRawStages stores every blob stage uncompressed.
func WithRawStages() Option {
	return func(c *Config) {
		c.RawStages = true
	}
}

// WithProgress sends progress events to ch.  Sends never block: events are dropped when ch
// is not ready, so the last Fraction seen may be below 1.  ch is never closed.
func WithProgress(ch chan<- Progress) Option {
	return func(c *Config) {
		c.Progress = ch
	}
}

func newConfig(opts []Option) Config {
	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

func resolveWorkers(cfg Config) int {
	if cfg.Workers < 1 {
		return runtime.GOMAXPROCS(0)
	}
	return cfg.Workers
}

func resolveCompressionLevel(cfg Config) int {
	switch {
	case cfg.RawStages:
		return flate.NoCompression
	case cfg.CompressionLevel == 0:
		return flate.BestCompression
	case cfg.CompressionLevel >= flate.HuffmanOnly && cfg.CompressionLevel <= flate.BestCompression:
		return cfg.CompressionLevel
	default:
		return flate.BestCompression
	}
}

// Compress encodes lines with a Huffman code trained on the lines themselves and returns the
// serialized blob.
func Compress[T cmp.Ordered](lines []string, a *Alphabet[T], opts ...Option) ([]byte, error) {
	m, err := TrainModel(lines, a, opts...)
	if err != nil {
		return nil, err
	}
	doc, err := m.Encode(lines)
	if err != nil {
		return nil, err
	}

	report(m.config.Progress, OpCompress, StageSerialize, 0, 1)
	var buf bytes.Buffer
	n, err := doc.writeTo(&buf, m.config)
	if err != nil {
		return nil, err
	}
	report(m.config.Progress, OpCompress, StageSerialize, 1, 1)
	log.Debugf("compressed %d lines into %d bytes (%s, %d codes)", len(lines), n, a.Name, len(doc.Table))
	return buf.Bytes(), nil
}

// Extract decodes a blob produced by Compress with the same alphabet.
func Extract[T cmp.Ordered](blob []byte, a *Alphabet[T], opts ...Option) ([]string, error) {
	cfg := newConfig(opts)

	report(cfg.Progress, OpExtract, StageDeserialize, 0, 1)
	doc := &Document[T]{Alphabet: a}
	r := bytes.NewReader(blob)
	n, err := doc.ReadFrom(r)
	if err != nil {
		return nil, err
	}
	if r.Len() != 0 {
		return nil, fmt.Errorf("%w: %d trailing bytes at offset %d", ErrSerialization, r.Len(), n)
	}
	report(cfg.Progress, OpExtract, StageDeserialize, 1, 1)

	lines, err := doc.decode(cfg)
	if err != nil {
		return nil, err
	}
	log.Debugf("extracted %d lines from %d bytes (%s)", len(lines), len(blob), a.Name)
	return lines, nil
}
