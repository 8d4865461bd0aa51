package ziphuff

import (
	"cmp"
	"errors"

	"github.com/seiflotfy/ziphuff/huffman"
)

// Model is a reusable trained code table for one alphabet.
type Model[T cmp.Ordered] struct {
	config   Config
	alphabet *Alphabet[T]
	table    huffman.EncoderTable[T]
}

// NewModel creates an empty model with the provided options.
func NewModel[T cmp.Ordered](a *Alphabet[T], opts ...Option) *Model[T] {
	return &Model[T]{config: newConfig(opts), alphabet: a}
}

// TrainModel trains a reusable model from a corpus.
func TrainModel[T cmp.Ordered](lines []string, a *Alphabet[T], opts ...Option) (*Model[T], error) {
	m := NewModel(a, opts...)
	if err := m.Train(lines); err != nil {
		return nil, err
	}
	return m, nil
}

// Train counts token frequencies over lines and builds the code table for subsequent Encode calls.
func (m *Model[T]) Train(lines []string) error {
	if m.alphabet == nil {
		return errors.New("ziphuff: model has no alphabet")
	}
	if err := m.alphabet.checkLines(lines); err != nil {
		return err
	}
	workers := resolveWorkers(m.config)

	report(m.config.Progress, OpCompress, StageCount, 0, len(lines))
	freqs := m.alphabet.frequencies(lines, workers)
	report(m.config.Progress, OpCompress, StageCount, len(lines), len(lines))
	log.Debugf("counted %d distinct %s over %d lines", len(freqs), m.alphabet.Name, len(lines))

	report(m.config.Progress, OpCompress, StageBuild, 0, 1)
	root, err := huffman.Build(freqs)
	if err != nil {
		return err
	}
	table, err := huffman.NewEncoderTable(root)
	if err != nil {
		return err
	}
	report(m.config.Progress, OpCompress, StageBuild, 1, 1)
	log.Debugf("code table: %d entries, longest code %d bits", len(table), table.MaxLen())

	m.table = table
	return nil
}

// Encode bit-packs lines with the trained table.
func (m *Model[T]) Encode(lines []string) (*Document[T], error) {
	if m.table == nil {
		return nil, ErrUntrainedModel
	}
	if err := m.alphabet.checkLines(lines); err != nil {
		return nil, err
	}
	enc, err := newLineEncoder(m.table, m.alphabet.Tokenize, m.config.LineCacheSize)
	if err != nil {
		return nil, err
	}
	data, err := encodeLines(lines, enc, m.config)
	if err != nil {
		return nil, err
	}
	return &Document[T]{
		Alphabet: m.alphabet,
		Table:    m.table,
		Lines:    data,
	}, nil
}

// Trained reports whether the model is ready for Encode.
func (m *Model[T]) Trained() bool {
	return m.table != nil
}

// Table returns the trained encoder table, or nil.  It must not be modified.
func (m *Model[T]) Table() huffman.EncoderTable[T] {
	return m.table
}
