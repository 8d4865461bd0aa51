package ziphuff

import (
	"cmp"
	"fmt"
	"strings"
	"unicode/utf8"
)

// Tokenizer splits one line into tokens.
type Tokenizer[T cmp.Ordered] func(line string) []T

// Joiner reassembles one line from its tokens.
type Joiner[T cmp.Ordered] func(tokens []T) string

// FrequencyFunc counts token occurrences over a whole corpus.  workers bounds its parallelism.
type FrequencyFunc[T cmp.Ordered] func(lines []string, workers int) map[T]uint64

// Alphabet bundles the strategies for one token kind.  Tokenize and Frequencies must agree:
// every token Tokenize produces for a corpus line must be counted by Frequencies.
type Alphabet[T cmp.Ordered] struct {
	// Name is stored in the blob and checked on extraction.
	Name string

	Tokenize Tokenizer[T]
	Join     Joiner[T]

	// Frequencies is optional; nil counts with Tokenize.
	Frequencies FrequencyFunc[T]

	// Check is optional.  It rejects lines that would not survive Tokenize and Join unchanged.
	Check func(line string) error

	// AppendToken and ParseToken serialize single tokens for the encoder table.
	AppendToken func(dst []byte, token T) []byte
	ParseToken  func(b []byte) (T, error)
}

func (a *Alphabet[T]) frequencies(lines []string, workers int) map[T]uint64 {
	if a.Frequencies != nil {
		return a.Frequencies(lines, workers)
	}
	return CountFrequencies(lines, a.Tokenize, workers)
}

func (a *Alphabet[T]) checkLines(lines []string) error {
	if a.Check == nil {
		return nil
	}
	for i, line := range lines {
		if err := a.Check(line); err != nil {
			return fmt.Errorf("line %d: %w", i, err)
		}
	}
	return nil
}

// Chars tokenizes lines into Unicode code points and joins them back by concatenation.
// Every valid UTF-8 line round-trips exactly; other lines are rejected with ErrInvalidUTF8.
var Chars = &Alphabet[rune]{
	Name:        "chars",
	Tokenize:    charTokens,
	Join:        joinChars,
	Frequencies: CharFrequencies,
	Check:       checkUTF8,
	AppendToken: utf8.AppendRune,
	ParseToken:  parseChar,
}

// Words tokenizes lines on ASCII whitespace and joins the words with single spaces.  Lines
// round-trip exactly when they have no leading, trailing or repeated whitespace.
var Words = &Alphabet[string]{
	Name:        "words",
	Tokenize:    wordTokens,
	Join:        joinWords,
	Frequencies: WordFrequencies,
	AppendToken: func(dst []byte, w string) []byte { return append(dst, w...) },
	ParseToken:  parseWord,
}

func charTokens(line string) []rune {
	return []rune(line)
}

func joinChars(tokens []rune) string {
	return string(tokens)
}

// checkUTF8 reports the first invalid byte of line.
func checkUTF8(line string) error {
	if utf8.ValidString(line) {
		return nil
	}
	return fmt.Errorf("%w at byte %d", ErrInvalidUTF8, invalidUTF8Offset(line))
}

func invalidUTF8Offset(s string) int {
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size <= 1 {
			return i
		}
		i += size
	}
	return -1
}

func isASCIISpace(r rune) bool {
	switch r {
	case ' ', '\t', '\n', '\f', '\r':
		return true
	}
	return false
}

func wordTokens(line string) []string {
	return strings.FieldsFunc(line, isASCIISpace)
}

func joinWords(tokens []string) string {
	return strings.Join(tokens, " ")
}

func parseChar(b []byte) (rune, error) {
	r, size := utf8.DecodeRune(b)
	if size != len(b) || (r == utf8.RuneError && size <= 1) {
		return 0, fmt.Errorf("invalid character token %q", b)
	}
	return r, nil
}

func parseWord(b []byte) (string, error) {
	if len(b) == 0 {
		return "", fmt.Errorf("empty word token")
	}
	if strings.IndexFunc(string(b), isASCIISpace) >= 0 {
		return "", fmt.Errorf("word token %q contains whitespace", b)
	}
	return string(b), nil
}

// Mode selects one of the built-in alphabets by name.
type Mode string

const (
	ModeWords Mode = "words"
	ModeChars Mode = "chars"
)

// ParseMode parses a mode name.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(s)) {
	case ModeWords:
		return ModeWords, nil
	case ModeChars:
		return ModeChars, nil
	default:
		return "", fmt.Errorf("unknown mode %q (want %q or %q)", s, ModeWords, ModeChars)
	}
}

// CompressMode compresses lines with the alphabet selected by mode.
func CompressMode(mode Mode, lines []string, opts ...Option) ([]byte, error) {
	switch mode {
	case ModeWords:
		return Compress(lines, Words, opts...)
	case ModeChars:
		return Compress(lines, Chars, opts...)
	default:
		return nil, fmt.Errorf("unknown mode %q", mode)
	}
}

// ExtractMode extracts a blob with the alphabet selected by mode.
func ExtractMode(mode Mode, blob []byte, opts ...Option) ([]string, error) {
	switch mode {
	case ModeWords:
		return Extract(blob, Words, opts...)
	case ModeChars:
		return Extract(blob, Chars, opts...)
	default:
		return nil, fmt.Errorf("unknown mode %q", mode)
	}
}
