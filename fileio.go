package ziphuff

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// SplitLines splits a corpus on '\n'.  A trailing newline yields a final empty line, so
// JoinLines(SplitLines(s)) == s for every s.
func SplitLines(text string) []string {
	return strings.Split(text, "\n")
}

// JoinLines joins lines with '\n'.
func JoinLines(lines []string) string {
	return strings.Join(lines, "\n")
}

// ReadCorpusFile reads a UTF-8 text file and splits it into lines.
func ReadCorpusFile(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	text := string(data)
	if !utf8.ValidString(text) {
		return nil, fmt.Errorf("%w: %s: %w at byte %d", ErrIO, path, ErrInvalidUTF8, invalidUTF8Offset(text))
	}
	return SplitLines(text), nil
}

// ReadBlobFile reads a compressed blob.
func ReadBlobFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIO, err)
	}
	return data, nil
}

// WriteFileAtomic writes data to a temporary file next to path and renames it into place, so
// readers never observe a partial file.
func WriteFileAtomic(path string, data []byte) error {
	if err := writeFileAtomic(path, data); err != nil {
		return fmt.Errorf("%w: %w", ErrIO, err)
	}
	return nil
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return err
	}
	return os.Rename(tmpName, path)
}
