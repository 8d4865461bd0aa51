package ziphuff

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestSplitJoinLines(t *testing.T) {
	for _, text := range []string{"", "one", "one\ntwo", "trailing\n", "\n\n", "crlf\r\nline"} {
		if got := JoinLines(SplitLines(text)); got != text {
			t.Errorf("JoinLines(SplitLines(%q)) = %q", text, got)
		}
	}
	if got := SplitLines("a\n"); len(got) != 2 || got[1] != "" {
		t.Fatalf("SplitLines(%q) = %q", "a\n", got)
	}
}

func TestFileRoundTrip(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "input.txt")
	blobPath := filepath.Join(dir, "input.zhuf")
	output := filepath.Join(dir, "output.txt")

	text := "first line\nsecond line\n\nlast line\n"
	if err := os.WriteFile(input, []byte(text), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	lines, err := ReadCorpusFile(input)
	if err != nil {
		t.Fatalf("ReadCorpusFile failed: %v", err)
	}
	blob, err := Compress(lines, Chars)
	if err != nil {
		t.Fatalf("Compress failed: %v", err)
	}
	if err := WriteFileAtomic(blobPath, blob); err != nil {
		t.Fatalf("WriteFileAtomic failed: %v", err)
	}

	readBack, err := ReadBlobFile(blobPath)
	if err != nil {
		t.Fatalf("ReadBlobFile failed: %v", err)
	}
	restored, err := Extract(readBack, Chars)
	if err != nil {
		t.Fatalf("Extract failed: %v", err)
	}
	if err := WriteFileAtomic(output, []byte(JoinLines(restored))); err != nil {
		t.Fatalf("WriteFileAtomic failed: %v", err)
	}

	got, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(got) != text {
		t.Fatalf("restored file: got %q want %q", got, text)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir failed: %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("expected no leftover temp files, found %d entries", len(entries))
	}
}

func TestWriteFileAtomicReplaces(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out")
	if err := WriteFileAtomic(path, []byte("old contents")); err != nil {
		t.Fatalf("WriteFileAtomic failed: %v", err)
	}
	if err := WriteFileAtomic(path, []byte("new")); err != nil {
		t.Fatalf("WriteFileAtomic failed: %v", err)
	}
	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if string(got) != "new" {
		t.Fatalf("got %q want %q", got, "new")
	}
}

func TestReadCorpusFileRejectsInvalidUTF8(t *testing.T) {
	path := filepath.Join(t.TempDir(), "latin1.txt")
	if err := os.WriteFile(path, []byte("caf\xe9\nok\n"), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}

	_, err := ReadCorpusFile(path)
	if !errors.Is(err, ErrIO) || !errors.Is(err, ErrInvalidUTF8) {
		t.Fatalf("expected ErrIO wrapping ErrInvalidUTF8, got %v", err)
	}
	if !strings.Contains(err.Error(), "byte 3") {
		t.Fatalf("expected error to name the offset, got: %v", err)
	}
}

func TestFileErrorsWrapErrIO(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "missing", "file")

	if _, err := ReadCorpusFile(missing); !errors.Is(err, ErrIO) || !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("ReadCorpusFile: expected ErrIO wrapping ErrNotExist, got %v", err)
	}
	if _, err := ReadBlobFile(missing); !errors.Is(err, ErrIO) {
		t.Fatalf("ReadBlobFile: expected ErrIO, got %v", err)
	}
	if err := WriteFileAtomic(missing, []byte("x")); !errors.Is(err, ErrIO) {
		t.Fatalf("WriteFileAtomic: expected ErrIO, got %v", err)
	}
}
