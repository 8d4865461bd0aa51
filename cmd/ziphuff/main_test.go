package main

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/op/go-logging"

	"github.com/seiflotfy/ziphuff"
)

func writeInput(t *testing.T, text string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "input.txt")
	if err := os.WriteFile(path, []byte(text), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
	return path
}

func TestCompressExtractCommands(t *testing.T) {
	text := "alpha beta\ngamma delta alpha\n\nbeta\n"
	input := writeInput(t, text)
	dir := filepath.Dir(input)
	blobPath := filepath.Join(dir, "input.zhuf")
	output := filepath.Join(dir, "output.txt")

	for _, mode := range []ziphuff.Mode{ziphuff.ModeChars, ziphuff.ModeWords} {
		if err := compressCmd(mode, input, blobPath, nil); err != nil {
			t.Fatalf("compress %s failed: %v", mode, err)
		}
		if err := extractCmd(mode, blobPath, output, nil); err != nil {
			t.Fatalf("extract %s failed: %v", mode, err)
		}
		got, err := os.ReadFile(output)
		if err != nil {
			t.Fatalf("ReadFile failed: %v", err)
		}
		if string(got) != text {
			t.Fatalf("%s: restored %q want %q", mode, got, text)
		}
	}
}

func TestExtractCommandRejectsOtherMode(t *testing.T) {
	input := writeInput(t, "one two\n")
	blobPath := filepath.Join(filepath.Dir(input), "input.zhuf")
	if err := compressCmd(ziphuff.ModeWords, input, blobPath, nil); err != nil {
		t.Fatalf("compress failed: %v", err)
	}
	err := extractCmd(ziphuff.ModeChars, blobPath, filepath.Join(filepath.Dir(input), "out"), nil)
	if !errors.Is(err, ziphuff.ErrSerialization) {
		t.Fatalf("expected ErrSerialization, got %v", err)
	}
}

func TestStatsCommand(t *testing.T) {
	input := writeInput(t, "abracadabra\n")

	var out bytes.Buffer
	if err := statsCmd(ziphuff.ModeChars, input, &out, nil); err != nil {
		t.Fatalf("stats failed: %v", err)
	}
	report := out.String()
	for _, want := range []string{
		"Alphabet: chars",
		"Distinct tokens: 5",
		"Total tokens: 11",
		"  1 bits: 1 codes",
		"  3 bits: 4 codes",
		"Encoded lines: 23 bits (3 bytes)",
		"Byte Shannon limit:",
	} {
		if !strings.Contains(report, want) {
			t.Errorf("stats output missing %q:\n%s", want, report)
		}
	}
}

func TestWithProgressReturnsJobError(t *testing.T) {
	want := errors.New("boom")
	err := withProgress(true, nil, func(opts []ziphuff.Option) error {
		if len(opts) != 1 {
			t.Errorf("expected the progress option to be appended, got %d options", len(opts))
		}
		return want
	})
	if !errors.Is(err, want) {
		t.Fatalf("got %v want %v", err, want)
	}
}

func TestSetLogLevelCoversLibraryModules(t *testing.T) {
	startLogging()
	for _, module := range append([]string{logModule}, ziphuff.LogModules...) {
		if got := leveledLogBackend.GetLevel(module); got != logging.INFO {
			t.Errorf("%s: level %v after startLogging, want INFO", module, got)
		}
	}

	setLogLevel(logging.DEBUG)
	for _, module := range append([]string{logModule}, ziphuff.LogModules...) {
		if !leveledLogBackend.IsEnabledFor(logging.DEBUG, module) {
			t.Errorf("%s: DEBUG not enabled after setLogLevel", module)
		}
	}
}
