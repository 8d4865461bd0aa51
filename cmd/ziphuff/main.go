package main

import (
	"cmp"
	"errors"
	"flag"
	"fmt"
	"io"
	"math"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/klauspost/compress"
	"github.com/op/go-logging"

	"github.com/seiflotfy/ziphuff"
)

const progName = "ziphuff"
const usageMessageRaw = `
Usage: ziphuff [-d] [-progress] [-workers N] [-cache N] SUBCOMMAND MODE INPUT [OUTPUT]

Subcommands:
  compress MODE INPUT OUTPUT
    Read the text file INPUT, build a Huffman code over its MODE tokens and
    write the compressed blob to OUTPUT.
  extract MODE INPUT OUTPUT
    Read the blob INPUT, written by compress with the same MODE, and write
    the restored text to OUTPUT.
  stats MODE INPUT
    Print the code table statistics for the text file INPUT.

Modes:
  chars   Unicode characters; every line round-trips exactly. INPUT must
          be valid UTF-8.
  words   words separated by ASCII whitespace; runs of whitespace are
          restored as single spaces.

Flags:
  -d          debug logging
  -progress   render progress on standard error
  -workers N  parallel workers (default: number of CPUs)
  -cache N    cache up to N encoded lines (default: off)
`

const logModule = "cmd/ziphuff"

var log = logging.MustGetLogger(logModule)

type nullWriter struct{}

func (n *nullWriter) Write(p []byte) (int, error) {
	return len(p), nil
}

var ourFlags *flag.FlagSet

func usageMessage() string {
	return strings.TrimLeft(usageMessageRaw, "\n")
}

func usageErrorf(detailFmt string, detailArgs ...interface{}) {
	detail := fmt.Sprintf(detailFmt, detailArgs...)
	fmt.Fprintf(os.Stderr, "%s: %s\n%s", progName, detail, usageMessage())
	os.Exit(64)
}

func exitError(err error) {
	fmt.Fprintf(os.Stderr, "%s: %s\n", progName, err.Error())
	os.Exit(1)
}

var argI int = 0

func nextArg(expected string) string {
	if !(argI < ourFlags.NArg()) {
		usageErrorf("not enough arguments; expected %s", expected)
	}
	arg := ourFlags.Arg(argI)
	argI++
	return arg
}

func endOfArgs() {
	if argI < ourFlags.NArg() {
		usageErrorf("too many arguments at %d (\"%s\")", argI, ourFlags.Arg(argI))
	}
}

var leveledLogBackend logging.LeveledBackend

func startLogging() {
	backend := logging.NewLogBackend(os.Stderr, progName+": ", 0)
	formatSpec := "%{color:bold}%{level:6s}%{color:reset} %{module:-16s} | %{message}"
	formatter := logging.MustStringFormatter(formatSpec)
	formatted := logging.NewBackendFormatter(backend, formatter)
	leveled := logging.AddModuleLevel(formatted)
	logging.SetBackend(leveled)
	leveledLogBackend = leveled
	setLogLevel(logging.INFO)
}

// setLogLevel sets the level of this command's logger and of every library module.
func setLogLevel(level logging.Level) {
	leveledLogBackend.SetLevel(level, "")
	leveledLogBackend.SetLevel(level, logModule)
	for _, module := range ziphuff.LogModules {
		leveledLogBackend.SetLevel(level, module)
	}
}

// timed runs fn and logs how long it took.
func timed(phase string, fn func() error) error {
	start := time.Now()
	err := fn()
	if err == nil {
		log.Infof("%s: %v", phase, time.Since(start))
	}
	return err
}

// withProgress runs job on a background goroutine and renders the events it emits until it
// returns.
func withProgress(enabled bool, opts []ziphuff.Option, job func(opts []ziphuff.Option) error) error {
	if !enabled {
		return job(opts)
	}

	events := make(chan ziphuff.Progress, 64)
	done := make(chan error, 1)
	go func() {
		done <- job(append(opts, ziphuff.WithProgress(events)))
	}()

	var last ziphuff.Progress
	for {
		select {
		case ev := <-events:
			last = ev
			fmt.Fprintf(os.Stderr, "\r%-60s", ev.String())
		case err := <-done:
			if last.Total > 0 || last.Done > 0 {
				fmt.Fprintln(os.Stderr)
			}
			return err
		}
	}
}

func compressCmd(mode ziphuff.Mode, inPath, outPath string, opts []ziphuff.Option) error {
	var lines []string
	if err := timed("read input", func() (err error) {
		lines, err = ziphuff.ReadCorpusFile(inPath)
		return err
	}); err != nil {
		return err
	}

	var blob []byte
	if err := timed("compress", func() (err error) {
		blob, err = ziphuff.CompressMode(mode, lines, opts...)
		return err
	}); err != nil {
		return err
	}

	if err := timed("write output", func() error {
		return ziphuff.WriteFileAtomic(outPath, blob)
	}); err != nil {
		return err
	}
	log.Infof("Compression succeeded: %d lines -> %d bytes", len(lines), len(blob))
	return nil
}

func extractCmd(mode ziphuff.Mode, inPath, outPath string, opts []ziphuff.Option) error {
	var blob []byte
	if err := timed("read input", func() (err error) {
		blob, err = ziphuff.ReadBlobFile(inPath)
		return err
	}); err != nil {
		return err
	}

	var lines []string
	if err := timed("extract", func() (err error) {
		lines, err = ziphuff.ExtractMode(mode, blob, opts...)
		return err
	}); err != nil {
		return err
	}

	if err := timed("write output", func() error {
		return ziphuff.WriteFileAtomic(outPath, []byte(ziphuff.JoinLines(lines)))
	}); err != nil {
		return err
	}
	log.Infof("Extraction succeeded: %d bytes -> %d lines", len(blob), len(lines))
	return nil
}

func statsCmd(mode ziphuff.Mode, inPath string, out io.Writer, opts []ziphuff.Option) error {
	lines, err := ziphuff.ReadCorpusFile(inPath)
	if err != nil {
		return err
	}
	switch mode {
	case ziphuff.ModeChars:
		return printStats(out, lines, ziphuff.Chars, opts)
	case ziphuff.ModeWords:
		return printStats(out, lines, ziphuff.Words, opts)
	default:
		return fmt.Errorf("unknown mode %q", mode)
	}
}

func printStats[T cmp.Ordered](out io.Writer, lines []string, a *ziphuff.Alphabet[T], opts []ziphuff.Option) error {
	m, err := ziphuff.TrainModel(lines, a, opts...)
	if err != nil {
		return err
	}
	doc, err := m.Encode(lines)
	if err != nil {
		return err
	}
	var blob countingWriter
	if _, err := doc.WriteTo(&blob); err != nil {
		return err
	}

	freqs := ziphuff.CountFrequencies(lines, a.Tokenize, 1)
	var tokens uint64
	for _, n := range freqs {
		tokens += n
	}
	var entropyBits float64
	for _, n := range freqs {
		p := float64(n) / float64(tokens)
		entropyBits -= float64(n) * math.Log2(p)
	}

	byLen := make(map[uint8]int)
	for _, code := range m.Table() {
		byLen[code.Len]++
	}
	lens := make([]uint8, 0, len(byLen))
	for l := range byLen {
		lens = append(lens, l)
	}
	slices.Sort(lens)

	raw := []byte(ziphuff.JoinLines(lines))
	bits := doc.BitLen()

	fmt.Fprintf(out, "Alphabet: %s\n", a.Name)
	fmt.Fprintf(out, "  Lines: %d\n", len(lines))
	fmt.Fprintf(out, "  Distinct tokens: %d\n", len(freqs))
	fmt.Fprintf(out, "  Total tokens: %d\n", tokens)
	fmt.Fprintf(out, "\nCode lengths:\n")
	for _, l := range lens {
		fmt.Fprintf(out, "  %3d bits: %d codes\n", l, byLen[l])
	}
	fmt.Fprintf(out, "\nSizes:\n")
	fmt.Fprintf(out, "  Input: %d bytes\n", len(raw))
	fmt.Fprintf(out, "  Encoded lines: %d bits (%d bytes)\n", bits, (bits+7)/8)
	if tokens > 0 {
		fmt.Fprintf(out, "  Average code length: %.3f bits/token\n", float64(bits)/float64(tokens))
	}
	fmt.Fprintf(out, "  Token entropy bound: %.0f bytes\n", math.Ceil(entropyBits/8))
	fmt.Fprintf(out, "  Byte Shannon limit: %d bytes\n", compress.ShannonEntropyBits(raw)/8)
	fmt.Fprintf(out, "  Blob: %d bytes\n", blob.n)
	if blob.n > 0 {
		fmt.Fprintf(out, "  Ratio: %.2fx\n", float64(len(raw))/float64(blob.n))
	}
	return nil
}

type countingWriter struct {
	n int64
}

func (w *countingWriter) Write(p []byte) (int, error) {
	w.n += int64(len(p))
	return len(p), nil
}

func main() {
	startLogging()

	ourFlags = flag.NewFlagSet(progName, flag.ContinueOnError)
	ourFlags.Usage = func() {}
	ourFlags.SetOutput(&nullWriter{})

	// Usage strings are hardcoded above.

	var debugLogging bool
	var showProgress bool
	var workers int
	var cacheSize int
	ourFlags.BoolVar(&debugLogging, "debug", false, "")
	ourFlags.BoolVar(&debugLogging, "d", false, "")
	ourFlags.BoolVar(&showProgress, "progress", false, "")
	ourFlags.IntVar(&workers, "workers", 0, "")
	ourFlags.IntVar(&cacheSize, "cache", 0, "")

	argErr := ourFlags.Parse(os.Args[1:])
	if argErr == flag.ErrHelp {
		io.WriteString(os.Stdout, usageMessage())
		os.Exit(0)
	} else if argErr != nil {
		usageErrorf("%s", argErr.Error())
	}

	if debugLogging {
		setLogLevel(logging.DEBUG)
	}
	if workers < 0 {
		usageErrorf("-workers must not be negative")
	}
	if cacheSize < 0 {
		usageErrorf("-cache must not be negative")
	}

	opts := []ziphuff.Option{
		ziphuff.WithWorkers(workers),
		ziphuff.WithLineCache(cacheSize),
	}

	subcommand := nextArg("SUBCOMMAND")
	modeArg := nextArg("MODE")
	mode, err := ziphuff.ParseMode(modeArg)
	if err != nil {
		usageErrorf("%s", err.Error())
	}

	var requestedCommand func(opts []ziphuff.Option) error
	switch subcommand {
	default:
		usageErrorf("bad subcommand \"%s\"", subcommand)
	case "compress":
		inPath := nextArg("INPUT")
		outPath := nextArg("OUTPUT")
		endOfArgs()
		requestedCommand = func(opts []ziphuff.Option) error {
			return compressCmd(mode, inPath, outPath, opts)
		}
	case "extract":
		inPath := nextArg("INPUT")
		outPath := nextArg("OUTPUT")
		endOfArgs()
		requestedCommand = func(opts []ziphuff.Option) error {
			return extractCmd(mode, inPath, outPath, opts)
		}
	case "stats":
		inPath := nextArg("INPUT")
		endOfArgs()
		requestedCommand = func(opts []ziphuff.Option) error {
			return statsCmd(mode, inPath, os.Stdout, opts)
		}
	}

	err = withProgress(showProgress, opts, requestedCommand)
	if err != nil {
		if errors.Is(err, ziphuff.ErrSerialization) {
			log.Errorf("%s is not a %s blob", ourFlags.Arg(2), mode)
		}
		exitError(err)
	}
}
