package ziphuff

import (
	"bytes"
	"cmp"
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/cespare/xxhash/v2"
	"github.com/icza/bitio"
	"github.com/klauspost/compress/flate"

	"github.com/seiflotfy/ziphuff/huffman"
)

const (
	archiveMagic   = "ZHUF"
	archiveVersion = uint16(1)

	stageAlphabet     = "alphabet"
	stageEncoderTable = "encoder_table"
	stageLineBits     = "line_bits"
	stageChecksum     = "checksum"

	stageParamRaw   = uint8(0) // payload stored as is
	stageParamFlate = uint8(1) // flate(raw payload)

	maxArchiveStages     = 64
	maxStagePayloadBytes = 1 << 30 // 1 GiB
	maxTokenBytes        = 1 << 16
	checksumLen          = 8
)

// Wire format (version 1):
//
//	magic[4] = "ZHUF"
//	version  = uint16 little-endian
//	stageCnt = uint16 little-endian
//	repeat stageCnt times:
//	  nameLen  = uint8
//	  paramLen = uint16 little-endian
//	  dataLen  = uint32 little-endian
//	  name     = nameLen bytes
//	  params   = paramLen bytes
//	  payload  = dataLen bytes
//
// Required stage names:
//
//	alphabet, encoder_table, line_bits, checksum
//
// checksum must be the last stage; its payload is the little-endian xxhash64 of the name,
// params and payload of every stage before it.  Unknown stages are hashed and skipped.
type wireStageHeader struct {
	name     string
	paramLen uint16
	dataLen  uint32
}

func writeBytes(w io.Writer, b []byte) (int64, error) {
	n, err := w.Write(b)
	if err != nil {
		return int64(n), err
	}
	if n != len(b) {
		return int64(n), io.ErrShortWrite
	}
	return int64(n), nil
}

func writeStage(w io.Writer, name string, params []byte, payload []byte) (int64, error) {
	if len(name) == 0 || len(name) > 255 {
		return 0, fmt.Errorf("invalid stage name length: %d", len(name))
	}
	if len(params) > int(^uint16(0)) {
		return 0, fmt.Errorf("stage params too large for %q: %d", name, len(params))
	}
	if len(payload) > maxStagePayloadBytes {
		return 0, fmt.Errorf("stage payload too large for %q: %d", name, len(payload))
	}

	var header [7]byte
	header[0] = uint8(len(name))
	binary.LittleEndian.PutUint16(header[1:3], uint16(len(params)))
	binary.LittleEndian.PutUint32(header[3:7], uint32(len(payload)))

	var total int64
	for _, part := range [][]byte{header[:], []byte(name), params, payload} {
		n, err := writeBytes(w, part)
		total += n
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

func readStageHeader(r io.Reader) (wireStageHeader, int64, error) {
	var header [7]byte
	n, err := io.ReadFull(r, header[:])
	total := int64(n)
	if err != nil {
		return wireStageHeader{}, total, err
	}

	nameLen := header[0]
	if nameLen == 0 {
		return wireStageHeader{}, total, fmt.Errorf("stage name length must be > 0")
	}
	paramLen := binary.LittleEndian.Uint16(header[1:3])
	dataLen := binary.LittleEndian.Uint32(header[3:7])
	if dataLen > uint32(maxStagePayloadBytes) {
		return wireStageHeader{}, total, fmt.Errorf("stage payload too large: %d", dataLen)
	}

	nameBytes := make([]byte, int(nameLen))
	n, err = io.ReadFull(r, nameBytes)
	total += int64(n)
	if err != nil {
		return wireStageHeader{}, total, err
	}

	return wireStageHeader{
		name:     string(nameBytes),
		paramLen: paramLen,
		dataLen:  dataLen,
	}, total, nil
}

// Document is a compressed corpus: the encoder table plus one bit sequence per line, in
// input order.  It is the only artifact Compress persists.
type Document[T cmp.Ordered] struct {
	Alphabet *Alphabet[T]
	Table    huffman.EncoderTable[T]
	Lines    []huffman.BitString
}

// Len returns the number of lines in the document.
func (d *Document[T]) Len() int {
	return len(d.Lines)
}

// BitLen returns the total number of encoded bits over all lines.
func (d *Document[T]) BitLen() int {
	n := 0
	for _, line := range d.Lines {
		n += line.BitLength
	}
	return n
}

// Decode decodes every line back to text.
func (d *Document[T]) Decode(opts ...Option) ([]string, error) {
	return d.decode(newConfig(opts))
}

func (d *Document[T]) decode(cfg Config) ([]string, error) {
	if d.Alphabet == nil {
		return nil, errors.New("ziphuff: document has no alphabet")
	}
	dec, err := d.Table.Decoder()
	if err != nil {
		return nil, err
	}
	return decodeLines(d.Lines, dec, d.Table.MaxLen(), d.Alphabet.Join, cfg)
}

func validateDocument[T cmp.Ordered](d *Document[T]) error {
	if d.Alphabet == nil {
		return fmt.Errorf("document has no alphabet")
	}
	if len(d.Alphabet.Name) == 0 || len(d.Alphabet.Name) > 255 {
		return fmt.Errorf("invalid alphabet name %q", d.Alphabet.Name)
	}
	if err := d.Table.Validate(); err != nil {
		return err
	}
	for i, line := range d.Lines {
		if line.BitLength < 0 || line.BitLength > len(line.Packed)*8 {
			return fmt.Errorf("line %d: %d bits in %d bytes", i, line.BitLength, len(line.Packed))
		}
	}
	return nil
}

func encodeAlphabetStage[T cmp.Ordered](d *Document[T]) []byte {
	return []byte(d.Alphabet.Name)
}

func decodeAlphabetStage[T cmp.Ordered](dst *Document[T], payload []byte) error {
	if name := string(payload); name != dst.Alphabet.Name {
		return fmt.Errorf("blob holds %q tokens, not %q", name, dst.Alphabet.Name)
	}
	return nil
}

func encodeEncoderTableStage[T cmp.Ordered](d *Document[T]) ([]byte, error) {
	entries := d.Table.Entries()
	payload := binary.AppendUvarint(nil, uint64(len(entries)))
	var token []byte
	for _, e := range entries {
		token = d.Alphabet.AppendToken(token[:0], e.Token)
		if len(token) > maxTokenBytes {
			return nil, fmt.Errorf("token too large: %d bytes", len(token))
		}
		payload = binary.AppendUvarint(payload, uint64(len(token)))
		payload = append(payload, token...)
		payload = append(payload, e.Code.Len)
		payload = e.Code.AppendPacked(payload)
	}
	if len(payload) > maxStagePayloadBytes {
		return nil, fmt.Errorf("encoder_table payload too large: %d", len(payload))
	}
	return payload, nil
}

func decodeEncoderTableStage[T cmp.Ordered](dst *Document[T], payload []byte) error {
	r := bytes.NewReader(payload)
	count, err := binary.ReadUvarint(r)
	if err != nil {
		return fmt.Errorf("read entry count: %w", err)
	}
	// Every entry takes at least three bytes.
	if count == 0 || count > uint64(len(payload)/3) {
		return fmt.Errorf("invalid entry count: %d", count)
	}

	table := make(huffman.EncoderTable[T], int(count))
	for i := 0; i < int(count); i++ {
		tokenLen, err := binary.ReadUvarint(r)
		if err != nil {
			return fmt.Errorf("read token length of entry %d: %w", i, err)
		}
		if tokenLen > maxTokenBytes || tokenLen > uint64(r.Len()) {
			return fmt.Errorf("invalid token length of entry %d: %d", i, tokenLen)
		}
		tokenBytes := make([]byte, int(tokenLen))
		if _, err := io.ReadFull(r, tokenBytes); err != nil {
			return fmt.Errorf("read token of entry %d: %w", i, err)
		}
		token, err := dst.Alphabet.ParseToken(tokenBytes)
		if err != nil {
			return fmt.Errorf("entry %d: %w", i, err)
		}
		if _, dup := table[token]; dup {
			return fmt.Errorf("duplicate token %v at entry %d", token, i)
		}

		codeLen, err := r.ReadByte()
		if err != nil {
			return fmt.Errorf("read code length of entry %d: %w", i, err)
		}
		packed := make([]byte, (int(codeLen)+7)/8)
		if _, err := io.ReadFull(r, packed); err != nil {
			return fmt.Errorf("read code of entry %d: %w", i, err)
		}
		code, err := huffman.ParseCode(packed, int(codeLen))
		if err != nil {
			return fmt.Errorf("code of entry %d: %w", i, err)
		}
		table[token] = code
	}
	if r.Len() != 0 {
		return fmt.Errorf("encoder_table trailing bytes: %d", r.Len())
	}
	if err := table.Validate(); err != nil {
		return err
	}
	dst.Table = table
	return nil
}

func encodeLineBitsStage[T cmp.Ordered](d *Document[T]) ([]byte, error) {
	var buf bytes.Buffer
	header := binary.AppendUvarint(nil, uint64(len(d.Lines)))
	for _, line := range d.Lines {
		header = binary.AppendUvarint(header, uint64(line.BitLength))
	}
	buf.Write(header)

	w := bitio.NewWriter(&buf)
	for _, line := range d.Lines {
		full := line.BitLength / 8
		for _, b := range line.Packed[:full] {
			w.TryWriteByte(b)
		}
		if rem := uint8(line.BitLength % 8); rem > 0 {
			w.TryWriteBits(uint64(line.Packed[full]>>(8-rem)), rem)
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	if w.TryError != nil {
		return nil, w.TryError
	}
	if buf.Len() > maxStagePayloadBytes {
		return nil, fmt.Errorf("line_bits payload too large: %d", buf.Len())
	}
	return buf.Bytes(), nil
}

func decodeLineBitsStage[T cmp.Ordered](dst *Document[T], payload []byte) error {
	r := bytes.NewReader(payload)
	count, err := binary.ReadUvarint(r)
	if err != nil {
		return fmt.Errorf("read line count: %w", err)
	}
	if count > uint64(len(payload)) {
		return fmt.Errorf("invalid line count: %d", count)
	}

	lengths := make([]int, int(count))
	var totalBits uint64
	for i := range lengths {
		n, err := binary.ReadUvarint(r)
		if err != nil {
			return fmt.Errorf("read bit length of line %d: %w", i, err)
		}
		totalBits += n
		if n > uint64(len(payload))*8 || totalBits > uint64(len(payload))*8 {
			return fmt.Errorf("bit length of line %d out of range: %d", i, n)
		}
		lengths[i] = int(n)
	}
	if want := (totalBits + 7) / 8; uint64(r.Len()) != want {
		return fmt.Errorf("line_bits stream holds %d bytes, want %d", r.Len(), want)
	}

	br := bitio.NewReader(r)
	lines := make([]huffman.BitString, len(lengths))
	for i, n := range lengths {
		packed := make([]byte, (n+7)/8)
		full := n / 8
		for j := 0; j < full; j++ {
			packed[j] = br.TryReadByte()
		}
		if rem := uint8(n % 8); rem > 0 {
			packed[full] = byte(br.TryReadBits(rem)) << (8 - rem)
		}
		lines[i] = huffman.BitString{Packed: packed, BitLength: n}
	}
	if pad := uint8((8 - totalBits%8) % 8); pad > 0 {
		if br.TryReadBits(pad) != 0 && br.TryError == nil {
			return fmt.Errorf("line_bits stream has nonzero padding")
		}
	}
	if br.TryError != nil {
		return fmt.Errorf("read line_bits stream: %w", br.TryError)
	}
	dst.Lines = lines
	return nil
}

func encodeFlatePayload(raw []byte, level int) ([]byte, error) {
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, level)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(raw); err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeFlatePayload(payload []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(payload))
	defer r.Close()

	limited := io.LimitReader(r, maxStagePayloadBytes+1)
	raw, err := io.ReadAll(limited)
	if err != nil {
		return nil, err
	}
	if len(raw) > maxStagePayloadBytes {
		return nil, fmt.Errorf("flate payload expands beyond limit")
	}
	return raw, nil
}

// smallestEncoding returns raw or its deflated form, whichever is smaller, with the matching param.
func smallestEncoding(raw []byte, level int) ([]byte, uint8, error) {
	if level == flate.NoCompression {
		return raw, stageParamRaw, nil
	}
	deflated, err := encodeFlatePayload(raw, level)
	if err != nil {
		return nil, 0, err
	}
	if len(deflated) < len(raw) {
		return deflated, stageParamFlate, nil
	}
	return raw, stageParamRaw, nil
}

func unwrapStagePayload(name string, params []byte, payload []byte) ([]byte, error) {
	if len(params) != 1 {
		return nil, fmt.Errorf("stage %q: expected 1 param byte, got %d", name, len(params))
	}
	switch params[0] {
	case stageParamRaw:
		return payload, nil
	case stageParamFlate:
		return decodeFlatePayload(payload)
	default:
		return nil, fmt.Errorf("stage %q: unsupported encoding param %d", name, params[0])
	}
}

func hashStage(d *xxhash.Digest, name string, params, payload []byte) {
	_, _ = d.WriteString(name)
	_, _ = d.Write(params)
	_, _ = d.Write(payload)
}

// WriteTo serializes the document to w.
func (d *Document[T]) WriteTo(w io.Writer) (int64, error) {
	return d.writeTo(w, Config{})
}

func (d *Document[T]) writeTo(w io.Writer, cfg Config) (int64, error) {
	if err := validateDocument(d); err != nil {
		return 0, fmt.Errorf("invalid document: %w", err)
	}
	level := resolveCompressionLevel(cfg)

	tableRaw, err := encodeEncoderTableStage(d)
	if err != nil {
		return 0, err
	}
	tablePayload, tableParam, err := smallestEncoding(tableRaw, level)
	if err != nil {
		return 0, err
	}
	linesRaw, err := encodeLineBitsStage(d)
	if err != nil {
		return 0, err
	}
	linesPayload, linesParam, err := smallestEncoding(linesRaw, level)
	if err != nil {
		return 0, err
	}

	stages := []struct {
		name    string
		params  []byte
		payload []byte
	}{
		{
			name:    stageAlphabet,
			params:  nil,
			payload: encodeAlphabetStage(d),
		},
		{
			name:    stageEncoderTable,
			params:  []byte{tableParam},
			payload: tablePayload,
		},
		{
			name:    stageLineBits,
			params:  []byte{linesParam},
			payload: linesPayload,
		},
	}

	digest := xxhash.New()
	for _, stage := range stages {
		hashStage(digest, stage.name, stage.params, stage.payload)
	}
	sum := binary.LittleEndian.AppendUint64(nil, digest.Sum64())

	var total int64
	n, err := writeBytes(w, []byte(archiveMagic))
	total += n
	if err != nil {
		return total, err
	}

	var header [4]byte
	binary.LittleEndian.PutUint16(header[0:2], archiveVersion)
	binary.LittleEndian.PutUint16(header[2:4], uint16(len(stages)+1))
	n, err = writeBytes(w, header[:])
	total += n
	if err != nil {
		return total, err
	}

	for _, stage := range stages {
		n, err := writeStage(w, stage.name, stage.params, stage.payload)
		total += n
		if err != nil {
			return total, err
		}
	}
	n, err = writeStage(w, stageChecksum, nil, sum)
	total += n
	if err != nil {
		return total, err
	}

	log.Debugf("wrote blob: %d bytes, table %d bytes (param %d), lines %d bytes (param %d)",
		total, len(tablePayload), tableParam, len(linesPayload), linesParam)
	return total, nil
}

// ReadFrom deserializes a document from r.  d.Alphabet must be set and must match the
// alphabet the blob was written with.  Every failure wraps ErrSerialization.
func (d *Document[T]) ReadFrom(r io.Reader) (int64, error) {
	n, err := d.readFrom(r)
	if err != nil {
		return n, fmt.Errorf("%w: %w", ErrSerialization, err)
	}
	return n, nil
}

func (d *Document[T]) readFrom(r io.Reader) (int64, error) {
	if d.Alphabet == nil {
		return 0, fmt.Errorf("document has no alphabet")
	}

	var total int64
	var magic [4]byte
	magicOffset := total
	n, err := io.ReadFull(r, magic[:])
	total += int64(n)
	if err != nil {
		return total, fmt.Errorf("read archive magic at offset %d: %w", magicOffset, err)
	}
	if string(magic[:]) != archiveMagic {
		return total, fmt.Errorf("invalid archive magic at offset %d: %q", magicOffset, string(magic[:]))
	}

	var header [4]byte
	headerOffset := total
	n, err = io.ReadFull(r, header[:])
	total += int64(n)
	if err != nil {
		return total, fmt.Errorf("read archive header at offset %d: %w", headerOffset, err)
	}
	if version := binary.LittleEndian.Uint16(header[0:2]); version != archiveVersion {
		return total, fmt.Errorf("unsupported archive version at offset %d: %d", headerOffset, version)
	}
	stageCount := binary.LittleEndian.Uint16(header[2:4])
	if stageCount == 0 || stageCount > maxArchiveStages {
		return total, fmt.Errorf("invalid stage count at offset %d: %d", headerOffset+2, stageCount)
	}

	tmp := Document[T]{Alphabet: d.Alphabet}
	seenStages := make(map[string]bool, stageCount)
	digest := xxhash.New()

	for i := 0; i < int(stageCount); i++ {
		headerOffset := total
		header, n, err := readStageHeader(r)
		total += n
		if err != nil {
			return total, fmt.Errorf("read stage header at offset %d (stage index %d): %w", headerOffset, i, err)
		}
		if seenStages[header.name] {
			return total, fmt.Errorf("duplicate stage %q at stage index %d", header.name, i)
		}

		params := make([]byte, int(header.paramLen))
		paramsOffset := total
		nParams, err := io.ReadFull(r, params)
		total += int64(nParams)
		if err != nil {
			return total, fmt.Errorf("read stage %q params at offset %d (stage index %d): %w", header.name, paramsOffset, i, err)
		}

		switch header.name {
		case stageAlphabet, stageEncoderTable, stageLineBits, stageChecksum:
			payload := make([]byte, int(header.dataLen))
			payloadOffset := total
			nPayload, err := io.ReadFull(r, payload)
			total += int64(nPayload)
			if err != nil {
				return total, fmt.Errorf("read stage %q payload at offset %d (stage index %d): %w", header.name, payloadOffset, i, err)
			}

			if header.name == stageChecksum {
				if i != int(stageCount)-1 {
					return total, fmt.Errorf("checksum stage at index %d is not last", i)
				}
				if len(payload) != checksumLen {
					return total, fmt.Errorf("checksum payload has %d bytes, want %d", len(payload), checksumLen)
				}
				if got, want := binary.LittleEndian.Uint64(payload), digest.Sum64(); got != want {
					return total, fmt.Errorf("checksum mismatch: blob says %016x, content hashes to %016x", got, want)
				}
				seenStages[header.name] = true
				continue
			}
			hashStage(digest, header.name, params, payload)

			var decodeErr error
			switch header.name {
			case stageAlphabet:
				decodeErr = decodeAlphabetStage(&tmp, payload)
			case stageEncoderTable:
				var raw []byte
				if raw, decodeErr = unwrapStagePayload(header.name, params, payload); decodeErr == nil {
					decodeErr = decodeEncoderTableStage(&tmp, raw)
				}
			case stageLineBits:
				var raw []byte
				if raw, decodeErr = unwrapStagePayload(header.name, params, payload); decodeErr == nil {
					decodeErr = decodeLineBitsStage(&tmp, raw)
				}
			}
			if decodeErr != nil {
				return total, fmt.Errorf("decode stage %q at offset %d (stage index %d): %w", header.name, payloadOffset, i, decodeErr)
			}
			seenStages[header.name] = true

		default:
			_, _ = digest.WriteString(header.name)
			_, _ = digest.Write(params)
			skipOffset := total
			skipped, err := io.CopyN(digest, r, int64(header.dataLen))
			total += skipped
			if err != nil {
				return total, fmt.Errorf("skip unknown stage %q at offset %d (stage index %d): %w", header.name, skipOffset, i, err)
			}
		}
	}

	requiredStages := []string{
		stageAlphabet,
		stageEncoderTable,
		stageLineBits,
		stageChecksum,
	}
	for _, stageName := range requiredStages {
		if !seenStages[stageName] {
			return total, fmt.Errorf("missing required stage %q", stageName)
		}
	}
	if err := validateDocument(&tmp); err != nil {
		return total, fmt.Errorf("invalid document structure: %w", err)
	}

	*d = tmp
	return total, nil
}
