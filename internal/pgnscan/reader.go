// Package pgnscan provides line-oriented scanning over compressed
// PGN streams: incremental zstd decode, header-tag scanning, and
// movetext skipping. All consumers share one cursor; every operation
// leaves it at a game boundary (past a trailing blank line) so the
// cheap-skip and deep-parse paths stay interchangeable.
package pgnscan

import (
	"bufio"
	"io"

	"github.com/klauspost/compress/zstd"
)

const readerBufSize = 64 * 1024

// LineReader reads one line at a time from a byte stream. Lines are
// returned without their terminator; io.EOF signals end of stream.
type LineReader struct {
	br  *bufio.Reader
	dec *zstd.Decoder
}

// NewLineReader wraps an already-decoded byte stream.
func NewLineReader(r io.Reader) *LineReader {
	return &LineReader{br: bufio.NewReaderSize(r, readerBufSize)}
}

// NewZstdLineReader wraps a zstd-compressed byte stream with an
// incremental decoder. The first line is available without decoding
// the rest of the stream; a corrupt frame surfaces as a read error.
func NewZstdLineReader(r io.Reader) (*LineReader, error) {
	dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
	if err != nil {
		return nil, err
	}
	return &LineReader{br: bufio.NewReaderSize(dec, readerBufSize), dec: dec}, nil
}

// ReadLine returns the next line without its terminator. A final
// line missing its newline is still returned; the following call
// reports io.EOF.
func (lr *LineReader) ReadLine() (string, error) {
	line, err := lr.br.ReadString('\n')
	if err != nil {
		if err == io.EOF && line != "" {
			return trimEOL(line), nil
		}
		return "", err
	}
	return trimEOL(line), nil
}

// Close releases the decoder, if any.
func (lr *LineReader) Close() {
	if lr.dec != nil {
		lr.dec.Close()
	}
}

func trimEOL(line string) string {
	for len(line) > 0 && (line[len(line)-1] == '\n' || line[len(line)-1] == '\r') {
		line = line[:len(line)-1]
	}
	return line
}
