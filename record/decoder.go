package record

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"

	"github.com/gabriel-vasile/mimetype"
	"github.com/klauspost/pgzip"
)

const gzipMimeType = "application/gzip"

var ErrLineTooLong = errors.New("record line exceeds maximum length")

// DecoderConfig controls how input files are decoded.
type DecoderConfig struct {
	// Longest accepted record line in bytes
	MaxLineBytes int
	// Number of leading bytes used to detect compression
	SniffBytes int
}

func DefaultDecoderConfig() DecoderConfig {
	return DecoderConfig{
		MaxLineBytes: 16 * 1024 * 1024,
		SniffBytes:   1024,
	}
}

// MalformedRecordError is returned for a line that is not a valid record. The decoder stays usable.
type MalformedRecordError struct {
	Path string
	Line int
	Err  error
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("malformed record at %s:%d: %s", e.Path, e.Line, e.Err)
}

func (e *MalformedRecordError) Unwrap() error {
	return e.Err
}

// Decoder reads JSON Lines records from one input file. Gzip compressed files are detected by content.
type Decoder struct {
	path     string
	negative bool

	file    fs.File
	gzip    *pgzip.Reader
	reader  *bufio.Reader
	maxLine int
	buf     []byte
	line    int
}

// Opens `path` inside `fsys` and prepares record decoding.
func OpenDecoder(fsys fs.FS, path string, negative bool, config DecoderConfig) (*Decoder, error) {
	file, err := fsys.Open(path)
	if err != nil {
		return nil, errors.Join(errors.New("failed to open input file"), err)
	}

	sniffBytes := config.SniffBytes
	if sniffBytes <= 0 {
		sniffBytes = DefaultDecoderConfig().SniffBytes
	}
	mimeBlock := make([]byte, sniffBytes)
	readed, err := io.ReadFull(file, mimeBlock)
	if err != nil && err != io.EOF && err != io.ErrUnexpectedEOF {
		file.Close()
		return nil, errors.Join(errors.New("failed to read input file to determine mime type"), err)
	}

	d := &Decoder{
		path:     path,
		negative: negative,
		file:     file,
	}

	var content io.Reader = io.MultiReader(bytes.NewReader(mimeBlock[:readed]), file)
	if mimetype.Detect(mimeBlock[:readed]).Is(gzipMimeType) {
		gz, err := pgzip.NewReader(content)
		if err != nil {
			file.Close()
			return nil, errors.Join(errors.New("failed to open gzip stream of input file"), err)
		}
		d.gzip = gz
		content = gz
	}

	maxLine := config.MaxLineBytes
	if maxLine <= 0 {
		maxLine = DefaultDecoderConfig().MaxLineBytes
	}
	d.reader = bufio.NewReaderSize(content, 64*1024)
	d.maxLine = maxLine

	return d, nil
}

func (d *Decoder) Path() string {
	return d.path
}

// Next decodes the following record. Returns [io.EOF] at the end of the file and
// [*MalformedRecordError] for a line that can not be decoded or is longer than the configured maximum.
func (d *Decoder) Next() (*Record, error) {
	for {
		raw, tooLong, err := d.readLine()
		if err == io.EOF {
			return nil, io.EOF
		}
		if err != nil {
			return nil, errors.Join(fmt.Errorf("failed to read input file %s", d.path), err)
		}
		d.line++

		if tooLong {
			return nil, &MalformedRecordError{Path: d.path, Line: d.line, Err: fmt.Errorf("%w: more than %d bytes", ErrLineTooLong, d.maxLine)}
		}
		line := bytes.TrimSpace(raw)
		if len(line) == 0 {
			continue
		}

		var rec Record
		if err := json.Unmarshal(line, &rec); err != nil {
			return nil, &MalformedRecordError{Path: d.path, Line: d.line, Err: err}
		}
		rec.Negative = d.negative
		rec.Source = d.path
		rec.Line = d.line
		rec.Raw = append(json.RawMessage(nil), line...)
		return &rec, nil
	}
}

// Reads one line into the reused buffer. An oversized line is consumed up to its end and reported as too long.
func (d *Decoder) readLine() ([]byte, bool, error) {
	d.buf = d.buf[:0]
	tooLong := false
	read := 0
	for {
		chunk, err := d.reader.ReadSlice('\n')
		read += len(chunk)

		content := len(chunk)
		if content > 0 && chunk[content-1] == '\n' {
			content--
		}
		if !tooLong && len(d.buf)+content > d.maxLine {
			tooLong = true
			d.buf = d.buf[:0]
		}
		if !tooLong {
			d.buf = append(d.buf, chunk...)
		}

		switch {
		case err == bufio.ErrBufferFull:
			continue
		case err == io.EOF:
			if read == 0 {
				return nil, false, io.EOF
			}
			return d.buf, tooLong, nil
		case err != nil:
			return nil, false, err
		}
		return d.buf, tooLong, nil
	}
}

func (d *Decoder) Close() error {
	var gzErr error
	if d.gzip != nil {
		gzErr = d.gzip.Close()
	}
	return errors.Join(gzErr, d.file.Close())
}
