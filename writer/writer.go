package writer

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/opengs/speciesexport/checkpoint"
	"github.com/opengs/speciesexport/record"
	"github.com/opengs/speciesexport/sequence"
	"github.com/opengs/speciesexport/serializer"
)

type State int

const (
	Closed State = iota
	OpenPositive
	OpenNegative
	// Everything written so far reached the file and the checkpoint
	Flushed
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case OpenPositive:
		return "open_positive"
	case OpenNegative:
		return "open_negative"
	case Flushed:
		return "flushed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

// Target identifies one output file.
type Target struct {
	Species  string
	ChunkID  int
	Negative bool
}

// Progress is the reader side of the checkpoint supplied by the caller at every commit.
type Progress struct {
	NumberFiles int
	SpeciesLine int
	RecordsRead int64
}

// Writer owns the currently open output file. Every commit flushes buffered records and persists a checkpoint
// that points at the flushed end of the file, so a resumed run can cut the file back to it.
type Writer struct {
	dir        string
	serializer serializer.Serializer
	store      checkpoint.Store
	ids        *sequence.Allocator

	names      NameGenerator
	extension  string
	bufferSize int
	sync       bool
	perm       os.FileMode
	logger     *slog.Logger

	state       State
	target      Target
	path        string
	file        *os.File
	buf         *bufio.Writer
	fileRecords int64
}

func New(dir string, ser serializer.Serializer, store checkpoint.Store, ids *sequence.Allocator, options ...WriterOption) *Writer {
	w := &Writer{
		dir:        dir,
		serializer: ser,
		store:      store,
		ids:        ids,
		names:      SpeciesNamer{NegativeTag: "_negative"},
		extension:  ser.Extension(),
		bufferSize: 64 * 1024,
		sync:       true,
		perm:       0o644,
		logger:     slog.New(slog.DiscardHandler),
	}
	for _, option := range options {
		option(w)
	}
	return w
}

func (w *Writer) State() State {
	return w.state
}

// Path of the open output file. Empty when closed.
func (w *Writer) Path() string {
	return w.path
}

// Records in the open output file, including ones written before a resume.
func (w *Writer) FileRecords() int64 {
	return w.fileRecords
}

// PathFor returns the output path of `target`.
func (w *Writer) PathFor(target Target) string {
	return filepath.Join(w.dir, w.names.Name(target.Species, target.ChunkID, target.Negative)+w.extension)
}

func openState(negative bool) State {
	if negative {
		return OpenNegative
	}
	return OpenPositive
}

// Open creates the output file of `target`, replacing a file left by an earlier run, and writes the serializer header.
func (w *Writer) Open(ctx context.Context, target Target) error {
	if w.state != Closed {
		return fmt.Errorf("%w: open while %s", ErrInvalidState, w.state)
	}

	path := w.PathFor(target)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return errors.Join(errors.New("failed to create output directory"), err)
	}

	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC|os.O_APPEND, w.perm)
	if err != nil {
		return errors.Join(fmt.Errorf("failed to create output file %s", path), err)
	}

	w.attach(target, path, file, 0)
	if err := w.serializer.Begin(w.buf); err != nil {
		w.Close()
		return errors.Join(fmt.Errorf("failed to write header of %s", path), err)
	}

	w.logger.DebugContext(ctx, "output file opened", "path", path, "species", target.Species, "chunkId", target.ChunkID, "negative", target.Negative)
	return nil
}

// Resume reopens the output file of `target` and cuts it back to the committed `offset`.
// A file shorter than `offset` fails with [*CorruptOutputFileError] and is left untouched.
func (w *Writer) Resume(ctx context.Context, target Target, offset int64, fileRecords int64) error {
	if w.state != Closed {
		return fmt.Errorf("%w: resume while %s", ErrInvalidState, w.state)
	}

	path := w.PathFor(target)

	var size int64
	info, err := os.Stat(path)
	switch {
	case err == nil:
		size = info.Size()
	case errors.Is(err, fs.ErrNotExist):
		size = 0
	default:
		return errors.Join(fmt.Errorf("failed to stat output file %s", path), err)
	}
	if size < offset {
		return &CorruptOutputFileError{Path: path, Size: size, Offset: offset}
	}

	file, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_APPEND, w.perm)
	if err != nil {
		return errors.Join(fmt.Errorf("failed to reopen output file %s", path), err)
	}
	if err := file.Truncate(offset); err != nil {
		file.Close()
		return errors.Join(fmt.Errorf("failed to truncate output file %s", path), err)
	}
	if _, err := file.Seek(offset, io.SeekStart); err != nil {
		file.Close()
		return errors.Join(fmt.Errorf("failed to seek output file %s", path), err)
	}

	w.attach(target, path, file, fileRecords)
	w.logger.InfoContext(ctx, "output file resumed", "path", path, "offset", offset, "droppedBytes", size-offset, "fileRecords", fileRecords)
	return nil
}

func (w *Writer) attach(target Target, path string, file *os.File, fileRecords int64) {
	w.target = target
	w.path = path
	w.file = file
	w.buf = bufio.NewWriterSize(file, w.bufferSize)
	w.fileRecords = fileRecords
	w.state = openState(target.Negative)
}

// Write serializes one record into the buffered output.
func (w *Writer) Write(ctx context.Context, rec *record.Record) error {
	switch w.state {
	case OpenPositive, OpenNegative:
	case Flushed:
		w.state = openState(w.target.Negative)
	default:
		return fmt.Errorf("%w: write while %s", ErrInvalidState, w.state)
	}

	if err := w.serializer.Write(w.buf, rec, w.ids); err != nil {
		return errors.Join(fmt.Errorf("failed to write record %s:%d to %s", rec.Source, rec.Line, w.path), err)
	}
	w.fileRecords++
	return nil
}

// Commit flushes the buffered output and saves a checkpoint pointing at the flushed end of the file.
func (w *Writer) Commit(ctx context.Context, progress Progress) error {
	if w.state == Closed {
		return fmt.Errorf("%w: commit while %s", ErrInvalidState, w.state)
	}

	if err := w.buf.Flush(); err != nil {
		return errors.Join(fmt.Errorf("failed to flush output file %s", w.path), err)
	}
	if w.sync {
		if err := w.file.Sync(); err != nil {
			return errors.Join(fmt.Errorf("failed to sync output file %s", w.path), err)
		}
	}
	offset, err := w.file.Seek(0, io.SeekCurrent)
	if err != nil {
		return errors.Join(fmt.Errorf("failed to read offset of output file %s", w.path), err)
	}

	c := checkpoint.Checkpoint{
		NumberFiles:     progress.NumberFiles,
		SpeciesLine:     progress.SpeciesLine,
		IsNegative:      w.target.Negative,
		ChunkID:         w.target.ChunkID,
		CurrentSpecies:  w.target.Species,
		CurrentPosition: offset,
		SequenceID:      w.ids.Last(),
		RecordsRead:     progress.RecordsRead,
		FileRecords:     w.fileRecords,
	}
	if err := checkpoint.Save(ctx, w.store, c); err != nil {
		return err
	}

	w.state = Flushed
	w.logger.DebugContext(ctx, "checkpoint committed", "path", w.path, "offset", offset, "sequenceId", c.SequenceID, "fileRecords", w.fileRecords)
	return nil
}

// End writes the serializer footer and closes the file. The file is closed even when the footer fails.
func (w *Writer) End(ctx context.Context) error {
	if w.state == Closed {
		return fmt.Errorf("%w: end while %s", ErrInvalidState, w.state)
	}

	footerErr := w.serializer.End(w.buf)
	if footerErr != nil {
		footerErr = errors.Join(fmt.Errorf("failed to write footer of %s", w.path), footerErr)
	}
	path, records := w.path, w.fileRecords
	if err := errors.Join(footerErr, w.Close()); err != nil {
		return err
	}

	w.logger.InfoContext(ctx, "output file finished", "path", path, "records", records)
	return nil
}

// Close flushes and closes the open file without footer. Safe to call in any state.
func (w *Writer) Close() error {
	if w.state == Closed {
		return nil
	}

	var flushErr error
	if err := w.buf.Flush(); err != nil {
		flushErr = errors.Join(fmt.Errorf("failed to flush output file %s", w.path), err)
	}
	var closeErr error
	if err := w.file.Close(); err != nil {
		closeErr = errors.Join(fmt.Errorf("failed to close output file %s", w.path), err)
	}

	w.state = Closed
	w.file = nil
	w.buf = nil
	w.path = ""
	w.fileRecords = 0
	return errors.Join(flushErr, closeErr)
}
