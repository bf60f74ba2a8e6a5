package record

import (
	"context"
	"errors"
	"io"
	"io/fs"
	"log/slog"
)

// FilterIterator walks input files in order and yields the records that involve one organism.
// Files are opened lazily, one at a time, and never reopened once the iterator moved past them.
type FilterIterator struct {
	fsys     fs.FS
	files    []string
	negative bool
	taxID    int64
	config   DecoderConfig
	logger   *slog.Logger

	nextFile  int
	current   *Decoder
	peeked    *Record
	exhausted bool
	malformed int
}

type FilterOption func(i *FilterIterator)

func WithLogger(logger *slog.Logger) FilterOption {
	return func(i *FilterIterator) {
		i.logger = logger
	}
}

func WithDecoderConfig(config DecoderConfig) FilterOption {
	return func(i *FilterIterator) {
		i.config = config
	}
}

func NewFilterIterator(fsys fs.FS, files []string, negative bool, taxID int64, options ...FilterOption) *FilterIterator {
	it := &FilterIterator{
		fsys:     fsys,
		files:    files,
		negative: negative,
		taxID:    taxID,
		config:   DefaultDecoderConfig(),
		logger:   slog.New(slog.DiscardHandler),
	}
	for _, option := range options {
		option(it)
	}
	return it
}

func (i *FilterIterator) HasNext(ctx context.Context) (bool, error) {
	if i.peeked != nil {
		return true, nil
	}

	for !i.exhausted {
		if i.current == nil {
			if i.nextFile >= len(i.files) {
				i.exhausted = true
				break
			}
			if err := ctx.Err(); err != nil {
				return false, err
			}

			decoder, err := OpenDecoder(i.fsys, i.files[i.nextFile], i.negative, i.config)
			i.nextFile++
			if err != nil {
				return false, err
			}
			i.current = decoder
		}

		rec, err := i.current.Next()
		if err != nil {
			if err == io.EOF {
				if closeErr := i.closeCurrent(); closeErr != nil {
					return false, closeErr
				}
				continue
			}

			var malformedErr *MalformedRecordError
			if errors.As(err, &malformedErr) {
				i.malformed++
				i.logger.WarnContext(ctx, "skipping malformed record", "path", malformedErr.Path, "line", malformedErr.Line, "error", malformedErr.Err)
				continue
			}

			return false, err
		}

		if rec.HasOrganism(i.taxID) {
			i.peeked = rec
			return true, nil
		}
	}

	return false, nil
}

func (i *FilterIterator) Next(ctx context.Context) (*Record, error) {
	ok, err := i.HasNext(ctx)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, io.EOF
	}

	rec := i.peeked
	i.peeked = nil
	return rec, nil
}

// Number of undecodable lines skipped so far
func (i *FilterIterator) Malformed() int {
	return i.malformed
}

// Close releases the currently open input file. Safe to call several times.
func (i *FilterIterator) Close() error {
	i.exhausted = true
	i.peeked = nil
	return i.closeCurrent()
}

func (i *FilterIterator) closeCurrent() error {
	if i.current == nil {
		return nil
	}
	err := i.current.Close()
	i.current = nil
	if err != nil {
		return errors.Join(errors.New("failed to close input file"), err)
	}
	return nil
}
