package writer

import (
	"log/slog"
	"os"
)

type WriterOption func(w *Writer)

func WithNameGenerator(names NameGenerator) WriterOption {
	return func(w *Writer) {
		w.names = names
	}
}

// Extension appended to generated names, including the dot. Defaults to the serializer extension.
func WithExtension(extension string) WriterOption {
	return func(w *Writer) {
		w.extension = extension
	}
}

func WithBufferSize(size int) WriterOption {
	return func(w *Writer) {
		if size > 0 {
			w.bufferSize = size
		}
	}
}

// Whether every commit fsyncs the output file before saving the checkpoint. Enabled by default.
func WithSync(sync bool) WriterOption {
	return func(w *Writer) {
		w.sync = sync
	}
}

func WithFileMode(perm os.FileMode) WriterOption {
	return func(w *Writer) {
		w.perm = perm
	}
}

func WithLogger(logger *slog.Logger) WriterOption {
	return func(w *Writer) {
		w.logger = logger
	}
}
