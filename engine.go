package speciesexport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"time"

	"github.com/opengs/speciesexport/catalog"
	"github.com/opengs/speciesexport/checkpoint"
	"github.com/opengs/speciesexport/chunker"
	"github.com/opengs/speciesexport/metrics"
	"github.com/opengs/speciesexport/record"
	"github.com/opengs/speciesexport/sequence"
	"github.com/opengs/speciesexport/serializer"
	"github.com/opengs/speciesexport/writer"
)

// Summary of one export run. MalformedRecords counts undecodable lines met after the restart point,
// lines replayed up to the checkpoint are not counted again.
type Summary struct {
	Resumed           bool
	MalformedLines    int
	UnitsWithoutFiles int
	MalformedRecords  int
	RecordsWritten    int64
	FilesWritten      int
	LastSequenceID    int64
}

func (s Summary) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Bool("resumed", s.Resumed),
		slog.Int("malformedLines", s.MalformedLines),
		slog.Int("unitsWithoutFiles", s.UnitsWithoutFiles),
		slog.Int("malformedRecords", s.MalformedRecords),
		slog.Int64("recordsWritten", s.RecordsWritten),
		slog.Int("filesWritten", s.FilesWritten),
		slog.Int64("lastSequenceId", s.LastSequenceID),
	)
}

// Engine exports species chunks into output files and keeps the checkpoint store in step with the flushed output.
type Engine struct {
	config Config
	store  checkpoint.Store

	speciesFS  fs.FS
	pmidFS     fs.FS
	serializer serializer.Serializer
	names      writer.NameGenerator
	metrics    *metrics.Metrics
	logger     *slog.Logger
}

type EngineOption func(e *Engine)

// Read index and record files from the given filesystems instead of the configured folders.
func WithInputFS(speciesFS fs.FS, pmidFS fs.FS) EngineOption {
	return func(e *Engine) {
		e.speciesFS = speciesFS
		e.pmidFS = pmidFS
	}
}

func WithSerializer(s serializer.Serializer) EngineOption {
	return func(e *Engine) {
		e.serializer = s
	}
}

func WithNameGenerator(names writer.NameGenerator) EngineOption {
	return func(e *Engine) {
		e.names = names
	}
}

func WithMetrics(m *metrics.Metrics) EngineOption {
	return func(e *Engine) {
		e.metrics = m
	}
}

func WithLogger(logger *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.logger = logger
	}
}

func NewEngine(config Config, store checkpoint.Store, options ...EngineOption) (*Engine, error) {
	if err := config.Validate(); err != nil {
		return nil, errors.Join(errors.New("invalid export configuration"), err)
	}

	e := &Engine{
		config: config,
		store:  store,
		logger: slog.New(slog.DiscardHandler),
	}
	for _, option := range options {
		option(e)
	}

	if e.speciesFS == nil {
		e.speciesFS = os.DirFS(config.SpeciesFolder)
	}
	if e.pmidFS == nil {
		e.pmidFS = os.DirFS(config.PmidFolder)
	}
	if e.serializer == nil {
		s, err := serializer.New(config.Format)
		if err != nil {
			return nil, err
		}
		e.serializer = s
	}
	if e.names == nil {
		e.names = writer.SpeciesNamer{NegativeTag: config.NegativeTag}
	}

	return e, nil
}

// Run exports everything the catalog lists, resuming from the stored checkpoint when there is one.
// The checkpoint is cleared once the whole export finished. Metrics are reported for failed runs too.
func (e *Engine) Run(ctx context.Context) (summary Summary, err error) {
	started := time.Now()
	defer func() {
		e.metrics.Skipped(summary.MalformedLines, summary.UnitsWithoutFiles, summary.MalformedRecords)
		e.metrics.Finished(summary.Resumed, time.Since(started).Seconds())
	}()

	cp, resume, err := checkpoint.Load(ctx, e.store)
	if err != nil {
		return Summary{}, err
	}

	ids, err := sequence.New(cp.SequenceID)
	if err != nil {
		return Summary{}, errors.Join(errors.New("failed to restore sequence"), err)
	}

	cat := catalog.New(e.speciesFS, e.pmidFS,
		catalog.WithSeparator(e.config.Separator),
		catalog.WithNegativeTag(e.config.NegativeTag),
		catalog.WithExtension(e.config.InputExtension),
		catalog.WithFolderPaths(e.config.SpeciesFolder, e.config.PmidFolder),
		catalog.WithLogger(e.logger),
	)
	units, err := cat.Open(ctx, catalog.Position{NumberFiles: cp.NumberFiles, SpeciesLine: cp.SpeciesLine})
	if err != nil {
		return Summary{}, errors.Join(errors.New("failed to open species catalog"), err)
	}

	perm, err := ParseFileMode(e.config.FileMode)
	if err != nil {
		return Summary{}, err
	}
	writerOptions := []writer.WriterOption{
		writer.WithNameGenerator(e.names),
		writer.WithSync(e.config.Sync),
		writer.WithBufferSize(e.config.BufferSize),
		writer.WithFileMode(perm),
		writer.WithLogger(e.logger),
	}
	if e.config.OutputExtension != "" {
		writerOptions = append(writerOptions, writer.WithExtension(e.config.OutputExtension))
	}
	w := writer.New(e.config.OutputFolder, e.serializer, e.store, ids, writerOptions...)
	defer w.Close()

	run := &exportRun{
		engine:  e,
		writer:  w,
		ids:     ids,
		summary: Summary{Resumed: resume},
	}

	if resume {
		e.logger.InfoContext(ctx, "resuming export from checkpoint", "species", cp.CurrentSpecies, "chunkId", cp.ChunkID, "negative", cp.IsNegative, "offset", cp.CurrentPosition, "sequenceId", cp.SequenceID)
	} else {
		e.logger.InfoContext(ctx, "starting export", "speciesFolder", e.config.SpeciesFolder, "outputFolder", e.config.OutputFolder, "threshold", e.config.Threshold)
	}

	var pending *checkpoint.Checkpoint
	if resume {
		pending = &cp
	}

	assembler := chunker.NewAssembler(units, e.config.Threshold)
	for {
		chunk, err := assembler.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return run.finish(units), errors.Join(errors.New("failed to assemble next chunk"), err)
		}

		if pending != nil && chunk.Species != pending.CurrentSpecies {
			return run.finish(units), fmt.Errorf("%w: checkpoint species %q but catalog restarts at species %q", checkpoint.ErrRestartContextIncomplete, pending.CurrentSpecies, chunk.Species)
		}

		if err := run.exportChunk(ctx, chunk, pending); err != nil {
			return run.finish(units), errors.Join(fmt.Errorf("failed to export chunk %d of species %s", chunk.Seq, chunk.Species), err)
		}
		pending = nil
	}

	if pending != nil {
		return run.finish(units), fmt.Errorf("%w: checkpoint species %q is no longer listed by the catalog", checkpoint.ErrRestartContextIncomplete, pending.CurrentSpecies)
	}

	if err := e.store.Clear(ctx); err != nil {
		return run.finish(units), errors.Join(errors.New("failed to clear checkpoint after finished export"), err)
	}

	summary = run.finish(units)
	e.logger.InfoContext(ctx, "export finished", "summary", summary, "duration", time.Since(started))
	return summary, nil
}

type chunkKey struct {
	species   string
	indexFile int
}

// State of one Run call.
type exportRun struct {
	engine  *Engine
	writer  *writer.Writer
	ids     *sequence.Allocator
	summary Summary

	key     chunkKey
	counter int
}

func (r *exportRun) finish(units *catalog.Iterator) Summary {
	stats := units.Stats()
	r.summary.MalformedLines = stats.MalformedLines
	r.summary.UnitsWithoutFiles = stats.UnitsWithoutFiles
	r.summary.LastSequenceID = r.ids.Last()
	return r.summary
}

// A species held by one chunk names the first file of each phase without chunk id and numbers overflow files from 1.
// A species spread over several chunks numbers every file from one counter shared by all its chunks and phases.
func (r *exportRun) nextChunkID(chunk *chunker.Chunk, firstInPhase bool) int {
	if !chunk.Split && firstInPhase {
		r.counter = 0
		return 0
	}
	r.counter++
	return r.counter
}

func (r *exportRun) exportChunk(ctx context.Context, chunk *chunker.Chunk, resume *checkpoint.Checkpoint) error {
	key := chunkKey{species: chunk.Species, indexFile: chunk.Seed().IndexFile}
	if key != r.key {
		r.key = key
		r.counter = 0
	}
	if resume != nil {
		r.counter = resume.ChunkID
	}

	for _, negative := range []bool{false, true} {
		if resume != nil && resume.IsNegative && !negative {
			continue
		}

		var phaseResume *checkpoint.Checkpoint
		if resume != nil && resume.IsNegative == negative {
			phaseResume = resume
		}

		files := chunk.PositiveFiles()
		if negative {
			files = chunk.NegativeFiles()
		}
		if err := r.exportPhase(ctx, chunk, negative, files, phaseResume); err != nil {
			return err
		}
	}
	return nil
}

func (r *exportRun) exportPhase(ctx context.Context, chunk *chunker.Chunk, negative bool, files []string, resume *checkpoint.Checkpoint) error {
	e := r.engine
	seed := chunk.Seed()
	progress := writer.Progress{NumberFiles: seed.IndexFile, SpeciesLine: seed.Line}

	decoderConfig := record.DefaultDecoderConfig()
	decoderConfig.MaxLineBytes = e.config.MaxLineBytes
	filter := record.NewFilterIterator(e.pmidFS, files, negative, chunk.TaxID, record.WithLogger(e.logger), record.WithDecoderConfig(decoderConfig))
	replayed := 0
	defer func() {
		filter.Close()
		r.summary.MalformedRecords += filter.Malformed() - replayed
	}()

	var bounded *record.BoundedIterator
	if resume != nil {
		if err := record.Skip(ctx, filter, resume.RecordsRead); err != nil {
			return errors.Join(fmt.Errorf("failed to replay %d committed records of species %s", resume.RecordsRead, chunk.Species), err)
		}
		replayed = filter.Malformed()
		progress.RecordsRead = resume.RecordsRead

		target := writer.Target{Species: chunk.Species, ChunkID: resume.ChunkID, Negative: negative}
		if err := r.writer.Resume(ctx, target, resume.CurrentPosition, resume.FileRecords); err != nil {
			return err
		}
		e.metrics.FileOpened(negative)
		bounded = record.NewBoundedIterator(filter, e.config.Threshold, resume.FileRecords)
	} else {
		ok, err := filter.HasNext(ctx)
		if err != nil {
			return errors.Join(errors.New("failed to read input records"), err)
		}
		if !ok {
			return nil
		}

		if err := r.openFile(ctx, chunk, negative, true, progress); err != nil {
			return err
		}
		bounded = record.NewBoundedIterator(filter, e.config.Threshold, 0)
	}

	for {
		for {
			ok, err := bounded.HasNext(ctx)
			if err != nil {
				return errors.Join(errors.New("failed to read input records"), err)
			}
			if !ok {
				break
			}
			if err := ctx.Err(); err != nil {
				return err
			}

			rec, err := bounded.Next(ctx)
			if err != nil {
				return errors.Join(errors.New("failed to read input record"), err)
			}
			if err := r.writer.Write(ctx, rec); err != nil {
				return err
			}
			progress.RecordsRead++
			r.summary.RecordsWritten++
			e.metrics.RecordWritten(negative)

			if r.writer.FileRecords()%e.config.CommitInterval == 0 {
				if err := r.commit(ctx, progress); err != nil {
					return err
				}
			}
		}

		if err := r.commit(ctx, progress); err != nil {
			return err
		}

		more, err := bounded.HasNextChunk(ctx)
		if err != nil {
			return errors.Join(errors.New("failed to read input records"), err)
		}
		if err := r.writer.End(ctx); err != nil {
			return err
		}
		r.summary.FilesWritten++
		if !more {
			return nil
		}

		if err := r.openFile(ctx, chunk, negative, false, progress); err != nil {
			return err
		}
		bounded = record.NewBoundedIterator(filter, e.config.Threshold, 0)
	}
}

func (r *exportRun) openFile(ctx context.Context, chunk *chunker.Chunk, negative bool, firstInPhase bool, progress writer.Progress) error {
	target := writer.Target{
		Species:  chunk.Species,
		ChunkID:  r.nextChunkID(chunk, firstInPhase),
		Negative: negative,
	}
	if err := r.writer.Open(ctx, target); err != nil {
		return err
	}
	r.engine.metrics.FileOpened(negative)
	return r.commit(ctx, progress)
}

func (r *exportRun) commit(ctx context.Context, progress writer.Progress) error {
	if err := r.writer.Commit(ctx, progress); err != nil {
		return errors.Join(errors.New("failed to commit checkpoint"), err)
	}
	r.engine.metrics.Committed(r.ids.Last())
	return nil
}
