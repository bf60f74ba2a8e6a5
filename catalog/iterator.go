package catalog

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/opengs/speciesexport/checkpoint"
)

// Stats are counters of recoverable problems met while iterating.
type Stats struct {
	IndexFiles        int
	MalformedLines    int
	UnitsWithoutFiles int
}

type indexLine struct {
	fileInfo string
	taxID    int64
	count    int64
}

// Iterator yields species units of all index files in order. Not safe for concurrent use.
type Iterator struct {
	catalog *Catalog
	files   []string

	fileIdx  int
	skipLine int

	species string
	lines   []indexLine
	total   int64
	lineIdx int
	loaded  bool

	stats Stats
}

// Next returns the next unit or [io.EOF] when every index file was consumed.
func (it *Iterator) Next(ctx context.Context) (*SpeciesUnit, error) {
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if !it.loaded {
			if it.fileIdx >= len(it.files) {
				return nil, io.EOF
			}
			if err := it.load(ctx); err != nil {
				return nil, err
			}
		}

		if it.lineIdx >= len(it.lines) {
			it.fileIdx++
			it.loaded = false
			continue
		}

		line := it.lines[it.lineIdx]
		unit := &SpeciesUnit{
			Species:      it.species,
			TaxID:        line.taxID,
			RecordCount:  line.count,
			FileInfo:     line.fileInfo,
			IndexFile:    it.fileIdx,
			Line:         it.lineIdx,
			SpeciesTotal: it.total,
			SpeciesLines: len(it.lines),
		}
		it.lineIdx++

		unit.PositiveFiles, unit.NegativeFiles = it.catalog.resolveFiles(ctx, line.fileInfo)
		if !unit.HasFiles() {
			it.stats.UnitsWithoutFiles++
			it.catalog.logger.WarnContext(ctx, "no input files found for unit", "species", unit.Species, "fileInfo", unit.FileInfo, "taxid", unit.TaxID)
		}
		return unit, nil
	}
}

// Stats returns counters collected so far.
func (it *Iterator) Stats() Stats {
	return it.stats
}

// Reads the whole index file at fileIdx. Totals of a species need every line before the first unit is emitted.
func (it *Iterator) load(ctx context.Context) error {
	name := it.files[it.fileIdx]

	file, err := it.catalog.speciesFS.Open(name)
	if err != nil {
		return errors.Join(fmt.Errorf("failed to open index file %s", path.Join(it.catalog.speciesFolder, name)), err)
	}
	defer file.Close()

	it.species = SpeciesName(name)
	it.lines = it.lines[:0]
	it.total = 0
	it.lineIdx = 0

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	physical := 0
	for scanner.Scan() {
		physical++
		text := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			continue
		}

		line, err := it.catalog.parseLine(text)
		if err != nil {
			it.stats.MalformedLines++
			malformed := &MalformedLineError{File: name, Line: physical, Text: text, Err: err}
			it.catalog.logger.WarnContext(ctx, "skipping malformed index line", "file", name, "line", physical, "error", malformed)
			continue
		}
		it.lines = append(it.lines, line)
		it.total += line.count
	}
	if err := scanner.Err(); err != nil {
		return errors.Join(fmt.Errorf("failed to read index file %s", path.Join(it.catalog.speciesFolder, name)), err)
	}

	if it.skipLine > 0 {
		if it.skipLine > len(it.lines) {
			return fmt.Errorf("%w: %d lines of %s processed but only %d valid lines exist", checkpoint.ErrRestartContextIncomplete, it.skipLine, name, len(it.lines))
		}
		it.lineIdx = it.skipLine
		it.skipLine = 0
	}

	it.stats.IndexFiles++
	it.loaded = true
	it.catalog.logger.DebugContext(ctx, "index file loaded", "file", name, "species", it.species, "lines", len(it.lines), "total", it.total)
	return nil
}

func (c *Catalog) parseLine(text string) (indexLine, error) {
	fields := strings.Split(text, c.separator)
	if len(fields) != 3 {
		return indexLine{}, fmt.Errorf("expected 3 fields separated by %q, got %d", c.separator, len(fields))
	}

	fileInfo := strings.TrimSpace(fields[0])
	if fileInfo == "" {
		return indexLine{}, errors.New("empty file info")
	}

	taxID, err := strconv.ParseInt(strings.TrimSpace(fields[1]), 10, 64)
	if err != nil {
		return indexLine{}, errors.Join(errors.New("bad taxid"), err)
	}

	count, err := strconv.ParseInt(strings.TrimSpace(fields[2]), 10, 64)
	if err != nil {
		return indexLine{}, errors.Join(errors.New("bad record count"), err)
	}
	if count < 0 {
		return indexLine{}, fmt.Errorf("negative record count %d", count)
	}

	return indexLine{fileInfo: fileInfo, taxID: taxID, count: count}, nil
}
