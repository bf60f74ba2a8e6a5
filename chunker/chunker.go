package chunker

import (
	"context"
	"errors"
	"io"

	"github.com/opengs/speciesexport/catalog"
)

// Chunk is a run of consecutive units of one species whose declared total fits the threshold.
// A chunk made of a single unit may exceed the threshold.
type Chunk struct {
	Units   []*catalog.SpeciesUnit
	Species string
	// Organism used to filter records of every unit in the chunk
	TaxID int64
	// Sum of declared record counts of the units
	Total int64
	// 1-based ordinal of the chunk within its species, counted from where iteration started
	Seq int
	// The chunk does not hold every unit of its index file, so the species spans several chunks
	Split bool
}

// Seed is the unit that started the chunk. Its position is where a restart resumes.
func (c *Chunk) Seed() *catalog.SpeciesUnit {
	return c.Units[0]
}

func (c *Chunk) PositiveFiles() []string {
	var files []string
	for _, unit := range c.Units {
		files = append(files, unit.PositiveFiles...)
	}
	return files
}

func (c *Chunk) NegativeFiles() []string {
	var files []string
	for _, unit := range c.Units {
		files = append(files, unit.NegativeFiles...)
	}
	return files
}

// UnitIterator is the source of species units, usually [catalog.Iterator].
type UnitIterator interface {
	// Returns next unit or [io.EOF]
	Next(ctx context.Context) (*catalog.SpeciesUnit, error)
}

// Assembler greedily merges consecutive units into chunks. It keeps one unit of look-ahead.
type Assembler struct {
	units     UnitIterator
	threshold int64

	lookahead *catalog.SpeciesUnit
	done      bool

	lastSpecies string
	lastFile    int
	seq         int
}

func NewAssembler(units UnitIterator, threshold int64) *Assembler {
	return &Assembler{
		units:     units,
		threshold: threshold,
		lastFile:  -1,
	}
}

// Next returns the next chunk or [io.EOF].
func (a *Assembler) Next(ctx context.Context) (*Chunk, error) {
	seed, err := a.pull(ctx)
	if err != nil {
		return nil, err
	}

	chunk := &Chunk{
		Units:   []*catalog.SpeciesUnit{seed},
		Species: seed.Species,
		TaxID:   seed.TaxID,
		Total:   seed.RecordCount,
	}

	for chunk.Total <= a.threshold {
		next, err := a.pull(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}

		if !sameGroup(seed, next) || chunk.Total+next.RecordCount > a.threshold {
			a.lookahead = next
			break
		}
		chunk.Units = append(chunk.Units, next)
		chunk.Total += next.RecordCount
	}

	if seed.Species != a.lastSpecies || seed.IndexFile != a.lastFile {
		a.lastSpecies = seed.Species
		a.lastFile = seed.IndexFile
		a.seq = 0
	}
	a.seq++
	chunk.Seq = a.seq
	chunk.Split = len(chunk.Units) < seed.SpeciesLines

	return chunk, nil
}

// Units merge only inside one index file and for one organism.
func sameGroup(seed *catalog.SpeciesUnit, next *catalog.SpeciesUnit) bool {
	return seed.Species == next.Species && seed.IndexFile == next.IndexFile && seed.TaxID == next.TaxID
}

func (a *Assembler) pull(ctx context.Context) (*catalog.SpeciesUnit, error) {
	if a.lookahead != nil {
		unit := a.lookahead
		a.lookahead = nil
		return unit, nil
	}
	if a.done {
		return nil, io.EOF
	}

	unit, err := a.units.Next(ctx)
	if err == io.EOF {
		a.done = true
		return nil, io.EOF
	}
	if err != nil {
		return nil, errors.Join(errors.New("failed to read next species unit"), err)
	}
	return unit, nil
}
