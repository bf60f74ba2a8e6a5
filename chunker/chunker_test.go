package chunker

import (
	"context"
	"errors"
	"io"
	"math/rand"
	"slices"
	"testing"
	"testing/fstest"

	"github.com/opengs/speciesexport/catalog"
)

type sliceUnits struct {
	units []*catalog.SpeciesUnit
	err   error
}

func (s *sliceUnits) Next(ctx context.Context) (*catalog.SpeciesUnit, error) {
	if len(s.units) == 0 {
		if s.err != nil {
			return nil, s.err
		}
		return nil, io.EOF
	}
	unit := s.units[0]
	s.units = s.units[1:]
	return unit, nil
}

func units(species string, counts ...int64) []*catalog.SpeciesUnit {
	var total int64
	for _, count := range counts {
		total += count
	}
	var result []*catalog.SpeciesUnit
	for i, count := range counts {
		result = append(result, &catalog.SpeciesUnit{
			Species:      species,
			TaxID:        9606,
			RecordCount:  count,
			Line:         i,
			SpeciesTotal: total,
			SpeciesLines: len(counts),
		})
	}
	return result
}

func collect(t *testing.T, a *Assembler) []*Chunk {
	t.Helper()
	var chunks []*Chunk
	for {
		chunk, err := a.Next(t.Context())
		if err == io.EOF {
			return chunks
		}
		if err != nil {
			t.Fatal(err.Error())
		}
		chunks = append(chunks, chunk)
	}
}

func totals(chunks []*Chunk) []int64 {
	var result []int64
	for _, chunk := range chunks {
		result = append(result, chunk.Total)
	}
	return result
}

func TestAssembler(t *testing.T) {
	tests := []struct {
		name      string
		counts    []int64
		threshold int64
		want      []int64
	}{
		{name: "MergeFits", counts: []int64{500, 600}, threshold: 2000, want: []int64{1100}},
		{name: "MergeOverflows", counts: []int64{1500, 1500}, threshold: 2000, want: []int64{1500, 1500}},
		{name: "ExactThreshold", counts: []int64{1000, 1000, 1}, threshold: 2000, want: []int64{2000, 1}},
		{name: "OversizeSingleton", counts: []int64{10, 5000, 10}, threshold: 2000, want: []int64{10, 5000, 10}},
		{name: "ZeroCounts", counts: []int64{0, 0, 2000, 0}, threshold: 2000, want: []int64{2000}},
		{name: "Empty", counts: nil, threshold: 2000, want: nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := NewAssembler(&sliceUnits{units: units("homo_sapiens", tt.counts...)}, tt.threshold)
			got := totals(collect(t, a))
			if !slices.Equal(got, tt.want) {
				t.Errorf("got totals %v, want %v", got, tt.want)
			}
		})
	}
}

func TestAssemblerFromIndexLines(t *testing.T) {
	tests := []struct {
		name  string
		index string
		want  []int64
	}{
		{name: "OneChunk", index: "a/b:9606:500\na/c:9606:600\n", want: []int64{1100}},
		{name: "TwoChunks", index: "a/b:9606:1500\na/c:9606:1500\n", want: []int64{1500, 1500}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := catalog.New(fstest.MapFS{"homo_sapiens.idx": {Data: []byte(tt.index)}}, fstest.MapFS{}, catalog.WithSeparator(":"))
			it, err := c.Open(t.Context(), catalog.Position{})
			if err != nil {
				t.Fatal(err.Error())
			}
			got := totals(collect(t, NewAssembler(it, 2000)))
			if !slices.Equal(got, tt.want) {
				t.Errorf("got totals %v, want %v", got, tt.want)
			}
		})
	}
}

func TestSpeciesBoundary(t *testing.T) {
	input := append(units("a", 100, 100), units("b", 100)...)
	other := units("c", 100)[0]
	other.IndexFile = 1
	input = append(input, other)

	chunks := collect(t, NewAssembler(&sliceUnits{units: input}, 2000))
	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	if chunks[0].Species != "a" || len(chunks[0].Units) != 2 || chunks[1].Species != "b" || chunks[2].Species != "c" {
		t.Errorf("unexpected chunks %+v %+v %+v", chunks[0], chunks[1], chunks[2])
	}
	for _, chunk := range chunks {
		if chunk.Seq != 1 {
			t.Errorf("species %s must start a new chunk sequence, got %d", chunk.Species, chunk.Seq)
		}
	}
}

func TestDifferentTaxIDNotMerged(t *testing.T) {
	input := units("a", 100, 100)
	input[1].TaxID = 10090

	chunks := collect(t, NewAssembler(&sliceUnits{units: input}, 2000))
	if len(chunks) != 2 || chunks[1].TaxID != 10090 {
		t.Errorf("expected two chunks with their own taxid, got %d", len(chunks))
	}
}

func TestChunkSeqAndSplit(t *testing.T) {
	chunks := collect(t, NewAssembler(&sliceUnits{units: units("a", 1500, 1500, 100)}, 2000))
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	for i, chunk := range chunks {
		if chunk.Seq != i+1 {
			t.Errorf("expected seq %d, got %d", i+1, chunk.Seq)
		}
		if !chunk.Split {
			t.Error("species spanning several chunks must be marked split")
		}
	}
	if chunks[1].Seed().Line != 1 || chunks[1].Total != 1600 {
		t.Errorf("unexpected second chunk %+v", chunks[1])
	}

	small := collect(t, NewAssembler(&sliceUnits{units: units("b", 10, 20)}, 2000))
	if small[0].Split {
		t.Error("species held by one chunk must not be marked split")
	}
}

func TestChunkFiles(t *testing.T) {
	input := units("a", 1, 1)
	input[0].PositiveFiles = []string{"1.jsonl"}
	input[0].NegativeFiles = []string{"1_negative.jsonl"}
	input[1].PositiveFiles = []string{"2.jsonl", "2b.jsonl"}

	chunks := collect(t, NewAssembler(&sliceUnits{units: input}, 10))
	if !slices.Equal(chunks[0].PositiveFiles(), []string{"1.jsonl", "2.jsonl", "2b.jsonl"}) {
		t.Errorf("unexpected positive files %v", chunks[0].PositiveFiles())
	}
	if !slices.Equal(chunks[0].NegativeFiles(), []string{"1_negative.jsonl"}) {
		t.Errorf("unexpected negative files %v", chunks[0].NegativeFiles())
	}
}

func TestSourceError(t *testing.T) {
	boom := errors.New("boom")
	a := NewAssembler(&sliceUnits{units: units("a", 1), err: boom}, 10)
	if _, err := a.Next(t.Context()); !errors.Is(err, boom) {
		t.Errorf("expected source error, got %v", err)
	}
}

// Every chunk respects the threshold unless it is an oversize singleton, and no unit is lost or reordered.
func TestAssemblerProperties(t *testing.T) {
	rnd := rand.New(rand.NewSource(42))
	for round := 0; round < 200; round++ {
		threshold := int64(rnd.Intn(3000) + 1)
		var input []*catalog.SpeciesUnit
		species := rnd.Intn(4) + 1
		for s := 0; s < species; s++ {
			var counts []int64
			n := rnd.Intn(8)
			for i := 0; i < n; i++ {
				counts = append(counts, int64(rnd.Intn(4000)))
			}
			input = append(input, units(string(rune('a'+s)), counts...)...)
		}
		expected := slices.Clone(input)

		chunks := collect(t, NewAssembler(&sliceUnits{units: input}, threshold))

		var seen []*catalog.SpeciesUnit
		for _, chunk := range chunks {
			var sum int64
			for _, unit := range chunk.Units {
				sum += unit.RecordCount
				if unit.Species != chunk.Species {
					t.Fatalf("chunk of %s holds unit of %s", chunk.Species, unit.Species)
				}
			}
			if sum != chunk.Total {
				t.Fatalf("chunk total %d does not match units sum %d", chunk.Total, sum)
			}
			if sum > threshold && len(chunk.Units) != 1 {
				t.Fatalf("chunk total %d exceeds threshold %d with %d units", sum, threshold, len(chunk.Units))
			}
			seen = append(seen, chunk.Units...)
		}
		if !slices.Equal(seen, expected) {
			t.Fatalf("units were lost or reordered in round %d", round)
		}
	}
}
