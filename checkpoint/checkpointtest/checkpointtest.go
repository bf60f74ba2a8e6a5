package checkpointtest

import (
	"errors"
	"testing"

	"github.com/opengs/speciesexport/checkpoint"
)

func sample() checkpoint.Checkpoint {
	return checkpoint.Checkpoint{
		NumberFiles:     2,
		SpeciesLine:     14,
		IsNegative:      true,
		ChunkID:         3,
		CurrentSpecies:  "homo_sapiens",
		CurrentPosition: 123456,
		SequenceID:      8,
		RecordsRead:     2500,
		FileRecords:     500,
	}
}

// TestStore runs behaviour every checkpoint store must share. `s` must start empty.
func TestStore(t *testing.T, s checkpoint.Store) {
	t.Run("LoadEmpty", func(t *testing.T) {
		c, found, err := checkpoint.Load(t.Context(), s)
		if err != nil {
			t.Fatal(err.Error())
		}
		if found {
			t.Errorf("expected no checkpoint, got %+v", c)
		}
	})

	t.Run("SaveLoad", func(t *testing.T) {
		want := sample()
		if err := checkpoint.Save(t.Context(), s, want); err != nil {
			t.Fatal(err.Error())
		}

		got, found, err := checkpoint.Load(t.Context(), s)
		if err != nil {
			t.Fatal(err.Error())
		}
		if !found {
			t.Fatal("expected saved checkpoint to be found")
		}
		if got != want {
			t.Errorf("got %+v, want %+v", got, want)
		}
	})

	t.Run("SaveReplaces", func(t *testing.T) {
		first := sample()
		if err := checkpoint.Save(t.Context(), s, first); err != nil {
			t.Fatal(err.Error())
		}

		second := sample()
		second.IsNegative = false
		second.ChunkID = 0
		second.CurrentSpecies = "mus musculus"
		second.CurrentPosition = 0
		second.SequenceID = 9
		if err := checkpoint.Save(t.Context(), s, second); err != nil {
			t.Fatal(err.Error())
		}

		got, _, err := checkpoint.Load(t.Context(), s)
		if err != nil {
			t.Fatal(err.Error())
		}
		if got != second {
			t.Errorf("got %+v, want %+v", got, second)
		}
	})

	t.Run("PartialContext", func(t *testing.T) {
		values := sample().Map()
		delete(values, checkpoint.KeyCurrentPosition)
		delete(values, checkpoint.KeySequenceID)
		if err := s.Save(t.Context(), values); err != nil {
			t.Fatal(err.Error())
		}

		_, _, err := checkpoint.Load(t.Context(), s)
		if !errors.Is(err, checkpoint.ErrRestartContextIncomplete) {
			t.Errorf("expected ErrRestartContextIncomplete, got %v", err)
		}
	})

	t.Run("Clear", func(t *testing.T) {
		if err := checkpoint.Save(t.Context(), s, sample()); err != nil {
			t.Fatal(err.Error())
		}
		if err := s.Clear(t.Context()); err != nil {
			t.Fatal(err.Error())
		}
		if _, found, err := checkpoint.Load(t.Context(), s); err != nil || found {
			t.Errorf("expected empty store after clear, got found=%v err=%v", found, err)
		}
		if err := s.Clear(t.Context()); err != nil {
			t.Errorf("clearing an empty store must succeed: %v", err)
		}
	})
}
