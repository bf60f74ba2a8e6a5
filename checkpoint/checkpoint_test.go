package checkpoint_test

import (
	"errors"
	"testing"

	"github.com/opengs/speciesexport/checkpoint"
	"github.com/opengs/speciesexport/checkpoint/checkpointtest"
)

func TestMemoryStore(t *testing.T) {
	checkpointtest.TestStore(t, checkpoint.NewMemoryStore())
}

func TestFromMapEmpty(t *testing.T) {
	_, found, err := checkpoint.FromMap(nil)
	if err != nil || found {
		t.Errorf("empty context must mean cold start, got found=%v err=%v", found, err)
	}
}

func TestFromMapRoundTrip(t *testing.T) {
	want := checkpoint.Checkpoint{
		NumberFiles:     1,
		SpeciesLine:     7,
		IsNegative:      false,
		ChunkID:         0,
		CurrentSpecies:  "homo sapiens",
		CurrentPosition: 4096,
		SequenceID:      8,
		RecordsRead:     42,
		FileRecords:     42,
	}

	got, found, err := checkpoint.FromMap(want.Map())
	if err != nil || !found {
		t.Fatalf("unexpected result found=%v err=%v", found, err)
	}
	if got != want {
		t.Errorf("got %+v, want %+v", got, want)
	}
}

func TestFromMapRejectsBadValues(t *testing.T) {
	base := checkpoint.Checkpoint{CurrentSpecies: "homo_sapiens"}.Map()

	tests := []struct {
		name  string
		key   string
		value string
	}{
		{"non numeric offset", checkpoint.KeyCurrentPosition, "12a"},
		{"negative offset", checkpoint.KeyCurrentPosition, "-1"},
		{"bad bool", checkpoint.KeyIsNegative, "maybe"},
		{"empty species", checkpoint.KeyCurrentSpecies, ""},
		{"non numeric sequence", checkpoint.KeySequenceID, "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			values := map[string]string{}
			for k, v := range base {
				values[k] = v
			}
			values[tt.key] = tt.value

			if _, _, err := checkpoint.FromMap(values); !errors.Is(err, checkpoint.ErrRestartContextIncomplete) {
				t.Errorf("expected ErrRestartContextIncomplete, got %v", err)
			}
		})
	}
}

func TestFromMapMissingKey(t *testing.T) {
	for _, key := range checkpoint.Keys {
		t.Run(key, func(t *testing.T) {
			values := checkpoint.Checkpoint{CurrentSpecies: "homo_sapiens"}.Map()
			delete(values, key)
			if _, _, err := checkpoint.FromMap(values); !errors.Is(err, checkpoint.ErrRestartContextIncomplete) {
				t.Errorf("expected ErrRestartContextIncomplete without %s, got %v", key, err)
			}
		})
	}
}
