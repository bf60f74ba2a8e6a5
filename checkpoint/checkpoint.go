package checkpoint

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Keys of the flat execution context map.
const (
	KeyNumberFiles     = "number_files"
	KeySpeciesLine     = "species_line"
	KeyIsNegative      = "is_negative"
	KeyChunkID         = "chunk_id"
	KeyCurrentSpecies  = "current_species"
	KeyCurrentPosition = "current_position"
	KeySequenceID      = "sequence_id"
	KeyRecordsRead     = "records_read"
	KeyFileRecords     = "file_records"
)

// Keys lists every key a complete execution context holds.
var Keys = []string{
	KeyNumberFiles,
	KeySpeciesLine,
	KeyIsNegative,
	KeyChunkID,
	KeyCurrentSpecies,
	KeyCurrentPosition,
	KeySequenceID,
	KeyRecordsRead,
	KeyFileRecords,
}

var ErrRestartContextIncomplete = errors.New("restart context incomplete")

// Checkpoint is the persisted execution state of an export. It always describes a fully flushed output position.
type Checkpoint struct {
	// Index files completely processed before the current one
	NumberFiles int `json:"number_files"`
	// Valid index lines of the current index file consumed before the current chunk
	SpeciesLine int `json:"species_line"`
	// Whether the open output file belongs to the negative phase
	IsNegative bool `json:"is_negative"`
	// Chunk id of the open output file. Zero means the file has no chunk id in its name
	ChunkID int `json:"chunk_id"`
	// Species of the open output file
	CurrentSpecies string `json:"current_species"`
	// Committed byte offset of the open output file
	CurrentPosition int64 `json:"current_position"`
	// Last allocated sequence id
	SequenceID int64 `json:"sequence_id"`
	// Filtered records of the current chunk phase consumed up to the commit
	RecordsRead int64 `json:"records_read"`
	// Records already committed into the open output file
	FileRecords int64 `json:"file_records"`
}

// Map encodes the checkpoint into the flat key/value execution context.
func (c Checkpoint) Map() map[string]string {
	return map[string]string{
		KeyNumberFiles:     strconv.Itoa(c.NumberFiles),
		KeySpeciesLine:     strconv.Itoa(c.SpeciesLine),
		KeyIsNegative:      strconv.FormatBool(c.IsNegative),
		KeyChunkID:         strconv.Itoa(c.ChunkID),
		KeyCurrentSpecies:  c.CurrentSpecies,
		KeyCurrentPosition: strconv.FormatInt(c.CurrentPosition, 10),
		KeySequenceID:      strconv.FormatInt(c.SequenceID, 10),
		KeyRecordsRead:     strconv.FormatInt(c.RecordsRead, 10),
		KeyFileRecords:     strconv.FormatInt(c.FileRecords, 10),
	}
}

// FromMap decodes an execution context. An empty map means there is nothing to resume and returns false.
// A map holding only some of the keys is ambiguous and fails with [ErrRestartContextIncomplete].
func FromMap(values map[string]string) (Checkpoint, bool, error) {
	if len(values) == 0 {
		return Checkpoint{}, false, nil
	}

	var missing []string
	for _, key := range Keys {
		if _, ok := values[key]; !ok {
			missing = append(missing, key)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return Checkpoint{}, false, fmt.Errorf("%w: missing keys %s", ErrRestartContextIncomplete, strings.Join(missing, ", "))
	}

	var c Checkpoint
	var err error
	if c.NumberFiles, err = parseInt(values, KeyNumberFiles); err != nil {
		return Checkpoint{}, false, err
	}
	if c.SpeciesLine, err = parseInt(values, KeySpeciesLine); err != nil {
		return Checkpoint{}, false, err
	}
	if c.ChunkID, err = parseInt(values, KeyChunkID); err != nil {
		return Checkpoint{}, false, err
	}
	if c.CurrentPosition, err = parseInt64(values, KeyCurrentPosition); err != nil {
		return Checkpoint{}, false, err
	}
	if c.SequenceID, err = parseInt64(values, KeySequenceID); err != nil {
		return Checkpoint{}, false, err
	}
	if c.RecordsRead, err = parseInt64(values, KeyRecordsRead); err != nil {
		return Checkpoint{}, false, err
	}
	if c.FileRecords, err = parseInt64(values, KeyFileRecords); err != nil {
		return Checkpoint{}, false, err
	}
	if c.IsNegative, err = strconv.ParseBool(values[KeyIsNegative]); err != nil {
		return Checkpoint{}, false, fmt.Errorf("%w: bad %s value %q", ErrRestartContextIncomplete, KeyIsNegative, values[KeyIsNegative])
	}
	c.CurrentSpecies = values[KeyCurrentSpecies]
	if c.CurrentSpecies == "" {
		return Checkpoint{}, false, fmt.Errorf("%w: empty %s", ErrRestartContextIncomplete, KeyCurrentSpecies)
	}

	return c, true, nil
}

func parseInt(values map[string]string, key string) (int, error) {
	v, err := parseInt64(values, key)
	return int(v), err
}

func parseInt64(values map[string]string, key string) (int64, error) {
	v, err := strconv.ParseInt(values[key], 10, 64)
	if err != nil || v < 0 {
		return 0, fmt.Errorf("%w: bad %s value %q", ErrRestartContextIncomplete, key, values[key])
	}
	return v, nil
}

// Store persists the flat execution context of one export job.
type Store interface {
	// Returns stored execution context. Empty map if nothing was saved.
	Load(ctx context.Context) (map[string]string, error)
	// Replaces stored execution context atomically.
	Save(ctx context.Context, values map[string]string) error
	// Removes execution context. Called after a fully successful export.
	Clear(ctx context.Context) error
}

// Load reads and decodes the checkpoint held by `store`.
func Load(ctx context.Context, store Store) (Checkpoint, bool, error) {
	values, err := store.Load(ctx)
	if err != nil {
		return Checkpoint{}, false, errors.Join(errors.New("failed to load execution context"), err)
	}
	return FromMap(values)
}

// Save encodes and stores the checkpoint.
func Save(ctx context.Context, store Store, c Checkpoint) error {
	if err := store.Save(ctx, c.Map()); err != nil {
		return errors.Join(errors.New("failed to save execution context"), err)
	}
	return nil
}
