package serializer

import (
	"encoding/json"
	"errors"
	"io"

	"github.com/opengs/speciesexport/record"
	"github.com/opengs/speciesexport/sequence"
)

type jsonlEnvelope struct {
	ExportID int64           `json:"export_id"`
	Negative bool            `json:"negative"`
	Record   json.RawMessage `json:"record"`
}

// JSONL wraps every input record into an envelope carrying its export id. One envelope per line.
type JSONL struct{}

func (s *JSONL) Begin(w io.Writer) error {
	return nil
}

func (s *JSONL) Write(w io.Writer, rec *record.Record, ids *sequence.Allocator) error {
	raw := rec.Raw
	if len(raw) == 0 {
		encoded, err := json.Marshal(rec)
		if err != nil {
			return errors.Join(errors.New("failed to encode record"), err)
		}
		raw = encoded
	}

	data, err := json.Marshal(jsonlEnvelope{
		ExportID: ids.Next(),
		Negative: rec.Negative,
		Record:   raw,
	})
	if err != nil {
		return errors.Join(errors.New("failed to encode record envelope"), err)
	}

	data = append(data, '\n')
	if _, err := w.Write(data); err != nil {
		return errors.Join(errors.New("failed to write record"), err)
	}
	return nil
}

func (s *JSONL) End(w io.Writer) error {
	return nil
}

func (s *JSONL) Extension() string {
	return ".jsonl"
}
