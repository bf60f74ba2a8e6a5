package serializer

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/opengs/speciesexport/record"
	"github.com/opengs/speciesexport/sequence"
)

var tsvHeader = []string{"export_id", "interaction_id", "negative", "participants"}

// TSV writes one tab separated row per record. Participants are written as id:taxid pairs joined by "|".
type TSV struct{}

func (s *TSV) Begin(w io.Writer) error {
	if _, err := io.WriteString(w, strings.Join(tsvHeader, "\t")+"\n"); err != nil {
		return errors.Join(errors.New("failed to write header"), err)
	}
	return nil
}

func (s *TSV) Write(w io.Writer, rec *record.Record, ids *sequence.Allocator) error {
	participants := make([]string, 0, len(rec.Participants))
	for _, p := range rec.Participants {
		participants = append(participants, tsvField(p.Interactor)+":"+strconv.FormatInt(p.TaxID, 10))
	}

	row := fmt.Sprintf("%d\t%s\t%t\t%s\n", ids.Next(), tsvField(rec.ID), rec.Negative, strings.Join(participants, "|"))
	if _, err := io.WriteString(w, row); err != nil {
		return errors.Join(errors.New("failed to write row"), err)
	}
	return nil
}

func (s *TSV) End(w io.Writer) error {
	return nil
}

func (s *TSV) Extension() string {
	return ".tsv"
}

var tsvReplacer = strings.NewReplacer("\t", " ", "\n", " ", "\r", " ", "|", "/")

func tsvField(value string) string {
	return tsvReplacer.Replace(value)
}
