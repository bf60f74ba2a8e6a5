package serializer

import (
	"bytes"
	"encoding/json"
	"errors"
	"testing"

	"github.com/opengs/speciesexport/record"
	"github.com/opengs/speciesexport/sequence"
)

func testRecord() *record.Record {
	return &record.Record{
		ID: "EBI-1",
		Participants: []record.Participant{
			{Interactor: "P12345", TaxID: 9606},
			{Interactor: "Q9\tX", TaxID: 10090},
		},
		Negative: true,
		Raw:      json.RawMessage(`{"id":"EBI-1","participants":[]}`),
	}
}

func TestNew(t *testing.T) {
	for _, format := range Formats {
		if _, err := New(format); err != nil {
			t.Errorf("format %s: %v", format, err)
		}
	}
	if _, err := New("xml"); !errors.Is(err, ErrUnknownFormat) {
		t.Errorf("expected ErrUnknownFormat, got %v", err)
	}
}

func TestJSONL(t *testing.T) {
	ids, err := sequence.New(8)
	if err != nil {
		t.Fatal(err.Error())
	}

	var buf bytes.Buffer
	s := &JSONL{}
	if err := s.Begin(&buf); err != nil {
		t.Fatal(err.Error())
	}
	if err := s.Write(&buf, testRecord(), ids); err != nil {
		t.Fatal(err.Error())
	}
	if err := s.End(&buf); err != nil {
		t.Fatal(err.Error())
	}

	want := `{"export_id":9,"negative":true,"record":{"id":"EBI-1","participants":[]}}` + "\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
	if ids.Last() != 9 {
		t.Errorf("expected one id to be allocated, last is %d", ids.Last())
	}
}

func TestJSONLWithoutRaw(t *testing.T) {
	ids, _ := sequence.New(0)
	rec := testRecord()
	rec.Raw = nil

	var buf bytes.Buffer
	if err := (&JSONL{}).Write(&buf, rec, ids); err != nil {
		t.Fatal(err.Error())
	}

	var envelope jsonlEnvelope
	if err := json.Unmarshal(buf.Bytes(), &envelope); err != nil {
		t.Fatal(err.Error())
	}
	var decoded record.Record
	if err := json.Unmarshal(envelope.Record, &decoded); err != nil {
		t.Fatal(err.Error())
	}
	if decoded.ID != "EBI-1" || len(decoded.Participants) != 2 {
		t.Errorf("unexpected encoded record %+v", decoded)
	}
}

func TestTSV(t *testing.T) {
	ids, _ := sequence.New(0)

	var buf bytes.Buffer
	s := &TSV{}
	if err := s.Begin(&buf); err != nil {
		t.Fatal(err.Error())
	}
	if err := s.Write(&buf, testRecord(), ids); err != nil {
		t.Fatal(err.Error())
	}

	want := "export_id\tinteraction_id\tnegative\tparticipants\n" +
		"1\tEBI-1\ttrue\tP12345:9606|Q9 X:10090\n"
	if buf.String() != want {
		t.Errorf("got %q, want %q", buf.String(), want)
	}
}
