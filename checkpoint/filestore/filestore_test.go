package filestore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/opengs/speciesexport/checkpoint/checkpointtest"
)

func TestFileStore(t *testing.T) {
	checkpointtest.TestStore(t, New(filepath.Join(t.TempDir(), "state", "export.checkpoint.json")))
}

func TestFileStoreLeavesNoTemporaryFiles(t *testing.T) {
	dir := t.TempDir()
	s := New(filepath.Join(dir, "export.checkpoint.json"))

	for i := 0; i < 3; i++ {
		if err := s.Save(t.Context(), map[string]string{"k": "v"}); err != nil {
			t.Fatal(err.Error())
		}
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err.Error())
	}
	if len(entries) != 1 || entries[0].Name() != "export.checkpoint.json" {
		var names []string
		for _, e := range entries {
			names = append(names, e.Name())
		}
		t.Errorf("expected only the checkpoint file, got %v", names)
	}
}

func TestFileStoreCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "export.checkpoint.json")
	if err := os.WriteFile(path, []byte("{truncated"), 0o644); err != nil {
		t.Fatal(err.Error())
	}

	if _, err := New(path).Load(t.Context()); err == nil {
		t.Error("expected decode error for corrupt checkpoint file")
	}
}
