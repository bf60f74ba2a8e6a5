package publish

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"sort"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/opengs/speciesexport/checkpoint"
)

type fakeBucket struct {
	mu      sync.Mutex
	objects map[string][]byte
	failKey string
}

func (b *fakeBucket) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	if *params.Key == b.failKey {
		return nil, errors.New("access denied")
	}
	data, err := io.ReadAll(params.Body)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.objects == nil {
		b.objects = map[string][]byte{}
	}
	b.objects[*params.Key] = data
	return &s3.PutObjectOutput{}, nil
}

func (b *fakeBucket) keys() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var keys []string
	for key := range b.objects {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func writeOutput(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	files := map[string]string{
		"homo_sapiens.jsonl":          `{"export_id":1}` + "\n",
		"homo_sapiens_negative.jsonl": `{"export_id":2}` + "\n",
		"mouse/mus_musculus_1.jsonl":  `{"export_id":3}` + "\n",
		".checkpoint.json":            "{}",
	}
	for name, content := range files {
		path := filepath.Join(dir, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err.Error())
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err.Error())
		}
	}
	return dir
}

func TestPublish(t *testing.T) {
	dir := writeOutput(t)
	bucket := &fakeBucket{}
	p := New(bucket, "exports", checkpoint.NewMemoryStore(), WithPrefix("run-1"), WithParallelism(2))

	result, err := p.Publish(t.Context(), dir)
	if err != nil {
		t.Fatal(err.Error())
	}
	if result.Files != 3 {
		t.Errorf("expected 3 files, got %d", result.Files)
	}

	want := []string{"run-1/homo_sapiens.jsonl", "run-1/homo_sapiens_negative.jsonl", "run-1/mouse/mus_musculus_1.jsonl"}
	if got := bucket.keys(); !slices.Equal(got, want) {
		t.Errorf("got keys %v, want %v", got, want)
	}
	if string(bucket.objects["run-1/mouse/mus_musculus_1.jsonl"]) != `{"export_id":3}`+"\n" {
		t.Error("uploaded content differs from the file")
	}
}

func TestPublishRefusesUnfinishedExport(t *testing.T) {
	store := checkpoint.NewMemoryStore()
	if err := checkpoint.Save(t.Context(), store, checkpoint.Checkpoint{CurrentSpecies: "homo_sapiens"}); err != nil {
		t.Fatal(err.Error())
	}

	bucket := &fakeBucket{}
	_, err := New(bucket, "exports", store).Publish(t.Context(), writeOutput(t))
	if !errors.Is(err, ErrExportIncomplete) {
		t.Errorf("expected ErrExportIncomplete, got %v", err)
	}
	if len(bucket.keys()) != 0 {
		t.Error("nothing must be uploaded for an unfinished export")
	}
}

func TestPublishUploadError(t *testing.T) {
	bucket := &fakeBucket{failKey: "homo_sapiens.jsonl"}
	_, err := New(bucket, "exports", checkpoint.NewMemoryStore(), WithParallelism(1)).Publish(t.Context(), writeOutput(t))
	if err == nil {
		t.Fatal("expected upload error")
	}
}
