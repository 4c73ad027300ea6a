package storage

import (
	"bytes"
	"io"
	"os"
	"testing"
)

func TestLocalStoreRoundTrip(t *testing.T) {
	store, err := NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore: %v", err)
	}

	info, err := store.Save("doc.pdf", KindInput, bytes.NewReader([]byte("pdf content")))
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if info.Size != int64(len("pdf content")) {
		t.Errorf("size = %d", info.Size)
	}
	if info.Kind != KindInput {
		t.Errorf("kind = %s", info.Kind)
	}

	got, err := store.Get(info.ID)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.Name != "doc.pdf" {
		t.Errorf("name = %s", got.Name)
	}

	rc, err := store.Open(info.ID)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	data, _ := io.ReadAll(rc)
	rc.Close()
	if string(data) != "pdf content" {
		t.Errorf("content = %q", data)
	}
}

func TestLocalStoreListFiltersByKind(t *testing.T) {
	store, _ := NewLocalStore(t.TempDir())

	store.SaveBytes("in.png", KindInput, []byte("a"))
	store.SaveBytes("out.jpg", KindOutput, []byte("b"))
	store.SaveBytes("out2.jpg", KindOutput, []byte("c"))

	outputs, err := store.List(KindOutput, 10)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(outputs) != 2 {
		t.Fatalf("expected 2 outputs, got %d", len(outputs))
	}
	for _, o := range outputs {
		if o.Kind != KindOutput {
			t.Errorf("unexpected kind %s", o.Kind)
		}
	}
}

func TestLocalStoreDelete(t *testing.T) {
	store, _ := NewLocalStore(t.TempDir())

	info, _ := store.SaveBytes("tmp.txt", KindInput, []byte("x"))
	path, _ := store.Path(info.ID)

	if err := store.Delete(info.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Get(info.ID); err == nil {
		t.Error("expected Get to fail after delete")
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Error("expected file removed from disk")
	}

	if err := store.Delete("missing"); err == nil {
		t.Error("expected error deleting unknown id")
	}
}
