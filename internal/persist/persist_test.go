package persist

import (
	"os"
	"path/filepath"
	"testing"
)

type sample struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestFileStoreRoundTrip(t *testing.T) {
	store := NewFileStore(t.TempDir(), nil)

	store.Save("settings", sample{Name: "a", Count: 2})

	var got sample
	if !store.Load("settings", &got) {
		t.Fatal("Load reported no value after Save")
	}
	if got.Name != "a" || got.Count != 2 {
		t.Errorf("round trip mismatch: %+v", got)
	}
}

func TestFileStoreMissingKeyKeepsDefault(t *testing.T) {
	store := NewFileStore(t.TempDir(), nil)

	got := sample{Name: "default"}
	if store.Load("absent", &got) {
		t.Error("Load reported a value for a missing key")
	}
	if got.Name != "default" {
		t.Errorf("default clobbered: %+v", got)
	}
}

func TestFileStoreCorruptFileFallsBack(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "settings.json"), []byte("{not json"), 0644); err != nil {
		t.Fatal(err)
	}
	store := NewFileStore(dir, nil)

	got := sample{Name: "default"}
	if store.Load("settings", &got) {
		t.Error("Load accepted corrupt JSON")
	}
	if got.Name != "default" {
		t.Errorf("default clobbered by corrupt read: %+v", got)
	}
}

func TestFileStoreUnwritableDirIsSilent(t *testing.T) {
	// A store rooted somewhere unusable must not panic or error out loud.
	store := NewFileStore(filepath.Join(string(os.PathSeparator), "dev", "null", "nested"), nil)
	store.Save("k", sample{})

	var got sample
	if store.Load("k", &got) {
		t.Error("Load reported a value that could not have been written")
	}
}

func TestMemStore(t *testing.T) {
	store := NewMemStore()

	var missing sample
	if store.Load("k", &missing) {
		t.Error("empty store reported a value")
	}

	store.Save("k", sample{Name: "x"})
	var got sample
	if !store.Load("k", &got) || got.Name != "x" {
		t.Errorf("round trip failed: %+v", got)
	}
}
