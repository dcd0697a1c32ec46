package artifact

import (
	"fmt"
	"sync"
	"testing"

	"github.com/agenthive/agenthive/core"
)

// Interface compliance (compile-time assertion)
var _ core.ArtifactStore = (*InMemoryStore)(nil)

func TestInMemoryStore_SaveGetIsolation(t *testing.T) {
	store := NewInMemoryStore()
	data := []byte("hello")
	if err := store.Save("s1", "out.txt", data); err != nil {
		t.Fatalf("save: %v", err)
	}
	// mutate original slice
	data[0] = 'H'
	out, err := store.Get("s1", "out.txt")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(out) != "hello" { // should not reflect mutation
		t.Fatalf("expected 'hello', got %q", string(out))
	}
	// mutate returned slice
	out[0] = 'x'
	out2, _ := store.Get("s1", "out.txt")
	if string(out2) != "hello" {
		t.Fatalf("expected isolation, got %q", string(out2))
	}
}

func TestInMemoryStore_StatSniffsMIME(t *testing.T) {
	store := NewInMemoryStore()
	if err := store.Save("s1", "plot.png", []byte{0x89, 'P', 'N', 'G'}); err != nil {
		t.Fatal(err)
	}

	info, err := store.Stat("s1", "plot.png")
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.MIMEType != "image/png" {
		t.Errorf("expected image/png, got %q", info.MIMEType)
	}
	if info.Size != 4 {
		t.Errorf("expected size 4, got %d", info.Size)
	}
	if info.SavedAt.IsZero() {
		t.Error("expected SavedAt to be set")
	}

	if _, err := store.Stat("s1", "missing.bin"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestInMemoryStore_ListSortedAndDelete(t *testing.T) {
	store := NewInMemoryStore()
	if err := store.Save("s1", "b.csv", []byte("2")); err != nil {
		t.Fatal(err)
	}
	if err := store.Save("s1", "a.png", []byte("1")); err != nil {
		t.Fatal(err)
	}
	names, err := store.List("s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != "a.png" || names[1] != "b.csv" {
		t.Fatalf("expected sorted [a.png b.csv], got %v", names)
	}
	if err := store.Delete("s1", "a.png"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := store.Get("s1", "a.png"); err == nil {
		t.Fatalf("expected error for deleted artifact")
	}
	names, _ = store.List("s1")
	if len(names) != 1 {
		t.Fatalf("expected 1 name after delete, got %d", len(names))
	}
}

func TestInMemoryStore_Concurrency(t *testing.T) {
	store := NewInMemoryStore()
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		i := i
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := i % 10
			if err := store.Save("s1", fmt.Sprintf("file%d.txt", id), []byte("data")); err != nil {
				t.Errorf("save err: %v", err)
			}
			_, _ = store.List("s1")
		}()
	}
	wg.Wait()
	names, err := store.List("s1")
	if err != nil {
		t.Fatal(err)
	}
	if len(names) == 0 {
		t.Fatalf("expected some artifacts, got 0")
	}
}
