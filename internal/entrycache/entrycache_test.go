package entrycache

import (
	"bytes"
	"fmt"
	"sync"
	"testing"

	"github.com/elliotnunn/memzip/internal/zip"
)

func TestKey(t *testing.T) {
	a := zip.File{Name: "dup", HeaderOffset: 0}
	b := zip.File{Name: "dup", HeaderOffset: 40}
	if Key(1, &a) == Key(1, &b) {
		t.Error("same name at different offsets should have different keys")
	}
	if Key(1, &a) == Key(2, &a) {
		t.Error("different archives should have different keys")
	}
	if Key(1, &a) != Key(1, &zip.File{Name: "dup"}) {
		t.Error("key should depend only on archive, offset and name")
	}
}

func TestDigest(t *testing.T) {
	if Digest([]byte("PK\x05\x06")) == Digest([]byte("PK\x05\x07")) {
		t.Error("digest collision on a one-bit change")
	}
	if Digest(nil) != Digest([]byte{}) {
		t.Error("nil and empty should digest alike")
	}
}

func TestMemory(t *testing.T) {
	m := NewMemory(1 << 20)
	if _, ok := m.Get("absent"); ok {
		t.Error("found an absent key")
	}
	m.Add("a", []byte("hello"))
	got, ok := m.Get("a")
	if !ok || string(got) != "hello" {
		t.Errorf("got %q, %v", got, ok)
	}
	if m.Held() != 5 {
		t.Errorf("held %d bytes, want 5", m.Held())
	}

	m.Add("a", []byte("again"))
	if m.Held() != 5 {
		t.Errorf("re-adding should not double count, held %d", m.Held())
	}
}

func TestMemoryRefusesHugeEntries(t *testing.T) {
	m := NewMemory(850) // 16 entries of 50 bytes, with a spare slot
	m.Add("big", make([]byte, 51))
	if _, ok := m.Get("big"); ok {
		t.Error("kept an entry larger than a slot")
	}
	m.Add("small", make([]byte, 50))
	if _, ok := m.Get("small"); !ok {
		t.Error("dropped an entry that fits")
	}
}

func TestMemoryStaysInBudget(t *testing.T) {
	const budget = 16 << 20
	m := NewMemory(budget)
	kept := 0
	for i := range 1000 {
		k := fmt.Sprint(i)
		m.Add(k, make([]byte, (i%4+1)*(budget/64)))
		for range 2 {
			if _, ok := m.Get(k); ok {
				kept++
			}
		}
		if m.Held() > budget {
			t.Fatalf("after %d adds holding %d bytes, budget %d", i+1, m.Held(), budget)
		}
	}
	if kept == 0 {
		t.Error("nothing was ever cached")
	}
}

func TestMemoryConcurrent(t *testing.T) {
	m := NewMemory(1 << 24)
	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 200 {
				k := fmt.Sprint(i % 50)
				m.Add(k, []byte(k))
				if v, ok := m.Get(k); ok && string(v) != k {
					t.Errorf("goroutine %d: key %s has value %q", g, k, v)
				}
			}
		}()
	}
	wg.Wait()
}

func TestDisk(t *testing.T) {
	dir := t.TempDir()
	d, err := OpenDisk(dir)
	if err != nil {
		t.Fatal(err)
	}
	d.Add("k", []byte("persistent"))
	got, ok := d.Get("k")
	if !ok || string(got) != "persistent" {
		t.Fatalf("got %q, %v", got, ok)
	}
	got[0] = 'P' // must be our own copy
	if _, ok := d.Get("missing"); ok {
		t.Error("found a missing key")
	}
	if err := d.Close(); err != nil {
		t.Fatal(err)
	}

	d, err = OpenDisk(dir)
	if err != nil {
		t.Fatal(err)
	}
	defer d.Close()
	got, ok = d.Get("k")
	if !ok || string(got) != "persistent" {
		t.Errorf("after reopen got %q, %v", got, ok)
	}
}

func TestEntries(t *testing.T) {
	archive := []byte("pretend this is a zip")
	e := ForArchive(NewMemory(1<<20), archive)
	f := &zip.File{Name: "x", HeaderOffset: 7}
	e.Add(f, []byte("content"))
	got, ok := e.Get(f)
	if !ok || !bytes.Equal(got, []byte("content")) {
		t.Errorf("got %q, %v", got, ok)
	}
	if _, ok := e.Get(&zip.File{Name: "x", HeaderOffset: 8}); ok {
		t.Error("matched a different entry")
	}
}
