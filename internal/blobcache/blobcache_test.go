package blobcache

import (
	"bytes"
	"errors"
	"testing"
)

func TestGetOrFillMemoizes(t *testing.T) {
	c, err := Open("", 64)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	calls := 0
	fill := func() ([]byte, error) {
		calls++
		return []byte("blob"), nil
	}

	for i := 0; i < 3; i++ {
		v, err := c.GetOrFill(1, fill)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(v, []byte("blob")) {
			t.Fatalf("got %q", v)
		}
	}
	if calls != 1 {
		t.Errorf("fill ran %d times", calls)
	}

	if _, err := c.GetOrFill(2, fill); err != nil {
		t.Fatal(err)
	}
	if calls != 2 {
		t.Errorf("distinct key: fill ran %d times", calls)
	}
}

func TestFillErrorNotCached(t *testing.T) {
	c, err := Open("", 64)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()

	boom := errors.New("boom")
	calls := 0
	if _, err := c.GetOrFill(1, func() ([]byte, error) { calls++; return nil, boom }); !errors.Is(err, boom) {
		t.Fatalf("got %v", err)
	}

	// the failure was not stored; a later fill gets its chance
	v, err := c.GetOrFill(1, func() ([]byte, error) { calls++; return []byte("ok"), nil })
	if err != nil || string(v) != "ok" {
		t.Fatalf("retry = %q, %v", v, err)
	}
	if calls != 2 {
		t.Errorf("calls = %d", calls)
	}
}

func TestPersistentTier(t *testing.T) {
	dir := t.TempDir()

	c, err := Open(dir, 64)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := c.GetOrFill(7, func() ([]byte, error) { return []byte("kept"), nil }); err != nil {
		t.Fatal(err)
	}
	if err := c.Close(); err != nil {
		t.Fatal(err)
	}

	// a fresh cache over the same directory hits the stored blob
	c, err = Open(dir, 64)
	if err != nil {
		t.Fatal(err)
	}
	defer c.Close()
	v, err := c.GetOrFill(7, func() ([]byte, error) {
		t.Error("fill ran despite the persistent tier")
		return nil, nil
	})
	if err != nil || string(v) != "kept" {
		t.Errorf("got %q, %v", v, err)
	}
}

func TestKeyIsContentAddressed(t *testing.T) {
	if Key([]byte("a")) == Key([]byte("b")) {
		t.Error("distinct contents share a key")
	}
	if Key([]byte("same")) != Key([]byte("same")) {
		t.Error("equal contents have different keys")
	}
}
