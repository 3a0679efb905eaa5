package tables

import (
	"context"
	"path/filepath"
	"testing"
)

func TestOpen_Remote(t *testing.T) {
	s, closeFn, err := Open("http://localhost:7002", "anon")
	if err != nil {
		t.Fatal(err)
	}
	if _, ok := s.(*Client); !ok {
		t.Errorf("Expected *Client, got %T", s)
	}
	if err := closeFn(); err != nil {
		t.Errorf("Remote close should be a no-op, got %v", err)
	}
}

func TestOpen_EmbeddedPersistsOnClose(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.json")
	ctx := context.Background()

	s, closeFn, err := Open("file://"+path, "")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := s.Insert(ctx, "lessons", "", []Row{{"id": "a"}}, ""); err != nil {
		t.Fatal(err)
	}
	if err := closeFn(); err != nil {
		t.Fatalf("close failed: %v", err)
	}

	again, _, err := Open("file://"+path, "")
	if err != nil {
		t.Fatal(err)
	}
	rows, _ := again.Fetch(ctx, "lessons", Query{}, "")
	if len(rows) != 1 {
		t.Errorf("Expected the lesson to survive a reopen, got %v", rows)
	}
}

func TestOpen_BadAddress(t *testing.T) {
	for _, addr := range []string{"ftp://x", "file://", "::"} {
		if _, _, err := Open(addr, ""); err == nil {
			t.Errorf("Expected error for %q", addr)
		}
	}
}
