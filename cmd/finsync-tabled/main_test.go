package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/celerix-dev/celerix-finsync/pkg/tables"
)

func TestDumper_FlushOnlyWhenDirty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tables.json")
	store := tables.NewMemTable(nil)
	d := &dumper{store: store, path: path, log: slog.Default()}

	if err := d.flush(); err != nil {
		t.Fatal(err)
	}
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		t.Fatal("Clean dumper should not write a file")
	}

	store.Insert(context.Background(), "lessons", "", []tables.Row{{"id": "a"}}, "")
	d.markDirty("lessons")
	if err := d.flush(); err != nil {
		t.Fatalf("flush failed: %v", err)
	}
	data, err := tables.ReadDump(path)
	if err != nil || len(data["lessons"]) != 1 {
		t.Errorf("Expected dumped lesson, got %v, %v", data, err)
	}
	if d.dirty.Load() {
		t.Error("Dumper should be clean after a flush")
	}
}
