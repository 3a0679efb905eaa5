package tables

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ReadDump loads a table dump written by WriteDump. A missing file is an
// empty dump.
func ReadDump(path string) (map[string][]Row, error) {
	content, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string][]Row{}, nil
	}
	if err != nil {
		return nil, err
	}
	var data map[string][]Row
	if err := json.Unmarshal(content, &data); err != nil {
		return nil, fmt.Errorf("decode dump %s: %w", path, err)
	}
	if data == nil {
		data = map[string][]Row{}
	}
	return data, nil
}

// WriteDump writes data as indented JSON through a temporary file and a
// rename, so readers never see a partial dump.
func WriteDump(path string, data map[string][]Row) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	content, err := json.MarshalIndent(data, "", "  ")
	if err != nil {
		return err
	}
	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, content, 0o644); err != nil {
		return err
	}
	return os.Rename(tempPath, path)
}
