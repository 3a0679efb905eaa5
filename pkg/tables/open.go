package tables

import (
	"fmt"
	"net/url"
	"strings"
)

// Open returns the Store addr points at, so callers don't care whether it is
// local or remote.
//   - http:// or https:// selects the remote Client.
//   - file://<path> selects an embedded MemTable loaded from the dump file at
//     path; the returned close function writes it back.
//
// For a remote store close is a no-op.
func Open(addr, apiKey string, opts ...ClientOption) (Store, func() error, error) {
	u, err := url.Parse(addr)
	if err != nil {
		return nil, nil, fmt.Errorf("store address %q: %w", addr, err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return NewClient(addr, apiKey, opts...), func() error { return nil }, nil
	case "file":
		path := u.Path
		if u.Host != "" {
			// file://relative/path
			path = u.Host + u.Path
		}
		if path == "" {
			return nil, nil, fmt.Errorf("store address %q: missing path", addr)
		}
		data, err := ReadDump(path)
		if err != nil {
			return nil, nil, err
		}
		m := NewMemTable(data)
		return m, func() error { return WriteDump(path, m.Dump()) }, nil
	}
	return nil, nil, fmt.Errorf("store address %q: unsupported scheme %q", addr, u.Scheme)
}
