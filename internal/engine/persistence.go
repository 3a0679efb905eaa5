package engine

import (
	"encoding/json"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sync"

	"github.com/celerix-dev/celerix-finsync/internal/vault"
	"github.com/celerix-dev/celerix-finsync/pkg/schema"
)

var unsafeFileChars = regexp.MustCompile(`[^a-z0-9]`)

// LedgerFiles keeps one encrypted wallet file per user on disk.
type LedgerFiles struct {
	DataDir string
	key     []byte
	log     *slog.Logger
	mu      sync.Mutex // Protects concurrent writes to the filesystem
}

// NewLedgerFiles initializes the wallet file store. secret is the fixed
// application secret the encryption key is derived from.
func NewLedgerFiles(dir string, secret []byte, log *slog.Logger) (*LedgerFiles, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, &StorageError{Path: dir, Err: err}
	}
	key, err := vault.DeriveKey(secret, "finsync-wallet-v1")
	if err != nil {
		return nil, err
	}
	if log == nil {
		log = slog.Default()
	}
	return &LedgerFiles{DataDir: dir, key: key, log: log}, nil
}

// WalletFileName maps an email to its file name: case-folded, with every
// non-alphanumeric character replaced.
func WalletFileName(email string) string {
	return "wallet_" + unsafeFileChars.ReplaceAllString(schema.NormalizeEmail(email), "_") + ".enc"
}

// Path returns the wallet file path for email.
func (p *LedgerFiles) Path(email string) string {
	return filepath.Join(p.DataDir, WalletFileName(email))
}

// Load reads and decrypts the user's wallet. Any failure reads as empty.
func (p *LedgerFiles) Load(email string) []schema.LedgerEntry {
	path := p.Path(email)
	content, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			p.log.Warn("could not read wallet file", "path", path, "err", err)
		}
		return []schema.LedgerEntry{}
	}

	plaintext, err := vault.Decrypt(string(content), p.key)
	if err != nil {
		p.log.Warn("could not decrypt wallet file", "path", path, "err", err)
		return []schema.LedgerEntry{}
	}

	var entries []schema.LedgerEntry
	if err := json.Unmarshal(plaintext, &entries); err != nil {
		p.log.Warn("could not decode wallet file", "path", path, "err", err)
		return []schema.LedgerEntry{}
	}
	if entries == nil {
		entries = []schema.LedgerEntry{}
	}
	return entries
}

// Save encrypts and writes the user's wallet atomically.
func (p *LedgerFiles) Save(email string, entries []schema.LedgerEntry) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	filePath := p.Path(email)
	tempPath := filePath + ".tmp"

	if entries == nil {
		entries = []schema.LedgerEntry{}
	}
	plaintext, err := json.Marshal(entries)
	if err != nil {
		return &StorageError{Path: filePath, Err: err}
	}
	blob, err := vault.Encrypt(plaintext, p.key)
	if err != nil {
		return &StorageError{Path: filePath, Err: err}
	}

	// Write to a temporary file first, then rename so a crash leaves either
	// the old wallet or the new one.
	if err := os.WriteFile(tempPath, []byte(blob), 0o600); err != nil {
		return &StorageError{Path: tempPath, Err: err}
	}
	if err := os.Rename(tempPath, filePath); err != nil {
		return &StorageError{Path: filePath, Err: err}
	}
	return nil
}
