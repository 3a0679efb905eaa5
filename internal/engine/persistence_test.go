package engine

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/celerix-dev/celerix-finsync/pkg/schema"
)

func sampleEntries() []schema.LedgerEntry {
	return []schema.LedgerEntry{
		{
			ID:        "e2",
			UserEmail: "foo@bar.com",
			Kind:      schema.KindSavings,
			Category:  "Emergency",
			Amount:    decimal.RequireFromString("250.50"),
			Date:      schema.NewDate(2024, time.March, 2),
		},
		{
			ID:        "e1",
			UserEmail: "foo@bar.com",
			Kind:      schema.KindIncome,
			Category:  schema.RewardCategory,
			Amount:    decimal.NewFromInt(10),
			Date:      schema.NewDate(2024, time.March, 1),
		},
	}
}

func TestLedgerFiles_RoundTrip(t *testing.T) {
	p, err := NewLedgerFiles(t.TempDir(), []byte("secret"), nil)
	if err != nil {
		t.Fatalf("NewLedgerFiles failed: %v", err)
	}

	want := sampleEntries()
	if err := p.Save("foo@bar.com", want); err != nil {
		t.Fatalf("Save failed: %v", err)
	}

	got := p.Load("foo@bar.com")
	if len(got) != len(want) {
		t.Fatalf("Expected %d entries, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i].ID != want[i].ID || !got[i].Amount.Equal(want[i].Amount) || got[i].Date.String() != want[i].Date.String() {
			t.Errorf("Entry %d: expected %+v, got %+v", i, want[i], got[i])
		}
	}

	content, _ := os.ReadFile(p.Path("foo@bar.com"))
	if len(content) == 0 {
		t.Fatal("Expected wallet file on disk")
	}
	if strings.Contains(string(content), "Emergency") {
		t.Error("Wallet file should not contain plaintext")
	}
}

func TestLedgerFiles_MissingOrCorruptReadsEmpty(t *testing.T) {
	dir := t.TempDir()
	p, err := NewLedgerFiles(dir, []byte("secret"), nil)
	if err != nil {
		t.Fatalf("NewLedgerFiles failed: %v", err)
	}

	if got := p.Load("nobody@bar.com"); got == nil || len(got) != 0 {
		t.Errorf("Expected empty non-nil slice for missing file, got %v", got)
	}

	if err := os.WriteFile(p.Path("bad@bar.com"), []byte("not hex at all"), 0o600); err != nil {
		t.Fatal(err)
	}
	if got := p.Load("bad@bar.com"); len(got) != 0 {
		t.Errorf("Expected empty slice for corrupt file, got %v", got)
	}

	if err := p.Save("foo@bar.com", sampleEntries()); err != nil {
		t.Fatal(err)
	}
	other, err := NewLedgerFiles(dir, []byte("another secret"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if got := other.Load("foo@bar.com"); len(got) != 0 {
		t.Errorf("Expected empty slice when the key does not match, got %v", got)
	}
}

func TestLedgerFiles_FileNamePerUser(t *testing.T) {
	tests := []struct {
		email string
		want  string
	}{
		{"foo@bar.com", "wallet_foo_bar_com.enc"},
		{"Foo@Bar.com", "wallet_foo_bar_com.enc"},
		{" jane.doe+x@uni.edu ", "wallet_jane_doe_x_uni_edu.enc"},
	}
	for _, tt := range tests {
		if got := WalletFileName(tt.email); got != tt.want {
			t.Errorf("WalletFileName(%q) = %q, want %q", tt.email, got, tt.want)
		}
	}
}

func TestLedgerFiles_SaveFailureIsStorageError(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "wallets")
	p, err := NewLedgerFiles(dir, []byte("secret"), nil)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.RemoveAll(dir); err != nil {
		t.Fatal(err)
	}

	err = p.Save("foo@bar.com", sampleEntries())
	var se *StorageError
	if !errors.As(err, &se) {
		t.Fatalf("Expected *StorageError, got %v", err)
	}
}
