package engine

import (
	"context"
	"fmt"
	"slices"

	"github.com/google/uuid"

	"github.com/celerix-dev/celerix-finsync/pkg/schema"
)

// LoadWallet returns the user's ledger, most recent first.
//
// A partition already in memory is returned as is. Otherwise the remote
// snapshot taken by the last prefetch is used when it belongs to the active
// user, else the remote store is queried. An empty or failed remote read
// falls back to the local wallet file. Whatever source answered is written
// back to memory, and remote data is written through to the local file.
//
// The only error is a *StorageError from that write-through.
func (c *Core) LoadWallet(ctx context.Context, user schema.Identity) ([]schema.LedgerEntry, error) {
	user = user.Normalized()
	if !user.Known() {
		return []schema.LedgerEntry{}, nil
	}
	c.walletMu.Lock()
	defer c.walletMu.Unlock()

	entries, err := c.loadWalletLocked(ctx, user)
	return slices.Clone(entries), err
}

func (c *Core) loadWalletLocked(ctx context.Context, user schema.Identity) ([]schema.LedgerEntry, error) {
	key := user.Key()
	if entries, ok := c.wallets[key]; ok {
		return entries, nil
	}

	var (
		entries []schema.LedgerEntry
		source  string
	)
	if snap := c.walletSnapshot; snap != nil && snap.key == key && c.isActive(user) {
		entries, source = snap.entries, "prefetch"
		c.walletSnapshot = nil
	} else {
		entries, _ = fetch[schema.LedgerEntry](ctx, c, schema.TableWallet, walletQuery(user.Email), user.Email)
		source = "remote"
	}

	if len(entries) == 0 {
		entries = c.ledger.Load(user.Email)
		c.wallets[key] = entries
		c.log.Debug("wallet loaded", "user", user.Email, "source", "local", "entries", len(entries))
		return entries, nil
	}

	c.wallets[key] = entries
	c.log.Debug("wallet loaded", "user", user.Email, "source", source, "entries", len(entries))
	if err := c.ledger.Save(user.Email, entries); err != nil {
		c.log.Error("wallet write-through failed", "user", user.Email, "err", err)
		return entries, err
	}
	return entries, nil
}

func (c *Core) isActive(user schema.Identity) bool {
	active, ok := c.ActiveUser()
	return ok && active.Key() == user.Key()
}

// AddLedgerEntry validates the entry, inserts it remotely and, on success,
// prepends it to the user's partition and re-persists the partition to the
// local wallet file. A failed remote insert leaves both untouched and
// returns ErrRemoteWrite. A failed local write returns a *StorageError.
func (c *Core) AddLedgerEntry(ctx context.Context, user schema.Identity, e schema.LedgerEntry) (schema.LedgerEntry, error) {
	user = user.Normalized()
	if !user.Known() {
		return schema.LedgerEntry{}, ErrUnknownUser
	}
	e.UserEmail = user.Email
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	now := c.now().UTC()
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now
	}
	if e.Date.IsZero() {
		e.Date = schema.DateOf(now)
	}
	if err := e.Validate(); err != nil {
		return schema.LedgerEntry{}, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}

	c.walletMu.Lock()
	defer c.walletMu.Unlock()

	current, err := c.loadWalletLocked(ctx, user)
	if err != nil {
		return schema.LedgerEntry{}, err
	}
	out, ok := insert(ctx, c, schema.TableWallet, "", user.Email, e)
	if !ok {
		return schema.LedgerEntry{}, ErrRemoteWrite
	}
	saved := out[0]

	next := make([]schema.LedgerEntry, 0, len(current)+1)
	next = append(next, saved)
	next = append(next, current...)
	c.wallets[user.Key()] = next

	if err := c.ledger.Save(user.Email, next); err != nil {
		c.log.Error("wallet save failed", "user", user.Email, "err", err)
		return saved, err
	}
	return saved, nil
}

// ForgetWallet drops the user's in-memory partition. The local file stays.
func (c *Core) ForgetWallet(user schema.Identity) {
	c.walletMu.Lock()
	defer c.walletMu.Unlock()
	delete(c.wallets, user.Key())
}

// BudgetGoal returns the user's budget goal, if one exists.
func (c *Core) BudgetGoal(ctx context.Context, email string) (schema.BudgetGoal, bool) {
	email = schema.NormalizeEmail(email)
	if email == "" {
		return schema.BudgetGoal{}, false
	}
	if g, ok := c.goals.Get(email); ok {
		return g, true
	}
	goals, ok := fetch[schema.BudgetGoal](ctx, c, schema.TableBudgetGoals, byUser(email).WithLimit(1), email)
	if !ok || len(goals) == 0 {
		return schema.BudgetGoal{}, false
	}
	c.goals.Put(email, goals[0])
	return goals[0], true
}

// UpsertBudgetGoal writes the user's single budget goal.
func (c *Core) UpsertBudgetGoal(ctx context.Context, g schema.BudgetGoal) (schema.BudgetGoal, error) {
	g.UserEmail = schema.NormalizeEmail(g.UserEmail)
	g.UpdatedAt = c.now().UTC()
	if err := g.Validate(); err != nil {
		return schema.BudgetGoal{}, fmt.Errorf("%w: %v", ErrInvalidEntry, err)
	}
	out, ok := insert(ctx, c, schema.TableBudgetGoals, schema.ConflictKeys[schema.TableBudgetGoals], g.UserEmail, g)
	if !ok {
		return schema.BudgetGoal{}, ErrRemoteWrite
	}
	c.goals.Put(g.UserEmail, out[0])
	return out[0], nil
}
