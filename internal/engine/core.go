package engine

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/celerix-dev/celerix-finsync/internal/workers"
	"github.com/celerix-dev/celerix-finsync/pkg/schema"
	"github.com/celerix-dev/celerix-finsync/pkg/tables"
)

// Core is the single point of access for every collection. It hides whether
// data came from memory, the wallet file or the network. Construct one at
// startup and share it.
type Core struct {
	remote tables.Store
	creds  tables.Credentials
	ledger LedgerStore
	pool   *workers.Pool
	log    *slog.Logger
	now    func() time.Time

	// Catalog snapshots, shared by every user.
	lessons   Slot[schema.Lesson]
	quizzes   Slot[schema.QuizDefinition]
	questions Slot[schema.QuizQuestion]
	jobs      Slot[schema.JobOpportunity]

	// Per-user snapshots keyed by normalized email.
	attempts    MapSlot[string, []schema.QuizAttempt]
	completions MapSlot[string, []schema.LessonCompletion]
	favorites   MapSlot[string, []schema.Favorite]
	goals       MapSlot[string, schema.BudgetGoal]
	alerts      MapSlot[string, []schema.Alert]
	alertReads  MapSlot[string, []schema.AlertRead] // keyed by educator
	progress    MapSlot[string, schema.StudentProgress]
	rewards     MapSlot[string, map[string]struct{}]

	prefetch   singleflight.Group
	prefetchMu sync.Mutex
	active     atomic.Pointer[schema.Identity]

	// Wallet partitions keyed by Identity.Key(). Guarded by walletMu.
	walletMu       sync.Mutex
	wallets        map[string][]schema.LedgerEntry
	walletSnapshot *walletSnapshot
}

// walletSnapshot is the remote wallet captured during prefetch.
type walletSnapshot struct {
	key     string
	entries []schema.LedgerEntry
}

// Option customizes a Core.
type Option func(*Core)

// WithCredentials sets the credential provider. Without one, every call is
// sent unsigned and writes are allowed.
func WithCredentials(c tables.Credentials) Option {
	return func(core *Core) { core.creds = c }
}

// WithPool sets the background pool used for fire-and-forget work.
func WithPool(p *workers.Pool) Option {
	return func(core *Core) { core.pool = p }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(core *Core) { core.log = l }
}

// WithClock overrides time.Now, for tests.
func WithClock(now func() time.Time) Option {
	return func(core *Core) { core.now = now }
}

// New creates a Core over a remote store and a local wallet store.
func New(remote tables.Store, ledger LedgerStore, opts ...Option) *Core {
	c := &Core{
		remote:  remote,
		ledger:  ledger,
		log:     slog.Default(),
		now:     time.Now,
		wallets: make(map[string][]schema.LedgerEntry),
	}
	for _, o := range opts {
		o(c)
	}
	if c.pool == nil {
		c.pool = workers.New(workers.DefaultSize, 30*time.Second, c.log)
	}
	return c
}

// Pool exposes the background pool so layered services share it.
func (c *Core) Pool() *workers.Pool { return c.pool }

// Now returns the Core's clock reading.
func (c *Core) Now() time.Time { return c.now() }

// ActiveUser returns the identity of the last prefetch, if any.
func (c *Core) ActiveUser() (schema.Identity, bool) {
	if id := c.active.Load(); id != nil {
		return *id, true
	}
	return schema.Identity{}, false
}

// readCred returns the user's token, or the service key for reads.
func (c *Core) readCred(ctx context.Context, email string) string {
	if c.creds == nil {
		return ""
	}
	if email != "" {
		if t, ok := c.creds.UserToken(ctx, email); ok {
			return t
		}
	}
	return c.creds.ServiceKey()
}

// writeCred returns the user's token. The service key never signs writes.
func (c *Core) writeCred(ctx context.Context, email string) (string, bool) {
	if c.creds == nil {
		return "", true
	}
	if email == "" {
		return "", false
	}
	return c.creds.UserToken(ctx, email)
}

// fetch reads and decodes a table in a single round trip, logging failures.
// Callers degrade to empty when ok is false.
func fetch[T any](ctx context.Context, c *Core, table string, q tables.Query, email string) ([]T, bool) {
	items, err := tables.FetchAs[T](tables.SingleAttempt(ctx), c.remote, table, q, c.readCred(ctx, email))
	if err != nil {
		c.log.Warn("remote fetch failed", "table", table, "user", email, "err", err)
		return []T{}, false
	}
	return items, true
}

// insert writes records and decodes the returned rows. An empty response
// counts as failure.
func insert[T any](ctx context.Context, c *Core, table, onConflict, email string, records ...T) ([]T, bool) {
	cred, ok := c.writeCred(ctx, email)
	if !ok {
		c.log.Warn("remote insert skipped", "table", table, "user", email, "err", tables.ErrNoCredential)
		return nil, false
	}
	out, err := tables.InsertAs(ctx, c.remote, table, onConflict, cred, records...)
	if err == nil && len(out) == 0 {
		err = tables.ErrEmptyResult
	}
	if err != nil {
		c.log.Warn("remote insert failed", "table", table, "user", email, "err", err)
		return nil, false
	}
	return out, true
}

// remove deletes rows matching q, logging failures.
func (c *Core) remove(ctx context.Context, table string, q tables.Query, email string) bool {
	cred, ok := c.writeCred(ctx, email)
	if !ok {
		c.log.Warn("remote delete skipped", "table", table, "user", email, "err", tables.ErrNoCredential)
		return false
	}
	if err := c.remote.Delete(ctx, table, q, cred); err != nil {
		c.log.Warn("remote delete failed", "table", table, "user", email, "err", err)
		return false
	}
	return true
}

// loadOrFetch returns the slot snapshot or fills a cold slot from the remote
// store. A failed fetch leaves the slot cold so the next call retries.
func loadOrFetch[T any](ctx context.Context, c *Core, s *Slot[T], table string, q tables.Query) []T {
	if v, ok := s.Load(); ok {
		return v
	}
	items, ok := fetch[T](ctx, c, table, q, "")
	if ok {
		s.Store(items)
	}
	return items
}

// userLoadOrFetch is loadOrFetch for per-user slots.
func userLoadOrFetch[T any](ctx context.Context, c *Core, m *MapSlot[string, []T], email, table string, q tables.Query) []T {
	if v, ok := m.Get(email); ok {
		return cloneOrEmpty(v)
	}
	items, ok := fetch[T](ctx, c, table, q, email)
	if ok {
		m.Put(email, items)
	}
	return cloneOrEmpty(items)
}

// appendUser appends item to a populated per-user snapshot. A cold entry is
// left cold; the next read fetches the new row from the remote store.
func appendUser[T any](m *MapSlot[string, []T], email string, item T) {
	m.Update(email, func(cur []T, ok bool) ([]T, bool) {
		if !ok {
			return nil, false
		}
		return append(cur[:len(cur):len(cur)], item), true
	})
}

func cloneOrEmpty[T any](v []T) []T {
	out := make([]T, len(v))
	copy(out, v)
	return out
}
