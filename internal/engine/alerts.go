package engine

import (
	"context"
	"slices"

	"github.com/google/uuid"

	"github.com/celerix-dev/celerix-finsync/pkg/schema"
	"github.com/celerix-dev/celerix-finsync/pkg/tables"
)

func alertQuery(email string) tables.Query {
	return byUser(email).OrderBy("created_at", false)
}

// Alerts returns the alerts raised for a student, oldest first.
func (c *Core) Alerts(ctx context.Context, email string) []schema.Alert {
	email = schema.NormalizeEmail(email)
	if email == "" {
		return []schema.Alert{}
	}
	return userLoadOrFetch(ctx, c, &c.alerts, email, schema.TableAlerts, alertQuery(email))
}

// UnreadAlerts returns the student's alerts whose own read flag is unset.
func (c *Core) UnreadAlerts(ctx context.Context, email string) []schema.Alert {
	return slices.DeleteFunc(c.Alerts(ctx, email), func(a schema.Alert) bool { return a.Read })
}

// AddAlert appends an alert. Alerts are never deduplicated. The write is
// signed with signer's token, falling back to the student's.
func (c *Core) AddAlert(ctx context.Context, signer string, a schema.Alert) (schema.Alert, error) {
	a.UserEmail = schema.NormalizeEmail(a.UserEmail)
	if a.UserEmail == "" {
		return schema.Alert{}, ErrUnknownUser
	}
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = c.now().UTC()
	}
	signer = schema.NormalizeEmail(signer)
	if signer == "" {
		signer = a.UserEmail
	}
	out, ok := insert(ctx, c, schema.TableAlerts, "", signer, a)
	if !ok {
		return schema.Alert{}, ErrRemoteWrite
	}
	appendUser(&c.alerts, a.UserEmail, out[0])
	return out[0], nil
}

// AlertReads returns the alerts an educator has dismissed.
func (c *Core) AlertReads(ctx context.Context, educator string) []schema.AlertRead {
	educator = schema.NormalizeEmail(educator)
	if educator == "" {
		return []schema.AlertRead{}
	}
	return userLoadOrFetch(ctx, c, &c.alertReads, educator, schema.TableAlertReads,
		tables.Where(tables.Eq("educator_email", educator)))
}

// MarkAlertRead records that educator dismissed alertID. The alert itself is
// not modified; other educators keep their own read state.
func (c *Core) MarkAlertRead(ctx context.Context, educator, alertID string) error {
	educator = schema.NormalizeEmail(educator)
	if educator == "" {
		return ErrUnknownUser
	}
	r := schema.AlertRead{EducatorEmail: educator, AlertID: alertID, ReadAt: c.now().UTC()}
	out, ok := insert(ctx, c, schema.TableAlertReads, schema.ConflictKeys[schema.TableAlertReads], educator, r)
	if !ok {
		return ErrRemoteWrite
	}
	c.alertReads.Update(educator, func(cur []schema.AlertRead, ok bool) ([]schema.AlertRead, bool) {
		if !ok {
			return nil, false
		}
		if slices.ContainsFunc(cur, func(x schema.AlertRead) bool { return x.AlertID == alertID }) {
			return cur, true
		}
		return append(cur[:len(cur):len(cur)], out[0]), true
	})
	return nil
}

// UnreadAlertsFor returns the student's alerts the educator has not dismissed.
func (c *Core) UnreadAlertsFor(ctx context.Context, educator, student string) []schema.Alert {
	read := make(map[string]bool)
	for _, r := range c.AlertReads(ctx, educator) {
		read[r.AlertID] = true
	}
	return slices.DeleteFunc(c.Alerts(ctx, student), func(a schema.Alert) bool { return read[a.ID] })
}

// StoredProgress returns the last persisted or cached progress snapshot.
func (c *Core) StoredProgress(ctx context.Context, email string) (schema.StudentProgress, bool) {
	email = schema.NormalizeEmail(email)
	if email == "" {
		return schema.StudentProgress{}, false
	}
	if p, ok := c.progress.Get(email); ok {
		return p, true
	}
	return c.RefreshProgress(ctx, email)
}

// RefreshProgress re-reads the progress snapshot from the remote store and
// caches it. A failed or empty read leaves the cache as it was.
func (c *Core) RefreshProgress(ctx context.Context, email string) (schema.StudentProgress, bool) {
	email = schema.NormalizeEmail(email)
	rows, ok := fetch[schema.StudentProgress](ctx, c, schema.TableProgress, byUser(email).WithLimit(1), email)
	if !ok || len(rows) == 0 {
		return schema.StudentProgress{}, false
	}
	c.progress.Put(email, rows[0])
	return rows[0], true
}

// CacheProgress replaces the cached snapshot without touching the remote
// store. Used for optimistic updates.
func (c *Core) CacheProgress(p schema.StudentProgress) {
	p.UserEmail = schema.NormalizeEmail(p.UserEmail)
	if p.UserEmail == "" {
		return
	}
	c.progress.Put(p.UserEmail, p)
}

// SaveProgress upserts the snapshot by user and caches what the remote store
// returned.
func (c *Core) SaveProgress(ctx context.Context, p schema.StudentProgress) (schema.StudentProgress, error) {
	p.UserEmail = schema.NormalizeEmail(p.UserEmail)
	if p.UserEmail == "" {
		return schema.StudentProgress{}, ErrUnknownUser
	}
	if p.UpdatedAt.IsZero() {
		p.UpdatedAt = c.now().UTC()
	}
	out, ok := insert(ctx, c, schema.TableProgress, schema.ConflictKeys[schema.TableProgress], p.UserEmail, p)
	if !ok {
		return schema.StudentProgress{}, ErrRemoteWrite
	}
	c.progress.Put(p.UserEmail, out[0])
	return out[0], nil
}
