package engine

import (
	"context"
	"slices"

	"github.com/google/uuid"

	"github.com/celerix-dev/celerix-finsync/pkg/schema"
	"github.com/celerix-dev/celerix-finsync/pkg/tables"
)

// Jobs returns the job board, newest first.
func (c *Core) Jobs(ctx context.Context) []schema.JobOpportunity {
	return loadOrFetch(ctx, c, &c.jobs, schema.TableJobs, tables.Query{}.OrderBy("published_at", true))
}

// Job looks up one listing by id.
func (c *Core) Job(ctx context.Context, id string) (schema.JobOpportunity, bool) {
	for _, j := range c.Jobs(ctx) {
		if j.ID == id {
			return j, true
		}
	}
	return schema.JobOpportunity{}, false
}

// SyncJobs upserts a batch of listings by id. Listings already in the
// snapshot are replaced in place; new ones are appended.
func (c *Core) SyncJobs(ctx context.Context, author string, batch []schema.JobOpportunity) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}
	for i := range batch {
		if batch[i].ID == "" {
			batch[i].ID = uuid.NewString()
		}
	}
	out, ok := insert(ctx, c, schema.TableJobs, schema.ConflictKeys[schema.TableJobs], schema.NormalizeEmail(author), batch...)
	if !ok {
		return 0, ErrRemoteWrite
	}
	c.jobs.Update(func(cur []schema.JobOpportunity) []schema.JobOpportunity {
		next := slices.Clone(cur)
		for _, j := range out {
			i := slices.IndexFunc(next, func(x schema.JobOpportunity) bool { return x.ID == j.ID })
			if i >= 0 {
				next[i] = j
			} else {
				next = append(next, j)
			}
		}
		return next
	})
	return len(out), nil
}

// Favorites returns the user's job bookmarks.
func (c *Core) Favorites(ctx context.Context, email string) []schema.Favorite {
	email = schema.NormalizeEmail(email)
	if email == "" {
		return []schema.Favorite{}
	}
	return userLoadOrFetch(ctx, c, &c.favorites, email, schema.TableFavorites, byUser(email))
}

// IsFavorite reports whether the user bookmarked the job.
func (c *Core) IsFavorite(ctx context.Context, email, jobID string) bool {
	return slices.ContainsFunc(c.Favorites(ctx, email), func(f schema.Favorite) bool { return f.JobID == jobID })
}

// ToggleFavorite flips the bookmark and reports the new state. The cache is
// updated before the remote call and is not rolled back if that call fails;
// ErrRemoteWrite is returned in that case with the optimistic state.
//
// When the current favorites cannot be loaded the direction of the toggle is
// unknown, so nothing is written and ErrRemoteWrite is returned.
func (c *Core) ToggleFavorite(ctx context.Context, email, jobID string) (bool, error) {
	email = schema.NormalizeEmail(email)
	if email == "" {
		return false, ErrUnknownUser
	}
	// Warm the slot so the optimistic update has something to apply to.
	c.Favorites(ctx, email)
	if _, ok := c.favorites.Get(email); !ok {
		return false, ErrRemoteWrite
	}

	var saved, applied bool
	c.favorites.Update(email, func(cur []schema.Favorite, ok bool) ([]schema.Favorite, bool) {
		applied = ok
		if !ok {
			// Evicted since the warm-up; stay cold rather than publish a partial list.
			return nil, false
		}
		i := slices.IndexFunc(cur, func(f schema.Favorite) bool { return f.JobID == jobID })
		if i >= 0 {
			saved = false
			return slices.Delete(slices.Clone(cur), i, i+1), true
		}
		saved = true
		fav := schema.Favorite{UserEmail: email, JobID: jobID, CreatedAt: c.now().UTC()}
		return append(cur[:len(cur):len(cur)], fav), true
	})
	if !applied {
		return false, ErrRemoteWrite
	}

	if saved {
		fav := schema.Favorite{UserEmail: email, JobID: jobID, CreatedAt: c.now().UTC()}
		if _, ok := insert(ctx, c, schema.TableFavorites, schema.ConflictKeys[schema.TableFavorites], email, fav); !ok {
			return saved, ErrRemoteWrite
		}
		return saved, nil
	}
	q := tables.Where(tables.Eq("user_email", email), tables.Eq("job_id", jobID))
	if !c.remove(ctx, schema.TableFavorites, q, email) {
		return saved, ErrRemoteWrite
	}
	return saved, nil
}

// LogActivity appends one row to the user's activity log.
func (c *Core) LogActivity(ctx context.Context, email, activity string, details map[string]any) error {
	email = schema.NormalizeEmail(email)
	if email == "" {
		return ErrUnknownUser
	}
	row := schema.ActivityLogEntry{
		ID:           uuid.NewString(),
		UserEmail:    email,
		ActivityType: activity,
		Details:      details,
		CreatedAt:    c.now().UTC(),
	}
	if _, ok := insert(ctx, c, schema.TableActivityLog, "", email, row); !ok {
		return ErrRemoteWrite
	}
	return nil
}

// JobApplications reconstructs the user's application history from the
// activity log. It is read live and never cached.
func (c *Core) JobApplications(ctx context.Context, email string) []schema.ActivityLogEntry {
	email = schema.NormalizeEmail(email)
	if email == "" {
		return []schema.ActivityLogEntry{}
	}
	q := tables.Where(
		tables.Eq("user_email", email),
		tables.Eq("activity_type", schema.ActivityJobApplication),
	).OrderBy("created_at", true)
	rows, _ := fetch[schema.ActivityLogEntry](ctx, c, schema.TableActivityLog, q, email)
	return rows
}
