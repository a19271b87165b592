package usecase

import (
	"context"

	"github.com/prreminder/frontend/pkg/domain/model"
	"github.com/prreminder/frontend/pkg/utils/logging"
	"golang.org/x/sync/errgroup"
)

// Insights are the dashboard side panels. A panel whose fetch failed is
// left nil and hidden.
type Insights struct {
	Stats           *model.Stats
	Summary         *model.Summary
	Repositories    []string
	RepositoryStats *model.RepositoryStats
	Pending         []model.PRNotification
	StalePRs        []model.PRNotification
	StaleDays       int
}

// InsightOptions select what the panels show.
type InsightOptions struct {
	SummaryDays  int
	RepoFilter   string
	PendingLimit int
	StaleLimit   int
	Preferences  model.Preferences
}

// LoadInsights fetches the panels in parallel. It never fails as a whole.
func (q *NotificationQuery) LoadInsights(ctx context.Context, opts InsightOptions) *Insights {
	logger := logging.From(ctx)
	out := &Insights{}

	// Each goroutine writes a distinct field.
	var eg errgroup.Group

	eg.Go(func() error {
		stats, err := q.LoadStats(ctx)
		if err != nil {
			logger.Warn("failed to load stats", "error", err)
			return nil
		}
		out.Stats = stats
		return nil
	})

	eg.Go(func() error {
		summary, err := q.api.Summary(ctx, opts.SummaryDays)
		if err != nil {
			logger.Warn("failed to load summary", "error", err, "days", opts.SummaryDays)
			return nil
		}
		out.Summary = summary
		return nil
	})

	eg.Go(func() error {
		repos, err := q.api.Repositories(ctx)
		if err != nil {
			logger.Warn("failed to load repositories", "error", err)
			return nil
		}
		out.Repositories = repos
		return nil
	})

	if opts.RepoFilter != "" {
		eg.Go(func() error {
			stats, err := q.api.RepositoryStats(ctx, opts.RepoFilter)
			if err != nil {
				logger.Warn("failed to load repository stats", "error", err, "repo", opts.RepoFilter)
				return nil
			}
			out.RepositoryStats = stats
			return nil
		})
	}

	if opts.PendingLimit > 0 {
		eg.Go(func() error {
			pending, err := q.api.PendingSlack(ctx, opts.PendingLimit)
			if err != nil {
				logger.Warn("failed to load pending notifications", "error", err)
				return nil
			}
			out.Pending = pending
			return nil
		})
	}

	if opts.Preferences.RemindersEnabled && opts.Preferences.ReminderDays > 0 {
		out.StaleDays = opts.Preferences.ReminderDays
		eg.Go(func() error {
			stale, err := q.api.OldPRs(ctx, model.OldPRQuery{
				DaysOld: opts.Preferences.ReminderDays,
				Status:  model.PRStatusOpened,
				Limit:   opts.StaleLimit,
			})
			if err != nil {
				logger.Warn("failed to load stale PRs", "error", err)
				return nil
			}
			out.StalePRs = stale
			return nil
		})
	}

	_ = eg.Wait()
	return out
}
