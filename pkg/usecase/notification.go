package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"

	"github.com/m-mizutani/goerr/v2"
	"github.com/prreminder/frontend/pkg/domain/model"
	"github.com/prreminder/frontend/pkg/service/backend"
	"github.com/prreminder/frontend/pkg/utils/format"
	"github.com/prreminder/frontend/pkg/utils/logging"
	"golang.org/x/sync/errgroup"
)

// ViewState is the top-level state of the notification list. Exactly one
// applies at a time.
type ViewState string

const (
	ViewLoading ViewState = "loading"
	ViewError   ViewState = "error"
	ViewEmpty   ViewState = "empty"
	ViewReady   ViewState = "ready"
)

// SearchView describes an active full-text search.
type SearchView struct {
	Query        string
	Fields       []string
	TotalMatches int
}

// NotificationView is a snapshot of the query controller.
type NotificationView struct {
	Filters       model.NotificationFilters
	Notifications []model.PRNotification
	Page          model.PageInfo
	IsLoading     bool
	Error         string
	Search        *SearchView
}

// State resolves the mutually exclusive list state. Loading wins over an
// error, and an error wins over an empty result.
func (v NotificationView) State() ViewState {
	switch {
	case v.IsLoading:
		return ViewLoading
	case v.Error != "":
		return ViewError
	case len(v.Notifications) == 0:
		return ViewEmpty
	default:
		return ViewReady
	}
}

// ActionResult is the outcome of a row mutation. Mutations never return an
// error to their caller.
type ActionResult struct {
	Success bool
	Error   string
	Count   int
}

func failed(err error) ActionResult {
	return ActionResult{Error: err.Error()}
}

// ReminderResult summarizes a pending-reminder run.
type ReminderResult struct {
	Sent   int
	Failed int
	Errors []string
}

const (
	pendingReminderLimit  = 50
	reminderParallelism   = 4
	defaultSearchFieldSet = "pr_title,repo_name,subject,sender_email"
)

// NotificationQuery owns the filter and pagination state of one session's
// notification list.
type NotificationQuery struct {
	api      backend.Service
	defaults model.NotificationFilters

	mu            sync.Mutex
	filters       model.NotificationFilters
	notifications []model.PRNotification
	page          model.PageInfo
	err           string
	search        *SearchView
	issued        uint64
	settled       uint64
	unseen        bool
}

func NewNotificationQuery(api backend.Service, defaults model.NotificationFilters) *NotificationQuery {
	return &NotificationQuery{
		api:      api,
		defaults: defaults,
		filters:  defaults,
	}
}

func (q *NotificationQuery) snapshotLocked() NotificationView {
	v := NotificationView{
		Filters:       q.filters,
		Notifications: append([]model.PRNotification(nil), q.notifications...),
		Page:          q.page,
		IsLoading:     q.settled != q.issued,
		Error:         q.err,
	}
	if q.search != nil {
		s := *q.search
		v.Search = &s
	}
	return v
}

// Snapshot returns the current state without fetching.
func (q *NotificationQuery) Snapshot() NotificationView {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.snapshotLocked()
}

// begin tags a new request. Only the latest tag may write results.
func (q *NotificationQuery) begin() uint64 {
	q.issued++
	return q.issued
}

// settle records the completion of request seq. It reports false when a
// newer request was issued since, in which case the result is dropped.
func (q *NotificationQuery) settle(seq uint64) bool {
	if seq != q.issued {
		return false
	}
	q.settled = seq
	return true
}

func (q *NotificationQuery) fetch(ctx context.Context, filters model.NotificationFilters) (NotificationView, error) {
	q.mu.Lock()
	seq := q.begin()
	q.filters = filters
	q.search = nil
	q.mu.Unlock()

	list, err := q.api.ListNotifications(ctx, filters)

	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.settle(seq) {
		logging.From(ctx).Debug("dropping superseded notification page", "seq", seq, "latest", q.issued)
		return q.snapshotLocked(), errSuperseded
	}
	if err != nil {
		// Previous page stays visible under the error banner.
		q.err = err.Error()
		return q.snapshotLocked(), err
	}

	q.err = ""
	q.notifications = list.Notifications
	q.page = list.PageInfo
	q.unseen = true
	return q.snapshotLocked(), nil
}

// Load fetches the current page under the current filters.
func (q *NotificationQuery) Load(ctx context.Context) (NotificationView, error) {
	q.mu.Lock()
	filters := q.filters
	q.mu.Unlock()
	return q.fetch(ctx, filters)
}

// View returns the state for rendering. A result that has not been shown
// yet is returned as-is; otherwise the list is reloaded so that changes
// made elsewhere become visible.
func (q *NotificationQuery) View(ctx context.Context) NotificationView {
	q.mu.Lock()
	if q.unseen {
		q.unseen = false
		v := q.snapshotLocked()
		q.mu.Unlock()
		return v
	}
	search := q.search
	q.mu.Unlock()

	var err error
	if search != nil {
		err = q.runSearch(ctx, model.SearchQuery{Query: search.Query, Fields: search.Fields})
	} else {
		_, err = q.Load(ctx)
	}
	if err != nil && !errors.Is(err, errSuperseded) {
		logging.From(ctx).Warn("failed to load notifications", "error", err)
	}

	q.mu.Lock()
	defer q.mu.Unlock()
	q.unseen = false
	return q.snapshotLocked()
}

// UpdateFilters merges u, resets to page 1 and fetches. The merged filters
// become current immediately so a later change builds on them even while
// this fetch is in flight.
func (q *NotificationQuery) UpdateFilters(ctx context.Context, u model.FilterUpdate) (NotificationView, error) {
	q.mu.Lock()
	next := q.filters.Apply(u)
	q.mu.Unlock()

	if err := next.Validate(); err != nil {
		return q.Snapshot(), err
	}
	return q.fetch(ctx, next)
}

// ResetFilters restores the default filters and fetches page 1.
func (q *NotificationQuery) ResetFilters(ctx context.Context) (NotificationView, error) {
	return q.fetch(ctx, q.defaults)
}

// ChangePage fetches page n under the current filters. Pages outside
// [1, totalPages] of the last response are rejected without a request.
func (q *NotificationQuery) ChangePage(ctx context.Context, n int) (NotificationView, error) {
	q.mu.Lock()
	total := q.page.TotalPages
	filters := q.filters
	q.mu.Unlock()

	if n < 1 || n > total {
		return q.Snapshot(), goerr.Wrap(ErrPageOutOfRange, "page is not available",
			goerr.V("page", n),
			goerr.V("total_pages", total),
		)
	}
	return q.fetch(ctx, filters.WithPage(n))
}

// SearchNotifications replaces the page with full-text matches. A blank
// query leaves search mode and reloads the filtered list.
func (q *NotificationQuery) SearchNotifications(ctx context.Context, query string, fields []string) (NotificationView, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return q.Load(ctx)
	}
	if len(fields) == 0 {
		fields = strings.Split(defaultSearchFieldSet, ",")
	}

	err := q.runSearch(ctx, model.SearchQuery{Query: query, Fields: fields})
	return q.Snapshot(), err
}

func (q *NotificationQuery) runSearch(ctx context.Context, query model.SearchQuery) error {
	q.mu.Lock()
	seq := q.begin()
	q.mu.Unlock()

	result, err := q.api.Search(ctx, query)

	q.mu.Lock()
	defer q.mu.Unlock()

	if !q.settle(seq) {
		return errSuperseded
	}
	if err != nil {
		q.err = err.Error()
		return err
	}

	q.err = ""
	q.notifications = result.Notifications
	q.page = model.PageInfo{
		TotalCount:  result.TotalMatches,
		CurrentPage: 1,
		TotalPages:  1,
	}
	q.search = &SearchView{Query: query.Query, Fields: query.Fields, TotalMatches: result.TotalMatches}
	q.unseen = true
	return nil
}

// ClearSearch leaves search mode.
func (q *NotificationQuery) ClearSearch(ctx context.Context) (NotificationView, error) {
	return q.Load(ctx)
}

// reload refreshes whatever the list currently shows after a mutation.
func (q *NotificationQuery) reload(ctx context.Context) {
	q.mu.Lock()
	search := q.search
	q.mu.Unlock()

	var err error
	if search != nil {
		err = q.runSearch(ctx, model.SearchQuery{Query: search.Query, Fields: search.Fields})
	} else {
		_, err = q.Load(ctx)
	}
	if err != nil && !errors.Is(err, errSuperseded) {
		logging.From(ctx).Warn("failed to reload notifications after mutation", "error", err)
	}
}

// DeleteNotification deletes one record and reloads the page so counts
// stay accurate.
func (q *NotificationQuery) DeleteNotification(ctx context.Context, id string) ActionResult {
	if _, err := q.api.DeleteNotification(ctx, id); err != nil {
		return failed(err)
	}
	q.reload(ctx)
	return ActionResult{Success: true, Count: 1}
}

// MarkSlackSent marks one record as delivered and reloads the page.
func (q *NotificationQuery) MarkSlackSent(ctx context.Context, id string) ActionResult {
	if _, err := q.api.MarkSlackSent(ctx, id); err != nil {
		return failed(err)
	}
	q.reload(ctx)
	return ActionResult{Success: true, Count: 1}
}

func (q *NotificationQuery) BulkDelete(ctx context.Context, ids []string) ActionResult {
	ids = compactIDs(ids)
	if len(ids) == 0 {
		return failed(ErrNoSelection)
	}
	resp, err := q.api.BulkDelete(ctx, ids)
	if err != nil {
		return failed(err)
	}
	q.reload(ctx)
	return ActionResult{Success: true, Count: bulkCount(resp, ids)}
}

func (q *NotificationQuery) BulkMarkSlackSent(ctx context.Context, ids []string) ActionResult {
	ids = compactIDs(ids)
	if len(ids) == 0 {
		return failed(ErrNoSelection)
	}
	resp, err := q.api.BulkMarkSlackSent(ctx, ids)
	if err != nil {
		return failed(err)
	}
	q.reload(ctx)
	return ActionResult{Success: true, Count: bulkCount(resp, ids)}
}

func bulkCount(resp *model.BulkActionResult, ids []string) int {
	if resp != nil && resp.Count > 0 {
		return resp.Count
	}
	return len(ids)
}

// compactIDs drops blanks and duplicates, keeping order.
func compactIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// LoadStats fetches the global aggregate. Pagination state is untouched.
func (q *NotificationQuery) LoadStats(ctx context.Context) (*model.Stats, error) {
	return q.api.Stats(ctx)
}

// Get fetches a single notification.
func (q *NotificationQuery) Get(ctx context.Context, id string) (*model.PRNotification, error) {
	return q.api.GetNotification(ctx, id)
}

// Export downloads notifications in the requested format.
func (q *NotificationQuery) Export(ctx context.Context, query model.ExportQuery) (*model.Export, error) {
	return q.api.Export(ctx, query)
}

// SendPendingReminders posts every undelivered notification to Slack, marks
// the delivered ones as sent and reloads the list.
func (q *NotificationQuery) SendPendingReminders(ctx context.Context) (*ReminderResult, error) {
	pending, err := q.api.PendingSlack(ctx, pendingReminderLimit)
	if err != nil {
		return nil, err
	}

	result := &ReminderResult{}
	if len(pending) == 0 {
		return result, nil
	}

	var mu sync.Mutex
	var sent []string

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(reminderParallelism)
	for _, n := range pending {
		eg.Go(func() error {
			req := model.PRNotificationRequest{
				RepoName: format.RepoName(n.RepoName),
				PRTitle:  n.PRTitle,
				PRURL:    format.SafeString(n.PRLink),
			}
			_, err := q.api.NotifyPR(egCtx, req)

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Failed++
				result.Errors = append(result.Errors, err.Error())
				return nil
			}
			sent = append(sent, n.ID)
			return nil
		})
	}
	_ = eg.Wait()

	result.Sent = len(sent)
	if len(sent) > 0 {
		if _, err := q.api.BulkMarkSlackSent(ctx, sent); err != nil {
			return result, err
		}
	}

	q.reload(ctx)
	return result, nil
}

// Reset drops all state back to the defaults.
func (q *NotificationQuery) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.issued++
	q.settled = q.issued
	q.filters = q.defaults
	q.notifications = nil
	q.page = model.PageInfo{}
	q.err = ""
	q.search = nil
	q.unseen = false
}
