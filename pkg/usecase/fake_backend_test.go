package usecase_test

import (
	"context"
	"net/http"
	"sort"
	"sync"

	"github.com/prreminder/frontend/pkg/domain/model"
	"github.com/prreminder/frontend/pkg/service/backend"
)

// fakeBackend implements backend.Service over an in-memory notification set.
// Methods not overridden here panic through the nil embedded interface.
type fakeBackend struct {
	backend.Service

	mu            sync.Mutex
	tokens        backend.TokenStore
	user          *model.User
	userErr       error
	refreshToken  string
	refreshErr    error
	notifications []model.PRNotification
	listErr       error
	deleteErr     error
	notifyErr     map[string]error
	slackAuthURL  *model.SlackAuthURL
	slackAuthErr  error

	// beforeList, when set, runs before every list call returns.
	beforeList func(filters model.NotificationFilters)
	beforeUser func()

	listCalls     []model.NotificationFilters
	userCalls     int
	refreshCalls  int
	searchCalls   []model.SearchQuery
	bulkSentCalls [][]string
	notified      []model.PRNotificationRequest
	disconnects   int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{notifyErr: map[string]error{}}
}

func (f *fakeBackend) bind(tokens backend.TokenStore) backend.Service {
	f.mu.Lock()
	f.tokens = tokens
	f.mu.Unlock()
	return f
}

func apiErr(status int, detail string) error {
	return &backend.APIError{Detail: detail, StatusCode: status}
}

func (f *fakeBackend) GetCurrentUser(ctx context.Context) (*model.User, error) {
	f.mu.Lock()
	f.userCalls++
	hook := f.beforeUser
	f.mu.Unlock()

	if hook != nil {
		hook()
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.userErr != nil {
		return nil, f.userErr
	}
	return f.user.Clone(), nil
}

func (f *fakeBackend) RefreshToken(ctx context.Context) (*model.AuthResponse, error) {
	f.mu.Lock()
	f.refreshCalls++
	token, err, tokens := f.refreshToken, f.refreshErr, f.tokens
	f.mu.Unlock()

	if err != nil {
		return nil, err
	}
	if err := tokens.SetToken(ctx, token); err != nil {
		return nil, err
	}
	return &model.AuthResponse{AccessToken: token, TokenType: "bearer"}, nil
}

func (f *fakeBackend) GoogleLoginURL() string {
	return "http://backend.test/api/v1/auth/google/login"
}

func (f *fakeBackend) SlackAuthURL(ctx context.Context) (*model.SlackAuthURL, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.slackAuthErr != nil {
		return nil, f.slackAuthErr
	}
	return f.slackAuthURL, nil
}

func (f *fakeBackend) DisconnectSlack(ctx context.Context) (*model.MessageResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnects++
	if f.user != nil {
		f.user.SlackConnection = nil
	}
	return &model.MessageResponse{Message: "disconnected"}, nil
}

func (f *fakeBackend) TestSlack(ctx context.Context, message string) (*model.MessageResponse, error) {
	return &model.MessageResponse{Message: "sent: " + message}, nil
}

func (f *fakeBackend) ListNotifications(ctx context.Context, filters model.NotificationFilters) (*model.NotificationList, error) {
	f.mu.Lock()
	f.listCalls = append(f.listCalls, filters)
	hook := f.beforeList
	f.mu.Unlock()

	if hook != nil {
		hook(filters)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.listErr != nil {
		return nil, f.listErr
	}

	var matched []model.PRNotification
	for _, n := range f.notifications {
		if filters.Status != "" && n.PRStatus != filters.Status {
			continue
		}
		if filters.RepoFilter != "" && (n.RepoName == nil || *n.RepoName != filters.RepoFilter) {
			continue
		}
		if filters.SlackSent != nil && n.SlackSent != *filters.SlackSent {
			continue
		}
		matched = append(matched, n)
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].ID < matched[j].ID })

	limit := filters.Limit
	if limit <= 0 {
		limit = model.DefaultPageLimit
	}
	total := len(matched)
	pages := (total + limit - 1) / limit
	start := (filters.Page - 1) * limit
	end := min(start+limit, total)
	var page []model.PRNotification
	if start < total {
		page = matched[start:end]
	}

	return &model.NotificationList{
		Notifications: page,
		Limit:         limit,
		PageInfo: model.PageInfo{
			TotalCount:  total,
			CurrentPage: filters.Page,
			TotalPages:  pages,
			HasNext:     filters.Page < pages,
			HasPrevious: filters.Page > 1,
		},
	}, nil
}

func (f *fakeBackend) DeleteNotification(ctx context.Context, id string) (*model.MessageResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return nil, f.deleteErr
	}
	for i, n := range f.notifications {
		if n.ID == id {
			f.notifications = append(f.notifications[:i], f.notifications[i+1:]...)
			return &model.MessageResponse{Message: "deleted"}, nil
		}
	}
	return nil, apiErr(http.StatusNotFound, "Notification not found")
}

func (f *fakeBackend) MarkSlackSent(ctx context.Context, id string) (*model.MessageResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := range f.notifications {
		if f.notifications[i].ID == id {
			f.notifications[i].SlackSent = true
			return &model.MessageResponse{Message: "marked"}, nil
		}
	}
	return nil, apiErr(http.StatusNotFound, "Notification not found")
}

func (f *fakeBackend) BulkDelete(ctx context.Context, ids []string) (*model.BulkActionResult, error) {
	for _, id := range ids {
		if _, err := f.DeleteNotification(ctx, id); err != nil {
			return nil, err
		}
	}
	return &model.BulkActionResult{Message: "deleted", Count: len(ids)}, nil
}

func (f *fakeBackend) BulkMarkSlackSent(ctx context.Context, ids []string) (*model.BulkActionResult, error) {
	f.mu.Lock()
	f.bulkSentCalls = append(f.bulkSentCalls, append([]string(nil), ids...))
	f.mu.Unlock()
	for _, id := range ids {
		if _, err := f.MarkSlackSent(ctx, id); err != nil {
			return nil, err
		}
	}
	return &model.BulkActionResult{Message: "marked", Count: len(ids)}, nil
}

func (f *fakeBackend) Search(ctx context.Context, q model.SearchQuery) (*model.SearchResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.searchCalls = append(f.searchCalls, q)

	var matched []model.PRNotification
	for _, n := range f.notifications {
		if n.PRTitle == q.Query {
			matched = append(matched, n)
		}
	}
	return &model.SearchResult{Query: q.Query, Notifications: matched, TotalMatches: len(matched) + 10}, nil
}

func (f *fakeBackend) Stats(ctx context.Context) (*model.Stats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return &model.Stats{TotalNotifications: len(f.notifications)}, nil
}

func (f *fakeBackend) Summary(ctx context.Context, days int) (*model.Summary, error) {
	return &model.Summary{Days: days}, nil
}

func (f *fakeBackend) Repositories(ctx context.Context) ([]string, error) {
	return nil, apiErr(http.StatusInternalServerError, "HTTP 500: Internal Server Error")
}

func (f *fakeBackend) RepositoryStats(ctx context.Context, repo string) (*model.RepositoryStats, error) {
	return &model.RepositoryStats{RepoName: repo}, nil
}

func (f *fakeBackend) PendingSlack(ctx context.Context, limit int) ([]model.PRNotification, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var pending []model.PRNotification
	for _, n := range f.notifications {
		if !n.SlackSent {
			pending = append(pending, n)
		}
	}
	return pending, nil
}

func (f *fakeBackend) OldPRs(ctx context.Context, q model.OldPRQuery) ([]model.PRNotification, error) {
	return []model.PRNotification{{ID: "old-1", PRStatus: q.Status}}, nil
}

func (f *fakeBackend) NotifyPR(ctx context.Context, req model.PRNotificationRequest) (*model.MessageResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.notifyErr[req.PRTitle]; err != nil {
		return nil, err
	}
	f.notified = append(f.notified, req)
	return &model.MessageResponse{Message: "sent"}, nil
}

func strPtr(s string) *string { return &s }

func notification(id, repo string, status model.PRStatus) model.PRNotification {
	return model.PRNotification{
		ID:       id,
		RepoName: strPtr(repo),
		PRTitle:  "PR " + id,
		PRLink:   strPtr("https://github.com/" + repo + "/pull/" + id),
		PRStatus: status,
	}
}
