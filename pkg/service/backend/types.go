package backend

import (
	"context"

	"github.com/prreminder/frontend/pkg/domain/model"
)

// DefaultBaseURL is the local development backend.
const DefaultBaseURL = "http://localhost:8000"

// APIPrefix is the versioned path prefix of every backend endpoint.
const APIPrefix = "/api/v1"

// DefaultTestMessage is sent by TestSlack when no message is given.
const DefaultTestMessage = "Test notification from PR Reminder! 🚀"

// TokenStore is the durable home of the bearer credential. The client reads
// it on every call and writes it only through SetAuthToken and
// ClearAuthToken.
type TokenStore interface {
	Token(ctx context.Context) (string, error)
	SetToken(ctx context.Context, token string) error
	ClearToken(ctx context.Context) error
}

// Service is the PR Reminder backend API.
type Service interface {
	// Identity
	GetCurrentUser(ctx context.Context) (*model.User, error)
	RefreshToken(ctx context.Context) (*model.AuthResponse, error)
	GoogleLoginURL() string
	SetAuthToken(ctx context.Context, token string) error
	ClearAuthToken(ctx context.Context) error

	// Slack integration
	SlackAuthURL(ctx context.Context) (*model.SlackAuthURL, error)
	SlackConnection(ctx context.Context) (*model.SlackConnection, error)
	DisconnectSlack(ctx context.Context) (*model.MessageResponse, error)
	TestSlack(ctx context.Context, message string) (*model.MessageResponse, error)
	NotifyPR(ctx context.Context, req model.PRNotificationRequest) (*model.MessageResponse, error)
	SlackHealth(ctx context.Context) (*model.SlackHealth, error)

	// PR notifications
	ListNotifications(ctx context.Context, filters model.NotificationFilters) (*model.NotificationList, error)
	GetNotification(ctx context.Context, id string) (*model.PRNotification, error)
	DeleteNotification(ctx context.Context, id string) (*model.MessageResponse, error)
	MarkSlackSent(ctx context.Context, id string) (*model.MessageResponse, error)
	BulkDelete(ctx context.Context, ids []string) (*model.BulkActionResult, error)
	BulkMarkSlackSent(ctx context.Context, ids []string) (*model.BulkActionResult, error)
	Search(ctx context.Context, query model.SearchQuery) (*model.SearchResult, error)
	Stats(ctx context.Context) (*model.Stats, error)
	RepositoryStats(ctx context.Context, repo string) (*model.RepositoryStats, error)
	Summary(ctx context.Context, days int) (*model.Summary, error)
	Repositories(ctx context.Context) ([]string, error)
	PendingSlack(ctx context.Context, limit int) ([]model.PRNotification, error)
	OldPRs(ctx context.Context, query model.OldPRQuery) ([]model.PRNotification, error)
	Export(ctx context.Context, query model.ExportQuery) (*model.Export, error)
}

// StaticToken is a read-only TokenStore holding a fixed credential.
type StaticToken string

func (s StaticToken) Token(context.Context) (string, error) { return string(s), nil }

func (s StaticToken) SetToken(context.Context, string) error { return ErrReadOnlyToken }

func (s StaticToken) ClearToken(context.Context) error { return ErrReadOnlyToken }
