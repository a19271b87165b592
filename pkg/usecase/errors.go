package usecase

import "errors"

// Sentinel errors for use case layer
var (
	// Precondition errors, detected without calling the backend
	ErrPageOutOfRange    = errors.New("page out of range")
	ErrNoSelection       = errors.New("no notifications selected")
	ErrNotAuthenticated  = errors.New("not authenticated")
	ErrMissingAuthURL    = errors.New("backend returned no authorization URL")
	ErrInvalidPreference = errors.New("invalid preference")

	// Superseded fetches are dropped silently; callers only see this in logs
	errSuperseded = errors.New("superseded by a newer request")
)

// Context keys for error values
const (
	SessionIDKey      = "session_id"
	NotificationIDKey = "notification_id"
)
