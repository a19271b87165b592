package model

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/m-mizutani/goerr/v2"
)

// PRStatus is the lifecycle state of a pull request.
type PRStatus string

const (
	PRStatusOpened  PRStatus = "opened"
	PRStatusMerged  PRStatus = "merged"
	PRStatusClosed  PRStatus = "closed"
	PRStatusUpdated PRStatus = "updated"
)

// PRStatuses lists the canonical statuses in display order.
var PRStatuses = []PRStatus{PRStatusOpened, PRStatusMerged, PRStatusClosed, PRStatusUpdated}

var ErrInvalidPRStatus = goerr.New("invalid PR status")

// ParsePRStatus maps s to its canonical status. "open" is accepted as an
// alias of "opened"; "" and "all" yield the empty status (no filter).
func ParsePRStatus(s string) (PRStatus, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "all":
		return "", nil
	case "open", "opened":
		return PRStatusOpened, nil
	case "merged":
		return PRStatusMerged, nil
	case "closed":
		return PRStatusClosed, nil
	case "updated":
		return PRStatusUpdated, nil
	default:
		return "", goerr.Wrap(ErrInvalidPRStatus, "unknown status", goerr.V("status", s))
	}
}

func (s PRStatus) String() string { return string(s) }

// UnmarshalJSON accepts null and the "open" alias. Unknown values are kept
// as-is so a backend adding statuses does not break listing.
func (s *PRStatus) UnmarshalJSON(data []byte) error {
	if bytes.Equal(data, []byte("null")) {
		*s = ""
		return nil
	}
	var raw string
	if err := json.Unmarshal(data, &raw); err != nil {
		return goerr.Wrap(err, "PR status must be a string")
	}
	if parsed, err := ParsePRStatus(raw); err == nil {
		*s = parsed
		return nil
	}
	*s = PRStatus(strings.ToLower(strings.TrimSpace(raw)))
	return nil
}

// PRNotification is a pull request event extracted from an inbound email.
type PRNotification struct {
	ID             string   `json:"id"`
	RepoName       *string  `json:"repo_name"`
	PRTitle        string   `json:"pr_title"`
	PRLink         *string  `json:"pr_link"`
	PRNumber       *string  `json:"pr_number"`
	PRStatus       PRStatus `json:"pr_status"`
	SenderEmail    string   `json:"sender_email"`
	RecipientEmail string   `json:"recipient_email"`
	Subject        string   `json:"subject"`
	ReceivedAt     string   `json:"received_at"`
	MessageID      string   `json:"message_id"`
	SlackSent      bool     `json:"slack_sent"`
	IsForwarded    bool     `json:"is_forwarded"`
}

// NotificationSet decodes either a bare JSON array of notifications or an
// object carrying them under "notifications".
type NotificationSet []PRNotification

func (s *NotificationSet) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var items []PRNotification
		if err := json.Unmarshal(data, &items); err != nil {
			return goerr.Wrap(err, "failed to decode notification array")
		}
		*s = items
		return nil
	}

	var envelope struct {
		Notifications []PRNotification `json:"notifications"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return goerr.Wrap(err, "failed to decode notification envelope")
	}
	*s = envelope.Notifications
	return nil
}

// RepositoryNames decodes either a bare array of names or an object
// carrying them under "repositories".
type RepositoryNames []string

func (r *RepositoryNames) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var names []string
		if err := json.Unmarshal(data, &names); err != nil {
			return goerr.Wrap(err, "failed to decode repository array")
		}
		*r = names
		return nil
	}

	var envelope struct {
		Repositories []string `json:"repositories"`
	}
	if err := json.Unmarshal(data, &envelope); err != nil {
		return goerr.Wrap(err, "failed to decode repository envelope")
	}
	*r = envelope.Repositories
	return nil
}

// PageInfo is the pagination metadata of the latest list response.
type PageInfo struct {
	TotalCount  int  `json:"total_count"`
	CurrentPage int  `json:"page"`
	TotalPages  int  `json:"total_pages"`
	HasNext     bool `json:"has_next"`
	HasPrevious bool `json:"has_previous"`
}

// NotificationList is one page of notifications.
type NotificationList struct {
	Notifications []PRNotification `json:"notifications"`
	Limit         int              `json:"limit"`
	PageInfo
}

// SearchQuery is a full-text search request.
type SearchQuery struct {
	Query    string
	Fields   []string
	DateFrom string
	DateTo   string
	Exact    bool
}

// SearchResult holds full-text search matches.
type SearchResult struct {
	Query         string           `json:"query"`
	Notifications []PRNotification `json:"notifications"`
	TotalMatches  int              `json:"total_matches"`
}

// Stats is the global aggregate over the user's notifications.
type Stats struct {
	TotalNotifications  int            `json:"total_notifications"`
	SlackSent           int            `json:"slack_sent"`
	PendingSlack        int            `json:"pending_slack"`
	Forwarded           int            `json:"forwarded"`
	StatusBreakdown     map[string]int `json:"status_breakdown"`
	RepositoryBreakdown map[string]int `json:"repository_breakdown"`
	RecentActivity      int            `json:"recent_activity"`
}

// RepositoryStats is the aggregate for one repository.
type RepositoryStats struct {
	RepoName           string         `json:"repo_name"`
	TotalNotifications int            `json:"total_notifications"`
	SlackSent          int            `json:"slack_sent"`
	PendingSlack       int            `json:"pending_slack"`
	StatusBreakdown    map[string]int `json:"status_breakdown"`
	LatestActivity     string         `json:"latest_activity"`
}

// Summary aggregates activity within the last Days days.
type Summary struct {
	Days               int            `json:"days"`
	TotalNotifications int            `json:"total_notifications"`
	StatusBreakdown    map[string]int `json:"status_breakdown"`
	Repositories       int            `json:"repositories"`
	PendingSlack       int            `json:"pending_slack"`
}

// BulkActionResult is returned by bulk delete and bulk mark-sent.
type BulkActionResult struct {
	Message string `json:"message"`
	Count   int    `json:"count"`
}

// OldPRQuery selects PRs that have stayed in Status for at least DaysOld days.
type OldPRQuery struct {
	DaysOld int
	Status  PRStatus
	Limit   int
}

// ExportQuery selects the notifications to export.
type ExportQuery struct {
	Format     string
	Days       int
	RepoFilter string
}

// Export is a downloadable payload produced by the backend.
type Export struct {
	ContentType string
	Filename    string
	Body        []byte
}

// PRNotificationRequest asks the backend to post a PR to Slack.
type PRNotificationRequest struct {
	RepoName string `json:"repo_name"`
	PRTitle  string `json:"pr_title"`
	PRURL    string `json:"pr_url"`
}
