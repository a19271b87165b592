package model

import (
	"strconv"

	"github.com/m-mizutani/goerr/v2"
)

const (
	DefaultPageLimit = 20
	MaxPageLimit     = 100
)

// Sort keys accepted by the notification list.
const (
	SortByReceivedAt = "received_at"
	SortByRepoName   = "repo_name"
	SortByPRStatus   = "pr_status"
	SortOrderAsc     = "asc"
	SortOrderDesc    = "desc"
)

var ErrInvalidFilter = goerr.New("invalid notification filter")

// NotificationFilters is the active filter and pagination state of the
// notification list.
type NotificationFilters struct {
	Status      PRStatus
	RepoFilter  string
	DaysOld     *int
	SlackSent   *bool
	IsForwarded *bool
	SortBy      string
	SortOrder   string
	Page        int
	Limit       int
}

func DefaultFilters() NotificationFilters {
	return NotificationFilters{
		SortBy:    SortByReceivedAt,
		SortOrder: SortOrderDesc,
		Page:      1,
		Limit:     DefaultPageLimit,
	}
}

func (f NotificationFilters) Validate() error {
	if f.Page < 1 {
		return goerr.Wrap(ErrInvalidFilter, "page must be positive", goerr.V("page", f.Page))
	}
	if f.Limit < 1 || f.Limit > MaxPageLimit {
		return goerr.Wrap(ErrInvalidFilter, "limit out of range", goerr.V("limit", f.Limit))
	}
	if f.DaysOld != nil && *f.DaysOld < 0 {
		return goerr.Wrap(ErrInvalidFilter, "days_old must not be negative", goerr.V("days_old", *f.DaysOld))
	}
	switch f.SortBy {
	case "", SortByReceivedAt, SortByRepoName, SortByPRStatus:
	default:
		return goerr.Wrap(ErrInvalidFilter, "unsupported sort key", goerr.V("sort_by", f.SortBy))
	}
	switch f.SortOrder {
	case "", SortOrderAsc, SortOrderDesc:
	default:
		return goerr.Wrap(ErrInvalidFilter, "unsupported sort order", goerr.V("sort_order", f.SortOrder))
	}
	return nil
}

// FilterUpdate is a partial filter change. Nil fields are left untouched.
// Clear* flags reset the optional filters to "any".
type FilterUpdate struct {
	Status      *PRStatus
	RepoFilter  *string
	DaysOld     *int
	SlackSent   *bool
	IsForwarded *bool
	SortBy      *string
	SortOrder   *string
	Limit       *int

	ClearDaysOld     bool
	ClearSlackSent   bool
	ClearIsForwarded bool
}

// Apply merges u into f and resets the page to 1.
func (f NotificationFilters) Apply(u FilterUpdate) NotificationFilters {
	if u.Status != nil {
		f.Status = *u.Status
	}
	if u.RepoFilter != nil {
		f.RepoFilter = *u.RepoFilter
	}
	if u.ClearDaysOld {
		f.DaysOld = nil
	} else if u.DaysOld != nil {
		v := *u.DaysOld
		f.DaysOld = &v
	}
	if u.ClearSlackSent {
		f.SlackSent = nil
	} else if u.SlackSent != nil {
		v := *u.SlackSent
		f.SlackSent = &v
	}
	if u.ClearIsForwarded {
		f.IsForwarded = nil
	} else if u.IsForwarded != nil {
		v := *u.IsForwarded
		f.IsForwarded = &v
	}
	if u.SortBy != nil {
		f.SortBy = *u.SortBy
	}
	if u.SortOrder != nil {
		f.SortOrder = *u.SortOrder
	}
	if u.Limit != nil {
		f.Limit = *u.Limit
	}
	f.Page = 1
	return f
}

// WithPage returns a copy of f on page n.
func (f NotificationFilters) WithPage(n int) NotificationFilters {
	f.Page = n
	return f
}

// DaysOldString renders DaysOld for form values; empty means "any".
func (f NotificationFilters) DaysOldString() string {
	if f.DaysOld == nil {
		return ""
	}
	return strconv.Itoa(*f.DaysOld)
}

// BoolString renders an optional boolean filter for form values.
func BoolString(b *bool) string {
	if b == nil {
		return ""
	}
	return strconv.FormatBool(*b)
}
