// Package format holds the display helpers used by the page templates.
// Every helper is total: malformed input yields a placeholder, never a panic.
package format

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	unknownTime       = "Unknown time"
	invalidDate       = "Invalid date"
	futureDate        = "Future date"
	unknownAuthor     = "Unknown Author"
	unknownRepository = "Unknown Repository"
	untitledPR        = "Untitled PR"
	unknownStatus     = "unknown"

	// MaxTitleLength is the rune count after which PR titles are truncated.
	MaxTitleLength = 100
)

// timestamp layouts accepted from the backend. Naive timestamps are read as UTC.
var layouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999",
	"2006-01-02",
}

// ParseTime parses a backend timestamp.
func ParseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var lastErr error
	for _, layout := range layouts {
		t, err := time.Parse(layout, s)
		if err == nil {
			return t, nil
		}
		lastErr = err
	}
	return time.Time{}, lastErr
}

// TimeAgo renders the distance between ts and now ("5 minutes ago").
func TimeAgo(ts string, now time.Time) string {
	if strings.TrimSpace(ts) == "" {
		return unknownTime
	}

	t, err := ParseTime(ts)
	if err != nil {
		return invalidDate
	}

	diff := now.Sub(t)
	if diff < 0 {
		return futureDate
	}

	minutes := int(diff / time.Minute)
	hours := int(diff / time.Hour)
	days := int(diff / (24 * time.Hour))
	weeks := days / 7

	switch {
	case minutes < 1:
		return "just now"
	case minutes < 60:
		return plural(minutes, "minute") + " ago"
	case hours < 24:
		return plural(hours, "hour") + " ago"
	case days < 7:
		return plural(days, "day") + " ago"
	default:
		return plural(weeks, "week") + " ago"
	}
}

func plural(n int, unit string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}

// AuthorFromEmail derives a display handle from a sender address:
// the local part with dots replaced by dashes.
func AuthorFromEmail(email string) string {
	email = strings.TrimSpace(email)
	if email == "" {
		return unknownAuthor
	}

	local, _, found := strings.Cut(email, "@")
	if !found {
		return strings.ReplaceAll(email, ".", "-")
	}
	if strings.TrimSpace(local) == "" {
		return unknownAuthor
	}
	return strings.ReplaceAll(local, ".", "-")
}

// RepoName returns name trimmed, or a placeholder.
func RepoName(name *string) string {
	if name == nil || strings.TrimSpace(*name) == "" {
		return unknownRepository
	}
	return strings.TrimSpace(*name)
}

// PRTitle trims title and truncates it to MaxTitleLength runes.
func PRTitle(title string) string {
	title = strings.TrimSpace(title)
	if title == "" {
		return untitledPR
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return string([]rune(title)[:MaxTitleLength]) + "..."
	}
	return title
}

// PRNumber renders a PR number with a leading '#'.
func PRNumber(number *string) string {
	if number == nil {
		return ""
	}
	n := strings.TrimSpace(*number)
	if n == "" {
		return ""
	}
	if !strings.HasPrefix(n, "#") {
		return "#" + n
	}
	return n
}

// PRStatus normalizes a status for badges. "open" and "opened"
// both render as "open".
func PRStatus(status string) string {
	s := strings.ToLower(strings.TrimSpace(status))
	switch s {
	case "":
		return unknownStatus
	case "open", "opened":
		return "open"
	default:
		return s
	}
}

// SafeString dereferences s, returning "" for nil.
func SafeString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// Initials returns the upper-cased first letters of each word in name.
func Initials(name string) string {
	var b strings.Builder
	for _, part := range strings.Fields(name) {
		r, _ := utf8.DecodeRuneInString(part)
		b.WriteString(strings.ToUpper(string(r)))
	}
	return b.String()
}

// FirstName returns the first word of name.
func FirstName(name string) string {
	fields := strings.Fields(name)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
