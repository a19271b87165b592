package format_test

import (
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/gt"
	"github.com/prreminder/frontend/pkg/utils/format"
)

func ptr(s string) *string { return &s }

func TestTimeAgo(t *testing.T) {
	now := time.Date(2024, 5, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		ts   string
		want string
	}{
		{"empty", "", "Unknown time"},
		{"invalid", "not-a-date", "Invalid date"},
		{"future", now.Add(time.Hour).Format(time.RFC3339), "Future date"},
		{"just now", now.Add(-30 * time.Second).Format(time.RFC3339), "just now"},
		{"90 seconds", now.Add(-90 * time.Second).Format(time.RFC3339), "1 minute ago"},
		{"minutes", now.Add(-5 * time.Minute).Format(time.RFC3339), "5 minutes ago"},
		{"one hour", now.Add(-time.Hour).Format(time.RFC3339), "1 hour ago"},
		{"hours", now.Add(-3 * time.Hour).Format(time.RFC3339), "3 hours ago"},
		{"days", now.Add(-2 * 24 * time.Hour).Format(time.RFC3339), "2 days ago"},
		{"weeks", now.Add(-15 * 24 * time.Hour).Format(time.RFC3339), "2 weeks ago"},
		{"naive timestamp", "2024-05-10T10:59:00.123456", "1 hour ago"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gt.Value(t, format.TimeAgo(tt.ts, now)).Equal(tt.want)
		})
	}
}

func TestTimeAgoMinutesPhrasing(t *testing.T) {
	now := time.Now()
	got := format.TimeAgo(now.Add(-90*time.Second).Format(time.RFC3339Nano), now)
	gt.Bool(t, strings.HasSuffix(got, "ago")).True()
	gt.String(t, got).Contains("minute")
}

func TestAuthorFromEmail(t *testing.T) {
	gt.Value(t, format.AuthorFromEmail("john.doe@github.com")).Equal("john-doe")
	gt.Value(t, format.AuthorFromEmail("jane-smith@github.com")).Equal("jane-smith")
	gt.Value(t, format.AuthorFromEmail("")).Equal("Unknown Author")
	gt.Value(t, format.AuthorFromEmail("   ")).Equal("Unknown Author")
	gt.Value(t, format.AuthorFromEmail("@github.com")).Equal("Unknown Author")
	gt.Value(t, format.AuthorFromEmail("no.at.sign")).Equal("no-at-sign")
}

func TestRepoName(t *testing.T) {
	gt.Value(t, format.RepoName(nil)).Equal("Unknown Repository")
	gt.Value(t, format.RepoName(ptr("  "))).Equal("Unknown Repository")
	gt.Value(t, format.RepoName(ptr(" frontend-app "))).Equal("frontend-app")
}

func TestPRTitle(t *testing.T) {
	gt.Value(t, format.PRTitle("")).Equal("Untitled PR")
	gt.Value(t, format.PRTitle("  Fix bug  ")).Equal("Fix bug")

	long := strings.Repeat("あ", format.MaxTitleLength+5)
	got := format.PRTitle(long)
	gt.Value(t, got).Equal(strings.Repeat("あ", format.MaxTitleLength) + "...")
}

func TestPRNumber(t *testing.T) {
	gt.Value(t, format.PRNumber(nil)).Equal("")
	gt.Value(t, format.PRNumber(ptr(""))).Equal("")
	gt.Value(t, format.PRNumber(ptr("123"))).Equal("#123")
	gt.Value(t, format.PRNumber(ptr("#456"))).Equal("#456")
}

func TestPRStatus(t *testing.T) {
	gt.Value(t, format.PRStatus("")).Equal("unknown")
	gt.Value(t, format.PRStatus("Opened")).Equal("open")
	gt.Value(t, format.PRStatus("open")).Equal("open")
	gt.Value(t, format.PRStatus(" MERGED ")).Equal("merged")
	gt.Value(t, format.PRStatus("draft")).Equal("draft")
}

func TestInitialsAndFirstName(t *testing.T) {
	gt.Value(t, format.Initials("john doe")).Equal("JD")
	gt.Value(t, format.Initials("")).Equal("")
	gt.Value(t, format.FirstName("John Doe")).Equal("John")
	gt.Value(t, format.FirstName("")).Equal("")
}
