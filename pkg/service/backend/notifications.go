package backend

import (
	"context"
	"fmt"
	"mime"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/prreminder/frontend/pkg/domain/model"
)

// listQuery renders the list filters as backend query parameters. Unset
// optional filters are omitted.
func listQuery(f model.NotificationFilters) url.Values {
	q := url.Values{}
	if f.Status != "" {
		q.Set("status_filter", f.Status.String())
	}
	if f.RepoFilter != "" {
		q.Set("repo_filter", f.RepoFilter)
	}
	if f.DaysOld != nil {
		q.Set("days_old", strconv.Itoa(*f.DaysOld))
	}
	if f.SlackSent != nil {
		q.Set("slack_sent", strconv.FormatBool(*f.SlackSent))
	}
	if f.IsForwarded != nil {
		q.Set("is_forwarded", strconv.FormatBool(*f.IsForwarded))
	}
	if f.Page > 0 {
		q.Set("page", strconv.Itoa(f.Page))
	}
	if f.Limit > 0 {
		q.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.SortBy != "" {
		q.Set("sort_by", f.SortBy)
	}
	if f.SortOrder != "" {
		q.Set("sort_order", f.SortOrder)
	}
	return q
}

func notificationPath(id string) string {
	return "/pr/notifications/" + url.PathEscape(id)
}

func (c *Client) ListNotifications(ctx context.Context, filters model.NotificationFilters) (*model.NotificationList, error) {
	var resp model.NotificationList
	req := request{
		op:     "list_notifications",
		method: http.MethodGet,
		path:   "/pr/notifications",
		query:  listQuery(filters),
	}
	if err := c.do(ctx, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) GetNotification(ctx context.Context, id string) (*model.PRNotification, error) {
	var resp model.PRNotification
	if err := c.do(ctx, request{op: "get_notification", method: http.MethodGet, path: notificationPath(id)}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) DeleteNotification(ctx context.Context, id string) (*model.MessageResponse, error) {
	var resp model.MessageResponse
	if err := c.do(ctx, request{op: "delete_notification", method: http.MethodDelete, path: notificationPath(id)}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) MarkSlackSent(ctx context.Context, id string) (*model.MessageResponse, error) {
	var resp model.MessageResponse
	req := request{op: "mark_slack_sent", method: http.MethodPost, path: notificationPath(id) + "/mark-slack-sent"}
	if err := c.do(ctx, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

type bulkRequest struct {
	NotificationIDs []string `json:"notification_ids"`
}

func (c *Client) BulkDelete(ctx context.Context, ids []string) (*model.BulkActionResult, error) {
	var resp model.BulkActionResult
	req := request{
		op:     "bulk_delete",
		method: http.MethodPost,
		path:   "/pr/notifications/bulk-delete",
		body:   bulkRequest{NotificationIDs: ids},
	}
	if err := c.do(ctx, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) BulkMarkSlackSent(ctx context.Context, ids []string) (*model.BulkActionResult, error) {
	var resp model.BulkActionResult
	req := request{
		op:     "bulk_mark_slack_sent",
		method: http.MethodPost,
		path:   "/pr/notifications/bulk-mark-slack-sent",
		body:   bulkRequest{NotificationIDs: ids},
	}
	if err := c.do(ctx, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) Search(ctx context.Context, query model.SearchQuery) (*model.SearchResult, error) {
	q := url.Values{}
	q.Set("q", query.Query)
	if len(query.Fields) > 0 {
		q.Set("fields", strings.Join(query.Fields, ","))
	}
	if query.DateFrom != "" {
		q.Set("date_from", query.DateFrom)
	}
	if query.DateTo != "" {
		q.Set("date_to", query.DateTo)
	}
	if query.Exact {
		q.Set("exact", "true")
	}

	var resp model.SearchResult
	if err := c.do(ctx, request{op: "search", method: http.MethodGet, path: "/pr/search", query: q}, &resp); err != nil {
		return nil, err
	}
	if resp.Query == "" {
		resp.Query = query.Query
	}
	return &resp, nil
}

func (c *Client) Stats(ctx context.Context) (*model.Stats, error) {
	var resp model.Stats
	if err := c.do(ctx, request{op: "stats", method: http.MethodGet, path: "/pr/stats"}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) RepositoryStats(ctx context.Context, repo string) (*model.RepositoryStats, error) {
	var resp model.RepositoryStats
	req := request{
		op:     "repository_stats",
		method: http.MethodGet,
		// Repository names contain a slash, which is kept as a path separator.
		path: "/pr/repositories/" + escapeRepo(repo) + "/stats",
	}
	if err := c.do(ctx, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func escapeRepo(repo string) string {
	parts := strings.Split(repo, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}

func (c *Client) Summary(ctx context.Context, days int) (*model.Summary, error) {
	q := url.Values{}
	if days > 0 {
		q.Set("days", strconv.Itoa(days))
	}

	var resp model.Summary
	if err := c.do(ctx, request{op: "summary", method: http.MethodGet, path: "/pr/summary", query: q}, &resp); err != nil {
		return nil, err
	}
	if resp.Days == 0 {
		resp.Days = days
	}
	return &resp, nil
}

func (c *Client) Repositories(ctx context.Context) ([]string, error) {
	var resp model.RepositoryNames
	if err := c.do(ctx, request{op: "repositories", method: http.MethodGet, path: "/pr/repositories"}, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) PendingSlack(ctx context.Context, limit int) ([]model.PRNotification, error) {
	q := url.Values{}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var resp model.NotificationSet
	if err := c.do(ctx, request{op: "pending_slack", method: http.MethodGet, path: "/pr/pending-slack", query: q}, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) OldPRs(ctx context.Context, query model.OldPRQuery) ([]model.PRNotification, error) {
	q := url.Values{}
	if query.DaysOld > 0 {
		q.Set("days_old", strconv.Itoa(query.DaysOld))
	}
	if query.Status != "" {
		q.Set("status_filter", query.Status.String())
	}
	if query.Limit > 0 {
		q.Set("limit", strconv.Itoa(query.Limit))
	}

	var resp model.NotificationSet
	if err := c.do(ctx, request{op: "old_prs", method: http.MethodGet, path: "/pr/old-prs", query: q}, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Export downloads the payload as-is without decoding it.
func (c *Client) Export(ctx context.Context, query model.ExportQuery) (*model.Export, error) {
	format := query.Format
	if format == "" {
		format = "csv"
	}

	q := url.Values{}
	q.Set("format", format)
	if query.Days > 0 {
		q.Set("days", strconv.Itoa(query.Days))
	}
	if query.RepoFilter != "" {
		q.Set("repo_filter", query.RepoFilter)
	}

	resp, err := c.send(ctx, request{op: "export", method: http.MethodGet, path: "/pr/export", query: q})
	if err != nil {
		return nil, err
	}

	export := &model.Export{
		ContentType: resp.header.Get("Content-Type"),
		Filename:    fmt.Sprintf("pr-notifications.%s", format),
		Body:        resp.body,
	}
	if export.ContentType == "" {
		export.ContentType = "application/octet-stream"
	}
	if cd := resp.header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil && params["filename"] != "" {
			export.Filename = params["filename"]
		}
	}

	return export, nil
}
