package http

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/m-mizutani/goerr/v2"
	"github.com/prreminder/frontend/pkg/domain/model"
	"github.com/prreminder/frontend/pkg/service/backend"
	"github.com/prreminder/frontend/pkg/usecase"
	"github.com/prreminder/frontend/pkg/utils/errutil"
	"github.com/prreminder/frontend/pkg/utils/logging"
	"golang.org/x/sync/errgroup"
)

var errInvalidForm = goerr.New("invalid form value")

type option struct {
	Value string
	Label string
}

var (
	statusOptions = []option{
		{"", "All"},
		{string(model.PRStatusOpened), "Open"},
		{string(model.PRStatusMerged), "Merged"},
		{string(model.PRStatusClosed), "Closed"},
		{string(model.PRStatusUpdated), "Updated"},
	}
	sortOptions = []option{
		{model.SortByReceivedAt, "Received"},
		{model.SortByRepoName, "Repository"},
		{model.SortByPRStatus, "Status"},
	}
	triStateOptions = []option{
		{"", "Any"},
		{"true", "Yes"},
		{"false", "No"},
	}
)

type dashboardData struct {
	View     usecase.NotificationView
	State    usecase.ViewState
	Insights *usecase.Insights

	StatusOptions []option
	SortOptions   []option
	TriState      []option
	Pages         []int
}

func pageNumbers(info model.PageInfo) []int {
	pages := make([]int, 0, info.TotalPages)
	for i := 1; i <= info.TotalPages; i++ {
		pages = append(pages, i)
	}
	return pages
}

// dashboardHandler loads the list and the side panels in parallel.
func (s *Server) dashboardHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	scope := s.scope(r)
	session, err := s.uc.Sessions.Get(ctx, scope.SessionID)
	if err != nil {
		errutil.HandleHTTP(ctx, w, err, http.StatusInternalServerError)
		return
	}

	var (
		view     usecase.NotificationView
		insights *usecase.Insights
	)
	filters := scope.Notifications.Snapshot().Filters

	var eg errgroup.Group
	eg.Go(func() error {
		view = scope.Notifications.View(ctx)
		return nil
	})
	eg.Go(func() error {
		insights = scope.Notifications.LoadInsights(ctx, usecase.InsightOptions{
			SummaryDays:  s.ui.SummaryDays,
			RepoFilter:   filters.RepoFilter,
			PendingLimit: s.ui.PendingLimit,
			StaleLimit:   s.ui.StaleLimit,
			Preferences:  session.Preferences,
		})
		return nil
	})
	_ = eg.Wait()

	s.render(w, r, http.StatusOK, "dashboard.html", "Dashboard", dashboardData{
		View:          view,
		State:         view.State(),
		Insights:      insights,
		StatusOptions: statusOptions,
		SortOptions:   sortOptions,
		TriState:      triStateOptions,
		Pages:         pageNumbers(view.Page),
	}, nil)
}

func parseOptionalBool(v string) (*bool, error) {
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, goerr.Wrap(errInvalidForm, "not a boolean", goerr.V("value", v))
	}
	return &b, nil
}

// parseFilterForm maps the filter form onto a partial update. Empty
// optional fields mean "any".
func parseFilterForm(r *http.Request) (model.FilterUpdate, error) {
	var u model.FilterUpdate
	if err := r.ParseForm(); err != nil {
		return u, goerr.Wrap(err, "failed to parse form")
	}
	form := r.PostForm

	if form.Has("status") {
		status, err := model.ParsePRStatus(form.Get("status"))
		if err != nil {
			return u, err
		}
		u.Status = &status
	}
	if form.Has("repo") {
		repo := strings.TrimSpace(form.Get("repo"))
		u.RepoFilter = &repo
	}

	if form.Has("days_old") {
		if v := strings.TrimSpace(form.Get("days_old")); v == "" {
			u.ClearDaysOld = true
		} else {
			days, err := strconv.Atoi(v)
			if err != nil {
				return u, goerr.Wrap(errInvalidForm, "days_old is not a number", goerr.V("value", v))
			}
			u.DaysOld = &days
		}
	}

	if form.Has("slack_sent") {
		if v := form.Get("slack_sent"); v == "" {
			u.ClearSlackSent = true
		} else {
			b, err := parseOptionalBool(v)
			if err != nil {
				return u, err
			}
			u.SlackSent = b
		}
	}
	if form.Has("is_forwarded") {
		if v := form.Get("is_forwarded"); v == "" {
			u.ClearIsForwarded = true
		} else {
			b, err := parseOptionalBool(v)
			if err != nil {
				return u, err
			}
			u.IsForwarded = b
		}
	}

	if v := form.Get("sort_by"); v != "" {
		u.SortBy = &v
	}
	if v := form.Get("sort_order"); v != "" {
		u.SortOrder = &v
	}
	if v := form.Get("limit"); v != "" {
		limit, err := strconv.Atoi(v)
		if err != nil {
			return u, goerr.Wrap(errInvalidForm, "limit is not a number", goerr.V("value", v))
		}
		u.Limit = &limit
	}
	return u, nil
}

func (s *Server) filtersHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	u, err := parseFilterForm(r)
	if err != nil {
		s.flash(r, model.FlashError, "Invalid filter", err.Error())
		seeOther(w, r, usecase.DashboardPath)
		return
	}
	if _, err := s.scope(r).Notifications.UpdateFilters(ctx, u); err != nil {
		logging.From(ctx).Info("filter update failed", "error", err)
		if errors.Is(err, model.ErrInvalidFilter) {
			s.flash(r, model.FlashError, "Invalid filter", err.Error())
		}
	}
	seeOther(w, r, usecase.DashboardPath)
}

func (s *Server) resetFiltersHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if _, err := s.scope(r).Notifications.ResetFilters(ctx); err != nil {
		logging.From(ctx).Info("filter reset failed", "error", err)
	}
	seeOther(w, r, usecase.DashboardPath)
}

// pageHandler ignores pages outside the known range.
func (s *Server) pageHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	n, err := strconv.Atoi(chi.URLParam(r, "n"))
	if err != nil {
		seeOther(w, r, usecase.DashboardPath)
		return
	}
	if _, err := s.scope(r).Notifications.ChangePage(ctx, n); err != nil {
		logging.From(ctx).Debug("page change rejected", "page", n, "error", err)
	}
	http.Redirect(w, r, usecase.DashboardPath, http.StatusFound)
}

func (s *Server) searchHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to parse form"), http.StatusBadRequest)
		return
	}
	if _, err := s.scope(r).Notifications.SearchNotifications(ctx, r.PostForm.Get("q"), r.PostForm["fields"]); err != nil {
		logging.From(ctx).Info("search failed", "error", err)
	}
	seeOther(w, r, usecase.DashboardPath)
}

func (s *Server) flashAction(r *http.Request, res usecase.ActionResult, ok, failed string) {
	if res.Success {
		s.flash(r, model.FlashSuccess, ok, "")
		return
	}
	s.flash(r, model.FlashError, failed, res.Error)
}

func (s *Server) deleteHandler(w http.ResponseWriter, r *http.Request) {
	res := s.scope(r).Notifications.DeleteNotification(r.Context(), chi.URLParam(r, "id"))
	s.flashAction(r, res, "Notification deleted", "Failed to delete notification")
	seeOther(w, r, backTo(r, usecase.DashboardPath))
}

func (s *Server) markSentHandler(w http.ResponseWriter, r *http.Request) {
	res := s.scope(r).Notifications.MarkSlackSent(r.Context(), chi.URLParam(r, "id"))
	s.flashAction(r, res, "Marked as sent to Slack", "Failed to mark notification")
	seeOther(w, r, backTo(r, usecase.DashboardPath))
}

func (s *Server) bulkHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if err := r.ParseForm(); err != nil {
		errutil.HandleHTTP(ctx, w, goerr.Wrap(err, "failed to parse form"), http.StatusBadRequest)
		return
	}

	ids := r.PostForm["ids"]
	query := s.scope(r).Notifications

	switch action := r.PostForm.Get("action"); action {
	case "delete":
		res := query.BulkDelete(ctx, ids)
		s.flashAction(r, res, fmt.Sprintf("Deleted %d notifications", res.Count), "Bulk delete failed")
	case "mark-slack-sent":
		res := query.BulkMarkSlackSent(ctx, ids)
		s.flashAction(r, res, fmt.Sprintf("Marked %d notifications as sent", res.Count), "Bulk update failed")
	default:
		errutil.HandleHTTP(ctx, w, goerr.Wrap(errInvalidForm, "unknown bulk action", goerr.V("action", action)), http.StatusBadRequest)
		return
	}
	seeOther(w, r, usecase.DashboardPath)
}

func (s *Server) remindHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	result, err := s.scope(r).Notifications.SendPendingReminders(ctx)
	switch {
	case err != nil:
		s.flash(r, model.FlashError, "Failed to send reminders", err.Error())
	case result.Sent == 0 && result.Failed == 0:
		s.flash(r, model.FlashInfo, "Nothing to send", "All notifications were already delivered to Slack.")
	case result.Failed > 0:
		s.flash(r, model.FlashError, fmt.Sprintf("Sent %d reminders, %d failed", result.Sent, result.Failed),
			strings.Join(result.Errors, "; "))
	default:
		s.flash(r, model.FlashSuccess, fmt.Sprintf("Sent %d reminders to Slack", result.Sent), "")
	}
	seeOther(w, r, usecase.DashboardPath)
}

func (s *Server) exportHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	query := model.ExportQuery{
		Format:     q.Get("format"),
		RepoFilter: q.Get("repo"),
	}
	if v := q.Get("days"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil || days < 0 {
			errutil.HandleHTTP(ctx, w, goerr.Wrap(errInvalidForm, "days is not a number", goerr.V("value", v)), http.StatusBadRequest)
			return
		}
		query.Days = days
	}

	export, err := s.scope(r).Notifications.Export(ctx, query)
	if err != nil {
		s.flash(r, model.FlashError, "Export failed", err.Error())
		seeOther(w, r, usecase.DashboardPath)
		return
	}

	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", export.Filename))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(export.Body); err != nil {
		logging.From(ctx).Warn("failed to write export", "error", err)
	}
}

type notificationData struct {
	Notification *model.PRNotification
}

func (s *Server) notificationHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	n, err := s.scope(r).Notifications.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		if backend.IsNotFound(err) {
			errutil.HandleHTTP(ctx, w, err, http.StatusNotFound)
			return
		}
		s.flash(r, model.FlashError, "Failed to load notification", err.Error())
		seeOther(w, r, usecase.DashboardPath)
		return
	}
	s.render(w, r, http.StatusOK, "notification.html", n.PRTitle, notificationData{Notification: n}, nil)
}
