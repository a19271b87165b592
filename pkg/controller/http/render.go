package http

import (
	"context"
	"embed"
	"encoding/json"
	"html/template"
	"io/fs"
	"net/http"
	"time"

	"github.com/m-mizutani/goerr/v2"
	"github.com/prreminder/frontend/pkg/domain/model"
	"github.com/prreminder/frontend/pkg/usecase"
	"github.com/prreminder/frontend/pkg/utils/errutil"
	"github.com/prreminder/frontend/pkg/utils/format"
	"github.com/prreminder/frontend/pkg/utils/logging"
)

//go:embed templates
var templatesFS embed.FS

var pageNames = []string{
	"landing.html",
	"login.html",
	"callback.html",
	"onboarding.html",
	"email_setup.html",
	"dashboard.html",
	"notification.html",
	"settings.html",
}

func funcMap(now func() time.Time) template.FuncMap {
	return template.FuncMap{
		"deref":   format.SafeString,
		"timeAgo": func(ts string) string { return format.TimeAgo(ts, now()) },
		"author":  format.AuthorFromEmail,
		"repo":    format.RepoName,
		"title":   format.PRTitle,
		"number":  format.PRNumber,
		"status": func(s model.PRStatus) string {
			return format.PRStatus(string(s))
		},
		"initials":  format.Initials,
		"firstName": format.FirstName,
		"boolStr":   model.BoolString,
		"add":       func(a, b int) int { return a + b },
	}
}

// parsePages builds a template for each page by combining layout.html with the page template.
func parsePages(now func() time.Time) (map[string]*template.Template, error) {
	tmplFS, err := fs.Sub(templatesFS, "templates")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to bind templates dir")
	}

	layout, err := fs.ReadFile(tmplFS, "layout.html")
	if err != nil {
		return nil, goerr.Wrap(err, "failed to read layout")
	}

	pages := make(map[string]*template.Template, len(pageNames))
	for _, name := range pageNames {
		body, err := fs.ReadFile(tmplFS, name)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read page", goerr.V("page", name))
		}

		tmpl, err := template.New("layout.html").Funcs(funcMap(now)).Parse(string(layout))
		if err != nil {
			return nil, goerr.Wrap(err, "failed to parse layout", goerr.V("page", name))
		}
		if _, err := tmpl.New(name).Parse(string(body)); err != nil {
			return nil, goerr.Wrap(err, "failed to parse page", goerr.V("page", name))
		}
		pages[name] = tmpl
	}
	return pages, nil
}

// refresh is an HTML meta refresh, used for the timed redirects.
type refresh struct {
	Seconds int
	URL     string
}

type pageData struct {
	AppName string
	Title   string
	Path    string
	State   usecase.AuthState
	User    *model.User
	Flashes []model.Flash
	Refresh *refresh
	Data    any
}

func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name, title string, data any, rf *refresh) {
	ctx := r.Context()

	tmpl, ok := s.pages[name]
	if !ok {
		errutil.HandleHTTP(ctx, w, goerr.New("template not found", goerr.V("page", name)), http.StatusInternalServerError)
		return
	}

	page := pageData{
		AppName: s.ui.AppName,
		Title:   title,
		Path:    r.URL.Path,
		Refresh: rf,
		Data:    data,
	}
	if snap, ok := authFrom(ctx); ok {
		page.State = snap.State
		page.User = snap.User
	}
	if session := sessionFrom(ctx); session != nil {
		flashes, err := s.uc.Sessions.PopFlashes(ctx, session.ID)
		if err != nil {
			logging.From(ctx).Warn("failed to pop flashes", "error", err)
		}
		page.Flashes = flashes
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	if err := tmpl.ExecuteTemplate(w, "layout.html", page); err != nil {
		errutil.Handle(ctx, goerr.Wrap(err, "failed to render page", goerr.V("page", name)), "render error")
	}
}

func (s *Server) flash(r *http.Request, typ model.FlashType, title, description string) {
	ctx := r.Context()
	session := sessionFrom(ctx)
	if session == nil {
		return
	}
	if err := s.uc.Sessions.PushFlash(ctx, session.ID, model.NewFlash(typ, title, description)); err != nil {
		logging.From(ctx).Warn("failed to push flash", "error", err, "title", title)
	}
}

// seeOther finishes a POST action.
func seeOther(w http.ResponseWriter, r *http.Request, path string) {
	http.Redirect(w, r, path, http.StatusSeeOther)
}

// writeJSON writes a JSON response with proper error handling
func writeJSON(ctx context.Context, w http.ResponseWriter, statusCode int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		errutil.Handle(ctx, err, "failed to encode JSON response")
	}
}
