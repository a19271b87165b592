package http

import (
	"net/http"
	"strconv"

	"github.com/prreminder/frontend/pkg/domain/model"
	"github.com/prreminder/frontend/pkg/usecase"
	"github.com/prreminder/frontend/pkg/utils/errutil"
	"github.com/prreminder/frontend/pkg/utils/logging"
	"golang.org/x/sync/errgroup"
)

type settingsData struct {
	Connection  *model.SlackConnection
	Health      *model.SlackHealth
	Preferences model.Preferences
	DayOptions  []int
}

func (s *Server) settingsHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.From(ctx)
	scope := s.scope(r)
	snap, _ := authFrom(ctx)

	session, err := s.uc.Sessions.Get(ctx, scope.SessionID)
	if err != nil {
		errutil.HandleHTTP(ctx, w, err, http.StatusInternalServerError)
		return
	}

	data := settingsData{
		Preferences: session.Preferences,
		DayOptions:  model.ReminderDayOptions,
	}

	var eg errgroup.Group
	eg.Go(func() error {
		health, err := scope.API.SlackHealth(ctx)
		if err != nil {
			logger.Warn("failed to load slack health", "error", err)
			return nil
		}
		data.Health = health
		return nil
	})
	if snap.User.HasSlackConnection() {
		eg.Go(func() error {
			conn, err := scope.API.SlackConnection(ctx)
			if err != nil {
				logger.Warn("failed to load slack connection", "error", err)
				data.Connection = snap.User.SlackConnection
				return nil
			}
			data.Connection = conn
			return nil
		})
	}
	_ = eg.Wait()

	s.render(w, r, http.StatusOK, "settings.html", "Settings", data, nil)
}

func (s *Server) disconnectSlackHandler(w http.ResponseWriter, r *http.Request) {
	if _, err := s.scope(r).Auth.DisconnectIntegration(r.Context()); err != nil {
		s.flash(r, model.FlashError, "Failed to disconnect Slack", err.Error())
	} else {
		s.flash(r, model.FlashSuccess, "Slack disconnected", "")
	}
	seeOther(w, r, usecase.SettingsPath)
}

func (s *Server) testSlackHandler(w http.ResponseWriter, r *http.Request) {
	resp, err := s.scope(r).Auth.TestNotification(r.Context(), r.FormValue("message"))
	if err != nil {
		s.flash(r, model.FlashError, "Test notification failed", err.Error())
	} else {
		s.flash(r, model.FlashSuccess, "Test notification sent", resp.Message)
	}
	seeOther(w, r, usecase.SettingsPath)
}

func (s *Server) remindersHandler(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	prefs := model.Preferences{
		RemindersEnabled: r.FormValue("reminders_enabled") != "",
	}
	if v := r.FormValue("reminder_days"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil {
			s.flash(r, model.FlashError, "Invalid reminder setting", "Reminder days must be a number.")
			seeOther(w, r, usecase.SettingsPath)
			return
		}
		prefs.ReminderDays = days
	}

	if err := s.uc.Sessions.SetPreferences(ctx, sessionFrom(ctx).ID, prefs); err != nil {
		logging.From(ctx).Info("failed to save preferences", "error", err)
		s.flash(r, model.FlashError, "Invalid reminder setting", err.Error())
	} else {
		s.flash(r, model.FlashSuccess, "Reminder settings saved", "")
	}
	seeOther(w, r, usecase.SettingsPath)
}
