package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

// SessionID identifies one browser session. It is the value of the session
// cookie.
type SessionID string

var (
	ErrInvalidSessionID = goerr.New("invalid session ID")
	ErrInvalidSession   = goerr.New("invalid session")
)

func NewSessionID() SessionID {
	return SessionID(uuid.New().String())
}

func (x SessionID) String() string { return string(x) }

func (x SessionID) Validate() error {
	if _, err := uuid.Parse(string(x)); err != nil {
		return goerr.Wrap(ErrInvalidSessionID, "session ID must be a UUID", goerr.V("id", string(x)))
	}
	return nil
}

// DefaultSessionTTL is the sliding lifetime of an idle session.
const DefaultSessionTTL = 30 * 24 * time.Hour

// Session is the server-side authentication state of one browser.
type Session struct {
	ID            SessionID   `json:"id" firestore:"id"`
	Token         string      `json:"token" firestore:"token" masq:"secret"`
	User          *User       `json:"user,omitempty" firestore:"user"`
	Authenticated bool        `json:"is_authenticated" firestore:"authenticated"`
	Flashes       []Flash     `json:"flashes,omitempty" firestore:"flashes"`
	Preferences   Preferences `json:"preferences" firestore:"preferences"`
	CreatedAt     time.Time   `json:"created_at" firestore:"created_at"`
	UpdatedAt     time.Time   `json:"updated_at" firestore:"updated_at"`
	ExpiresAt     time.Time   `json:"expires_at" firestore:"expires_at"`
}

// NewSession returns an empty, unauthenticated session.
func NewSession(now time.Time, ttl time.Duration) *Session {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	return &Session{
		ID:          NewSessionID(),
		Preferences: DefaultPreferences(),
		CreatedAt:   now,
		UpdatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
}

// IsAuthenticated is true only when a token and a user profile are both
// present and the session was marked authenticated.
func (s *Session) IsAuthenticated() bool {
	return s != nil && s.Authenticated && s.Token != "" && s.User != nil
}

func (s *Session) Expired(now time.Time) bool {
	return !s.ExpiresAt.IsZero() && !now.Before(s.ExpiresAt)
}

// Touch updates the modification time and extends the expiry.
func (s *Session) Touch(now time.Time, ttl time.Duration) {
	if ttl <= 0 {
		ttl = DefaultSessionTTL
	}
	s.UpdatedAt = now
	s.ExpiresAt = now.Add(ttl)
}

// ResetAuth drops the credential and the cached profile.
func (s *Session) ResetAuth() {
	s.Token = ""
	s.User = nil
	s.Authenticated = false
}

func (s *Session) Validate() error {
	if s == nil {
		return goerr.Wrap(ErrInvalidSession, "session is nil")
	}
	if err := s.ID.Validate(); err != nil {
		return err
	}
	if s.Authenticated && s.Token == "" {
		return goerr.Wrap(ErrInvalidSession, "authenticated session without token", goerr.V("id", s.ID))
	}
	return s.Preferences.Validate()
}

// Clone returns a deep copy so callers never share mutable state with a
// repository.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := *s
	c.User = s.User.Clone()
	if s.Flashes != nil {
		c.Flashes = append([]Flash(nil), s.Flashes...)
	}
	return &c
}

// FlashType is the severity of a flash message.
type FlashType string

const (
	FlashSuccess FlashType = "success"
	FlashError   FlashType = "error"
	FlashInfo    FlashType = "info"
)

// Flash is a one-shot message shown on the next rendered page.
type Flash struct {
	ID          string    `json:"id" firestore:"id"`
	Type        FlashType `json:"type" firestore:"type"`
	Title       string    `json:"title" firestore:"title"`
	Description string    `json:"description,omitempty" firestore:"description"`
}

func NewFlash(typ FlashType, title, description string) Flash {
	return Flash{
		ID:          uuid.New().String(),
		Type:        typ,
		Title:       title,
		Description: description,
	}
}

// ReminderDayOptions are the selectable thresholds for stale-PR reminders.
var ReminderDayOptions = []int{1, 2, 3, 5, 7}

var ErrInvalidPreferences = goerr.New("invalid preferences")

// Preferences are per-session UI settings.
type Preferences struct {
	RemindersEnabled bool `json:"reminders_enabled" firestore:"reminders_enabled"`
	ReminderDays     int  `json:"reminder_days" firestore:"reminder_days"`
}

func DefaultPreferences() Preferences {
	return Preferences{RemindersEnabled: true, ReminderDays: 3}
}

func (p Preferences) Validate() error {
	if p.ReminderDays == 0 {
		return nil
	}
	for _, d := range ReminderDayOptions {
		if p.ReminderDays == d {
			return nil
		}
	}
	return goerr.Wrap(ErrInvalidPreferences, "unsupported reminder days", goerr.V("days", p.ReminderDays))
}
