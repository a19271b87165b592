package model

import "strings"

// User is the profile returned by the backend for the bearer token holder.
type User struct {
	ID              string           `json:"id" firestore:"id"`
	Name            string           `json:"name" firestore:"name"`
	Email           string           `json:"email" firestore:"email"`
	ProfileImage    *string          `json:"profile_image" firestore:"profile_image"`
	CreatedAt       string           `json:"created_at,omitempty" firestore:"created_at"`
	UpdatedAt       string           `json:"updated_at,omitempty" firestore:"updated_at"`
	SlackConnection *SlackConnection `json:"slack_connection,omitempty" firestore:"slack_connection"`

	// ForwardingEmail is the inbound address issued by the backend. Empty
	// until the backend has provisioned one.
	ForwardingEmail string `json:"forwarding_email,omitempty" firestore:"forwarding_email"`
}

// SlackConnection links a user to a Slack workspace. Its presence marks
// onboarding as complete.
type SlackConnection struct {
	ID          string  `json:"id,omitempty" firestore:"id"`
	UserID      string  `json:"user_id,omitempty" firestore:"user_id"`
	SlackUserID string  `json:"slack_user_id,omitempty" firestore:"slack_user_id"`
	SlackTeamID string  `json:"slack_team_id,omitempty" firestore:"slack_team_id"`
	TeamName    *string `json:"team_name" firestore:"team_name"`
	CreatedAt   string  `json:"created_at,omitempty" firestore:"created_at"`
	UpdatedAt   string  `json:"updated_at,omitempty" firestore:"updated_at"`
}

// HasSlackConnection reports whether onboarding is complete.
func (u *User) HasSlackConnection() bool {
	return u != nil && u.SlackConnection != nil
}

// SlackTeam returns the connected workspace name, if known.
func (u *User) SlackTeam() string {
	if !u.HasSlackConnection() || u.SlackConnection.TeamName == nil {
		return ""
	}
	return strings.TrimSpace(*u.SlackConnection.TeamName)
}

// Clone returns a deep copy of u.
func (u *User) Clone() *User {
	if u == nil {
		return nil
	}
	c := *u
	if u.ProfileImage != nil {
		img := *u.ProfileImage
		c.ProfileImage = &img
	}
	if u.SlackConnection != nil {
		conn := *u.SlackConnection
		if conn.TeamName != nil {
			name := *conn.TeamName
			conn.TeamName = &name
		}
		c.SlackConnection = &conn
	}
	return &c
}
