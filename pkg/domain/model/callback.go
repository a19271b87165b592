package model

import (
	"net/url"
	"strings"
)

// CallbackParams are the query parameters of the OAuth return navigation.
type CallbackParams struct {
	Success        string
	Token          string `masq:"secret"`
	UserID         string
	UserName       string
	UserEmail      string
	ProfileImage   string
	SlackConnected string
	SlackTeam      string
	Error          string
	Timestamp      string
}

func ParseCallbackParams(q url.Values) CallbackParams {
	return CallbackParams{
		Success:        q.Get("success"),
		Token:          q.Get("token"),
		UserID:         q.Get("user_id"),
		UserName:       q.Get("user_name"),
		UserEmail:      q.Get("user_email"),
		ProfileImage:   q.Get("profile_image"),
		SlackConnected: q.Get("slack_connected"),
		SlackTeam:      q.Get("slack_team"),
		Error:          q.Get("error"),
		Timestamp:      q.Get("timestamp"),
	}
}

// Succeeded is true only for success=true with a non-empty token.
func (p CallbackParams) Succeeded() bool {
	return p.Success == "true" && strings.TrimSpace(p.Token) != ""
}

func (p CallbackParams) SlackIsConnected() bool {
	return p.SlackConnected == "true"
}
