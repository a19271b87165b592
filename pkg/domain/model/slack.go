package model

// SlackAuthURL is the OAuth start URL minted by the backend for an
// authenticated user.
type SlackAuthURL struct {
	AuthURL     string `json:"auth_url"`
	State       string `json:"state"`
	RedirectURI string `json:"redirect_uri"`
}

// SlackHealth reports whether the backend can reach Slack.
type SlackHealth struct {
	Status     string `json:"status"`
	Configured bool   `json:"slack_configured"`
	Message    string `json:"message,omitempty"`
}

func (h *SlackHealth) Healthy() bool {
	return h != nil && (h.Status == "healthy" || h.Status == "ok")
}

// MessageResponse is the generic `{message}` reply of mutation endpoints.
type MessageResponse struct {
	Message string `json:"message"`
	Success *bool  `json:"success,omitempty"`
}

// AuthResponse is returned by token refresh.
type AuthResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	User        *User  `json:"user,omitempty"`
}
