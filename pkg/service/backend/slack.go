package backend

import (
	"context"
	"net/http"
	"strings"

	"github.com/prreminder/frontend/pkg/domain/model"
)

// SlackAuthURL is an authenticated call so that only a signed-in user can
// start a connection flow.
func (c *Client) SlackAuthURL(ctx context.Context) (*model.SlackAuthURL, error) {
	var resp model.SlackAuthURL
	if err := c.do(ctx, request{op: "slack_auth_url", method: http.MethodGet, path: "/auth/slack/auth-url"}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) SlackConnection(ctx context.Context) (*model.SlackConnection, error) {
	var resp model.SlackConnection
	if err := c.do(ctx, request{op: "slack_connection", method: http.MethodGet, path: "/auth/slack/connection"}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) DisconnectSlack(ctx context.Context) (*model.MessageResponse, error) {
	var resp model.MessageResponse
	if err := c.do(ctx, request{op: "disconnect_slack", method: http.MethodDelete, path: "/auth/slack/disconnect"}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// TestSlack sends message, or DefaultTestMessage when it is blank.
func (c *Client) TestSlack(ctx context.Context, message string) (*model.MessageResponse, error) {
	if strings.TrimSpace(message) == "" {
		message = DefaultTestMessage
	}

	var resp model.MessageResponse
	req := request{
		op:     "test_slack",
		method: http.MethodPost,
		path:   "/auth/slack/test",
		body:   map[string]string{"message": message},
	}
	if err := c.do(ctx, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) NotifyPR(ctx context.Context, pr model.PRNotificationRequest) (*model.MessageResponse, error) {
	var resp model.MessageResponse
	req := request{
		op:     "notify_pr",
		method: http.MethodPost,
		path:   "/auth/slack/notify/pr",
		body:   pr,
	}
	if err := c.do(ctx, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *Client) SlackHealth(ctx context.Context) (*model.SlackHealth, error) {
	var resp model.SlackHealth
	if err := c.do(ctx, request{op: "slack_health", method: http.MethodGet, path: "/auth/slack/health"}, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}
