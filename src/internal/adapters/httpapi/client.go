package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/yaffw/readtrack/src/internal/domain"
)

// Client talks to a running Tracker API.
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewClient(baseURL, token string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) UnreadForums(ctx context.Context) ([]domain.Forum, error) {
	var resp ForumsResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/unread/forums", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Forums, nil
}

func (c *Client) UnreadTopics(ctx context.Context, topicIDs []string) ([]domain.Topic, error) {
	var resp TopicsResponse
	if err := c.do(ctx, http.MethodPost, "/api/v1/unread/topics", TopicIDsRequest{TopicIDs: topicIDs}, &resp); err != nil {
		return nil, err
	}
	return resp.Topics, nil
}

// OldestUnreadPost returns nil when the topic has no unread post for the caller.
func (c *Client) OldestUnreadPost(ctx context.Context, topicID string) (*domain.Post, error) {
	var resp PostResponse
	if err := c.do(ctx, http.MethodGet, "/api/v1/topics/"+url.PathEscape(topicID)+"/oldest-unread", nil, &resp); err != nil {
		return nil, err
	}
	return resp.Post, nil
}

func (c *Client) MarkForumsRead(ctx context.Context, forumIDs []string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/forums/read", ForumIDsRequest{ForumIDs: forumIDs}, nil)
}

func (c *Client) MarkTopicRead(ctx context.Context, topicID string) error {
	return c.do(ctx, http.MethodPost, "/api/v1/topics/"+url.PathEscape(topicID)+"/read", nil, nil)
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%s %s: %s: %w", method, path, strings.TrimSpace(string(msg)), domain.ErrNotFound)
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return fmt.Errorf("%s %s: unexpected status: %d", method, path, resp.StatusCode)
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
