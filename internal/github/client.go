package github

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// Client talks to the GitHub REST API for comment and label
// operations. It is a notification sink: callers treat failures as
// non-fatal.
type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
	log        *zap.Logger
}

func NewClient(baseURL, token string, log *zap.Logger) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		httpClient: &http.Client{
			Timeout: 15 * time.Second,
		},
		log: log,
	}
}

type CommentResult struct {
	ID      int64  `json:"id"`
	HTMLURL string `json:"html_url"`
}

// CreateComment posts a comment on an issue or pull request (GitHub
// treats PR comments as issue comments).
func (c *Client) CreateComment(ctx context.Context, repoFullName string, issueNumber int, body string) (*CommentResult, error) {
	url := fmt.Sprintf("%s/repos/%s/issues/%d/comments", c.baseURL, repoFullName, issueNumber)
	var result CommentResult
	if err := c.do(ctx, http.MethodPost, url, map[string]any{"body": body}, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) UpdateComment(ctx context.Context, repoFullName string, commentID int64, body string) error {
	url := fmt.Sprintf("%s/repos/%s/issues/comments/%d", c.baseURL, repoFullName, commentID)
	return c.do(ctx, http.MethodPatch, url, map[string]any{"body": body}, nil)
}

func (c *Client) AddLabels(ctx context.Context, repoFullName string, issueNumber int, labels []string) error {
	url := fmt.Sprintf("%s/repos/%s/issues/%d/labels", c.baseURL, repoFullName, issueNumber)
	return c.do(ctx, http.MethodPost, url, map[string]any{"labels": labels}, nil)
}

func (c *Client) RemoveLabel(ctx context.Context, repoFullName string, issueNumber int, label string) error {
	url := fmt.Sprintf("%s/repos/%s/issues/%d/labels/%s", c.baseURL, repoFullName, issueNumber, label)
	return c.do(ctx, http.MethodDelete, url, nil, nil)
}

func (c *Client) do(ctx context.Context, method, url string, payload, out any) error {
	var reqBody io.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return err
		}
		reqBody = strings.NewReader(string(data))
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reqBody)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("github api unavailable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("github api returned %d: %s", resp.StatusCode, string(body))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return err
		}
	}
	return nil
}
