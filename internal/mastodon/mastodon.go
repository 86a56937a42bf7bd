// Package mastodon is a minimal client for the two Mastodon API surfaces
// the pipeline uses: posting statuses and reading trending hashtags.
package mastodon

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/DMXMax/mjfeed/internal/model"
	"github.com/DMXMax/mjfeed/internal/retry"
)

const requestTimeout = 30 * time.Second

type Client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
	limiter     *rate.Limiter
	retryConfig retry.Config
}

func NewClient(baseURL, accessToken string) *Client {
	return &Client{
		baseURL:     strings.TrimRight(baseURL, "/"),
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: requestTimeout},
		// Mastodon allows 300 requests per 5 minutes; stay well under.
		limiter:     rate.NewLimiter(rate.Every(2*time.Second), 5),
		retryConfig: retry.Default,
	}
}

type statusRequest struct {
	Status     string `json:"status"`
	Visibility string `json:"visibility"`
}

type statusResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// PostStatus publishes a status and returns its Mastodon ID. The idempotency
// key lets the server deduplicate retried posts.
func (c *Client) PostStatus(ctx context.Context, text string, visibility model.Visibility, idempotencyKey string) (string, error) {
	body, err := json.Marshal(statusRequest{Status: text, Visibility: string(visibility)})
	if err != nil {
		return "", fmt.Errorf("marshal status: %w", err)
	}

	var posted statusResponse
	err = retry.WithRetry(ctx, c.retryConfig, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost,
			c.baseURL+"/api/v1/statuses", bytes.NewReader(body))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.accessToken)
		req.Header.Set("Content-Type", "application/json")
		if idempotencyKey != "" {
			req.Header.Set("Idempotency-Key", idempotencyKey)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("post status: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return apiError(resp)
		}
		return json.NewDecoder(resp.Body).Decode(&posted)
	})
	if err != nil {
		return "", err
	}

	return posted.ID, nil
}

// TrendingTags fetches the instance's currently trending hashtags.
func (c *Client) TrendingTags(ctx context.Context, limit int) ([]model.Tag, error) {
	var tags []model.Tag
	err := retry.WithRetry(ctx, c.retryConfig, func() error {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		url := c.baseURL + "/api/v1/trends/tags?limit=" + strconv.Itoa(limit)
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.accessToken)

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("fetch trends: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return apiError(resp)
		}
		tags = nil
		return json.NewDecoder(resp.Body).Decode(&tags)
	})
	if err != nil {
		return nil, err
	}

	return tags, nil
}

func apiError(resp *http.Response) error {
	snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
	return fmt.Errorf("mastodon API status %d: %s", resp.StatusCode, strings.TrimSpace(string(snippet)))
}
