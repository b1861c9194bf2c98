package service

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"

	"notion-fairy-bot/internal/monitor"
)

const (
	DefaultNotionBaseURL    = "https://api.notion.com"
	DefaultNotionVersion    = "2022-06-28"
	DefaultTitleProperty    = "Name"
	DefaultDateTimeProperty = "Date Time"
)

// NotionOptions configures NotionPageService
type NotionOptions struct {
	BaseURL          string
	Token            string
	APIVersion       string
	HTTPClient       *http.Client
	RateLimiter      *monitor.RateLimiter
	TitleProperty    string
	DateTimeProperty string
	MaxRetries       int
	BaseDelay        time.Duration
	MaxDelay         time.Duration
}

// NotionPageService implements PageService against the Notion REST API
type NotionPageService struct {
	baseURL          string
	token            string
	apiVersion       string
	httpClient       *http.Client
	rateLimiter      *monitor.RateLimiter
	titleProperty    string
	dateTimeProperty string
	maxRetries       int
	baseDelay        time.Duration
	maxDelay         time.Duration
	logger           *slog.Logger
}

// NotionAPIError is a non-retryable error response from the API
type NotionAPIError struct {
	Status  int
	Code    string
	Message string
}

func (e *NotionAPIError) Error() string {
	if e.Code != "" {
		return "notion request failed: status=" + strconv.Itoa(e.Status) + " code=" + e.Code + " message=" + e.Message
	}
	return "notion request failed: status=" + strconv.Itoa(e.Status) + " message=" + e.Message
}

// NewNotionPageService creates a Notion client, filling unset options with
// defaults
func NewNotionPageService(opts NotionOptions, logger *slog.Logger) *NotionPageService {
	baseURL := strings.TrimRight(strings.TrimSpace(opts.BaseURL), "/")
	if baseURL == "" {
		baseURL = DefaultNotionBaseURL
	}
	httpClient := opts.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 20 * time.Second}
	}
	apiVersion := strings.TrimSpace(opts.APIVersion)
	if apiVersion == "" {
		apiVersion = DefaultNotionVersion
	}
	titleProperty := opts.TitleProperty
	if titleProperty == "" {
		titleProperty = DefaultTitleProperty
	}
	dateTimeProperty := opts.DateTimeProperty
	if dateTimeProperty == "" {
		dateTimeProperty = DefaultDateTimeProperty
	}
	maxRetries := opts.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}
	baseDelay := opts.BaseDelay
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}
	maxDelay := opts.MaxDelay
	if maxDelay <= 0 {
		maxDelay = 2 * time.Second
	}

	return &NotionPageService{
		baseURL:          baseURL,
		token:            strings.TrimSpace(opts.Token),
		apiVersion:       apiVersion,
		httpClient:       httpClient,
		rateLimiter:      opts.RateLimiter,
		titleProperty:    titleProperty,
		dateTimeProperty: dateTimeProperty,
		maxRetries:       maxRetries,
		baseDelay:        baseDelay,
		maxDelay:         maxDelay,
		logger:           logger,
	}
}

type searchRequest struct {
	Query  string        `json:"query"`
	Filter *searchFilter `json:"filter,omitempty"`
}

type searchFilter struct {
	Property string `json:"property"`
	Value    string `json:"value"`
}

type searchResponse struct {
	Results []struct {
		Object string `json:"object"`
		ID     string `json:"id"`
	} `json:"results"`
}

type pageResponse struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// FindCollection searches databases by name and returns the first hit
func (n *NotionPageService) FindCollection(ctx context.Context, name string) (string, error) {
	var resp searchResponse
	err := n.post(ctx, "/v1/search", true, searchRequest{
		Query:  name,
		Filter: &searchFilter{Property: "object", Value: "database"},
	}, &resp)
	if err != nil {
		return "", errors.Wrapf(err, "failed to search collection %q", name)
	}

	for _, result := range resp.Results {
		if result.ID != "" {
			n.logger.Debug("Resolved collection",
				"name", name,
				"collection_id", result.ID)
			return result.ID, nil
		}
	}
	return "", errors.Wrapf(ErrCollectionNotFound, "no collection named %q", name)
}

// CreateRecord creates a page with a title and a start date-time
func (n *NotionPageService) CreateRecord(ctx context.Context, collectionID, title string, start time.Time) (string, error) {
	payload := map[string]any{
		"parent": map[string]any{
			"database_id": collectionID,
		},
		"properties": map[string]any{
			n.titleProperty: map[string]any{
				"title": []any{
					map[string]any{
						"text": map[string]any{"content": title},
					},
				},
			},
			n.dateTimeProperty: map[string]any{
				"date": map[string]any{"start": start.Format(time.RFC3339)},
			},
		},
	}

	var resp pageResponse
	if err := n.post(ctx, "/v1/pages", false, payload, &resp); err != nil {
		return "", errors.Wrapf(err, "failed to create record %q", title)
	}
	if resp.URL == "" {
		return "", errors.Errorf("created record %q has no url", title)
	}
	return resp.URL, nil
}

// post sends a JSON request. Rate limited requests are always retried;
// transport and server errors only when idempotent is set.
func (n *NotionPageService) post(ctx context.Context, path string, idempotent bool, payload, out any) error {
	if n.token == "" {
		return errors.New("notion token is empty")
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return errors.Wrap(err, "failed to encode request")
	}
	url := n.baseURL + path

	for attempt := 0; ; attempt++ {
		if err := n.rateLimiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+n.token)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Notion-Version", n.apiVersion)

		resp, err := n.httpClient.Do(req)
		if err != nil {
			if idempotent && attempt < n.maxRetries {
				n.logger.Warn("Notion request failed, retrying",
					"path", path,
					"attempt", attempt+1,
					"error", err)
				if waitErr := sleepContext(ctx, n.retryDelay(attempt+1, "")); waitErr != nil {
					return waitErr
				}
				continue
			}
			return err
		}

		respBody, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return readErr
		}

		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			if out == nil {
				return nil
			}
			return errors.Wrap(json.Unmarshal(respBody, out), "failed to decode response")
		}

		retryable := resp.StatusCode == http.StatusTooManyRequests || (idempotent && resp.StatusCode >= 500)
		if retryable && attempt < n.maxRetries {
			n.logger.Warn("Notion request throttled, retrying",
				"path", path,
				"status", resp.StatusCode,
				"attempt", attempt+1)
			if waitErr := sleepContext(ctx, n.retryDelay(attempt+1, resp.Header.Get("Retry-After"))); waitErr != nil {
				return waitErr
			}
			continue
		}

		apiErr := &NotionAPIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(respBody))}
		var parsed struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		if json.Unmarshal(respBody, &parsed) == nil {
			apiErr.Code = parsed.Code
			if strings.TrimSpace(parsed.Message) != "" {
				apiErr.Message = parsed.Message
			}
		}
		return apiErr
	}
}

func (n *NotionPageService) retryDelay(attempt int, retryAfterHeader string) time.Duration {
	if retryAfter := parseRetryAfterSeconds(retryAfterHeader); retryAfter > 0 {
		if retryAfter > n.maxDelay {
			return n.maxDelay
		}
		return retryAfter
	}
	delay := n.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= n.maxDelay {
			return n.maxDelay
		}
	}
	return delay
}

func parseRetryAfterSeconds(header string) time.Duration {
	header = strings.TrimSpace(header)
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(header)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
