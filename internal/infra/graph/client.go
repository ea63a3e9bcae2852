package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sethvargo/go-retry"
	"golang.org/x/oauth2"

	"github.com/vietddude/mailsweep/internal/core/domain"
	"github.com/vietddude/mailsweep/internal/sweep/metrics"
)

// DefaultBaseURL is the production mailbox service endpoint.
const DefaultBaseURL = "https://graph.microsoft.com/v1.0"

// ErrAuth marks authentication failures; these are fatal for the run.
var ErrAuth = domain.ErrAuth

// wellKnownFolders can be addressed by name without resolution.
var wellKnownFolders = map[string]struct{}{
	"inbox":        {},
	"junkemail":    {},
	"deleteditems": {},
	"archive":      {},
	"drafts":       {},
	"sentitems":    {},
}

// StatusError is a non-2xx response from the service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Body)
}

// Config holds client settings.
type Config struct {
	BaseURL    string
	Timeout    time.Duration // per-request timeout
	MaxRetries uint64        // transport-level retries per request
}

// Client talks to the mailbox service. All calls carry a request timeout
// and retry transient transport failures with capped exponential backoff.
type Client struct {
	base       string
	httpClient *http.Client
	maxRetries uint64
	log        *slog.Logger
}

// NewClient creates a client authenticating every request from tokens.
// Token refresh is silent: the source re-acquires an expired credential
// on the next request without interrupting the run.
func NewClient(cfg Config, tokens oauth2.TokenSource) *Client {
	base := cfg.BaseURL
	if base == "" {
		base = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &oauth2.Transport{
				Source: tokens,
				Base: &http.Transport{
					MaxIdleConns:        100,
					MaxIdleConnsPerHost: 10,
					IdleConnTimeout:     90 * time.Second,
				},
			},
		},
		maxRetries: cfg.MaxRetries,
		log:        slog.Default().With("component", "graph"),
	}
}

// ListMessages fetches one page of messages. Pass nextLink from the
// previous Page to continue; with an empty nextLink the first page is
// built from folderID, filter and pageSize.
func (c *Client) ListMessages(
	ctx context.Context,
	folderID, filter string,
	pageSize int,
	nextLink string,
) (Page, error) {
	target := nextLink
	if target == "" {
		q := url.Values{}
		q.Set("$select", "id,from,receivedDateTime,hasAttachments")
		q.Set("$top", strconv.Itoa(pageSize))
		if filter != "" {
			q.Set("$filter", filter)
		}
		target = fmt.Sprintf("%s/me/mailFolders/%s/messages?%s",
			c.base, url.PathEscape(folderID), q.Encode())
	}

	body, err := c.do(ctx, "list", http.MethodGet, target, nil)
	if err != nil {
		return Page{}, err
	}

	var resp listResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return Page{}, fmt.Errorf("parse list response: %w", err)
	}

	metrics.PagesFetched.Inc()

	page := Page{NextLink: resp.NextLink}
	page.Messages = make([]domain.CandidateMessage, 0, len(resp.Value))
	for _, m := range resp.Value {
		page.Messages = append(page.Messages, m.candidate())
	}
	return page, nil
}

// ResolveFolder turns a folder name into an identifier usable in message
// paths. Well-known names pass through; anything else is matched against
// folder display names, paging as needed.
func (c *Client) ResolveFolder(ctx context.Context, name string) (string, error) {
	if _, ok := wellKnownFolders[strings.ToLower(name)]; ok {
		return strings.ToLower(name), nil
	}

	target := fmt.Sprintf("%s/me/mailFolders?$select=id,displayName&$top=100", c.base)
	for target != "" {
		body, err := c.do(ctx, "folders", http.MethodGet, target, nil)
		if err != nil {
			return "", err
		}
		var resp folderListResponse
		if err := json.Unmarshal(body, &resp); err != nil {
			return "", fmt.Errorf("parse folder response: %w", err)
		}
		for _, f := range resp.Value {
			if strings.EqualFold(f.DisplayName, name) {
				return f.ID, nil
			}
		}
		target = resp.NextLink
	}
	return "", fmt.Errorf("mail folder %q not found", name)
}

// ListFolderSample returns a few folders with item counts, used by the
// auth test mode to prove the credential works.
func (c *Client) ListFolderSample(ctx context.Context) ([]Folder, error) {
	target := fmt.Sprintf("%s/me/mailFolders?$select=id,displayName,totalItemCount&$top=5", c.base)
	body, err := c.do(ctx, "folders", http.MethodGet, target, nil)
	if err != nil {
		return nil, err
	}
	var resp folderListResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse folder response: %w", err)
	}
	return resp.Value, nil
}

// DeleteBatch submits one multi-operation delete request for up to 20 ids
// and returns classified per-id results. Sub-responses are matched back to
// message ids by sub-request id, not by response order.
func (c *Client) DeleteBatch(
	ctx context.Context,
	ids []domain.MessageID,
	mode domain.DeleteMode,
) ([]domain.SubResult, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	if len(ids) > 20 {
		return nil, fmt.Errorf("batch too large: %d ids (max 20)", len(ids))
	}

	reqBody, err := json.Marshal(buildBatchBody(ids, mode))
	if err != nil {
		return nil, fmt.Errorf("marshal batch request: %w", err)
	}

	body, err := c.do(ctx, "batch", http.MethodPost, c.base+"/$batch", reqBody)
	if err != nil {
		return nil, err
	}

	var resp batchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, fmt.Errorf("parse batch response: %w", err)
	}

	results := make([]domain.SubResult, 0, len(resp.Responses))
	for _, sub := range resp.Responses {
		idx, err := strconv.Atoi(sub.ID)
		if err != nil || idx < 1 || idx > len(ids) {
			c.log.Warn("batch sub-response with unknown id", "sub_id", sub.ID)
			continue
		}
		results = append(results, domain.SubResult{
			ID:         ids[idx-1],
			StatusCode: sub.Status,
			Class:      domain.Classify(sub.Status),
		})
	}
	return results, nil
}

// buildBatchBody assembles the batch envelope. Sub-request ids are the
// 1-based position of each message id, which DeleteBatch relies on when
// matching responses back.
func buildBatchBody(ids []domain.MessageID, mode domain.DeleteMode) batchRequest {
	reqs := make([]subRequest, 0, len(ids))
	for i, id := range ids {
		sub := subRequest{ID: strconv.Itoa(i + 1)}
		if mode == domain.DeleteModeHard {
			sub.Method = http.MethodPost
			sub.URL = fmt.Sprintf("/me/messages/%s/permanentDelete", id)
		} else {
			sub.Method = http.MethodDelete
			sub.URL = fmt.Sprintf("/me/messages/%s", id)
		}
		reqs = append(reqs, sub)
	}
	return batchRequest{Requests: reqs}
}

// do performs one request with transport-level retries. Retryable outer
// statuses are 429 and 5xx; a Retry-After hint is honored as a minimum
// wait before the next attempt. 401 is fatal: the token source already
// refreshes expired credentials silently, so a 401 here means the
// credential itself is no longer valid.
func (c *Client) do(ctx context.Context, op, method, target string, body []byte) ([]byte, error) {
	backoff := retry.WithCappedDuration(15*time.Second, retry.NewExponential(time.Second))
	backoff = retry.WithMaxRetries(c.maxRetries, backoff)

	var out []byte
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, reader)
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}

		start := time.Now()
		resp, err := c.httpClient.Do(req)
		metrics.RequestLatency.WithLabelValues(op).Observe(time.Since(start).Seconds())
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return retry.RetryableError(fmt.Errorf("%s request: %w", op, err))
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return retry.RetryableError(fmt.Errorf("read %s response: %w", op, err))
		}

		switch {
		case resp.StatusCode == http.StatusUnauthorized:
			return fmt.Errorf("%w: %s", ErrAuth, strings.TrimSpace(string(data)))
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			if wait := retryAfter(resp); wait > 0 {
				c.log.Debug("service asked to back off", "op", op, "wait", wait)
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(wait):
				}
			}
			return retry.RetryableError(&StatusError{resp.StatusCode, truncate(data)})
		case resp.StatusCode >= 400:
			return &StatusError{resp.StatusCode, truncate(data)}
		}

		out = data
		return nil
	})
	return out, err
}

// retryAfter parses the Retry-After header, capped at 30s.
func retryAfter(resp *http.Response) time.Duration {
	secs, err := strconv.Atoi(resp.Header.Get("Retry-After"))
	if err != nil || secs <= 0 {
		return 0
	}
	if secs > 30 {
		secs = 30
	}
	return time.Duration(secs) * time.Second
}

func truncate(body []byte) string {
	s := strings.TrimSpace(string(body))
	if len(s) > 512 {
		s = s[:512] + "..."
	}
	return s
}
