package reddit

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/kapu/markov-kakao-bot-go/internal/constants"
	"github.com/kapu/markov-kakao-bot-go/internal/domain"
	"github.com/kapu/markov-kakao-bot-go/internal/util"
	"github.com/kapu/markov-kakao-bot-go/pkg/errors"
	"go.uber.org/zap"
)

const maxResponseBytes = 8 << 20

// ClientConfig configures the comment history client.
type ClientConfig struct {
	BaseURL      string
	UserAgent    string
	CommentLimit int
	Timeout      time.Duration
}

// Client fetches a user's recent comments as a corpus.
type Client struct {
	baseURL    string
	userAgent  string
	limit      int
	httpClient *http.Client
	breaker    *util.CircuitBreaker
	logger     *zap.Logger
	now        func() time.Time
}

func NewClient(cfg ClientConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = constants.RedditConfig.BaseURL
	}
	if cfg.CommentLimit <= 0 {
		cfg.CommentLimit = constants.RedditConfig.CommentLimit
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = constants.RedditConfig.Timeout
	}

	return &Client{
		baseURL:   strings.TrimSuffix(cfg.BaseURL, "/"),
		userAgent: cfg.UserAgent,
		limit:     cfg.CommentLimit,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		breaker: util.NewCircuitBreaker("reddit",
			constants.CircuitBreakerConfig.FailureThreshold,
			constants.CircuitBreakerConfig.ResetTimeout,
			logger,
		),
		logger: logger,
		now:    time.Now,
	}
}

// FetchCorpus returns the owner's most recent comments, newest first, one
// fragment per comment. Unknown users produce an error wrapping
// domain.ErrCorpusNotFound.
func (c *Client) FetchCorpus(ctx context.Context, owner string) (*domain.Corpus, error) {
	owner = strings.TrimSpace(owner)
	if owner == "" {
		return nil, errors.NewValidationError("owner is required", "owner", owner)
	}

	if err := c.breaker.Allow(); err != nil {
		return nil, errors.NewServiceError("reddit unavailable", "reddit", "fetch_comments", err)
	}

	listing, err := c.fetchListing(ctx, owner)
	if err != nil {
		if isNotFound(err) {
			// A missing user is an answer, not an upstream failure.
			c.breaker.RecordSuccess()
		} else {
			c.breaker.RecordFailure()
		}
		return nil, err
	}
	c.breaker.RecordSuccess()

	fragments := make([]string, 0, len(listing.Data.Children))
	for _, child := range listing.Data.Children {
		if text := CommentText(child.Data); text != "" {
			fragments = append(fragments, text)
		}
	}

	c.logger.Debug("Fetched comment history",
		zap.String("owner", owner),
		zap.Int("comments", len(listing.Data.Children)),
		zap.Int("fragments", len(fragments)),
	)

	return &domain.Corpus{
		Owner:     owner,
		Fragments: fragments,
		FetchedAt: c.now(),
	}, nil
}

func (c *Client) fetchListing(ctx context.Context, owner string) (*listing, error) {
	endpoint := fmt.Sprintf("%s/user/%s/comments/.json", c.baseURL, url.PathEscape(owner))
	query := url.Values{}
	query.Set("limit", strconv.Itoa(c.limit))
	query.Set("sort", "new")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.NewAPIError(fmt.Sprintf("request failed: %v", err), 0, map[string]any{
			"owner": owner,
		}).WithCause(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, fmt.Errorf("reddit user %q: %w", owner, domain.ErrCorpusNotFound)
	}

	var payload listing
	if err := json.Unmarshal(body, &payload); err != nil {
		if resp.StatusCode >= 400 {
			return nil, statusError(owner, resp.StatusCode)
		}
		return nil, fmt.Errorf("failed to decode listing: %w", err)
	}

	if strings.EqualFold(payload.Message, "not found") {
		return nil, fmt.Errorf("reddit user %q: %w", owner, domain.ErrCorpusNotFound)
	}
	if resp.StatusCode >= 400 {
		return nil, statusError(owner, resp.StatusCode)
	}
	return &payload, nil
}

func statusError(owner string, status int) error {
	return errors.NewAPIError(fmt.Sprintf("unexpected status %d", status), status, map[string]any{
		"owner": owner,
	})
}
