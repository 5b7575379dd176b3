package publish

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"

	"olekmabot/internal/models"
)

// ErrPermanent marks a publish failure that retrying will not fix
var ErrPermanent = errors.New("permanent publish failure")

// Article is the payload sent to the site's content API
type Article struct {
	Title       string `json:"title"`
	Body        string `json:"body"`
	Category    string `json:"category"`
	Contacts    string `json:"contacts,omitempty"`
	Address     string `json:"address,omitempty"`
	Schedule    string `json:"schedule,omitempty"`
	Social      string `json:"social,omitempty"`
	Price       string `json:"price,omitempty"`
	Source      string `json:"source,omitempty"`
	Video       string `json:"video,omitempty"`
	Author      string `json:"author,omitempty"`
	PhotoFileID string `json:"photo_file_id,omitempty"`
	Submitter   string `json:"submitter"`
}

// NewArticle maps a content submission onto the site's article schema
func NewArticle(sub *models.Submission, category string) Article {
	body := sub.Text("description")
	if body == "" {
		body = sub.Text("content")
	}

	submitter := fmt.Sprintf("%d", sub.Submitter.ChatID)
	if sub.Submitter.Username != "" {
		submitter = "@" + sub.Submitter.Username
	}

	a := Article{
		Title:     sub.Text("name"),
		Body:      body,
		Category:  category,
		Contacts:  sub.Text("contacts"),
		Address:   sub.Text("address"),
		Schedule:  sub.Text("schedule"),
		Social:    sub.Text("social"),
		Price:     sub.Text("price"),
		Source:    sub.Text("source"),
		Video:     sub.Text("video"),
		Author:    sub.Text("author"),
		Submitter: submitter,
	}
	if p := sub.Photo(); p != nil {
		a.PhotoFileID = p.FileID
	}
	return a
}

// Result describes a published article
type Result struct {
	ID  string `json:"id"`
	URL string `json:"url"`
}

// Publisher pushes approved submissions to the site
type Publisher interface {
	Publish(ctx context.Context, a Article) (Result, error)
}

// Client posts articles to the content API with retry and backoff
type Client struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	siteURL    string
	maxRetries uint64
	timeout    time.Duration
	backoff    func() backoff.BackOff
	logger     *zap.Logger
}

// NewClient creates a content API client.
// endpoint is the API prefix appended to siteURL, e.g. "/api/index.php/v1".
func NewClient(siteURL, endpoint, apiKey string, timeout time.Duration, maxRetries int, logger *zap.Logger) *Client {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		endpoint:   strings.TrimRight(siteURL, "/") + endpoint + "/content/articles",
		apiKey:     apiKey,
		siteURL:    strings.TrimRight(siteURL, "/"),
		maxRetries: uint64(maxRetries),
		timeout:    timeout,
		backoff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = 500 * time.Millisecond
			b.MaxElapsedTime = 0
			return b
		},
		logger: logger,
	}
}

// Publish sends the article, retrying transient failures with exponential backoff
func (c *Client) Publish(ctx context.Context, a Article) (Result, error) {
	payload, err := json.Marshal(a)
	if err != nil {
		return Result{}, fmt.Errorf("failed to encode article: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout*time.Duration(c.maxRetries+1))
	defer cancel()

	var result Result
	attempt := 0
	operation := func() error {
		attempt++
		r, err := c.post(ctx, payload)
		if err != nil {
			return err
		}
		result = r
		return nil
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(c.backoff(), c.maxRetries), ctx)
	notify := func(err error, wait time.Duration) {
		c.logger.Warn("Publish attempt failed, retrying",
			zap.Int("attempt", attempt),
			zap.Duration("wait", wait),
			zap.Error(err))
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return Result{}, fmt.Errorf("publish %q after %d attempt(s): %w", a.Title, attempt, err)
	}

	if result.URL == "" {
		result.URL = c.siteURL
	}
	return result, nil
}

func (c *Client) post(ctx context.Context, payload []byte) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return Result{}, backoff.Permanent(fmt.Errorf("%w: %v", ErrPermanent, err))
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Joomla-Token", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return Result{}, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))

	switch {
	case resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests:
		return Result{}, fmt.Errorf("content API returned %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	case resp.StatusCode >= 400:
		return Result{}, backoff.Permanent(fmt.Errorf("%w: content API returned %d: %s", ErrPermanent, resp.StatusCode, strings.TrimSpace(string(body))))
	}

	var result Result
	if len(body) > 0 {
		if err := json.Unmarshal(body, &result); err != nil {
			c.logger.Debug("Content API response is not JSON", zap.Error(err))
		}
	}
	return result, nil
}

// LogPublisher only logs articles. It is used when no API key is configured.
type LogPublisher struct {
	SiteURL string
	Logger  *zap.Logger
}

// Publish logs the article and reports the site root as its location
func (p *LogPublisher) Publish(ctx context.Context, a Article) (Result, error) {
	p.Logger.Info("Would publish article",
		zap.String("title", a.Title),
		zap.String("category", a.Category),
		zap.String("submitter", a.Submitter))
	return Result{URL: p.SiteURL}, nil
}
