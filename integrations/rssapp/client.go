package rssapp

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/AzielCF/az-engage/engine/domain"
	"github.com/sirupsen/logrus"
)

const DefaultAPIURL = "https://api.rss.app/v1"

type Config struct {
	URL       string
	APIKey    string
	APISecret string
}

// Client manages hosted feeds through the RSS.app API. Requests carry a
// "Bearer <key>:<secret>" header and failures come back as {"message": "..."}.
type Client struct {
	baseURL string
	auth    string
}

func NewClient(cfg Config) *Client {
	base := strings.TrimRight(cfg.URL, "/")
	if base == "" {
		base = DefaultAPIURL
	}
	c := &Client{baseURL: base}
	if cfg.APIKey != "" && cfg.APISecret != "" {
		c.auth = "Bearer " + cfg.APIKey + ":" + cfg.APISecret
	}
	return c
}

// Configured reports whether credentials were provided.
func (c *Client) Configured() bool {
	return c.auth != ""
}

type feedResponse struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	SourceURL  string `json:"source_url"`
	RSSFeedURL string `json:"rss_feed_url"`
}

type listResponse struct {
	Total int `json:"total"`
}

// SourceURL is the public profile page the hosted feed is generated from.
func SourceURL(account domain.Account) (string, error) {
	if account.ProfileURL != "" {
		return account.ProfileURL, nil
	}
	handle := strings.TrimPrefix(strings.TrimSpace(account.Handle), "@")
	if handle == "" {
		return "", errors.New("account has no handle")
	}
	switch account.Platform {
	case domain.PlatformInstagram:
		return "https://www.instagram.com/" + handle, nil
	case domain.PlatformFacebook:
		return "https://www.facebook.com/" + handle, nil
	case domain.PlatformX:
		return "https://x.com/" + handle, nil
	case domain.PlatformTikTok:
		return "https://www.tiktok.com/@" + handle, nil
	default:
		return "", fmt.Errorf("platform %q needs a profile url", account.Platform)
	}
}

// CreateFeed asks RSS.app to generate a feed for the account's profile page.
func (c *Client) CreateFeed(ctx context.Context, account domain.Account) (domain.ProvisionedFeed, error) {
	source, err := SourceURL(account)
	if err != nil {
		return domain.ProvisionedFeed{}, &domain.FetchError{Kind: domain.Permanent, FeedRef: account.Handle, Err: err}
	}

	var resp feedResponse
	if err := c.do(ctx, http.MethodPost, "/feeds", map[string]string{"url": source}, &resp); err != nil {
		return domain.ProvisionedFeed{}, err
	}
	if resp.ID == "" || resp.RSSFeedURL == "" {
		return domain.ProvisionedFeed{}, &domain.FetchError{Kind: domain.Permanent, FeedRef: source, Err: errors.New("response carried no feed")}
	}

	logrus.WithFields(logrus.Fields{
		"source":  source,
		"feed_id": resp.ID,
	}).Info("[RSS] Hosted feed created")
	return domain.ProvisionedFeed{ExternalID: resp.ID, FeedRef: resp.RSSFeedURL, Title: resp.Title}, nil
}

// DeleteFeed removes a hosted feed. A feed that is already gone is not an
// error.
func (c *Client) DeleteFeed(ctx context.Context, externalID string) error {
	err := c.do(ctx, http.MethodDelete, "/feeds/"+url.PathEscape(externalID), nil, nil)
	var fetchErr *domain.FetchError
	if errors.As(err, &fetchErr) && errors.Is(fetchErr.Err, errNotFound) {
		return nil
	}
	return err
}

func (c *Client) TestConnection(ctx context.Context) (domain.FeedProviderStatus, error) {
	var resp listResponse
	if err := c.do(ctx, http.MethodGet, "/feeds?limit=1", nil, &resp); err != nil {
		return domain.FeedProviderStatus{}, err
	}
	return domain.FeedProviderStatus{TotalFeeds: resp.Total}, nil
}

var errNotFound = errors.New("not found")

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	endpoint := c.baseURL + path
	if !c.Configured() {
		return &domain.FetchError{Kind: domain.Permanent, FeedRef: endpoint, Err: errors.New("RSS.app credentials are not configured")}
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return &domain.FetchError{Kind: domain.Permanent, FeedRef: endpoint, Err: err}
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return &domain.FetchError{Kind: domain.Permanent, FeedRef: endpoint, Err: err}
	}
	req.Header.Set("Authorization", c.auth)
	req.Header.Set("Content-Type", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return &domain.FetchError{Kind: transportKind(err), FeedRef: endpoint, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return &domain.FetchError{Kind: domain.Transient, FeedRef: endpoint, Err: err}
	}

	if resp.StatusCode >= 400 {
		kind := domain.Permanent
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
			kind = domain.Transient
		}
		cause := fmt.Errorf("http %d: %s", resp.StatusCode, apiMessage(raw))
		if resp.StatusCode == http.StatusNotFound {
			cause = fmt.Errorf("%w: %s", errNotFound, apiMessage(raw))
		}
		return &domain.FetchError{Kind: kind, FeedRef: endpoint, Err: cause}
	}

	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &domain.FetchError{Kind: domain.Permanent, FeedRef: endpoint, Err: fmt.Errorf("unexpected response: %w", err)}
	}
	return nil
}

func apiMessage(body []byte) string {
	var errBody struct {
		Message string `json:"message"`
	}
	if json.Unmarshal(body, &errBody) == nil && errBody.Message != "" {
		return errBody.Message
	}
	msg := strings.TrimSpace(string(body))
	if len(msg) > 200 {
		msg = msg[:200] + "..."
	}
	if msg == "" {
		return "empty response"
	}
	return msg
}
