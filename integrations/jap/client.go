package jap

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/AzielCF/az-engage/engine/domain"
	"github.com/sirupsen/logrus"
)

// httpClient is shared by every Client; tests swap its transport.
var httpClient = &http.Client{Timeout: 30 * time.Second}

type Config struct {
	URL           string
	APIKey        string
	ServicesCache time.Duration
}

// Client talks to a Just Another Panel compatible order API: form-encoded
// POSTs with key/action fields answered by JSON bodies, where failures are
// reported as {"error": "..."}.
type Client struct {
	baseURL string
	apiKey  string
	ttl     time.Duration
	now     func() time.Time

	mu       sync.Mutex
	services []domain.Service
	cachedAt time.Time
}

func NewClient(cfg Config) *Client {
	ttl := cfg.ServicesCache
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.URL, "/"),
		apiKey:  cfg.APIKey,
		ttl:     ttl,
		now:     time.Now,
	}
}

type addResponse struct {
	Order flexString `json:"order"`
	Error string     `json:"error"`
}

type statusResponse struct {
	Charge     *flexFloat `json:"charge"`
	StartCount *flexInt   `json:"start_count"`
	Status     string     `json:"status"`
	Remains    *flexInt   `json:"remains"`
	Currency   string     `json:"currency"`
	Error      string     `json:"error"`
}

type balanceResponse struct {
	Balance  flexFloat `json:"balance"`
	Currency string    `json:"currency"`
	Error    string    `json:"error"`
}

type serviceResponse struct {
	Service  flexInt   `json:"service"`
	Name     string    `json:"name"`
	Type     string    `json:"type"`
	Category string    `json:"category"`
	Rate     flexFloat `json:"rate"`
	Min      flexInt   `json:"min"`
	Max      flexInt   `json:"max"`
}

// CreateOrder places an order. Comments, when present, are sent newline
// separated and their count becomes the quantity.
func (c *Client) CreateOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	form := url.Values{}
	form.Set("action", "add")
	form.Set("service", strconv.Itoa(req.ServiceID))
	form.Set("link", req.Link)
	quantity := req.Quantity
	if len(req.Comments) > 0 {
		quantity = len(req.Comments)
		form.Set("comments", strings.Join(req.Comments, "\n"))
	}
	form.Set("quantity", strconv.Itoa(quantity))

	var resp addResponse
	if err := c.call(ctx, form, &resp); err != nil {
		return domain.OrderResult{}, err
	}
	if resp.Error != "" {
		return domain.OrderResult{}, classifyMessage(resp.Error)
	}
	if resp.Order == "" {
		return domain.OrderResult{}, &domain.OrderError{Kind: domain.Permanent, Message: "response carried no order id"}
	}

	result := domain.OrderResult{OrderID: string(resp.Order)}
	if rate, ok := c.cachedRate(req.ServiceID); ok {
		cost := rate * float64(quantity) / 1000
		result.Cost = &cost
	}

	logrus.WithFields(logrus.Fields{
		"service":  req.ServiceID,
		"quantity": quantity,
		"order_id": result.OrderID,
	}).Debug("[JAP] Order created")
	return result, nil
}

func (c *Client) OrderStatus(ctx context.Context, orderID string) (domain.OrderStatus, error) {
	form := url.Values{}
	form.Set("action", "status")
	form.Set("order", orderID)

	var resp statusResponse
	if err := c.call(ctx, form, &resp); err != nil {
		return domain.OrderStatus{}, err
	}
	if resp.Error != "" {
		return domain.OrderStatus{}, classifyMessage(resp.Error)
	}

	status := domain.OrderStatus{OrderID: orderID, Status: resp.Status}
	if resp.Charge != nil {
		v := float64(*resp.Charge)
		status.Charge = &v
	}
	if resp.Remains != nil {
		v := int(*resp.Remains)
		status.Remains = &v
	}
	if resp.StartCount != nil {
		v := int(*resp.StartCount)
		status.StartCount = &v
	}
	return status, nil
}

func (c *Client) Balance(ctx context.Context) (domain.Balance, error) {
	form := url.Values{}
	form.Set("action", "balance")

	var resp balanceResponse
	if err := c.call(ctx, form, &resp); err != nil {
		return domain.Balance{}, err
	}
	if resp.Error != "" {
		return domain.Balance{}, classifyMessage(resp.Error)
	}
	return domain.Balance{Amount: float64(resp.Balance), Currency: resp.Currency}, nil
}

// ListServices returns the provider catalog, cached for the configured TTL.
func (c *Client) ListServices(ctx context.Context) ([]domain.Service, error) {
	c.mu.Lock()
	if c.services != nil && c.now().Sub(c.cachedAt) < c.ttl {
		cached := append([]domain.Service(nil), c.services...)
		c.mu.Unlock()
		return cached, nil
	}
	c.mu.Unlock()

	form := url.Values{}
	form.Set("action", "services")

	var raw json.RawMessage
	if err := c.call(ctx, form, &raw); err != nil {
		return nil, err
	}

	var errBody struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &errBody) == nil && errBody.Error != "" {
		return nil, classifyMessage(errBody.Error)
	}

	var list []serviceResponse
	if err := json.Unmarshal(raw, &list); err != nil {
		return nil, &domain.OrderError{Kind: domain.Permanent, Message: "unexpected services response", Err: err}
	}

	services := make([]domain.Service, len(list))
	for i, s := range list {
		platform, action := Classify(s.Name)
		services[i] = domain.Service{
			ID:         int(s.Service),
			Name:       s.Name,
			Type:       s.Type,
			Category:   s.Category,
			Rate:       float64(s.Rate),
			Min:        int(s.Min),
			Max:        int(s.Max),
			Platform:   platform,
			ActionType: action,
		}
	}

	c.mu.Lock()
	c.services = services
	c.cachedAt = c.now()
	c.mu.Unlock()

	logrus.Infof("[JAP] Cached %d services", len(services))
	return append([]domain.Service(nil), services...), nil
}

func (c *Client) cachedRate(serviceID int) (float64, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.services {
		if s.ID == serviceID {
			return s.Rate, true
		}
	}
	return 0, false
}

func (c *Client) call(ctx context.Context, form url.Values, out any) error {
	if c.baseURL == "" || c.apiKey == "" {
		return &domain.OrderError{Kind: domain.Permanent, Message: "order service is not configured"}
	}
	form.Set("key", c.apiKey)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, strings.NewReader(form.Encode()))
	if err != nil {
		return &domain.OrderError{Kind: domain.Permanent, Message: "build request", Err: err}
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/json")

	resp, err := httpClient.Do(req)
	if err != nil {
		return classifyTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return &domain.OrderError{Kind: domain.Transient, Code: resp.StatusCode, Message: "read response", Err: err}
	}

	if resp.StatusCode >= 400 {
		msg := errorMessage(body)
		kind := domain.Permanent
		if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode == http.StatusRequestTimeout {
			kind = domain.Transient
		}
		return &domain.OrderError{Kind: kind, Code: resp.StatusCode, Message: msg}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return &domain.OrderError{Kind: domain.Permanent, Code: resp.StatusCode, Message: "unexpected response: " + truncate(string(body), 200), Err: err}
	}
	return nil
}

func classifyTransportError(err error) error {
	if errors.Is(err, context.Canceled) {
		return &domain.OrderError{Kind: domain.Permanent, Message: "request cancelled", Err: err}
	}
	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return &domain.OrderError{Kind: domain.Transient, Message: "request timed out", Err: err}
	}
	return &domain.OrderError{Kind: domain.Transient, Message: "request failed", Err: err}
}

// classifyMessage turns a 200 response with an error field into an
// OrderError. Provider throttling is the only transient case.
func classifyMessage(msg string) error {
	lower := strings.ToLower(msg)
	if strings.Contains(lower, "too many requests") || strings.Contains(lower, "try again later") {
		return &domain.OrderError{Kind: domain.Transient, Message: msg}
	}
	return &domain.OrderError{Kind: domain.Permanent, Message: msg}
}

func errorMessage(body []byte) string {
	var errBody struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(body, &errBody) == nil && errBody.Error != "" {
		return errBody.Error
	}
	if len(body) == 0 {
		return "empty response"
	}
	return truncate(string(body), 200)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}

// Providers answer numbers either as JSON numbers or as strings.

type flexFloat float64

func (f *flexFloat) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %q", s)
	}
	*f = flexFloat(v)
	return nil
}

type flexInt int

func (i *flexInt) UnmarshalJSON(b []byte) error {
	var f flexFloat
	if err := f.UnmarshalJSON(b); err != nil {
		return err
	}
	*i = flexInt(f)
	return nil
}

type flexString string

func (s *flexString) UnmarshalJSON(b []byte) error {
	*s = flexString(strings.Trim(string(b), `"`))
	if *s == "null" {
		*s = ""
	}
	return nil
}
