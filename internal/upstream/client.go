// Package upstream fetches template offers from a running offer service.
package upstream

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/JonMunkholm/offerloader/internal/domain"
)

// DefaultTimeout bounds a fetch when the caller supplies no HTTP client.
const DefaultTimeout = 30 * time.Second

// Client reads offers from {BaseURL}/offers.
type Client struct {
	BaseURL string
	HTTP    *http.Client
}

// New returns a Client with its own HTTP client bounded by timeout.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTP:    &http.Client{Timeout: timeout},
	}
}

// offerPayload is the wire shape of one offer. Unlike domain.User it keeps
// the host password, which fixture files carry.
type offerPayload struct {
	domain.OfferRecord
	Host hostPayload `json:"host"`
}

type hostPayload struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Avatar   string `json:"avatar"`
	Password string `json:"password"`
	IsPro    bool   `json:"isPro"`
}

// FetchOffers returns every offer listed by the service. There is no
// pagination, authentication or retry: any non-200 status or undecodable
// body is an error.
func (c *Client) FetchOffers(ctx context.Context) ([]domain.OfferRecord, error) {
	url := c.BaseURL + "/offers"

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultTimeout}
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, &StatusError{URL: url, Code: resp.StatusCode, Body: strings.TrimSpace(string(snippet))}
	}

	var payload []offerPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode %s: %w", url, err)
	}

	offers := make([]domain.OfferRecord, len(payload))
	for i, p := range payload {
		rec := p.OfferRecord
		rec.Host = domain.User{
			Name:     p.Host.Name,
			Email:    p.Host.Email,
			Avatar:   p.Host.Avatar,
			Password: p.Host.Password,
			IsPro:    p.Host.IsPro,
		}
		offers[i] = rec
	}
	return offers, nil
}

// StatusError reports a non-200 response.
type StatusError struct {
	URL  string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("fetch %s: unexpected status %d", e.URL, e.Code)
	}
	return fmt.Sprintf("fetch %s: unexpected status %d: %s", e.URL, e.Code, e.Body)
}
