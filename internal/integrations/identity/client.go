package identity

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"cstore-agent/internal/domain"
)

// Client fetches the signed-in user's profile from the identity provider's
// OAuth2 userinfo endpoint.
type Client struct {
	domain     string
	httpClient *http.Client
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func NewClient(identityDomain string, opts ...Option) *Client {
	c := &Client{
		domain:     strings.TrimRight(strings.TrimSpace(identityDomain), "/"),
		httpClient: &http.Client{},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) userInfoURL() string {
	return c.domain + "/oauth2/userInfo"
}

// UserInfo resolves the account linked to accessToken.
func (c *Client) UserInfo(ctx context.Context, accessToken string) (domain.UserDetails, error) {
	if c.domain == "" {
		return domain.UserDetails{}, errors.New("identity: domain is not configured")
	}
	if strings.TrimSpace(accessToken) == "" {
		return domain.UserDetails{}, errors.New("identity: access token is empty")
	}

	url := c.userInfoURL()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return domain.UserDetails{}, fmt.Errorf("identity: create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	res, err := c.httpClient.Do(req)
	if err != nil {
		return domain.UserDetails{}, fmt.Errorf("identity: request failed: %w", err)
	}
	defer func() { _ = res.Body.Close() }()

	if res.StatusCode != http.StatusOK {
		buf, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return domain.UserDetails{}, fmt.Errorf("identity: unexpected status %d from %s: %s", res.StatusCode, url, strings.TrimSpace(string(buf)))
	}

	var out domain.UserDetails
	if err := json.NewDecoder(io.LimitReader(res.Body, 1<<20)).Decode(&out); err != nil {
		return domain.UserDetails{}, fmt.Errorf("identity: decode userinfo: %w", err)
	}
	return out, nil
}
