// Package promoapi implements the upstream gamepromo.io HTTP client. Each
// worker owns one Client bound to one proxy for the life of the process.
package promoapi

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/fairyhunter13/promo-harvester/internal/domain"
)

const contentType = "application/json; charset=utf-8"

// Client drives the three-call promo flow through one bound proxy.
type Client struct {
	base string
	http *http.Client
}

// New builds a Client for the given API base. proxyURL may be empty for a
// direct connection (tests); credentials embedded in the proxy URL are sent
// as proxy basic auth by the transport.
func New(base, proxyURL string, timeout time.Duration) (*Client, error) {
	tr := &http.Transport{}
	if proxyURL != "" {
		u, err := url.Parse(proxyURL)
		if err != nil {
			return nil, fmt.Errorf("op=promoapi.New: %w", err)
		}
		tr.Proxy = http.ProxyURL(u)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		http: &http.Client{Transport: tr, Timeout: timeout},
	}, nil
}

// CloseIdleConnections releases the worker's pooled connections on shutdown.
func (c *Client) CloseIdleConnections() { c.http.CloseIdleConnections() }

type loginRequest struct {
	AppToken     string `json:"appToken"`
	ClientID     string `json:"clientId"`
	ClientOrigin string `json:"clientOrigin"`
}

type loginResponse struct {
	ClientToken string `json:"clientToken"`
}

type registerRequest struct {
	PromoID     string `json:"promoId"`
	EventID     string `json:"eventId"`
	EventOrigin string `json:"eventOrigin"`
}

type registerResponse struct {
	HasCode bool `json:"hasCode"`
}

type createRequest struct {
	PromoID string `json:"promoId"`
}

type createResponse struct {
	PromoCode string `json:"promoCode"`
}

// LoginClient obtains a fresh client token for one code cycle.
func (c *Client) LoginClient(ctx domain.Context, appToken, clientID string) (string, error) {
	var out loginResponse
	err := c.post(ctx, "/promo/login-client", "", loginRequest{
		AppToken:     appToken,
		ClientID:     clientID,
		ClientOrigin: "deviceid",
	}, &out)
	if err != nil {
		return "", fmt.Errorf("op=promoapi.login: %w", err)
	}
	if out.ClientToken == "" {
		return "", fmt.Errorf("op=promoapi.login: %w: missing clientToken", domain.ErrInternal)
	}
	return out.ClientToken, nil
}

// RegisterEvent reports one emulated event; hasCode flips once the upstream
// owes a code.
func (c *Client) RegisterEvent(ctx domain.Context, token, promoID, eventID string) (bool, error) {
	var out registerResponse
	err := c.post(ctx, "/promo/register-event", token, registerRequest{
		PromoID:     promoID,
		EventID:     eventID,
		EventOrigin: "undefined",
	}, &out)
	if err != nil {
		return false, fmt.Errorf("op=promoapi.register: %w", err)
	}
	return out.HasCode, nil
}

// CreateCode mints the promo code owed after a successful RegisterEvent.
func (c *Client) CreateCode(ctx domain.Context, token, promoID string) (string, error) {
	var out createResponse
	if err := c.post(ctx, "/promo/create-code", token, createRequest{PromoID: promoID}, &out); err != nil {
		return "", fmt.Errorf("op=promoapi.create: %w", err)
	}
	if out.PromoCode == "" {
		return "", fmt.Errorf("op=promoapi.create: %w: empty promoCode", domain.ErrNoCode)
	}
	return out.PromoCode, nil
}

func (c *Client) post(ctx domain.Context, path, bearer string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", contentType)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return err
	}
	// An HTML body means an intermediate proxy answered, not the API.
	if strings.Contains(resp.Header.Get("Content-Type"), "text/html") {
		return fmt.Errorf("status %d: %w", resp.StatusCode, domain.ErrHTMLResponse)
	}
	if resp.StatusCode == http.StatusBadRequest && bytes.Contains(raw, []byte("TooManyRegister")) {
		return domain.ErrTooManyRegister
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("status %d: %s", resp.StatusCode, truncate(raw, 200))
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode: %w", err)
	}
	return nil
}

func truncate(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
