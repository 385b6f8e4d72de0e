package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/draftdeck/draftdeck/pkg/logger"
)

// Envelope is the provider-side document or template representation the
// mapper consumes. Templates and envelopes share a shape; envelopes
// additionally carry recipients and an absolute expiration date.
type Envelope struct {
	ID         string              `json:"id"`
	Name       string              `json:"name"`
	Content    []ContentItem       `json:"content"`
	Recipients []ProviderRecipient `json:"recipients,omitempty"`
	Fields     []ProviderField     `json:"fields,omitempty"`
	Tokens     []ProviderToken     `json:"tokens,omitempty"`
	ExpiresAt  *time.Time          `json:"expires_at,omitempty"`
}

// ContentItem is one node of the provider's nested content tree. Known
// fields are decoded directly; the full raw object is retained so the
// fallback heuristic can probe fields we did not model.
type ContentItem struct {
	Type        string            `json:"type"`
	Text        string            `json:"text,omitempty"`
	HTML        string            `json:"html,omitempty"`
	Title       string            `json:"title,omitempty"`
	Name        string            `json:"name,omitempty"`
	Value       string            `json:"value,omitempty"`
	Content     string            `json:"content,omitempty"`
	Description string            `json:"description,omitempty"`
	URL         string            `json:"url,omitempty"`
	Src         string            `json:"src,omitempty"`
	Alt         string            `json:"alt,omitempty"`
	Caption     string            `json:"caption,omitempty"`
	Width       int               `json:"width,omitempty"`
	Alignment   string            `json:"alignment,omitempty"`
	Style       string            `json:"style,omitempty"`
	Size        string            `json:"size,omitempty"`
	Role        string            `json:"role,omitempty"`
	Required    *bool             `json:"required,omitempty"`
	Currency    string            `json:"currency,omitempty"`
	Rows        []PricingRow      `json:"rows,omitempty"`
	Options     map[string]any    `json:"options,omitempty"`
	Items       []string          `json:"items,omitempty"`
	Columns     []string          `json:"columns,omitempty"`
	Cells       [][]string        `json:"cells,omitempty"`
	Checked     map[string]bool   `json:"checked,omitempty"`

	raw map[string]json.RawMessage
}

func (c *ContentItem) UnmarshalJSON(data []byte) error {
	type alias ContentItem
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	*c = ContentItem(a)
	// keep the raw object for the fallback text-guess heuristic
	_ = json.Unmarshal(data, &c.raw)
	return nil
}

// RawString returns the named raw field when it is a non-empty string.
func (c *ContentItem) RawString(field string) string {
	v, ok := c.raw[field]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(v, &s); err != nil {
		return ""
	}
	return s
}

// PricingRow is one row of provider pricing content. Tax and discount
// arrive in provider-specific option shapes and are derived by the mapper.
type PricingRow struct {
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Qty         float64        `json:"qty"`
	Price       float64        `json:"price"`
	Optional    bool           `json:"optional,omitempty"`
	Selected    *bool          `json:"selected,omitempty"`
	QtyEditable bool           `json:"qty_editable,omitempty"`
	Options     map[string]any `json:"options,omitempty"`
}

type ProviderRecipient struct {
	Email        string `json:"email"`
	Name         string `json:"name,omitempty"`
	Role         string `json:"role"`
	SigningOrder int    `json:"signing_order,omitempty"`
}

type ProviderField struct {
	Type       string `json:"type"`
	Name       string `json:"name"`
	Value      string `json:"value,omitempty"`
	Role       string `json:"role,omitempty"`
	AssignedTo string `json:"assigned_to,omitempty"`
}

type ProviderToken struct {
	Name  string `json:"name"`
	Value string `json:"value,omitempty"`
}

// Provider is the subset of the provider API the import service needs. The
// raw payload is returned alongside the decoded envelope for archiving.
type Provider interface {
	FetchTemplate(ctx context.Context, id string) (*Envelope, []byte, error)
	FetchEnvelope(ctx context.Context, id string) (*Envelope, []byte, error)
}

// Client talks to the external e-signature provider with bearer auth. An
// expired token is refreshed silently and the refresh hook is invoked so
// the caller can persist the rotated credentials; the client itself never
// persists anything.
type Client struct {
	baseURL string
	httpc   *http.Client

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	onRefresh    func(accessToken, refreshToken string)
}

func NewClient(baseURL, accessToken, refreshToken string) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpc:        &http.Client{Timeout: 30 * time.Second},
		accessToken:  accessToken,
		refreshToken: refreshToken,
	}
}

// OnTokenRefresh registers the hook invoked after every silent token
// refresh.
func (c *Client) OnTokenRefresh(fn func(accessToken, refreshToken string)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onRefresh = fn
}

func (c *Client) FetchTemplate(ctx context.Context, id string) (*Envelope, []byte, error) {
	return c.fetch(ctx, "/v1/templates/"+id)
}

func (c *Client) FetchEnvelope(ctx context.Context, id string) (*Envelope, []byte, error) {
	return c.fetch(ctx, "/v1/envelopes/"+id)
}

func (c *Client) fetch(ctx context.Context, path string) (*Envelope, []byte, error) {
	body, err := c.get(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	var env Envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, nil, fmt.Errorf("decode provider response: %w", err)
	}
	return &env, body, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	body, status, err := c.do(ctx, path)
	if err != nil {
		return nil, err
	}
	if status == http.StatusUnauthorized {
		if err := c.refresh(ctx); err != nil {
			return nil, fmt.Errorf("token refresh: %w", err)
		}
		body, status, err = c.do(ctx, path)
		if err != nil {
			return nil, err
		}
	}
	if status != http.StatusOK {
		return nil, fmt.Errorf("provider returned %d for %s", status, path)
	}
	return body, nil
}

func (c *Client) do(ctx context.Context, path string) ([]byte, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, 0, err
	}
	c.mu.Lock()
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	c.mu.Unlock()
	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, err
	}
	return body, resp.StatusCode, nil
}

func (c *Client) refresh(ctx context.Context) error {
	c.mu.Lock()
	rt := c.refreshToken
	c.mu.Unlock()
	payload := strings.NewReader(`{"grant_type":"refresh_token","refresh_token":"` + rt + `"}`)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/oauth/token", payload)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpc.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("refresh endpoint returned %d", resp.StatusCode)
	}
	var tok struct {
		AccessToken  string `json:"access_token"`
		RefreshToken string `json:"refresh_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return err
	}
	c.mu.Lock()
	c.accessToken = tok.AccessToken
	if tok.RefreshToken != "" {
		c.refreshToken = tok.RefreshToken
	}
	hook := c.onRefresh
	access, refreshTok := c.accessToken, c.refreshToken
	c.mu.Unlock()
	logger.Debugf("provider access token refreshed")
	if hook != nil {
		hook(access, refreshTok)
	}
	return nil
}
