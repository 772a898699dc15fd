// Package client is the Go SDK for the marketplace API: REST calls, the
// live feed and a local conversation transcript.
package client

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/bazaar-market/apiserver/types"
	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

// Config holds the connection parameters of a client.
type Config struct {
	// BaseURL is the API root, e.g. http://localhost:8080.
	BaseURL string

	// Token is the bearer token returned by Login or Register.
	Token string
}

// APIError is returned for non-2xx responses.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("api: %d %s", e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("api: %d %s", e.Status, e.Message)
}

type errorBody struct {
	Error string `json:"error"`
}

// AuthResponse is returned by Login and Register.
type AuthResponse struct {
	Token   string        `json:"token"`
	User    types.User    `json:"user"`
	Profile types.Profile `json:"profile"`
}

// RegisterRequest carries the sign-up form.
type RegisterRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirm_password"`
	Username        string `json:"username"`
	Name            string `json:"name"`
	Phone           string `json:"phone,omitempty"`
	City            string `json:"city,omitempty"`
}

// Client talks to the REST API. It is safe for concurrent use once
// configured.
type Client struct {
	cfg  Config
	rest *resty.Client
}

func New(cfg Config) *Client {
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	rest := resty.New().
		SetBaseURL(cfg.BaseURL).
		SetHeader("Accept", "application/json")
	if cfg.Token != "" {
		rest.SetAuthToken(cfg.Token)
	}
	return &Client{cfg: cfg, rest: rest}
}

// SetToken replaces the bearer token used for later calls.
func (c *Client) SetToken(token string) {
	c.cfg.Token = token
	c.rest.SetAuthToken(token)
}

// Token returns the current bearer token.
func (c *Client) Token() string {
	return c.cfg.Token
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	req := c.rest.R().
		SetContext(ctx).
		SetError(&errorBody{})
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}
	if result != nil {
		req.SetResult(result)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return err
	}
	if resp.IsError() {
		apiErr := &APIError{Status: resp.StatusCode()}
		if e, ok := resp.Error().(*errorBody); ok {
			apiErr.Message = e.Error
		}
		return apiErr
	}
	return nil
}

// Register creates an account and stores the returned token.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (AuthResponse, error) {
	var out AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/register", req, &out); err != nil {
		return AuthResponse{}, err
	}
	c.SetToken(out.Token)
	return out, nil
}

// Login signs in and stores the returned token.
func (c *Client) Login(ctx context.Context, email, password string) (AuthResponse, error) {
	var out AuthResponse
	body := map[string]string{"email": email, "password": password}
	if err := c.do(ctx, http.MethodPost, "/auth/login", body, &out); err != nil {
		return AuthResponse{}, err
	}
	c.SetToken(out.Token)
	return out, nil
}

// Me returns the signed-in profile.
func (c *Client) Me(ctx context.Context) (types.Profile, error) {
	var out types.Profile
	err := c.do(ctx, http.MethodGet, "/auth/me", nil, &out)
	return out, err
}

func (c *Client) Profile(ctx context.Context, id uuid.UUID) (types.Profile, error) {
	var out types.Profile
	err := c.do(ctx, http.MethodGet, "/profiles/"+id.String(), nil, &out)
	return out, err
}

// Conversation returns every message exchanged with other, oldest first.
func (c *Client) Conversation(ctx context.Context, other uuid.UUID) ([]types.Message, error) {
	var out []types.Message
	err := c.do(ctx, http.MethodGet, "/messages/"+other.String(), nil, &out)
	return out, err
}

// Conversations returns the latest message per counterpart, newest first.
func (c *Client) Conversations(ctx context.Context) ([]types.ConversationSummary, error) {
	var out []types.ConversationSummary
	err := c.do(ctx, http.MethodGet, "/conversations", nil, &out)
	return out, err
}

func (c *Client) SendMessage(ctx context.Context, other uuid.UUID, content string) (types.Message, error) {
	var out types.Message
	body := map[string]string{"content": content}
	err := c.do(ctx, http.MethodPost, "/messages/"+other.String(), body, &out)
	return out, err
}

func (c *Client) Listing(ctx context.Context, id uuid.UUID) (types.Listing, error) {
	var out types.Listing
	err := c.do(ctx, http.MethodGet, "/listings/"+id.String(), nil, &out)
	return out, err
}

func (c *Client) MakeOffer(ctx context.Context, listingID uuid.UUID, price float64, message string) (types.Offer, error) {
	var out types.Offer
	body := map[string]any{"price": price, "message": message}
	err := c.do(ctx, http.MethodPost, "/listings/"+listingID.String()+"/offers", body, &out)
	return out, err
}

func (c *Client) ListingOffers(ctx context.Context, listingID uuid.UUID) ([]types.Offer, error) {
	var out []types.Offer
	err := c.do(ctx, http.MethodGet, "/listings/"+listingID.String()+"/offers", nil, &out)
	return out, err
}

func (c *Client) MyOffers(ctx context.Context) ([]types.Offer, error) {
	var out []types.Offer
	err := c.do(ctx, http.MethodGet, "/offers", nil, &out)
	return out, err
}

func (c *Client) AcceptOffer(ctx context.Context, offerID uuid.UUID) (types.Offer, error) {
	return c.offerAction(ctx, offerID, "accept", nil)
}

func (c *Client) RejectOffer(ctx context.Context, offerID uuid.UUID) (types.Offer, error) {
	return c.offerAction(ctx, offerID, "reject", nil)
}

func (c *Client) CounterOffer(ctx context.Context, offerID uuid.UUID, price float64, message string) (types.Offer, error) {
	return c.offerAction(ctx, offerID, "counter", map[string]any{"price": price, "message": message})
}

func (c *Client) offerAction(ctx context.Context, offerID uuid.UUID, action string, body any) (types.Offer, error) {
	var out types.Offer
	err := c.do(ctx, http.MethodPost, "/offers/"+offerID.String()+"/"+action, body, &out)
	return out, err
}

// ToggleSaved flips the saved state of a listing and returns the new state.
func (c *Client) ToggleSaved(ctx context.Context, listingID uuid.UUID) (bool, error) {
	var out struct {
		Saved bool `json:"saved"`
	}
	err := c.do(ctx, http.MethodPost, "/listings/"+listingID.String()+"/save", nil, &out)
	return out.Saved, err
}

func (c *Client) IsSaved(ctx context.Context, listingID uuid.UUID) (bool, error) {
	var out struct {
		Saved bool `json:"saved"`
	}
	err := c.do(ctx, http.MethodGet, "/listings/"+listingID.String()+"/saved", nil, &out)
	return out.Saved, err
}

func (c *Client) SavedListings(ctx context.Context) ([]types.Listing, error) {
	var out []types.Listing
	err := c.do(ctx, http.MethodGet, "/saved", nil, &out)
	return out, err
}
