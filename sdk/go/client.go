package freshnestsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Freshnest HTTP API client.
type Client struct {
	BaseURL     string
	BearerToken string
	HTTPClient  *http.Client
	Timeout     time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL: baseURL,
		Timeout: 10 * time.Second,
	}
}

// Request represents the API service request model (partial).
type Request struct {
	ID        string `json:"id"`
	HostID    string `json:"host_id"`
	CleanerID string `json:"cleaner_id,omitempty"`
	Price     int    `json:"price"`
	Status    string `json:"status"`
	Asset     struct {
		Name    string `json:"name"`
		Address string `json:"address"`
	} `json:"asset"`
	Schedule struct {
		Date     string `json:"date"`
		Time     string `json:"time"`
		Duration string `json:"duration"`
	} `json:"schedule"`
	Rating *int `json:"rating,omitempty"`
}

// Notification represents a feed entry.
type Notification struct {
	ID         string `json:"id"`
	Seq        int64  `json:"seq"`
	Type       string `json:"type"`
	Title      string `json:"title"`
	Body       string `json:"body"`
	ForRole    string `json:"for_role"`
	Read       bool   `json:"read"`
	RequestRef string `json:"request_ref,omitempty"`
	CreatedAt  string `json:"created_at"`
}

// Message represents a conversation message.
type Message struct {
	ID             string `json:"id"`
	ConversationID string `json:"conversation_id"`
	Sender         string `json:"sender"`
	Text           string `json:"text"`
	SentAt         string `json:"sent_at"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

type requestList struct {
	Items []Request `json:"items"`
	Total int       `json:"total"`
}

type notificationList struct {
	Items []Notification `json:"items"`
	Total int            `json:"total"`
}

// Login mints a dev token and stores it on the client.
func (c *Client) Login(ctx context.Context, actorID, role string) error {
	var resp struct {
		Token string `json:"token"`
	}
	body := map[string]any{"actor_id": actorID, "role": role}
	if err := c.do(ctx, http.MethodPost, "v0/auth/dev/login", body, &resp); err != nil {
		return err
	}
	c.BearerToken = resp.Token
	return nil
}

// CreateRequest posts a cleaning request.
func (c *Client) CreateRequest(ctx context.Context, body map[string]any) (Request, error) {
	var resp Request
	err := c.do(ctx, http.MethodPost, "v0/requests", body, &resp)
	return resp, err
}

// ListRequests lists requests; view selects a slice of the collection.
func (c *Client) ListRequests(ctx context.Context, view string) ([]Request, error) {
	endpoint := "v0/requests"
	if view != "" {
		endpoint += "?view=" + url.QueryEscape(view)
	}
	var resp requestList
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

// GetRequest fetches a single request.
func (c *Client) GetRequest(ctx context.Context, id string) (Request, error) {
	var resp Request
	err := c.do(ctx, http.MethodGet, "v0/requests/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

// Transition invokes a lifecycle operation: apply, withdraw, reject,
// confirm, start, complete or cancel.
func (c *Client) Transition(ctx context.Context, id, op string) (Request, error) {
	var resp Request
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("v0/requests/%s/%s", url.PathEscape(id), op), nil, &resp)
	return resp, err
}

// Rate scores a completed request.
func (c *Client) Rate(ctx context.Context, id string, rating int, review string) (Request, error) {
	var resp Request
	body := map[string]any{"rating": rating, "review": review}
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("v0/requests/%s/rate", url.PathEscape(id)), body, &resp)
	return resp, err
}

// SendMessage appends a message to a conversation.
func (c *Client) SendMessage(ctx context.Context, conversationID, text string) (Message, error) {
	var resp Message
	body := map[string]any{"text": text}
	err := c.do(ctx, http.MethodPost, fmt.Sprintf("v0/conversations/%s/messages", url.PathEscape(conversationID)), body, &resp)
	return resp, err
}

// Notifications lists the caller's notifications, newest first.
func (c *Client) Notifications(ctx context.Context) ([]Notification, error) {
	var resp notificationList
	err := c.do(ctx, http.MethodGet, "v0/notifications", nil, &resp)
	return resp.Items, err
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.BearerToken)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		return &APIError{StatusCode: resp.StatusCode, Body: string(b)}
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	return strings.TrimRight(c.BaseURL, "/")
}
