// Package gateway talks to the BloomBuddy server over HTTP. Client implements
// the remote capabilities the chat core depends on.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Rrens/bloombuddy/internal/domain"
)

const maxErrorBody = 64 << 10

// Client is an HTTP client for the chat endpoint and the archive API
type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.client = hc
	}
}

// WithToken sends a bearer token on every request
func WithToken(token string) Option {
	return func(c *Client) {
		c.token = token
	}
}

// WithTimeout bounds each request
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.client.Timeout = d
	}
}

// NewClient creates a client for the server at baseURL
func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
}

// SendChat posts the context window plus the new message to /api/chat
func (c *Client) SendChat(ctx context.Context, req domain.ChatRequest) (*domain.ChatReply, error) {
	var reply domain.ChatReply
	if err := c.do(ctx, http.MethodPost, "/api/chat", req, &reply); err != nil {
		return nil, err
	}
	return &reply, nil
}

// CreateConversationRecord creates an archive record and returns its id
func (c *Client) CreateConversationRecord(ctx context.Context, userID, topic string) (string, error) {
	var conv domain.Conversation
	body := domain.ConversationCreate{UserID: userID, Topic: topic}
	if err := c.doData(ctx, http.MethodPost, "/api/conversations", body, &conv); err != nil {
		return "", err
	}
	if conv.ID == "" {
		return "", errors.New("server returned a conversation without an id")
	}
	return conv.ID, nil
}

// AppendMessageRecord archives one message under a conversation
func (c *Client) AppendMessageRecord(ctx context.Context, conversationID string, message domain.Message) error {
	body := domain.MessageCreate{Role: message.Role, Content: message.Content}
	path := "/api/conversations/" + url.PathEscape(conversationID) + "/messages"
	return c.doData(ctx, http.MethodPost, path, body, nil)
}

// ReadUserRecord fetches a user profile; a missing user is domain.ErrNotFound
func (c *Client) ReadUserRecord(ctx context.Context, userID string) (*domain.UserRecord, error) {
	var user domain.UserRecord
	if err := c.doData(ctx, http.MethodGet, "/api/users/"+url.PathEscape(userID), nil, &user); err != nil {
		return nil, notFound(err)
	}
	return &user, nil
}

// ListConversations lists a user's archived conversations, newest first
func (c *Client) ListConversations(ctx context.Context, userID, topic string, limit int) ([]domain.Conversation, error) {
	q := url.Values{}
	q.Set("userId", userID)
	if topic != "" {
		q.Set("topic", topic)
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}

	var conversations []domain.Conversation
	if err := c.doData(ctx, http.MethodGet, "/api/conversations?"+q.Encode(), nil, &conversations); err != nil {
		return nil, err
	}
	return conversations, nil
}

// ReadConversation fetches a conversation with its messages
func (c *Client) ReadConversation(ctx context.Context, id string) (*domain.ConversationDetail, error) {
	var detail domain.ConversationDetail
	if err := c.doData(ctx, http.MethodGet, "/api/conversations/"+url.PathEscape(id), nil, &detail); err != nil {
		return nil, notFound(err)
	}
	return &detail, nil
}

// Ping checks that the server answers its health check
func (c *Client) Ping(ctx context.Context) error {
	return c.do(ctx, http.MethodGet, "/health", nil, nil)
}

func (c *Client) doData(ctx context.Context, method, path string, body, out any) error {
	var env envelope
	if err := c.do(ctx, method, path, body, &env); err != nil {
		return err
	}
	if out == nil || len(env.Data) == 0 {
		return nil
	}
	if err := json.Unmarshal(env.Data, out); err != nil {
		return fmt.Errorf("failed to decode response data: %w", err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeError(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// decodeError builds an EndpointError from a failed response. Bodies that are
// not JSON still yield the status.
func decodeError(resp *http.Response) error {
	epErr := &domain.EndpointError{Status: resp.StatusCode}

	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if len(data) > 0 {
		_ = json.Unmarshal(data, epErr)
		epErr.Status = resp.StatusCode
	}
	if epErr.Code == "" {
		epErr.Code = http.StatusText(resp.StatusCode)
	}
	return epErr
}

func notFound(err error) error {
	var epErr *domain.EndpointError
	if errors.As(err, &epErr) && epErr.Status == http.StatusNotFound {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, epErr.Message)
	}
	return err
}
