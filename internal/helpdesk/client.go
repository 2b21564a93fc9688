// Package helpdesk talks to the Zendesk support desk: it posts internal
// notes on tickets from a background queue, parses free-text abuse reports
// into moderation targets, and issues messaging JWTs for the mobile app.
package helpdesk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"

	"github.com/divinevideo/relay-admin/internal/credential"
	"github.com/divinevideo/relay-admin/internal/logging"
)

// DefaultTimeout bounds one note post, retries included.
const DefaultTimeout = 20 * time.Second

// Client posts to the Zendesk ticket API.
type Client struct {
	baseURL    string
	email      string
	token      credential.Credential
	httpClient *http.Client
	logger     *slog.Logger
	maxRetries int
	waitMin    time.Duration
	waitMax    time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the https://<subdomain>.zendesk.com base.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimRight(u, "/")
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithLogger sets the logger for retry attempts.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithRetry sets the retry count and backoff bounds.
func WithRetry(maxRetries int, waitMin, waitMax time.Duration) Option {
	return func(c *Client) {
		c.maxRetries = maxRetries
		c.waitMin = waitMin
		c.waitMax = waitMax
	}
}

// NewClient creates a Zendesk client authenticating as email with an API token.
func NewClient(subdomain, email string, token credential.Credential, opts ...Option) *Client {
	c := &Client{
		email:      email,
		token:      token,
		logger:     slog.Default(),
		maxRetries: 3,
		waitMin:    time.Second,
		waitMax:    10 * time.Second,
	}
	if subdomain != "" {
		c.baseURL = "https://" + subdomain + ".zendesk.com"
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		rc := retryablehttp.NewClient()
		rc.RetryMax = c.maxRetries
		rc.RetryWaitMin = c.waitMin
		rc.RetryWaitMax = c.waitMax
		rc.Logger = retryablehttp.LeveledLogger(logging.Leveled{Logger: c.logger.With("subsystem", "helpdesk")})
		rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
		c.httpClient = rc.StandardClient()
		c.httpClient.Timeout = DefaultTimeout
	}
	return c
}

// Configured reports whether notes can be posted.
func (c *Client) Configured() bool {
	return c != nil && c.baseURL != "" && c.email != "" && c.token != nil
}

type ticketUpdate struct {
	Ticket struct {
		Comment struct {
			Body   string `json:"body"`
			Public bool   `json:"public"`
		} `json:"comment"`
	} `json:"ticket"`
}

// AddTicketNote appends a private (internal) comment to a ticket.
func (c *Client) AddTicketNote(ctx context.Context, ticketID, body string) error {
	if !c.Configured() {
		return ErrNotConfigured
	}
	if _, err := strconv.ParseUint(ticketID, 10, 64); err != nil {
		return ErrInvalidTicket
	}

	token, err := c.token.Resolve(ctx)
	if err != nil {
		return fmt.Errorf("helpdesk: resolve api token: %w", err)
	}

	var update ticketUpdate
	update.Ticket.Comment.Body = body
	payload, err := json.Marshal(update)
	if err != nil {
		return fmt.Errorf("helpdesk: encode note: %w", err)
	}

	url := fmt.Sprintf("%s/api/v2/tickets/%s.json", c.baseURL, ticketID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("helpdesk: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.email+"/token", token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("helpdesk: add note to ticket %s: %w", ticketID, err)
	}
	defer func() {
		//nolint:errcheck
		resp.Body.Close()
	}()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		msg := gjson.GetBytes(respBody, "description").String()
		if msg == "" {
			msg = gjson.GetBytes(respBody, "error").String()
		}
		return &APIError{StatusCode: resp.StatusCode, Status: resp.Status, Message: msg}
	}
	return nil
}
