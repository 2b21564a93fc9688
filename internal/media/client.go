// Package media is a client for the media moderation service, which holds
// block state and AI-classifier results for uploaded blobs keyed by sha256.
package media

import (
	"bytes"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/tidwall/gjson"

	"github.com/divinevideo/relay-admin/internal/consensus"
	"github.com/divinevideo/relay-admin/internal/credential"
	"github.com/divinevideo/relay-admin/internal/logging"
	"github.com/divinevideo/relay-admin/internal/metrics"
)

// Moderation actions understood by the service.
const (
	ActionBlock       = "PERMANENT_BAN"
	ActionUnblock     = "SAFE"
	ActionAgeRestrict = "AGE_RESTRICTED"
)

// Defaults for the retrying HTTP client.
const (
	DefaultTimeout      = 15 * time.Second
	DefaultMaxRetries   = 3
	DefaultRetryWaitMin = 500 * time.Millisecond
	DefaultRetryWaitMax = 5 * time.Second
)

const maxResponseBytes = 4 << 20

// Client calls the moderation service.
type Client struct {
	baseURL    string
	token      credential.Credential
	httpClient *http.Client
	transport  http.RoundTripper
	logger     *slog.Logger

	timeout    time.Duration
	maxRetries int
	waitMin    time.Duration
	waitMax    time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the retrying client entirely.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		c.httpClient = client
	}
}

// WithTransport sets the transport under the retry layer.
func WithTransport(t http.RoundTripper) Option {
	return func(c *Client) {
		c.transport = t
	}
}

// WithLogger sets the logger that receives retry attempts.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// WithTimeout bounds one logical call, retries included.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithMaxRetries sets the maximum number of retries.
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		c.maxRetries = n
	}
}

// WithRetryWait sets the backoff bounds between retries.
func WithRetryWait(waitMin, waitMax time.Duration) Option {
	return func(c *Client) {
		c.waitMin = waitMin
		c.waitMax = waitMax
	}
}

// NewClient creates a moderation service client. token may be nil when the
// service does not require one.
func NewClient(baseURL string, token credential.Credential, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		logger:     slog.Default(),
		timeout:    DefaultTimeout,
		maxRetries: DefaultMaxRetries,
		waitMin:    DefaultRetryWaitMin,
		waitMax:    DefaultRetryWaitMax,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.httpClient == nil {
		c.httpClient = c.newRetryingClient()
	}
	return c
}

func (c *Client) newRetryingClient() *http.Client {
	rc := retryablehttp.NewClient()
	rc.RetryMax = c.maxRetries
	rc.RetryWaitMin = c.waitMin
	rc.RetryWaitMax = c.waitMax
	rc.Logger = retryablehttp.LeveledLogger(logging.Leveled{Logger: c.logger.With("subsystem", "media")})
	rc.CheckRetry = RetryPolicy
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler
	if c.transport != nil {
		rc.HTTPClient.Transport = c.transport
	}

	client := rc.StandardClient()
	client.Timeout = c.timeout
	return client
}

// RetryPolicy retries connection errors and 5xx responses, but leaves 429 to
// the caller.
func RetryPolicy(ctx context.Context, resp *http.Response, err error) (bool, error) {
	if err == nil && resp.StatusCode == http.StatusTooManyRequests {
		return false, nil
	}
	return retryablehttp.DefaultRetryPolicy(ctx, resp, err)
}

// Configured reports whether a service URL is set.
func (c *Client) Configured() bool {
	return c != nil && c.baseURL != ""
}

type moderateRequest struct {
	SHA256 string `json:"sha256"`
	Action string `json:"action"`
	Reason string `json:"reason,omitempty"`
	Source string `json:"source,omitempty"`
}

// Moderate applies action to the blob and returns the service's response body.
func (c *Client) Moderate(ctx context.Context, sha256, action, reason string) (json.RawMessage, error) {
	if err := ValidateHash(sha256); err != nil {
		return nil, err
	}
	body, err := json.Marshal(moderateRequest{
		SHA256: strings.ToLower(sha256),
		Action: action,
		Reason: reason,
		Source: "relay-admin",
	})
	if err != nil {
		return nil, fmt.Errorf("media: encode request: %w", err)
	}
	return c.do(ctx, "moderate", http.MethodPost, "/api/v1/moderate", body)
}

// Block permanently blocks the blob.
func (c *Client) Block(ctx context.Context, sha256, reason string) error {
	_, err := c.Moderate(ctx, sha256, ActionBlock, reason)
	return err
}

// Unblock marks the blob safe again.
func (c *Client) Unblock(ctx context.Context, sha256, reason string) error {
	_, err := c.Moderate(ctx, sha256, ActionUnblock, reason)
	return err
}

// CheckResult is the service's stored state for one blob.
type CheckResult struct {
	SHA256    string                     `json:"sha256"`
	Action    string                     `json:"action,omitempty"`
	Providers []consensus.ProviderResult `json:"providers"`
	Raw       json.RawMessage            `json:"raw"`
}

// Blocked reports whether the stored action blocks serving the blob.
func (r *CheckResult) Blocked() bool {
	return IsBlocked(r.Action)
}

// IsBlocked reports whether action prevents the blob from being served.
func IsBlocked(action string) bool {
	switch strings.ToUpper(strings.TrimSpace(action)) {
	case ActionBlock, "BLOCK", "BLOCKED", "QUARANTINE":
		return true
	}
	return false
}

// CheckResult fetches moderation state and per-provider classifier results.
func (c *Client) CheckResult(ctx context.Context, sha256 string) (*CheckResult, error) {
	if err := ValidateHash(sha256); err != nil {
		return nil, err
	}
	hash := strings.ToLower(sha256)
	raw, err := c.do(ctx, "check_result", http.MethodGet, "/api/v1/check-result/"+hash, nil)
	if err != nil {
		return nil, err
	}

	res := &CheckResult{
		SHA256:    hash,
		Action:    firstString(raw, "action", "moderation.action"),
		Providers: ParseProviders(raw),
		Raw:       raw,
	}
	return res, nil
}

// Status returns the stored moderation action for the blob.
func (c *Client) Status(ctx context.Context, sha256 string) (string, error) {
	res, err := c.CheckResult(ctx, sha256)
	if err != nil {
		return "", err
	}
	return res.Action, nil
}

// ParseProviders extracts classifier results from a check-result document.
// Providers may be given as an object keyed by provider id or as an array of
// objects carrying their own id.
func ParseProviders(raw []byte) []consensus.ProviderResult {
	doc := gjson.ParseBytes(raw)
	providers := doc.Get("providers")
	if !providers.Exists() {
		providers = doc.Get("results")
	}

	var out []consensus.ProviderResult
	providers.ForEach(func(key, value gjson.Result) bool {
		if !value.IsObject() {
			return true
		}
		id := key.String()
		if providers.IsArray() {
			id = firstString([]byte(value.Raw), "provider", "id", "name")
		}
		pr := consensus.ProviderResult{
			ProviderID: id,
			Status:     firstString([]byte(value.Raw), "status", "state"),
			Verdict:    firstString([]byte(value.Raw), "verdict", "classification", "label"),
			Raw:        json.RawMessage(value.Raw),
		}
		for _, path := range []string{"score", "confidence", "ai_score", "scores.ai"} {
			if s := value.Get(path); s.Type == gjson.Number {
				f := s.Float()
				pr.Score = &f
				break
			}
		}
		out = append(out, pr)
		return true
	})
	return out
}

func firstString(raw []byte, paths ...string) string {
	for _, p := range paths {
		if v := gjson.GetBytes(raw, p); v.Type == gjson.String {
			return v.String()
		}
	}
	return ""
}

// ValidateHash checks that s is a hex sha256 digest.
func ValidateHash(s string) error {
	if b, err := hex.DecodeString(s); err != nil || len(b) != 32 {
		return ErrInvalidHash
	}
	return nil
}

func (c *Client) do(ctx context.Context, op, method, path string, body []byte) (json.RawMessage, error) {
	if !c.Configured() {
		return nil, ErrNotConfigured
	}

	start := time.Now()
	raw, err := c.roundTrip(ctx, method, path, body)
	result := "ok"
	if err != nil {
		result = "error"
	}
	metrics.RecordRelayCall("media_"+op, result, time.Since(start).Seconds())
	return raw, err
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body []byte) (json.RawMessage, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("media: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != nil {
		token, err := c.token.Resolve(ctx)
		switch {
		case err == nil:
			req.Header.Set("Authorization", "Bearer "+token)
		case !errors.Is(err, credential.ErrNotConfigured):
			return nil, fmt.Errorf("media: resolve token: %w", err)
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("media: request failed: %w", err)
	}
	defer func() {
		//nolint:errcheck
		resp.Body.Close()
	}()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("media: read response: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound && method == http.MethodGet {
		return nil, ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, parseError(resp.StatusCode, resp.Status, respBody)
	}
	if len(bytes.TrimSpace(respBody)) == 0 {
		return json.RawMessage("{}"), nil
	}
	if !json.Valid(respBody) {
		return nil, fmt.Errorf("media: response is not JSON")
	}
	return json.RawMessage(respBody), nil
}
