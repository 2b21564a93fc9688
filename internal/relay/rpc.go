package relay

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/nbd-wtf/go-nostr"
	"github.com/tidwall/gjson"

	"github.com/divinevideo/relay-admin/internal/metrics"
)

// ContentTypeRPC is the NIP-86 request content type.
const ContentTypeRPC = "application/nostr+json+rpc"

// KindHTTPAuth is the NIP-98 auth event kind that signs each RPC request.
const KindHTTPAuth = 27235

// DefaultRPCTimeout bounds a management call end to end.
const DefaultRPCTimeout = 15 * time.Second

// maxResponseBytes caps how much of a management response is read.
const maxResponseBytes = 4 << 20

// Envelope is a signed auth event together with the exact payload bytes its
// payload tag commits to.
type Envelope struct {
	Event   *nostr.Event
	Payload []byte
}

// AuthorizationHeader renders the envelope as a NIP-98 Authorization value.
func (e *Envelope) AuthorizationHeader() (string, error) {
	raw, err := json.Marshal(e.Event)
	if err != nil {
		return "", fmt.Errorf("relay: encode auth event: %w", err)
	}
	return "Nostr " + base64.StdEncoding.EncodeToString(raw), nil
}

type rpcRequest struct {
	Method string `json:"method"`
	Params []any  `json:"params"`
}

// RPCClient calls the relay's NIP-86 management API.
type RPCClient struct {
	url        string
	forwarded  bool
	signer     *Signer
	httpClient *http.Client
	logger     *slog.Logger
}

// RPCOption configures an RPCClient.
type RPCOption func(*RPCClient)

// WithHTTPClient sets a custom HTTP client. Its Timeout is the call bound.
func WithHTTPClient(client *http.Client) RPCOption {
	return func(c *RPCClient) {
		c.httpClient = client
	}
}

// WithLogger logs every management exchange at debug level, credentials masked.
func WithLogger(logger *slog.Logger) RPCOption {
	return func(c *RPCClient) {
		c.logger = logger
	}
}

// NewRPCClient creates a client for managementURL. timeout <= 0 uses DefaultRPCTimeout.
func NewRPCClient(managementURL string, signer *Signer, timeout time.Duration, opts ...RPCOption) *RPCClient {
	if timeout <= 0 {
		timeout = DefaultRPCTimeout
	}
	c := &RPCClient{
		url:        managementURL,
		forwarded:  needsForwardedHeaders(managementURL),
		signer:     signer,
		httpClient: &http.Client{Timeout: timeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.logger != nil {
		c.httpClient = &http.Client{
			Timeout:   c.httpClient.Timeout,
			Transport: &LoggingTransport{Transport: c.httpClient.Transport, Logger: c.logger, Prefix: "relay-rpc"},
		}
	}
	return c
}

// URL returns the management endpoint this client signs for.
func (c *RPCClient) URL() string { return c.url }

// BuildEnvelope serialises {method, params} once, hashes those bytes and
// signs a kind-27235 event over them. nil params are dropped.
func (c *RPCClient) BuildEnvelope(ctx context.Context, method string, params ...any) (*Envelope, error) {
	filtered := make([]any, 0, len(params))
	for _, p := range params {
		if p != nil {
			filtered = append(filtered, p)
		}
	}

	payload, err := json.Marshal(rpcRequest{Method: method, Params: filtered})
	if err != nil {
		return nil, fmt.Errorf("relay: encode rpc payload: %w", err)
	}
	sum := sha256.Sum256(payload)

	ev := &nostr.Event{
		Kind:      KindHTTPAuth,
		CreatedAt: nostr.Now(),
		Tags: nostr.Tags{
			{"u", c.url},
			{"method", http.MethodPost},
			{"payload", hex.EncodeToString(sum[:])},
		},
	}
	if err := c.signer.Sign(ctx, ev); err != nil {
		return nil, err
	}
	return &Envelope{Event: ev, Payload: payload}, nil
}

// Call performs one management call and returns the raw result.
// HTTP failures and RPC error fields both come back as *RPCError.
func (c *RPCClient) Call(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	start := time.Now()
	result, err := c.call(ctx, method, params...)

	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.RecordRelayCall(method, outcome, time.Since(start).Seconds())
	return result, err
}

func (c *RPCClient) call(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	env, err := c.BuildEnvelope(ctx, method, params...)
	if err != nil {
		return nil, err
	}
	authz, err := env.AuthorizationHeader()
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(env.Payload))
	if err != nil {
		return nil, fmt.Errorf("relay: build request: %w", err)
	}
	req.Header.Set("Content-Type", ContentTypeRPC)
	req.Header.Set("Accept", ContentTypeRPC+", application/json")
	req.Header.Set("Authorization", authz)
	if c.forwarded {
		req.Header.Set("X-Forwarded-Proto", "https")
		req.Header.Set("X-Forwarded-Ssl", "on")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("relay rpc %s: %w", method, err)
	}
	defer func() {
		//nolint:errcheck
		resp.Body.Close()
	}()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("relay rpc %s: read response: %w", method, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &RPCError{
			Method:     method,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(body),
		}
	}

	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("relay rpc %s: %w: body is not JSON", method, ErrInvalidResponse)
	}
	if e := gjson.GetBytes(body, "error"); e.Exists() && e.Type != gjson.Null && e.String() != "" {
		return nil, &RPCError{Method: method, StatusCode: resp.StatusCode, Status: resp.Status, Message: e.String()}
	}

	result := gjson.GetBytes(body, "result")
	if !result.Exists() {
		return json.RawMessage("null"), nil
	}
	return json.RawMessage(result.Raw), nil
}
