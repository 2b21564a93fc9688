package relay

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
)

// NIP-86 method names.
const (
	MethodSupportedMethods  = "supportedmethods"
	MethodBanPubkey         = "banpubkey"
	MethodAllowPubkey       = "allowpubkey"
	MethodListBannedPubkeys = "listbannedpubkeys"
	MethodBanEvent          = "banevent"
	MethodAllowEvent        = "allowevent"
	MethodListBannedEvents  = "listbannedevents"
)

// BannedPubkey is one entry of listbannedpubkeys.
type BannedPubkey struct {
	Pubkey string `json:"pubkey"`
	Reason string `json:"reason,omitempty"`
}

// BannedEvent is one entry of listbannedevents.
type BannedEvent struct {
	ID     string `json:"id"`
	Reason string `json:"reason,omitempty"`
}

// optional maps "" to nil so Call drops the parameter.
func optional(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// SupportedMethods lists the management methods the relay implements.
func (c *RPCClient) SupportedMethods(ctx context.Context) ([]string, error) {
	raw, err := c.Call(ctx, MethodSupportedMethods)
	if err != nil {
		return nil, err
	}
	var methods []string
	if err := json.Unmarshal(raw, &methods); err != nil {
		return nil, fmt.Errorf("relay rpc %s: %w: %v", MethodSupportedMethods, ErrInvalidResponse, err)
	}
	return methods, nil
}

// BanPubkey bans pubkey.
func (c *RPCClient) BanPubkey(ctx context.Context, pubkey, reason string) error {
	_, err := c.Call(ctx, MethodBanPubkey, pubkey, optional(reason))
	return err
}

// AllowPubkey lifts a ban on pubkey.
func (c *RPCClient) AllowPubkey(ctx context.Context, pubkey, reason string) error {
	_, err := c.Call(ctx, MethodAllowPubkey, pubkey, optional(reason))
	return err
}

// BanEvent bans an event by id.
func (c *RPCClient) BanEvent(ctx context.Context, id, reason string) error {
	_, err := c.Call(ctx, MethodBanEvent, id, optional(reason))
	return err
}

// AllowEvent lifts a ban on an event.
func (c *RPCClient) AllowEvent(ctx context.Context, id, reason string) error {
	_, err := c.Call(ctx, MethodAllowEvent, id, optional(reason))
	return err
}

// ListBannedPubkeys returns banned pubkeys, normalised by NormalizeBannedPubkeys.
func (c *RPCClient) ListBannedPubkeys(ctx context.Context) ([]BannedPubkey, error) {
	raw, err := c.Call(ctx, MethodListBannedPubkeys)
	if err != nil {
		return nil, err
	}
	return NormalizeBannedPubkeys(raw)
}

// ListBannedEvents returns banned events. Bare id strings are accepted.
func (c *RPCClient) ListBannedEvents(ctx context.Context) ([]BannedEvent, error) {
	raw, err := c.Call(ctx, MethodListBannedEvents)
	if err != nil {
		return nil, err
	}
	entries, err := normalizeList(raw, "id")
	if err != nil {
		return nil, err
	}
	out := make([]BannedEvent, len(entries))
	for i, e := range entries {
		out[i] = BannedEvent{ID: e[0], Reason: e[1]}
	}
	return out, nil
}

// NormalizeBannedPubkeys accepts a listbannedpubkeys result whose entries are
// either bare pubkey strings or {pubkey, reason} objects.
func NormalizeBannedPubkeys(raw json.RawMessage) ([]BannedPubkey, error) {
	entries, err := normalizeList(raw, "pubkey")
	if err != nil {
		return nil, err
	}
	out := make([]BannedPubkey, len(entries))
	for i, e := range entries {
		out[i] = BannedPubkey{Pubkey: e[0], Reason: e[1]}
	}
	return out, nil
}

// normalizeList returns (key, reason) pairs. A null result is an empty list.
func normalizeList(raw json.RawMessage, key string) ([][2]string, error) {
	res := gjson.ParseBytes(raw)
	if res.Type == gjson.Null {
		return [][2]string{}, nil
	}
	if !res.IsArray() {
		return nil, fmt.Errorf("%w: expected array, got %s", ErrInvalidResponse, res.Type)
	}

	out := make([][2]string, 0, len(res.Array()))
	var bad error
	res.ForEach(func(_, v gjson.Result) bool {
		switch {
		case v.Type == gjson.String:
			out = append(out, [2]string{v.String(), ""})
		case v.IsObject() && v.Get(key).Type == gjson.String:
			out = append(out, [2]string{v.Get(key).String(), v.Get("reason").String()})
		default:
			bad = fmt.Errorf("%w: unexpected list entry %s", ErrInvalidResponse, v.Raw)
			return false
		}
		return true
	})
	if bad != nil {
		return nil, bad
	}
	return out, nil
}
