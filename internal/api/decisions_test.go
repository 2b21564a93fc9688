package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/divinevideo/relay-admin/internal/consensus"
	"github.com/divinevideo/relay-admin/internal/media"
	"github.com/divinevideo/relay-admin/internal/relay"
	"github.com/divinevideo/relay-admin/internal/storage"
)

func TestDecisionsCRUD(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/decisions", operatorToken, CreateDecisionRequest{
		TargetType: storage.TargetPubkey,
		TargetID:   strings.ToUpper(pubkeyA),
		Action:     "ban_pubkey",
		Reason:     "manual",
		ReportID:   "r-1",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[storage.Decision](t, rec)
	assert.Equal(t, pubkeyA, created.TargetID)
	assert.Equal(t, moderator, created.ModeratorPubkey)

	rec = ts.do(t, http.MethodGet, "/decisions?reportId=r-1", operatorToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[DecisionsResponse](t, rec).Decisions, 1)

	rec = ts.do(t, http.MethodGet, "/decisions/"+pubkeyA, operatorToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[DecisionsResponse](t, rec).Decisions, 1)

	rec = ts.do(t, http.MethodDelete, "/decisions/"+pubkeyA, operatorToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, ReopenResponse{TargetID: pubkeyA, Deleted: 2}, decode[ReopenResponse](t, rec))
	assert.Equal(t, []string{pubkeyA}, ts.moderator.reopened, "reopen goes through the orchestrator")
}

func TestDecisions_Validation(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
	}{
		{name: "bad limit", method: http.MethodGet, path: "/decisions?limit=zero"},
		{name: "bad target type", method: http.MethodPost, path: "/decisions", body: CreateDecisionRequest{TargetType: "blob", TargetID: pubkeyA, Action: "x"}},
		{name: "bad target id", method: http.MethodPost, path: "/decisions", body: CreateDecisionRequest{TargetType: "pubkey", TargetID: "abc", Action: "x"}},
		{name: "missing action", method: http.MethodPost, path: "/decisions", body: CreateDecisionRequest{TargetType: "pubkey", TargetID: pubkeyA}},
		{name: "bad path id", method: http.MethodGet, path: "/decisions/xyz"},
		{name: "bad reopen id", method: http.MethodDelete, path: "/decisions/xyz"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := ts.do(t, tt.method, tt.path, operatorToken, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
	assert.Empty(t, ts.moderator.reopened)
}

func TestHandleRelayRPC(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	ts.rpc.banned = []relay.BannedPubkey{{Pubkey: pubkeyA, Reason: "spam"}}

	rec := ts.do(t, http.MethodPost, "/relay-rpc", operatorToken, RelayRPCRequest{Method: "listbannedpubkeys"})
	require.Equal(t, http.StatusOK, rec.Code)
	var listed struct {
		Result []relay.BannedPubkey `json:"result"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &listed))
	assert.Equal(t, ts.rpc.banned, listed.Result)

	rec = ts.do(t, http.MethodPost, "/relay-rpc", operatorToken, RelayRPCRequest{Method: "BanEvent", Params: []any{event1}})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"result":true}`, rec.Body.String())
	assert.Equal(t, []string{relay.MethodBanEvent}, ts.rpc.calls)

	rec = ts.do(t, http.MethodPost, "/relay-rpc", operatorToken, RelayRPCRequest{})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestHandleRelayRPC_UpstreamError(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	ts.rpc.callErr = &relay.RPCError{Method: "banpubkey", StatusCode: 401, Status: "401 Unauthorized", Body: "bad auth"}

	rec := ts.do(t, http.MethodPost, "/relay-rpc", operatorToken, RelayRPCRequest{Method: "banpubkey", Params: []any{pubkeyA}})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	body := decode[UpstreamErrorResponse](t, rec)
	assert.Equal(t, 401, body.UpstreamStatus)
	assert.Contains(t, body.Message, "bad auth")
}

func TestHandleModerateMedia(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/moderate-media", operatorToken, ModerateMediaRequest{SHA256: strings.ToUpper(hashX), Action: "safe"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[ModerateMediaResponse](t, rec)
	assert.Equal(t, hashX, resp.SHA256)
	assert.Equal(t, media.ActionUnblock, resp.Action)
	assert.JSONEq(t, `{"ok":true}`, string(resp.Result))

	rec = ts.do(t, http.MethodPost, "/moderate-media", operatorToken, ModerateMediaRequest{SHA256: hashX})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, media.ActionBlock, decode[ModerateMediaResponse](t, rec).Action)

	rec = ts.do(t, http.MethodPost, "/moderate-media", operatorToken, ModerateMediaRequest{SHA256: "nothex"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, ts.media.calls, 2)

	ts.media.err = &media.APIError{StatusCode: 500, Status: "500 Internal Server Error", Message: "boom"}
	rec = ts.do(t, http.MethodPost, "/moderate-media", operatorToken, ModerateMediaRequest{SHA256: hashX})
	assert.Equal(t, http.StatusBadGateway, rec.Code)
	assert.Equal(t, 500, decode[UpstreamErrorResponse](t, rec).UpstreamStatus)
}

func TestHandleCheckResult(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	high, low := 0.92, 0.1
	ts.media.result = &media.CheckResult{
		SHA256: hashX,
		Action: media.ActionBlock,
		Providers: []consensus.ProviderResult{
			{ProviderID: "hive", Status: "completed", Score: &high},
			{ProviderID: "sightengine", Status: "completed", Verdict: "ai_generated"},
			{ProviderID: "reality", Status: "completed", Score: &low},
		},
	}

	rec := ts.do(t, http.MethodGet, "/check-result/"+hashX, operatorToken, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[CheckResultResponse](t, rec)
	assert.True(t, resp.Blocked)
	require.NotNil(t, resp.Consensus)
	assert.Equal(t, consensus.BucketLikelyAI, resp.Consensus.Verdict)
	assert.Equal(t, consensus.AgreementMajority, resp.Consensus.Agreement)
	assert.Equal(t, 3, resp.Consensus.Completed)
}

func TestHandleCheckResult_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		hash     string
		err      error
		wantCode int
	}{
		{name: "bad hash", hash: "xyz", wantCode: http.StatusBadRequest},
		{name: "not found", hash: hashX, err: media.ErrNotFound, wantCode: http.StatusNotFound},
		{name: "upstream", hash: hashX, err: errors.New("dial tcp: refused"), wantCode: http.StatusBadGateway},
		{name: "not configured", hash: hashX, err: media.ErrNotConfigured, wantCode: http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ts := newTestServer(t)
			ts.media.err = tt.err

			rec := ts.do(t, http.MethodGet, "/check-result/"+tt.hash, operatorToken, nil)
			assert.Equal(t, tt.wantCode, rec.Code)
		})
	}
}

func TestMediaRoutesWithoutService(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, func(c *Config) { c.Media = nil })

	rec := ts.do(t, http.MethodGet, "/check-result/"+hashX, operatorToken, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	rec = ts.do(t, http.MethodPost, "/moderate-media", operatorToken, ModerateMediaRequest{SHA256: hashX})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}
