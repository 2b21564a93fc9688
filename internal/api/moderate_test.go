package api

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/divinevideo/relay-admin/internal/moderation"
	"github.com/divinevideo/relay-admin/internal/relay"
)

func TestModerateRequest_Intent(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		req        ModerateRequest
		wantKind   moderation.Kind
		wantTarget string
		wantErr    bool
	}{
		{name: "ban by pubkey", req: ModerateRequest{Action: "ban", Pubkey: pubkeyA}, wantKind: moderation.KindBanPubkey, wantTarget: pubkeyA},
		{name: "delete by event", req: ModerateRequest{Action: "delete_event", EventID: event1}, wantKind: moderation.KindDeleteEvent, wantTarget: event1},
		{name: "block by hash", req: ModerateRequest{Action: "block", SHA256: hashX}, wantKind: moderation.KindBlockMedia, wantTarget: hashX},
		{name: "generic target", req: ModerateRequest{Action: "unban_pubkey", Target: pubkeyA}, wantKind: moderation.KindUnbanPubkey, wantTarget: pubkeyA},
		{name: "label a pubkey", req: ModerateRequest{Action: "label", Pubkey: pubkeyA, Label: "bot"}, wantKind: moderation.KindLabel, wantTarget: pubkeyA},
		{name: "unknown action", req: ModerateRequest{Action: "nuke", Pubkey: pubkeyA}, wantErr: true},
		{name: "wrong field for action", req: ModerateRequest{Action: "ban", EventID: event1}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			in, err := tt.req.Intent("actor")
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKind, in.Kind())
			assert.Equal(t, tt.wantTarget, in.Target())
			assert.Equal(t, "actor", in.Actor())
		})
	}
}

func TestHandleModerate(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/moderate", operatorToken, ModerateRequest{
		Action:       "ban_pubkey",
		Pubkey:       pubkeyA,
		Reason:       "spam",
		ReportID:     "r-9",
		DeleteEvents: true,
		EventIDs:     []string{event1},
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	res := decode[moderation.Result](t, rec)
	assert.Equal(t, moderation.StatusSucceeded, res.Status)

	require.Len(t, ts.moderator.intents, 1)
	in := ts.moderator.intents[0]
	assert.Equal(t, moderator, in.Actor(), "actor comes from the authenticated identity")
	assert.Equal(t, "r-9", in.ReportID())
	assert.Equal(t, []string{event1}, in.EventIDs())
}

func TestHandleModerate_Errors(t *testing.T) {
	t.Parallel()

	rpcErr := &relay.RPCError{Method: relay.MethodBanPubkey, StatusCode: 503, Status: "503 Service Unavailable"}

	tests := []struct {
		name       string
		body       any
		err        error
		wantCode   int
		wantError  string
		wantStatus int
	}{
		{name: "bad json", body: "{", wantCode: http.StatusBadRequest, wantError: ErrCodeInvalidRequest},
		{name: "invalid intent", body: ModerateRequest{Action: "ban", Pubkey: "short"}, wantCode: http.StatusBadRequest, wantError: ErrCodeInvalidRequest},
		{
			name:       "relay rejects",
			body:       ModerateRequest{Action: "ban", Pubkey: pubkeyA},
			err:        &moderation.DispatchError{Kind: moderation.KindBanPubkey, Err: rpcErr},
			wantCode:   http.StatusBadGateway,
			wantError:  ErrCodeUpstream,
			wantStatus: 503,
		},
		{
			name:      "media service missing",
			body:      ModerateRequest{Action: "block", SHA256: hashX},
			err:       &moderation.DispatchError{Kind: moderation.KindBlockMedia, Err: moderation.ErrNotConfigured},
			wantCode:  http.StatusServiceUnavailable,
			wantError: ErrCodeNotConfigured,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			ts := newTestServer(t)
			ts.moderator.err = tt.err
			if tt.err != nil {
				ts.moderator.result = &moderation.Result{Status: moderation.StatusFailed}
			}

			rec := ts.do(t, http.MethodPost, "/moderate", operatorToken, tt.body)
			assert.Equal(t, tt.wantCode, rec.Code, rec.Body.String())

			body := decode[UpstreamErrorResponse](t, rec)
			assert.Equal(t, tt.wantError, body.Error)
			assert.Equal(t, tt.wantStatus, body.UpstreamStatus)
			if tt.wantCode == http.StatusBadGateway {
				require.NotNil(t, body.Result)
				assert.Equal(t, moderation.StatusFailed, body.Result.Status)
			}
		})
	}
}

func TestHandleModerate_PartialFailureIs200(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	ts.moderator.result = &moderation.Result{
		Kind:          moderation.KindBanPubkey,
		Target:        pubkeyA,
		Status:        moderation.StatusPartiallyFailed,
		EventsDeleted: 2,
		SubActions: []moderation.SubAction{
			{Action: moderation.ActionDeleteEvent, Target: event1, Error: "rejected"},
		},
		Verification: &moderation.Verification{Status: moderation.VerificationWarning},
	}

	rec := ts.do(t, http.MethodPost, "/moderate", operatorToken, ModerateRequest{Action: "ban", Pubkey: pubkeyA})
	require.Equal(t, http.StatusOK, rec.Code)
	res := decode[moderation.Result](t, rec)
	assert.Equal(t, moderation.StatusPartiallyFailed, res.Status)
	assert.Equal(t, 2, res.EventsDeleted)
	assert.Equal(t, moderation.VerificationWarning, res.Verification.Status)
}

func TestHandleModerate_RequiresOperator(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/moderate", helpdeskToken, ModerateRequest{Action: "ban", Pubkey: pubkeyA})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, ErrCodeInvalidCredentials, decode[APIError](t, rec).Error)
	assert.Empty(t, ts.moderator.intents)
}

func TestHandleAction_UsesAgentEmail(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	rec := ts.do(t, http.MethodPost, "/zendesk/action", helpdeskToken, ModerateRequest{
		Action:   "delete",
		EventID:  event1,
		TicketID: "123",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	require.Len(t, ts.moderator.intents, 1)
	assert.Equal(t, "agent@divine.video", ts.moderator.intents[0].Actor())
	assert.Equal(t, "123", ts.moderator.intents[0].TicketID())
}

func TestHandleVerify(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	ts.moderator.verify = &moderation.Verification{
		Status: moderation.VerificationWarning,
		Outcomes: []moderation.VerificationOutcome{
			{Target: pubkeyA, Check: moderation.CheckBanList, Expected: moderation.StateBanned, Observed: moderation.StateNotBanned},
		},
	}

	rec := ts.do(t, http.MethodPost, "/zendesk/verify", helpdeskToken, VerifyRequest{Pubkey: pubkeyA})
	require.Equal(t, http.StatusOK, rec.Code)
	v := decode[moderation.Verification](t, rec)
	assert.Equal(t, moderation.VerificationWarning, v.Status)
	assert.Equal(t, [][2]string{{"pubkey", pubkeyA}}, ts.moderator.verified)

	rec = ts.do(t, http.MethodPost, "/zendesk/verify", helpdeskToken, VerifyRequest{Target: "nope"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = ts.do(t, http.MethodPost, "/zendesk/verify", helpdeskToken, VerifyRequest{TargetType: "blob", Target: hashX})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
