package helpdesk

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"github.com/divinevideo/relay-admin/internal/credential"
)

func TestAddTicketNote(t *testing.T) {
	t.Parallel()

	var body []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPut, r.Method)
		assert.Equal(t, "/api/v2/tickets/42.json", r.URL.Path)
		user, pass, ok := r.BasicAuth()
		assert.True(t, ok)
		assert.Equal(t, "agent@divine.video/token", user)
		assert.Equal(t, "zd-token", pass)
		body, _ = io.ReadAll(r.Body)
		_, _ = w.Write([]byte(`{"ticket":{"id":42}}`))
	}))
	defer srv.Close()

	c := NewClient("divine", "agent@divine.video", credential.Literal("zd-token"), WithBaseURL(srv.URL))
	require.NoError(t, c.AddTicketNote(context.Background(), "42", "banned pubkey"))
	assert.Equal(t, "banned pubkey", gjson.GetBytes(body, "ticket.comment.body").String())
	assert.False(t, gjson.GetBytes(body, "ticket.comment.public").Bool())
}

func TestAddTicketNote_Validation(t *testing.T) {
	t.Parallel()

	c := NewClient("", "agent@divine.video", credential.Literal("x"))
	assert.False(t, c.Configured())
	assert.ErrorIs(t, c.AddTicketNote(context.Background(), "1", "x"), ErrNotConfigured)

	c = NewClient("divine", "agent@divine.video", credential.Literal("x"))
	assert.ErrorIs(t, c.AddTicketNote(context.Background(), "abc", "x"), ErrInvalidTicket)
}

func TestAddTicketNote_APIError(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"RecordInvalid","description":"Record validation errors"}`))
	}))
	defer srv.Close()

	c := NewClient("divine", "a@b.c", credential.Literal("t"),
		WithBaseURL(srv.URL), WithRetry(2, time.Millisecond, time.Millisecond))
	err := c.AddTicketNote(context.Background(), "7", "note")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr), "error = %v", err)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, "Record validation errors", apiErr.Message)
	assert.Equal(t, int32(1), calls.Load(), "4xx is not retried")
}
