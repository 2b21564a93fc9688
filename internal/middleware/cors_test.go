package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestCORS(t *testing.T) {
	t.Parallel()

	allow := "https://admin.divine.video, *.divine.video"
	called := false
	handler := CORS(allow)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	t.Run("allowed origin echoed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/decisions", nil)
		req.Header.Set("Origin", "https://support.divine.video")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://support.divine.video" {
			t.Errorf("Allow-Origin = %q", got)
		}
	})

	t.Run("unknown origin gets first entry", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/decisions", nil)
		req.Header.Set("Origin", "https://example.com")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "https://admin.divine.video" {
			t.Errorf("Allow-Origin = %q", got)
		}
	})

	t.Run("preflight", func(t *testing.T) {
		called = false
		req := httptest.NewRequest(http.MethodOptions, "/moderate", nil)
		req.Header.Set("Origin", "https://admin.divine.video")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Errorf("status = %d, want 204", rec.Code)
		}
		if called {
			t.Error("preflight reached the handler")
		}
		if rec.Header().Get("Access-Control-Allow-Methods") == "" {
			t.Error("missing Allow-Methods")
		}
	})
}

func TestCORS_EmptyList(t *testing.T) {
	t.Parallel()

	handler := CORS("")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Origin", "https://x.test")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if _, ok := rec.Header()["Access-Control-Allow-Origin"]; ok {
		t.Error("no Allow-Origin expected with empty list")
	}
}
