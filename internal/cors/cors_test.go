package cors

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestMiddleware_AllStatuses(t *testing.T) {
	statuses := []int{
		http.StatusOK,
		http.StatusNoContent,
		http.StatusMovedPermanently,
		http.StatusForbidden,
		http.StatusNotFound,
		http.StatusTooManyRequests,
		http.StatusNotImplemented,
	}
	for _, status := range statuses {
		h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(status), status)
		}))
		req := httptest.NewRequest("GET", "/anything", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)

		if w.Code != status {
			t.Fatalf("status = %d, want %d", w.Code, status)
		}
		assertCORS(t, w.Result().Header)
	}
}

func TestMiddleware_DoesNotDuplicate(t *testing.T) {
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		Apply(w.Header())
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest("OPTIONS", "/", nil)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	assertCORS(t, w.Result().Header)
}

func TestMiddleware_ReplacesExisting(t *testing.T) {
	h := Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	w := httptest.NewRecorder()
	w.Header().Add("Access-Control-Allow-Origin", "https://example.com")
	h.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	assertCORS(t, w.Result().Header)
}

func assertCORS(t *testing.T, h http.Header) {
	t.Helper()
	for _, kv := range Headers {
		got := h.Values(kv[0])
		if len(got) != 1 {
			t.Errorf("%s appears %d times, want 1", kv[0], len(got))
			continue
		}
		if got[0] != kv[1] {
			t.Errorf("%s = %q, want %q", kv[0], got[0], kv[1])
		}
	}
}
