package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func serve(t *testing.T, h *Handler, path string) (int, result) {
	t.Helper()
	mux := http.NewServeMux()
	h.Register(mux)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest("GET", path, nil))

	if ct := rec.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	var body result
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode JSON: %v", err)
	}
	return rec.Code, body
}

func ok(context.Context) error { return nil }

func TestHealthz_AlwaysReturns200(t *testing.T) {
	t.Parallel()
	h := New(Checker{Name: "lexicon", Check: func(context.Context) error { return errors.New("broken") }})
	h.Drain()

	code, body := serve(t, h, "/healthz")
	if code != http.StatusOK || body.Status != "ok" {
		t.Errorf("healthz = (%d, %q), want (200, ok)", code, body.Status)
	}
}

func TestReadyz(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		checkers []Checker
		wantCode int
		want     result
	}{
		{
			name:     "no checkers",
			wantCode: http.StatusOK,
			want:     result{Status: "ok"},
		},
		{
			name: "all pass",
			checkers: []Checker{
				{Name: "lexicon", Check: ok},
				{Name: "kafka", Check: ok},
			},
			wantCode: http.StatusOK,
			want:     result{Status: "ok", Checks: map[string]string{"lexicon": "ok", "kafka": "ok"}},
		},
		{
			name: "one fails",
			checkers: []Checker{
				{Name: "lexicon", Check: ok},
				{Name: "kafka", Check: func(context.Context) error { return errors.New("connection refused") }},
			},
			wantCode: http.StatusServiceUnavailable,
			want: result{Status: "fail", Checks: map[string]string{
				"lexicon": "ok",
				"kafka":   "fail: connection refused",
			}},
		},
		{
			name: "capacity exhausted",
			checkers: []Checker{
				Capacity("encounters", func() (int, int) { return 8, 8 }),
			},
			wantCode: http.StatusServiceUnavailable,
			want:     result{Status: "fail", Checks: map[string]string{"encounters": "fail: 8 of 8 in use"}},
		},
		{
			name: "unlimited capacity",
			checkers: []Checker{
				Capacity("encounters", func() (int, int) { return 500, 0 }),
			},
			wantCode: http.StatusOK,
			want:     result{Status: "ok", Checks: map[string]string{"encounters": "ok"}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			code, body := serve(t, New(tt.checkers...), "/readyz")
			if code != tt.wantCode {
				t.Errorf("status = %d, want %d", code, tt.wantCode)
			}
			if diff := cmp.Diff(tt.want, body); diff != "" {
				t.Errorf("body mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestReadyz_Draining(t *testing.T) {
	t.Parallel()
	h := New(Checker{Name: "lexicon", Check: ok})
	h.Drain()

	code, body := serve(t, h, "/readyz")
	if code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want %d", code, http.StatusServiceUnavailable)
	}
	if body.Checks["server"] != "fail: "+ErrDraining.Error() {
		t.Errorf("server check = %q", body.Checks["server"])
	}
}

func TestReadyz_ChecksRunConcurrently(t *testing.T) {
	t.Parallel()
	slow := func(ctx context.Context) error {
		select {
		case <-time.After(200 * time.Millisecond):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	h := New(
		Checker{Name: "a", Check: slow},
		Checker{Name: "b", Check: slow},
		Checker{Name: "c", Check: slow},
	)

	start := time.Now()
	code, _ := serve(t, h, "/readyz")
	if code != http.StatusOK {
		t.Errorf("status = %d, want 200", code)
	}
	if elapsed := time.Since(start); elapsed > 550*time.Millisecond {
		t.Errorf("readyz took %v, checks did not run concurrently", elapsed)
	}
}
