package upstream

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"marketwatch/internal/retry"
)

func ptr(v int64) *int64 { return &v }

func TestNormalizePrice(t *testing.T) {
	cases := []struct {
		name string
		in   *int64
		want bool // whether the result is non-nil
	}{
		{"nil", nil, false},
		{"negative", ptr(-1), false},
		{"zero", ptr(0), true},
		{"sane", ptr(1000), true},
		{"too large", ptr(int64(1) << 49), false},
		{"exactly at bound", ptr(int64(1) << 48), true},
	}
	for _, c := range cases {
		got := normalizePrice(c.in)
		if (got != nil) != c.want {
			t.Errorf("%s: normalizePrice(%v) non-nil = %v, want %v", c.name, c.in, got != nil, c.want)
		}
	}
}

func TestParseItemID(t *testing.T) {
	if id, ok := parseItemID("42"); !ok || id != 42 {
		t.Errorf("parseItemID(42) = %v, %v", id, ok)
	}
	if _, ok := parseItemID("0"); ok {
		t.Error("item id 0 should be rejected")
	}
	if _, ok := parseItemID("-1"); ok {
		t.Error("negative item id should be rejected")
	}
	if _, ok := parseItemID("abc"); ok {
		t.Error("non-numeric item id should be rejected")
	}
}

func TestFetchLatestParsesAndNormalizes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{"4151":{"high":1000,"highTime":1,"low":-5,"lowTime":2}}}`))
	}))
	defer srv.Close()

	c := New(srv.Client(), srv.URL, "", "test-agent", time.Second, 5*time.Minute, retry.Policy{MaxAttempts: 1})
	entries, _, err := c.FetchLatest(context.Background())
	if err != nil {
		t.Fatalf("FetchLatest: %v", err)
	}
	entry, ok := entries[4151]
	if !ok {
		t.Fatal("expected item 4151 in result")
	}
	if entry.High == nil || *entry.High != 1000 {
		t.Errorf("high = %v, want 1000", entry.High)
	}
	if entry.Low != nil {
		t.Error("negative low price should normalize to nil (absent)")
	}
}

func TestFetchFallsBackOnPrimaryFailure(t *testing.T) {
	fallback := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"data":{}}`))
	}))
	defer fallback.Close()

	// Primary points at an address nothing listens on.
	c := New(http.DefaultClient, "http://127.0.0.1:1", fallback.URL, "test-agent", time.Second, 5*time.Minute,
		retry.Policy{MaxAttempts: 1, Base: time.Millisecond, Max: time.Millisecond})
	_, _, err := c.FetchLatest(context.Background())
	if err != nil {
		t.Fatalf("expected the fallback base URL to succeed, got %v", err)
	}
}

func TestFetchMalformedBodyIsMalformedError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`not json`))
	}))
	defer srv.Close()
	c := New(srv.Client(), srv.URL, "", "test-agent", time.Second, 5*time.Minute, retry.Policy{MaxAttempts: 1})
	_, _, err := c.FetchLatest(context.Background())
	if err == nil {
		t.Fatal("expected a malformed-response error")
	}
}
