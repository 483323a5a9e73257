package egress

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"marketwatch/internal/retry"
)

func TestPostSendsToResolvedWebhook(t *testing.T) {
	var gotPath, idempotencyKey string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		idempotencyKey = r.Header.Get("X-Idempotency-Key")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := NewDiscordEgress(srv.Client(), func(channelID string) (string, bool) {
		return srv.URL + "/hook/" + channelID, true
	}, retry.Policy{MaxAttempts: 1})

	ack, err := d.Post(context.Background(), "chan-1", Payload{Title: "Dump", Description: "item dumped"})
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if ack.ChannelID != "chan-1" {
		t.Errorf("Ack.ChannelID = %q, want chan-1", ack.ChannelID)
	}
	if gotPath != "/hook/chan-1" {
		t.Errorf("request path = %q, want /hook/chan-1", gotPath)
	}
	if idempotencyKey == "" {
		t.Error("expected an X-Idempotency-Key header on the request")
	}
}

func TestPostUnresolvedChannelIsPermanent(t *testing.T) {
	d := NewDiscordEgress(nil, func(string) (string, bool) { return "", false }, retry.Policy{MaxAttempts: 1})
	_, err := d.Post(context.Background(), "missing", Payload{})
	var perr *PermanentError
	if err == nil {
		t.Fatal("expected an error for an unresolved channel")
	}
	if !asPermanent(err, &perr) {
		t.Errorf("expected *PermanentError, got %T: %v", err, err)
	}
}

func TestPostRetriesOn5xxThenSucceeds(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	d := NewDiscordEgress(srv.Client(), func(string) (string, bool) { return srv.URL, true },
		retry.Policy{MaxAttempts: 3, Base: time.Millisecond, Max: time.Millisecond})
	_, err := d.Post(context.Background(), "chan-1", Payload{})
	if err != nil {
		t.Fatalf("Post: %v", err)
	}
	if attempts != 2 {
		t.Errorf("attempts = %d, want 2 (one 503 then a success)", attempts)
	}
}

func TestPostDoesNotRetryOn404(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	d := NewDiscordEgress(srv.Client(), func(string) (string, bool) { return srv.URL, true },
		retry.Policy{MaxAttempts: 3, Base: time.Millisecond, Max: time.Millisecond})
	_, err := d.Post(context.Background(), "chan-1", Payload{})
	if err == nil {
		t.Fatal("expected an error for a 404 response")
	}
	if attempts != 1 {
		t.Errorf("attempts = %d, want 1 (404 must not be retried)", attempts)
	}
}

func TestMentionPrefixFormatsRoleMentions(t *testing.T) {
	got := mentionPrefix([]string{"123", "456"})
	want := "<@&123> <@&456> \n"
	if got != want {
		t.Errorf("mentionPrefix = %q, want %q", got, want)
	}
	if mentionPrefix(nil) != "" {
		t.Error("mentionPrefix(nil) should be empty")
	}
}

func asPermanent(err error, target **PermanentError) bool {
	if pe, ok := err.(*PermanentError); ok {
		*target = pe
		return true
	}
	return false
}
