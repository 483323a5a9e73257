// Package egress implements the chat egress abstraction (spec.md component
// H): a post(channel, payload) interface with retry-on-transient-error
// semantics, plus a Discord webhook implementation. Grounded on the
// teacher's easyweb3-platform/internal/notification.WebhookSender (JSON-over
// -POST with a typed httpError on non-2xx), generalized to the
// Transient/Permanent error split spec.md requires and wired to
// internal/retry for the backoff.
package egress

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/google/uuid"

	"marketwatch/internal/retry"
)

// TransientError is retried by the caller up to the configured policy's
// max attempts.
type TransientError struct{ Status int }

func (e *TransientError) Error() string { return fmt.Sprintf("egress: transient failure (status %d)", e.Status) }

// PermanentError is surfaced immediately and causes the router to mark the
// channel broken for the remainder of the tick.
type PermanentError struct {
	Status int
	Reason string
}

func (e *PermanentError) Error() string {
	return fmt.Sprintf("egress: permanent failure (status %d): %s", e.Status, e.Reason)
}

// Field is one embed field (name/value pair).
type Field struct {
	Name    string `json:"name"`
	Value   string `json:"value"`
	Inline  bool   `json:"inline,omitempty"`
}

// Payload is the structured alert record §4.H names.
type Payload struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Fields      []Field  `json:"fields,omitempty"`
	ThumbnailURL string  `json:"thumbnail_url,omitempty"`
	Color       int      `json:"color,omitempty"`
	Mentions    []string `json:"mentions,omitempty"`
}

// Ack is returned on a successful post.
type Ack struct {
	ChannelID string
	SentAt    time.Time
}

// Egress is the abstract destination for routed alerts. Implementations
// must classify failures as *TransientError or *PermanentError so callers
// can apply the right recovery behavior.
type Egress interface {
	Post(ctx context.Context, channelID string, payload Payload) (Ack, error)
}

// DiscordEgress posts embeds to per-channel Discord webhook URLs, resolved
// by a channelID -> webhook URL lookup the caller supplies (tenant config
// stores a channel identifier, not a full webhook URL, per §4.F; the
// resolver bridges that gap).
type DiscordEgress struct {
	HTTP     *http.Client
	Resolve  func(channelID string) (webhookURL string, ok bool)
	Policy   retry.Policy
}

func NewDiscordEgress(httpClient *http.Client, resolve func(string) (string, bool), policy retry.Policy) *DiscordEgress {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 10 * time.Second}
	}
	return &DiscordEgress{HTTP: httpClient, Resolve: resolve, Policy: policy}
}

type discordEmbed struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	Color       int           `json:"color,omitempty"`
	Thumbnail   *discordThumb `json:"thumbnail,omitempty"`
	Fields      []discordField `json:"fields,omitempty"`
}

type discordThumb struct {
	URL string `json:"url"`
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordWebhookBody struct {
	Content string         `json:"content,omitempty"`
	Embeds  []discordEmbed `json:"embeds"`
}

func (d *DiscordEgress) Post(ctx context.Context, channelID string, payload Payload) (Ack, error) {
	url, ok := d.Resolve(channelID)
	if !ok || url == "" {
		return Ack{}, &PermanentError{Status: 0, Reason: "channel not configured"}
	}

	fields := make([]discordField, 0, len(payload.Fields))
	for _, f := range payload.Fields {
		fields = append(fields, discordField{Name: f.Name, Value: f.Value, Inline: f.Inline})
	}
	body := discordWebhookBody{
		Embeds: []discordEmbed{{
			Title:       payload.Title,
			Description: mentionPrefix(payload.Mentions) + payload.Description,
			Color:       payload.Color,
			Fields:      fields,
		}},
	}
	if payload.ThumbnailURL != "" {
		body.Embeds[0].Thumbnail = &discordThumb{URL: payload.ThumbnailURL}
	}

	b, err := json.Marshal(body)
	if err != nil {
		return Ack{}, &PermanentError{Reason: err.Error()}
	}

	// One idempotency key per Post call, reused across every retry attempt,
	// so a receiver that honors it collapses retried sends of the same alert
	// into one delivery.
	idempotencyKey := uuid.New().String()

	var ack Ack
	err = retry.Do(ctx, d.Policy, func(err error) bool {
		var te *TransientError
		return errors.As(err, &te)
	}, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
		if err != nil {
			return &PermanentError{Reason: err.Error()}
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Idempotency-Key", idempotencyKey)
		resp, err := d.HTTP.Do(req)
		if err != nil {
			return &TransientError{}
		}
		defer resp.Body.Close()
		switch {
		case resp.StatusCode >= 200 && resp.StatusCode < 300:
			ack = Ack{ChannelID: channelID, SentAt: time.Now()}
			return nil
		case resp.StatusCode == 401 || resp.StatusCode == 403 || resp.StatusCode == 404:
			return &PermanentError{Status: resp.StatusCode, Reason: "channel rejected"}
		case resp.StatusCode == 429 || resp.StatusCode >= 500:
			return &TransientError{Status: resp.StatusCode}
		default:
			return &PermanentError{Status: resp.StatusCode, Reason: "unexpected status"}
		}
	})
	if err != nil {
		return Ack{}, err
	}
	return ack, nil
}

func mentionPrefix(mentions []string) string {
	if len(mentions) == 0 {
		return ""
	}
	out := ""
	for _, m := range mentions {
		out += "<@&" + m + "> "
	}
	return out + "\n"
}
