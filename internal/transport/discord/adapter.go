package discord

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"runrelay/internal/transport"
	logx "runrelay/pkg/logx"
)

// DefaultTimeout bounds a single webhook call.
const DefaultTimeout = 10 * time.Second

// maxErrorBody caps how much of a failed response is kept for diagnostics.
const maxErrorBody = 4 << 10

var ErrNoMessageID = errors.New("discord: response carried no message id")

// HTTPClient is the subset of *http.Client the adapter needs.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

type Config struct {
	// WebhookURL is https://discord.com/api/webhooks/{id}/{token}, optionally
	// with query parameters such as thread_id.
	WebhookURL string
	Timeout    time.Duration

	// Optional per-message overrides of the webhook's configured identity.
	Username  string
	AvatarURL string
}

// Adapter talks to a Discord channel webhook.
type Adapter struct {
	base      *url.URL
	username  string
	avatarURL string
	http      HTTPClient
	log       logx.Logger
}

// New validates cfg and builds an adapter. A nil client gets an
// *http.Client with cfg.Timeout.
func New(cfg Config, client HTTPClient, log logx.Logger) (*Adapter, error) {
	raw := strings.TrimSpace(cfg.WebhookURL)
	if raw == "" {
		return nil, errors.New("discord webhook url is empty")
	}
	u, err := url.Parse(raw)
	if err != nil {
		// url.Error echoes the URL, token included.
		return nil, errors.New("discord webhook url is not a valid URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("discord webhook url: unsupported scheme %q", u.Scheme)
	}
	if client == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = DefaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Adapter{
		base:      u,
		username:  cfg.Username,
		avatarURL: cfg.AvatarURL,
		http:      client,
		log:       log,
	}, nil
}

// Send posts p as a new message (transport.Create) or edits an existing
// one (transport.Update). It makes exactly one attempt.
func (a *Adapter) Send(ctx context.Context, p transport.Payload, to transport.Target) (transport.MessageID, error) {
	if p.Username == "" {
		p.Username = a.username
	}
	if p.AvatarURL == "" {
		p.AvatarURL = a.avatarURL
	}

	switch t := to.(type) {
	case transport.Create:
		var msg messageResponse
		if err := a.do(ctx, http.MethodPost, a.endpoint(""), p, &msg); err != nil {
			return "", err
		}
		if msg.ID == "" {
			return "", ErrNoMessageID
		}
		return transport.MessageID(msg.ID), nil
	case transport.Update:
		if t.MessageID == "" {
			return "", errors.New("discord: update without message id")
		}
		if err := a.do(ctx, http.MethodPatch, a.endpoint(string(t.MessageID)), p, nil); err != nil {
			return "", err
		}
		return t.MessageID, nil
	default:
		return "", fmt.Errorf("discord: unsupported target %T", to)
	}
}

// SendText posts a plain content message. It backs the chat log sink.
func (a *Adapter) SendText(ctx context.Context, text string) error {
	p := transport.Payload{Content: text, Username: a.username, AvatarURL: a.avatarURL, Embeds: []transport.Embed{}}
	return a.do(ctx, http.MethodPost, a.endpoint(""), p, nil)
}

type messageResponse struct {
	ID        string `json:"id"`
	ChannelID string `json:"channel_id"`
}

// endpoint returns the webhook URL, or the message URL when messageID is set,
// with wait=true added to whatever query the webhook already carries.
func (a *Adapter) endpoint(messageID string) string {
	u := *a.base
	if messageID != "" {
		u.Path = strings.TrimSuffix(u.Path, "/") + "/messages/" + url.PathEscape(messageID)
		u.RawPath = ""
	}
	q := u.Query()
	q.Set("wait", "true")
	u.RawQuery = q.Encode()
	return u.String()
}

func (a *Adapter) do(ctx context.Context, method, endpoint string, p transport.Payload, out any) error {
	body, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("discord: marshal payload: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("discord: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := a.http.Do(req)
	if err != nil {
		return fmt.Errorf("discord: %s request failed: %w", method, err)
	}
	defer resp.Body.Close()

	a.log.Debug("webhook call",
		logx.String("method", method),
		logx.Int("status", resp.StatusCode),
		logx.Duration("took", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &StatusError{Method: method, Code: resp.StatusCode, Body: strings.TrimSpace(string(b))}
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("discord: decode response: %w", err)
	}
	return nil
}
