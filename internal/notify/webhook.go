// Package notify delivers order announcements to a chat webhook.
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Limits enforced by common chat webhook receivers.
const (
	MaxEmbeds          = 10
	MaxFields          = 25
	MaxTitleLength     = 256
	MaxDescription     = 4096
	MaxFieldNameLength = 256
	MaxFieldValue      = 1024
	MaxContentLength   = 2000
)

var (
	// ErrNotConfigured is returned when no webhook URL is set.
	ErrNotConfigured = errors.New("webhook url is not configured")
	// ErrInvalidMessage wraps every Message.Validate failure.
	ErrInvalidMessage = errors.New("invalid webhook message")
)

// Message is the JSON document posted to the webhook.
type Message struct {
	Username  string  `json:"username,omitempty"`
	AvatarURL string  `json:"avatar_url,omitempty"`
	Content   string  `json:"content,omitempty"`
	Embeds    []Embed `json:"embeds,omitempty"`
}

// Embed is one rich block of a message.
type Embed struct {
	Title       string     `json:"title,omitempty"`
	Description string     `json:"description,omitempty"`
	URL         string     `json:"url,omitempty"`
	Color       int        `json:"color,omitempty"`
	Fields      []Field    `json:"fields,omitempty"`
	Thumbnail   *Image     `json:"thumbnail,omitempty"`
	Image       *Image     `json:"image,omitempty"`
	Footer      *Footer    `json:"footer,omitempty"`
	Timestamp   *time.Time `json:"timestamp,omitempty"`
}

// Field is a name/value row inside an embed.
type Field struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// Image references a hosted picture.
type Image struct {
	URL string `json:"url"`
}

// Footer is the small text under an embed.
type Footer struct {
	Text string `json:"text"`
}

// Validate checks the document shape before it is sent or proxied.
func (m Message) Validate() error {
	if err := m.validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}
	return nil
}

func (m Message) validate() error {
	if strings.TrimSpace(m.Content) == "" && len(m.Embeds) == 0 {
		return errors.New("message needs content or at least one embed")
	}
	if len(m.Content) > MaxContentLength {
		return fmt.Errorf("content exceeds %d characters", MaxContentLength)
	}
	if len(m.Embeds) > MaxEmbeds {
		return fmt.Errorf("at most %d embeds are allowed", MaxEmbeds)
	}
	for i, embed := range m.Embeds {
		if len(embed.Title) > MaxTitleLength {
			return fmt.Errorf("embed %d: title exceeds %d characters", i, MaxTitleLength)
		}
		if len(embed.Description) > MaxDescription {
			return fmt.Errorf("embed %d: description exceeds %d characters", i, MaxDescription)
		}
		if len(embed.Fields) > MaxFields {
			return fmt.Errorf("embed %d: at most %d fields are allowed", i, MaxFields)
		}
		for j, field := range embed.Fields {
			if strings.TrimSpace(field.Name) == "" || strings.TrimSpace(field.Value) == "" {
				return fmt.Errorf("embed %d field %d: name and value are required", i, j)
			}
			if len(field.Name) > MaxFieldNameLength || len(field.Value) > MaxFieldValue {
				return fmt.Errorf("embed %d field %d: too long", i, j)
			}
		}
	}
	return nil
}

// DeliveryError is a non-2xx webhook response.
type DeliveryError struct {
	Status int
	Body   string
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("webhook returned %d: %s", e.Status, e.Body)
}

// Client posts messages to one webhook endpoint.
type Client struct {
	URL        string
	Username   string
	AvatarURL  string
	HTTPClient *http.Client
}

// NewClient builds a client with its own request timeout.
func NewClient(url, username, avatarURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		URL:        strings.TrimSpace(url),
		Username:   username,
		AvatarURL:  avatarURL,
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// Enabled reports whether a webhook URL is configured.
func (c *Client) Enabled() bool {
	return c != nil && c.URL != ""
}

// Send validates and posts msg. Any non-2xx response is an error.
func (c *Client) Send(ctx context.Context, msg Message) error {
	if !c.Enabled() {
		return ErrNotConfigured
	}
	if msg.Username == "" {
		msg.Username = c.Username
	}
	if msg.AvatarURL == "" {
		msg.AvatarURL = c.AvatarURL
	}
	if err := msg.Validate(); err != nil {
		return err
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("encode webhook message: %w", err)
	}
	_, err = c.Post(ctx, body)
	return err
}

// Post sends a raw JSON body and returns the response status.
func (c *Client) Post(ctx context.Context, body []byte) (int, error) {
	if !c.Enabled() {
		return 0, ErrNotConfigured
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/json")

	client := c.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("deliver webhook: %w", err)
	}
	defer resp.Body.Close() // nolint:errcheck // best-effort cleanup

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return resp.StatusCode, &DeliveryError{Status: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return resp.StatusCode, nil
}
