package notifications

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

const defaultBrevoBaseURL = "https://api.brevo.com/v3"

type BrevoTransport struct {
	apiKey      string
	senderEmail string
	senderName  string
	baseURL     string
	httpClient  *http.Client
}

func NewBrevoTransport(apiKey, senderEmail, senderName string) *BrevoTransport {
	if strings.TrimSpace(senderName) == "" {
		senderName = senderEmail
	}
	return &BrevoTransport{
		apiKey:      apiKey,
		senderEmail: senderEmail,
		senderName:  senderName,
		baseURL:     defaultBrevoBaseURL,
		httpClient:  &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *BrevoTransport) Driver() string {
	return "brevo"
}

func (c *BrevoTransport) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

// Verify checks the api key against the account endpoint.
func (c *BrevoTransport) Verify(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/account", nil)
	if err != nil {
		return fmt.Errorf("brevo create request: %w", err)
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("brevo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("brevo verify failed: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

func (c *BrevoTransport) Send(ctx context.Context, msg Message) error {
	if err := msg.validate(); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidEmail, err.Error())
	}

	payload := brevoSendRequest{
		Sender: brevoContact{
			Name:  c.senderName,
			Email: c.senderEmail,
		},
		To: []brevoContact{
			{
				Email: msg.To,
				Name:  msg.ToName,
			},
		},
		Subject:     msg.Subject,
		HtmlContent: msg.HTML,
	}
	if msg.ReplyTo != "" {
		payload.ReplyTo = &brevoContact{Email: msg.ReplyTo}
	}

	raw, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("brevo marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/smtp/email", bytes.NewReader(raw))
	if err != nil {
		return fmt.Errorf("brevo create request: %w", err)
	}
	req.Header.Set("accept", "application/json")
	req.Header.Set("content-type", "application/json")
	req.Header.Set("api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("brevo request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("brevo send failed: status=%d body=%s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var out brevoSendResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("brevo decode response: %w", err)
	}
	if strings.TrimSpace(out.MessageID) == "" {
		return errors.New("brevo response missing messageId")
	}
	return nil
}

type brevoSendRequest struct {
	Sender      brevoContact   `json:"sender"`
	To          []brevoContact `json:"to"`
	ReplyTo     *brevoContact  `json:"replyTo,omitempty"`
	Subject     string         `json:"subject"`
	HtmlContent string         `json:"htmlContent,omitempty"`
}

type brevoContact struct {
	Name  string `json:"name,omitempty"`
	Email string `json:"email"`
}

type brevoSendResponse struct {
	MessageID string `json:"messageId"`
}
