package telegram

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/cenkalti/backoff/v5"
)

const DefaultBaseURL = "https://api.telegram.org"

// APIError is a failed Bot API call.
type APIError struct {
	StatusCode  int
	Description string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("telegram: http %d: %s", e.StatusCode, e.Description)
}

// Notifier posts operator messages to one chat through the Bot API.
type Notifier struct {
	Token   string
	ChatID  string
	BaseURL string
	HTTP    *http.Client
}

type sendMessageRequest struct {
	ChatID string `json:"chat_id"`
	Text   string `json:"text"`
}

type apiResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// Send delivers text once. Client errors other than rate limiting are
// marked permanent so callers stop retrying them.
func (n *Notifier) Send(ctx context.Context, text string) error {
	body, err := json.Marshal(sendMessageRequest{ChatID: n.ChatID, Text: text})
	if err != nil {
		return backoff.Permanent(err)
	}

	url := n.baseURL() + "/bot" + n.Token + "/sendMessage"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return backoff.Permanent(err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient().Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var out apiResponse
	_ = json.NewDecoder(io.LimitReader(resp.Body, 64<<10)).Decode(&out)

	if resp.StatusCode == http.StatusOK && out.OK {
		return nil
	}

	apiErr := &APIError{StatusCode: resp.StatusCode, Description: out.Description}
	if resp.StatusCode >= 400 && resp.StatusCode < 500 && resp.StatusCode != http.StatusTooManyRequests {
		return backoff.Permanent(apiErr)
	}
	return apiErr
}

func (n *Notifier) baseURL() string {
	if n.BaseURL == "" {
		return DefaultBaseURL
	}
	return strings.TrimRight(n.BaseURL, "/")
}

func (n *Notifier) httpClient() *http.Client {
	if n.HTTP == nil {
		return http.DefaultClient
	}
	return n.HTTP
}
