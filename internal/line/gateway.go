// Package line is a minimal LINE Messaging API client: webhook event
// parsing with signature verification, and reply/push calls.
package line

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"
)

// ErrBadSignature is returned when the webhook signature does not match.
var ErrBadSignature = errors.New("line: invalid signature")

// Event types we care about; everything else is ignored.
const (
	EventFollow  = "follow"
	EventMessage = "message"
)

// Event is one webhook event. Only the fields we need.
type Event struct {
	Type       string `json:"type"`
	ReplyToken string `json:"replyToken"`
	Source     struct {
		UserID string `json:"userId"`
	} `json:"source"`
	Message struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"message"`
}

type webhookBody struct {
	Events []Event `json:"events"`
}

// ParseRequest verifies the X-Line-Signature header against the body and
// returns the batch of events.
func ParseRequest(channelSecret string, r *http.Request) ([]Event, error) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	if !ValidateSignature(channelSecret, body, r.Header.Get("X-Line-Signature")) {
		return nil, ErrBadSignature
	}
	var wb webhookBody
	if err := json.Unmarshal(body, &wb); err != nil {
		return nil, err
	}
	return wb.Events, nil
}

// ValidateSignature checks the base64 HMAC-SHA256 of the body keyed by the
// channel secret.
func ValidateSignature(channelSecret string, body []byte, signature string) bool {
	decoded, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}
	mac := hmac.New(sha256.New, []byte(channelSecret))
	mac.Write(body)
	return hmac.Equal(decoded, mac.Sum(nil))
}

// Gateway sends replies and pushes through the Messaging API.
type Gateway struct {
	token      string
	baseURL    string
	httpClient *http.Client
}

const defaultBaseURL = "https://api.line.me/v2/bot"

// New returns a gateway. An empty baseURL selects the public endpoint.
func New(channelToken, baseURL string) *Gateway {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	return &Gateway{
		token:      channelToken,
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

type textMessage struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

func textMessages(texts []string) []textMessage {
	msgs := make([]textMessage, 0, len(texts))
	for _, t := range texts {
		msgs = append(msgs, textMessage{Type: "text", Text: t})
	}
	return msgs
}

// Reply answers an inbound event via its reply token.
func (g *Gateway) Reply(ctx context.Context, replyToken string, texts []string) error {
	return g.post(ctx, "/message/reply", map[string]any{
		"replyToken": replyToken,
		"messages":   textMessages(texts),
	})
}

// Push sends messages to a user outside of a reply context.
func (g *Gateway) Push(ctx context.Context, userID string, texts []string) error {
	return g.post(ctx, "/message/push", map[string]any{
		"to":       userID,
		"messages": textMessages(texts),
	})
}

func (g *Gateway) post(ctx context.Context, path string, payload any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.token)
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return errors.New("line: unexpected status " + resp.Status)
	}
	return nil
}
