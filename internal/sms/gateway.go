package sms

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

const (
	DefaultSenderID = "GH_SCHOOLS"
	DefaultBaseURL  = "https://sms.arkesel.com/api/v2/sms/send"
)

var ErrNoAPIKey = errors.New("ARKESEL_API_KEY not configured")

// Gateway delivers a single rendered message.
type Gateway interface {
	Send(ctx context.Context, phone, message string) (GatewayResponse, error)
}

// GatewayResponse is the Arkesel reply. Raw keeps the body as received for
// the audit log.
type GatewayResponse struct {
	Status  string          `json:"status"`
	Message string          `json:"message,omitempty"`
	Code    string          `json:"code,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
	Raw     []byte          `json:"-"`
}

// MessageID digs the gateway id out of data, which is either an object or a
// list of per-recipient objects.
func (r GatewayResponse) MessageID() string {
	if len(r.Data) == 0 {
		return ""
	}
	var one struct {
		ID interface{} `json:"id"`
	}
	if err := json.Unmarshal(r.Data, &one); err == nil && one.ID != nil {
		return fmt.Sprint(one.ID)
	}
	var many []struct {
		ID interface{} `json:"id"`
	}
	if err := json.Unmarshal(r.Data, &many); err == nil && len(many) > 0 && many[0].ID != nil {
		return fmt.Sprint(many[0].ID)
	}
	return ""
}

type ArkeselConfig struct {
	APIKey   string
	SenderID string
	BaseURL  string
	Timeout  time.Duration
}

type ArkeselClient struct {
	cfg    ArkeselConfig
	client *http.Client
}

func NewArkeselClient(cfg ArkeselConfig) *ArkeselClient {
	if cfg.SenderID == "" {
		cfg.SenderID = DefaultSenderID
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	return &ArkeselClient{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
	}
}

type sendRequest struct {
	Sender     string   `json:"sender"`
	Recipients []string `json:"recipients"`
	Message    string   `json:"message"`
}

func (c *ArkeselClient) Send(ctx context.Context, phone, message string) (GatewayResponse, error) {
	if c.cfg.APIKey == "" {
		return GatewayResponse{}, ErrNoAPIKey
	}

	body, err := json.Marshal(sendRequest{
		Sender:     c.cfg.SenderID,
		Recipients: []string{phone},
		Message:    message,
	})
	if err != nil {
		return GatewayResponse{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL, bytes.NewReader(body))
	if err != nil {
		return GatewayResponse{}, err
	}
	req.Header.Set("api-key", c.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return GatewayResponse{}, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return GatewayResponse{}, err
	}

	var result GatewayResponse
	if err := json.Unmarshal(raw, &result); err != nil {
		return GatewayResponse{}, fmt.Errorf("decode arkesel response (HTTP %d): %w", resp.StatusCode, err)
	}
	result.Raw = raw

	if resp.StatusCode < 200 || resp.StatusCode > 299 || !strings.EqualFold(result.Status, "success") {
		return result, gatewayError(result)
	}
	return result, nil
}

func gatewayError(r GatewayResponse) error {
	switch {
	case r.Message != "":
		return errors.New(r.Message)
	case r.Code != "":
		return errors.New(r.Code)
	default:
		return errors.New("Unknown Arkesel API error")
	}
}
