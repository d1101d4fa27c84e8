package config

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const recaptchaURL = "https://www.google.com/recaptcha/api/siteverify"

type RecaptchaResponse struct {
	Success bool    `json:"success"`
	Score   float64 `json:"score"`
	Action  string  `json:"action"`
}

type Recaptcha struct {
	secret   string
	endpoint string
	client   *http.Client
}

func NewRecaptcha(secret string) *Recaptcha {
	return &Recaptcha{
		secret:   secret,
		endpoint: recaptchaURL,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

// Enabled is false when no secret is configured; login then skips the check.
func (r *Recaptcha) Enabled() bool {
	return r != nil && r.secret != ""
}

func (r *Recaptcha) Verify(ctx context.Context, token string) (bool, float64, error) {
	data := url.Values{}
	data.Set("secret", r.secret)
	data.Set("response", token)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.endpoint, strings.NewReader(data.Encode()))
	if err != nil {
		return false, 0, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := r.client.Do(req)
	if err != nil {
		return false, 0, err
	}
	defer resp.Body.Close()

	var result RecaptchaResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return false, 0, err
	}

	return result.Success, result.Score, nil
}
