// Package wallet keeps the participation tokens a browser has been issued,
// so a participant can find their entries again after closing the tab.
package wallet

import (
	"encoding/json"
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"
)

const (
	CookieName = "my_queue_tokens"
	cookieTTL  = 30 * 24 * time.Hour
)

// Decode parses a cookie value. Anything unreadable is an empty wallet.
func Decode(raw string) []string {
	if raw == "" {
		return nil
	}
	if unescaped, err := url.QueryUnescape(raw); err == nil {
		raw = unescaped
	}
	var tokens []string
	if err := json.Unmarshal([]byte(raw), &tokens); err != nil {
		return nil
	}
	return dedup(tokens)
}

func Encode(tokens []string) string {
	if tokens == nil {
		tokens = []string{}
	}
	b, _ := json.Marshal(tokens)
	return url.QueryEscape(string(b))
}

// Add appends token unless it is already held. Order of issue is kept.
func Add(tokens []string, token string) []string {
	if token == "" {
		return tokens
	}
	for _, t := range tokens {
		if t == token {
			return tokens
		}
	}
	return append(tokens, token)
}

func dedup(tokens []string) []string {
	var out []string
	for _, t := range tokens {
		out = Add(out, t)
	}
	return out
}

// Tokens reads the wallet from the request cookie.
func Tokens(c *fiber.Ctx) []string {
	return Decode(c.Cookies(CookieName))
}

// Remember adds token to the wallet cookie on the response.
func Remember(c *fiber.Ctx, token string) []string {
	tokens := Add(Tokens(c), token)
	c.Cookie(&fiber.Cookie{
		Name:     CookieName,
		Value:    Encode(tokens),
		Path:     "/",
		Expires:  time.Now().Add(cookieTTL),
		HTTPOnly: true,
		SameSite: fiber.CookieSameSiteLaxMode,
	})
	return tokens
}
