// Package console backs the partner-bank API key screens: onboarding,
// revocation, request logs and the traffic dashboard.
package console

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"
	"golang.org/x/sync/errgroup"

	"admissions-portal/internal/listing"
	"admissions-portal/internal/models"
)

const (
	KeyPrefix    = "sk_live_"
	keyBytes     = 32
	displayChars = 12
	keyLifetime  = 365 * 24 * time.Hour
)

var (
	ErrNotFound  = errors.New("bank not found")
	ErrBankTaken = errors.New("bank already onboarded")
)

type Store interface {
	ListBanks(ctx context.Context, q listing.Query) ([]models.BankAPIKey, int, error)
	CreateBank(ctx context.Context, b *models.BankAPIKey) error
	RevokeBank(ctx context.Context, id int64) error
	ListRequestLogs(ctx context.Context, q listing.Query) ([]models.RequestLog, int, error)

	CountActiveBanks(ctx context.Context) (int, error)
	CountRequests(ctx context.Context) (int, error)
	RequestsSince(ctx context.Context, since time.Time) ([]models.RequestLog, error)
}

type Service struct {
	store Store
	log   *slog.Logger
	rand  io.Reader
	now   func() time.Time
}

func NewService(store Store, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		store: store,
		log:   log.With(slog.String("component", "console")),
		rand:  rand.Reader,
		now:   time.Now,
	}
}

// GenerateKey returns a fresh secret of the form sk_live_<64 hex chars>.
func GenerateKey(r io.Reader) (string, error) {
	buf := make([]byte, keyBytes)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", fmt.Errorf("read random: %w", err)
	}
	return KeyPrefix + hex.EncodeToString(buf), nil
}

// Onboarded carries the raw key. It is shown once and never stored.
type Onboarded struct {
	Bank   models.BankAPIKey `json:"bank"`
	APIKey string            `json:"api_key"`
}

func (s *Service) Onboard(ctx context.Context, req models.CreateBankRequest) (Onboarded, error) {
	key, err := GenerateKey(s.rand)
	if err != nil {
		return Onboarded{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(key), bcrypt.DefaultCost)
	if err != nil {
		return Onboarded{}, fmt.Errorf("hash key: %w", err)
	}

	now := s.now()
	b := models.BankAPIKey{
		BankName:     strings.TrimSpace(req.BankName),
		ContactEmail: strings.TrimSpace(req.ContactEmail),
		ContactPhone: strings.TrimSpace(req.ContactPhone),
		APIKeyPrefix: key[:displayChars],
		APIKeyHash:   string(hash),
		IsActive:     true,
		ExpiresAt:    now.Add(keyLifetime),
		CreatedAt:    now,
	}
	if err := s.store.CreateBank(ctx, &b); err != nil {
		return Onboarded{}, err
	}
	s.log.Info("bank onboarded", slog.Int64("bank_id", b.ID), slog.String("prefix", b.APIKeyPrefix))
	return Onboarded{Bank: b, APIKey: key}, nil
}

func (s *Service) Revoke(ctx context.Context, id int64) error {
	if err := s.store.RevokeBank(ctx, id); err != nil {
		return err
	}
	s.log.Warn("bank key revoked", slog.Int64("bank_id", id))
	return nil
}

func (s *Service) Banks(ctx context.Context, q listing.Query) (listing.Result[models.BankAPIKey], error) {
	rows, total, err := s.store.ListBanks(ctx, q)
	if err != nil {
		return listing.Result[models.BankAPIKey]{}, err
	}
	return listing.Result[models.BankAPIKey]{Data: rows, Count: total}, nil
}

func (s *Service) Logs(ctx context.Context, q listing.Query) (listing.Result[models.RequestLog], error) {
	rows, total, err := s.store.ListRequestLogs(ctx, q)
	if err != nil {
		return listing.Result[models.RequestLog]{}, err
	}
	return listing.Result[models.RequestLog]{Data: rows, Count: total}, nil
}

// VerifyKey reports whether raw matches the stored hash of b.
func VerifyKey(b models.BankAPIKey, raw string) bool {
	if !strings.HasPrefix(raw, b.APIKeyPrefix) {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(b.APIKeyHash), []byte(raw)) == nil
}

/*
|--------------------------------------------------------------------------
| Dashboard
|--------------------------------------------------------------------------
*/

type HourBucket struct {
	Hour  string `json:"hour"`
	Count int    `json:"count"`
}

type Dashboard struct {
	ActiveBanks   int                 `json:"active_banks"`
	TotalRequests int                 `json:"total_requests"`
	Requests24h   int                 `json:"requests_24h"`
	SuccessRate   int                 `json:"success_rate"`
	AvgLatencyMS  int                 `json:"avg_latency_ms"`
	Hourly        []HourBucket        `json:"hourly"`
	Recent        []models.RequestLog `json:"recent"`
}

const recentLimit = 5

// Dashboard loads the three independent aggregates concurrently.
func (s *Service) Dashboard(ctx context.Context, loc *time.Location) (Dashboard, error) {
	var (
		banks, total int
		logs         []models.RequestLog
	)
	since := s.now().Add(-24 * time.Hour)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		n, err := s.store.CountActiveBanks(gctx)
		banks = n
		return err
	})
	g.Go(func() error {
		n, err := s.store.CountRequests(gctx)
		total = n
		return err
	})
	g.Go(func() error {
		l, err := s.store.RequestsSince(gctx, since)
		logs = l
		return err
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, fmt.Errorf("load dashboard: %w", err)
	}

	d := Summarize(logs, loc)
	d.ActiveBanks = banks
	d.TotalRequests = total
	return d, nil
}

// Summarize computes the 24h figures from logs ordered oldest first.
func Summarize(logs []models.RequestLog, loc *time.Location) Dashboard {
	if loc == nil {
		loc = time.UTC
	}
	d := Dashboard{Requests24h: len(logs), Hourly: []HourBucket{}, Recent: []models.RequestLog{}}
	if len(logs) == 0 {
		return d
	}

	success, latency := 0, 0
	index := map[string]int{}
	for _, l := range logs {
		if l.ResponseStatus == models.RequestSuccess {
			success++
		}
		latency += l.ResponseTimeMS

		key := fmt.Sprintf("%d:00", l.RequestTimestamp.In(loc).Hour())
		i, ok := index[key]
		if !ok {
			i = len(d.Hourly)
			index[key] = i
			d.Hourly = append(d.Hourly, HourBucket{Hour: key})
		}
		d.Hourly[i].Count++
	}
	d.SuccessRate = roundDiv(success*100, len(logs))
	d.AvgLatencyMS = roundDiv(latency, len(logs))

	for i := len(logs) - 1; i >= 0 && len(d.Recent) < recentLimit; i-- {
		d.Recent = append(d.Recent, logs[i])
	}
	return d
}

func roundDiv(a, b int) int {
	return (2*a + b) / (2 * b)
}
