package providers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/sony/gobreaker"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/i474232898/morning-report/internal/config"
	"github.com/i474232898/morning-report/internal/market"
)

// syspowerDateLayout is the portal's nbno date format.
const syspowerDateLayout = "02.01.2006"

// ErrAuthFailed is returned when the portal does not issue a token.
var ErrAuthFailed = errors.New("syspower authentication failed")

// SyspowerProvider queries the analytics portal for weather and forward series.
// It implements market.WeatherProvider and market.ForwardProvider.
type SyspowerProvider struct {
	name     string
	baseURL  string
	login    string
	password string
	catalog  config.Catalog
	httpCfg  HTTPClientConfig
	circuit  *gobreaker.CircuitBreaker
	logger   *zap.Logger

	// authMu serialises logins; the portal's forceLogin revokes the previous token.
	authMu sync.Mutex
	mu     sync.Mutex
	token  string
}

// NewSyspowerProvider creates a provider. rps <= 0 disables rate limiting.
func NewSyspowerProvider(client *http.Client, baseURL, login, password string, rps float64, catalog config.Catalog, logger *zap.Logger) *SyspowerProvider {
	var limiter *rate.Limiter
	if rps > 0 {
		limiter = rate.NewLimiter(rate.Limit(rps), 1)
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &SyspowerProvider{
		name:     "syspower",
		baseURL:  strings.TrimRight(baseURL, "/"),
		login:    login,
		password: password,
		catalog:  catalog,
		httpCfg: HTTPClientConfig{
			Client:  client,
			Backoff: DefaultBackoff,
			Limiter: limiter,
		},
		circuit: newCircuitBreaker("syspower"),
		logger:  logger.With(zap.String("provider", "syspower")),
	}
}

func (p *SyspowerProvider) Name() string {
	return p.name
}

// Authenticate logs in and caches the issued token.
func (p *SyspowerProvider) Authenticate(ctx context.Context) (string, error) {
	p.logger.Info("cloud login", zap.String("user", p.login))

	body, err := json.Marshal(map[string]any{
		"email":      p.login,
		"password":   p.password,
		"forceLogin": true,
	})
	if err != nil {
		return "", err
	}

	buildRequest := func() (*http.Request, error) {
		req, err := http.NewRequest(http.MethodPost, p.baseURL+"/api/auth/login", bytes.NewReader(body))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	}

	resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return "", fmt.Errorf("%w: credentials rejected", ErrAuthFailed)
		}
		return "", fmt.Errorf("syspower login: %w", err)
	}
	defer resp.Body.Close()

	var payload struct {
		TokenType   *string `json:"tokenType"`
		IssuedToken string  `json:"issuedToken"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("decode login response: %w", err)
	}
	if payload.TokenType == nil || payload.IssuedToken == "" {
		return "", ErrAuthFailed
	}

	p.mu.Lock()
	p.token = payload.IssuedToken
	p.mu.Unlock()

	p.logger.Debug("obtained token")
	return payload.IssuedToken, nil
}

func (p *SyspowerProvider) currentToken(ctx context.Context) (string, error) {
	p.authMu.Lock()
	defer p.authMu.Unlock()

	p.mu.Lock()
	tok := p.token
	p.mu.Unlock()
	if tok != "" {
		return tok, nil
	}
	return p.Authenticate(ctx)
}

// dropToken forgets rejected unless another caller already replaced it.
func (p *SyspowerProvider) dropToken(rejected string) {
	p.mu.Lock()
	if p.token == rejected {
		p.token = ""
	}
	p.mu.Unlock()
}

// GenerateSeriesURL builds the web query that exports the given series as CSV.
func GenerateSeriesURL(baseURL string, series []string, interval string, start, end time.Time, token string) string {
	values := url.Values{}
	values.Set("fileformat", "csv")
	values.Set("series", strings.Join(series, ","))
	values.Set("start", start.Format(syspowerDateLayout))
	values.Set("end", end.Format(syspowerDateLayout))
	values.Set("interval", interval)
	values.Set("token", token)
	values.Set("emptydata", "no")
	values.Set("currency", "")
	values.Set("dateFormat", "nbno")
	values.Set("numberFormat", "nothousandsdot")
	values.Set("headers", "yes")

	return fmt.Sprintf("%s/api/webquery/execute?%s", strings.TrimRight(baseURL, "/"), values.Encode())
}

// FetchFrame downloads the series for [start, end] and parses the CSV export.
// An expired token is refreshed once.
func (p *SyspowerProvider) FetchFrame(ctx context.Context, series []string, interval string, start, end time.Time) (*market.Frame, error) {
	if len(series) == 0 {
		return nil, fmt.Errorf("no series requested")
	}

	for attempt := 0; ; attempt++ {
		token, err := p.currentToken(ctx)
		if err != nil {
			return nil, err
		}

		u := GenerateSeriesURL(p.baseURL, series, interval, start, end, token)
		buildRequest := func() (*http.Request, error) {
			return http.NewRequest(http.MethodGet, u, nil)
		}

		resp, err := doRequestWithResilience(ctx, p.httpCfg, p.circuit, buildRequest)
		if errors.Is(err, ErrUnauthorized) && attempt == 0 {
			p.logger.Info("token rejected; logging in again")
			p.dropToken(token)
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("syspower webquery: %w", err)
		}

		frame, err := ParseFrame(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("parse webquery csv: %w", err)
		}

		p.logger.Debug("fetched series",
			zap.Strings("series", series),
			zap.String("interval", interval),
			zap.Int("rows", frame.Len()),
		)
		return frame, nil
	}
}
