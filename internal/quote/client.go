// Package quote fetches prices from the InvertirOnline quote API.
//
// A Client owns its bearer-token state. Every price request first obtains a
// valid token, reusing the current one, refreshing it, or logging in again
// with the configured credentials, and sends that token itself. Per-symbol failures never surface as a
// returned error; they are carried in Result.Err so batches keep going.
package quote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"brokerfolio/internal/logger"
)

const (
	// DefaultBaseURL is the production quote API.
	DefaultBaseURL = "https://api.invertironline.com"
	// DefaultMarket is the Buenos Aires exchange as the quote API spells it.
	DefaultMarket = "bCBA"
	// DefaultTokenLifetime sits one minute under the provider's 15 minutes.
	DefaultTokenLifetime = 14 * time.Minute
	// DefaultTimeout bounds each outbound request.
	DefaultTimeout = 30 * time.Second
)

// ErrAuthFailed is returned when the token endpoint rejects the credentials.
var ErrAuthFailed = errors.New("quote provider authentication failed")

// Credentials are the provider account used for the password grant.
type Credentials struct {
	Username string
	Password string
}

// Result is the outcome of one symbol lookup. Exactly one of Price or Err is set.
type Result struct {
	Symbol    string           `json:"symbol"`
	Price     *decimal.Decimal `json:"price"`
	ChangePct *decimal.Decimal `json:"variation,omitempty"`
	Volume    *int64           `json:"volume,omitempty"`
	QuotedAt  *time.Time       `json:"date,omitempty"`
	Err       error            `json:"-"`
}

// OK reports whether the lookup produced a price.
func (r Result) OK() bool { return r.Err == nil && r.Price != nil }

// MarshalJSON adds the error text under "error" when the lookup failed.
func (r Result) MarshalJSON() ([]byte, error) {
	type plain Result
	out := struct {
		plain
		Error string `json:"error,omitempty"`
	}{plain: plain(r)}
	if r.Err != nil {
		out.Error = r.Err.Error()
	}
	return json.Marshal(out)
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another API host.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

// WithMarket sets the exchange segment used in quote URLs.
func WithMarket(m string) Option {
	return func(c *Client) { c.market = m }
}

// WithClock replaces time.Now for token expiry decisions.
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithTokenLifetime overrides how long a fresh token is trusted.
func WithTokenLifetime(d time.Duration) Option {
	return func(c *Client) { c.tokenLifetime = d }
}

// Client talks to the quote API. It is safe for concurrent use; token
// transitions are serialized, price lookups are not.
type Client struct {
	httpClient    *http.Client
	baseURL       string
	market        string
	creds         Credentials
	now           func() time.Time
	tokenLifetime time.Duration
	log           *zap.SugaredLogger

	mu           sync.Mutex
	accessToken  string
	refreshToken string
	expiresAt    time.Time
}

// NewClient creates an unauthenticated client for creds.
func NewClient(creds Credentials, opts ...Option) *Client {
	c := &Client{
		httpClient:    &http.Client{Timeout: DefaultTimeout},
		baseURL:       DefaultBaseURL,
		market:        DefaultMarket,
		creds:         creds,
		now:           time.Now,
		tokenLifetime: DefaultTokenLifetime,
		log:           logger.Named("quote"),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Authenticate exchanges the configured credentials for a fresh token pair.
// On failure the client is left unauthenticated and no retry is attempted.
func (c *Client) Authenticate(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.authenticate(ctx)
}

func (c *Client) authenticate(ctx context.Context) error {
	form := url.Values{
		"username":   {c.creds.Username},
		"password":   {c.creds.Password},
		"grant_type": {"password"},
	}
	if err := c.requestToken(ctx, form); err != nil {
		c.clearToken()
		c.log.Warnw("authentication failed", "user", c.creds.Username, "error", err)
		return err
	}
	c.log.Debugw("authenticated", "user", c.creds.Username)
	return nil
}

// EnsureValid makes sure the client holds an unexpired token. An expired
// token is renewed with the refresh grant first, falling back to a full
// password login when the refresh is rejected.
func (c *Client) EnsureValid(ctx context.Context) error {
	_, err := c.validToken(ctx)
	return err
}

// validToken returns the access token it validated, so a request never
// re-reads token state another caller may have cleared meanwhile.
func (c *Client) validToken(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.accessToken != "" && c.now().Before(c.expiresAt) {
		return c.accessToken, nil
	}
	if c.accessToken == "" || c.refreshToken == "" {
		if err := c.authenticate(ctx); err != nil {
			return "", err
		}
		return c.accessToken, nil
	}

	form := url.Values{
		"refresh_token": {c.refreshToken},
		"grant_type":    {"refresh_token"},
	}
	if err := c.requestToken(ctx, form); err != nil {
		c.log.Debugw("token refresh rejected, logging in again", "error", err)
		if err := c.authenticate(ctx); err != nil {
			return "", err
		}
	}
	return c.accessToken, nil
}

// Authenticated reports whether the client currently holds an unexpired token.
func (c *Client) Authenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.accessToken != "" && c.now().Before(c.expiresAt)
}

// requestToken posts form to the token endpoint and stores the result.
// The caller holds c.mu.
func (c *Client) requestToken(ctx context.Context, form url.Values) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/token", strings.NewReader(form.Encode()))
	if err != nil {
		return errors.Wrap(err, "building token request")
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "token request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return errors.Wrapf(ErrAuthFailed, "token endpoint returned %d", resp.StatusCode)
	}

	var tok tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&tok); err != nil {
		return errors.Wrap(err, "decoding token response")
	}
	if tok.AccessToken == "" {
		return errors.Wrap(ErrAuthFailed, "token response has no access_token")
	}

	c.accessToken = tok.AccessToken
	c.refreshToken = tok.RefreshToken
	c.expiresAt = c.now().Add(c.tokenLifetime)
	return nil
}

func (c *Client) clearToken() {
	c.accessToken = ""
	c.refreshToken = ""
	c.expiresAt = time.Time{}
}

type quoteResponse struct {
	LastPrice *decimal.Decimal `json:"ultimoPrecio"`
	ChangePct *decimal.Decimal `json:"variacion"`
	Volume    *decimal.Decimal `json:"volumen"`
	DateTime  string           `json:"fechaHora"`
}

// GetPrice looks up the latest quote for symbol. It never returns an error;
// failures are reported through Result.Err.
func (c *Client) GetPrice(ctx context.Context, symbol string) Result {
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	res := Result{Symbol: symbol}

	token, err := c.validToken(ctx)
	if err != nil {
		res.Err = err
		return res
	}

	var q quoteResponse
	if err := c.get(ctx, token, c.titlePath(symbol, "Cotizacion"), &q); err != nil {
		res.Err = err
		return res
	}
	if q.LastPrice == nil || q.LastPrice.Sign() <= 0 {
		res.Err = errors.Errorf("no price in quote for %s", symbol)
		return res
	}

	res.Price = q.LastPrice
	res.ChangePct = q.ChangePct
	res.Volume = wholeVolume(q.Volume)
	if t, ok := parseTimestamp(q.DateTime); ok {
		res.QuotedAt = &t
	} else {
		now := c.now()
		res.QuotedAt = &now
	}
	return res
}

// GetPrices looks up symbols one after another and keys the results by
// the symbol as the caller passed it. A failing symbol does not stop the batch.
func (c *Client) GetPrices(ctx context.Context, symbols []string) map[string]Result {
	results := make(map[string]Result, len(symbols))
	for _, s := range symbols {
		results[s] = c.GetPrice(ctx, s)
	}
	return results
}

// TestConnection logs in and fetches one symbol to prove the whole path works.
func (c *Client) TestConnection(ctx context.Context, symbol string) Result {
	c.mu.Lock()
	c.clearToken()
	c.mu.Unlock()
	return c.GetPrice(ctx, symbol)
}

func (c *Client) titlePath(symbol string, parts ...string) string {
	segs := append([]string{"api", "v2", c.market, "Titulos", url.PathEscape(symbol)}, parts...)
	return "/" + strings.Join(segs, "/")
}

// get issues an authorized GET and decodes the JSON body into out.
func (c *Client) get(ctx context.Context, token, path string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return errors.Wrap(err, "building request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "http request")
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, resp.Body)
		return errors.Errorf("HTTP %d", resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Wrap(err, "decoding response")
	}
	return nil
}

// FailureSummary renders failed results as "N symbols failed: A: reason, B: reason",
// sorted by symbol. It returns "" when nothing failed.
func FailureSummary(results map[string]Result) string {
	reasons := make(map[string]string)
	for sym, r := range results {
		if !r.OK() {
			reasons[sym] = failureReason(r).Error()
		}
	}
	return SummarizeFailures(reasons)
}

// SummarizeFailures renders a symbol to reason map in the FailureSummary format.
func SummarizeFailures(reasons map[string]string) string {
	if len(reasons) == 0 {
		return ""
	}
	failed := make([]string, 0, len(reasons))
	for sym, reason := range reasons {
		failed = append(failed, sym+": "+reason)
	}
	sort.Strings(failed)
	noun := "symbols"
	if len(failed) == 1 {
		noun = "symbol"
	}
	return fmt.Sprintf("%d %s failed: %s", len(failed), noun, strings.Join(failed, ", "))
}

func failureReason(r Result) error {
	if r.Err != nil {
		return r.Err
	}
	return errors.New("no price")
}

func wholeVolume(v *decimal.Decimal) *int64 {
	if v == nil {
		return nil
	}
	n := v.IntPart()
	return &n
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04:05",
	"2006-01-02",
	"02/01/2006",
}

func parseTimestamp(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
