package services

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	apperrors "brokerfolio/internal/errors"
	"brokerfolio/internal/logger"
	"brokerfolio/internal/models"
	"brokerfolio/internal/quote"
)

const (
	defaultHistoryDays   = 180
	connectionTestSymbol = "AL30"
)

// pricingService drives the quote provider and writes what it returns
// through the price-history upsert.
type pricingService struct {
	db      *gorm.DB
	fetcher QuoteFetcher
	live    quote.PriceSource
	now     func() time.Time
}

// NewPricingService creates a new PricingServicer. fetcher is nil when no
// provider credentials are configured; live serves single-symbol lookups
// and defaults to fetcher.
func NewPricingService(db *gorm.DB, fetcher QuoteFetcher, live quote.PriceSource) PricingServicer {
	if live == nil && fetcher != nil {
		live = fetcher
	}
	return &pricingService{db: db, fetcher: fetcher, live: live, now: time.Now}
}

// RefreshPrices fetches every tracked instrument one after another, then
// commits all successful prices in one transaction. Failing symbols are
// reported, not fatal. The default bond universe is seeded first when
// nothing is tracked.
func (s *pricingService) RefreshPrices(ctx context.Context) (*RefreshResult, error) {
	if s.fetcher == nil {
		return nil, apperrors.ErrQuoteNotConfigured
	}
	start := s.now()

	if _, err := seedDefaultBonds(s.db); err != nil {
		return nil, err
	}
	var instruments []models.Instrument
	if err := s.db.Order("symbol ASC").Find(&instruments).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	symbols := make([]string, 0, len(instruments))
	for _, inst := range instruments {
		symbols = append(symbols, inst.Symbol)
	}

	results := s.fetcher.GetPrices(ctx, symbols)
	result := &RefreshResult{Requested: len(symbols), Failed: map[string]string{}}

	at := s.now()
	err := s.db.Transaction(func(tx *gorm.DB) error {
		for i := range instruments {
			inst := &instruments[i]
			r, ok := results[inst.Symbol]
			if !ok {
				result.Failed[inst.Symbol] = "no result"
				continue
			}
			if !r.OK() {
				result.Failed[inst.Symbol] = failureText(r)
				continue
			}
			if r.Price.Sign() <= 0 {
				result.Failed[inst.Symbol] = "non-positive price " + r.Price.String()
				continue
			}
			if err := setPrice(tx, inst, *r.Price, r.Volume, at); err != nil {
				return err
			}
			result.Updated++
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	result.Summary = quote.SummarizeFailures(result.Failed)
	result.Duration = s.now().Sub(start)
	if len(result.Failed) == 0 {
		result.Failed = nil
	}

	logger.Get().Infow("price refresh finished",
		"requested", result.Requested,
		"updated", result.Updated,
		"failed", len(result.Failed),
		"duration", result.Duration,
	)
	if result.Summary != "" {
		logger.Get().Warnw("price refresh had failures", "summary", result.Summary)
	}

	if result.Requested > 0 && result.Updated == 0 && allAuthFailures(results) {
		return result, apperrors.Wrap(apperrors.ErrQuoteAuthFailed, quote.ErrAuthFailed)
	}
	return result, nil
}

// ImportHistory backfills the last days days of every tracked instrument
// from the provider's historical series, pausing between symbols.
func (s *pricingService) ImportHistory(ctx context.Context, days int, pause time.Duration) (*ImportResult, error) {
	if s.fetcher == nil {
		return nil, apperrors.ErrQuoteNotConfigured
	}
	if days <= 0 {
		days = defaultHistoryDays
	}

	var instruments []models.Instrument
	if err := s.db.Order("symbol ASC").Find(&instruments).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	to := models.DateOf(s.now())
	from := to.AddDate(0, 0, -days)
	result := &ImportResult{Failed: map[string]string{}}

	for i := range instruments {
		inst := &instruments[i]
		if i > 0 && pause > 0 {
			select {
			case <-ctx.Done():
				return result, ctx.Err()
			case <-time.After(pause):
			}
		}

		points, err := s.fetcher.History(ctx, inst.Symbol, from, to)
		if err != nil {
			result.Failed[inst.Symbol] = err.Error()
			logger.Get().Warnw("history import failed", "symbol", inst.Symbol, "error", err)
			continue
		}
		if len(points) == 0 {
			result.Skipped = append(result.Skipped, inst.Symbol)
			continue
		}

		err = s.db.Transaction(func(tx *gorm.DB) error {
			for _, p := range points {
				if _, err := recordPrice(tx, inst.ID, p.Price, p.Volume, p.Date); err != nil {
					return err
				}
			}
			return nil
		})
		if err != nil {
			return result, err
		}
		result.Instruments++
		result.Samples += len(points)
		logger.Get().Infow("history imported", "symbol", inst.Symbol, "samples", len(points))
	}

	if len(result.Failed) == 0 {
		result.Failed = nil
	}
	return result, nil
}

// Quote looks up one live price.
func (s *pricingService) Quote(ctx context.Context, symbol string) (*quote.Result, error) {
	if s.live == nil {
		return nil, apperrors.ErrQuoteNotConfigured
	}
	symbol = strings.ToUpper(strings.TrimSpace(symbol))
	if symbol == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "symbol is required")
	}
	r := s.live.GetPrice(ctx, symbol)
	if !r.OK() {
		if errors.Is(r.Err, quote.ErrAuthFailed) {
			return nil, apperrors.Wrap(apperrors.ErrQuoteAuthFailed, r.Err)
		}
		return nil, apperrors.Wrap(apperrors.ErrQuoteUnavailable, failureErr(r))
	}
	return &r, nil
}

// TestConnection forces a fresh login and one lookup. Any failure counts as
// an authentication failure.
func (s *pricingService) TestConnection(ctx context.Context) (*quote.Result, error) {
	if s.fetcher == nil {
		return nil, apperrors.ErrQuoteNotConfigured
	}
	r := s.fetcher.TestConnection(ctx, connectionTestSymbol)
	if !r.OK() {
		return nil, apperrors.Wrap(apperrors.ErrQuoteAuthFailed, failureErr(r))
	}
	return &r, nil
}

// RecordPrices stores externally supplied prices. Each one becomes the
// instrument's current price when it is for today or later, and always
// becomes the sample for its day. Unknown symbols fail the whole batch.
func (s *pricingService) RecordPrices(prices []PriceInput) (int, error) {
	if len(prices) == 0 {
		return 0, nil
	}
	today := models.DateOf(s.now())
	recorded := 0
	err := s.db.Transaction(func(tx *gorm.DB) error {
		for _, p := range prices {
			inst, err := findInstrument(tx, "symbol = ?", strings.ToUpper(strings.TrimSpace(p.Symbol)))
			if err != nil {
				if errors.Is(err, apperrors.ErrInstrumentNotFound) {
					return apperrors.WithMessage(apperrors.ErrInstrumentNotFound, "unknown symbol "+p.Symbol)
				}
				return err
			}
			date := p.Date
			if date.IsZero() {
				date = s.now()
			}
			if models.DateOf(date).Before(today) {
				if _, err := recordPrice(tx, inst.ID, p.Price, p.Volume, date); err != nil {
					return err
				}
			} else if err := setPrice(tx, inst, p.Price, p.Volume, date); err != nil {
				return err
			}
			recorded++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return recorded, nil
}

func failureErr(r quote.Result) error {
	if r.Err != nil {
		return r.Err
	}
	return errors.New("no price")
}

func failureText(r quote.Result) string {
	return failureErr(r).Error()
}

func allAuthFailures(results map[string]quote.Result) bool {
	if len(results) == 0 {
		return false
	}
	for _, r := range results {
		if !errors.Is(r.Err, quote.ErrAuthFailed) {
			return false
		}
	}
	return true
}
