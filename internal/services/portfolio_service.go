package services

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	apperrors "brokerfolio/internal/errors"
	"brokerfolio/internal/models"
	"brokerfolio/internal/pagination"
	"brokerfolio/internal/timeseries"
	"brokerfolio/internal/valuation"
)

// valueHistoryLookback is how far back a value history reaches when the
// portfolio's creation date is unknown.
const valueHistoryLookback = 90

// portfolioService handles portfolios and their holdings.
type portfolioService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewPortfolioService creates a new PortfolioServicer.
func NewPortfolioService(db *gorm.DB) PortfolioServicer {
	return &portfolioService{db: db, now: time.Now}
}

// CreatePortfolio creates an empty portfolio at a broker.
func (s *portfolioService) CreatePortfolio(userID, brokerID, name, description string) (*models.Portfolio, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "portfolio name is required")
	}
	if err := requireBroker(s.db, brokerID); err != nil {
		return nil, err
	}

	portfolio := &models.Portfolio{
		Name:        name,
		BrokerID:    brokerID,
		Description: strings.TrimSpace(description),
		CreatedByID: userID,
	}
	if err := s.db.Create(portfolio).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return s.GetPortfolioByID(portfolio.ID)
}

// ListPortfolios returns portfolios ordered by name, optionally for one broker.
func (s *portfolioService) ListPortfolios(brokerID string, page pagination.PageRequest) (*pagination.PageResponse[models.Portfolio], error) {
	query := s.db.Model(&models.Portfolio{})
	if brokerID != "" {
		query = query.Where("broker_id = ?", brokerID)
	}
	resp, err := pagination.Fetch[models.Portfolio](query, page, "name ASC", "Broker")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return resp, nil
}

// GetPortfolioByID retrieves a portfolio with its broker.
func (s *portfolioService) GetPortfolioByID(id string) (*models.Portfolio, error) {
	var portfolio models.Portfolio
	if err := s.db.Preload("Broker").Where("id = ?", id).First(&portfolio).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrPortfolioNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &portfolio, nil
}

// UpdatePortfolio renames, describes or moves a portfolio. An empty brokerID
// keeps the current broker.
func (s *portfolioService) UpdatePortfolio(id, brokerID, name, description string) (*models.Portfolio, error) {
	portfolio, err := s.GetPortfolioByID(id)
	if err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "portfolio name is required")
	}
	if brokerID != "" && brokerID != portfolio.BrokerID {
		if err := requireBroker(s.db, brokerID); err != nil {
			return nil, err
		}
	} else {
		brokerID = portfolio.BrokerID
	}

	if err := s.db.Model(&models.Portfolio{}).Where("id = ?", id).Updates(map[string]interface{}{
		"name":        name,
		"broker_id":   brokerID,
		"description": strings.TrimSpace(description),
	}).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return s.GetPortfolioByID(id)
}

// DeletePortfolio removes a portfolio and its holdings.
func (s *portfolioService) DeletePortfolio(id string) error {
	if _, err := s.GetPortfolioByID(id); err != nil {
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("portfolio_id = ?", id).Delete(&models.Holding{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := tx.Where("id = ?", id).Delete(&models.Portfolio{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
}

// AddHolding adds a position to a portfolio. A symbol that is not tracked
// yet creates its instrument.
func (s *portfolioService) AddHolding(portfolioID string, in HoldingInput) (*models.Holding, error) {
	if _, err := s.GetPortfolioByID(portfolioID); err != nil {
		return nil, err
	}
	if err := validateHolding(in); err != nil {
		return nil, err
	}

	var holding *models.Holding
	err := s.db.Transaction(func(tx *gorm.DB) error {
		inst, err := resolveInstrument(tx, in)
		if err != nil {
			return err
		}
		holding = &models.Holding{
			PortfolioID:   portfolioID,
			InstrumentID:  inst.ID,
			Quantity:      in.Quantity,
			PurchasePrice: in.PurchasePrice,
			PurchaseDate:  s.purchaseDate(in.PurchaseDate),
			Notes:         strings.TrimSpace(in.Notes),
		}
		if err := tx.Create(holding).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		holding.Instrument = inst
		return nil
	})
	if err != nil {
		return nil, err
	}
	return holding, nil
}

// UpdateHolding replaces quantity, purchase price, date and notes of a
// holding. The instrument cannot change.
func (s *portfolioService) UpdateHolding(portfolioID, holdingID string, in HoldingInput) (*models.Holding, error) {
	holding, err := s.findHolding(portfolioID, holdingID)
	if err != nil {
		return nil, err
	}
	if err := validateHolding(in); err != nil {
		return nil, err
	}

	holding.Quantity = in.Quantity
	holding.PurchasePrice = in.PurchasePrice
	holding.PurchaseDate = s.purchaseDate(in.PurchaseDate)
	holding.Notes = strings.TrimSpace(in.Notes)
	if err := s.db.Omit("Instrument").Save(holding).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return holding, nil
}

// RemoveHolding deletes one holding of a portfolio.
func (s *portfolioService) RemoveHolding(portfolioID, holdingID string) error {
	holding, err := s.findHolding(portfolioID, holdingID)
	if err != nil {
		return err
	}
	if err := s.db.Delete(holding).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return nil
}

// GetHoldings lists a portfolio's holdings with their instruments.
func (s *portfolioService) GetHoldings(portfolioID string) ([]models.Holding, error) {
	if _, err := s.GetPortfolioByID(portfolioID); err != nil {
		return nil, err
	}
	holdings := []models.Holding{}
	if err := s.db.Preload("Instrument").Where("portfolio_id = ?", portfolioID).
		Order("purchase_date ASC").Find(&holdings).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return holdings, nil
}

// GetPositions loads a portfolio's holdings joined with their instruments'
// latest prices.
func (s *portfolioService) GetPositions(portfolioID string) ([]valuation.Position, error) {
	if _, err := s.GetPortfolioByID(portfolioID); err != nil {
		return nil, err
	}
	byPortfolio, err := loadPositions(s.db, []string{portfolioID})
	if err != nil {
		return nil, err
	}
	return byPortfolio[portfolioID], nil
}

// GetValuation computes the current snapshot of a portfolio.
func (s *portfolioService) GetValuation(portfolioID string) (*valuation.PortfolioSnapshot, error) {
	portfolio, err := s.GetPortfolioByID(portfolioID)
	if err != nil {
		return nil, err
	}
	byPortfolio, err := loadPositions(s.db, []string{portfolioID})
	if err != nil {
		return nil, err
	}
	snap := valuation.SnapshotPortfolio(valuation.PortfolioPositions{
		ID:        portfolio.ID,
		Name:      portfolio.Name,
		BrokerID:  portfolio.BrokerID,
		Positions: byPortfolio[portfolioID],
	})
	return &snap, nil
}

// GetValueHistory reconstructs a portfolio's daily value from stored price
// samples. Missing bounds default to the portfolio's creation and today.
func (s *portfolioService) GetValueHistory(portfolioID string, from, to *time.Time) (*ValueHistory, error) {
	portfolio, err := s.GetPortfolioByID(portfolioID)
	if err != nil {
		return nil, err
	}
	positions, err := s.GetPositions(portfolioID)
	if err != nil {
		return nil, err
	}

	today := s.now()
	window := timeseries.DefaultWindow(portfolio.CreatedAt, today, valueHistoryLookback)
	if from != nil {
		window.From = models.DateOf(*from)
	}
	if to != nil {
		window.To = models.DateOf(*to)
	}
	if window.To.Before(window.From) {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "end date must not be before start date")
	}

	samples, err := loadSamples(s.db, timeseries.Quantities(positions), window)
	if err != nil {
		return nil, err
	}

	series := timeseries.PortfolioHistory(positions, samples, window, valuation.PortfolioValue(positions), today)
	return &ValueHistory{
		PortfolioID: portfolioID,
		From:        window.From,
		To:          window.To,
		Series:      series,
		Metrics:     timeseries.Summarize(positions, series),
	}, nil
}

func (s *portfolioService) findHolding(portfolioID, holdingID string) (*models.Holding, error) {
	var holding models.Holding
	err := s.db.Preload("Instrument").
		Where("id = ? AND portfolio_id = ?", holdingID, portfolioID).
		First(&holding).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, apperrors.ErrHoldingNotFound
	}
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &holding, nil
}

func (s *portfolioService) purchaseDate(d time.Time) time.Time {
	if d.IsZero() {
		d = s.now()
	}
	return models.DateOf(d)
}

func validateHolding(in HoldingInput) error {
	if in.Quantity.Sign() <= 0 {
		return apperrors.ErrInvalidQuantity
	}
	if in.PurchasePrice.IsNegative() {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "purchase price must not be negative")
	}
	if in.InstrumentID == "" && strings.TrimSpace(in.Symbol) == "" {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "instrument_id or symbol is required")
	}
	return nil
}

// resolveInstrument finds the instrument a holding refers to, creating it
// on first reference by symbol.
func resolveInstrument(tx *gorm.DB, in HoldingInput) (*models.Instrument, error) {
	if in.InstrumentID != "" {
		return findInstrument(tx, "id = ?", in.InstrumentID)
	}
	inst, err := findInstrument(tx, "symbol = ?", strings.ToUpper(strings.TrimSpace(in.Symbol)))
	if err == nil {
		return inst, nil
	}
	if !errors.Is(err, apperrors.ErrInstrumentNotFound) {
		return nil, err
	}
	fresh, err := normalizeInstrument(InstrumentInput{Symbol: in.Symbol, Name: in.Name, Category: in.Category})
	if err != nil {
		return nil, err
	}
	return createInstrument(tx, fresh)
}

func requireBroker(db *gorm.DB, brokerID string) error {
	if brokerID == "" {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "broker_id is required")
	}
	var count int64
	if err := db.Model(&models.Broker{}).Where("id = ?", brokerID).Count(&count).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count == 0 {
		return apperrors.ErrBrokerNotFound
	}
	return nil
}

type positionRow struct {
	PortfolioID   string
	HoldingID     string
	InstrumentID  string
	Symbol        string
	Name          string
	Category      models.InstrumentCategory
	Quantity      decimal.Decimal
	PurchasePrice decimal.Decimal
	CurrentPrice  decimal.NullDecimal
}

// loadPositions joins the holdings of the given portfolios with their
// instruments, grouped by portfolio ID.
func loadPositions(db *gorm.DB, portfolioIDs []string) (map[string][]valuation.Position, error) {
	out := make(map[string][]valuation.Position, len(portfolioIDs))
	if len(portfolioIDs) == 0 {
		return out, nil
	}

	var rows []positionRow
	err := db.Table("holdings").
		Select("holdings.portfolio_id, holdings.id AS holding_id, holdings.instrument_id, " +
			"instruments.symbol, instruments.name, instruments.category, " +
			"holdings.quantity, holdings.purchase_price, instruments.current_price").
		Joins("JOIN instruments ON instruments.id = holdings.instrument_id AND instruments.deleted_at IS NULL").
		Where("holdings.portfolio_id IN ? AND holdings.deleted_at IS NULL", portfolioIDs).
		Order("instruments.symbol ASC, holdings.purchase_date ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	for _, r := range rows {
		price := decimal.Zero
		if r.CurrentPrice.Valid {
			price = r.CurrentPrice.Decimal
		}
		out[r.PortfolioID] = append(out[r.PortfolioID], valuation.Position{
			HoldingID:     r.HoldingID,
			InstrumentID:  r.InstrumentID,
			Symbol:        r.Symbol,
			Name:          r.Name,
			Category:      r.Category,
			Quantity:      r.Quantity,
			PurchasePrice: r.PurchasePrice,
			CurrentPrice:  price,
		})
	}
	return out, nil
}

// loadSamples fetches the price samples of the given instruments inside window.
func loadSamples(db *gorm.DB, quantities map[string]decimal.Decimal, window timeseries.Window) ([]timeseries.Sample, error) {
	if len(quantities) == 0 {
		return nil, nil
	}
	ids := make([]string, 0, len(quantities))
	for id := range quantities {
		ids = append(ids, id)
	}

	var rows []models.PriceSample
	if err := db.Where("instrument_id IN ? AND date >= ? AND date <= ?", ids, window.From, window.To).
		Order("date ASC").Find(&rows).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	samples := make([]timeseries.Sample, 0, len(rows))
	for _, r := range rows {
		samples = append(samples, timeseries.Sample{InstrumentID: r.InstrumentID, Date: r.Date, Price: r.Price})
	}
	return samples, nil
}
