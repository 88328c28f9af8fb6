package services

import (
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	apperrors "brokerfolio/internal/errors"
	"brokerfolio/internal/models"
	"brokerfolio/internal/pagination"
)

// DefaultBonds is the instrument universe seeded when nothing is tracked yet.
var DefaultBonds = []string{
	"SA24D", "AL29", "GD35", "BA37D", "GD29",
	"CO24D", "GD38", "AL30", "GD30", "PMM29",
}

// instrumentService handles instruments and their daily price samples.
type instrumentService struct {
	db  *gorm.DB
	now func() time.Time
}

// NewInstrumentService creates a new InstrumentServicer.
func NewInstrumentService(db *gorm.DB) InstrumentServicer {
	return &instrumentService{db: db, now: time.Now}
}

// CreateInstrument creates an instrument. When a price is given it becomes
// the current price and today's sample.
func (s *instrumentService) CreateInstrument(in InstrumentInput) (*models.Instrument, error) {
	inst, err := normalizeInstrument(in)
	if err != nil {
		return nil, err
	}
	if in.Price != nil && in.Price.Sign() <= 0 {
		return nil, apperrors.ErrInvalidPrice
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		created, err := createInstrument(tx, inst)
		if err != nil {
			return err
		}
		if in.Price == nil {
			return nil
		}
		return setPrice(tx, created, *in.Price, nil, s.now())
	})
	if err != nil {
		return nil, err
	}
	return inst, nil
}

// ListInstruments returns instruments ordered by symbol, optionally filtered
// by category and a case-insensitive search on symbol or name.
func (s *instrumentService) ListInstruments(search string, category models.InstrumentCategory, page pagination.PageRequest) (*pagination.PageResponse[models.Instrument], error) {
	query := s.db.Model(&models.Instrument{})
	if search = strings.TrimSpace(search); search != "" {
		like := "%" + strings.ToLower(search) + "%"
		query = query.Where("LOWER(symbol) LIKE ? OR LOWER(name) LIKE ?", like, like)
	}
	if category != "" {
		query = query.Where("category = ?", category)
	}
	resp, err := pagination.Fetch[models.Instrument](query, page, "symbol ASC")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return resp, nil
}

// ListAllInstruments returns every tracked instrument ordered by symbol.
func (s *instrumentService) ListAllInstruments() ([]models.Instrument, error) {
	instruments := []models.Instrument{}
	if err := s.db.Order("symbol ASC").Find(&instruments).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return instruments, nil
}

// GetInstrumentByID retrieves an instrument by ID.
func (s *instrumentService) GetInstrumentByID(id string) (*models.Instrument, error) {
	return findInstrument(s.db, "id = ?", id)
}

// GetInstrumentBySymbol retrieves an instrument by ticker, case-insensitively.
func (s *instrumentService) GetInstrumentBySymbol(symbol string) (*models.Instrument, error) {
	return findInstrument(s.db, "symbol = ?", strings.ToUpper(strings.TrimSpace(symbol)))
}

// DeleteInstrument removes an instrument with its price samples and the
// holdings that reference it.
func (s *instrumentService) DeleteInstrument(id string) error {
	if _, err := s.GetInstrumentByID(id); err != nil {
		return err
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("instrument_id = ?", id).Delete(&models.PriceSample{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := tx.Unscoped().Where("instrument_id = ?", id).Delete(&models.Holding{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if err := tx.Unscoped().Where("id = ?", id).Delete(&models.Instrument{}).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		return nil
	})
}

// SetPrice overwrites the current price and records it as the sample for
// the day of at.
func (s *instrumentService) SetPrice(id string, price decimal.Decimal, volume *int64, at time.Time) (*models.Instrument, error) {
	if price.Sign() <= 0 {
		return nil, apperrors.ErrInvalidPrice
	}
	inst, err := s.GetInstrumentByID(id)
	if err != nil {
		return nil, err
	}
	if err := s.db.Transaction(func(tx *gorm.DB) error {
		return setPrice(tx, inst, price, volume, at)
	}); err != nil {
		return nil, err
	}
	return inst, nil
}

// RecordPrice upserts the sample for (instrumentID, day of date).
func (s *instrumentService) RecordPrice(instrumentID string, price decimal.Decimal, volume *int64, date time.Time) (*models.PriceSample, error) {
	return recordPrice(s.db, instrumentID, price, volume, date)
}

// GetPriceHistory returns a page of samples between from and to inclusive,
// oldest first.
func (s *instrumentService) GetPriceHistory(instrumentID string, from, to time.Time, page pagination.PageRequest) (*pagination.PageResponse[models.PriceSample], error) {
	if _, err := s.GetInstrumentByID(instrumentID); err != nil {
		return nil, err
	}
	query := s.db.Model(&models.PriceSample{}).
		Where("instrument_id = ? AND date >= ? AND date <= ?", instrumentID, models.DateOf(from), models.DateOf(to))
	resp, err := pagination.Fetch[models.PriceSample](query, page, "date ASC")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return resp, nil
}

// GetRecentHistory returns the samples of the last days days, oldest first.
func (s *instrumentService) GetRecentHistory(instrumentID string, days int) ([]models.PriceSample, error) {
	if days <= 0 {
		days = 30
	}
	from := models.DateOf(s.now()).AddDate(0, 0, -days)
	samples := []models.PriceSample{}
	if err := s.db.Where("instrument_id = ? AND date >= ?", instrumentID, from).
		Order("date ASC").Find(&samples).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return samples, nil
}

// SeedDefaultBonds creates DefaultBonds when no instrument exists yet and
// returns what it created. With instruments present it is a no-op.
func (s *instrumentService) SeedDefaultBonds() ([]models.Instrument, error) {
	return seedDefaultBonds(s.db)
}

func seedDefaultBonds(db *gorm.DB) ([]models.Instrument, error) {
	created := []models.Instrument{}
	err := db.Transaction(func(tx *gorm.DB) error {
		var count int64
		if err := tx.Model(&models.Instrument{}).Count(&count).Error; err != nil {
			return apperrors.Wrap(apperrors.ErrInternalServer, err)
		}
		if count > 0 {
			return nil
		}
		for _, symbol := range DefaultBonds {
			inst := models.Instrument{
				Symbol:   symbol,
				Name:     symbol,
				Category: models.InstrumentCategoryBond,
				Market:   models.DefaultMarket,
				Currency: "ARS",
			}
			if err := tx.Create(&inst).Error; err != nil {
				return apperrors.Wrap(apperrors.ErrInternalServer, err)
			}
			created = append(created, inst)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

func normalizeInstrument(in InstrumentInput) (*models.Instrument, error) {
	symbol := strings.ToUpper(strings.TrimSpace(in.Symbol))
	if symbol == "" {
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "symbol is required")
	}
	inst := &models.Instrument{
		Symbol:   symbol,
		Name:     strings.TrimSpace(in.Name),
		Category: in.Category,
		Market:   strings.ToUpper(strings.TrimSpace(in.Market)),
		Currency: strings.ToUpper(strings.TrimSpace(in.Currency)),
	}
	if inst.Name == "" {
		inst.Name = symbol
	}
	switch inst.Category {
	case "":
		inst.Category = models.InstrumentCategoryEquity
	case models.InstrumentCategoryEquity, models.InstrumentCategoryBond,
		models.InstrumentCategoryCEDEAR, models.InstrumentCategoryOther:
	default:
		return nil, apperrors.WithMessage(apperrors.ErrInvalidInput, "unsupported instrument category")
	}
	if inst.Market == "" {
		inst.Market = models.DefaultMarket
	}
	if inst.Currency == "" {
		inst.Currency = "ARS"
	}
	return inst, nil
}

// createInstrument inserts inst, mapping a taken symbol to ErrDuplicateInstrument.
func createInstrument(tx *gorm.DB, inst *models.Instrument) (*models.Instrument, error) {
	var count int64
	if err := tx.Model(&models.Instrument{}).Where("symbol = ?", inst.Symbol).Count(&count).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count > 0 {
		return nil, apperrors.ErrDuplicateInstrument
	}
	if err := tx.Create(inst).Error; err != nil {
		if isUniqueConstraintError(err) {
			return nil, apperrors.ErrDuplicateInstrument
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return inst, nil
}

func findInstrument(db *gorm.DB, cond string, arg interface{}) (*models.Instrument, error) {
	var inst models.Instrument
	if err := db.Where(cond, arg).First(&inst).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrInstrumentNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &inst, nil
}

// setPrice updates inst's current price and records the day's sample using tx.
func setPrice(tx *gorm.DB, inst *models.Instrument, price decimal.Decimal, volume *int64, at time.Time) error {
	current := decimal.NewNullDecimal(price)
	if err := tx.Model(&models.Instrument{}).Where("id = ?", inst.ID).Updates(map[string]interface{}{
		"current_price": current,
		"last_updated":  at,
	}).Error; err != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if _, err := recordPrice(tx, inst.ID, price, volume, at); err != nil {
		return err
	}
	inst.CurrentPrice = current
	inst.LastUpdated = &at
	return nil
}

// recordPrice is the only write path for price samples. A second write for
// the same instrument and day overwrites the price, and the volume when one
// is given.
func recordPrice(db *gorm.DB, instrumentID string, price decimal.Decimal, volume *int64, date time.Time) (*models.PriceSample, error) {
	if price.Sign() <= 0 {
		return nil, apperrors.ErrInvalidPrice
	}
	var count int64
	if err := db.Model(&models.Instrument{}).Where("id = ?", instrumentID).Count(&count).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	if count == 0 {
		return nil, apperrors.ErrInstrumentNotFound
	}

	day := models.DateOf(date)
	updates := []string{"price", "updated_at"}
	if volume != nil {
		updates = append(updates, "volume")
	}
	sample := &models.PriceSample{InstrumentID: instrumentID, Date: day, Price: price, Volume: volume}
	if err := db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "instrument_id"}, {Name: "date"}},
		DoUpdates: clause.AssignmentColumns(updates),
	}).Create(sample).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}

	var stored models.PriceSample
	if err := db.Where("instrument_id = ? AND date = ?", instrumentID, day).First(&stored).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &stored, nil
}
