package services

import (
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	apperrors "brokerfolio/internal/errors"
	"brokerfolio/internal/models"
	"brokerfolio/internal/pagination"
)

// investmentService handles fixed-term records.
type investmentService struct {
	db *gorm.DB
}

// NewInvestmentService creates a new InvestmentServicer.
func NewInvestmentService(db *gorm.DB) InvestmentServicer {
	return &investmentService{db: db}
}

// CreateInvestment records a fixed-term deposit or other tracked position.
func (s *investmentService) CreateInvestment(userID string, in InvestmentInput) (*models.Investment, error) {
	inv := &models.Investment{CreatedByID: userID}
	if err := s.apply(inv, in); err != nil {
		return nil, err
	}
	if err := s.db.Create(inv).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return s.GetInvestmentByID(inv.ID)
}

// ListInvestments returns fixed-term records, newest first.
func (s *investmentService) ListInvestments(filter InvestmentFilter, page pagination.PageRequest) (*pagination.PageResponse[models.Investment], error) {
	query := s.db.Model(&models.Investment{})
	if filter.BrokerID != "" {
		query = query.Where("broker_id = ?", filter.BrokerID)
	}
	if filter.Type != "" {
		query = query.Where("type = ?", filter.Type)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	resp, err := pagination.Fetch[models.Investment](query, page, "created_at DESC", "Broker")
	if err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return resp, nil
}

// GetInvestmentByID retrieves a fixed-term record with its broker.
func (s *investmentService) GetInvestmentByID(id string) (*models.Investment, error) {
	var inv models.Investment
	if err := s.db.Preload("Broker").Where("id = ?", id).First(&inv).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperrors.ErrInvestmentNotFound
		}
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return &inv, nil
}

// UpdateInvestment replaces the editable fields of a fixed-term record.
func (s *investmentService) UpdateInvestment(id string, in InvestmentInput) (*models.Investment, error) {
	inv, err := s.GetInvestmentByID(id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(inv, in); err != nil {
		return nil, err
	}
	inv.Broker = nil
	if err := s.db.Omit("Broker").Save(inv).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return s.GetInvestmentByID(id)
}

// DeleteInvestment removes a fixed-term record.
func (s *investmentService) DeleteInvestment(id string) error {
	result := s.db.Where("id = ?", id).Delete(&models.Investment{})
	if result.Error != nil {
		return apperrors.Wrap(apperrors.ErrInternalServer, result.Error)
	}
	if result.RowsAffected == 0 {
		return apperrors.ErrInvestmentNotFound
	}
	return nil
}

// UpcomingMaturities lists active records maturing today or later, soonest first.
func (s *investmentService) UpcomingMaturities(now time.Time, limit int) ([]models.Investment, error) {
	if limit <= 0 {
		limit = 5
	}
	out := []models.Investment{}
	if err := s.db.Preload("Broker").
		Where("status = ? AND end_date IS NOT NULL AND end_date >= ?", models.InvestmentStatusActive, models.DateOf(now)).
		Order("end_date ASC").
		Limit(limit).
		Find(&out).Error; err != nil {
		return nil, apperrors.Wrap(apperrors.ErrInternalServer, err)
	}
	return out, nil
}

// apply validates in and copies it onto inv.
func (s *investmentService) apply(inv *models.Investment, in InvestmentInput) error {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "name is required")
	}
	if in.Principal.Sign() <= 0 {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "amount must be greater than zero")
	}
	if in.InterestRate.Valid && in.InterestRate.Decimal.IsNegative() {
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "interest rate must not be negative")
	}

	typ := in.Type
	switch typ {
	case "":
		typ = models.InvestmentTypeFixedTerm
	case models.InvestmentTypeFixedTerm, models.InvestmentTypeBond, models.InvestmentTypeEquity,
		models.InvestmentTypeFund, models.InvestmentTypeCrypto, models.InvestmentTypeOther:
	default:
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "unsupported investment type")
	}

	status := in.Status
	switch status {
	case "":
		status = models.InvestmentStatusActive
	case models.InvestmentStatusActive, models.InvestmentStatusCompleted, models.InvestmentStatusCancelled:
	default:
		return apperrors.WithMessage(apperrors.ErrInvalidInput, "unsupported investment status")
	}

	start, end := dayPtr(in.StartDate), dayPtr(in.EndDate)
	if start != nil && end != nil && end.Before(*start) {
		return apperrors.ErrInvalidTerm
	}

	var brokerID *string
	if in.BrokerID != nil && *in.BrokerID != "" {
		if err := requireBroker(s.db, *in.BrokerID); err != nil {
			return err
		}
		id := *in.BrokerID
		brokerID = &id
	}

	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = "ARS"
	}

	inv.Name = name
	inv.Type = typ
	inv.Principal = in.Principal
	inv.Currency = currency
	inv.InterestRate = in.InterestRate
	inv.StartDate = start
	inv.EndDate = end
	inv.Status = status
	inv.BrokerID = brokerID
	inv.Notes = strings.TrimSpace(in.Notes)
	return nil
}

func dayPtr(t *time.Time) *time.Time {
	if t == nil || t.IsZero() {
		return nil
	}
	d := models.DateOf(*t)
	return &d
}
