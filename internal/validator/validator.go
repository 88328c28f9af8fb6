// Package validator provides custom validation functions for Gin's binding engine.
package validator

import (
	"reflect"

	"github.com/Rhymond/go-money"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"brokerfolio/internal/models"
)

// Register registers all custom validators with the Gin binding engine.
func Register() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		RegisterOn(v)
	}
}

// RegisterOn adds the custom tags to v.
func RegisterOn(v *validator.Validate) {
	v.RegisterCustomTypeFunc(decimalValue, decimal.Decimal{}, decimal.NullDecimal{})
	_ = v.RegisterValidation("iso4217", validateISO4217)
	_ = v.RegisterValidation("instrument_category", validateInstrumentCategory)
	_ = v.RegisterValidation("investment_type", validateInvestmentType)
	_ = v.RegisterValidation("investment_status", validateInvestmentStatus)
	_ = v.RegisterValidation("rating_category", validateRatingCategory)
	_ = v.RegisterValidation("message_kind", validateMessageKind)
	_ = v.RegisterValidation("decimal_positive", validateDecimalPositive)
}

// validateISO4217 accepts any currency code go-money knows about.
func validateISO4217(fl validator.FieldLevel) bool {
	code := fl.Field().String()
	return code != "" && money.GetCurrency(code) != nil
}

func validateInstrumentCategory(fl validator.FieldLevel) bool {
	switch models.InstrumentCategory(fl.Field().String()) {
	case models.InstrumentCategoryEquity, models.InstrumentCategoryBond,
		models.InstrumentCategoryCEDEAR, models.InstrumentCategoryOther:
		return true
	}
	return false
}

func validateInvestmentType(fl validator.FieldLevel) bool {
	switch models.InvestmentType(fl.Field().String()) {
	case models.InvestmentTypeFixedTerm, models.InvestmentTypeBond, models.InvestmentTypeEquity,
		models.InvestmentTypeFund, models.InvestmentTypeCrypto, models.InvestmentTypeOther:
		return true
	}
	return false
}

func validateInvestmentStatus(fl validator.FieldLevel) bool {
	switch models.InvestmentStatus(fl.Field().String()) {
	case models.InvestmentStatusActive, models.InvestmentStatusCompleted, models.InvestmentStatusCancelled:
		return true
	}
	return false
}

func validateRatingCategory(fl validator.FieldLevel) bool {
	for _, c := range models.RatingCategories {
		if string(c) == fl.Field().String() {
			return true
		}
	}
	return false
}

func validateMessageKind(fl validator.FieldLevel) bool {
	switch models.MessageKind(fl.Field().String()) {
	case models.MessageKindGeneral, models.MessageKindBroker,
		models.MessageKindInvestment, models.MessageKindPortfolio:
		return true
	}
	return false
}

// decimalValue lets tags see decimals as their string form. A null
// NullDecimal becomes nil so omitempty and required behave.
func decimalValue(field reflect.Value) interface{} {
	switch v := field.Interface().(type) {
	case decimal.Decimal:
		return v.String()
	case decimal.NullDecimal:
		if !v.Valid {
			return nil
		}
		return v.Decimal.String()
	}
	return nil
}

// validateDecimalPositive accepts a string holding a decimal greater than zero.
func validateDecimalPositive(fl validator.FieldLevel) bool {
	d, err := decimal.NewFromString(fl.Field().String())
	return err == nil && d.Sign() > 0
}
